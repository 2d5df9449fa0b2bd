package viewmodel

import (
	"committeeDashboard/internal/dataservice"
)

// Flatten returns a copy of row where every expansion has its view shape:
// to-one relations become a Row or nil, count relations become an int, and
// to-many relations become a non-nil []Row (lifted when requested).
func Flatten(row dataservice.Row, expansions []Expansion) dataservice.Row {
	out := make(dataservice.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	for _, e := range expansions {
		switch e.Kind {
		case dataservice.ToOne:
			if nested := asRow(row[e.Name]); nested != nil {
				out[e.Name] = nested
			} else {
				out[e.Name] = nil
			}
		case dataservice.Count:
			out[e.Name] = countOf(row[e.Name])
		case dataservice.ToMany:
			list := asRows(row[e.Name])
			if e.Lift != "" {
				lifted := make([]dataservice.Row, 0, len(list))
				for _, item := range list {
					if nested := asRow(item[e.Lift]); nested != nil {
						lifted = append(lifted, nested)
					}
				}
				list = lifted
			}
			out[e.Name] = list
		}
	}
	return out
}

// countOf reads the first element of a count aggregate, defaulting to 0.
func countOf(v any) int {
	rows := asRows(v)
	if len(rows) == 0 {
		return 0
	}
	n, _ := toInt(rows[0]["count"])
	return n
}

func asRow(v any) dataservice.Row {
	switch t := v.(type) {
	case dataservice.Row:
		if t == nil {
			return nil
		}
		return t
	case map[string]any:
		if t == nil {
			return nil
		}
		return dataservice.Row(t)
	default:
		return nil
	}
}

func asRows(v any) []dataservice.Row {
	switch t := v.(type) {
	case []dataservice.Row:
		out := make([]dataservice.Row, 0, len(t))
		for _, r := range t {
			if r != nil {
				out = append(out, r)
			}
		}
		return out
	case []map[string]any:
		out := make([]dataservice.Row, 0, len(t))
		for _, r := range t {
			if r != nil {
				out = append(out, dataservice.Row(r))
			}
		}
		return out
	case []any:
		out := make([]dataservice.Row, 0, len(t))
		for _, item := range t {
			if r := asRow(item); r != nil {
				out = append(out, r)
			}
		}
		return out
	default:
		return []dataservice.Row{}
	}
}
