package viewmodel

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"committeeDashboard/internal/dataservice"
)

// timestamp layouts produced by the supported drivers and by JSON
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func str(row dataservice.Row, key string) string {
	switch v := row[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func boolean(row dataservice.Row, key string) bool {
	switch v := row[key].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	case float64:
		return v != 0
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	default:
		return false
	}
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case float64:
		return int(math.Round(t)), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	default:
		return 0, false
	}
}

func integer(row dataservice.Row, key string) int {
	n, _ := toInt(row[key])
	return n
}

func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func timestamp(row dataservice.Row, key string) (time.Time, error) {
	t, ok := parseTime(row[key])
	if !ok {
		return time.Time{}, fmt.Errorf("field %s: not a timestamp: %v", key, row[key])
	}
	return t, nil
}

func optTimestamp(row dataservice.Row, key string) *time.Time {
	if t, ok := parseTime(row[key]); ok {
		return &t
	}
	return nil
}

func person(v any) *PersonRef {
	r := asRow(v)
	if r == nil {
		return nil
	}
	return &PersonRef{ID: str(r, "id"), Name: str(r, "name"), Avatar: str(r, "avatar")}
}

func people(v any) []PersonRef {
	rows := asRows(v)
	out := make([]PersonRef, 0, len(rows))
	for _, r := range rows {
		out = append(out, *person(r))
	}
	return out
}

func requireID(row dataservice.Row) (string, error) {
	id := str(row, "id")
	if id == "" {
		return "", fmt.Errorf("record has no id")
	}
	return id, nil
}
