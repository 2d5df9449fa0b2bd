package sqlstore

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"committeeDashboard/internal/dataservice"
)

// keeps IN lists under SQLite's bound-variable limit
const inChunkSize = 500

var identRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func checkIdent(name string) error {
	if !identRegex.MatchString(name) {
		return dataservice.Wrap(dataservice.KindInvalid, fmt.Sprintf("invalid identifier %q", name), nil)
	}
	return nil
}

// builder collects bound arguments and renders dialect placeholders.
type builder struct {
	dialect Dialect
	args    []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, normalizeArg(v))
	if b.dialect == Postgres {
		return "$" + strconv.Itoa(len(b.args))
	}
	return "?"
}

func normalizeArg(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC()
	case *string:
		if t == nil {
			return nil
		}
		return *t
	default:
		return v
	}
}

func normalizeArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = normalizeArg(a)
	}
	return out
}

func isWildcard(columns []string) bool {
	if len(columns) == 0 {
		return true
	}
	for _, c := range columns {
		if c == "*" {
			return true
		}
	}
	return false
}

func (b *builder) where(filters []dataservice.Filter) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}
	clauses := make([]string, 0, len(filters))
	for _, f := range filters {
		if err := checkIdent(f.Column); err != nil {
			return "", err
		}
		switch f.Op {
		case dataservice.OpEq:
			clauses = append(clauses, f.Column+" = "+b.bind(f.Value))
		case dataservice.OpNeq:
			clauses = append(clauses, f.Column+" <> "+b.bind(f.Value))
		case dataservice.OpGt:
			clauses = append(clauses, f.Column+" > "+b.bind(f.Value))
		case dataservice.OpGte:
			clauses = append(clauses, f.Column+" >= "+b.bind(f.Value))
		case dataservice.OpLt:
			clauses = append(clauses, f.Column+" < "+b.bind(f.Value))
		case dataservice.OpLte:
			clauses = append(clauses, f.Column+" <= "+b.bind(f.Value))
		case dataservice.OpIsNull:
			if notNull, ok := f.Value.(bool); ok && !notNull {
				clauses = append(clauses, f.Column+" IS NOT NULL")
			} else {
				clauses = append(clauses, f.Column+" IS NULL")
			}
		case dataservice.OpIn:
			values, ok := f.Value.([]any)
			if !ok {
				return "", dataservice.Wrap(dataservice.KindInvalid, "in filter on "+f.Column+" needs a list", nil)
			}
			if len(values) == 0 {
				clauses = append(clauses, "1 = 0")
				continue
			}
			ph := make([]string, len(values))
			for i, v := range values {
				ph[i] = b.bind(v)
			}
			clauses = append(clauses, f.Column+" IN ("+strings.Join(ph, ", ")+")")
		default:
			return "", dataservice.Wrap(dataservice.KindInvalid, fmt.Sprintf("unsupported operator %q", f.Op), nil)
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), nil
}

// selectColumns returns the column list to fetch: the requested columns plus
// the keys needed to resolve relations.
func selectColumns(entity string, columns []string, rels []dataservice.Relation, extra ...string) ([]string, error) {
	if isWildcard(columns) {
		return nil, nil
	}
	seen := make(map[string]bool)
	var out []string
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	if hasIDColumn(entity) {
		add("id")
	}
	for _, c := range columns {
		if err := checkIdent(c); err != nil {
			return nil, err
		}
		add(c)
	}
	for _, rel := range rels {
		if rel.Kind == dataservice.ToOne {
			add(rel.Key)
		}
	}
	for _, c := range extra {
		add(c)
	}
	return out, nil
}

func (s *Store) selectRaw(ctx context.Context, q dataservice.Query, extra ...string) ([]dataservice.Row, error) {
	if err := checkIdent(q.Entity); err != nil {
		return nil, err
	}
	cols, err := selectColumns(q.Entity, q.Columns, q.Relations, extra...)
	if err != nil {
		return nil, err
	}
	colList := "*"
	if cols != nil {
		colList = strings.Join(cols, ", ")
	}

	b := &builder{dialect: s.dialect}
	where, err := b.where(q.Filters)
	if err != nil {
		return nil, err
	}

	stmt := "SELECT " + colList + " FROM " + q.Entity + where
	if q.Order != nil {
		if err := checkIdent(q.Order.Column); err != nil {
			return nil, err
		}
		dir := "DESC"
		if q.Order.Ascending {
			dir = "ASC"
		}
		stmt += " ORDER BY " + q.Order.Column + " " + dir + " NULLS LAST"
	}
	if q.Limit > 0 {
		stmt += " LIMIT " + strconv.Itoa(q.Limit)
	}

	rows, err := s.conn.query(ctx, stmt, b.args)
	if err != nil {
		return nil, classify("select from "+q.Entity, err)
	}
	if err := s.expand(ctx, rows, q.Relations); err != nil {
		return nil, err
	}
	return rows, nil
}

// selectIn runs q once per chunk of values for an IN filter on column.
func (s *Store) selectIn(ctx context.Context, q dataservice.Query, column string, values []any, extra ...string) ([]dataservice.Row, error) {
	var out []dataservice.Row
	for _, chunk := range chunks(values, inChunkSize) {
		cq := q
		cq.Filters = append(append([]dataservice.Filter(nil), q.Filters...), dataservice.In(column, chunk...))
		rows, err := s.selectRaw(ctx, cq, extra...)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (s *Store) expand(ctx context.Context, rows []dataservice.Row, rels []dataservice.Relation) error {
	if len(rows) == 0 {
		return nil
	}
	for _, rel := range rels {
		if err := checkIdent(rel.Name); err != nil {
			return err
		}
		if err := checkIdent(rel.Key); err != nil {
			return err
		}
		var err error
		switch rel.Kind {
		case dataservice.ToOne:
			err = s.expandToOne(ctx, rows, rel)
		case dataservice.ToMany:
			err = s.expandToMany(ctx, rows, rel)
		case dataservice.Count:
			err = s.expandCount(ctx, rows, rel)
		default:
			err = dataservice.Wrap(dataservice.KindInvalid, "unknown relation kind for "+rel.Name, nil)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) expandToOne(ctx context.Context, rows []dataservice.Row, rel dataservice.Relation) error {
	keys := distinct(rows, rel.Key)
	related := make(map[string]dataservice.Row, len(keys))
	if len(keys) > 0 {
		targets, err := s.selectIn(ctx, dataservice.Query{
			Entity:    rel.Entity,
			Columns:   rel.Columns,
			Relations: rel.Relations,
		}, "id", keys)
		if err != nil {
			return err
		}
		for _, t := range targets {
			related[keyOf(t["id"])] = projectRow(t, rel.Columns, rel.Relations)
		}
	}
	for _, row := range rows {
		row[rel.Name] = nil
		if v := row[rel.Key]; v != nil {
			if t, ok := related[keyOf(v)]; ok {
				row[rel.Name] = t
			}
		}
	}
	return nil
}

func (s *Store) expandToMany(ctx context.Context, rows []dataservice.Row, rel dataservice.Relation) error {
	ids := distinct(rows, "id")
	groups := make(map[string][]dataservice.Row)
	if len(ids) > 0 {
		targets, err := s.selectIn(ctx, dataservice.Query{
			Entity:    rel.Entity,
			Columns:   rel.Columns,
			Relations: rel.Relations,
			Order:     rel.Order,
		}, rel.Key, ids, rel.Key)
		if err != nil {
			return err
		}
		for _, t := range targets {
			k := keyOf(t[rel.Key])
			groups[k] = append(groups[k], projectRow(t, rel.Columns, rel.Relations))
		}
	}
	for _, row := range rows {
		children := groups[keyOf(row["id"])]
		if children == nil {
			children = []dataservice.Row{}
		}
		row[rel.Name] = children
	}
	return nil
}

func (s *Store) expandCount(ctx context.Context, rows []dataservice.Row, rel dataservice.Relation) error {
	if err := checkIdent(rel.Entity); err != nil {
		return err
	}
	ids := distinct(rows, "id")
	counts := make(map[string]any)
	for _, chunk := range chunks(ids, inChunkSize) {
		b := &builder{dialect: s.dialect}
		ph := make([]string, len(chunk))
		for i, v := range chunk {
			ph[i] = b.bind(v)
		}
		stmt := fmt.Sprintf("SELECT %s AS parent_key, COUNT(*) AS count FROM %s WHERE %s IN (%s) GROUP BY %s",
			rel.Key, rel.Entity, rel.Key, strings.Join(ph, ", "), rel.Key)
		result, err := s.conn.query(ctx, stmt, b.args)
		if err != nil {
			return classify("count "+rel.Entity, err)
		}
		for _, r := range result {
			counts[keyOf(r["parent_key"])] = r["count"]
		}
	}
	for _, row := range rows {
		if n, ok := counts[keyOf(row["id"])]; ok {
			row[rel.Name] = []dataservice.Row{{"count": n}}
		} else {
			row[rel.Name] = []dataservice.Row{}
		}
	}
	return nil
}

// project reduces rows to the requested columns plus expanded relations.
func project(rows []dataservice.Row, columns []string, rels []dataservice.Relation) []dataservice.Row {
	if rows == nil {
		return []dataservice.Row{}
	}
	for i, row := range rows {
		rows[i] = projectRow(row, columns, rels)
	}
	return rows
}

func projectRow(row dataservice.Row, columns []string, rels []dataservice.Relation) dataservice.Row {
	if isWildcard(columns) {
		return row
	}
	out := make(dataservice.Row, len(columns)+len(rels))
	for _, c := range columns {
		out[c] = row[c]
	}
	for _, rel := range rels {
		out[rel.Name] = row[rel.Name]
	}
	return out
}

func distinct(rows []dataservice.Row, column string) []any {
	seen := make(map[string]bool)
	var out []any
	for _, row := range rows {
		v := row[column]
		if v == nil {
			continue
		}
		k := keyOf(v)
		if !seen[k] {
			seen[k] = true
			out = append(out, v)
		}
	}
	return out
}

func keyOf(v any) string {
	return fmt.Sprint(v)
}

func chunks(values []any, size int) [][]any {
	var out [][]any
	for len(values) > size {
		out = append(out, values[:size])
		values = values[size:]
	}
	if len(values) > 0 {
		out = append(out, values)
	}
	return out
}
