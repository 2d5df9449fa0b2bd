// Package viewmodel turns relational queries into flat, render-ready view
// records and keeps per-view fetch state consistent.
package viewmodel

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"committeeDashboard/internal/dataservice"
)

// Expansion is a relation to expand on every record. Lift applies to
// to-many relations over join tables: each joined row is replaced by its
// nested row under Lift (assignees[].profile becomes a list of profiles).
type Expansion struct {
	dataservice.Relation
	Lift string
}

// Spec declares what a view reads.
type Spec struct {
	Name       string
	Entity     string
	Columns    []string
	Expansions []Expansion
	Filters    []dataservice.Filter
	Order      *dataservice.Order
	Limit      int
}

// Query renders the spec as a data service query.
func (s Spec) Query() dataservice.Query {
	rels := make([]dataservice.Relation, len(s.Expansions))
	for i, e := range s.Expansions {
		rels[i] = e.Relation
	}
	return dataservice.Query{
		Entity:    s.Entity,
		Columns:   s.Columns,
		Relations: rels,
		Filters:   s.Filters,
		Order:     s.Order,
		Limit:     s.Limit,
	}
}

// Entities lists every table the spec reads, including expanded relations.
func (s Spec) Entities() []string {
	seen := map[string]bool{s.Entity: true}
	var walk func(rels []dataservice.Relation)
	walk = func(rels []dataservice.Relation) {
		for _, r := range rels {
			seen[r.Entity] = true
			walk(r.Relations)
		}
	}
	walk(s.Query().Relations)

	out := make([]string, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// CacheKey identifies the spec's result for one scope, such as a user id.
// Filter values are part of the key, so two reads with different bounds
// never share an entry.
func (s Spec) CacheKey(scope string) string {
	var b strings.Builder
	b.WriteString("qc:" + s.Entity + "|" + s.Name + "|" + scope)
	for _, f := range s.Filters {
		b.WriteString("|" + f.Column + "." + string(f.Op) + "=" + keyValue(f.Value))
	}
	return b.String()
}

func keyValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = keyValue(e)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}
