// Package dataservice describes the relational data service the dashboard
// reads from and writes to, together with its object storage.
package dataservice

import (
	"context"
	"io"
)

// Row is a single record keyed by column name. Expanded relations are stored
// under the relation name as a Row (to-one), []Row (to-many and count) or nil.
type Row map[string]any

// RelationKind selects how a relation is resolved against its parent rows.
type RelationKind int

const (
	// ToOne follows a foreign key on the parent row to the target's id.
	ToOne RelationKind = iota
	// ToMany collects target rows whose Key column references the parent id.
	ToMany
	// Count aggregates target rows whose Key column references the parent id.
	Count
)

func (k RelationKind) String() string {
	switch k {
	case ToOne:
		return "to_one"
	case ToMany:
		return "to_many"
	case Count:
		return "count"
	default:
		return "unknown"
	}
}

// Relation declares one relation to expand while selecting.
type Relation struct {
	Name      string
	Kind      RelationKind
	Entity    string
	Key       string
	Columns   []string
	Relations []Relation
	Order     *Order
}

// Op is a filter comparison operator.
type Op string

const (
	OpEq     Op = "eq"
	OpNeq    Op = "neq"
	OpGt     Op = "gt"
	OpGte    Op = "gte"
	OpLt     Op = "lt"
	OpLte    Op = "lte"
	OpIn     Op = "in"
	OpIsNull Op = "is_null"
)

// Filter restricts the selected rows. For OpIn, Value must be a []any.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Eq and the helpers below build filters.
func Eq(column string, value any) Filter  { return Filter{Column: column, Op: OpEq, Value: value} }
func Gte(column string, value any) Filter { return Filter{Column: column, Op: OpGte, Value: value} }
func Lt(column string, value any) Filter  { return Filter{Column: column, Op: OpLt, Value: value} }
func In(column string, values ...any) Filter {
	return Filter{Column: column, Op: OpIn, Value: values}
}

// Order sorts selected rows by one column.
type Order struct {
	Column    string
	Ascending bool
}

// Asc returns an ascending order on column.
func Asc(column string) *Order { return &Order{Column: column, Ascending: true} }

// Desc returns a descending order on column.
func Desc(column string) *Order { return &Order{Column: column} }

// Query is a filtered select with relation expansion.
type Query struct {
	Entity    string
	Columns   []string
	Relations []Relation
	Filters   []Filter
	Order     *Order
	Limit     int
}

// Service is the table-like data API.
type Service interface {
	Select(ctx context.Context, q Query) ([]Row, error)
	Insert(ctx context.Context, entity string, record Row) (Row, error)
	Update(ctx context.Context, entity, id string, patch Row) error
}

// Transactor runs fn against a Service bound to a single transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(tx Service) error) error
}

// Upserter inserts a record or, when it conflicts on the conflict column,
// overwrites the record's other columns.
type Upserter interface {
	Upsert(ctx context.Context, entity, conflict string, record Row) error
}

// Storage is the object store for uploaded files.
type Storage interface {
	Upload(ctx context.Context, bucket, path string, body io.Reader) error
	PublicURL(bucket, path string) string
}

// InTransaction runs fn inside a transaction when svc supports one, and
// directly against svc otherwise.
func InTransaction(ctx context.Context, svc Service, fn func(tx Service) error) error {
	if t, ok := svc.(Transactor); ok {
		return t.WithTransaction(ctx, fn)
	}
	return fn(svc)
}
