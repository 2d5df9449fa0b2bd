// Package sqlstore implements the data service on a relational database,
// either SQLite through database/sql or PostgreSQL through a pgx pool.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"committeeDashboard/internal/dataservice"
)

// Dialect selects placeholder style and DDL.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// Store is a dataservice.Service backed by SQL.
type Store struct {
	conn    conn
	dialect Dialect
	logger  *slog.Logger

	begin func(ctx context.Context) (txConn, error)
	ping  func(ctx context.Context) error
	close func()
}

var (
	_ dataservice.Service    = (*Store)(nil)
	_ dataservice.Transactor = (*Store)(nil)
	_ dataservice.Upserter   = (*Store)(nil)
)

// NewSQL wraps an open database/sql handle.
func NewSQL(db *sql.DB, dialect Dialect, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		conn:    sqlConn{q: db},
		dialect: dialect,
		logger:  logger,
		begin: func(ctx context.Context) (txConn, error) {
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return nil, err
			}
			return sqlTx{sqlConn: sqlConn{q: tx}, tx: tx}, nil
		},
		ping:  db.PingContext,
		close: func() { _ = db.Close() },
	}
}

// NewPgx wraps a pgx pool.
func NewPgx(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		conn:    pgxConn{q: pool},
		dialect: Postgres,
		logger:  logger,
		begin: func(ctx context.Context) (txConn, error) {
			tx, err := pool.Begin(ctx)
			if err != nil {
				return nil, err
			}
			return pgxTx{pgxConn: pgxConn{q: tx}, tx: tx}, nil
		},
		ping:  pool.Ping,
		close: pool.Close,
	}
}

// Dialect reports the SQL dialect in use.
func (s *Store) Dialect() Dialect { return s.dialect }

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// Select runs q and expands its relations.
func (s *Store) Select(ctx context.Context, q dataservice.Query) ([]dataservice.Row, error) {
	rows, err := s.selectRaw(ctx, q)
	if err != nil {
		return nil, err
	}
	return project(rows, q.Columns, q.Relations), nil
}

// Insert adds record to entity and returns the stored row. A uuid id is
// generated when the record has none.
func (s *Store) Insert(ctx context.Context, entity string, record dataservice.Row) (dataservice.Row, error) {
	if err := checkIdent(entity); err != nil {
		return nil, err
	}
	if len(record) == 0 {
		return nil, dataservice.Wrap(dataservice.KindInvalid, "insert into "+entity+" has no values", nil)
	}

	values := make(dataservice.Row, len(record)+1)
	for k, v := range record {
		values[k] = v
	}
	if hasIDColumn(entity) {
		if id, ok := values["id"]; !ok || id == nil || id == "" {
			values["id"] = uuid.NewString()
		}
	}

	columns := make([]string, 0, len(values))
	for col := range values {
		if err := checkIdent(col); err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	sort.Strings(columns)

	b := &builder{dialect: s.dialect}
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		placeholders[i] = b.bind(values[col])
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		entity, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	rows, err := s.conn.query(ctx, stmt, b.args)
	if err != nil {
		return nil, classify("insert into "+entity, err)
	}
	if len(rows) == 0 {
		return nil, dataservice.Wrap(dataservice.KindConnection, "insert into "+entity+" returned no row", nil)
	}
	return rows[0], nil
}

// Update applies patch to the row of entity with the given id.
func (s *Store) Update(ctx context.Context, entity, id string, patch dataservice.Row) error {
	if err := checkIdent(entity); err != nil {
		return err
	}
	if len(patch) == 0 {
		return dataservice.Wrap(dataservice.KindInvalid, "update of "+entity+" has no values", nil)
	}

	columns := make([]string, 0, len(patch))
	for col := range patch {
		if err := checkIdent(col); err != nil {
			return err
		}
		if col == "id" {
			continue
		}
		columns = append(columns, col)
	}
	sort.Strings(columns)

	b := &builder{dialect: s.dialect}
	sets := make([]string, len(columns))
	for i, col := range columns {
		sets[i] = col + " = " + b.bind(patch[col])
	}
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE id = %s", entity, strings.Join(sets, ", "), b.bind(id))

	affected, err := s.conn.exec(ctx, stmt, b.args)
	if err != nil {
		return classify("update "+entity, err)
	}
	if affected == 0 {
		return dataservice.Wrap(dataservice.KindNotFound, fmt.Sprintf("%s %s not found", entity, id), nil)
	}
	return nil
}

// Upsert inserts record, or updates the existing row whose conflict column
// matches. The id of an existing row is never changed.
func (s *Store) Upsert(ctx context.Context, entity, conflict string, record dataservice.Row) error {
	if err := checkIdent(entity); err != nil {
		return err
	}
	if err := checkIdent(conflict); err != nil {
		return err
	}
	if _, ok := record[conflict]; !ok {
		return dataservice.Wrap(dataservice.KindInvalid, "upsert into "+entity+" lacks "+conflict, nil)
	}

	values := make(dataservice.Row, len(record)+1)
	for k, v := range record {
		values[k] = v
	}
	if hasIDColumn(entity) && conflict != "id" {
		if id, ok := values["id"]; !ok || id == nil || id == "" {
			values["id"] = uuid.NewString()
		}
	}

	columns := make([]string, 0, len(values))
	for col := range values {
		if err := checkIdent(col); err != nil {
			return err
		}
		columns = append(columns, col)
	}
	sort.Strings(columns)

	b := &builder{dialect: s.dialect}
	placeholders := make([]string, len(columns))
	var sets []string
	for i, col := range columns {
		placeholders[i] = b.bind(values[col])
		if col != conflict && col != "id" {
			sets = append(sets, col+" = excluded."+col)
		}
	}
	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		entity, strings.Join(columns, ", "), strings.Join(placeholders, ", "), conflict, action)
	if _, err := s.conn.exec(ctx, stmt, b.args); err != nil {
		return classify("upsert into "+entity, err)
	}
	return nil
}

// Exec runs a raw statement. It is used for DDL and join-table deletes.
func (s *Store) Exec(ctx context.Context, stmt string, args ...any) (int64, error) {
	n, err := s.conn.exec(ctx, stmt, normalizeArgs(args))
	if err != nil {
		return 0, classify("exec", err)
	}
	return n, nil
}

// WithTransaction executes fn within a database transaction. It commits when
// fn returns nil and rolls back otherwise, including on panic.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx dataservice.Service) error) error {
	if s.begin == nil {
		// already inside a transaction
		return fn(s)
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return classify("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.rollback(ctx)
			panic(p)
		}
	}()

	txStore := &Store{conn: tx, dialect: s.dialect, logger: s.logger}
	if err := fn(txStore); err != nil {
		if rbErr := tx.rollback(ctx); rbErr != nil {
			return fmt.Errorf("failed to rollback transaction: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.commit(ctx); err != nil {
		return classify("commit transaction", err)
	}
	return nil
}

// join tables have composite keys and no id column
func hasIDColumn(entity string) bool {
	switch entity {
	case "committee_members", "meeting_attendees", "action_item_assignees", "credentials", "oauth_tokens":
		return false
	}
	return true
}
