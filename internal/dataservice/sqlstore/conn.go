package sqlstore

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"committeeDashboard/internal/dataservice"
)

// conn is the minimal surface the store needs from a driver.
type conn interface {
	query(ctx context.Context, stmt string, args []any) ([]dataservice.Row, error)
	exec(ctx context.Context, stmt string, args []any) (int64, error)
}

type txConn interface {
	conn
	commit(ctx context.Context) error
	rollback(ctx context.Context) error
}

// sqlQuerier is satisfied by *sql.DB and *sql.Tx.
type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type sqlConn struct {
	q sqlQuerier
}

func (c sqlConn) query(ctx context.Context, stmt string, args []any) ([]dataservice.Row, error) {
	rows, err := c.q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []dataservice.Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		result = append(result, toRow(columns, values))
	}
	return result, rows.Err()
}

func (c sqlConn) exec(ctx context.Context, stmt string, args []any) (int64, error) {
	res, err := c.q.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type sqlTx struct {
	sqlConn
	tx *sql.Tx
}

func (t sqlTx) commit(context.Context) error   { return t.tx.Commit() }
func (t sqlTx) rollback(context.Context) error { return t.tx.Rollback() }

// pgxQuerier is satisfied by *pgxpool.Pool and pgx.Tx.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type pgxConn struct {
	q pgxQuerier
}

func (c pgxConn) query(ctx context.Context, stmt string, args []any) ([]dataservice.Row, error) {
	rows, err := c.q.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	var result []dataservice.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		result = append(result, toRow(columns, values))
	}
	return result, rows.Err()
}

func (c pgxConn) exec(ctx context.Context, stmt string, args []any) (int64, error) {
	tag, err := c.q.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type pgxTx struct {
	pgxConn
	tx pgx.Tx
}

func (t pgxTx) commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t pgxTx) rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func toRow(columns []string, values []any) dataservice.Row {
	row := make(dataservice.Row, len(columns))
	for i, col := range columns {
		val := values[i]
		if b, ok := val.([]byte); ok {
			val = string(b)
		}
		row[col] = val
	}
	return row
}
