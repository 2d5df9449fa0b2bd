package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"committeeDashboard/internal/dataservice"
)

// classify maps driver errors onto dataservice error kinds.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var dsErr *dataservice.Error
	if errors.As(err, &dsErr) {
		return err
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dataservice.Wrap(dataservice.KindTimeout, op, err)
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, pgx.ErrNoRows):
		return dataservice.Wrap(dataservice.KindNotFound, op, err)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrConstraint:
			return dataservice.Wrap(dataservice.KindConstraint, op, err)
		case sqlite3.ErrPerm, sqlite3.ErrAuth, sqlite3.ErrReadonly:
			return dataservice.Wrap(dataservice.KindPermission, op, err)
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return dataservice.Wrap(dataservice.KindTimeout, op, err)
		case sqlite3.ErrError:
			return dataservice.Wrap(dataservice.KindInvalid, op, err)
		}
		return dataservice.Wrap(dataservice.KindConnection, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"):
			return dataservice.Wrap(dataservice.KindConstraint, op, err)
		case strings.HasPrefix(pgErr.Code, "42501"):
			return dataservice.Wrap(dataservice.KindPermission, op, err)
		case strings.HasPrefix(pgErr.Code, "42"), strings.HasPrefix(pgErr.Code, "22"):
			return dataservice.Wrap(dataservice.KindInvalid, op, err)
		}
	}

	return dataservice.Wrap(dataservice.KindConnection, op, err)
}
