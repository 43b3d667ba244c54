package errors

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapDBError maps database errors to AppError instances:
//   - pgx.ErrNoRows → NotFound
//   - unique violations → Conflict
//   - insufficient privilege → Forbidden
//   - missing tables/columns and connection failures → Unavailable
//   - context deadline/cancel → Timeout/Canceled
//
// Unrecognized errors are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, ErrCodeTimeout, "database request timed out")
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(err, ErrCodeCanceled, "database request was canceled")
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return Wrap(err, ErrCodeNotFound, "resource not found")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return Wrap(err, ErrCodeUnavailable, "database is unreachable")
	}

	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch {
	case pgErr.Code == pgerrcode.UniqueViolation:
		return &AppError{
			Code:    ErrCodeConflict,
			Message: "this value already exists",
			Field:   pgErr.ColumnName,
			Cause:   pgErr,
		}
	case pgErr.Code == pgerrcode.InsufficientPrivilege:
		return Wrap(pgErr, ErrCodeForbidden, "not permitted to read this data")
	case pgErr.Code == pgerrcode.UndefinedTable, pgErr.Code == pgerrcode.UndefinedColumn:
		return Wrapf(pgErr, ErrCodeUnavailable, "backend schema is missing %s", undefinedObject(pgErr))
	case pgerrcode.IsConnectionException(pgErr.Code):
		return Wrap(pgErr, ErrCodeUnavailable, "database connection failed")
	case pgErr.Code == pgerrcode.InvalidTextRepresentation:
		// Malformed uuid literals surface here.
		return Wrap(pgErr, ErrCodeValidation, "invalid identifier")
	default:
		return Wrap(pgErr, ErrCodeInternal, "a database error occurred")
	}
}

func undefinedObject(pgErr *pgconn.PgError) string {
	switch {
	case pgErr.TableName != "":
		return "table " + pgErr.TableName
	case pgErr.ColumnName != "":
		return "column " + pgErr.ColumnName
	default:
		return "an object"
	}
}
