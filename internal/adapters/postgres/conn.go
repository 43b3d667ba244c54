// Package postgres reads profiles and LMS rows from the hosted backend's
// PostgreSQL database through database/sql with the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	apperrors "github.com/target/learnhub/internal/errors"
)

const defaultQueryTimeout = 5 * time.Second

// withPgxConn acquires a *pgx.Conn via the stdlib bridge and executes fn with
// it. Errors are mapped through MapDBError.
func withPgxConn(ctx context.Context, db *sql.DB, timeout time.Duration, fn func(*pgx.Conn) error) error {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := db.Conn(ctx)
	if err != nil {
		return apperrors.MapDBError(fmt.Errorf("get conn from pool: %w", err))
	}
	defer func() {
		// best-effort: the pool discards broken connections itself
		_ = conn.Close()
	}()

	err = conn.Raw(func(dc any) error {
		std, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		return fn(std.Conn())
	})
	return apperrors.MapDBError(err)
}

// whereClause accumulates AND-ed predicates with positional arguments.
type whereClause struct {
	preds []string
	args  []any
}

func (w *whereClause) add(pred string, arg any) {
	w.args = append(w.args, arg)
	w.preds = append(w.preds, fmt.Sprintf(pred, len(w.args)))
}

func (w *whereClause) String() string {
	if len(w.preds) == 0 {
		return ""
	}
	out := " WHERE " + w.preds[0]
	for _, p := range w.preds[1:] {
		out += " AND " + p
	}
	return out
}
