package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5"

	domainauth "github.com/target/learnhub/internal/domain/auth"
	apperrors "github.com/target/learnhub/internal/errors"
	"github.com/target/learnhub/internal/ports"
)

// ProfileRepo reads rows of the users table.
type ProfileRepo struct {
	DB      *sql.DB
	Timeout time.Duration
}

var _ ports.ProfileLookup = (*ProfileRepo)(nil)

// NewProfileRepo creates a ProfileRepo.
func NewProfileRepo(db *sql.DB, timeout time.Duration) *ProfileRepo {
	return &ProfileRepo{DB: db, Timeout: timeout}
}

const selectProfile = `
	SELECT id::text AS id,
	       email,
	       COALESCE(full_name, '') AS full_name,
	       COALESCE(role, '') AS role,
	       COALESCE(avatar_url, '') AS avatar_url,
	       created_at,
	       updated_at
	FROM users
	WHERE id = $1`

// GetUserProfile implements ports.ProfileLookup. A missing row is NotFound.
func (r *ProfileRepo) GetUserProfile(ctx context.Context, userID string) (domainauth.Profile, error) {
	if userID == "" {
		return domainauth.Profile{}, apperrors.ValidationField("id", "user id is required")
	}
	var out domainauth.Profile
	err := withPgxConn(ctx, r.DB, r.Timeout, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, selectProfile, userID)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.Profile])
		return err
	})
	if err != nil {
		return domainauth.Profile{}, err
	}
	return out, nil
}
