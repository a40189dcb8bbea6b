package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/calmcp/calmcp/internal/credentials"
)

// CredentialRepository implements credentials.Store on top of the
// user_credentials table. Upsert is a single INSERT ... ON CONFLICT
// statement so concurrent writers for the same user never race a
// read-modify-write cycle.
type CredentialRepository struct {
	db *sql.DB
}

func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Ping reports whether the backing database is reachable.
func (r *CredentialRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", credentials.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *CredentialRepository) Get(ctx context.Context, userID string) (credentials.Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, access_token, refresh_token, expires_at, scopes, updated_at
		FROM user_credentials
		WHERE user_id = $1`, userID)

	var rec credentials.Record
	var scopes string
	err := row.Scan(&rec.UserID, &rec.AccessToken, &rec.RefreshToken, &rec.ExpiresAt, &scopes, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return credentials.Record{}, fmt.Errorf("%w: user %q", credentials.ErrNotFound, userID)
	}
	if err != nil {
		return credentials.Record{}, fmt.Errorf("%w: get credentials: %w", credentials.ErrStoreUnavailable, err)
	}
	rec.Scopes = splitScopes(scopes)
	return rec, nil
}

func (r *CredentialRepository) Upsert(ctx context.Context, rec credentials.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_credentials (user_id, access_token, refresh_token, expires_at, scopes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			access_token  = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at    = EXCLUDED.expires_at,
			scopes        = EXCLUDED.scopes,
			updated_at    = EXCLUDED.updated_at`,
		rec.UserID, rec.AccessToken, rec.RefreshToken, rec.ExpiresAt, joinScopes(rec.Scopes), rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: upsert credentials: %w", credentials.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *CredentialRepository) Delete(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_credentials WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("%w: delete credentials: %w", credentials.ErrStoreUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: delete credentials: %w", credentials.ErrStoreUnavailable, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: user %q", credentials.ErrNotFound, userID)
	}
	return nil
}

func (r *CredentialRepository) List(ctx context.Context) ([]credentials.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, access_token, refresh_token, expires_at, scopes, updated_at
		FROM user_credentials
		ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list credentials: %w", credentials.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []credentials.Record
	for rows.Next() {
		var rec credentials.Record
		var scopes string
		if err := rows.Scan(&rec.UserID, &rec.AccessToken, &rec.RefreshToken, &rec.ExpiresAt, &scopes, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan credentials: %w", credentials.ErrStoreUnavailable, err)
		}
		rec.Scopes = splitScopes(scopes)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list credentials: %w", credentials.ErrStoreUnavailable, err)
	}
	return out, nil
}

func joinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

func splitScopes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}
