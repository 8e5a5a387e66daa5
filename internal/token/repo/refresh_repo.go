package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/OsmanovRuslan/EcoSharing-sub000/internal/token"
)

// RefreshRepo stores refresh-token rows using sqlx.
type RefreshRepo struct {
	db *sqlx.DB
}

func NewRefreshRepo(db *sqlx.DB) *RefreshRepo { return &RefreshRepo{db: db} }

// EnsureTable creates the refresh_tokens table if not exists (idempotent).
func (r *RefreshRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS refresh_tokens (
  id TEXT PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES credentials(user_id) ON DELETE CASCADE,
  token TEXT NOT NULL UNIQUE,
  expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON refresh_tokens(user_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

func (r *RefreshRepo) Insert(ctx context.Context, rt *token.RefreshToken) error {
	const q = `INSERT INTO refresh_tokens (id, user_id, token, expires_at) VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, q, rt.ID, rt.UserID, rt.Token, rt.ExpiresAt)
	return err
}

// FindByToken returns the stored row or sql.ErrNoRows.
func (r *RefreshRepo) FindByToken(ctx context.Context, tokenString string) (*token.RefreshToken, error) {
	const q = `SELECT id, user_id, token, expires_at FROM refresh_tokens WHERE token=$1`
	var row token.RefreshToken
	if err := r.db.GetContext(ctx, &row, q, tokenString); err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *RefreshRepo) DeleteByUserID(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id=$1`, userID)
	return err
}

func (r *RefreshRepo) DeleteByToken(ctx context.Context, tokenString string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token=$1`, tokenString)
	return err
}
