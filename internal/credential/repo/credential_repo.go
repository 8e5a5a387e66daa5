package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/OsmanovRuslan/EcoSharing-sub000/internal/credential/entity"
)

// CredentialRepo provides data access for the credentials table using sqlx.
type CredentialRepo struct {
	db *sqlx.DB
}

func NewCredentialRepo(db *sqlx.DB) *CredentialRepo { return &CredentialRepo{db: db} }

// EnsureTable creates the credentials table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
// The partial unique index keeps telegram_id unique across bound credentials
// while allowing any number of unbound rows.
func (r *CredentialRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS credentials (
  user_id BIGINT PRIMARY KEY,
  password_hash TEXT NOT NULL,
  telegram_id BIGINT,
  is_active BOOLEAN NOT NULL DEFAULT true,
  roles TEXT NOT NULL DEFAULT 'ROLE_USER',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_credentials_telegram_id
  ON credentials(telegram_id) WHERE telegram_id IS NOT NULL;
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new credential row.
func (r *CredentialRepo) Create(ctx context.Context, c *entity.Credential) error {
	const q = `INSERT INTO credentials (user_id, password_hash, telegram_id, is_active, roles)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, q, c.UserID, c.PasswordHash, c.TelegramID, c.IsActive, c.RolesCSV)
	return err
}

// GetByUserID fetches a credential row or sql.ErrNoRows.
func (r *CredentialRepo) GetByUserID(ctx context.Context, userID int64) (*entity.Credential, error) {
	const q = `SELECT user_id, password_hash, telegram_id, is_active, roles, created_at, updated_at
		FROM credentials WHERE user_id=$1`
	var row entity.Credential
	if err := r.db.GetContext(ctx, &row, q, userID); err != nil {
		return nil, err
	}
	return &row, nil
}

// GetByTelegramID fetches the credential bound to a Telegram account or sql.ErrNoRows.
func (r *CredentialRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*entity.Credential, error) {
	const q = `SELECT user_id, password_hash, telegram_id, is_active, roles, created_at, updated_at
		FROM credentials WHERE telegram_id=$1`
	var row entity.Credential
	if err := r.db.GetContext(ctx, &row, q, telegramID); err != nil {
		return nil, err
	}
	return &row, nil
}

// BindTelegramID attaches a Telegram account to the credential.
func (r *CredentialRepo) BindTelegramID(ctx context.Context, userID, telegramID int64) error {
	const q = `UPDATE credentials SET telegram_id=$2, updated_at=NOW() WHERE user_id=$1`
	_, err := r.db.ExecContext(ctx, q, userID, telegramID)
	return err
}

// UnbindTelegramID clears the Telegram linkage.
func (r *CredentialRepo) UnbindTelegramID(ctx context.Context, userID int64) error {
	const q = `UPDATE credentials SET telegram_id=NULL, updated_at=NOW() WHERE user_id=$1`
	_, err := r.db.ExecContext(ctx, q, userID)
	return err
}

// Delete removes a credential row. Used to compensate a failed remote
// profile creation during registration.
func (r *CredentialRepo) Delete(ctx context.Context, userID int64) error {
	const q = `DELETE FROM credentials WHERE user_id=$1`
	_, err := r.db.ExecContext(ctx, q, userID)
	return err
}

// TelegramIDInUse reports whether the Telegram account is already bound to
// any credential.
func (r *CredentialRepo) TelegramIDInUse(ctx context.Context, telegramID int64) (bool, error) {
	const q = `SELECT user_id FROM credentials WHERE telegram_id=$1`
	var id int64
	err := r.db.GetContext(ctx, &id, q, telegramID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
