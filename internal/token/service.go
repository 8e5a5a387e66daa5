package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/OsmanovRuslan/EcoSharing-sub000/internal/credential/entity"
	"github.com/OsmanovRuslan/EcoSharing-sub000/pkg/utilities"
)

// RefreshStore abstracts the refresh-token rows.
type RefreshStore interface {
	Insert(ctx context.Context, rt *RefreshToken) error
	FindByToken(ctx context.Context, token string) (*RefreshToken, error)
	DeleteByUserID(ctx context.Context, userID int64) error
	DeleteByToken(ctx context.Context, token string) error
}

// CredentialGetter is the slice of the credential repo the rotation
// service needs.
type CredentialGetter interface {
	GetByUserID(ctx context.Context, userID int64) (*entity.Credential, error)
}

// RotationService owns the refresh-token lifecycle: issue, expiry-on-use,
// rotation and revocation. It enforces the one-active-token-per-user rule
// by deleting before inserting.
type RotationService struct {
	mgr    *Manager
	store  RefreshStore
	creds  CredentialGetter
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewRotationService(mgr *Manager, store RefreshStore, creds CredentialGetter, logger *zap.SugaredLogger) *RotationService {
	return &RotationService{mgr: mgr, store: store, creds: creds, logger: logger, now: time.Now}
}

// Create issues and persists a fresh refresh token for the user. Existing
// tokens for the user are deleted first; the delete lands before the insert
// so the unique constraint on token cannot collide with a leftover row.
func (s *RotationService) Create(ctx context.Context, userID int64, username string) (*RefreshToken, error) {
	if _, err := s.creds.GetByUserID(ctx, userID); err != nil {
		return nil, fmt.Errorf("load credential %d: %w", userID, err)
	}
	if err := s.store.DeleteByUserID(ctx, userID); err != nil {
		return nil, fmt.Errorf("revoke previous tokens: %w", err)
	}
	signed, err := s.mgr.CreateRefreshToken(userID, username)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	rt := &RefreshToken{
		ID:        utilities.NewKSUID(),
		UserID:    userID,
		Token:     signed,
		ExpiresAt: s.now().Add(s.mgr.RefreshTTL()),
	}
	if err := s.store.Insert(ctx, rt); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}
	return rt, nil
}

// VerifyExpiration returns the token unchanged while it is still live.
// An expired token is deleted on the spot and reported as ErrTokenExpired,
// so a retry with the same string surfaces ErrTokenNotFound.
func (s *RotationService) VerifyExpiration(ctx context.Context, rt *RefreshToken) (*RefreshToken, error) {
	if rt.ExpiresAt.After(s.now()) {
		return rt, nil
	}
	if err := s.store.DeleteByToken(ctx, rt.Token); err != nil {
		s.logger.Warnw("failed to delete expired refresh token", "user_id", rt.UserID, "err", err)
	}
	return nil, fmt.Errorf("%w: %s", ErrTokenExpired, tokenPrefix(rt.Token))
}

// FindByToken resolves a stored refresh token or ErrTokenNotFound.
func (s *RotationService) FindByToken(ctx context.Context, tokenString string) (*RefreshToken, error) {
	rt, err := s.store.FindByToken(ctx, tokenString)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return rt, nil
}

// DeleteByUserID revokes every refresh token the user holds (logout).
func (s *RotationService) DeleteByUserID(ctx context.Context, userID int64) error {
	return s.store.DeleteByUserID(ctx, userID)
}

// DeleteByToken revokes a single refresh token.
func (s *RotationService) DeleteByToken(ctx context.Context, tokenString string) error {
	return s.store.DeleteByToken(ctx, tokenString)
}

// tokenPrefix keeps log and error output from leaking whole tokens.
func tokenPrefix(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:12] + "..."
}
