// Package auth sequences the token manager, refresh rotation, Telegram
// verification and the remote profile service into the login, register,
// refresh and logout flows. It is the only caller of those primitives and
// exposes typed results and sentinel errors, never their internals.
package auth

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/OsmanovRuslan/EcoSharing-sub000/internal/credential/entity"
	"github.com/OsmanovRuslan/EcoSharing-sub000/internal/profile"
	"github.com/OsmanovRuslan/EcoSharing-sub000/internal/telegram"
	"github.com/OsmanovRuslan/EcoSharing-sub000/internal/token"
)

// CredentialStore abstracts the credentials table for the orchestrator.
type CredentialStore interface {
	Create(ctx context.Context, c *entity.Credential) error
	GetByUserID(ctx context.Context, userID int64) (*entity.Credential, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*entity.Credential, error)
	BindTelegramID(ctx context.Context, userID, telegramID int64) error
	UnbindTelegramID(ctx context.Context, userID int64) error
	Delete(ctx context.Context, userID int64) error
	TelegramIDInUse(ctx context.Context, telegramID int64) (bool, error)
}

// PasswordHasher defines the minimal hashing interface (abstract so the
// algorithm can be swapped without touching the flows).
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// IDAllocator hands out new user IDs.
type IDAllocator interface {
	Next() int64
}

// TokenResult is the payload returned to the HTTP-facing layer after any
// flow that issues tokens.
type TokenResult struct {
	AccessToken      string        `json:"accessToken"`
	RefreshToken     string        `json:"refreshToken"`
	UserID           int64         `json:"userId"`
	Roles            []entity.Role `json:"roles"`
	AccessTTLMillis  int64         `json:"accessTtlMs"`
	RefreshTTLMillis int64         `json:"refreshTtlMs"`
}

// TelegramAuthResult either carries a token payload or, when no credential
// is bound to the Telegram account yet, the parsed user fields signaling
// that a bind or registration is required. Exactly one field is set.
type TelegramAuthResult struct {
	Tokens  *TokenResult         `json:"tokens,omitempty"`
	Pending *telegram.WebAppUser `json:"pending,omitempty"`
}

// RegisterInput carries the registration attributes.
type RegisterInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type Config struct {
	// AdminBootstrapSecret enables the legacy elevated-role grant at
	// registration when non-empty. See bootstrapRoles.
	AdminBootstrapSecret string
}

// ConfigFromEnv reads orchestrator config from env vars.
func ConfigFromEnv() Config {
	return Config{AdminBootstrapSecret: os.Getenv("ADMIN_BOOTSTRAP_SECRET")}
}

// Service is the authentication orchestrator.
type Service struct {
	creds    CredentialStore
	tokens   *token.RotationService
	mgr      *token.Manager
	verifier *telegram.Verifier
	profiles profile.Client
	hasher   PasswordHasher
	ids      IDAllocator
	logger   *zap.SugaredLogger
	cfg      Config
}

func NewService(
	creds CredentialStore,
	tokens *token.RotationService,
	mgr *token.Manager,
	verifier *telegram.Verifier,
	profiles profile.Client,
	hasher PasswordHasher,
	ids IDAllocator,
	logger *zap.SugaredLogger,
	cfg Config,
) *Service {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	return &Service{
		creds:    creds,
		tokens:   tokens,
		mgr:      mgr,
		verifier: verifier,
		profiles: profiles,
		hasher:   hasher,
		ids:      ids,
		logger:   logger,
		cfg:      cfg,
	}
}

// Login authenticates by identifier + password and issues a token pair.
func (s *Service) Login(ctx context.Context, identifier, password string) (*TokenResult, error) {
	cred, prof, err := s.authenticate(ctx, identifier, password)
	if err != nil {
		return nil, err
	}
	return s.issuePair(ctx, cred.UserID, prof.Username, cred.Roles())
}

// authenticate resolves the remote profile and local credential and checks
// the password and activity flags. Lookup misses and wrong passwords are
// indistinguishable to the caller.
func (s *Service) authenticate(ctx context.Context, identifier, password string) (*entity.Credential, *profile.Profile, error) {
	prof, err := s.profiles.FindByLogin(ctx, identifier)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, s.failClosed("login profile lookup", err)
	}
	cred, err := s.creds.GetByUserID(ctx, prof.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, s.failClosed("login credential lookup", err)
	}
	if !s.hasher.Verify(cred.PasswordHash, password) {
		return nil, nil, ErrInvalidCredentials
	}
	if !cred.IsActive || !prof.IsActive {
		return nil, nil, ErrUserDeactivated
	}
	return cred, prof, nil
}

// Register creates a local credential and a remote profile in lockstep and
// issues a token pair.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*TokenResult, error) {
	return s.register(ctx, input, nil)
}

// RegisterWithTelegram is Register plus a pre-check that the Telegram
// account is unused; the binding is persisted on the new credential. The
// pre-check happens before any write.
func (s *Service) RegisterWithTelegram(ctx context.Context, input RegisterInput, telegramID int64) (*TokenResult, error) {
	inUse, err := s.creds.TelegramIDInUse(ctx, telegramID)
	if err != nil {
		return nil, s.failClosed("telegram binding pre-check", err)
	}
	if inUse {
		return nil, ErrTelegramIDBound
	}
	return s.register(ctx, input, &telegramID)
}

func (s *Service) register(ctx context.Context, input RegisterInput, telegramID *int64) (*TokenResult, error) {
	avail, err := s.profiles.CheckAvailability(ctx, input.Username, input.Email)
	if err != nil {
		return nil, s.failClosed("availability check", err)
	}
	if !avail.UsernameAvailable {
		return nil, ErrUsernameExists
	}
	if !avail.EmailAvailable {
		return nil, ErrEmailExists
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, s.failClosed("password hashing", err)
	}
	userID := s.ids.Next()
	roles := s.bootstrapRoles(input.Password)
	cred := &entity.Credential{
		UserID:       userID,
		PasswordHash: hash,
		TelegramID:   telegramID,
		IsActive:     true,
		RolesCSV:     entity.EncodeRoles(roles),
	}
	if err := s.creds.Create(ctx, cred); err != nil {
		return nil, s.failClosed("credential insert", err)
	}

	// Local write then remote write is not a distributed transaction. A
	// remote failure is compensated by deleting the local credential; a
	// crash between remote success and returning leaves an orphan profile
	// the admin tooling has to reconcile.
	err = s.profiles.CreateProfile(ctx, profile.CreateProfileInput{
		UserID:    userID,
		Username:  input.Username,
		Email:     input.Email,
		FirstName: input.FirstName,
		LastName:  input.LastName,
	})
	if err != nil {
		if delErr := s.creds.Delete(ctx, userID); delErr != nil {
			s.logger.Errorw("failed to compensate credential after remote create failure",
				"user_id", userID, "err", delErr)
		}
		s.logger.Warnw("remote profile creation failed", "user_id", userID, "err", err)
		return nil, ErrRegistration
	}

	return s.issuePair(ctx, userID, input.Username, roles)
}

// Refresh exchanges a live refresh token for a new pair, rotating the
// refresh token at the point of use.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenResult, error) {
	rt, err := s.tokens.FindByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, token.ErrTokenNotFound) {
			return nil, err
		}
		return nil, s.failClosed("refresh token lookup", err)
	}
	if rt, err = s.tokens.VerifyExpiration(ctx, rt); err != nil {
		return nil, err
	}

	cred, err := s.creds.GetByUserID(ctx, rt.UserID)
	if err != nil {
		return nil, s.failClosed("refresh credential lookup", err)
	}
	// The remote activity flag must stay in sync with the local one; a
	// deactivation on either side revokes the token right here.
	prof, err := s.profiles.FindByID(ctx, rt.UserID)
	if err != nil && !errors.Is(err, profile.ErrNotFound) {
		return nil, s.failClosed("refresh profile recheck", err)
	}
	if err != nil || !cred.IsActive || !prof.IsActive {
		if delErr := s.tokens.DeleteByToken(ctx, rt.Token); delErr != nil {
			s.logger.Warnw("failed to revoke token of deactivated user", "user_id", rt.UserID, "err", delErr)
		}
		return nil, ErrUserDeactivated
	}

	return s.issuePair(ctx, rt.UserID, prof.Username, cred.Roles())
}

// Logout revokes every refresh token the user holds and best-effort
// unbinds the Telegram linkage. Unbind failures are logged, never fatal.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	if err := s.tokens.DeleteByUserID(ctx, userID); err != nil {
		return s.failClosed("logout token revocation", err)
	}
	cred, err := s.creds.GetByUserID(ctx, userID)
	if err != nil || cred.TelegramID == nil {
		return nil
	}
	if err := s.creds.UnbindTelegramID(ctx, userID); err != nil {
		s.logger.Warnw("telegram unbind failed on logout", "user_id", userID, "err", err)
		return nil
	}
	if err := s.profiles.UnbindTelegram(ctx, userID); err != nil {
		s.logger.Warnw("remote telegram unbind failed on logout", "user_id", userID, "err", err)
	}
	return nil
}

// TelegramAuthenticate verifies a WebApp initData payload. A bound and
// active credential gets a token pair; an unknown Telegram account gets a
// pending result carrying the parsed user fields.
func (s *Service) TelegramAuthenticate(ctx context.Context, initData string) (*TelegramAuthResult, error) {
	user, _, err := s.verifier.Verify(initData)
	if err != nil {
		return nil, err
	}
	cred, err := s.creds.GetByTelegramID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &TelegramAuthResult{Pending: user}, nil
		}
		return nil, s.failClosed("telegram credential lookup", err)
	}
	prof, err := s.profiles.FindByID(ctx, cred.UserID)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return nil, ErrUserDeactivated
		}
		return nil, s.failClosed("telegram profile lookup", err)
	}
	if !cred.IsActive || !prof.IsActive {
		return nil, ErrUserDeactivated
	}
	pair, err := s.issuePair(ctx, cred.UserID, prof.Username, cred.Roles())
	if err != nil {
		return nil, err
	}
	return &TelegramAuthResult{Tokens: pair}, nil
}

// LoginWithTelegram is a password login that additionally binds the
// Telegram account, rejecting accounts already bound elsewhere.
func (s *Service) LoginWithTelegram(ctx context.Context, identifier, password string, telegramID int64) (*TokenResult, error) {
	cred, prof, err := s.authenticate(ctx, identifier, password)
	if err != nil {
		return nil, err
	}
	existing, err := s.creds.GetByTelegramID(ctx, telegramID)
	switch {
	case err == nil && existing.UserID != cred.UserID:
		return nil, ErrTelegramIDBound
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, s.failClosed("telegram binding lookup", err)
	}
	if cred.TelegramID == nil || *cred.TelegramID != telegramID {
		if err := s.creds.BindTelegramID(ctx, cred.UserID, telegramID); err != nil {
			return nil, s.failClosed("telegram bind", err)
		}
	}
	return s.issuePair(ctx, cred.UserID, prof.Username, cred.Roles())
}

func (s *Service) issuePair(ctx context.Context, userID int64, username string, roles []entity.Role) (*TokenResult, error) {
	access, err := s.mgr.CreateAccessToken(username, userID, roles)
	if err != nil {
		return nil, s.failClosed("access token issue", err)
	}
	rt, err := s.tokens.Create(ctx, userID, username)
	if err != nil {
		return nil, s.failClosed("refresh token issue", err)
	}
	return &TokenResult{
		AccessToken:      access,
		RefreshToken:     rt.Token,
		UserID:           userID,
		Roles:            roles,
		AccessTTLMillis:  s.mgr.AccessTTL().Milliseconds(),
		RefreshTTLMillis: s.mgr.RefreshTTL().Milliseconds(),
	}, nil
}

// bootstrapRoles grants ADMIN and MODERATOR when the chosen password
// equals the configured bootstrap secret. Compatibility mechanism carried
// over from the platform's first deployment; every elevated grant funnels
// through this one function so it stays auditable, and an unset secret
// disables it entirely.
func (s *Service) bootstrapRoles(password string) []entity.Role {
	roles := []entity.Role{entity.RoleUser}
	if s.cfg.AdminBootstrapSecret == "" {
		return roles
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.AdminBootstrapSecret)) == 1 {
		roles = append(roles, entity.RoleAdmin, entity.RoleModerator)
	}
	return roles
}

// failClosed logs the underlying cause and collapses it into the opaque
// process error. Ambiguous upstream state never authenticates anyone.
func (s *Service) failClosed(op string, err error) error {
	s.logger.Errorw("authentication process failure", "op", op, "err", err)
	return fmt.Errorf("%w: %s", ErrAuthenticationProcess, op)
}
