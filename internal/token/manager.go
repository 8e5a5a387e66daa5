package token

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/OsmanovRuslan/EcoSharing-sub000/internal/credential/entity"
)

// Config holds the signing key and token lifetimes. The secret is loaded
// once at startup and injected; any service holding it can validate tokens
// without a store round-trip.
type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// ConfigFromEnv reads token config from env vars with development defaults
// for the lifetimes. JWT_SECRET has no default; NewManager rejects an
// empty secret.
func ConfigFromEnv() Config {
	cfg := Config{
		Secret:     []byte(os.Getenv("JWT_SECRET")),
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}
	if v := os.Getenv("ACCESS_TOKEN_TTL_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.AccessTTL = time.Duration(parsed) * time.Second
		}
	}
	if v := os.Getenv("REFRESH_TOKEN_TTL_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.RefreshTTL = time.Duration(parsed) * time.Second
		}
	}
	return cfg
}

// Manager issues and validates HMAC-SHA512 signed tokens. Validation is
// stateless; the tradeoff is that access tokens cannot be revoked before
// natural expiry.
type Manager struct {
	cfg Config
	now func() time.Time
}

// NewManager validates the config and returns an immutable manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token manager requires a signing secret")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid token TTL configuration")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("refresh TTL must exceed access TTL")
	}
	return &Manager{cfg: cfg, now: time.Now}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.cfg.AccessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.cfg.RefreshTTL }

// CreateAccessToken signs an access token embedding the username as
// subject, the user ID and the CSV role list.
func (m *Manager) CreateAccessToken(username string, userID int64, roles []entity.Role) (string, error) {
	now := m.now()
	claims := AccessClaims{
		UID:  strconv.FormatInt(userID, 10),
		Auth: entity.EncodeRoles(roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.AccessTTL)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(m.cfg.Secret)
}

// CreateRefreshToken signs a refresh token with the narrower claim set
// (no roles) and the longer lifetime.
func (m *Manager) CreateRefreshToken(userID int64, username string) (string, error) {
	now := m.now()
	claims := AccessClaims{
		UID: strconv.FormatInt(userID, 10),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.RefreshTTL)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(m.cfg.Secret)
}

// Validate reports whether the token's signature verifies and it has not
// expired. Any parse, signature or format problem yields false; this never
// propagates an error to authorization checks.
func (m *Manager) Validate(tokenString string) bool {
	_, err := m.parse(tokenString)
	return err == nil
}

// ParseClaims returns the verified claim set or ErrTokenMalformed.
func (m *Manager) ParseClaims(tokenString string) (*AccessClaims, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	return claims, nil
}

func (m *Manager) parse(tokenString string) (*AccessClaims, error) {
	var claims AccessClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.cfg.Secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return &claims, nil
}

// UserID extracts the user ID fail-soft: zero on any malformed token or uid.
func (m *Manager) UserID(tokenString string) int64 {
	claims, err := m.parse(tokenString)
	if err != nil {
		return 0
	}
	id, err := strconv.ParseInt(claims.UID, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Username extracts the subject fail-soft: empty on any malformed token.
func (m *Manager) Username(tokenString string) string {
	claims, err := m.parse(tokenString)
	if err != nil {
		return ""
	}
	return claims.Subject
}

// ExpiresAt extracts the expiry fail-soft: zero time on any malformed token.
func (m *Manager) ExpiresAt(tokenString string) time.Time {
	claims, err := m.parse(tokenString)
	if err != nil || claims.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.RegisteredClaims.ExpiresAt.Time
}
