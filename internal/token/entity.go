package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RefreshToken is a persisted refresh credential. At most one non-deleted
// row exists per user at any instant; rotation enforces this, backed by the
// unique constraint on token.
type RefreshToken struct {
	ID        string    `db:"id"`
	UserID    int64     `db:"user_id"`
	Token     string    `db:"token"`
	ExpiresAt time.Time `db:"expires_at"`
}

// AccessClaims is the claim set embedded in signed tokens. UID is carried
// as a string so snowflake IDs survive JSON number precision. Auth holds
// comma-separated role names for wire compatibility with issued tokens.
type AccessClaims struct {
	UID  string `json:"uid"`
	Auth string `json:"auth,omitempty"`
	jwt.RegisteredClaims
}
