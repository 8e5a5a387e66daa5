package entity

import (
	"strings"
	"time"
)

// Role is an enumerated authority tag carried in token claims and stored
// as CSV in the credentials table.
type Role string

const (
	RoleUser      Role = "ROLE_USER"
	RoleAdmin     Role = "ROLE_ADMIN"
	RoleModerator Role = "ROLE_MODERATOR"
)

// ParseRole returns the matching Role for its wire name, or false when the
// name is not a known role.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.TrimSpace(s)) {
	case RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	case RoleModerator:
		return RoleModerator, true
	}
	return "", false
}

// EncodeRoles serializes roles as a comma-separated list, the format used
// both in the credentials table and in the access-token `auth` claim.
func EncodeRoles(roles []Role) string {
	parts := make([]string, 0, len(roles))
	for _, r := range roles {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, ",")
}

// DecodeRoles parses a CSV role list, dropping unknown names. An empty or
// fully unknown list falls back to the base user role so the non-empty
// invariant holds even against a corrupted row.
func DecodeRoles(csv string) []Role {
	var roles []Role
	for _, part := range strings.Split(csv, ",") {
		if r, ok := ParseRole(part); ok && !containsRole(roles, r) {
			roles = append(roles, r)
		}
	}
	if len(roles) == 0 {
		roles = []Role{RoleUser}
	}
	return roles
}

func containsRole(roles []Role, r Role) bool {
	for _, have := range roles {
		if have == r {
			return true
		}
	}
	return false
}

// Credential is the minimal local authentication record. The user ID is
// shared with the external profile service; the richer profile lives there.
type Credential struct {
	UserID       int64     `db:"user_id"`
	PasswordHash string    `db:"password_hash"`
	TelegramID   *int64    `db:"telegram_id"`
	IsActive     bool      `db:"is_active"`
	RolesCSV     string    `db:"roles"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Roles decodes the stored role list.
func (c *Credential) Roles() []Role {
	return DecodeRoles(c.RolesCSV)
}

// HasRole reports whether the credential carries the given role.
func (c *Credential) HasRole(r Role) bool {
	return containsRole(c.Roles(), r)
}
