package token

import "errors"

var (
	// ErrTokenMalformed reports a token that cannot be parsed or whose
	// signature does not verify.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenExpired reports a refresh token past its expiry; the stored
	// row is deleted before this is returned.
	ErrTokenExpired = errors.New("refresh token expired")
	// ErrTokenNotFound reports a refresh token with no stored row.
	ErrTokenNotFound = errors.New("refresh token not found")
)
