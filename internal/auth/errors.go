package auth

import "errors"

var (
	// ErrInvalidCredentials never reveals which of the identifier or
	// password failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserDeactivated reports an account flagged inactive locally or
	// remotely.
	ErrUserDeactivated = errors.New("user deactivated")
	// ErrUsernameExists reports a taken username at registration.
	ErrUsernameExists = errors.New("username already exists")
	// ErrEmailExists reports a taken email at registration.
	ErrEmailExists = errors.New("email already exists")
	// ErrTelegramIDBound reports a Telegram account already attached to a
	// different credential.
	ErrTelegramIDBound = errors.New("telegram id already bound")
	// ErrRegistration reports a registration that could not complete; any
	// local write has been compensated.
	ErrRegistration = errors.New("registration failed")
	// ErrAuthenticationProcess is the fail-closed escalation for anything
	// unexpected, upstream timeouts included.
	ErrAuthenticationProcess = errors.New("authentication process failed")
)
