package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned when login is rejected for a wrong
	// email or password. User-correctable; no session state changes.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrAccountLocked is returned when the account is temporarily locked.
	ErrAccountLocked = errors.New("account locked")

	// ErrRateLimited is returned when the server throttles the caller.
	ErrRateLimited = errors.New("rate limited")

	// ErrRefreshRejected is returned when the server positively rejects a
	// refresh token (invalid, expired, reused, or session revoked).
	// Unrecoverable: the caller must invalidate the session.
	ErrRefreshRejected = errors.New("refresh token rejected")

	// ErrUnauthorized is returned for any other 401 on an authenticated call.
	ErrUnauthorized = errors.New("unauthorized")
)

// Error codes the remote authority uses in its error envelope.
const (
	codeInvalidCredentials = "INVALID_CREDENTIALS"
	codeAccountLocked      = "ACCOUNT_LOCKED"
	codeRateLimited        = "RATE_LIMITED"
	codeRefreshInvalid     = "REFRESH_TOKEN_INVALID"
	codeRefreshExpired     = "REFRESH_TOKEN_EXPIRED"
	codeRefreshReused      = "REFRESH_TOKEN_REUSED"
	codeSessionRevoked     = "SESSION_REVOKED"
)

// APIError is a structured rejection from the remote authority. It wraps one
// of the sentinel errors above so callers can classify with errors.Is while
// still seeing the server's own code and message.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("auth server: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("auth server: status %d", e.Status)
}

// Unwrap maps the server's code (falling back on the HTTP status) onto the
// sentinel taxonomy.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case codeInvalidCredentials:
		return ErrInvalidCredentials
	case codeAccountLocked:
		return ErrAccountLocked
	case codeRateLimited:
		return ErrRateLimited
	case codeRefreshInvalid, codeRefreshExpired, codeRefreshReused, codeSessionRevoked:
		return ErrRefreshRejected
	}
	switch e.Status {
	case 401:
		return ErrUnauthorized
	case 429:
		return ErrRateLimited
	}
	return nil
}

// IsTerminalAuth reports whether err is a positive, unrecoverable rejection
// of the session's credentials: a reused/expired/invalid refresh token or a
// revoked session. Transport failures are never terminal.
func IsTerminalAuth(err error) bool {
	return errors.Is(err, ErrRefreshRejected)
}
