package session

import "errors"

var (
	// ErrNotAuthenticated is returned when an operation requires a session
	// and none is present on this device.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrRefreshUnavailable is returned when a refresh attempt failed for
	// transient reasons (transport failure, server outage). The stored
	// credential is left intact; the next caller may try again.
	ErrRefreshUnavailable = errors.New("refresh unavailable")

	// ErrConfig is returned for invalid manager options.
	ErrConfig = errors.New("session: invalid config")
)
