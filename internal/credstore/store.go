package credstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStoreUnavailable is returned by Save/Clear when the backing storage
	// cannot be reached. Load never returns it; Load fails closed to absent.
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// Credential is the durable half of a session: the single-use refresh token
// and its advisory expiry. The server remains authoritative on expiry; the
// local timestamp is used for pre-checks only.
type Credential struct {
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the credential is past its advisory expiry at now.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !c.ExpiresAt.After(now)
}

// Store persists a single refresh credential.
//
// Save, Load, and Clear are each individually atomic: Load never observes a
// token paired with a mismatched expiry. Cross-operation sequencing
// (load-then-save during rotation) is the caller's responsibility.
type Store interface {
	// Save replaces the stored credential wholesale.
	Save(ctx context.Context, cred Credential) error

	// Load returns the stored credential. ok is false when no credential is
	// stored or when the backend is unavailable (fail closed).
	Load(ctx context.Context) (cred Credential, ok bool)

	// Clear removes the stored credential. Clearing an empty store is a no-op.
	Clear(ctx context.Context) error
}
