package session

import (
	"sync"
	"time"

	"passport/internal/gateway"
)

// refreshMargin is the safety window before access-token expiry at which a
// refresh becomes due. It absorbs the latency of the refresh round-trip
// itself, so a caller who is handed a token never holds one that expires
// mid-flight.
const refreshMargin = 60 * time.Second

// Snapshot is a read-only copy of the current session.
type Snapshot struct {
	User          *gateway.User
	AccessToken   string
	ExpiresAt     time.Time
	Authenticated bool
}

// UserPatch carries partial user fields for State.UpdateUser. Nil fields are
// left untouched.
type UserPatch struct {
	Name  *string
	Email *string
}

// State is the in-memory session record. All mutation goes through the
// Manager; callers only ever observe snapshots.
//
// Invariant: Authenticated implies a non-empty access token, and the token
// and its expiry are always set together.
type State struct {
	mu  sync.Mutex
	now func() time.Time

	user        *gateway.User
	accessToken string
	expiresAt   time.Time
}

// NewState returns an empty, unauthenticated State. now defaults to
// time.Now and exists so tests can pin the clock.
func NewState(now func() time.Time) *State {
	if now == nil {
		now = time.Now
	}
	return &State{now: now}
}

// Set installs a session after login, register, or a successful refresh.
func (s *State) Set(user gateway.User, accessToken string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := user
	s.user = &u
	s.accessToken = accessToken
	s.expiresAt = expiresAt
}

// Clear drops the session.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.accessToken = ""
	s.expiresAt = time.Time{}
}

// Get returns a copy of the current session.
func (s *State) Get() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		AccessToken:   s.accessToken,
		ExpiresAt:     s.expiresAt,
		Authenticated: s.user != nil && s.accessToken != "",
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// UpdateUser merges non-nil patch fields into the current user record. It is
// a no-op while unauthenticated; it never promotes an unauthenticated state
// to authenticated and never touches the token.
func (s *State) UpdateUser(patch UserPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return
	}
	if patch.Name != nil {
		s.user.Name = *patch.Name
	}
	if patch.Email != nil {
		s.user.Email = *patch.Email
	}
}

// ShouldRefresh reports whether a proactive refresh is due: a token is
// present and less than refreshMargin remains before its expiry.
func (s *State) ShouldRefresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken == "" {
		return false
	}
	// Refresh is due from exactly refreshMargin remaining, inclusive.
	return s.expiresAt.Sub(s.now()) <= refreshMargin
}
