package session

import (
	"testing"
	"time"

	"passport/internal/gateway"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestState_ShouldRefreshBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		remaining time.Duration
		want      bool
	}{
		{"well before margin", 10 * time.Minute, false},
		{"one ms outside margin", refreshMargin + time.Millisecond, false},
		{"exactly at margin", refreshMargin, true},
		{"inside margin", 30 * time.Second, true},
		{"already expired", -time.Minute, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewState(fixedClock(now))
			s.Set(gateway.User{ID: "u1"}, "tok", now.Add(tc.remaining))
			if got := s.ShouldRefresh(); got != tc.want {
				t.Fatalf("ShouldRefresh = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestState_ShouldRefreshWithoutToken(t *testing.T) {
	s := NewState(nil)
	if s.ShouldRefresh() {
		t.Fatalf("empty state must not request refresh")
	}
}

func TestState_SetGetClear(t *testing.T) {
	now := time.Now()
	s := NewState(fixedClock(now))

	s.Set(gateway.User{ID: "u1", Email: "a@b.c"}, "tok", now.Add(time.Hour))

	snap := s.Get()
	if !snap.Authenticated {
		t.Fatalf("expected authenticated")
	}
	if snap.AccessToken == "" {
		t.Fatalf("authenticated implies a token")
	}
	if snap.User == nil || snap.User.ID != "u1" {
		t.Fatalf("user = %+v", snap.User)
	}

	s.Clear()
	snap = s.Get()
	if snap.Authenticated || snap.User != nil || snap.AccessToken != "" {
		t.Fatalf("expected empty snapshot after clear, got %+v", snap)
	}
}

func TestState_SnapshotIsACopy(t *testing.T) {
	s := NewState(nil)
	s.Set(gateway.User{ID: "u1", Name: "before"}, "tok", time.Now().Add(time.Hour))

	snap := s.Get()
	snap.User.Name = "mutated"

	if got := s.Get().User.Name; got != "before" {
		t.Fatalf("snapshot mutation leaked into state: %q", got)
	}
}

func TestState_UpdateUserMergesNamedFieldsOnly(t *testing.T) {
	now := time.Now()
	s := NewState(fixedClock(now))
	exp := now.Add(time.Hour)
	s.Set(gateway.User{ID: "u1", Email: "a@b.c", Name: "old"}, "tok", exp)

	name := "X"
	s.UpdateUser(UserPatch{Name: &name})

	snap := s.Get()
	if snap.User.Name != "X" {
		t.Fatalf("Name = %q, want X", snap.User.Name)
	}
	if snap.User.Email != "a@b.c" || snap.User.ID != "u1" {
		t.Fatalf("unexpected fields changed: %+v", snap.User)
	}
	if !snap.Authenticated || snap.AccessToken != "tok" || !snap.ExpiresAt.Equal(exp) {
		t.Fatalf("auth state disturbed: %+v", snap)
	}
}

func TestState_UpdateUserNoOpWhenUnauthenticated(t *testing.T) {
	s := NewState(nil)

	name := "X"
	s.UpdateUser(UserPatch{Name: &name})

	snap := s.Get()
	if snap.User != nil || snap.Authenticated {
		t.Fatalf("update on empty state must not create a user: %+v", snap)
	}
}
