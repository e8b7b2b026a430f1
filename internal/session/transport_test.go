package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"passport/internal/credstore"
	"passport/internal/gateway"
)

func TestTransport_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	m := newTestManager(t, &fakeGateway{}, credstore.NewMemory(), nil)
	m.state.Set(gateway.User{ID: "u1"}, "at-fresh", time.Now().Add(time.Hour))

	client := &http.Client{Transport: NewTransport(m, nil)}
	res, err := client.Get(srv.URL + "/api/items")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	_ = res.Body.Close()

	if gotAuth != "Bearer at-fresh" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
}

func TestTransport_PublicEndpointsBypass(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	// Unauthenticated manager: a non-public request would fail, a public one
	// must pass straight through.
	m := newTestManager(t, &fakeGateway{}, credstore.NewMemory(), nil)
	client := &http.Client{Transport: NewTransport(m, nil)}

	res, err := client.Post(srv.URL+"/auth/login", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	_ = res.Body.Close()
	if gotAuth != "" {
		t.Fatalf("public endpoint got Authorization = %q", gotAuth)
	}
}

func TestTransport_UnauthenticatedFailsBeforeNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("request must not reach the server")
	}))
	defer srv.Close()

	m := newTestManager(t, &fakeGateway{}, credstore.NewMemory(), nil)
	client := &http.Client{Transport: NewTransport(m, nil)}

	_, err := client.Get(srv.URL + "/api/items")
	if err == nil || !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestTransport_RefreshesBeforeCall(t *testing.T) {
	ctx := context.Background()
	store := credstore.NewMemory()
	_ = store.Save(ctx, credstore.Credential{RefreshToken: "rt-1", ExpiresAt: time.Now().Add(time.Hour)})

	gw := &fakeGateway{
		refreshFn: func(context.Context, string) (*gateway.TokenPair, error) {
			return &gateway.TokenPair{AccessToken: "at-new", RefreshToken: "rt-2", ExpiresIn: 900}, nil
		},
	}
	m := newTestManager(t, gw, store, nil)
	m.state.Set(gateway.User{ID: "u1"}, "at-stale", time.Now().Add(10*time.Second))

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewTransport(m, nil)}
	res, err := client.Get(srv.URL + "/api/items")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	_ = res.Body.Close()

	if gotAuth != "Bearer at-new" {
		t.Fatalf("Authorization = %q, want refreshed token", gotAuth)
	}
	if gw.refreshCalls.Load() != 1 {
		t.Fatalf("refresh calls = %d, want 1", gw.refreshCalls.Load())
	}
}

func TestTransport_TerminalResponseInvalidatesSession(t *testing.T) {
	ctx := context.Background()
	store := credstore.NewMemory()
	_ = store.Save(ctx, credstore.Credential{RefreshToken: "rt-1", ExpiresAt: time.Now().Add(time.Hour)})

	body := `{"error":{"code":"SESSION_REVOKED","message":"revoked elsewhere"}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	m := newTestManager(t, &fakeGateway{}, store, nil)
	m.state.Set(gateway.User{ID: "u1"}, "at-fresh", time.Now().Add(time.Hour))

	client := &http.Client{Transport: NewTransport(m, nil)}
	res, err := client.Get(srv.URL + "/api/items")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got, _ := io.ReadAll(res.Body)
	_ = res.Body.Close()

	// Body must be restored for the caller.
	if string(got) != body {
		t.Fatalf("body = %q, want original error body", got)
	}
	if m.Session().Authenticated {
		t.Fatalf("terminal auth failure must invalidate the session")
	}
	if _, ok := store.Load(ctx); ok {
		t.Fatalf("credential must be cleared")
	}
}

func TestTransport_Plain401DoesNotInvalidate(t *testing.T) {
	ctx := context.Background()
	store := credstore.NewMemory()
	_ = store.Save(ctx, credstore.Credential{RefreshToken: "rt-1", ExpiresAt: time.Now().Add(time.Hour)})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"SOMETHING_ELSE"}}`))
	}))
	defer srv.Close()

	m := newTestManager(t, &fakeGateway{}, store, nil)
	m.state.Set(gateway.User{ID: "u1"}, "at-fresh", time.Now().Add(time.Hour))

	client := &http.Client{Transport: NewTransport(m, nil)}
	res, err := client.Get(srv.URL + "/api/items")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	_ = res.Body.Close()

	if !m.Session().Authenticated {
		t.Fatalf("non-terminal 401 must not invalidate the session")
	}
	if _, ok := store.Load(ctx); !ok {
		t.Fatalf("credential must survive a non-terminal 401")
	}
}

func TestIsPublicPath(t *testing.T) {
	cases := map[string]bool{
		"/auth/login":           true,
		"/auth/login/":          true,
		"/auth/refresh":         true,
		"/auth/register":        true,
		"/auth/forgot-password": true,
		"/auth/reset-password":  true,
		"/auth/me":              false,
		"/auth/logout":          false,
		"/api/items":            false,
	}
	for path, want := range cases {
		if got := isPublicPath(path); got != want {
			t.Fatalf("isPublicPath(%q) = %v, want %v", path, got, want)
		}
	}
}
