package session

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// publicPaths are the endpoints that never carry a bearer token. Requests to
// them bypass the interceptor entirely.
var publicPaths = map[string]struct{}{
	"/auth/register":        {},
	"/auth/login":           {},
	"/auth/refresh":         {},
	"/auth/forgot-password": {},
	"/auth/reset-password":  {},
}

const maxInterceptBody = 64 << 10

// Transport is an http.RoundTripper that makes token freshness a synchronous
// precondition of every authenticated call: it awaits a proactive refresh
// when one is due, attaches the bearer token, and invalidates the session
// when a response signals an unrecoverable auth failure.
//
// Wrap it around any client that talks to protected endpoints:
//
//	client := &http.Client{Transport: session.NewTransport(mgr, nil)}
type Transport struct {
	manager *Manager
	base    http.RoundTripper
}

// NewTransport returns a Transport backed by base. A nil base uses
// http.DefaultTransport.
func NewTransport(manager *Manager, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{manager: manager, base: base}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if isPublicPath(req.URL.Path) {
		return t.base.RoundTrip(req)
	}

	token, err := t.manager.AccessToken(req.Context())
	if err != nil {
		return nil, err
	}

	// Per http.RoundTripper contract the request must not be mutated.
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := t.base.RoundTrip(req)
	if err != nil {
		return res, err
	}

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		if t.terminalAuthFailure(res) {
			t.manager.invalidate(req.Context(), "terminal auth failure on response")
		}
	}
	return res, nil
}

// terminalAuthFailure classifies the response body, restoring it for the
// caller afterwards.
func (t *Transport) terminalAuthFailure(res *http.Response) bool {
	if res.Body == nil {
		return false
	}
	data, err := io.ReadAll(io.LimitReader(res.Body, maxInterceptBody))
	_ = res.Body.Close()
	res.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return false
	}

	var envelope struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
		Code string `json:"code"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return false
	}
	code := envelope.Code
	if envelope.Error != nil {
		code = envelope.Error.Code
	}

	switch code {
	case "REFRESH_TOKEN_INVALID", "REFRESH_TOKEN_EXPIRED", "REFRESH_TOKEN_REUSED", "SESSION_REVOKED":
		return true
	}
	return false
}

func isPublicPath(path string) bool {
	_, ok := publicPaths[strings.TrimRight(path, "/")]
	return ok
}
