package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBytes = 1 << 20

// ErrConfig is returned for invalid client configuration.
var ErrConfig = errors.New("gateway: invalid config")

// Config defines the gateway client configuration.
type Config struct {
	// BaseURL is the root of the auth authority, e.g. "https://api.example.com".
	BaseURL string

	// HTTPClient is the underlying client. Defaults to a client with Timeout.
	HTTPClient *http.Client

	// Timeout applies when HTTPClient is nil.
	Timeout time.Duration

	// UserAgent is sent on every request.
	UserAgent string

	// DeviceID and Platform describe this installation and are sent as
	// X-Device-ID / X-Device-Platform headers so the server can attribute
	// sessions to devices.
	DeviceID string
	Platform string
}

// Client talks JSON over HTTP to the remote auth authority.
type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string
	deviceID  string
	platform  string
}

// New constructs a Client. BaseURL is required.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("%w: base URL required", ErrConfig)
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: bad base URL %q", ErrConfig, cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		base:      base,
		http:      hc,
		userAgent: cfg.UserAgent,
		deviceID:  cfg.DeviceID,
		platform:  cfg.Platform,
	}, nil
}

// Register creates an account and returns the new identity plus tokens.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthPayload, error) {
	var out AuthPayload
	if err := c.call(ctx, http.MethodPost, "/auth/register", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthPayload, error) {
	var out AuthPayload
	if err := c.call(ctx, http.MethodPost, "/auth/login", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshTokens exchanges a refresh token for a rotated token pair. The
// presented token is invalidated by the server on success.
func (c *Client) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var out refreshResponse
	if err := c.call(ctx, http.MethodPost, "/auth/refresh", "", refreshRequest{RefreshToken: refreshToken}, &out); err != nil {
		return nil, err
	}
	return &out.Tokens, nil
}

// Logout revokes the presented refresh token on the server.
func (c *Client) Logout(ctx context.Context, accessToken, refreshToken string) error {
	return c.call(ctx, http.MethodPost, "/auth/logout", accessToken, logoutRequest{RefreshToken: refreshToken}, nil)
}

// LogoutAll revokes every session of the authenticated user.
func (c *Client) LogoutAll(ctx context.Context, accessToken string) (*LogoutAllResult, error) {
	var out LogoutAllResult
	if err := c.call(ctx, http.MethodPost, "/auth/logout-all", accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ForgotPassword requests a password reset email. The server answers with a
// generic success message regardless of account existence.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	var out messageResponse
	if err := c.call(ctx, http.MethodPost, "/auth/forgot-password", "", forgotPasswordRequest{Email: email}, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// ResetPassword completes a password reset with an emailed token.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	var out messageResponse
	if err := c.call(ctx, http.MethodPost, "/auth/reset-password", "", resetPasswordRequest{Token: token, NewPassword: newPassword}, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// GetProfile fetches the authenticated user's identity record.
func (c *Client) GetProfile(ctx context.Context, accessToken string) (*User, error) {
	var out User
	if err := c.call(ctx, http.MethodGet, "/auth/me", accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile applies a partial profile update and returns the new record.
func (c *Client) UpdateProfile(ctx context.Context, accessToken string, upd ProfileUpdate) (*User, error) {
	var out User
	if err := c.call(ctx, http.MethodPut, "/auth/me", accessToken, upd, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChangePassword changes the authenticated user's password.
func (c *Client) ChangePassword(ctx context.Context, accessToken, currentPassword, newPassword string) (string, error) {
	var out messageResponse
	req := changePasswordRequest{CurrentPassword: currentPassword, NewPassword: newPassword}
	if err := c.call(ctx, http.MethodPost, "/auth/change-password", accessToken, req, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) call(ctx context.Context, method, path, accessToken string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("gateway: marshal %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("gateway: request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-ID", c.deviceID)
	}
	if c.platform != "" {
		req.Header.Set("X-Device-Platform", c.platform)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: %s %s: %w", method, path, err)
	}
	defer func() { _ = res.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("gateway: read %s: %w", path, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return decodeAPIError(res.StatusCode, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("gateway: decode %s: %w", path, err)
		}
	}
	return nil
}

// decodeAPIError parses the server's error envelope. Bodies that are not the
// expected envelope still yield an APIError keyed on the HTTP status.
func decodeAPIError(status int, data []byte) error {
	apiErr := &APIError{Status: status}

	var envelope struct {
		Error *APIError `json:"error"`
		Code  string    `json:"code"`
		// Message mirrors flat error bodies without an "error" wrapper.
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil {
		switch {
		case envelope.Error != nil:
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		default:
			apiErr.Code = envelope.Code
			apiErr.Message = envelope.Message
		}
	}
	return apiErr
}
