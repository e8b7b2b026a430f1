package gateway

import "time"

// User is the remote identity record.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TokenPair is the token material issued by register, login, and refresh.
// ExpiresIn is in seconds, relative to receipt.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// AccessExpiry converts ExpiresIn to an absolute expiry anchored at now.
// The conversion happens at receipt time, not at use time.
func (t TokenPair) AccessExpiry(now time.Time) time.Time {
	return now.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// AuthPayload is the response body of register and login.
type AuthPayload struct {
	User   User      `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

// ProfileUpdate carries the mutable profile fields for PUT /auth/me.
// Nil fields are left untouched by the server.
type ProfileUpdate struct {
	Name *string `json:"name,omitempty"`
}

// LogoutAllResult is the response body of POST /auth/logout-all.
type LogoutAllResult struct {
	Message         string `json:"message"`
	RevokedSessions int    `json:"revokedSessions"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type refreshResponse struct {
	Tokens TokenPair `json:"tokens"`
}
