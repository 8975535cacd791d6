package api

import (
	"context"
	"errors"
	"strings"

	"github.com/echostash/echostash-automation/internal/transport"
)

// AuthTokens is an access/refresh token pair.
type AuthTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// GuestAuthResponse is returned by guest login.
type GuestAuthResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserType     string `json:"userType"`
}

// UserProfile is the authenticated user.
type UserProfile struct {
	ID        ID     `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	UserType  string `json:"userType"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// LoginRequest is the email/password login body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthClient covers the /auth endpoints.
type AuthClient struct {
	tc *transport.Client
}

// Guest issues a short-lived token pair without credentials.
func (c *AuthClient) Guest(ctx context.Context) (GuestAuthResponse, error) {
	var out GuestAuthResponse
	_, err := c.tc.Post(ctx, "/auth/guest", nil, &out)
	return out, err
}

// Exchange trades an identity-provider token for backend tokens.
func (c *AuthClient) Exchange(ctx context.Context, token string) (AuthTokens, error) {
	var out AuthTokens
	_, err := c.tc.Post(ctx, "/auth/exchange", map[string]string{"token": token}, &out)
	return out, err
}

// Refresh trades a refresh token for a new pair.
func (c *AuthClient) Refresh(ctx context.Context, refreshToken string) (AuthTokens, error) {
	var out AuthTokens
	_, err := c.tc.Post(ctx, "/auth/refresh", map[string]string{"refreshToken": refreshToken}, &out)
	return out, err
}

// Me returns the caller's profile.
func (c *AuthClient) Me(ctx context.Context) (UserProfile, error) {
	var out UserProfile
	_, err := c.tc.Get(ctx, "/auth/me", &out)
	return out, err
}

// Login authenticates with email and password.
func (c *AuthClient) Login(ctx context.Context, email, password string) (AuthTokens, error) {
	if strings.TrimSpace(email) == "" {
		return AuthTokens{}, errors.New("email is required")
	}
	var out AuthTokens
	_, err := c.tc.Post(ctx, "/api/auth/login", LoginRequest{Email: email, Password: password}, &out)
	return out, err
}
