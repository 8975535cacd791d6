package testkit

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/echostash/echostash-automation/internal/api"
	"github.com/echostash/echostash-automation/internal/fixtures"
	"github.com/echostash/echostash-automation/internal/transport"
)

// LoginAsGuest signs c in as a fresh guest and returns the issued tokens.
func LoginAsGuest(ctx context.Context, c *api.Client) (api.GuestAuthResponse, error) {
	resp, err := c.Auth.Guest(ctx)
	if err != nil {
		return api.GuestAuthResponse{}, fmt.Errorf("guest login: %w", err)
	}
	if resp.AccessToken == "" {
		return api.GuestAuthResponse{}, errors.New("guest login returned no access token")
	}
	c.Transport.SetToken(resp.AccessToken)
	return resp, nil
}

// GuestClient returns a client signed in as a new guest user.
func (e *Env) GuestClient(ctx context.Context) (*api.Client, error) {
	c, err := e.Client()
	if err != nil {
		return nil, err
	}
	if _, err := LoginAsGuest(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// MustGuestClient is GuestClient for tests.
func (e *Env) MustGuestClient(t testing.TB) *api.Client {
	t.Helper()
	c, err := e.GuestClient(context.Background())
	if err != nil {
		t.Fatalf("guest client: %v", err)
	}
	return c
}

// APIKeyClient returns a client that authenticates with key only.
func (e *Env) APIKeyClient(key string) (*api.Client, error) {
	return e.Client(transport.WithAPIKey(key))
}

// RefreshToken exchanges refreshToken and installs the new access token on c.
func RefreshToken(ctx context.Context, c *api.Client, refreshToken string) (api.AuthTokens, error) {
	tokens, err := c.Auth.Refresh(ctx, refreshToken)
	if err != nil {
		return api.AuthTokens{}, fmt.Errorf("refresh token: %w", err)
	}
	c.Transport.SetToken(tokens.AccessToken)
	return tokens, nil
}

// LoginAndGetClient signs in with email and password. Empty values fall back
// to the env's test user.
func (e *Env) LoginAndGetClient(ctx context.Context, email, password string) (*api.Client, error) {
	if email == "" {
		email = e.User.Email
	}
	if password == "" {
		password = e.User.Password
	}
	c, err := e.Client()
	if err != nil {
		return nil, err
	}
	tokens, err := c.Auth.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("login %s: %w", email, err)
	}
	c.Transport.SetToken(tokens.AccessToken)
	return c, nil
}

// AutomationLoginClient signs in through the automation cheat endpoint,
// creating the user on first use.
func (e *Env) AutomationLoginClient(ctx context.Context, email, name string) (*api.Client, error) {
	if !e.Automation {
		return nil, errors.New("automation endpoints are disabled for this environment")
	}
	c, err := e.Client()
	if err != nil {
		return nil, err
	}
	resp, err := c.Automation.Login(ctx, email, name)
	if err != nil {
		return nil, fmt.Errorf("automation login %s: %w", email, err)
	}
	c.Transport.SetToken(resp.AccessToken)
	return c, nil
}

// AdminClient signs in as the env's admin account via automation login.
func (e *Env) AdminClient(ctx context.Context) (*api.Client, error) {
	return e.AutomationLoginClient(ctx, e.AdminEmail, "QA Admin")
}

// CreateAndGetAPIKey creates a key with c and returns the raw key. name
// defaults to a unique test key name.
func CreateAndGetAPIKey(ctx context.Context, c *api.Client, name string) (string, error) {
	if name == "" {
		name = "test-key-" + fixtures.UniqueID()
	}
	created, err := c.Keys.Create(ctx, name)
	if err != nil {
		return "", fmt.Errorf("create api key: %w", err)
	}
	if created.Key == "" {
		return "", errors.New("API key was created but the raw key was not returned")
	}
	return created.Key, nil
}

// NewAPIKeyClient creates a key with authenticated and returns a client that
// uses it.
func (e *Env) NewAPIKeyClient(ctx context.Context, authenticated *api.Client) (*api.Client, error) {
	key, err := CreateAndGetAPIKey(ctx, authenticated, "")
	if err != nil {
		return nil, err
	}
	return e.APIKeyClient(key)
}
