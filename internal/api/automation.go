package api

import (
	"context"
	"errors"
	"strings"

	"github.com/echostash/echostash-automation/internal/transport"
)

// AutomationLoginRequest signs in as an email without OAuth.
type AutomationLoginRequest struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// AutomationLoginResponse is returned by automation login.
type AutomationLoginResponse struct {
	AccessToken  string `json:"accessToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	RefreshToken string `json:"refreshToken"`
	IsFirstLogin bool   `json:"isFirstLogin"`
}

// SetPlanResponse confirms a forced plan change.
type SetPlanResponse struct {
	UserID   ID     `json:"userId"`
	PlanName string `json:"planName"`
	Status   string `json:"status"`
}

// ResetQuotasResponse reports what a quota reset removed.
type ResetQuotasResponse struct {
	UserID      ID  `json:"userId"`
	KeysDeleted int `json:"keysDeleted"`
}

// DeleteUserResponse confirms user deletion.
type DeleteUserResponse struct {
	UserID  ID   `json:"userId"`
	Deleted bool `json:"deleted"`
}

// AutomationClient covers the cheat endpoints that only exist when the
// backend runs with automation enabled (stage and local).
type AutomationClient struct {
	tc *transport.Client
}

// Login signs in as email, creating the user on first use.
func (c *AutomationClient) Login(ctx context.Context, email, name string) (AutomationLoginResponse, error) {
	if strings.TrimSpace(email) == "" {
		return AutomationLoginResponse{}, errors.New("email is required")
	}
	var out AutomationLoginResponse
	_, err := c.tc.Post(ctx, "/automation/auth/login", AutomationLoginRequest{Email: email, Name: name}, &out)
	return out, err
}

// SetPlan forces a user's plan, bypassing the payment provider.
func (c *AutomationClient) SetPlan(ctx context.Context, userID ID, planName string) (SetPlanResponse, error) {
	body := struct {
		UserID   ID     `json:"userId"`
		PlanName string `json:"planName"`
	}{UserID: userID, PlanName: planName}

	var out SetPlanResponse
	_, err := c.tc.Post(ctx, "/automation/cheats/set-plan", body, &out)
	return out, err
}

// ResetQuotas clears usage counters for a user.
func (c *AutomationClient) ResetQuotas(ctx context.Context, userID ID) (ResetQuotasResponse, error) {
	var out ResetQuotasResponse
	_, err := c.tc.Post(ctx, "/automation/cheats/reset-quotas", userBody{UserID: userID}, &out)
	return out, err
}

// DeleteUser removes a user with their billing and usage data.
func (c *AutomationClient) DeleteUser(ctx context.Context, userID ID) (DeleteUserResponse, error) {
	var out DeleteUserResponse
	_, err := c.tc.Post(ctx, "/automation/cheats/delete-user", userBody{UserID: userID}, &out)
	return out, err
}

type userBody struct {
	UserID ID `json:"userId"`
}
