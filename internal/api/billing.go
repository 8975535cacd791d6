package api

import (
	"context"

	"github.com/echostash/echostash-automation/internal/transport"
)

// BillingProfile is the caller's subscription.
type BillingProfile struct {
	ID     ID     `json:"id"`
	Plan   string `json:"plan"`
	Status string `json:"status"`
}

// BillingPortal links to the payment provider portal.
type BillingPortal struct {
	URL string `json:"url"`
}

// Quota is usage against a limit.
type Quota struct {
	Used  int64 `json:"used"`
	Limit int64 `json:"limit"`
}

// BillingQuotas reports plan quotas.
type BillingQuotas struct {
	Prompts Quota `json:"prompts"`
	Renders Quota `json:"renders"`
	Storage Quota `json:"storage"`
}

// Spending is current month spend and its cap.
type Spending struct {
	CurrentMonth float64 `json:"currentMonth"`
	Limit        float64 `json:"limit"`
}

// SpendingHistoryEntry is one month of spend.
type SpendingHistoryEntry struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

// BillingClient covers /api/billing.
type BillingClient struct {
	tc *transport.Client
}

const billingPath = "/api/billing"

// Me returns the billing profile.
func (c *BillingClient) Me(ctx context.Context) (BillingProfile, error) {
	var out BillingProfile
	_, err := c.tc.Get(ctx, billingPath+"/me", &out)
	return out, err
}

// Portal returns the billing portal link.
func (c *BillingClient) Portal(ctx context.Context) (BillingPortal, error) {
	var out BillingPortal
	_, err := c.tc.Get(ctx, billingPath+"/portal", &out)
	return out, err
}

// Quotas returns plan quotas.
func (c *BillingClient) Quotas(ctx context.Context) (BillingQuotas, error) {
	var out BillingQuotas
	_, err := c.tc.Get(ctx, billingPath+"/quotas", &out)
	return out, err
}

// Spending returns current spend.
func (c *BillingClient) Spending(ctx context.Context) (Spending, error) {
	var out Spending
	_, err := c.tc.Get(ctx, billingPath+"/spending", &out)
	return out, err
}

// UpdateSpending sets the monthly spending cap.
func (c *BillingClient) UpdateSpending(ctx context.Context, limit float64) (Spending, error) {
	var out Spending
	_, err := c.tc.Put(ctx, billingPath+"/spending", map[string]float64{"limit": limit}, &out)
	return out, err
}

// SpendingHistory returns past monthly spend.
func (c *BillingClient) SpendingHistory(ctx context.Context) ([]SpendingHistoryEntry, error) {
	var out []SpendingHistoryEntry
	_, err := c.tc.Get(ctx, billingPath+"/spending/history", &out)
	return out, err
}
