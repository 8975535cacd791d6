// Package testkit holds the helpers suites share: authenticated client
// construction, polling, assertions, resource tracking with cleanup, and the
// choice between a live backend and the in-process mock.
package testkit

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/echostash/echostash-automation/internal/api"
	"github.com/echostash/echostash-automation/internal/config"
	"github.com/echostash/echostash-automation/internal/fixtures"
	"github.com/echostash/echostash-automation/internal/mockbackend"
	"github.com/echostash/echostash-automation/internal/observability"
	"github.com/echostash/echostash-automation/internal/transport"
)

// LiveEnvVar switches Target to the configured backend when set to 1.
const LiveEnvVar = "ECHOSTASH_QA_LIVE"

// AdminEmailEnvVar names the account suites use for admin-only endpoints.
const AdminEmailEnvVar = "ADMIN_EMAIL"

// Defaults for the mock backend accounts.
const (
	DefaultAdminEmail   = "admin@echostash-test.com"
	DefaultMockPassword = "automation-password"
)

// Env is a backend the helpers can build clients for.
type Env struct {
	// Name is the config environment (local, stage, prod) or "mock".
	Name    string
	BaseURL string

	// Live is false when the backend is the in-process mock.
	Live bool

	// Mock is set only for mock targets.
	Mock *mockbackend.Server

	// User is the password-login identity for this backend.
	User       fixtures.User
	AdminEmail string

	// Automation reports whether the /automation cheat endpoints exist.
	Automation bool

	newTransport func(opts ...transport.Option) (*transport.Client, error)
}

// NewEnv builds an Env for a base URL with fixed transport options.
func NewEnv(name, baseURL string, opts ...transport.Option) *Env {
	base := append([]transport.Option(nil), opts...)
	return &Env{
		Name:       name,
		BaseURL:    baseURL,
		Live:       true,
		User:       fixtures.TestUser(),
		AdminEmail: adminEmail(),
		Automation: true,
		newTransport: func(extra ...transport.Option) (*transport.Client, error) {
			return transport.New(transport.Config{BaseURL: baseURL, Timeout: 30 * time.Second}, append(base, extra...)...)
		},
	}
}

// FromConfig builds an Env for the loaded configuration.
func FromConfig(cfg *config.Config, logger transport.Logger) (*Env, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	user := fixtures.TestUser()
	if cfg.TestUser.Email != "" {
		user.Email = cfg.TestUser.Email
	}
	if cfg.TestUser.Password != "" {
		user.Password = cfg.TestUser.Password
	}
	return &Env{
		Name:       cfg.Env,
		BaseURL:    cfg.API.BaseURL,
		Live:       true,
		User:       user,
		AdminEmail: adminEmail(),
		Automation: cfg.Automation.Enabled,
		newTransport: func(extra ...transport.Option) (*transport.Client, error) {
			return transport.NewFromConfig(cfg, logger, extra...)
		},
	}, nil
}

// MockOptions tune NewMockEnv.
type MockOptions struct {
	DisableAutomation bool
}

// NewMockEnv starts an httptest server around a fresh mock backend. Call
// the returned stop function to shut it down.
func NewMockEnv(opts ...MockOptions) (*Env, func()) {
	var o MockOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	user := fixtures.TestUser()
	if user.Password == "" {
		user.Password = DefaultMockPassword
	}
	admin := DefaultAdminEmail

	mock := mockbackend.New(mockbackend.Options{
		DisableAutomation: o.DisableAutomation,
		AdminEmails:       []string{admin},
		Users:             map[string]string{user.Email: user.Password},
	})
	ts := httptest.NewServer(mock.Handler())

	env := &Env{
		Name:       "mock",
		BaseURL:    ts.URL,
		Mock:       mock,
		User:       user,
		AdminEmail: admin,
		Automation: !o.DisableAutomation,
		newTransport: func(extra ...transport.Option) (*transport.Client, error) {
			base := []transport.Option{
				transport.WithHTTPClient(ts.Client()),
				transport.WithRetryPolicy(transport.RetryPolicy{
					MaxRetries: 2,
					BaseDelay:  time.Millisecond,
					MaxDelay:   10 * time.Millisecond,
				}),
			}
			return transport.New(transport.Config{BaseURL: ts.URL, Timeout: 10 * time.Second}, append(base, extra...)...)
		},
	}
	return env, ts.Close
}

// Target returns the backend a test should run against: the configured
// environment when ECHOSTASH_QA_LIVE=1, otherwise a mock torn down with the
// test.
func Target(t testing.TB) *Env {
	t.Helper()
	if !LiveEnabled() {
		env, stop := NewMockEnv()
		t.Cleanup(stop)
		return env
	}

	cfg, err := config.Load(context.Background())
	if err != nil {
		t.Fatalf("load live config: %v", err)
	}
	var logger transport.Logger
	if observability.CLILogger != nil {
		logger = observability.CLILogger
	}
	env, err := FromConfig(cfg, logger)
	if err != nil {
		t.Fatalf("build live env: %v", err)
	}
	return env
}

// LiveEnabled reports whether ECHOSTASH_QA_LIVE selects the real backend.
func LiveEnabled() bool {
	v := strings.TrimSpace(os.Getenv(LiveEnvVar))
	return v == "1" || strings.EqualFold(v, "true")
}

// Client returns an unauthenticated client.
func (e *Env) Client(opts ...transport.Option) (*api.Client, error) {
	if e == nil || e.newTransport == nil {
		return nil, errors.New("env is not configured")
	}
	tc, err := e.newTransport(opts...)
	if err != nil {
		return nil, err
	}
	return api.New(tc), nil
}

// MustClient is Client for tests.
func (e *Env) MustClient(t testing.TB, opts ...transport.Option) *api.Client {
	t.Helper()
	c, err := e.Client(opts...)
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	return c
}

func adminEmail() string {
	if v := strings.TrimSpace(os.Getenv(AdminEmailEnvVar)); v != "" {
		return v
	}
	return DefaultAdminEmail
}
