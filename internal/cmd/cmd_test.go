package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echostash/echostash-automation/internal/api"
	"github.com/echostash/echostash-automation/internal/config"
	errwrap "github.com/echostash/echostash-automation/internal/errors"
	"github.com/echostash/echostash-automation/internal/mockbackend"
	"github.com/echostash/echostash-automation/internal/output"
	"github.com/echostash/echostash-automation/internal/smoke"
	"github.com/echostash/echostash-automation/internal/transport"
)

const (
	cliUserEmail    = "cli@echostash-test.com"
	cliUserPassword = "cli-password"
)

// startMock serves a fresh mock backend and points configuration at it.
func startMock(t *testing.T) *mockbackend.Server {
	t.Helper()
	mock := mockbackend.New(mockbackend.Options{
		Users: map[string]string{cliUserEmail: cliUserPassword},
	})
	ts := httptest.NewServer(mock.Handler())
	t.Cleanup(ts.Close)

	t.Setenv("ENV", "local")
	t.Setenv("ENV_FILE", "")
	t.Setenv("ECHOSTASH_API_URL", ts.URL)
	t.Setenv("ECHOSTASH_API_TOKEN", "")
	t.Setenv("ECHOSTASH_API_KEY", "")
	t.Setenv("ECHOSTASH_RETRY_BASE_DELAY", "1ms")
	t.Setenv("ECHOSTASH_RETRY_MAX_DELAY", "5ms")
	t.Setenv("ECHOSTASH_LOG_ENABLED", "false")
	t.Setenv("TEST_USER_EMAIL", cliUserEmail)
	t.Setenv("TEST_USER_PASSWORD", cliUserPassword)
	t.Setenv("ECHOSTASH_DB_DRIVER", "libsql")
	t.Setenv("ECHOSTASH_DB_PATH", filepath.Join(t.TempDir(), "ledger.db"))
	t.Setenv("ECHOSTASH_DB_URL", "")
	return mock
}

// runCLI executes the root command and returns what it wrote to --out.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile, envName, envFile, outFlag = "", "", "", ""
	formatFlag = string(output.FormatJSON)
	verbose, metricsFlag = false, false
	automationUserID, automationEmail, automationName = "", "", ""
	keysName = ""
	smokeNoLedger, smokeSkipHealth = false, false
	runsLimit, runsAllEnv, runsID = 20, false, ""
	cleanupAll, cleanupRun, cleanupAnyEnv, cleanupDryRun = false, "", false, false
	cleanupConcurrency, cleanupPurgeAfter = 4, 0
	analyticsPromptID, analyticsBaseURL, analyticsVariables = "", "", ""

	out := filepath.Join(t.TempDir(), "out.json")
	rootCmd.SetArgs(append(args, "--out", out))
	err := rootCmd.ExecuteContext(context.Background())

	data, readErr := os.ReadFile(out)
	if readErr != nil && !errors.Is(readErr, os.ErrNotExist) {
		t.Fatalf("read output: %v", readErr)
	}
	return string(data), err
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(errwrap.NewConfigInvalidError("bad")))
	assert.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(errwrap.NewInvalidInputError("bad flag")))
	assert.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCodeFor(&transport.Error{Method: "GET", URL: "http://x", Cause: errors.New("refused")}))
	assert.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCodeFor(fmt.Errorf("wrapped: %w", &transport.Error{StatusCode: http.StatusBadGateway})))
	assert.Equal(t, foundry.ExitFailure, ExitCodeFor(&transport.Error{StatusCode: http.StatusNotFound}))
	assert.Equal(t, foundry.ExitFileNotFound, ExitCodeFor(fmt.Errorf("open: %w", os.ErrNotExist)))
	assert.Equal(t, foundry.ExitFailure, ExitCodeFor(errors.New("boom")))
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-01-01")
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	t.Cleanup(func() { versionCmd.SetOut(nil) })

	extended = false
	require.NoError(t, versionCmd.RunE(versionCmd, nil))
	assert.Equal(t, "echostash-qa 1.2.3\n", buf.String())
}

func TestHealthCommand(t *testing.T) {
	startMock(t)

	out, err := runCLI(t, "health")
	require.NoError(t, err)

	var report HealthReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "UP", report.Status)
	assert.Equal(t, "local", report.Env)
	assert.Equal(t, "UP", report.Components["db"])
}

func TestHealthCommandReportsUnreachableBackend(t *testing.T) {
	startMock(t)
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()
	t.Setenv("ECHOSTASH_API_URL", url)
	t.Setenv("ECHOSTASH_MAX_RETRIES", "0")

	_, err := runCLI(t, "health")
	require.Error(t, err)
	assert.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCodeFor(err))
}

func TestEnvInfoMasksSecrets(t *testing.T) {
	startMock(t)
	t.Setenv("ECHOSTASH_API_TOKEN", "secret-token")

	out, err := runCLI(t, "envinfo")
	require.NoError(t, err)
	assert.NotContains(t, out, "secret-token")

	var info EnvInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "(set)", info.Token)
	assert.Equal(t, "(not set)", info.APIKey)
	assert.Equal(t, cliUserEmail, info.TestUser)
}

func TestSmokeCommandWithoutLedger(t *testing.T) {
	startMock(t)

	out, err := runCLI(t, "smoke", "--no-ledger")
	require.NoError(t, err)

	var report smoke.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Passed)
	assert.Len(t, report.Steps, 8)
	assert.Equal(t, 3, report.Deleted)
}

func TestCleanupRequiresSelection(t *testing.T) {
	startMock(t)
	_, err := runCLI(t, "cleanup")
	require.Error(t, err)
	assert.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(err))
}

func TestTriggerAnalyticsRejectsMalformedVariables(t *testing.T) {
	startMock(t)
	t.Setenv("API_KEY", "esk_test")
	t.Setenv("PROMPT_ID", "1")
	t.Setenv("VARIABLES", "")

	_, err := runCLI(t, "trigger-analytics", "--variables", `["not","an","object"]`)
	require.Error(t, err)
	assert.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(err))
	assert.Contains(t, err.Error(), "--variables")

	t.Setenv("VARIABLES", "{broken")
	_, err = runCLI(t, "trigger-analytics")
	require.Error(t, err)
	assert.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(err))
}

func TestKeysLifecycle(t *testing.T) {
	startMock(t)

	out, err := runCLI(t, "keys", "create", "--name", "cli-key")
	require.NoError(t, err)
	var created api.APIKey
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "cli-key", created.Name)
	assert.NotEmpty(t, created.Key)

	out, err = runCLI(t, "keys", "list")
	require.NoError(t, err)
	var keys []api.APIKey
	require.NoError(t, json.Unmarshal([]byte(out), &keys))
	require.Len(t, keys, 1)
	assert.Empty(t, keys[0].Key)

	_, err = runCLI(t, "keys", "revoke", created.ID.String())
	require.NoError(t, err)

	out, err = runCLI(t, "keys", "list")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &keys))
	assert.Empty(t, keys)
}

func TestKeysRequireCredentials(t *testing.T) {
	startMock(t)
	t.Setenv("TEST_USER_PASSWORD", "")

	_, err := runCLI(t, "keys", "list")
	require.Error(t, err)
	assert.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(err))
}

func TestAutomationSetPlanByEmail(t *testing.T) {
	startMock(t)

	out, err := runCLI(t, "automation", "set-plan", "pro", "--email", "plan@echostash-test.com")
	require.NoError(t, err)
	var resp api.SetPlanResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "pro", resp.PlanName)
	assert.NotEmpty(t, resp.UserID)

	_, err = runCLI(t, "automation", "set-plan", "platinum", "--user-id", resp.UserID.String())
	require.Error(t, err)

	_, err = runCLI(t, "automation", "reset-quotas")
	require.Error(t, err)
	assert.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(err))
}

func TestRejectsUnknownFormat(t *testing.T) {
	startMock(t)
	_, err := runCLI(t, "health", "--format", "csv")
	require.Error(t, err)
	assert.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(err))
}

func TestTables(t *testing.T) {
	smokeT := smokeTable(smoke.Report{
		Env:    "local",
		Passed: false,
		Steps: []smoke.Step{
			{Name: smoke.StepHealth, Status: smoke.StatusPassed, DurationMs: 4, Detail: "UP"},
			{Name: smoke.StepGuest, Status: smoke.StatusFailed, Error: "boom"},
		},
	})
	assert.Equal(t, "FAILED", smokeT.Footer)
	assert.Equal(t, []string{smoke.StepGuest, smoke.StatusFailed, "0ms", "boom"}, smokeT.Rows[1])

	cleanupT := cleanupTable([]CleanupRow{
		{Kind: "project", ResourceID: "1", RunID: "0123456789", Result: "deleted"},
		{Kind: "prompt", ResourceID: "2", RunID: "abc", Result: "failed", Error: "status 500"},
	})
	assert.Equal(t, "1/2 deleted", cleanupT.Footer)
	assert.Equal(t, "01234567", cleanupT.Rows[0][2])
	assert.Equal(t, "failed: status 500", cleanupT.Rows[1][5])

	keysT := keysTable("keys", []api.APIKey{{ID: "7", Name: "k", Key: "esk_x"}}, true)
	assert.Equal(t, "esk_x", keysT.Rows[0][5])
	assert.Len(t, keysTable("keys", nil, false).Headers, 5)

	assert.Equal(t, map[string]string{"db": "UP", "odd": "UNKNOWN"},
		componentStatuses(map[string]any{"db": map[string]any{"status": "UP"}, "odd": "x"}))
}

func TestEnvInfoTableCoversPresets(t *testing.T) {
	cfg := &config.Config{Env: "stage"}
	cfg.API.BaseURL = "https://stage-api.echostash.com"
	cfg.RateLimit.RequestsPerSecond = 2
	cfg.RateLimit.Burst = 4
	cfg.Store.URL = "libsql://ledger.turso.io"

	info := buildEnvInfo(cfg)
	assert.Equal(t, "2.00 rps (burst 4)", info.RateLimit)
	assert.Equal(t, "libsql://ledger.turso.io", info.StoreTarget)
	assert.Equal(t, "(not set)", info.Token)
	assert.NotEmpty(t, envInfoTable(info).Rows)
}

func TestOpenSinkDirectory(t *testing.T) {
	formatFlag = string(output.FormatYAML)
	t.Cleanup(func() { formatFlag = string(output.FormatTable) })

	dir := t.TempDir() + string(os.PathSeparator)
	sink, err := openSink(dir)
	require.NoError(t, err)
	require.NoError(t, sink.close())
	assert.Equal(t, filepath.Join(dir, "echostash-qa.yaml"), sink.path)
}
