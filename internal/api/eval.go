package api

import (
	"context"

	"github.com/echostash/echostash-automation/internal/transport"
)

// Eval run states.
const (
	EvalRunPending   = "pending"
	EvalRunRunning   = "running"
	EvalRunCompleted = "completed"
	EvalRunFailed    = "failed"
)

// EvalDatasetItem is one input row of a dataset.
type EvalDatasetItem struct {
	ID             ID                `json:"id,omitempty"`
	Input          map[string]string `json:"input"`
	ExpectedOutput string            `json:"expectedOutput,omitempty"`
}

// EvalDataset groups inputs used by suites.
type EvalDataset struct {
	ID          ID                `json:"id"`
	PromptID    ID                `json:"promptId,omitempty"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Items       []EvalDatasetItem `json:"items"`
	CreatedAt   string            `json:"createdAt,omitempty"`
}

// CreateEvalDatasetRequest creates a dataset.
type CreateEvalDatasetRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Items       []EvalDatasetItem `json:"items"`
}

// UpdateEvalDatasetRequest replaces dataset fields; nil fields are left alone.
type UpdateEvalDatasetRequest struct {
	Name        *string           `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	Items       []EvalDatasetItem `json:"items,omitempty"`
}

// EvalSuite binds tests to a dataset.
type EvalSuite struct {
	ID          ID         `json:"id"`
	PromptID    ID         `json:"promptId,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	DatasetID   ID         `json:"datasetId"`
	Tests       []EvalTest `json:"tests,omitempty"`
	CreatedAt   string     `json:"createdAt,omitempty"`
}

// CreateEvalSuiteRequest creates a suite.
type CreateEvalSuiteRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	DatasetID   ID     `json:"datasetId"`
}

// UpdateEvalSuiteRequest changes a suite.
type UpdateEvalSuiteRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// EvalTest is one check applied to every dataset item.
type EvalTest struct {
	ID        ID             `json:"id"`
	SuiteID   ID             `json:"suiteId,omitempty"`
	Name      string         `json:"name"`
	Type      string         `json:"type"`
	Config    map[string]any `json:"config"`
	CreatedAt string         `json:"createdAt,omitempty"`
}

// CreateEvalTestRequest creates a test.
type CreateEvalTestRequest struct {
	Name   string         `json:"name"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// UpdateEvalTestRequest changes a test.
type UpdateEvalTestRequest struct {
	Name   *string        `json:"name,omitempty"`
	Type   *string        `json:"type,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

// EvalRunResult is the outcome of one test in a run.
type EvalRunResult struct {
	TestID  ID             `json:"testId"`
	Passed  bool           `json:"passed"`
	Score   float64        `json:"score,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// EvalRun is one execution of a suite.
type EvalRun struct {
	ID          ID              `json:"id"`
	SuiteID     ID              `json:"suiteId,omitempty"`
	Status      string          `json:"status"`
	Results     []EvalRunResult `json:"results,omitempty"`
	StartedAt   string          `json:"startedAt,omitempty"`
	CompletedAt string          `json:"completedAt,omitempty"`
}

// Terminal reports whether the run will not change any more.
func (r EvalRun) Terminal() bool {
	return r.Status == EvalRunCompleted || r.Status == EvalRunFailed
}

// EvalGate blocks publishing below a suite score threshold.
type EvalGate struct {
	ID        ID      `json:"id"`
	PromptID  ID      `json:"promptId,omitempty"`
	SuiteID   ID      `json:"suiteId"`
	Threshold float64 `json:"threshold"`
	Enabled   bool    `json:"enabled"`
	CreatedAt string  `json:"createdAt,omitempty"`
}

// CreateEvalGateRequest creates a gate.
type CreateEvalGateRequest struct {
	SuiteID   ID      `json:"suiteId"`
	Threshold float64 `json:"threshold"`
	Enabled   *bool   `json:"enabled,omitempty"`
}

// UpdateEvalGateRequest changes a gate.
type UpdateEvalGateRequest struct {
	Threshold *float64 `json:"threshold,omitempty"`
	Enabled   *bool    `json:"enabled,omitempty"`
}

// EvalClient covers /api/prompts/{promptId}/eval.
type EvalClient struct {
	tc *transport.Client
}

func evalPath(promptID ID, segments ...string) string {
	return promptPath(promptID, append([]string{"eval"}, segments...)...)
}

// CreateDataset creates a dataset.
func (c *EvalClient) CreateDataset(ctx context.Context, promptID ID, req CreateEvalDatasetRequest) (EvalDataset, error) {
	var out EvalDataset
	_, err := c.tc.Post(ctx, evalPath(promptID, "datasets"), req, &out)
	return out, err
}

// ListDatasets lists datasets.
func (c *EvalClient) ListDatasets(ctx context.Context, promptID ID) ([]EvalDataset, error) {
	var out []EvalDataset
	_, err := c.tc.Get(ctx, evalPath(promptID, "datasets"), &out)
	return out, err
}

// GetDataset returns a dataset.
func (c *EvalClient) GetDataset(ctx context.Context, promptID, datasetID ID) (EvalDataset, error) {
	var out EvalDataset
	_, err := c.tc.Get(ctx, evalPath(promptID, "datasets", datasetID.String()), &out)
	return out, err
}

// UpdateDataset updates a dataset.
func (c *EvalClient) UpdateDataset(ctx context.Context, promptID, datasetID ID, req UpdateEvalDatasetRequest) (EvalDataset, error) {
	var out EvalDataset
	_, err := c.tc.Put(ctx, evalPath(promptID, "datasets", datasetID.String()), req, &out)
	return out, err
}

// DeleteDataset deletes a dataset.
func (c *EvalClient) DeleteDataset(ctx context.Context, promptID, datasetID ID) error {
	_, err := c.tc.Delete(ctx, evalPath(promptID, "datasets", datasetID.String()), nil)
	return err
}

// CreateSuite creates a suite.
func (c *EvalClient) CreateSuite(ctx context.Context, promptID ID, req CreateEvalSuiteRequest) (EvalSuite, error) {
	var out EvalSuite
	_, err := c.tc.Post(ctx, evalPath(promptID, "suites"), req, &out)
	return out, err
}

// ListSuites lists suites.
func (c *EvalClient) ListSuites(ctx context.Context, promptID ID) ([]EvalSuite, error) {
	var out []EvalSuite
	_, err := c.tc.Get(ctx, evalPath(promptID, "suites"), &out)
	return out, err
}

// GetSuite returns a suite.
func (c *EvalClient) GetSuite(ctx context.Context, promptID, suiteID ID) (EvalSuite, error) {
	var out EvalSuite
	_, err := c.tc.Get(ctx, evalPath(promptID, "suites", suiteID.String()), &out)
	return out, err
}

// UpdateSuite updates a suite.
func (c *EvalClient) UpdateSuite(ctx context.Context, promptID, suiteID ID, req UpdateEvalSuiteRequest) (EvalSuite, error) {
	var out EvalSuite
	_, err := c.tc.Put(ctx, evalPath(promptID, "suites", suiteID.String()), req, &out)
	return out, err
}

// DeleteSuite deletes a suite.
func (c *EvalClient) DeleteSuite(ctx context.Context, promptID, suiteID ID) error {
	_, err := c.tc.Delete(ctx, evalPath(promptID, "suites", suiteID.String()), nil)
	return err
}

// CreateTest creates a test in a suite.
func (c *EvalClient) CreateTest(ctx context.Context, promptID, suiteID ID, req CreateEvalTestRequest) (EvalTest, error) {
	var out EvalTest
	_, err := c.tc.Post(ctx, evalPath(promptID, "suites", suiteID.String(), "tests"), req, &out)
	return out, err
}

// ListTests lists the tests of a suite.
func (c *EvalClient) ListTests(ctx context.Context, promptID, suiteID ID) ([]EvalTest, error) {
	var out []EvalTest
	_, err := c.tc.Get(ctx, evalPath(promptID, "suites", suiteID.String(), "tests"), &out)
	return out, err
}

// GetTest returns a test.
func (c *EvalClient) GetTest(ctx context.Context, promptID, suiteID, testID ID) (EvalTest, error) {
	var out EvalTest
	_, err := c.tc.Get(ctx, evalPath(promptID, "suites", suiteID.String(), "tests", testID.String()), &out)
	return out, err
}

// UpdateTest updates a test.
func (c *EvalClient) UpdateTest(ctx context.Context, promptID, suiteID, testID ID, req UpdateEvalTestRequest) (EvalTest, error) {
	var out EvalTest
	_, err := c.tc.Put(ctx, evalPath(promptID, "suites", suiteID.String(), "tests", testID.String()), req, &out)
	return out, err
}

// DeleteTest deletes a test.
func (c *EvalClient) DeleteTest(ctx context.Context, promptID, suiteID, testID ID) error {
	_, err := c.tc.Delete(ctx, evalPath(promptID, "suites", suiteID.String(), "tests", testID.String()), nil)
	return err
}

// StartRun starts a suite run.
func (c *EvalClient) StartRun(ctx context.Context, promptID, suiteID ID) (EvalRun, error) {
	var out EvalRun
	_, err := c.tc.Post(ctx, evalPath(promptID, "suites", suiteID.String(), "runs"), nil, &out)
	return out, err
}

// ListRuns lists the runs of a suite.
func (c *EvalClient) ListRuns(ctx context.Context, promptID, suiteID ID) ([]EvalRun, error) {
	var out []EvalRun
	_, err := c.tc.Get(ctx, evalPath(promptID, "suites", suiteID.String(), "runs"), &out)
	return out, err
}

// GetRun returns a run.
func (c *EvalClient) GetRun(ctx context.Context, promptID, suiteID, runID ID) (EvalRun, error) {
	var out EvalRun
	_, err := c.tc.Get(ctx, evalPath(promptID, "suites", suiteID.String(), "runs", runID.String()), &out)
	return out, err
}

// CreateGate creates a gate.
func (c *EvalClient) CreateGate(ctx context.Context, promptID ID, req CreateEvalGateRequest) (EvalGate, error) {
	var out EvalGate
	_, err := c.tc.Post(ctx, evalPath(promptID, "gates"), req, &out)
	return out, err
}

// ListGates lists gates.
func (c *EvalClient) ListGates(ctx context.Context, promptID ID) ([]EvalGate, error) {
	var out []EvalGate
	_, err := c.tc.Get(ctx, evalPath(promptID, "gates"), &out)
	return out, err
}

// GetGate returns a gate.
func (c *EvalClient) GetGate(ctx context.Context, promptID, gateID ID) (EvalGate, error) {
	var out EvalGate
	_, err := c.tc.Get(ctx, evalPath(promptID, "gates", gateID.String()), &out)
	return out, err
}

// UpdateGate updates a gate.
func (c *EvalClient) UpdateGate(ctx context.Context, promptID, gateID ID, req UpdateEvalGateRequest) (EvalGate, error) {
	var out EvalGate
	_, err := c.tc.Put(ctx, evalPath(promptID, "gates", gateID.String()), req, &out)
	return out, err
}

// DeleteGate deletes a gate.
func (c *EvalClient) DeleteGate(ctx context.Context, promptID, gateID ID) error {
	_, err := c.tc.Delete(ctx, evalPath(promptID, "gates", gateID.String()), nil)
	return err
}
