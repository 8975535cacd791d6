package regression

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echostash/echostash-automation/internal/api"
	"github.com/echostash/echostash-automation/internal/fixtures"
	"github.com/echostash/echostash-automation/internal/testkit"
)

func TestEvalDatasets(t *testing.T) {
	env := testkit.Target(t)
	ctx := testContext(t)
	c := env.MustGuestClient(t)
	_, prompt := published(t, testkit.Track(t, c), greeting)

	dataset, err := c.Eval.CreateDataset(ctx, prompt.ID, fixtures.NewEvalDatasetBuilder().
		WithName(fixtures.UniqueName("dataset")).
		AddItem(fixtures.EvalDatasetItemData(nil, "Alice")).
		Build())
	require.NoError(t, err)
	require.Len(t, dataset.Items, 1)

	name := fixtures.UniqueName("renamed")
	updated, err := c.Eval.UpdateDataset(ctx, prompt.ID, dataset.ID, api.UpdateEvalDatasetRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)

	all, err := c.Eval.ListDatasets(ctx, prompt.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, c.Eval.DeleteDataset(ctx, prompt.ID, dataset.ID))
	_, err = c.Eval.GetDataset(ctx, prompt.ID, dataset.ID)
	testkit.ExpectStatus(t, err, http.StatusNotFound)
}

func TestEvalSuitesAndRuns(t *testing.T) {
	env := testkit.Target(t)
	ctx := testContext(t)
	c := env.MustGuestClient(t)
	_, prompt := published(t, testkit.Track(t, c), greeting)

	dataset, err := c.Eval.CreateDataset(ctx, prompt.ID, fixtures.EvalDatasetData())
	require.NoError(t, err)
	suite, err := c.Eval.CreateSuite(ctx, prompt.ID, fixtures.NewEvalSuiteBuilder(dataset.ID).
		WithName(fixtures.UniqueName("suite")).
		Build())
	require.NoError(t, err)
	assert.Equal(t, dataset.ID, suite.DatasetID)

	test, err := c.Eval.CreateTest(ctx, prompt.ID, suite.ID, fixtures.EvalTestData())
	require.NoError(t, err)

	t.Run("TestCRUD", func(t *testing.T) {
		tests, err := c.Eval.ListTests(ctx, prompt.ID, suite.ID)
		require.NoError(t, err)
		require.Len(t, tests, 1)

		renamed := fixtures.UniqueName("contains-hello")
		updated, err := c.Eval.UpdateTest(ctx, prompt.ID, suite.ID, test.ID, api.UpdateEvalTestRequest{Name: &renamed})
		require.NoError(t, err)
		assert.Equal(t, renamed, updated.Name)

		_, err = c.Eval.CreateTest(ctx, prompt.ID, suite.ID, api.CreateEvalTestRequest{Name: "bad", Type: "telepathy"})
		testkit.ExpectStatus(t, err, http.StatusBadRequest)
	})

	t.Run("RunCompletes", func(t *testing.T) {
		run, err := c.Eval.StartRun(ctx, prompt.ID, suite.ID)
		require.NoError(t, err)

		done, err := testkit.WaitForEvalRun(ctx, c, prompt.ID, suite.ID, run.ID, testkit.PollOptions{
			Timeout:  30 * time.Second,
			Interval: 100 * time.Millisecond,
		})
		require.NoError(t, err)
		assert.Equal(t, api.EvalRunCompleted, done.Status)
		require.NotEmpty(t, done.Results)
		assert.True(t, done.Results[0].Passed)

		runs, err := c.Eval.ListRuns(ctx, prompt.ID, suite.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, runs)
	})

	t.Run("Gates", func(t *testing.T) {
		gate, err := c.Eval.CreateGate(ctx, prompt.ID, fixtures.EvalGateData(suite.ID))
		require.NoError(t, err)
		assert.True(t, gate.Enabled)
		assert.InDelta(t, fixtures.DefaultGateThreshold, gate.Threshold, 1e-9)

		threshold := 0.5
		disabled := false
		updated, err := c.Eval.UpdateGate(ctx, prompt.ID, gate.ID, api.UpdateEvalGateRequest{Threshold: &threshold, Enabled: &disabled})
		require.NoError(t, err)
		assert.InDelta(t, 0.5, updated.Threshold, 1e-9)
		assert.False(t, updated.Enabled)

		require.NoError(t, c.Eval.DeleteGate(ctx, prompt.ID, gate.ID))
		_, err = c.Eval.GetGate(ctx, prompt.ID, gate.ID)
		testkit.ExpectStatus(t, err, http.StatusNotFound)
	})

	t.Run("DeleteSuite", func(t *testing.T) {
		require.NoError(t, c.Eval.DeleteSuite(ctx, prompt.ID, suite.ID))
		_, err := c.Eval.GetSuite(ctx, prompt.ID, suite.ID)
		testkit.ExpectStatus(t, err, http.StatusNotFound)
	})
}
