package mockbackend

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/echostash/echostash-automation/internal/api"
)

// Eval test types the mock can score.
var evalTestTypes = map[string]bool{
	"contains":     true,
	"not_contains": true,
	"exact":        true,
	"regex":        true,
}

func (s *Server) registerEvalRoutes(r chi.Router) {
	r.Post("/datasets", s.handleCreateDataset)
	r.Get("/datasets", s.handleListDatasets)
	r.Get("/datasets/{datasetID}", s.handleGetDataset)
	r.Put("/datasets/{datasetID}", s.handleUpdateDataset)
	r.Delete("/datasets/{datasetID}", s.handleDeleteDataset)

	r.Post("/suites", s.handleCreateSuite)
	r.Get("/suites", s.handleListSuites)
	r.Get("/suites/{suiteID}", s.handleGetSuite)
	r.Put("/suites/{suiteID}", s.handleUpdateSuite)
	r.Delete("/suites/{suiteID}", s.handleDeleteSuite)

	r.Post("/suites/{suiteID}/tests", s.handleCreateTest)
	r.Get("/suites/{suiteID}/tests", s.handleListTests)
	r.Get("/suites/{suiteID}/tests/{testID}", s.handleGetTest)
	r.Put("/suites/{suiteID}/tests/{testID}", s.handleUpdateTest)
	r.Delete("/suites/{suiteID}/tests/{testID}", s.handleDeleteTest)

	r.Post("/suites/{suiteID}/runs", s.handleStartRun)
	r.Get("/suites/{suiteID}/runs", s.handleListRuns)
	r.Get("/suites/{suiteID}/runs/{runID}", s.handleGetRun)

	r.Post("/gates", s.handleCreateGate)
	r.Get("/gates", s.handleListGates)
	r.Get("/gates/{gateID}", s.handleGetGate)
	r.Put("/gates/{gateID}", s.handleUpdateGate)
	r.Delete("/gates/{gateID}", s.handleDeleteGate)
}

func cloneItems(items []api.EvalDatasetItem) []api.EvalDatasetItem {
	out := make([]api.EvalDatasetItem, 0, len(items))
	return append(out, items...)
}

// assignItemIDs numbers dataset items. mu must be held.
func (s *Server) assignItemIDs(items []api.EvalDatasetItem) []api.EvalDatasetItem {
	out := cloneItems(items)
	for i := range out {
		if out[i].ID.IsZero() {
			out[i].ID = api.IDFromInt(s.state.id())
		}
	}
	return out
}

func (s *Server) ownedDataset(w http.ResponseWriter, r *http.Request, prompt *promptRecord) (*datasetRecord, bool) {
	id, err := pathID(r, "datasetID")
	s.state.mu.Lock()
	dataset := s.state.datasets[id]
	s.state.mu.Unlock()
	if err != nil || dataset == nil || dataset.promptID != prompt.id {
		notFound(w, r, "Dataset")
		return nil, false
	}
	return dataset, true
}

func (s *Server) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	var body api.CreateEvalDatasetRequest
	if !decodeOrReject(w, r, &body) {
		return
	}
	if blank(body.Name) {
		badRequest(w, r, "name must not be blank")
		return
	}

	s.state.mu.Lock()
	id := s.state.id()
	dataset := &datasetRecord{
		promptID: prompt.id,
		EvalDataset: api.EvalDataset{
			ID:          api.IDFromInt(id),
			PromptID:    api.IDFromInt(prompt.id),
			Name:        body.Name,
			Description: body.Description,
			Items:       s.assignItemIDs(body.Items),
			CreatedAt:   timestamp(s.state.now()),
		},
	}
	s.state.datasets[id] = dataset
	view := dataset.EvalDataset
	s.state.mu.Unlock()

	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	s.state.mu.Lock()
	out := []api.EvalDataset{}
	for _, id := range sortedKeys(s.state.datasets) {
		if dataset := s.state.datasets[id]; dataset.promptID == prompt.id {
			out = append(out, dataset.EvalDataset)
		}
	}
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	dataset, ok := s.ownedDataset(w, r, prompt)
	if !ok {
		return
	}
	s.state.mu.Lock()
	view := dataset.EvalDataset
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdateDataset(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	dataset, ok := s.ownedDataset(w, r, prompt)
	if !ok {
		return
	}
	var body api.UpdateEvalDatasetRequest
	if !decodeOrReject(w, r, &body) {
		return
	}
	if body.Name != nil && blank(*body.Name) {
		badRequest(w, r, "name must not be blank")
		return
	}

	s.state.mu.Lock()
	if body.Name != nil {
		dataset.Name = *body.Name
	}
	if body.Description != nil {
		dataset.Description = *body.Description
	}
	if body.Items != nil {
		dataset.Items = s.assignItemIDs(body.Items)
	}
	view := dataset.EvalDataset
	s.state.mu.Unlock()

	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	dataset, ok := s.ownedDataset(w, r, prompt)
	if !ok {
		return
	}
	id, _ := dataset.ID.Int64()
	s.state.mu.Lock()
	delete(s.state.datasets, id)
	s.state.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// suiteView attaches the suite's tests. mu must be held.
func (s *Server) suiteView(suite *suiteRecord) api.EvalSuite {
	view := suite.EvalSuite
	view.Tests = nil
	suiteID, _ := suite.ID.Int64()
	for _, id := range sortedKeys(s.state.tests) {
		if test := s.state.tests[id]; test.suiteID == suiteID {
			view.Tests = append(view.Tests, test.EvalTest)
		}
	}
	return view
}

func (s *Server) ownedSuite(w http.ResponseWriter, r *http.Request, prompt *promptRecord) (*suiteRecord, bool) {
	id, err := pathID(r, "suiteID")
	s.state.mu.Lock()
	suite := s.state.suites[id]
	s.state.mu.Unlock()
	if err != nil || suite == nil || suite.promptID != prompt.id {
		notFound(w, r, "Suite")
		return nil, false
	}
	return suite, true
}

func (s *Server) handleCreateSuite(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	var body api.CreateEvalSuiteRequest
	if !decodeOrReject(w, r, &body) {
		return
	}
	if blank(body.Name) {
		badRequest(w, r, "name must not be blank")
		return
	}
	datasetID, ok := body.DatasetID.Int64()
	if !ok {
		badRequest(w, r, "datasetId is required")
		return
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if dataset := s.state.datasets[datasetID]; dataset == nil || dataset.promptID != prompt.id {
		notFound(w, r, "Dataset")
		return
	}
	id := s.state.id()
	suite := &suiteRecord{
		promptID: prompt.id,
		EvalSuite: api.EvalSuite{
			ID:          api.IDFromInt(id),
			PromptID:    api.IDFromInt(prompt.id),
			Name:        body.Name,
			Description: body.Description,
			DatasetID:   api.IDFromInt(datasetID),
			CreatedAt:   timestamp(s.state.now()),
		},
	}
	s.state.suites[id] = suite
	writeJSON(w, http.StatusCreated, s.suiteView(suite))
}

func (s *Server) handleListSuites(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	s.state.mu.Lock()
	out := []api.EvalSuite{}
	for _, id := range sortedKeys(s.state.suites) {
		if suite := s.state.suites[id]; suite.promptID == prompt.id {
			out = append(out, s.suiteView(suite))
		}
	}
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSuite(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	suite, ok := s.ownedSuite(w, r, prompt)
	if !ok {
		return
	}
	s.state.mu.Lock()
	view := s.suiteView(suite)
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdateSuite(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	suite, ok := s.ownedSuite(w, r, prompt)
	if !ok {
		return
	}
	var body api.UpdateEvalSuiteRequest
	if !decodeOrReject(w, r, &body) {
		return
	}
	if body.Name != nil && blank(*body.Name) {
		badRequest(w, r, "name must not be blank")
		return
	}

	s.state.mu.Lock()
	if body.Name != nil {
		suite.Name = *body.Name
	}
	if body.Description != nil {
		suite.Description = *body.Description
	}
	view := s.suiteView(suite)
	s.state.mu.Unlock()

	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteSuite(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	suite, ok := s.ownedSuite(w, r, prompt)
	if !ok {
		return
	}
	id, _ := suite.ID.Int64()
	s.state.mu.Lock()
	s.removeSuite(id)
	s.state.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// removeSuite deletes a suite with its tests, runs and gates. mu must be held.
func (s *Server) removeSuite(id int64) {
	delete(s.state.suites, id)
	for testID, test := range s.state.tests {
		if test.suiteID == id {
			delete(s.state.tests, testID)
		}
	}
	for runID, run := range s.state.runs {
		if run.suiteID == id {
			delete(s.state.runs, runID)
		}
	}
	suiteID := api.IDFromInt(id)
	for gateID, gate := range s.state.gates {
		if gate.SuiteID == suiteID {
			delete(s.state.gates, gateID)
		}
	}
}

func validateTest(name, testType string, config map[string]any) error {
	if blank(name) {
		return fmt.Errorf("name must not be blank")
	}
	if !evalTestTypes[testType] {
		return fmt.Errorf("unsupported test type %q", testType)
	}
	if testType == "regex" {
		pattern, _ := config["value"].(string)
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid regex: %w", err)
		}
	}
	return nil
}

func (s *Server) ownedTest(w http.ResponseWriter, r *http.Request, suite *suiteRecord) (*testRecord, bool) {
	id, err := pathID(r, "testID")
	suiteID, _ := suite.ID.Int64()
	s.state.mu.Lock()
	test := s.state.tests[id]
	s.state.mu.Unlock()
	if err != nil || test == nil || test.suiteID != suiteID {
		notFound(w, r, "Test")
		return nil, false
	}
	return test, true
}

func (s *Server) handleCreateTest(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	suite, ok := s.ownedSuite(w, r, prompt)
	if !ok {
		return
	}
	var body api.CreateEvalTestRequest
	if !decodeOrReject(w, r, &body) {
		return
	}
	if err := validateTest(body.Name, body.Type, body.Config); err != nil {
		badRequest(w, r, "%s", err.Error())
		return
	}

	suiteID, _ := suite.ID.Int64()
	s.state.mu.Lock()
	id := s.state.id()
	test := &testRecord{
		suiteID: suiteID,
		EvalTest: api.EvalTest{
			ID:        api.IDFromInt(id),
			SuiteID:   suite.ID,
			Name:      body.Name,
			Type:      body.Type,
			Config:    body.Config,
			CreatedAt: timestamp(s.state.now()),
		},
	}
	s.state.tests[id] = test
	view := test.EvalTest
	s.state.mu.Unlock()

	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleListTests(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	suite, ok := s.ownedSuite(w, r, prompt)
	if !ok {
		return
	}
	s.state.mu.Lock()
	view := s.suiteView(suite)
	s.state.mu.Unlock()
	tests := view.Tests
	if tests == nil {
		tests = []api.EvalTest{}
	}
	writeJSON(w, http.StatusOK, tests)
}

func (s *Server) handleGetTest(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	suite, ok := s.ownedSuite(w, r, prompt)
	if !ok {
		return
	}
	test, ok := s.ownedTest(w, r, suite)
	if !ok {
		return
	}
	s.state.mu.Lock()
	view := test.EvalTest
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdateTest(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	suite, ok := s.ownedSuite(w, r, prompt)
	if !ok {
		return
	}
	test, ok := s.ownedTest(w, r, suite)
	if !ok {
		return
	}
	var body api.UpdateEvalTestRequest
	if !decodeOrReject(w, r, &body) {
		return
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	name, testType, config := test.Name, test.Type, test.Config
	if body.Name != nil {
		name = *body.Name
	}
	if body.Type != nil {
		testType = *body.Type
	}
	if body.Config != nil {
		config = body.Config
	}
	if err := validateTest(name, testType, config); err != nil {
		badRequest(w, r, "%s", err.Error())
		return
	}
	test.Name, test.Type, test.Config = name, testType, config
	writeJSON(w, http.StatusOK, test.EvalTest)
}

func (s *Server) handleDeleteTest(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	suite, ok := s.ownedSuite(w, r, prompt)
	if !ok {
		return
	}
	test, ok := s.ownedTest(w, r, suite)
	if !ok {
		return
	}
	id, _ := test.ID.Int64()
	s.state.mu.Lock()
	delete(s.state.tests, id)
	s.state.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// scoreTest runs one test over every dataset item against content.
func scoreTest(test api.EvalTest, content string, items []api.EvalDatasetItem) api.EvalRunResult {
	expected, _ := test.Config["value"].(string)
	passed := 0
	for _, item := range items {
		output := renderTemplate(content, item.Input)
		want := expected
		if want == "" {
			want = item.ExpectedOutput
		}
		var ok bool
		switch test.Type {
		case "contains":
			ok = strings.Contains(output, want)
		case "not_contains":
			ok = !strings.Contains(output, want)
		case "exact":
			ok = output == want
		case "regex":
			ok = regexp.MustCompile(want).MatchString(output)
		}
		if ok {
			passed++
		}
	}

	score := 0.0
	if len(items) > 0 {
		score = float64(passed) / float64(len(items))
	}
	return api.EvalRunResult{
		TestID:  test.ID,
		Passed:  len(items) > 0 && passed == len(items),
		Score:   score,
		Details: map[string]any{"passed": passed, "total": len(items)},
	}
}

// executeRun scores the suite against the prompt's latest version; runs
// finish synchronously. mu must be held.
func (s *Server) executeRun(prompt *promptRecord, suite *suiteRecord) *runRecord {
	suiteID, _ := suite.ID.Int64()
	now := timestamp(s.state.now())
	run := &runRecord{
		suiteID: suiteID,
		EvalRun: api.EvalRun{
			ID:          api.IDFromInt(s.state.id()),
			SuiteID:     suite.ID,
			StartedAt:   now,
			CompletedAt: now,
		},
	}

	version := prompt.latest()
	datasetID, _ := suite.DatasetID.Int64()
	dataset := s.state.datasets[datasetID]
	if version == nil || dataset == nil {
		run.Status = api.EvalRunFailed
		return run
	}

	run.Status = api.EvalRunCompleted
	for _, test := range s.suiteView(suite).Tests {
		run.Results = append(run.Results, scoreTest(test, version.content, dataset.Items))
	}
	return run
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	suite, ok := s.ownedSuite(w, r, prompt)
	if !ok {
		return
	}

	s.state.mu.Lock()
	run := s.executeRun(prompt, suite)
	id, _ := run.ID.Int64()
	s.state.runs[id] = run
	view := run.EvalRun
	s.state.mu.Unlock()

	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	suite, ok := s.ownedSuite(w, r, prompt)
	if !ok {
		return
	}
	suiteID, _ := suite.ID.Int64()
	s.state.mu.Lock()
	out := []api.EvalRun{}
	for _, id := range sortedKeys(s.state.runs) {
		if run := s.state.runs[id]; run.suiteID == suiteID {
			out = append(out, run.EvalRun)
		}
	}
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	suite, ok := s.ownedSuite(w, r, prompt)
	if !ok {
		return
	}
	id, err := pathID(r, "runID")
	suiteID, _ := suite.ID.Int64()
	s.state.mu.Lock()
	run := s.state.runs[id]
	var view api.EvalRun
	if run != nil {
		view = run.EvalRun
	}
	s.state.mu.Unlock()
	if err != nil || run == nil || run.suiteID != suiteID {
		notFound(w, r, "Run")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) ownedGate(w http.ResponseWriter, r *http.Request, prompt *promptRecord) (*gateRecord, bool) {
	id, err := pathID(r, "gateID")
	s.state.mu.Lock()
	gate := s.state.gates[id]
	s.state.mu.Unlock()
	if err != nil || gate == nil || gate.promptID != prompt.id {
		notFound(w, r, "Gate")
		return nil, false
	}
	return gate, true
}

func validThreshold(v float64) bool {
	return v >= 0 && v <= 1
}

func (s *Server) handleCreateGate(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	var body api.CreateEvalGateRequest
	if !decodeOrReject(w, r, &body) {
		return
	}
	suiteID, ok := body.SuiteID.Int64()
	if !ok {
		badRequest(w, r, "suiteId is required")
		return
	}
	if !validThreshold(body.Threshold) {
		badRequest(w, r, "threshold must be between 0 and 1")
		return
	}
	enabled := true
	if body.Enabled != nil {
		enabled = *body.Enabled
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if suite := s.state.suites[suiteID]; suite == nil || suite.promptID != prompt.id {
		notFound(w, r, "Suite")
		return
	}
	id := s.state.id()
	gate := &gateRecord{
		promptID: prompt.id,
		EvalGate: api.EvalGate{
			ID:        api.IDFromInt(id),
			PromptID:  api.IDFromInt(prompt.id),
			SuiteID:   api.IDFromInt(suiteID),
			Threshold: body.Threshold,
			Enabled:   enabled,
			CreatedAt: timestamp(s.state.now()),
		},
	}
	s.state.gates[id] = gate
	writeJSON(w, http.StatusCreated, gate.EvalGate)
}

func (s *Server) handleListGates(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	s.state.mu.Lock()
	out := []api.EvalGate{}
	for _, id := range sortedKeys(s.state.gates) {
		if gate := s.state.gates[id]; gate.promptID == prompt.id {
			out = append(out, gate.EvalGate)
		}
	}
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetGate(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	gate, ok := s.ownedGate(w, r, prompt)
	if !ok {
		return
	}
	s.state.mu.Lock()
	view := gate.EvalGate
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdateGate(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	gate, ok := s.ownedGate(w, r, prompt)
	if !ok {
		return
	}
	var body api.UpdateEvalGateRequest
	if !decodeOrReject(w, r, &body) {
		return
	}
	if body.Threshold != nil && !validThreshold(*body.Threshold) {
		badRequest(w, r, "threshold must be between 0 and 1")
		return
	}

	s.state.mu.Lock()
	if body.Threshold != nil {
		gate.Threshold = *body.Threshold
	}
	if body.Enabled != nil {
		gate.Enabled = *body.Enabled
	}
	view := gate.EvalGate
	s.state.mu.Unlock()

	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteGate(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	gate, ok := s.ownedGate(w, r, prompt)
	if !ok {
		return
	}
	id, _ := gate.ID.Int64()
	s.state.mu.Lock()
	delete(s.state.gates, id)
	s.state.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}
