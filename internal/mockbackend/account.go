package mockbackend

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/echostash/echostash-automation/internal/api"
)

// APIKeyPrefix starts every raw key the mock issues.
const APIKeyPrefix = "esk_"

// Cost charged per render when computing spending.
const renderCost = 0.002

type planLimits struct {
	prompts int64
	renders int64
}

var limitsByPlan = map[string]planLimits{
	"free": {prompts: 50, renders: 1000},
	"pro":  {prompts: 1000, renders: 10000},
	"team": {prompts: 10000, renders: 100000},
}

func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeOrReject(w, r, &body) {
		return
	}
	if blank(body.Name) {
		badRequest(w, r, "name must not be blank")
		return
	}
	caller := principalFrom(r.Context())

	s.state.mu.Lock()
	record := &apiKeyRecord{
		id:        s.state.id(),
		owner:     caller.id,
		name:      strings.TrimSpace(body.Name),
		key:       APIKeyPrefix + strings.ReplaceAll(uuid.NewString(), "-", ""),
		createdAt: s.state.now(),
	}
	s.state.apiKeys[record.id] = record
	view := record.view()
	view.Key = record.key
	s.state.mu.Unlock()

	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	caller := principalFrom(r.Context())
	s.state.mu.Lock()
	out := []api.APIKey{}
	for _, id := range sortedKeys(s.state.apiKeys) {
		if record := s.state.apiKeys[id]; record.owner == caller.id {
			out = append(out, record.view())
		}
	}
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "keyID")
	caller := principalFrom(r.Context())

	s.state.mu.Lock()
	record := s.state.apiKeys[id]
	owned := err == nil && record != nil && record.owner == caller.id
	if owned {
		delete(s.state.apiKeys, id)
	}
	s.state.mu.Unlock()

	if !owned {
		notFound(w, r, "API key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// renderTotals sums render counts over the caller's prompts. mu must be held.
func (s *Server) renderTotals(owner int64) (prompts, renders int) {
	for _, prompt := range s.state.prompts {
		if prompt.owner == owner {
			prompts++
			renders += prompt.renders
		}
	}
	return prompts, renders
}

func (s *Server) handleBillingMe(w http.ResponseWriter, r *http.Request) {
	caller := principalFrom(r.Context())
	s.state.mu.Lock()
	profile := api.BillingProfile{ID: api.IDFromInt(caller.id), Plan: caller.plan, Status: "active"}
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleBillingPortal(w http.ResponseWriter, r *http.Request) {
	caller := principalFrom(r.Context())
	writeJSON(w, http.StatusOK, api.BillingPortal{URL: fmt.Sprintf("https://billing.echostash.local/portal/%d", caller.id)})
}

func (s *Server) handleBillingQuotas(w http.ResponseWriter, r *http.Request) {
	caller := principalFrom(r.Context())
	s.state.mu.Lock()
	prompts, renders := s.renderTotals(caller.id)
	_, storage := s.usage(caller.id)
	limits, ok := limitsByPlan[caller.plan]
	s.state.mu.Unlock()
	if !ok {
		limits = limitsByPlan["free"]
	}

	writeJSON(w, http.StatusOK, api.BillingQuotas{
		Prompts: api.Quota{Used: int64(prompts), Limit: limits.prompts},
		Renders: api.Quota{Used: int64(renders), Limit: limits.renders},
		Storage: api.Quota{Used: storage, Limit: ContextStoreQuota},
	})
}

// spending must be called with mu held.
func (s *Server) spending(u *user) api.Spending {
	_, renders := s.renderTotals(u.id)
	return api.Spending{CurrentMonth: float64(renders) * renderCost, Limit: u.spendingLimit}
}

func (s *Server) handleGetSpending(w http.ResponseWriter, r *http.Request) {
	caller := principalFrom(r.Context())
	s.state.mu.Lock()
	out := s.spending(caller)
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateSpending(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Limit *float64 `json:"limit"`
	}
	if !decodeOrReject(w, r, &body) {
		return
	}
	if body.Limit == nil || *body.Limit < 0 {
		badRequest(w, r, "limit must be a non-negative number")
		return
	}
	caller := principalFrom(r.Context())

	s.state.mu.Lock()
	caller.spendingLimit = *body.Limit
	out := s.spending(caller)
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSpendingHistory(w http.ResponseWriter, r *http.Request) {
	caller := principalFrom(r.Context())
	s.state.mu.Lock()
	current := s.spending(caller).CurrentMonth
	now := s.state.now().UTC()
	s.state.mu.Unlock()

	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	history := make([]api.SpendingHistoryEntry, 0, 3)
	for i := 0; i < 3; i++ {
		entry := api.SpendingHistoryEntry{Month: month.AddDate(0, -i, 0).Format("2006-01")}
		if i == 0 {
			entry.Amount = current
		}
		history = append(history, entry)
	}
	writeJSON(w, http.StatusOK, history)
}

func periodFrom(r *http.Request, now time.Time) api.Period {
	period := api.Period{From: r.URL.Query().Get("from"), To: r.URL.Query().Get("to")}
	if period.To == "" {
		period.To = now.UTC().Format("2006-01-02")
	}
	if period.From == "" {
		period.From = now.UTC().AddDate(0, 0, -30).Format("2006-01-02")
	}
	return period
}

func (s *Server) handleAnalyticsOverview(w http.ResponseWriter, r *http.Request) {
	caller := principalFrom(r.Context())
	s.state.mu.Lock()
	prompts, renders := s.renderTotals(caller.id)
	projects := 0
	for _, project := range s.state.projects {
		if project.owner == caller.id {
			projects++
		}
	}
	now := s.state.now()
	s.state.mu.Unlock()

	writeJSON(w, http.StatusOK, api.AnalyticsOverview{
		TotalPrompts:  prompts,
		TotalRenders:  renders,
		TotalProjects: projects,
		Period:        periodFrom(r, now),
	})
}

func (s *Server) handleTopPrompts(w http.ResponseWriter, r *http.Request) {
	caller := principalFrom(r.Context())
	limit := queryInt(r, "limit", 10)
	if limit == 0 {
		limit = 10
	}

	s.state.mu.Lock()
	var owned []*promptRecord
	for _, id := range sortedKeys(s.state.prompts) {
		if prompt := s.state.prompts[id]; prompt.owner == caller.id {
			owned = append(owned, prompt)
		}
	}
	sort.SliceStable(owned, func(i, j int) bool { return owned[i].renders > owned[j].renders })
	out := []api.Prompt{}
	for _, prompt := range owned {
		if len(out) == limit {
			break
		}
		out = append(out, s.promptView(prompt))
	}
	s.state.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePromptMetrics(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	s.state.mu.Lock()
	metrics := api.PromptMetrics{PromptID: api.IDFromInt(prompt.id), Renders: prompt.renders}
	s.state.mu.Unlock()
	if metrics.Renders > 0 {
		metrics.AvgLatency = 12.5
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) handleVariableUsage(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	s.state.mu.Lock()
	usage := api.VariableUsage{PromptID: api.IDFromInt(prompt.id), Variables: map[string]int{}}
	for name, count := range prompt.variables {
		usage.Variables[name] = count
	}
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, usage)
}
