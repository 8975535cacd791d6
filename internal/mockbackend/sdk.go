package mockbackend

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/echostash/echostash-automation/internal/api"
)

var (
	errPromptNotFound = errors.New("prompt not found")
	errNotPublished   = errors.New("prompt has no published version")
)

// recordRender counts a render and the variables it used. mu must be held.
func recordRender(prompt *promptRecord, variables map[string]string) {
	prompt.renders++
	for name := range variables {
		prompt.variables[name]++
	}
}

// renderPublished renders the published version for owner. mu must be held.
func (s *Server) renderPublished(owner int64, promptID api.ID, variables map[string]string) (api.RenderResponse, error) {
	id, ok := promptID.Int64()
	prompt := s.state.prompts[id]
	if !ok || prompt == nil || prompt.owner != owner {
		return api.RenderResponse{}, errPromptNotFound
	}
	version := prompt.publishedVersion()
	if version == nil {
		return api.RenderResponse{}, errNotPublished
	}
	recordRender(prompt, variables)
	return api.RenderResponse{
		PromptID: api.IDFromInt(prompt.id),
		Rendered: renderTemplate(version.content, variables),
		Version:  version.no,
	}, nil
}

// queryVariables collects variables[name]=value query parameters.
func queryVariables(r *http.Request) map[string]string {
	out := map[string]string{}
	for key, values := range r.URL.Query() {
		name, ok := strings.CutPrefix(key, "variables[")
		if !ok || !strings.HasSuffix(name, "]") || len(values) == 0 {
			continue
		}
		out[strings.TrimSuffix(name, "]")] = values[0]
	}
	return out
}

func sdkPromptView(prompt *promptRecord, v *versionRecord, variables map[string]string) api.SDKPrompt {
	out := api.SDKPrompt{ID: api.IDFromInt(prompt.id), Name: prompt.name}
	if v != nil {
		out.Content = v.content
		out.Version = v.no
		out.VersionNo = v.no
	}
	if len(variables) > 0 {
		out.Content = renderTemplate(out.Content, variables)
		out.Variables = variables
	}
	return out
}

func (s *Server) handleSDKGetPrompt(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	selector := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("version")))
	variables := queryVariables(r)

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	var v *versionRecord
	switch selector {
	case "", "published":
		v = prompt.publishedVersion()
		if v == nil {
			v = prompt.latest()
		}
	case "latest":
		v = prompt.latest()
	default:
		no, err := strconv.Atoi(selector)
		if err != nil {
			badRequest(w, r, "version must be a number, \"published\" or \"latest\"")
			return
		}
		if v = prompt.version(no); v == nil {
			notFound(w, r, "Version")
			return
		}
	}
	if len(variables) > 0 {
		recordRender(prompt, variables)
	}
	writeJSON(w, http.StatusOK, sdkPromptView(prompt, v, variables))
}

func (s *Server) handleSDKGetVersion(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	no, ok := versionParam(r)
	s.state.mu.Lock()
	var v *versionRecord
	if ok {
		v = prompt.version(no)
	}
	var view api.SDKPrompt
	if v != nil {
		view = sdkPromptView(prompt, v, nil)
	}
	s.state.mu.Unlock()

	if v == nil {
		notFound(w, r, "Version")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var body api.RenderItem
	if !decodeOrReject(w, r, &body) {
		return
	}
	if body.PromptID.IsZero() {
		badRequest(w, r, "promptId is required")
		return
	}
	caller := principalFrom(r.Context())

	s.state.mu.Lock()
	out, err := s.renderPublished(caller.id, body.PromptID, body.Variables)
	s.state.mu.Unlock()

	switch {
	case errors.Is(err, errPromptNotFound):
		notFound(w, r, "Prompt")
	case errors.Is(err, errNotPublished):
		writeError(w, r, http.StatusNotFound, "Prompt %s has no published version", body.PromptID)
	default:
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleBatchRender(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items []api.RenderItem `json:"items"`
	}
	if !decodeOrReject(w, r, &body) {
		return
	}
	if len(body.Items) == 0 {
		badRequest(w, r, "items must not be empty")
		return
	}
	if len(body.Items) > api.MaxBatchRenderItems {
		badRequest(w, r, "at most %d items per batch", api.MaxBatchRenderItems)
		return
	}
	caller := principalFrom(r.Context())

	out := api.BatchRenderResponse{Results: make([]api.BatchRenderResult, 0, len(body.Items))}
	s.state.mu.Lock()
	for _, item := range body.Items {
		rendered, err := s.renderPublished(caller.id, item.PromptID, item.Variables)
		if err != nil {
			out.ErrorCount++
			out.Results = append(out.Results, api.BatchRenderResult{PromptID: item.PromptID, Error: err.Error()})
			continue
		}
		out.SuccessCount++
		out.Results = append(out.Results, api.BatchRenderResult{
			PromptID: rendered.PromptID,
			Success:  true,
			Rendered: rendered.Rendered,
			Version:  rendered.Version,
		})
	}
	s.state.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}
