package mockbackend

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/echostash/echostash-automation/internal/api"
)

func normalizeVisibility(v string) (string, bool) {
	switch upper := strings.ToUpper(strings.TrimSpace(v)); upper {
	case api.VisibilityPrivate, api.VisibilityUnlisted, api.VisibilityPublic:
		return upper, true
	default:
		return "", false
	}
}

// promptView renders a prompt record. mu must be held.
func (s *Server) promptView(p *promptRecord) api.Prompt {
	out := api.Prompt{
		ID:            api.IDFromInt(p.id),
		Name:          p.name,
		Description:   p.description,
		ProjectID:     api.IDFromInt(p.projectID),
		Visibility:    p.visibility,
		LatestVersion: len(p.versions),
		PublishedNo:   p.published,
		CreatedAt:     timestamp(p.createdAt),
		UpdatedAt:     timestamp(p.updatedAt),
	}
	if v := p.publishedVersion(); v != nil {
		out.Content = v.content
	} else if v := p.latest(); v != nil {
		out.Content = v.content
	}
	for _, tagID := range p.tags {
		if tag := s.state.tags[tagID]; tag != nil {
			out.Tags = append(out.Tags, *tag)
		}
	}
	return out
}

func versionView(promptID int64, v *versionRecord) api.PromptVersion {
	return api.PromptVersion{
		ID:            api.IDFromInt(v.id),
		PromptID:      api.IDFromInt(promptID),
		VersionNo:     v.no,
		Content:       v.content,
		ChangeMessage: v.changeMessage,
		CreatedAt:     timestamp(v.createdAt),
	}
}

// lookupPrompt resolves {promptID}. Owners always see their prompts; other
// callers only see shared ones when readOnly is set.
func (s *Server) lookupPrompt(w http.ResponseWriter, r *http.Request, readOnly bool) (*promptRecord, bool) {
	id, err := pathID(r, "promptID")
	if err != nil {
		notFound(w, r, "Prompt")
		return nil, false
	}
	caller := principalFrom(r.Context())

	s.state.mu.Lock()
	prompt := s.state.prompts[id]
	s.state.mu.Unlock()

	if prompt == nil {
		notFound(w, r, "Prompt")
		return nil, false
	}
	if caller == nil || prompt.owner != caller.id {
		if !readOnly || prompt.visibility == api.VisibilityPrivate {
			notFound(w, r, "Prompt")
			return nil, false
		}
	}
	return prompt, true
}

func (s *Server) ownedPrompt(w http.ResponseWriter, r *http.Request) (*promptRecord, bool) {
	return s.lookupPrompt(w, r, false)
}

func (s *Server) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	var body api.CreatePromptRequest
	if !decodeOrReject(w, r, &body) {
		return
	}
	if blank(body.Name) {
		badRequest(w, r, "name must not be blank")
		return
	}
	projectID, ok := body.ProjectID.Int64()
	if !ok {
		badRequest(w, r, "projectId is required")
		return
	}
	visibility := api.VisibilityPrivate
	if body.Visibility != "" {
		if visibility, ok = normalizeVisibility(body.Visibility); !ok {
			badRequest(w, r, "invalid visibility %q", body.Visibility)
			return
		}
	}
	caller := principalFrom(r.Context())

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	project := s.state.projects[projectID]
	if project == nil || project.owner != caller.id {
		notFound(w, r, "Project")
		return
	}
	now := s.state.now()
	prompt := &promptRecord{
		id:          s.state.id(),
		owner:       caller.id,
		projectID:   projectID,
		name:        strings.TrimSpace(body.Name),
		description: body.Description,
		visibility:  visibility,
		createdAt:   now,
		updatedAt:   now,
		variables:   map[string]int{},
	}
	s.state.prompts[prompt.id] = prompt
	writeJSON(w, http.StatusCreated, s.promptView(prompt))
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	caller := principalFrom(r.Context())
	var projectID int64
	if raw := r.URL.Query().Get("projectId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(w, r, "invalid projectId")
			return
		}
		projectID = id
	}

	s.state.mu.Lock()
	if projectID > 0 {
		if project := s.state.projects[projectID]; project == nil || project.owner != caller.id {
			s.state.mu.Unlock()
			notFound(w, r, "Project")
			return
		}
	}
	prompts := []api.Prompt{}
	for _, id := range sortedKeys(s.state.prompts) {
		prompt := s.state.prompts[id]
		if prompt.owner == caller.id && (projectID == 0 || prompt.projectID == projectID) {
			prompts = append(prompts, s.promptView(prompt))
		}
	}
	s.state.mu.Unlock()

	writeJSON(w, http.StatusOK, paginate(r, prompts))
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.lookupPrompt(w, r, true)
	if !ok {
		return
	}
	s.state.mu.Lock()
	view := s.promptView(prompt)
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	var body api.UpdatePromptRequest
	if !decodeOrReject(w, r, &body) {
		return
	}
	if body.Name != nil && blank(*body.Name) {
		badRequest(w, r, "name must not be blank")
		return
	}

	s.state.mu.Lock()
	if body.Name != nil {
		prompt.name = strings.TrimSpace(*body.Name)
	}
	if body.Description != nil {
		prompt.description = *body.Description
	}
	prompt.updatedAt = s.state.now()
	view := s.promptView(prompt)
	s.state.mu.Unlock()

	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	s.state.mu.Lock()
	s.removePrompt(prompt.id)
	s.state.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// removePrompt deletes a prompt and its evaluation objects. mu must be held.
func (s *Server) removePrompt(id int64) {
	delete(s.state.prompts, id)
	for datasetID, dataset := range s.state.datasets {
		if dataset.promptID == id {
			delete(s.state.datasets, datasetID)
		}
	}
	for suiteID, suite := range s.state.suites {
		if suite.promptID == id {
			s.removeSuite(suiteID)
		}
	}
	for gateID, gate := range s.state.gates {
		if gate.promptID == id {
			delete(s.state.gates, gateID)
		}
	}
}

// addVersion appends a version. mu must be held.
func (s *Server) addVersion(prompt *promptRecord, content, message string) *versionRecord {
	now := s.state.now()
	v := &versionRecord{
		id:            s.state.id(),
		no:            len(prompt.versions) + 1,
		content:       content,
		changeMessage: message,
		createdAt:     now,
	}
	prompt.versions = append(prompt.versions, v)
	prompt.updatedAt = now
	return v
}

func (s *Server) handleCreateVersion(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	var body api.CreateVersionRequest
	if !decodeOrReject(w, r, &body) {
		return
	}
	if blank(body.Content) {
		badRequest(w, r, "content must not be blank")
		return
	}

	s.state.mu.Lock()
	v := s.addVersion(prompt, body.Content, body.ChangeMessage)
	view := versionView(prompt.id, v)
	s.state.mu.Unlock()

	writeJSON(w, http.StatusCreated, api.CreateVersionResponse(view))
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.lookupPrompt(w, r, true)
	if !ok {
		return
	}
	s.state.mu.Lock()
	versions := make([]api.PromptVersion, 0, len(prompt.versions))
	for _, v := range prompt.versions {
		versions = append(versions, versionView(prompt.id, v))
	}
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, versions)
}

func versionParam(r *http.Request) (int, bool) {
	no, err := strconv.Atoi(chi.URLParam(r, "versionNo"))
	return no, err == nil && no > 0
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.lookupPrompt(w, r, true)
	if !ok {
		return
	}
	no, ok := versionParam(r)
	if !ok {
		notFound(w, r, "Version")
		return
	}

	s.state.mu.Lock()
	v := prompt.version(no)
	var view api.PromptVersion
	if v != nil {
		view = versionView(prompt.id, v)
	}
	s.state.mu.Unlock()

	if v == nil {
		notFound(w, r, "Version")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) publishResponse(prompt *promptRecord) api.PublishResponse {
	return api.PublishResponse{
		PromptID:    api.IDFromInt(prompt.id),
		VersionNo:   prompt.published,
		Status:      "PUBLISHED",
		PublishedAt: timestamp(s.state.now()),
	}
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	var body api.PublishRequest
	if !decodeOrReject(w, r, &body) {
		return
	}
	if body.VersionNo <= 0 {
		badRequest(w, r, "versionNo is required")
		return
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if prompt.version(body.VersionNo) == nil {
		notFound(w, r, "Version")
		return
	}
	prompt.published = body.VersionNo
	writeJSON(w, http.StatusOK, s.publishResponse(prompt))
}

func (s *Server) handlePublishNewVersion(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	var body api.PublishNewVersionRequest
	if !decodeOrReject(w, r, &body) {
		return
	}
	if blank(body.Content) {
		badRequest(w, r, "content must not be blank")
		return
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	v := s.addVersion(prompt, body.Content, body.ChangeMessage)
	prompt.published = v.no
	writeJSON(w, http.StatusOK, s.publishResponse(prompt))
}

func (s *Server) handleUpdateVisibility(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	var body struct {
		Visibility string `json:"visibility"`
	}
	if !decodeOrReject(w, r, &body) {
		return
	}
	visibility, ok := normalizeVisibility(body.Visibility)
	if !ok {
		badRequest(w, r, "invalid visibility %q", body.Visibility)
		return
	}

	s.state.mu.Lock()
	prompt.visibility = visibility
	prompt.updatedAt = s.state.now()
	view := s.promptView(prompt)
	s.state.mu.Unlock()

	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSetTags(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.ownedPrompt(w, r)
	if !ok {
		return
	}
	var body struct {
		TagIDs []api.ID `json:"tagIds"`
	}
	if !decodeOrReject(w, r, &body) {
		return
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	tags := make([]int64, 0, len(body.TagIDs))
	for _, raw := range body.TagIDs {
		id, ok := raw.Int64()
		if !ok || s.state.tags[id] == nil {
			badRequest(w, r, "unknown tag %q", raw.String())
			return
		}
		if !slices.Contains(tags, id) {
			tags = append(tags, id)
		}
	}
	prompt.tags = tags
	writeJSON(w, http.StatusOK, s.promptView(prompt))
}

// matchesTags reports whether the prompt carries every requested tag, by id or name.
func (s *Server) matchesTags(prompt *promptRecord, wanted []string) bool {
	for _, want := range wanted {
		found := false
		for _, id := range prompt.tags {
			tag := s.state.tags[id]
			if tag != nil && (strings.EqualFold(tag.Name, want) || tag.ID.String() == want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s *Server) handleSearchPrompts(w http.ResponseWriter, r *http.Request) {
	caller := principalFrom(r.Context())
	q := r.URL.Query()
	query := strings.ToLower(strings.TrimSpace(q.Get("query")))
	tags := splitCSV(q.Get("tags"))
	var projectID int64
	if raw := q.Get("projectId"); raw != "" {
		projectID, _ = strconv.ParseInt(raw, 10, 64)
	}
	visibility := ""
	if raw := q.Get("visibility"); raw != "" {
		v, ok := normalizeVisibility(raw)
		if !ok {
			badRequest(w, r, "invalid visibility %q", raw)
			return
		}
		visibility = v
	}

	s.state.mu.Lock()
	results := []api.Prompt{}
	for _, id := range sortedKeys(s.state.prompts) {
		prompt := s.state.prompts[id]
		if prompt.owner != caller.id {
			continue
		}
		if projectID > 0 && prompt.projectID != projectID {
			continue
		}
		if visibility != "" && prompt.visibility != visibility {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(prompt.name), query) &&
			!strings.Contains(strings.ToLower(prompt.description), query) {
			continue
		}
		if !s.matchesTags(prompt, tags) {
			continue
		}
		results = append(results, s.promptView(prompt))
	}
	s.state.mu.Unlock()

	if q.Get("sort") == "name" {
		slices.SortStableFunc(results, func(a, b api.Prompt) int { return strings.Compare(a.Name, b.Name) })
	}
	writeJSON(w, http.StatusOK, paginate(r, results))
}

func (s *Server) handleSemanticSearch(w http.ResponseWriter, r *http.Request) {
	caller := principalFrom(r.Context())
	terms := strings.Fields(strings.ToLower(r.URL.Query().Get("query")))
	limit := queryInt(r, "limit", 10)
	if limit == 0 {
		limit = 10
	}

	s.state.mu.Lock()
	results := []api.Prompt{}
	for _, id := range sortedKeys(s.state.prompts) {
		prompt := s.state.prompts[id]
		if prompt.owner != caller.id {
			continue
		}
		haystack := strings.ToLower(prompt.name + " " + prompt.description)
		if v := prompt.latest(); v != nil {
			haystack += " " + strings.ToLower(v.content)
		}
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				results = append(results, s.promptView(prompt))
				break
			}
		}
		if len(results) >= limit {
			break
		}
	}
	s.state.mu.Unlock()

	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleCountPrompts(w http.ResponseWriter, r *http.Request) {
	caller := principalFrom(r.Context())
	s.state.mu.Lock()
	count := 0
	for _, prompt := range s.state.prompts {
		if prompt.owner == caller.id {
			count++
		}
	}
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}
