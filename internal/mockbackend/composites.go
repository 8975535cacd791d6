package mockbackend

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/echostash/echostash-automation/internal/api"
)

// validateItems checks composite items against the caller's prompts. mu must be held.
func (s *Server) validateItems(owner int64, items []api.CompositeItem) (string, bool) {
	if len(items) == 0 {
		return "items must not be empty", false
	}
	for i, item := range items {
		if item.ItemType != api.CompositeItemPrompt {
			return "unsupported itemType " + strconv.Quote(item.ItemType), false
		}
		id, ok := item.PromptID.Int64()
		if !ok {
			return "items[" + strconv.Itoa(i) + "].promptId is required", false
		}
		if prompt := s.state.prompts[id]; prompt == nil || prompt.owner != owner {
			return "prompt " + item.PromptID.String() + " not found", false
		}
	}
	return "", true
}

func (s *Server) ownedComposite(w http.ResponseWriter, r *http.Request) (*compositeRecord, bool) {
	id, err := pathID(r, "compositeID")
	caller := principalFrom(r.Context())
	s.state.mu.Lock()
	composite := s.state.composites[id]
	s.state.mu.Unlock()
	if err != nil || composite == nil || composite.owner != caller.id {
		notFound(w, r, "Composite")
		return nil, false
	}
	return composite, true
}

func (s *Server) handleCreateComposite(w http.ResponseWriter, r *http.Request) {
	var body api.CreateCompositeRequest
	if !decodeOrReject(w, r, &body) {
		return
	}
	if blank(body.Name) {
		badRequest(w, r, "name must not be blank")
		return
	}
	caller := principalFrom(r.Context())

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	var projectID int64
	if !body.ProjectID.IsZero() {
		id, ok := body.ProjectID.Int64()
		project := s.state.projects[id]
		if !ok || project == nil || project.owner != caller.id {
			notFound(w, r, "Project")
			return
		}
		projectID = id
	}
	if msg, ok := s.validateItems(caller.id, body.Items); !ok {
		badRequest(w, r, "%s", msg)
		return
	}

	now := s.state.now()
	composite := &compositeRecord{
		id:          s.state.id(),
		owner:       caller.id,
		projectID:   projectID,
		name:        strings.TrimSpace(body.Name),
		description: body.Description,
		versions:    [][]api.CompositeItem{append([]api.CompositeItem{}, body.Items...)},
		createdAt:   now,
		updatedAt:   now,
	}
	s.state.composites[composite.id] = composite
	writeJSON(w, http.StatusCreated, composite.view(1))
}

func (s *Server) handleListComposites(w http.ResponseWriter, r *http.Request) {
	caller := principalFrom(r.Context())
	var projectID int64
	if raw := r.URL.Query().Get("projectId"); raw != "" {
		projectID, _ = strconv.ParseInt(raw, 10, 64)
	}

	s.state.mu.Lock()
	out := []api.Composite{}
	for _, id := range sortedKeys(s.state.composites) {
		composite := s.state.composites[id]
		if composite.owner != caller.id || (projectID > 0 && composite.projectID != projectID) {
			continue
		}
		out = append(out, composite.view(len(composite.versions)))
	}
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetComposite(w http.ResponseWriter, r *http.Request) {
	composite, ok := s.ownedComposite(w, r)
	if !ok {
		return
	}
	s.state.mu.Lock()
	view := composite.view(len(composite.versions))
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetCompositeVersion(w http.ResponseWriter, r *http.Request) {
	composite, ok := s.ownedComposite(w, r)
	if !ok {
		return
	}
	no, ok := versionParam(r)
	s.state.mu.Lock()
	valid := ok && no <= len(composite.versions)
	var view api.Composite
	if valid {
		view = composite.view(no)
	}
	s.state.mu.Unlock()
	if !valid {
		notFound(w, r, "Composite version")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdateComposite(w http.ResponseWriter, r *http.Request) {
	composite, ok := s.ownedComposite(w, r)
	if !ok {
		return
	}
	var body api.UpdateCompositeRequest
	if !decodeOrReject(w, r, &body) {
		return
	}
	if body.Name != nil && blank(*body.Name) {
		badRequest(w, r, "name must not be blank")
		return
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if body.Items != nil {
		if msg, ok := s.validateItems(composite.owner, body.Items); !ok {
			badRequest(w, r, "%s", msg)
			return
		}
		composite.versions = append(composite.versions, append([]api.CompositeItem{}, body.Items...))
	}
	if body.Name != nil {
		composite.name = strings.TrimSpace(*body.Name)
	}
	if body.Description != nil {
		composite.description = *body.Description
	}
	composite.updatedAt = s.state.now()
	writeJSON(w, http.StatusOK, composite.view(len(composite.versions)))
}

func (s *Server) handleDeleteComposite(w http.ResponseWriter, r *http.Request) {
	composite, ok := s.ownedComposite(w, r)
	if !ok {
		return
	}
	s.state.mu.Lock()
	delete(s.state.composites, composite.id)
	s.state.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}
