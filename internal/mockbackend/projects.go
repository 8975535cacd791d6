package mockbackend

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/echostash/echostash-automation/internal/api"
)

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	return strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

// ownedProject resolves {projectID} for the caller, writing 404 when it is
// missing or belongs to someone else.
func (s *Server) ownedProject(w http.ResponseWriter, r *http.Request) (*projectRecord, bool) {
	id, err := pathID(r, "projectID")
	if err != nil {
		notFound(w, r, "Project")
		return nil, false
	}
	caller := principalFrom(r.Context())

	s.state.mu.Lock()
	project := s.state.projects[id]
	s.state.mu.Unlock()

	if project == nil || project.owner != caller.id {
		notFound(w, r, "Project")
		return nil, false
	}
	return project, true
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var body api.CreateProjectRequest
	if !decodeOrReject(w, r, &body) {
		return
	}
	if blank(body.Name) {
		badRequest(w, r, "name must not be blank")
		return
	}
	caller := principalFrom(r.Context())

	s.state.mu.Lock()
	now := timestamp(s.state.now())
	id := s.state.id()
	project := &projectRecord{
		owner: caller.id,
		Project: api.Project{
			ID:          api.IDFromInt(id),
			Name:        strings.TrimSpace(body.Name),
			Description: body.Description,
			Slug:        slugify(body.Name),
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	s.state.projects[id] = project
	view := project.Project
	s.state.mu.Unlock()

	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	caller := principalFrom(r.Context())

	s.state.mu.Lock()
	projects := []api.Project{}
	for _, id := range sortedKeys(s.state.projects) {
		if project := s.state.projects[id]; project.owner == caller.id {
			projects = append(projects, project.Project)
		}
	}
	s.state.mu.Unlock()

	writeJSON(w, http.StatusOK, paginate(r, projects))
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, ok := s.ownedProject(w, r)
	if !ok {
		return
	}
	s.state.mu.Lock()
	view := project.Project
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	project, ok := s.ownedProject(w, r)
	if !ok {
		return
	}
	var body api.UpdateProjectRequest
	if !decodeOrReject(w, r, &body) {
		return
	}
	if body.Name != nil && blank(*body.Name) {
		badRequest(w, r, "name must not be blank")
		return
	}

	s.state.mu.Lock()
	if body.Name != nil {
		project.Name = strings.TrimSpace(*body.Name)
		project.Slug = slugify(project.Name)
	}
	if body.Description != nil {
		project.Description = *body.Description
	}
	project.UpdatedAt = timestamp(s.state.now())
	view := project.Project
	s.state.mu.Unlock()

	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	project, ok := s.ownedProject(w, r)
	if !ok {
		return
	}
	id, _ := project.ID.Int64()

	s.state.mu.Lock()
	s.removeProject(id)
	s.state.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// removeProject deletes a project with its prompts and composites. mu must be held.
func (s *Server) removeProject(id int64) {
	delete(s.state.projects, id)
	for promptID, prompt := range s.state.prompts {
		if prompt.projectID == id {
			s.removePrompt(promptID)
		}
	}
	for compositeID, composite := range s.state.composites {
		if composite.projectID == id {
			delete(s.state.composites, compositeID)
		}
	}
}
