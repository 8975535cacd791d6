package api

import (
	"context"

	"github.com/echostash/echostash-automation/internal/transport"
)

// Project is a container for prompts.
type Project struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Slug        string `json:"slug,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// CreateProjectRequest creates a project.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UpdateProjectRequest changes a project; nil fields are left alone.
type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// ProjectsClient covers /api/projects.
type ProjectsClient struct {
	tc *transport.Client
}

const projectsPath = "/api/projects"

// Create creates a project.
func (c *ProjectsClient) Create(ctx context.Context, req CreateProjectRequest) (Project, error) {
	var out Project
	_, err := c.tc.Post(ctx, projectsPath, req, &out)
	return out, err
}

// List returns the caller's projects.
func (c *ProjectsClient) List(ctx context.Context, params PageParams) (Page[Project], error) {
	var out Page[Project]
	_, err := c.tc.Get(ctx, projectsPath, &out, transport.WithQuery(pageQuery(params)))
	return out, err
}

// Get returns one project.
func (c *ProjectsClient) Get(ctx context.Context, id ID) (Project, error) {
	var out Project
	_, err := c.tc.Get(ctx, joinPath(projectsPath, id.String()), &out)
	return out, err
}

// Update replaces project fields.
func (c *ProjectsClient) Update(ctx context.Context, id ID, req UpdateProjectRequest) (Project, error) {
	var out Project
	_, err := c.tc.Put(ctx, joinPath(projectsPath, id.String()), req, &out)
	return out, err
}

// Delete removes a project and its prompts.
func (c *ProjectsClient) Delete(ctx context.Context, id ID) error {
	_, err := c.tc.Delete(ctx, joinPath(projectsPath, id.String()), nil)
	return err
}
