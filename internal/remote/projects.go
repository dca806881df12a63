package remote

import (
	"context"
	"net/http"
	"time"

	"github.com/bobbyquantum/inkweld-sub009/internal/core/domain"
)

const projectsPrefix = "/api/v1/projects"

// ProjectClient is the remote project gateway.
type ProjectClient struct {
	c *Client
}

// NewProjectClient creates a project gateway on c.
func NewProjectClient(c *Client) *ProjectClient {
	return &ProjectClient{c: c}
}

type projectDTO struct {
	Username    string    `json:"username"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

func (d *projectDTO) project() *domain.Project {
	return &domain.Project{
		Username:    d.Username,
		Slug:        d.Slug,
		Title:       d.Title,
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type projectBody struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Create creates a project and returns the authoritative record.
func (p *ProjectClient) Create(ctx context.Context, payload domain.ProjectPayload) (*domain.Project, error) {
	body := projectBody{Slug: payload.Slug, Title: payload.Title, Description: payload.Description}
	var out projectDTO
	if err := p.c.do(ctx, http.MethodPost, projectsPrefix, body, &out); err != nil {
		return nil, err
	}
	if out.Username == "" {
		out.Username = payload.Username
	}
	if out.Slug == "" {
		out.Slug = payload.Slug
	}
	return out.project(), nil
}

// Get fetches the current remote project.
func (p *ProjectClient) Get(ctx context.Context, key domain.ProjectKey) (*domain.Project, error) {
	var out projectDTO
	if err := p.c.do(ctx, http.MethodGet, projectPath(projectsPrefix, key), nil, &out); err != nil {
		return nil, err
	}
	return out.project(), nil
}

// Update pushes project metadata for key. project may carry a new slug.
func (p *ProjectClient) Update(ctx context.Context, key domain.ProjectKey, project *domain.Project) (*domain.Project, error) {
	body := projectBody{Slug: project.Slug, Title: project.Title, Description: project.Description}
	var out projectDTO
	if err := p.c.do(ctx, http.MethodPut, projectPath(projectsPrefix, key), body, &out); err != nil {
		return nil, err
	}
	if out.Username == "" {
		out.Username = key.Username
	}
	if out.Slug == "" {
		out.Slug = project.Slug
	}
	return out.project(), nil
}

type tombstoneCheckRequest struct {
	ProjectKeys []string `json:"projectKeys"`
}

type tombstoneCheckResponse struct {
	Tombstones []domain.Tombstone `json:"tombstones"`
}

// CheckTombstones returns the tombstones among keys.
func (p *ProjectClient) CheckTombstones(ctx context.Context, keys []domain.ProjectKey) ([]domain.Tombstone, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	req := tombstoneCheckRequest{ProjectKeys: make([]string, len(keys))}
	for i, k := range keys {
		req.ProjectKeys[i] = k.String()
	}
	var out tombstoneCheckResponse
	if err := p.c.do(ctx, http.MethodPost, projectsPrefix+"/tombstones/check", req, &out); err != nil {
		return nil, err
	}
	return out.Tombstones, nil
}
