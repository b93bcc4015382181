package api

import "time"

// =============================================================================
// Request Types
// =============================================================================

// FileUpload is a single inline source file in a create request.
type FileUpload struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// CreateProjectRequest is the request to create a project and start its
// first deployment. Exactly one of repoUrl or files must be provided.
type CreateProjectRequest struct {
	Name    string       `json:"name"`
	RepoURL string       `json:"repoUrl,omitempty"`
	Branch  string       `json:"branch,omitempty"`
	Files   []FileUpload `json:"files,omitempty"`
}

// UpdateDomainRequest is the request to set a project's custom domain.
type UpdateDomainRequest struct {
	Domain string `json:"domain"`
}

// =============================================================================
// Response Types
// =============================================================================

// ProjectResponse is the API representation of a project.
type ProjectResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	RepoURL       string    `json:"repoUrl,omitempty"`
	Branch        string    `json:"branch,omitempty"`
	Domain        string    `json:"domain,omitempty"`
	DeploymentURL string    `json:"deploymentUrl,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// DeploymentResponse is the API representation of a deployment attempt.
type DeploymentResponse struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"projectId"`
	Status     string     `json:"status"`
	BuildLogs  string     `json:"buildLogs,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	DeployedAt *time.Time `json:"deployedAt,omitempty"`
}

// CreateProjectResponse carries the new project and its pending first
// deployment.
type CreateProjectResponse struct {
	Project    ProjectResponse    `json:"project"`
	Deployment DeploymentResponse `json:"deployment"`
}

// ProjectListResponse is the response for listing projects.
type ProjectListResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

// DeploymentListResponse is the response for listing deployment history.
type DeploymentListResponse struct {
	Deployments []DeploymentResponse `json:"deployments"`
}

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
