// Package domain contains the pure domain model for Launchpad:
// projects, deployment attempts and the state machine that governs them.
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Project Errors
// =============================================================================

var (
	ErrNameRequired    = errors.New("project name is required")
	ErrOwnerRequired   = errors.New("project owner is required")
	ErrSourceRequired  = errors.New("project source is required")
	ErrAmbiguousSource = errors.New("project must have exactly one source")
	ErrRepoURLRequired = errors.New("git source requires a repository url")
	ErrFilesRequired   = errors.New("upload source requires at least one file")
)

// =============================================================================
// Project Status
// =============================================================================

// ProjectStatus reflects the outcome of the latest deployment attempt only.
type ProjectStatus string

const (
	ProjectStatusPending  ProjectStatus = "pending"
	ProjectStatusBuilding ProjectStatus = "building"
	ProjectStatusDeployed ProjectStatus = "deployed"
	ProjectStatusFailed   ProjectStatus = "failed"
)

// =============================================================================
// Sources
// =============================================================================

// GitSource describes a version-controlled project source.
type GitSource struct {
	RepoURL string `json:"repo_url"`
	Branch  string `json:"branch"`
}

// SourceFile is a single file in an uploaded bundle.
type SourceFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// UploadSource describes a user-uploaded file bundle.
type UploadSource struct {
	Files []SourceFile `json:"files"`
}

// =============================================================================
// Project
// =============================================================================

// Project is a user-owned record describing a deployable site.
// Exactly one of Git or Upload is populated at creation and never changes.
type Project struct {
	ID            string        `json:"id"`
	OwnerID       string        `json:"owner_id"`
	Name          string        `json:"name"`
	Slug          string        `json:"slug"`
	Git           *GitSource    `json:"git,omitempty"`
	Upload        *UploadSource `json:"upload,omitempty"`
	Domain        string        `json:"domain,omitempty"`
	DeploymentURL string        `json:"deployment_url,omitempty"`
	Status        ProjectStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewProject creates a project from a creation request.
// Git and Upload are mutually exclusive; the git branch defaults to "main".
func NewProject(ownerID, name string, git *GitSource, upload *UploadSource) (*Project, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if name == "" {
		return nil, ErrNameRequired
	}
	if git == nil && upload == nil {
		return nil, ErrSourceRequired
	}
	if git != nil && upload != nil {
		return nil, ErrAmbiguousSource
	}
	if git != nil {
		if git.RepoURL == "" {
			return nil, ErrRepoURLRequired
		}
		if git.Branch == "" {
			git = &GitSource{RepoURL: git.RepoURL, Branch: "main"}
		}
	}
	if upload != nil && len(upload.Files) == 0 {
		return nil, ErrFilesRequired
	}

	now := time.Now().UTC()
	return &Project{
		ID:        GenerateProjectID(),
		OwnerID:   ownerID,
		Name:      name,
		Slug:      Slugify(name),
		Git:       git,
		Upload:    upload,
		Status:    ProjectStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// SetDomain updates the custom hostname. Domain edits are pure metadata and
// legal in every project state.
func (p *Project) SetDomain(domain string) {
	p.Domain = domain
	p.UpdatedAt = time.Now().UTC()
}

// ApplySuccess records the outcome of a successful deployment attempt.
func (p *Project) ApplySuccess(deploymentURL string) {
	p.Status = ProjectStatusDeployed
	p.DeploymentURL = deploymentURL
	p.UpdatedAt = time.Now().UTC()
}

// ApplyFailure records a failed attempt. DeploymentURL keeps its prior value;
// a failed redeploy must not tear down the URL of the last good deployment.
func (p *Project) ApplyFailure() {
	p.Status = ProjectStatusFailed
	p.UpdatedAt = time.Now().UTC()
}

// =============================================================================
// ID Generation
// =============================================================================

// GenerateProjectID generates a unique project identifier.
func GenerateProjectID() string {
	return fmt.Sprintf("proj_%s", uuid.New().String()[:8])
}
