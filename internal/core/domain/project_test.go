package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Project Creation Tests
// =============================================================================

func TestNewProject_GitSource(t *testing.T) {
	project, err := NewProject("user-1", "Demo Site", &GitSource{
		RepoURL: "https://github.com/acme/demo-site",
		Branch:  "main",
	}, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, project.ID)
	assert.Equal(t, "user-1", project.OwnerID)
	assert.Equal(t, "Demo Site", project.Name)
	assert.Equal(t, "demo-site", project.Slug)
	assert.Equal(t, ProjectStatusPending, project.Status)
	assert.Equal(t, "main", project.Git.Branch)
	assert.Nil(t, project.Upload)
	assert.Empty(t, project.DeploymentURL)
	assert.NotZero(t, project.CreatedAt)
}

func TestNewProject_UploadSource(t *testing.T) {
	project, err := NewProject("user-1", "static", nil, &UploadSource{
		Files: []SourceFile{{Path: "index.html", Content: "<h1>hi</h1>"}},
	})
	require.NoError(t, err)

	assert.Nil(t, project.Git)
	require.NotNil(t, project.Upload)
	assert.Len(t, project.Upload.Files, 1)
}

func TestNewProject_DefaultsBranchToMain(t *testing.T) {
	project, err := NewProject("user-1", "demo", &GitSource{
		RepoURL: "https://github.com/acme/demo",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "main", project.Git.Branch)
}

func TestNewProject_MissingName(t *testing.T) {
	_, err := NewProject("user-1", "", &GitSource{RepoURL: "https://github.com/acme/demo"}, nil)
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestNewProject_MissingOwner(t *testing.T) {
	_, err := NewProject("", "demo", &GitSource{RepoURL: "https://github.com/acme/demo"}, nil)
	assert.ErrorIs(t, err, ErrOwnerRequired)
}

func TestNewProject_MissingSource(t *testing.T) {
	_, err := NewProject("user-1", "demo", nil, nil)
	assert.ErrorIs(t, err, ErrSourceRequired)
}

func TestNewProject_BothSources(t *testing.T) {
	_, err := NewProject("user-1", "demo",
		&GitSource{RepoURL: "https://github.com/acme/demo"},
		&UploadSource{Files: []SourceFile{{Path: "index.html"}}},
	)
	assert.ErrorIs(t, err, ErrAmbiguousSource)
}

func TestNewProject_GitSourceWithoutRepoURL(t *testing.T) {
	_, err := NewProject("user-1", "demo", &GitSource{Branch: "main"}, nil)
	assert.ErrorIs(t, err, ErrRepoURLRequired)
}

func TestNewProject_UploadSourceWithoutFiles(t *testing.T) {
	_, err := NewProject("user-1", "demo", nil, &UploadSource{})
	assert.ErrorIs(t, err, ErrFilesRequired)
}

// =============================================================================
// Outcome Application Tests
// =============================================================================

func TestProject_ApplySuccess(t *testing.T) {
	project := validProject(t)

	project.ApplySuccess("https://demo-site-abc.example")

	assert.Equal(t, ProjectStatusDeployed, project.Status)
	assert.Equal(t, "https://demo-site-abc.example", project.DeploymentURL)
}

func TestProject_ApplyFailure_KeepsDeploymentURL(t *testing.T) {
	project := validProject(t)
	project.ApplySuccess("https://demo-site-abc.example")

	project.ApplyFailure()

	assert.Equal(t, ProjectStatusFailed, project.Status)
	assert.Equal(t, "https://demo-site-abc.example", project.DeploymentURL)
}

func TestProject_SetDomain(t *testing.T) {
	project := validProject(t)
	before := project.UpdatedAt

	project.SetDomain("www.example.com")

	assert.Equal(t, "www.example.com", project.Domain)
	assert.False(t, project.UpdatedAt.Before(before))
}

// =============================================================================
// Helpers
// =============================================================================

func validProject(t *testing.T) *Project {
	t.Helper()
	project, err := NewProject("user-1", "demo-site", &GitSource{
		RepoURL: "https://github.com/acme/demo-site",
		Branch:  "main",
	}, nil)
	require.NoError(t, err)
	return project
}
