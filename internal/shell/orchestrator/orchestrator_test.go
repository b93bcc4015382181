package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchpadhq/launchpad/internal/core/domain"
	"github.com/launchpadhq/launchpad/internal/shell/gitsource"
	"github.com/launchpadhq/launchpad/internal/shell/notify"
	"github.com/launchpadhq/launchpad/internal/shell/provider"
	"github.com/launchpadhq/launchpad/internal/shell/store"
)

// =============================================================================
// Test Doubles
// =============================================================================

type stubProvider struct {
	mu     sync.Mutex
	calls  int
	result *provider.DeployResult
	err    error
	block  chan struct{} // when set, Deploy waits for it before returning
}

func (p *stubProvider) Deploy(ctx context.Context, req provider.DeployRequest) (*provider.DeployResult, error) {
	p.mu.Lock()
	p.calls++
	block := p.block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type stubNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (n *stubNotifier) Notify(ctx context.Context, event notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func (n *stubNotifier) recorded() []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Event(nil), n.events...)
}

type rejectingValidator struct {
	reason string
}

func (v rejectingValidator) Validate(ctx context.Context, src domain.GitSource) error {
	return &gitsource.ValidationError{RepoURL: src.RepoURL, Reason: v.reason}
}

// =============================================================================
// Setup
// =============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupOrchestrator(t *testing.T, p provider.Client, n notify.Notifier) (*Orchestrator, store.Store) {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	o := New(s, p, n, nil, DefaultConfig(), testLogger())
	return o, s
}

func seedProject(t *testing.T, s store.Store) *domain.Project {
	t.Helper()

	project, err := domain.NewProject("user-1", "My Site", &domain.GitSource{
		RepoURL: "https://github.com/acme/site",
		Branch:  "main",
	}, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateProject(context.Background(), project))
	return project
}

func successResult() *provider.DeployResult {
	return &provider.DeployResult{
		URL: "https://my-site-abc.vercel.app",
		Raw: []byte(`{"id":"dpl_1","url":"my-site-abc.vercel.app"}`),
	}
}

// =============================================================================
// CreateProject
// =============================================================================

func TestCreateProject_RunsFirstAttempt(t *testing.T) {
	ctx := context.Background()
	prov := &stubProvider{result: successResult()}
	notifier := &stubNotifier{}
	o, s := setupOrchestrator(t, prov, notifier)

	project, deployment, err := o.CreateProject(ctx, CreateProjectInput{
		OwnerID: "user-1",
		Name:    "My Site",
		Git:     &domain.GitSource{RepoURL: "https://github.com/acme/site", Branch: "main"},
	})
	require.NoError(t, err)
	require.NotNil(t, deployment)
	assert.Equal(t, domain.DeploymentStatusPending, deployment.Status)

	o.Close()

	gotProject, err := s.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectStatusDeployed, gotProject.Status)
	assert.Equal(t, "https://my-site-abc.vercel.app", gotProject.DeploymentURL)

	gotDeployment, err := s.GetDeployment(ctx, deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStatusSuccess, gotDeployment.Status)
	require.NotNil(t, gotDeployment.DeployedAt)
	assert.JSONEq(t, `{"id":"dpl_1","url":"my-site-abc.vercel.app"}`, gotDeployment.BuildLogs)

	events := notifier.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, notify.OutcomeSuccess, events[0].Outcome)
	assert.Equal(t, "My Site", events[0].ProjectName)
	assert.Equal(t, "https://my-site-abc.vercel.app", events[0].DeploymentURL)
}

func TestCreateProject_InvalidInput(t *testing.T) {
	prov := &stubProvider{result: successResult()}
	o, s := setupOrchestrator(t, prov, &stubNotifier{})

	_, _, err := o.CreateProject(context.Background(), CreateProjectInput{OwnerID: "user-1", Name: ""})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, 0, prov.callCount())

	projects, err := s.ListProjectsByOwner(context.Background(), "user-1", store.DefaultListOptions())
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestCreateProject_GitSourceRejected(t *testing.T) {
	prov := &stubProvider{result: successResult()}
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	o := New(s, prov, &stubNotifier{}, rejectingValidator{reason: "repository not found"}, DefaultConfig(), testLogger())

	_, _, err = o.CreateProject(context.Background(), CreateProjectInput{
		OwnerID: "user-1",
		Name:    "My Site",
		Git:     &domain.GitSource{RepoURL: "https://github.com/acme/missing", Branch: "main"},
	})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "repoUrl", vErr.Field)
	assert.Equal(t, 0, prov.callCount())
}

// =============================================================================
// StartDeployment
// =============================================================================

func TestStartDeployment_Success(t *testing.T) {
	ctx := context.Background()
	prov := &stubProvider{result: successResult()}
	o, s := setupOrchestrator(t, prov, &stubNotifier{})
	project := seedProject(t, s)

	deployment, err := o.StartDeployment(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStatusPending, deployment.Status)

	o.Close()

	gotProject, err := s.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectStatusDeployed, gotProject.Status)
}

func TestStartDeployment_ProviderFailure(t *testing.T) {
	ctx := context.Background()
	prov := &stubProvider{err: &provider.DeployError{
		Provider:   "vercel",
		StatusCode: 400,
		Message:    "deployment rejected",
		Raw:        []byte(`{"error":{"code":"bad_request"}}`),
	}}
	notifier := &stubNotifier{}
	o, s := setupOrchestrator(t, prov, notifier)
	project := seedProject(t, s)

	deployment, err := o.StartDeployment(ctx, project.ID)
	require.NoError(t, err)

	o.Close()

	gotProject, err := s.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectStatusFailed, gotProject.Status)

	gotDeployment, err := s.GetDeployment(ctx, deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStatusFailed, gotDeployment.Status)
	assert.JSONEq(t, `{"error":{"code":"bad_request"}}`, gotDeployment.BuildLogs)
	assert.Nil(t, gotDeployment.DeployedAt)

	events := notifier.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, notify.OutcomeFailed, events[0].Outcome)
	assert.Contains(t, events[0].ErrorDetail, "deploy failed")
}

func TestStartDeployment_FailureKeepsPreviousURL(t *testing.T) {
	ctx := context.Background()
	prov := &stubProvider{result: successResult()}
	o, s := setupOrchestrator(t, prov, &stubNotifier{})
	project := seedProject(t, s)

	// First attempt succeeds and records a URL.
	_, err := o.StartDeployment(ctx, project.ID)
	require.NoError(t, err)
	o.Close()

	// Second attempt fails; the last good URL must survive.
	prov.mu.Lock()
	prov.result = nil
	prov.err = errors.New("connection refused")
	prov.mu.Unlock()

	_, err = o.StartDeployment(ctx, project.ID)
	require.NoError(t, err)
	o.Close()

	gotProject, err := s.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectStatusFailed, gotProject.Status)
	assert.Equal(t, "https://my-site-abc.vercel.app", gotProject.DeploymentURL)
}

func TestStartDeployment_ConflictWhileBuilding(t *testing.T) {
	ctx := context.Background()
	block := make(chan struct{})
	prov := &stubProvider{result: successResult(), block: block}
	o, s := setupOrchestrator(t, prov, &stubNotifier{})
	project := seedProject(t, s)

	first, err := o.StartDeployment(ctx, project.ID)
	require.NoError(t, err)

	_, err = o.StartDeployment(ctx, project.ID)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, project.ID, conflict.ProjectID)

	close(block)
	o.Close()

	deployments, err := s.ListDeploymentsByProject(ctx, project.ID, store.DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, deployments, 1)
	assert.Equal(t, first.ID, deployments[0].ID)
}

func TestStartDeployment_DomainEditDuringBuildSurvives(t *testing.T) {
	ctx := context.Background()
	block := make(chan struct{})
	prov := &stubProvider{result: successResult(), block: block}
	o, s := setupOrchestrator(t, prov, &stubNotifier{})
	project := seedProject(t, s)

	_, err := o.StartDeployment(ctx, project.ID)
	require.NoError(t, err)

	// Edit metadata while the attempt is still in flight.
	_, err = o.UpdateDomain(ctx, project.ID, "example.com")
	require.NoError(t, err)

	close(block)
	o.Close()

	gotProject, err := s.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectStatusDeployed, gotProject.Status)
	assert.Equal(t, "https://my-site-abc.vercel.app", gotProject.DeploymentURL)
	assert.Equal(t, "example.com", gotProject.Domain)
}

func TestStartDeployment_DomainEditDuringFailedBuildSurvives(t *testing.T) {
	ctx := context.Background()
	block := make(chan struct{})
	prov := &stubProvider{err: errors.New("build exploded"), block: block}
	o, s := setupOrchestrator(t, prov, &stubNotifier{})
	project := seedProject(t, s)

	_, err := o.StartDeployment(ctx, project.ID)
	require.NoError(t, err)

	_, err = o.UpdateDomain(ctx, project.ID, "example.com")
	require.NoError(t, err)

	close(block)
	o.Close()

	gotProject, err := s.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectStatusFailed, gotProject.Status)
	assert.Equal(t, "example.com", gotProject.Domain)
}

func TestStartDeployment_ProjectNotFound(t *testing.T) {
	prov := &stubProvider{result: successResult()}
	o, _ := setupOrchestrator(t, prov, &stubNotifier{})

	_, err := o.StartDeployment(context.Background(), "proj_missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 0, prov.callCount())
}

func TestStartDeployment_NotifierFailureDoesNotAlterState(t *testing.T) {
	ctx := context.Background()
	prov := &stubProvider{result: successResult()}
	notifier := &stubNotifier{err: errors.New("telegram unreachable")}
	o, s := setupOrchestrator(t, prov, notifier)
	project := seedProject(t, s)

	deployment, err := o.StartDeployment(ctx, project.ID)
	require.NoError(t, err)

	o.Close()

	gotProject, err := s.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectStatusDeployed, gotProject.Status)

	gotDeployment, err := s.GetDeployment(ctx, deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStatusSuccess, gotDeployment.Status)
}

// =============================================================================
// RetryDeployment
// =============================================================================

func TestRetryDeployment_AfterFailure(t *testing.T) {
	ctx := context.Background()
	prov := &stubProvider{err: errors.New("build exploded")}
	o, s := setupOrchestrator(t, prov, &stubNotifier{})
	project := seedProject(t, s)

	failed, err := o.StartDeployment(ctx, project.ID)
	require.NoError(t, err)
	o.Close()

	// Provider recovers; retry creates a fresh attempt.
	prov.mu.Lock()
	prov.err = nil
	prov.result = successResult()
	prov.mu.Unlock()

	retried, err := o.RetryDeployment(ctx, failed.ID)
	require.NoError(t, err)
	assert.NotEqual(t, failed.ID, retried.ID)
	assert.Equal(t, domain.DeploymentStatusPending, retried.Status)

	o.Close()

	gotProject, err := s.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectStatusDeployed, gotProject.Status)

	// The failed attempt stays in history untouched.
	gotFailed, err := s.GetDeployment(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStatusFailed, gotFailed.Status)

	deployments, err := s.ListDeploymentsByProject(ctx, project.ID, store.DefaultListOptions())
	require.NoError(t, err)
	assert.Len(t, deployments, 2)
}

func TestRetryDeployment_SuccessNotRetryable(t *testing.T) {
	ctx := context.Background()
	prov := &stubProvider{result: successResult()}
	o, s := setupOrchestrator(t, prov, &stubNotifier{})
	project := seedProject(t, s)

	deployment, err := o.StartDeployment(ctx, project.ID)
	require.NoError(t, err)
	o.Close()

	_, err = o.RetryDeployment(ctx, deployment.ID)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	deployments, err := s.ListDeploymentsByProject(ctx, project.ID, store.DefaultListOptions())
	require.NoError(t, err)
	assert.Len(t, deployments, 1)
}

func TestRetryDeployment_NotFound(t *testing.T) {
	o, _ := setupOrchestrator(t, &stubProvider{}, &stubNotifier{})

	_, err := o.RetryDeployment(context.Background(), "dep_missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// =============================================================================
// DeleteProject / UpdateDomain
// =============================================================================

func TestDeleteProject_CascadesHistory(t *testing.T) {
	ctx := context.Background()
	prov := &stubProvider{result: successResult()}
	o, s := setupOrchestrator(t, prov, &stubNotifier{})
	project := seedProject(t, s)

	deployment, err := o.StartDeployment(ctx, project.ID)
	require.NoError(t, err)
	o.Close()

	require.NoError(t, o.DeleteProject(ctx, project.ID))

	_, err = s.GetProject(ctx, project.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetDeployment(ctx, deployment.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateDomain(t *testing.T) {
	ctx := context.Background()
	o, s := setupOrchestrator(t, &stubProvider{}, &stubNotifier{})
	project := seedProject(t, s)

	updated, err := o.UpdateDomain(ctx, project.ID, "example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com", updated.Domain)

	gotProject, err := s.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "example.com", gotProject.Domain)
}

func TestUpdateDomain_Empty(t *testing.T) {
	o, s := setupOrchestrator(t, &stubProvider{}, &stubNotifier{})
	project := seedProject(t, s)

	_, err := o.UpdateDomain(context.Background(), project.ID, "")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "domain", vErr.Field)
}
