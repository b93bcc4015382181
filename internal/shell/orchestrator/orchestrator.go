// Package orchestrator drives the deployment lifecycle: it claims projects
// for building, runs provider attempts in the background, commits terminal
// transitions and dispatches outcome notifications.
// This is part of the Imperative Shell - it coordinates store, provider
// and notifier I/O around the pure domain state machines.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/launchpadhq/launchpad/internal/core/domain"
	"github.com/launchpadhq/launchpad/internal/shell/gitsource"
	"github.com/launchpadhq/launchpad/internal/shell/notify"
	"github.com/launchpadhq/launchpad/internal/shell/provider"
	"github.com/launchpadhq/launchpad/internal/shell/store"
)

// Config configures the orchestrator.
type Config struct {
	AttemptTimeout time.Duration // upper bound on a single provider call
	NotifyTimeout  time.Duration
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		AttemptTimeout: 10 * time.Minute,
		NotifyTimeout:  15 * time.Second,
	}
}

// Orchestrator coordinates deployments for all projects.
type Orchestrator struct {
	store     store.Store
	provider  provider.Client
	notifier  notify.Notifier
	validator gitsource.Validator
	config    Config
	logger    *slog.Logger
	now       func() time.Time

	wg sync.WaitGroup
}

// New creates an orchestrator.
func New(s store.Store, p provider.Client, n notify.Notifier, v gitsource.Validator, config Config, logger *slog.Logger) *Orchestrator {
	if config.AttemptTimeout == 0 {
		config.AttemptTimeout = 10 * time.Minute
	}
	if config.NotifyTimeout == 0 {
		config.NotifyTimeout = 15 * time.Second
	}
	if v == nil {
		v = gitsource.NoopValidator{}
	}
	if n == nil {
		n = notify.NoopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		store:     s,
		provider:  p,
		notifier:  n,
		validator: v,
		config:    config,
		logger:    logger.With("component", "orchestrator"),
		now:       time.Now,
	}
}

// Close waits for in-flight attempts and notification sends to drain.
func (o *Orchestrator) Close() {
	o.wg.Wait()
	o.logger.Info("orchestrator drained")
}

// =============================================================================
// Operations
// =============================================================================

// CreateProjectInput carries a project creation request.
type CreateProjectInput struct {
	OwnerID string
	Name    string
	Git     *domain.GitSource
	Upload  *domain.UploadSource
}

// CreateProject validates and persists a new project, then starts its
// first deployment attempt. The returned deployment is pending; the
// attempt itself runs in the background.
func (o *Orchestrator) CreateProject(ctx context.Context, input CreateProjectInput) (*domain.Project, *domain.Deployment, error) {
	project, err := domain.NewProject(input.OwnerID, input.Name, input.Git, input.Upload)
	if err != nil {
		return nil, nil, &ValidationError{Message: err.Error()}
	}

	if project.Git != nil {
		if err := o.validator.Validate(ctx, *project.Git); err != nil {
			var vErr *gitsource.ValidationError
			if errors.As(err, &vErr) {
				return nil, nil, &ValidationError{Field: "repoUrl", Message: vErr.Reason}
			}
			return nil, nil, fmt.Errorf("validating git source: %w", err)
		}
	}

	if err := o.store.CreateProject(ctx, project); err != nil {
		return nil, nil, err
	}

	o.logger.Info("project created", "project_id", project.ID, "owner_id", project.OwnerID, "slug", project.Slug)

	deployment, err := o.StartDeployment(ctx, project.ID)
	if err != nil {
		return nil, nil, err
	}
	return project, deployment, nil
}

// StartDeployment claims the project for building and records a pending
// deployment. The provider call runs on a background goroutine; callers
// get the pending deployment immediately. A project already building
// yields a ConflictError and no new deployment row.
func (o *Orchestrator) StartDeployment(ctx context.Context, projectID string) (*domain.Deployment, error) {
	project, err := o.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if err := o.store.ClaimProjectBuild(ctx, projectID, o.now()); err != nil {
		if errors.Is(err, store.ErrAlreadyBuilding) {
			return nil, &ConflictError{ProjectID: projectID, Message: "deployment already in progress"}
		}
		return nil, err
	}

	deployment := domain.NewDeployment(projectID)
	if err := o.store.CreateDeployment(ctx, deployment); err != nil {
		// Release the claim so the project is not stuck in building.
		// Restore only the status: a concurrent metadata edit must not
		// be rolled back along with it.
		if current, getErr := o.store.GetProject(ctx, projectID); getErr == nil {
			current.Status = project.Status
			current.UpdatedAt = o.now()
			if revertErr := o.store.UpdateProject(ctx, current); revertErr != nil {
				o.logger.Error("failed to release build claim", "project_id", projectID, "error", revertErr)
			}
		} else {
			o.logger.Error("failed to release build claim", "project_id", projectID, "error", getErr)
		}
		return nil, err
	}

	o.logger.Info("deployment started", "project_id", projectID, "deployment_id", deployment.ID)

	o.wg.Add(1)
	go o.runAttempt(project, deployment)

	return deployment, nil
}

// RetryDeployment starts a fresh attempt for the project behind a failed
// deployment. Only failed deployments are retryable.
func (o *Orchestrator) RetryDeployment(ctx context.Context, deploymentID string) (*domain.Deployment, error) {
	deployment, err := o.store.GetDeployment(ctx, deploymentID)
	if err != nil {
		return nil, err
	}

	if !deployment.CanRetry() {
		return nil, &ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("deployment is %s; only failed deployments can be retried", deployment.Status),
		}
	}

	return o.StartDeployment(ctx, deployment.ProjectID)
}

// DeleteProject removes the project and its full deployment history in
// one transaction. Provider-side resources are not torn down.
func (o *Orchestrator) DeleteProject(ctx context.Context, projectID string) error {
	err := o.store.WithTx(ctx, func(tx store.Store) error {
		return tx.DeleteProject(ctx, projectID)
	})
	if err != nil {
		return err
	}

	o.logger.Info("project deleted", "project_id", projectID)
	return nil
}

// UpdateDomain sets the project's custom domain.
func (o *Orchestrator) UpdateDomain(ctx context.Context, projectID, domainName string) (*domain.Project, error) {
	if domainName == "" {
		return nil, &ValidationError{Field: "domain", Message: "domain is required"}
	}

	project, err := o.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	project.SetDomain(domainName)
	if err := o.store.UpdateProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// =============================================================================
// Attempt Execution
// =============================================================================

// runAttempt performs the provider call and commits the terminal
// transition. It runs detached from the request context.
func (o *Orchestrator) runAttempt(project *domain.Project, deployment *domain.Deployment) {
	defer o.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), o.config.AttemptTimeout)
	defer cancel()

	req := provider.DeployRequest{Name: project.Slug, Git: project.Git}
	if project.Upload != nil {
		req.Files = project.Upload.Files
	}

	result, deployErr := o.provider.Deploy(ctx, req)

	var event notify.Event
	event.ProjectName = project.Name

	if deployErr != nil {
		logs := deployErr.Error()
		var provErr *provider.DeployError
		if errors.As(deployErr, &provErr) && len(provErr.Raw) > 0 {
			logs = string(provErr.Raw)
		}

		if err := deployment.Fail(logs); err != nil {
			o.logger.Error("invalid deployment transition", "deployment_id", deployment.ID, "error", err)
			return
		}

		event.Outcome = notify.OutcomeFailed
		event.ErrorDetail = deployErr.Error()
		o.logger.Warn("deployment failed", "project_id", project.ID, "deployment_id", deployment.ID, "error", deployErr)
	} else {
		if err := deployment.Succeed(string(result.Raw)); err != nil {
			o.logger.Error("invalid deployment transition", "deployment_id", deployment.ID, "error", err)
			return
		}

		event.DeploymentURL = result.URL
		event.Outcome = notify.OutcomeSuccess
		o.logger.Info("deployment succeeded", "project_id", project.ID, "deployment_id", deployment.ID, "url", result.URL)
	}

	// Commit on a fresh context so a provider call that ate the whole
	// attempt timeout cannot starve the transaction.
	commitCtx, commitCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer commitCancel()

	txErr := o.store.WithTx(commitCtx, func(tx store.Store) error {
		if err := tx.UpdateDeployment(commitCtx, deployment); err != nil {
			return err
		}
		// Re-read inside the transaction: the pre-claim snapshot is
		// stale by now, and writing it back would clobber metadata
		// edits (domain) made while the attempt was in flight.
		current, err := tx.GetProject(commitCtx, project.ID)
		if err != nil {
			return err
		}
		if deployErr != nil {
			current.ApplyFailure()
		} else {
			current.ApplySuccess(result.URL)
		}
		return tx.UpdateProject(commitCtx, current)
	})
	if txErr != nil {
		o.logger.Error("failed to commit deployment outcome", "deployment_id", deployment.ID, "error", txErr)
		return
	}

	// Notification happens only after the commit and never blocks or
	// fails the attempt.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		nctx, ncancel := context.WithTimeout(context.Background(), o.config.NotifyTimeout)
		defer ncancel()
		if err := o.notifier.Notify(nctx, event); err != nil {
			o.logger.Warn("notification failed", "project_id", project.ID, "error", err)
		}
	}()
}
