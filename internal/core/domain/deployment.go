package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Deployment Errors
// =============================================================================

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotRetryable      = errors.New("only failed deployments can be retried")
)

// =============================================================================
// Deployment Status
// =============================================================================

type DeploymentStatus string

const (
	DeploymentStatusPending DeploymentStatus = "pending"
	DeploymentStatusSuccess DeploymentStatus = "success"
	DeploymentStatusFailed  DeploymentStatus = "failed"
)

// =============================================================================
// Deployment
// =============================================================================

// Deployment is one immutable historical attempt to deploy a project.
// It is created once in pending state and transitions exactly once to a
// terminal state; a retry creates a new Deployment rather than reusing it.
type Deployment struct {
	ID         string           `json:"id"`
	ProjectID  string           `json:"project_id"`
	Status     DeploymentStatus `json:"status"`
	BuildLogs  string           `json:"build_logs,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	DeployedAt *time.Time       `json:"deployed_at,omitempty"`
}

// NewDeployment creates a pending deployment attempt for a project.
func NewDeployment(projectID string) *Deployment {
	return &Deployment{
		ID:        GenerateDeploymentID(),
		ProjectID: projectID,
		Status:    DeploymentStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Succeed transitions the attempt to its success terminal state.
// buildLogs is the raw provider response payload.
func (d *Deployment) Succeed(buildLogs string) error {
	if err := ValidateTransition(d.Status, DeploymentStatusSuccess); err != nil {
		return err
	}
	now := time.Now().UTC()
	d.Status = DeploymentStatusSuccess
	d.BuildLogs = buildLogs
	d.DeployedAt = &now
	return nil
}

// Fail transitions the attempt to its failed terminal state.
// buildLogs carries the provider's diagnostic payload or the transport error.
func (d *Deployment) Fail(buildLogs string) error {
	if err := ValidateTransition(d.Status, DeploymentStatusFailed); err != nil {
		return err
	}
	d.Status = DeploymentStatusFailed
	d.BuildLogs = buildLogs
	return nil
}

// CanRetry reports whether a manual retry may target this attempt.
func (d *Deployment) CanRetry() bool {
	return d.Status == DeploymentStatusFailed
}

// =============================================================================
// State Machine
// =============================================================================

// validTransitions defines the allowed attempt transitions.
// success and failed are terminal.
var validTransitions = map[DeploymentStatus][]DeploymentStatus{
	DeploymentStatusPending: {DeploymentStatusSuccess, DeploymentStatusFailed},
	DeploymentStatusSuccess: {},
	DeploymentStatusFailed:  {},
}

// ValidateTransition checks if an attempt status transition is valid.
func ValidateTransition(from, to DeploymentStatus) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return ErrInvalidTransition
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return ErrInvalidTransition
}

// =============================================================================
// ID Generation
// =============================================================================

// GenerateDeploymentID generates a unique deployment identifier.
func GenerateDeploymentID() string {
	return fmt.Sprintf("dep_%s", uuid.New().String()[:8])
}
