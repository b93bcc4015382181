// Package provider implements deployment provider clients.
// This is part of the Imperative Shell - handles I/O with hosting platform APIs.
package provider

import (
	"context"
	"fmt"

	"github.com/launchpadhq/launchpad/internal/core/domain"
)

// DeployRequest contains parameters for publishing a project build.
type DeployRequest struct {
	Name  string // provider-safe slug for the deployment
	Git   *domain.GitSource
	Files []domain.SourceFile
}

// DeployResult contains the outcome of a successful deployment.
type DeployResult struct {
	URL string // public URL serving the deployment, scheme included
	Raw []byte // raw provider response, kept as build log evidence
}

// Client defines the interface for deployment providers.
type Client interface {
	// Deploy publishes the project and blocks until the provider
	// accepts or rejects it.
	Deploy(ctx context.Context, req DeployRequest) (*DeployResult, error)
}

// DeployError is returned when a provider rejects a deployment.
// Raw carries the provider's diagnostic payload for build logs.
type DeployError struct {
	Provider   string
	StatusCode int
	Message    string
	Raw        []byte
}

func (e *DeployError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: deploy failed (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s: deploy failed: %s", e.Provider, e.Message)
}
