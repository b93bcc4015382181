// Package notify implements deployment outcome notification sinks.
// This is part of the Imperative Shell - handles I/O with messaging APIs.
package notify

import "context"

// Outcome labels the terminal state of a deployment attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// Event describes a finished deployment attempt.
type Event struct {
	ProjectName   string
	DeploymentURL string // set on success
	Outcome       Outcome
	ErrorDetail   string // set on failure
}

// Notifier delivers deployment outcome events to an external channel.
// Delivery is best-effort; failures never affect deployment state.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NoopNotifier discards all events. Used when no channel is configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(ctx context.Context, event Event) error { return nil }
