package orchestrator

import "fmt"

// ValidationError reports a request rejected before any state mutation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// ConflictError reports an operation rejected because the project already
// has an attempt in flight. No deployment row is created.
type ConflictError struct {
	ProjectID string
	Message   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on project %s: %s", e.ProjectID, e.Message)
}
