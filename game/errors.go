package game

import "fmt"

// ValidationError rejects a malformed or incomplete request before any
// state is touched.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func Invalidf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IllegalTransitionError rejects an operation that is not legal in the
// session's current status. State is left untouched.
type IllegalTransitionError struct {
	Op     string
	Status Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("operation %q not allowed in status %q", e.Op, e.Status)
}

// NotFoundError reports an unknown participant, submission or other
// session-scoped entity.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// QuotaExceededError carries the current count and the plan limit so the
// client can render an upgrade prompt.
type QuotaExceededError struct {
	Resource string
	Count    int
	Limit    int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s quota exceeded: %d of %d", e.Resource, e.Count, e.Limit)
}

// ExternalDependencyError wraps a failed call to a collaborator (media
// resolution, ledger source). Callers usually degrade to a fallback value
// instead of surfacing it.
type ExternalDependencyError struct {
	Dependency string
	Err        error
}

func (e *ExternalDependencyError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Dependency, e.Err)
}

func (e *ExternalDependencyError) Unwrap() error { return e.Err }
