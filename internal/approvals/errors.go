package approvals

import "errors"

var (
	ErrNotFound       = errors.New("approval request not found")
	ErrForbidden      = errors.New("actor is not the assigned approver")
	ErrAlreadyDecided = errors.New("approval request already decided")
)

// ValidationError describes a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return "missing required field: " + e.Field
	}
	return "invalid field " + e.Field + ": " + e.Reason
}

// DependencyError wraps a failure of the record store or the inference provider.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *DependencyError) Unwrap() error { return e.Err }
