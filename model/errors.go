package model

import "fmt"

// ValidationError reports a missing or invalid field. It is returned
// before any write happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %v: %v", e.Field, e.Reason)
}

// DuplicateError reports a canonical+scope collision at create time.
type DuplicateError struct {
	Canonical string
	Scope     Scope
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("entity %q already exists in scope %v", e.Canonical, e.Scope)
}

// NotFoundError reports an operation on a missing record.
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%v %d not found", e.Kind, e.ID)
}
