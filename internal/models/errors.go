package models

import (
	"fmt"
	"strings"
)

// ValidationError reports every invariant violation found on an entity, not
// just the first. It aborts persistence and propagates to the caller.
type ValidationError struct {
	Entity     string // e.g. "agent", "server", "content item"
	ID         string
	Violations []string
}

func (e *ValidationError) Error() string {
	id := e.ID
	if id == "" {
		id = "<new>"
	}
	return fmt.Sprintf("%s %s invalid: %s", e.Entity, id, strings.Join(e.Violations, "; "))
}

func newValidationError(entity, id string, violations ...string) *ValidationError {
	return &ValidationError{Entity: entity, ID: id, Violations: violations}
}

// NotFoundError reports an operation referencing an id absent from its
// collection or registry.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// PersistenceError wraps a filesystem failure during save, load or delete.
type PersistenceError struct {
	Op   string // "save", "load", "delete"
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// RuntimeDelegationError wraps a failure surfaced by the external agent
// runtime while sending a message.
type RuntimeDelegationError struct {
	AgentID string
	Err     error
}

func (e *RuntimeDelegationError) Error() string {
	return fmt.Sprintf("agent %s runtime: %v", e.AgentID, e.Err)
}

func (e *RuntimeDelegationError) Unwrap() error { return e.Err }
