package tracking

import (
	"fmt"

	"github.com/google/uuid"
)

// ErrNoActiveSession is returned when an operation expects an active session
// for a workflow (or step) but none exists.
type ErrNoActiveSession struct {
	WorkflowID uuid.UUID
}

func (e *ErrNoActiveSession) Error() string {
	return fmt.Sprintf("no active time tracking session for workflow %s", e.WorkflowID)
}

// ErrSessionNotFound is returned when a session lookup by ID fails.
type ErrSessionNotFound struct {
	SessionID uuid.UUID
}

func (e *ErrSessionNotFound) Error() string {
	return fmt.Sprintf("time tracking session %s not found", e.SessionID)
}

// ErrSessionAlreadyEnded is returned when EndStep targets a session that has
// already been closed.
type ErrSessionAlreadyEnded struct {
	SessionID uuid.UUID
}

func (e *ErrSessionAlreadyEnded) Error() string {
	return fmt.Sprintf("time tracking session %s already ended", e.SessionID)
}

// ErrConflictingSession is returned when StartStep is called while a
// different step already has an open session for the same workflow.
type ErrConflictingSession struct {
	WorkflowID   uuid.UUID
	OpenStep     int
	RequestedStep int
}

func (e *ErrConflictingSession) Error() string {
	return fmt.Sprintf(
		"workflow %s already has an open session for step %d, cannot start step %d",
		e.WorkflowID, e.OpenStep, e.RequestedStep,
	)
}

// ErrStorageFailure wraps a persistence-layer error encountered after the
// engine's single retry has been exhausted.
type ErrStorageFailure struct {
	Operation string
	Cause     error
}

func (e *ErrStorageFailure) Error() string {
	return fmt.Sprintf("time tracking storage failure during %s: %v", e.Operation, e.Cause)
}

func (e *ErrStorageFailure) Unwrap() error {
	return e.Cause
}
