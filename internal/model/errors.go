package model

import (
	"errors"
	"fmt"
)

// Error classes. Use errors.Is against these; the typed errors below match them.
var (
	ErrMalformedExtraction     = errors.New("malformed extraction")
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	ErrInvalidDocument         = errors.New("invalid document")
	ErrPersistence             = errors.New("persistence failed")
)

// MalformedExtractionError means a model response could not be reduced to a JSON array
type MalformedExtractionError struct {
	Raw   string // Response text as received
	Cause error
}

func (e *MalformedExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", ErrMalformedExtraction, e.Cause)
	}
	return ErrMalformedExtraction.Error()
}

func (e *MalformedExtractionError) Unwrap() error { return e.Cause }

func (e *MalformedExtractionError) Is(target error) bool {
	return target == ErrMalformedExtraction
}

// CollaboratorError wraps a failed call to an external provider (network, auth, rate limit)
type CollaboratorError struct {
	Provider string
	Cause    error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrCollaboratorUnavailable, e.Provider, e.Cause)
}

func (e *CollaboratorError) Unwrap() error { return e.Cause }

func (e *CollaboratorError) Is(target error) bool {
	return target == ErrCollaboratorUnavailable
}

// PersistenceError means the result table could not be written. It is fatal.
type PersistenceError struct {
	Path  string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Path, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
