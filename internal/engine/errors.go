package engine

import (
	"errors"
	"fmt"
)

// StageError reports which sub-query of a Find failed.
//
// Client faults (bad paths, malformed terms) are returned unwrapped by the
// planner; StageError wraps failures of the executor and of result
// assembly.
type StageError struct {
	// Stage is the failing step.
	Stage Stage

	// Key identifies the distinct or meta column, if any.
	Key string

	// RequestID identifies the Find.
	RequestID string

	Err error
}

// Stage names one step of a Find.
type Stage string

const (
	StagePrimary  Stage = "primary"
	StageCount    Stage = "count"
	StageDistinct Stage = "distinct"
	StageMeta     Stage = "meta"
)

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s query %s failed (request=%s): %v", e.Stage, e.Key, e.RequestID, e.Err)
	}
	return fmt.Sprintf("%s query failed (request=%s): %v", e.Stage, e.RequestID, e.Err)
}

// Unwrap returns the executor error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the failing stage of err, or "" when err is not a
// StageError. Uses errors.As to handle wrapped errors.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
