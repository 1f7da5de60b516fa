// Package scribbleboard holds the types and errors shared by the board engine:
// the registry, the connection directory, the line log and the compactor.
package scribbleboard

import (
	"errors"
	"fmt"
)

var (
	// ErrBoardNotFound is returned when a concrete board id does not resolve.
	ErrBoardNotFound = errors.New("board not found")

	// ErrConnectionNotFound is returned when a connection is not joined to any board.
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrConflict is returned when a conditional write found the row in an
	// unexpected state.
	ErrConflict = errors.New("conflict")

	// ErrDeliveryFailure wraps a failed send to a single connection.
	ErrDeliveryFailure = errors.New("delivery failure")
)

// MalformedInputError describes a client payload that could not be parsed or
// failed validation.
type MalformedInputError struct {
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed input: %v: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed input: %v", e.Reason)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// Malformed builds a MalformedInputError.
func Malformed(reason string, err error) error {
	return &MalformedInputError{Reason: reason, Err: err}
}

// IsMalformed reports whether err is, or wraps, a MalformedInputError.
func IsMalformed(err error) bool {
	var target *MalformedInputError
	return errors.As(err, &target)
}
