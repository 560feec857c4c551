package sas7bdat

import (
	"errors"
	"fmt"

	"github.com/defineEditor/sas7bdat/decode"
)

// ErrContractViolation is wrapped by errors raised when a decoder emits
// events out of the order the pipeline relies on.
var ErrContractViolation = errors.New("decoder contract violation")

func contractViolation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrContractViolation, fmt.Sprintf(format, args...))
}

// ValidationError reports a bad argument.  It is raised before any file
// is opened.
type ValidationError struct {
	Param  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Param, e.Value, e.Reason)
}

// DecodeError reports a failed decode pass.  The handle has been closed by
// the time it is returned.
type DecodeError struct {
	Op      string
	Path    string
	Status  decode.Status
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to %s %s: %s", e.Op, e.Path, e.Message)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func newDecodeError(op, path string, err error) *DecodeError {
	var de *decode.Error
	if errors.As(err, &de) {
		return &DecodeError{Op: op, Path: path, Status: de.Status, Message: de.Error(), Err: err}
	}
	return &DecodeError{Op: op, Path: path, Status: decode.StatusOf(err), Message: err.Error(), Err: err}
}
