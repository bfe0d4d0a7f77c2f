package shutdown

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// UnreachableError indicates that a collaborator could not be contacted.
type UnreachableError struct {
	Service string
	Err     error
}

func (e *UnreachableError) Error() string {
	if e.Err == nil {
		return e.Service + " unreachable"
	}
	return e.Service + " unreachable: " + e.Err.Error()
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// TimeoutError indicates that a phase deadline elapsed without a signal.
type TimeoutError struct {
	Phase string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Phase, e.After)
}

// TerminalError is returned when every attempted power primitive returned
// control instead of ending the process.
type TerminalError struct {
	Mode     Mode
	Attempts []error
}

func (e *TerminalError) Error() string {
	msgs := make([]string, 0, len(e.Attempts))
	for _, err := range e.Attempts {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%s did not halt the system: %s", e.Mode, strings.Join(msgs, "; "))
}

func (e *TerminalError) Unwrap() []error { return e.Attempts }

// ReturnedError wraps a power primitive that came back, with or without an error.
type ReturnedError struct {
	Primitive string
	Err       error
}

func (e *ReturnedError) Error() string {
	if e.Err == nil {
		return e.Primitive + " returned"
	}
	return e.Primitive + " failed: " + e.Err.Error()
}

func (e *ReturnedError) Unwrap() error { return e.Err }

func IsUnreachable(err error) bool {
	var u *UnreachableError
	return errors.As(err, &u)
}

func IsTimeout(err error) bool {
	var t *TimeoutError
	return errors.As(err, &t)
}
