package dbus

import (
	"context"
	"errors"

	"github.com/godbus/dbus/v5"

	"github.com/b0bbywan/go-odio-powerd/shutdown"
)

// TimeoutError is returned when a D-Bus call exceeds its deadline.
type TimeoutError struct{}

func (e *TimeoutError) Error() string { return "dbus: call timed out" }

// IsUnreachable reports whether err means the remote service or object does
// not exist on the bus.
func IsUnreachable(err error) bool {
	if err == nil {
		return false
	}
	if shutdown.IsUnreachable(err) {
		return true
	}
	var dErr dbus.Error
	if errors.As(err, &dErr) {
		switch dErr.Name {
		case ERR_SERVICE_UNKNOWN, ERR_NAME_HAS_NO_OWNER, ERR_UNKNOWN_OBJECT, ERR_DISCONNECTED:
			return true
		}
	}
	var dErrPtr *dbus.Error
	if errors.As(err, &dErrPtr) && dErrPtr != nil {
		return IsUnreachable(*dErrPtr)
	}
	return false
}

// Wrap turns bus-level "not there" errors into a shutdown.UnreachableError
// for service. Other errors are returned unchanged.
func Wrap(service string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{}
	}
	if IsUnreachable(err) && !shutdown.IsUnreachable(err) {
		return &shutdown.UnreachableError{Service: service, Err: err}
	}
	return err
}
