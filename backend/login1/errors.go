package login1

import "time"

// CapabilityError indicates that logind refuses the action for this caller.
type CapabilityError struct {
	Required string
}

func (e *CapabilityError) Error() string {
	return "action not allowed (requires " + e.Required + ")"
}

// NotHaltedError is returned when logind accepted the request but the
// process was still alive after the settle period.
type NotHaltedError struct {
	Action string
	After  time.Duration
}

func (e *NotHaltedError) Error() string {
	return "login1: " + e.Action + " accepted but system still running after " + e.After.String()
}
