package shutdown

import (
	"time"

	"github.com/b0bbywan/go-odio-powerd/logger"
)

// TerminalAction performs the irreversible step selected by the request mode.
type TerminalAction struct {
	Power   PowerPrimitives
	Vibrate time.Duration
	// Sleep waits for the vibration to finish; defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Execute does not return when a primitive succeeds. A returned
// *TerminalError lists every primitive that came back.
//
// A reboot or recovery reboot that returns falls back to PowerOff, without
// the haptic cue. Recovery is not skipped past power off: a device left
// running after a failed recovery reboot has no way to ask again.
func (t TerminalAction) Execute(req ShutdownRequest) error {
	if t.Power == nil {
		err := &UnreachableError{Service: "power primitives"}
		logger.Error("[shutdown] %v, cannot complete %s", err, req.Mode)
		return &TerminalError{Mode: req.Mode, Attempts: []error{err}}
	}

	var attempts []error

	switch req.Mode {
	case ModeRebootToRecovery:
		logger.Info("[shutdown] rebooting to recovery, reason: %s", req.Reason)
		err := &ReturnedError{Primitive: "reboot to recovery", Err: safeCall(func() error {
			return t.Power.RebootToRecovery(req.Reason)
		})}
		logger.Error("[shutdown] %v, will attempt power off instead", err)
		attempts = append(attempts, err)

	case ModeReboot:
		logger.Info("[shutdown] rebooting, reason: %s", req.Reason)
		err := &ReturnedError{Primitive: "reboot", Err: safeCall(func() error {
			return t.Power.Reboot(req.Reason)
		})}
		logger.Error("[shutdown] %v, will attempt power off instead", err)
		attempts = append(attempts, err)

	default:
		t.vibrate()
	}

	logger.Info("[shutdown] performing low-level power off...")
	err := &ReturnedError{Primitive: "power off", Err: safeCall(t.Power.PowerOff)}
	logger.Error("[shutdown] %v", err)
	attempts = append(attempts, err)

	return &TerminalError{Mode: req.Mode, Attempts: attempts}
}

// vibrate runs the haptic cue and waits for it, since the motor is driven
// asynchronously.
func (t TerminalAction) vibrate() {
	if t.Vibrate <= 0 {
		return
	}
	if err := safeCall(func() error { return t.Power.Vibrate(t.Vibrate) }); err != nil {
		logger.Warn("[shutdown] vibration failed: %v", err)
		return
	}
	sleep := t.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	sleep(t.Vibrate)
}
