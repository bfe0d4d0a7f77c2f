package login1

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	idbus "github.com/b0bbywan/go-odio-powerd/backend/internal/dbus"
	"github.com/b0bbywan/go-odio-powerd/cache"
	"github.com/b0bbywan/go-odio-powerd/config"
	"github.com/b0bbywan/go-odio-powerd/logger"
)

// Login1Backend drives reboot and power-off through systemd-logind.
type Login1Backend struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	ctx    context.Context
	settle time.Duration
	caps   *cache.Cache[bool]

	// wait is how the backend sits out the settle period.
	wait func(time.Duration)
}

// New connects to logind. It returns nil, nil when another power driver is
// configured.
func New(ctx context.Context, cfg *config.PowerConfig) (*Login1Backend, error) {
	if cfg == nil || cfg.Driver != config.DriverLogin1 {
		return nil, nil
	}

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, err
	}

	backend := newBackend(ctx, idbus.GetObject(conn, LOGIN1_PREFIX, LOGIN1_PATH), cfg.Settle)
	backend.conn = conn

	logger.Info("[login1] backend initialized")
	return backend, nil
}

func newBackend(ctx context.Context, obj dbus.BusObject, settle time.Duration) *Login1Backend {
	return &Login1Backend{
		obj:    obj,
		ctx:    ctx,
		settle: settle,
		caps:   cache.New[bool](time.Minute),
		wait:   time.Sleep,
	}
}

// Close cleanly closes the bus connection.
func (l *Login1Backend) Close() {
	if l.conn != nil {
		if err := l.conn.Close(); err != nil {
			logger.Error("[login1] failed to close D-Bus connection: %v", err)
		}
		l.conn = nil
	}
}

// CanReboot reports whether logind would accept a non-interactive reboot.
func (l *Login1Backend) CanReboot() (bool, error) {
	return l.capability(LOGIN1_CAPABILITY_REBOOT)
}

// CanPowerOff reports whether logind would accept a non-interactive power-off.
func (l *Login1Backend) CanPowerOff() (bool, error) {
	return l.capability(LOGIN1_CAPABILITY_POWEROFF)
}

func (l *Login1Backend) capability(method string) (bool, error) {
	return l.caps.GetOrLoad(method, func() (bool, error) {
		call, err := idbus.Call(l.ctx, l.obj, method)
		if err != nil {
			return false, idbus.Wrap("login1", err)
		}
		var answer string
		if err := call.Store(&answer); err != nil {
			return false, err
		}
		logger.Debug("[login1] %s -> %s", method, answer)
		return answer == capabilityYes, nil
	})
}

// checkCapability fails only on an explicit refusal. A probe that errors is
// logged and the action is attempted anyway.
func (l *Login1Backend) checkCapability(method, action string) error {
	ok, err := l.capability(method)
	if err != nil {
		logger.Warn("[login1] capability check %s failed, trying anyway: %v", method, err)
		return nil
	}
	if !ok {
		return &CapabilityError{Required: action + " capability"}
	}
	return nil
}

// Reboot sets the reboot argument to reason and asks logind to reboot. It
// only returns when the system is still running.
func (l *Login1Backend) Reboot(reason string) error {
	if err := l.checkCapability(LOGIN1_CAPABILITY_REBOOT, "reboot"); err != nil {
		return err
	}
	if reason != "" {
		if err := idbus.CallMethod(l.ctx, l.obj, LOGIN1_METHOD_REBOOT_PARAMETER, reason); err != nil {
			logger.Warn("[login1] failed to set reboot parameter %q: %v", reason, err)
		}
	}

	logger.Info("[login1] reboot requested (reason: %q)", reason)
	if err := idbus.CallMethod(l.ctx, l.obj, LOGIN1_METHOD_REBOOT, false); err != nil {
		return fmt.Errorf("login1 reboot: %w", idbus.Wrap("login1", err))
	}
	return l.settleOrFail("reboot")
}

// RebootToRecovery reboots with the recovery reboot argument.
func (l *Login1Backend) RebootToRecovery(reason string) error {
	return l.Reboot(reason)
}

// PowerOff asks logind to power off. It only returns when the system is
// still running.
func (l *Login1Backend) PowerOff() error {
	if err := l.checkCapability(LOGIN1_CAPABILITY_POWEROFF, "poweroff"); err != nil {
		return err
	}

	logger.Info("[login1] poweroff requested")
	if err := idbus.CallMethod(l.ctx, l.obj, LOGIN1_METHOD_POWEROFF, false); err != nil {
		return fmt.Errorf("login1 poweroff: %w", idbus.Wrap("login1", err))
	}
	return l.settleOrFail("poweroff")
}

func (l *Login1Backend) settleOrFail(action string) error {
	l.wait(l.settle)
	return &NotHaltedError{Action: action, After: l.settle}
}
