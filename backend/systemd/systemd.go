package systemd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/coreos/go-systemd/v22/dbus"

	"github.com/b0bbywan/go-odio-powerd/config"
	"github.com/b0bbywan/go-odio-powerd/logger"
)

// New connects to the system and user managers for the configured units.
func New(ctx context.Context, cfg *config.LifecycleConfig) (*SystemdBackend, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	if len(cfg.SystemUnits) == 0 && len(cfg.UserUnits) == 0 {
		logger.Debug("[systemd] no unit configured, disabling backend")
		return nil, nil
	}

	backend := &SystemdBackend{ctx: ctx, config: cfg}
	if len(cfg.SystemUnits) > 0 {
		conn, err := dbus.NewSystemConnectionContext(ctx)
		if err != nil {
			return nil, err
		}
		backend.sysConn = conn
	}

	if len(cfg.UserUnits) > 0 {
		if os.Getenv("DBUS_SESSION_BUS_ADDRESS") == "" && cfg.XDGRuntimeDir != "" {
			_ = os.Setenv("DBUS_SESSION_BUS_ADDRESS", "unix:path="+filepath.Join(cfg.XDGRuntimeDir, "bus"))
		}
		conn, err := dbus.NewUserConnectionContext(ctx)
		if err != nil {
			backend.Close()
			return nil, err
		}
		backend.userConn = conn
	}

	logger.Info("[systemd] backend initialized (%d system, %d user units)", len(cfg.SystemUnits), len(cfg.UserUnits))
	return backend, nil
}

// Close cleanly closes the connections
func (s *SystemdBackend) Close() {
	if s.sysConn != nil {
		s.sysConn.Close()
		s.sysConn = nil
	}
	if s.userConn != nil {
		s.userConn.Close()
		s.userConn = nil
	}
}

// NotifyShutdown stops the configured system units, then the user units.
// The whole call is bounded by timeoutHint.
func (s *SystemdBackend) NotifyShutdown(ctx context.Context, timeoutHint time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeoutHint)
	defer cancel()

	start := time.Now()
	sysErr := s.stopUnits(ctx, s.sysConn, ScopeSystem, s.config.SystemUnits)
	userErr := s.stopUnits(ctx, s.userConn, ScopeUser, s.config.UserUnits)
	logger.Debug("[systemd] units stopped in %s", time.Since(start))

	return errors.Join(sysErr, userErr)
}

func (s *SystemdBackend) stopUnits(ctx context.Context, conn unitConn, scope UnitScope, names []string) error {
	if conn == nil || len(names) == 0 {
		return nil
	}

	units, err := conn.ListUnitsByNamesContext(ctx, names)
	if err != nil {
		return err
	}

	type job struct {
		unit string
		ch   chan string
	}
	var jobs []job
	var errs []error
	for _, unit := range units {
		if !isRunning(unit) {
			logger.Debug("[systemd] %s/%s not running (%s), skipping", scope, unit.Name, unit.ActiveState)
			continue
		}
		logger.Info("[systemd] stopping %s/%s", scope, unit.Name)
		ch := make(chan string, 1)
		if _, err := conn.StopUnitContext(ctx, unit.Name, stopMode, ch); err != nil {
			errs = append(errs, &StopError{Unit: unit.Name, Scope: scope, Result: err.Error()})
			continue
		}
		jobs = append(jobs, job{unit: unit.Name, ch: ch})
	}

	for _, j := range jobs {
		select {
		case result := <-j.ch:
			if result != "done" {
				errs = append(errs, &StopError{Unit: j.unit, Scope: scope, Result: result})
			}
		case <-ctx.Done():
			errs = append(errs, &StopError{Unit: j.unit, Scope: scope, Result: "timeout"})
		}
	}
	return errors.Join(errs...)
}

func isRunning(unit dbus.UnitStatus) bool {
	if unit.LoadState != "loaded" {
		return false
	}
	switch unit.ActiveState {
	case "active", "activating", "reloading":
		return true
	}
	return false
}
