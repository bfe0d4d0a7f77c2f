// Package modem switches the cellular radio through ModemManager.
package modem

import (
	"context"
	"fmt"
	"sort"

	"github.com/godbus/dbus/v5"

	idbus "github.com/b0bbywan/go-odio-powerd/backend/internal/dbus"
	"github.com/b0bbywan/go-odio-powerd/config"
	"github.com/b0bbywan/go-odio-powerd/logger"
)

const (
	MM_SERVICE       = "org.freedesktop.ModemManager1"
	MM_PATH          = "/org/freedesktop/ModemManager1"
	MM_MODEM_IFACE   = MM_SERVICE + ".Modem"
	MM_METHOD_ENABLE = MM_MODEM_IFACE + ".Enable"

	// MM_MODEM_STATE_ENABLING and above mean the radio is, or is about to
	// be, powered.
	MM_MODEM_STATE_ENABLING int32 = 5
)

// ModemBackend reports and switches the radio of every managed modem.
type ModemBackend struct {
	conn  idbus.Conn
	close func() error
}

// New returns nil, nil when the radio is not managed.
func New(cfg *config.RadioConfig) (*ModemBackend, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, err
	}
	logger.Info("[modem] backend initialized")
	return &ModemBackend{conn: conn, close: conn.Close}, nil
}

func (m *ModemBackend) Close() {
	if m.close != nil {
		if err := m.close(); err != nil {
			logger.Error("[modem] failed to close D-Bus connection: %v", err)
		}
		m.close = nil
	}
}

func (m *ModemBackend) Name() string { return "radio" }

// modems returns the modem object paths and their State, sorted by path.
func (m *ModemBackend) modems(ctx context.Context) ([]dbus.ObjectPath, map[dbus.ObjectPath]int32, error) {
	objects, err := idbus.GetManagedObjects(ctx, idbus.GetObject(m.conn, MM_SERVICE, MM_PATH))
	if err != nil {
		return nil, nil, idbus.Wrap("modemmanager", err)
	}

	states := make(map[dbus.ObjectPath]int32)
	var paths []dbus.ObjectPath
	for path, ifaces := range objects {
		props, ok := ifaces[MM_MODEM_IFACE]
		if !ok {
			continue
		}
		state, _ := idbus.MapInt32(props, "State")
		states[path] = state
		paths = append(paths, path)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })
	return paths, states, nil
}

// IsOn reports whether any modem radio is enabled or enabling.
func (m *ModemBackend) IsOn(ctx context.Context) (bool, error) {
	paths, states, err := m.modems(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range paths {
		if states[p] >= MM_MODEM_STATE_ENABLING {
			return true, nil
		}
	}
	return false, nil
}

// SetOn enables or disables every modem. ModemManager never persists the
// enabled state, so persist has no effect.
func (m *ModemBackend) SetOn(ctx context.Context, on, persist bool) error {
	paths, _, err := m.modems(ctx)
	if err != nil {
		return err
	}

	var failed int
	for _, p := range paths {
		logger.Debug("[modem] Enable(%v) on %s", on, p)
		obj := m.conn.Object(MM_SERVICE, p)
		if err := idbus.CallMethod(ctx, obj, MM_METHOD_ENABLE, on); err != nil {
			logger.Warn("[modem] Enable(%v) failed on %s: %v", on, p, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("modem: %d of %d modems did not accept Enable(%v)", failed, len(paths), on)
	}
	return nil
}
