// Package mpris pauses media players on the session bus before shutdown.
package mpris

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	idbus "github.com/b0bbywan/go-odio-powerd/backend/internal/dbus"
	"github.com/b0bbywan/go-odio-powerd/config"
	"github.com/b0bbywan/go-odio-powerd/logger"
	"github.com/b0bbywan/go-odio-powerd/shutdown"
)

type MPRISBackend struct {
	conn    idbus.Conn
	close   func() error
	timeout time.Duration
}

func New(ctx context.Context, cfg *config.MPRISConfig) (*MPRISBackend, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return &MPRISBackend{conn: conn, close: conn.Close, timeout: cfg.Timeout}, nil
}

func (m *MPRISBackend) Name() string { return "mpris" }

func validateBusName(busName string) error {
	if busName == "" {
		return &InvalidBusNameError{BusName: busName, Reason: "empty bus name"}
	}
	if !strings.HasPrefix(busName, MPRIS_PREFIX+".") {
		return &InvalidBusNameError{BusName: busName, Reason: "must start with " + MPRIS_PREFIX + "."}
	}
	if strings.Contains(busName, "..") || strings.Contains(busName, "/") || strings.ContainsAny(busName, "\x00\r\n") {
		return &InvalidBusNameError{BusName: busName, Reason: "contains illegal characters"}
	}
	return nil
}

// Players lists the bus names of the MPRIS players currently on the bus.
func (m *MPRISBackend) Players(ctx context.Context) ([]string, error) {
	var names []string
	call, err := idbus.Call(ctx, m.conn.Object(idbus.DBUS_INTERFACE, idbus.DBUS_PATH), dbusListNamesMethod)
	if err != nil {
		return nil, err
	}
	if err := call.Store(&names); err != nil {
		return nil, err
	}

	players := make([]string, 0)
	for _, name := range names {
		if validateBusName(name) == nil {
			players = append(players, name)
		}
	}
	return players, nil
}

// Receive pauses every playing player. Each player gets its own timeout so a
// hung one does not hold the others.
func (m *MPRISBackend) Receive(ctx context.Context, n shutdown.Notice) error {
	players, err := m.Players(ctx)
	if err != nil {
		return idbus.Wrap("session bus", err)
	}

	var errs []error
	for _, busName := range players {
		pctx, cancel := context.WithTimeout(ctx, m.timeout)
		err := m.pause(pctx, busName)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", busName, err))
		}
	}
	return errors.Join(errs...)
}

func (m *MPRISBackend) pause(ctx context.Context, busName string) error {
	obj := idbus.GetObject(m.conn, busName, MPRIS_PATH)

	v, err := idbus.GetProperty(ctx, obj, MPRIS_PLAYER_IFACE, MPRIS_PROP_STATUS)
	if err != nil {
		return err
	}
	if status, _ := idbus.ExtractString(v); PlaybackStatus(status) != StatusPlaying {
		logger.Debug("[mpris] %s is %s, nothing to pause", busName, status)
		return nil
	}

	if err := idbus.CallMethod(ctx, obj, MPRIS_METHOD_PAUSE); err != nil {
		return err
	}
	logger.Info("[mpris] paused %s", busName)
	return nil
}

func (m *MPRISBackend) Close() {
	if m.close != nil {
		if err := m.close(); err != nil {
			logger.Warn("[mpris] failed to close session bus: %v", err)
		}
	}
}
