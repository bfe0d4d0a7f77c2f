// Package bluetooth switches the BlueZ adapter power.
package bluetooth

import (
	"context"

	"github.com/godbus/dbus/v5"

	idbus "github.com/b0bbywan/go-odio-powerd/backend/internal/dbus"
	"github.com/b0bbywan/go-odio-powerd/config"
	"github.com/b0bbywan/go-odio-powerd/logger"
)

type BluetoothBackend struct {
	conn    idbus.Conn
	close   func() error
	adapter string
}

// New returns nil, nil when Bluetooth is not managed.
func New(cfg *config.BluetoothConfig) (*BluetoothBackend, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, err
	}

	adapter := cfg.Adapter
	if adapter == "" {
		adapter = DEFAULT_ADAPTER
	}

	logger.Info("[bluetooth] backend initialized on %s", adapter)
	return &BluetoothBackend{conn: conn, close: conn.Close, adapter: adapter}, nil
}

func (b *BluetoothBackend) Close() {
	if b.close != nil {
		if err := b.close(); err != nil {
			logger.Info("[bluetooth] failed to close D-Bus connection: %v", err)
		}
		b.close = nil
	}
}

func (b *BluetoothBackend) Name() string { return "bluetooth" }

func (b *BluetoothBackend) adapterObj() dbus.BusObject {
	return idbus.GetObject(b.conn, BLUETOOTH_PREFIX, BLUEZ_PATH+"/"+b.adapter)
}

func (b *BluetoothBackend) getAdapterBool(ctx context.Context, prop BluetoothState) (bool, error) {
	v, err := idbus.GetProperty(ctx, b.adapterObj(), BLUETOOTH_ADAPTER, prop.toString())
	if err != nil {
		return false, idbus.Wrap("bluez", err)
	}
	on, _ := idbus.ExtractBool(v)
	return on, nil
}

func (b *BluetoothBackend) setAdapterProp(ctx context.Context, prop BluetoothState, value interface{}) error {
	return idbus.Wrap("bluez", idbus.SetProperty(ctx, b.adapterObj(), BLUETOOTH_ADAPTER, prop.toString(), value))
}

// IsOn reports the adapter Powered property.
func (b *BluetoothBackend) IsOn(ctx context.Context) (bool, error) {
	return b.getAdapterBool(ctx, BT_STATE_POWERED)
}

// SetOn switches the adapter. BlueZ restores the power state from its own
// main.conf, so persist is only logged.
func (b *BluetoothBackend) SetOn(ctx context.Context, on, persist bool) error {
	logger.Debug("[bluetooth] set Powered=%v on %s (persist=%v)", on, b.adapter, persist)
	if !on {
		if err := b.setAdapterProp(ctx, BT_STATE_DISCOVERABLE, false); err != nil {
			logger.Debug("[bluetooth] failed to stop discoverable mode: %v", err)
		}
	}
	return b.setAdapterProp(ctx, BT_STATE_POWERED, on)
}
