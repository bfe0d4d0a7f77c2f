package notice

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/b0bbywan/go-odio-powerd/logger"
	"github.com/b0bbywan/go-odio-powerd/shutdown"
)

// Names of the daemon's own D-Bus surface.
const (
	BUS_NAME   = "io.odio.Power1"
	BUS_PATH   = "/io/odio/Power1"
	BUS_IFACE  = "io.odio.Power1"
	BUS_SIGNAL = BUS_IFACE + ".PrepareForShutdown"
)

type emitter interface {
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
}

// BusReceiver announces the shutdown as a D-Bus signal. It does not wait for
// listeners.
type BusReceiver struct {
	conn emitter
}

// NewBusReceiver returns nil when conn is nil.
func NewBusReceiver(conn *dbus.Conn) *BusReceiver {
	if conn == nil {
		return nil
	}
	return &BusReceiver{conn: conn}
}

func (b *BusReceiver) Name() string { return "dbus" }

func (b *BusReceiver) Receive(ctx context.Context, n shutdown.Notice) error {
	logger.Debug("[notice] emitting %s(%s, %q)", BUS_SIGNAL, n.Mode, n.Reason)
	return b.conn.Emit(BUS_PATH, BUS_SIGNAL, n.Mode, n.Reason)
}
