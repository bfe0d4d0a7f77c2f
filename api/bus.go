package api

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/b0bbywan/go-odio-powerd/backend/notice"
	"github.com/b0bbywan/go-odio-powerd/logger"
	"github.com/b0bbywan/go-odio-powerd/shutdown"
)

type busConn interface {
	Export(v interface{}, path dbus.ObjectPath, iface string) error
	RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error)
	ReleaseName(name string) (dbus.ReleaseNameReply, error)
}

// NameTakenError is returned when another process owns the bus name.
type NameTakenError struct {
	Name  string
	Reply dbus.RequestNameReply
}

func (e *NameTakenError) Error() string {
	return fmt.Sprintf("dbus: name %s not acquired (reply %d)", e.Name, e.Reply)
}

// power1 holds the methods exported on io.odio.Power1. Every method answers
// with the trigger result string.
type power1 struct {
	coordinator *shutdown.Coordinator
}

func (p *power1) PowerOff(confirm bool) (string, *dbus.Error) {
	logger.Debug("[dbus] PowerOff(confirm=%t)", confirm)
	return p.coordinator.RequestShutdown(confirm).String(), nil
}

func (p *power1) Reboot(reason string, confirm bool) (string, *dbus.Error) {
	logger.Debug("[dbus] Reboot(%q, confirm=%t)", reason, confirm)
	return p.coordinator.RequestReboot(reason, confirm).String(), nil
}

func (p *power1) RebootToRecovery(confirm bool) (string, *dbus.Error) {
	logger.Debug("[dbus] RebootToRecovery(confirm=%t)", confirm)
	return p.coordinator.RequestRebootToRecovery(confirm).String(), nil
}

func (p *power1) State() (string, *dbus.Error) {
	return p.coordinator.State().String(), nil
}

// BusService exposes the trigger entry points on the system bus.
type BusService struct {
	conn   busConn
	object *power1
}

// NewBusService returns nil when there is no bus connection.
func NewBusService(conn *dbus.Conn, c *shutdown.Coordinator) *BusService {
	if conn == nil || c == nil {
		return nil
	}
	return newBusService(conn, c)
}

func newBusService(conn busConn, c *shutdown.Coordinator) *BusService {
	return &BusService{conn: conn, object: &power1{coordinator: c}}
}

func (s *BusService) introspection() *introspect.Node {
	return &introspect.Node{
		Name: notice.BUS_PATH,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    notice.BUS_IFACE,
				Methods: introspect.Methods(s.object),
				Signals: []introspect.Signal{
					{
						Name: "PrepareForShutdown",
						Args: []introspect.Arg{
							{Name: "mode", Type: "s"},
							{Name: "reason", Type: "s"},
						},
					},
				},
			},
		},
	}
}

// Start exports the object and claims the well-known name.
func (s *BusService) Start() error {
	if err := s.conn.Export(s.object, notice.BUS_PATH, notice.BUS_IFACE); err != nil {
		return err
	}
	node := introspect.NewIntrospectable(s.introspection())
	if err := s.conn.Export(node, notice.BUS_PATH, "org.freedesktop.DBus.Introspectable"); err != nil {
		return err
	}

	reply, err := s.conn.RequestName(notice.BUS_NAME, dbus.NameFlagDoNotQueue)
	if err != nil {
		return err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return &NameTakenError{Name: notice.BUS_NAME, Reply: reply}
	}

	logger.Info("[dbus] %s exported at %s", notice.BUS_NAME, notice.BUS_PATH)
	return nil
}

func (s *BusService) Close() {
	if _, err := s.conn.ReleaseName(notice.BUS_NAME); err != nil {
		logger.Warn("[dbus] failed to release %s: %v", notice.BUS_NAME, err)
	}
	if err := s.conn.Export(nil, notice.BUS_PATH, notice.BUS_IFACE); err != nil {
		logger.Warn("[dbus] failed to unexport %s: %v", notice.BUS_PATH, err)
	}
}
