package systemd

import (
	"context"

	"github.com/coreos/go-systemd/v22/dbus"

	"github.com/b0bbywan/go-odio-powerd/config"
)

type UnitScope string

const (
	ScopeSystem UnitScope = "system"
	ScopeUser   UnitScope = "user"

	stopMode = "replace"
)

// unitConn is the part of the go-systemd connection used to stop units.
type unitConn interface {
	ListUnitsByNamesContext(ctx context.Context, units []string) ([]dbus.UnitStatus, error)
	StopUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	Close()
}

type SystemdBackend struct {
	sysConn  unitConn
	userConn unitConn
	ctx      context.Context
	config   *config.LifecycleConfig
}

// StopError reports a unit whose stop job did not finish with "done".
type StopError struct {
	Unit   string
	Scope  UnitScope
	Result string
}

func (e *StopError) Error() string {
	return "stop " + string(e.Scope) + "/" + e.Unit + ": " + e.Result
}
