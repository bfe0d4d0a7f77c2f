package backend

import (
	"github.com/b0bbywan/go-odio-powerd/events"
	"github.com/b0bbywan/go-odio-powerd/logger"
	"github.com/b0bbywan/go-odio-powerd/shutdown"
)

type StateData struct {
	State  string `json:"state"`
	Mode   string `json:"mode,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Observer turns pipeline transitions into power.state events. Reaching
// TerminalActionReturned also emits power.failed.
func (b *Backend) Observer() shutdown.Observer {
	return shutdown.ObserverFunc(func(state shutdown.State, req shutdown.ShutdownRequest) {
		data := StateData{State: state.String(), Mode: req.Mode.String(), Reason: req.Reason}
		b.emit(events.Event{Type: events.TypePowerState, Data: data})
		if state == shutdown.StateTerminalActionReturned {
			b.emit(events.Event{Type: events.TypePowerFailed, Data: data})
		}
	})
}

func (b *Backend) emit(e events.Event) {
	select {
	case b.progressC <- e:
	default:
		logger.Warn("[backend] progress channel full, dropping %s event", e.Type)
	}
}
