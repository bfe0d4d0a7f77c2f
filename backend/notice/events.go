package notice

import (
	"context"

	"github.com/b0bbywan/go-odio-powerd/events"
	"github.com/b0bbywan/go-odio-powerd/logger"
	"github.com/b0bbywan/go-odio-powerd/shutdown"
)

// EventReceiver forwards the notice to event stream subscribers.
type EventReceiver struct {
	eventsC chan events.Event
}

func NewEventReceiver() *EventReceiver {
	return &EventReceiver{eventsC: make(chan events.Event, 4)}
}

func (e *EventReceiver) Name() string { return "events" }

func (e *EventReceiver) Events() <-chan events.Event {
	return e.eventsC
}

func (e *EventReceiver) Receive(ctx context.Context, n shutdown.Notice) error {
	ev := events.Event{
		Type: events.TypePowerNotice,
		Data: n,
	}
	select {
	case e.eventsC <- ev:
	default:
		logger.Warn("[notice] event channel full, dropping %s event", ev.Type)
	}
	return nil
}
