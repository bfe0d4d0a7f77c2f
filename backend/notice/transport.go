// Package notice delivers the shutdown notice to local receivers in order.
package notice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/b0bbywan/go-odio-powerd/logger"
	"github.com/b0bbywan/go-odio-powerd/shutdown"
)

// Receiver is one party that wants to hear about an imminent shutdown.
// Receive returns once the receiver is ready for the system to go down.
type Receiver interface {
	Name() string
	Receive(ctx context.Context, n shutdown.Notice) error
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc struct {
	ID string
	Fn func(ctx context.Context, n shutdown.Notice) error
}

func (r ReceiverFunc) Name() string { return r.ID }

func (r ReceiverFunc) Receive(ctx context.Context, n shutdown.Notice) error {
	return r.Fn(ctx, n)
}

// Transport is an ordered broadcast: receivers run one after another in
// registration order, and the completion callback fires after the last one.
type Transport struct {
	mu        sync.RWMutex
	receivers []Receiver
}

func NewTransport(receivers ...Receiver) *Transport {
	t := &Transport{}
	for _, r := range receivers {
		t.Add(r)
	}
	return t
}

// Add appends r. A nil receiver is ignored.
func (t *Transport) Add(r Receiver) {
	if r == nil {
		return
	}
	t.mu.Lock()
	t.receivers = append(t.receivers, r)
	t.mu.Unlock()
}

// Receivers returns the receiver names in delivery order.
func (t *Transport) Receivers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.receivers))
	for _, r := range t.receivers {
		names = append(names, r.Name())
	}
	return names
}

// SendOrderedNotice starts delivery and returns immediately.
func (t *Transport) SendOrderedNotice(ctx context.Context, n shutdown.Notice, onAllReceiversDone func()) error {
	t.mu.RLock()
	receivers := make([]Receiver, len(t.receivers))
	copy(receivers, t.receivers)
	t.mu.RUnlock()

	logger.Info("[notice] sending %s to %d receivers", n.Topic, len(receivers))
	go func() {
		for _, r := range receivers {
			start := time.Now()
			if err := deliver(ctx, r, n); err != nil {
				logger.Warn("[notice] receiver %s failed: %v", r.Name(), err)
				continue
			}
			logger.Debug("[notice] receiver %s done in %s", r.Name(), time.Since(start))
		}
		if onAllReceiversDone != nil {
			onAllReceiversDone()
		}
	}()
	return nil
}

func deliver(ctx context.Context, r Receiver, n shutdown.Notice) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.Receive(ctx, n)
}
