package api

import (
	"errors"
	"sync"
	"time"

	"github.com/b0bbywan/go-odio-powerd/events"
	"github.com/b0bbywan/go-odio-powerd/logger"
	"github.com/b0bbywan/go-odio-powerd/shutdown"
)

const (
	CancelReasonUser       = "cancelled"
	CancelReasonExpired    = "expired"
	CancelReasonSuperseded = "superseded"
	CancelReasonClaimed    = "already_running"
)

var (
	ErrNothingPending = errors.New("nothing to confirm")
	ErrAlreadyRunning = errors.New("another shutdown is already running")
)

type publisher interface {
	Publish(e events.Event)
}

type PendingData struct {
	Mode      string    `json:"mode"`
	Reason    string    `json:"reason,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CancelledData struct {
	PendingData
	Cause string `json:"cause"`
}

type pending struct {
	req       shutdown.ShutdownRequest
	onConfirm func() bool
	timer     *time.Timer
	expiresAt time.Time
}

func (p *pending) data() PendingData {
	return PendingData{Mode: p.req.Mode.String(), Reason: p.req.Reason, ExpiresAt: p.expiresAt}
}

// PendingConfirmer holds at most one request waiting for a user to confirm
// it over the API. A newer request replaces the older one.
type PendingConfirmer struct {
	timeout time.Duration
	pub     publisher

	mu      sync.Mutex
	current *pending
}

func NewPendingConfirmer(timeout time.Duration, pub publisher) *PendingConfirmer {
	return &PendingConfirmer{timeout: timeout, pub: pub}
}

func (c *PendingConfirmer) ConfirmThenProceed(req shutdown.ShutdownRequest, onConfirm func() bool) {
	p := &pending{
		req:       req,
		onConfirm: onConfirm,
		expiresAt: time.Now().Add(c.timeout),
	}

	c.mu.Lock()
	old := c.current
	if old != nil {
		old.timer.Stop()
	}
	c.current = p
	p.timer = time.AfterFunc(c.timeout, func() { c.expire(p) })
	c.mu.Unlock()

	if old != nil {
		c.cancelled(old, CancelReasonSuperseded)
	}
	logger.Info("[api] %s waiting for confirmation until %s", req.Mode, p.expiresAt.Format(time.TimeOnly))
	c.publish(events.TypePowerPending, p.data())
}

// Pending returns the request waiting for confirmation, if any.
func (c *PendingConfirmer) Pending() (PendingData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return PendingData{}, false
	}
	return c.current.data(), true
}

// Confirm runs the pending request. It fails with ErrNothingPending when
// nothing waits, and with ErrAlreadyRunning when another request claimed the
// pipeline first.
func (c *PendingConfirmer) Confirm() error {
	p := c.take(nil)
	if p == nil {
		return ErrNothingPending
	}
	if !p.onConfirm() {
		c.cancelled(p, CancelReasonClaimed)
		return ErrAlreadyRunning
	}
	logger.Info("[api] %s confirmed", p.req.Mode)
	return nil
}

// Cancel drops the pending request. It reports false when nothing is
// pending.
func (c *PendingConfirmer) Cancel() bool {
	p := c.take(nil)
	if p == nil {
		return false
	}
	c.cancelled(p, CancelReasonUser)
	return true
}

// Withdraw drops the pending request because the pipeline is already
// claimed.
func (c *PendingConfirmer) Withdraw() {
	if p := c.take(nil); p != nil {
		c.cancelled(p, CancelReasonClaimed)
	}
}

func (c *PendingConfirmer) expire(p *pending) {
	if c.take(p) == nil {
		return
	}
	c.cancelled(p, CancelReasonExpired)
}

// take removes the current request, only if it is want when want is set.
func (c *PendingConfirmer) take(want *pending) *pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.current
	if p == nil || (want != nil && p != want) {
		return nil
	}
	p.timer.Stop()
	c.current = nil
	return p
}

func (c *PendingConfirmer) cancelled(p *pending, cause string) {
	logger.Info("[api] %s not confirmed: %s", p.req.Mode, cause)
	c.publish(events.TypePowerCancelled, CancelledData{PendingData: p.data(), Cause: cause})
}

func (c *PendingConfirmer) publish(typ string, data any) {
	if c.pub != nil {
		c.pub.Publish(events.Event{Type: typ, Data: data})
	}
}
