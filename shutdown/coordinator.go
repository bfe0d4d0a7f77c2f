package shutdown

import (
	"context"
	"sync"
	"time"

	"github.com/b0bbywan/go-odio-powerd/logger"
)

// TriggerResult is the only answer a trigger caller ever gets.
type TriggerResult int

const (
	Accepted TriggerResult = iota
	PendingConfirmation
	AlreadyRunning
)

func (r TriggerResult) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case PendingConfirmation:
		return "pending_confirmation"
	case AlreadyRunning:
		return "already_running"
	default:
		return "unknown"
	}
}

// Coordinator runs the shutdown pipeline at most once per process.
type Coordinator struct {
	collab    Collaborators
	timings   Timings
	observer  Observer
	confirmer Confirmer
	sleep     func(time.Duration)

	guard SingleFlightGuard

	mu    sync.RWMutex
	state State
	req   ShutdownRequest
	err   error
	done  chan struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

func WithConfirmer(cf Confirmer) Option {
	return func(c *Coordinator) { c.confirmer = cf }
}

// WithSleep replaces the wait used after the haptic cue.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Coordinator) { c.sleep = sleep }
}

func NewCoordinator(collab Collaborators, timings Timings, opts ...Option) *Coordinator {
	c := &Coordinator{
		collab:  collab,
		timings: timings,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetConfirmer installs the confirmation collaborator. It must be called
// before the first trigger.
func (c *Coordinator) SetConfirmer(cf Confirmer) {
	c.confirmer = cf
}

func (c *Coordinator) RequestShutdown(confirm bool) TriggerResult {
	return c.Request(NewShutdownRequest(confirm))
}

func (c *Coordinator) RequestReboot(reason string, confirm bool) TriggerResult {
	return c.Request(NewRebootRequest(reason, confirm))
}

func (c *Coordinator) RequestRebootToRecovery(confirm bool) TriggerResult {
	return c.Request(NewRecoveryRequest(confirm))
}

// Request triggers the pipeline. It returns right away; the pipeline runs on
// its own goroutine. A trigger while a sequence is running is a no-op.
func (c *Coordinator) Request(req ShutdownRequest) TriggerResult {
	if c.guard.Claimed() {
		logger.Debug("[shutdown] request to %s while shutdown already running, ignoring", req.Mode)
		return AlreadyRunning
	}

	if req.RequireConfirmation {
		if c.confirmer != nil {
			logger.Info("[shutdown] %s requested, waiting for confirmation", req.Mode)
			c.confirmer.ConfirmThenProceed(req, func() bool { return c.begin(req) })
			return PendingConfirmation
		}
		logger.Warn("[shutdown] confirmation requested but no confirmer configured, proceeding")
	}

	if !c.begin(req) {
		return AlreadyRunning
	}
	return Accepted
}

// begin claims the single-flight guard and starts the pipeline.
func (c *Coordinator) begin(req ShutdownRequest) bool {
	if !c.guard.TryClaim() {
		logger.Debug("[shutdown] request to %s while shutdown already running, ignoring", req.Mode)
		return false
	}

	c.mu.Lock()
	c.req = req
	c.mu.Unlock()

	logger.Info("[shutdown] %s sequence claimed (reason: %q)", req.Mode, req.Reason)
	if c.confirmer != nil {
		c.confirmer.Withdraw()
	}
	c.transition(StateClaimed)

	go c.run(req)
	return true
}

func (c *Coordinator) run(req ShutdownRequest) {
	defer close(c.done)
	ctx := context.Background()

	c.transition(StateBroadcastingNotice)
	BroadcastPhase{Transport: c.collab.Broadcast, Timeout: c.timings.Broadcast}.Run(ctx, Notice{
		Topic:  TopicShutdown,
		Mode:   req.Mode.String(),
		Reason: req.Reason,
	})

	c.transition(StateShuttingDownLifecycle)
	LifecyclePhase{Manager: c.collab.Lifecycle, Timeout: c.timings.Lifecycle}.Run(ctx)

	c.transition(StateQuiescingRadioAndWireless)
	c.quiesce(ctx)

	c.transition(StateShuttingDownStorage)
	StorageShutdownPhase{Manager: c.collab.Storage, Timeout: c.timings.Storage}.Run(ctx)

	c.transition(StateExecutingTerminalAction)
	err := TerminalAction{
		Power:   c.collab.Power,
		Vibrate: c.timings.Vibrate,
		Sleep:   c.sleep,
	}.Execute(req)

	// Still here: nothing halted the system.
	logger.Error("[shutdown] %v", err)
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.transition(StateTerminalActionReturned)
}

func (c *Coordinator) quiesce(ctx context.Context) {
	wireless := NewSubsystemPoller("bluetooth", c.collab.Wireless)
	radio := NewSubsystemPoller("radio", c.collab.Radio)

	wireless.Begin(ctx)
	radio.Begin(ctx)

	logger.Info("[shutdown] waiting for bluetooth and radio...")
	res := QuiesceSubsystems(ctx, c.timings.MaxPolls, c.timings.PollInterval, wireless, radio)
	if res.AllOff() {
		logger.Info("[shutdown] radio and bluetooth shutdown complete")
		return
	}
	logger.Warn("[shutdown] radio and bluetooth not confirmed off after %s (%v), proceeding", res.Elapsed, res.Statuses)
}

func (c *Coordinator) transition(s State) {
	c.mu.Lock()
	c.state = s
	req := c.req
	c.mu.Unlock()

	logger.Debug("[shutdown] state -> %s", s)
	if c.observer != nil {
		c.observer.OnStateChange(s, req)
	}
}

// State returns the current pipeline state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ActiveRequest returns the claimed request, if any.
func (c *Coordinator) ActiveRequest() (ShutdownRequest, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.req, c.state != StateIdle
}

// Claimed reports whether a sequence has started.
func (c *Coordinator) Claimed() bool {
	return c.guard.Claimed()
}

// Done is closed when the pipeline has run to its end without halting the
// system.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err returns the terminal failure once Done is closed.
func (c *Coordinator) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}
