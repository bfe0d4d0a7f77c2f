package shutdown

import (
	"context"
	"fmt"
	"time"

	"github.com/b0bbywan/go-odio-powerd/logger"
)

// lifecycleGrace is added to the lifecycle timeout hint before the phase
// stops waiting for the manager.
const lifecycleGrace = 500 * time.Millisecond

// BroadcastPhase sends the shutdown notice and waits for every receiver to
// finish, or for the timeout. A timeout completes the phase.
type BroadcastPhase struct {
	Transport BroadcastTransport
	Timeout   time.Duration
}

// Run returns nil when all receivers acknowledged, and the reason otherwise.
// The returned error is informational only.
func (b BroadcastPhase) Run(ctx context.Context, notice Notice) error {
	if b.Transport == nil {
		err := &UnreachableError{Service: "broadcast transport"}
		logger.Warn("[shutdown] %v, skipping notice", err)
		return err
	}

	logger.Info("[shutdown] sending shutdown broadcast...")
	latch := NewLatch()
	deadline := NewPhaseDeadline(b.Timeout)

	if err := safeCall(func() error {
		return b.Transport.SendOrderedNotice(ctx, notice, latch.Signal)
	}); err != nil {
		logger.Error("[shutdown] shutdown broadcast failed: %v", err)
		return err
	}

	if !latch.AwaitUntil(deadline.Deadline()) {
		err := &TimeoutError{Phase: "shutdown broadcast", After: b.Timeout}
		logger.Warn("[shutdown] %v", err)
		return err
	}
	logger.Debug("[shutdown] shutdown broadcast acknowledged in %s", time.Since(deadline.Start))
	return nil
}

// LifecyclePhase asks the lifecycle manager to stop managed processes. The
// manager bounds itself with the timeout hint; the phase never waits longer
// than the hint plus a short grace.
type LifecyclePhase struct {
	Manager LifecycleManager
	Timeout time.Duration
}

func (p LifecyclePhase) Run(ctx context.Context) error {
	if p.Manager == nil {
		err := &UnreachableError{Service: "lifecycle manager"}
		logger.Info("[shutdown] %v, skipping", err)
		return err
	}

	logger.Info("[shutdown] shutting down lifecycle manager...")
	ctx, cancel := context.WithTimeout(ctx, p.Timeout+lifecycleGrace)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- safeCall(func() error {
			return p.Manager.NotifyShutdown(ctx, p.Timeout)
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("[shutdown] lifecycle shutdown failed: %v", err)
		}
		return err
	case <-ctx.Done():
		err := &TimeoutError{Phase: "lifecycle shutdown", After: p.Timeout}
		logger.Warn("[shutdown] %v", err)
		return err
	}
}

// safeCall turns a collaborator panic into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
