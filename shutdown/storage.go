package shutdown

import (
	"context"
	"time"

	"github.com/b0bbywan/go-odio-powerd/logger"
)

// StorageShutdownPhase lets the storage manager flush and unmount before
// power is cut. Storage state that cannot be verified never blocks the
// pipeline.
type StorageShutdownPhase struct {
	Manager StorageManager
	Timeout time.Duration
}

func (s StorageShutdownPhase) Run(ctx context.Context) error {
	if s.Manager == nil {
		err := &UnreachableError{Service: "storage manager"}
		logger.Warn("[shutdown] %v, skipping storage shutdown", err)
		return err
	}

	logger.Info("[shutdown] shutting down storage manager")
	latch := NewLatch()
	deadline := NewPhaseDeadline(s.Timeout)

	onComplete := func(statusCode int) {
		logger.Warn("[shutdown] result code %d from storage shutdown", statusCode)
		latch.Signal()
	}

	if err := safeCall(func() error {
		return s.Manager.Shutdown(ctx, onComplete)
	}); err != nil {
		if IsUnreachable(err) {
			logger.Warn("[shutdown] storage manager unavailable for shutdown: %v", err)
			return err
		}
		logger.Error("[shutdown] error during storage shutdown: %v", err)
		// The manager may still report completion; keep waiting.
	}

	if !latch.AwaitUntil(deadline.Deadline()) {
		err := &TimeoutError{Phase: "storage shutdown", After: s.Timeout}
		logger.Warn("[shutdown] %v", err)
		return err
	}
	return nil
}
