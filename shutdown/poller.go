package shutdown

import (
	"context"
	"time"

	"github.com/b0bbywan/go-odio-powerd/logger"
)

// SubsystemPoller drives one subsystem from "possibly on" to "confirmed off".
// Errors never escalate: an unreachable subsystem counts as off.
type SubsystemPoller struct {
	name   string
	ctrl   SubsystemControl
	status SubsystemStatus
	polls  int
}

// NewSubsystemPoller accepts a nil control for a service that is not present.
func NewSubsystemPoller(name string, ctrl SubsystemControl) *SubsystemPoller {
	if ctrl != nil && name == "" {
		name = ctrl.Name()
	}
	return &SubsystemPoller{name: name, ctrl: ctrl}
}

func (p *SubsystemPoller) Name() string { return p.name }

func (p *SubsystemPoller) Status() SubsystemStatus { return p.status }

// Polls returns how many state reads were made after Begin.
func (p *SubsystemPoller) Polls() int { return p.polls }

// Begin queries the subsystem once and, if it is on, requests a
// non-persistent power-off.
func (p *SubsystemPoller) Begin(ctx context.Context) SubsystemStatus {
	if p.ctrl == nil {
		logger.Info("[shutdown] %s unavailable, treating as off", p.name)
		p.status = StatusOff
		return p.status
	}

	on, err := p.ctrl.IsOn(ctx)
	if err != nil {
		logger.Error("[shutdown] %s unreachable during shutdown: %v", p.name, err)
		p.status = StatusOff
		return p.status
	}
	if !on {
		p.status = StatusOff
		return p.status
	}

	p.status = StatusOn
	logger.Warn("[shutdown] turning off %s...", p.name)
	if err := p.ctrl.SetOn(ctx, false, false); err != nil {
		logger.Error("[shutdown] failed to turn off %s: %v", p.name, err)
		p.status = StatusOff
	}
	return p.status
}

// Poll refreshes the status. Once off, the subsystem is never polled again.
func (p *SubsystemPoller) Poll(ctx context.Context) SubsystemStatus {
	if p.status == StatusOff {
		return p.status
	}
	if p.ctrl == nil {
		p.status = StatusOff
		return p.status
	}

	p.polls++
	on, err := p.ctrl.IsOn(ctx)
	switch {
	case err != nil:
		logger.Error("[shutdown] %s unreachable while polling: %v", p.name, err)
		p.status = StatusOff
	case !on:
		p.status = StatusOff
	default:
		p.status = StatusOn
	}
	return p.status
}

// finish turns an unconfirmed status into Unknown.
func (p *SubsystemPoller) finish() SubsystemStatus {
	if p.status != StatusOff {
		p.status = StatusUnknown
	}
	return p.status
}

// Run is the single-subsystem form of QuiesceSubsystems.
func (p *SubsystemPoller) Run(ctx context.Context, maxPolls int, interval time.Duration) SubsystemStatus {
	p.Begin(ctx)
	return QuiesceSubsystems(ctx, maxPolls, interval, p).Statuses[p.name]
}

// QuiesceResult summarizes one shared polling loop.
type QuiesceResult struct {
	Statuses   map[string]SubsystemStatus
	Iterations int
	Elapsed    time.Duration
}

// AllOff reports whether every subsystem was confirmed off.
func (r QuiesceResult) AllOff() bool {
	for _, s := range r.Statuses {
		if s != StatusOff {
			return false
		}
	}
	return true
}

// QuiesceSubsystems polls every started poller in one loop so that their
// waits overlap. It runs at most maxPolls iterations, sleeping interval
// between them, and never sleeps after the last one.
func QuiesceSubsystems(ctx context.Context, maxPolls int, interval time.Duration, pollers ...*SubsystemPoller) QuiesceResult {
	start := time.Now()
	res := QuiesceResult{Statuses: make(map[string]SubsystemStatus, len(pollers))}

	for i := 0; i < maxPolls; i++ {
		allOff := true
		for _, p := range pollers {
			if p.Poll(ctx) != StatusOff {
				allOff = false
			}
		}
		res.Iterations++

		if allOff || i == maxPolls-1 {
			break
		}
		if !sleepContext(ctx, interval) {
			break
		}
	}

	for _, p := range pollers {
		res.Statuses[p.name] = p.finish()
	}
	res.Elapsed = time.Since(start)
	return res
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
