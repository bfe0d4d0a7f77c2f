package shutdown

import (
	"context"
	"errors"
	"sync"
	"time"
)

type call struct {
	name string
	arg  string
	at   time.Time
}

// recorder keeps the ordered list of collaborator calls.
type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) record(name, arg string) {
	r.mu.Lock()
	r.calls = append(r.calls, call{name: name, arg: arg, at: time.Now()})
	r.mu.Unlock()
}

func (r *recorder) snapshot() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]call, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *recorder) names() []string {
	var out []string
	for _, c := range r.snapshot() {
		out = append(out, c.name)
	}
	return out
}

func (r *recorder) find(name string) (call, bool) {
	for _, c := range r.snapshot() {
		if c.name == name {
			return c, true
		}
	}
	return call{}, false
}

// fakeTransport acknowledges after delay, or never when delay < 0.
type fakeTransport struct {
	rec     *recorder
	delay   time.Duration
	sendErr error
}

func (f *fakeTransport) SendOrderedNotice(ctx context.Context, n Notice, done func()) error {
	if f.rec != nil {
		f.rec.record("broadcast", n.Mode)
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	if f.delay < 0 {
		return nil
	}
	go func() {
		time.Sleep(f.delay)
		done()
	}()
	return nil
}

type fakeLifecycle struct {
	rec   *recorder
	block bool
	err   error
}

func (f *fakeLifecycle) NotifyShutdown(ctx context.Context, hint time.Duration) error {
	if f.rec != nil {
		f.rec.record("lifecycle", hint.String())
	}
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

// fakeSubsystem reports on until offAfter reads have been made after the
// off request. offAfter < 0 keeps it on forever.
type fakeSubsystem struct {
	name     string
	mu       sync.Mutex
	on       bool
	offAfter int
	reads    int
	sets     int
	readErr  error
	setErr   error
	rec      *recorder
}

func (f *fakeSubsystem) Name() string { return f.name }

func (f *fakeSubsystem) IsOn(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.readErr != nil {
		return false, f.readErr
	}
	if f.on && f.sets > 0 && f.offAfter >= 0 && f.reads > f.offAfter {
		f.on = false
	}
	return f.on, nil
}

func (f *fakeSubsystem) SetOn(ctx context.Context, on, persist bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rec != nil {
		f.rec.record("set_"+f.name, "")
	}
	f.sets++
	if persist {
		return errors.New("persist must be false during shutdown")
	}
	return f.setErr
}

func (f *fakeSubsystem) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

type fakeStorage struct {
	rec   *recorder
	delay time.Duration
	err   error
	never bool
}

func (f *fakeStorage) Shutdown(ctx context.Context, onComplete func(int)) error {
	if f.rec != nil {
		f.rec.record("storage", "")
	}
	if f.err != nil && IsUnreachable(f.err) {
		return f.err
	}
	if !f.never {
		go func() {
			time.Sleep(f.delay)
			onComplete(0)
		}()
	}
	return f.err
}

// fakePower records primitives. When halt is set, the power primitives
// block forever as a real halt would.
type fakePower struct {
	rec        *recorder
	halt       bool
	vibrateErr error
	stop       chan struct{}
}

func newFakePower(rec *recorder, halt bool) *fakePower {
	return &fakePower{rec: rec, halt: halt, stop: make(chan struct{})}
}

func (f *fakePower) terminal(name, arg string) error {
	f.rec.record(name, arg)
	if f.halt {
		<-f.stop
	}
	return errors.New(name + " not permitted")
}

func (f *fakePower) Reboot(reason string) error { return f.terminal("reboot", reason) }

func (f *fakePower) RebootToRecovery(reason string) error {
	return f.terminal("reboot_recovery", reason)
}

func (f *fakePower) PowerOff() error { return f.terminal("power_off", "") }

func (f *fakePower) Vibrate(d time.Duration) error {
	f.rec.record("vibrate", d.String())
	return f.vibrateErr
}

func (f *fakePower) release() {
	close(f.stop)
}

// stateLog is an Observer that records transitions.
type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (s *stateLog) OnStateChange(state State, _ ShutdownRequest) {
	s.mu.Lock()
	s.states = append(s.states, state)
	s.mu.Unlock()
}

func (s *stateLog) snapshot() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]State, len(s.states))
	copy(out, s.states)
	return out
}

func fastTimings() Timings {
	return Timings{
		Broadcast:    300 * time.Millisecond,
		Lifecycle:    200 * time.Millisecond,
		Storage:      2 * time.Second,
		MaxPolls:     16,
		PollInterval: 10 * time.Millisecond,
		Vibrate:      50 * time.Millisecond,
	}
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
