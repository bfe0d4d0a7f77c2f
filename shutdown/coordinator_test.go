package shutdown

import (
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func healthyCollaborators(rec *recorder, power *fakePower) Collaborators {
	return Collaborators{
		Broadcast: &fakeTransport{rec: rec},
		Lifecycle: &fakeLifecycle{rec: rec},
		Radio:     &fakeSubsystem{name: "radio", on: true, offAfter: 1, rec: rec},
		Wireless:  &fakeSubsystem{name: "bluetooth", on: true, offAfter: 1, rec: rec},
		Storage:   &fakeStorage{rec: rec},
		Power:     power,
	}
}

var fullPipeline = []State{
	StateClaimed,
	StateBroadcastingNotice,
	StateShuttingDownLifecycle,
	StateQuiescingRadioAndWireless,
	StateShuttingDownStorage,
	StateExecutingTerminalAction,
}

func TestCoordinator_SingleFlightUnderConcurrentTriggers(t *testing.T) {
	const n = 64
	rec := &recorder{}
	power := newFakePower(rec, true)
	t.Cleanup(power.release)

	c := NewCoordinator(healthyCollaborators(rec, power), fastTimings())

	var accepted, rejected atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			switch c.RequestShutdown(false) {
			case Accepted:
				accepted.Add(1)
			case AlreadyRunning:
				rejected.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if accepted.Load() != 1 {
		t.Errorf("accepted = %d, want exactly 1", accepted.Load())
	}
	if rejected.Load() != n-1 {
		t.Errorf("rejected = %d, want %d", rejected.Load(), n-1)
	}

	if !waitFor(2*time.Second, func() bool { _, ok := rec.find("power_off"); return ok }) {
		t.Fatal("pipeline did not reach power off")
	}
	broadcasts := 0
	for _, name := range rec.names() {
		if name == "broadcast" {
			broadcasts++
		}
	}
	if broadcasts != 1 {
		t.Errorf("broadcast sent %d times, want 1", broadcasts)
	}
}

func TestCoordinator_TriggerReturnsImmediately(t *testing.T) {
	rec := &recorder{}
	power := newFakePower(rec, true)
	t.Cleanup(power.release)

	collab := healthyCollaborators(rec, power)
	collab.Broadcast = &fakeTransport{rec: rec, delay: -1}
	c := NewCoordinator(collab, fastTimings())

	start := time.Now()
	if got := c.RequestShutdown(false); got != Accepted {
		t.Fatalf("RequestShutdown() = %s, want accepted", got)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("trigger blocked for %s", elapsed)
	}
	if !c.Claimed() {
		t.Error("Claimed() = false after accepted trigger")
	}
	if got := c.RequestReboot("again", false); got != AlreadyRunning {
		t.Errorf("second trigger = %s, want already_running", got)
	}
}

func TestCoordinator_RecoveryEndToEnd(t *testing.T) {
	rec := &recorder{}
	power := newFakePower(rec, true)
	t.Cleanup(power.release)

	states := &stateLog{}
	c := NewCoordinator(healthyCollaborators(rec, power), fastTimings(), WithObserver(states))

	if got := c.RequestReboot("recovery", false); got != Accepted {
		t.Fatalf("RequestReboot() = %s, want accepted", got)
	}

	if !waitFor(2*time.Second, func() bool { _, ok := rec.find("reboot_recovery"); return ok }) {
		t.Fatalf("reboot_recovery never called, calls: %v", rec.names())
	}
	// Give the pipeline a chance to make any stray call.
	time.Sleep(30 * time.Millisecond)

	if got := states.snapshot(); !reflect.DeepEqual(got, fullPipeline) {
		t.Errorf("states = %v, want %v", got, fullPipeline)
	}
	calls := rec.snapshot()
	last := calls[len(calls)-1]
	if last.name != "reboot_recovery" || last.arg != "recovery" {
		t.Errorf("last call = %+v, want reboot_recovery(recovery)", last)
	}
	if _, ok := rec.find("vibrate"); ok {
		t.Error("vibration must not run for recovery reboot")
	}
	if req, ok := c.ActiveRequest(); !ok || req.Mode != ModeRebootToRecovery {
		t.Errorf("ActiveRequest() = %+v, %v", req, ok)
	}
}

func TestCoordinator_PowerOffWithUnreachableStorage(t *testing.T) {
	rec := &recorder{}
	power := newFakePower(rec, true)
	t.Cleanup(power.release)

	timings := fastTimings()
	timings.Storage = 5 * time.Second
	timings.Vibrate = 80 * time.Millisecond

	collab := healthyCollaborators(rec, power)
	collab.Storage = &fakeStorage{rec: rec, err: &UnreachableError{Service: "udisks2"}, never: true}
	collab.Radio = &fakeSubsystem{name: "radio", on: false, rec: rec}
	collab.Wireless = &fakeSubsystem{name: "bluetooth", on: false, rec: rec}

	c := NewCoordinator(collab, timings)
	start := time.Now()
	if got := c.RequestShutdown(false); got != Accepted {
		t.Fatalf("RequestShutdown() = %s, want accepted", got)
	}

	if !waitFor(3*time.Second, func() bool { _, ok := rec.find("power_off"); return ok }) {
		t.Fatalf("power_off never called, calls: %v", rec.names())
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("pipeline took %s, storage phase must not wait for its deadline", elapsed)
	}

	v, _ := rec.find("vibrate")
	p, _ := rec.find("power_off")
	if gap := p.at.Sub(v.at); gap < timings.Vibrate || gap > timings.Vibrate+100*time.Millisecond {
		t.Errorf("vibration lasted %s, want %s", gap, timings.Vibrate)
	}
	if _, ok := rec.find("set_radio"); ok {
		t.Error("radio already off must not be turned off again")
	}

	time.Sleep(30 * time.Millisecond)
	calls := rec.snapshot()
	if last := calls[len(calls)-1]; last.name != "power_off" {
		t.Errorf("last call = %s, want power_off", last.name)
	}
}

func TestCoordinator_TotalSubsystemFailureStillTerminates(t *testing.T) {
	rec := &recorder{}
	power := newFakePower(rec, false)
	states := &stateLog{}

	timings := fastTimings()
	timings.Broadcast = 50 * time.Millisecond
	timings.Storage = 50 * time.Millisecond

	c := NewCoordinator(Collaborators{
		Broadcast: &fakeTransport{delay: -1},
		Lifecycle: &fakeLifecycle{block: true},
		Radio:     &fakeSubsystem{name: "radio", on: true, offAfter: -1},
		Storage:   &fakeStorage{never: true},
		Power:     power,
	}, timings, WithObserver(states), WithSleep(func(time.Duration) {}))

	c.RequestShutdown(false)

	select {
	case <-c.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("pipeline did not finish")
	}

	if c.State() != StateTerminalActionReturned {
		t.Errorf("State() = %s, want %s", c.State(), StateTerminalActionReturned)
	}
	if c.Err() == nil {
		t.Error("Err() = nil after every primitive returned")
	}
	want := append(append([]State{}, fullPipeline...), StateTerminalActionReturned)
	if got := states.snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}
}

type manualConfirmer struct {
	mu        sync.Mutex
	onConfirm func() bool
	req       ShutdownRequest
	withdrawn int
}

func (m *manualConfirmer) ConfirmThenProceed(req ShutdownRequest, onConfirm func() bool) {
	m.mu.Lock()
	m.req = req
	m.onConfirm = onConfirm
	m.mu.Unlock()
}

func (m *manualConfirmer) Withdraw() {
	m.mu.Lock()
	m.withdrawn++
	m.mu.Unlock()
}

func (m *manualConfirmer) confirm() bool {
	m.mu.Lock()
	fn := m.onConfirm
	m.mu.Unlock()
	return fn()
}

func TestCoordinator_Confirmation(t *testing.T) {
	rec := &recorder{}
	power := newFakePower(rec, true)
	t.Cleanup(power.release)

	confirmer := &manualConfirmer{}
	c := NewCoordinator(healthyCollaborators(rec, power), fastTimings(), WithConfirmer(confirmer))

	if got := c.RequestReboot("kernel-update", true); got != PendingConfirmation {
		t.Fatalf("RequestReboot(confirm) = %s, want pending_confirmation", got)
	}
	if c.Claimed() {
		t.Fatal("pipeline claimed before confirmation")
	}
	if confirmer.req.Reason != "kernel-update" {
		t.Errorf("confirmer got %+v", confirmer.req)
	}

	if !confirmer.confirm() {
		t.Fatal("confirmation did not claim the pipeline")
	}
	if !c.Claimed() {
		t.Fatal("pipeline not claimed after confirmation")
	}
	// A second confirmation of a stale prompt is a no-op.
	if confirmer.confirm() {
		t.Error("stale confirmation reported a claim")
	}

	if !waitFor(2*time.Second, func() bool { _, ok := rec.find("reboot"); return ok }) {
		t.Fatalf("reboot never called, calls: %v", rec.names())
	}
}

func TestCoordinator_ConfirmationAfterOtherClaim(t *testing.T) {
	rec := &recorder{}
	power := newFakePower(rec, true)
	t.Cleanup(power.release)

	confirmer := &manualConfirmer{}
	c := NewCoordinator(healthyCollaborators(rec, power), fastTimings(), WithConfirmer(confirmer))

	if got := c.RequestReboot("upd", true); got != PendingConfirmation {
		t.Fatalf("RequestReboot(confirm) = %s, want pending_confirmation", got)
	}
	if got := c.RequestShutdown(false); got != Accepted {
		t.Fatalf("RequestShutdown() = %s, want accepted", got)
	}
	confirmer.mu.Lock()
	withdrawn := confirmer.withdrawn
	confirmer.mu.Unlock()
	if withdrawn != 1 {
		t.Errorf("Withdraw called %d times, want 1", withdrawn)
	}

	if confirmer.confirm() {
		t.Error("confirming the reboot reported a claim while poweroff runs")
	}
	if req, _ := c.ActiveRequest(); req.Mode != ModePowerOff {
		t.Errorf("active request = %s, want poweroff", req.Mode)
	}
}

func TestCoordinator_ConfirmWithoutConfirmerProceeds(t *testing.T) {
	rec := &recorder{}
	power := newFakePower(rec, true)
	t.Cleanup(power.release)

	c := NewCoordinator(healthyCollaborators(rec, power), fastTimings())
	if got := c.RequestShutdown(true); got != Accepted {
		t.Errorf("RequestShutdown(confirm) without confirmer = %s, want accepted", got)
	}
}

func TestNewRebootRequest(t *testing.T) {
	tests := []struct {
		reason string
		want   Mode
	}{
		{"", ModeReboot},
		{"update", ModeReboot},
		{"recovery", ModeRebootToRecovery},
	}
	for _, tt := range tests {
		if got := NewRebootRequest(tt.reason, false).Mode; got != tt.want {
			t.Errorf("NewRebootRequest(%q).Mode = %s, want %s", tt.reason, got, tt.want)
		}
	}
	if r := NewRecoveryRequest(true); r.Reason != RecoveryReason || !r.RequireConfirmation {
		t.Errorf("NewRecoveryRequest(true) = %+v", r)
	}
}

func TestModeRoundTrip(t *testing.T) {
	for _, m := range []Mode{ModePowerOff, ModeReboot, ModeRebootToRecovery} {
		got, ok := ParseMode(m.String())
		if !ok || got != m {
			t.Errorf("ParseMode(%q) = %s, %v", m.String(), got, ok)
		}
	}
	if _, ok := ParseMode("halt"); ok {
		t.Error("ParseMode(halt) should fail")
	}
}
