package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/b0bbywan/go-odio-powerd/backend"
	"github.com/b0bbywan/go-odio-powerd/config"
	"github.com/b0bbywan/go-odio-powerd/events"
	"github.com/b0bbywan/go-odio-powerd/shutdown"
)

// fakePower returns from every primitive, so a test pipeline runs to
// completion without touching the machine.
type fakePower struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakePower) record(name string) error {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
	return errors.New("still running")
}

func (f *fakePower) Reboot(reason string) error           { return f.record("reboot:" + reason) }
func (f *fakePower) RebootToRecovery(reason string) error { return f.record("recovery:" + reason) }
func (f *fakePower) PowerOff() error                      { return f.record("poweroff") }
func (f *fakePower) Vibrate(time.Duration) error          { return nil }

func (f *fakePower) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type testEnv struct {
	server      *Server
	handler     http.Handler
	coordinator *shutdown.Coordinator
	confirmer   *PendingConfirmer
	broadcaster *backend.Broadcaster
	power       *fakePower
}

func testTimings() shutdown.Timings {
	return shutdown.Timings{
		Broadcast:    50 * time.Millisecond,
		Lifecycle:    50 * time.Millisecond,
		Storage:      50 * time.Millisecond,
		MaxPolls:     1,
		PollInterval: time.Millisecond,
	}
}

func newTestEnv(t *testing.T, confirmTimeout time.Duration) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	b := backend.NewBroadcaster(ctx, make(chan events.Event))
	pc := NewPendingConfirmer(confirmTimeout, b)
	power := &fakePower{}
	c := shutdown.NewCoordinator(shutdown.Collaborators{Power: power}, testTimings(), shutdown.WithConfirmer(pc))

	cfg := &config.ApiConfig{Enabled: true, Listen: []string{"127.0.0.1:0"}}
	s := NewServer(cfg, &backend.Backend{Broadcaster: b}, c, pc)
	if s == nil {
		t.Fatal("NewServer() = nil")
	}
	return &testEnv{
		server:      s,
		handler:     s.Handler(),
		coordinator: c,
		confirmer:   pc,
		broadcaster: b,
		power:       power,
	}
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func waitFor(d time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
