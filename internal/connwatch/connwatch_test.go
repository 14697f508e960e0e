package connwatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nugget/lifeops/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastBackoff keeps tests in the millisecond range.
func fastBackoff() Backoff {
	return Backoff{
		Initial:  time.Millisecond,
		Max:      5 * time.Millisecond,
		Factor:   2,
		Attempts: 5,
		Poll:     5 * time.Millisecond,
		Timeout:  100 * time.Millisecond,
	}
}

// waitState polls until the watcher reaches want.
func waitState(t *testing.T, w *Watcher, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for w.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state = %q, want %q", w.State(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDefaultBackoff(t *testing.T) {
	b := DefaultBackoff()
	if b.Initial != 2*time.Second || b.Max != time.Minute || b.Factor != 2 {
		t.Errorf("growth = %v/%v/%v", b.Initial, b.Max, b.Factor)
	}
	if b.Attempts != 10 || b.Poll != time.Minute || b.Timeout != 10*time.Second {
		t.Errorf("schedule = %d/%v/%v", b.Attempts, b.Poll, b.Timeout)
	}
}

func TestBackoff_WithDefaults(t *testing.T) {
	got := Backoff{Poll: time.Second}.withDefaults()
	want := DefaultBackoff()
	want.Poll = time.Second
	if got != want {
		t.Errorf("withDefaults = %+v, want %+v", got, want)
	}
}

func TestWatcher_Connected(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.New()
	ch := bus.Subscribe(8)
	defer bus.Unsubscribe(ch)

	m := NewMonitor(bus, testLogger())
	w := m.Watch(ctx, "mcp", func(context.Context) error { return nil }, fastBackoff())
	waitState(t, w, StateConnected)

	select {
	case e := <-ch:
		if e.Source != events.SourceConnwatch || e.Kind != events.KindServiceUp || e.Data["service"] != "mcp" {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no service_up event")
	}

	st := w.Status()
	if st.LastError != "" || st.LastCheck.IsZero() {
		t.Errorf("status = %+v", st)
	}
}

func TestWatcher_RecoversDuringStartup(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts atomic.Int32
	probe := func(context.Context) error {
		if attempts.Add(1) <= 3 {
			return errors.New("connection refused")
		}
		return nil
	}

	m := NewMonitor(nil, testLogger())
	w := m.Watch(ctx, "ollama", probe, fastBackoff())
	waitState(t, w, StateConnected)

	if n := attempts.Load(); n < 4 {
		t.Errorf("probes = %d, want at least 4", n)
	}
}

func TestWatcher_FailedThenPolls(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts atomic.Int32
	m := NewMonitor(nil, testLogger())
	w := m.Watch(ctx, "mqtt", func(context.Context) error {
		attempts.Add(1)
		return errors.New("no route to host")
	}, fastBackoff())

	waitState(t, w, StateFailed)
	if got := w.Status().LastError; got != "no route to host" {
		t.Errorf("LastError = %q", got)
	}

	// Polling continues after the startup attempts run out.
	deadline := time.Now().Add(2 * time.Second)
	for attempts.Load() <= int32(fastBackoff().Attempts) {
		if time.Now().After(deadline) {
			t.Fatalf("probes = %d, polling did not continue", attempts.Load())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWatcher_Transitions(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var down atomic.Bool
	bus := events.New()
	ch := bus.Subscribe(16)
	defer bus.Unsubscribe(ch)

	m := NewMonitor(bus, testLogger())
	w := m.Watch(ctx, "mcp", func(context.Context) error {
		if down.Load() {
			return errors.New("503")
		}
		return nil
	}, fastBackoff())

	waitState(t, w, StateConnected)
	down.Store(true)
	waitState(t, w, StateFailed)
	down.Store(false)
	waitState(t, w, StateConnected)

	var kinds []string
	timeout := time.After(time.Second)
	for len(kinds) < 3 {
		select {
		case e := <-ch:
			kinds = append(kinds, e.Kind)
		case <-timeout:
			t.Fatalf("events = %v, want three transitions", kinds)
		}
	}
	want := []string{events.KindServiceUp, events.KindServiceDown, events.KindServiceUp}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("events = %v, want %v", kinds, want)
			break
		}
	}
}

func TestWatcher_ProbeTimeout(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := fastBackoff()
	b.Timeout = 5 * time.Millisecond
	m := NewMonitor(nil, testLogger())
	w := m.Watch(ctx, "slow", func(pctx context.Context) error {
		<-pctx.Done()
		return pctx.Err()
	}, b)

	waitState(t, w, StateFailed)
}

func TestMonitor_State(t *testing.T) {
	var nilMonitor *Monitor
	if got := nilMonitor.State("mcp"); got != StateNotConfigured {
		t.Errorf("nil monitor state = %q", got)
	}
	if nilMonitor.Statuses() != nil {
		t.Error("nil monitor statuses should be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMonitor(nil, testLogger())
	if got := m.State("mcp"); got != StateNotConfigured {
		t.Errorf("unwatched state = %q", got)
	}

	w := m.Watch(ctx, "mcp", func(context.Context) error { return nil }, fastBackoff())
	waitState(t, w, StateConnected)
	if got := m.State("mcp"); got != StateConnected {
		t.Errorf("State = %q", got)
	}
	if st := m.Statuses(); len(st) != 1 || st["mcp"].State != StateConnected {
		t.Errorf("Statuses = %+v", st)
	}

	m.Stop()
	if got := m.State("mcp"); got != StateNotConfigured {
		t.Errorf("state after Stop = %q", got)
	}
}

func TestMonitor_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var probes atomic.Int32
	m := NewMonitor(nil, testLogger())
	w := m.Watch(ctx, "mcp", func(context.Context) error { probes.Add(1); return nil }, fastBackoff())
	waitState(t, w, StateConnected)

	cancel()
	select {
	case <-w.done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not exit after cancel")
	}
}

func TestMonitor_WatchPanicsWithoutProbe(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewMonitor(nil, testLogger()).Watch(context.Background(), "mcp", nil, Backoff{})
}
