// Package connwatch tracks whether the services lifeops depends on are
// reachable: the remote tool endpoint, the model server and the MQTT
// broker.
//
// A [Watcher] probes one service. At startup it retries with
// exponential backoff so a service that is still booting is picked up
// quickly; afterwards it polls on a fixed interval. Every transition
// between connected and connection_failed is logged and published on
// the event bus. Transport-level retries of individual calls are
// httpkit's job, not this package's.
package connwatch

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/nugget/lifeops/internal/events"
)

// Service states. StateNotConfigured is reported for names that have no
// watcher.
const (
	StateNotConfigured = "not_configured"
	StateChecking      = "checking"
	StateConnected     = "connected"
	StateFailed        = "connection_failed"
)

// Probe checks a service. A nil error means reachable.
type Probe func(ctx context.Context) error

// Backoff controls probe timing.
type Backoff struct {
	Initial  time.Duration // first startup retry delay
	Max      time.Duration // startup delay ceiling
	Factor   float64       // startup delay growth
	Attempts int           // startup probes before settling into polling
	Poll     time.Duration // interval once startup is over
	Timeout  time.Duration // bound on a single probe
}

// DefaultBackoff retries at 2s, 4s, 8s... up to 60s for ten attempts,
// then polls every minute.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:  2 * time.Second,
		Max:      60 * time.Second,
		Factor:   2,
		Attempts: 10,
		Poll:     60 * time.Second,
		Timeout:  10 * time.Second,
	}
}

func (b Backoff) withDefaults() Backoff {
	d := DefaultBackoff()
	if b.Initial <= 0 {
		b.Initial = d.Initial
	}
	if b.Max <= 0 {
		b.Max = d.Max
	}
	if b.Factor < 1 {
		b.Factor = d.Factor
	}
	if b.Attempts <= 0 {
		b.Attempts = d.Attempts
	}
	if b.Poll <= 0 {
		b.Poll = d.Poll
	}
	if b.Timeout <= 0 {
		b.Timeout = d.Timeout
	}
	return b
}

// Status is a service's health, as reported by /health.
type Status struct {
	Name      string    `json:"name"`
	State     string    `json:"state"`
	Since     time.Time `json:"since"`
	LastCheck time.Time `json:"last_check,omitzero"`
	LastError string    `json:"last_error,omitempty"`
}

// Watcher probes a single service in the background.
type Watcher struct {
	name    string
	probe   Probe
	backoff Backoff
	bus     *events.Bus
	logger  *slog.Logger

	mu     sync.Mutex
	status Status

	cancel context.CancelFunc
	done   chan struct{}
}

// State returns the current state.
func (w *Watcher) State() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status.State
}

// Status returns a snapshot of the service's health.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Stop ends probing and waits for the watcher goroutine.
func (w *Watcher) Stop() {
	w.cancel()
	<-w.done
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	delay := w.backoff.Initial
	for attempt := 1; attempt <= w.backoff.Attempts; attempt++ {
		if w.check(ctx) {
			break
		}
		if attempt == w.backoff.Attempts {
			w.logger.Info("service unreachable after startup retries, polling",
				"service", w.name, "attempts", attempt)
			break
		}
		if !sleep(ctx, delay) {
			return
		}
		delay = min(time.Duration(float64(delay)*w.backoff.Factor), w.backoff.Max)
	}

	ticker := time.NewTicker(w.backoff.Poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

// check probes once and records the result. It reports whether the
// service is reachable.
func (w *Watcher) check(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, w.backoff.Timeout)
	err := w.probe(pctx)
	cancel()
	if ctx.Err() != nil {
		return false
	}

	now := time.Now()
	state := StateConnected
	if err != nil {
		state = StateFailed
	}

	w.mu.Lock()
	prev := w.status.State
	w.status.LastCheck = now
	w.status.LastError = ""
	if err != nil {
		w.status.LastError = err.Error()
	}
	if state != prev {
		w.status.State = state
		w.status.Since = now
	}
	w.mu.Unlock()

	if state == prev {
		if err != nil {
			w.logger.Debug("service still unreachable", "service", w.name, "error", err)
		}
		return err == nil
	}

	if err == nil {
		w.logger.Info("service connected", "service", w.name)
		w.bus.Emit(events.SourceConnwatch, events.KindServiceUp, map[string]any{"service": w.name})
		return true
	}
	// The first failure during startup is expected for slow services.
	if prev == StateChecking {
		w.logger.Debug("service not reachable yet", "service", w.name, "error", err)
	} else {
		w.logger.Warn("service became unreachable", "service", w.name, "error", err)
	}
	w.bus.Emit(events.SourceConnwatch, events.KindServiceDown, map[string]any{
		"service": w.name,
		"error":   err.Error(),
	})
	return false
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Monitor owns the watchers for all dependencies. A nil *Monitor
// reports every service as not configured.
type Monitor struct {
	bus    *events.Bus
	logger *slog.Logger

	mu       sync.RWMutex
	watchers map[string]*Watcher
}

// NewMonitor creates a monitor publishing transitions to bus, which may
// be nil.
func NewMonitor(bus *events.Bus, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		bus:      bus,
		logger:   logger.With("component", "connwatch"),
		watchers: make(map[string]*Watcher),
	}
}

// Watch starts probing a service until ctx is cancelled or Stop is
// called. Zero Backoff fields take their defaults. Watching a name
// twice replaces the earlier watcher.
func (m *Monitor) Watch(ctx context.Context, name string, probe Probe, backoff Backoff) *Watcher {
	if name == "" || probe == nil {
		panic("connwatch: Watch needs a name and a probe")
	}

	wctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		name:    name,
		probe:   probe,
		backoff: backoff.withDefaults(),
		bus:     m.bus,
		logger:  m.logger,
		status:  Status{Name: name, State: StateChecking, Since: time.Now()},
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	m.mu.Lock()
	old := m.watchers[name]
	m.watchers[name] = w
	m.mu.Unlock()
	if old != nil {
		old.Stop()
	}

	go w.run(wctx)
	return w
}

// State returns a service's state, or StateNotConfigured when it is not
// watched.
func (m *Monitor) State(name string) string {
	if m == nil {
		return StateNotConfigured
	}
	m.mu.RLock()
	w := m.watchers[name]
	m.mu.RUnlock()
	if w == nil {
		return StateNotConfigured
	}
	return w.State()
}

// Statuses returns a snapshot of every watched service.
func (m *Monitor) Statuses() map[string]Status {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	watchers := maps.Clone(m.watchers)
	m.mu.RUnlock()

	out := make(map[string]Status, len(watchers))
	for name, w := range watchers {
		out[name] = w.Status()
	}
	return out
}

// Stop ends all watchers.
func (m *Monitor) Stop() {
	m.mu.Lock()
	watchers := m.watchers
	m.watchers = make(map[string]*Watcher)
	m.mu.Unlock()

	for _, w := range watchers {
		w.Stop()
	}
}
