package mqtt

import (
	"maps"
	"sync"
	"time"

	"github.com/nugget/lifeops/internal/events"
)

// ActionCounts is a snapshot of the day's action outcomes.
type ActionCounts struct {
	Total      int64            `json:"total"`
	Succeeded  int64            `json:"succeeded"`
	NeedsInput int64            `json:"needs_input"`
	Failed     int64            `json:"failed"`
	ByAction   map[string]int64 `json:"by_action"`
	Last       time.Time        `json:"-"`
	LastAction string           `json:"last_action,omitempty"`
}

// DailyActions counts executed actions and resets at local midnight.
// It is safe for concurrent use.
type DailyActions struct {
	mu       sync.Mutex
	counts   ActionCounts
	resetDay int // day-of-year of last reset
	loc      *time.Location
	now      func() time.Time
}

// NewDailyActions creates a counter using loc for midnight detection.
// If loc is nil, [time.Local] is used.
func NewDailyActions(loc *time.Location) *DailyActions {
	if loc == nil {
		loc = time.Local
	}
	d := &DailyActions{loc: loc, now: time.Now}
	d.resetDay = d.now().In(loc).YearDay()
	d.counts.ByAction = make(map[string]int64)
	return d
}

// Record counts one completed action with its outcome, one of the
// events.Outcome values.
func (d *DailyActions) Record(action, outcome string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.maybeReset()
	d.counts.Total++
	switch outcome {
	case events.OutcomeSuccess:
		d.counts.Succeeded++
	case events.OutcomeMissing:
		d.counts.NeedsInput++
	case events.OutcomeFailure:
		d.counts.Failed++
	}
	if action != "" {
		d.counts.ByAction[action]++
	}
	d.counts.Last = d.now()
	d.counts.LastAction = action
}

// Snapshot returns the current totals after checking for midnight
// rollover. The last action time survives the rollover.
func (d *DailyActions) Snapshot() ActionCounts {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.maybeReset()
	c := d.counts
	c.ByAction = maps.Clone(d.counts.ByAction)
	return c
}

// maybeReset zeroes the counters if the local day-of-year has changed.
// Must be called with d.mu held.
func (d *DailyActions) maybeReset() {
	today := d.now().In(d.loc).YearDay()
	if today != d.resetDay {
		d.counts = ActionCounts{
			ByAction:   make(map[string]int64),
			Last:       d.counts.Last,
			LastAction: d.counts.LastAction,
		}
		d.resetDay = today
	}
}
