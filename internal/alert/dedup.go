// Package alert implements the re-alert discipline: one state store per
// (symbol, domain) deciding whether a classification is worth notifying
// about again.
package alert

import (
	"sync"
	"time"

	"github.com/pmaren/market-sentry/internal/strategy"
	"github.com/pmaren/market-sentry/internal/threshold"
)

// Deduper remembers the last emitted state per symbol for the signal and
// threshold domains. The emission decision and the state update happen
// under one lock, from one snapshot.
type Deduper struct {
	mu       sync.Mutex
	cooldown time.Duration

	signalState    map[string]strategy.Action
	signalEmitted  map[string]time.Time // keyed by symbol + "|" + action
	thresholdState map[string]threshold.State

	now func() time.Time
}

func NewDeduper(cooldown time.Duration) *Deduper {
	return &Deduper{
		cooldown:       cooldown,
		signalState:    make(map[string]strategy.Action),
		signalEmitted:  make(map[string]time.Time),
		thresholdState: make(map[string]threshold.State),
		now:            time.Now,
	}
}

// AllowSignal reports whether a BUY/EXIT classification should be emitted:
// the action must differ from the last emitted one, and the cooldown for
// this (symbol, action) pair must have elapsed. Suppressed decisions leave
// the stored state untouched.
func (d *Deduper) AllowSignal(symbol string, action strategy.Action) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.signalState[symbol] == action {
		return false
	}
	key := symbol + "|" + string(action)
	now := d.now()
	if last, ok := d.signalEmitted[key]; ok && now.Sub(last) < d.cooldown {
		return false
	}
	d.signalState[symbol] = action
	d.signalEmitted[key] = now
	return true
}

// AllowThreshold reports whether a threshold state should be emitted: only
// on a change to a non-HOLD state. A transition back to HOLD clears the
// stored state silently, re-arming the edge trigger.
func (d *Deduper) AllowThreshold(symbol string, state threshold.State) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	last, ok := d.thresholdState[symbol]
	if !ok {
		last = threshold.Hold
	}
	if state == threshold.Hold {
		d.thresholdState[symbol] = threshold.Hold
		return false
	}
	if state == last {
		return false
	}
	d.thresholdState[symbol] = state
	return true
}
