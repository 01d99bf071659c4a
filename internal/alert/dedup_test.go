package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pmaren/market-sentry/internal/strategy"
	"github.com/pmaren/market-sentry/internal/threshold"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDeduper(cooldown time.Duration) (*Deduper, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	d := NewDeduper(cooldown)
	d.now = func() time.Time { return clock.t }
	return d, clock
}

func TestThresholdEmitsOncePerEdge(t *testing.T) {
	d, _ := newTestDeduper(2 * time.Hour)

	assert.True(t, d.AllowThreshold("SOLUSDT", threshold.TP1))
	// Same state on the next tick stays silent.
	assert.False(t, d.AllowThreshold("SOLUSDT", threshold.TP1))
}

func TestThresholdHoldClearsSilently(t *testing.T) {
	d, _ := newTestDeduper(2 * time.Hour)

	assert.True(t, d.AllowThreshold("SOLUSDT", threshold.TP1))
	// De-escalation to HOLD does not alert, but re-arms the trigger.
	assert.False(t, d.AllowThreshold("SOLUSDT", threshold.Hold))
	assert.True(t, d.AllowThreshold("SOLUSDT", threshold.TP1))
}

func TestThresholdEscalationEmits(t *testing.T) {
	d, _ := newTestDeduper(2 * time.Hour)

	assert.True(t, d.AllowThreshold("SOLUSDT", threshold.TP1))
	assert.True(t, d.AllowThreshold("SOLUSDT", threshold.TP2))
	assert.True(t, d.AllowThreshold("SOLUSDT", threshold.SL))
	assert.False(t, d.AllowThreshold("SOLUSDT", threshold.SL))
}

func TestThresholdPerSymbolIsolation(t *testing.T) {
	d, _ := newTestDeduper(2 * time.Hour)

	assert.True(t, d.AllowThreshold("SOLUSDT", threshold.TP1))
	assert.True(t, d.AllowThreshold("ETHUSDT", threshold.TP1))
}

func TestSignalRequiresStateChange(t *testing.T) {
	d, _ := newTestDeduper(2 * time.Hour)

	assert.True(t, d.AllowSignal("SOLUSDT", strategy.Buy))
	assert.False(t, d.AllowSignal("SOLUSDT", strategy.Buy))
}

func TestSignalCooldownBoundsOscillation(t *testing.T) {
	d, clock := newTestDeduper(2 * time.Hour)

	assert.True(t, d.AllowSignal("SOLUSDT", strategy.Buy))

	clock.advance(10 * time.Minute)
	// First EXIT: no prior emission for this (symbol, action) pair.
	assert.True(t, d.AllowSignal("SOLUSDT", strategy.Exit))

	clock.advance(10 * time.Minute)
	// Flip back to BUY: state changed, but BUY's cooldown is still running.
	assert.False(t, d.AllowSignal("SOLUSDT", strategy.Buy))

	clock.advance(2 * time.Hour)
	assert.True(t, d.AllowSignal("SOLUSDT", strategy.Buy))
}
