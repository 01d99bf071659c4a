package tg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmaren/market-sentry/internal/exchange"
	"github.com/pmaren/market-sentry/internal/journal"
	"github.com/pmaren/market-sentry/internal/orders"
)

func TestExecutionTextFullBracket(t *testing.T) {
	intent := orders.Intent{Side: "BUY", Symbol: "SOLUSDT", TakeProfit: 212, StopLoss: 188}
	exec := orders.Execution{
		Entry:      exchange.OrderResponse{OrderID: "100", Status: "FILLED"},
		Quantity:   0.125,
		TakeProfit: &exchange.OrderResponse{OrderID: "101"},
		StopLoss:   &exchange.OrderResponse{OrderID: "102"},
	}

	text := executionText(intent, exec)
	assert.Contains(t, text, "BUY SOLUSDT")
	assert.Contains(t, text, "Entry 100")
	assert.Contains(t, text, "TP order 101 @ 212.0000")
	assert.Contains(t, text, "SL order 102 @ 188.0000")
	assert.NotContains(t, text, "paper")
	assert.NotContains(t, text, "⚠️")
}

func TestExecutionTextPaperMode(t *testing.T) {
	intent := orders.Intent{Side: "BUY", Symbol: "SOLUSDT"}
	exec := orders.Execution{Entry: exchange.OrderResponse{OrderID: "paper-1", Status: "PAPER", Paper: true}}

	assert.Contains(t, executionText(intent, exec), "(paper)")
}

func TestExecutionTextPartialFailure(t *testing.T) {
	intent := orders.Intent{Side: "BUY", Symbol: "SOLUSDT", TakeProfit: 212, StopLoss: 188}
	exec := orders.Execution{
		Entry:       exchange.OrderResponse{OrderID: "100", Status: "FILLED"},
		TakeProfit:  &exchange.OrderResponse{OrderID: "101"},
		StopLossErr: exchange.ErrOrderRejected,
	}

	text := executionText(intent, exec)
	assert.Contains(t, text, "SL leg failed")
	assert.Contains(t, text, "without a full bracket")
}

func TestJournalTextListsRecentAlertsAndOrders(t *testing.T) {
	mem := journal.NewMemory()
	now := time.Now().UTC()
	for _, e := range []journal.Event{
		{Time: now.Add(-2 * time.Hour), Type: "alert", Description: "signal BUY SOLUSDT"},
		{Time: now.Add(-time.Hour), Type: "order", Description: "entry BUY SOLUSDT"},
		{Time: now.Add(-30 * time.Hour), Type: "alert", Description: "stale entry"},
	} {
		require.NoError(t, mem.LogEvent(context.Background(), e))
	}
	b := &Bot{jr: mem}

	text := b.journalText(context.Background())
	assert.Contains(t, text, "signal BUY SOLUSDT")
	assert.Contains(t, text, "entry BUY SOLUSDT")
	assert.Contains(t, text, "[order]")
	assert.NotContains(t, text, "stale entry")
}

func TestJournalTextEmptyWindow(t *testing.T) {
	b := &Bot{jr: journal.NewMemory()}
	assert.Equal(t, "Nothing journaled in the last 24h", b.journalText(context.Background()))
}

func TestPendingIntentLifecycle(t *testing.T) {
	b := &Bot{pending: make(map[string]orders.Intent)}

	b.mu.Lock()
	b.nextID++
	b.pending["1"] = orders.Intent{Symbol: "SOLUSDT"}
	b.mu.Unlock()

	b.mu.Lock()
	intent, found := b.pending["1"]
	delete(b.pending, "1")
	b.mu.Unlock()

	assert.True(t, found)
	assert.Equal(t, "SOLUSDT", intent.Symbol)
	_, again := b.pending["1"]
	assert.False(t, again, "an approved or canceled plan must not be replayable")
}
