// Package ledger owns the manually maintained position book: quantity and
// weighted-average cost per symbol, persisted wholesale to a JSON document
// on every mutation.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

var ErrPositionNotFound = errors.New("position not found")

type Position struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"qty"`
	AvgCost  float64 `json:"avg"`
}

// UnrealizedPct returns the unrealized P/L percentage against price, or 0
// when the position has no cost basis.
func (p Position) UnrealizedPct(price float64) float64 {
	if p.AvgCost <= 0 {
		return 0
	}
	return (price/p.AvgCost - 1) * 100
}

// Line is one row of a valuation report. Price is nil when the lookup for
// the symbol failed; the static cost data is still reported.
type Line struct {
	Position
	Price *float64
	PnL   float64
}

type entry struct {
	Qty float64 `json:"qty"`
	Avg float64 `json:"avg"`
}

// Book is the single writer for all position state. Every operation is
// synchronous and atomic with respect to concurrent callers.
type Book struct {
	mu        sync.Mutex
	path      string
	positions map[string]entry
}

// Open loads the ledger document at path. A missing or unreadable document
// initializes an empty book; it never fails startup.
func Open(path string) *Book {
	b := &Book{path: path, positions: make(map[string]entry)}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("ledger read failed, starting empty")
		}
		return b
	}
	if len(data) == 0 {
		return b
	}
	if err := json.Unmarshal(data, &b.positions); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("ledger corrupt, starting empty")
		b.positions = make(map[string]entry)
	}
	return b
}

// Add creates or increases a position, recomputing the weighted-average
// cost. It returns the resulting snapshot.
func (b *Book) Add(symbol string, qty, price float64) (Position, error) {
	if qty <= 0 {
		return Position{}, fmt.Errorf("add %s: quantity must be positive, got %v", symbol, qty)
	}
	if price < 0 {
		return Position{}, fmt.Errorf("add %s: price cannot be negative, got %v", symbol, price)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.positions[symbol]
	total := e.Qty + qty
	e.Avg = (e.Qty*e.Avg + qty*price) / total
	e.Qty = total
	b.positions[symbol] = e

	if err := b.persist(); err != nil {
		return b.snapshot(symbol), fmt.Errorf("ledger persist after add: %w", err)
	}
	return b.snapshot(symbol), nil
}

// Reduce decreases a position by min(qty, held), deleting it when the
// quantity reaches zero. The average cost never changes on a reduce.
// Returns the quantity actually removed and whether the position closed.
func (b *Book) Reduce(symbol string, qty float64) (removed float64, after Position, closed bool, err error) {
	if qty <= 0 {
		return 0, Position{}, false, fmt.Errorf("reduce %s: quantity must be positive, got %v", symbol, qty)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.positions[symbol]
	if !ok {
		return 0, Position{}, false, fmt.Errorf("reduce %s: %w", symbol, ErrPositionNotFound)
	}

	removed = qty
	if removed >= e.Qty {
		removed = e.Qty
		delete(b.positions, symbol)
		closed = true
	} else {
		e.Qty -= removed
		b.positions[symbol] = e
	}

	if perr := b.persist(); perr != nil {
		return removed, b.snapshot(symbol), closed, fmt.Errorf("ledger persist after reduce: %w", perr)
	}
	return removed, b.snapshot(symbol), closed, nil
}

// Get returns the open position for symbol, if any.
func (b *Book) Get(symbol string) (Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return Position{Symbol: symbol, Quantity: e.Qty, AvgCost: e.Avg}, true
}

// Positions returns a snapshot of all open positions, sorted by symbol.
func (b *Book) Positions() []Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Position, 0, len(b.positions))
	for sym, e := range b.positions {
		out = append(out, Position{Symbol: sym, Quantity: e.Qty, AvgCost: e.Avg})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Report values every held symbol through lookup. Symbols whose lookup
// fails are listed with a nil price rather than dropped.
func (b *Book) Report(lookup func(symbol string) (float64, error)) []Line {
	positions := b.Positions()
	lines := make([]Line, 0, len(positions))
	for _, pos := range positions {
		line := Line{Position: pos}
		price, err := lookup(pos.Symbol)
		if err != nil {
			log.Debug().Err(err).Str("symbol", pos.Symbol).Msg("report price lookup failed")
		} else {
			line.Price = &price
			line.PnL = pos.UnrealizedPct(price)
		}
		lines = append(lines, line)
	}
	return lines
}

// snapshot must be called with the lock held.
func (b *Book) snapshot(symbol string) Position {
	e := b.positions[symbol]
	return Position{Symbol: symbol, Quantity: e.Qty, AvgCost: e.Avg}
}

// persist rewrites the whole document. Must be called with the lock held.
func (b *Book) persist() error {
	if b.path == "" {
		return nil
	}
	if dir := filepath.Dir(b.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(b.positions, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(b.path, data, 0o644)
}
