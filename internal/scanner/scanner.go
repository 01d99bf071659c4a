// Package scanner drives the periodic watchlist scan: fetch candles,
// classify, deduplicate, notify. One symbol's failure never aborts the
// cycle for the rest.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pmaren/market-sentry/internal/alert"
	"github.com/pmaren/market-sentry/internal/candle"
	"github.com/pmaren/market-sentry/internal/config"
	"github.com/pmaren/market-sentry/internal/exchange"
	"github.com/pmaren/market-sentry/internal/journal"
	"github.com/pmaren/market-sentry/internal/ledger"
	"github.com/pmaren/market-sentry/internal/news"
	"github.com/pmaren/market-sentry/internal/notifier"
	"github.com/pmaren/market-sentry/internal/scheduler"
	"github.com/pmaren/market-sentry/internal/strategy"
	"github.com/pmaren/market-sentry/internal/threshold"
)

type Scanner struct {
	mu         sync.RWMutex
	watchlist  []string
	thresholds threshold.Config

	params        strategy.Params
	scanInterval  time.Duration
	klineInterval string
	klineLimit    int
	fetchTimeout  time.Duration

	exch  exchange.Exchange
	book  *ledger.Book
	dedup *alert.Deduper
	notif notifier.Notifier
	jr    journal.Journaler
	nf    *news.Fetcher
}

func New(cfg config.Config, exch exchange.Exchange, book *ledger.Book, dedup *alert.Deduper, notif notifier.Notifier, jr journal.Journaler) *Scanner {
	return &Scanner{
		watchlist: cfg.Watchlist,
		thresholds: threshold.Config{
			TP1Percent: cfg.TP1Percent,
			TP2Percent: cfg.TP2Percent,
			SLPercent:  cfg.SLPercent,
		},
		params:        strategy.DefaultParams(),
		scanInterval:  cfg.ScanInterval,
		klineInterval: cfg.KlineInterval,
		klineLimit:    cfg.KlineLimit,
		fetchTimeout:  cfg.FetchTimeout,
		exch:          exch,
		book:          book,
		dedup:         dedup,
		notif:         notif,
		jr:            jr,
		nf:            news.NewFetcher(),
	}
}

// Run blocks, scanning at the configured interval until ctx is canceled.
func (s *Scanner) Run(ctx context.Context) {
	scheduler.Every(ctx, "scan", s.scanInterval, s.Scan)
}

// Scan executes one full cycle over the watchlist.
func (s *Scanner) Scan(ctx context.Context) error {
	for _, symbol := range s.Watchlist() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.scanSymbol(ctx, symbol); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("symbol skipped this cycle")
		}
	}
	return nil
}

func (s *Scanner) scanSymbol(ctx context.Context, symbol string) error {
	fctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	candles, err := s.exch.FetchKlines(fctx, symbol, s.klineInterval, s.klineLimit)
	if err != nil {
		return fmt.Errorf("fetching klines: %w", err)
	}
	if len(candles) == 0 {
		return fmt.Errorf("fetching klines: %w", exchange.ErrDataUnavailable)
	}
	closes := candle.Closes(candles)
	lastClose := closes[len(closes)-1]

	s.mu.RLock()
	thresholds := s.thresholds
	s.mu.RUnlock()

	sig, err := strategy.Classify(closes, s.params)
	switch {
	case errors.Is(err, strategy.ErrInsufficientHistory):
		// Not a signal and not an error worth alerting on.
		log.Debug().Str("symbol", symbol).Int("closes", len(closes)).Msg("insufficient history")
	case err != nil:
		return fmt.Errorf("classifying: %w", err)
	case sig.Action != strategy.Hold:
		if s.dedup.AllowSignal(symbol, sig.Action) {
			s.emitSignal(ctx, symbol, sig, thresholds)
		}
	}

	pos, ok := s.book.Get(symbol)
	if !ok || pos.AvgCost <= 0 {
		return nil
	}
	pnl := pos.UnrealizedPct(lastClose)
	state := thresholds.Evaluate(pnl)
	if s.dedup.AllowThreshold(symbol, state) {
		s.emitThreshold(ctx, symbol, state, pos, lastClose, pnl)
	}
	return nil
}

func (s *Scanner) emitSignal(ctx context.Context, symbol string, sig strategy.Signal, t threshold.Config) {
	var b strings.Builder
	fmt.Fprintf(&b, "📣 <b>%s</b>: %s @ %.4f\n", symbol, sig.Action, sig.Price)
	fmt.Fprintf(&b, "RSI %.1f | SMA%d %.4f | SMA%d %.4f\n",
		sig.RSI, s.params.FastPeriod, sig.SMAFast, s.params.SlowPeriod, sig.SMASlow)
	if sig.Action == strategy.Buy {
		fmt.Fprintf(&b, "Targets: TP1 %.4f | TP2 %.4f | SL %.4f\n",
			sig.Price*(1+t.TP1Percent/100), sig.Price*(1+t.TP2Percent/100), sig.Price*(1-t.SLPercent/100))
	}
	fmt.Fprintf(&b, "💬 %s", sig.Reason)

	if err := s.notif.Send(b.String()); err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("signal alert delivery failed")
		return
	}
	s.logAlert(ctx, "signal", symbol, string(sig.Action), map[string]any{
		"price":  sig.Price,
		"rsi":    sig.RSI,
		"reason": sig.Reason,
	})
}

func (s *Scanner) emitThreshold(ctx context.Context, symbol string, state threshold.State, pos ledger.Position, price, pnl float64) {
	icon := "🎯"
	if state == threshold.SL {
		icon = "🛡️"
	}
	msg := fmt.Sprintf("%s <b>%s</b> hit %s: price %.4f, avg %.4f, PnL %+.1f%%\nSuggestion: %s",
		icon, symbol, state, price, pos.AvgCost, pnl, threshold.Advice(state))

	if err := s.notif.Send(msg); err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("threshold alert delivery failed")
		return
	}
	s.logAlert(ctx, "threshold", symbol, string(state), map[string]any{
		"price": price,
		"avg":   pos.AvgCost,
		"pnl":   pnl,
	})
}

func (s *Scanner) logAlert(ctx context.Context, domain, symbol, state string, data map[string]any) {
	if s.jr == nil {
		return
	}
	data["domain"] = domain
	data["symbol"] = symbol
	data["state"] = state
	if err := s.jr.LogEvent(ctx, journal.Event{Type: "alert", Description: domain + " " + state + " " + symbol, Data: data}); err != nil {
		log.Warn().Err(err).Msg("journal write failed")
	}
}

// Watchlist returns a copy of the current watchlist.
func (s *Scanner) Watchlist() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.watchlist))
	copy(out, s.watchlist)
	return out
}

// Reconfigure atomically replaces the watchlist with a normalized copy of
// symbols.
func (s *Scanner) Reconfigure(symbols []string) []string {
	normalized := config.NormalizeWatchlist(symbols)
	s.mu.Lock()
	s.watchlist = normalized
	s.mu.Unlock()
	return normalized
}

// Digest pushes the morning/evening market overview to the notifier.
func (s *Scanner) Digest(ctx context.Context) error {
	return s.notif.SendWithRetry(s.DigestText(ctx))
}

// DigestText composes the market overview: BTC/ETH prices plus a few
// headlines. Everything in it is best effort.
func (s *Scanner) DigestText(ctx context.Context) string {
	fctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	var b strings.Builder
	b.WriteString("📊 <b>Market digest</b>\n")
	for _, symbol := range []string{"BTCUSDT", "ETHUSDT"} {
		price, err := s.exch.FetchPrice(fctx, symbol)
		if err != nil {
			fmt.Fprintf(&b, "%s: unavailable\n", symbol)
			continue
		}
		fmt.Fprintf(&b, "%s: <code>%.2f</code>\n", symbol, price)
	}
	if headlines := s.nf.Headlines(ctx, 6); len(headlines) > 0 {
		b.WriteString("📰 <b>News</b>\n")
		for _, h := range headlines {
			fmt.Fprintf(&b, "• %s\n", h)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Advise runs a one-off evaluation of symbol for an interactive request:
// the current classification plus, when a position is held, the threshold
// read on it.
func (s *Scanner) Advise(ctx context.Context, symbol string) (string, error) {
	fctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	candles, err := s.exch.FetchKlines(fctx, symbol, s.klineInterval, s.klineLimit)
	if err != nil {
		return "", fmt.Errorf("fetching klines for %s: %w", symbol, err)
	}
	if len(candles) == 0 {
		return "", fmt.Errorf("fetching klines for %s: %w", symbol, exchange.ErrDataUnavailable)
	}
	closes := candle.Closes(candles)
	lastClose := closes[len(closes)-1]

	s.mu.RLock()
	thresholds := s.thresholds
	s.mu.RUnlock()

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b> @ %.4f\n", symbol, lastClose)

	sig, err := strategy.Classify(closes, s.params)
	switch {
	case errors.Is(err, strategy.ErrInsufficientHistory):
		b.WriteString("Signal: not enough history\n")
	case err != nil:
		return "", fmt.Errorf("classifying %s: %w", symbol, err)
	default:
		fmt.Fprintf(&b, "Signal: %s (%s)\nRSI %.1f | SMA%d %.4f | SMA%d %.4f\n",
			sig.Action, sig.Reason, sig.RSI,
			s.params.FastPeriod, sig.SMAFast, s.params.SlowPeriod, sig.SMASlow)
	}

	if pos, ok := s.book.Get(symbol); ok && pos.AvgCost > 0 {
		pnl := pos.UnrealizedPct(lastClose)
		state := thresholds.Evaluate(pnl)
		fmt.Fprintf(&b, "Position: %.6f @ %.4f, PnL %+.1f%% (%s)", pos.Quantity, pos.AvgCost, pnl, state)
		if advice := threshold.Advice(state); advice != "" {
			fmt.Fprintf(&b, "\nSuggestion: %s", advice)
		}
	} else {
		b.WriteString("Position: none")
	}
	return b.String(), nil
}

// Headlines proxies the news fetcher for interactive requests.
func (s *Scanner) Headlines(ctx context.Context, limit int) []string {
	return s.nf.Headlines(ctx, limit)
}
