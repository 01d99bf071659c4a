// Package orders turns an approved trade intent into an entry order plus,
// for buys, a take-profit / stop-loss bracket.
package orders

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/pmaren/market-sentry/internal/exchange"
	"github.com/pmaren/market-sentry/internal/journal"
)

const (
	KindMarket = "MARKET"
	KindLimit  = "LIMIT"

	// The stop-loss limit sits slightly under the stop so the order still
	// fills during a fast drop.
	slLimitOffset = 0.997

	lotPrecision = 6
	minLot       = 0.000001
)

// Intent is an approved trade plan. LimitPrice is required for LIMIT kind.
type Intent struct {
	Side         string
	Symbol       string
	NotionalUSDT float64
	Kind         string
	LimitPrice   float64
	TakeProfit   float64
	StopLoss     float64
	Reason       string
}

// Execution reports what was placed. TakeProfitErr/StopLossErr carry
// bracket legs that failed after a successful entry; the entry is never
// unwound on a partial failure.
type Execution struct {
	Entry         exchange.OrderResponse
	Quantity      float64
	TakeProfit    *exchange.OrderResponse
	StopLoss      *exchange.OrderResponse
	TakeProfitErr error
	StopLossErr   error
}

// PartialFailure reports whether the entry succeeded but a bracket leg did
// not.
func (e Execution) PartialFailure() bool {
	return e.TakeProfitErr != nil || e.StopLossErr != nil
}

type Planner struct {
	exch        exchange.Exchange
	maxNotional float64
	journal     journal.Journaler
}

func NewPlanner(exch exchange.Exchange, maxNotional float64, jr journal.Journaler) *Planner {
	return &Planner{exch: exch, maxNotional: maxNotional, journal: jr}
}

// Execute validates the intent, sizes the entry from the notional, submits
// it, and on a successful BUY places the bracket. The notional cap is
// checked before anything reaches the exchange.
func (p *Planner) Execute(ctx context.Context, intent Intent) (Execution, error) {
	if intent.Side != "BUY" && intent.Side != "SELL" {
		return Execution{}, fmt.Errorf("%w: bad side %q", exchange.ErrOrderRejected, intent.Side)
	}
	if intent.Kind != KindMarket && intent.Kind != KindLimit {
		return Execution{}, fmt.Errorf("%w: bad order kind %q", exchange.ErrOrderRejected, intent.Kind)
	}
	if intent.NotionalUSDT > p.maxNotional {
		return Execution{}, fmt.Errorf("%w: notional %.2f USDT exceeds cap %.2f USDT",
			exchange.ErrOrderRejected, intent.NotionalUSDT, p.maxNotional)
	}
	if intent.Kind == KindLimit && intent.LimitPrice <= 0 {
		return Execution{}, fmt.Errorf("%w: limit order without limit price", exchange.ErrOrderRejected)
	}

	refPrice := intent.LimitPrice
	if intent.Kind == KindMarket {
		price, err := p.exch.FetchPrice(ctx, intent.Symbol)
		if err != nil {
			return Execution{}, fmt.Errorf("reference price for %s: %w", intent.Symbol, err)
		}
		refPrice = price
	}
	qty := FloorLot(intent.NotionalUSDT / refPrice)

	entryReq := exchange.OrderRequest{
		Symbol:   intent.Symbol,
		Side:     intent.Side,
		Type:     intent.Kind,
		Quantity: qty,
	}
	if intent.Kind == KindLimit {
		entryReq.Price = intent.LimitPrice
		entryReq.TimeInForce = "GTC"
	}

	entry, err := p.exch.SubmitOrder(ctx, entryReq)
	if err != nil {
		return Execution{}, fmt.Errorf("entry order for %s: %w", intent.Symbol, err)
	}
	p.logOrder("entry", entry, intent.Reason)

	exec := Execution{Entry: entry, Quantity: qty}
	if intent.Side != "BUY" {
		return exec, nil
	}

	tp, err := p.exch.SubmitOrder(ctx, exchange.OrderRequest{
		Symbol:      intent.Symbol,
		Side:        "SELL",
		Type:        KindLimit,
		Quantity:    qty,
		Price:       intent.TakeProfit,
		TimeInForce: "GTC",
	})
	if err != nil {
		exec.TakeProfitErr = err
		log.Error().Err(err).Str("symbol", intent.Symbol).Msg("take-profit leg failed")
	} else {
		exec.TakeProfit = &tp
		p.logOrder("take-profit", tp, intent.Reason)
	}

	sl, err := p.exch.SubmitOrder(ctx, exchange.OrderRequest{
		Symbol:      intent.Symbol,
		Side:        "SELL",
		Type:        "STOP_LOSS_LIMIT",
		Quantity:    qty,
		StopPrice:   intent.StopLoss,
		Price:       intent.StopLoss * slLimitOffset,
		TimeInForce: "GTC",
	})
	if err != nil {
		exec.StopLossErr = err
		log.Error().Err(err).Str("symbol", intent.Symbol).Msg("stop-loss leg failed")
	} else {
		exec.StopLoss = &sl
		p.logOrder("stop-loss", sl, intent.Reason)
	}

	return exec, nil
}

func (p *Planner) logOrder(leg string, resp exchange.OrderResponse, reason string) {
	if p.journal == nil {
		return
	}
	err := p.journal.LogEvent(context.Background(), journal.Event{
		Type:        "order",
		Description: fmt.Sprintf("%s %s %s", leg, resp.Side, resp.Symbol),
		Data: map[string]any{
			"order_id": resp.OrderID,
			"status":   resp.Status,
			"type":     resp.Type,
			"quantity": resp.Quantity,
			"price":    resp.Price,
			"paper":    resp.Paper,
			"reason":   reason,
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("journal write failed")
	}
}

// FloorLot floors a raw quantity to the lot precision, with a floor of one
// minimum lot so a tiny notional still produces a valid order.
func FloorLot(qty float64) float64 {
	floored := decimal.NewFromFloat(qty).RoundDown(lotPrecision).InexactFloat64()
	if floored < minLot {
		return minLot
	}
	return floored
}
