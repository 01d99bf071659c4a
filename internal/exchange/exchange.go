// Package exchange
package exchange

import (
	"context"
	"time"

	"github.com/pmaren/market-sentry/internal/candle"
)

// Exchange is the market-data and order-placement boundary. Implementations
// must tell transient transport failures apart from unknown symbols (see
// errors.go) so callers can decide between skip-and-retry and give-up.
type Exchange interface {
	Name() string
	FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]candle.Candle, error)
	FetchPrice(ctx context.Context, symbol string) (float64, error)
	FetchBalances(ctx context.Context) (map[string]float64, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderResponse, error)
}

// OrderRequest represents a new order to be submitted.
type OrderRequest struct {
	Symbol      string
	Side        string // "BUY" or "SELL"
	Type        string // "MARKET", "LIMIT", "STOP_LOSS_LIMIT"
	Quantity    float64
	Price       float64 // limit price, when applicable
	StopPrice   float64 // for stop-limit orders
	TimeInForce string
}

// OrderResponse represents the exchange's acknowledgment. In paper mode it
// is synthetic: Paper is true and Payload carries the would-be request, but
// the shape is identical so downstream formatting is mode-agnostic.
type OrderResponse struct {
	OrderID   string
	Status    string
	Symbol    string
	Side      string
	Type      string
	Price     float64
	Quantity  float64
	Paper     bool
	Payload   map[string]string
	Timestamp time.Time
}
