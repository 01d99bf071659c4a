package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmaren/market-sentry/internal/candle"
	"github.com/pmaren/market-sentry/internal/exchange"
)

type fakeExchange struct {
	price     float64
	priceErr  error
	submitted []exchange.OrderRequest
	failTypes map[string]error
}

func (f *fakeExchange) Name() string { return "fake" }

func (f *fakeExchange) FetchKlines(context.Context, string, string, int) ([]candle.Candle, error) {
	panic("not used")
}

func (f *fakeExchange) FetchPrice(context.Context, string) (float64, error) {
	return f.price, f.priceErr
}

func (f *fakeExchange) FetchBalances(context.Context) (map[string]float64, error) {
	return nil, nil
}

func (f *fakeExchange) SubmitOrder(_ context.Context, req exchange.OrderRequest) (exchange.OrderResponse, error) {
	if err, ok := f.failTypes[req.Type]; ok {
		return exchange.OrderResponse{}, err
	}
	f.submitted = append(f.submitted, req)
	return exchange.OrderResponse{
		OrderID:  "1",
		Status:   "FILLED",
		Symbol:   req.Symbol,
		Side:     req.Side,
		Type:     req.Type,
		Price:    req.Price,
		Quantity: req.Quantity,
	}, nil
}

func TestExecuteRejectsOverCap(t *testing.T) {
	f := &fakeExchange{price: 100}
	p := NewPlanner(f, 300, nil)

	_, err := p.Execute(context.Background(), Intent{
		Side: "BUY", Symbol: "SOLUSDT", NotionalUSDT: 50000, Kind: KindMarket,
		TakeProfit: 212, StopLoss: 188,
	})

	assert.ErrorIs(t, err, exchange.ErrOrderRejected)
	assert.Empty(t, f.submitted, "nothing may reach the exchange on a cap rejection")
}

func TestExecuteMarketBuyPlacesBracket(t *testing.T) {
	f := &fakeExchange{price: 100}
	p := NewPlanner(f, 300, nil)

	exec, err := p.Execute(context.Background(), Intent{
		Side: "BUY", Symbol: "SOLUSDT", NotionalUSDT: 250, Kind: KindMarket,
		TakeProfit: 110, StopLoss: 90,
	})
	require.NoError(t, err)
	require.Len(t, f.submitted, 3)

	entry := f.submitted[0]
	assert.Equal(t, "MARKET", entry.Type)
	assert.Equal(t, "BUY", entry.Side)
	assert.InDelta(t, 2.5, entry.Quantity, 1e-9)

	tp := f.submitted[1]
	assert.Equal(t, "LIMIT", tp.Type)
	assert.Equal(t, "SELL", tp.Side)
	assert.Equal(t, 110.0, tp.Price)
	assert.Equal(t, entry.Quantity, tp.Quantity)
	assert.Equal(t, "GTC", tp.TimeInForce)

	sl := f.submitted[2]
	assert.Equal(t, "STOP_LOSS_LIMIT", sl.Type)
	assert.Equal(t, 90.0, sl.StopPrice)
	assert.InDelta(t, 89.73, sl.Price, 1e-9)

	assert.False(t, exec.PartialFailure())
	assert.InDelta(t, 2.5, exec.Quantity, 1e-9)
}

func TestExecuteLimitBuyUsesLimitPriceAsReference(t *testing.T) {
	f := &fakeExchange{price: 999} // must not be consulted
	p := NewPlanner(f, 300, nil)

	exec, err := p.Execute(context.Background(), Intent{
		Side: "BUY", Symbol: "SOLUSDT", NotionalUSDT: 100, Kind: KindLimit,
		LimitPrice: 50, TakeProfit: 60, StopLoss: 45,
	})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, exec.Quantity, 1e-9)

	entry := f.submitted[0]
	assert.Equal(t, 50.0, entry.Price)
	assert.Equal(t, "GTC", entry.TimeInForce)
}

func TestExecuteStopLossFailureIsSurfacedNotRolledBack(t *testing.T) {
	f := &fakeExchange{
		price:     100,
		failTypes: map[string]error{"STOP_LOSS_LIMIT": errors.New("exchange down")},
	}
	p := NewPlanner(f, 300, nil)

	exec, err := p.Execute(context.Background(), Intent{
		Side: "BUY", Symbol: "SOLUSDT", NotionalUSDT: 100, Kind: KindMarket,
		TakeProfit: 110, StopLoss: 90,
	})
	require.NoError(t, err, "a failed bracket leg must not fail the execution")

	assert.True(t, exec.PartialFailure())
	assert.Error(t, exec.StopLossErr)
	assert.NotNil(t, exec.TakeProfit)
	// Entry and take-profit stand: only the two successful submissions.
	assert.Len(t, f.submitted, 2)
}

func TestExecuteSellSkipsBracket(t *testing.T) {
	f := &fakeExchange{price: 100}
	p := NewPlanner(f, 300, nil)

	_, err := p.Execute(context.Background(), Intent{
		Side: "SELL", Symbol: "SOLUSDT", NotionalUSDT: 100, Kind: KindMarket,
	})
	require.NoError(t, err)
	assert.Len(t, f.submitted, 1)
}

func TestExecuteValidation(t *testing.T) {
	f := &fakeExchange{price: 100}
	p := NewPlanner(f, 300, nil)

	_, err := p.Execute(context.Background(), Intent{Side: "HOLD", Symbol: "SOLUSDT", NotionalUSDT: 10, Kind: KindMarket})
	assert.ErrorIs(t, err, exchange.ErrOrderRejected)

	_, err = p.Execute(context.Background(), Intent{Side: "BUY", Symbol: "SOLUSDT", NotionalUSDT: 10, Kind: KindLimit})
	assert.ErrorIs(t, err, exchange.ErrOrderRejected)

	_, err = p.Execute(context.Background(), Intent{Side: "BUY", Symbol: "SOLUSDT", NotionalUSDT: 10, Kind: "OCO"})
	assert.ErrorIs(t, err, exchange.ErrOrderRejected)
}

func TestFloorLot(t *testing.T) {
	assert.InDelta(t, 2.507522, FloorLot(2.5075229), 1e-9)
	assert.InDelta(t, 2.5, FloorLot(2.5), 1e-9)
	assert.Equal(t, 0.000001, FloorLot(0.0000001))
}
