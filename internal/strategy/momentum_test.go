package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// zigzagUp builds a series that gains up on odd steps and gives back down on
// even steps, so the trend is up while the RSI stays off saturation.
func zigzagUp(start, up, down float64, n int) []float64 {
	closes := make([]float64, n)
	closes[0] = start
	for i := 1; i < n; i++ {
		if i%2 == 1 {
			closes[i] = closes[i-1] + up
		} else {
			closes[i] = closes[i-1] - down
		}
	}
	return closes
}

func declining(start, step float64, n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = start - step*float64(i)
	}
	return closes
}

func rising(start, step float64, n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = start + step*float64(i)
	}
	return closes
}

func TestClassifyTrendBuy(t *testing.T) {
	// 60 bars, net +0.45 per two bars, RSI oscillating in the mid-60s.
	closes := zigzagUp(50, 1.0, 0.55, 60)

	sig, err := Classify(closes, DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, Buy, sig.Action)
	assert.Contains(t, sig.Reason, "uptrend")
	assert.Contains(t, sig.Reason, "RSI rising")
	assert.Greater(t, sig.SMAFast, sig.SMASlow)
	assert.GreaterOrEqual(t, sig.RSI, 50.0)
	assert.LessOrEqual(t, sig.RSI, 70.0)
	assert.InDelta(t, closes[len(closes)-1], sig.Price, 1e-9)
}

func TestClassifyExit(t *testing.T) {
	sig, err := Classify(declining(120, 0.5, 60), DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, Exit, sig.Action)
	assert.Contains(t, sig.Reason, "downtrend")
	assert.Less(t, sig.RSI, 45.0)
}

func TestClassifyHoldOnOverboughtTrend(t *testing.T) {
	// Strictly rising closes saturate the RSI at 100: uptrend, but outside
	// the buy band and nowhere near the exit condition.
	sig, err := Classify(rising(50, 1, 60), DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, Hold, sig.Action)
	assert.InDelta(t, 100, sig.RSI, 1e-9)
}

func TestClassifyInsufficientHistory(t *testing.T) {
	p := DefaultParams()
	require.Equal(t, 51, p.MinHistory())

	_, err := Classify(rising(50, 1, 50), p)
	assert.ErrorIs(t, err, ErrInsufficientHistory)

	_, err = Classify(nil, p)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestClassifyCrossover(t *testing.T) {
	// Small windows keep the arithmetic checkable by hand: the fast SMA
	// closes the gap on the final bar while RSI lands at 66.7.
	p := Params{FastPeriod: 2, SlowPeriod: 3, RSIPeriod: 2, RSIBuyMin: 50, RSIBuyMax: 70, RSIExitBelow: 45}

	sig, err := Classify([]float64{10, 9, 9, 10}, p)
	require.NoError(t, err)

	assert.Equal(t, Buy, sig.Action)
	assert.Contains(t, sig.Reason, "crossed above")
}

func TestClassifyRSIBandGatesBuy(t *testing.T) {
	p := Params{FastPeriod: 2, SlowPeriod: 3, RSIPeriod: 2, RSIBuyMin: 50, RSIBuyMax: 70, RSIExitBelow: 45}

	// Same crossover shape but the last bar pushes RSI to 70.6, just out of
	// the band, so no signal fires.
	sig, err := Classify([]float64{10, 9, 9, 10.2}, p)
	require.NoError(t, err)

	assert.Equal(t, Hold, sig.Action)
}
