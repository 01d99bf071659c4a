// Package strategy
package strategy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pmaren/market-sentry/internal/indicator"
)

// ErrInsufficientHistory is returned when fewer closes are supplied than the
// classifier's longest window needs. Callers must treat it as "no signal",
// not as a failure worth alerting on.
var ErrInsufficientHistory = errors.New("insufficient history")

type Action string

const (
	Buy  Action = "BUY"
	Exit Action = "EXIT"
	Hold Action = "HOLD"
)

// Params holds the classifier thresholds. The defaults mirror the heuristic
// this system has always run; none of them are validated against market
// outcomes, treat them as tunables.
type Params struct {
	FastPeriod   int
	SlowPeriod   int
	RSIPeriod    int
	RSIBuyMin    float64
	RSIBuyMax    float64
	RSIExitBelow float64
}

func DefaultParams() Params {
	return Params{
		FastPeriod:   20,
		SlowPeriod:   50,
		RSIPeriod:    14,
		RSIBuyMin:    50,
		RSIBuyMax:    70,
		RSIExitBelow: 45,
	}
}

// MinHistory returns the number of closes needed to classify: both the
// current window and the window excluding the last bar must cover the
// slow SMA and the RSI.
func (p Params) MinHistory() int {
	min := p.SlowPeriod
	if p.RSIPeriod+1 > min {
		min = p.RSIPeriod + 1
	}
	return min + 1
}

type Signal struct {
	Action  Action  `json:"action"`
	Reason  string  `json:"reason"`
	Price   float64 `json:"price"`
	SMAFast float64 `json:"sma_fast"`
	SMASlow float64 `json:"sma_slow"`
	RSI     float64 `json:"rsi"`
}

// Classify is a pure function of the closing-price sequence: it computes the
// fast/slow SMA and RSI for the latest bar and for the bar before it, then
// maps crossover, trend, and RSI posture onto {BUY, EXIT, HOLD}.
func Classify(closes []float64, p Params) (Signal, error) {
	n := len(closes)
	if n < p.MinHistory() {
		return Signal{}, ErrInsufficientHistory
	}

	smaFast, err := indicator.SMA(closes, p.FastPeriod)
	if err != nil {
		return Signal{}, ErrInsufficientHistory
	}
	smaSlow, err := indicator.SMA(closes, p.SlowPeriod)
	if err != nil {
		return Signal{}, ErrInsufficientHistory
	}
	rsi, err := indicator.RSI(closes, p.RSIPeriod)
	if err != nil {
		return Signal{}, ErrInsufficientHistory
	}

	prev := closes[:n-1]
	prevFast, err := indicator.SMA(prev, p.FastPeriod)
	if err != nil {
		return Signal{}, ErrInsufficientHistory
	}
	prevSlow, err := indicator.SMA(prev, p.SlowPeriod)
	if err != nil {
		return Signal{}, ErrInsufficientHistory
	}
	prevRSI, err := indicator.RSI(prev, p.RSIPeriod)
	if err != nil {
		return Signal{}, ErrInsufficientHistory
	}

	sig := Signal{
		Action:  Hold,
		Price:   closes[n-1],
		SMAFast: smaFast,
		SMASlow: smaSlow,
		RSI:     rsi,
	}

	crossover := prevFast <= prevSlow && smaFast > smaSlow
	trendUp := smaFast > smaSlow
	rsiRising := rsi > prevRSI
	rsiInBand := rsi >= p.RSIBuyMin && rsi <= p.RSIBuyMax

	if (crossover || (trendUp && rsiRising)) && rsiInBand {
		var reasons []string
		if crossover {
			reasons = append(reasons, fmt.Sprintf("SMA%d crossed above SMA%d", p.FastPeriod, p.SlowPeriod))
		}
		if trendUp {
			reasons = append(reasons, fmt.Sprintf("uptrend SMA%d > SMA%d", p.FastPeriod, p.SlowPeriod))
		}
		if rsiRising {
			reasons = append(reasons, fmt.Sprintf("RSI rising to %.1f", rsi))
		}
		sig.Action = Buy
		sig.Reason = strings.Join(reasons, ", ")
		return sig, nil
	}

	if smaFast < smaSlow && rsi < p.RSIExitBelow {
		sig.Action = Exit
		sig.Reason = fmt.Sprintf("downtrend SMA%d < SMA%d, RSI weak at %.1f", p.FastPeriod, p.SlowPeriod, rsi)
		return sig, nil
	}

	sig.Reason = "no setup"
	return sig, nil
}
