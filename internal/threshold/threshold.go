// Package threshold classifies an open position's state from its cost basis
// and the current price.
package threshold

import "fmt"

type State string

const (
	Hold State = "HOLD"
	TP1  State = "TP1"
	TP2  State = "TP2"
	SL   State = "SL"
)

// Config holds the percentage thresholds. All three are positive magnitudes;
// SLPercent is a drawdown, not a signed value.
type Config struct {
	TP1Percent float64
	TP2Percent float64
	SLPercent  float64
}

// Evaluate maps an unrealized P/L percentage onto a state. TP2 is checked
// before TP1: any P/L past TP2 also satisfies TP1, and the larger target
// must win.
func (c Config) Evaluate(pnlPct float64) State {
	switch {
	case pnlPct >= c.TP2Percent:
		return TP2
	case pnlPct >= c.TP1Percent:
		return TP1
	case pnlPct <= -c.SLPercent:
		return SL
	default:
		return Hold
	}
}

// Advice renders the suggested action for a non-HOLD state.
func Advice(s State) string {
	switch s {
	case TP1:
		return "take profit on ~50% of the position"
	case TP2:
		return "take profit on ~80% of the position"
	case SL:
		return "close the position"
	default:
		return ""
	}
}

func (c Config) String() string {
	return fmt.Sprintf("TP1=%.1f%% TP2=%.1f%% SL=%.1f%%", c.TP1Percent, c.TP2Percent, c.SLPercent)
}
