package indicator

// RSI computes Wilder's smoothed RSI over the whole series and returns the
// final value. Requires more than period values: the first period deltas
// seed the averages, every later delta is smoothed in.
func RSI(prices []float64, period int) (float64, error) {
	if period <= 0 || len(prices) <= period {
		return 0, ErrInsufficientData
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gain += change
		} else {
			loss += -change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gain = change
			loss = 0
		} else {
			gain = 0
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}
	// Zero average loss saturates at 100 rather than dividing by zero.
	if avgLoss == 0 {
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), nil
}
