// Package indicator
package indicator

import "errors"

// ErrInsufficientData is returned when a series is shorter than the
// indicator's window.
var ErrInsufficientData = errors.New("insufficient data")

// SMA returns the arithmetic mean of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 || len(values) < period {
		return 0, ErrInsufficientData
	}
	var sum float64
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), nil
}
