package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSMA(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		period   int
		expected float64
		wantErr  bool
	}{
		{
			name:     "Mean of last period values",
			values:   []float64{1, 2, 3, 4},
			period:   2,
			expected: 3.5,
		},
		{
			name:     "Exactly period equal values returns the value",
			values:   []float64{7, 7, 7, 7, 7},
			period:   5,
			expected: 7,
		},
		{
			name:     "Window ignores older values",
			values:   []float64{100, 100, 100, 10, 20, 30},
			period:   3,
			expected: 20,
		},
		{
			name:    "Fewer values than period",
			values:  []float64{1, 2},
			period:  3,
			wantErr: true,
		},
		{
			name:    "Zero period",
			values:  []float64{1, 2, 3},
			period:  0,
			wantErr: true,
		},
		{
			name:    "Empty series",
			values:  nil,
			period:  1,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SMA(tt.values, tt.period)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInsufficientData)
				return
			}
			assert.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}
