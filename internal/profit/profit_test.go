package profit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(f float64) *float64 { return &f }

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		in       Inputs
		expected Result
	}{
		{
			name: "profitable flip",
			in: Inputs{
				BuyPrice:   ptr(100),
				SoldMedian: 200,
				ShipCost:   12,
				FeePct:     0.13,
				FeeFixed:   0.3,
				TaxPct:     0,
			},
			expected: Result{Net: 161.7, Profit: 61.7, Margin: 0.3085},
		},
		{
			name: "losing flip",
			in: Inputs{
				BuyPrice:   ptr(100),
				SoldMedian: 100,
				ShipCost:   12,
				FeePct:     0.13,
				FeeFixed:   0.3,
				TaxPct:     0,
			},
			expected: Result{Net: 74.7, Profit: -25.3, Margin: -0.253},
		},
		{
			name: "unknown buy price treated as zero",
			in: Inputs{
				BuyPrice:   nil,
				SoldMedian: 50,
				ShipCost:   5,
				FeePct:     0.1,
				FeeFixed:   0.5,
				TaxPct:     0.2,
			},
			expected: Result{Net: 39.5, Profit: 39.5, Margin: 0.79},
		},
		{
			name: "tax applies to buy price",
			in: Inputs{
				BuyPrice:   ptr(100),
				SoldMedian: 200,
				ShipCost:   0,
				FeePct:     0,
				FeeFixed:   0,
				TaxPct:     0.08,
			},
			expected: Result{Net: 192, Profit: 92, Margin: 0.46},
		},
		{
			name: "zero sold median yields zero margin",
			in: Inputs{
				BuyPrice:   ptr(10),
				SoldMedian: 0,
				ShipCost:   0,
				FeePct:     0.13,
				FeeFixed:   0.3,
				TaxPct:     0,
			},
			expected: Result{Net: -0.3, Profit: -10.3, Margin: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Decide(tt.in)
			assert.InDelta(t, tt.expected.Net, res.Net, 1e-9)
			assert.InDelta(t, tt.expected.Profit, res.Profit, 1e-9)
			assert.InDelta(t, tt.expected.Margin, res.Margin, 1e-9)
		})
	}
}

func TestThresholds(t *testing.T) {
	thresholds := Thresholds{MinProfit: 30, MinSoldWindow: 5}

	tests := []struct {
		name       string
		profit     float64
		samples    int
		suppressed bool
	}{
		{"passes both gates", 61.7, 10, false},
		{"profit below threshold", -25.3, 10, true},
		{"profit barely below", 29.99, 10, true},
		{"profit at threshold", 30, 5, false},
		{"sample count below window", 61.7, 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			suppressed, reason := thresholds.Evaluate(Result{Profit: tt.profit}, tt.samples)
			assert.Equal(t, tt.suppressed, suppressed)
			if tt.suppressed {
				assert.Equal(t, "Below threshold", reason)
			} else {
				assert.Empty(t, reason)
			}
		})
	}
}
