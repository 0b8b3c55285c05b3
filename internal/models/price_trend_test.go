package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeTrend(t *testing.T) {
	tests := []struct {
		name       string
		first      float64
		last       float64
		dataPoints int
		want       PriceTrend
	}{
		{
			name:  "rising",
			first: 10, last: 15, dataPoints: 5,
			want: PriceTrend{Trend: TrendRising, Change: 5, Percentage: 50, DataPoints: 5},
		},
		{
			name:  "falling",
			first: 20, last: 15, dataPoints: 3,
			want: PriceTrend{Trend: TrendFalling, Change: -5, Percentage: -25, DataPoints: 3},
		},
		{
			name:  "unchanged price is stable",
			first: 12.5, last: 12.5, dataPoints: 8,
			want: PriceTrend{Trend: TrendStable, Change: 0, Percentage: 0, DataPoints: 8},
		},
		{
			name:  "single observation is stable",
			first: 99, last: 99, dataPoints: 1,
			want: PriceTrend{Trend: TrendStable, Change: 0, Percentage: 0, DataPoints: 1},
		},
		{
			name:  "no observations",
			first: 0, last: 0, dataPoints: 0,
			want: PriceTrend{Trend: TrendStable, Change: 0, Percentage: 0, DataPoints: 0},
		},
		{
			name:  "change and percentage rounded to cents",
			first: 3, last: 4, dataPoints: 4,
			want: PriceTrend{Trend: TrendRising, Change: 1, Percentage: 33.33, DataPoints: 4},
		},
		{
			name:  "zero first price yields zero percentage",
			first: 0, last: 5, dataPoints: 2,
			want: PriceTrend{Trend: TrendRising, Change: 5, Percentage: 0, DataPoints: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeTrend(tt.first, tt.last, tt.dataPoints))
		})
	}
}
