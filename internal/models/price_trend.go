package models

import "math"

// Trend direction values.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendStable  = "stable"
)

// PriceTrend summarizes how a market name's price moved across a window.
type PriceTrend struct {
	Trend      string  `json:"trend"`
	Change     float64 `json:"change"`
	Percentage float64 `json:"percentage"`
	DataPoints int     `json:"data_points"`
}

// ComputeTrend derives the trend from the oldest and newest price observed in
// the window. Fewer than two observations read as stable with zero change.
func ComputeTrend(firstPrice, lastPrice float64, dataPoints int) PriceTrend {
	if dataPoints < 2 {
		return PriceTrend{Trend: TrendStable, DataPoints: dataPoints}
	}

	change := lastPrice - firstPrice
	var percentage float64
	if firstPrice > 0 {
		percentage = change / firstPrice * 100
	}

	trend := TrendStable
	switch {
	case change > 0:
		trend = TrendRising
	case change < 0:
		trend = TrendFalling
	}

	return PriceTrend{
		Trend:      trend,
		Change:     round2(change),
		Percentage: round2(percentage),
		DataPoints: dataPoints,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
