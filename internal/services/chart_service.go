package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/kamilgrz/cs2-tracker/internal/models"
)

// ChartService renders price history charts for the web UI and the bot.
type ChartService struct{}

func NewChartService() *ChartService {
	return &ChartService{}
}

// PriceChartPNG renders the price history of one market name as a line chart.
func (s *ChartService) PriceChartPNG(marketName string, history []models.PricePoint, window time.Duration) ([]byte, error) {
	if len(history) < 2 {
		return nil, fmt.Errorf("not enough data points to generate a chart")
	}

	var xValues []time.Time
	var yValues []float64
	for _, p := range history {
		xValues = append(xValues, p.Time)
		yValues = append(yValues, p.Price)
	}

	timeFormat := "15:04"
	if window > 48*time.Hour {
		timeFormat = "Jan 2"
	}

	graph := chart.Chart{
		Title: fmt.Sprintf("%s - %s", marketName, windowLabel(window)),
		TitleStyle: chart.Style{
			FontColor: drawing.ColorWhite,
			FontSize:  16,
		},
		Background: chart.Style{
			FillColor: drawing.ColorFromHex("2c2f33"), // Discord dark theme color
		},
		Canvas: chart.Style{
			FillColor: drawing.ColorFromHex("23272a"),
		},
		XAxis: chart.XAxis{
			Name: "Time",
			NameStyle: chart.Style{
				FontColor: drawing.ColorWhite,
			},
			Style: chart.Style{
				FontColor:   drawing.ColorWhite,
				StrokeColor: drawing.ColorWhite,
			},
			ValueFormatter: chart.TimeValueFormatterWithFormat(timeFormat),
		},
		YAxis: chart.YAxis{
			Name: "Price ($)",
			NameStyle: chart.Style{
				FontColor: drawing.ColorWhite,
			},
			Style: chart.Style{
				FontColor:   drawing.ColorWhite,
				StrokeColor: drawing.ColorWhite,
			},
			ValueFormatter: func(v interface{}) string {
				if typed, ok := v.(float64); ok {
					if typed >= 1000 {
						return fmt.Sprintf("$%.1fK", typed/1000)
					}
					return fmt.Sprintf("$%.2f", typed)
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Price",
				XValues: xValues,
				YValues: yValues,
				Style: chart.Style{
					StrokeColor: drawing.ColorFromHex("5865F2"), // Blurple
					StrokeWidth: 3.0,
				},
			},
		},
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func windowLabel(window time.Duration) string {
	switch {
	case window <= 24*time.Hour:
		return "24h Price History"
	case window <= 7*24*time.Hour:
		return "7d Price History"
	}
	return "30d Price History"
}
