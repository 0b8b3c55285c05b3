package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kamilgrz/cs2-tracker/internal/models"
	"github.com/kamilgrz/cs2-tracker/pkg/database"
)

// PriceService stores and queries observed market prices.
type PriceService struct {
	db *database.DB
}

func NewPriceService(db *database.DB) *PriceService {
	return &PriceService{db: db}
}

// Record appends one observed price to the history.
func (s *PriceService) Record(ctx context.Context, p models.PricePoint) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO price_history (time, market_name, price, source)
		VALUES ($1, $2, $3, $4)
	`, p.Time, p.MarketName, p.Price, p.Source)
	return err
}

// Latest returns the most recent observation for a market name, or nil when
// the item has never been polled.
func (s *PriceService) Latest(ctx context.Context, marketName string) (*models.PricePoint, error) {
	var p models.PricePoint
	err := s.db.Pool.QueryRow(ctx, `
		SELECT time, market_name, price, source
		FROM price_history WHERE market_name = $1
		ORDER BY time DESC LIMIT 1
	`, marketName).Scan(&p.Time, &p.MarketName, &p.Price, &p.Source)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// History returns raw observations since a point in time, oldest first.
func (s *PriceService) History(ctx context.Context, marketName string, since time.Time) ([]models.PricePoint, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT time, market_name, price, source
		FROM price_history
		WHERE market_name = $1 AND time >= $2
		ORDER BY time
	`, marketName, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.PricePoint
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.Time, &p.MarketName, &p.Price, &p.Source); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

var validBuckets = map[string]bool{
	"hour": true,
	"day":  true,
	"week": true,
}

// Candles aggregates history into date_trunc buckets. bucket must be one of
// hour, day, week; it is interpolated into the query and so is allowlisted.
func (s *PriceService) Candles(ctx context.Context, marketName, bucket string, since time.Time) ([]models.PriceCandle, error) {
	if !validBuckets[bucket] {
		return nil, fmt.Errorf("invalid bucket %q", bucket)
	}

	query := fmt.Sprintf(`
		SELECT date_trunc('%s', time) AS bucket,
			(array_agg(price ORDER BY time))[1] AS open,
			max(price) AS high,
			min(price) AS low,
			(array_agg(price ORDER BY time DESC))[1] AS close,
			avg(price) AS avg_price,
			count(*) AS samples
		FROM price_history
		WHERE market_name = $1 AND time >= $2
		GROUP BY 1
		ORDER BY 1
	`, bucket)

	rows, err := s.db.Pool.Query(ctx, query, marketName, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.PriceCandle
	for rows.Next() {
		var c models.PriceCandle
		if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.AvgPrice, &c.Samples); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// TrendsForNames computes the price trend over the window for a set of
// market names in one query: oldest price, newest price and sample count per
// name. Names without history in the window simply have no entry.
func (s *PriceService) TrendsForNames(ctx context.Context, names []string, since time.Time) (map[string]models.PriceTrend, error) {
	trends := make(map[string]models.PriceTrend, len(names))
	if len(names) == 0 {
		return trends, nil
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT market_name,
			(array_agg(price ORDER BY time))[1] AS first_price,
			(array_agg(price ORDER BY time DESC))[1] AS last_price,
			count(*) AS samples
		FROM price_history
		WHERE market_name = ANY($1) AND time >= $2
		GROUP BY market_name
	`, names, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var first, last float64
		var samples int64
		if err := rows.Scan(&name, &first, &last, &samples); err != nil {
			return nil, err
		}
		trends[name] = models.ComputeTrend(first, last, int(samples))
	}
	return trends, rows.Err()
}

// UpdateInventoryPrices refreshes current_price on inventory rows matching
// the market name, so dashboards reflect the latest poll.
func (s *PriceService) UpdateInventoryPrices(ctx context.Context, marketName string, price float64, now time.Time) error {
	_, err := s.db.Pool.Exec(ctx, `
		UPDATE inventory_items
		SET current_price = $1, last_price_update = $2
		WHERE market_name = $3
	`, price, now, marketName)
	return err
}
