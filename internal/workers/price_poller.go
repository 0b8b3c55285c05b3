package workers

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kamilgrz/cs2-tracker/internal/config"
	"github.com/kamilgrz/cs2-tracker/internal/models"
	"github.com/kamilgrz/cs2-tracker/internal/services"
	"github.com/kamilgrz/cs2-tracker/pkg/pricing"
)

// nameState tracks the health of a market name for smart suspension
type nameState struct {
	FailCount     int
	CooldownUntil time.Time
}

// PricePoller periodically fetches current prices for every market name an
// active alert watches, records them, and runs the alert checks.
type PricePoller struct {
	prices        *pricing.Client
	priceService  *services.PriceService
	alertService  *services.AlertService
	interval      time.Duration
	maxConcurrent int
	nameStates    map[string]*nameState
	statesMu      sync.RWMutex
}

// NewPricePoller creates a new PricePoller worker
func NewPricePoller(prices *pricing.Client, priceService *services.PriceService, alertService *services.AlertService, cfg *config.Config) *PricePoller {
	return &PricePoller{
		prices:        prices,
		priceService:  priceService,
		alertService:  alertService,
		interval:      cfg.PriceUpdateInterval,
		maxConcurrent: cfg.MaxConcurrentFetches,
		nameStates:    make(map[string]*nameState),
	}
}

// Start begins the periodic polling
func (p *PricePoller) Start(ctx context.Context) {
	log.Info().
		Dur("interval", p.interval).
		Int("maxConcurrent", p.maxConcurrent).
		Msg("Starting Price Poller worker")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Price Poller worker stopped")
			return
		case <-ticker.C:
			p.pollAll(ctx)
		}
	}
}

// RunOnce performs a single poll cycle (useful for testing)
func (p *PricePoller) RunOnce(ctx context.Context) {
	p.pollAll(ctx)
}

func (p *PricePoller) pollAll(ctx context.Context) {
	start := time.Now()

	tracked, err := p.alertService.TrackedNames(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch tracked names")
		return
	}

	var names []string
	for _, name := range tracked {
		p.statesMu.RLock()
		state := p.nameStates[name]
		p.statesMu.RUnlock()

		if state != nil && time.Now().Before(state.CooldownUntil) {
			continue // Skip names in cooldown
		}
		names = append(names, name)
	}

	if len(names) == 0 {
		return
	}

	sem := make(chan struct{}, p.maxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex
	successCount := 0
	failCount := 0

	for _, name := range names {
		select {
		case <-ctx.Done():
			return
		default:
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(marketName string) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := p.pollOne(ctx, marketName); err != nil {
				log.Warn().Err(err).Str("market_name", marketName).Msg("Price poll failed")
				p.recordFailure(marketName)
				mu.Lock()
				failCount++
				mu.Unlock()
				return
			}
			p.recordSuccess(marketName)
			mu.Lock()
			successCount++
			mu.Unlock()
		}(name)
	}

	wg.Wait()

	log.Info().
		Int("success", successCount).
		Int("failed", failCount).
		Int("total", len(names)).
		Dur("elapsed", time.Since(start)).
		Msg("Price poll cycle completed")
}

func (p *PricePoller) pollOne(ctx context.Context, marketName string) error {
	quote, err := p.prices.GetPrice(ctx, marketName)
	if err != nil {
		return err
	}

	now := time.Now()

	if err := p.priceService.Record(ctx, models.PricePoint{
		Time:       quote.FetchedAt,
		MarketName: marketName,
		Price:      quote.Price,
		Source:     quote.Source,
	}); err != nil {
		return err
	}

	if err := p.priceService.UpdateInventoryPrices(ctx, marketName, quote.Price, now); err != nil {
		log.Warn().Err(err).Str("market_name", marketName).Msg("Failed to update inventory prices")
	}

	fired, err := p.alertService.ProcessTick(ctx, marketName, quote.Price, now)
	if err != nil {
		return err
	}
	if len(fired) > 0 {
		log.Info().Str("market_name", marketName).Int("fired", len(fired)).Msg("Alerts fired")
	}
	return nil
}

// recordFailure escalates cooldowns so names Steam keeps rejecting do not
// burn quota every cycle.
func (p *PricePoller) recordFailure(name string) {
	p.statesMu.Lock()
	defer p.statesMu.Unlock()

	state := p.nameStates[name]
	if state == nil {
		state = &nameState{}
		p.nameStates[name] = state
	}
	state.FailCount++

	switch {
	case state.FailCount >= 5:
		state.CooldownUntil = time.Now().Add(1 * time.Hour)
	case state.FailCount >= 3:
		state.CooldownUntil = time.Now().Add(15 * time.Minute)
	}
}

func (p *PricePoller) recordSuccess(name string) {
	p.statesMu.Lock()
	defer p.statesMu.Unlock()
	delete(p.nameStates, name)
}
