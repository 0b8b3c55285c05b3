package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kamilgrz/cs2-tracker/internal/config"
	"github.com/kamilgrz/cs2-tracker/internal/models"
	"github.com/kamilgrz/cs2-tracker/internal/services"
	"github.com/kamilgrz/cs2-tracker/pkg/steamapi"
)

// InventorySync keeps inventory snapshots fresh: any active profile whose
// snapshot is older than the configured interval gets re-fetched.
type InventorySync struct {
	profiles      *services.ProfileService
	maxAge        time.Duration
	maxConcurrent int
}

// NewInventorySync creates a new InventorySync worker
func NewInventorySync(profiles *services.ProfileService, cfg *config.Config) *InventorySync {
	return &InventorySync{
		profiles:      profiles,
		maxAge:        cfg.InventorySyncInterval,
		maxConcurrent: cfg.MaxConcurrentFetches,
	}
}

// Start begins the periodic synchronization. The check cadence is a fraction
// of the staleness threshold so profiles refresh soon after they expire.
func (w *InventorySync) Start(ctx context.Context) {
	checkEvery := w.maxAge / 6
	if checkEvery < time.Minute {
		checkEvery = time.Minute
	}

	log.Info().
		Dur("max_age", w.maxAge).
		Dur("check_every", checkEvery).
		Msg("Starting Inventory Sync worker")

	// Run immediately on start
	w.syncStale(ctx)

	ticker := time.NewTicker(checkEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Inventory Sync worker stopped")
			return
		case <-ticker.C:
			w.syncStale(ctx)
		}
	}
}

func (w *InventorySync) syncStale(ctx context.Context) {
	stale, err := w.profiles.StaleProfiles(ctx, w.maxAge, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list stale profiles")
		return
	}
	if len(stale) == 0 {
		return
	}

	start := time.Now()
	sem := make(chan struct{}, w.maxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex
	synced := 0

	for _, profile := range stale {
		select {
		case <-ctx.Done():
			return
		default:
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(p *models.SteamProfile) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := w.profiles.SyncInventory(ctx, p); err != nil {
				if errors.Is(err, steamapi.ErrInventoryPrivate) {
					log.Warn().Int64("profile_id", p.ID).Msg("Inventory is private, skipping")
				} else {
					log.Error().Err(err).Int64("profile_id", p.ID).Msg("Inventory sync failed")
				}
				return
			}
			mu.Lock()
			synced++
			mu.Unlock()
		}(profile)
	}

	wg.Wait()

	log.Info().
		Int("synced", synced).
		Int("total", len(stale)).
		Dur("elapsed", time.Since(start)).
		Msg("Inventory sync cycle completed")
}
