package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kamilgrz/cs2-tracker/internal/config"
	"github.com/kamilgrz/cs2-tracker/internal/services"
)

const dispatchBatchSize = 50

// deliveryQueue is the slice of AlertService the dispatcher drains.
type deliveryQueue interface {
	PendingDeliveries(ctx context.Context, limit int) ([]services.DeliveryJob, error)
	MarkSent(ctx context.Context, notificationID int64, now time.Time) (bool, error)
	MarkFailed(ctx context.Context, notificationID int64, cause string) (bool, error)
}

type deliverer interface {
	Deliver(ctx context.Context, job services.DeliveryJob) error
}

// Dispatcher drains pending alert notifications and hands them to the
// notifier. Firing and delivery are decoupled on purpose: a slow SMTP server
// must not hold the evaluation transaction open.
type Dispatcher struct {
	alerts   deliveryQueue
	notifier deliverer
	interval time.Duration
}

// NewDispatcher creates a new Dispatcher worker
func NewDispatcher(alerts *services.AlertService, notifier *services.Notifier, cfg *config.Config) *Dispatcher {
	return &Dispatcher{
		alerts:   alerts,
		notifier: notifier,
		interval: cfg.DispatchInterval,
	}
}

// Start begins the periodic dispatch loop
func (d *Dispatcher) Start(ctx context.Context) {
	log.Info().Dur("interval", d.interval).Msg("Starting Dispatcher worker")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Dispatcher worker stopped")
			return
		case <-ticker.C:
			d.dispatchPending(ctx)
		}
	}
}

// RunOnce drains one batch (useful for testing)
func (d *Dispatcher) RunOnce(ctx context.Context) {
	d.dispatchPending(ctx)
}

func (d *Dispatcher) dispatchPending(ctx context.Context) {
	jobs, err := d.alerts.PendingDeliveries(ctx, dispatchBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch pending notifications")
		return
	}
	if len(jobs) == 0 {
		return
	}

	sent := 0
	failed := 0
	lost := 0

	for _, job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := d.notifier.Deliver(ctx, job); err != nil {
			log.Warn().Err(err).
				Int64("notification_id", job.Notification.ID).
				Int64("user_id", job.UserID).
				Msg("Notification delivery failed")
			claimed, markErr := d.alerts.MarkFailed(ctx, job.Notification.ID, err.Error())
			if markErr != nil {
				log.Error().Err(markErr).Int64("notification_id", job.Notification.ID).Msg("Failed to mark notification failed")
				continue
			}
			if !claimed {
				// Another dispatcher finalized this row first; its state wins.
				lost++
				continue
			}
			failed++
			continue
		}

		claimed, markErr := d.alerts.MarkSent(ctx, job.Notification.ID, time.Now())
		if markErr != nil {
			log.Error().Err(markErr).Int64("notification_id", job.Notification.ID).Msg("Failed to mark notification sent")
			continue
		}
		if !claimed {
			log.Warn().Int64("notification_id", job.Notification.ID).Msg("Notification was already finalized by another dispatcher")
			lost++
			continue
		}
		sent++
	}

	log.Info().Int("sent", sent).Int("failed", failed).Int("lost_races", lost).Msg("Dispatch cycle completed")
}
