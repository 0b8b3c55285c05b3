package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/kamilgrz/cs2-tracker/internal/alerts"
	"github.com/kamilgrz/cs2-tracker/internal/models"
	"github.com/kamilgrz/cs2-tracker/pkg/database"
)

// AlertService owns persistence for price alerts and their notifications.
// The evaluation rules live in the alerts package; this service wraps them in
// transactions so concurrent ticks cannot double-fire an alert.
type AlertService struct {
	db *database.DB
}

func NewAlertService(db *database.DB) *AlertService {
	return &AlertService{db: db}
}

const alertColumns = `id, user_id, item_name, market_name, weapon_type, skin_name, wear_name, quality,
	target_price, condition, tolerance, alert_type, repeat_interval, is_active,
	triggered_count, last_triggered, last_price_check, last_known_price, created_at, updated_at`

func scanAlert(row pgx.Row) (*models.PriceAlert, error) {
	var a models.PriceAlert
	err := row.Scan(&a.ID, &a.UserID, &a.ItemName, &a.MarketName, &a.WeaponType, &a.SkinName,
		&a.WearName, &a.Quality, &a.TargetPrice, &a.Condition, &a.Tolerance, &a.AlertType,
		&a.RepeatInterval, &a.IsActive, &a.TriggeredCount, &a.LastTriggered, &a.LastPriceCheck,
		&a.LastKnownPrice, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create validates and stores a new alert.
func (s *AlertService) Create(ctx context.Context, a *models.PriceAlert) error {
	if err := alerts.Validate(a); err != nil {
		return err
	}

	return s.db.Pool.QueryRow(ctx, `
		INSERT INTO price_alerts (user_id, item_name, market_name, weapon_type, skin_name,
			wear_name, quality, target_price, condition, tolerance, alert_type, repeat_interval, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, true)
		RETURNING id, is_active, triggered_count, created_at, updated_at
	`, a.UserID, a.ItemName, a.MarketName, a.WeaponType, a.SkinName, a.WearName, a.Quality,
		a.TargetPrice, a.Condition, a.Tolerance, a.AlertType, a.RepeatInterval).
		Scan(&a.ID, &a.IsActive, &a.TriggeredCount, &a.CreatedAt, &a.UpdatedAt)
}

// Get returns one alert owned by userID, or pgx.ErrNoRows.
func (s *AlertService) Get(ctx context.Context, id, userID int64) (*models.PriceAlert, error) {
	return scanAlert(s.db.Pool.QueryRow(ctx,
		`SELECT `+alertColumns+` FROM price_alerts WHERE id = $1 AND user_id = $2`, id, userID))
}

// ListForUser returns all alerts for a user, newest first.
func (s *AlertService) ListForUser(ctx context.Context, userID int64) ([]*models.PriceAlert, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT `+alertColumns+` FROM price_alerts WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.PriceAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// Update validates and stores changed user-editable fields. Trigger
// bookkeeping fields are never touched here.
func (s *AlertService) Update(ctx context.Context, a *models.PriceAlert) error {
	if err := alerts.Validate(a); err != nil {
		return err
	}

	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE price_alerts
		SET item_name = $1, market_name = $2, weapon_type = $3, skin_name = $4, wear_name = $5,
			quality = $6, target_price = $7, condition = $8, tolerance = $9, alert_type = $10,
			repeat_interval = $11, is_active = $12, updated_at = NOW()
		WHERE id = $13 AND user_id = $14
	`, a.ItemName, a.MarketName, a.WeaponType, a.SkinName, a.WearName, a.Quality,
		a.TargetPrice, a.Condition, a.Tolerance, a.AlertType, a.RepeatInterval, a.IsActive,
		a.ID, a.UserID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes an alert and its notifications (cascade).
func (s *AlertService) Delete(ctx context.Context, id, userID int64) error {
	tag, err := s.db.Pool.Exec(ctx,
		`DELETE FROM price_alerts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetActive toggles an alert without touching its other fields.
func (s *AlertService) SetActive(ctx context.Context, id, userID int64, active bool) error {
	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE price_alerts SET is_active = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3
	`, active, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// TrackedNames returns the distinct market names active alerts are watching,
// so the poller only fetches prices someone cares about.
func (s *AlertService) TrackedNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT DISTINCT COALESCE(NULLIF(market_name, ''), item_name)
		FROM price_alerts WHERE is_active = true
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ProcessTick evaluates every active alert watching marketName against the
// observed price. Each alert is handled in its own transaction under
// SELECT ... FOR UPDATE, so two overlapping ticks serialize per alert and the
// eligibility re-check inside alerts.Fire turns the loser into a no-op.
// Returns the notifications created by this tick.
func (s *AlertService) ProcessTick(ctx context.Context, marketName string, price float64, now time.Time) ([]*models.AlertNotification, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id FROM price_alerts
		WHERE is_active = true
		  AND COALESCE(NULLIF(market_name, ''), item_name) = $1
	`, marketName)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts for %q: %w", marketName, err)
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var fired []*models.AlertNotification
	for _, id := range ids {
		n, err := s.processAlert(ctx, id, price, now)
		if err != nil {
			// One broken alert must not starve the rest of the tick.
			log.Error().Err(err).Int64("alert_id", id).Msg("Alert processing failed")
			continue
		}
		if n != nil {
			fired = append(fired, n)
		}
	}
	return fired, nil
}

func (s *AlertService) processAlert(ctx context.Context, id int64, price float64, now time.Time) (*models.AlertNotification, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	a, err := scanAlert(tx.QueryRow(ctx,
		`SELECT `+alertColumns+` FROM price_alerts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // deleted since listing
		}
		return nil, err
	}

	if !alerts.KnownCondition(a.Condition) {
		// The evaluator never fires these; flag the bad row loudly instead
		// of letting it rot in silence.
		log.Error().
			Int64("alert_id", a.ID).
			Str("condition", a.Condition).
			Msg("Alert has an unrecognized condition and can never fire")
	}

	alerts.RecordPriceCheck(a, price, now)

	var n *models.AlertNotification
	if alerts.Evaluate(a, price) {
		n = alerts.Fire(a, price, now)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE price_alerts
		SET is_active = $1, triggered_count = $2, last_triggered = $3,
			last_price_check = $4, last_known_price = $5, updated_at = NOW()
		WHERE id = $6
	`, a.IsActive, a.TriggeredCount, a.LastTriggered, a.LastPriceCheck, a.LastKnownPrice, a.ID); err != nil {
		return nil, err
	}

	if n != nil {
		err = tx.QueryRow(ctx, `
			INSERT INTO alert_notifications (alert_id, triggered_price, message,
				notification_type, delivery_status, triggered_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, n.AlertID, n.TriggeredPrice, n.Message, n.NotificationType, n.DeliveryStatus, n.TriggeredAt).
			Scan(&n.ID)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if n != nil {
		log.Info().
			Int64("alert_id", a.ID).
			Str("item", a.ItemName).
			Float64("price", price).
			Msg("Alert fired")
	}
	return n, nil
}

// DeliveryJob is a pending notification joined with everything the
// dispatcher needs to deliver it.
type DeliveryJob struct {
	Notification models.AlertNotification
	ItemName     string
	UserEmail    string
	DiscordID    *string
	EmailEnabled bool
	PushEnabled  bool
	UserID       int64
}

// PendingDeliveries returns up to limit notifications awaiting delivery,
// oldest first.
func (s *AlertService) PendingDeliveries(ctx context.Context, limit int) ([]DeliveryJob, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT n.id, n.alert_id, n.triggered_price, n.message, n.notification_type,
			n.is_sent, n.sent_at, n.delivery_status, n.error_message, n.triggered_at,
			a.item_name, u.id, u.email, u.discord_id, u.email_notifications, u.push_notifications
		FROM alert_notifications n
		JOIN price_alerts a ON a.id = n.alert_id
		JOIN users u ON u.id = a.user_id
		WHERE n.delivery_status = 'pending'
		ORDER BY n.triggered_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []DeliveryJob
	for rows.Next() {
		var j DeliveryJob
		n := &j.Notification
		if err := rows.Scan(&n.ID, &n.AlertID, &n.TriggeredPrice, &n.Message, &n.NotificationType,
			&n.IsSent, &n.SentAt, &n.DeliveryStatus, &n.ErrorMessage, &n.TriggeredAt,
			&j.ItemName, &j.UserID, &j.UserEmail, &j.DiscordID, &j.EmailEnabled, &j.PushEnabled); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// MarkSent records a successful delivery. Only a pending row flips; the
// returned bool reports whether this caller won the claim. A row another
// dispatcher already finalized keeps its state, so sent can never be
// overwritten by a late failure (or the other way around).
func (s *AlertService) MarkSent(ctx context.Context, notificationID int64, now time.Time) (bool, error) {
	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE alert_notifications
		SET delivery_status = 'sent', is_sent = true, sent_at = $1, error_message = NULL
		WHERE id = $2 AND delivery_status = 'pending'
	`, now, notificationID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed records a failed delivery with its cause. Same pending-only
// claim rule as MarkSent.
func (s *AlertService) MarkFailed(ctx context.Context, notificationID int64, cause string) (bool, error) {
	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE alert_notifications
		SET delivery_status = 'failed', is_sent = false, error_message = $1
		WHERE id = $2 AND delivery_status = 'pending'
	`, cause, notificationID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// NotificationsForAlert returns the trigger history of one alert, newest
// first. Ownership is enforced through the join.
func (s *AlertService) NotificationsForAlert(ctx context.Context, alertID, userID int64, limit int) ([]*models.AlertNotification, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT n.id, n.alert_id, n.triggered_price, n.message, n.notification_type,
			n.is_sent, n.sent_at, n.delivery_status, n.error_message, n.triggered_at
		FROM alert_notifications n
		JOIN price_alerts a ON a.id = n.alert_id
		WHERE n.alert_id = $1 AND a.user_id = $2
		ORDER BY n.triggered_at DESC
		LIMIT $3
	`, alertID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.AlertNotification
	for rows.Next() {
		var n models.AlertNotification
		if err := rows.Scan(&n.ID, &n.AlertID, &n.TriggeredPrice, &n.Message, &n.NotificationType,
			&n.IsSent, &n.SentAt, &n.DeliveryStatus, &n.ErrorMessage, &n.TriggeredAt); err != nil {
			return nil, err
		}
		result = append(result, &n)
	}
	return result, rows.Err()
}

// NotificationsForUser returns a user's notification history, newest first.
func (s *AlertService) NotificationsForUser(ctx context.Context, userID int64, limit int) ([]*models.AlertNotification, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT n.id, n.alert_id, n.triggered_price, n.message, n.notification_type,
			n.is_sent, n.sent_at, n.delivery_status, n.error_message, n.triggered_at
		FROM alert_notifications n
		JOIN price_alerts a ON a.id = n.alert_id
		WHERE a.user_id = $1
		ORDER BY n.triggered_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.AlertNotification
	for rows.Next() {
		var n models.AlertNotification
		if err := rows.Scan(&n.ID, &n.AlertID, &n.TriggeredPrice, &n.Message, &n.NotificationType,
			&n.IsSent, &n.SentAt, &n.DeliveryStatus, &n.ErrorMessage, &n.TriggeredAt); err != nil {
			return nil, err
		}
		result = append(result, &n)
	}
	return result, rows.Err()
}
