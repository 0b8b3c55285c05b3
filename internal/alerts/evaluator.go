// Package alerts implements the price-alert evaluator: the pure decision
// logic for when an alert's condition is satisfied, when it is eligible to
// fire, and what a firing event looks like. Persistence is deliberately
// elsewhere (services.AlertService); everything here operates on in-memory
// records so the transition rules stay unit-testable.
package alerts

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kamilgrz/cs2-tracker/internal/models"
)

// DefaultToleranceRate is the tolerance band applied to "equals" alerts that
// have no explicit tolerance: 2% of the target price.
const DefaultToleranceRate = 0.02

var (
	ErrInvalidTargetPrice = errors.New("target price must be positive")
	ErrInvalidCondition   = errors.New("unknown alert condition")
	ErrInvalidTolerance   = errors.New("tolerance must not be negative")
	ErrInvalidRepeat      = errors.New("repeat interval must not be negative")
	ErrInvalidAlertType   = errors.New("unknown alert type")
	ErrMissingItemName    = errors.New("item name is required")
)

// Validate checks the user-editable fields of an alert before it is stored.
func Validate(a *models.PriceAlert) error {
	if a.ItemName == "" {
		return ErrMissingItemName
	}
	if a.TargetPrice <= 0 {
		return ErrInvalidTargetPrice
	}
	if !KnownCondition(a.Condition) {
		return ErrInvalidCondition
	}
	if a.Tolerance < 0 {
		return ErrInvalidTolerance
	}
	if a.RepeatInterval < 0 {
		return ErrInvalidRepeat
	}
	switch a.AlertType {
	case models.AlertTypeEmail, models.AlertTypePush, models.AlertTypeBoth:
	default:
		return ErrInvalidAlertType
	}
	return nil
}

// KnownCondition reports whether c is a recognized condition value. A stored
// row failing this check is a data-integrity problem the caller should
// surface; Evaluate treats such a row as never satisfied.
func KnownCondition(c string) bool {
	switch c {
	case models.ConditionAbove, models.ConditionBelow, models.ConditionEquals:
		return true
	}
	return false
}

// EffectiveTolerance returns the band used by the "equals" condition: the
// explicit tolerance when set, otherwise 2% of the target price.
func EffectiveTolerance(a *models.PriceAlert) float64 {
	if a.Tolerance > 0 {
		return a.Tolerance
	}
	return a.TargetPrice * DefaultToleranceRate
}

// Evaluate reports whether currentPrice satisfies the alert's condition.
// A non-positive price means the price is unknown and satisfies nothing.
// Note the inclusive comparisons: "above" fires at or above the target and
// "below" at or below it. That matches the stored data's historical behavior;
// the condition names are labels, not strict inequalities.
func Evaluate(a *models.PriceAlert, currentPrice float64) bool {
	if currentPrice <= 0 {
		return false
	}

	switch a.Condition {
	case models.ConditionAbove:
		return currentPrice >= a.TargetPrice
	case models.ConditionBelow:
		return currentPrice <= a.TargetPrice
	case models.ConditionEquals:
		diff := currentPrice - a.TargetPrice
		if diff < 0 {
			diff = -diff
		}
		return diff <= EffectiveTolerance(a)
	}

	// Unrecognized condition values are a data-integrity smell, never a
	// reason to fire or to fail the tick.
	return false
}

// CanFire reports whether the alert is eligible to fire at now.
func CanFire(a *models.PriceAlert, now time.Time) bool {
	if !a.IsActive {
		return false
	}

	// A fire-once alert that already fired has consumed its single shot.
	if a.RepeatInterval == 0 && a.TriggeredCount > 0 {
		return false
	}

	// Repeating alerts honor their cooldown.
	if a.LastTriggered != nil && a.RepeatInterval > 0 {
		cooldown := time.Duration(a.RepeatInterval) * time.Hour
		if now.Sub(*a.LastTriggered) < cooldown {
			return false
		}
	}

	return true
}

// Fire applies the trigger transition to the in-memory record and returns the
// resulting pending notification, or nil when the alert is not eligible. The
// eligibility re-check makes Fire safe to call speculatively: a caller that
// lost a race (or retries a conflicted transaction) simply gets a no-op.
// The caller owns persisting both the mutated alert and the notification as
// one transaction.
func Fire(a *models.PriceAlert, currentPrice float64, now time.Time) *models.AlertNotification {
	if !CanFire(a, now) {
		return nil
	}

	t := now
	a.TriggeredCount++
	a.LastTriggered = &t
	a.LastKnownPrice = &currentPrice

	if a.RepeatInterval == 0 {
		a.IsActive = false
	}

	return &models.AlertNotification{
		AlertID:          a.ID,
		TriggeredPrice:   currentPrice,
		Message:          Message(a, currentPrice),
		NotificationType: a.AlertType,
		DeliveryStatus:   models.DeliveryPending,
		TriggeredAt:      t,
	}
}

// RecordPriceCheck updates the poll-tick bookkeeping fields. It runs once per
// tick per alert regardless of the firing decision so "last observed price"
// stays current even for alerts that never fire.
func RecordPriceCheck(a *models.PriceAlert, currentPrice float64, now time.Time) {
	t := now
	a.LastPriceCheck = &t
	if currentPrice > 0 {
		a.LastKnownPrice = &currentPrice
	}
}

// Message renders the notification text for a firing event.
func Message(a *models.PriceAlert, currentPrice float64) string {
	var conditionWord string
	switch a.Condition {
	case models.ConditionAbove:
		conditionWord = "przekroczyła"
	case models.ConditionBelow:
		conditionWord = "spadła poniżej"
	default:
		conditionWord = "osiągnęła"
	}

	return fmt.Sprintf("🎯 Alert cenowy: %s %s %s$ (aktualna cena: %s$)",
		a.ItemName, conditionWord, formatPrice(a.TargetPrice), formatPrice(currentPrice))
}

// ConditionDisplay returns a short human description of the alert condition.
func ConditionDisplay(a *models.PriceAlert) string {
	switch a.Condition {
	case models.ConditionAbove:
		return fmt.Sprintf("powyżej %s$", formatPrice(a.TargetPrice))
	case models.ConditionBelow:
		return fmt.Sprintf("poniżej %s$", formatPrice(a.TargetPrice))
	case models.ConditionEquals:
		return fmt.Sprintf("około %s$", formatPrice(a.TargetPrice))
	}
	return formatPrice(a.TargetPrice) + "$"
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
