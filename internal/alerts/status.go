package alerts

import (
	"fmt"
	"time"

	"github.com/kamilgrz/cs2-tracker/internal/models"
)

// Derived alert statuses. Read-only projection; never stored.
const (
	StatusInactive  = "inactive"
	StatusCompleted = "completed"
	StatusWaiting   = "waiting"
	StatusActive    = "active"
)

// StatusInfo is the UI-facing view of an alert's lifecycle position.
type StatusInfo struct {
	Status      string `json:"status"`
	Description string `json:"description"`
}

// Status projects the alert onto a display status. The branching mirrors
// CanFire so the dashboard can never call an alert "active" while the
// evaluator considers it ineligible.
func Status(a *models.PriceAlert, now time.Time) StatusInfo {
	if !a.IsActive {
		return StatusInfo{Status: StatusInactive, Description: "Nieaktywny"}
	}

	if a.RepeatInterval == 0 && a.TriggeredCount > 0 {
		return StatusInfo{Status: StatusCompleted, Description: "Zakończony"}
	}

	if a.LastTriggered != nil && a.RepeatInterval > 0 {
		elapsed := now.Sub(*a.LastTriggered)
		cooldown := time.Duration(a.RepeatInterval) * time.Hour
		if elapsed < cooldown {
			remaining := float64(a.RepeatInterval) - elapsed.Hours()
			return StatusInfo{
				Status:      StatusWaiting,
				Description: fmt.Sprintf("Oczekuje %.1fh do następnego sprawdzenia", remaining),
			}
		}
	}

	return StatusInfo{Status: StatusActive, Description: "Aktywny"}
}
