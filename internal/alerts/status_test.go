package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kamilgrz/cs2-tracker/internal/models"
)

func TestStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	twoHoursAgo := now.Add(-2 * time.Hour)

	tests := []struct {
		name  string
		alert models.PriceAlert
		want  string
	}{
		{
			name:  "disabled alert",
			alert: models.PriceAlert{IsActive: false},
			want:  StatusInactive,
		},
		{
			name:  "fire-once already triggered",
			alert: models.PriceAlert{IsActive: true, RepeatInterval: 0, TriggeredCount: 1},
			want:  StatusCompleted,
		},
		{
			name:  "repeating alert in cooldown",
			alert: models.PriceAlert{IsActive: true, RepeatInterval: 24, TriggeredCount: 1, LastTriggered: &twoHoursAgo},
			want:  StatusWaiting,
		},
		{
			name:  "repeating alert past cooldown",
			alert: models.PriceAlert{IsActive: true, RepeatInterval: 1, TriggeredCount: 1, LastTriggered: &twoHoursAgo},
			want:  StatusActive,
		},
		{
			name:  "fresh alert",
			alert: models.PriceAlert{IsActive: true},
			want:  StatusActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Status(&tt.alert, now)
			assert.Equal(t, tt.want, got.Status)
			assert.NotEmpty(t, got.Description)
		})
	}
}

func TestStatusWaitingDescription(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lastTriggered := now.Add(-90 * time.Minute)

	a := models.PriceAlert{IsActive: true, RepeatInterval: 4, TriggeredCount: 2, LastTriggered: &lastTriggered}
	got := Status(&a, now)

	assert.Equal(t, StatusWaiting, got.Status)
	assert.Equal(t, "Oczekuje 2.5h do następnego sprawdzenia", got.Description)
}
