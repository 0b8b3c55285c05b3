package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamilgrz/cs2-tracker/internal/models"
)

func newAlert(condition string, target float64) *models.PriceAlert {
	return &models.PriceAlert{
		ID:          1,
		UserID:      7,
		ItemName:    "AK-47 | Redline (Field-Tested)",
		TargetPrice: target,
		Condition:   condition,
		AlertType:   models.AlertTypeEmail,
		IsActive:    true,
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		condition string
		target    float64
		tolerance float64
		price     float64
		want      bool
	}{
		{name: "above satisfied", condition: "above", target: 150, price: 151, want: true},
		{name: "above inclusive boundary", condition: "above", target: 150, price: 150, want: true},
		{name: "above not satisfied", condition: "above", target: 150, price: 149.99, want: false},
		{name: "below satisfied", condition: "below", target: 100, price: 95, want: true},
		{name: "below inclusive boundary", condition: "below", target: 100, price: 100, want: true},
		{name: "below not satisfied", condition: "below", target: 100, price: 100.01, want: false},
		{name: "equals within explicit tolerance", condition: "equals", target: 100, tolerance: 5, price: 104, want: true},
		{name: "equals outside explicit tolerance", condition: "equals", target: 100, tolerance: 5, price: 105.5, want: false},
		{name: "equals default tolerance inside", condition: "equals", target: 50, price: 51, want: true},
		{name: "equals default tolerance boundary", condition: "equals", target: 50, price: 49, want: true},
		{name: "equals default tolerance outside", condition: "equals", target: 50, price: 52, want: false},
		{name: "zero price never satisfies", condition: "above", target: 1, price: 0, want: false},
		{name: "negative price never satisfies", condition: "below", target: 100, price: -5, want: false},
		{name: "unknown condition never satisfies", condition: "between", target: 100, price: 100, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAlert(tt.condition, tt.target)
			a.Tolerance = tt.tolerance
			assert.Equal(t, tt.want, Evaluate(a, tt.price))
		})
	}
}

func TestEffectiveTolerance(t *testing.T) {
	a := newAlert("equals", 50)
	assert.InDelta(t, 1.0, EffectiveTolerance(a), 1e-9)

	a.Tolerance = 3.5
	assert.InDelta(t, 3.5, EffectiveTolerance(a), 1e-9)
}

func TestCanFire(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("inactive alert is never eligible", func(t *testing.T) {
		a := newAlert("above", 100)
		a.IsActive = false
		assert.False(t, CanFire(a, now))
	})

	t.Run("fire-once alert is consumed after one trigger", func(t *testing.T) {
		a := newAlert("above", 100)
		a.RepeatInterval = 0
		a.TriggeredCount = 1
		assert.False(t, CanFire(a, now))
	})

	t.Run("repeating alert honors cooldown", func(t *testing.T) {
		a := newAlert("above", 100)
		a.RepeatInterval = 24
		fired := now
		a.LastTriggered = &fired
		a.TriggeredCount = 1

		assert.False(t, CanFire(a, now.Add(time.Second)))
		assert.False(t, CanFire(a, now.Add(23*time.Hour+59*time.Minute)))
		assert.True(t, CanFire(a, now.Add(24*time.Hour)))
	})

	t.Run("fresh alert is eligible", func(t *testing.T) {
		assert.True(t, CanFire(newAlert("below", 10), now))
	})
}

func TestFireOnceTransition(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	a := newAlert("below", 100)
	a.RepeatInterval = 0

	n := Fire(a, 95, now)
	require.NotNil(t, n)

	assert.Equal(t, 1, a.TriggeredCount)
	assert.False(t, a.IsActive)
	require.NotNil(t, a.LastTriggered)
	assert.Equal(t, now, *a.LastTriggered)
	require.NotNil(t, a.LastKnownPrice)
	assert.Equal(t, 95.0, *a.LastKnownPrice)

	assert.Equal(t, a.ID, n.AlertID)
	assert.Equal(t, 95.0, n.TriggeredPrice)
	assert.Equal(t, models.DeliveryPending, n.DeliveryStatus)
	assert.Equal(t, models.AlertTypeEmail, n.NotificationType)
	assert.Equal(t,
		"🎯 Alert cenowy: AK-47 | Redline (Field-Tested) spadła poniżej 100$ (aktualna cena: 95$)",
		n.Message)

	// Consumed: never eligible again, regardless of price.
	assert.False(t, CanFire(a, now.Add(1000*time.Hour)))
	assert.Nil(t, Fire(a, 1, now.Add(1000*time.Hour)))
	assert.Equal(t, 1, a.TriggeredCount)
}

func TestFireIneligibleIsNoOp(t *testing.T) {
	now := time.Now()

	a := newAlert("above", 100)
	a.IsActive = false
	before := *a

	assert.Nil(t, Fire(a, 200, now))
	assert.Equal(t, before, *a)
}

func TestRepeatingAlertFiresAgainAfterCooldown(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	a := newAlert("above", 100)
	a.RepeatInterval = 12

	require.NotNil(t, Fire(a, 120, t0))
	assert.Equal(t, 1, a.TriggeredCount)
	assert.True(t, a.IsActive)

	// Hour 10: still cooling down.
	assert.Nil(t, Fire(a, 130, t0.Add(10*time.Hour)))
	assert.Equal(t, 1, a.TriggeredCount)

	// Hour 13: eligible again.
	n := Fire(a, 130, t0.Add(13*time.Hour))
	require.NotNil(t, n)
	assert.Equal(t, 2, a.TriggeredCount)
	assert.Equal(t, 130.0, n.TriggeredPrice)
}

func TestEqualsToleranceScenario(t *testing.T) {
	now := time.Now()

	a := newAlert("equals", 50)
	a.RepeatInterval = 0

	// |51-50| = 1.0 <= 2% of 50 = 1.0: fires.
	require.True(t, Evaluate(a, 51))
	require.NotNil(t, Fire(a, 51, now))

	// |52-50| = 2.0 > 1.0: does not fire.
	b := newAlert("equals", 50)
	assert.False(t, Evaluate(b, 52))
}

func TestRecordPriceCheck(t *testing.T) {
	now := time.Now()

	a := newAlert("above", 100)
	RecordPriceCheck(a, 42.5, now)

	require.NotNil(t, a.LastPriceCheck)
	assert.Equal(t, now, *a.LastPriceCheck)
	require.NotNil(t, a.LastKnownPrice)
	assert.Equal(t, 42.5, *a.LastKnownPrice)
	assert.Equal(t, 0, a.TriggeredCount)

	// Unknown price updates the check timestamp but keeps the last price.
	later := now.Add(time.Minute)
	RecordPriceCheck(a, 0, later)
	assert.Equal(t, later, *a.LastPriceCheck)
	assert.Equal(t, 42.5, *a.LastKnownPrice)
}

func TestMessageWording(t *testing.T) {
	tests := []struct {
		condition string
		want      string
	}{
		{"above", "🎯 Alert cenowy: AK-47 | Redline (Field-Tested) przekroczyła 100$ (aktualna cena: 105.5$)"},
		{"below", "🎯 Alert cenowy: AK-47 | Redline (Field-Tested) spadła poniżej 100$ (aktualna cena: 105.5$)"},
		{"equals", "🎯 Alert cenowy: AK-47 | Redline (Field-Tested) osiągnęła 100$ (aktualna cena: 105.5$)"},
		{"weird", "🎯 Alert cenowy: AK-47 | Redline (Field-Tested) osiągnęła 100$ (aktualna cena: 105.5$)"},
	}

	for _, tt := range tests {
		t.Run(tt.condition, func(t *testing.T) {
			a := newAlert(tt.condition, 100)
			assert.Equal(t, tt.want, Message(a, 105.5))
		})
	}
}

func TestStatusProjection(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("inactive", func(t *testing.T) {
		a := newAlert("above", 100)
		a.IsActive = false
		assert.Equal(t, StatusInactive, Status(a, now).Status)
	})

	t.Run("completed fire-once", func(t *testing.T) {
		a := newAlert("above", 100)
		a.TriggeredCount = 1
		assert.Equal(t, StatusCompleted, Status(a, now).Status)
	})

	t.Run("waiting during cooldown", func(t *testing.T) {
		a := newAlert("above", 100)
		a.RepeatInterval = 24
		fired := now.Add(-6 * time.Hour)
		a.LastTriggered = &fired
		a.TriggeredCount = 1

		info := Status(a, now)
		assert.Equal(t, StatusWaiting, info.Status)
		assert.Contains(t, info.Description, "18.0h")
	})

	t.Run("active", func(t *testing.T) {
		a := newAlert("above", 100)
		assert.Equal(t, StatusActive, Status(a, now).Status)
	})

	// The projection must agree with the eligibility gate.
	t.Run("matches CanFire", func(t *testing.T) {
		fired := now.Add(-1 * time.Hour)
		cases := []*models.PriceAlert{
			newAlert("above", 100),
			{ItemName: "x", TargetPrice: 1, Condition: "above", AlertType: "email", IsActive: false},
			{ItemName: "x", TargetPrice: 1, Condition: "above", AlertType: "email", IsActive: true, TriggeredCount: 3},
			{ItemName: "x", TargetPrice: 1, Condition: "above", AlertType: "email", IsActive: true,
				RepeatInterval: 24, TriggeredCount: 1, LastTriggered: &fired},
		}
		for _, a := range cases {
			info := Status(a, now)
			assert.Equal(t, CanFire(a, now), info.Status == StatusActive, "status %q", info.Status)
		}
	})
}

func TestValidate(t *testing.T) {
	valid := func() *models.PriceAlert {
		a := newAlert("above", 100)
		return a
	}

	tests := []struct {
		name    string
		mutate  func(*models.PriceAlert)
		wantErr error
	}{
		{"valid", func(a *models.PriceAlert) {}, nil},
		{"missing item name", func(a *models.PriceAlert) { a.ItemName = "" }, ErrMissingItemName},
		{"zero target price", func(a *models.PriceAlert) { a.TargetPrice = 0 }, ErrInvalidTargetPrice},
		{"negative target price", func(a *models.PriceAlert) { a.TargetPrice = -1 }, ErrInvalidTargetPrice},
		{"bad condition", func(a *models.PriceAlert) { a.Condition = "ABOVE" }, ErrInvalidCondition},
		{"negative tolerance", func(a *models.PriceAlert) { a.Tolerance = -0.5 }, ErrInvalidTolerance},
		{"negative repeat", func(a *models.PriceAlert) { a.RepeatInterval = -1 }, ErrInvalidRepeat},
		{"bad alert type", func(a *models.PriceAlert) { a.AlertType = "sms" }, ErrInvalidAlertType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := valid()
			tt.mutate(a)
			err := Validate(a)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestKnownCondition(t *testing.T) {
	assert.True(t, KnownCondition(models.ConditionAbove))
	assert.True(t, KnownCondition(models.ConditionBelow))
	assert.True(t, KnownCondition(models.ConditionEquals))

	assert.False(t, KnownCondition("ABOVE"))
	assert.False(t, KnownCondition("between"))
	assert.False(t, KnownCondition(""))

	// An unrecognized condition is flagged, never fired.
	a := newAlert("between", 100)
	assert.False(t, Evaluate(a, 100))
}
