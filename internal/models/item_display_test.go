package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestFullName(t *testing.T) {
	tests := []struct {
		name string
		item InventoryItem
		want string
	}{
		{
			name: "plain skin",
			item: InventoryItem{WeaponType: "AK-47", SkinName: "Redline", WearName: "Field-Tested"},
			want: "AK-47 | Redline (Field-Tested)",
		},
		{
			name: "stattrak prefix",
			item: InventoryItem{WeaponType: "AK-47", SkinName: "Redline", WearName: "Field-Tested", Quality: "StatTrak"},
			want: "StatTrak AK-47 | Redline (Field-Tested)",
		},
		{
			name: "normal quality omitted",
			item: InventoryItem{WeaponType: "M4A4", SkinName: "Asiimov", WearName: "Well-Worn", Quality: "Normal"},
			want: "M4A4 | Asiimov (Well-Worn)",
		},
		{
			name: "no wear",
			item: InventoryItem{WeaponType: "Sticker", SkinName: "Katowice 2014"},
			want: "Sticker | Katowice 2014",
		},
		{
			name: "falls back to name",
			item: InventoryItem{Name: "Operation Bravo Case"},
			want: "Operation Bravo Case",
		},
		{
			name: "falls back to market name",
			item: InventoryItem{MarketName: "Music Kit | Some Artist"},
			want: "Music Kit | Some Artist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.FullName())
		})
	}
}

func TestRarityInfo(t *testing.T) {
	covert := InventoryItem{Rarity: "Covert"}
	assert.Equal(t, RarityInfo{Color: "#eb4b4b", Level: 6}, covert.RarityInfo())

	unknown := InventoryItem{Rarity: "Mythical"}
	assert.Equal(t, RarityInfo{Color: "#b0c3d9", Level: 1}, unknown.RarityInfo())
}

func TestWearInfo(t *testing.T) {
	tests := []struct {
		name     string
		wear     *float64
		category string
		pct      float64
	}{
		{"factory new lower bound", floatPtr(0.0), "Factory New", 0},
		{"minimal wear boundary", floatPtr(0.07), "Minimal Wear", 0},
		{"field tested middle", floatPtr(0.265), "Field-Tested", 50},
		{"battle scarred", floatPtr(0.725), "Battle-Scarred", 50},
		{"no float value", nil, "Unknown", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := InventoryItem{WearValue: tt.wear}
			info := item.WearInfo()
			assert.Equal(t, tt.category, info.Category)
			assert.InDelta(t, tt.pct, info.Percentage, 0.01)
		})
	}
}

func TestProfitLoss(t *testing.T) {
	item := InventoryItem{PurchasePrice: floatPtr(10), CurrentPrice: 15}
	pl := item.ProfitLoss()
	require.NotNil(t, pl)
	assert.InDelta(t, 5, pl.Profit, 0.001)
	assert.InDelta(t, 50, pl.Percentage, 0.001)
	assert.True(t, pl.IsProfit)

	loss := InventoryItem{PurchasePrice: floatPtr(20), CurrentPrice: 15}
	pl = loss.ProfitLoss()
	require.NotNil(t, pl)
	assert.False(t, pl.IsProfit)

	assert.Nil(t, (&InventoryItem{CurrentPrice: 15}).ProfitLoss())
	assert.Nil(t, (&InventoryItem{PurchasePrice: floatPtr(10)}).ProfitLoss())
}
