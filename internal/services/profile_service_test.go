package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kamilgrz/cs2-tracker/pkg/steamapi"
)

func TestSplitMarketName(t *testing.T) {
	tests := []struct {
		input      string
		wantWeapon string
		wantSkin   string
	}{
		{"AK-47 | Redline (Field-Tested)", "AK-47", "Redline"},
		{"StatTrak™ AWP | Asiimov (Battle-Scarred)", "AWP", "Asiimov"},
		{"★ Karambit | Doppler (Factory New)", "Karambit", "Doppler"},
		{"Souvenir M4A4 | Dragon King (Minimal Wear)", "M4A4", "Dragon King"},
		{"Sticker | Natus Vincere | Katowice 2014", "Sticker", "Natus Vincere | Katowice 2014"},
		{"Operation Breakout Weapon Case", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			weapon, skin := splitMarketName(tt.input)
			assert.Equal(t, tt.wantWeapon, weapon)
			assert.Equal(t, tt.wantSkin, skin)
		})
	}
}

func TestQualityFromName(t *testing.T) {
	assert.Equal(t, "StatTrak", qualityFromName("StatTrak™ AK-47 | Redline (Field-Tested)"))
	assert.Equal(t, "Souvenir", qualityFromName("Souvenir M4A4 | Dragon King (Minimal Wear)"))
	assert.Equal(t, "Knife", qualityFromName("★ Karambit | Doppler (Factory New)"))
	assert.Equal(t, "Normal", qualityFromName("AK-47 | Redline (Field-Tested)"))
}

func TestItemFromEntry(t *testing.T) {
	entry := steamapi.InventoryEntry{
		Asset: steamapi.InventoryAsset{
			AssetID:    "40731412893",
			ClassID:    "3106076656",
			InstanceID: "302028390",
			Amount:     "1",
		},
		Description: &steamapi.InventoryDescription{
			ClassID:    "3106076656",
			InstanceID: "302028390",
			Name:       "AK-47 | Redline",
			MarketName: "AK-47 | Redline (Field-Tested)",
			Type:       "Classified Rifle",
			Tradable:   1,
			Marketable: 1,
			Tags: []steamapi.InventoryTag{
				{Category: "Rarity", LocalizedTagName: "Classified"},
				{Category: "Exterior", LocalizedTagName: "Field-Tested"},
			},
		},
	}

	item := itemFromEntry(42, entry)
	assert.Equal(t, int64(42), item.SteamProfileID)
	assert.Equal(t, "40731412893", item.AssetID)
	assert.Equal(t, "AK-47", item.WeaponType)
	assert.Equal(t, "Redline", item.SkinName)
	assert.Equal(t, "Field-Tested", item.WearName)
	assert.Equal(t, "Classified", item.Rarity)
	assert.Equal(t, "Normal", item.Quality)
	assert.Equal(t, 1, item.Quantity)
	assert.True(t, item.IsTradeable)
}
