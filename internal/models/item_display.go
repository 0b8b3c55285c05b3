package models

// Presentation helpers for inventory items. These mirror what the dashboard
// needs and stay free of persistence concerns.

// RarityInfo describes the display color and ordering level of a rarity tier.
type RarityInfo struct {
	Color string `json:"color"`
	Level int    `json:"level"`
}

var rarityTiers = map[string]RarityInfo{
	"Consumer Grade":   {Color: "#b0c3d9", Level: 1},
	"Industrial Grade": {Color: "#5e98d9", Level: 2},
	"Mil-Spec Grade":   {Color: "#4b69ff", Level: 3},
	"Restricted":       {Color: "#8847ff", Level: 4},
	"Classified":       {Color: "#d32ce6", Level: 5},
	"Covert":           {Color: "#eb4b4b", Level: 6},
	"Contraband":       {Color: "#e4ae39", Level: 7},
}

// RarityInfo returns color and level for the item's rarity tier.
// Unknown tiers fall back to Consumer Grade styling.
func (i *InventoryItem) RarityInfo() RarityInfo {
	if info, ok := rarityTiers[i.Rarity]; ok {
		return info
	}
	return RarityInfo{Color: "#b0c3d9", Level: 1}
}

// FullName composes the canonical display name, e.g.
// "StatTrak AK-47 | Redline (Field-Tested)".
func (i *InventoryItem) FullName() string {
	if i.WeaponType == "" || i.SkinName == "" {
		if i.Name != "" {
			return i.Name
		}
		return i.MarketName
	}

	full := i.WeaponType + " | " + i.SkinName
	if i.WearName != "" {
		full += " (" + i.WearName + ")"
	}
	if i.Quality != "" && i.Quality != "Normal" {
		full = i.Quality + " " + full
	}
	return full
}

// WearInfo maps a float wear value onto its category and the position within
// that category's range.
type WearInfo struct {
	Category   string  `json:"category"`
	Percentage float64 `json:"percentage"`
}

var wearRanges = []struct {
	min, max float64
	category string
}{
	{0.00, 0.07, "Factory New"},
	{0.07, 0.15, "Minimal Wear"},
	{0.15, 0.38, "Field-Tested"},
	{0.38, 0.45, "Well-Worn"},
	{0.45, 1.00, "Battle-Scarred"},
}

// WearInfo returns the wear category for the item's float value.
func (i *InventoryItem) WearInfo() WearInfo {
	if i.WearValue == nil {
		return WearInfo{Category: "Unknown"}
	}
	v := *i.WearValue
	for _, r := range wearRanges {
		if v >= r.min && v < r.max {
			pct := (v - r.min) / (r.max - r.min) * 100
			return WearInfo{Category: r.category, Percentage: pct}
		}
	}
	return WearInfo{Category: "Unknown"}
}

// ProfitLoss describes gain or loss relative to the recorded purchase price.
type ProfitLoss struct {
	Profit     float64 `json:"profit"`
	Percentage float64 `json:"percentage"`
	IsProfit   bool    `json:"is_profit"`
}

// ProfitLoss returns nil when either price is unknown.
func (i *InventoryItem) ProfitLoss() *ProfitLoss {
	if i.PurchasePrice == nil || *i.PurchasePrice <= 0 || i.CurrentPrice <= 0 {
		return nil
	}
	profit := i.CurrentPrice - *i.PurchasePrice
	return &ProfitLoss{
		Profit:     profit,
		Percentage: profit / *i.PurchasePrice * 100,
		IsProfit:   profit > 0,
	}
}
