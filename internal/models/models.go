package models

import (
	"time"
)

// Alert condition values. Stored as strings for compatibility with
// existing rows, never as enum integers.
const (
	ConditionAbove  = "above"
	ConditionBelow  = "below"
	ConditionEquals = "equals"
)

// Alert delivery channels.
const (
	AlertTypeEmail = "email"
	AlertTypePush  = "push"
	AlertTypeBoth  = "both"
)

// Notification delivery states.
const (
	DeliveryPending = "pending"
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
)

// User represents a registered user of the tracker.
type User struct {
	ID                 int64      `json:"id" db:"id"`
	Username           string     `json:"username" db:"username"`
	Email              string     `json:"email" db:"email"`
	PasswordHash       string     `json:"-" db:"password_hash"`
	Timezone           string     `json:"timezone" db:"timezone"`
	Language           string     `json:"language" db:"language"`
	EmailNotifications bool       `json:"email_notifications" db:"email_notifications"`
	PushNotifications  bool       `json:"push_notifications" db:"push_notifications"`
	DiscordID          *string    `json:"discord_id,omitempty" db:"discord_id"`
	DiscordUsername    *string    `json:"discord_username,omitempty" db:"discord_username"`
	EncryptedSteamKey  *string    `json:"-" db:"encrypted_steam_api_key"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
}

// SteamProfile represents a linked Steam account whose CS2 inventory is tracked.
type SteamProfile struct {
	ID                  int64      `json:"id" db:"id"`
	UserID              int64      `json:"user_id" db:"user_id"`
	SteamID64           string     `json:"steam_id64" db:"steam_id64"`
	ProfileName         string     `json:"profile_name" db:"profile_name"`
	SteamUsername       string     `json:"steam_username,omitempty" db:"steam_username"`
	AvatarURL           string     `json:"avatar_url,omitempty" db:"avatar_url"`
	TradeURL            string     `json:"-" db:"trade_url"`
	ProfileVisibility   string     `json:"profile_visibility" db:"profile_visibility"`
	InventoryValue      float64    `json:"inventory_value" db:"inventory_value"`
	ItemsCount          int        `json:"items_count" db:"items_count"`
	LastInventoryUpdate *time.Time `json:"last_inventory_update,omitempty" db:"last_inventory_update"`
	IsPrimary           bool       `json:"is_primary" db:"is_primary"`
	IsActive            bool       `json:"is_active" db:"is_active"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
}

// ProfileURL returns the public Steam community URL for the profile.
func (p *SteamProfile) ProfileURL() string {
	return "https://steamcommunity.com/profiles/" + p.SteamID64
}

// InventoryOutdated reports whether the inventory snapshot is older than maxAge.
func (p *SteamProfile) InventoryOutdated(maxAge time.Duration, now time.Time) bool {
	if p.LastInventoryUpdate == nil {
		return true
	}
	return now.Sub(*p.LastInventoryUpdate) > maxAge
}

// InventoryItem represents a single CS2 item held in a tracked inventory.
type InventoryItem struct {
	ID              int64      `json:"id" db:"id"`
	SteamProfileID  int64      `json:"steam_profile_id" db:"steam_profile_id"`
	AssetID         string     `json:"asset_id" db:"asset_id"`
	ClassID         string     `json:"class_id" db:"class_id"`
	InstanceID      string     `json:"instance_id,omitempty" db:"instance_id"`
	Name            string     `json:"name" db:"name"`
	MarketName      string     `json:"market_name" db:"market_name"`
	TypeName        string     `json:"type_name,omitempty" db:"type_name"`
	WeaponType      string     `json:"weapon_type,omitempty" db:"weapon_type"`
	SkinName        string     `json:"skin_name,omitempty" db:"skin_name"`
	WearName        string     `json:"wear_name,omitempty" db:"wear_name"`
	WearValue       *float64   `json:"wear_value,omitempty" db:"wear_value"`
	Rarity          string     `json:"rarity,omitempty" db:"rarity"`
	Quality         string     `json:"quality,omitempty" db:"quality"`
	CurrentPrice    float64    `json:"current_price" db:"current_price"`
	PurchasePrice   *float64   `json:"purchase_price,omitempty" db:"purchase_price"`
	LastPriceUpdate *time.Time `json:"last_price_update,omitempty" db:"last_price_update"`
	IconURL         string     `json:"icon_url,omitempty" db:"icon_url"`
	InspectURL      string     `json:"inspect_url,omitempty" db:"inspect_url"`
	IsTradeable     bool       `json:"is_tradeable" db:"is_tradeable"`
	IsMarketable    bool       `json:"is_marketable" db:"is_marketable"`
	Quantity        int        `json:"quantity" db:"quantity"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// PricePoint represents a single observed price for a market name.
type PricePoint struct {
	Time       time.Time `json:"time" db:"time"`
	MarketName string    `json:"market_name" db:"market_name"`
	Price      float64   `json:"price" db:"price"`
	Source     string    `json:"source" db:"source"`
}

// PriceCandle is an aggregated bucket of price history.
type PriceCandle struct {
	Time     time.Time `json:"time" db:"bucket"`
	Open     float64   `json:"open" db:"open"`
	High     float64   `json:"high" db:"high"`
	Low      float64   `json:"low" db:"low"`
	Close    float64   `json:"close" db:"close"`
	AvgPrice float64   `json:"avg_price" db:"avg_price"`
	Samples  int64     `json:"samples" db:"samples"`
}

// PriceAlert is a user's standing instruction to watch one item name for a
// price condition. Behavior lives in the alerts package; this is the record.
type PriceAlert struct {
	ID             int64      `json:"id" db:"id"`
	UserID         int64      `json:"user_id" db:"user_id"`
	ItemName       string     `json:"item_name" db:"item_name"`
	MarketName     string     `json:"market_name,omitempty" db:"market_name"`
	WeaponType     string     `json:"weapon_type,omitempty" db:"weapon_type"`
	SkinName       string     `json:"skin_name,omitempty" db:"skin_name"`
	WearName       string     `json:"wear_name,omitempty" db:"wear_name"`
	Quality        string     `json:"quality,omitempty" db:"quality"`
	TargetPrice    float64    `json:"target_price" db:"target_price"`
	Condition      string     `json:"condition" db:"condition"`
	Tolerance      float64    `json:"tolerance" db:"tolerance"`
	AlertType      string     `json:"alert_type" db:"alert_type"`
	RepeatInterval int        `json:"repeat_interval" db:"repeat_interval"` // hours, 0 = fire once
	IsActive       bool       `json:"is_active" db:"is_active"`
	TriggeredCount int        `json:"triggered_count" db:"triggered_count"`
	LastTriggered  *time.Time `json:"last_triggered,omitempty" db:"last_triggered"`
	LastPriceCheck *time.Time `json:"last_price_check,omitempty" db:"last_price_check"`
	LastKnownPrice *float64   `json:"last_known_price,omitempty" db:"last_known_price"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// TrackedName returns the name matched against the price feed. Alerts created
// from inventory items carry the market name; manual alerts only a display name.
func (a *PriceAlert) TrackedName() string {
	if a.MarketName != "" {
		return a.MarketName
	}
	return a.ItemName
}

// AlertNotification is an immutable record of one firing event awaiting delivery.
type AlertNotification struct {
	ID               int64      `json:"id" db:"id"`
	AlertID          int64      `json:"alert_id" db:"alert_id"`
	TriggeredPrice   float64    `json:"triggered_price" db:"triggered_price"`
	Message          string     `json:"message" db:"message"`
	NotificationType string     `json:"notification_type" db:"notification_type"`
	IsSent           bool       `json:"is_sent" db:"is_sent"`
	SentAt           *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	DeliveryStatus   string     `json:"delivery_status" db:"delivery_status"`
	ErrorMessage     *string    `json:"error_message,omitempty" db:"error_message"`
	TriggeredAt      time.Time  `json:"triggered_at" db:"triggered_at"`
}
