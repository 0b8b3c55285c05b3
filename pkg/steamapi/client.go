// Package steamapi wraps the Steam Web API and the public community
// inventory endpoint with key rotation and Redis-backed rate limiting.
package steamapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	cs2AppID      = 730
	cs2ContextID  = 2
	inventoryPage = 2000
)

// Client wraps Steam API calls with key rotation and rate limiting
type Client struct {
	httpClient    *http.Client
	keys          []string
	keyIndex      int
	keyProvider   func() string
	onKeyRejected func(key string)
	mu            sync.Mutex
	apiBaseURL    string
	communityURL  string
	limiter       *RateLimiter
}

// NewClient creates a new Steam API client
func NewClient(apiKeys []string, redisURL string, rateLimit int) *Client {
	var limiter *RateLimiter
	if redisURL != "" {
		l, err := NewRateLimiter(redisURL, rateLimit, "steam_api:rate_limit")
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize RateLimiter, proceeding without limits")
		} else {
			limiter = l
			log.Info().Msg("RateLimiter initialized")
		}
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		keys:         apiKeys,
		apiBaseURL:   "https://api.steampowered.com",
		communityURL: "https://steamcommunity.com",
		limiter:      limiter,
	}
}

// SetKeySource registers an external key pool, the user-supplied keys the key
// manager holds. Keys from the provider take priority over the configured
// ones; onRejected is told when Steam refuses a key so the pool can drop it.
func (c *Client) SetKeySource(provider func() string, onRejected func(key string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keyProvider = provider
	c.onKeyRejected = onRejected
}

// getNextKey asks the external key source first and falls back to rotating
// the configured API keys.
func (c *Client) getNextKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.keyProvider != nil {
		if key := c.keyProvider(); key != "" {
			return key
		}
	}

	if len(c.keys) == 0 {
		return ""
	}

	key := c.keys[c.keyIndex]
	c.keyIndex = (c.keyIndex + 1) % len(c.keys)
	return key
}

// reportRejectedKey forwards a key Steam refused to the external pool.
func (c *Client) reportRejectedKey(key string) {
	c.mu.Lock()
	cb := c.onKeyRejected
	c.mu.Unlock()

	if cb != nil && key != "" {
		cb(key)
	}
}

func (c *Client) getKeyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}

// waitRateLimit blocks until a request is allowed
func (c *Client) waitRateLimit(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	keyCount := c.getKeyCount()
	if keyCount == 0 {
		keyCount = 1
	}
	return c.limiter.WaitForTicket(ctx, keyCount)
}

// PlayerSummary is the subset of GetPlayerSummaries we store.
type PlayerSummary struct {
	SteamID          string `json:"steamid"`
	PersonaName      string `json:"personaname"`
	AvatarFull       string `json:"avatarfull"`
	ProfileURL       string `json:"profileurl"`
	CommunityVisible int    `json:"communityvisibilitystate"` // 3 = public
}

// Visibility maps Steam's visibility state onto our stored values.
func (p *PlayerSummary) Visibility() string {
	if p.CommunityVisible == 3 {
		return "public"
	}
	return "private"
}

// FetchPlayerSummary retrieves profile metadata for one SteamID64.
func (c *Client) FetchPlayerSummary(ctx context.Context, steamID64 string) (*PlayerSummary, error) {
	if err := c.waitRateLimit(ctx); err != nil {
		return nil, err
	}

	key := c.getNextKey()
	if key == "" {
		return nil, fmt.Errorf("no API keys available")
	}

	u := fmt.Sprintf("%s/ISteamUser/GetPlayerSummaries/v2/?key=%s&steamids=%s",
		c.apiBaseURL, url.QueryEscape(key), url.QueryEscape(steamID64))

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch player summary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		// Revoked or invalid key; tell the pool so it stops handing it out.
		c.reportRejectedKey(key)
		return nil, fmt.Errorf("API key rejected (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var response struct {
		Response struct {
			Players []PlayerSummary `json:"players"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(response.Response.Players) == 0 {
		return nil, fmt.Errorf("player not found: %s", steamID64)
	}
	return &response.Response.Players[0], nil
}

// InventoryAsset is one owned instance of an item.
type InventoryAsset struct {
	AssetID    string `json:"assetid"`
	ClassID    string `json:"classid"`
	InstanceID string `json:"instanceid"`
	Amount     string `json:"amount"`
}

// InventoryDescription describes a class of item shared by assets.
type InventoryDescription struct {
	ClassID    string         `json:"classid"`
	InstanceID string         `json:"instanceid"`
	Name       string         `json:"name"`
	MarketName string         `json:"market_hash_name"`
	Type       string         `json:"type"`
	IconURL    string         `json:"icon_url"`
	Tradable   int            `json:"tradable"`
	Marketable int            `json:"marketable"`
	Tags       []InventoryTag `json:"tags"`
	Actions    []struct {
		Link string `json:"link"`
	} `json:"actions"`
}

// InventoryTag carries category metadata (rarity, quality, exterior).
type InventoryTag struct {
	Category         string `json:"category"`
	InternalName     string `json:"internal_name"`
	LocalizedTagName string `json:"localized_tag_name"`
}

// Tag returns the localized tag value for a category, or "".
func (d *InventoryDescription) Tag(category string) string {
	for _, t := range d.Tags {
		if t.Category == category {
			return t.LocalizedTagName
		}
	}
	return ""
}

// InspectLink returns the in-game inspect URL, or "".
func (d *InventoryDescription) InspectLink() string {
	for _, a := range d.Actions {
		if a.Link != "" {
			return a.Link
		}
	}
	return ""
}

type inventoryResponse struct {
	Assets       []InventoryAsset       `json:"assets"`
	Descriptions []InventoryDescription `json:"descriptions"`
	MoreItems    int                    `json:"more_items"`
	LastAssetID  string                 `json:"last_assetid"`
	Success      int                    `json:"success"`
}

// InventoryEntry pairs an asset with its description.
type InventoryEntry struct {
	Asset       InventoryAsset
	Description *InventoryDescription
}

// ErrInventoryPrivate is returned when the community endpoint refuses the
// inventory, which for CS2 means the profile or inventory is private.
var ErrInventoryPrivate = fmt.Errorf("inventory is private")

// FetchInventory retrieves the full CS2 inventory for a SteamID64, following
// pagination. The community endpoint needs no API key but still counts
// against the shared rate budget.
func (c *Client) FetchInventory(ctx context.Context, steamID64 string) ([]InventoryEntry, error) {
	descriptions := make(map[string]*InventoryDescription)
	var entries []InventoryEntry
	startAssetID := ""

	for {
		if err := c.waitRateLimit(ctx); err != nil {
			return nil, err
		}

		u := fmt.Sprintf("%s/inventory/%s/%d/%d?l=english&count=%d",
			c.communityURL, steamID64, cs2AppID, cs2ContextID, inventoryPage)
		if startAssetID != "" {
			u += "&start_assetid=" + startAssetID
		}

		req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch inventory: %w", err)
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusForbidden {
			return nil, ErrInventoryPrivate
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
		}

		var page inventoryResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("failed to parse inventory: %w", err)
		}
		if page.Success != 1 {
			return nil, fmt.Errorf("inventory fetch unsuccessful for %s", steamID64)
		}

		for i := range page.Descriptions {
			d := &page.Descriptions[i]
			descriptions[d.ClassID+"_"+d.InstanceID] = d
		}
		for _, a := range page.Assets {
			entries = append(entries, InventoryEntry{
				Asset:       a,
				Description: descriptions[a.ClassID+"_"+a.InstanceID],
			})
		}

		if page.MoreItems != 1 || page.LastAssetID == "" {
			break
		}
		startAssetID = page.LastAssetID
	}

	log.Debug().Str("steam_id", steamID64).Int("count", len(entries)).Msg("Fetched inventory")
	return entries, nil
}
