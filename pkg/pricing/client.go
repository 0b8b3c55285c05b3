// Package pricing fetches current CS2 market prices. The primary source is
// the Steam Community Market priceoverview endpoint with an optional paid API
// as fallback, behind a shared limiter and a short TTL cache.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rs/zerolog/log"
)

const (
	cs2AppID = 730
	// USD; priceoverview formats for the requested currency.
	currencyUSD = 1

	cacheTTL = 4 * time.Minute
)

// Quote is one observed price for a market name.
type Quote struct {
	MarketName string
	Price      float64
	Source     string
	FetchedAt  time.Time
}

// Client fetches market prices with rate limiting and caching.
type Client struct {
	httpClient *http.Client

	fallbackURL string
	fallbackKey string

	// priceoverview tolerates roughly 20 req/min before throttling.
	limiter *rate.Limiter
	cache   sync.Map // map[string]*cacheEntry
}

type cacheEntry struct {
	Quote     *Quote
	ExpiresAt time.Time
}

// NewClient creates a price client. fallbackURL may be empty to disable the
// secondary source.
func NewClient(fallbackURL, fallbackKey string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		fallbackURL: fallbackURL,
		fallbackKey: fallbackKey,
		// One request every 3 seconds, burst of 1 to enforce spacing
		limiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
	}
}

type priceOverviewResponse struct {
	Success     bool   `json:"success"`
	LowestPrice string `json:"lowest_price"`
	MedianPrice string `json:"median_price"`
	Volume      string `json:"volume"`
}

// GetPrice returns the current price for a market hash name. Cached quotes
// are served without touching the network.
func (c *Client) GetPrice(ctx context.Context, marketName string) (*Quote, error) {
	if val, ok := c.cache.Load(marketName); ok {
		entry := val.(*cacheEntry)
		if time.Now().Before(entry.ExpiresAt) {
			return entry.Quote, nil
		}
		c.cache.Delete(marketName)
	}

	quote, err := c.fetchSteamMarket(ctx, marketName)
	if err != nil && c.fallbackURL != "" {
		log.Warn().Err(err).Str("market_name", marketName).Msg("Steam market fetch failed, trying fallback source")
		quote, err = c.fetchFallback(ctx, marketName)
	}
	if err != nil {
		return nil, err
	}

	c.cache.Store(marketName, &cacheEntry{
		Quote:     quote,
		ExpiresAt: time.Now().Add(cacheTTL),
	})
	return quote, nil
}

func (c *Client) fetchSteamMarket(ctx context.Context, marketName string) (*Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	u := fmt.Sprintf("https://steamcommunity.com/market/priceoverview/?appid=%d&currency=%d&market_hash_name=%s",
		cs2AppID, currencyUSD, url.QueryEscape(marketName))

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "CS2Tracker/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		log.Warn().
			Str("retry_after", resp.Header.Get("Retry-After")).
			Msg("Rate limited by Steam market")
		return nil, fmt.Errorf("rate limited by Steam market")
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		errMsg := string(body)
		if len(errMsg) > 200 {
			errMsg = errMsg[:200] + "..."
		}
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, errMsg)
	}

	var response priceOverviewResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !response.Success {
		return nil, fmt.Errorf("no price data for %q", marketName)
	}

	// Median survives single-listing manipulation better; fall back to lowest.
	raw := response.MedianPrice
	if raw == "" {
		raw = response.LowestPrice
	}
	price, err := ParsePriceString(raw)
	if err != nil {
		return nil, fmt.Errorf("unparseable price %q for %q: %w", raw, marketName, err)
	}

	return &Quote{
		MarketName: marketName,
		Price:      price,
		Source:     "steam_market",
		FetchedAt:  time.Now(),
	}, nil
}

type fallbackResponse struct {
	MarketHashName string  `json:"markethashname"`
	PriceAvg       float64 `json:"priceavg"`
	PriceLatest    float64 `json:"pricelatest"`
}

func (c *Client) fetchFallback(ctx context.Context, marketName string) (*Quote, error) {
	u := fmt.Sprintf("%s?key=%s&market_hash_name=%s",
		c.fallbackURL, url.QueryEscape(c.fallbackKey), url.QueryEscape(marketName))

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "CS2Tracker/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result fallbackResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	price := result.PriceLatest
	if price <= 0 {
		price = result.PriceAvg
	}
	if price <= 0 {
		return nil, fmt.Errorf("no price data for %q", marketName)
	}

	return &Quote{
		MarketName: marketName,
		Price:      price,
		Source:     "external_api",
		FetchedAt:  time.Now(),
	}, nil
}

// ParsePriceString converts Steam's formatted price ("$1,234.56") to a float.
func ParsePriceString(s string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" {
		return 0, fmt.Errorf("no digits in %q", s)
	}

	// Steam uses commas as thousands separators for USD; European currency
	// formats use a comma decimal. Treat a trailing two-digit comma group as
	// a decimal, strip commas otherwise.
	if idx := strings.LastIndex(cleaned, ","); idx >= 0 && !strings.Contains(cleaned, ".") {
		if len(cleaned)-idx-1 == 2 {
			cleaned = cleaned[:idx] + "." + cleaned[idx+1:]
		}
	}
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	return strconv.ParseFloat(cleaned, 64)
}
