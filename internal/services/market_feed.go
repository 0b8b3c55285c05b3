package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/kamilgrz/cs2-tracker/internal/config"
	"github.com/kamilgrz/cs2-tracker/internal/models"
)

const (
	feedReconnectInterval = 10 * time.Second
	feedResyncInterval    = 60 * time.Second
)

// MarketFeedService holds a streaming connection to a third-party market
// feed and turns pushed sale events into price ticks. It complements the
// slower HTTP poller with near-realtime updates for subscribed names.
type MarketFeedService struct {
	cfg    *config.Config
	prices *PriceService
	alerts *AlertService

	conn       *websocket.Conn
	mu         sync.Mutex
	subscribed map[string]bool
	running    bool
}

func NewMarketFeedService(cfg *config.Config, prices *PriceService, alerts *AlertService) *MarketFeedService {
	return &MarketFeedService{
		cfg:        cfg,
		prices:     prices,
		alerts:     alerts,
		subscribed: make(map[string]bool),
	}
}

// Start runs the connect/reconnect loop until ctx is canceled.
func (s *MarketFeedService) Start(ctx context.Context) {
	s.running = true
	log.Info().Msg("Starting market feed service...")

	for s.running {
		select {
		case <-ctx.Done():
			return
		default:
			if err := s.run(ctx); err != nil {
				log.Error().Err(err).Msg("Market feed error, restarting in 10s...")
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(feedReconnectInterval):
				continue
			}
		}
	}
}

func (s *MarketFeedService) run(ctx context.Context) error {
	if s.cfg.MarketFeedURL == "" {
		return fmt.Errorf("MARKET_FEED_URL is not set")
	}

	log.Info().Str("url", s.cfg.MarketFeedURL).Msg("Connecting to market feed...")

	conn, _, err := websocket.DefaultDialer.Dial(s.cfg.MarketFeedURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.subscribed = make(map[string]bool)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
			s.conn = nil
		}
		s.mu.Unlock()
	}()

	conn.SetReadLimit(512 * 1024)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	go s.pingLoop(ctx)

	// Authenticate
	authPayload := map[string]interface{}{
		"action": "auth",
		"token":  s.cfg.MarketFeedToken,
	}
	if err := conn.WriteJSON(authPayload); err != nil {
		return fmt.Errorf("auth send failed: %w", err)
	}

	var authResponse map[string]interface{}
	if err := conn.ReadJSON(&authResponse); err != nil {
		return fmt.Errorf("auth read failed: %w", err)
	}
	if errVal, ok := authResponse["error"]; ok && errVal != nil {
		return fmt.Errorf("auth failed: %v", errVal)
	}
	log.Info().Msg("Market feed authenticated")

	if err := s.subscribeTrackedNames(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to subscribe to tracked names")
	}

	go s.resyncLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			var msg map[string]interface{}
			if err := conn.ReadJSON(&msg); err != nil {
				return fmt.Errorf("read error: %w", err)
			}
			s.handleMessage(ctx, msg)
		}
	}
}

func (s *MarketFeedService) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(50 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.conn == nil {
				s.mu.Unlock()
				return
			}
			err := s.conn.WriteMessage(websocket.PingMessage, []byte{})
			s.mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Msg("Failed to send ping")
				return
			}
		}
	}
}

// subscribeTrackedNames subscribes to every name an active alert watches.
func (s *MarketFeedService) subscribeTrackedNames(ctx context.Context) error {
	names, err := s.alerts.TrackedNames(ctx)
	if err != nil {
		return err
	}

	log.Info().Int("count", len(names)).Msg("Subscribing to tracked market names...")

	for i, name := range names {
		if err := s.subscribe(name); err != nil {
			log.Error().Err(err).Str("market_name", name).Msg("Failed to subscribe")
		}
		if i > 0 && i%10 == 0 {
			time.Sleep(100 * time.Millisecond) // Rate limit protection
		}
	}
	return nil
}

func (s *MarketFeedService) subscribe(marketName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("no connection")
	}
	if s.subscribed[marketName] {
		return nil
	}

	payload := map[string]interface{}{
		"action":           "subscribe",
		"market_hash_name": marketName,
	}
	if err := s.conn.WriteJSON(payload); err != nil {
		return err
	}

	s.subscribed[marketName] = true
	return nil
}

// resyncLoop picks up names from alerts created after connect.
func (s *MarketFeedService) resyncLoop(ctx context.Context) {
	ticker := time.NewTicker(feedResyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.subscribeTrackedNames(ctx); err != nil {
				log.Error().Err(err).Msg("Periodic subscription sync failed")
			}
		}
	}
}

func (s *MarketFeedService) handleMessage(ctx context.Context, data map[string]interface{}) {
	event, _ := data["event"].(string)
	if event != "price" {
		return
	}

	marketName, _ := data["market_hash_name"].(string)
	price, _ := data["price"].(float64)
	if marketName == "" || price <= 0 {
		return
	}

	s.processUpdate(ctx, marketName, price)
}

func (s *MarketFeedService) processUpdate(ctx context.Context, marketName string, price float64) {
	log.Debug().Str("market_name", marketName).Float64("price", price).Msg("Feed update received")

	now := time.Now()

	if err := s.prices.Record(ctx, models.PricePoint{
		Time:       now,
		MarketName: marketName,
		Price:      price,
		Source:     "market_feed",
	}); err != nil {
		log.Warn().Err(err).Str("market_name", marketName).Msg("Failed to record feed price")
	}

	if err := s.prices.UpdateInventoryPrices(ctx, marketName, price, now); err != nil {
		log.Warn().Err(err).Str("market_name", marketName).Msg("Failed to update inventory prices")
	}

	fired, err := s.alerts.ProcessTick(ctx, marketName, price, now)
	if err != nil {
		log.Error().Err(err).Str("market_name", marketName).Msg("Alert check failed")
		return
	}
	if len(fired) > 0 {
		log.Info().Str("market_name", marketName).Int("fired", len(fired)).Msg("Alerts fired via feed")
	}
}
