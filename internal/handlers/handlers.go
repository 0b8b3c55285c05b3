package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/kamilgrz/cs2-tracker/internal/alerts"
	"github.com/kamilgrz/cs2-tracker/internal/models"
	"github.com/kamilgrz/cs2-tracker/internal/services"
	"github.com/kamilgrz/cs2-tracker/pkg/steamapi"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func urlID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// ProfileHandler serves Steam profile and inventory endpoints.
type ProfileHandler struct {
	profiles *services.ProfileService
	keys     *services.KeyManager
	prices   *services.PriceService
}

func NewProfileHandler(profiles *services.ProfileService, keys *services.KeyManager, prices *services.PriceService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, keys: keys, prices: prices}
}

type LinkProfileRequest struct {
	ProfileInput string `json:"profile_input"`
}

// LinkProfile links a Steam account to the current user
// POST /api/v1/profiles
func (h *ProfileHandler) LinkProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	var req LinkProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	profile, err := h.profiles.Link(r.Context(), userID, req.ProfileInput)
	if err != nil {
		if errors.Is(err, steamapi.ErrVanityURL) {
			http.Error(w, "Vanity URLs are not supported yet, paste the numeric profile URL", http.StatusUnprocessableEntity)
			return
		}
		if errors.Is(err, steamapi.ErrInvalidSteamID) {
			http.Error(w, "Could not recognize a Steam profile in the input", http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Msg("Profile link failed")
		http.Error(w, "Failed to link profile", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusCreated, profile)
}

// ListProfiles returns the user's linked profiles
// GET /api/v1/profiles
func (h *ProfileHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	profiles, err := h.profiles.ListForUser(r.Context(), userID)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

// DeleteProfile unlinks a profile
// DELETE /api/v1/profiles/{id}
func (h *ProfileHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	id, ok := urlID(r, "id")
	if !ok {
		http.Error(w, "Invalid profile ID", http.StatusBadRequest)
		return
	}

	if err := h.profiles.Delete(r.Context(), id, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "Profile not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetPrimaryProfile marks a profile as primary
// POST /api/v1/profiles/{id}/primary
func (h *ProfileHandler) SetPrimaryProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	id, ok := urlID(r, "id")
	if !ok {
		http.Error(w, "Invalid profile ID", http.StatusBadRequest)
		return
	}

	if err := h.profiles.SetPrimary(r.Context(), id, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "Profile not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SyncProfile forces a fresh inventory fetch
// POST /api/v1/profiles/{id}/sync
func (h *ProfileHandler) SyncProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	id, ok := urlID(r, "id")
	if !ok {
		http.Error(w, "Invalid profile ID", http.StatusBadRequest)
		return
	}

	profile, err := h.profiles.Get(r.Context(), id, userID)
	if err != nil {
		http.Error(w, "Profile not found", http.StatusNotFound)
		return
	}

	if err := h.profiles.SyncInventory(r.Context(), profile); err != nil {
		if errors.Is(err, steamapi.ErrInventoryPrivate) {
			http.Error(w, "Inventory is private", http.StatusConflict)
			return
		}
		log.Error().Err(err).Int64("profile_id", id).Msg("Manual inventory sync failed")
		http.Error(w, "Inventory sync failed", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type inventoryItemView struct {
	*models.InventoryItem
	FullName   string             `json:"full_name"`
	Rarity     models.RarityInfo  `json:"rarity_info"`
	Wear       models.WearInfo    `json:"wear_info"`
	ProfitLoss *models.ProfitLoss `json:"profit_loss,omitempty"`
	Trend      models.PriceTrend  `json:"price_trend_7d"`
}

const trendWindow = 7 * 24 * time.Hour

// GetInventory returns a profile's inventory with display metadata
// GET /api/v1/profiles/{id}/inventory
func (h *ProfileHandler) GetInventory(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	id, ok := urlID(r, "id")
	if !ok {
		http.Error(w, "Invalid profile ID", http.StatusBadRequest)
		return
	}

	if _, err := h.profiles.Get(r.Context(), id, userID); err != nil {
		http.Error(w, "Profile not found", http.StatusNotFound)
		return
	}

	items, err := h.profiles.Items(r.Context(), id)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	names := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if item.MarketName != "" && !seen[item.MarketName] {
			seen[item.MarketName] = true
			names = append(names, item.MarketName)
		}
	}
	trends, err := h.prices.TrendsForNames(r.Context(), names, time.Now().Add(-trendWindow))
	if err != nil {
		log.Warn().Err(err).Int64("profile_id", id).Msg("Failed to compute price trends")
		trends = nil
	}

	views := make([]inventoryItemView, 0, len(items))
	for _, item := range items {
		trend, ok := trends[item.MarketName]
		if !ok {
			trend = models.ComputeTrend(0, 0, 0)
		}
		views = append(views, inventoryItemView{
			InventoryItem: item,
			FullName:      item.FullName(),
			Rarity:        item.RarityInfo(),
			Wear:          item.WearInfo(),
			ProfitLoss:    item.ProfitLoss(),
			Trend:         trend,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

type PurchasePriceRequest struct {
	PurchasePrice float64 `json:"purchase_price"`
}

// SetPurchasePrice records what the user paid for an item
// PUT /api/v1/items/{id}/purchase-price
func (h *ProfileHandler) SetPurchasePrice(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	id, ok := urlID(r, "id")
	if !ok {
		http.Error(w, "Invalid item ID", http.StatusBadRequest)
		return
	}

	var req PurchasePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PurchasePrice < 0 {
		http.Error(w, "Invalid purchase price", http.StatusBadRequest)
		return
	}

	if err := h.profiles.SetPurchasePrice(r.Context(), id, userID, req.PurchasePrice); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "Item not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type SteamKeyRequest struct {
	APIKey string `json:"api_key"`
}

// StoreSteamKey saves the user's own Steam Web API key
// PUT /api/v1/user/steam-key
func (h *ProfileHandler) StoreSteamKey(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	var req SteamKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.keys.StoreUserKey(r.Context(), userID, req.APIKey); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSteamKey removes the user's stored key
// DELETE /api/v1/user/steam-key
func (h *ProfileHandler) DeleteSteamKey(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	if err := h.keys.RemoveUserKey(r.Context(), userID); err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PriceHandler serves price history endpoints.
type PriceHandler struct {
	prices *services.PriceService
	charts *services.ChartService
}

func NewPriceHandler(prices *services.PriceService, charts *services.ChartService) *PriceHandler {
	return &PriceHandler{prices: prices, charts: charts}
}

func historyWindow(r *http.Request) time.Duration {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 {
		days = 7
	}
	if days > 90 {
		days = 90
	}
	return time.Duration(days) * 24 * time.Hour
}

// GetHistory returns raw observations for a market name
// GET /api/v1/prices/history?name=...&days=7
func (h *PriceHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	window := historyWindow(r)
	history, err := h.prices.History(r.Context(), name, time.Now().Add(-window))
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// GetCandles returns bucketed history
// GET /api/v1/prices/candles?name=...&bucket=day&days=30
func (h *PriceHandler) GetCandles(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	bucket := r.URL.Query().Get("bucket")
	if bucket == "" {
		bucket = "day"
	}

	window := historyWindow(r)
	candles, err := h.prices.Candles(r.Context(), name, bucket, time.Now().Add(-window))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, candles)
}

// GetLatest returns the most recent observation
// GET /api/v1/prices/latest?name=...
func (h *PriceHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	point, err := h.prices.Latest(r.Context(), name)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	if point == nil {
		http.Error(w, "No price data", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, point)
}

// GetChart renders price history as a PNG
// GET /api/v1/prices/chart?name=...&days=1
func (h *PriceHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	window := historyWindow(r)
	history, err := h.prices.History(r.Context(), name, time.Now().Add(-window))
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	png, err := h.charts.PriceChartPNG(name, history, window)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// AlertHandler serves price alert endpoints.
type AlertHandler struct {
	alerts *services.AlertService
}

func NewAlertHandler(alertService *services.AlertService) *AlertHandler {
	return &AlertHandler{alerts: alertService}
}

type alertView struct {
	*models.PriceAlert
	Status alerts.StatusInfo `json:"status_info"`
}

func viewAlert(a *models.PriceAlert, now time.Time) alertView {
	return alertView{PriceAlert: a, Status: alerts.Status(a, now)}
}

// ListAlerts returns the user's alerts with derived status
// GET /api/v1/alerts
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	list, err := h.alerts.ListForUser(r.Context(), userID)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	views := make([]alertView, 0, len(list))
	for _, a := range list {
		views = append(views, viewAlert(a, now))
	}
	writeJSON(w, http.StatusOK, views)
}

// CreateAlert stores a new alert
// POST /api/v1/alerts
func (h *AlertHandler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	var a models.PriceAlert
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	a.UserID = userID

	if err := h.alerts.Create(r.Context(), &a); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusCreated, viewAlert(&a, time.Now()))
}

// GetAlert returns one alert
// GET /api/v1/alerts/{id}
func (h *AlertHandler) GetAlert(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	id, ok := urlID(r, "id")
	if !ok {
		http.Error(w, "Invalid alert ID", http.StatusBadRequest)
		return
	}

	a, err := h.alerts.Get(r.Context(), id, userID)
	if err != nil {
		http.Error(w, "Alert not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, viewAlert(a, time.Now()))
}

// UpdateAlert replaces an alert's user-editable fields
// PUT /api/v1/alerts/{id}
func (h *AlertHandler) UpdateAlert(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	id, ok := urlID(r, "id")
	if !ok {
		http.Error(w, "Invalid alert ID", http.StatusBadRequest)
		return
	}

	var a models.PriceAlert
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	a.ID = id
	a.UserID = userID

	if err := h.alerts.Update(r.Context(), &a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "Alert not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAlert removes an alert
// DELETE /api/v1/alerts/{id}
func (h *AlertHandler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	id, ok := urlID(r, "id")
	if !ok {
		http.Error(w, "Invalid alert ID", http.StatusBadRequest)
		return
	}

	if err := h.alerts.Delete(r.Context(), id, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "Alert not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ToggleAlertRequest struct {
	IsActive bool `json:"is_active"`
}

// ToggleAlert activates or deactivates an alert
// POST /api/v1/alerts/{id}/toggle
func (h *AlertHandler) ToggleAlert(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	id, ok := urlID(r, "id")
	if !ok {
		http.Error(w, "Invalid alert ID", http.StatusBadRequest)
		return
	}

	var req ToggleAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.alerts.SetActive(r.Context(), id, userID, req.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "Alert not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAlertNotifications returns one alert's trigger history
// GET /api/v1/alerts/{id}/notifications?limit=50
func (h *AlertHandler) ListAlertNotifications(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	id, ok := urlID(r, "id")
	if !ok {
		http.Error(w, "Invalid alert ID", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	list, err := h.alerts.NotificationsForAlert(r.Context(), id, userID, limit)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ListNotifications returns the user's notification history
// GET /api/v1/notifications?limit=50
func (h *AlertHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	list, err := h.alerts.NotificationsForUser(r.Context(), userID, limit)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
