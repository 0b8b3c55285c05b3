package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/kamilgrz/cs2-tracker/internal/models"
	"github.com/kamilgrz/cs2-tracker/internal/services"
	"github.com/kamilgrz/cs2-tracker/pkg/database"
)

// BotInternalHandler provides endpoints for the Discord bot to manage
// users' alerts securely via a shared secret.
type BotInternalHandler struct {
	db     *database.DB
	alerts *services.AlertService
	prices *services.PriceService
	charts *services.ChartService
}

func NewBotInternalHandler(db *database.DB, alerts *services.AlertService, prices *services.PriceService, charts *services.ChartService) *BotInternalHandler {
	return &BotInternalHandler{db: db, alerts: alerts, prices: prices, charts: charts}
}

func (h *BotInternalHandler) userByDiscordID(r *http.Request) (int64, error) {
	discordID := chi.URLParam(r, "discord_id")

	var userID int64
	err := h.db.Pool.QueryRow(r.Context(),
		`SELECT id FROM users WHERE discord_id = $1`, discordID).Scan(&userID)
	return userID, err
}

// GetUserAlerts returns all alerts for a given Discord user
// GET /api/internal/users/{discord_id}/alerts
func (h *BotInternalHandler) GetUserAlerts(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userByDiscordID(r)
	if err != nil {
		http.Error(w, "User not found or not linked to Discord", http.StatusNotFound)
		return
	}

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

// CreateUserAlert creates an alert on behalf of a Discord user
// POST /api/internal/users/{discord_id}/alerts
func (h *BotInternalHandler) CreateUserAlert(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userByDiscordID(r)
	if err != nil {
		http.Error(w, "User not found or not linked to Discord", http.StatusNotFound)
		return
	}

	var a models.PriceAlert
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	a.UserID = userID
	// Alerts created from Discord notify back through Discord.
	a.AlertType = models.AlertTypePush

	if err := h.alerts.Create(r.Context(), &a); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusCreated, viewAlert(&a, time.Now()))
}

// DeleteUserAlert removes an alert on behalf of a Discord user
// DELETE /api/internal/users/{discord_id}/alerts/{id}
func (h *BotInternalHandler) DeleteUserAlert(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userByDiscordID(r)
	if err != nil {
		http.Error(w, "User not found or not linked to Discord", http.StatusNotFound)
		return
	}

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

// GetLatestPrice returns the newest observation for the bot's /price command
// GET /api/internal/prices/latest?name=...
func (h *BotInternalHandler) GetLatestPrice(w http.ResponseWriter, r *http.Request) {
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

// GetPriceChart renders a chart PNG for the bot's /chart command
// GET /api/internal/prices/chart?name=...&days=1
func (h *BotInternalHandler) GetPriceChart(w http.ResponseWriter, r *http.Request) {
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
