package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/kamilgrz/cs2-tracker/internal/config"
	"github.com/kamilgrz/cs2-tracker/internal/models"
	"github.com/kamilgrz/cs2-tracker/pkg/database"
)

type AuthHandler struct {
	db  *database.DB
	cfg *config.Config
}

func NewAuthHandler(db *database.DB, cfg *config.Config) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg}
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

const userColumns = `id, username, email, password_hash, timezone, language, email_notifications,
	push_notifications, discord_id, discord_username, created_at, last_login_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Timezone, &u.Language,
		&u.EmailNotifications, &u.PushNotifications, &u.DiscordID, &u.DiscordUsername,
		&u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func issueToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"exp":      time.Now().Add(24 * time.Hour * 30).Unix(), // 30 days
		"iat":      time.Now().Unix(),
		"iss":      "cs2-tracker",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret())
}

// Register creates an account
// POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" || len(req.Password) < 8 {
		http.Error(w, "Username, email and a password of at least 8 characters are required", http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	user, err := scanUser(h.db.Pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, last_login_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING `+userColumns,
		req.Username, req.Email, string(hash)))
	if err != nil {
		// Unique violation on username or email
		http.Error(w, "Username or email already taken", http.StatusConflict)
		return
	}

	tokenString, err := issueToken(user)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(LoginResponse{Token: tokenString, User: *user})
}

// Login verifies credentials and returns a JWT
// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	user, err := scanUser(h.db.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(req.Email))))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "Invalid email or password", http.StatusUnauthorized)
			return
		}
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		http.Error(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	now := time.Now()
	_, _ = h.db.Pool.Exec(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, now, user.ID)
	user.LastLoginAt = &now

	tokenString, err := issueToken(user)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LoginResponse{Token: tokenString, User: *user})
}

// GetMe returns current user info
// GET /api/v1/auth/me
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := scanUser(h.db.Pool.QueryRow(r.Context(),
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

type PreferencesRequest struct {
	Timezone           *string `json:"timezone"`
	Language           *string `json:"language"`
	EmailNotifications *bool   `json:"email_notifications"`
	PushNotifications  *bool   `json:"push_notifications"`
}

// UpdatePreferences patches notification and locale preferences
// PUT /api/v1/auth/preferences
func (h *AuthHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req PreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	_, err := h.db.Pool.Exec(r.Context(), `
		UPDATE users SET
			timezone = COALESCE($1, timezone),
			language = COALESCE($2, language),
			email_notifications = COALESCE($3, email_notifications),
			push_notifications = COALESCE($4, push_notifications)
		WHERE id = $5
	`, req.Timezone, req.Language, req.EmailNotifications, req.PushNotifications, userID)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) getDiscordOAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		RedirectURL:  os.Getenv("PUBLIC_API_URL") + "/api/v1/auth/discord/callback",
		ClientID:     os.Getenv("DISCORD_CLIENT_ID"),
		ClientSecret: os.Getenv("DISCORD_CLIENT_SECRET"),
		Scopes:       []string{"identify"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://discord.com/api/oauth2/authorize",
			TokenURL: "https://discord.com/api/oauth2/token",
		},
	}
}

// DiscordOAuthLogin starts the Discord linking flow for a logged-in user.
// The caller's JWT rides along in the state so the callback can attach the
// Discord identity to the right account.
// GET /api/v1/auth/discord/login?token=...
func (h *AuthHandler) DiscordOAuthLogin(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Token is required", http.StatusBadRequest)
		return
	}

	oauthCfg := h.getDiscordOAuthConfig()
	state := fmt.Sprintf("link|%s", token)
	http.Redirect(w, r, oauthCfg.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// DiscordOAuthCallback finishes the linking flow.
// GET /api/v1/auth/discord/callback
func (h *AuthHandler) DiscordOAuthCallback(w http.ResponseWriter, r *http.Request) {
	parts := strings.SplitN(r.FormValue("state"), "|", 2)
	if len(parts) != 2 || parts[0] != "link" {
		http.Error(w, "Invalid state", http.StatusBadRequest)
		return
	}

	claims := &Claims{}
	jwtToken, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret(), nil
	})
	if err != nil || !jwtToken.Valid {
		http.Error(w, "Invalid session token", http.StatusUnauthorized)
		return
	}

	code := r.FormValue("code")
	if code == "" {
		http.Error(w, "Code not found", http.StatusBadRequest)
		return
	}

	oauthCfg := h.getDiscordOAuthConfig()
	ctx := r.Context()
	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		http.Error(w, "Failed to exchange token", http.StatusInternalServerError)
		return
	}

	client := oauthCfg.Client(ctx, token)
	resp, err := client.Get("https://discord.com/api/users/@me")
	if err != nil {
		http.Error(w, "Failed to fetch user info", http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	var discordUser struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&discordUser); err != nil {
		http.Error(w, "Failed to decode user info", http.StatusInternalServerError)
		return
	}

	// A Discord account links to exactly one user; steal it if rebound.
	_, _ = h.db.Pool.Exec(ctx,
		`UPDATE users SET discord_id = NULL, discord_username = NULL WHERE discord_id = $1`,
		discordUser.ID)

	_, err = h.db.Pool.Exec(ctx, `
		UPDATE users SET discord_id = $1, discord_username = $2, push_notifications = true
		WHERE id = $3
	`, discordUser.ID, discordUser.Username, claims.UserID)
	if err != nil {
		http.Error(w, "Failed to link Discord account", http.StatusInternalServerError)
		return
	}

	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "http://localhost:3000"
	}
	http.Redirect(w, r, frontendURL+"/settings?discord=linked", http.StatusFound)
}
