package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kamilgrz/cs2-tracker/pkg/crypto"
	"github.com/kamilgrz/cs2-tracker/pkg/database"
)

// KeyManager pools user-contributed Steam Web API keys. Keys are stored
// encrypted on the user row and decrypted into memory for the workers, which
// spreads profile lookups over more quota than the operator keys alone.
type KeyManager struct {
	db     *database.DB
	keybox *crypto.Keybox

	mu      sync.RWMutex
	pool    []string
	poolIdx uint64
	keyMap  map[string]int64 // plaintext key -> user_id
}

func NewKeyManager(db *database.DB, keybox *crypto.Keybox) *KeyManager {
	km := &KeyManager{
		db:     db,
		keybox: keybox,
		keyMap: make(map[string]int64),
	}
	km.RefreshPool(context.Background())
	return km
}

// StartAutoRefresh reloads the pool periodically in the background.
func (km *KeyManager) StartAutoRefresh(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				km.RefreshPool(ctx)
			}
		}
	}()
}

// StoreUserKey encrypts and saves a user's Steam Web API key.
func (km *KeyManager) StoreUserKey(ctx context.Context, userID int64, apiKey string) error {
	if len(apiKey) != 32 {
		return fmt.Errorf("steam api keys are 32 hex characters")
	}

	encrypted, err := km.keybox.Seal(apiKey)
	if err != nil {
		return err
	}

	_, err = km.db.Pool.Exec(ctx,
		`UPDATE users SET encrypted_steam_api_key = $1 WHERE id = $2`, encrypted, userID)
	if err != nil {
		return err
	}

	km.RefreshPool(ctx)
	return nil
}

// RemoveUserKey drops a user's stored key.
func (km *KeyManager) RemoveUserKey(ctx context.Context, userID int64) error {
	_, err := km.db.Pool.Exec(ctx,
		`UPDATE users SET encrypted_steam_api_key = NULL WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	km.RefreshPool(ctx)
	return nil
}

// RefreshPool loads stored keys, decrypts them, and swaps the in-memory pool.
func (km *KeyManager) RefreshPool(ctx context.Context) {
	rows, err := km.db.Pool.Query(ctx,
		`SELECT id, encrypted_steam_api_key FROM users WHERE encrypted_steam_api_key IS NOT NULL`)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query stored API keys")
		return
	}
	defer rows.Close()

	var newPool []string
	newMap := make(map[string]int64)

	for rows.Next() {
		var id int64
		var encrypted string
		if err := rows.Scan(&id, &encrypted); err != nil {
			continue
		}

		decrypted, err := km.keybox.Open(encrypted)
		if err != nil {
			log.Error().Err(err).Int64("user_id", id).Msg("Failed to decrypt key")
			continue
		}

		if decrypted != "" {
			newPool = append(newPool, decrypted)
			newMap[decrypted] = id
		}
	}

	km.mu.Lock()
	km.pool = newPool
	km.keyMap = newMap
	km.mu.Unlock()

	log.Info().Int("count", len(newPool)).Msg("Steam API key pool refreshed")
}

// GetNextKey returns the next available key in round-robin fashion, or ""
// when no user keys are stored.
func (km *KeyManager) GetNextKey() string {
	km.mu.RLock()
	defer km.mu.RUnlock()

	if len(km.pool) == 0 {
		return ""
	}

	idx := atomic.AddUint64(&km.poolIdx, 1)
	return km.pool[idx%uint64(len(km.pool))]
}

// DisableKey removes a key that Steam keeps rejecting.
func (km *KeyManager) DisableKey(key string) {
	km.mu.RLock()
	userID, ok := km.keyMap[key]
	km.mu.RUnlock()

	if !ok {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := km.db.Pool.Exec(ctx,
			`UPDATE users SET encrypted_steam_api_key = NULL WHERE id = $1`, userID)
		if err == nil {
			log.Warn().Int64("user_id", userID).Msg("Disabled invalid API key for user")
			km.RefreshPool(context.Background())
		}
	}()
}
