package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// The workers and API share this pool; inventory syncs fan out writes.
	config.MaxConns = 25
	config.MinConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate creates the schema. Statements are idempotent so the binary can run
// migrations on every start.
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		// Users table
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username VARCHAR(80) NOT NULL UNIQUE,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			timezone VARCHAR(64) DEFAULT 'Europe/Warsaw',
			language VARCHAR(8) DEFAULT 'pl',
			email_notifications BOOLEAN DEFAULT true,
			push_notifications BOOLEAN DEFAULT false,
			discord_id VARCHAR(32),
			discord_username VARCHAR(100),
			encrypted_steam_api_key TEXT,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			last_login_at TIMESTAMPTZ
		);`,

		// Columns added after initial release, for existing databases
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS discord_id VARCHAR(32);`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS discord_username VARCHAR(100);`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS encrypted_steam_api_key TEXT;`,

		// Linked Steam accounts
		`CREATE TABLE IF NOT EXISTS steam_profiles (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			steam_id64 VARCHAR(20) NOT NULL,
			profile_name VARCHAR(255) DEFAULT '',
			steam_username VARCHAR(255) DEFAULT '',
			avatar_url TEXT DEFAULT '',
			trade_url TEXT DEFAULT '',
			profile_visibility VARCHAR(16) DEFAULT 'public',
			inventory_value DOUBLE PRECISION DEFAULT 0,
			items_count INT DEFAULT 0,
			last_inventory_update TIMESTAMPTZ,
			is_primary BOOLEAN DEFAULT false,
			is_active BOOLEAN DEFAULT true,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE(user_id, steam_id64)
		);`,

		// Inventory snapshot items
		`CREATE TABLE IF NOT EXISTS inventory_items (
			id BIGSERIAL PRIMARY KEY,
			steam_profile_id BIGINT NOT NULL REFERENCES steam_profiles(id) ON DELETE CASCADE,
			asset_id VARCHAR(32) NOT NULL,
			class_id VARCHAR(32) DEFAULT '',
			instance_id VARCHAR(32) DEFAULT '',
			name VARCHAR(255) NOT NULL,
			market_name VARCHAR(255) NOT NULL,
			type_name VARCHAR(128) DEFAULT '',
			weapon_type VARCHAR(128) DEFAULT '',
			skin_name VARCHAR(128) DEFAULT '',
			wear_name VARCHAR(32) DEFAULT '',
			wear_value DOUBLE PRECISION,
			rarity VARCHAR(64) DEFAULT '',
			quality VARCHAR(64) DEFAULT '',
			current_price DOUBLE PRECISION DEFAULT 0,
			purchase_price DOUBLE PRECISION,
			last_price_update TIMESTAMPTZ,
			icon_url TEXT DEFAULT '',
			inspect_url TEXT DEFAULT '',
			is_tradeable BOOLEAN DEFAULT true,
			is_marketable BOOLEAN DEFAULT true,
			quantity INT DEFAULT 1,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE(steam_profile_id, asset_id)
		);`,

		// Observed market prices, one row per poll per item name
		`CREATE TABLE IF NOT EXISTS price_history (
			time TIMESTAMPTZ NOT NULL,
			market_name VARCHAR(255) NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			source VARCHAR(32) DEFAULT 'steam_market'
		);`,

		// Price alerts
		`CREATE TABLE IF NOT EXISTS price_alerts (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			item_name VARCHAR(255) NOT NULL,
			market_name VARCHAR(255) DEFAULT '',
			weapon_type VARCHAR(128) DEFAULT '',
			skin_name VARCHAR(128) DEFAULT '',
			wear_name VARCHAR(32) DEFAULT '',
			quality VARCHAR(64) DEFAULT '',
			target_price DOUBLE PRECISION NOT NULL,
			condition VARCHAR(16) NOT NULL,
			tolerance DOUBLE PRECISION DEFAULT 0,
			alert_type VARCHAR(16) NOT NULL DEFAULT 'email',
			repeat_interval INT NOT NULL DEFAULT 0,
			is_active BOOLEAN DEFAULT true,
			triggered_count INT DEFAULT 0,
			last_triggered TIMESTAMPTZ,
			last_price_check TIMESTAMPTZ,
			last_known_price DOUBLE PRECISION,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);`,

		// Firing events and their delivery state
		`CREATE TABLE IF NOT EXISTS alert_notifications (
			id BIGSERIAL PRIMARY KEY,
			alert_id BIGINT NOT NULL REFERENCES price_alerts(id) ON DELETE CASCADE,
			triggered_price DOUBLE PRECISION NOT NULL,
			message TEXT NOT NULL,
			notification_type VARCHAR(16) NOT NULL,
			is_sent BOOLEAN DEFAULT false,
			sent_at TIMESTAMPTZ,
			delivery_status VARCHAR(16) NOT NULL DEFAULT 'pending',
			error_message TEXT,
			triggered_at TIMESTAMPTZ DEFAULT NOW()
		);`,

		// Create indexes
		`CREATE INDEX IF NOT EXISTS idx_steam_profiles_user ON steam_profiles(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_items_profile ON inventory_items(steam_profile_id);`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_items_market_name ON inventory_items(market_name);`,
		`CREATE INDEX IF NOT EXISTS idx_price_history_name_time ON price_history (market_name, time DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_price_alerts_user ON price_alerts(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_price_alerts_active ON price_alerts(is_active) WHERE is_active = true;`,
		`CREATE INDEX IF NOT EXISTS idx_alert_notifications_alert ON alert_notifications(alert_id);`,
		`CREATE INDEX IF NOT EXISTS idx_alert_notifications_pending ON alert_notifications(delivery_status) WHERE delivery_status = 'pending';`,
	}

	for _, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w\nQuery: %s", err, migration)
		}
	}

	return nil
}
