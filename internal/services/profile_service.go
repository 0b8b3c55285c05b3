package services

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/kamilgrz/cs2-tracker/internal/models"
	"github.com/kamilgrz/cs2-tracker/pkg/database"
	"github.com/kamilgrz/cs2-tracker/pkg/steamapi"
)

// ProfileService manages linked Steam accounts and their inventory snapshots.
type ProfileService struct {
	db    *database.DB
	steam *steamapi.Client
}

func NewProfileService(db *database.DB, steam *steamapi.Client) *ProfileService {
	return &ProfileService{db: db, steam: steam}
}

const profileColumns = `id, user_id, steam_id64, profile_name, steam_username, avatar_url, trade_url,
	profile_visibility, inventory_value, items_count, last_inventory_update, is_primary, is_active, created_at`

func scanProfile(row pgx.Row) (*models.SteamProfile, error) {
	var p models.SteamProfile
	err := row.Scan(&p.ID, &p.UserID, &p.SteamID64, &p.ProfileName, &p.SteamUsername, &p.AvatarURL,
		&p.TradeURL, &p.ProfileVisibility, &p.InventoryValue, &p.ItemsCount, &p.LastInventoryUpdate,
		&p.IsPrimary, &p.IsActive, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Link resolves the pasted profile input to a SteamID64, fetches the profile
// metadata and stores the association. Vanity URLs surface
// steamapi.ErrVanityURL to the caller.
func (s *ProfileService) Link(ctx context.Context, userID int64, input string) (*models.SteamProfile, error) {
	steamID, err := steamapi.ExtractSteamID64(input)
	if err != nil {
		return nil, err
	}

	summary, err := s.steam.FetchPlayerSummary(ctx, steamID)
	if err != nil {
		return nil, err
	}

	// First linked profile becomes the primary one.
	var existing int
	if err := s.db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM steam_profiles WHERE user_id = $1`, userID).Scan(&existing); err != nil {
		return nil, err
	}

	return scanProfile(s.db.Pool.QueryRow(ctx, `
		INSERT INTO steam_profiles (user_id, steam_id64, profile_name, steam_username, avatar_url,
			profile_visibility, is_primary)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, steam_id64) DO UPDATE
		SET profile_name = EXCLUDED.profile_name,
			avatar_url = EXCLUDED.avatar_url,
			profile_visibility = EXCLUDED.profile_visibility,
			is_active = true
		RETURNING `+profileColumns,
		userID, steamID, summary.PersonaName, summary.PersonaName, summary.AvatarFull,
		summary.Visibility(), existing == 0))
}

// Get returns one profile owned by userID.
func (s *ProfileService) Get(ctx context.Context, id, userID int64) (*models.SteamProfile, error) {
	return scanProfile(s.db.Pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM steam_profiles WHERE id = $1 AND user_id = $2`, id, userID))
}

// ListForUser returns all profiles for a user, primary first.
func (s *ProfileService) ListForUser(ctx context.Context, userID int64) ([]*models.SteamProfile, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT `+profileColumns+` FROM steam_profiles WHERE user_id = $1 ORDER BY is_primary DESC, created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.SteamProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// Delete unlinks a profile and drops its inventory snapshot (cascade).
func (s *ProfileService) Delete(ctx context.Context, id, userID int64) error {
	tag, err := s.db.Pool.Exec(ctx,
		`DELETE FROM steam_profiles WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetPrimary makes one profile the primary and demotes the others.
func (s *ProfileService) SetPrimary(ctx context.Context, id, userID int64) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE steam_profiles SET is_primary = false WHERE user_id = $1`, userID); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx,
		`UPDATE steam_profiles SET is_primary = true WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return tx.Commit(ctx)
}

// StaleProfiles returns active profiles whose inventory snapshot is older
// than maxAge (or missing), for the sync worker.
func (s *ProfileService) StaleProfiles(ctx context.Context, maxAge time.Duration, now time.Time) ([]*models.SteamProfile, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT `+profileColumns+` FROM steam_profiles
		WHERE is_active = true
		  AND (last_inventory_update IS NULL OR last_inventory_update < $1)
	`, now.Add(-maxAge))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.SteamProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// Items returns the inventory snapshot for a profile.
func (s *ProfileService) Items(ctx context.Context, profileID int64) ([]*models.InventoryItem, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, steam_profile_id, asset_id, class_id, instance_id, name, market_name, type_name,
			weapon_type, skin_name, wear_name, wear_value, rarity, quality, current_price,
			purchase_price, last_price_update, icon_url, inspect_url, is_tradeable, is_marketable,
			quantity, created_at
		FROM inventory_items WHERE steam_profile_id = $1
		ORDER BY current_price DESC
	`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.InventoryItem
	for rows.Next() {
		var i models.InventoryItem
		if err := rows.Scan(&i.ID, &i.SteamProfileID, &i.AssetID, &i.ClassID, &i.InstanceID,
			&i.Name, &i.MarketName, &i.TypeName, &i.WeaponType, &i.SkinName, &i.WearName,
			&i.WearValue, &i.Rarity, &i.Quality, &i.CurrentPrice, &i.PurchasePrice,
			&i.LastPriceUpdate, &i.IconURL, &i.InspectURL, &i.IsTradeable, &i.IsMarketable,
			&i.Quantity, &i.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &i)
	}
	return result, rows.Err()
}

// SetPurchasePrice records what the user paid for an item, for P/L display.
func (s *ProfileService) SetPurchasePrice(ctx context.Context, itemID, userID int64, price float64) error {
	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE inventory_items i
		SET purchase_price = $1
		FROM steam_profiles p
		WHERE i.id = $2 AND i.steam_profile_id = p.id AND p.user_id = $3
	`, price, itemID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SyncInventory fetches the live inventory and reconciles the stored
// snapshot: upserts current assets, removes ones no longer owned, and
// refreshes the profile aggregates.
func (s *ProfileService) SyncInventory(ctx context.Context, p *models.SteamProfile) error {
	entries, err := s.steam.FetchInventory(ctx, p.SteamID64)
	if err != nil {
		return err
	}

	now := time.Now()
	seen := make([]string, 0, len(entries))

	for _, e := range entries {
		if e.Description == nil {
			continue
		}
		item := itemFromEntry(p.ID, e)
		seen = append(seen, item.AssetID)

		_, err := s.db.Pool.Exec(ctx, `
			INSERT INTO inventory_items (steam_profile_id, asset_id, class_id, instance_id, name,
				market_name, type_name, weapon_type, skin_name, wear_name, rarity, quality,
				icon_url, inspect_url, is_tradeable, is_marketable, quantity)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			ON CONFLICT (steam_profile_id, asset_id) DO UPDATE
			SET name = EXCLUDED.name,
				market_name = EXCLUDED.market_name,
				is_tradeable = EXCLUDED.is_tradeable,
				is_marketable = EXCLUDED.is_marketable
		`, item.SteamProfileID, item.AssetID, item.ClassID, item.InstanceID, item.Name,
			item.MarketName, item.TypeName, item.WeaponType, item.SkinName, item.WearName,
			item.Rarity, item.Quality, item.IconURL, item.InspectURL,
			item.IsTradeable, item.IsMarketable, item.Quantity)
		if err != nil {
			return err
		}
	}

	// Drop assets that left the inventory (traded or sold).
	if _, err := s.db.Pool.Exec(ctx, `
		DELETE FROM inventory_items
		WHERE steam_profile_id = $1 AND NOT (asset_id = ANY($2))
	`, p.ID, seen); err != nil {
		return err
	}

	if _, err := s.db.Pool.Exec(ctx, `
		UPDATE steam_profiles
		SET items_count = (SELECT count(*) FROM inventory_items WHERE steam_profile_id = $1),
			inventory_value = (SELECT COALESCE(sum(current_price * quantity), 0)
				FROM inventory_items WHERE steam_profile_id = $1),
			last_inventory_update = $2
		WHERE id = $1
	`, p.ID, now); err != nil {
		return err
	}

	log.Info().
		Int64("profile_id", p.ID).
		Str("steam_id", p.SteamID64).
		Int("items", len(seen)).
		Msg("Inventory synced")
	return nil
}

// itemFromEntry maps a raw Steam asset onto our inventory row.
func itemFromEntry(profileID int64, e steamapi.InventoryEntry) *models.InventoryItem {
	d := e.Description
	weapon, skin := splitMarketName(d.MarketName)

	quantity := 1
	if e.Asset.Amount != "" && e.Asset.Amount != "1" {
		// Stackable items (stickers, cases) report an amount.
		if q, ok := parsePositiveInt(e.Asset.Amount); ok {
			quantity = q
		}
	}

	iconURL := ""
	if d.IconURL != "" {
		iconURL = "https://community.fastly.steamstatic.com/economy/image/" + d.IconURL
	}

	return &models.InventoryItem{
		SteamProfileID: profileID,
		AssetID:        e.Asset.AssetID,
		ClassID:        e.Asset.ClassID,
		InstanceID:     e.Asset.InstanceID,
		Name:           d.Name,
		MarketName:     d.MarketName,
		TypeName:       d.Type,
		WeaponType:     weapon,
		SkinName:       skin,
		WearName:       d.Tag("Exterior"),
		Rarity:         d.Tag("Rarity"),
		Quality:        qualityFromName(d.MarketName),
		IconURL:        iconURL,
		InspectURL:     d.InspectLink(),
		IsTradeable:    d.Tradable == 1,
		IsMarketable:   d.Marketable == 1,
		Quantity:       quantity,
	}
}

// splitMarketName breaks "StatTrak™ AK-47 | Redline (Field-Tested)" into
// weapon and skin parts. Items without a pipe (cases, stickers) return "".
func splitMarketName(marketName string) (weapon, skin string) {
	name := marketName
	for _, prefix := range []string{"StatTrak™ ", "Souvenir ", "★ "} {
		name = strings.TrimPrefix(name, prefix)
	}

	parts := strings.SplitN(name, " | ", 2)
	if len(parts) != 2 {
		return "", ""
	}
	weapon = parts[0]
	skin = parts[1]
	if idx := strings.LastIndex(skin, " ("); idx > 0 && strings.HasSuffix(skin, ")") {
		skin = skin[:idx]
	}
	return weapon, skin
}

func qualityFromName(marketName string) string {
	switch {
	case strings.Contains(marketName, "StatTrak™"):
		return "StatTrak"
	case strings.HasPrefix(marketName, "Souvenir "):
		return "Souvenir"
	case strings.HasPrefix(marketName, "★"):
		return "Knife"
	}
	return "Normal"
}

func parsePositiveInt(s string) (int, bool) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, n > 0
}
