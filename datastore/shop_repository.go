package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/is-project-4th-year/CodeMaster-sub000/models"
)

// ShopRepository covers the boost shop: the catalogue, user inventories
// and the coin-spending transactions.
type ShopRepository interface {
	// Shop Items
	CreateItem(ctx context.Context, item models.ShopItem) (models.ShopItem, error)
	GetItem(ctx context.Context, itemID string) (models.ShopItem, error)
	GetActiveItems(ctx context.Context, itemType string) ([]models.ShopItem, error)
	DeactivateItem(ctx context.Context, itemID string) error

	// User Inventory
	GetUserInventory(ctx context.Context, userID string) ([]models.UserInventoryWithItem, error)

	// Purchase debits coins, adds to inventory, decrements stock and records
	// the purchase atomically.
	Purchase(ctx context.Context, userID, itemID string, quantity int) (models.PurchaseRecord, models.User, models.ShopItem, error)
	// UseItem consumes one unit and applies the item's effect. For
	// xp_multiplier items the created multiplier is returned.
	UseItem(ctx context.Context, userID string, inventoryID int, now time.Time) (models.UserInventoryItem, *models.ActiveMultiplier, error)
	GetUserPurchaseHistory(ctx context.Context, userID string) ([]models.PurchaseRecord, error)
}

// ShopDatabase implements ShopRepository
type ShopDatabase struct {
	database *sql.DB
}

// NewShopDatabase creates a new shop database instance
func NewShopDatabase(db *sql.DB) (ShopDatabase, error) {
	return ShopDatabase{database: db}, nil
}

const shopItemColumns = `
		item_id, item_type, name, description, coin_cost, rarity,
		metadata, is_active, stock_quantity, created_at, updated_at`

func scanShopItem(row rowScanner) (models.ShopItem, error) {
	var item models.ShopItem
	var metadataBytes []byte
	err := row.Scan(
		&item.ItemID,
		&item.ItemType,
		&item.Name,
		&item.Description,
		&item.CoinCost,
		&item.Rarity,
		&metadataBytes,
		&item.IsActive,
		&item.StockQuantity,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return models.ShopItem{}, NoRowsError{true, err}
	}
	if err != nil {
		return models.ShopItem{}, err
	}
	if len(metadataBytes) > 0 {
		item.Metadata = json.RawMessage(metadataBytes)
	}
	return item, nil
}

// ============= SHOP ITEMS =============

func (sd ShopDatabase) CreateItem(ctx context.Context, item models.ShopItem) (models.ShopItem, error) {
	metadata := item.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}
	row := sd.database.QueryRowContext(ctx, `
		INSERT INTO shop_items (
			item_id, item_type, name, description, coin_cost, rarity,
			metadata, is_active, stock_quantity, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+shopItemColumns,
		item.ItemID,
		item.ItemType,
		item.Name,
		item.Description,
		item.CoinCost,
		item.Rarity,
		[]byte(metadata),
		item.IsActive,
		item.StockQuantity,
		item.CreatedAt,
		item.UpdatedAt,
	)
	created, err := scanShopItem(row)
	if err != nil {
		return models.ShopItem{}, fmt.Errorf("failed to create item: %w", translate(err))
	}
	return created, nil
}

func (sd ShopDatabase) GetItem(ctx context.Context, itemID string) (models.ShopItem, error) {
	item, err := scanShopItem(sd.database.QueryRowContext(ctx,
		`SELECT `+shopItemColumns+` FROM shop_items WHERE item_id = $1`, itemID))
	if err != nil {
		return models.ShopItem{}, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// GetActiveItems lists purchasable items, optionally filtered by type.
func (sd ShopDatabase) GetActiveItems(ctx context.Context, itemType string) ([]models.ShopItem, error) {
	rows, err := sd.database.QueryContext(ctx, `
		SELECT `+shopItemColumns+`
		FROM shop_items
		WHERE is_active = true AND ($1 = '' OR item_type = $1)
		ORDER BY coin_cost, created_at DESC`, itemType)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := []models.ShopItem{}
	for rows.Next() {
		item, err := scanShopItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// DeactivateItem soft deletes a shop item by setting is_active to false
func (sd ShopDatabase) DeactivateItem(ctx context.Context, itemID string) error {
	res, err := sd.database.ExecContext(ctx,
		`UPDATE shop_items SET is_active = false, updated_at = $1 WHERE item_id = $2`, time.Now(), itemID)
	if err != nil {
		return fmt.Errorf("failed to deactivate item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NoRowsError{true, sql.ErrNoRows}
	}
	return nil
}

// ============= USER INVENTORY =============

func (sd ShopDatabase) GetUserInventory(ctx context.Context, userID string) ([]models.UserInventoryWithItem, error) {
	rows, err := sd.database.QueryContext(ctx, `
		SELECT
			ui.inventory_id, ui.user_id, ui.item_id, ui.quantity,
			ui.acquired_at, ui.used_count,
			si.item_id, si.item_type, si.name, si.description, si.coin_cost,
			si.rarity, si.metadata, si.is_active, si.stock_quantity,
			si.created_at, si.updated_at
		FROM user_inventory ui
		JOIN shop_items si ON ui.item_id = si.item_id
		WHERE ui.user_id = $1
		ORDER BY ui.acquired_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user inventory: %w", err)
	}
	defer rows.Close()

	inventory := []models.UserInventoryWithItem{}
	for rows.Next() {
		var item models.UserInventoryWithItem
		var metadataBytes []byte
		err := rows.Scan(
			&item.InventoryID,
			&item.UserID,
			&item.ItemID,
			&item.Quantity,
			&item.AcquiredAt,
			&item.UsedCount,
			&item.ShopItem.ItemID,
			&item.ShopItem.ItemType,
			&item.ShopItem.Name,
			&item.ShopItem.Description,
			&item.ShopItem.CoinCost,
			&item.ShopItem.Rarity,
			&metadataBytes,
			&item.ShopItem.IsActive,
			&item.ShopItem.StockQuantity,
			&item.ShopItem.CreatedAt,
			&item.ShopItem.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inventory item: %w", err)
		}
		item.ShopItem.Metadata = json.RawMessage(metadataBytes)
		inventory = append(inventory, item)
	}
	return inventory, rows.Err()
}

func scanInventoryItem(row rowScanner) (models.UserInventoryItem, error) {
	var item models.UserInventoryItem
	err := row.Scan(
		&item.InventoryID,
		&item.UserID,
		&item.ItemID,
		&item.Quantity,
		&item.AcquiredAt,
		&item.UsedCount,
	)
	if err == sql.ErrNoRows {
		return models.UserInventoryItem{}, NoRowsError{true, err}
	}
	return item, err
}

// ============= TRANSACTIONS =============

func (sd ShopDatabase) Purchase(ctx context.Context, userID, itemID string, quantity int) (models.PurchaseRecord, models.User, models.ShopItem, error) {
	var (
		record models.PurchaseRecord
		user   models.User
		item   models.ShopItem
	)
	err := withTx(ctx, sd.database, func(tx *sql.Tx) error {
		var err error
		item, err = scanShopItem(tx.QueryRowContext(ctx,
			`SELECT `+shopItemColumns+` FROM shop_items WHERE item_id = $1 FOR UPDATE`, itemID))
		if err != nil {
			return err
		}
		if !item.IsActive {
			return ErrItemUnavailable
		}
		if item.StockQuantity != nil && *item.StockQuantity < quantity {
			return ErrOutOfStock
		}

		totalCost := item.CoinCost * quantity
		user, err = scanUser(tx.QueryRowContext(ctx, `
			UPDATE users SET coins = coins - $2, updated_at = NOW()
			WHERE user_id = $1 AND coins >= $2
			RETURNING `+userColumns, userID, totalCost))
		if IsNoRows(err) {
			return ErrInsufficientCoins
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_inventory (user_id, item_id, quantity, acquired_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (user_id, item_id)
			DO UPDATE SET quantity = user_inventory.quantity + EXCLUDED.quantity`,
			userID, itemID, quantity); err != nil {
			return fmt.Errorf("failed to add item to inventory: %w", err)
		}

		if item.StockQuantity != nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE shop_items SET stock_quantity = stock_quantity - $2, updated_at = NOW() WHERE item_id = $1`,
				itemID, quantity); err != nil {
				return fmt.Errorf("failed to update stock: %w", err)
			}
			left := *item.StockQuantity - quantity
			item.StockQuantity = &left
		}

		record = models.PurchaseRecord{
			PurchaseID:  models.GeneratePurchaseID(),
			UserID:      userID,
			ItemID:      itemID,
			Quantity:    quantity,
			CoinsSpent:  totalCost,
			PurchasedAt: time.Now(),
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO purchase_history (purchase_id, user_id, item_id, quantity, coins_spent, purchased_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			record.PurchaseID, record.UserID, record.ItemID, record.Quantity, record.CoinsSpent, record.PurchasedAt); err != nil {
			return fmt.Errorf("failed to create purchase record: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.PurchaseRecord{}, models.User{}, models.ShopItem{}, err
	}
	return record, user, item, nil
}

func (sd ShopDatabase) UseItem(ctx context.Context, userID string, inventoryID int, now time.Time) (models.UserInventoryItem, *models.ActiveMultiplier, error) {
	var (
		inv     models.UserInventoryItem
		applied *models.ActiveMultiplier
	)
	err := withTx(ctx, sd.database, func(tx *sql.Tx) error {
		var err error
		inv, err = scanInventoryItem(tx.QueryRowContext(ctx, `
			SELECT inventory_id, user_id, item_id, quantity, acquired_at, used_count
			FROM user_inventory
			WHERE inventory_id = $1
			FOR UPDATE`, inventoryID))
		if err != nil {
			return err
		}
		if inv.UserID != userID {
			return ErrNotOwner
		}
		if inv.Quantity <= 0 {
			return ErrOutOfStock
		}

		item, err := scanShopItem(tx.QueryRowContext(ctx,
			`SELECT `+shopItemColumns+` FROM shop_items WHERE item_id = $1`, inv.ItemID))
		if err != nil {
			return fmt.Errorf("failed to load item %s: %w", inv.ItemID, err)
		}
		effect, ok, err := item.Effect()
		if err != nil {
			return err
		}

		inv, err = scanInventoryItem(tx.QueryRowContext(ctx, `
			UPDATE user_inventory
			SET used_count = used_count + 1, quantity = quantity - 1
			WHERE inventory_id = $1
			RETURNING inventory_id, user_id, item_id, quantity, acquired_at, used_count`, inventoryID))
		if err != nil {
			return fmt.Errorf("failed to use item: %w", err)
		}

		meta := map[string]any{"itemId": item.ItemID, "name": item.Name}
		if ok && effect.EffectType == models.EffectXPMultiplier {
			m, err := insertMultiplier(ctx, tx, models.ActiveMultiplier{
				UserID:    userID,
				Type:      models.MultiplierBoost,
				Value:     effect.Value,
				Source:    "item:" + item.ItemID,
				ExpiresAt: now.Add(time.Duration(effect.DurationMinutes) * time.Minute),
			})
			if err != nil {
				return err
			}
			applied = &m
			meta["multiplier"] = m.Value
			meta["expiresAt"] = m.ExpiresAt
		}

		entry, err := models.NewActivity(userID, models.ActivityItemUsed, nil, meta)
		if err != nil {
			return err
		}
		_, err = insertActivity(ctx, tx, entry)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotOwner) || errors.Is(err, ErrOutOfStock) || IsNoRows(err) {
			return models.UserInventoryItem{}, nil, err
		}
		return models.UserInventoryItem{}, nil, fmt.Errorf("using item: %w", err)
	}
	return inv, applied, nil
}

func (sd ShopDatabase) GetUserPurchaseHistory(ctx context.Context, userID string) ([]models.PurchaseRecord, error) {
	rows, err := sd.database.QueryContext(ctx, `
		SELECT purchase_id, user_id, item_id, quantity, coins_spent, purchased_at
		FROM purchase_history
		WHERE user_id = $1
		ORDER BY purchased_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase history: %w", err)
	}
	defer rows.Close()

	purchases := []models.PurchaseRecord{}
	for rows.Next() {
		var p models.PurchaseRecord
		if err := rows.Scan(&p.PurchaseID, &p.UserID, &p.ItemID, &p.Quantity, &p.CoinsSpent, &p.PurchasedAt); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}
