package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Item types
const (
	ItemTypeBoost = "boost"
	ItemTypeBadge = "badge"
)

// Item rarities
const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

// EffectXPMultiplier is the only consumable effect the shop knows.
const EffectXPMultiplier = "xp_multiplier"

// ShopItem is something coins can buy. Boost items carry an ItemEffect in
// their metadata.
type ShopItem struct {
	ItemID        string          `json:"itemId" db:"item_id"`
	ItemType      string          `json:"itemType" db:"item_type"`
	Name          string          `json:"name" db:"name"`
	Description   string          `json:"description" db:"description"`
	CoinCost      int             `json:"coinCost" db:"coin_cost"`
	Rarity        string          `json:"rarity" db:"rarity"`
	Metadata      json.RawMessage `json:"metadata" db:"metadata"`
	IsActive      bool            `json:"isActive" db:"is_active"`
	StockQuantity *int            `json:"stockQuantity,omitempty" db:"stock_quantity"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

// ItemEffect is the metadata of a consumable item.
type ItemEffect struct {
	EffectType      string  `json:"effect_type"`
	Value           float64 `json:"value"`
	DurationMinutes int     `json:"duration_minutes"`
}

// Effect decodes the item's metadata. Items without an effect_type return
// ok == false.
func (item ShopItem) Effect() (ItemEffect, bool, error) {
	if len(item.Metadata) == 0 {
		return ItemEffect{}, false, nil
	}
	var effect ItemEffect
	if err := json.Unmarshal(item.Metadata, &effect); err != nil {
		return ItemEffect{}, false, fmt.Errorf("parsing metadata of item %s: %w", item.ItemID, err)
	}
	if effect.EffectType == "" {
		return ItemEffect{}, false, nil
	}
	return effect, true, nil
}

type CreateShopItemRequest struct {
	ItemType      string          `json:"itemType"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	CoinCost      int             `json:"coinCost"`
	Rarity        string          `json:"rarity"`
	Metadata      json.RawMessage `json:"metadata"`
	StockQuantity *int            `json:"stockQuantity,omitempty"`
}

func (req CreateShopItemRequest) Validate() error {
	if req.Name == "" || req.ItemType == "" {
		return fmt.Errorf("name and itemType are required")
	}
	if req.CoinCost < 0 {
		return fmt.Errorf("coinCost must be non-negative")
	}
	if req.StockQuantity != nil && *req.StockQuantity < 0 {
		return fmt.Errorf("stockQuantity must be non-negative")
	}
	effect, ok, err := ShopItem{Metadata: req.Metadata}.Effect()
	if err != nil {
		return fmt.Errorf("metadata must be a JSON object")
	}
	if ok {
		if effect.EffectType != EffectXPMultiplier {
			return fmt.Errorf("unknown effect_type %q", effect.EffectType)
		}
		if effect.Value <= 0 || effect.DurationMinutes <= 0 {
			return fmt.Errorf("xp_multiplier needs a positive value and duration_minutes")
		}
	}
	return nil
}

// UserInventoryItem is a stack of one item owned by a user.
type UserInventoryItem struct {
	InventoryID int       `json:"inventoryId" db:"inventory_id"`
	UserID      string    `json:"userId" db:"user_id"`
	ItemID      string    `json:"itemId" db:"item_id"`
	Quantity    int       `json:"quantity" db:"quantity"`
	AcquiredAt  time.Time `json:"acquiredAt" db:"acquired_at"`
	UsedCount   int       `json:"usedCount" db:"used_count"`
}

type UserInventoryWithItem struct {
	UserInventoryItem
	ShopItem ShopItem `json:"item"`
}

type PurchaseRequest struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

type PurchaseRecord struct {
	PurchaseID  string    `json:"purchaseId" db:"purchase_id"`
	UserID      string    `json:"userId" db:"user_id"`
	ItemID      string    `json:"itemId" db:"item_id"`
	Quantity    int       `json:"quantity" db:"quantity"`
	CoinsSpent  int       `json:"coinsSpent" db:"coins_spent"`
	PurchasedAt time.Time `json:"purchasedAt" db:"purchased_at"`
}

type PurchaseResponse struct {
	Message        string   `json:"message"`
	Item           ShopItem `json:"item"`
	Quantity       int      `json:"quantity"`
	CoinsSpent     int      `json:"coinsSpent"`
	CoinsRemaining int      `json:"coinsRemaining"`
}

type UseItemRequest struct {
	InventoryID int `json:"inventoryId"`
}

type UseItemResponse struct {
	Message      string            `json:"message"`
	InventoryID  int               `json:"inventoryId"`
	QuantityLeft int               `json:"quantityLeft"`
	UsedCount    int               `json:"usedCount"`
	Multiplier   *ActiveMultiplier `json:"multiplier,omitempty"`
}

func GenerateItemID() string {
	return uuid.New().String()
}

func GeneratePurchaseID() string {
	return uuid.New().String()
}

func NewShopItem(req CreateShopItemRequest) ShopItem {
	now := time.Now()
	rarity := req.Rarity
	if rarity == "" {
		rarity = RarityCommon
	}
	return ShopItem{
		ItemID:        GenerateItemID(),
		ItemType:      req.ItemType,
		Name:          req.Name,
		Description:   req.Description,
		CoinCost:      req.CoinCost,
		Rarity:        rarity,
		Metadata:      req.Metadata,
		IsActive:      true,
		StockQuantity: req.StockQuantity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
