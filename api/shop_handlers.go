package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/is-project-4th-year/CodeMaster-sub000/datastore"
	"github.com/is-project-4th-year/CodeMaster-sub000/logger"
	"github.com/is-project-4th-year/CodeMaster-sub000/models"
)

// ============= SHOP ITEMS =============

// GET /v1/shop/items?type=
func (app *Application) getShopItems(w http.ResponseWriter, r *http.Request) {
	items, err := app.ShopRepo.GetActiveItems(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// GET /v1/shop/items/{itemID}
func (app *Application) getShopItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	item, err := app.ShopRepo.GetItem(r.Context(), itemID)
	if datastore.IsNoRows(err) || (err == nil && !item.IsActive) {
		app.notFound(w, r, fmt.Errorf("item %s not found", itemID))
		return
	}
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// POST /v1/shop/purchase
func (app *Application) purchaseItem(w http.ResponseWriter, r *http.Request) {
	var purchaseReq models.PurchaseRequest
	if err := decodeJSON(r, &purchaseReq); err != nil {
		app.badJSONRequest(w, r, err)
		return
	}
	if purchaseReq.ItemID == "" {
		app.badRequest(w, r, errors.New("itemId is required"))
		return
	}
	if purchaseReq.Quantity <= 0 {
		app.badRequest(w, r, errors.New("quantity must be greater than 0"))
		return
	}

	userID := mustCaller(r).UserID
	record, user, item, err := app.ShopRepo.Purchase(r.Context(), userID, purchaseReq.ItemID, purchaseReq.Quantity)
	switch {
	case datastore.IsNoRows(err):
		app.notFound(w, r, fmt.Errorf("item %s not found", purchaseReq.ItemID))
		return
	case errors.Is(err, datastore.ErrItemUnavailable),
		errors.Is(err, datastore.ErrInsufficientCoins):
		app.badRequest(w, r, err)
		return
	case errors.Is(err, datastore.ErrOutOfStock):
		app.conflict(w, r, err)
		return
	case err != nil:
		app.internalServerError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info().
		Str("item_id", item.ItemID).
		Int("quantity", record.Quantity).
		Int("coins_spent", record.CoinsSpent).
		Msg("Item purchased")

	writeJSON(w, http.StatusOK, models.PurchaseResponse{
		Message:        "Purchase successful",
		Item:           item,
		Quantity:       record.Quantity,
		CoinsSpent:     record.CoinsSpent,
		CoinsRemaining: user.Coins,
	})
}

// GET /v1/shop/purchases
func (app *Application) getPurchaseHistory(w http.ResponseWriter, r *http.Request) {
	purchases, err := app.ShopRepo.GetUserPurchaseHistory(r.Context(), mustCaller(r).UserID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, purchases)
}

// ============= USER INVENTORY =============

// GET /v1/inventory
func (app *Application) getUserInventory(w http.ResponseWriter, r *http.Request) {
	inventory, err := app.ShopRepo.GetUserInventory(r.Context(), mustCaller(r).UserID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inventory)
}

// POST /v1/inventory/use
func (app *Application) useItem(w http.ResponseWriter, r *http.Request) {
	var useReq models.UseItemRequest
	if err := decodeJSON(r, &useReq); err != nil {
		app.badJSONRequest(w, r, err)
		return
	}
	if useReq.InventoryID <= 0 {
		app.badRequest(w, r, errors.New("inventoryId is required"))
		return
	}

	inv, applied, err := app.ShopRepo.UseItem(r.Context(), mustCaller(r).UserID, useReq.InventoryID, app.clock())
	switch {
	case datastore.IsNoRows(err):
		app.notFound(w, r, fmt.Errorf("inventory item %d not found", useReq.InventoryID))
		return
	case errors.Is(err, datastore.ErrNotOwner):
		app.forbidden(w, r, err)
		return
	case errors.Is(err, datastore.ErrOutOfStock):
		app.badRequest(w, r, errors.New("no items remaining"))
		return
	case err != nil:
		app.internalServerError(w, r, err)
		return
	}

	ev := logger.FromContext(r.Context()).Info().Int("inventory_id", inv.InventoryID).Str("item_id", inv.ItemID)
	if applied != nil {
		ev = ev.Float64("multiplier", applied.Value).Time("expires_at", applied.ExpiresAt)
	}
	ev.Msg("Item used")

	writeJSON(w, http.StatusOK, models.UseItemResponse{
		Message:      "Item used successfully",
		InventoryID:  inv.InventoryID,
		QuantityLeft: inv.Quantity,
		UsedCount:    inv.UsedCount,
		Multiplier:   applied,
	})
}

// ============= ADMIN =============

// POST /v1/admin/shop/items
func (app *Application) createShopItem(w http.ResponseWriter, r *http.Request) {
	var req models.CreateShopItemRequest
	if err := decodeJSON(r, &req); err != nil {
		app.badJSONRequest(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		app.badRequest(w, r, err)
		return
	}

	created, err := app.ShopRepo.CreateItem(r.Context(), models.NewShopItem(req))
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// DELETE /v1/admin/shop/items/{itemID}
func (app *Application) deactivateShopItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	err := app.ShopRepo.DeactivateItem(r.Context(), itemID)
	if datastore.IsNoRows(err) {
		app.notFound(w, r, fmt.Errorf("item %s not found", itemID))
		return
	}
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
