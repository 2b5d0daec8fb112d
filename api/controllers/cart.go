package controllers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketplace-checkout/api/responses"
	"github.com/angelmondragon/marketplace-checkout/api/validators"
	"github.com/angelmondragon/marketplace-checkout/internal/cart"
	"github.com/angelmondragon/marketplace-checkout/internal/menu"
	pkgerrors "github.com/angelmondragon/marketplace-checkout/pkg/errors"
	"github.com/angelmondragon/marketplace-checkout/pkg/logger"
)

const maxInstructionsLength = 500

// CartFetch returns the session cart.
func CartFetch(workspaces Workspaces, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := workspaceFor(r, workspaces)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(ws.Cart.Snapshot()))
	}
}

type addCartItemRequest struct {
	RestaurantID        uuid.UUID `json:"restaurant_id" validate:"required"`
	MenuItemID          uuid.UUID `json:"menu_item_id" validate:"required"`
	OptionIDs           []string  `json:"option_ids"`
	Quantity            int       `json:"quantity" validate:"required,min=1,max=99"`
	SpecialInstructions string    `json:"special_instructions" validate:"max=500"`
}

type addCartItemResponse struct {
	Key                string       `json:"key"`
	RestaurantReplaced bool         `json:"restaurant_replaced"`
	Cart               cartResponse `json:"cart"`
}

// CartAddItem resolves the menu item against the marketplace and adds it to the
// session cart. Adding from another restaurant replaces the cart.
func CartAddItem(workspaces Workspaces, catalog Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := workspaceFor(r, workspaces)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		optionIDs, err := validators.ParseUUIDs("option_ids", payload.OptionIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithRestaurantID(ctx, payload.RestaurantID.String())
		}
		restaurant, item, err := lookupMenuItem(ctx, catalog, payload.RestaurantID, payload.MenuItemID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		options, err := menu.ResolveSelection(item, optionIDs)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := ws.Cart.AddItem(ctx, *restaurant, item, options, payload.Quantity)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if notes := validators.SanitizeString(payload.SpecialInstructions, maxInstructionsLength); notes != "" {
			snap, err := ws.Cart.UpdateItemNotes(ctx, result.Key, notes)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			result.Snapshot = snap
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, addCartItemResponse{
			Key:                result.Key,
			RestaurantReplaced: result.RestaurantReplaced,
			Cart:               newCartResponse(result.Snapshot),
		})
	}
}

type updateCartItemRequest struct {
	Quantity            *int      `json:"quantity" validate:"omitempty,min=0,max=99"`
	OptionIDs           *[]string `json:"option_ids"`
	SpecialInstructions *string   `json:"special_instructions" validate:"omitempty,max=500"`
}

type updateCartItemResponse struct {
	Key  string       `json:"key"`
	Cart cartResponse `json:"cart"`
}

// CartUpdateItem changes a line's options, notes or quantity. Options are
// applied first since they can move the line to a new key. A quantity of zero
// removes the line.
func CartUpdateItem(workspaces Workspaces, catalog Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := workspaceFor(r, workspaces)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		key, err := lineKeyParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Quantity == nil && payload.OptionIDs == nil && payload.SpecialInstructions == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update"))
			return
		}

		ctx := r.Context()
		snap := ws.Cart.Snapshot()
		idx := snap.Find(key)
		if idx < 0 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found").WithDetails(map[string]any{"key": key}))
			return
		}

		if payload.OptionIDs != nil {
			optionIDs, err := validators.ParseUUIDs("option_ids", *payload.OptionIDs)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			_, item, err := lookupMenuItem(ctx, catalog, snap.RestaurantID, snap.Items[idx].MenuItemID)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			options, err := menu.ResolveSelection(item, optionIDs)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if key, snap, err = ws.Cart.UpdateItemVariants(ctx, key, options); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		if payload.SpecialInstructions != nil {
			notes := validators.SanitizeString(*payload.SpecialInstructions, maxInstructionsLength)
			if snap, err = ws.Cart.UpdateItemNotes(ctx, key, notes); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		if payload.Quantity != nil {
			if snap, err = ws.Cart.UpdateQuantity(ctx, key, *payload.Quantity); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		if snap.Find(key) < 0 {
			key = ""
		}
		responses.WriteSuccess(w, updateCartItemResponse{Key: key, Cart: newCartResponse(snap)})
	}
}

// CartRemoveItem drops one line from the session cart.
func CartRemoveItem(workspaces Workspaces, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := workspaceFor(r, workspaces)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		key, err := lineKeyParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap, err := ws.Cart.RemoveItem(r.Context(), key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(snap))
	}
}

// CartClear empties the session cart.
func CartClear(workspaces Workspaces, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := workspaceFor(r, workspaces)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap, err := ws.Cart.Clear(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(snap))
	}
}

func lineKeyParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "lineKey")
	key, err := url.PathUnescape(raw)
	if err != nil || key == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid cart line key")
	}
	return key, nil
}

func lookupMenuItem(ctx context.Context, catalog Catalog, restaurantID, menuItemID uuid.UUID) (*menu.Restaurant, menu.Item, error) {
	if catalog == nil {
		return nil, menu.Item{}, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable")
	}
	restaurant, err := catalog.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, menu.Item{}, err
	}
	items, err := catalog.GetMenu(ctx, restaurantID)
	if err != nil {
		return nil, menu.Item{}, err
	}
	item, ok := items.Find(menuItemID)
	if !ok {
		return nil, menu.Item{}, pkgerrors.New(pkgerrors.CodeNotFound, "menu item not found").
			WithDetails(map[string]any{"menu_item_id": menuItemID.String()})
	}
	if !item.IsAvailable {
		return nil, menu.Item{}, pkgerrors.New(pkgerrors.CodeValidation, "menu item is not available").
			WithDetails(map[string]any{"reasons": []string{item.Name + " is not available"}})
	}
	return restaurant, item, nil
}

type cartLineResponse struct {
	cart.Item
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type cartResponse struct {
	RestaurantID    *uuid.UUID         `json:"restaurant_id,omitempty"`
	RestaurantName  string             `json:"restaurant_name,omitempty"`
	Items           []cartLineResponse `json:"items"`
	ItemCount       int                `json:"item_count"`
	Subtotal        decimal.Decimal    `json:"subtotal"`
	DeliveryFee     decimal.Decimal    `json:"delivery_fee"`
	MinimumOrder    decimal.Decimal    `json:"minimum_order"`
	MinimumOrderMet bool               `json:"minimum_order_met"`
	Version         uint64             `json:"version"`
}

func newCartResponse(snap cart.Snapshot) cartResponse {
	resp := cartResponse{
		Items:           make([]cartLineResponse, 0, len(snap.Items)),
		ItemCount:       snap.ItemCount(),
		Subtotal:        snap.Subtotal(),
		DeliveryFee:     snap.DeliveryFee,
		MinimumOrder:    snap.MinimumOrder,
		MinimumOrderMet: snap.IsMinimumOrderMet(),
		Version:         snap.Version,
	}
	if !snap.IsEmpty() {
		id := snap.RestaurantID
		resp.RestaurantID = &id
		resp.RestaurantName = snap.RestaurantName
	}
	for _, item := range snap.Items {
		resp.Items = append(resp.Items, cartLineResponse{
			Item:      item,
			UnitPrice: item.UnitPrice(),
			LineTotal: item.LineTotal(),
		})
	}
	return resp
}
