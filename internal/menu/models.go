package menu

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Option is one selectable value of a variant group.
type Option struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	PriceModifier decimal.Decimal `json:"price_modifier"`
	IsAvailable   bool            `json:"is_available"`
}

// VariantGroup is a named choice attached to a menu item (size, extras).
// MaxSelections of zero means the group is unbounded.
type VariantGroup struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	IsRequired    bool      `json:"is_required"`
	MinSelections int       `json:"min_selections"`
	MaxSelections int       `json:"max_selections"`
	Options       []Option  `json:"options"`
}

// Item is a menu entry as served by the restaurant API.
type Item struct {
	ID           uuid.UUID       `json:"id"`
	RestaurantID uuid.UUID       `json:"restaurant_id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	IsAvailable  bool            `json:"is_available"`
	Variants     []VariantGroup  `json:"variants,omitempty"`
}

// Restaurant carries the cart-level context of a restaurant.
type Restaurant struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	DeliveryFee  decimal.Decimal `json:"delivery_fee"`
	MinimumOrder decimal.Decimal `json:"minimum_order"`
}

// Menu is the list of items for one restaurant.
type Menu struct {
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Items        []Item    `json:"items"`
}

// Find returns the item with the given id.
func (m Menu) Find(id uuid.UUID) (Item, bool) {
	for _, item := range m.Items {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}
