package cart

import (
	"sort"
	"strings"

	"github.com/angelmondragon/marketplace-checkout/internal/menu"
	"github.com/angelmondragon/marketplace-checkout/internal/pricing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SelectedOption is the priced variant option stored on a line.
type SelectedOption struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	PriceModifier decimal.Decimal `json:"price_modifier"`
}

// Item is one cart line. Lines are unique by menu item and option set; Key encodes both.
type Item struct {
	Key                      string           `json:"key"`
	MenuItemID               uuid.UUID        `json:"menu_item_id"`
	Name                     string           `json:"name"`
	BasePrice                decimal.Decimal  `json:"base_price"`
	Quantity                 int              `json:"quantity"`
	SelectedVariantOptionIDs []uuid.UUID      `json:"selected_variant_option_ids"`
	SelectedVariantOptions   []SelectedOption `json:"selected_variant_options"`
	SpecialInstructions      string           `json:"special_instructions,omitempty"`
}

// UnitPrice is the base price plus the selected option modifiers.
func (i Item) UnitPrice() decimal.Decimal {
	return pricing.UnitPrice(i.BasePrice, i.modifiers())
}

// LineTotal is the unit price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return pricing.LineTotal(i.pricingLine())
}

func (i Item) modifiers() []decimal.Decimal {
	mods := make([]decimal.Decimal, 0, len(i.SelectedVariantOptions))
	for _, opt := range i.SelectedVariantOptions {
		mods = append(mods, opt.PriceModifier)
	}
	return mods
}

func (i Item) pricingLine() pricing.Line {
	return pricing.Line{BasePrice: i.BasePrice, Modifiers: i.modifiers(), Quantity: i.Quantity}
}

func (i Item) clone() Item {
	i.SelectedVariantOptionIDs = append([]uuid.UUID(nil), i.SelectedVariantOptionIDs...)
	i.SelectedVariantOptions = append([]SelectedOption(nil), i.SelectedVariantOptions...)
	return i
}

// Cart is a single-restaurant collection of lines.
type Cart struct {
	RestaurantID   uuid.UUID       `json:"restaurant_id"`
	RestaurantName string          `json:"restaurant_name"`
	Items          []Item          `json:"items"`
	DeliveryFee    decimal.Decimal `json:"delivery_fee"`
	MinimumOrder   decimal.Decimal `json:"minimum_order"`
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ItemCount sums line quantities.
func (c Cart) ItemCount() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// Lines returns the pricing view of every line.
func (c Cart) Lines() []pricing.Line {
	lines := make([]pricing.Line, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, item.pricingLine())
	}
	return lines
}

// Subtotal sums every line total.
func (c Cart) Subtotal() decimal.Decimal {
	return pricing.Subtotal(c.Lines())
}

// IsMinimumOrderMet compares the subtotal with the restaurant minimum.
func (c Cart) IsMinimumOrderMet() bool {
	return pricing.IsMinimumOrderMet(c.Subtotal(), c.MinimumOrder)
}

// Find returns the index of the line with the given key, or -1.
func (c Cart) Find(key string) int {
	for i := range c.Items {
		if c.Items[i].Key == key {
			return i
		}
	}
	return -1
}

func (c Cart) clone() Cart {
	out := c
	out.Items = make([]Item, 0, len(c.Items))
	for _, item := range c.Items {
		out.Items = append(out.Items, item.clone())
	}
	return out
}

// Snapshot is a versioned, detached copy of the cart.
type Snapshot struct {
	Cart
	Version uint64 `json:"version"`
}

// LineKey identifies a line by menu item and its option set, independent of selection order.
func LineKey(menuItemID uuid.UUID, optionIDs []uuid.UUID) string {
	if len(optionIDs) == 0 {
		return menuItemID.String()
	}
	ids := make([]string, 0, len(optionIDs))
	for _, id := range optionIDs {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)
	return menuItemID.String() + ":" + strings.Join(ids, ",")
}

func toSelected(options []menu.Option) ([]uuid.UUID, []SelectedOption) {
	ids := make([]uuid.UUID, 0, len(options))
	selected := make([]SelectedOption, 0, len(options))
	for _, opt := range options {
		ids = append(ids, opt.ID)
		selected = append(selected, SelectedOption{ID: opt.ID, Name: opt.Name, PriceModifier: opt.PriceModifier})
	}
	return ids, selected
}
