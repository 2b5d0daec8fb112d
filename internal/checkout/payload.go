package checkout

import (
	"strings"

	"github.com/angelmondragon/marketplace-checkout/internal/address"
	"github.com/angelmondragon/marketplace-checkout/internal/cart"
	"github.com/angelmondragon/marketplace-checkout/internal/marketplace"
	"github.com/angelmondragon/marketplace-checkout/pkg/enums"
)

// PickupAddress is sent in place of a delivery address for pickup orders.
const PickupAddress = "Pickup"

// FormatAddress renders "Street, PostalCode City" with instructions in parentheses when present.
func FormatAddress(addr address.Address) string {
	addr = addr.Normalize()
	var b strings.Builder
	b.WriteString(addr.Street)
	b.WriteString(", ")
	b.WriteString(addr.PostalCode)
	b.WriteString(" ")
	b.WriteString(addr.City)
	if addr.Instructions != "" {
		b.WriteString(" (")
		b.WriteString(addr.Instructions)
		b.WriteString(")")
	}
	return b.String()
}

// buildOrderRequest assembles the order draft. Guest contact is omitted for
// authenticated customers. redeemLoyalty is the eligibility the quote priced with.
func buildOrderRequest(snap cart.Snapshot, form Form, identity Identity, deliveryAddress string, redeemLoyalty bool) marketplace.OrderRequest {
	items := make([]marketplace.OrderItem, 0, len(snap.Items))
	for _, item := range snap.Items {
		items = append(items, marketplace.OrderItem{
			MenuItemID:               item.MenuItemID,
			Quantity:                 item.Quantity,
			SelectedVariantOptionIDs: item.SelectedVariantOptionIDs,
			SpecialInstructions:      item.SpecialInstructions,
		})
	}

	req := marketplace.OrderRequest{
		RestaurantID:     snap.RestaurantID,
		Items:            items,
		DeliveryAddress:  deliveryAddress,
		OrderType:        form.OrderType(),
		PaymentMethod:    form.PaymentMethod,
		UseLoyaltyReward: redeemLoyalty,
		Notes:            strings.TrimSpace(form.Notes),
		DeliverySlot:     marketplace.SlotDescriptor{Type: enums.DeliverySlotASAP},
	}
	if guest, ok := identity.(Guest); ok {
		info := guest.Normalize()
		req.CustomerInfo = &marketplace.CustomerInfo{Name: info.Name, Email: info.Email, Phone: info.Phone}
	}
	if form.Slot.Type == enums.DeliverySlotScheduled {
		req.DeliverySlot = marketplace.SlotDescriptor{Type: enums.DeliverySlotScheduled, ScheduledTime: form.Slot.Value}
	}
	return req
}
