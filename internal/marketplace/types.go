package marketplace

import (
	"github.com/angelmondragon/marketplace-checkout/pkg/enums"
	"github.com/google/uuid"
)

// PaymentMethods is the per-restaurant availability of each payment method.
type PaymentMethods struct {
	Cash   bool `json:"cash"`
	Card   bool `json:"card"`
	PayPal bool `json:"paypal"`
}

// AllPaymentMethods is used when the restaurant does not publish availability.
func AllPaymentMethods() PaymentMethods {
	return PaymentMethods{Cash: true, Card: true, PayPal: true}
}

// Allows reports whether method is accepted.
func (p PaymentMethods) Allows(method enums.PaymentMethod) bool {
	switch method {
	case enums.PaymentMethodCash:
		return p.Cash
	case enums.PaymentMethodCard:
		return p.Card
	case enums.PaymentMethodPayPal:
		return p.PayPal
	}
	return false
}

// Any reports whether at least one method is accepted.
func (p PaymentMethods) Any() bool {
	return p.Cash || p.Card || p.PayPal
}

// DeliverySlot is one fulfilment window offered by the restaurant.
type DeliverySlot struct {
	Type          enums.DeliverySlotType `json:"type"`
	Label         string                 `json:"label"`
	Value         string                 `json:"value"`
	Available     bool                   `json:"available"`
	EstimatedTime *string                `json:"estimated_time,omitempty"`
}

// OrderItem is a cart line as the orders API expects it.
type OrderItem struct {
	MenuItemID               uuid.UUID   `json:"menu_item_id"`
	Quantity                 int         `json:"quantity"`
	SelectedVariantOptionIDs []uuid.UUID `json:"selected_variant_option_ids,omitempty"`
	SpecialInstructions      string      `json:"special_instructions,omitempty"`
}

// CustomerInfo carries guest contact details. Authenticated orders omit it.
type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// SlotDescriptor is the delivery timing sent with an order.
type SlotDescriptor struct {
	Type          enums.DeliverySlotType `json:"type"`
	ScheduledTime string                 `json:"scheduled_time,omitempty"`
}

// OrderRequest is the order-creation payload.
type OrderRequest struct {
	RestaurantID     uuid.UUID           `json:"restaurant_id"`
	Items            []OrderItem         `json:"items"`
	DeliveryAddress  string              `json:"delivery_address"`
	OrderType        enums.OrderType     `json:"order_type"`
	PaymentMethod    enums.PaymentMethod `json:"payment_method"`
	CustomerInfo     *CustomerInfo       `json:"customer_info,omitempty"`
	UseLoyaltyReward bool                `json:"use_loyalty_reward"`
	Notes            string              `json:"notes,omitempty"`
	DeliverySlot     SlotDescriptor      `json:"delivery_slot"`
}

// OrderConfirmation is the orders API answer.
type OrderConfirmation struct {
	ID string `json:"id"`
}

// PaymentSessionRequest asks the payment API for a hosted checkout.
type PaymentSessionRequest struct {
	OrderID       string `json:"order_id"`
	SuccessURL    string `json:"success_url"`
	CancelURL     string `json:"cancel_url"`
	CustomerEmail string `json:"customer_email,omitempty"`
}

// PaymentSession carries either a redirect URL or only the session id.
type PaymentSession struct {
	ID  string `json:"id,omitempty"`
	URL string `json:"url,omitempty"`
}
