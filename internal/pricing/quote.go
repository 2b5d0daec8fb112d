package pricing

import "github.com/shopspring/decimal"

// QuoteInput gathers what a quote is derived from.
type QuoteInput struct {
	Lines               []Line
	DeliveryFee         decimal.Decimal
	MinimumOrder        decimal.Decimal
	Settings            *LoyaltySettings
	Status              *LoyaltyStatus
	RedemptionRequested bool
}

// Quote is the derived totals of a cart at a point in time.
type Quote struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	DeliveryFee     decimal.Decimal `json:"delivery_fee"`
	GrandTotal      decimal.Decimal `json:"grand_total"`
	MinimumOrder    decimal.Decimal `json:"minimum_order"`
	MinimumOrderMet bool            `json:"minimum_order_met"`
	LoyaltyApplied  bool            `json:"loyalty_applied"`
}

// Calculate derives all totals in one pass.
func Calculate(in QuoteInput) Quote {
	subtotal := Subtotal(in.Lines)
	discount := LoyaltyDiscount(subtotal, in.Settings, in.Status, in.RedemptionRequested)
	return Quote{
		Subtotal:        subtotal,
		Discount:        discount,
		DeliveryFee:     in.DeliveryFee,
		GrandTotal:      GrandTotal(subtotal, discount, in.DeliveryFee),
		MinimumOrder:    in.MinimumOrder,
		MinimumOrderMet: IsMinimumOrderMet(subtotal, in.MinimumOrder),
		LoyaltyApplied:  discount.IsPositive(),
	}
}
