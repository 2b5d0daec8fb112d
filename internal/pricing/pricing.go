package pricing

import (
	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

var (
	minDiscountPercent = decimal.NewFromInt(1)
	maxDiscountPercent = decimal.NewFromInt(100)
	hundred            = decimal.NewFromInt(100)
)

// Line is the pricing view of a cart line.
type Line struct {
	BasePrice decimal.Decimal
	Modifiers []decimal.Decimal
	Quantity  int
}

// UnitPrice is the base price plus every selected option modifier. Modifiers may be negative.
func UnitPrice(base decimal.Decimal, modifiers []decimal.Decimal) decimal.Decimal {
	return base.Add(decimal.Sum(decimal.Zero, modifiers...))
}

// LineTotal multiplies the unit price by the quantity.
func LineTotal(line Line) decimal.Decimal {
	return UnitPrice(line.BasePrice, line.Modifiers).Mul(decimal.NewFromInt(int64(line.Quantity)))
}

// Subtotal sums every line total.
func Subtotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(LineTotal(line))
	}
	return total
}

// LoyaltyDiscount returns the reward amount for the order. It is zero unless the
// restaurant runs the programme, the customer can redeem and asked to.
func LoyaltyDiscount(subtotal decimal.Decimal, settings *LoyaltySettings, status *LoyaltyStatus, requested bool) decimal.Decimal {
	if !requested || settings == nil || status == nil {
		return decimal.Zero
	}
	if !settings.Enabled || !status.CanRedeem {
		return decimal.Zero
	}
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	percent := ClampPercent(settings.DiscountPercent)
	discount := subtotal.Mul(percent).Div(hundred).Round(moneyPlaces)
	if discount.GreaterThan(subtotal) {
		return subtotal
	}
	return discount
}

// ClampPercent bounds a discount percentage to [1, 100].
func ClampPercent(percent decimal.Decimal) decimal.Decimal {
	if percent.LessThan(minDiscountPercent) {
		return minDiscountPercent
	}
	if percent.GreaterThan(maxDiscountPercent) {
		return maxDiscountPercent
	}
	return percent
}

// GrandTotal is max(0, subtotal - discount) plus the delivery fee, which is never discounted.
func GrandTotal(subtotal, discount, deliveryFee decimal.Decimal) decimal.Decimal {
	net := subtotal.Sub(discount)
	if net.IsNegative() {
		net = decimal.Zero
	}
	return net.Add(deliveryFee)
}

// IsMinimumOrderMet compares the pre-discount subtotal against the restaurant floor.
func IsMinimumOrderMet(subtotal, minimumOrder decimal.Decimal) bool {
	return subtotal.GreaterThanOrEqual(minimumOrder)
}
