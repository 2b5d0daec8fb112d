package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoyaltySettings is the per-restaurant stamp programme.
type LoyaltySettings struct {
	Enabled         bool            `json:"enabled"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	StampsRequired  int             `json:"stamps_required"`
}

// LoyaltyStatus is the customer's standing with one restaurant.
type LoyaltyStatus struct {
	RestaurantID   uuid.UUID `json:"restaurant_id"`
	CurrentStamps  int       `json:"current_stamps"`
	StampsRequired int       `json:"stamps_required"`
	CanRedeem      bool      `json:"can_redeem"`
}

// StatusFor picks the entry for restaurantID out of the customer's status list.
func StatusFor(statuses []LoyaltyStatus, restaurantID uuid.UUID) *LoyaltyStatus {
	for i := range statuses {
		if statuses[i].RestaurantID == restaurantID {
			status := statuses[i]
			return &status
		}
	}
	return nil
}
