package enums

import (
	"fmt"
	"strings"
)

// OrderType tells whether the order is brought to the customer or collected.
type OrderType string

const (
	OrderTypeDelivery OrderType = "delivery"
	OrderTypePickup   OrderType = "pickup"
)

var validOrderTypes = []OrderType{
	OrderTypeDelivery,
	OrderTypePickup,
}

// String implements fmt.Stringer.
func (o OrderType) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderType.
func (o OrderType) IsValid() bool {
	for _, candidate := range validOrderTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderType converts raw input into an OrderType.
func ParseOrderType(value string) (OrderType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validOrderTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order type %q", value)
}
