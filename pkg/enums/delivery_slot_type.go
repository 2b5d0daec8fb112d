package enums

import (
	"fmt"
	"strings"
)

// DeliverySlotType distinguishes immediate fulfillment from a scheduled time.
type DeliverySlotType string

const (
	DeliverySlotASAP      DeliverySlotType = "asap"
	DeliverySlotScheduled DeliverySlotType = "scheduled"
)

var validDeliverySlotTypes = []DeliverySlotType{
	DeliverySlotASAP,
	DeliverySlotScheduled,
}

// String implements fmt.Stringer.
func (d DeliverySlotType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliverySlotType.
func (d DeliverySlotType) IsValid() bool {
	for _, candidate := range validDeliverySlotTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDeliverySlotType converts raw input into a DeliverySlotType.
func ParseDeliverySlotType(value string) (DeliverySlotType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validDeliverySlotTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery slot type %q", value)
}
