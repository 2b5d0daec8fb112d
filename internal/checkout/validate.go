package checkout

import (
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/marketplace-checkout/internal/marketplace"
	"github.com/angelmondragon/marketplace-checkout/pkg/enums"
	"go.uber.org/multierr"
)

// Availability is the restaurant data a form is validated against. A nil
// PaymentMethods means none were published and every method is accepted; nil
// Slots means the slot list is unknown.
type Availability struct {
	PaymentMethods *marketplace.PaymentMethods
	Slots          []marketplace.DeliverySlot
	Now            time.Time
}

func (a Availability) methods() marketplace.PaymentMethods {
	if a.PaymentMethods == nil {
		return marketplace.AllPaymentMethods()
	}
	return *a.PaymentMethods
}

// IsFormValid reports whether the form can be submitted by identity.
func IsFormValid(form Form, identity Identity, avail Availability) bool {
	return ValidateForm(form, identity, avail) == nil
}

// ValidateForm returns every reason the form cannot be submitted, combined with multierr.
func ValidateForm(form Form, identity Identity, avail Availability) error {
	var err error

	if !form.OrderType().IsValid() {
		err = multierr.Append(err, errors.New("order type must be delivery or pickup"))
	}

	methods := avail.methods()
	switch {
	case !methods.Any():
		err = multierr.Append(err, errors.New("no payment method is available"))
	case form.PaymentMethod == "":
		err = multierr.Append(err, errors.New("payment method is required"))
	case !form.PaymentMethod.IsValid():
		err = multierr.Append(err, fmt.Errorf("payment method %q is not supported", form.PaymentMethod))
	case !methods.Allows(form.PaymentMethod):
		err = multierr.Append(err, fmt.Errorf("payment method %q is not available for this restaurant", form.PaymentMethod))
	}

	switch id := identity.(type) {
	case Authenticated:
		if !isAuthenticated(id) {
			err = multierr.Append(err, errors.New("authenticated identity has no user"))
		}
	case Guest:
		if !id.IsComplete() {
			err = multierr.Append(err, errors.New("guest name, email and phone are required"))
		}
	default:
		err = multierr.Append(err, errors.New("identity is required"))
	}

	if !form.IsPickup() && !form.usesSavedAddress() && !form.manualAddressComplete() {
		err = multierr.Append(err, errors.New("select a saved address or enter street, city and postal code"))
	}

	if slotErr := validateSlot(form.Slot, avail); slotErr != nil {
		err = multierr.Append(err, slotErr)
	}
	return err
}

// Reasons flattens a ValidateForm error into messages.
func Reasons(err error) []string {
	errs := multierr.Errors(err)
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}

func validateSlot(slot Slot, avail Availability) error {
	switch slot.Type {
	case "", enums.DeliverySlotASAP:
		for _, offered := range avail.Slots {
			if offered.Type == enums.DeliverySlotASAP && !offered.Available {
				return errors.New("immediate delivery is not available")
			}
		}
		return nil
	case enums.DeliverySlotScheduled:
		at, err := time.Parse(time.RFC3339, slot.Value)
		if err != nil {
			return fmt.Errorf("scheduled slot %q is not an RFC 3339 timestamp", slot.Value)
		}
		if !avail.Now.IsZero() && !at.After(avail.Now) {
			return errors.New("scheduled slot is in the past")
		}
		if avail.Slots == nil {
			return nil
		}
		for _, offered := range avail.Slots {
			if offered.Type != enums.DeliverySlotScheduled || !offered.Available {
				continue
			}
			if offeredAt, err := time.Parse(time.RFC3339, offered.Value); err == nil && offeredAt.Equal(at) {
				return nil
			}
		}
		return errors.New("scheduled slot is not available")
	}
	return fmt.Errorf("delivery slot type %q is not supported", slot.Type)
}
