package checkout

import (
	"github.com/angelmondragon/marketplace-checkout/internal/address"
	"github.com/angelmondragon/marketplace-checkout/pkg/enums"
	"github.com/google/uuid"
)

// AddressSource tracks where the delivery address comes from.
type AddressSource string

const (
	AddressSourceNone   AddressSource = "none"
	AddressSourceManual AddressSource = "manual"
	AddressSourceSaved  AddressSource = "saved"
)

// ManualAddress is a delivery address typed in during checkout.
type ManualAddress struct {
	Street       string `json:"street"`
	City         string `json:"city"`
	PostalCode   string `json:"postal_code"`
	Instructions string `json:"instructions,omitempty"`
}

func (m ManualAddress) toAddress() address.Address {
	return address.Address{
		Street:       m.Street,
		City:         m.City,
		PostalCode:   m.PostalCode,
		Instructions: m.Instructions,
	}.Normalize()
}

// Slot is the requested fulfilment timing. Value holds an RFC 3339 timestamp for scheduled slots.
type Slot struct {
	Type  enums.DeliverySlotType `json:"type"`
	Value string                 `json:"value,omitempty"`
}

// ASAP is the default slot.
func ASAP() Slot {
	return Slot{Type: enums.DeliverySlotASAP}
}

// Form is the checkout form state. The order type toggles freely; the address
// source moves between manual entry and a saved selection.
type Form struct {
	orderType      enums.OrderType
	source         AddressSource
	savedAddressID uuid.UUID
	manual         ManualAddress

	PaymentMethod    enums.PaymentMethod
	Notes            string
	UseLoyaltyReward bool
	Slot             Slot
}

// NewForm starts a delivery checkout with no address and an ASAP slot.
func NewForm() Form {
	return Form{
		orderType: enums.OrderTypeDelivery,
		source:    AddressSourceNone,
		Slot:      ASAP(),
	}
}

// OrderType returns delivery or pickup.
func (f Form) OrderType() enums.OrderType {
	return f.orderType
}

// AddressSource returns where the delivery address currently comes from.
func (f Form) AddressSource() AddressSource {
	return f.source
}

// SavedAddressID is set only while a saved address is selected.
func (f Form) SavedAddressID() uuid.UUID {
	return f.savedAddressID
}

func (f Form) ManualAddress() ManualAddress {
	return f.manual
}

func (f Form) IsPickup() bool {
	return f.orderType == enums.OrderTypePickup
}

func (f Form) usesSavedAddress() bool {
	return f.source == AddressSourceSaved && f.savedAddressID != uuid.Nil
}

func (f Form) manualAddressComplete() bool {
	return f.manual.toAddress().IsComplete()
}

// SetOrderType switches between delivery and pickup. Address state is kept so
// toggling back restores it.
func (f *Form) SetOrderType(orderType enums.OrderType) bool {
	if !orderType.IsValid() {
		return false
	}
	f.orderType = orderType
	return true
}

// SelectSavedAddress picks a saved address; manual entry is hidden but kept.
func (f *Form) SelectSavedAddress(id uuid.UUID) {
	if id == uuid.Nil {
		return
	}
	f.source = AddressSourceSaved
	f.savedAddressID = id
}

// UseNewAddress clears the saved selection and switches to manual entry.
func (f *Form) UseNewAddress() {
	f.source = AddressSourceManual
	f.savedAddressID = uuid.Nil
}

// SetManualAddress fills the manual fields and switches to manual entry.
func (f *Form) SetManualAddress(addr ManualAddress) {
	f.UseNewAddress()
	f.manual = addr
}
