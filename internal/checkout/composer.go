package checkout

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/marketplace-checkout/internal/address"
	"github.com/angelmondragon/marketplace-checkout/internal/cart"
	"github.com/angelmondragon/marketplace-checkout/internal/marketplace"
	"github.com/angelmondragon/marketplace-checkout/internal/pricing"
	"github.com/angelmondragon/marketplace-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-checkout/pkg/errors"
	"github.com/angelmondragon/marketplace-checkout/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const orderIDPlaceholder = "{order_id}"

// Gateway is the slice of the marketplace backend the composer calls.
type Gateway interface {
	GetPaymentMethods(ctx context.Context, restaurantID uuid.UUID) (*marketplace.PaymentMethods, error)
	GetLoyaltySettings(ctx context.Context, restaurantID uuid.UUID) (*pricing.LoyaltySettings, error)
	ListLoyaltyStatus(ctx context.Context) ([]pricing.LoyaltyStatus, error)
	GetDeliverySlots(ctx context.Context, restaurantID uuid.UUID, date string) ([]marketplace.DeliverySlot, error)
	CreateOrder(ctx context.Context, req marketplace.OrderRequest) (*marketplace.OrderConfirmation, error)
	CreatePaymentSession(ctx context.Context, req marketplace.PaymentSessionRequest) (*marketplace.PaymentSession, error)
}

type cartStore interface {
	Snapshot() cart.Snapshot
	RemoveOrdered(ctx context.Context, ordered cart.Snapshot) (cart.Snapshot, error)
}

type addressBook interface {
	List(ctx context.Context, owner string) ([]address.Address, error)
	Get(ctx context.Context, owner string, id uuid.UUID) (address.Address, error)
	Save(ctx context.Context, owner string, addr address.Address) (address.Address, bool, error)
}

type submitRecorder interface {
	IncPlaced(orderType, paymentMethod string)
	IncFailure(stage string)
	ObserveSubmit(d time.Duration)
}

// Config holds the composer's fixed settings.
type Config struct {
	// SuccessURL and CancelURL may contain {order_id}.
	SuccessURL         string
	CancelURL          string
	NoticeDismissAfter time.Duration
}

// Deps wires a Composer.
type Deps struct {
	SessionID string
	Cart      cartStore
	Gateway   Gateway
	Addresses addressBook
	Contacts  *Contacts
	Config    Config
	Logger    *logger.Logger
	Metrics   submitRecorder
}

// Composer validates checkout forms and turns the session cart into an order.
type Composer struct {
	sessionID string
	cart      cartStore
	gateway   Gateway
	addresses addressBook
	contacts  *Contacts
	cfg       Config
	logg      *logger.Logger
	metrics   submitRecorder
	now       func() time.Time

	loading atomic.Bool
}

func NewComposer(deps Deps) (*Composer, error) {
	if strings.TrimSpace(deps.SessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session id required")
	}
	if deps.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart store required")
	}
	if deps.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "marketplace gateway required")
	}
	if deps.Addresses == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "address book required")
	}
	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Composer{
		sessionID: deps.SessionID,
		cart:      deps.Cart,
		gateway:   deps.Gateway,
		addresses: deps.Addresses,
		contacts:  deps.Contacts,
		cfg:       deps.Config,
		logg:      logg,
		metrics:   deps.Metrics,
		now:       time.Now,
	}, nil
}

// Loading reports whether a submission is in flight.
func (c *Composer) Loading() bool {
	return c.loading.Load()
}

// Options lists what the checkout form can offer for the current cart.
type Options struct {
	PaymentMethods marketplace.PaymentMethods `json:"payment_methods"`
	DeliverySlots  []marketplace.DeliverySlot `json:"delivery_slots"`
	SavedAddresses []address.Address          `json:"saved_addresses"`
	Contact        *Guest                     `json:"contact,omitempty"`
	Loyalty        LoyaltyView                `json:"loyalty"`
}

// LoyaltyView is the customer's reward standing with the cart's restaurant.
type LoyaltyView struct {
	Settings  *pricing.LoyaltySettings `json:"settings,omitempty"`
	Status    *pricing.LoyaltyStatus   `json:"status,omitempty"`
	CanRedeem bool                     `json:"can_redeem"`
}

// Options gathers payment methods, slots, saved addresses and remembered contact.
// The date filters slots (YYYY-MM-DD, optional).
func (c *Composer) Options(ctx context.Context, identity Identity, date string) (Options, error) {
	snap := c.cart.Snapshot()
	out := Options{PaymentMethods: marketplace.AllPaymentMethods()}

	saved, err := c.addresses.List(ctx, OwnerKey(identity, c.sessionID))
	if err != nil {
		return Options{}, err
	}
	out.SavedAddresses = saved

	if _, guest := identity.(Guest); guest && c.contacts != nil {
		contact, err := c.contacts.Recall(ctx, c.sessionID)
		if err != nil {
			c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "checkout.contact_recall_failed")
		}
		out.Contact = contact
	}

	if snap.IsEmpty() {
		out.DeliverySlots = []marketplace.DeliverySlot{defaultSlot()}
		return out, nil
	}

	if methods := c.paymentMethods(ctx, snap.RestaurantID); methods != nil {
		out.PaymentMethods = *methods
	}
	out.DeliverySlots = c.deliverySlots(ctx, snap.RestaurantID, date)
	out.Loyalty = c.loyalty(ctx, identity, snap.RestaurantID)
	return out, nil
}

// QuoteResult is the pricing of the cart for a form, with the submit gate.
type QuoteResult struct {
	pricing.Quote
	CartVersion uint64      `json:"cart_version"`
	ItemCount   int         `json:"item_count"`
	FormValid   bool        `json:"form_valid"`
	Reasons     []string    `json:"reasons,omitempty"`
	CanSubmit   bool        `json:"can_submit"`
	Loyalty     LoyaltyView `json:"loyalty"`
}

// Quote prices the cart for the form and reports whether it could be submitted now.
func (c *Composer) Quote(ctx context.Context, identity Identity, form Form) (QuoteResult, error) {
	snap := c.cart.Snapshot()
	if snap.IsEmpty() {
		return QuoteResult{
			Quote:       pricing.Calculate(pricing.QuoteInput{}),
			CartVersion: snap.Version,
			Reasons:     []string{"cart is empty"},
		}, nil
	}

	avail := Availability{
		PaymentMethods: c.paymentMethods(ctx, snap.RestaurantID),
		Now:            c.now(),
	}
	if form.Slot.Type == enums.DeliverySlotScheduled {
		avail.Slots = c.slotsForValidation(ctx, snap.RestaurantID, form.Slot)
	}
	loyalty := c.loyalty(ctx, identity, snap.RestaurantID)
	quote := c.price(snap, form, loyalty)

	validation := ValidateForm(form, identity, avail)
	return QuoteResult{
		Quote:       quote,
		CartVersion: snap.Version,
		ItemCount:   snap.ItemCount(),
		FormValid:   validation == nil,
		Reasons:     Reasons(validation),
		CanSubmit:   validation == nil && quote.MinimumOrderMet && !c.Loading(),
		Loyalty:     loyalty,
	}, nil
}

// Status is the outcome of a submission.
type Status string

const (
	StatusPlaced            Status = "placed"
	StatusRedirect          Status = "redirect"
	StatusPaymentNotStarted Status = "payment_not_started"
	StatusIgnored           Status = "ignored"
)

// Result describes what happened to a submission.
type Result struct {
	Status           Status         `json:"status"`
	OrderID          string         `json:"order_id,omitempty"`
	RedirectURL      string         `json:"redirect_url,omitempty"`
	PaymentSessionID string         `json:"payment_session_id,omitempty"`
	Quote            *pricing.Quote `json:"quote,omitempty"`
	Notice           *Notice        `json:"notice,omitempty"`
}

// PlaceOrder validates the form and cart, creates the order and, for card and
// PayPal, opens a payment session. A call made while another is in flight
// returns StatusIgnored without doing anything.
func (c *Composer) PlaceOrder(ctx context.Context, identity Identity, form Form) (*Result, error) {
	if !c.loading.CompareAndSwap(false, true) {
		return &Result{Status: StatusIgnored}, nil
	}
	defer c.loading.Store(false)

	started := c.now()
	defer func() {
		if c.metrics != nil {
			c.metrics.ObserveSubmit(c.now().Sub(started))
		}
	}()

	snap := c.cart.Snapshot()
	if snap.IsEmpty() {
		c.recordFailure("validation")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty").
			WithDetails(map[string]any{"reasons": []string{"cart is empty"}})
	}
	ctx = c.logg.WithRestaurantID(ctx, snap.RestaurantID.String())

	avail := Availability{
		PaymentMethods: c.paymentMethods(ctx, snap.RestaurantID),
		Now:            c.now(),
	}
	if form.Slot.Type == enums.DeliverySlotScheduled {
		avail.Slots = c.slotsForValidation(ctx, snap.RestaurantID, form.Slot)
	}
	if err := ValidateForm(form, identity, avail); err != nil {
		c.recordFailure("validation")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout form is incomplete").
			WithDetails(map[string]any{"reasons": Reasons(err)})
	}

	if !snap.IsMinimumOrderMet() {
		c.recordFailure("minimum_order")
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "minimum order not reached").
			WithDetails(map[string]any{
				"minimum_order": snap.MinimumOrder.StringFixed(2),
				"subtotal":      snap.Subtotal().StringFixed(2),
			})
	}

	owner := OwnerKey(identity, c.sessionID)
	deliveryAddress, manual, err := c.resolveAddress(ctx, owner, form)
	if err != nil {
		c.recordFailure("validation")
		return nil, err
	}

	loyalty := LoyaltyView{}
	if form.UseLoyaltyReward && isAuthenticated(identity) {
		loyalty = c.loyalty(ctx, identity, snap.RestaurantID)
	}
	quote := c.price(snap, form, loyalty)

	req := buildOrderRequest(snap, form, identity, deliveryAddress, quote.LoyaltyApplied)
	confirmation, err := c.gateway.CreateOrder(ctx, req)
	if err != nil {
		c.recordFailure("order")
		c.logg.Error(ctx, "checkout.order_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order could not be placed").
			WithDetails(map[string]any{
				"notice": transientNotice(NoticeError, "We could not place your order. Your cart is saved, please try again.", c.cfg.NoticeDismissAfter),
			})
	}

	ctx = c.logg.WithOrderID(ctx, confirmation.ID)
	c.logg.Info(ctx, "checkout.order_placed")
	if c.metrics != nil {
		c.metrics.IncPlaced(form.OrderType().String(), form.PaymentMethod.String())
	}
	c.afterPlaced(ctx, snap, owner, identity, manual)

	result := &Result{
		Status:  StatusPlaced,
		OrderID: confirmation.ID,
		Quote:   &quote,
		Notice:  transientNotice(NoticeSuccess, "Your order has been placed.", c.cfg.NoticeDismissAfter),
	}
	if !form.PaymentMethod.RequiresRedirect() {
		return result, nil
	}

	session, err := c.gateway.CreatePaymentSession(ctx, c.paymentSessionRequest(confirmation.ID, identity))
	if err != nil {
		c.recordFailure("payment")
		c.logg.Error(ctx, "checkout.payment_session_failed", err)
		result.Status = StatusPaymentNotStarted
		result.Notice = actionableNotice(NoticeError,
			"Your order was created but the payment could not be started. We will update the order once the payment provider confirms it; contact the restaurant if it stays pending.")
		return result, nil
	}

	result.PaymentSessionID = session.ID
	if session.URL != "" {
		result.Status = StatusRedirect
		result.RedirectURL = session.URL
		result.Notice = nil
	}
	return result, nil
}

func (c *Composer) resolveAddress(ctx context.Context, owner string, form Form) (string, *address.Address, error) {
	if form.IsPickup() {
		return PickupAddress, nil, nil
	}
	if form.usesSavedAddress() {
		saved, err := c.addresses.Get(ctx, owner, form.SavedAddressID())
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				return "", nil, pkgerrors.New(pkgerrors.CodeValidation, "selected address no longer exists").
					WithDetails(map[string]any{"reasons": []string{"selected address no longer exists"}})
			}
			return "", nil, err
		}
		return FormatAddress(saved), nil, nil
	}
	manual := form.ManualAddress().toAddress()
	return FormatAddress(manual), &manual, nil
}

// afterPlaced takes the ordered lines out of the cart and keeps the entered
// details for next time. Failures here are logged; the order already exists.
func (c *Composer) afterPlaced(ctx context.Context, ordered cart.Snapshot, owner string, identity Identity, manual *address.Address) {
	if _, err := c.cart.RemoveOrdered(ctx, ordered); err != nil {
		c.logg.Error(ctx, "checkout.cart_clear_failed", err)
	}
	if manual != nil {
		if _, created, err := c.addresses.Save(ctx, owner, *manual); err != nil {
			c.logg.Error(ctx, "checkout.address_save_failed", err)
		} else if created {
			c.logg.Debug(ctx, "checkout.address_saved")
		}
	}
	if guest, ok := identity.(Guest); ok && c.contacts != nil {
		if err := c.contacts.Remember(ctx, c.sessionID, guest); err != nil {
			c.logg.Error(ctx, "checkout.contact_save_failed", err)
		}
	}
}

func (c *Composer) paymentSessionRequest(orderID string, identity Identity) marketplace.PaymentSessionRequest {
	req := marketplace.PaymentSessionRequest{
		OrderID:    orderID,
		SuccessURL: strings.ReplaceAll(c.cfg.SuccessURL, orderIDPlaceholder, orderID),
		CancelURL:  strings.ReplaceAll(c.cfg.CancelURL, orderIDPlaceholder, orderID),
	}
	if guest, ok := identity.(Guest); ok {
		req.CustomerEmail = strings.TrimSpace(guest.Email)
	}
	return req
}

// price applies the loyalty reward and waives the delivery fee for pickup.
func (c *Composer) price(snap cart.Snapshot, form Form, loyalty LoyaltyView) pricing.Quote {
	fee := snap.DeliveryFee
	if form.IsPickup() {
		fee = decimal.Zero
	}
	return pricing.Calculate(pricing.QuoteInput{
		Lines:               snap.Lines(),
		DeliveryFee:         fee,
		MinimumOrder:        snap.MinimumOrder,
		Settings:            loyalty.Settings,
		Status:              loyalty.Status,
		RedemptionRequested: form.UseLoyaltyReward && loyalty.CanRedeem,
	})
}

// paymentMethods returns nil when availability is unknown, which accepts every method.
func (c *Composer) paymentMethods(ctx context.Context, restaurantID uuid.UUID) *marketplace.PaymentMethods {
	methods, err := c.gateway.GetPaymentMethods(ctx, restaurantID)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "checkout.payment_methods_unavailable")
		return nil
	}
	return methods
}

func (c *Composer) deliverySlots(ctx context.Context, restaurantID uuid.UUID, date string) []marketplace.DeliverySlot {
	slots, err := c.gateway.GetDeliverySlots(ctx, restaurantID, date)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "checkout.delivery_slots_unavailable")
		return []marketplace.DeliverySlot{defaultSlot()}
	}
	if len(slots) == 0 {
		return []marketplace.DeliverySlot{defaultSlot()}
	}
	return slots
}

// slotsForValidation returns nil when the slot list could not be fetched.
func (c *Composer) slotsForValidation(ctx context.Context, restaurantID uuid.UUID, slot Slot) []marketplace.DeliverySlot {
	date := ""
	if at, err := time.Parse(time.RFC3339, slot.Value); err == nil {
		date = at.Format(time.DateOnly)
	}
	slots, err := c.gateway.GetDeliverySlots(ctx, restaurantID, date)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "checkout.delivery_slots_unavailable")
		return nil
	}
	if slots == nil {
		slots = []marketplace.DeliverySlot{}
	}
	return slots
}

// loyalty looks up the programme and, for signed-in customers, their standing.
// Lookup failures mean no reward.
func (c *Composer) loyalty(ctx context.Context, identity Identity, restaurantID uuid.UUID) LoyaltyView {
	var view LoyaltyView
	settings, err := c.gateway.GetLoyaltySettings(ctx, restaurantID)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "checkout.loyalty_settings_unavailable")
		return view
	}
	view.Settings = settings
	if settings == nil || !settings.Enabled || !isAuthenticated(identity) {
		return view
	}

	statuses, err := c.gateway.ListLoyaltyStatus(ctx)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "checkout.loyalty_status_unavailable")
		return view
	}
	view.Status = pricing.StatusFor(statuses, restaurantID)
	view.CanRedeem = view.Status != nil && view.Status.CanRedeem
	return view
}

func (c *Composer) recordFailure(stage string) {
	if c.metrics != nil {
		c.metrics.IncFailure(stage)
	}
}

func defaultSlot() marketplace.DeliverySlot {
	return marketplace.DeliverySlot{Type: enums.DeliverySlotASAP, Label: "As soon as possible", Value: string(enums.DeliverySlotASAP), Available: true}
}
