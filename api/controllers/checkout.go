package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-checkout/api/middleware"
	"github.com/angelmondragon/marketplace-checkout/api/responses"
	"github.com/angelmondragon/marketplace-checkout/api/validators"
	"github.com/angelmondragon/marketplace-checkout/internal/checkout"
	"github.com/angelmondragon/marketplace-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-checkout/pkg/errors"
	"github.com/angelmondragon/marketplace-checkout/pkg/logger"
)

const maxOrderNotesLength = 500

type customerPayload struct {
	Name  string `json:"name" validate:"max=120"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"max=40"`
}

type slotPayload struct {
	Type  string `json:"type" validate:"required,oneof=asap scheduled"`
	Value string `json:"value"`
}

// checkoutRequest is the whole checkout form. Each request carries the full
// form so quotes and submissions never depend on earlier calls.
type checkoutRequest struct {
	OrderType        string                  `json:"order_type" validate:"omitempty,oneof=delivery pickup"`
	SavedAddressID   *uuid.UUID              `json:"saved_address_id"`
	Address          *checkout.ManualAddress `json:"address"`
	PaymentMethod    string                  `json:"payment_method"`
	Notes            string                  `json:"notes" validate:"max=500"`
	UseLoyaltyReward bool                    `json:"use_loyalty_reward"`
	DeliverySlot     *slotPayload            `json:"delivery_slot"`
	Customer         *customerPayload        `json:"customer"`
}

func (p checkoutRequest) toForm() (checkout.Form, error) {
	form := checkout.NewForm()
	if p.OrderType != "" {
		orderType, err := enums.ParseOrderType(p.OrderType)
		if err != nil {
			return checkout.Form{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order type")
		}
		form.SetOrderType(orderType)
	}
	if p.Address != nil {
		form.SetManualAddress(*p.Address)
	}
	if p.SavedAddressID != nil {
		form.SelectSavedAddress(*p.SavedAddressID)
	}
	if method := strings.TrimSpace(p.PaymentMethod); method != "" {
		// Unknown methods are left for form validation to report alongside other reasons.
		if parsed, err := enums.ParsePaymentMethod(method); err == nil {
			form.PaymentMethod = parsed
		} else {
			form.PaymentMethod = enums.PaymentMethod(strings.ToLower(method))
		}
	}
	form.Notes = validators.SanitizeString(p.Notes, maxOrderNotesLength)
	form.UseLoyaltyReward = p.UseLoyaltyReward
	if p.DeliverySlot != nil {
		form.Slot = checkout.Slot{
			Type:  enums.DeliverySlotType(p.DeliverySlot.Type),
			Value: strings.TrimSpace(p.DeliverySlot.Value),
		}
	}
	return form, nil
}

// identityFor prefers the token customer; anonymous requests are guests
// described by the form's customer block.
func identityFor(r *http.Request, customer *customerPayload) checkout.Identity {
	if authenticated, ok := middleware.AuthenticatedFromContext(r.Context()); ok {
		return authenticated
	}
	if customer == nil {
		return checkout.Guest{}
	}
	return checkout.Guest{Name: customer.Name, Email: customer.Email, Phone: customer.Phone}.Normalize()
}

// CheckoutOptions lists payment methods, delivery slots, saved addresses and
// loyalty standing for the session cart.
func CheckoutOptions(workspaces Workspaces, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := workspaceFor(r, workspaces)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		date, err := validators.ParseQueryDate(r, "date")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		options, err := ws.Composer.Options(r.Context(), identityFor(r, nil), date)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, options)
	}
}

// CheckoutQuote prices the session cart for the submitted form.
func CheckoutQuote(workspaces Workspaces, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := workspaceFor(r, workspaces)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		form, err := payload.toForm()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quote, err := ws.Composer.Quote(r.Context(), identityFor(r, payload.Customer), form)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// CheckoutSubmit places the order. A submission racing one already in flight
// is answered with 202 and status "ignored".
func CheckoutSubmit(workspaces Workspaces, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := workspaceFor(r, workspaces)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		form, err := payload.toForm()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := ws.Composer.PlaceOrder(r.Context(), identityFor(r, payload.Customer), form)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.Status == checkout.StatusIgnored {
			status = http.StatusAccepted
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}
