package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/angelmondragon/marketplace-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-checkout/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient("http://market.test/api/v1/", WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient("  "); !errors.Is(err, errBaseURLRequired) {
		t.Fatalf("expected base url error, got %v", err)
	}
}

func TestGetMenuFillsRestaurantID(t *testing.T) {
	restaurantID := uuid.New()
	itemID := uuid.New()
	optionID := uuid.New()
	body := `{"items":[{"id":"` + itemID.String() + `","name":"Pizza","price":"10.00","is_available":true,
		"variants":[{"id":"` + uuid.NewString() + `","name":"Size","is_required":true,"min_selections":1,"max_selections":1,
		"options":[{"id":"` + optionID.String() + `","name":"Large","price_modifier":1.5,"is_available":true}]}]}]}`

	var capturedURL string
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		return respond(http.StatusOK, body), nil
	})

	got, err := client.GetMenu(context.Background(), restaurantID)
	if err != nil {
		t.Fatalf("get menu: %v", err)
	}
	if capturedURL != "http://market.test/api/v1/restaurants/"+restaurantID.String()+"/menu" {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	item, ok := got.Find(itemID)
	if !ok {
		t.Fatal("expected item in menu")
	}
	if item.RestaurantID != restaurantID {
		t.Fatalf("expected restaurant id to be filled, got %s", item.RestaurantID)
	}
	if !item.Variants[0].Options[0].PriceModifier.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("unexpected modifier %s", item.Variants[0].Options[0].PriceModifier)
	}
}

func TestGetPaymentMethodsNotFoundIsAbsent(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return respond(http.StatusNotFound, `{"error":"missing"}`), nil
	})

	got, err := client.GetPaymentMethods(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil methods, got %+v", got)
	}
}

func TestGetPaymentMethodsNullOrEmptyBodyIsAbsent(t *testing.T) {
	for _, body := range []string{"null", ""} {
		client := newTestClient(t, func(*http.Request) (*http.Response, error) {
			return respond(http.StatusOK, body), nil
		})

		got, err := client.GetPaymentMethods(context.Background(), uuid.New())
		if err != nil {
			t.Fatalf("body %q: unexpected error: %v", body, err)
		}
		if got != nil {
			t.Fatalf("body %q: expected nil methods, got %+v", body, got)
		}
	}
}

func TestGetLoyaltySettingsNullIsAbsent(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return respond(http.StatusOK, "null"), nil
	})

	got, err := client.GetLoyaltySettings(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil settings, got %+v", got)
	}
}

func TestGetPaymentMethods(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return respond(http.StatusOK, `{"cash":true,"card":false,"paypal":true}`), nil
	})

	got, err := client.GetPaymentMethods(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Allows(enums.PaymentMethodCash) || got.Allows(enums.PaymentMethodCard) || !got.Allows(enums.PaymentMethodPayPal) {
		t.Fatalf("unexpected methods %+v", got)
	}
}

func TestRequestIDForwarded(t *testing.T) {
	var captured string
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		captured = req.Header.Get(RequestIDHeader)
		return respond(http.StatusOK, `{"cash":true}`), nil
	})

	ctx := WithRequestID(context.Background(), "req-42")
	if _, err := client.GetPaymentMethods(ctx, uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured != "req-42" {
		t.Fatalf("expected forwarded request id, got %q", captured)
	}

	if _, err := client.GetPaymentMethods(context.Background(), uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured != "" {
		t.Fatalf("expected no request id header, got %q", captured)
	}
}

func TestGetDeliverySlotsPassesDate(t *testing.T) {
	var capturedQuery string
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		capturedQuery = req.URL.Query().Get("date")
		return respond(http.StatusOK, `{"available_slots":[{"type":"asap","label":"ASAP","value":"asap","available":true},
			{"type":"scheduled","label":"18:00","value":"2026-03-01T18:00:00Z","available":false,"estimated_time":"35 min"}]}`), nil
	})

	slots, err := client.GetDeliverySlots(context.Background(), uuid.New(), "2026-03-01")
	if err != nil {
		t.Fatalf("get slots: %v", err)
	}
	if capturedQuery != "2026-03-01" {
		t.Fatalf("unexpected date query %q", capturedQuery)
	}
	if len(slots) != 2 || slots[1].Type != enums.DeliverySlotScheduled || slots[1].Available {
		t.Fatalf("unexpected slots %+v", slots)
	}
	if slots[1].EstimatedTime == nil || *slots[1].EstimatedTime != "35 min" {
		t.Fatalf("expected estimated time")
	}
}

func TestCreateOrderForwardsTokenAndPayload(t *testing.T) {
	var capturedAuth string
	var payload map[string]any
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		capturedAuth = req.Header.Get("Authorization")
		if req.Method != http.MethodPost || !strings.HasSuffix(req.URL.Path, "/orders") {
			t.Fatalf("unexpected request %s %s", req.Method, req.URL.Path)
		}
		raw, _ := io.ReadAll(req.Body)
		if err := json.Unmarshal(raw, &payload); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		return respond(http.StatusCreated, `{"id":"ord_1"}`), nil
	})

	ctx := WithBearerToken(context.Background(), "tok")
	got, err := client.CreateOrder(ctx, OrderRequest{
		RestaurantID:    uuid.New(),
		Items:           []OrderItem{{MenuItemID: uuid.New(), Quantity: 2}},
		DeliveryAddress: "Pickup",
		OrderType:       enums.OrderTypePickup,
		PaymentMethod:   enums.PaymentMethodCash,
		DeliverySlot:    SlotDescriptor{Type: enums.DeliverySlotASAP},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if got.ID != "ord_1" {
		t.Fatalf("unexpected id %q", got.ID)
	}
	if capturedAuth != "Bearer tok" {
		t.Fatalf("expected bearer token, got %q", capturedAuth)
	}
	if _, ok := payload["customer_info"]; ok {
		t.Fatal("expected customer_info to be omitted")
	}
	if payload["use_loyalty_reward"] != false {
		t.Fatalf("expected use_loyalty_reward false, got %v", payload["use_loyalty_reward"])
	}
}

func TestCreateOrderBackendFailure(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return respond(http.StatusBadGateway, "upstream down"), nil
	})

	_, err := client.CreateOrder(context.Background(), OrderRequest{})
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if !strings.Contains(err.Error(), "upstream down") {
		t.Fatalf("expected body in error, got %v", err)
	}
}

func TestCreateOrderTransportFailure(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	_, err := client.CreateOrder(context.Background(), OrderRequest{})
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestCreatePaymentSession(t *testing.T) {
	cases := map[string]struct {
		body    string
		wantErr bool
		wantURL string
	}{
		"redirect": {body: `{"id":"cs_1","url":"https://pay.test/cs_1"}`, wantURL: "https://pay.test/cs_1"},
		"id only":  {body: `{"id":"cs_2"}`},
		"empty":    {body: `{}`, wantErr: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(*http.Request) (*http.Response, error) {
				return respond(http.StatusOK, tc.body), nil
			})
			got, err := client.CreatePaymentSession(context.Background(), PaymentSessionRequest{OrderID: "ord_1"})
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.URL != tc.wantURL {
				t.Fatalf("unexpected url %q", got.URL)
			}
		})
	}
}

func TestListLoyaltyStatus(t *testing.T) {
	restaurantID := uuid.New()
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return respond(http.StatusOK, `[{"restaurant_id":"`+restaurantID.String()+`","current_stamps":10,"stamps_required":10,"can_redeem":true}]`), nil
	})

	got, err := client.ListLoyaltyStatus(context.Background())
	if err != nil {
		t.Fatalf("list status: %v", err)
	}
	if len(got) != 1 || got[0].RestaurantID != restaurantID || !got[0].CanRedeem {
		t.Fatalf("unexpected status %+v", got)
	}
}
