package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/marketplace-checkout/internal/menu"
	"github.com/angelmondragon/marketplace-checkout/internal/pricing"
	pkgerrors "github.com/angelmondragon/marketplace-checkout/pkg/errors"
	"github.com/google/uuid"
)

const (
	defaultTimeout              = 10 * time.Second
	responseBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("marketplace base url is required")

type (
	tokenKey     struct{}
	requestIDKey struct{}
)

// RequestIDHeader correlates a marketplace call with the inbound request that caused it.
const RequestIDHeader = "X-Request-Id"

// WithBearerToken attaches the caller's access token to ctx so outgoing calls act on their behalf.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func bearerToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// WithRequestID tags outgoing calls made with ctx with the inbound request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Client talks to the marketplace REST backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewClient builds a client rooted at baseURL (for example https://api.example.com/api/v1).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// GetRestaurant returns the restaurant's cart context (fee, minimum order).
func (c *Client) GetRestaurant(ctx context.Context, restaurantID uuid.UUID) (*menu.Restaurant, error) {
	var out menu.Restaurant
	if err := c.do(ctx, http.MethodGet, restaurantPath(restaurantID, ""), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMenu returns the restaurant's menu items with their variant groups.
func (c *Client) GetMenu(ctx context.Context, restaurantID uuid.UUID) (*menu.Menu, error) {
	var out struct {
		Items []menu.Item `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, restaurantPath(restaurantID, "menu"), nil, &out); err != nil {
		return nil, err
	}
	for i := range out.Items {
		if out.Items[i].RestaurantID == uuid.Nil {
			out.Items[i].RestaurantID = restaurantID
		}
	}
	return &menu.Menu{RestaurantID: restaurantID, Items: out.Items}, nil
}

// GetPaymentMethods returns nil without error when the restaurant publishes no
// flags: a 404, a null body or an empty body.
func (c *Client) GetPaymentMethods(ctx context.Context, restaurantID uuid.UUID) (*PaymentMethods, error) {
	var out *PaymentMethods
	if err := c.do(ctx, http.MethodGet, restaurantPath(restaurantID, "payment-methods"), nil, &out); err != nil {
		if isAbsent(err) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

// GetLoyaltySettings returns nil without error when the restaurant has no programme.
func (c *Client) GetLoyaltySettings(ctx context.Context, restaurantID uuid.UUID) (*pricing.LoyaltySettings, error) {
	var out *pricing.LoyaltySettings
	if err := c.do(ctx, http.MethodGet, restaurantPath(restaurantID, "loyalty"), nil, &out); err != nil {
		if isAbsent(err) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

// ListLoyaltyStatus returns the authenticated customer's standing across restaurants.
func (c *Client) ListLoyaltyStatus(ctx context.Context) ([]pricing.LoyaltyStatus, error) {
	var out []pricing.LoyaltyStatus
	if err := c.do(ctx, http.MethodGet, "loyalty/status", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDeliverySlots lists slots for the restaurant, optionally for one day (YYYY-MM-DD).
func (c *Client) GetDeliverySlots(ctx context.Context, restaurantID uuid.UUID, date string) ([]DeliverySlot, error) {
	path := restaurantPath(restaurantID, "delivery-slots")
	if strings.TrimSpace(date) != "" {
		path += "?" + url.Values{"date": {strings.TrimSpace(date)}}.Encode()
	}
	var out struct {
		AvailableSlots []DeliverySlot `json:"available_slots"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.AvailableSlots, nil
}

// CreateOrder submits the order and returns its identifier.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*OrderConfirmation, error) {
	var out OrderConfirmation
	if err := c.do(ctx, http.MethodPost, "orders", req, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order response missing id")
	}
	return &out, nil
}

// CreatePaymentSession opens a hosted checkout for an existing order.
func (c *Client) CreatePaymentSession(ctx context.Context, req PaymentSessionRequest) (*PaymentSession, error) {
	var out PaymentSession
	if err := c.do(ctx, http.MethodPost, "payments/checkout-session", req, &out); err != nil {
		return nil, err
	}
	if out.ID == "" && out.URL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment session response is empty")
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "marketplace client not configured")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal marketplace request")
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build marketplace request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token := bearerToken(ctx); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if id := requestID(ctx); id != "" {
		httpReq.Header.Set(RequestIDHeader, id)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute marketplace request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return pkgerrors.New(pkgerrors.CodeNotFound, "marketplace resource not found").
			WithDetails(map[string]any{"path": path})
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			fmt.Sprintf("marketplace %s %s failed", method, path))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode marketplace response")
	}
	return nil
}

// isAbsent reports a 404 or a 2xx reply with no body.
func isAbsent(err error) bool {
	return pkgerrors.HasCode(err, pkgerrors.CodeNotFound) || errors.Is(err, io.EOF)
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(path, "/"))
}

func restaurantPath(id uuid.UUID, suffix string) string {
	path := "restaurants/" + url.PathEscape(id.String())
	if suffix != "" {
		path += "/" + suffix
	}
	return path
}
