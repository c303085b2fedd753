package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ikkim/storefront-cart/internal/cart"
	"github.com/ikkim/storefront-cart/pkg/logger"
)

const (
	// SessionHeader carries the anonymous session token in both directions.
	SessionHeader = "X-Session-Token"

	maxErrorBody = 4 << 10
)

// Credentials supplies the tokens sent with every request and receives the
// session tokens the backend hands back. *session.Identity implements it.
type Credentials interface {
	Token() string
	Bearer() string
	Adopt(ctx context.Context, token string) bool
	Discard(ctx context.Context) error
}

// Client talks to the shop backend's cart endpoints.
type Client struct {
	config     Config
	httpClient *http.Client
	creds      Credentials
}

// NewClient creates a cart backend client bound to one client's credentials.
func NewClient(config Config, creds Credentials) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if creds == nil {
		return nil, fmt.Errorf("%w: credentials are required", ErrInvalidConfig)
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		creds:      creds,
	}, nil
}

// Response is the outcome of a cart call. Empty is set when the backend
// has no cart for this identity.
type Response struct {
	Cart  *cart.RawCart
	Empty bool
}

type envelope struct {
	Success      bool          `json:"success"`
	Cart         *cart.RawCart `json:"cart,omitempty"`
	Count        *int          `json:"count,omitempty"`
	SessionToken string        `json:"sessionToken,omitempty"`
	Message      string        `json:"message,omitempty"`
	Error        string        `json:"error,omitempty"`
}

type lineBody struct {
	ProductID int64 `json:"productId"`
	VariantID int64 `json:"variantId"`
	SizeID    int64 `json:"tallaId"`
	Quantity  *int  `json:"cantidad,omitempty"`
}

func newLineBody(line cart.Line, quantity *int) lineBody {
	return lineBody{
		ProductID: line.ProductID,
		VariantID: line.VariantID,
		SizeID:    line.SizeID,
		Quantity:  quantity,
	}
}

// GetCart fetches the current cart. A missing cart is not an error.
func (c *Client) GetCart(ctx context.Context) (*Response, error) {
	env, err := c.call(ctx, http.MethodGet, "/api/cart", nil)
	if err != nil {
		if IsCartAbsent(err) {
			return &Response{Empty: true}, nil
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return toResponse(env), nil
}

// GetCount fetches only the number of items in the cart.
func (c *Client) GetCount(ctx context.Context) (int, error) {
	env, err := c.call(ctx, http.MethodGet, "/api/cart/count", nil)
	if err != nil {
		if IsCartAbsent(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get cart count: %w", err)
	}
	if env.Count != nil {
		return *env.Count, nil
	}
	if env.Cart != nil {
		return cart.Normalize(env.Cart).TotalItemCount, nil
	}
	return 0, nil
}

// AddToCart adds quantity units of line. The backend enforces stock.
func (c *Client) AddToCart(ctx context.Context, line cart.Line, quantity int) (*Response, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	env, err := c.call(ctx, http.MethodPost, "/api/cart/add", newLineBody(line, &quantity))
	if err != nil {
		return nil, fmt.Errorf("failed to add to cart: %w", err)
	}
	return toResponse(env), nil
}

// UpdateQuantity sets the quantity of line. Callers turn quantities below 1
// into RemoveFromCart before calling.
func (c *Client) UpdateQuantity(ctx context.Context, line cart.Line, quantity int) (*Response, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	env, err := c.call(ctx, http.MethodPut, "/api/cart/update", newLineBody(line, &quantity))
	if err != nil {
		return nil, fmt.Errorf("failed to update cart quantity: %w", err)
	}
	return toResponse(env), nil
}

func (c *Client) RemoveFromCart(ctx context.Context, line cart.Line) (*Response, error) {
	env, err := c.call(ctx, http.MethodDelete, "/api/cart/remove", newLineBody(line, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to remove from cart: %w", err)
	}
	return toResponse(env), nil
}

// ClearCart empties the cart. Absent carts come back as an error that
// IsCartAbsent recognizes.
func (c *Client) ClearCart(ctx context.Context) error {
	if _, err := c.call(ctx, http.MethodDelete, "/api/cart/clear", nil); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// MigrateCart moves the anonymous session's cart to the logged-in user. On
// success the anonymous token is discarded and never sent again.
func (c *Client) MigrateCart(ctx context.Context) (*Response, error) {
	env, err := c.call(ctx, http.MethodPost, "/api/cart/migrate", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate cart: %w", err)
	}
	if err := c.creds.Discard(ctx); err != nil {
		logger.Warn("Failed to discard anonymous session token after migration", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return toResponse(env), nil
}

// SearchProducts relays a catalog search and returns the backend's JSON
// untouched.
func (c *Client) SearchProducts(ctx context.Context, query string) (json.RawMessage, error) {
	path := "/api/products/search?q=" + url.QueryEscape(query)
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	if !json.Valid(body) {
		return nil, ErrDecode
	}
	return json.RawMessage(body), nil
}

func toResponse(env *envelope) *Response {
	if env.Cart == nil {
		return &Response{Empty: true}
	}
	return &Response{Cart: env.Cart}
}

// call performs a request and decodes the standard envelope.
func (c *Client) call(ctx context.Context, method, path string, payload interface{}) (*envelope, error) {
	body, err := c.do(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}

	var env envelope
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
	} else {
		env.Success = true
	}

	if env.SessionToken != "" {
		c.creds.Adopt(ctx, env.SessionToken)
	}
	if !env.Success {
		return nil, &APIError{StatusCode: http.StatusOK, Message: firstNonEmpty(env.Message, env.Error)}
	}
	return &env, nil
}

// do performs an HTTP request to the backend and returns the body of a 2xx
// response. The session token header is captured from every response,
// failed ones included.
func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer := c.creds.Bearer(); bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if token := c.creds.Token(); token != "" {
		req.Header.Set(SessionHeader, token)
	}

	logger.Debug("Cart backend request", map[string]interface{}{
		"method":      method,
		"path":        path,
		"has_bearer":  req.Header.Get("Authorization") != "",
		"has_session": req.Header.Get(SessionHeader) != "",
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if token := resp.Header.Get(SessionHeader); token != "" {
		c.creds.Adopt(ctx, token)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrNetworkError, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var env envelope
		if err := json.Unmarshal(body, &env); err == nil {
			apiErr.Message = firstNonEmpty(env.Message, env.Error)
		} else if len(body) <= maxErrorBody {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		logger.Debug("Cart backend rejected request", map[string]interface{}{
			"method":  method,
			"path":    path,
			"status":  resp.StatusCode,
			"message": apiErr.Message,
		})
		return nil, apiErr
	}

	return body, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
