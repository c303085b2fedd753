package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ikkim/storefront-cart/internal/cart"
	"github.com/ikkim/storefront-cart/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method  string
	Path    string
	Session string
	Auth    string
	Body    map[string]interface{}
}

type fakeBackend struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Session: r.Header.Get(SessionHeader),
		Auth:    r.Header.Get("Authorization"),
	}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &rec.Body)
	}
	b.mu.Lock()
	b.requests = append(b.requests, rec)
	b.mu.Unlock()
	b.handler(w, r)
}

func (b *fakeBackend) last() recordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[len(b.requests)-1]
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

const cartBody = `{"success": true, "cart": {"id": 12, "items": [
	{"id_contenido": 1, "id_carrito": 12, "id_producto": 1, "id_variante": 1, "id_talla": 1,
	 "precio": 50, "cantidad": 2, "tiene_descuento": false, "precio_total_item": 100}
]}}`

func setupGatewayTest(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *fakeBackend, *session.Identity) {
	backend := &fakeBackend{handler: handler}
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	identity := session.NewIdentity(session.NewMemoryTokenStore(), "client-1", "test-agent")
	require.NoError(t, identity.Init(context.Background()))

	client, err := NewClient(Config{BaseURL: server.URL + "/"}, identity)
	require.NoError(t, err)
	return client, backend, identity
}

func TestNewClient_InvalidConfig(t *testing.T) {
	identity := session.NewIdentity(session.NewMemoryTokenStore(), "c", "ua")

	_, err := NewClient(Config{}, identity)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewClient(Config{BaseURL: "not a url"}, identity)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewClient(Config{BaseURL: "http://localhost"}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestClient_GetCart_Success(t *testing.T) {
	client, backend, identity := setupGatewayTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, cartBody)
	})

	resp, err := client.GetCart(context.Background())
	require.NoError(t, err)
	require.NotNil(t, resp.Cart)
	assert.False(t, resp.Empty)
	assert.Len(t, resp.Cart.Items, 1)

	req := backend.last()
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/api/cart", req.Path)
	assert.Equal(t, identity.Token(), req.Session)
	assert.Empty(t, req.Auth)
}

func TestClient_GetCart_NotFoundIsEmpty(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "404", status: http.StatusNotFound, body: `{"success": false, "message": "whatever"}`},
		{name: "marker message", status: http.StatusBadRequest, body: `{"success": false, "message": "Carrito no encontrado"}`},
		{name: "success false marker", status: http.StatusOK, body: `{"success": false, "error": "Cart not found"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _, _ := setupGatewayTest(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			resp, err := client.GetCart(context.Background())
			require.NoError(t, err)
			assert.True(t, resp.Empty)
			assert.Nil(t, resp.Cart)
		})
	}
}

func TestClient_GetCart_RealErrorCarriesMessage(t *testing.T) {
	client, _, _ := setupGatewayTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"success": false, "message": "database unavailable"}`)
	})

	_, err := client.GetCart(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "database unavailable", Message(err))
	assert.False(t, IsCartAbsent(err))
}

func TestClient_MalformedJSON(t *testing.T) {
	client, _, _ := setupGatewayTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success": tru`)
	})

	_, err := client.GetCart(context.Background())
	assert.ErrorIs(t, err, ErrDecode)
}

func TestClient_NetworkError(t *testing.T) {
	identity := session.NewIdentity(session.NewMemoryTokenStore(), "c", "ua")
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client, err := NewClient(Config{BaseURL: server.URL}, identity)
	require.NoError(t, err)

	_, err = client.GetCart(context.Background())
	assert.ErrorIs(t, err, ErrNetworkError)
	assert.False(t, IsCartAbsent(err))
}

func TestClient_AddToCart_BodyAndHeaders(t *testing.T) {
	client, backend, identity := setupGatewayTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, cartBody)
	})
	identity.SetBearer("user-jwt")

	resp, err := client.AddToCart(context.Background(), cart.Line{ProductID: 1, VariantID: 2, SizeID: 3}, 2)
	require.NoError(t, err)
	require.NotNil(t, resp.Cart)

	req := backend.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/cart/add", req.Path)
	assert.Equal(t, "Bearer user-jwt", req.Auth)
	assert.Equal(t, identity.Token(), req.Session)
	assert.Equal(t, map[string]interface{}{
		"productId": float64(1),
		"variantId": float64(2),
		"tallaId":   float64(3),
		"cantidad":  float64(2),
	}, req.Body)
}

func TestClient_RejectsNonPositiveQuantity(t *testing.T) {
	client, backend, _ := setupGatewayTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, cartBody)
	})
	line := cart.Line{ProductID: 1, VariantID: 1, SizeID: 1}

	_, err := client.AddToCart(context.Background(), line, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = client.UpdateQuantity(context.Background(), line, -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	assert.Empty(t, backend.requests)
}

func TestClient_UpdateAndRemove(t *testing.T) {
	client, backend, _ := setupGatewayTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, cartBody)
	})
	line := cart.Line{ProductID: 4, VariantID: 5, SizeID: 6}

	_, err := client.UpdateQuantity(context.Background(), line, 3)
	require.NoError(t, err)
	req := backend.last()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/api/cart/update", req.Path)
	assert.Equal(t, float64(3), req.Body["cantidad"])

	_, err = client.RemoveFromCart(context.Background(), line)
	require.NoError(t, err)
	req = backend.last()
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "/api/cart/remove", req.Path)
	assert.NotContains(t, req.Body, "cantidad")
	assert.Equal(t, float64(6), req.Body["tallaId"])
}

func TestClient_ClearCart(t *testing.T) {
	client, backend, _ := setupGatewayTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success": true}`)
	})

	require.NoError(t, client.ClearCart(context.Background()))
	assert.Equal(t, "/api/cart/clear", backend.last().Path)
}

func TestClient_ClearCart_AbsentIsRecognizable(t *testing.T) {
	client, _, _ := setupGatewayTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"success": false, "message": "Cart not found"}`)
	})

	err := client.ClearCart(context.Background())
	require.Error(t, err)
	assert.True(t, IsCartAbsent(err))
}

func TestClient_GetCount(t *testing.T) {
	client, _, _ := setupGatewayTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success": true, "count": 4}`)
	})

	count, err := client.GetCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestClient_CapturesSessionTokenEvenOnError(t *testing.T) {
	client, backend, identity := setupGatewayTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(SessionHeader, "session_issued_by_backend")
		writeJSON(w, http.StatusConflict, `{"success": false, "message": "Stock insuficiente"}`)
	})

	_, err := client.AddToCart(context.Background(), cart.Line{ProductID: 1, VariantID: 1, SizeID: 1}, 1)
	require.Error(t, err)
	assert.Equal(t, "Stock insuficiente", Message(err))
	assert.Equal(t, "session_issued_by_backend", identity.Token())

	_, _ = client.GetCart(context.Background())
	assert.Equal(t, "session_issued_by_backend", backend.last().Session)
}

func TestClient_CapturesSessionTokenFromBody(t *testing.T) {
	client, _, identity := setupGatewayTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success": true, "cart": {"id": 1, "items": []}, "sessionToken": "session_body"}`)
	})

	_, err := client.GetCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "session_body", identity.Token())
}

func TestClient_MigrateDiscardsAnonymousToken(t *testing.T) {
	client, backend, identity := setupGatewayTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, cartBody)
	})
	identity.SetBearer("user-jwt")
	anonymous := identity.Token()

	_, err := client.MigrateCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, anonymous, backend.last().Session)

	_, err = client.GetCart(context.Background())
	require.NoError(t, err)
	assert.Empty(t, backend.last().Session)
	assert.Equal(t, "Bearer user-jwt", backend.last().Auth)
}

func TestClient_MigrateFailureKeepsToken(t *testing.T) {
	client, _, identity := setupGatewayTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"success": false}`)
	})
	anonymous := identity.Token()

	_, err := client.MigrateCart(context.Background())
	require.Error(t, err)
	assert.Equal(t, anonymous, identity.Token())
}

func TestClient_SearchProducts(t *testing.T) {
	client, _, _ := setupGatewayTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products/search", r.URL.Path)
		assert.Equal(t, "red shoes", r.URL.Query().Get("q"))
		writeJSON(w, http.StatusOK, `{"products": [{"id": 1}]}`)
	})

	body, err := client.SearchProducts(context.Background(), "red shoes")
	require.NoError(t, err)
	assert.JSONEq(t, `{"products": [{"id": 1}]}`, string(body))
}

func TestMessage(t *testing.T) {
	assert.Empty(t, Message(nil))
	assert.Contains(t, Message(ErrNetworkError), "connection")
	assert.Contains(t, Message(errors.New("boom")), "Something went wrong")
	assert.Equal(t, "nope", Message(&APIError{StatusCode: 400, Message: "nope"}))
}

func TestIsCartAbsent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"404", &APIError{StatusCode: http.StatusNotFound}, true},
		{"english marker", &APIError{StatusCode: http.StatusBadRequest, Message: "Cart not found"}, true},
		{"spanish marker", &APIError{StatusCode: http.StatusBadRequest, Message: "Carrito no encontrado"}, true},
		{"no cart marker", &APIError{StatusCode: http.StatusOK, Message: "No cart for this session"}, true},
		{"generic not found", &APIError{StatusCode: http.StatusConflict, Message: "Session not found"}, true},
		{"business error", &APIError{StatusCode: http.StatusConflict, Message: "Not enough stock"}, false},
		{"wrapped api error", fmt.Errorf("refresh: %w", &APIError{StatusCode: http.StatusNotFound}), true},
		{"network", ErrNetworkError, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCartAbsent(tt.err))
		})
	}
}
