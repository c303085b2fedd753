package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ikkim/storefront-cart/internal/gateway"
	"github.com/ikkim/storefront-cart/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCookie = "sf_client"

func setupMiddlewareTest() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(LoggingMiddleware(), ClientMiddleware(testCookie, false))
	return router
}

func TestClientMiddleware_IssuesCookie(t *testing.T) {
	router := setupMiddlewareTest()
	router.GET("/test", func(c *gin.Context) {
		clientID, _ := GetClientID(c)
		c.String(http.StatusOK, clientID)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, uuid.Validate(w.Body.String()))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, testCookie, cookies[0].Name)
	assert.Equal(t, w.Body.String(), cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestClientMiddleware_ReusesValidCookie(t *testing.T) {
	router := setupMiddlewareTest()
	router.GET("/test", func(c *gin.Context) {
		clientID, _ := GetClientID(c)
		c.String(http.StatusOK, clientID)
	})
	existing := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: existing})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, existing, w.Body.String())
	assert.Empty(t, w.Result().Cookies())
}

func TestClientMiddleware_ReplacesMalformedCookie(t *testing.T) {
	router := setupMiddlewareTest()
	router.GET("/test", func(c *gin.Context) {
		clientID, _ := GetClientID(c)
		c.String(http.StatusOK, clientID)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: "../../etc"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.NotEqual(t, "../../etc", w.Body.String())
	assert.NoError(t, uuid.Validate(w.Body.String()))
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{"header", "Bearer abc.def", "", "abc.def"},
		{"lowercase scheme", "bearer abc", "", "abc"},
		{"wrong scheme", "Basic dXNlcg==", "", ""},
		{"query for websocket", "", "xyz", "xyz"},
		{"header wins over query", "Bearer abc", "xyz", "abc"},
		{"absent", "", "", ""},
	}

	gin.SetMode(gin.TestMode)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/test"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				c.Request.Header.Set("Authorization", tt.header)
			}

			assert.Equal(t, tt.want, BearerToken(c))
		})
	}
}

func TestSessionMiddleware_ObservesBearer(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "cart": null}`))
	}))
	defer backend.Close()

	reg := registry.New(registry.Options{Gateway: gateway.Config{BaseURL: backend.URL}})
	router := setupMiddlewareTest()
	router.GET("/test", SessionMiddleware(reg), func(c *gin.Context) {
		s, ok := GetSession(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"authenticated": s.Auth.Authenticated()})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"authenticated": true}`, w.Body.String())
	assert.Equal(t, 1, reg.Len())
}

func TestSessionMiddleware_RequiresClientID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	reg := registry.New(registry.Options{Gateway: gateway.Config{BaseURL: "http://localhost:1"}})
	router.GET("/test", SessionMiddleware(reg), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_CONFIG_ERROR")
}
