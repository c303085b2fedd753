package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-cart/internal/errors"
	"github.com/ikkim/storefront-cart/internal/registry"
)

const SessionKey = "cart_session"

// SessionMiddleware attaches the client's cart session and reports the
// request's bearer token to it, so login and logout are noticed before the
// handler runs. Must run after ClientMiddleware.
func SessionMiddleware(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		clientID, ok := GetClientID(c)
		if !ok {
			errors.RespondWithError(c, http.StatusInternalServerError, errors.InternalConfigError, "Client identification is not configured")
			c.Abort()
			return
		}

		s, err := reg.Get(clientID, c.Request.UserAgent())
		if err != nil {
			log.Error("Failed to create cart session", err, nil)
			errors.RespondWithError(c, http.StatusInternalServerError, errors.ClientSessionUnavailable, "Your cart is not available right now")
			c.Abort()
			return
		}

		s.Auth.Observe(context.WithoutCancel(c.Request.Context()), BearerToken(c))
		c.Set(SessionKey, s)
		c.Next()
	}
}

// BearerToken returns the bearer from the Authorization header or, for
// websocket upgrades, the "token" query parameter. "" when absent.
func BearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Query("token")
}

func GetSession(c *gin.Context) (*registry.Session, bool) {
	value, exists := c.Get(SessionKey)
	if !exists {
		return nil, false
	}
	s, ok := value.(*registry.Session)
	return s, ok
}
