package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ClientIDKey = "client_id"

	clientCookieMaxAge = 365 * 24 * 60 * 60
)

// ClientMiddleware identifies the browser by a uuid cookie, issuing one when
// the cookie is missing or malformed.
func ClientMiddleware(cookieName string, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, err := c.Cookie(cookieName)
		if err != nil || uuid.Validate(clientID) != nil {
			clientID = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cookieName, clientID, clientCookieMaxAge, "/", "", secure, true)
			GetLoggerFromContext(c).Debug("Issued client id", map[string]interface{}{
				"client_id": clientID,
			})
		}

		c.Set(ClientIDKey, clientID)
		c.Set(loggerKey, GetLoggerFromContext(c).WithContext(map[string]interface{}{
			"client_id": clientID,
		}))
		c.Next()
	}
}

func GetClientID(c *gin.Context) (string, bool) {
	clientID := c.GetString(ClientIDKey)
	return clientID, clientID != ""
}
