package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-cart/config"
	"github.com/ikkim/storefront-cart/internal/app/controller"
	"github.com/ikkim/storefront-cart/internal/errors"
	"github.com/ikkim/storefront-cart/internal/gateway"
	"github.com/ikkim/storefront-cart/internal/middleware"
	"github.com/ikkim/storefront-cart/internal/registry"
	"github.com/ikkim/storefront-cart/pkg/logger"
)

type Router struct {
	cartController      *controller.CartController
	websocketController *controller.WebSocketController
	registry            *registry.Registry
	config              *config.Config
}

func NewRouter(
	cartController *controller.CartController,
	websocketController *controller.WebSocketController,
	reg *registry.Registry,
	cfg *config.Config,
) *Router {
	return &Router{
		cartController:      cartController,
		websocketController: websocketController,
		registry:            reg,
		config:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Recovered from panic", fmt.Errorf("%v", recovered), map[string]interface{}{
			"path": c.Request.URL.Path,
		})
		errors.InternalError(c, "")
		c.Abort()
	}))
	router.Use(middleware.LoggingMiddleware())
	router.Use(cors.New(corsConfig(r.config.CORS.AllowedOrigins)))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"message":  "Storefront cart API is running",
			"sessions": r.registry.Len(),
		})
	})

	secureCookie := r.config.Server.Environment == "production"
	v1 := router.Group("/api/v1")
	v1.Use(
		middleware.ClientMiddleware(r.config.Session.CookieName, secureCookie),
		middleware.SessionMiddleware(r.registry),
	)
	{
		cart := v1.Group("/cart")
		{
			cart.GET("", r.cartController.GetCart)
			cart.DELETE("", r.cartController.ClearCart)
			cart.GET("/count", r.cartController.GetCount)
			cart.POST("/items", r.cartController.AddItem)
			cart.PUT("/items", r.cartController.UpdateItem)
			cart.DELETE("/items", r.cartController.RemoveItem)
			cart.POST("/refresh", r.cartController.RefreshCart)
			cart.GET("/quote", r.cartController.GetQuote)
		}

		v1.GET("/search", r.cartController.Search)
		v1.GET("/ws", r.websocketController.HandleWebSocket)
	}

	return router
}

func corsConfig(allowedOrigins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", middleware.RequestIDHeader, gateway.SessionHeader},
		ExposeHeaders:    []string{"Content-Disposition", "Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			// Credentials rule out a literal "*"; echo the caller's origin instead.
			cfg.AllowOriginFunc = func(string) bool { return true }
			return cfg
		}
	}
	if len(allowedOrigins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return false }
		return cfg
	}
	cfg.AllowOrigins = allowedOrigins
	return cfg
}
