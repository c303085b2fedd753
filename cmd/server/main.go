package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ikkim/storefront-cart/config"
	"github.com/ikkim/storefront-cart/internal/app/controller"
	"github.com/ikkim/storefront-cart/internal/cache"
	"github.com/ikkim/storefront-cart/internal/events"
	"github.com/ikkim/storefront-cart/internal/gateway"
	"github.com/ikkim/storefront-cart/internal/registry"
	"github.com/ikkim/storefront-cart/internal/router"
	"github.com/ikkim/storefront-cart/internal/scheduler"
	"github.com/ikkim/storefront-cart/internal/session"
	"github.com/ikkim/storefront-cart/internal/storage"
	"github.com/ikkim/storefront-cart/internal/websocket"
	"github.com/ikkim/storefront-cart/pkg/logger"
	"github.com/ikkim/storefront-cart/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	logger.Initialize(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		EnableColor: cfg.Server.Environment == "development",
	})

	logger.Info("Starting storefront cart server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"backend":     cfg.Backend.BaseURL,
		"log_level":   cfg.Log.Level,
	})

	// Session tokens and cart snapshots live in Redis when enabled, in
	// process memory otherwise
	var tokens session.TokenStore = session.NewMemoryTokenStore()
	var snapshots cache.SnapshotCache = cache.NewMemoryCache(cfg.Session.SnapshotTTL)
	if cfg.Redis.Enabled {
		client, err := redis.Init(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to initialize Redis", err)
		}
		defer func() {
			if err := redis.Close(); err != nil {
				logger.Error("Failed to close Redis connection", err)
			}
		}()
		tokens = session.NewRedisTokenStore(client, 0)
		snapshots = cache.NewRedisCache(client, cfg.Session.SnapshotTTL)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				logger.Error("Failed to close Kafka writer", err)
			}
		}()
		publisher = kafkaPublisher
		logger.Info("Publishing cart events to Kafka", map[string]interface{}{
			"brokers": cfg.Kafka.Brokers,
			"topic":   cfg.Kafka.Topic,
		})
	}

	var uploader controller.QuoteUploader
	if cfg.S3.Bucket != "" {
		uploader = storage.NewS3Storage(context.Background(), cfg.S3.Region, cfg.S3.Bucket, cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey)
	}

	hub := websocket.NewHub()
	reg := registry.New(registry.Options{
		Gateway: gateway.Config{
			BaseURL: cfg.Backend.BaseURL,
			Timeout: cfg.Backend.Timeout,
		},
		Tokens:      tokens,
		Cache:       snapshots,
		Publisher:   publisher,
		Broadcaster: hub,
		SearchDelay: cfg.Backend.SearchDebounce,
	})
	hub.SetHandler(func(clientID string, msg websocket.ClientMessage) {
		if s, ok := reg.Lookup(clientID); ok {
			go s.Carts.RefreshCart(context.Background())
		}
	})
	go hub.Run()
	defer hub.Stop()

	sweeper := scheduler.NewSessionSweeper(reg, cfg.Session.SweepSpec, cfg.Session.IdleTTL)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("Failed to start session sweeper", err)
	}
	defer sweeper.Stop()

	r := router.NewRouter(
		controller.NewCartController(uploader),
		controller.NewWebSocketController(hub, cfg.CORS.AllowedOrigins),
		reg,
		cfg,
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r.Setup(),
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}
	logger.Info("Server stopped successfully")
}
