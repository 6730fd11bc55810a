package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"respgate/internal/cache"
	"respgate/internal/handlers"
	"respgate/internal/httpserver"
	"respgate/internal/metrics"
	"respgate/internal/responses"
	"respgate/internal/respsec"
	"respgate/pkg/logging/logging"
)

type Config struct {
	Port         string
	CacheBackend string // "memory" or "redis"
	RedisAddr    string

	UpstreamBaseURL string
	UpstreamAPIKey  string

	ResponseSigningKey      string
	DisableResponseSecurity bool
}

func LoadConfig() Config {
	return Config{
		Port:         getenv("PORT", "8080"),
		CacheBackend: getenv("CACHE_BACKEND", "memory"),
		RedisAddr:    getenv("REDIS_ADDR", "127.0.0.1:6379"),

		UpstreamBaseURL: getenv("UPSTREAM_BASE_URL", "https://api.openai.com"),
		UpstreamAPIKey:  os.Getenv("UPSTREAM_API_KEY"),

		ResponseSigningKey:      os.Getenv("RESPONSE_SIGNING_KEY"),
		DisableResponseSecurity: os.Getenv("DISABLE_RESPONSE_ID_SECURITY") == "true",
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("gateway exited with error: %v", err)
	}
}

func run() error {
	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	cfg := LoadConfig()

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.String("redis_addr", cfg.RedisAddr),
		zap.String("upstream_base_url", cfg.UpstreamBaseURL),
		zap.Bool("response_security_disabled", cfg.DisableResponseSecurity),
		zap.Bool("signing_key_configured", cfg.ResponseSigningKey != ""),
	)

	if cfg.ResponseSigningKey == "" {
		logger.Warn("no response signing key configured: response ids will pass through untagged")
	}

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.CacheBackend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})

		// Fail fast if Redis is misconfigured
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established",
			zap.String("addr", cfg.RedisAddr),
		)
	}

	// ----- Mapping cache -----
	cacheCfg := cache.Config{
		Backend: cfg.CacheBackend,
		TTL:     respsec.MappingTTL,
		Prefix:  "respgate",
	}
	store := cache.NewStore(cacheCfg, redisClient)
	store = cache.NewLoggingStore(store)

	// ----- Response id security gate -----
	secCfg := respsec.StaticConfig(respsec.SecurityConfig{
		SigningKey: cfg.ResponseSigningKey,
		Disabled:   cfg.DisableResponseSecurity,
	})
	codec := respsec.NewCodec(secCfg, logger)
	gate := respsec.NewGate(secCfg, codec, respsec.NewMappingStore(store))

	// ----- Upstream client -----
	upstream, err := responses.NewClient(responses.Config{
		BaseURL: cfg.UpstreamBaseURL,
		APIKey:  cfg.UpstreamAPIKey,
	}, logger)
	if err != nil {
		return err
	}
	if closer, ok := upstream.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// ----- Handlers -----
	responsesHandler := handlers.NewResponsesHandler(gate, upstream)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, responsesHandler)

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: response streams may outlive any fixed bound.
	}

	logger.Info("starting gateway",
		zap.String("addr", srv.Addr),
		zap.String("cache_backend", cfg.CacheBackend),
	)

	// Start server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}

// getenv returns the value of the environment variable key or def if not set.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
