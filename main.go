package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AnTengye/contractdesk/config"
	"github.com/AnTengye/contractdesk/handler"
	"github.com/AnTengye/contractdesk/metrics"
	"github.com/AnTengye/contractdesk/middleware"
	"github.com/AnTengye/contractdesk/pkg/logger"
	"github.com/AnTengye/contractdesk/service"
	"github.com/AnTengye/contractdesk/store"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := "config.yaml"
	if v := os.Getenv(config.EnvPrefix + "CONFIG"); v != "" {
		configPath = v
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully", "users", len(cfg.Users))

	if err := run(cfg); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("server exited gracefully")
}

func run(cfg *config.Config) error {
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	st, err := newStore(cfg, collector)
	if err != nil {
		return err
	}
	defer st.Close()

	// Token revocations live in Redis when configured, in memory otherwise
	var revocations service.RevocationList
	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := service.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func(c *redis.Client) {
			if err := c.Close(); err != nil {
				slog.Warn("failed to close redis client", "error", err)
			}
		}(client)
		revocations = service.NewRedisRevocations(client)
		slog.Info("token revocations stored in redis", "addr", cfg.Redis.Addr)
	}

	auth, err := service.NewAuthService(cfg, revocations)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	// File storage and summaries are optional integrations
	var files service.FileStorage
	if cfg.Minio.Enabled() {
		minioSvc, err := service.NewMinioStorage(&cfg.Minio)
		if err != nil {
			return fmt.Errorf("init minio: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = minioSvc.EnsureBucket(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("ensure minio bucket: %w", err)
		}
		files = minioSvc
	} else {
		slog.Warn("minio is not configured, uploads are disabled")
	}

	var summarizer service.Summarizer
	if cfg.AI.Enabled() {
		summarizer = service.NewAISummarizer(&cfg.AI)
	} else {
		slog.Warn("ai is not configured, summaries are disabled")
	}

	// Initialize handlers
	dashboard := service.NewDashboardService(st)
	handlers := &handler.Handlers{
		Auth:      handler.NewAuthHandler(auth, cfg.Server.SecureCookies),
		Contracts: handler.NewContractHandler(service.NewContractService(st, files, summarizer), collector),
		Templates: handler.NewTemplateHandler(service.NewTemplateService(st)),
		Reviews:   handler.NewReviewHandler(service.NewReviewService(st)),
		Tasks:     handler.NewTaskHandler(service.NewTaskService(st)),
		Dashboard: handler.NewDashboardHandler(dashboard),
		Admin:     handler.NewAdminHandler(dashboard),
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, time.Minute)
	defer limiter.Stop()

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger(collector, "/health", "/metrics"))
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.CacheControl())
	router.Use(middleware.SecurityHeaders())

	router.GET("/health", handler.Health(st))
	router.GET("/metrics", gin.WrapH(metrics.Handler(prometheus.DefaultGatherer)))
	handlers.Register(router, auth, collector, limiter.Middleware())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 2 * time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// newStore builds the in-memory store from the store section of cfg
func newStore(cfg *config.Config, obs store.Observer) (*store.Store, error) {
	opts := []store.Option{
		store.WithObserver(obs),
		store.WithMaxRecords(cfg.Store.MaxRecords),
	}

	latency := time.Duration(cfg.Store.LatencyMs) * time.Millisecond
	if jitter := time.Duration(cfg.Store.JitterMs) * time.Millisecond; jitter > 0 {
		opts = append(opts, store.WithLatency(store.Jitter{Min: latency, Max: latency + jitter}))
	} else {
		opts = append(opts, store.WithLatency(store.Fixed(latency)))
	}

	if cfg.Store.SeedFile != "" {
		data, err := os.ReadFile(cfg.Store.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("read seed file: %w", err)
		}
		seed, err := store.ParseSeed(data)
		if err != nil {
			return nil, err
		}
		opts = append(opts, store.WithSeed(seed))
		slog.Info("using seed file", "path", cfg.Store.SeedFile)
	}

	return store.New(opts...), nil
}
