package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/saaga0h/guardian-platform/internal/api"
	"github.com/saaga0h/guardian-platform/internal/clock"
	"github.com/saaga0h/guardian-platform/internal/detection"
	"github.com/saaga0h/guardian-platform/internal/geo"
	"github.com/saaga0h/guardian-platform/internal/ingest"
	"github.com/saaga0h/guardian-platform/internal/notify"
	"github.com/saaga0h/guardian-platform/internal/store"
	"github.com/saaga0h/guardian-platform/pkg/config"
	"github.com/saaga0h/guardian-platform/pkg/health"
	"github.com/saaga0h/guardian-platform/pkg/logging"
	"github.com/saaga0h/guardian-platform/pkg/mqtt"
	"github.com/saaga0h/guardian-platform/pkg/postgres"
	"github.com/saaga0h/guardian-platform/pkg/redis"
)

func main() {
	// Load configuration with hierarchy: defaults → .env → env → flags
	cfg := config.NewConfig()
	cfg.ServiceName = "detection-agent"
	if err := cfg.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	cfg.LoadFromEnv()
	cfg.LoadFromFlags()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFile)
	slog.SetDefault(logger)

	logger.Info("Starting Guardian Detection Agent",
		"service_name", cfg.ServiceName,
		"mqtt_broker", cfg.MQTTAddress(),
		"redis_host", cfg.RedisAddress(),
		"postgres", fmt.Sprintf("%s:%d/%s", cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB),
		"timezone", cfg.Timezone,
		"log_level", cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	defaults := detection.DefaultSettings()
	if cfg.SettingsDefaultsFile != "" {
		loaded, err := detection.LoadDefaultsFile(cfg.SettingsDefaultsFile)
		if err != nil {
			logger.Error("Failed to load default settings", "path", cfg.SettingsDefaultsFile, "error", err)
			os.Exit(1)
		}
		defaults = loaded
	}

	mqttClient := mqtt.NewClient(cfg, logger)
	redisClient := redis.NewClient(cfg, logger)

	pgClient := postgres.NewClient(cfg, logger)
	if err := pgClient.Connect(ctx); err != nil {
		logger.Error("Failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	homes := store.NewRedisHomeLocator(redisClient,
		geo.Point{Latitude: cfg.HomeLatitude, Longitude: cfg.HomeLongitude}, logger)
	escalationLog := store.NewPostgresEscalationLog(pgClient)
	routeCorpus := store.NewPostgresRouteCorpus(pgClient, logger)
	publisher := notify.NewMQTTPublisher(mqttClient, logger)
	timeManager := clock.NewTimeManager(logger)

	engine, err := detection.NewEngine(detection.Dependencies{
		Settings:  detection.NewSettingsStore(store.NewRedisSettingsRepository(redisClient), defaults, logger),
		Events:    store.NewPostgresEventStore(pgClient),
		Notifier:  notify.Fanout{publisher, escalationLog},
		Homes:     homes,
		Routes:    routeCorpus,
		Publisher: publisher,
		Clock:     timeManager,
		Location:  cfg.Location(),
		Logger:    logger,
	})
	if err != nil {
		logger.Error("Failed to create detection engine", "error", err)
		os.Exit(1)
	}

	agent := ingest.NewAgent(mqttClient, redisClient, engine, timeManager, cfg, logger)

	healthChecker := health.NewChecker(mqttClient, redisClient, pgClient, logger)
	healthServer := startHealthServer(cfg.HealthPort, healthChecker, logger)

	apiServer := startAPIServer(cfg.APIPort, engine, api.Options{
		Homes:       homes,
		Escalations: escalationLog,
		Routes:      routeCorpus,
		Cycles:      store.NewPostgresCycleStore(pgClient, logger),
		Clock:       timeManager,
	}, logger)

	agentErr := make(chan error, 1)
	go func() {
		if err := agent.Start(ctx); err != nil {
			logger.Error("Agent error", "error", err)
			agentErr <- err
		}
	}()

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received (SIGTERM/SIGINT)")
	case err := <-agentErr:
		logger.Error("Agent failed", "error", err)
	}

	logger.Info("Initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down API server", "error", err)
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down health server", "error", err)
	}

	if err := agent.Stop(); err != nil {
		logger.Error("Error stopping agent", "error", err)
	}
	if err := pgClient.Disconnect(); err != nil {
		logger.Error("Error closing postgres connection", "error", err)
	}

	logger.Info("Detection agent shutdown complete")
}

func startHealthServer(port int, checker *health.Checker, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", checker.HandlerFunc())
	mux.HandleFunc("/health/detailed", checker.DetailedHandlerFunc())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		logger.Info("Starting health check server", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health server error", "error", err)
		}
	}()

	return server
}

func startAPIServer(port int, engine *detection.Engine, opts api.Options, logger *slog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           api.NewRouter(engine, opts, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting API server", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("API server error", "error", err)
		}
	}()

	return server
}
