package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/saaga0h/guardian-platform/pkg/mqtt"
	"github.com/saaga0h/guardian-platform/pkg/postgres"
	"github.com/saaga0h/guardian-platform/pkg/redis"
)

const dependencyTimeout = 2 * time.Second

// Checker provides health check functionality for agents
type Checker struct {
	mqtt     mqtt.Client
	redis    redis.Client
	postgres postgres.Client
	logger   *slog.Logger
}

// NewChecker creates a new health checker. Any dependency may be nil when
// the agent runs without it.
func NewChecker(mqttClient mqtt.Client, redisClient redis.Client, pgClient postgres.Client, logger *slog.Logger) *Checker {
	return &Checker{
		mqtt:     mqttClient,
		redis:    redisClient,
		postgres: pgClient,
		logger:   logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp string    `json:"timestamp"`
	Services  *Services `json:"services,omitempty"`
}

// Services represents the status of external dependencies
type Services struct {
	Redis    string `json:"redis"`
	MQTT     string `json:"mqtt"`
	Postgres string `json:"postgres"`
}

// HandlerFunc returns 200 while the process is alive, without touching dependencies
func (h *Checker) HandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.write(w, http.StatusOK, HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// DetailedHandlerFunc returns a handler that checks every configured dependency
func (h *Checker) DetailedHandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), dependencyTimeout)
		defer cancel()

		services := h.checkServices(ctx)

		status := "healthy"
		statusCode := http.StatusOK
		if services.Redis == "disconnected" || services.MQTT == "disconnected" || services.Postgres == "disconnected" {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		h.write(w, statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Services:  services,
		})
	}
}

func (h *Checker) checkServices(ctx context.Context) *Services {
	services := &Services{
		Redis:    "not_configured",
		MQTT:     "not_configured",
		Postgres: "not_configured",
	}

	if h.mqtt != nil {
		services.MQTT = "disconnected"
		if h.mqtt.IsConnected() {
			services.MQTT = "connected"
		}
	}

	if h.redis != nil {
		services.Redis = "connected"
		if err := h.redis.Ping(ctx); err != nil {
			h.logger.Warn("Redis health check failed", "error", err)
			services.Redis = "disconnected"
		}
	}

	if h.postgres != nil {
		services.Postgres = "disconnected"
		if st, err := h.postgres.HealthCheck(ctx); err == nil && st.Connected {
			services.Postgres = "connected"
		}
	}

	return services
}

func (h *Checker) write(w http.ResponseWriter, statusCode int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode health response", "error", err)
	}
}
