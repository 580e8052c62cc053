package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/saaga0h/guardian-platform/internal/cycle"
	"github.com/saaga0h/guardian-platform/internal/detection"
	"github.com/saaga0h/guardian-platform/internal/geo"
)

// Detector is the engine surface served over HTTP
type Detector interface {
	Ingest(ctx context.Context, userID string, sig detection.Signal) ([]detection.Event, error)
	RecentEvents(ctx context.Context, userID string, limit int) ([]detection.Event, error)
	UnresolvedCount(ctx context.Context, userID string) (int, error)
	MarkResolved(ctx context.Context, eventID string) error
	ClearEvents(ctx context.Context, userID string) error
	CheckEscalation(ctx context.Context, userID string) *detection.Escalation
	Settings() *detection.SettingsStore
}

// HomeSetter stores a user's safe-zone center
type HomeSetter interface {
	SetHomeLocation(ctx context.Context, userID string, home geo.Point) error
}

// EscalationLister reads the escalation audit trail
type EscalationLister interface {
	Recent(ctx context.Context, userID string, limit int) ([]detection.Escalation, error)
}

// RouteAdder records learned routes the deviation rule compares against
type RouteAdder interface {
	AddRoute(ctx context.Context, userID string, route geo.Route) error
}

// CycleStore keeps cycle history and daily symptom logs
type CycleStore interface {
	LogCycleStart(ctx context.Context, c cycle.Cycle) (cycle.Cycle, error)
	Cycles(ctx context.Context, userID string) ([]cycle.Cycle, error)
	LatestCycle(ctx context.Context, userID string) (cycle.Cycle, error)
	LogSymptoms(ctx context.Context, l cycle.SymptomLog) (cycle.SymptomLog, error)
	SymptomLogs(ctx context.Context, userID string) ([]cycle.SymptomLog, error)
}

// Options carries the optional collaborators of the router. Endpoints whose
// collaborator is nil answer 501.
type Options struct {
	Homes       HomeSetter
	Escalations EscalationLister
	Routes      RouteAdder
	Cycles      CycleStore
	Clock       detection.Clock
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

type handler struct {
	detector    Detector
	homes       HomeSetter
	escalations EscalationLister
	routes      RouteAdder
	cycles      CycleStore
	clock       detection.Clock
	logger      *slog.Logger
}

// NewRouter builds the gin engine for the detection API
func NewRouter(detector Detector, opts Options, logger *slog.Logger) *gin.Engine {
	h := &handler{
		detector:    detector,
		homes:       opts.Homes,
		escalations: opts.Escalations,
		routes:      opts.Routes,
		cycles:      opts.Cycles,
		clock:       opts.Clock,
		logger:      logger,
	}
	if h.clock == nil {
		h.clock = wallClock{}
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	v1 := r.Group("/api/v1")
	v1.POST("/events/:eventId/resolve", h.resolveEvent)

	users := v1.Group("/users/:userId")
	{
		users.GET("/settings", h.getSettings)
		users.PATCH("/settings", h.patchSettings)

		users.POST("/signals/:signalType", h.ingestSignal)

		users.GET("/events/recent", h.recentEvents)
		users.GET("/events/unresolved/count", h.unresolvedCount)
		users.DELETE("/events", h.clearEvents)

		users.POST("/escalations/check", h.checkEscalation)
		users.GET("/escalations", h.listEscalations)

		users.POST("/symptoms", h.checkSymptoms)
		users.PUT("/home", h.setHome)
		users.PUT("/routes", h.addRoutes)

		users.POST("/cycles", h.logCycleStart)
		users.GET("/cycles", h.listCycles)
		users.GET("/cycles/insights", h.cycleInsights)
		users.GET("/cycles/current-day", h.currentCycleDay)
		users.GET("/cycles/recommendations", h.recommendations)

		users.POST("/symptom-logs", h.logSymptoms)
		users.GET("/symptom-logs", h.listSymptomLogs)
	}

	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if len(c.Errors) > 0 {
			logger.Error("API request failed", append(attrs, "error", c.Errors.String())...)
			return
		}
		logger.Debug("API request", attrs...)
	}
}
