package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/saaga0h/guardian-platform/internal/clock"
	"github.com/saaga0h/guardian-platform/internal/detection"
	"github.com/saaga0h/guardian-platform/pkg/config"
	"github.com/saaga0h/guardian-platform/pkg/mqtt"
	"github.com/saaga0h/guardian-platform/pkg/redis"
)

// Ingester is the part of the detection engine the agent drives
type Ingester interface {
	Ingest(ctx context.Context, userID string, sig detection.Signal) ([]detection.Event, error)
}

// Agent receives user signals over MQTT and feeds them to the engine
type Agent struct {
	mqtt        mqtt.Client
	redis       redis.Client
	engine      Ingester
	processor   *Processor
	cfg         *config.Config
	logger      *slog.Logger
	timeManager *clock.TimeManager
}

// NewAgent creates a new ingest agent. timeManager is the clock the engine
// was built with so that test mode configuration reaches it.
func NewAgent(mqttClient mqtt.Client, redisClient redis.Client, engine Ingester, timeManager *clock.TimeManager, cfg *config.Config, logger *slog.Logger) *Agent {
	return &Agent{
		mqtt:        mqttClient,
		redis:       redisClient,
		engine:      engine,
		processor:   NewProcessor(logger),
		cfg:         cfg,
		logger:      logger,
		timeManager: timeManager,
	}
}

// Start connects, subscribes to the signal topics and blocks until ctx is
// cancelled
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("Starting ingest agent",
		"service_name", a.cfg.ServiceName,
		"mqtt_broker", a.cfg.MQTTAddress())

	if err := a.mqtt.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	if err := a.redis.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	if a.timeManager != nil {
		if err := a.timeManager.ConfigureFromMQTT(a.mqtt); err != nil {
			// Not fatal, the agent runs on wall-clock time
			a.logger.Warn("Failed to subscribe to test mode config", "error", err)
		}
	}

	for _, topic := range a.cfg.SignalTopics {
		if err := a.mqtt.Subscribe(topic, 1, a.handleMessage); err != nil {
			a.logger.Error("Failed to subscribe to topic", "topic", topic, "error", err)
			continue
		}
	}

	a.logger.Info("Ingest agent started and ready to receive signals",
		"subscribed_topics", strings.Join(a.cfg.SignalTopics, ", "))

	<-ctx.Done()
	a.logger.Info("Ingest agent stopping")

	return nil
}

// Stop gracefully stops the ingest agent
func (a *Agent) Stop() error {
	a.logger.Info("Stopping ingest agent")

	a.mqtt.Disconnect()

	if err := a.redis.Close(); err != nil {
		a.logger.Error("Error closing Redis connection", "error", err)
		return err
	}

	a.logger.Info("Ingest agent stopped")
	return nil
}

func (a *Agent) handleMessage(msg mqtt.Message) {
	topic := msg.Topic()
	payload := msg.Payload()

	a.logger.Debug("Received MQTT message", "topic", topic, "size", len(payload))

	signalMsg, err := a.processor.ParseMessage(topic, payload)
	if err != nil {
		a.logger.Error("Failed to parse message", "topic", topic, "error", err)
		return
	}

	events, err := a.engine.Ingest(context.Background(), signalMsg.UserID, signalMsg.Signal)
	if err != nil {
		a.logger.Error("Failed to ingest signal",
			"user_id", signalMsg.UserID,
			"signal", signalMsg.Signal.Type,
			"error", err)
		return
	}

	a.logger.Info("Signal processed",
		"user_id", signalMsg.UserID,
		"signal", signalMsg.Signal.Type,
		"events", len(events))
}
