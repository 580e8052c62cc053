package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/saaga0h/guardian-platform/internal/detection"
	"github.com/saaga0h/guardian-platform/pkg/mqtt"
)

// MQTTPublisher announces events and escalations on the broker. Escalations
// go out at QoS 1 so the emergency consumer sees each one at least once.
type MQTTPublisher struct {
	mqtt   mqtt.Client
	logger *slog.Logger
}

// NewMQTTPublisher creates a publisher on top of an MQTT client
func NewMQTTPublisher(client mqtt.Client, logger *slog.Logger) *MQTTPublisher {
	return &MQTTPublisher{mqtt: client, logger: logger}
}

// NotifyEscalation publishes to guardian/alert/escalation/{user_id}
func (p *MQTTPublisher) NotifyEscalation(ctx context.Context, esc detection.Escalation) error {
	payload, err := json.Marshal(esc)
	if err != nil {
		return fmt.Errorf("failed to marshal escalation: %w", err)
	}

	topic := mqtt.EscalationTopic(esc.UserID)
	if err := p.mqtt.Publish(topic, 1, false, payload); err != nil {
		return err
	}

	p.logger.Info("Published escalation",
		"topic", topic,
		"user_id", esc.UserID,
		"categories", len(esc.ContributingCategories))
	return nil
}

// PublishEvent publishes to guardian/event/{category}/{user_id}
func (p *MQTTPublisher) PublishEvent(ctx context.Context, ev detection.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	topic := mqtt.EventTopic(string(ev.Category), ev.UserID)
	if err := p.mqtt.Publish(topic, 0, false, payload); err != nil {
		return err
	}

	p.logger.Debug("Published event", "topic", topic, "event_id", ev.ID)
	return nil
}
