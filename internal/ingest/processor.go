package ingest

import (
	"fmt"
	"log/slog"

	"github.com/saaga0h/guardian-platform/internal/detection"
	"github.com/saaga0h/guardian-platform/pkg/mqtt"
)

// Processor turns raw MQTT messages into detection signals
type Processor struct {
	logger *slog.Logger
}

// NewProcessor creates a new message processor
func NewProcessor(logger *slog.Logger) *Processor {
	return &Processor{
		logger: logger,
	}
}

// SignalMessage is a parsed inbound signal with its routing metadata
type SignalMessage struct {
	UserID        string
	OriginalTopic string
	Signal        detection.Signal
}

// ParseMessage parses a message published on guardian/signal/{type}/{user}
func (p *Processor) ParseMessage(topic string, payload []byte) (*SignalMessage, error) {
	signalType, userID, ok := mqtt.ParseSignalTopic(topic)
	if !ok {
		p.logger.Warn("Invalid topic format", "topic", topic)
		return nil, fmt.Errorf("invalid topic format: %s (expected guardian/signal/{type}/{user})", topic)
	}

	sig, err := detection.DecodeSignal(signalType, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s signal: %w", signalType, err)
	}

	return &SignalMessage{
		UserID:        userID,
		OriginalTopic: topic,
		Signal:        sig,
	}, nil
}
