package mqtt

import (
	"fmt"
	"strings"
)

// Topic layout for the guardian platform
const (
	// Inbound user signals: guardian/signal/{signal_type}/{user_id}
	TopicSignalAll = "guardian/signal/+/+"

	// Outbound detections and escalations
	TopicEventBase      = "guardian/event"
	TopicEscalationBase = "guardian/alert/escalation"

	// Virtual clock control used by scenario replays
	TopicTimeConfig = "guardian/test/time_config"
)

// SignalTopic builds the inbound topic for a signal type and user
// Pattern: guardian/signal/{signal_type}/{user_id}
func SignalTopic(signalType, userID string) string {
	return fmt.Sprintf("guardian/signal/%s/%s", signalType, userID)
}

// EventTopic builds the topic a detected event is published on
// Pattern: guardian/event/{category}/{user_id}
func EventTopic(category, userID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicEventBase, category, userID)
}

// EscalationTopic builds the topic an automatic escalation is published on
// Pattern: guardian/alert/escalation/{user_id}
func EscalationTopic(userID string) string {
	return fmt.Sprintf("%s/%s", TopicEscalationBase, userID)
}

// ParseSignalTopic splits guardian/signal/{type}/{user} into its parts.
// ok is false when the topic does not follow the pattern.
func ParseSignalTopic(topic string) (signalType, userID string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "guardian" || parts[1] != "signal" {
		return "", "", false
	}
	if parts[2] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[2], parts[3], true
}
