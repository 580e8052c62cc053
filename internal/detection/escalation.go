package detection

import (
	"context"
	"time"

	"github.com/saaga0h/guardian-platform/internal/geo"
)

// Escalation policy constants
const (
	EscalationWindow    = 30 * time.Minute
	EscalationMinEvents = 3
)

// escalationLatch keeps the policy to one firing per qualifying window. It
// remembers which events contributed to the last firing and stays disarmed
// while any of them is still inside the window.
type escalationLatch struct {
	contributors map[string]struct{}
}

// decide reports whether recent (the events inside the window) should fire
// an escalation, updating the latch when it does
func (l *escalationLatch) decide(recent []Event) bool {
	disarmed := false
	for _, e := range recent {
		if _, ok := l.contributors[e.ID]; ok {
			disarmed = true
			break
		}
	}
	if disarmed {
		return false
	}

	// Everything from the last firing has aged out
	l.contributors = nil

	if len(recent) < EscalationMinEvents {
		return false
	}

	l.contributors = make(map[string]struct{}, len(recent))
	for _, e := range recent {
		l.contributors[e.ID] = struct{}{}
	}
	return true
}

func (l *escalationLatch) reset() {
	l.contributors = nil
}

// checkEscalation runs the policy for a user whose state lock is held
func (e *Engine) checkEscalation(ctx context.Context, userID string, state *userState, settings DetectionSettings, now time.Time) *Escalation {
	if !settings.AutoSOSEnabled {
		return nil
	}

	since := now.Add(-EscalationWindow)
	events, err := e.events.ListSince(ctx, userID, since)
	if err != nil {
		e.logger.Error("Failed to list recent events for escalation",
			"user_id", userID,
			"error", err)
		return nil
	}

	recent := events[:0:0]
	for _, ev := range events {
		if !ev.Timestamp.Before(since) {
			recent = append(recent, ev)
		}
	}

	if !state.latch.decide(recent) {
		return nil
	}

	categories := make([]Category, 0, len(recent))
	for _, ev := range recent {
		categories = append(categories, ev.Category)
	}

	escalation := &Escalation{
		UserID:                 userID,
		TriggerType:            TriggerUnusualActivities,
		ContributingCategories: categories,
		Timestamp:              now,
		Location:               state.lastKnownLocation(recent),
	}

	e.logger.Warn("Automatic escalation triggered",
		"user_id", userID,
		"event_count", len(recent),
		"categories", categories)

	if err := e.notifier.NotifyEscalation(ctx, *escalation); err != nil {
		e.logger.Error("Failed to notify escalation",
			"user_id", userID,
			"error", err)
	}

	return escalation
}

// lastKnownLocation prefers the newest buffered fix, then the newest event
// that carried a location
func (s *userState) lastKnownLocation(recent []Event) *geo.Point {
	if sample, ok := s.locations.Newest(); ok {
		p := sample.Point()
		return &p
	}
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].Location != nil {
			p := *recent[i].Location
			return &p
		}
	}
	return nil
}
