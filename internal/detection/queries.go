package detection

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Query windows
const (
	RecentEventsWindow    = 7 * 24 * time.Hour
	UnresolvedCountWindow = 24 * time.Hour
	DefaultRecentLimit    = 3
)

// RecentEvents returns up to limit events from the last seven days, newest
// first. A non-positive limit means DefaultRecentLimit.
func (e *Engine) RecentEvents(ctx context.Context, userID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	events, err := e.events.ListSince(ctx, userID, e.clock.Now().Add(-RecentEventsWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to list recent events for %s: %w", userID, err)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// UnresolvedCount counts the user's active events from the last 24 hours
func (e *Engine) UnresolvedCount(ctx context.Context, userID string) (int, error) {
	events, err := e.events.ListSince(ctx, userID, e.clock.Now().Add(-UnresolvedCountWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to list events for %s: %w", userID, err)
	}

	count := 0
	for _, ev := range events {
		if ev.Status == StatusActive {
			count++
		}
	}
	return count, nil
}

// MarkResolved moves an event to the resolved status
func (e *Engine) MarkResolved(ctx context.Context, eventID string) error {
	if eventID == "" {
		return &ValidationError{Field: "eventId", Reason: "is required"}
	}
	if err := e.events.MarkResolved(ctx, eventID); err != nil {
		return fmt.Errorf("failed to resolve event %s: %w", eventID, err)
	}
	e.logger.Info("Unusual activity resolved", "event_id", eventID)
	return nil
}

// ClearEvents deletes every stored event of the user and re-arms the
// escalation policy
func (e *Engine) ClearEvents(ctx context.Context, userID string) error {
	state := e.state(userID)
	state.mu.Lock()
	defer state.mu.Unlock()

	if err := e.events.Clear(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear events for %s: %w", userID, err)
	}
	state.latch.reset()

	e.logger.Info("Unusual activities cleared", "user_id", userID)
	return nil
}
