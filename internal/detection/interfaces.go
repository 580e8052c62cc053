package detection

import (
	"context"
	"time"

	"github.com/saaga0h/guardian-platform/internal/geo"
)

// EventStore persists detected events. ListSince returns the user's events
// with Timestamp >= since, oldest first.
type EventStore interface {
	Append(ctx context.Context, event Event) error
	ListSince(ctx context.Context, userID string, since time.Time) ([]Event, error)
	MarkResolved(ctx context.Context, eventID string) error
	Clear(ctx context.Context, userID string) error
}

// Notifier hands an escalation to the emergency-notification channel
type Notifier interface {
	NotifyEscalation(ctx context.Context, escalation Escalation) error
}

// EventPublisher announces detected events to interested parties. It is
// only called when the user has notifications enabled.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event Event) error
}

// HomeLocator returns the center of the user's safe zone
type HomeLocator interface {
	HomeLocation(ctx context.Context, userID string) (geo.Point, error)
}

// RouteCorpus returns the user's previously learned normal routes
type RouteCorpus interface {
	NormalRoutes(ctx context.Context, userID string) ([]geo.Route, error)
}

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
