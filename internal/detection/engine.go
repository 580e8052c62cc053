package detection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saaga0h/guardian-platform/internal/geo"
)

// Dependencies are the collaborators an Engine is built from. Clock,
// Location, Publisher and Logger are optional.
type Dependencies struct {
	Settings  *SettingsStore
	Events    EventStore
	Notifier  Notifier
	Homes     HomeLocator
	Routes    RouteCorpus
	Publisher EventPublisher
	Clock     Clock
	Location  *time.Location // zone for calendar days and late-night hours
	Logger    *slog.Logger
}

// userState holds one user's rolling windows and counters. mu is held for
// the whole of an ingestion call.
type userState struct {
	mu        sync.Mutex
	locations *Buffer[LocationSample]
	health    *Buffer[HealthSample]
	checkins  *Buffer[time.Time]
	sosCount  int
	sosDay    string
	latch     escalationLatch
}

func newUserState() *userState {
	return &userState{
		locations: NewBuffer[LocationSample](LocationBufferSize),
		health:    NewBuffer[HealthSample](HealthBufferSize),
		checkins:  NewBuffer[time.Time](CheckInBufferSize),
	}
}

// Engine turns user signals into unusual-activity events and escalations
type Engine struct {
	settings  *SettingsStore
	events    EventStore
	notifier  Notifier
	homes     HomeLocator
	routes    RouteCorpus
	publisher EventPublisher
	clock     Clock
	loc       *time.Location
	logger    *slog.Logger
	newID     func() string

	mu    sync.RWMutex
	users map[string]*userState
}

// NewEngine validates the dependencies and creates an engine
func NewEngine(deps Dependencies) (*Engine, error) {
	switch {
	case deps.Settings == nil:
		return nil, errors.New("detection engine requires a settings store")
	case deps.Events == nil:
		return nil, errors.New("detection engine requires an event store")
	case deps.Notifier == nil:
		return nil, errors.New("detection engine requires a notifier")
	case deps.Homes == nil:
		return nil, errors.New("detection engine requires a home locator")
	case deps.Routes == nil:
		return nil, errors.New("detection engine requires a route corpus")
	}

	e := &Engine{
		settings:  deps.Settings,
		events:    deps.Events,
		notifier:  deps.Notifier,
		homes:     deps.Homes,
		routes:    deps.Routes,
		publisher: deps.Publisher,
		clock:     deps.Clock,
		loc:       deps.Location,
		logger:    deps.Logger,
		newID:     uuid.NewString,
		users:     make(map[string]*userState),
	}
	if e.clock == nil {
		e.clock = systemClock{}
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	return e, nil
}

// Settings exposes the engine's settings store
func (e *Engine) Settings() *SettingsStore {
	return e.settings
}

func (e *Engine) state(userID string) *userState {
	e.mu.RLock()
	s, ok := e.users[userID]
	e.mu.RUnlock()
	if ok {
		return s
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok = e.users[userID]; !ok {
		s = newUserState()
		e.users[userID] = s
	}
	return s
}

// Ingest feeds one signal for a user through the applicable rules, persists
// what they emit and re-runs the escalation policy. Persistence and
// notification failures are logged and do not fail the call; the emitted
// events are returned either way.
func (e *Engine) Ingest(ctx context.Context, userID string, sig Signal) ([]Event, error) {
	if userID == "" {
		return nil, &ValidationError{Signal: sig.Type, Field: "userId", Reason: "is required"}
	}
	if err := sig.Validate(); err != nil {
		return nil, err
	}

	state := e.state(userID)
	state.mu.Lock()
	defer state.mu.Unlock()

	settings := e.settings.Get(ctx, userID)
	now := e.clock.Now()

	var detected []*Event
	switch sig.Type {
	case SignalLocation:
		detected = e.ingestLocation(ctx, userID, state, settings, *sig.Location)
	case SignalCheckIn:
		detected = e.ingestCheckIn(state, settings, sig.CheckIn, now)
	case SignalSOS:
		detected = e.ingestSOS(state, settings, sig.SOS, now)
	case SignalHealth:
		state.health.Push(*sig.Health)
		if settings.TrackHealthAnomaly {
			detected = append(detected, evaluateHealthAnomalies(settings, state.health.Items(), now))
		}
	}

	events := make([]Event, 0, len(detected))
	for _, ev := range detected {
		if ev == nil {
			continue
		}
		ev.ID = e.newID()
		ev.UserID = userID
		ev.Status = StatusActive
		events = append(events, *ev)
	}

	for _, ev := range events {
		e.logger.Info("Unusual activity detected",
			"user_id", userID,
			"event_id", ev.ID,
			"category", ev.Category,
			"severity", ev.Severity)

		if err := e.events.Append(ctx, ev); err != nil {
			e.logger.Error("Failed to store unusual activity",
				"user_id", userID,
				"event_id", ev.ID,
				"error", err)
		}

		if settings.NotificationEnabled && e.publisher != nil {
			if err := e.publisher.PublishEvent(ctx, ev); err != nil {
				e.logger.Error("Failed to publish unusual activity",
					"event_id", ev.ID,
					"error", err)
			}
		}
	}

	e.checkEscalation(ctx, userID, state, settings, now)

	return events, nil
}

func (e *Engine) ingestLocation(ctx context.Context, userID string, state *userState, settings DetectionSettings, sample LocationSample) []*Event {
	state.locations.Push(sample)

	var detected []*Event

	if settings.TrackLateNightExit {
		home, err := e.homes.HomeLocation(ctx, userID)
		if err != nil {
			e.logger.Warn("Home location unavailable, skipping safe-zone check",
				"user_id", userID,
				"error", err)
		} else {
			detected = append(detected, evaluateLateNightExit(settings, sample, home, e.loc))
		}
	}

	if settings.TrackRouteDeviation {
		routes, err := e.routes.NormalRoutes(ctx, userID)
		if err != nil {
			e.logger.Warn("Normal routes unavailable, skipping route check",
				"user_id", userID,
				"error", err)
		} else {
			detected = append(detected, evaluateRouteDeviation(sample, state.locations.Last(RouteWindow), routes))
		}
	}

	return detected
}

func (e *Engine) ingestCheckIn(state *userState, settings DetectionSettings, checkin *CheckIn, now time.Time) []*Event {
	at := now
	if checkin != nil && !checkin.Timestamp.IsZero() {
		at = checkin.Timestamp
	}
	state.checkins.Push(at)

	if !settings.TrackMissedCheckin {
		return nil
	}
	return []*Event{evaluateMissedCheckins(state.checkins.Items(), now, e.loc)}
}

func (e *Engine) ingestSOS(state *userState, settings DetectionSettings, sos *SOSTrigger, now time.Time) []*Event {
	at := now
	if sos != nil && !sos.Timestamp.IsZero() {
		at = sos.Timestamp
	}

	today := at.In(e.loc).Format(time.DateOnly)
	if state.sosDay != today {
		state.sosCount = 0
		state.sosDay = today
	}
	state.sosCount++

	if !settings.TrackRepeatedSOS {
		return nil
	}

	var location *geo.Point
	if sos != nil && sos.Location != nil {
		p := *sos.Location
		location = &p
	}
	return []*Event{evaluateRepeatedSOS(settings, state.sosCount, at, location)}
}

// CheckEscalation runs the escalation policy for a user without ingesting
// a signal. It returns the escalation if one fired.
func (e *Engine) CheckEscalation(ctx context.Context, userID string) *Escalation {
	state := e.state(userID)
	state.mu.Lock()
	defer state.mu.Unlock()

	return e.checkEscalation(ctx, userID, state, e.settings.Get(ctx, userID), e.clock.Now())
}
