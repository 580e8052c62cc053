package detection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/saaga0h/guardian-platform/internal/geo"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

type memoryEvents struct {
	mu        sync.Mutex
	events    []Event
	appendErr error
}

func (m *memoryEvents) Append(ctx context.Context, event Event) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memoryEvents) ListSince(ctx context.Context, userID string, since time.Time) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.UserID == userID && !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryEvents) MarkResolved(ctx context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		if m.events[i].ID == eventID {
			m.events[i].Status = StatusResolved
			return nil
		}
	}
	return fmt.Errorf("event %s: %w", eventID, ErrNotFound)
}

func (m *memoryEvents) Clear(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.events[:0]
	for _, e := range m.events {
		if e.UserID != userID {
			kept = append(kept, e)
		}
	}
	m.events = kept
	return nil
}

type recordingNotifier struct {
	mu          sync.Mutex
	escalations []Escalation
}

func (n *recordingNotifier) NotifyEscalation(ctx context.Context, escalation Escalation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.escalations = append(n.escalations, escalation)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.escalations)
}

type recordingPublisher struct {
	events []Event
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, event Event) error {
	p.events = append(p.events, event)
	return nil
}

type fixedHome geo.Point

func (h fixedHome) HomeLocation(ctx context.Context, userID string) (geo.Point, error) {
	return geo.Point(h), nil
}

type fixedRoutes []geo.Route

func (r fixedRoutes) NormalRoutes(ctx context.Context, userID string) ([]geo.Route, error) {
	return r, nil
}

type memorySettings struct {
	mu      sync.Mutex
	byUser  map[string]DetectionSettings
	loadErr error
}

func (m *memorySettings) LoadSettings(ctx context.Context, userID string) (DetectionSettings, error) {
	if m.loadErr != nil {
		return DetectionSettings{}, m.loadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byUser[userID]
	if !ok {
		return DetectionSettings{}, ErrNotFound
	}
	return s, nil
}

func (m *memorySettings) SaveSettings(ctx context.Context, userID string, settings DetectionSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byUser == nil {
		m.byUser = make(map[string]DetectionSettings)
	}
	m.byUser[userID] = settings
	return nil
}

var errStoreDown = errors.New("store unavailable")

// harness wires an engine with in-memory collaborators
type harness struct {
	engine    *Engine
	clock     *fakeClock
	events    *memoryEvents
	notifier  *recordingNotifier
	publisher *recordingPublisher
	settings  *memorySettings
}

var (
	home    = geo.Point{Latitude: 40.7128, Longitude: -74.0060}
	farAway = geo.Point{Latitude: 40.7600, Longitude: -74.0060} // ~5.2 km north of home
)

func newHarness(t *testing.T, now time.Time, routes ...geo.Route) *harness {
	t.Helper()

	h := &harness{
		clock:     &fakeClock{now: now},
		events:    &memoryEvents{},
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
		settings:  &memorySettings{},
	}

	engine, err := NewEngine(Dependencies{
		Settings:  NewSettingsStore(h.settings, DefaultSettings(), testLogger()),
		Events:    h.events,
		Notifier:  h.notifier,
		Homes:     fixedHome(home),
		Routes:    fixedRoutes(routes),
		Publisher: h.publisher,
		Clock:     h.clock,
		Location:  time.UTC,
		Logger:    testLogger(),
	})
	require.NoError(t, err)

	h.engine = engine
	return h
}

func (h *harness) patch(t *testing.T, userID string, p SettingsPatch) {
	t.Helper()
	_, err := h.engine.Settings().Update(context.Background(), userID, p)
	require.NoError(t, err)
}

func ptr[T any](v T) *T { return &v }

func locationSignal(p geo.Point, at time.Time) Signal {
	return Signal{Type: SignalLocation, Location: &LocationSample{
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Timestamp: at,
	}}
}
