package store

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saaga0h/guardian-platform/internal/cycle"
	"github.com/saaga0h/guardian-platform/internal/detection"
	"github.com/saaga0h/guardian-platform/internal/geo"
)

// MemoryEventStore keeps events in process; used by scenario replays and tests
type MemoryEventStore struct {
	mu     sync.RWMutex
	events []detection.Event
}

// NewMemoryEventStore creates an empty in-memory event store
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{}
}

func (m *MemoryEventStore) Append(ctx context.Context, ev detection.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *MemoryEventStore) ListSince(ctx context.Context, userID string, since time.Time) ([]detection.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []detection.Event
	for _, ev := range m.events {
		if ev.UserID == userID && !ev.Timestamp.Before(since) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *MemoryEventStore) MarkResolved(ctx context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.events {
		if m.events[i].ID == eventID {
			m.events[i].Status = detection.StatusResolved
			return nil
		}
	}
	return fmt.Errorf("event %s: %w", eventID, detection.ErrNotFound)
}

func (m *MemoryEventStore) Clear(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.events[:0]
	for _, ev := range m.events {
		if ev.UserID != userID {
			kept = append(kept, ev)
		}
	}
	m.events = kept
	return nil
}

// All returns a copy of every stored event in insertion order
func (m *MemoryEventStore) All() []detection.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]detection.Event(nil), m.events...)
}

// MemorySettingsRepository keeps settings in process
type MemorySettingsRepository struct {
	mu       sync.RWMutex
	settings map[string]detection.DetectionSettings
}

// NewMemorySettingsRepository creates an empty in-memory settings repository
func NewMemorySettingsRepository() *MemorySettingsRepository {
	return &MemorySettingsRepository{settings: make(map[string]detection.DetectionSettings)}
}

func (m *MemorySettingsRepository) LoadSettings(ctx context.Context, userID string) (detection.DetectionSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.settings[userID]
	if !ok {
		return detection.DetectionSettings{}, detection.ErrNotFound
	}
	return s, nil
}

func (m *MemorySettingsRepository) SaveSettings(ctx context.Context, userID string, settings detection.DetectionSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[userID] = settings
	return nil
}

// StaticHomeLocator returns the same safe-zone center for every user
type StaticHomeLocator geo.Point

func (h StaticHomeLocator) HomeLocation(ctx context.Context, userID string) (geo.Point, error) {
	return geo.Point(h), nil
}

// StaticRouteCorpus serves a fixed set of routes per user
type StaticRouteCorpus map[string][]geo.Route

func (c StaticRouteCorpus) NormalRoutes(ctx context.Context, userID string) ([]geo.Route, error) {
	return c[userID], nil
}

// MemoryCycleStore keeps cycles and symptom logs in process
type MemoryCycleStore struct {
	mu     sync.RWMutex
	cycles map[string][]cycle.Cycle
	logs   map[string][]cycle.SymptomLog
}

// NewMemoryCycleStore creates an empty in-memory cycle store
func NewMemoryCycleStore() *MemoryCycleStore {
	return &MemoryCycleStore{
		cycles: make(map[string][]cycle.Cycle),
		logs:   make(map[string][]cycle.SymptomLog),
	}
}

// LogCycleStart stores the cycle in start order and sets the preceding
// cycle's length to the observed gap
func (m *MemoryCycleStore) LogCycleStart(ctx context.Context, c cycle.Cycle) (cycle.Cycle, error) {
	if err := c.Validate(); err != nil {
		return cycle.Cycle{}, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Symptoms == nil {
		c.Symptoms = []string{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	history := m.cycles[c.UserID]
	i := sort.Search(len(history), func(i int) bool { return !history[i].StartDate.Before(c.StartDate) })
	if i > 0 {
		prev := &history[i-1]
		prev.CycleLength = int(math.Round(c.StartDate.Sub(prev.StartDate).Hours() / 24))
	}
	m.cycles[c.UserID] = slices.Insert(history, i, c)
	return c, nil
}

func (m *MemoryCycleStore) Cycles(ctx context.Context, userID string) ([]cycle.Cycle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.cycles[userID]), nil
}

func (m *MemoryCycleStore) LatestCycle(ctx context.Context, userID string) (cycle.Cycle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.cycles[userID]
	if len(history) == 0 {
		return cycle.Cycle{}, fmt.Errorf("no cycle logged for %s: %w", userID, detection.ErrNotFound)
	}
	return history[len(history)-1], nil
}

func (m *MemoryCycleStore) LogSymptoms(ctx context.Context, l cycle.SymptomLog) (cycle.SymptomLog, error) {
	if err := l.Validate(); err != nil {
		return cycle.SymptomLog{}, err
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Symptoms == nil {
		l.Symptoms = []string{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[l.UserID] = append(m.logs[l.UserID], l)
	return l, nil
}

func (m *MemoryCycleStore) SymptomLogs(ctx context.Context, userID string) ([]cycle.SymptomLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.logs[userID]), nil
}
