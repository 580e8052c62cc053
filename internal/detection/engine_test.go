package detection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/saaga0h/guardian-platform/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const user = "user-1"

func TestNewEngine_RequiresCollaborators(t *testing.T) {
	_, err := NewEngine(Dependencies{})
	assert.Error(t, err)

	_, err = NewEngine(Dependencies{
		Settings: NewSettingsStore(&memorySettings{}, DefaultSettings(), testLogger()),
		Events:   &memoryEvents{},
		Notifier: &recordingNotifier{},
		Homes:    fixedHome(home),
	})
	assert.Error(t, err)
}

func TestIngest_LateNightExit(t *testing.T) {
	ctx := context.Background()
	night := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	h := newHarness(t, night)

	events, err := h.engine.Ingest(ctx, user, locationSignal(farAway, night))
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, CategoryLateNightExit, ev.Category)
	assert.Equal(t, SeverityHigh, ev.Severity)
	assert.Equal(t, StatusActive, ev.Status)
	assert.Equal(t, user, ev.UserID)
	assert.NotEmpty(t, ev.ID)

	noon := time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)
	h.clock.Set(noon)
	events, err = h.engine.Ingest(ctx, user, locationSignal(farAway, noon))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestIngest_DisabledRuleEmitsNothing(t *testing.T) {
	ctx := context.Background()
	night := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	h := newHarness(t, night)
	h.patch(t, user, SettingsPatch{TrackLateNightExit: ptr(false)})

	events, err := h.engine.Ingest(ctx, user, locationSignal(farAway, night))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestIngest_RepeatedSOS(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	h := newHarness(t, day)
	sos := Signal{Type: SignalSOS, SOS: &SOSTrigger{}}

	want := []struct {
		count    int
		severity Severity
	}{
		{1, ""},
		{2, SeverityHigh},
		{3, SeverityHigh},
		{4, SeverityHigh},
		{5, SeverityCritical},
	}

	for _, w := range want {
		events, err := h.engine.Ingest(ctx, user, sos)
		require.NoError(t, err)

		if w.severity == "" {
			assert.Empty(t, events, "call %d", w.count)
			continue
		}
		require.Len(t, events, 1, "call %d", w.count)
		assert.Equal(t, CategoryRepeatedSOS, events[0].Category)
		assert.Equal(t, w.severity, events[0].Severity, "call %d", w.count)
		assert.Equal(t, w.count, events[0].Metadata["sosCount"])
	}

	// Next calendar day resets the counter
	h.clock.Set(day.Add(24 * time.Hour))

	events, err := h.engine.Ingest(ctx, user, sos)
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = h.engine.Ingest(ctx, user, sos)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].Metadata["sosCount"])
	assert.Equal(t, SeverityHigh, events[0].Severity)
}

func TestIngest_SOSDayUsesEngineZone(t *testing.T) {
	ctx := context.Background()
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 23:30 and 01:30 New York time fall on different local days
	clock := &fakeClock{now: time.Date(2024, 3, 11, 3, 30, 0, 0, time.UTC)}
	engine, err := NewEngine(Dependencies{
		Settings: NewSettingsStore(&memorySettings{}, DefaultSettings(), testLogger()),
		Events:   &memoryEvents{},
		Notifier: &recordingNotifier{},
		Homes:    fixedHome(home),
		Routes:   fixedRoutes(nil),
		Clock:    clock,
		Location: ny,
		Logger:   testLogger(),
	})
	require.NoError(t, err)

	sos := Signal{Type: SignalSOS}
	_, err = engine.Ingest(ctx, user, sos)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	events, err := engine.Ingest(ctx, user, sos)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestIngest_SOSPayloadTimestamp(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	yesterday := day.Add(-24 * time.Hour)
	h := newHarness(t, day)

	_, err := h.engine.Ingest(ctx, user, Signal{Type: SignalSOS, SOS: &SOSTrigger{Timestamp: yesterday}})
	require.NoError(t, err)

	// Today's first trigger starts a new count
	events, err := h.engine.Ingest(ctx, user, Signal{Type: SignalSOS, SOS: &SOSTrigger{}})
	require.NoError(t, err)
	assert.Empty(t, events)

	stamped := day.Add(-time.Hour)
	events, err = h.engine.Ingest(ctx, user, Signal{Type: SignalSOS, SOS: &SOSTrigger{Timestamp: stamped}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].Metadata["sosCount"])
	assert.True(t, stamped.Equal(events[0].Timestamp))
}

func TestIngest_RouteDeviationNeedsThreeRoutes(t *testing.T) {
	ctx := context.Background()
	noon := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	commute := geo.Route{home, {Latitude: 40.7140, Longitude: -74.0050}}

	few := newHarness(t, noon, commute, commute)
	for i := 0; i < 5; i++ {
		events, err := few.engine.Ingest(ctx, user, locationSignal(geo.Point{Latitude: 41 + float64(i), Longitude: -70}, noon))
		require.NoError(t, err)
		assert.Empty(t, events)
	}

	enough := newHarness(t, noon, commute, commute, commute)
	events, err := enough.engine.Ingest(ctx, user, locationSignal(farAway, noon))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, CategoryRouteDeviation, events[0].Category)
}

func TestIngest_MissedCheckin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC))

	events, err := h.engine.Ingest(ctx, user, Signal{Type: SignalCheckIn, CheckIn: &CheckIn{}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, CategoryMissedCheckin, events[0].Category)
	assert.Equal(t, SeverityHigh, events[0].Severity)
	assert.Equal(t, 3, events[0].Metadata["missedCheckins"])

	events, err = h.engine.Ingest(ctx, user, Signal{Type: SignalCheckIn})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, SeverityMedium, events[0].Severity)
}

func TestIngest_HealthAnomaly(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, now)

	samples := []HealthSample{
		{HeartRate: ptr(130.0), Timestamp: now},
		{Steps: ptr(100), Timestamp: now},
		{SleepHours: ptr(2.5), Timestamp: now},
	}

	var last []Event
	for _, s := range samples {
		sample := s
		events, err := h.engine.Ingest(ctx, user, Signal{Type: SignalHealth, Health: &sample})
		require.NoError(t, err)
		last = events
	}

	require.Len(t, last, 1)
	assert.Equal(t, CategoryHealthAnomaly, last[0].Category)
	assert.Len(t, last[0].Metadata["anomalies"], 3)
}

func TestIngest_ValidationLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, time.Now())

	tests := []struct {
		name string
		sig  Signal
	}{
		{"location without payload", Signal{Type: SignalLocation}},
		{"location without timestamp", Signal{Type: SignalLocation, Location: &LocationSample{Latitude: 1, Longitude: 1}}},
		{"latitude out of range", Signal{Type: SignalLocation, Location: &LocationSample{Latitude: 91, Timestamp: time.Now()}}},
		{"health without timestamp", Signal{Type: SignalHealth, Health: &HealthSample{}}},
		{"negative steps", Signal{Type: SignalHealth, Health: &HealthSample{Steps: ptr(-1), Timestamp: time.Now()}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := h.engine.Ingest(ctx, user, tt.sig)
			assert.Nil(t, events)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.sig.Type, verr.Signal)
		})
	}

	state := h.engine.state(user)
	assert.Zero(t, state.locations.Len())
	assert.Zero(t, state.health.Len())

	_, err := h.engine.Ingest(ctx, user, Signal{Type: "telepathy"})
	assert.ErrorIs(t, err, ErrUnknownSignal)

	_, err = h.engine.Ingest(ctx, "", Signal{Type: SignalSOS})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestIngest_PersistenceFailureStillReturnsEvents(t *testing.T) {
	ctx := context.Background()
	night := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	h := newHarness(t, night)
	h.events.appendErr = errStoreDown

	for i := 0; i < 3; i++ {
		events, err := h.engine.Ingest(ctx, user, locationSignal(farAway, night))
		require.NoError(t, err)
		assert.Len(t, events, 1)
	}

	// Nothing reached the store so the policy has nothing to count
	assert.Zero(t, h.notifier.count())
}

func TestIngest_NotificationGate(t *testing.T) {
	ctx := context.Background()
	night := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	h := newHarness(t, night)

	_, err := h.engine.Ingest(ctx, user, locationSignal(farAway, night))
	require.NoError(t, err)
	assert.Len(t, h.publisher.events, 1)

	h.patch(t, user, SettingsPatch{NotificationEnabled: ptr(false)})

	events, err := h.engine.Ingest(ctx, user, locationSignal(farAway, night))
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Len(t, h.publisher.events, 1)
	assert.Len(t, h.events.events, 2)
}

func seedEvent(t *testing.T, h *harness, id string, at time.Time, category Category) {
	t.Helper()
	require.NoError(t, h.events.Append(context.Background(), Event{
		ID:        id,
		UserID:    user,
		Category:  category,
		Timestamp: at,
		Status:    StatusActive,
		Severity:  SeverityMedium,
	}))
}

func TestCheckEscalation_OncePerWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, now)

	seedEvent(t, h, "e1", now.Add(-20*time.Minute), CategoryRepeatedSOS)
	seedEvent(t, h, "e2", now.Add(-10*time.Minute), CategoryMissedCheckin)
	assert.Nil(t, h.engine.CheckEscalation(ctx, user))

	seedEvent(t, h, "e3", now.Add(-5*time.Minute), CategoryHealthAnomaly)

	esc := h.engine.CheckEscalation(ctx, user)
	require.NotNil(t, esc)
	assert.Equal(t, TriggerUnusualActivities, esc.TriggerType)
	assert.Equal(t, []Category{CategoryRepeatedSOS, CategoryMissedCheckin, CategoryHealthAnomaly}, esc.ContributingCategories)

	// Unchanged inputs do not fire again
	assert.Nil(t, h.engine.CheckEscalation(ctx, user))

	// Neither does a fourth event while the contributors are still in the window
	seedEvent(t, h, "e4", now.Add(-time.Minute), CategoryRepeatedSOS)
	assert.Nil(t, h.engine.CheckEscalation(ctx, user))
	assert.Equal(t, 1, h.notifier.count())

	// Once every contributor has aged out the policy re-arms
	h.clock.Advance(26 * time.Minute) // e3 is now 31 minutes old, e4 is 27
	assert.Nil(t, h.engine.CheckEscalation(ctx, user))

	seedEvent(t, h, "e5", h.clock.Now().Add(-time.Minute), CategoryLateNightExit)
	seedEvent(t, h, "e6", h.clock.Now(), CategoryRouteDeviation)

	esc = h.engine.CheckEscalation(ctx, user)
	require.NotNil(t, esc)
	assert.Equal(t, []Category{CategoryRepeatedSOS, CategoryLateNightExit, CategoryRouteDeviation}, esc.ContributingCategories)
	assert.Equal(t, 2, h.notifier.count())
}

func TestCheckEscalation_RespectsAutoSOSSetting(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	h.patch(t, user, SettingsPatch{AutoSOSEnabled: ptr(false)})

	for i := 0; i < 4; i++ {
		seedEvent(t, h, fmt.Sprintf("e%d", i), now, CategoryRepeatedSOS)
	}

	assert.Nil(t, h.engine.CheckEscalation(ctx, user))
	assert.Zero(t, h.notifier.count())
}

func TestCheckEscalation_ResolvedEventsStillCount(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, now)

	for i := 0; i < 3; i++ {
		seedEvent(t, h, fmt.Sprintf("e%d", i), now, CategoryRepeatedSOS)
	}
	require.NoError(t, h.engine.MarkResolved(ctx, "e0"))

	assert.NotNil(t, h.engine.CheckEscalation(ctx, user))
}

func TestEndToEnd_LateNightThenEscalation(t *testing.T) {
	ctx := context.Background()
	night := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	h := newHarness(t, night)
	h.patch(t, user, SettingsPatch{SOSThreshold: ptr(1), HealthAnomalyThreshold: ptr(1)})

	events, err := h.engine.Ingest(ctx, user, locationSignal(farAway, night))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, CategoryLateNightExit, events[0].Category)
	assert.Equal(t, SeverityHigh, events[0].Severity)
	assert.Zero(t, h.notifier.count())

	h.clock.Advance(5 * time.Minute)
	events, err = h.engine.Ingest(ctx, user, Signal{Type: SignalSOS, SOS: &SOSTrigger{}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Zero(t, h.notifier.count())

	h.clock.Advance(5 * time.Minute)
	events, err = h.engine.Ingest(ctx, user, Signal{Type: SignalHealth, Health: &HealthSample{
		HeartRate: ptr(140.0),
		Timestamp: h.clock.Now(),
	}})
	require.NoError(t, err)
	require.Len(t, events, 1)

	require.Equal(t, 1, h.notifier.count())
	esc := h.notifier.escalations[0]
	assert.Equal(t, user, esc.UserID)
	assert.Equal(t, []Category{CategoryLateNightExit, CategoryRepeatedSOS, CategoryHealthAnomaly}, esc.ContributingCategories)
	require.NotNil(t, esc.Location)
	assert.Equal(t, farAway, *esc.Location)

	// A quiet follow-up ingestion does not fire a second time
	_, err = h.engine.Ingest(ctx, user, Signal{Type: SignalCheckIn})
	require.NoError(t, err)
	assert.Equal(t, 1, h.notifier.count())
}

func TestIngest_ConcurrentUsersKeepBuffersBounded(t *testing.T) {
	ctx := context.Background()
	noon := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, noon)

	var wg sync.WaitGroup
	for u := 0; u < 4; u++ {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			for i := 0; i < 150; i++ {
				_, err := h.engine.Ingest(ctx, userID, locationSignal(home, noon.Add(time.Duration(i)*time.Second)))
				assert.NoError(t, err)
			}
		}(fmt.Sprintf("user-%d", u))
	}
	wg.Wait()

	for u := 0; u < 4; u++ {
		state := h.engine.state(fmt.Sprintf("user-%d", u))
		items := state.locations.Items()
		require.Len(t, items, LocationBufferSize)
		assert.Equal(t, noon.Add(50*time.Second), items[0].Timestamp)
		assert.Equal(t, noon.Add(149*time.Second), items[len(items)-1].Timestamp)
	}
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	h.patch(t, user, SettingsPatch{AutoSOSEnabled: ptr(false)})

	seedEvent(t, h, "old", now.Add(-8*24*time.Hour), CategoryRepeatedSOS)
	seedEvent(t, h, "two-days", now.Add(-48*time.Hour), CategoryMissedCheckin)
	seedEvent(t, h, "hour", now.Add(-time.Hour), CategoryHealthAnomaly)
	seedEvent(t, h, "minute", now.Add(-time.Minute), CategoryLateNightExit)
	seedEvent(t, h, "second", now.Add(-time.Second), CategoryRouteDeviation)

	recent, err := h.engine.RecentEvents(ctx, user, 0)
	require.NoError(t, err)
	require.Len(t, recent, DefaultRecentLimit)
	assert.Equal(t, []string{"second", "minute", "hour"}, []string{recent[0].ID, recent[1].ID, recent[2].ID})

	all, err := h.engine.RecentEvents(ctx, user, 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	count, err := h.engine.UnresolvedCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, h.engine.MarkResolved(ctx, "minute"))
	count, err = h.engine.UnresolvedCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.ErrorIs(t, h.engine.MarkResolved(ctx, "missing"), ErrNotFound)

	require.NoError(t, h.engine.ClearEvents(ctx, user))
	recent, err = h.engine.RecentEvents(ctx, user, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
