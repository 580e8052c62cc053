package detection

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/saaga0h/guardian-platform/internal/geo"
)

// Rule constants
const (
	RouteDeviationThreshold = 500.0 // meters
	RouteWindow             = 10    // recent locations compared against each route
	MinNormalRoutes         = 3
	HealthWindow            = time.Hour
	CriticalSOSCount        = 5

	checkinDayStartHour = 8
	checkinDayEndHour   = 22
	checkinCadenceHours = 2

	heartRateLimit  = 100.0
	stepCountLimit  = 1000
	sleepHoursLimit = 4.0
)

// Health anomaly labels
const (
	AnomalyElevatedHeartRate = "Elevated Heart Rate"
	AnomalyLowStepCount      = "Low Step Count"
	AnomalyPoorSleep         = "Poor Sleep Quality"
)

// Rule evaluators are pure: they read settings and buffered signals and
// return at most one event with ID, UserID and Status left for the engine.

// isLateNight reports whether hour h falls in [start, end), wrapping past
// midnight when start > end
func isLateNight(h, start, end int) bool {
	if start <= end {
		return start <= h && h < end
	}
	return h >= start || h < end
}

func evaluateLateNightExit(s DetectionSettings, sample LocationSample, home geo.Point, loc *time.Location) *Event {
	local := sample.Timestamp.In(loc)
	start, end := s.lateNightHours()
	if !isLateNight(local.Hour(), start, end) {
		return nil
	}

	radius := s.safeZoneRadius()
	distance := geo.Haversine(home, sample.Point())
	if distance <= radius {
		return nil
	}

	point := sample.Point()
	daylight := geo.DaylightAt(point, sample.Timestamp)

	return &Event{
		Category:  CategoryLateNightExit,
		Details:   fmt.Sprintf("User detected outside safe zone during late night hours (%s)", local.Format("15:04:05")),
		Timestamp: sample.Timestamp,
		Severity:  SeverityHigh,
		Location:  &point,
		Metadata: map[string]any{
			"safeZoneRadius":   radius,
			"distanceFromHome": math.Round(distance),
			"sunAltitude":      daylight.SunAltitude,
			"isDark":           daylight.IsDark,
		},
	}
}

func evaluateRouteDeviation(sample LocationSample, recent []LocationSample, routes []geo.Route) *Event {
	if len(routes) < MinNormalRoutes {
		return nil
	}

	recentRoute := make(geo.Route, 0, len(recent))
	for _, l := range recent {
		recentRoute = append(recentRoute, l.Point())
	}

	deviated := false
	for _, route := range routes {
		if geo.RouteDeviation(recentRoute, route) > RouteDeviationThreshold {
			deviated = true
			break
		}
	}
	if !deviated {
		return nil
	}

	point := sample.Point()
	metadata := map[string]any{}
	if d, ok := geo.NearestDistance(point, routes); ok {
		metadata["deviationDistance"] = d
	}

	return &Event{
		Category:  CategoryRouteDeviation,
		Details:   "Significant deviation from normal travel routes detected",
		Timestamp: sample.Timestamp,
		Severity:  SeverityMedium,
		Location:  &point,
		Metadata:  metadata,
	}
}

// expectedCheckins is one per two-hour block between 08:00 and 22:00
func expectedCheckins(hour int) int {
	if hour < checkinDayStartHour || hour > checkinDayEndHour {
		return 0
	}
	return (hour-checkinDayStartHour)/checkinCadenceHours + 1
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func evaluateMissedCheckins(checkins []time.Time, now time.Time, loc *time.Location) *Event {
	local := now.In(loc)
	expected := expectedCheckins(local.Hour())

	actual := 0
	for _, c := range checkins {
		if sameDay(c.In(loc), local) {
			actual++
		}
	}

	missed := expected - actual
	if missed <= 0 {
		return nil
	}

	severity := SeverityMedium
	if missed > 2 {
		severity = SeverityHigh
	}

	return &Event{
		Category:  CategoryMissedCheckin,
		Details:   fmt.Sprintf("User missed %d expected check-in(s)", missed),
		Timestamp: now,
		Severity:  severity,
		Metadata: map[string]any{
			"missedCheckins":   missed,
			"expectedCheckins": expected,
		},
	}
}

func evaluateRepeatedSOS(s DetectionSettings, count int, now time.Time, location *geo.Point) *Event {
	if count < s.sosThreshold() {
		return nil
	}

	severity := SeverityHigh
	if count >= CriticalSOSCount {
		severity = SeverityCritical
	}

	return &Event{
		Category:  CategoryRepeatedSOS,
		Details:   fmt.Sprintf("Multiple SOS triggers detected (%d times today)", count),
		Timestamp: now,
		Severity:  severity,
		Location:  location,
		Metadata:  map[string]any{"sosCount": count},
	}
}

// healthAnomalies lists the distinct breaches among samples taken in the
// trailing hour, in a fixed order
func healthAnomalies(samples []HealthSample, now time.Time) []string {
	since := now.Add(-HealthWindow)

	var heart, steps, sleep bool
	for _, h := range samples {
		if h.Timestamp.Before(since) {
			continue
		}
		if h.HeartRate != nil && *h.HeartRate > heartRateLimit {
			heart = true
		}
		if h.Steps != nil && *h.Steps < stepCountLimit {
			steps = true
		}
		if h.SleepHours != nil && *h.SleepHours < sleepHoursLimit {
			sleep = true
		}
	}

	var anomalies []string
	if heart {
		anomalies = append(anomalies, AnomalyElevatedHeartRate)
	}
	if steps {
		anomalies = append(anomalies, AnomalyLowStepCount)
	}
	if sleep {
		anomalies = append(anomalies, AnomalyPoorSleep)
	}
	return anomalies
}

func evaluateHealthAnomalies(s DetectionSettings, samples []HealthSample, now time.Time) *Event {
	anomalies := healthAnomalies(samples, now)
	if len(anomalies) == 0 || len(anomalies) < s.healthAnomalyThreshold() {
		return nil
	}

	return &Event{
		Category:  CategoryHealthAnomaly,
		Details:   "Multiple health anomalies detected: " + strings.Join(anomalies, ", "),
		Timestamp: now,
		Severity:  SeverityMedium,
		Metadata:  map[string]any{"anomalies": anomalies},
	}
}
