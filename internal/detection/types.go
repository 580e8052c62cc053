package detection

import (
	"time"

	"github.com/saaga0h/guardian-platform/internal/geo"
)

// Category identifies the rule that produced an event
type Category string

const (
	CategoryLateNightExit  Category = "late_night_exit"
	CategoryRouteDeviation Category = "route_deviation"
	CategoryMissedCheckin  Category = "missed_checkin"
	CategoryRepeatedSOS    Category = "repeated_sos"
	CategoryHealthAnomaly  Category = "health_anomaly"
)

// Severity is an ordinal classification, low < medium < high < critical
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities; unknown values rank below low
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Status is the lifecycle state of an event
type Status string

const (
	StatusActive        Status = "active"
	StatusResolved      Status = "resolved"
	StatusInvestigating Status = "investigating"
)

// SignalType selects which payload of a Signal is populated
type SignalType string

const (
	SignalLocation SignalType = "location"
	SignalCheckIn  SignalType = "checkin"
	SignalSOS      SignalType = "sos"
	SignalHealth   SignalType = "health"
)

// ParseSignalType maps a wire name to a SignalType
func ParseSignalType(s string) (SignalType, error) {
	switch t := SignalType(s); t {
	case SignalLocation, SignalCheckIn, SignalSOS, SignalHealth:
		return t, nil
	default:
		return "", ErrUnknownSignal
	}
}

// LocationSample is a single position fix
type LocationSample struct {
	Latitude  float64   `json:"latitude" yaml:"latitude"`
	Longitude float64   `json:"longitude" yaml:"longitude"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Accuracy  *float64  `json:"accuracy,omitempty" yaml:"accuracy,omitempty"`
}

// Point returns the sample's coordinate
func (s LocationSample) Point() geo.Point {
	return geo.Point{Latitude: s.Latitude, Longitude: s.Longitude}
}

// HealthSample carries whichever metrics the device reported. Nil means not measured.
type HealthSample struct {
	HeartRate  *float64  `json:"heartRate,omitempty" yaml:"heartRate,omitempty"`
	Steps      *int      `json:"steps,omitempty" yaml:"steps,omitempty"`
	SleepHours *float64  `json:"sleepHours,omitempty" yaml:"sleepHours,omitempty"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
}

// CheckIn is a manual "I'm okay" from the user. A zero Timestamp means now.
type CheckIn struct {
	Timestamp time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// SOSTrigger is a manual SOS press
type SOSTrigger struct {
	Timestamp time.Time  `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Location  *geo.Point `json:"location,omitempty" yaml:"location,omitempty"`
}

// Signal is one typed input to the engine. Exactly the payload matching
// Type is read.
type Signal struct {
	Type     SignalType
	Location *LocationSample
	Health   *HealthSample
	CheckIn  *CheckIn
	SOS      *SOSTrigger
}

// Event is an unusual activity detected by one of the rules
type Event struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Category  Category       `json:"eventType"`
	Details   string         `json:"details"`
	Timestamp time.Time      `json:"timestamp"`
	Status    Status         `json:"status"`
	Severity  Severity       `json:"severity"`
	Location  *geo.Point     `json:"location,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TriggerUnusualActivities is the trigger type carried by automatic escalations
const TriggerUnusualActivities = "unusual_activities"

// Escalation is the automatic emergency hand-off raised when several events
// pile up in a short window
type Escalation struct {
	UserID                 string     `json:"userId"`
	TriggerType            string     `json:"triggerType"`
	ContributingCategories []Category `json:"activities"`
	Timestamp              time.Time  `json:"timestamp"`
	Location               *geo.Point `json:"location,omitempty"`
}
