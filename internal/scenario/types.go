package scenario

import (
	"time"

	"github.com/saaga0h/guardian-platform/internal/detection"
	"github.com/saaga0h/guardian-platform/internal/geo"
)

// Scenario is a scripted sequence of user signals replayed against a
// detection engine on a virtual clock
type Scenario struct {
	Name         string        `yaml:"name" json:"name"`
	Description  string        `yaml:"description" json:"description"`
	Start        string        `yaml:"start" json:"start"`       // RFC3339 virtual start time
	Timezone     string        `yaml:"timezone" json:"timezone"` // defaults to UTC
	Setup        SetupConfig   `yaml:"setup" json:"setup"`
	Signals      []SignalStep  `yaml:"signals" json:"signals"`
	Expectations []Expectation `yaml:"expectations" json:"expectations"`

	// Filled by the loader
	startTime time.Time
	location  *time.Location
}

// SetupConfig defines the user's state before the first signal
type SetupConfig struct {
	UserID        string                 `yaml:"user_id" json:"userId"`
	Home          *geo.Point             `yaml:"home,omitempty" json:"home,omitempty"`
	Settings      map[string]interface{} `yaml:"settings,omitempty" json:"settings,omitempty"`
	RoutesGeoJSON string                 `yaml:"routes_geojson,omitempty" json:"-"`
	RoutesFile    string                 `yaml:"routes_file,omitempty" json:"routesFile,omitempty"`

	routes []geo.Route
}

// SignalStep is one signal delivered At seconds after the start
type SignalStep struct {
	At          int                    `yaml:"at" json:"at"`
	Type        string                 `yaml:"type" json:"type"`
	Payload     map[string]interface{} `yaml:"payload,omitempty" json:"payload,omitempty"`
	Description string                 `yaml:"description" json:"description"`
}

// Expectation checks the replay outcome. Match selects stored events by
// field (matchers supported) and Count, when set, is the exact number
// required; otherwise at least one must match. Escalations checks the
// number of escalations fired.
type Expectation struct {
	Description string                 `yaml:"description" json:"description"`
	Match       map[string]interface{} `yaml:"match,omitempty" json:"match,omitempty"`
	Count       *int                   `yaml:"count,omitempty" json:"count,omitempty"`
	Escalations *int                   `yaml:"escalations,omitempty" json:"escalations,omitempty"`
}

// TestResult is the outcome of replaying a scenario
type TestResult struct {
	Scenario     *Scenario              `json:"scenario"`
	StartTime    time.Time              `json:"startTime"`
	EndTime      time.Time              `json:"endTime"`
	Passed       bool                   `json:"passed"`
	PassedCount  int                    `json:"passedCount"`
	FailedCount  int                    `json:"failedCount"`
	Timeline     []TimelineEntry        `json:"timeline"`
	Events       []detection.Event      `json:"events"`
	Escalations  []detection.Escalation `json:"escalations"`
	Expectations []ExpectationResult    `json:"expectations"`
}

// TimelineEntry records what one signal step produced
type TimelineEntry struct {
	At          time.Time `json:"at"`
	Signal      string    `json:"signal"`
	Description string    `json:"description"`
	Events      []string  `json:"events"` // categories emitted
	Escalated   bool      `json:"escalated"`
}

// ExpectationResult is the result of checking a single expectation
type ExpectationResult struct {
	Expectation Expectation `json:"expectation"`
	Passed      bool        `json:"passed"`
	Reason      string      `json:"reason,omitempty"`
}
