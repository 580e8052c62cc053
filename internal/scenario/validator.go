package scenario

import (
	"fmt"
	"time"

	"github.com/saaga0h/guardian-platform/internal/detection"
)

// ValidateScenario performs validation checks on a loaded scenario and
// resolves its start time and time zone
func ValidateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}

	if s.Setup.UserID == "" {
		return fmt.Errorf("setup.user_id is required")
	}

	if s.Setup.RoutesGeoJSON != "" && s.Setup.RoutesFile != "" {
		return fmt.Errorf("setup: routes_geojson and routes_file are mutually exclusive")
	}

	start, err := time.Parse(time.RFC3339, s.Start)
	if err != nil {
		return fmt.Errorf("start must be an RFC3339 time: %w", err)
	}
	s.startTime = start

	tz := s.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	s.location = loc

	if err := validateSignals(s.Signals); err != nil {
		return fmt.Errorf("signals validation failed: %w", err)
	}

	if err := validateExpectations(s.Expectations); err != nil {
		return fmt.Errorf("expectations validation failed: %w", err)
	}

	return nil
}

func validateSignals(steps []SignalStep) error {
	if len(steps) == 0 {
		return fmt.Errorf("at least one signal is required")
	}

	for i, step := range steps {
		if step.At < 0 {
			return fmt.Errorf("signal %d: at cannot be negative", i)
		}
		if _, err := detection.ParseSignalType(step.Type); err != nil {
			return fmt.Errorf("signal %d: %w: %q", i, err, step.Type)
		}
		if step.Description == "" {
			return fmt.Errorf("signal %d: description is required", i)
		}
	}

	return nil
}

func validateExpectations(exps []Expectation) error {
	if len(exps) == 0 {
		return fmt.Errorf("at least one expectation is required")
	}

	for i, exp := range exps {
		if exp.Description == "" {
			return fmt.Errorf("expectation %d: description is required", i)
		}

		hasMatch := len(exp.Match) > 0
		hasEscalations := exp.Escalations != nil
		if hasMatch == hasEscalations {
			return fmt.Errorf("expectation %d: exactly one of match or escalations is required", i)
		}
		if exp.Count != nil && *exp.Count < 0 {
			return fmt.Errorf("expectation %d: count cannot be negative", i)
		}
		if exp.Count != nil && !hasMatch {
			return fmt.Errorf("expectation %d: count only applies to match", i)
		}
		if hasEscalations && *exp.Escalations < 0 {
			return fmt.Errorf("expectation %d: escalations cannot be negative", i)
		}
	}

	return nil
}
