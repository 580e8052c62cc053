package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/saaga0h/guardian-platform/internal/clock"
	"github.com/saaga0h/guardian-platform/internal/detection"
	"github.com/saaga0h/guardian-platform/internal/geo"
	"github.com/saaga0h/guardian-platform/internal/store"
)

// Runner replays scenarios against an in-memory detection engine
type Runner struct {
	defaults    detection.DetectionSettings
	defaultHome geo.Point
	logger      *slog.Logger
}

// NewRunner creates a runner. defaultHome is used when a scenario does not
// set one.
func NewRunner(defaults detection.DetectionSettings, defaultHome geo.Point, logger *slog.Logger) *Runner {
	return &Runner{
		defaults:    defaults,
		defaultHome: defaultHome,
		logger:      logger,
	}
}

type escalationRecorder struct {
	escalations []detection.Escalation
}

func (r *escalationRecorder) NotifyEscalation(ctx context.Context, esc detection.Escalation) error {
	r.escalations = append(r.escalations, esc)
	return nil
}

// Run replays every signal step in time order and checks the expectations.
// A step whose signal the engine rejects aborts the run.
func (r *Runner) Run(ctx context.Context, s *Scenario) (*TestResult, error) {
	result := &TestResult{
		Scenario:  s,
		StartTime: time.Now(),
	}

	tm := clock.NewTimeManager(r.logger)
	tm.Freeze(s.startTime)

	home := r.defaultHome
	if s.Setup.Home != nil {
		home = *s.Setup.Home
	}

	events := store.NewMemoryEventStore()
	recorder := &escalationRecorder{}
	settings := detection.NewSettingsStore(store.NewMemorySettingsRepository(), r.defaults, r.logger)

	engine, err := detection.NewEngine(detection.Dependencies{
		Settings: settings,
		Events:   events,
		Notifier: recorder,
		Homes:    store.StaticHomeLocator(home),
		Routes:   store.StaticRouteCorpus{s.Setup.UserID: s.Setup.routes},
		Clock:    tm,
		Location: s.location,
		Logger:   r.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build detection engine: %w", err)
	}

	if len(s.Setup.Settings) > 0 {
		patch, err := settingsPatch(s.Setup.Settings)
		if err != nil {
			return nil, err
		}
		if _, err := settings.Update(ctx, s.Setup.UserID, patch); err != nil {
			return nil, fmt.Errorf("failed to apply scenario settings: %w", err)
		}
	}

	steps := make([]SignalStep, len(s.Signals))
	copy(steps, s.Signals)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].At < steps[j].At })

	for i, step := range steps {
		now := s.startTime.Add(time.Duration(step.At) * time.Second)
		tm.Freeze(now)

		sig, err := buildSignal(step, now)
		if err != nil {
			return nil, fmt.Errorf("signal %d (%s): %w", i, step.Description, err)
		}

		before := len(recorder.escalations)
		emitted, err := engine.Ingest(ctx, s.Setup.UserID, sig)
		if err != nil {
			return nil, fmt.Errorf("signal %d (%s): %w", i, step.Description, err)
		}

		entry := TimelineEntry{
			At:          now,
			Signal:      step.Type,
			Description: step.Description,
			Events:      []string{},
			Escalated:   len(recorder.escalations) > before,
		}
		for _, ev := range emitted {
			entry.Events = append(entry.Events, string(ev.Category))
		}
		result.Timeline = append(result.Timeline, entry)

		r.logger.Debug("Scenario step replayed",
			"step", i,
			"signal", step.Type,
			"events", len(emitted),
			"escalated", entry.Escalated)
	}

	result.Events = events.All()
	result.Escalations = recorder.escalations

	for _, exp := range s.Expectations {
		res := checkExpectation(exp, result)
		if res.Passed {
			result.PassedCount++
		} else {
			result.FailedCount++
		}
		result.Expectations = append(result.Expectations, res)
	}

	result.Passed = result.FailedCount == 0
	result.EndTime = time.Now()
	return result, nil
}

// buildSignal encodes the step payload, stamping location and health
// samples with the step time when they carry none
func buildSignal(step SignalStep, now time.Time) (detection.Signal, error) {
	payload := make(map[string]interface{}, len(step.Payload)+1)
	for k, v := range step.Payload {
		payload[k] = v
	}

	t, err := detection.ParseSignalType(step.Type)
	if err != nil {
		return detection.Signal{}, err
	}
	if _, ok := payload["timestamp"]; !ok {
		payload["timestamp"] = now.Format(time.RFC3339)
	}

	var raw []byte
	if len(step.Payload) > 0 || t == detection.SignalLocation || t == detection.SignalHealth {
		raw, err = json.Marshal(payload)
		if err != nil {
			return detection.Signal{}, fmt.Errorf("failed to encode payload: %w", err)
		}
	}

	return detection.DecodeSignal(step.Type, raw)
}

func settingsPatch(values map[string]interface{}) (detection.SettingsPatch, error) {
	var patch detection.SettingsPatch

	raw, err := json.Marshal(values)
	if err != nil {
		return patch, fmt.Errorf("failed to encode scenario settings: %w", err)
	}
	if err := json.Unmarshal(raw, &patch); err != nil {
		return patch, fmt.Errorf("invalid scenario settings: %w", err)
	}
	return patch, nil
}

func checkExpectation(exp Expectation, result *TestResult) ExpectationResult {
	res := ExpectationResult{Expectation: exp}

	if exp.Escalations != nil {
		got := len(result.Escalations)
		res.Passed = got == *exp.Escalations
		if !res.Passed {
			res.Reason = fmt.Sprintf("expected %d escalations, got %d", *exp.Escalations, got)
		}
		return res
	}

	matched := 0
	lastReason := "no events stored"
	for _, ev := range result.Events {
		actual, err := toMap(ev)
		if err != nil {
			res.Reason = err.Error()
			return res
		}
		if ok, reason := Matches(actual, exp.Match); ok {
			matched++
		} else {
			lastReason = reason
		}
	}

	switch {
	case exp.Count != nil && matched != *exp.Count:
		res.Reason = fmt.Sprintf("expected %d matching events, got %d", *exp.Count, matched)
	case exp.Count == nil && matched == 0:
		res.Reason = "no matching event: " + lastReason
	default:
		res.Passed = true
	}
	return res
}

func toMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	return out, nil
}
