package scenario

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/saaga0h/guardian-platform/internal/detection"
	"github.com/saaga0h/guardian-platform/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRunner() *Runner {
	return NewRunner(detection.DefaultSettings(), geo.Point{Latitude: 40.7128, Longitude: -74.0060}, testLogger())
}

const minimalScenario = `
name: minimal
start: "2024-03-10T12:00:00Z"
setup:
  user_id: u1
signals:
  - at: 0
    type: sos
    description: press
expectations:
  - description: nothing escalates
    escalations: 0
`

func TestLoadScenarioFromBytes(t *testing.T) {
	s, err := LoadScenarioFromBytes([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, "u1", s.Setup.UserID)
	assert.Equal(t, "UTC", s.location.String())
	assert.Equal(t, 2024, s.startTime.Year())
	require.Len(t, s.Signals, 1)
	assert.Equal(t, "sos", s.Signals[0].Type)
}

func TestValidateScenario(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{name: "valid", mutate: func(s string) string { return s }},
		{name: "missing name", mutate: func(s string) string { return strings.Replace(s, "name: minimal", "", 1) }, wantErr: "name is required"},
		{name: "bad start", mutate: func(s string) string { return strings.Replace(s, "2024-03-10T12:00:00Z", "noon", 1) }, wantErr: "RFC3339"},
		{name: "bad timezone", mutate: func(s string) string { return s + "timezone: Mars/Base\n" }, wantErr: "invalid timezone"},
		{name: "unknown signal", mutate: func(s string) string { return strings.Replace(s, "type: sos", "type: weather", 1) }, wantErr: "unknown signal type"},
		{name: "negative offset", mutate: func(s string) string { return strings.Replace(s, "at: 0", "at: -5", 1) }, wantErr: "cannot be negative"},
		{name: "missing user", mutate: func(s string) string { return strings.Replace(s, "user_id: u1", "user_id: \"\"", 1) }, wantErr: "user_id is required"},
		{
			name: "expectation with match and escalations",
			mutate: func(s string) string {
				return strings.Replace(s, "escalations: 0", "escalations: 0\n    match: {eventType: repeated_sos}", 1)
			},
			wantErr: "exactly one of match or escalations",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenarioFromBytes([]byte(tt.mutate(minimalScenario)))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMatches(t *testing.T) {
	actual := map[string]interface{}{
		"eventType": "late_night_exit",
		"details":   "User detected outside safe zone during late night hours (23:00:00)",
		"metadata": map[string]interface{}{
			"distanceFromHome": 5200.0,
			"isDark":           true,
			"anomalies":        []interface{}{"Elevated Heart Rate"},
		},
	}

	tests := []struct {
		name     string
		expected interface{}
		want     bool
	}{
		{name: "literal string", expected: map[string]interface{}{"eventType": "late_night_exit"}, want: true},
		{name: "wrong string", expected: map[string]interface{}{"eventType": "repeated_sos"}, want: false},
		{name: "regex", expected: map[string]interface{}{"details": "~late night hours \\(23~"}, want: true},
		{name: "nested comparison", expected: map[string]interface{}{"metadata": map[string]interface{}{"distanceFromHome": ">=1000"}}, want: true},
		{name: "failed comparison", expected: map[string]interface{}{"metadata": map[string]interface{}{"distanceFromHome": "<1000"}}, want: false},
		{name: "int against float", expected: map[string]interface{}{"metadata": map[string]interface{}{"distanceFromHome": 5200}}, want: true},
		{name: "bool", expected: map[string]interface{}{"metadata": map[string]interface{}{"isDark": false}}, want: false},
		{name: "list", expected: map[string]interface{}{"metadata": map[string]interface{}{"anomalies": []interface{}{"Elevated Heart Rate"}}}, want: true},
		{name: "missing key", expected: map[string]interface{}{"severity": "high"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := Matches(actual, tt.expected)
			assert.Equal(t, tt.want, got, reason)
			if !tt.want {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestRunner_LateNightEscalation(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "late_night_escalation.yaml"))
	require.NoError(t, err)

	result, err := newTestRunner().Run(context.Background(), s)
	require.NoError(t, err)

	for _, res := range result.Expectations {
		assert.True(t, res.Passed, "%s: %s", res.Expectation.Description, res.Reason)
	}
	assert.True(t, result.Passed)
	assert.Equal(t, 4, result.PassedCount)

	require.Len(t, result.Escalations, 1)
	esc := result.Escalations[0]
	assert.Equal(t, "user-42", esc.UserID)
	assert.ElementsMatch(t,
		[]detection.Category{detection.CategoryLateNightExit, detection.CategoryRepeatedSOS, detection.CategoryHealthAnomaly},
		esc.ContributingCategories)

	require.Len(t, result.Timeline, 5)
	assert.Equal(t, []string{string(detection.CategoryLateNightExit)}, result.Timeline[0].Events)
	assert.True(t, result.Timeline[3].Escalated)
	assert.False(t, result.Timeline[4].Escalated)
}

func TestRunner_RouteDeviationFromFile(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "route_deviation.yaml"))
	require.NoError(t, err)
	require.Len(t, s.Setup.routes, 3)

	result, err := newTestRunner().Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Empty(t, result.Timeline[0].Events)
}

func TestRunner_FailedExpectations(t *testing.T) {
	s, err := LoadScenarioFromBytes([]byte(`
name: failing
start: "2024-03-10T12:00:00Z"
setup:
  user_id: u1
signals:
  - {at: 0, type: sos, description: one}
  - {at: 10, type: sos, description: two}
expectations:
  - description: wants three SOS events
    match: {eventType: repeated_sos}
    count: 3
  - description: wants a health anomaly
    match: {eventType: health_anomaly}
  - description: wants an escalation
    escalations: 1
`))
	require.NoError(t, err)

	result, err := newTestRunner().Run(context.Background(), s)
	require.NoError(t, err)

	assert.False(t, result.Passed)
	assert.Equal(t, 0, result.PassedCount)
	assert.Equal(t, 3, result.FailedCount)
	assert.Contains(t, result.Expectations[0].Reason, "expected 3 matching events, got 1")

	report := GenerateTimeline(result)
	assert.Contains(t, report, "Result: FAILED")
	assert.Contains(t, report, "✗ wants an escalation")
}

func TestRunner_RejectsInvalidSignal(t *testing.T) {
	s, err := LoadScenarioFromBytes([]byte(`
name: invalid
start: "2024-03-10T12:00:00Z"
setup:
  user_id: u1
signals:
  - at: 0
    type: location
    description: impossible latitude
    payload: {latitude: 123, longitude: 0}
expectations:
  - description: unreachable
    escalations: 0
`))
	require.NoError(t, err)

	_, err = newTestRunner().Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "impossible latitude")
}

func TestSaveSummary(t *testing.T) {
	s, err := LoadScenarioFromBytes([]byte(minimalScenario))
	require.NoError(t, err)
	result, err := newTestRunner().Run(context.Background(), s)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "summary.json")
	require.NoError(t, SaveSummary(result, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, true, decoded["passed"])
}
