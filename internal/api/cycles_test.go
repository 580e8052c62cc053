package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/saaga0h/guardian-platform/internal/cycle"
	"github.com/saaga0h/guardian-platform/internal/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCycleLifecycle(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodGet, "/api/v1/users/u1/cycles/current-day", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp := f.do(t, http.MethodPost, "/api/v1/users/u1/cycles", `{"startDate":"2024-02-09T00:00:00Z","flowLevel":"medium"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decodeData[cycle.Cycle](t, resp)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "u1", first.UserID)
	assert.Equal(t, cycle.DefaultCycleLength, first.CycleLength)
	assert.Equal(t, cycle.DefaultPeriodLength, first.PeriodLength)

	w, _ = f.do(t, http.MethodPost, "/api/v1/users/u1/cycles", `{"startDate":"2024-03-01T00:00:00Z","flowLevel":"heavy"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w, resp = f.do(t, http.MethodGet, "/api/v1/users/u1/cycles", "")
	require.Equal(t, http.StatusOK, w.Code)
	cycles := decodeData[[]cycle.Cycle](t, resp)
	require.Len(t, cycles, 2)
	assert.Equal(t, 21, cycles[0].CycleLength)

	// Latest start was nine and a half days before the frozen clock
	w, resp = f.do(t, http.MethodGet, "/api/v1/users/u1/cycles/current-day", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, cycle.Day{CycleDay: 10, Phase: cycle.PhaseFollicular, PhaseDay: 5}, decodeData[cycle.Day](t, resp))

	w, resp = f.do(t, http.MethodGet, "/api/v1/users/u1/cycles/insights", "")
	require.Equal(t, http.StatusOK, w.Code)
	insight := decodeData[cycle.Insight](t, resp)
	assert.Equal(t, 25, insight.AverageCycleLength)
	assert.Equal(t, cycle.Regular, insight.CycleRegularity)
	assert.Empty(t, insight.IrregularityAlerts)
	assert.True(t, time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC).Equal(insight.NextPeriodPrediction))
}

func TestLogCycleStart_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing start", body: `{"flowLevel":"light"}`},
		{name: "spotting is not a cycle flow", body: `{"startDate":"2024-03-01T00:00:00Z","flowLevel":"spotting"}`},
		{name: "end before start", body: `{"startDate":"2024-03-01T00:00:00Z","endDate":"2024-02-01T00:00:00Z","flowLevel":"light"}`},
		{name: "malformed json", body: `{"startDate":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			w, _ := f.do(t, http.MethodPost, "/api/v1/users/u1/cycles", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestCurrentCycleDay_Query(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		want       cycle.Day
	}{
		{name: "bare date", query: "lastPeriod=2024-02-25", wantStatus: http.StatusOK, want: cycle.Day{CycleDay: 15, Phase: cycle.PhaseOvulation, PhaseDay: 2}},
		{name: "timestamp", query: "lastPeriod=2024-03-08T00:00:00Z", wantStatus: http.StatusOK, want: cycle.Day{CycleDay: 3, Phase: cycle.PhaseMenstrual, PhaseDay: 3}},
		{name: "overdue with short cycle", query: "lastPeriod=2024-02-25&cycleLength=10", wantStatus: http.StatusOK, want: cycle.Day{CycleDay: 1, Phase: cycle.PhaseMenstrual, PhaseDay: 1}},
		{name: "bad date", query: "lastPeriod=yesterday", wantStatus: http.StatusBadRequest},
		{name: "bad length", query: "lastPeriod=2024-02-25&cycleLength=0", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			w, resp := f.do(t, http.MethodGet, "/api/v1/users/u1/cycles/current-day?"+tt.query, "")
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.want, decodeData[cycle.Day](t, resp))
			}
		})
	}
}

func TestRecommendationsEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCount  int
	}{
		{name: "menstrual with cramps", query: "phase=Menstrual&symptoms=cramps", wantStatus: http.StatusOK, wantCount: 5},
		{name: "luteal with mood swings", query: "phase=Luteal&symptoms=bloating&symptoms=mood%20swings", wantStatus: http.StatusOK, wantCount: 5},
		{name: "ovulation", query: "phase=Ovulation", wantStatus: http.StatusOK, wantCount: 3},
		{name: "missing phase", query: "", wantStatus: http.StatusBadRequest},
		{name: "lowercase phase", query: "phase=luteal", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			w, resp := f.do(t, http.MethodGet, "/api/v1/users/u1/cycles/recommendations?"+tt.query, "")
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus == http.StatusOK {
				body := decodeData[struct {
					Recommendations []string `json:"recommendations"`
				}](t, resp)
				assert.Len(t, body.Recommendations, tt.wantCount)
			}
		})
	}
}

func TestSymptomLogs(t *testing.T) {
	f := newFixture(t)

	w, resp := f.do(t, http.MethodPost, "/api/v1/users/u1/symptom-logs",
		`{"cramps":"severe","fatigue":8,"mood":"sad","symptoms":["headache","Fainting spells"],"flowLevel":"heavy"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decodeData[struct {
		Log    cycle.SymptomLog        `json:"log"`
		Alerts []detection.SafetyAlert `json:"alerts"`
	}](t, resp)
	assert.NotEmpty(t, body.Log.ID)
	assert.True(t, noon.Equal(body.Log.Date))
	require.Len(t, body.Alerts, 2)
	assert.Equal(t, detection.TriggerSeverePain, body.Alerts[0].TriggerType)
	assert.Equal(t, detection.TriggerEmergencySymptom, body.Alerts[1].TriggerType)

	w, _ = f.do(t, http.MethodPost, "/api/v1/users/u1/symptom-logs",
		`{"cramps":"none","fatigue":0,"mood":"happy","symptoms":[],"flowLevel":"none"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = f.do(t, http.MethodGet, "/api/v1/users/u1/symptom-logs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeData[[]cycle.SymptomLog](t, resp), 1)

	_, resp = f.do(t, http.MethodGet, "/api/v1/users/u1/cycles/insights", "")
	insight := decodeData[cycle.Insight](t, resp)
	assert.Equal(t, []string{"headache", "Fainting spells"}, insight.CommonSymptoms)
	assert.Equal(t, map[string]int{"sad": 1}, insight.MoodPatterns)
	assert.Equal(t, cycle.DefaultCycleLength, insight.AverageCycleLength)
}
