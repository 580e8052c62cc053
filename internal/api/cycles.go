package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/saaga0h/guardian-platform/internal/cycle"
	"github.com/saaga0h/guardian-platform/internal/detection"
)

type cycleStartRequest struct {
	StartDate *time.Time `json:"startDate" binding:"required"`
	EndDate   *time.Time `json:"endDate"`
	FlowLevel string     `json:"flowLevel" binding:"required"`
	Symptoms  []string   `json:"symptoms"`
	Notes     string     `json:"notes"`
}

// parseDate accepts RFC 3339 timestamps and bare dates
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}

func (h *handler) requireCycles(c *gin.Context) bool {
	if h.cycles == nil {
		fail(c, http.StatusNotImplemented, "cycle tracking not configured")
		return false
	}
	return true
}

func (h *handler) logCycleStart(c *gin.Context) {
	if !h.requireCycles(c) {
		return
	}

	var req cycleStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid cycle start: "+err.Error())
		return
	}

	entry := cycle.NewCycle(c.Param("userId"), *req.StartDate, req.FlowLevel)
	entry.EndDate = req.EndDate
	entry.Notes = req.Notes
	if req.Symptoms != nil {
		entry.Symptoms = req.Symptoms
	}

	logged, err := h.cycles.LogCycleStart(c.Request.Context(), entry)
	if err != nil {
		failWithError(c, err)
		return
	}
	success(c, http.StatusCreated, logged)
}

func (h *handler) listCycles(c *gin.Context) {
	if !h.requireCycles(c) {
		return
	}

	cycles, err := h.cycles.Cycles(c.Request.Context(), c.Param("userId"))
	if err != nil {
		failWithError(c, err)
		return
	}
	if cycles == nil {
		cycles = []cycle.Cycle{}
	}
	success(c, http.StatusOK, cycles)
}

func (h *handler) cycleInsights(c *gin.Context) {
	if !h.requireCycles(c) {
		return
	}

	ctx := c.Request.Context()
	userID := c.Param("userId")

	cycles, err := h.cycles.Cycles(ctx, userID)
	if err != nil {
		failWithError(c, err)
		return
	}
	logs, err := h.cycles.SymptomLogs(ctx, userID)
	if err != nil {
		failWithError(c, err)
		return
	}
	success(c, http.StatusOK, cycle.Insights(cycles, logs, h.clock.Now()))
}

// currentCycleDay reads lastPeriod and cycleLength from the query. Without
// lastPeriod the user's latest logged cycle supplies both.
func (h *handler) currentCycleDay(c *gin.Context) {
	var (
		lastPeriod  time.Time
		cycleLength int
	)

	if raw := c.Query("cycleLength"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			fail(c, http.StatusBadRequest, "cycleLength must be a positive integer")
			return
		}
		cycleLength = n
	}

	if raw := c.Query("lastPeriod"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, "lastPeriod must be a date or RFC 3339 timestamp")
			return
		}
		lastPeriod = t
	} else {
		if !h.requireCycles(c) {
			return
		}
		latest, err := h.cycles.LatestCycle(c.Request.Context(), c.Param("userId"))
		if err != nil {
			failWithError(c, err)
			return
		}
		lastPeriod = latest.StartDate
		if cycleLength == 0 {
			cycleLength = latest.CycleLength
		}
	}

	success(c, http.StatusOK, cycle.CurrentDay(lastPeriod, cycleLength, h.clock.Now()))
}

func (h *handler) recommendations(c *gin.Context) {
	phase := cycle.Phase(c.Query("phase"))
	switch phase {
	case cycle.PhaseMenstrual, cycle.PhaseFollicular, cycle.PhaseOvulation, cycle.PhaseLuteal:
	default:
		fail(c, http.StatusBadRequest, "phase must be one of Menstrual, Follicular, Ovulation, Luteal")
		return
	}

	success(c, http.StatusOK, gin.H{
		"phase":           phase,
		"recommendations": cycle.Recommendations(phase, c.QueryArray("symptoms")),
	})
}

// logSymptoms stores the log and answers with any safety alerts it raises
func (h *handler) logSymptoms(c *gin.Context) {
	if !h.requireCycles(c) {
		return
	}

	var entry cycle.SymptomLog
	if err := c.ShouldBindJSON(&entry); err != nil {
		fail(c, http.StatusBadRequest, "invalid symptom log: "+err.Error())
		return
	}
	userID := c.Param("userId")
	entry.ID = ""
	entry.UserID = userID

	now := h.clock.Now()
	if entry.Date.IsZero() {
		entry.Date = now
	}

	logged, err := h.cycles.LogSymptoms(c.Request.Context(), entry)
	if err != nil {
		failWithError(c, err)
		return
	}

	alerts := detection.CheckSymptomTriggers(userID, detection.SymptomLog{
		Date:     logged.Date,
		Cramps:   logged.Cramps,
		Symptoms: logged.Symptoms,
		Notes:    logged.Notes,
	}, now)
	if alerts == nil {
		alerts = []detection.SafetyAlert{}
	}
	if len(alerts) > 0 {
		h.logger.Info("Symptom safety alerts raised",
			"user_id", userID,
			"log_id", logged.ID,
			"alerts", len(alerts))
	}

	success(c, http.StatusCreated, gin.H{"log": logged, "alerts": alerts})
}

func (h *handler) listSymptomLogs(c *gin.Context) {
	if !h.requireCycles(c) {
		return
	}

	logs, err := h.cycles.SymptomLogs(c.Request.Context(), c.Param("userId"))
	if err != nil {
		failWithError(c, err)
		return
	}
	if logs == nil {
		logs = []cycle.SymptomLog{}
	}
	success(c, http.StatusOK, logs)
}
