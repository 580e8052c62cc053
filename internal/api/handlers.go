package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/saaga0h/guardian-platform/internal/detection"
	"github.com/saaga0h/guardian-platform/internal/geo"
)

const defaultEscalationLimit = 20

func (h *handler) getSettings(c *gin.Context) {
	settings := h.detector.Settings().Get(c.Request.Context(), c.Param("userId"))
	success(c, http.StatusOK, settings)
}

func (h *handler) patchSettings(c *gin.Context) {
	var patch detection.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, http.StatusBadRequest, "invalid settings patch: "+err.Error())
		return
	}

	updated, err := h.detector.Settings().Update(c.Request.Context(), c.Param("userId"), patch)
	if err != nil {
		failWithError(c, err)
		return
	}
	success(c, http.StatusOK, updated)
}

func (h *handler) ingestSignal(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, "failed to read body")
		return
	}

	sig, err := detection.DecodeSignal(c.Param("signalType"), payload)
	if err != nil {
		failWithError(c, err)
		return
	}

	events, err := h.detector.Ingest(c.Request.Context(), c.Param("userId"), sig)
	if err != nil {
		failWithError(c, err)
		return
	}
	if events == nil {
		events = []detection.Event{}
	}
	success(c, http.StatusAccepted, events)
}

func (h *handler) recentEvents(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	events, err := h.detector.RecentEvents(c.Request.Context(), c.Param("userId"), limit)
	if err != nil {
		failWithError(c, err)
		return
	}
	if events == nil {
		events = []detection.Event{}
	}
	success(c, http.StatusOK, events)
}

func (h *handler) unresolvedCount(c *gin.Context) {
	count, err := h.detector.UnresolvedCount(c.Request.Context(), c.Param("userId"))
	if err != nil {
		failWithError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"count": count})
}

func (h *handler) resolveEvent(c *gin.Context) {
	if err := h.detector.MarkResolved(c.Request.Context(), c.Param("eventId")); err != nil {
		failWithError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"id": c.Param("eventId"), "status": detection.StatusResolved})
}

func (h *handler) clearEvents(c *gin.Context) {
	if err := h.detector.ClearEvents(c.Request.Context(), c.Param("userId")); err != nil {
		failWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) checkEscalation(c *gin.Context) {
	esc := h.detector.CheckEscalation(c.Request.Context(), c.Param("userId"))
	success(c, http.StatusOK, gin.H{"escalated": esc != nil, "escalation": esc})
}

func (h *handler) listEscalations(c *gin.Context) {
	if h.escalations == nil {
		fail(c, http.StatusNotImplemented, "escalation log not configured")
		return
	}

	limit := defaultEscalationLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			fail(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	escalations, err := h.escalations.Recent(c.Request.Context(), c.Param("userId"), limit)
	if err != nil {
		failWithError(c, err)
		return
	}
	if escalations == nil {
		escalations = []detection.Escalation{}
	}
	success(c, http.StatusOK, escalations)
}

func (h *handler) checkSymptoms(c *gin.Context) {
	var log detection.SymptomLog
	if err := c.ShouldBindJSON(&log); err != nil {
		fail(c, http.StatusBadRequest, "invalid symptom log: "+err.Error())
		return
	}

	alerts := detection.CheckSymptomTriggers(c.Param("userId"), log, h.clock.Now())
	if alerts == nil {
		alerts = []detection.SafetyAlert{}
	}
	if len(alerts) > 0 {
		h.logger.Info("Symptom safety alerts raised",
			"user_id", c.Param("userId"),
			"alerts", len(alerts))
	}
	success(c, http.StatusOK, alerts)
}

type homeRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

func (h *handler) setHome(c *gin.Context) {
	if h.homes == nil {
		fail(c, http.StatusNotImplemented, "home locations not configured")
		return
	}

	var req homeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid home location: "+err.Error())
		return
	}
	home := geo.Point{Latitude: *req.Latitude, Longitude: *req.Longitude}
	if home.Latitude < -90 || home.Latitude > 90 || home.Longitude < -180 || home.Longitude > 180 {
		fail(c, http.StatusBadRequest, "home location out of range")
		return
	}

	if err := h.homes.SetHomeLocation(c.Request.Context(), c.Param("userId"), home); err != nil {
		failWithError(c, err)
		return
	}
	success(c, http.StatusOK, home)
}

func (h *handler) addRoutes(c *gin.Context) {
	if h.routes == nil {
		fail(c, http.StatusNotImplemented, "route corpus not configured")
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, "failed to read body")
		return
	}
	routes, err := geo.DecodeGeoJSONRoutes(payload)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if len(routes) == 0 {
		fail(c, http.StatusBadRequest, "feature collection holds no routes")
		return
	}
	for i, route := range routes {
		if len(route) < 2 {
			fail(c, http.StatusBadRequest, fmt.Sprintf("route %d needs at least two points", i))
			return
		}
	}

	userID := c.Param("userId")
	for _, route := range routes {
		if err := h.routes.AddRoute(c.Request.Context(), userID, route); err != nil {
			failWithError(c, err)
			return
		}
	}
	h.logger.Info("Normal routes recorded", "user_id", userID, "routes", len(routes))
	success(c, http.StatusOK, gin.H{"added": len(routes)})
}
