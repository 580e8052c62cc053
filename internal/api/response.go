package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/saaga0h/guardian-platform/internal/cycle"
	"github.com/saaga0h/guardian-platform/internal/detection"
)

// Response is the envelope every endpoint answers with
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Code:    status,
		Message: "ok",
		Data:    data,
	})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{
		Code:    status,
		Message: message,
	})
}

// failWithError maps domain errors onto HTTP statuses
func failWithError(c *gin.Context, err error) {
	var verr *detection.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, detection.ErrUnknownSignal), errors.Is(err, cycle.ErrInvalidEntry):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, detection.ErrNotFound):
		fail(c, http.StatusNotFound, err.Error())
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "internal error")
	}
}
