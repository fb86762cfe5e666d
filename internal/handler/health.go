package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// timestampLayout is ISO-8601 with millisecond precision in UTC, e.g. 2025-01-02T03:04:05.678Z.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// HealthHandler serves the unauthenticated informational endpoints.
type HealthHandler struct {
	now func() time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{now: time.Now}
}

// Health returns a liveness payload. It never depends on auth or upstream state.
func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": h.now().UTC().Format(timestampLayout),
	})
}

// Root answers 404 so the service does not advertise itself.
func (h *HealthHandler) Root(c echo.Context) error {
	return plainStatus(c, http.StatusNotFound)
}
