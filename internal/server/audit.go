package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

// Audit endpoints expose the immutable trails behind an appointment: raw
// snapshots, committed transitions and the notification log.

func (s *Server) ListSnapshots(c *gin.Context) {
	tenantID, appointmentID, limit, err := auditScope(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	snapshots, err := s.snapshots.ListByAppointment(c.Request.Context(), s.db, tenantID, appointmentID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snapshots})
}

func (s *Server) ListEvents(c *gin.Context) {
	tenantID, appointmentID, limit, err := auditScope(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	events, err := s.events.ListByAppointment(c.Request.Context(), s.db, tenantID, appointmentID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) ListNotifications(c *gin.Context) {
	tenantID, appointmentID, limit, err := auditScope(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	notifications, err := s.queue.ListByAppointment(c.Request.Context(), tenantID, appointmentID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// auditScope derives the tenant from the query string and the appointment
// from the path. Reads are always tenant scoped; an id alone is not enough.
func auditScope(c *gin.Context) (snowflake.ID, snowflake.ID, int, error) {
	tenantID, err := snowflake.ParseString(strings.TrimSpace(c.Query("tenant_id")))
	if err != nil || tenantID == 0 {
		return 0, 0, 0, newValidationError("tenant_id", "invalid_tenant_id", "tenant_id query parameter is required")
	}

	appointmentID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || appointmentID == 0 {
		return 0, 0, 0, newValidationError("id", "invalid_appointment_id", "appointment id must be a valid id")
	}

	limit := 50
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			return 0, 0, 0, newValidationError("limit", "invalid_limit", "limit must be between 1 and 500")
		}
		limit = parsed
	}

	return tenantID, appointmentID, limit, nil
}
