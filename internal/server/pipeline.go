package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

// RunScheduler fans the monitoring pass out across every active tenant.
func (s *Server) RunScheduler(c *gin.Context) {
	summary, err := s.schedulerSvc.Run(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// RunPushDispatch drains the queued push notifications.
func (s *Server) RunPushDispatch(c *gin.Context) {
	tenantID, limit, err := dispatchScope(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.dispatchers.Push.Dispatch(c.Request.Context(), tenantID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RunWhatsAppDispatch drains the queued WhatsApp notifications.
func (s *Server) RunWhatsAppDispatch(c *gin.Context) {
	tenantID, limit, err := dispatchScope(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.dispatchers.WhatsApp.Dispatch(c.Request.Context(), tenantID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RunRetention prunes aged monitoring data across all tenants.
func (s *Server) RunRetention(c *gin.Context) {
	report, err := s.retentionSvc.Run(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func dispatchScope(c *gin.Context) (*snowflake.ID, int, error) {
	var tenantID *snowflake.ID
	if raw := strings.TrimSpace(c.Query("tenant_id")); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			return nil, 0, newValidationError("tenant_id", "invalid_tenant_id", "tenant_id must be a valid id")
		}
		tenantID = &id
	}

	limit := 100
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return nil, 0, newValidationError("limit", "invalid_limit", "limit must be a positive integer")
		}
		limit = parsed
	}

	return tenantID, limit, nil
}
