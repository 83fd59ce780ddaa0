package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/arrivohq/arrivo/internal/auditcontext"
	"github.com/arrivohq/arrivo/internal/punctuality/monitor"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type runMonitorRequest struct {
	TenantID      string                 `json:"tenant_id"`
	AppointmentID string                 `json:"appointment_id"`
	Snapshots     []monitorSnapshotInput `json:"snapshots"`
}

type monitorSnapshotInput struct {
	AppointmentID string   `json:"appointment_id"`
	EtaMinutes    *int     `json:"eta_minutes"`
	ClientLat     *float64 `json:"client_lat"`
	ClientLng     *float64 `json:"client_lng"`
}

// RunMonitor triggers one monitoring pass for a tenant.
func (s *Server) RunMonitor(c *gin.Context) {
	var req runMonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tenantID, err := parseSnowflake(req.TenantID)
	if err != nil || tenantID == 0 {
		AbortWithError(c, newValidationError("tenant_id", "invalid_tenant_id", "tenant_id is required"))
		return
	}

	runReq := monitor.RunRequest{TenantID: tenantID}

	if strings.TrimSpace(req.AppointmentID) != "" {
		appointmentID, err := parseSnowflake(req.AppointmentID)
		if err != nil {
			AbortWithError(c, newValidationError("appointment_id", "invalid_appointment_id", "appointment_id must be a valid id"))
			return
		}
		runReq.AppointmentID = &appointmentID
	}

	for i, input := range req.Snapshots {
		appointmentID, err := parseSnowflake(input.AppointmentID)
		if err != nil || appointmentID == 0 {
			AbortWithError(c, newValidationError("snapshots", "invalid_appointment_id", "snapshot "+strconv.Itoa(i)+" has an invalid appointment_id"))
			return
		}
		runReq.Snapshots = append(runReq.Snapshots, monitor.SnapshotInput{
			AppointmentID: appointmentID,
			EtaMinutes:    input.EtaMinutes,
			ClientLat:     input.ClientLat,
			ClientLng:     input.ClientLng,
		})
	}

	ctx := auditcontext.WithSource(c.Request.Context(), auditcontext.SourceMonitor)
	result, err := s.monitorSvc.Run(ctx, runReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func parseSnowflake(raw string) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return snowflake.ParseString(raw)
}
