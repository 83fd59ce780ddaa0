package server

import (
	"net/http"
	"strings"

	"github.com/arrivohq/arrivo/internal/consent"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type revokeConsentRequest struct {
	TenantID string `json:"tenant_id"`
}

// RevokeConsent withdraws location-sharing consent for an appointment. The
// next monitoring pass resets any derived punctuality state.
func (s *Server) RevokeConsent(c *gin.Context) {
	var req revokeConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tenantID, err := snowflake.ParseString(strings.TrimSpace(req.TenantID))
	if err != nil || tenantID == 0 {
		AbortWithError(c, newValidationError("tenant_id", "invalid_tenant_id", "tenant_id is required"))
		return
	}

	appointmentID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || appointmentID == 0 {
		AbortWithError(c, newValidationError("id", "invalid_appointment_id", "appointment id must be a valid id"))
		return
	}

	if err := s.consents.Revoke(c.Request.Context(), s.db, tenantID, appointmentID, s.clock.Now()); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}

// ExportConsents streams a tenant's consent records as CSV for audits.
func (s *Server) ExportConsents(c *gin.Context) {
	tenantID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || tenantID == 0 {
		AbortWithError(c, newValidationError("id", "invalid_tenant_id", "tenant id must be a valid id"))
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="consents.csv"`)
	if err := consent.ExportCSV(c.Request.Context(), s.db, s.consents, tenantID, c.Writer); err != nil {
		AbortWithError(c, err)
		return
	}
}
