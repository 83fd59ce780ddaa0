package server

import "github.com/gin-gonic/gin"

// RegisterAPIRoutes wires the pipeline and audit surface under /api. Every
// trigger runs behind its own function secret; audit reads share the
// monitor secret since they expose the same data the monitor writes.
func (s *Server) RegisterAPIRoutes(engine *gin.Engine) {
	api := engine.Group("/api")

	api.POST("/monitor/run", s.SecretRequired(s.cfg.Secrets.Monitor), s.RunMonitor)
	api.POST("/scheduler/run", s.SecretRequired(s.cfg.Secrets.Scheduler), s.RunScheduler)
	api.POST("/dispatch/push", s.SecretRequired(s.cfg.Secrets.PushDispatcher), s.RunPushDispatch)
	api.POST("/dispatch/whatsapp", s.SecretRequired(s.cfg.Secrets.WhatsAppDispatcher), s.RunWhatsAppDispatch)
	api.POST("/retention/run", s.SecretRequired(s.cfg.Secrets.Retention), s.RunRetention)

	audit := api.Group("", s.SecretRequired(s.cfg.Secrets.Monitor))
	audit.GET("/appointments/:id/snapshots", s.ListSnapshots)
	audit.GET("/appointments/:id/events", s.ListEvents)
	audit.GET("/appointments/:id/notifications", s.ListNotifications)
	audit.POST("/appointments/:id/consent/revoke", s.RevokeConsent)
	audit.GET("/tenants/:id/consents/export", s.ExportConsents)
}
