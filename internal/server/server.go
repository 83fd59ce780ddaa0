// Package server exposes the monitoring pipeline over HTTP: trigger
// endpoints for the monitor, scheduler, dispatchers and retention, plus
// read-only audit endpoints.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	appointmentdomain "github.com/arrivohq/arrivo/internal/appointment/domain"
	"github.com/arrivohq/arrivo/internal/clock"
	"github.com/arrivohq/arrivo/internal/config"
	consentdomain "github.com/arrivohq/arrivo/internal/consent/domain"
	"github.com/arrivohq/arrivo/internal/notification"
	"github.com/arrivohq/arrivo/internal/notification/dispatch"
	"github.com/arrivohq/arrivo/internal/observability/logger"
	punctualitydomain "github.com/arrivohq/arrivo/internal/punctuality/domain"
	"github.com/arrivohq/arrivo/internal/punctuality/monitor"
	"github.com/arrivohq/arrivo/internal/retention"
	"github.com/arrivohq/arrivo/internal/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config       config.Config
	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Monitor      *monitor.Service
	Scheduler    *scheduler.Scheduler
	Dispatchers  dispatch.Set
	Retention    *retention.Service
	Queue        *notification.Queue
	Snapshots    punctualitydomain.SnapshotRepository
	Events       punctualitydomain.EventRepository
	Appointments appointmentdomain.Repository
	Consents     consentdomain.Repository
}

type Server struct {
	cfg          config.Config
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	monitorSvc   *monitor.Service
	schedulerSvc *scheduler.Scheduler
	dispatchers  dispatch.Set
	retentionSvc *retention.Service
	queue        *notification.Queue
	snapshots    punctualitydomain.SnapshotRepository
	events       punctualitydomain.EventRepository
	appointments appointmentdomain.Repository
	consents     consentdomain.Repository
	limiter      *rateLimiter
}

func NewServer(p Params) *Server {
	return &Server{
		cfg:          p.Config,
		db:           p.DB,
		log:          p.Log.Named("server"),
		clock:        p.Clock,
		monitorSvc:   p.Monitor,
		schedulerSvc: p.Scheduler,
		dispatchers:  p.Dispatchers,
		retentionSvc: p.Retention,
		queue:        p.Queue,
		snapshots:    p.Snapshots,
		events:       p.Events,
		appointments: p.Appointments,
		consents:     p.Consents,
		limiter:      newRateLimiter(p.Config.Server.RateLimit, time.Minute),
	}
}

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return engine
}

// RunHTTP starts the HTTP listener under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, engine *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.Server.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server exited", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
