// Package server wires the HTTP surface: ingestion, fleet queries,
// cycle configuration and alerts.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/openawp/fleettrack/internal/config"
	"github.com/openawp/fleettrack/internal/cycle"
	"github.com/openawp/fleettrack/internal/fleet/repository"
	ingestdomain "github.com/openawp/fleettrack/internal/ingest/domain"
	"github.com/openawp/fleettrack/internal/modelsheet"
	"github.com/openawp/fleettrack/internal/observability"
	obslogger "github.com/openawp/fleettrack/internal/observability/logger"
	obsmetrics "github.com/openawp/fleettrack/internal/observability/metrics"
	obstracing "github.com/openawp/fleettrack/internal/observability/tracing"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware())
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	ingestSvc     ingestdomain.Service
	modelsheetSvc *modelsheet.Service
	cycleSvc      *cycle.Service
	repo          *repository.Repository
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	IngestSvc     ingestdomain.Service
	ModelsheetSvc *modelsheet.Service
	CycleSvc      *cycle.Service
	Repo          *repository.Repository
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		ingestSvc:     p.IngestSvc,
		modelsheetSvc: p.ModelsheetSvc,
		cycleSvc:      p.CycleSvc,
		repo:          p.Repo,
	}

	s.registerAPIRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	// -------- Ingestion --------
	api.POST("/ingest", s.IngestSnapshot)
	api.POST("/models/import-pdf", s.ImportModelSheet)

	// -------- Machines --------
	api.GET("/machines", s.ListMachines)
	api.GET("/machines/:codeid", s.GetMachine)
	api.PUT("/cycles/:codeid", s.PutCycleConfig)

	// -------- Models --------
	api.GET("/models", s.ListModels)
	api.GET("/models/summary", s.ModelsSummary)
	api.GET("/models/adm", s.ListModelsADM)
	api.PUT("/models/:id", s.UpdateModelDefaults)

	// -------- Venues --------
	api.GET("/venues", s.ListVenues)
	api.GET("/venues/:id/detail", s.GetVenueDetail)

	// -------- Access points --------
	api.GET("/pdas", s.ListAccessPoints)
	api.GET("/pdas/:mac", s.GetAccessPoint)
	api.GET("/pdas/:mac/detail", s.GetAccessPointDetail)

	// -------- Alerts and search --------
	api.GET("/alerts/end-cycle", s.EndCycleAlerts)
	api.GET("/alerts/decadenza", s.DecayAlerts)
	api.GET("/search", s.Search)
}
