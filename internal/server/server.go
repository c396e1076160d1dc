package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	addondomain "github.com/smallbiznis/entitlements/internal/addon/domain"
	"github.com/smallbiznis/entitlements/internal/catalog"
	"github.com/smallbiznis/entitlements/internal/clock"
	"github.com/smallbiznis/entitlements/internal/config"
	entitlementdomain "github.com/smallbiznis/entitlements/internal/entitlement/domain"
	"github.com/smallbiznis/entitlements/internal/observability"
	obsmiddleware "github.com/smallbiznis/entitlements/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/entitlements/internal/observability/metrics"
	obstracing "github.com/smallbiznis/entitlements/internal/observability/tracing"
	overridedomain "github.com/smallbiznis/entitlements/internal/override/domain"
	snapshotdomain "github.com/smallbiznis/entitlements/internal/snapshot/domain"
	teamdomain "github.com/smallbiznis/entitlements/internal/team/domain"
	usagedomain "github.com/smallbiznis/entitlements/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
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

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
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
	engine *gin.Engine
	cfg    config.Config
	log    *zap.Logger
	clock  clock.Clock

	catalog        *catalog.Catalog
	entitlementSvc entitlementdomain.Service
	snapshotSvc    snapshotdomain.Service
	overrideSvc    overridedomain.Service
	addonSvc       addondomain.Service
	usageSvc       usagedomain.Service
	teamSvc        teamdomain.Service
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	Clock          clock.Clock
	Catalog        *catalog.Catalog
	EntitlementSvc entitlementdomain.Service
	SnapshotSvc    snapshotdomain.Service
	OverrideSvc    overridedomain.Service
	AddonSvc       addondomain.Service
	UsageSvc       usagedomain.Service
	TeamSvc        teamdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine: p.Gin,
		cfg:    p.Cfg,
		log:    p.Log.Named("http.server"),
		clock:  p.Clock,

		catalog:        p.Catalog,
		entitlementSvc: p.EntitlementSvc,
		snapshotSvc:    p.SnapshotSvc,
		overrideSvc:    p.OverrideSvc,
		addonSvc:       p.AddonSvc,
		usageSvc:       p.UsageSvc,
		teamSvc:        p.TeamSvc,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/catalog", s.GetCatalog)

	// -------- Teams --------
	api.POST("/teams", s.CreateTeam)
	api.GET("/teams", s.ListTeams)

	team := api.Group("/teams/:team_id", s.TeamContext())
	{
		team.GET("", s.GetTeam)
		team.PUT("/subscription", s.SubscribeTeam)
		team.DELETE("/subscription", s.CancelSubscription)

		// -------- Entitlements --------
		team.GET("/entitlements", s.GetEntitlementSummary)
		team.GET("/features/:key", s.CheckFeature)
		team.GET("/limits/:key", s.CheckLimit)
		team.POST("/limits/:key/consume", s.ConsumeLimit)
		team.POST("/limits/:key/release", s.ReleaseLimit)
		team.GET("/usage", s.ListUsage)

		// -------- Add-ons --------
		team.GET("/addons", s.ListAddons)
	}
}

// Operator routes mutate entitlements outside the billing flow. Every write
// carries the operator identity from the X-Actor header.
func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.POST("/snapshots", s.SnapshotAllTeams)

	team := admin.Group("/teams/:team_id", s.TeamContext())
	{
		team.GET("/snapshot", s.GetSnapshot)
		team.POST("/snapshot", s.SnapshotTeam)

		team.GET("/overrides", s.ListOverrides)
		team.POST("/overrides", s.RequireActor(), s.SetOverride)
		team.DELETE("/overrides/:type/:key", s.RequireActor(), s.ClearOverride)

		team.POST("/addons", s.RequireActor(), s.GrantAddon)
		team.DELETE("/addons/:addon_id", s.RequireActor(), s.CancelAddon)
	}
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

// now returns the ?at= instant when supplied, the clock otherwise.
func (s *Server) now(c *gin.Context) (time.Time, error) {
	at, err := queryInstant(c, "at")
	if err != nil {
		return time.Time{}, err
	}
	if at != nil {
		return *at, nil
	}
	return s.clock.Now(), nil
}
