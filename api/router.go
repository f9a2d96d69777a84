package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/use-agent/pagelens/api/handler"
	"github.com/use-agent/pagelens/api/middleware"
	"github.com/use-agent/pagelens/config"
)

// Deps are the collaborators the routes call into.
type Deps struct {
	Analyzer *handler.Analyzer
	Sessions handler.SessionCounter

	// StaticDir, when set, is served under cfg.Storage.PublicPrefix.
	StaticDir string
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → RequestID → Logger → Metrics
//	Analyze: Auth (if enabled) → RateLimit
//
// Health and /metrics stay outside auth so health checks and scrapers always work.
// ctx bounds the rate limiter's background sweep.
func NewRouter(ctx context.Context, cfg *config.Config, deps Deps, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	// Route on the escaped path so percent-encoded URLs stay in one segment.
	r.UseRawPath = true
	r.UnescapePathValues = false

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(gin.Logger())
	r.Use(middleware.Metrics())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if deps.StaticDir != "" {
		r.Static(cfg.Storage.PublicPrefix, deps.StaticDir)
	}

	v := r.Group("/api")
	v.GET("/health", handler.Health(deps.Sessions, cfg.PageSpeed.Mode, startTime))

	analyze := v.Group("/analyze")
	if cfg.Auth.Enabled {
		analyze.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	analyze.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	analyze.POST("", deps.Analyzer.Post())
	analyze.GET("/*target", deps.Analyzer.Get())

	return r
}
