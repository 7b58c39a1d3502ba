// Package server wires the HTTP surface: webhook ingress, checkout, and the
// operator read endpoint for sync state.
package server

import (
	"context"
	"net/http"
	"time"

	billingdomain "github.com/courtsidehq/courtside/internal/billing/domain"
	checkoutdomain "github.com/courtsidehq/courtside/internal/checkout/domain"
	"github.com/courtsidehq/courtside/internal/config"
	"github.com/courtsidehq/courtside/internal/observability"
	obsmiddleware "github.com/courtsidehq/courtside/internal/observability/logger"
	obsmetrics "github.com/courtsidehq/courtside/internal/observability/metrics"
	obstracing "github.com/courtsidehq/courtside/internal/observability/tracing"
	"github.com/courtsidehq/courtside/internal/ratelimit"
	syncdomain "github.com/courtsidehq/courtside/internal/syncstate/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	ingress         billingdomain.Ingress
	checkoutSvc     checkoutdomain.Service
	syncSvc         syncdomain.Service
	checkoutLimiter *ratelimit.CheckoutLimiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	Ingress     billingdomain.Ingress
	CheckoutSvc checkoutdomain.Service
	SyncSvc     syncdomain.Service

	CheckoutLimiter *ratelimit.CheckoutLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics        `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("server"),
		ingress:         p.Ingress,
		checkoutSvc:     p.CheckoutSvc,
		syncSvc:         p.SyncSvc,
		checkoutLimiter: p.CheckoutLimiter,
		obsMetrics:      p.ObsMetrics,
	}

	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.POST("/webhooks/billing", s.HandleBillingWebhook)

	// The checkout and sync-state routes answer at the root; the /api group
	// is an alias for clients that prefix everything.
	s.engine.POST("/subscriptions", s.CreateSubscription)
	s.engine.GET("/subscriptions/sync/:customerId", s.GetSyncState)

	api := s.engine.Group("/api")
	api.POST("/subscriptions", s.CreateSubscription)
	api.GET("/subscriptions/sync/:customerId", s.GetSyncState)
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
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
