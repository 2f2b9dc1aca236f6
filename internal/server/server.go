package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/dreamland-studio/dreamland/internal/auth/local"
	"github.com/dreamland-studio/dreamland/internal/auth/session"
	"github.com/dreamland-studio/dreamland/internal/auth/social"
	"github.com/dreamland-studio/dreamland/internal/config"
	"github.com/dreamland-studio/dreamland/internal/oauth2provider"
	"github.com/dreamland-studio/dreamland/internal/observability"
	"github.com/dreamland-studio/dreamland/internal/observability/logger"
	"github.com/dreamland-studio/dreamland/internal/observability/tracing"
)

// Module wires the HTTP server and mounts all handlers.
var Module = fx.Module("server",
	fx.Provide(NewEngine),
	fx.Invoke(
		RegisterRoutes,
		Run,
	),
)

// NewEngine builds the gin engine with the shared middleware stack.
func NewEngine(cfg config.Config, obsCfg observability.Config, sessions *session.Manager) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		tracing.GinMiddleware(),
		logger.GinMiddleware(logger.MiddlewareConfig{
			Debug:           obsCfg.Debug(),
			ErrorClassifier: classifyError,
		}),
		sessions.Middleware(),
	)

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return engine
}

// RegisterRoutes mounts every feature handler on the engine.
func RegisterRoutes(
	engine *gin.Engine,
	localHandler *local.Handler,
	socialHandler *social.Handler,
	oauthHandler *oauth2provider.Handler,
) {
	localHandler.RegisterRoutes(engine)
	socialHandler.RegisterRoutes(engine)
	oauthHandler.RegisterRoutes(engine)
}

// Run starts the HTTP listener under the fx lifecycle with graceful
// shutdown.
func Run(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down http server")
			return srv.Shutdown(ctx)
		},
	})
}
