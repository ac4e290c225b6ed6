// Package router assembles the gin engine of the HTTP API.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eshop/backend/internal/infrastructure/logger"
	"github.com/eshop/backend/internal/interfaces/http/handler"
	"github.com/eshop/backend/internal/interfaces/http/middleware"
)

// Config selects the engine middleware.
type Config struct {
	ServiceName string
	Tracing     bool
	CORSOrigins []string
	// TriggerPerMinute limits manual import triggers per client. Zero
	// disables the limit.
	TriggerPerMinute int
}

// Handlers are the endpoint groups served by the engine.
type Handlers struct {
	Import *handler.ImportHandler
	Health *handler.HealthHandler
}

// New builds the engine: middleware, /health and the /api/v1 routes.
func New(cfg Config, h Handlers, log *zap.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(logger.Recovery(log), middleware.RequestID())
	if cfg.Tracing {
		engine.Use(middleware.Tracing(cfg.ServiceName), middleware.SpanAttributes())
	}
	engine.Use(logger.GinMiddleware(log), middleware.CORS(cfg.CORSOrigins))

	if h.Health != nil {
		engine.GET("/health", h.Health.Health)
	}

	api := engine.Group("/api/v1")
	if h.Import != nil {
		var trigger []gin.HandlerFunc
		if cfg.TriggerPerMinute > 0 {
			trigger = append(trigger, middleware.NewRateLimiter(cfg.TriggerPerMinute, 1).Middleware())
		}
		h.Import.RegisterRoutes(api, trigger...)
	}
	return engine
}
