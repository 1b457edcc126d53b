package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/frontline-backend/internal/http/handlers"
	httpMW "github.com/yungbote/frontline-backend/internal/http/middleware"
	"github.com/yungbote/frontline-backend/internal/observability"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	AllowedOrigins []string

	HealthHandler *httpH.HealthHandler
	WarHandler    *httpH.WarHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		if cfg.WarHandler != nil {
			api.GET("/wars", cfg.WarHandler.ListWars)
			api.GET("/wars/:warId/territory", cfg.WarHandler.Territory)
			api.GET("/wars/:warId/territory/history", cfg.WarHandler.TerritoryHistory)
			api.GET("/wars/:warId/events", cfg.WarHandler.Events)
		}
	}
	return r
}
