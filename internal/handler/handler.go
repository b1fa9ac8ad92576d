package handler

import (
	"context"
	"time"

	"signal-bot/internal/domain"
	"signal-bot/internal/session"
	"signal-bot/internal/signal"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "signal-bot/docs"
)

type SessionCounter interface {
	Len() int
	CountByState() map[session.State]int
}

type DeliveryLister interface {
	ListRecent(ctx context.Context, filter domain.DeliveryFilter) ([]domain.Delivery, error)
	CountByDirection(ctx context.Context, since time.Time) (map[domain.Direction]int64, error)
}

type SchedulerStats interface {
	Pending() int
}

// Handler serves the read-only admin API.
type Handler struct {
	tracer     trace.Tracer
	source     signal.Source
	sessions   SessionCounter
	scheduler  SchedulerStats
	deliveries DeliveryLister
	started    time.Time
}

func New(
	tracer trace.Tracer,
	source signal.Source,
	sessions SessionCounter,
	scheduler SchedulerStats,
	deliveries DeliveryLister,
) *Handler {
	return &Handler{
		tracer:     tracer,
		source:     source,
		sessions:   sessions,
		scheduler:  scheduler,
		deliveries: deliveries,
		started:    time.Now(),
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/api/pairs", h.GetPairs)
	r.GET("/api/analysis/:pair", h.GetAnalysis)
	r.GET("/api/sessions", h.GetSessions)
	r.GET("/api/deliveries", h.GetDeliveries)
	r.GET("/api/deliveries/summary", h.GetDeliverySummary)
}

// NewRouter builds the admin engine with tracing, CORS, /metrics and the
// swagger UI under /swagger.
func NewRouter(h *Handler, gatherer prometheus.Gatherer, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("signal-bot"))
	if len(allowedOrigins) > 0 {
		cfg := cors.DefaultConfig()
		cfg.AllowOrigins = allowedOrigins
		cfg.AllowMethods = []string{"GET", "OPTIONS"}
		r.Use(cors.New(cfg))
	}

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return r
}
