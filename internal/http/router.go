package http

import (
	"context"
	"log/slog"

	"github.com/geocoder89/registrationhub/internal/http/handlers"
	"github.com/geocoder89/registrationhub/internal/http/middlewares"
	"github.com/geocoder89/registrationhub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20

type RouterDeps struct {
	Env           string
	ServiceName   string
	Registrations handlers.RegistrationService
	// Ping backs /readyz; nil means always ready.
	Ping func(ctx context.Context) error
	Prom *observability.Prom
}

func NewRouter(log *slog.Logger, deps RouterDeps) *gin.Engine {
	if deps.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.ServiceName == "" {
		deps.ServiceName = "registrationhub-api"
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware(deps.ServiceName))
	r.Use(middlewares.RequestLogger(log))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders())

	// health
	h := handlers.NewHealthHandler(deps.Ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	regs := handlers.NewRegistrationHandler(deps.Registrations)

	api := r.Group("/registrations")
	api.Use(middlewares.RequireJSON(), middlewares.MaxBodyBytes(maxBodyBytes))

	api.POST("", regs.Create)
	api.GET("", regs.List)
	api.GET("/:id", regs.Get)
	api.PATCH("/:id", regs.Update)
	api.DELETE("/:id", regs.Delete)

	return r
}
