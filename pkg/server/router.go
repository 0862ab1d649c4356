package server

import (
	"marketplace-ledger/pkg/health"
	"marketplace-ledger/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// RouteRegistrar mounts a service's handlers under /api/v1.
type RouteRegistrar interface {
	RegisterRoutes(api *gin.RouterGroup)
}

// AsRoute annotates a constructor so its result joins the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(RouteRegistrar)),
		fx.ResultTags(`group:"routes"`),
	)
}

type RouterParams struct {
	fx.In
	Health health.HealthService
	Routes []RouteRegistrar `group:"routes"`
}

func NewRouter(p RouterParams) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Tracing(), middleware.RequestLogger(), middleware.Error())

	r.GET("/healthz", p.Health.Liveness)
	r.GET("/readyz", p.Health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	for _, route := range p.Routes {
		route.RegisterRoutes(api)
	}

	return r
}
