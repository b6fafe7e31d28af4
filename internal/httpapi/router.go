// Package httpapi is the Workflow API Façade of spec.md §4.9: one gin
// handler per endpoint, each a thin adapter over the Planner, State
// Store, Artifact Store, Secret Registry, and Event Bus. The façade
// holds no state of its own.
package httpapi

import (
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/gin-gonic/gin"

	"github.com/flowmium-io/flowmium/internal/artifacts"
	"github.com/flowmium-io/flowmium/internal/events"
	"github.com/flowmium-io/flowmium/internal/httpapi/handlers"
	"github.com/flowmium-io/flowmium/internal/httpapi/middleware"
	"github.com/flowmium-io/flowmium/internal/platform/logger"
	"github.com/flowmium-io/flowmium/internal/repos"
	"github.com/flowmium-io/flowmium/internal/secrets"
)

type Dependencies struct {
	Flows       repos.FlowRepo
	Artifacts   artifacts.Client
	Secrets     *secrets.Registry
	Bus         *events.Bus
	Log         *logger.Logger
	ServiceName string
}

// NewRouter wires spec.md §6's HTTP surface onto gin, grounded on the
// teacher's internal/http/router.go layering of global middleware ahead
// of versioned route groups.
func NewRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(deps.ServiceName))
	r.Use(middleware.AttachTraceContext())
	r.Use(middleware.RequestLogger(deps.Log))
	r.Use(middleware.CORS())

	r.GET("/healthz", handlers.Health)

	job := handlers.NewJobHandler(deps.Flows, deps.Log)
	artifact := handlers.NewArtifactHandler(deps.Artifacts, deps.Log)
	secret := handlers.NewSecretHandler(deps.Secrets, deps.Log)
	ws := handlers.NewSchedulerWSHandler(deps.Bus, deps.Log)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/job", job.Submit)
		v1.GET("/job", job.List)
		v1.GET("/job/:id", job.Describe)

		v1.GET("/artefact/:flow_id/:output_name", artifact.Download)

		v1.POST("/secret/:key", secret.Create)
		v1.PUT("/secret/:key", secret.Update)
		v1.DELETE("/secret/:key", secret.Delete)

		v1.GET("/scheduler/ws", ws.Stream)
	}

	return r
}
