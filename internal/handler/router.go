package handler

import (
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/triageops/controlplane/internal/auth"
	"github.com/triageops/controlplane/internal/ingress"
	"github.com/triageops/controlplane/internal/metrics"
	"github.com/triageops/controlplane/internal/registry"
	"github.com/triageops/controlplane/internal/store"
)

// Deps bundles everything the router needs to wire up routes, keeping
// NewRouter's signature stable as the management API grows.
type Deps struct {
	Auth       *auth.Service
	Registry   *registry.Registry
	Store      store.Store
	Ingress    *ingress.Dispatcher
	Metrics    *metrics.Registry
	RunStream  RunStream
	Engine     RunResumer // resumes a suspended WorkflowRun; same engine instance as RunStream
	SentryUsed bool       // true once sentry.Init has succeeded, gates the gin middleware
}

// NewRouter builds the gin engine with every route the management API,
// webhook ingress, metrics endpoint, and live run stream expose.
func NewRouter(d Deps, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if d.SentryUsed {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	r.Use(func(c *gin.Context) {
		corsMiddleware.HandlerFunc(c.Writer, c.Request)
		c.Next()
	})

	r.GET("/ping", Ping)
	r.GET("/", Root)
	r.GET("/docs/openapi.json", OpenAPIDoc)
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	authHandler := NewAuthHandler(d.Auth)
	r.POST("/api/v1/auth/register", authHandler.Register)
	r.POST("/api/v1/auth/login", authHandler.Login)
	r.POST("/api/v1/auth/refresh", authHandler.Refresh)
	r.POST("/api/v1/auth/logout", authHandler.Logout)
	r.GET("/api/v1/auth/config", authHandler.Config)

	ingressHandler := NewIngressHandler(d.Ingress)
	r.POST("/webhooks/:path", ingressHandler.Webhook)

	authed := r.Group("/api/v1")
	authed.Use(AuthMiddleware(d.Auth))
	{
		authed.GET("/auth/me", authHandler.Me)

		resources := NewResourceHandler(d.Registry, d.Store)
		authed.GET("/sources", resources.ListSources)
		authed.GET("/sources/:name", resources.GetSource)
		authed.PUT("/sources/:name", resources.PutSource)
		authed.DELETE("/sources/:name", resources.DeleteSource)

		authed.GET("/workflows", resources.ListWorkflows)
		authed.GET("/workflows/:name", resources.GetWorkflow)
		authed.PUT("/workflows/:name", resources.PutWorkflow)
		authed.DELETE("/workflows/:name", resources.DeleteWorkflow)

		authed.GET("/sinks", resources.ListSinks)
		authed.GET("/sinks/:name", resources.GetSink)
		authed.PUT("/sinks/:name", resources.PutSink)
		authed.DELETE("/sinks/:name", resources.DeleteSink)

		runs := NewRunHandler(d.Store, d.Registry, d.Engine)
		authed.GET("/runs", runs.List)
		authed.GET("/runs/:id", runs.Get)
		authed.POST("/runs/:id/approval", runs.Approve)
	}

	ws := NewWSHandler(d.RunStream, d.Auth)
	r.GET("/ws/runs", ws.Runs)

	return r
}
