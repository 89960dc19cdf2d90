// Package server assembles the HTTP router and server.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	healthhandler "github.com/YudyTkm/itlingo-itoi-sub001/internal/health/handler"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/server/interceptors"
	workspacehandler "github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/handler"
)

// untraced paths are excluded from spans and access logs.
var untraced = map[string]bool{"/healthz": true, "/ping": true}

// Deps holds the handlers mounted on the router.
type Deps struct {
	Sessions  *interceptors.Sessions
	Workspace *workspacehandler.Handler
	// Health serves /healthz. If nil, the route is not registered.
	Health *healthhandler.Handler
}

// NewRouter returns the gin engine with middleware and all routes registered.
//
// Route → handler mapping:
//   - /healthz                         → internal/health/handler
//   - /createTempWorkspace, /ping      → internal/workspace/handler
//   - /getWorkspace, /setup*, /git*,
//     /cloneRepo (bound session)       → internal/workspace/handler
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), interceptors.AccessLog(untraced), interceptors.Tracing(untraced))
	if deps.Health != nil {
		r.GET("/healthz", deps.Health.Check)
	}
	api := r.Group("/", deps.Sessions.Load())
	deps.Workspace.Register(api)
	return r
}

// NewHTTPServer returns an http.Server serving h on addr.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
