// Package router mounts the curricula API groups under /api/<version>.
package router

import (
	"net/http"

	"github.com/curricula/backend/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// RouteRegistrar mounts its routes on the versioned API group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router collects registrars and the middleware shared by every API route.
// Routes registered directly on the engine, such as /health, bypass it.
type Router struct {
	engine     *gin.Engine
	version    string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
}

type RouterOption func(*Router)

func WithAPIVersion(version string) RouterOption {
	return func(r *Router) { r.version = version }
}

func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, version: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Use(mw ...gin.HandlerFunc) *Router {
	r.middleware = append(r.middleware, mw...)
	return r
}

func (r *Router) Register(regs ...RouteRegistrar) *Router {
	r.registrars = append(r.registrars, regs...)
	return r
}

// Setup mounts everything registered so far; call it once.
func (r *Router) Setup() {
	api := r.engine.Group("/api/"+r.version, r.middleware...)
	for _, reg := range r.registrars {
		reg.RegisterRoutes(api)
	}
}

// DomainGroup is a prefix with its own middleware, routes and nested groups.
type DomainGroup struct {
	name, prefix string
	middleware   []gin.HandlerFunc
	mounts       []func(*gin.RouterGroup)
}

func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

func (dg *DomainGroup) Name() string   { return dg.name }
func (dg *DomainGroup) Prefix() string { return dg.prefix }

func (dg *DomainGroup) Use(mw ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, mw...)
	return dg
}

func (dg *DomainGroup) GET(path string, h ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodGet, path, h)
}

func (dg *DomainGroup) POST(path string, h ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPost, path, h)
}

func (dg *DomainGroup) handle(method, path string, h []gin.HandlerFunc) *DomainGroup {
	dg.mounts = append(dg.mounts, func(g *gin.RouterGroup) { g.Handle(method, path, h...) })
	return dg
}

// Group nests a child under dg; the child inherits dg's middleware.
func (dg *DomainGroup) Group(name, prefix string) *DomainGroup {
	child := NewDomainGroup(name, prefix)
	dg.mounts = append(dg.mounts, child.RegisterRoutes)
	return child
}

func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group(dg.prefix, dg.middleware...)
	for _, mount := range dg.mounts {
		mount(g)
	}
}

// Handlers are the tenant-scoped API handlers
type Handlers struct {
	Categorization *handler.CategorizationHandler
	Coverage       *handler.CoverageHandler
	Standards      *handler.StandardsHandler
	Content        *handler.ContentHandler
}

// Routes lays out the curricula API
func Routes(h Handlers) []RouteRegistrar {
	categorization := NewDomainGroup("categorization", "/categorization")
	categorization.Group("jobs", "/jobs").
		POST("", h.Categorization.SubmitJob).
		GET("", h.Categorization.ListJobs).
		GET("/:id", h.Categorization.GetJob).
		GET("/:id/failures", h.Categorization.ListFailures).
		POST("/:id/cancel", h.Categorization.CancelJob)

	coverage := NewDomainGroup("coverage", "/coverage").
		GET("", h.Coverage.ListCoverage).
		GET("/frameworks/:id", h.Coverage.GetFrameworkCoverage)

	standards := NewDomainGroup("standards", "/standards")
	standards.Group("frameworks", "/frameworks").
		GET("", h.Standards.ListFrameworks).
		GET("/:id/tree", h.Standards.GetTree).
		POST("/:id/deactivate", h.Standards.Deactivate)

	content := NewDomainGroup("content", "/content").
		POST("/:id/mappings", h.Content.PinMapping)

	return []RouteRegistrar{categorization, coverage, standards, content}
}
