// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/cueclub/table-service/internal/handler"
	"github.com/cueclub/table-service/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check, used by load balancers
// and monitoring to verify the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the login endpoint and the authenticated
// identity endpoint. Login lives under /v1/auth and needs no token;
// /v1/me requires a valid access token of either role.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	e.POST("/v1/auth/login", a.Login)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("STAFF", "ADMIN"))
	auth.GET("/me", a.Me)
}

// RegisterStaff registers the floor operations. All routes require a
// valid access token with the STAFF or ADMIN role. The read-side
// endpoints additionally run through the cache and rate-limit
// middleware; lifecycle POSTs are never cached.
func RegisterStaff(e *echo.Echo, t *handler.TableHandler, jwtSecret string, extra ...echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("STAFF", "ADMIN"))
	g.Use(extra...)

	g.GET("/tables", t.List)
	g.POST("/tables/seed", t.Seed)
	g.POST("/tables/:id/start", t.Start)
	g.POST("/tables/:id/pause", t.Pause)
	g.POST("/tables/:id/resume", t.Resume)
	g.POST("/tables/:id/end", t.End)
	g.POST("/tables/:id/clear", t.Clear)
	g.POST("/tables/:id/auto-end-delete", t.AutoEndDelete)
	g.GET("/sessions/history", t.History)
}

// RegisterAdmin registers the business-configuration endpoints,
// restricted to the ADMIN role.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("ADMIN"))

	g.GET("/settings", a.GetSettings)
	g.PUT("/settings", a.UpdateSettings)
	g.GET("/tables", a.ListTables)
	g.POST("/tables", a.CreateTable)
	g.PUT("/tables/:id", a.UpdateTable)
	g.DELETE("/tables/:id", a.DeleteTable)
}
