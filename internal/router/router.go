package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/script-marketplace/internal/handler"
	"github.com/iliyamo/script-marketplace/internal/middleware"
	"github.com/iliyamo/script-marketplace/internal/model"
)

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	if db != nil {
		e.GET("/readyz", handler.Ready(db))
	}
}

// RegisterAuth registers the authentication routes.  Token exchange lives
// under /v1/auth without a session; /v1/me needs a valid access token but
// no role, since that is where a user picks one.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)               // rotates the refresh token
	g.POST("/refresh-access", a.RefreshAccess) // keeps the refresh token
	g.POST("/logout", a.Logout)
	e.POST("/v1/logout", a.Logout)

	me := e.Group("/v1/me", middleware.JWTAuth(jwtSecret))
	me.GET("", a.Me)
	me.PUT("/role", a.SetRole)
}

// RegisterAPI registers the /api procedures.  /api/messages answers every
// method so non-GET requests get 405 with an Allow header.
func RegisterAPI(e *echo.Echo, h *handler.InterestHandler) {
	e.POST("/api/interest", h.Express)
	e.Any("/api/messages", h.Messages)
}

// RegisterNotifications registers the inbox endpoints for any signed-in user.
func RegisterNotifications(e *echo.Echo, h *handler.NotificationHandler, jwtSecret string) {
	g := e.Group("/v1/notifications", middleware.JWTAuth(jwtSecret))
	g.GET("", h.List)
	g.POST("/read", h.MarkRead)
}

var (
	writerOnly   = middleware.RequireRole(model.RoleWriter)
	producerOnly = middleware.RequireRole(model.RoleProducer)
	eitherRole   = middleware.RequireRole(model.RoleWriter, model.RoleProducer)
)
