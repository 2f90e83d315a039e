package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/script-marketplace/internal/guard"
	"github.com/iliyamo/script-marketplace/internal/handler"
	"github.com/iliyamo/script-marketplace/internal/middleware"
)

// RegisterPages registers the page routes behind the role guard.  Auth is
// optional here: guests reach the guard, which sends them to sign-in.
func RegisterPages(e *echo.Echo, g *guard.Guard, jwtSecret string) {
	p := e.Group("", middleware.OptionalAuth(jwtSecret), middleware.Guard(g))
	p.GET("/dashboard/writer", handler.Page("dashboard/writer"))
	p.GET("/dashboard/producer", handler.Page("dashboard/producer"))
	p.GET("/scripts/new", handler.Page("scripts/new"))
	p.GET("/listings/new", handler.Page("listings/new"))
	p.GET("/messages", handler.Page("messages"))
	p.GET("/onboarding", handler.Page("onboarding"))
	p.GET("/signin", handler.Page("signin"))
}
