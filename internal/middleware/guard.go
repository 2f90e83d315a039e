package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/script-marketplace/internal/guard"
)

// Guard applies the role guard to page routes.  It must run after
// OptionalAuth.  Redirects use 303 so a POST to a guarded page turns into a
// GET of the target; denials are 403.
func Guard(g *guard.Guard) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			_, authed := UserID(c)
			d := g.Decide(c.Request().URL.Path, guard.Identity{Authenticated: authed, Role: Role(c)})
			switch d.Outcome {
			case guard.Allow:
				return next(c)
			case guard.Redirect:
				return c.Redirect(http.StatusSeeOther, d.Target)
			default:
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
		}
	}
}
