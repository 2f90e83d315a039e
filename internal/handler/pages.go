package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/script-marketplace/internal/middleware"
)

// Page returns a JSON stand-in for a rendered page.  The role guard runs
// in front of it, so reaching it means access was allowed.
func Page(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		resp := echo.Map{"page": name}
		if id, ok := middleware.UserID(c); ok {
			resp["user_id"] = id
			resp["role"] = middleware.Role(c)
		}
		return c.JSON(http.StatusOK, resp)
	}
}
