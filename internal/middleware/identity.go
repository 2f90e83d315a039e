package middleware

// identity.go holds the context keys written by the auth middleware and the
// accessors handlers use to read them back.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/script-marketplace/internal/model"
	"github.com/iliyamo/script-marketplace/internal/utils"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

func setIdentity(c echo.Context, claims utils.Claims) {
	c.Set(ctxUserID, claims.UserID)
	c.Set(ctxRole, claims.Role)
}

// UserID returns the authenticated user's id.  ok is false for guests.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// Role returns the authenticated user's role, RoleNone for guests and for
// users who have not picked one.
func Role(c echo.Context) model.Role {
	r, _ := c.Get(ctxRole).(model.Role)
	return r
}

// userKey returns a string identity for rate limiting.  It returns
// "anon" when no user is authenticated.
func userKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
