package handler // handler defines http handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/script-marketplace/internal/lifecycle"
	"github.com/iliyamo/script-marketplace/internal/middleware"
	"github.com/iliyamo/script-marketplace/internal/repository"
	"github.com/iliyamo/script-marketplace/internal/visibility"
)

// requestTimeout bounds the store calls of one request.
const requestTimeout = 5 * time.Second

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// getUserID extracts the authenticated user id set by JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, errors.New("invalid user_id in context")
	}
	return id, nil
}

func actorFrom(c echo.Context) lifecycle.Actor {
	id, _ := middleware.UserID(c)
	return lifecycle.Actor{UserID: id, Role: middleware.Role(c)}
}

func viewerFrom(c echo.Context) visibility.Viewer {
	id, ok := middleware.UserID(c)
	return visibility.Viewer{UserID: id, Role: middleware.Role(c), Authenticated: ok}
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func queryInt(c echo.Context, name string, def int) int {
	if v, err := strconv.Atoi(c.QueryParam(name)); err == nil {
		return v
	}
	return def
}

// respondError maps domain errors to HTTP responses.  Unknown errors are
// logged and reported as 500 without their text.
func respondError(c echo.Context, err error) error {
	var (
		verr *lifecycle.ValidationError
		perr *lifecycle.PartialFailureError
	)
	switch {
	case errors.As(err, &perr):
		slog.Error("partial failure", "op", perr.Op, "step", perr.Step, "application_id", perr.ApplicationID, "error", perr.Err)
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":          "recorded but follow-up failed",
			"step":           perr.Step,
			"retry":          retryPath(perr),
			"application_id": perr.ApplicationID,
		})
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, lifecycle.ErrPermission), errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, lifecycle.ErrDuplicateApplication),
		errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrPriceUnknown),
		errors.Is(err, lifecycle.ErrStaleStatus),
		errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": "backend timeout"})
	}
	slog.Error("request failed", "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func retryPath(perr *lifecycle.PartialFailureError) string {
	return "/v1/applications/" + strconv.FormatUint(perr.ApplicationID, 10) + "/" + string(perr.Op)
}
