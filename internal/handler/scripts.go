package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/script-marketplace/internal/model"
	"github.com/iliyamo/script-marketplace/internal/repository"
	"github.com/iliyamo/script-marketplace/internal/visibility"
)

// ScriptStore is the part of repository.ScriptRepo the script endpoints use.
type ScriptStore interface {
	Create(ctx context.Context, s *model.Script) error
	Update(ctx context.Context, ownerID uint64, s *model.Script) error
	GetByID(ctx context.Context, id uint64) (model.Script, error)
	ListByOwner(ctx context.Context, ownerID uint64) ([]model.Script, error)
	List(ctx context.Context, f repository.ScriptFilter) ([]model.Script, error)
}

// GrantStore loads the applications that may unlock a script body.
type GrantStore interface {
	GrantsForScript(ctx context.Context, scriptID, producerID uint64) ([]model.Application, error)
}

// ScriptHandler serves writers' scripts.
type ScriptHandler struct {
	Scripts ScriptStore
	Grants  GrantStore
}

// NewScriptHandler constructs a ScriptHandler and panics if any dependency is nil.
func NewScriptHandler(scripts ScriptStore, grants GrantStore) *ScriptHandler {
	if scripts == nil || grants == nil {
		panic("nil repository passed to NewScriptHandler")
	}
	return &ScriptHandler{Scripts: scripts, Grants: grants}
}

type scriptReq struct {
	Title         string `json:"title"`
	Genre         string `json:"genre"`
	LengthMinutes uint32 `json:"length_minutes"`
	Synopsis      string `json:"synopsis"`
	Description   string `json:"description"`
	PriceCents    *int64 `json:"price_cents"`
}

func (r scriptReq) validate() (model.Script, string) {
	s := model.Script{
		Title:         strings.TrimSpace(r.Title),
		Genre:         strings.ToLower(strings.TrimSpace(r.Genre)),
		LengthMinutes: r.LengthMinutes,
		Synopsis:      strings.TrimSpace(r.Synopsis),
		Description:   strings.TrimSpace(r.Description),
		PriceCents:    r.PriceCents,
	}
	switch {
	case s.Title == "":
		return s, "title is required"
	case len(s.Title) > 255:
		return s, "title is too long"
	case len(s.Genre) > 64:
		return s, "genre is too long"
	case s.LengthMinutes == 0:
		return s, "length_minutes must be positive"
	case s.PriceCents != nil && *s.PriceCents < 0:
		return s, "price_cents must not be negative"
	}
	return s, ""
}

// Create stores a new script for the writer.
func (h *ScriptHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req scriptReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	s, msg := req.validate()
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	s.OwnerID = uid

	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Scripts.Create(ctx, &s); err != nil {
		return respondError(c, err)
	}
	view, _ := visibility.ProjectScript(viewerFrom(c), s, nil)
	return c.JSON(http.StatusCreated, view)
}

// Update overwrites one of the writer's scripts.
func (h *ScriptHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req scriptReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	s, msg := req.validate()
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	s.ID = id
	s.OwnerID = uid

	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Scripts.Update(ctx, uid, &s); err != nil {
		return respondError(c, err)
	}
	view, _ := visibility.ProjectScript(viewerFrom(c), s, nil)
	return c.JSON(http.StatusOK, view)
}

// ListMine returns the writer's scripts with full bodies.
func (h *ScriptHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	scripts, err := h.Scripts.ListByOwner(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	v := viewerFrom(c)
	out := make([]visibility.ScriptView, 0, len(scripts))
	for _, s := range scripts {
		if view, ok := visibility.ProjectScript(v, s, nil); ok {
			out = append(out, view)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// Browse lists script summaries for producers.  Bodies are never part of
// the listing, even for scripts the producer has unlocked.
func (h *ScriptHandler) Browse(c echo.Context) error {
	if !visibility.CanBrowseScripts(viewerFrom(c)) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	scripts, err := h.Scripts.List(ctx, repository.ScriptFilter{
		Genre:  c.QueryParam("genre"),
		Query:  c.QueryParam("q"),
		Limit:  queryInt(c, "limit", 0),
		Offset: queryInt(c, "offset", 0),
	})
	if err != nil {
		return respondError(c, err)
	}
	out := make([]visibility.ScriptView, 0, len(scripts))
	for _, s := range scripts {
		out = append(out, visibility.Summary(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// Get returns one script projected for the caller.  Grants are loaded
// on every call so a rejected application stops unlocking the body at once.
func (h *ScriptHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	v := viewerFrom(c)

	ctx, cancel := withTimeout(c)
	defer cancel()
	s, err := h.Scripts.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	var grants []model.Application
	if v.Role == model.RoleProducer {
		grants, err = h.Grants.GrantsForScript(ctx, s.ID, v.UserID)
		if err != nil {
			return respondError(c, err)
		}
	}
	view, ok := visibility.ProjectScript(v, s, grants)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, view)
}
