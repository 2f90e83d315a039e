package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/script-marketplace/internal/model"
	"github.com/iliyamo/script-marketplace/internal/repository"
	"github.com/iliyamo/script-marketplace/internal/visibility"
)

// ListingStore is the part of repository.ListingRepo the listing endpoints use.
type ListingStore interface {
	Create(ctx context.Context, l *model.Listing) error
	GetByID(ctx context.Context, id uint64) (model.Listing, error)
	ListByOwner(ctx context.Context, ownerID uint64) ([]model.Listing, error)
	Browse(ctx context.Context, f repository.ListingFilter) ([]model.Listing, error)
}

// ListingApplications lists the applications a producer received.
type ListingApplications interface {
	ListForListing(ctx context.Context, ownerID, listingID uint64) ([]model.Application, error)
}

// ListingHandler serves producer listings.
type ListingHandler struct {
	Listings     ListingStore
	Applications ListingApplications
	// OnChange runs after a listing is created, typically to purge the
	// cached browse responses.
	OnChange func(ctx context.Context) error
	Now      func() time.Time
}

// NewListingHandler constructs a ListingHandler and panics if any dependency is nil.
func NewListingHandler(listings ListingStore, apps ListingApplications) *ListingHandler {
	if listings == nil || apps == nil {
		panic("nil repository passed to NewListingHandler")
	}
	return &ListingHandler{Listings: listings, Applications: apps, Now: func() time.Time { return time.Now().UTC() }}
}

type listingReq struct {
	Source      string     `json:"source"`
	Title       string     `json:"title"`
	Genre       string     `json:"genre"`
	Description string     `json:"description"`
	BudgetCents int64      `json:"budget_cents"`
	Deadline    *time.Time `json:"deadline"`
}

// Create stores a listing for the producer.
func (h *ListingHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req listingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	source, ok := model.ParseListingSource(strings.TrimSpace(req.Source))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "source must be request or producer_listing"})
	}
	l := model.Listing{
		OwnerID:     uid,
		Source:      source,
		Title:       strings.TrimSpace(req.Title),
		Genre:       strings.ToLower(strings.TrimSpace(req.Genre)),
		Description: strings.TrimSpace(req.Description),
		BudgetCents: req.BudgetCents,
		Deadline:    req.Deadline,
	}
	switch {
	case l.Title == "":
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
	case len(l.Title) > 255:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is too long"})
	case l.BudgetCents < 0:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "budget_cents must not be negative"})
	case l.Deadline != nil && !l.Deadline.After(h.Now()):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "deadline must be in the future"})
	}

	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Listings.Create(ctx, &l); err != nil {
		return respondError(c, err)
	}
	if h.OnChange != nil {
		if err := h.OnChange(ctx); err != nil {
			slog.Warn("listing change hook failed", "listing_id", l.ID, "error", err)
		}
	}
	return c.JSON(http.StatusCreated, l)
}

// ListMine returns the producer's own listings.
func (h *ListingHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	listings, err := h.Listings.ListByOwner(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	if listings == nil {
		listings = []model.Listing{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": listings})
}

// Browse lists listings for any signed-in writer or producer.  Closed
// listings are hidden unless ?open=all is given.  The response does not
// depend on the caller, so the route may sit behind the response cache.
func (h *ListingHandler) Browse(c echo.Context) error {
	v := viewerFrom(c)
	if !visibility.CanBrowseListings(v) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	f := repository.ListingFilter{
		Genre:    c.QueryParam("genre"),
		OpenOnly: c.QueryParam("open") != "all",
		Now:      h.Now(),
		Limit:    queryInt(c, "limit", 0),
		Offset:   queryInt(c, "offset", 0),
	}
	if raw := c.QueryParam("source"); raw != "" {
		source, ok := model.ParseListingSource(raw)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown source"})
		}
		f.Source = source
	}

	ctx, cancel := withTimeout(c)
	defer cancel()
	listings, err := h.Listings.Browse(ctx, f)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]visibility.ListingView, 0, len(listings))
	for _, l := range listings {
		if view, ok := visibility.ProjectListing(v, l); ok {
			out = append(out, view)
		}
	}
	if f.OpenOnly {
		if age, ok := untilFirstDeadline(listings, f.Now); ok {
			c.Response().Header().Set(echo.HeaderCacheControl, "max-age="+strconv.Itoa(age))
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// untilFirstDeadline returns the whole seconds left before the earliest
// deadline among listings, so a cached page expires before it goes stale.
func untilFirstDeadline(listings []model.Listing, now time.Time) (int, bool) {
	var first *time.Time
	for _, l := range listings {
		if l.Deadline != nil && l.Deadline.After(now) && (first == nil || l.Deadline.Before(*first)) {
			first = l.Deadline
		}
	}
	if first == nil {
		return 0, false
	}
	return int(first.Sub(now) / time.Second), true
}

// ListApplications lists the applications to one of the producer's listings.
func (h *ListingHandler) ListApplications(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	apps, err := h.Applications.ListForListing(ctx, uid, id)
	if err != nil {
		return respondError(c, err)
	}
	if apps == nil {
		apps = []model.Application{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": apps})
}
