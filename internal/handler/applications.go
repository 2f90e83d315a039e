package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/script-marketplace/internal/lifecycle"
	"github.com/iliyamo/script-marketplace/internal/model"
	"github.com/iliyamo/script-marketplace/internal/pricing"
	"github.com/iliyamo/script-marketplace/internal/visibility"
)

// ApplicationStore reads applications.
type ApplicationStore interface {
	GetByID(ctx context.Context, id uint64) (model.Application, error)
	ListByWriter(ctx context.Context, writerID uint64) ([]model.Application, error)
}

// ConversationLookup finds the conversation opened for an application.
type ConversationLookup interface {
	GetByApplication(ctx context.Context, applicationID uint64) (model.Conversation, error)
}

// OrderStore reads purchases.
type OrderStore interface {
	ListByBuyer(ctx context.Context, buyerID uint64) ([]model.Order, error)
}

// ApplicationHandler exposes the application lifecycle over HTTP.
type ApplicationHandler struct {
	Service       *lifecycle.Service
	Apps          ApplicationStore
	Conversations ConversationLookup
	Orders        OrderStore
}

// NewApplicationHandler constructs an ApplicationHandler and panics if any dependency is nil.
func NewApplicationHandler(svc *lifecycle.Service, apps ApplicationStore, convs ConversationLookup, orders OrderStore) *ApplicationHandler {
	if svc == nil || apps == nil || convs == nil || orders == nil {
		panic("nil dependency passed to NewApplicationHandler")
	}
	return &ApplicationHandler{Service: svc, Apps: apps, Conversations: convs, Orders: orders}
}

type applyReq struct {
	ListingID uint64 `json:"listing_id"`
	ScriptID  uint64 `json:"script_id"`
}

type orderView struct {
	model.Order
	Price *pricing.PriceBreakdown `json:"price"`
}

func newOrderView(o model.Order) orderView {
	amount := o.AmountCents
	return orderView{Order: o, Price: pricing.Breakdown(&amount)}
}

// Apply submits one of the writer's scripts to a listing.
func (h *ApplicationHandler) Apply(c echo.Context) error {
	var req applyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	app, err := h.Service.Apply(ctx, actorFrom(c), req.ListingID, req.ScriptID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, app)
}

// Accept accepts a pending application and returns its conversation.
func (h *ApplicationHandler) Accept(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	res, err := h.Service.Accept(ctx, actorFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"application": res.Application, "conversation": res.Conversation})
}

// Reject rejects a pending application.
func (h *ApplicationHandler) Reject(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	app, err := h.Service.Reject(ctx, actorFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"application": app})
}

// Purchase buys the script of an accepted application.
func (h *ApplicationHandler) Purchase(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	res, err := h.Service.Purchase(ctx, actorFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"application": res.Application, "order": newOrderView(res.Order)})
}

// Get returns one application to either party.
func (h *ApplicationHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	app, err := h.Apps.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if !visibility.CanViewApplication(viewerFrom(c), app) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, app)
}

// ListMine returns the writer's submitted applications.
func (h *ApplicationHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	apps, err := h.Apps.ListByWriter(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	if apps == nil {
		apps = []model.Application{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": apps})
}

// Conversation returns the conversation of an accepted or purchased
// application to its participants.
func (h *ApplicationHandler) Conversation(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	app, err := h.Apps.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if !visibility.IsConversationParticipant(viewerFrom(c), app) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	conv, err := h.Conversations.GetByApplication(ctx, app.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}

// MyOrders returns the producer's purchases.
func (h *ApplicationHandler) MyOrders(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	orders, err := h.Orders.ListByBuyer(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, newOrderView(o))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}
