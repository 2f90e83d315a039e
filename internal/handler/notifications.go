package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/script-marketplace/internal/model"
)

// NotificationStore is the inbox.
type NotificationStore interface {
	ListForRecipient(ctx context.Context, recipientID uint64, unreadOnly bool, limit int) ([]model.Notification, error)
	MarkAllRead(ctx context.Context, recipientID uint64) (int64, error)
}

type NotificationHandler struct {
	Inbox NotificationStore
}

func NewNotificationHandler(inbox NotificationStore) *NotificationHandler {
	if inbox == nil {
		panic("nil repository passed to NewNotificationHandler")
	}
	return &NotificationHandler{Inbox: inbox}
}

// List returns the caller's notifications, newest first.
func (h *NotificationHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	items, err := h.Inbox.ListForRecipient(ctx, uid, c.QueryParam("unread") == "true", queryInt(c, "limit", 0))
	if err != nil {
		return respondError(c, err)
	}
	if items == nil {
		items = []model.Notification{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// MarkRead marks all of the caller's notifications read.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	n, err := h.Inbox.MarkAllRead(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": n})
}
