package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/script-marketplace/internal/lifecycle"
	"github.com/iliyamo/script-marketplace/internal/model"
)

// InterestStore records producer interest.
type InterestStore interface {
	Upsert(ctx context.Context, in model.Interest) (bool, error)
}

// InterestHandler serves the small /api surface: the interest procedure
// and the messages stub.
type InterestHandler struct {
	Interests InterestStore
	Notifier  lifecycle.Notifier
}

// NewInterestHandler constructs an InterestHandler and panics if any dependency is nil.
func NewInterestHandler(store InterestStore, notifier lifecycle.Notifier) *InterestHandler {
	if store == nil || notifier == nil {
		panic("nil dependency passed to NewInterestHandler")
	}
	return &InterestHandler{Interests: store, Notifier: notifier}
}

type interestReq struct {
	ScriptID   *json.Number `json:"scriptId"`
	ProducerID *json.Number `json:"producerId"`
	WriterID   *json.Number `json:"writerId"`
}

func positiveID(n *json.Number) (uint64, bool) {
	if n == nil {
		return 0, false
	}
	v, err := n.Int64()
	if err != nil || v <= 0 {
		return 0, false
	}
	return uint64(v), true
}

// Express records that a producer is interested in a script and queues a
// notification for the writer.  Repeating the call is harmless.
func (h *InterestHandler) Express(c echo.Context) error {
	var req interestReq
	dec := json.NewDecoder(c.Request().Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid JSON body"})
	}
	scriptID, ok := positiveID(req.ScriptID)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "scriptId must be a positive integer"})
	}
	producerID, ok := positiveID(req.ProducerID)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "producerId must be a positive integer"})
	}
	writerID, ok := positiveID(req.WriterID)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "writerId must be a positive integer"})
	}

	ctx, cancel := withTimeout(c)
	defer cancel()
	created, err := h.Interests.Upsert(ctx, model.Interest{ScriptID: scriptID, ProducerID: producerID, WriterID: writerID})
	if err != nil {
		return respondError(c, err)
	}
	if created {
		n := model.Notification{
			RecipientID: writerID,
			Kind:        model.NotifyProducerInterest,
			ActorID:     producerID,
			ScriptID:    scriptID,
		}
		if err := h.Notifier.Notify(ctx, n); err != nil {
			slog.Warn("interest notification failed", "script_id", scriptID, "writer_id", writerID, "error", err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "queued"})
}

// Messages is a placeholder that lists no messages.
func (h *InterestHandler) Messages(c echo.Context) error {
	if c.Request().Method != http.MethodGet {
		c.Response().Header().Set(echo.HeaderAllow, http.MethodGet)
		return c.JSON(http.StatusMethodNotAllowed, echo.Map{"error": "method not allowed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": []model.Message{}})
}
