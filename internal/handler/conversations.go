package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/script-marketplace/internal/model"
	"github.com/iliyamo/script-marketplace/internal/realtime"
	"github.com/iliyamo/script-marketplace/internal/visibility"
)

// MaxMessageRunes caps the length of one conversation message.
const MaxMessageRunes = 4000

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// ConversationStore is the part of repository.ConversationRepo the
// message endpoints use.
type ConversationStore interface {
	GetByID(ctx context.Context, id uint64) (model.Conversation, error)
	AppendMessage(ctx context.Context, m *model.Message) error
	ListMessages(ctx context.Context, conversationID, afterID uint64, limit int) ([]model.Message, error)
}

// ConversationHandler serves conversation history, posting and the live
// websocket stream.
type ConversationHandler struct {
	Conversations ConversationStore
	Apps          ApplicationStore
	Hub           *realtime.Hub
	Upgrader      websocket.Upgrader
}

// NewConversationHandler constructs a ConversationHandler and panics if any dependency is nil.
func NewConversationHandler(convs ConversationStore, apps ApplicationStore, hub *realtime.Hub) *ConversationHandler {
	if convs == nil || apps == nil || hub == nil {
		panic("nil dependency passed to NewConversationHandler")
	}
	return &ConversationHandler{
		Conversations: convs,
		Apps:          apps,
		Hub:           hub,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

type postMessageReq struct {
	Body string `json:"body"`
}

// participant loads the conversation named by :id and checks that the
// caller is one of its two parties.  It writes the error response itself
// and returns ok=false when the request must stop.
func (h *ConversationHandler) participant(ctx context.Context, c echo.Context) (model.Conversation, bool, error) {
	id, ok := parseID(c, "id")
	if !ok {
		return model.Conversation{}, false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	conv, err := h.Conversations.GetByID(ctx, id)
	if err != nil {
		return model.Conversation{}, false, respondError(c, err)
	}
	app, err := h.Apps.GetByID(ctx, conv.ApplicationID)
	if err != nil {
		return model.Conversation{}, false, respondError(c, err)
	}
	if !visibility.IsConversationParticipant(viewerFrom(c), app) {
		return model.Conversation{}, false, c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return conv, true, nil
}

// ListMessages returns messages in send order.  ?after=<id> pages forward.
func (h *ConversationHandler) ListMessages(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	conv, ok, err := h.participant(ctx, c)
	if !ok {
		return err
	}
	after, _ := strconv.ParseUint(c.QueryParam("after"), 10, 64)
	msgs, err := h.Conversations.ListMessages(ctx, conv.ID, after, queryInt(c, "limit", 0))
	if err != nil {
		return respondError(c, err)
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": msgs})
}

// PostMessage appends a message and pushes it to live subscribers.
func (h *ConversationHandler) PostMessage(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req postMessageReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "body is required"})
	}
	if utf8.RuneCountInString(body) > MaxMessageRunes {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "body is too long"})
	}

	ctx, cancel := withTimeout(c)
	defer cancel()
	conv, ok, err := h.participant(ctx, c)
	if !ok {
		return err
	}
	m := model.Message{ConversationID: conv.ID, SenderID: uid, Body: body}
	if err := h.Conversations.AppendMessage(ctx, &m); err != nil {
		return respondError(c, err)
	}
	if err := h.Hub.Publish(ctx, m); err != nil {
		// Stored already; live clients will see it on their next reload.
		slog.Warn("realtime publish failed", "conversation_id", conv.ID, "message_id", m.ID, "error", err)
	}
	return c.JSON(http.StatusCreated, m)
}

// Stream upgrades to a websocket and pushes every new message of the
// conversation until the client goes away.  Client frames are ignored
// apart from control frames.
func (h *ConversationHandler) Stream(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	conv, ok, err := h.participant(ctx, c)
	cancel()
	if !ok {
		return err
	}

	conn, err := h.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return nil
	}
	defer conn.Close()

	sub := h.Hub.Subscribe(conv.ID)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return nil
		case <-c.Request().Context().Done():
			return nil
		case m, ok := <-sub.C:
			if !ok {
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(m); err != nil {
				return nil
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}
