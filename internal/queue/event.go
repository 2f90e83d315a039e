// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/script-marketplace/internal/model"
)

// NotificationQueueName is the durable queue carrying cross-user
// notifications from request handlers to the consumer.
const NotificationQueueName = "marketplace.notifications"

// NotificationEvent is the wire form of a notification.  EventID lets the
// consumer recognise redeliveries in its log.
type NotificationEvent struct {
	EventID       string                 `json:"event_id"`
	Kind          model.NotificationKind `json:"kind"`
	RecipientID   uint64                 `json:"recipient_id"`
	ActorID       uint64                 `json:"actor_id"`
	ApplicationID uint64                 `json:"application_id,omitempty"`
	ScriptID      uint64                 `json:"script_id,omitempty"`
	ListingID     uint64                 `json:"listing_id,omitempty"`
	OccurredAt    string                 `json:"occurred_at"`
}

// ErrInvalidEvent is returned by Decode for payloads that parse but are
// missing required fields.
var ErrInvalidEvent = errors.New("invalid notification event")

// Encode wraps n in a NotificationEvent with a fresh event id.
func Encode(n model.Notification) ([]byte, error) {
	at := n.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return json.Marshal(NotificationEvent{
		EventID:       uuid.NewString(),
		Kind:          n.Kind,
		RecipientID:   n.RecipientID,
		ActorID:       n.ActorID,
		ApplicationID: n.ApplicationID,
		ScriptID:      n.ScriptID,
		ListingID:     n.ListingID,
		OccurredAt:    at.UTC().Format(time.RFC3339),
	})
}

// Decode parses body into an event and the notification it carries.
func Decode(body []byte) (NotificationEvent, model.Notification, error) {
	var ev NotificationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return NotificationEvent{}, model.Notification{}, fmt.Errorf("unmarshal: %w", err)
	}
	if ev.RecipientID == 0 || ev.Kind == "" {
		return ev, model.Notification{}, ErrInvalidEvent
	}
	n := model.Notification{
		RecipientID:   ev.RecipientID,
		Kind:          ev.Kind,
		ActorID:       ev.ActorID,
		ApplicationID: ev.ApplicationID,
		ScriptID:      ev.ScriptID,
		ListingID:     ev.ListingID,
	}
	if t, err := time.Parse(time.RFC3339, ev.OccurredAt); err == nil {
		n.CreatedAt = t.UTC()
	} else {
		n.CreatedAt = time.Now().UTC()
	}
	return ev, n, nil
}
