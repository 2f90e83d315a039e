package model

import "time"

// NotificationKind names the event a notification reports.
type NotificationKind string

const (
	NotifyApplicationCreated  NotificationKind = "application.created"
	NotifyApplicationAccepted NotificationKind = "application.accepted"
	NotifyApplicationRejected NotificationKind = "application.rejected"
	NotifyScriptPurchased     NotificationKind = "script.purchased"
	NotifyProducerInterest    NotificationKind = "script.interest"
)

// Notification is a cross-user notice.  It is published to the broker as
// JSON and persisted by the consumer for the recipient's inbox.
type Notification struct {
	ID            uint64           `json:"id,omitempty"`
	RecipientID   uint64           `json:"recipient_id"`
	Kind          NotificationKind `json:"kind"`
	ActorID       uint64           `json:"actor_id"`
	ApplicationID uint64           `json:"application_id,omitempty"`
	ScriptID      uint64           `json:"script_id,omitempty"`
	ListingID     uint64           `json:"listing_id,omitempty"`
	ReadAt        *time.Time       `json:"read_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Interest marks that a producer is interested in a script.  One row per
// (ScriptID, ProducerID); repeated marks only bump UpdatedAt.
type Interest struct {
	ScriptID   uint64    `json:"script_id"`
	ProducerID uint64    `json:"producer_id"`
	WriterID   uint64    `json:"writer_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
