package model

import "time"

// ApplicationStatus is the lifecycle state of an Application.
type ApplicationStatus string

const (
	StatusPending   ApplicationStatus = "pending"
	StatusAccepted  ApplicationStatus = "accepted"
	StatusRejected  ApplicationStatus = "rejected"
	StatusPurchased ApplicationStatus = "purchased"
)

// Valid reports whether s is a known status value.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusPurchased:
		return true
	}
	return false
}

// GrantsScriptAccess reports whether an application in this status lets
// the listing's producer read the full script body.
func (s ApplicationStatus) GrantsScriptAccess() bool {
	return s == StatusAccepted || s == StatusPurchased
}

// Application is a writer's submission of a Script against a Listing.
// WriterID and ProducerID are copied from the script and listing owners at
// creation time.  At most one application exists per (ListingID, ScriptID).
type Application struct {
	ID         uint64            `json:"id"`
	ListingID  uint64            `json:"listing_id"`
	ScriptID   uint64            `json:"script_id"`
	WriterID   uint64            `json:"writer_id"`
	ProducerID uint64            `json:"producer_id"`
	Status     ApplicationStatus `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}
