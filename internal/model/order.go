package model

import "time"

// Order records the purchase of a Script by a producer.  ApplicationID is
// unique so a retried purchase never produces a second order.
type Order struct {
	ID            uint64    `json:"id"`
	ScriptID      uint64    `json:"script_id"`
	BuyerID       uint64    `json:"buyer_id"`
	ApplicationID uint64    `json:"application_id"`
	AmountCents   int64     `json:"amount_cents"`
	CreatedAt     time.Time `json:"created_at"`
}
