package model

import "time"

// Script is a screenplay owned by exactly one writer.  Synopsis and
// Description form the gated full body; everything else is summary data
// that any authenticated producer may browse.
//
// PriceCents is nullable: a script without a price cannot be purchased.
type Script struct {
	ID            uint64    `json:"id"`
	OwnerID       uint64    `json:"owner_id"`
	Title         string    `json:"title"`
	Genre         string    `json:"genre"`
	LengthMinutes uint32    `json:"length_minutes"`
	Synopsis      string    `json:"synopsis"`
	Description   string    `json:"description"`
	PriceCents    *int64    `json:"price_cents"`
	CreatedAt     time.Time `json:"created_at"`
}
