package model

import "time"

// ListingSource distinguishes the two kinds of producer call for scripts.
// Both are read through the same Listing type.
type ListingSource string

const (
	// SourceRequest is an ad-hoc request for a specific script.
	SourceRequest ListingSource = "request"
	// SourceProducerListing is a persistent listing on the producer's page.
	SourceProducerListing ListingSource = "producer_listing"
)

// ParseListingSource returns the source for raw, defaulting to
// SourceProducerListing when raw is empty.  ok is false for unknown values.
func ParseListingSource(raw string) (ListingSource, bool) {
	switch ListingSource(raw) {
	case "", SourceProducerListing:
		return SourceProducerListing, true
	case SourceRequest:
		return SourceRequest, true
	}
	return "", false
}

// Listing is a producer's public call for scripts.
type Listing struct {
	ID          uint64        `json:"id"`
	OwnerID     uint64        `json:"owner_id"`
	Source      ListingSource `json:"source"`
	Title       string        `json:"title"`
	Genre       string        `json:"genre"`
	Description string        `json:"description"`
	BudgetCents int64         `json:"budget_cents"`
	Deadline    *time.Time    `json:"deadline,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}
