// Package visibility decides which listing, script and application data a
// viewer may see.  All checks are evaluated against current application
// status; nothing here caches a grant.
package visibility

import (
	"time"
	"unicode/utf8"

	"github.com/iliyamo/script-marketplace/internal/model"
	"github.com/iliyamo/script-marketplace/internal/pricing"
)

// ExcerptRunes is the length of the synopsis excerpt shown in summaries.
const ExcerptRunes = 160

// Viewer is the identity a projection is computed for.
type Viewer struct {
	UserID        uint64
	Role          model.Role
	Authenticated bool
}

func (v Viewer) is(r model.Role) bool { return v.Authenticated && v.Role == r }

// CanBrowseListings is true for any signed-in writer or producer.
func CanBrowseListings(v Viewer) bool {
	return v.is(model.RoleWriter) || v.is(model.RoleProducer)
}

// CanBrowseScripts is true for producers.  Writers only list their own
// scripts through the owner endpoints.
func CanBrowseScripts(v Viewer) bool { return v.is(model.RoleProducer) }

// CanViewScriptSummary reports whether v may see the summary fields of s.
func CanViewScriptSummary(v Viewer, s model.Script) bool {
	return CanBrowseScripts(v) || OwnsScript(v, s)
}

// OwnsScript reports whether v is the writer who owns s.
func OwnsScript(v Viewer, s model.Script) bool {
	return v.is(model.RoleWriter) && s.OwnerID == v.UserID
}

// CanViewScriptBody reports whether v may read the synopsis and
// description of s.  Owners always may.  A producer needs an application
// for s on one of their listings whose status is accepted or purchased.
// grants are the applications referencing s; the caller loads them fresh.
func CanViewScriptBody(v Viewer, s model.Script, grants []model.Application) bool {
	if OwnsScript(v, s) {
		return true
	}
	if !v.is(model.RoleProducer) {
		return false
	}
	for _, a := range grants {
		if a.ScriptID == s.ID && a.ProducerID == v.UserID && a.Status.GrantsScriptAccess() {
			return true
		}
	}
	return false
}

// CanViewApplication is true for the writer who applied and the producer
// owning the listing.
func CanViewApplication(v Viewer, a model.Application) bool {
	switch {
	case v.is(model.RoleWriter):
		return a.WriterID == v.UserID
	case v.is(model.RoleProducer):
		return a.ProducerID == v.UserID
	}
	return false
}

// IsConversationParticipant reports whether v may read and post in the
// conversation of application a.  Conversations only exist once a has been
// accepted.
func IsConversationParticipant(v Viewer, a model.Application) bool {
	if !CanViewApplication(v, a) {
		return false
	}
	return a.Status.GrantsScriptAccess()
}

// ScriptView is a script as returned to a particular viewer.  Synopsis and
// Description are nil when the body is gated.
type ScriptView struct {
	ID            uint64                  `json:"id"`
	OwnerID       *uint64                 `json:"owner_id,omitempty"`
	Title         string                  `json:"title"`
	Genre         string                  `json:"genre"`
	LengthMinutes uint32                  `json:"length_minutes"`
	PriceCents    *int64                  `json:"price_cents"`
	Price         *pricing.PriceBreakdown `json:"price"`
	Excerpt       string                  `json:"excerpt"`
	Synopsis      *string                 `json:"synopsis,omitempty"`
	Description   *string                 `json:"description,omitempty"`
	FullAccess    bool                    `json:"full_access"`
	CreatedAt     time.Time               `json:"created_at"`
}

// ProjectScript returns the view of s for v and whether v may see it at
// all.
func ProjectScript(v Viewer, s model.Script, grants []model.Application) (ScriptView, bool) {
	if !CanViewScriptSummary(v, s) {
		return ScriptView{}, false
	}
	out := Summary(s)
	if CanViewScriptBody(v, s, grants) {
		syn, desc := s.Synopsis, s.Description
		out.Synopsis = &syn
		out.Description = &desc
		out.FullAccess = true
	}
	if OwnsScript(v, s) {
		owner := s.OwnerID
		out.OwnerID = &owner
	}
	return out, true
}

// Summary returns the browse fields of s with the body withheld.
func Summary(s model.Script) ScriptView {
	return ScriptView{
		ID:            s.ID,
		Title:         s.Title,
		Genre:         s.Genre,
		LengthMinutes: s.LengthMinutes,
		PriceCents:    s.PriceCents,
		Price:         pricing.Breakdown(s.PriceCents),
		Excerpt:       Excerpt(s.Synopsis, ExcerptRunes),
		CreatedAt:     s.CreatedAt,
	}
}

// Excerpt shortens text to at most n runes, marking truncation with an
// ellipsis.
func Excerpt(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	r := []rune(text)
	return string(r[:n]) + "…"
}

// ListingView is a listing as shown in browse results.
type ListingView struct {
	ID          uint64              `json:"id"`
	Source      model.ListingSource `json:"source"`
	Title       string              `json:"title"`
	Genre       string              `json:"genre"`
	Description string              `json:"description"`
	BudgetCents int64               `json:"budget_cents"`
	Deadline    *time.Time          `json:"deadline,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// ProjectListing returns the browse view of l for v.  The view is the same
// for every viewer allowed to browse, so browse responses can be cached.
func ProjectListing(v Viewer, l model.Listing) (ListingView, bool) {
	if !CanBrowseListings(v) {
		return ListingView{}, false
	}
	return ListingView{
		ID:          l.ID,
		Source:      l.Source,
		Title:       l.Title,
		Genre:       l.Genre,
		Description: l.Description,
		BudgetCents: l.BudgetCents,
		Deadline:    l.Deadline,
		CreatedAt:   l.CreatedAt,
	}, true
}

// IsOpen reports whether l still accepts applications at now.
func IsOpen(l model.Listing, now time.Time) bool {
	return l.Deadline == nil || l.Deadline.After(now)
}
