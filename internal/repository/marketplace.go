package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/script-marketplace/internal/lifecycle"
	"github.com/iliyamo/script-marketplace/internal/model"
)

// Marketplace bundles the repositories the application lifecycle needs and
// implements lifecycle.Store over them.
type Marketplace struct {
	Scripts       *ScriptRepo
	Listings      *ListingRepo
	Applications  *ApplicationRepo
	Conversations *ConversationRepo
	Orders        *OrderRepo
}

var _ lifecycle.Store = (*Marketplace)(nil)

// NewMarketplace builds every repository over one connection pool.
func NewMarketplace(db *sql.DB) *Marketplace {
	return &Marketplace{
		Scripts:       NewScriptRepo(db),
		Listings:      NewListingRepo(db),
		Applications:  NewApplicationRepo(db),
		Conversations: NewConversationRepo(db),
		Orders:        NewOrderRepo(db),
	}
}

func (m *Marketplace) GetListing(ctx context.Context, id uint64) (model.Listing, error) {
	return m.Listings.GetByID(ctx, id)
}

func (m *Marketplace) GetScript(ctx context.Context, id uint64) (model.Script, error) {
	return m.Scripts.GetByID(ctx, id)
}

func (m *Marketplace) GetApplication(ctx context.Context, id uint64) (model.Application, error) {
	return m.Applications.GetByID(ctx, id)
}

func (m *Marketplace) FindApplication(ctx context.Context, listingID, scriptID uint64) (model.Application, bool, error) {
	return m.Applications.FindByPair(ctx, listingID, scriptID)
}

func (m *Marketplace) CreateApplication(ctx context.Context, app *model.Application) error {
	return m.Applications.Create(ctx, app)
}

func (m *Marketplace) UpdateApplicationStatus(ctx context.Context, id uint64, from, to model.ApplicationStatus) error {
	return m.Applications.UpdateStatus(ctx, id, from, to)
}

func (m *Marketplace) EnsureConversation(ctx context.Context, applicationID uint64) (model.Conversation, error) {
	return m.Conversations.Ensure(ctx, applicationID)
}

func (m *Marketplace) FindOrderByApplication(ctx context.Context, applicationID uint64) (model.Order, bool, error) {
	return m.Orders.FindByApplication(ctx, applicationID)
}

func (m *Marketplace) CreateOrder(ctx context.Context, order *model.Order) error {
	return m.Orders.Create(ctx, order)
}
