package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/script-marketplace/internal/model"
)

// Actor is the identity performing an operation.  It is passed explicitly
// rather than read from request state.
type Actor struct {
	UserID uint64
	Role   model.Role
}

// Store is the persistence port used by Service.  Implementations return
// ErrNotFound for missing rows and ErrDuplicateApplication when the
// (listing, script) unique key is violated.
type Store interface {
	GetListing(ctx context.Context, id uint64) (model.Listing, error)
	GetScript(ctx context.Context, id uint64) (model.Script, error)
	GetApplication(ctx context.Context, id uint64) (model.Application, error)
	// FindApplication looks up the application for a (listing, script)
	// pair; ok is false when none exists.
	FindApplication(ctx context.Context, listingID, scriptID uint64) (app model.Application, ok bool, err error)
	CreateApplication(ctx context.Context, app *model.Application) error
	// UpdateApplicationStatus moves the row from one status to another and
	// returns ErrStaleStatus when the row is no longer in from.
	UpdateApplicationStatus(ctx context.Context, id uint64, from, to model.ApplicationStatus) error
	// EnsureConversation returns the conversation for the application,
	// creating it when absent.  Repeated calls return the same row.
	EnsureConversation(ctx context.Context, applicationID uint64) (model.Conversation, error)
	FindOrderByApplication(ctx context.Context, applicationID uint64) (order model.Order, ok bool, err error)
	CreateOrder(ctx context.Context, order *model.Order) error
}

// Notifier enqueues a cross-user notification.  Delivery is fire-and-forget:
// Service logs failures and never fails an operation because of them.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// Service runs application transitions against a Store.
type Service struct {
	store    Store
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the notification sink.
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithLogger sets the logger used for notification failures.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService returns a Service over store.
func NewService(store Store, opts ...Option) *Service {
	if store == nil {
		panic("nil store passed to lifecycle.NewService")
	}
	s := &Service{store: store, log: slog.Default(), now: func() time.Time { return time.Now().UTC() }}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AcceptResult is returned by Accept.
type AcceptResult struct {
	Application  model.Application
	Conversation model.Conversation
}

// PurchaseResult is returned by Purchase.
type PurchaseResult struct {
	Application model.Application
	Order       model.Order
}

// Apply submits scriptID to listingID on behalf of a writer.  The script
// must belong to the writer and the pair must not have an application yet.
func (s *Service) Apply(ctx context.Context, actor Actor, listingID, scriptID uint64) (model.Application, error) {
	if actor.Role != model.RoleWriter {
		return model.Application{}, fmt.Errorf("%w: only writers can apply", ErrPermission)
	}
	if listingID == 0 {
		return model.Application{}, &ValidationError{Field: "listing_id", Reason: "required"}
	}
	if scriptID == 0 {
		return model.Application{}, &ValidationError{Field: "script_id", Reason: "required"}
	}
	script, err := s.store.GetScript(ctx, scriptID)
	if err != nil {
		return model.Application{}, fmt.Errorf("load script: %w", err)
	}
	if script.OwnerID != actor.UserID {
		return model.Application{}, fmt.Errorf("%w: script %d is not yours", ErrPermission, scriptID)
	}
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return model.Application{}, fmt.Errorf("load listing: %w", err)
	}
	if listing.Deadline != nil && !listing.Deadline.After(s.now()) {
		return model.Application{}, &ValidationError{Field: "listing_id", Reason: "listing deadline has passed"}
	}
	if _, ok, err := s.store.FindApplication(ctx, listingID, scriptID); err != nil {
		return model.Application{}, fmt.Errorf("check existing application: %w", err)
	} else if ok {
		return model.Application{}, ErrDuplicateApplication
	}
	app := model.Application{
		ListingID:  listing.ID,
		ScriptID:   script.ID,
		WriterID:   actor.UserID,
		ProducerID: listing.OwnerID,
		Status:     model.StatusPending,
		CreatedAt:  s.now(),
	}
	app.UpdatedAt = app.CreatedAt
	if err := s.store.CreateApplication(ctx, &app); err != nil {
		if errors.Is(err, ErrDuplicateApplication) {
			return model.Application{}, ErrDuplicateApplication
		}
		return model.Application{}, fmt.Errorf("create application: %w", err)
	}
	s.notify(ctx, model.Notification{
		RecipientID:   app.ProducerID,
		Kind:          model.NotifyApplicationCreated,
		ActorID:       actor.UserID,
		ApplicationID: app.ID,
		ScriptID:      app.ScriptID,
		ListingID:     app.ListingID,
	})
	return app, nil
}

// Accept moves a pending application to accepted and ensures its
// conversation exists.  Accepting an accepted application only replays
// the conversation upsert.
func (s *Service) Accept(ctx context.Context, actor Actor, applicationID uint64) (AcceptResult, error) {
	app, err := s.loadOwned(ctx, actor, applicationID)
	if err != nil {
		return AcceptResult{}, err
	}
	next, err := Transition(app.Status, ActionAccept)
	if err != nil {
		return AcceptResult{}, err
	}
	changed := next != app.Status
	if changed {
		err := s.store.UpdateApplicationStatus(ctx, app.ID, app.Status, next)
		switch {
		case err == nil:
			app.Status = next
			app.UpdatedAt = s.now()
		case errors.Is(err, ErrStaleStatus):
			// A concurrent accept won the race; continue with its result.
			current, gerr := s.store.GetApplication(ctx, app.ID)
			if gerr != nil {
				return AcceptResult{}, fmt.Errorf("reload application: %w", gerr)
			}
			if current.Status != model.StatusAccepted {
				return AcceptResult{}, fmt.Errorf("%w: application is now %s", ErrInvalidTransition, current.Status)
			}
			app = current
			changed = false
		default:
			return AcceptResult{}, fmt.Errorf("update status: %w", err)
		}
	}
	conv, err := s.store.EnsureConversation(ctx, app.ID)
	if err != nil {
		return AcceptResult{Application: app}, &PartialFailureError{
			Op: ActionAccept, Step: "conversation", ApplicationID: app.ID, Err: err,
		}
	}
	if changed {
		s.notify(ctx, model.Notification{
			RecipientID:   app.WriterID,
			Kind:          model.NotifyApplicationAccepted,
			ActorID:       actor.UserID,
			ApplicationID: app.ID,
			ScriptID:      app.ScriptID,
			ListingID:     app.ListingID,
		})
	}
	return AcceptResult{Application: app, Conversation: conv}, nil
}

// Reject moves a pending application to rejected.
func (s *Service) Reject(ctx context.Context, actor Actor, applicationID uint64) (model.Application, error) {
	app, err := s.loadOwned(ctx, actor, applicationID)
	if err != nil {
		return model.Application{}, err
	}
	next, err := Transition(app.Status, ActionReject)
	if err != nil {
		return model.Application{}, err
	}
	if err := s.store.UpdateApplicationStatus(ctx, app.ID, app.Status, next); err != nil {
		if errors.Is(err, ErrStaleStatus) {
			return model.Application{}, s.staleTransition(ctx, app.ID)
		}
		return model.Application{}, fmt.Errorf("update status: %w", err)
	}
	app.Status = next
	app.UpdatedAt = s.now()
	s.notify(ctx, model.Notification{
		RecipientID:   app.WriterID,
		Kind:          model.NotifyApplicationRejected,
		ActorID:       actor.UserID,
		ApplicationID: app.ID,
		ScriptID:      app.ScriptID,
		ListingID:     app.ListingID,
	})
	return app, nil
}

// Purchase records an order for the script at its current price and then
// marks the application purchased.  The status update only runs after the
// order exists.  A retry after a failed status update reuses the order.
func (s *Service) Purchase(ctx context.Context, actor Actor, applicationID uint64) (PurchaseResult, error) {
	app, err := s.loadOwned(ctx, actor, applicationID)
	if err != nil {
		return PurchaseResult{}, err
	}
	next, err := Transition(app.Status, ActionPurchase)
	if err != nil {
		return PurchaseResult{}, err
	}
	script, err := s.store.GetScript(ctx, app.ScriptID)
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("load script: %w", err)
	}
	if script.PriceCents == nil {
		return PurchaseResult{}, ErrPriceUnknown
	}
	if *script.PriceCents < 0 {
		return PurchaseResult{}, &ValidationError{Field: "price_cents", Reason: "must not be negative"}
	}

	order, found, err := s.store.FindOrderByApplication(ctx, app.ID)
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("check existing order: %w", err)
	}
	if !found {
		order = model.Order{
			ScriptID:      script.ID,
			BuyerID:       actor.UserID,
			ApplicationID: app.ID,
			AmountCents:   *script.PriceCents,
			CreatedAt:     s.now(),
		}
		if err := s.store.CreateOrder(ctx, &order); err != nil {
			return PurchaseResult{}, fmt.Errorf("create order: %w", err)
		}
	}

	err = s.store.UpdateApplicationStatus(ctx, app.ID, app.Status, next)
	switch {
	case err == nil:
	case errors.Is(err, ErrStaleStatus):
		// A concurrent purchase of the same application finished first.
		current, gerr := s.store.GetApplication(ctx, app.ID)
		if gerr != nil {
			return PurchaseResult{}, fmt.Errorf("reload application: %w", gerr)
		}
		if current.Status != model.StatusPurchased {
			return PurchaseResult{}, fmt.Errorf("%w: application is now %s", ErrInvalidTransition, current.Status)
		}
		return PurchaseResult{Application: current, Order: order}, nil
	default:
		return PurchaseResult{Application: app, Order: order}, &PartialFailureError{
			Op: ActionPurchase, Step: "status", ApplicationID: app.ID, Err: err,
		}
	}
	app.Status = next
	app.UpdatedAt = s.now()
	s.notify(ctx, model.Notification{
		RecipientID:   app.WriterID,
		Kind:          model.NotifyScriptPurchased,
		ActorID:       actor.UserID,
		ApplicationID: app.ID,
		ScriptID:      app.ScriptID,
		ListingID:     app.ListingID,
	})
	return PurchaseResult{Application: app, Order: order}, nil
}

// loadOwned loads an application and checks that actor is the producer
// owning its listing.
func (s *Service) loadOwned(ctx context.Context, actor Actor, applicationID uint64) (model.Application, error) {
	if actor.Role != model.RoleProducer {
		return model.Application{}, fmt.Errorf("%w: only producers can change application status", ErrPermission)
	}
	if applicationID == 0 {
		return model.Application{}, &ValidationError{Field: "application_id", Reason: "required"}
	}
	app, err := s.store.GetApplication(ctx, applicationID)
	if err != nil {
		return model.Application{}, fmt.Errorf("load application: %w", err)
	}
	listing, err := s.store.GetListing(ctx, app.ListingID)
	if err != nil {
		return model.Application{}, fmt.Errorf("load listing: %w", err)
	}
	if listing.OwnerID != actor.UserID {
		return model.Application{}, fmt.Errorf("%w: listing %d is not yours", ErrPermission, listing.ID)
	}
	return app, nil
}

// staleTransition reports the status a concurrent writer left behind.
func (s *Service) staleTransition(ctx context.Context, applicationID uint64) error {
	current, err := s.store.GetApplication(ctx, applicationID)
	if err != nil {
		return fmt.Errorf("reload application: %w", err)
	}
	return fmt.Errorf("%w: application is now %s", ErrInvalidTransition, current.Status)
}

func (s *Service) notify(ctx context.Context, n model.Notification) {
	if s.notifier == nil || n.RecipientID == 0 {
		return
	}
	n.CreatedAt = s.now()
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Warn("notification enqueue failed",
			"kind", n.Kind, "recipient_id", n.RecipientID, "application_id", n.ApplicationID, "error", err)
	}
}
