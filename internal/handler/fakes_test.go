package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/script-marketplace/internal/lifecycle"
	"github.com/iliyamo/script-marketplace/internal/middleware"
	"github.com/iliyamo/script-marketplace/internal/model"
	"github.com/iliyamo/script-marketplace/internal/repository"
	"github.com/iliyamo/script-marketplace/internal/utils"
)

const secret = "handler-secret"

func bearer(t *testing.T, id uint64, role model.Role) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, id, role, 5)
	require.NoError(t, err)
	return tok.Token
}

// authed returns an echo instance plus the /v1 group behind JWTAuth.
func authed() (*echo.Echo, *echo.Group) {
	e := echo.New()
	return e, e.Group("/v1", middleware.JWTAuth(secret))
}

func call(e *echo.Echo, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// fakeDB is the in-memory backing for every store interface the handlers
// use.  The narrow views below expose it under each interface.
type fakeDB struct {
	mu        sync.Mutex
	next      uint64
	scripts   map[uint64]model.Script
	listings  map[uint64]model.Listing
	apps      map[uint64]model.Application
	convs     map[uint64]model.Conversation // keyed by application id
	messages  []model.Message
	orders    map[uint64]model.Order // keyed by application id
	failState error
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		scripts:  map[uint64]model.Script{},
		listings: map[uint64]model.Listing{},
		apps:     map[uint64]model.Application{},
		convs:    map[uint64]model.Conversation{},
		orders:   map[uint64]model.Order{},
	}
}

func (d *fakeDB) id() uint64 { d.next++; return d.next }

func (d *fakeDB) addScript(s model.Script) model.Script {
	d.mu.Lock()
	defer d.mu.Unlock()
	s.ID = d.id()
	d.scripts[s.ID] = s
	return s
}

func (d *fakeDB) addListing(l model.Listing) model.Listing {
	d.mu.Lock()
	defer d.mu.Unlock()
	l.ID = d.id()
	if l.Source == "" {
		l.Source = model.SourceProducerListing
	}
	d.listings[l.ID] = l
	return l
}

func (d *fakeDB) addApp(a model.Application) model.Application {
	d.mu.Lock()
	defer d.mu.Unlock()
	a.ID = d.id()
	d.apps[a.ID] = a
	return a
}

func (d *fakeDB) setStatus(id uint64, s model.ApplicationStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a := d.apps[id]
	a.Status = s
	d.apps[id] = a
}

// ---- lifecycle.Store ----

func (d *fakeDB) GetListing(_ context.Context, id uint64) (model.Listing, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.listings[id]
	if !ok {
		return model.Listing{}, repository.ErrNotFound
	}
	return l, nil
}

func (d *fakeDB) GetScript(_ context.Context, id uint64) (model.Script, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.scripts[id]
	if !ok {
		return model.Script{}, repository.ErrNotFound
	}
	return s, nil
}

func (d *fakeDB) GetApplication(_ context.Context, id uint64) (model.Application, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.apps[id]
	if !ok {
		return model.Application{}, repository.ErrNotFound
	}
	return a, nil
}

func (d *fakeDB) FindApplication(_ context.Context, listingID, scriptID uint64) (model.Application, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range d.apps {
		if a.ListingID == listingID && a.ScriptID == scriptID {
			return a, true, nil
		}
	}
	return model.Application{}, false, nil
}

func (d *fakeDB) CreateApplication(_ context.Context, app *model.Application) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	app.ID = d.id()
	d.apps[app.ID] = *app
	return nil
}

func (d *fakeDB) UpdateApplicationStatus(_ context.Context, id uint64, from, to model.ApplicationStatus) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failState != nil {
		return d.failState
	}
	a, ok := d.apps[id]
	if !ok {
		return repository.ErrNotFound
	}
	if a.Status != from {
		return lifecycle.ErrStaleStatus
	}
	a.Status = to
	d.apps[id] = a
	return nil
}

func (d *fakeDB) EnsureConversation(_ context.Context, applicationID uint64) (model.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.convs[applicationID]; ok {
		return c, nil
	}
	c := model.Conversation{ID: d.id(), ApplicationID: applicationID, CreatedAt: time.Now().UTC()}
	d.convs[applicationID] = c
	return c, nil
}

func (d *fakeDB) FindOrderByApplication(_ context.Context, applicationID uint64) (model.Order, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.orders[applicationID]
	return o, ok, nil
}

func (d *fakeDB) CreateOrder(_ context.Context, o *model.Order) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	o.ID = d.id()
	d.orders[o.ApplicationID] = *o
	return nil
}

// ---- scripts ----

type fakeScripts struct{ *fakeDB }

func (f fakeScripts) Create(_ context.Context, s *model.Script) error {
	*s = f.addScript(*s)
	return nil
}

func (f fakeScripts) Update(_ context.Context, ownerID uint64, s *model.Script) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.scripts[s.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.OwnerID != ownerID {
		return repository.ErrForbidden
	}
	s.OwnerID = ownerID
	f.scripts[s.ID] = *s
	return nil
}

func (f fakeScripts) GetByID(ctx context.Context, id uint64) (model.Script, error) {
	return f.GetScript(ctx, id)
}

func (f fakeScripts) ListByOwner(_ context.Context, ownerID uint64) ([]model.Script, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Script
	for _, s := range f.scripts {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeScripts) List(_ context.Context, flt repository.ScriptFilter) ([]model.Script, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Script
	for _, s := range f.scripts {
		if flt.Genre == "" || s.Genre == flt.Genre {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeScripts) GrantsForScript(_ context.Context, scriptID, producerID uint64) ([]model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Application
	for _, a := range f.apps {
		if a.ScriptID == scriptID && a.ProducerID == producerID && a.Status.GrantsScriptAccess() {
			out = append(out, a)
		}
	}
	return out, nil
}

// ---- listings ----

type fakeListings struct{ *fakeDB }

func (f fakeListings) Create(_ context.Context, l *model.Listing) error {
	*l = f.addListing(*l)
	return nil
}

func (f fakeListings) GetByID(ctx context.Context, id uint64) (model.Listing, error) {
	return f.GetListing(ctx, id)
}

func (f fakeListings) ListByOwner(_ context.Context, ownerID uint64) ([]model.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Listing
	for _, l := range f.listings {
		if l.OwnerID == ownerID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f fakeListings) Browse(_ context.Context, flt repository.ListingFilter) ([]model.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Listing
	for _, l := range f.listings {
		if flt.Source != "" && l.Source != flt.Source {
			continue
		}
		if flt.OpenOnly && l.Deadline != nil && !l.Deadline.After(flt.Now) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeListings) ListForListing(_ context.Context, ownerID, listingID uint64) ([]model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[listingID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if l.OwnerID != ownerID {
		return nil, repository.ErrForbidden
	}
	var out []model.Application
	for _, a := range f.apps {
		if a.ListingID == listingID {
			out = append(out, a)
		}
	}
	return out, nil
}

// ---- applications, conversations, orders ----

type fakeApps struct{ *fakeDB }

func (f fakeApps) GetByID(ctx context.Context, id uint64) (model.Application, error) {
	return f.GetApplication(ctx, id)
}

func (f fakeApps) ListByWriter(_ context.Context, writerID uint64) ([]model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Application
	for _, a := range f.apps {
		if a.WriterID == writerID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeConvs struct{ *fakeDB }

func (f fakeConvs) GetByID(_ context.Context, id uint64) (model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.convs {
		if c.ID == id {
			return c, nil
		}
	}
	return model.Conversation{}, repository.ErrNotFound
}

func (f fakeConvs) GetByApplication(_ context.Context, applicationID uint64) (model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[applicationID]
	if !ok {
		return model.Conversation{}, repository.ErrNotFound
	}
	return c, nil
}

func (f fakeConvs) AppendMessage(_ context.Context, m *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = f.id()
	m.CreatedAt = time.Now().UTC()
	f.messages = append(f.messages, *m)
	return nil
}

func (f fakeConvs) ListMessages(_ context.Context, conversationID, afterID uint64, _ int) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID && m.ID > afterID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeOrders struct{ *fakeDB }

func (f fakeOrders) ListByBuyer(_ context.Context, buyerID uint64) ([]model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Order
	for _, o := range f.orders {
		if o.BuyerID == buyerID {
			out = append(out, o)
		}
	}
	return out, nil
}

// recordingNotifier collects notifications in memory.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}
