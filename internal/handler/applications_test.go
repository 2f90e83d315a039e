package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/script-marketplace/internal/lifecycle"
	"github.com/iliyamo/script-marketplace/internal/model"
)

type flow struct {
	db    *fakeDB
	e     *echo.Echo
	notes *recordingNotifier
}

func newFlow(t *testing.T) *flow {
	t.Helper()
	db := newFakeDB()
	notes := &recordingNotifier{}
	svc := lifecycle.NewService(db, lifecycle.WithNotifier(notes))
	h := NewApplicationHandler(svc, fakeApps{db}, fakeConvs{db}, fakeOrders{db})

	e, g := authed()
	g.POST("/applications", h.Apply)
	g.GET("/applications/mine", h.ListMine)
	g.GET("/applications/:id", h.Get)
	g.POST("/applications/:id/accept", h.Accept)
	g.POST("/applications/:id/reject", h.Reject)
	g.POST("/applications/:id/purchase", h.Purchase)
	g.GET("/applications/:id/conversation", h.Conversation)
	g.GET("/orders", h.MyOrders)
	return &flow{db: db, e: e, notes: notes}
}

func decode(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func (f *flow) apply(t *testing.T, listingID, scriptID uint64) uint64 {
	t.Helper()
	rec := call(f.e, http.MethodPost, "/v1/applications", bearer(t, writerID, model.RoleWriter),
		fmt.Sprintf(`{"listing_id":%d,"script_id":%d}`, listingID, scriptID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return uint64(decode(t, rec.Body.Bytes())["id"].(float64))
}

func TestApplicationAcceptPurchaseFlow(t *testing.T) {
	f := newFlow(t)
	s := f.db.addScript(model.Script{OwnerID: writerID, Title: "Pilot", LengthMinutes: 90, PriceCents: int64p(1999)})
	l := f.db.addListing(model.Listing{OwnerID: producerID, Title: "Wanted"})
	producer := bearer(t, producerID, model.RoleProducer)

	id := f.apply(t, l.ID, s.ID)
	assert.Equal(t, model.StatusPending, f.db.apps[id].Status)

	rec := call(f.e, http.MethodPost, "/v1/applications", bearer(t, writerID, model.RoleWriter),
		fmt.Sprintf(`{"listing_id":%d,"script_id":%d}`, l.ID, s.ID))
	assert.Equal(t, http.StatusConflict, rec.Code)

	base := fmt.Sprintf("/v1/applications/%d", id)

	rec = call(f.e, http.MethodPost, base+"/purchase", producer, "")
	assert.Equal(t, http.StatusConflict, rec.Code, "pending applications cannot be purchased")

	rec = call(f.e, http.MethodGet, base+"/conversation", bearer(t, writerID, model.RoleWriter), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(f.e, http.MethodPost, base+"/accept", bearer(t, rivalID, model.RoleProducer), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(f.e, http.MethodPost, base+"/accept", producer, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	conv := decode(t, rec.Body.Bytes())["conversation"].(map[string]any)
	convID := conv["id"]

	rec = call(f.e, http.MethodPost, base+"/accept", producer, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, convID, decode(t, rec.Body.Bytes())["conversation"].(map[string]any)["id"])

	rec = call(f.e, http.MethodGet, base+"/conversation", bearer(t, writerID, model.RoleWriter), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(f.e, http.MethodPost, base+"/purchase", producer, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	order := decode(t, rec.Body.Bytes())["order"].(map[string]any)
	assert.EqualValues(t, 1999, order["amount_cents"])
	assert.EqualValues(t, 400, order["price"].(map[string]any)["vatCents"])
	assert.Equal(t, model.StatusPurchased, f.db.apps[id].Status)

	rec = call(f.e, http.MethodPost, base+"/reject", producer, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(f.e, http.MethodGet, "/v1/orders", producer, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec.Body.Bytes())["items"], 1)

	// created, accepted, purchased
	assert.Equal(t, 3, f.notes.count())
}

func TestApplicationWriterCannotDecide(t *testing.T) {
	f := newFlow(t)
	s := f.db.addScript(model.Script{OwnerID: writerID, Title: "Pilot", LengthMinutes: 90})
	l := f.db.addListing(model.Listing{OwnerID: producerID, Title: "Wanted"})
	id := f.apply(t, l.ID, s.ID)

	rec := call(f.e, http.MethodPost, fmt.Sprintf("/v1/applications/%d/accept", id), bearer(t, writerID, model.RoleWriter), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(f.e, http.MethodGet, fmt.Sprintf("/v1/applications/%d", id), bearer(t, otherID, model.RoleWriter), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(f.e, http.MethodGet, "/v1/applications/mine", bearer(t, writerID, model.RoleWriter), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec.Body.Bytes())["items"], 1)
}

func TestApplicationApplyValidation(t *testing.T) {
	f := newFlow(t)
	s := f.db.addScript(model.Script{OwnerID: otherID, Title: "Theirs", LengthMinutes: 90})
	l := f.db.addListing(model.Listing{OwnerID: producerID, Title: "Wanted"})
	tok := bearer(t, writerID, model.RoleWriter)

	rec := call(f.e, http.MethodPost, "/v1/applications", tok, `{"script_id":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "listing_id", decode(t, rec.Body.Bytes())["field"])

	rec = call(f.e, http.MethodPost, "/v1/applications", tok, fmt.Sprintf(`{"listing_id":%d,"script_id":%d}`, l.ID, s.ID))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(f.e, http.MethodPost, "/v1/applications", tok, fmt.Sprintf(`{"listing_id":999,"script_id":%d}`, s.ID))
	assert.Equal(t, http.StatusForbidden, rec.Code, "ownership is checked before the listing lookup")

	mine := f.db.addScript(model.Script{OwnerID: writerID, Title: "Mine", LengthMinutes: 90})
	rec = call(f.e, http.MethodPost, "/v1/applications", tok, fmt.Sprintf(`{"listing_id":999,"script_id":%d}`, mine.ID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPurchaseWithoutPrice(t *testing.T) {
	f := newFlow(t)
	s := f.db.addScript(model.Script{OwnerID: writerID, Title: "Unpriced", LengthMinutes: 90})
	l := f.db.addListing(model.Listing{OwnerID: producerID, Title: "Wanted"})
	app := f.db.addApp(model.Application{ListingID: l.ID, ScriptID: s.ID, WriterID: writerID, ProducerID: producerID, Status: model.StatusAccepted})

	rec := call(f.e, http.MethodPost, fmt.Sprintf("/v1/applications/%d/purchase", app.ID), bearer(t, producerID, model.RoleProducer), "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, f.db.orders)
}

func TestPurchasePartialFailureThenRetry(t *testing.T) {
	f := newFlow(t)
	s := f.db.addScript(model.Script{OwnerID: writerID, Title: "Pilot", LengthMinutes: 90, PriceCents: int64p(500)})
	l := f.db.addListing(model.Listing{OwnerID: producerID, Title: "Wanted"})
	app := f.db.addApp(model.Application{ListingID: l.ID, ScriptID: s.ID, WriterID: writerID, ProducerID: producerID, Status: model.StatusAccepted})
	producer := bearer(t, producerID, model.RoleProducer)
	path := fmt.Sprintf("/v1/applications/%d/purchase", app.ID)

	f.db.failState = errors.New("lock wait timeout")
	rec := call(f.e, http.MethodPost, path, producer, "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec.Body.Bytes())
	assert.Equal(t, "status", body["step"])
	assert.Equal(t, path, body["retry"])
	require.Len(t, f.db.orders, 1)
	first := f.db.orders[app.ID].ID

	f.db.failState = nil
	rec = call(f.e, http.MethodPost, path, producer, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, f.db.orders, 1)
	assert.EqualValues(t, first, decode(t, rec.Body.Bytes())["order"].(map[string]any)["id"])
	assert.Equal(t, model.StatusPurchased, f.db.apps[app.ID].Status)
}
