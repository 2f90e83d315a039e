package visibility

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/script-marketplace/internal/model"
)

const (
	writerID   uint64 = 1
	producerID uint64 = 2
	rivalID    uint64 = 3
)

var (
	anon     = Viewer{}
	writer   = Viewer{UserID: writerID, Role: model.RoleWriter, Authenticated: true}
	producer = Viewer{UserID: producerID, Role: model.RoleProducer, Authenticated: true}
	rival    = Viewer{UserID: rivalID, Role: model.RoleProducer, Authenticated: true}
	roleless = Viewer{UserID: 9, Authenticated: true}
)

func testScript() model.Script {
	p := int64(150000)
	return model.Script{
		ID: 10, OwnerID: writerID, Title: "Test Script", Genre: "drama", LengthMinutes: 95,
		Synopsis: "A long synopsis", Description: "Full description", PriceCents: &p,
	}
}

func grant(status model.ApplicationStatus) model.Application {
	return model.Application{ID: 5, ListingID: 7, ScriptID: 10, WriterID: writerID, ProducerID: producerID, Status: status}
}

func TestProducerSeesBodyOnlyAfterAcceptance(t *testing.T) {
	s := testScript()

	for _, st := range []model.ApplicationStatus{model.StatusPending, model.StatusRejected} {
		v, ok := ProjectScript(producer, s, []model.Application{grant(st)})
		require.True(t, ok)
		assert.Nil(t, v.Synopsis, "status %s", st)
		assert.Nil(t, v.Description, "status %s", st)
		assert.False(t, v.FullAccess)
	}
	for _, st := range []model.ApplicationStatus{model.StatusAccepted, model.StatusPurchased} {
		v, ok := ProjectScript(producer, s, []model.Application{grant(st)})
		require.True(t, ok)
		require.NotNil(t, v.Synopsis)
		assert.Equal(t, "Full description", *v.Description)
		assert.True(t, v.FullAccess)
	}
}

func TestAccessFollowsCurrentStatus(t *testing.T) {
	s := testScript()
	app := grant(model.StatusAccepted)
	assert.True(t, CanViewScriptBody(producer, s, []model.Application{app}))

	// The check is re-run against whatever status is current.
	app.Status = model.StatusPending
	assert.False(t, CanViewScriptBody(producer, s, []model.Application{app}))
	assert.False(t, CanViewScriptBody(producer, s, nil))
}

func TestGrantIsPerProducer(t *testing.T) {
	s := testScript()
	grants := []model.Application{grant(model.StatusAccepted)}
	assert.False(t, CanViewScriptBody(rival, s, grants))

	other := grant(model.StatusAccepted)
	other.ScriptID = 11
	assert.False(t, CanViewScriptBody(producer, s, []model.Application{other}))
}

func TestWriterVisibility(t *testing.T) {
	s := testScript()
	v, ok := ProjectScript(writer, s, nil)
	require.True(t, ok)
	assert.True(t, v.FullAccess)
	require.NotNil(t, v.OwnerID)

	otherWriter := Viewer{UserID: 44, Role: model.RoleWriter, Authenticated: true}
	_, ok = ProjectScript(otherWriter, s, nil)
	assert.False(t, ok, "writers do not browse other writers' scripts")
	assert.True(t, CanBrowseListings(writer))
}

func TestAnonymousSeesNothing(t *testing.T) {
	s := testScript()
	_, ok := ProjectScript(anon, s, []model.Application{grant(model.StatusAccepted)})
	assert.False(t, ok)
	_, ok = ProjectListing(anon, model.Listing{ID: 1})
	assert.False(t, ok)
	assert.False(t, CanViewApplication(anon, grant(model.StatusAccepted)))
	assert.False(t, CanBrowseListings(roleless))
}

func TestSummaryHidesBody(t *testing.T) {
	s := testScript()
	s.Synopsis = strings.Repeat("x", ExcerptRunes+20)
	v := Summary(s)
	assert.Nil(t, v.Synopsis)
	assert.Nil(t, v.Description)
	assert.Equal(t, ExcerptRunes+1, len([]rune(v.Excerpt)))
	require.NotNil(t, v.Price)
	assert.Equal(t, int64(180000), v.Price.GrossCents)
}

func TestApplicationAndConversationAccess(t *testing.T) {
	a := grant(model.StatusPending)
	assert.True(t, CanViewApplication(writer, a))
	assert.True(t, CanViewApplication(producer, a))
	assert.False(t, CanViewApplication(rival, a))
	assert.False(t, IsConversationParticipant(writer, a))

	a.Status = model.StatusAccepted
	assert.True(t, IsConversationParticipant(writer, a))
	assert.True(t, IsConversationParticipant(producer, a))
	assert.False(t, IsConversationParticipant(rival, a))
}

func TestExcerptKeepsShortText(t *testing.T) {
	assert.Equal(t, "short", Excerpt("short", 10))
	assert.Equal(t, "héll…", Excerpt("héllo", 4))
}

func TestIsOpen(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Hour), now.Add(time.Hour)
	assert.True(t, IsOpen(model.Listing{}, now))
	assert.True(t, IsOpen(model.Listing{Deadline: &future}, now))
	assert.False(t, IsOpen(model.Listing{Deadline: &past}, now))
}
