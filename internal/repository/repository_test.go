package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/script-marketplace/internal/lifecycle"
	"github.com/iliyamo/script-marketplace/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

var (
	appCols    = []string{"id", "listing_id", "script_id", "writer_id", "producer_id", "status", "created_at", "updated_at"}
	scriptCols = []string{"id", "owner_id", "title", "genre", "length_minutes", "synopsis", "description", "price_cents", "created_at"}
	ts         = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func TestApplicationCreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO applications")).
		WithArgs(uint64(1), uint64(2), uint64(3), uint64(4), "pending").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := NewApplicationRepo(db).Create(context.Background(), &model.Application{ListingID: 1, ScriptID: 2, WriterID: 3, ProducerID: 4})
	assert.ErrorIs(t, err, lifecycle.ErrDuplicateApplication)
}

func TestApplicationCreateLoadsRow(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO applications")).WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM applications WHERE id = ?")).WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows(appCols).AddRow(9, 1, 2, 3, 4, "pending", ts, ts))

	a := &model.Application{ListingID: 1, ScriptID: 2, WriterID: 3, ProducerID: 4}
	require.NoError(t, NewApplicationRepo(db).Create(context.Background(), a))
	assert.Equal(t, uint64(9), a.ID)
	assert.Equal(t, model.StatusPending, a.Status)
	assert.Equal(t, ts, a.CreatedAt)
}

func TestApplicationUpdateStatus(t *testing.T) {
	upd := regexp.QuoteMeta("UPDATE applications SET status = ? WHERE id = ? AND status = ?")
	sel := regexp.QuoteMeta("SELECT status FROM applications WHERE id = ?")

	t.Run("applied", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(upd).WithArgs("accepted", uint64(5), "pending").WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, NewApplicationRepo(db).UpdateStatus(context.Background(), 5, model.StatusPending, model.StatusAccepted))
	})

	t.Run("stale", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(upd).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(sel).WithArgs(uint64(5)).WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("rejected"))
		err := NewApplicationRepo(db).UpdateStatus(context.Background(), 5, model.StatusPending, model.StatusAccepted)
		assert.ErrorIs(t, err, lifecycle.ErrStaleStatus)
	})

	t.Run("missing", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(upd).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(sel).WillReturnError(sql.ErrNoRows)
		err := NewApplicationRepo(db).UpdateStatus(context.Background(), 5, model.StatusPending, model.StatusAccepted)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestApplicationListForListingOwnership(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT owner_id FROM listings WHERE id = ?")).WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow(77))

	_, err := NewApplicationRepo(db).ListForListing(context.Background(), 8, 3)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGrantsForScript(t *testing.T) {
	db, mock := newMock(t)
	q := regexp.QuoteMeta("FROM applications WHERE script_id = ? AND producer_id = ? AND status IN ('accepted', 'purchased')")
	mock.ExpectQuery(q).WithArgs(uint64(2), uint64(8)).
		WillReturnRows(sqlmock.NewRows(appCols).AddRow(5, 1, 2, 3, 8, "accepted", ts, ts))
	mock.ExpectQuery(q).WithArgs(uint64(2), uint64(9)).
		WillReturnRows(sqlmock.NewRows(appCols))

	repo := NewApplicationRepo(db)
	grants, err := repo.GrantsForScript(context.Background(), 2, 8)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, model.StatusAccepted, grants[0].Status)
	grants, err = repo.GrantsForScript(context.Background(), 2, 9)
	require.NoError(t, err)
	assert.Empty(t, grants)
}

func TestConversationEnsureIsUpsert(t *testing.T) {
	db, mock := newMock(t)
	for i := 0; i < 2; i++ {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO conversations (application_id) VALUES (?) ON DUPLICATE KEY UPDATE id = id")).
			WithArgs(uint64(4)).WillReturnResult(sqlmock.NewResult(12, 1))
		mock.ExpectQuery(regexp.QuoteMeta("FROM conversations WHERE application_id = ?")).WithArgs(uint64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "application_id", "created_at"}).AddRow(12, 4, ts))
	}

	repo := NewConversationRepo(db)
	first, err := repo.Ensure(context.Background(), 4)
	require.NoError(t, err)
	second, err := repo.Ensure(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, uint64(12), first.ID)
}

func TestScriptUpdateForbidden(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE scripts SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM scripts WHERE id = ?")).WithArgs(uint64(6)).
		WillReturnRows(sqlmock.NewRows(scriptCols).AddRow(6, 99, "T", "drama", 90, "s", "d", nil, ts))

	err := NewScriptRepo(db).Update(context.Background(), 1, &model.Script{ID: 6, Title: "T"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestScriptGetByIDNullablePrice(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM scripts WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows(scriptCols).
			AddRow(6, 1, "T", "drama", 90, "s", "d", nil, ts))
	mock.ExpectQuery(regexp.QuoteMeta("FROM scripts WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows(scriptCols).
			AddRow(7, 1, "U", "drama", 90, "s", "d", int64(15000), ts))
	mock.ExpectQuery(regexp.QuoteMeta("FROM scripts WHERE id = ?")).WillReturnError(sql.ErrNoRows)

	repo := NewScriptRepo(db)
	s, err := repo.GetByID(context.Background(), 6)
	require.NoError(t, err)
	assert.Nil(t, s.PriceCents)
	s, err = repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, s.PriceCents)
	assert.Equal(t, int64(15000), *s.PriceCents)
	_, err = repo.GetByID(context.Background(), 8)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScriptListEscapesLike(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM scripts WHERE genre = ? AND title LIKE ? ORDER BY created_at DESC, id DESC LIMIT 50 OFFSET 0")).
		WithArgs("comedy", `%100\%%`).
		WillReturnRows(sqlmock.NewRows(scriptCols))

	out, err := NewScriptRepo(db).List(context.Background(), ScriptFilter{Genre: "comedy", Query: "100%"})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestListingBrowseOpenOnly(t *testing.T) {
	db, mock := newMock(t)
	now := ts
	mock.ExpectQuery(regexp.QuoteMeta("FROM listings WHERE (deadline IS NULL OR deadline > ?) ORDER BY")).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "source", "title", "genre", "description", "budget_cents", "deadline", "created_at"}).
			AddRow(1, 2, "request", "Need a thriller", "thriller", "desc", 500000, nil, ts))

	out, err := NewListingRepo(db).Browse(context.Background(), ListingFilter{OpenOnly: true, Now: now})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, model.SourceRequest, out[0].Source)
	assert.Nil(t, out[0].Deadline)
}

func TestOrderCreateDuplicateReturnsExisting(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnError(&mysql.MySQLError{Number: 1062})
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE application_id = ?")).WithArgs(uint64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "script_id", "buyer_id", "application_id", "amount_cents", "created_at"}).
			AddRow(30, 2, 8, 4, 10000, ts))

	o := &model.Order{ScriptID: 2, BuyerID: 8, ApplicationID: 4, AmountCents: 10000}
	require.NoError(t, NewOrderRepo(db).Create(context.Background(), o))
	assert.Equal(t, uint64(30), o.ID)
}

func TestInterestUpsert(t *testing.T) {
	db, mock := newMock(t)
	q := regexp.QuoteMeta("INSERT INTO interests")
	mock.ExpectExec(q).WithArgs(uint64(1), uint64(2), uint64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(uint64(1), uint64(2), uint64(3)).WillReturnResult(sqlmock.NewResult(0, 2))

	repo := NewInterestRepo(db)
	in := model.Interest{ScriptID: 1, ProducerID: 2, WriterID: 3}
	created, err := repo.Upsert(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = repo.Upsert(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestUserNullRole(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=?")).WithArgs("a@b.co").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "created_at", "updated_at"}).
			AddRow(1, "a@b.co", "hash", nil, ts, ts))

	u, err := NewUserRepo(db).GetByEmail(context.Background(), "  A@B.co ")
	require.NoError(t, err)
	assert.Equal(t, model.RoleNone, u.Role)
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("a@b.co", sqlmock.AnyArg(), "writer").
		WillReturnError(&mysql.MySQLError{Number: 1062})

	_, err := NewUserRepo(db).Create(context.Background(), "a@b.co", "secret123", model.RoleWriter, 4)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestTokenRotate(t *testing.T) {
	sel := regexp.QuoteMeta("SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1 FOR UPDATE")
	cols := []string{"user_id", "expires_at", "revoked_at"}

	t.Run("active", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(sel).WithArgs("old").WillReturnRows(sqlmock.NewRows(cols).AddRow(7, ts.Add(time.Hour), nil))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked_at=?")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).WithArgs(uint64(7), "new", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectCommit()

		repo := NewTokenRepo(db)
		repo.now = func() time.Time { return ts }
		uid, err := repo.Rotate(context.Background(), "old", "new", ts.Add(24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, uint64(7), uid)
	})

	t.Run("revoked", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(sel).WillReturnRows(sqlmock.NewRows(cols).AddRow(7, ts.Add(time.Hour), ts))
		mock.ExpectRollback()

		repo := NewTokenRepo(db)
		repo.now = func() time.Time { return ts }
		_, err := repo.Rotate(context.Background(), "old", "new", ts.Add(24*time.Hour))
		assert.ErrorIs(t, err, ErrInvalidRefresh)
	})
}

func TestMarketplaceImplementsStore(t *testing.T) {
	db, _ := newMock(t)
	var store lifecycle.Store = NewMarketplace(db)
	assert.NotNil(t, store)
}
