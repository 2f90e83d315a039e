package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/script-marketplace/internal/model"
)

// NotificationRepo is the inbox written by the queue consumer and read by
// the notifications endpoints.
type NotificationRepo struct {
	db *sql.DB
}

// NewNotificationRepo returns a new NotificationRepo bound to the given database.
func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

// Insert stores n and fills in its ID.
func (r *NotificationRepo) Insert(ctx context.Context, n *model.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO notifications (recipient_id, kind, actor_id, application_id, script_id, listing_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, n.RecipientID, string(n.Kind), n.ActorID,
		nullID(n.ApplicationID), nullID(n.ScriptID), nullID(n.ListingID), n.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	return nil
}

// ListForRecipient returns the newest notifications of a user.
func (r *NotificationRepo) ListForRecipient(ctx context.Context, recipientID uint64, unreadOnly bool, limit int) ([]model.Notification, error) {
	limit, _ = clampPage(limit, 0)
	q := `SELECT id, recipient_id, kind, actor_id, application_id, script_id, listing_id, read_at, created_at
        FROM notifications WHERE recipient_id = ?`
	if unreadOnly {
		q += " AND read_at IS NULL"
	}
	q += " ORDER BY id DESC LIMIT ?"
	rows, err := r.db.QueryContext(ctx, q, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Notification{}
	for rows.Next() {
		var (
			n                   model.Notification
			kind                string
			appID, sID, listing sql.NullInt64
			readAt              sql.NullTime
		)
		if err := rows.Scan(&n.ID, &n.RecipientID, &kind, &n.ActorID, &appID, &sID, &listing, &readAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Kind = model.NotificationKind(kind)
		n.ApplicationID = uint64(appID.Int64)
		n.ScriptID = uint64(sID.Int64)
		n.ListingID = uint64(listing.Int64)
		if readAt.Valid {
			t := readAt.Time
			n.ReadAt = &t
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkAllRead marks every unread notification of a user as read and
// returns how many rows changed.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, recipientID uint64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE notifications SET read_at = ? WHERE recipient_id = ? AND read_at IS NULL",
		time.Now().UTC(), recipientID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullID(id uint64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(id), Valid: true}
}
