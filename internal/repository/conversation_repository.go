package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/script-marketplace/internal/model"
)

// ConversationRepo stores one conversation per accepted application and
// its append-only messages.
type ConversationRepo struct {
	db *sql.DB
}

// NewConversationRepo returns a new ConversationRepo bound to the given database.
func NewConversationRepo(db *sql.DB) *ConversationRepo { return &ConversationRepo{db: db} }

// Ensure returns the conversation for applicationID, creating it when
// absent.  The unique key on application_id makes repeated calls converge
// on the same row.
func (r *ConversationRepo) Ensure(ctx context.Context, applicationID uint64) (model.Conversation, error) {
	const ins = `INSERT INTO conversations (application_id) VALUES (?) ON DUPLICATE KEY UPDATE id = id`
	if _, err := r.db.ExecContext(ctx, ins, applicationID); err != nil {
		return model.Conversation{}, err
	}
	return r.GetByApplication(ctx, applicationID)
}

// GetByID returns one conversation.
func (r *ConversationRepo) GetByID(ctx context.Context, id uint64) (model.Conversation, error) {
	var c model.Conversation
	err := r.db.QueryRowContext(ctx, "SELECT id, application_id, created_at FROM conversations WHERE id = ?", id).
		Scan(&c.ID, &c.ApplicationID, &c.CreatedAt)
	if err != nil {
		return model.Conversation{}, notFound(err)
	}
	return c, nil
}

// GetByApplication returns the conversation opened for an application.
func (r *ConversationRepo) GetByApplication(ctx context.Context, applicationID uint64) (model.Conversation, error) {
	var c model.Conversation
	err := r.db.QueryRowContext(ctx, "SELECT id, application_id, created_at FROM conversations WHERE application_id = ?", applicationID).
		Scan(&c.ID, &c.ApplicationID, &c.CreatedAt)
	if err != nil {
		return model.Conversation{}, notFound(err)
	}
	return c, nil
}

// AppendMessage inserts m and fills in its ID and CreatedAt.
func (r *ConversationRepo) AppendMessage(ctx context.Context, m *model.Message) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO messages (conversation_id, sender_id, body, created_at) VALUES (?, ?, ?, ?)",
		m.ConversationID, m.SenderID, m.Body, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	m.CreatedAt = now
	return nil
}

// ListMessages returns up to limit messages after afterID in send order.
func (r *ConversationRepo) ListMessages(ctx context.Context, conversationID, afterID uint64, limit int) ([]model.Message, error) {
	limit, _ = clampPage(limit, 0)
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, conversation_id, sender_id, body, created_at FROM messages WHERE conversation_id = ? AND id > ? ORDER BY id LIMIT ?",
		conversationID, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Message{}
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
