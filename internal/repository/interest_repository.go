package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/script-marketplace/internal/model"
)

// InterestRepo records that a producer expressed interest in a script.
type InterestRepo struct {
	db *sql.DB
}

// NewInterestRepo returns a new InterestRepo bound to the given database.
func NewInterestRepo(db *sql.DB) *InterestRepo { return &InterestRepo{db: db} }

// Upsert records the interest.  Repeating it only refreshes updated_at.
// created reports whether a new row was written.
func (r *InterestRepo) Upsert(ctx context.Context, in model.Interest) (created bool, err error) {
	const q = `INSERT INTO interests (script_id, producer_id, writer_id) VALUES (?, ?, ?)
        ON DUPLICATE KEY UPDATE writer_id = VALUES(writer_id), updated_at = CURRENT_TIMESTAMP`
	res, err := r.db.ExecContext(ctx, q, in.ScriptID, in.ProducerID, in.WriterID)
	if err != nil {
		return false, err
	}
	// MySQL reports 1 for an insert and 2 for an update of an existing row.
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
