package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/script-marketplace/internal/lifecycle"
	"github.com/iliyamo/script-marketplace/internal/model"
)

// ApplicationRepo stores applications of a script to a listing.  Status
// changes are conditional on the current status so two concurrent
// transitions cannot both succeed.
type ApplicationRepo struct {
	db *sql.DB
}

// NewApplicationRepo returns a new ApplicationRepo bound to the given database.
func NewApplicationRepo(db *sql.DB) *ApplicationRepo { return &ApplicationRepo{db: db} }

const applicationColumns = "id, listing_id, script_id, writer_id, producer_id, status, created_at, updated_at"

// Create inserts a pending application.  A second application for the same
// (listing, script) pair returns lifecycle.ErrDuplicateApplication.
func (r *ApplicationRepo) Create(ctx context.Context, a *model.Application) error {
	const q = `INSERT INTO applications (listing_id, script_id, writer_id, producer_id, status) VALUES (?, ?, ?, ?, ?)`
	status := a.Status
	if status == "" {
		status = model.StatusPending
	}
	res, err := r.db.ExecContext(ctx, q, a.ListingID, a.ScriptID, a.WriterID, a.ProducerID, string(status))
	if err != nil {
		if isDuplicate(err) {
			return lifecycle.ErrDuplicateApplication
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*a = created
	return nil
}

// GetByID returns one application.
func (r *ApplicationRepo) GetByID(ctx context.Context, id uint64) (model.Application, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+applicationColumns+" FROM applications WHERE id = ?", id)
	a, err := scanApplication(row)
	if err != nil {
		return model.Application{}, notFound(err)
	}
	return a, nil
}

// FindByPair looks up the application for (listingID, scriptID).
func (r *ApplicationRepo) FindByPair(ctx context.Context, listingID, scriptID uint64) (model.Application, bool, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+applicationColumns+" FROM applications WHERE listing_id = ? AND script_id = ?", listingID, scriptID)
	a, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Application{}, false, nil
	}
	if err != nil {
		return model.Application{}, false, err
	}
	return a, true, nil
}

// UpdateStatus moves application id from one status to another.  It
// returns lifecycle.ErrStaleStatus when the row is no longer in from and
// ErrNotFound when it does not exist.
func (r *ApplicationRepo) UpdateStatus(ctx context.Context, id uint64, from, to model.ApplicationStatus) error {
	const q = `UPDATE applications SET status = ? WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, string(to), id, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var current string
	err = r.db.QueryRowContext(ctx, "SELECT status FROM applications WHERE id = ?", id).Scan(&current)
	if err != nil {
		return notFound(err)
	}
	if model.ApplicationStatus(current) != from {
		return lifecycle.ErrStaleStatus
	}
	return nil
}

// ListForListing returns the applications to a listing owned by ownerID.
// It returns ErrForbidden when the listing belongs to another producer.
func (r *ApplicationRepo) ListForListing(ctx context.Context, ownerID, listingID uint64) ([]model.Application, error) {
	var owner uint64
	if err := r.db.QueryRowContext(ctx, "SELECT owner_id FROM listings WHERE id = ?", listingID).Scan(&owner); err != nil {
		return nil, notFound(err)
	}
	if owner != ownerID {
		return nil, ErrForbidden
	}
	rows, err := r.db.QueryContext(ctx, "SELECT "+applicationColumns+" FROM applications WHERE listing_id = ? ORDER BY created_at, id", listingID)
	if err != nil {
		return nil, err
	}
	return collectApplications(rows)
}

// ListByWriter returns every application submitted by writerID.
func (r *ApplicationRepo) ListByWriter(ctx context.Context, writerID uint64) ([]model.Application, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+applicationColumns+" FROM applications WHERE writer_id = ? ORDER BY created_at DESC, id DESC", writerID)
	if err != nil {
		return nil, err
	}
	return collectApplications(rows)
}

// GrantsForScript returns the applications of scriptID held by producerID
// whose status grants access to the script body.  It reads the current
// status on every call; no grant is cached.
func (r *ApplicationRepo) GrantsForScript(ctx context.Context, scriptID, producerID uint64) ([]model.Application, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+applicationColumns+" FROM applications WHERE script_id = ? AND producer_id = ? AND status IN ('accepted', 'purchased')",
		scriptID, producerID)
	if err != nil {
		return nil, err
	}
	return collectApplications(rows)
}

func scanApplication(sc rowScanner) (model.Application, error) {
	var (
		a      model.Application
		status string
	)
	if err := sc.Scan(&a.ID, &a.ListingID, &a.ScriptID, &a.WriterID, &a.ProducerID, &status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return model.Application{}, err
	}
	a.Status = model.ApplicationStatus(status)
	return a, nil
}

func collectApplications(rows *sql.Rows) ([]model.Application, error) {
	defer rows.Close()
	var out []model.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
