package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/script-marketplace/internal/model"
)

// ListingRepo stores producer listings of both sources in one table.
type ListingRepo struct {
	db *sql.DB
}

// NewListingRepo returns a new ListingRepo bound to the given database.
func NewListingRepo(db *sql.DB) *ListingRepo { return &ListingRepo{db: db} }

const listingColumns = "id, owner_id, source, title, genre, description, budget_cents, deadline, created_at"

// ListingFilter narrows Browse.
type ListingFilter struct {
	Genre    string
	Source   model.ListingSource
	OpenOnly bool
	Now      time.Time
	Limit    int
	Offset   int
}

// Create inserts l and fills in its ID and CreatedAt.
func (r *ListingRepo) Create(ctx context.Context, l *model.Listing) error {
	const q = `INSERT INTO listings (owner_id, source, title, genre, description, budget_cents, deadline) VALUES (?, ?, ?, ?, ?, ?, ?)`
	var deadline sql.NullTime
	if l.Deadline != nil {
		deadline = sql.NullTime{Time: l.Deadline.UTC(), Valid: true}
	}
	res, err := r.db.ExecContext(ctx, q, l.OwnerID, string(l.Source), l.Title, l.Genre, l.Description, l.BudgetCents, deadline)
	if err != nil {
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
	*l = created
	return nil
}

// GetByID returns one listing.
func (r *ListingRepo) GetByID(ctx context.Context, id uint64) (model.Listing, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+listingColumns+" FROM listings WHERE id = ?", id)
	l, err := scanListing(row)
	if err != nil {
		return model.Listing{}, notFound(err)
	}
	return l, nil
}

// ListByOwner returns a producer's own listings, newest first.
func (r *ListingRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Listing, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+listingColumns+" FROM listings WHERE owner_id = ? ORDER BY created_at DESC, id DESC", ownerID)
	if err != nil {
		return nil, err
	}
	return collectListings(rows)
}

// Browse returns listings for the public board.  With OpenOnly set,
// listings whose deadline is at or before f.Now are excluded.
func (r *ListingRepo) Browse(ctx context.Context, f ListingFilter) ([]model.Listing, error) {
	var (
		where []string
		args  []any
	)
	if g := strings.TrimSpace(f.Genre); g != "" {
		where = append(where, "genre = ?")
		args = append(args, g)
	}
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, string(f.Source))
	}
	if f.OpenOnly {
		now := f.Now
		if now.IsZero() {
			now = time.Now().UTC()
		}
		where = append(where, "(deadline IS NULL OR deadline > ?)")
		args = append(args, now)
	}
	limit, offset := clampPage(f.Limit, f.Offset)
	query := "SELECT " + listingColumns + " FROM listings"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d", limit, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectListings(rows)
}

func scanListing(sc rowScanner) (model.Listing, error) {
	var (
		l        model.Listing
		source   string
		deadline sql.NullTime
	)
	if err := sc.Scan(&l.ID, &l.OwnerID, &source, &l.Title, &l.Genre, &l.Description, &l.BudgetCents, &deadline, &l.CreatedAt); err != nil {
		return model.Listing{}, err
	}
	l.Source = model.ListingSource(source)
	if deadline.Valid {
		d := deadline.Time
		l.Deadline = &d
	}
	return l, nil
}

func collectListings(rows *sql.Rows) ([]model.Listing, error) {
	defer rows.Close()
	var out []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
