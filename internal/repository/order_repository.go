package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/script-marketplace/internal/model"
)

// OrderRepo records purchases.  At most one order exists per application.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderColumns = "id, script_id, buyer_id, application_id, amount_cents, created_at"

// Create inserts o.  If an order for the same application already exists
// (a concurrent retry) the existing row is loaded into o instead.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	const q = `INSERT INTO orders (script_id, buyer_id, application_id, amount_cents) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, o.ScriptID, o.BuyerID, o.ApplicationID, o.AmountCents)
	if err != nil {
		if isDuplicate(err) {
			existing, ok, ferr := r.FindByApplication(ctx, o.ApplicationID)
			if ferr != nil {
				return ferr
			}
			if ok {
				*o = existing
				return nil
			}
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, ok, err := r.FindByApplication(ctx, o.ApplicationID)
	if err != nil {
		return err
	}
	if !ok {
		o.ID = uint64(id)
		return nil
	}
	*o = created
	return nil
}

// FindByApplication returns the order for an application, if any.
func (r *OrderRepo) FindByApplication(ctx context.Context, applicationID uint64) (model.Order, bool, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE application_id = ?", applicationID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, false, nil
	}
	if err != nil {
		return model.Order{}, false, err
	}
	return o, true, nil
}

// ListByBuyer returns a producer's orders, newest first.
func (r *OrderRepo) ListByBuyer(ctx context.Context, buyerID uint64) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE buyer_id = ? ORDER BY created_at DESC, id DESC", buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(sc rowScanner) (model.Order, error) {
	var o model.Order
	err := sc.Scan(&o.ID, &o.ScriptID, &o.BuyerID, &o.ApplicationID, &o.AmountCents, &o.CreatedAt)
	return o, err
}
