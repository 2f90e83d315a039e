package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/script-marketplace/internal/model"
)

// ScriptRepo stores writers' scripts.  Ownership is enforced in the
// WHERE clause of every mutating statement so a handler bug cannot let
// one writer edit another writer's script.
type ScriptRepo struct {
	db *sql.DB
}

// NewScriptRepo returns a new ScriptRepo bound to the given database.
func NewScriptRepo(db *sql.DB) *ScriptRepo { return &ScriptRepo{db: db} }

const scriptColumns = "id, owner_id, title, genre, length_minutes, synopsis, description, price_cents, created_at"

// ScriptFilter narrows ListSummaries.  Zero values mean "no filter".
type ScriptFilter struct {
	Genre  string
	Query  string
	Limit  int
	Offset int
}

// Create inserts s and fills in its ID and CreatedAt.
func (r *ScriptRepo) Create(ctx context.Context, s *model.Script) error {
	const q = `INSERT INTO scripts (owner_id, title, genre, length_minutes, synopsis, description, price_cents) VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.OwnerID, s.Title, s.Genre, s.LengthMinutes, s.Synopsis, s.Description, nullInt64(s.PriceCents))
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
	*s = created
	return nil
}

// Update overwrites the editable fields of a script owned by ownerID.
// It returns ErrNotFound if the script does not exist and ErrForbidden if
// it belongs to someone else.
func (r *ScriptRepo) Update(ctx context.Context, ownerID uint64, s *model.Script) error {
	const q = `UPDATE scripts SET title = ?, genre = ?, length_minutes = ?, synopsis = ?, description = ?, price_cents = ? WHERE id = ? AND owner_id = ?`
	res, err := r.db.ExecContext(ctx, q, s.Title, s.Genre, s.LengthMinutes, s.Synopsis, s.Description, nullInt64(s.PriceCents), s.ID, ownerID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		current, gerr := r.GetByID(ctx, s.ID)
		if gerr != nil {
			return gerr
		}
		if current.OwnerID != ownerID {
			return ErrForbidden
		}
	}
	updated, err := r.GetByID(ctx, s.ID)
	if err != nil {
		return err
	}
	*s = updated
	return nil
}

// GetByID returns the full script row.
func (r *ScriptRepo) GetByID(ctx context.Context, id uint64) (model.Script, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+scriptColumns+" FROM scripts WHERE id = ?", id)
	s, err := scanScript(row)
	if err != nil {
		return model.Script{}, notFound(err)
	}
	return s, nil
}

// ListByOwner returns every script of one writer, newest first.
func (r *ScriptRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Script, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+scriptColumns+" FROM scripts WHERE owner_id = ? ORDER BY created_at DESC, id DESC", ownerID)
	if err != nil {
		return nil, err
	}
	return collectScripts(rows)
}

// List returns scripts matching f, newest first.  Callers project the
// rows before returning them to a client.
func (r *ScriptRepo) List(ctx context.Context, f ScriptFilter) ([]model.Script, error) {
	var (
		where []string
		args  []any
	)
	if g := strings.TrimSpace(f.Genre); g != "" {
		where = append(where, "genre = ?")
		args = append(args, g)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, "title LIKE ?")
		args = append(args, "%"+escapeLike(q)+"%")
	}
	limit, offset := clampPage(f.Limit, f.Offset)
	query := "SELECT " + scriptColumns + " FROM scripts"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d", limit, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectScripts(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScript(sc rowScanner) (model.Script, error) {
	var (
		s     model.Script
		price sql.NullInt64
	)
	if err := sc.Scan(&s.ID, &s.OwnerID, &s.Title, &s.Genre, &s.LengthMinutes, &s.Synopsis, &s.Description, &price, &s.CreatedAt); err != nil {
		return model.Script{}, err
	}
	if price.Valid {
		p := price.Int64
		s.PriceCents = &p
	}
	return s, nil
}

func collectScripts(rows *sql.Rows) ([]model.Script, error) {
	defer rows.Close()
	var out []model.Script
	for rows.Next() {
		s, err := scanScript(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

// DefaultPageSize and MaxPageSize bound list queries.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
