package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/section-queue/internal/model"
)

// CheckStatusRepo persists check-status entries.  The unique key on
// membership_number is what makes "one entry per member" hold under
// concurrent inserts; Insert reports a violation as ErrDuplicate.
type CheckStatusRepo struct {
	db *sql.DB
}

// NewCheckStatusRepo returns a CheckStatusRepo bound to db.
func NewCheckStatusRepo(db *sql.DB) *CheckStatusRepo { return &CheckStatusRepo{db: db} }

const checkStatusColumns = `id, membership_number, name, designation, hospital, section, status, created_at, updated_at`

func scanCheckStatus(row interface{ Scan(...any) error }, e *model.CheckStatusEntry) error {
	return row.Scan(&e.ID, &e.MembershipNumber, &e.Name, &e.Designation, &e.Hospital,
		&e.Section, &e.Status, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns the entry or ErrNotFound.
func (r *CheckStatusRepo) GetByID(ctx context.Context, id string) (*model.CheckStatusEntry, error) {
	return r.getOne(ctx, `SELECT `+checkStatusColumns+` FROM check_status_entries WHERE id = ?`, id)
}

// FindByMembership returns the entry for a membership number or ErrNotFound.
func (r *CheckStatusRepo) FindByMembership(ctx context.Context, membership string) (*model.CheckStatusEntry, error) {
	return r.getOne(ctx, `SELECT `+checkStatusColumns+` FROM check_status_entries WHERE membership_number = ?`, membership)
}

func (r *CheckStatusRepo) getOne(ctx context.Context, q string, arg string) (*model.CheckStatusEntry, error) {
	var e model.CheckStatusEntry
	err := scanCheckStatus(r.db.QueryRowContext(ctx, q, arg), &e)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns every entry in creation order.
func (r *CheckStatusRepo) List(ctx context.Context) ([]model.CheckStatusEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+checkStatusColumns+` FROM check_status_entries ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.CheckStatusEntry{}
	for rows.Next() {
		var e model.CheckStatusEntry
		if err := scanCheckStatus(rows, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Insert stores a new entry; ErrDuplicate when the membership number is
// already in the ledger.
func (r *CheckStatusRepo) Insert(ctx context.Context, e *model.CheckStatusEntry) error {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = e.CreatedAt
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO check_status_entries
		 (id, membership_number, name, designation, hospital, section, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.MembershipNumber, e.Name, e.Designation, e.Hospital, e.Section, e.Status, e.CreatedAt, e.UpdatedAt)
	return mapWriteErr(err)
}

// UpdateStatus sets the status of an entry.  Setting the status it already
// has is not an error.
func (r *CheckStatusRepo) UpdateStatus(ctx context.Context, id, status string) error {
	// Matching on id alone: RowsAffected is 0 both for a missing row and for
	// an unchanged one, so existence is checked separately.
	res, err := r.db.ExecContext(ctx,
		`UPDATE check_status_entries SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return nil
}

// Delete removes an entry.  ErrNotFound when nothing was deleted.
func (r *CheckStatusRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM check_status_entries WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
