package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/section-queue/internal/model"
)

// TicketRepo provides data access to the tickets table.  Positions are
// assigned by the caller; the repository only persists them.  The unique
// key on (section, position) turns any ordering bug into a failed write
// instead of a silently duplicated position.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the provided database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketColumns = `id, membership_number, section, position, is_serving, created_at`

func scanTicket(row interface{ Scan(...any) error }, t *model.Ticket) error {
	return row.Scan(&t.ID, &t.MembershipNumber, &t.Section, &t.Position, &t.IsServing, &t.CreatedAt)
}

// GetByID returns the ticket with the given id or ErrNotFound.
func (r *TicketRepo) GetByID(ctx context.Context, id string) (*model.Ticket, error) {
	var t model.Ticket
	err := scanTicket(r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id), &t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FindByMembership returns the oldest ticket, across all sections, held by
// the membership number.  ErrNotFound when there is none.
func (r *TicketRepo) FindByMembership(ctx context.Context, membership string) (*model.Ticket, error) {
	var t model.Ticket
	err := scanTicket(r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE membership_number = ?
		 ORDER BY created_at, id LIMIT 1`, membership), &t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListBySection returns the section's tickets ordered by position.  An
// unknown section yields an empty slice.
func (r *TicketRepo) ListBySection(ctx context.Context, section string) ([]model.Ticket, error) {
	return r.list(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE section = ? ORDER BY position`, section)
}

// ListAll returns every ticket ordered by section and position.
func (r *TicketRepo) ListAll(ctx context.Context) ([]model.Ticket, error) {
	return r.list(ctx, `SELECT `+ticketColumns+` FROM tickets ORDER BY section, position`)
}

func (r *TicketRepo) list(ctx context.Context, q string, args ...any) ([]model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Ticket{}
	for rows.Next() {
		var t model.Ticket
		if err := scanTicket(rows, &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Insert stores a new ticket.  CreatedAt is filled in when zero.
func (r *TicketRepo) Insert(ctx context.Context, t *model.Ticket) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tickets (id, membership_number, section, position, is_serving, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.MembershipNumber, t.Section, t.Position, t.IsServing, t.CreatedAt)
	return mapWriteErr(err)
}

// DeleteAndRenumber removes a ticket and applies the survivors' new
// positions in one transaction.  Updates must be ordered by ascending
// position so each row moves into a slot that is already free.  When
// serveID is non-empty that ticket is marked serving in the same
// transaction.  ErrNotFound when the ticket no longer exists; nothing is
// changed in that case.
func (r *TicketRepo) DeleteAndRenumber(ctx context.Context, id string, updates []model.PositionUpdate, serveID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM tickets WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	for _, u := range updates {
		if _, err := tx.ExecContext(ctx, `UPDATE tickets SET position = ? WHERE id = ?`, u.Position, u.TicketID); err != nil {
			return mapWriteErr(err)
		}
	}
	if serveID != "" {
		if _, err := tx.ExecContext(ctx, `UPDATE tickets SET is_serving = 1 WHERE id = ?`, serveID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// HandOverServing clears the serving flag on fromID and, when toID is not
// empty, sets it on toID, atomically.  ErrNotFound when fromID is not a
// serving ticket any more.
func (r *TicketRepo) HandOverServing(ctx context.Context, fromID, toID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `UPDATE tickets SET is_serving = 0 WHERE id = ? AND is_serving = 1`, fromID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if toID != "" {
		res, err = tx.ExecContext(ctx, `UPDATE tickets SET is_serving = 1 WHERE id = ?`, toID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// RenameSection moves every ticket of oldName to newName and returns the
// number of tickets touched.  A single statement, so it is atomic.
func (r *TicketRepo) RenameSection(ctx context.Context, oldName, newName string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE tickets SET section = ? WHERE section = ?`, newName, oldName)
	if err != nil {
		return 0, mapWriteErr(err)
	}
	return res.RowsAffected()
}

// DeleteBySection removes all tickets of a section.
func (r *TicketRepo) DeleteBySection(ctx context.Context, section string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tickets WHERE section = ?`, section)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
