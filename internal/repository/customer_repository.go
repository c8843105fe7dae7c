package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/section-queue/internal/model"
)

// CustomerRepo stores customer reference data.  Membership numbers are
// unique, which lets spreadsheet imports upsert.
type CustomerRepo struct {
	db *sql.DB
}

// NewCustomerRepo returns a CustomerRepo bound to db.
func NewCustomerRepo(db *sql.DB) *CustomerRepo { return &CustomerRepo{db: db} }

const customerColumns = `id, membership_no, name, designation, hospital`

func scanCustomer(row interface{ Scan(...any) error }, c *model.Customer) error {
	return row.Scan(&c.ID, &c.MembershipNo, &c.Name, &c.Designation, &c.Hospital)
}

// GetByID returns a customer or ErrNotFound.
func (r *CustomerRepo) GetByID(ctx context.Context, id string) (*model.Customer, error) {
	var c model.Customer
	err := scanCustomer(r.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id), &c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByMembership returns the customer with the membership number or
// ErrNotFound.
func (r *CustomerRepo) GetByMembership(ctx context.Context, membershipNo string) (*model.Customer, error) {
	var c model.Customer
	err := scanCustomer(r.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE membership_no = ?`, membershipNo), &c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns all customers ordered by membership number.
func (r *CustomerRepo) List(ctx context.Context) ([]model.Customer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY membership_no`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Customer{}
	for rows.Next() {
		var c model.Customer
		if err := scanCustomer(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Insert creates a customer; ErrDuplicate when the membership number exists.
func (r *CustomerRepo) Insert(ctx context.Context, c *model.Customer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO customers (id, membership_no, name, designation, hospital) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.MembershipNo, c.Name, c.Designation, c.Hospital)
	return mapWriteErr(err)
}

// Update overwrites every field of the customer with the given id.
func (r *CustomerRepo) Update(ctx context.Context, c *model.Customer) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE customers SET membership_no = ?, name = ?, designation = ?, hospital = ? WHERE id = ?`,
		c.MembershipNo, c.Name, c.Designation, c.Hospital, c.ID)
	if err != nil {
		return mapWriteErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, c.ID); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a customer; ErrNotFound when nothing was deleted.
func (r *CustomerRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertBulk inserts the customers in one statement, overwriting the
// display fields of rows whose membership number already exists.  The
// ID of an existing row is kept.  Passing an empty slice has no effect.
func (r *CustomerRepo) UpsertBulk(ctx context.Context, customers []model.Customer) error {
	if len(customers) == 0 {
		return nil
	}
	query := `INSERT INTO customers (id, membership_no, name, designation, hospital) VALUES `
	args := make([]interface{}, 0, len(customers)*5)
	for i, c := range customers {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, c.ID, c.MembershipNo, c.Name, c.Designation, c.Hospital)
	}
	query += ` ON DUPLICATE KEY UPDATE name = VALUES(name), designation = VALUES(designation), hospital = VALUES(hospital)`
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}
