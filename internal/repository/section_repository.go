package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/section-queue/internal/model"
)

// SectionRepo provides methods to create, rename, list and delete sections.
type SectionRepo struct {
	db *sql.DB
}

// NewSectionRepo constructs a SectionRepo with the given DB handle.
func NewSectionRepo(db *sql.DB) *SectionRepo {
	return &SectionRepo{db: db}
}

// Insert creates a section.  ErrDuplicate when the name is taken.
func (r *SectionRepo) Insert(ctx context.Context, s *model.Section) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sections (id, name, created_at) VALUES (?, ?, ?)`, s.ID, s.Name, s.CreatedAt)
	return mapWriteErr(err)
}

// GetByID retrieves a section by id or returns ErrNotFound.
func (r *SectionRepo) GetByID(ctx context.Context, id string) (*model.Section, error) {
	var s model.Section
	err := r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM sections WHERE id = ?`, id).
		Scan(&s.ID, &s.Name, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns every section ordered by name.
func (r *SectionRepo) List(ctx context.Context) ([]model.Section, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM sections ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Section{}
	for rows.Next() {
		var s model.Section
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateName renames a section.  ErrNotFound when the id is unknown and
// ErrDuplicate when another section already uses the name.
func (r *SectionRepo) UpdateName(ctx context.Context, id, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sections SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return mapWriteErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either missing or renamed to its current name.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a section by id; ErrNotFound when nothing was deleted.
func (r *SectionRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sections WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
