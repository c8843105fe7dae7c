package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/section-queue/internal/model"
)

var farFuture = time.Now().Add(24 * time.Hour).UTC()

func TestCheckStatusRepoInsertDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCheckStatusRepo(db)

	mock.ExpectExec(q(`INSERT INTO check_status_entries`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(`INSERT INTO check_status_entries`)).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'A001'"})

	e := &model.CheckStatusEntry{ID: "e1", MembershipNumber: "A001", Section: "Loan", Status: model.CheckStatusPending}
	require.NoError(t, repo.Insert(context.Background(), e))
	assert.False(t, e.CreatedAt.IsZero())

	err := repo.Insert(context.Background(), &model.CheckStatusEntry{ID: "e2", MembershipNumber: "A001"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestCheckStatusRepoUpdateStatus(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCheckStatusRepo(db)
	cols := []string{"id", "membership_number", "name", "designation", "hospital", "section", "status", "created_at", "updated_at"}

	mock.ExpectExec(q(`UPDATE check_status_entries SET status = ?`)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), "e1", model.CheckStatusReady))

	// Unchanged row: existence is confirmed with a read.
	mock.ExpectExec(q(`UPDATE check_status_entries SET status = ?`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q(`FROM check_status_entries WHERE id = ?`)).WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(cols))
	assert.ErrorIs(t, repo.UpdateStatus(context.Background(), "e1", model.CheckStatusReady), ErrNotFound)
}

func TestCheckStatusRepoDelete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCheckStatusRepo(db)

	mock.ExpectExec(q(`DELETE FROM check_status_entries WHERE id = ?`)).WithArgs("e1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(`DELETE FROM check_status_entries WHERE id = ?`)).WithArgs("e1").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "e1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "e1"), ErrNotFound)
}

func TestCustomerRepoUpsertBulk(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCustomerRepo(db)

	mock.ExpectExec(q(`INSERT INTO customers (id, membership_no, name, designation, hospital) VALUES (?, ?, ?, ?, ?),(?, ?, ?, ?, ?) ON DUPLICATE KEY UPDATE`)).
		WithArgs("c1", "M1", "Bola", "Nurse", "General", "c2", "M2", "Chidi", "", "").
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.UpsertBulk(context.Background(), []model.Customer{
		{ID: "c1", MembershipNo: "M1", Name: "Bola", Designation: "Nurse", Hospital: "General"},
		{ID: "c2", MembershipNo: "M2", Name: "Chidi"},
	})
	require.NoError(t, err)
	require.NoError(t, repo.UpsertBulk(context.Background(), nil))
}

func TestUserRepoCreateDuplicateEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(q(`INSERT INTO users (email, password_hash, role) VALUES (?, ?, ?)`)).
		WithArgs("desk@example.com", sqlmock.AnyArg(), model.RoleReceptionist).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec(q(`INSERT INTO users`)).WillReturnError(&mysql.MySQLError{Number: 1062})

	id, err := repo.Create(context.Background(), " Desk@Example.com", "password123", model.RoleReceptionist, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	_, err = repo.Create(context.Background(), "desk@example.com", "password123", model.RoleReceptionist, 4)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserRepoGetByEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	cols := []string{"id", "email", "password_hash", "role", "is_active", "created_at", "updated_at"}
	now := time.Now().UTC()

	mock.ExpectQuery(q(`FROM users WHERE email = ?`)).WithArgs("desk@example.com").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(3, "desk@example.com", "hash", model.RoleReceptionist, true, now, now))
	mock.ExpectQuery(q(`FROM users WHERE email = ?`)).WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows(cols))

	u, err := repo.GetByEmail(context.Background(), "Desk@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), u.ID)
	assert.True(t, u.IsActive)

	_, err = repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenRepoValidateRefresh(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)
	cols := []string{"id", "user_id", "token_hash", "expires_at", "revoked_at", "created_at"}
	now := time.Now().UTC()

	mock.ExpectQuery(q(`FROM refresh_tokens WHERE token_hash = ?`)).WithArgs("ok").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(1, 7, "ok", farFuture, nil, now))
	mock.ExpectQuery(q(`FROM refresh_tokens WHERE token_hash = ?`)).WithArgs("revoked").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(2, 7, "revoked", farFuture, now, now))
	mock.ExpectQuery(q(`FROM refresh_tokens WHERE token_hash = ?`)).WithArgs("expired").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(3, 7, "expired", now.Add(-time.Minute), nil, now))
	mock.ExpectQuery(q(`FROM refresh_tokens WHERE token_hash = ?`)).WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	uid, err := repo.ValidateRefresh(context.Background(), "ok")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), uid)
	for _, h := range []string{"revoked", "expired", "missing"} {
		_, err = repo.ValidateRefresh(context.Background(), h)
		assert.ErrorIs(t, err, ErrNotFound, h)
	}
}
