package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/section-queue/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestTicketRepoGetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTicketRepo(db)
	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(q(`FROM tickets WHERE id = ?`)).WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "membership_number", "section", "position", "is_serving", "created_at"}).
			AddRow("t1", "A001", "Loan", 1, true, created))
	mock.ExpectQuery(q(`FROM tickets WHERE id = ?`)).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	got, err := repo.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, model.Ticket{ID: "t1", MembershipNumber: "A001", Section: "Loan", Position: 1, IsServing: true, CreatedAt: created}, *got)

	_, err = repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTicketRepoInsertDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTicketRepo(db)

	mock.ExpectExec(q(`INSERT INTO tickets`)).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'Loan-1'"})

	err := repo.Insert(context.Background(), &model.Ticket{ID: "t2", Section: "Loan", Position: 1})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestTicketRepoDeleteAndRenumber(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTicketRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(q(`DELETE FROM tickets WHERE id = ?`)).WithArgs("t1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(`UPDATE tickets SET position = ? WHERE id = ?`)).WithArgs(1, "t2").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(`UPDATE tickets SET position = ? WHERE id = ?`)).WithArgs(2, "t3").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(`UPDATE tickets SET is_serving = 1 WHERE id = ?`)).WithArgs("t2").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.DeleteAndRenumber(context.Background(), "t1",
		[]model.PositionUpdate{{TicketID: "t2", Position: 1}, {TicketID: "t3", Position: 2}}, "t2")
	require.NoError(t, err)
}

func TestTicketRepoDeleteAndRenumberRollsBack(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTicketRepo(db)

	// Missing ticket: nothing else runs.
	mock.ExpectBegin()
	mock.ExpectExec(q(`DELETE FROM tickets WHERE id = ?`)).WithArgs("gone").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	err := repo.DeleteAndRenumber(context.Background(), "gone", []model.PositionUpdate{{TicketID: "t2", Position: 1}}, "")
	assert.ErrorIs(t, err, ErrNotFound)

	// A position clash aborts the whole batch.
	mock.ExpectBegin()
	mock.ExpectExec(q(`DELETE FROM tickets WHERE id = ?`)).WithArgs("t1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(`UPDATE tickets SET position = ? WHERE id = ?`)).WithArgs(1, "t2").
		WillReturnError(&mysql.MySQLError{Number: 1062})
	mock.ExpectRollback()
	err = repo.DeleteAndRenumber(context.Background(), "t1", []model.PositionUpdate{{TicketID: "t2", Position: 1}}, "")
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestTicketRepoHandOverServing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTicketRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(q(`UPDATE tickets SET is_serving = 0 WHERE id = ? AND is_serving = 1`)).WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(`UPDATE tickets SET is_serving = 1 WHERE id = ?`)).WithArgs("t2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, repo.HandOverServing(context.Background(), "t1", "t2"))

	// Going idle touches one row only.
	mock.ExpectBegin()
	mock.ExpectExec(q(`UPDATE tickets SET is_serving = 0`)).WithArgs("t2").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, repo.HandOverServing(context.Background(), "t2", ""))

	// The ticket stopped serving in the meantime.
	mock.ExpectBegin()
	mock.ExpectExec(q(`UPDATE tickets SET is_serving = 0`)).WithArgs("t2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	assert.ErrorIs(t, repo.HandOverServing(context.Background(), "t2", "t3"), ErrNotFound)
}

func TestTicketRepoListBySection(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTicketRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery(q(`FROM tickets WHERE section = ? ORDER BY position`)).WithArgs("Loan").
		WillReturnRows(sqlmock.NewRows([]string{"id", "membership_number", "section", "position", "is_serving", "created_at"}).
			AddRow("t1", "A001", "Loan", 1, true, now).
			AddRow("t2", "A002", "Loan", 2, false, now))
	mock.ExpectQuery(q(`FROM tickets WHERE section = ?`)).WithArgs("Empty").
		WillReturnRows(sqlmock.NewRows([]string{"id", "membership_number", "section", "position", "is_serving", "created_at"}))

	got, err := repo.ListBySection(context.Background(), "Loan")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[1].Position)

	empty, err := repo.ListBySection(context.Background(), "Empty")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestTicketRepoRenameSection(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTicketRepo(db)

	mock.ExpectExec(q(`UPDATE tickets SET section = ? WHERE section = ?`)).WithArgs("Loans", "Loan").
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := repo.RenameSection(context.Background(), "Loan", "Loans")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
