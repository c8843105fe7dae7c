package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/section-queue/internal/queue"
)

func workbook(t *testing.T, rows ...[]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellName, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestCustomerService_CRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.customerS.Create(ctx, CustomerInput{MembershipNo: "M1", Name: "Ana", Hospital: "North"})
	require.NoError(t, err)

	_, err = f.customerS.Create(ctx, CustomerInput{MembershipNo: "M1", Name: "Dup"})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = f.customerS.Create(ctx, CustomerInput{MembershipNo: "M2"})
	assert.ErrorIs(t, err, ErrValidation)

	updated, err := f.customerS.Update(ctx, c.ID, CustomerInput{Designation: "Nurse"})
	require.NoError(t, err)
	assert.Equal(t, "Ana", updated.Name)
	assert.Equal(t, "Nurse", updated.Designation)
	assert.Equal(t, "North", updated.Hospital)

	got, err := f.customerS.GetByMembership(ctx, "M1")
	require.NoError(t, err)
	assert.Equal(t, "Nurse", got.Designation)

	require.NoError(t, f.customerS.Delete(ctx, c.ID))
	_, err = f.customerS.GetByMembership(ctx, "M1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.customerS.Delete(ctx, c.ID), ErrNotFound)
}

func TestCustomerService_ImportUpserts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	existing, err := f.customerS.Create(ctx, CustomerInput{MembershipNo: "M1", Name: "Old"})
	require.NoError(t, err)

	buf := workbook(t,
		[]interface{}{"Hospital", "membershipNo", "Name", "Designation"},
		[]interface{}{"North", "M1", "Ana", "Nurse"},
		[]interface{}{"South", "M2", "Ben", "Doctor"},
		[]interface{}{"East", "", "Nobody", ""},
		[]interface{}{"South", "M2", "Ben B.", "Doctor"},
	)
	res, err := f.customerS.Import(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, []int{4}, res.SkippedRows)
	assert.Equal(t, 1, f.notifier.count(queue.EventCustomerUploaded))

	m1, err := f.customerS.GetByMembership(ctx, "M1")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, m1.ID)
	assert.Equal(t, "Ana", m1.Name)
	assert.Equal(t, "North", m1.Hospital)

	m2, err := f.customerS.GetByMembership(ctx, "M2")
	require.NoError(t, err)
	assert.Equal(t, "Ben B.", m2.Name)
}

func TestCustomerService_ImportRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.customerS.Import(ctx, workbook(t, []interface{}{"Name", "Hospital"}, []interface{}{"Ana", "North"}))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.customerS.Import(ctx, workbook(t, []interface{}{"membershipNo"}))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.customerS.Import(ctx, strings.NewReader("not a workbook"))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, f.notifier.count(queue.EventCustomerUploaded))
}

func TestCustomerHeaderIndex(t *testing.T) {
	idx := customerHeaderIndex([]string{"Membership No", "NAME", "hospital", "other"})
	assert.Equal(t, 0, idx["membership"])
	assert.Equal(t, 1, idx["name"])
	assert.Equal(t, 2, idx["hospital"])
	assert.Equal(t, -1, idx["designation"])
}
