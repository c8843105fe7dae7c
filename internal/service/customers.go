package service

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/iliyamo/section-queue/internal/model"
	"github.com/iliyamo/section-queue/internal/queue"
	"github.com/iliyamo/section-queue/internal/repository"
)

const (
	maxImportRows   = 5000
	importBatchSize = 500
)

var (
	ErrImportBadHeader = newKindError(ErrValidation, "spreadsheet header must name a membershipNo column")
	ErrImportNoData    = newKindError(ErrValidation, "spreadsheet has no data rows")
	ErrImportTooLarge  = newKindError(ErrValidation, "spreadsheet has too many rows")
)

// CustomerInput carries the customer fields accepted on create and update.
// On update an empty field keeps the stored value.
type CustomerInput struct {
	MembershipNo string `json:"membership_no"`
	Name         string `json:"name"`
	Designation  string `json:"designation"`
	Hospital     string `json:"hospital"`
}

func (in *CustomerInput) trim() {
	in.MembershipNo = strings.TrimSpace(in.MembershipNo)
	in.Name = strings.TrimSpace(in.Name)
	in.Designation = strings.TrimSpace(in.Designation)
	in.Hospital = strings.TrimSpace(in.Hospital)
}

// ImportResult summarises a spreadsheet import.  SkippedRows holds the
// 1-based sheet row numbers that had no membership number.
type ImportResult struct {
	Imported    int   `json:"imported"`
	SkippedRows []int `json:"skipped_rows,omitempty"`
}

// CustomerService manages customer reference data.
type CustomerService struct {
	customers CustomerStore
	notifier  Notifier
	logger    *zap.Logger
}

func NewCustomerService(customers CustomerStore, notifier Notifier, logger *zap.Logger) *CustomerService {
	return &CustomerService{customers: customers, notifier: notifier, logger: logger}
}

func (s *CustomerService) Create(ctx context.Context, in CustomerInput) (*model.Customer, error) {
	in.trim()
	if in.MembershipNo == "" {
		return nil, validationError("membership_no is required")
	}
	if in.Name == "" {
		return nil, validationError("name is required")
	}
	c := &model.Customer{
		ID:           uuid.NewString(),
		MembershipNo: in.MembershipNo,
		Name:         in.Name,
		Designation:  in.Designation,
		Hospital:     in.Hospital,
	}
	if err := s.customers.Insert(ctx, c); err != nil {
		return nil, s.mapWrite(err)
	}
	return c, nil
}

func (s *CustomerService) List(ctx context.Context) ([]model.Customer, error) {
	out, err := s.customers.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list customers")
	}
	return out, nil
}

// GetByMembership looks a customer up by membership number.
func (s *CustomerService) GetByMembership(ctx context.Context, membershipNo string) (*model.Customer, error) {
	membershipNo = strings.TrimSpace(membershipNo)
	if membershipNo == "" {
		return nil, validationError("membership number is required")
	}
	c, err := s.customers.GetByMembership(ctx, membershipNo)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get customer")
	}
	return c, nil
}

// Update applies the non-empty fields of in to the customer.
func (s *CustomerService) Update(ctx context.Context, id string, in CustomerInput) (*model.Customer, error) {
	in.trim()
	c, err := s.customers.GetByID(ctx, strings.TrimSpace(id))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get customer")
	}
	if in.MembershipNo != "" {
		c.MembershipNo = in.MembershipNo
	}
	if in.Name != "" {
		c.Name = in.Name
	}
	if in.Designation != "" {
		c.Designation = in.Designation
	}
	if in.Hospital != "" {
		c.Hospital = in.Hospital
	}
	if err := s.customers.Update(ctx, c); err != nil {
		return nil, s.mapWrite(err)
	}
	return c, nil
}

func (s *CustomerService) Delete(ctx context.Context, id string) error {
	if err := s.customers.Delete(ctx, strings.TrimSpace(id)); err != nil {
		return s.mapWrite(err)
	}
	return nil
}

// Import reads the first sheet of an .xlsx workbook and upserts one
// customer per row, keyed by membership number.  The header row names the
// columns in any order; membershipNo is required, name, designation and
// hospital are optional.  A later row for the same membership number wins.
func (s *CustomerService) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, newKindError(ErrValidation, "cannot read spreadsheet: "+err.Error())
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, errors.Wrap(err, "read sheet rows")
	}
	if len(rows) < 2 {
		return nil, ErrImportNoData
	}
	if len(rows)-1 > maxImportRows {
		return nil, ErrImportTooLarge
	}
	col := customerHeaderIndex(rows[0])
	if col["membership"] < 0 {
		return nil, ErrImportBadHeader
	}

	res := &ImportResult{}
	order := []string{}
	byNo := map[string]model.Customer{}
	for i := 1; i < len(rows); i++ {
		c := model.Customer{
			MembershipNo: cell(rows[i], col["membership"]),
			Name:         cell(rows[i], col["name"]),
			Designation:  cell(rows[i], col["designation"]),
			Hospital:     cell(rows[i], col["hospital"]),
		}
		if c.MembershipNo == "" {
			if c.Name != "" || c.Designation != "" || c.Hospital != "" {
				res.SkippedRows = append(res.SkippedRows, i+1)
			}
			continue
		}
		if _, seen := byNo[c.MembershipNo]; !seen {
			order = append(order, c.MembershipNo)
		}
		c.ID = uuid.NewString()
		byNo[c.MembershipNo] = c
	}
	if len(order) == 0 {
		return nil, ErrImportNoData
	}

	batch := make([]model.Customer, 0, importBatchSize)
	for _, no := range order {
		batch = append(batch, byNo[no])
		if len(batch) == importBatchSize {
			if err := s.customers.UpsertBulk(ctx, batch); err != nil {
				return nil, errors.Wrap(err, "upsert customers")
			}
			res.Imported += len(batch)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := s.customers.UpsertBulk(ctx, batch); err != nil {
			return nil, errors.Wrap(err, "upsert customers")
		}
		res.Imported += len(batch)
	}
	s.logger.Info("customers imported", zap.Int("imported", res.Imported), zap.Int("skipped", len(res.SkippedRows)))
	s.notifier.Publish(queue.NewEvent(queue.EventCustomerUploaded, "", res))
	return res, nil
}

// customerHeaderIndex maps header cells to column indexes, ignoring case,
// spaces and underscores.  Missing columns map to -1.
func customerHeaderIndex(header []string) map[string]int {
	idx := map[string]int{"membership": -1, "name": -1, "designation": -1, "hospital": -1}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(key)
		switch key {
		case "membershipno", "membershipnumber", "membership":
			idx["membership"] = i
		case "name":
			idx["name"] = i
		case "designation":
			idx["designation"] = i
		case "hospital":
			idx["hospital"] = i
		}
	}
	return idx
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (s *CustomerService) mapWrite(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrCustomerNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return ErrCustomerExists
	}
	return errors.Wrap(err, "write customer")
}
