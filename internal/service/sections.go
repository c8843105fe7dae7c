package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iliyamo/section-queue/internal/model"
	"github.com/iliyamo/section-queue/internal/queue"
	"github.com/iliyamo/section-queue/internal/repository"
)

// SectionInput carries the editable fields of a section.
type SectionInput struct {
	Name string `json:"name"`
}

// SectionService manages section records.  Tickets reference sections by
// name, so a rename fans out to every ticket through QueueStore and a
// delete removes the section's tickets.
type SectionService struct {
	sections SectionStore
	queue    *QueueStore
	notifier Notifier
	logger   *zap.Logger
}

func NewSectionService(sections SectionStore, qs *QueueStore, notifier Notifier, logger *zap.Logger) *SectionService {
	return &SectionService{sections: sections, queue: qs, notifier: notifier, logger: logger}
}

func (s *SectionService) Create(ctx context.Context, in SectionInput) (*model.Section, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("name is required")
	}
	sec := &model.Section{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	if err := s.sections.Insert(ctx, sec); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrSectionExists
		}
		return nil, errors.Wrap(err, "insert section")
	}
	s.logger.Info("section created", zap.String("section_id", sec.ID), zap.String("name", sec.Name))
	s.notifier.Publish(queue.NewEvent(queue.EventSectionAdded, sec.Name, sec))
	return sec, nil
}

func (s *SectionService) List(ctx context.Context) ([]model.Section, error) {
	out, err := s.sections.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list sections")
	}
	return out, nil
}

// Rename changes the section's name and moves its tickets with it.  When
// the tickets cannot follow, the name change is reverted.
func (s *SectionService) Rename(ctx context.Context, id string, in SectionInput) (*model.Section, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("name is required")
	}
	sec, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sec.Name == name {
		return sec, nil
	}
	oldName := sec.Name
	if err := s.sections.UpdateName(ctx, sec.ID, name); err != nil {
		return nil, s.mapWrite(err)
	}
	if err := s.queue.RenameSectionRefs(ctx, oldName, name); err != nil {
		if rbErr := s.sections.UpdateName(ctx, sec.ID, oldName); rbErr != nil {
			s.logger.Error("section rename rollback failed",
				zap.String("section_id", sec.ID), zap.String("name", oldName), zap.Error(rbErr))
		}
		return nil, err
	}
	sec.Name = name
	s.logger.Info("section renamed", zap.String("section_id", sec.ID), zap.String("from", oldName), zap.String("to", name))
	s.notifier.Publish(queue.NewEvent(queue.EventSectionUpdated, sec.Name, sec))
	return sec, nil
}

// Delete removes the section and every ticket queued in it.  Both happen
// while the section is locked; a failure leaves the section and its tickets
// in place.
func (s *SectionService) Delete(ctx context.Context, id string) error {
	sec, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	removeRecord := func(ctx context.Context) error {
		if err := s.sections.Delete(ctx, sec.ID); err != nil {
			return s.mapWrite(err)
		}
		return nil
	}
	restoreRecord := func(ctx context.Context) error { return s.sections.Insert(ctx, sec) }
	n, err := s.queue.dropSection(ctx, sec.Name, removeRecord, restoreRecord)
	if err != nil {
		return err
	}
	s.logger.Info("section deleted", zap.String("section_id", sec.ID), zap.String("name", sec.Name), zap.Int64("tickets", n))
	s.notifier.Publish(queue.NewEvent(queue.EventSectionDeleted, sec.Name, map[string]string{"id": sec.ID}))
	return nil
}

func (s *SectionService) get(ctx context.Context, id string) (*model.Section, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, validationError("section id is required")
	}
	sec, err := s.sections.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSectionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get section")
	}
	return sec, nil
}

func (s *SectionService) mapWrite(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrSectionNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return ErrSectionExists
	}
	return errors.Wrap(err, "write section")
}
