package contact

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Service holds the contact record rules. Writes are published to the
// change feed only after the repository confirmed them.
type Service struct {
	repo   Repository
	events Publisher
	log    *zap.Logger
}

func NewService(repo Repository, events Publisher, log *zap.Logger) *Service {
	return &Service{repo: repo, events: events, log: log.Named("contact")}
}

// List returns one page of contacts. The query is normalized in place.
func (s *Service) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return &ListResult{
		Items:      items,
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: TotalPages(total, q.PageSize),
	}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Contact, error) {
	return s.repo.GetByID(ctx, id)
}

// Create inserts one contact. req must already be validated.
func (s *Service) Create(ctx context.Context, req CreateContactRequest) (*Contact, error) {
	c := req.toEntity()
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}
	s.log.Info("contact created", zap.String("id", c.ID))
	s.publish(EventInsert, c.ID, c)
	return c, nil
}

// CreateBatch inserts all contacts or none of them.
func (s *Service) CreateBatch(ctx context.Context, reqs []CreateContactRequest) ([]Contact, error) {
	if len(reqs) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(reqs) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}

	contacts := make([]Contact, 0, len(reqs))
	for i := range reqs {
		contacts = append(contacts, *reqs[i].toEntity())
	}
	if err := s.repo.CreateBatch(ctx, contacts); err != nil {
		return nil, fmt.Errorf("create contacts: %w", err)
	}

	s.log.Info("contacts created", zap.Int("count", len(contacts)))
	for i := range contacts {
		s.publish(EventInsert, contacts[i].ID, &contacts[i])
	}
	return contacts, nil
}

// Update applies a partial update and returns the stored record.
func (s *Service) Update(ctx context.Context, id string, req UpdateContactRequest) (*Contact, error) {
	if req.Empty() {
		return nil, ErrNothingToUpdate
	}
	c, err := s.repo.Update(ctx, id, req.Changes())
	if err != nil {
		return nil, err
	}
	s.log.Info("contact updated", zap.String("id", id))
	s.publish(EventUpdate, id, c)
	return c, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("contact deleted", zap.String("id", id))
	s.publish(EventDelete, id, nil)
	return nil
}

func (s *Service) publish(kind, id string, c *Contact) {
	if s.events == nil {
		return
	}
	s.events.Publish(ChangeEvent{Type: kind, ID: id, Record: c})
}
