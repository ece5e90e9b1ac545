package service

import (
	"context"

	"github.com/noah-isme/rollcall-api/internal/live"
	"github.com/noah-isme/rollcall-api/internal/models"
	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
)

type subjectRepository interface {
	List(ctx context.Context) ([]models.Subject, error)
}

// SubjectService exposes subject names for autocomplete.
type SubjectService struct {
	repo   subjectRepository
	broker *live.Broker
}

// NewSubjectService constructs SubjectService.
func NewSubjectService(repo subjectRepository, broker *live.Broker) *SubjectService {
	return &SubjectService{repo: repo, broker: broker}
}

// List returns all subjects ordered by name.
func (s *SubjectService) List(ctx context.Context) ([]models.Subject, error) {
	subjects, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}

// WatchAll streams the subject list.
func (s *SubjectService) WatchAll(ctx context.Context) <-chan live.Snapshot[[]models.Subject] {
	return live.Watch(ctx, s.broker, []string{live.TableSubjects}, s.List)
}
