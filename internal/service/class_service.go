package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/rollcall-api/internal/live"
	"github.com/noah-isme/rollcall-api/internal/models"
	"github.com/noah-isme/rollcall-api/internal/viewstate"
	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
)

type classRepository interface {
	ListWithCounts(ctx context.Context) ([]models.ClassCountRow, error)
	ListPreviews(ctx context.Context, perClass int) ([]models.ClassPreviewRow, error)
	FindByID(ctx context.Context, id int64) (*models.SchoolClass, error)
	Create(ctx context.Context, class *models.SchoolClass) error
	Update(ctx context.Context, class *models.SchoolClass) error
	Delete(ctx context.Context, id int64) error
}

type classRosterRepository interface {
	ListByClass(ctx context.Context, classID int64) ([]models.Student, error)
}

// ClassRequest captures create and update payloads.
type ClassRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// ClassService coordinates class operations.
type ClassService struct {
	repo      classRepository
	roster    classRosterRepository
	broker    *live.Broker
	loc       *time.Location
	now       func() time.Time
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, roster classRosterRepository, broker *live.Broker, loc *time.Location, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &ClassService{repo: repo, roster: roster, broker: broker, loc: loc, now: time.Now, validator: validate, logger: logger}
}

// List returns every class with its student count and preview students.
func (s *ClassService) List(ctx context.Context) ([]models.ClassOverview, error) {
	counts, err := s.repo.ListWithCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	previews, err := s.repo.ListPreviews(ctx, PreviewStudentsPerClass)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class previews")
	}

	now := s.now()
	byClass := make(map[int64][]models.StudentPreview, len(counts))
	for _, row := range previews {
		byClass[row.ClassID] = append(byClass[row.ClassID], previewFromRow(row, now, s.loc))
	}

	overviews := make([]models.ClassOverview, 0, len(counts))
	for _, row := range counts {
		preview := byClass[row.ID]
		if preview == nil {
			preview = []models.StudentPreview{}
		}
		overviews = append(overviews, models.ClassOverview{
			SchoolClass:     row.SchoolClass,
			StudentCount:    row.StudentCount,
			PreviewStudents: preview,
		})
	}
	return overviews, nil
}

// WatchAll streams the class list, re-emitted after every class or student change.
func (s *ClassService) WatchAll(ctx context.Context) <-chan live.Snapshot[[]models.ClassOverview] {
	return live.Watch(ctx, s.broker, []string{live.TableClasses, live.TableStudents}, s.List)
}

// Get returns a class with its full student list.
func (s *ClassService) Get(ctx context.Context, id int64) (*models.ClassDetail, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	students, err := s.roster.ListByClass(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class students")
	}
	now := s.now()
	previews := make([]models.StudentPreview, 0, len(students))
	for _, st := range students {
		previews = append(previews, studentPreview(st, now, s.loc))
	}
	return &models.ClassDetail{SchoolClass: *class, StudentCount: len(previews), Students: previews}, nil
}

// Create adds a new class.
func (s *ClassService) Create(ctx context.Context, req ClassRequest) (*models.SchoolClass, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	class := &models.SchoolClass{Name: req.Name, Description: viewstate.Optional(req.Description)}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrSaveFailed.Code, appErrors.ErrSaveFailed.Status, "failed to create class")
	}
	s.broker.Publish(live.TableClasses)
	return class, nil
}

// Update renames or re-describes a class.
func (s *ClassService) Update(ctx context.Context, id int64, req ClassRequest) (*models.SchoolClass, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	class := &models.SchoolClass{ID: id, Name: req.Name, Description: viewstate.Optional(req.Description)}
	if err := s.repo.Update(ctx, class); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrSaveFailed.Code, appErrors.ErrSaveFailed.Status, "failed to update class")
	}
	s.broker.Publish(live.TableClasses)
	return class, nil
}

// Delete removes a class together with its students, lessons and their attendance.
func (s *ClassService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	s.logger.Info("class deleted", zap.Int64("class_id", id))
	s.broker.Publish(live.TableClasses, live.TableStudents, live.TableLessons, live.TableAttendance)
	return nil
}
