package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/rollcall-api/internal/live"
	"github.com/noah-isme/rollcall-api/internal/models"
	"github.com/noah-isme/rollcall-api/internal/viewstate"
	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
)

type studentRepository interface {
	ListByClass(ctx context.Context, classID int64) ([]models.Student, error)
	ListDirectory(ctx context.Context) ([]models.StudentListItem, error)
	FindByID(ctx context.Context, id int64) (*models.StudentWithClass, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id int64) error
}

type classLookup interface {
	FindByID(ctx context.Context, id int64) (*models.SchoolClass, error)
}

// StudentService coordinates roster operations.
type StudentService struct {
	repo    studentRepository
	classes classLookup
	broker  *live.Broker
	loc     *time.Location
	now     func() time.Time
	logger  *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, classes classLookup, broker *live.Broker, loc *time.Location, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &StudentService{repo: repo, classes: classes, broker: broker, loc: loc, now: time.Now, logger: logger}
}

// Directory returns the full roster grouped by the first letter of the last name.
func (s *StudentService) Directory(ctx context.Context) ([]models.StudentGroup, error) {
	items, err := s.repo.ListDirectory(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return groupDirectory(items), nil
}

// WatchDirectory streams the grouped roster, re-emitted after every student or class change.
func (s *StudentService) WatchDirectory(ctx context.Context) <-chan live.Snapshot[[]models.StudentGroup] {
	return live.Watch(ctx, s.broker, []string{live.TableStudents, live.TableClasses}, s.Directory)
}

// ListByClass returns a class roster ordered by last name.
func (s *StudentService) ListByClass(ctx context.Context, classID int64) ([]models.StudentPreview, error) {
	if err := s.ensureClass(ctx, classID); err != nil {
		return nil, err
	}
	students, err := s.repo.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class students")
	}
	now := s.now()
	previews := make([]models.StudentPreview, 0, len(students))
	for _, st := range students {
		previews = append(previews, studentPreview(st, now, s.loc))
	}
	return previews, nil
}

// Get returns a student profile with class name and age.
func (s *StudentService) Get(ctx context.Context, id int64) (*models.StudentProfile, error) {
	st, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return studentProfile(*st, s.now(), s.loc), nil
}

// Create adds a student from the quick-add form. Birth date, health info and notes start empty.
func (s *StudentService) Create(ctx context.Context, form viewstate.StudentForm) (*models.StudentProfile, error) {
	form.BirthDate = 0
	form.HealthInfo = ""
	form.TeacherNotes = ""
	return s.SaveFull(ctx, 0, form)
}

// SaveFull creates the student when id is 0, otherwise overwrites its profile.
func (s *StudentService) SaveFull(ctx context.Context, id int64, form viewstate.StudentForm) (*models.StudentProfile, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	student := form.Student(id)
	if err := s.ensureClass(ctx, student.ClassID); err != nil {
		return nil, err
	}

	if id == 0 {
		if err := s.repo.Create(ctx, &student); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrSaveFailed.Code, appErrors.ErrSaveFailed.Status, "failed to create student")
		}
	} else if err := s.repo.Update(ctx, &student); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrSaveFailed.Code, appErrors.ErrSaveFailed.Status, "failed to update student")
	}

	s.broker.Publish(live.TableStudents)
	return s.Get(ctx, student.ID)
}

// Delete removes a student and its attendance.
func (s *StudentService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.broker.Publish(live.TableStudents, live.TableAttendance)
	return nil
}

func (s *StudentService) ensureClass(ctx context.Context, classID int64) error {
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return nil
}
