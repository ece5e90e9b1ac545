package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/rollcall-api/internal/live"
	"github.com/noah-isme/rollcall-api/internal/models"
	"github.com/noah-isme/rollcall-api/internal/viewstate"
	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
)

// DefaultRecurrenceDays is the recurring-lesson horizon when none is configured.
const DefaultRecurrenceDays = 28

type lessonRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Lesson, error)
	FindDetailByID(ctx context.Context, id int64) (*models.LessonDetailRow, error)
	CountOverlaps(ctx context.Context, classID, start, end, excludeID int64) (int, error)
	CountOverlapsWithTx(ctx context.Context, tx *sqlx.Tx, classID, start, end, excludeID int64) (int, error)
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, lesson *models.Lesson) error
	UpdateWithTx(ctx context.Context, tx *sqlx.Tx, lesson *models.Lesson) error
	SetFinished(ctx context.Context, id int64, topic *string) error
	Delete(ctx context.Context, id int64) error
}

type subjectWriter interface {
	FindByNameWithTx(ctx context.Context, tx *sqlx.Tx, name string) (*models.Subject, error)
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, subject *models.Subject) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

// SaveLessonParams is a lesson write in calendar terms.
type SaveLessonParams struct {
	LessonID    int64
	ClassID     int64
	SubjectName string
	Date        time.Time
	Start       viewstate.Clock
	End         viewstate.Clock
	RoomNumber  string
	Color       *string
	RepeatDays  []int
	Location    *time.Location
}

// FinishLessonRequest closes a lesson with an optional topic.
type FinishLessonRequest struct {
	Topic string `json:"topic" validate:"max=500"`
}

type occurrence struct {
	start int64
	end   int64
}

// LessonService coordinates lesson writes.
type LessonService struct {
	repo     lessonRepository
	subjects subjectWriter
	classes  classLookup
	tx       txRunner
	broker   *live.Broker
	metrics  *MetricsService
	horizon  int
	loc      *time.Location
	logger   *zap.Logger
}

// NewLessonService constructs LessonService. horizonDays bounds recurring creation.
func NewLessonService(repo lessonRepository, subjects subjectWriter, classes classLookup, tx txRunner, broker *live.Broker, metrics *MetricsService, horizonDays int, loc *time.Location, logger *zap.Logger) *LessonService {
	if horizonDays <= 0 {
		horizonDays = DefaultRecurrenceDays
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonService{
		repo:     repo,
		subjects: subjects,
		classes:  classes,
		tx:       tx,
		broker:   broker,
		metrics:  metrics,
		horizon:  horizonDays,
		loc:      loc,
		logger:   logger,
	}
}

// Location returns the default zone for calendar conversions.
func (s *LessonService) Location() *time.Location {
	return s.loc
}

// Save validates a lesson form and persists it. Every occurrence a recurring save would
// create is checked for overlaps first; any conflict rejects the whole batch.
func (s *LessonService) Save(ctx context.Context, lessonID int64, form viewstate.LessonForm, loc *time.Location) ([]int64, error) {
	if loc == nil {
		loc = s.loc
	}
	input, err := form.Validate(loc)
	if err != nil {
		return nil, err
	}
	if _, err := s.classes.FindByID(ctx, input.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	params := SaveLessonParams{
		LessonID:    lessonID,
		ClassID:     input.ClassID,
		SubjectName: input.SubjectName,
		Date:        input.Date,
		Start:       input.Start,
		End:         input.End,
		RoomNumber:  input.RoomNumber,
		Color:       input.Color,
		RepeatDays:  input.RepeatDays,
		Location:    loc,
	}

	var ids []int64
	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, occ := range s.occurrences(params) {
			count, err := s.repo.CountOverlapsWithTx(ctx, tx, params.ClassID, occ.start, occ.end, params.LessonID)
			if err != nil {
				return err
			}
			if count > 0 {
				return appErrors.Clone(appErrors.ErrLessonOverlap, "")
			}
		}
		var err error
		ids, err = s.saveWithTx(ctx, tx, params)
		return err
	})
	if err != nil {
		return nil, s.saveError(err)
	}
	s.afterSave(params, ids)
	return ids, nil
}

// SaveLesson persists a lesson without overlap validation: an update when LessonID is
// set, otherwise one insert or one insert per matching weekday within the horizon.
func (s *LessonService) SaveLesson(ctx context.Context, params SaveLessonParams) ([]int64, error) {
	if params.Location == nil {
		params.Location = s.loc
	}
	var ids []int64
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		ids, err = s.saveWithTx(ctx, tx, params)
		return err
	})
	if err != nil {
		return nil, s.saveError(err)
	}
	s.afterSave(params, ids)
	return ids, nil
}

// HasOverlap reports whether another lesson of the class intersects [start, end).
func (s *LessonService) HasOverlap(ctx context.Context, classID, start, end, excludeID int64) (bool, error) {
	count, err := s.repo.CountOverlaps(ctx, classID, start, end, excludeID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check lesson overlap")
	}
	return count > 0, nil
}

// Get returns a lesson with subject and class names.
func (s *LessonService) Get(ctx context.Context, id int64, loc *time.Location) (*models.LessonDetail, error) {
	if loc == nil {
		loc = s.loc
	}
	row, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	return lessonDetail(*row, loc), nil
}

// Finish marks a lesson as held. A blank topic keeps the stored one.
func (s *LessonService) Finish(ctx context.Context, id int64, req FinishLessonRequest) error {
	if err := s.repo.SetFinished(ctx, id, viewstate.Optional(req.Topic)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return appErrors.Wrap(err, appErrors.ErrSaveFailed.Code, appErrors.ErrSaveFailed.Status, "failed to finish lesson")
	}
	s.broker.Publish(live.TableLessons)
	return nil
}

// Delete removes a lesson and its attendance.
func (s *LessonService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lesson")
	}
	s.broker.Publish(live.TableLessons, live.TableAttendance)
	return nil
}

func (s *LessonService) saveWithTx(ctx context.Context, tx *sqlx.Tx, params SaveLessonParams) ([]int64, error) {
	subjectID, err := s.resolveSubject(ctx, tx, params.SubjectName)
	if err != nil {
		return nil, err
	}

	occurrences := s.occurrences(params)
	if params.LessonID != 0 {
		occ := occurrences[0]
		lesson := &models.Lesson{
			ID:         params.LessonID,
			ClassID:    params.ClassID,
			SubjectID:  subjectID,
			StartTime:  occ.start,
			EndTime:    occ.end,
			RoomNumber: params.RoomNumber,
			Color:      params.Color,
		}
		if err := s.repo.UpdateWithTx(ctx, tx, lesson); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
			}
			return nil, err
		}
		return []int64{params.LessonID}, nil
	}

	ids := make([]int64, 0, len(occurrences))
	for _, occ := range occurrences {
		lesson := &models.Lesson{
			ClassID:    params.ClassID,
			SubjectID:  subjectID,
			StartTime:  occ.start,
			EndTime:    occ.end,
			RoomNumber: params.RoomNumber,
			Color:      params.Color,
		}
		if err := s.repo.CreateWithTx(ctx, tx, lesson); err != nil {
			return nil, err
		}
		ids = append(ids, lesson.ID)
	}
	return ids, nil
}

// resolveSubject finds a subject by exact name, creating it when absent.
func (s *LessonService) resolveSubject(ctx context.Context, tx *sqlx.Tx, name string) (int64, error) {
	subject, err := s.subjects.FindByNameWithTx(ctx, tx, name)
	if err == nil {
		return subject.ID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("find subject: %w", err)
	}
	created := &models.Subject{Name: name}
	if err := s.subjects.CreateWithTx(ctx, tx, created); err != nil {
		return 0, err
	}
	return created.ID, nil
}

// occurrences expands params into concrete instants. Edits and non-repeating creates
// yield one; repeating creates yield one per matching weekday in [date, date+horizon).
func (s *LessonService) occurrences(params SaveLessonParams) []occurrence {
	loc := params.Location
	if loc == nil {
		loc = s.loc
	}
	at := func(day time.Time) occurrence {
		return occurrence{
			start: params.Start.On(day, loc).UnixMilli(),
			end:   params.End.On(day, loc).UnixMilli(),
		}
	}
	base := params.Date.In(loc)

	if params.LessonID != 0 || len(params.RepeatDays) == 0 {
		return []occurrence{at(base)}
	}

	wanted := make(map[int]struct{}, len(params.RepeatDays))
	for _, d := range params.RepeatDays {
		wanted[d] = struct{}{}
	}
	out := make([]occurrence, 0, len(wanted)*(s.horizon/7+1))
	for i := 0; i < s.horizon; i++ {
		day := time.Date(base.Year(), base.Month(), base.Day()+i, 0, 0, 0, 0, loc)
		if _, ok := wanted[ISOWeekday(day.Weekday())]; ok {
			out = append(out, at(day))
		}
	}
	return out
}

func (s *LessonService) afterSave(params SaveLessonParams, ids []int64) {
	s.metrics.AddLessonsSaved(len(ids))
	s.logger.Info("lessons saved",
		zap.Int64("class_id", params.ClassID),
		zap.Int64("lesson_id", params.LessonID),
		zap.Int("count", len(ids)),
	)
	s.broker.Publish(live.TableLessons, live.TableSubjects)
}

func (s *LessonService) saveError(err error) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	s.logger.Error("lesson save failed", zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrSaveFailed.Code, appErrors.ErrSaveFailed.Status, "could not save lesson")
}
