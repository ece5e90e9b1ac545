package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/rollcall-api/internal/live"
	"github.com/noah-isme/rollcall-api/internal/models"
	"github.com/noah-isme/rollcall-api/internal/viewstate"
	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
)

type attendanceRepository interface {
	ListByLesson(ctx context.Context, lessonID int64) ([]models.AttendanceRecord, error)
	SaveMarks(ctx context.Context, lessonID int64, records []models.AttendanceRecord, cleared []int64) error
	CountByStatus(ctx context.Context, studentID int64) ([]models.AttendanceStatusCount, error)
	CountLessons(ctx context.Context, studentID int64) (int, error)
}

type lessonLookup interface {
	FindByID(ctx context.Context, id int64) (*models.Lesson, error)
}

type rosterLookup interface {
	ListByClass(ctx context.Context, classID int64) ([]models.Student, error)
}

// AttendanceEntry is one mark in a save request.
type AttendanceEntry struct {
	StudentID int64                   `json:"studentId" validate:"required,gt=0"`
	Status    models.AttendanceStatus `json:"status" validate:"required,oneof=PRESENT ABSENT LATE EXCUSED"`
	Comment   *string                 `json:"comment"`
}

// SaveAttendanceRequest carries a complete or partial attendance list.
type SaveAttendanceRequest struct {
	Records []AttendanceEntry `json:"records" validate:"dive"`
}

// AttendanceService persists attendance and derives summaries.
type AttendanceService struct {
	repo      attendanceRepository
	lessons   lessonLookup
	roster    rosterLookup
	cache     *CacheService
	cacheTTL  time.Duration
	broker    *live.Broker
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(repo attendanceRepository, lessons lessonLookup, roster rosterLookup, cache *CacheService, cacheTTL time.Duration, broker *live.Broker, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		repo:      repo,
		lessons:   lessons,
		roster:    roster,
		cache:     cache,
		cacheTTL:  cacheTTL,
		broker:    broker,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// ForLesson returns the saved marks of a lesson.
func (s *AttendanceService) ForLesson(ctx context.Context, lessonID int64) ([]models.AttendanceRecord, error) {
	if _, err := s.lesson(ctx, lessonID); err != nil {
		return nil, err
	}
	records, err := s.repo.ListByLesson(ctx, lessonID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}
	return records, nil
}

// Save writes all records of a lesson atomically. A record for the same student
// overwrites the earlier one. Every student must belong to the lesson's class.
func (s *AttendanceService) Save(ctx context.Context, lessonID int64, records []models.AttendanceRecord) error {
	return s.save(ctx, lessonID, records, nil)
}

// SaveSheet writes records and removes the saved marks of cleared students in one
// transaction. Cleared students who left the class are ignored.
func (s *AttendanceService) SaveSheet(ctx context.Context, lessonID int64, records []models.AttendanceRecord, cleared []int64) error {
	return s.save(ctx, lessonID, records, cleared)
}

func (s *AttendanceService) save(ctx context.Context, lessonID int64, records []models.AttendanceRecord, cleared []int64) error {
	lesson, err := s.lesson(ctx, lessonID)
	if err != nil {
		return err
	}
	roster, err := s.roster.ListByClass(ctx, lesson.ClassID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	enrolled := make(map[int64]struct{}, len(roster))
	for _, st := range roster {
		enrolled[st.ID] = struct{}{}
	}

	batch := make([]models.AttendanceRecord, 0, len(records))
	for _, rec := range records {
		if !rec.Status.Valid() {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid attendance status %q", rec.Status))
		}
		if _, ok := enrolled[rec.StudentID]; !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %d is not in this lesson's class", rec.StudentID))
		}
		batch = append(batch, models.AttendanceRecord{
			LessonID:  lessonID,
			StudentID: rec.StudentID,
			Status:    rec.Status,
			Comment:   viewstate.OptionalPtr(rec.Comment),
		})
	}

	unset := make([]int64, 0, len(cleared))
	for _, id := range cleared {
		if _, ok := enrolled[id]; ok {
			unset = append(unset, id)
		}
	}
	if len(batch) == 0 && len(unset) == 0 {
		return nil
	}

	if err := s.repo.SaveMarks(ctx, lessonID, batch, unset); err != nil {
		s.logger.Error("attendance save failed", zap.Int64("lesson_id", lessonID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrSaveFailed.Code, appErrors.ErrSaveFailed.Status, "could not save attendance")
	}

	for _, rec := range batch {
		_ = s.cache.Delete(ctx, summaryCacheKey(rec.StudentID))
	}
	for _, id := range unset {
		_ = s.cache.Delete(ctx, summaryCacheKey(id))
	}
	s.metrics.AddAttendanceSaved(len(batch))
	s.broker.Publish(live.TableAttendance)
	return nil
}

// SaveRequest validates an API payload and saves it.
func (s *AttendanceService) SaveRequest(ctx context.Context, lessonID int64, req SaveAttendanceRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	records := make([]models.AttendanceRecord, 0, len(req.Records))
	for _, entry := range req.Records {
		records = append(records, models.AttendanceRecord{StudentID: entry.StudentID, Status: entry.Status, Comment: entry.Comment})
	}
	return s.Save(ctx, lessonID, records)
}

// StudentSummary tallies a student's marks. Present and late count toward the rate.
func (s *AttendanceService) StudentSummary(ctx context.Context, studentID int64) (*models.StudentAttendanceSummary, error) {
	key := summaryCacheKey(studentID)
	var cached models.StudentAttendanceSummary
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	counts, err := s.repo.CountByStatus(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarize attendance")
	}
	lessons, err := s.repo.CountLessons(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarize attendance")
	}

	summary := &models.StudentAttendanceSummary{StudentID: studentID, LessonsCounted: lessons}
	for _, c := range counts {
		switch c.Status {
		case models.AttendancePresent:
			summary.Present = c.Count
		case models.AttendanceAbsent:
			summary.Absent = c.Count
		case models.AttendanceLate:
			summary.Late = c.Count
		case models.AttendanceExcused:
			summary.Excused = c.Count
		}
	}
	if lessons > 0 {
		rate := float64(summary.Present+summary.Late) / float64(lessons) * 100
		summary.AttendanceRate = math.Round(rate*100) / 100
	}

	_ = s.cache.Set(ctx, key, summary, s.cacheTTL)
	return summary, nil
}

// InvalidateOnChange drops cached summaries whenever attendance, lessons or students
// change, until ctx ends.
func (s *AttendanceService) InvalidateOnChange(ctx context.Context) {
	if s.broker == nil || !s.cache.Enabled() {
		return
	}
	changes, unsubscribe := s.broker.Subscribe(live.TableAttendance, live.TableLessons, live.TableStudents)
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				_ = s.cache.Invalidate(ctx, "attendance:summary:*")
			}
		}
	}()
}

func (s *AttendanceService) lesson(ctx context.Context, lessonID int64) (*models.Lesson, error) {
	lesson, err := s.lessons.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	return lesson, nil
}

func summaryCacheKey(studentID int64) string {
	return fmt.Sprintf("attendance:summary:%d", studentID)
}
