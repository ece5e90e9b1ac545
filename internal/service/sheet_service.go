package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/rollcall-api/internal/models"
	"github.com/noah-isme/rollcall-api/internal/repository"
	"github.com/noah-isme/rollcall-api/internal/viewstate"
	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
)

const sheetDateLayout = "2 January, 15:04"

type lessonDetailLookup interface {
	FindDetailByID(ctx context.Context, id int64) (*models.LessonDetailRow, error)
}

type attendanceStore interface {
	ForLesson(ctx context.Context, lessonID int64) ([]models.AttendanceRecord, error)
	SaveSheet(ctx context.Context, lessonID int64, records []models.AttendanceRecord, cleared []int64) error
}

// sheetDraft is the cached form of a sheet. Baseline holds the saved marks the
// sheet was last reconciled with.
type sheetDraft struct {
	Sheet    viewstate.AttendanceSheet `json:"sheet"`
	Baseline []models.AttendanceRecord `json:"baseline"`
}

// ToggleRequest sets or clears one student's status on a sheet.
type ToggleRequest struct {
	StudentID int64                   `json:"studentId" validate:"required,gt=0"`
	Status    models.AttendanceStatus `json:"status" validate:"required,oneof=PRESENT ABSENT LATE EXCUSED"`
}

// CommentRequest sets one student's comment; blank text clears it.
type CommentRequest struct {
	StudentID int64  `json:"studentId" validate:"required,gt=0"`
	Text      string `json:"text" validate:"max=500"`
}

// SheetService keeps per-lesson attendance drafts between requests.
type SheetService struct {
	lessons    lessonDetailLookup
	roster     rosterLookup
	attendance attendanceStore
	cache      *CacheService
	ttl        time.Duration
	loc        *time.Location
	logger     *zap.Logger

	mu sync.Mutex
}

// NewSheetService constructs SheetService. Without an enabled cache, drafts are kept in process memory.
func NewSheetService(lessons lessonDetailLookup, roster rosterLookup, attendance attendanceStore, cache *CacheService, ttl time.Duration, loc *time.Location, logger *zap.Logger) *SheetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	if !cache.Enabled() {
		cache = NewCacheService(repository.NewCacheRepository(nil, logger), nil, ttl, logger)
	}
	return &SheetService{
		lessons:    lessons,
		roster:     roster,
		attendance: attendance,
		cache:      cache,
		ttl:        ttl,
		loc:        loc,
		logger:     logger,
	}
}

// Load returns the lesson's draft, building it from the roster and saved marks when none exists.
func (s *SheetService) Load(ctx context.Context, lessonID int64) (*viewstate.AttendanceSheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, err := s.current(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	return &draft.Sheet, nil
}

// Toggle applies the tri-state toggle to one student.
func (s *SheetService) Toggle(ctx context.Context, lessonID int64, req ToggleRequest) (*viewstate.AttendanceSheet, error) {
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown attendance status %q", req.Status))
	}
	return s.apply(ctx, lessonID, req.StudentID, func(sheet viewstate.AttendanceSheet) viewstate.AttendanceSheet {
		return sheet.Toggle(req.StudentID, req.Status)
	})
}

// MarkAllPresent sets every student on the sheet to present.
func (s *SheetService) MarkAllPresent(ctx context.Context, lessonID int64) (*viewstate.AttendanceSheet, error) {
	return s.apply(ctx, lessonID, 0, func(sheet viewstate.AttendanceSheet) viewstate.AttendanceSheet {
		return sheet.MarkAllPresent()
	})
}

// SetComment stores a student's comment on the draft.
func (s *SheetService) SetComment(ctx context.Context, lessonID int64, req CommentRequest) (*viewstate.AttendanceSheet, error) {
	return s.apply(ctx, lessonID, req.StudentID, func(sheet viewstate.AttendanceSheet) viewstate.AttendanceSheet {
		return sheet.SetComment(req.StudentID, req.Text)
	})
}

// Submit saves the marked rows and removes saved marks of unset rows in one
// transaction, then discards the draft. It returns the number of saved records.
func (s *SheetService) Submit(ctx context.Context, lessonID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, err := s.current(ctx, lessonID)
	if err != nil {
		return 0, err
	}
	records := draft.Sheet.Records()
	if err := s.attendance.SaveSheet(ctx, lessonID, records, draft.Sheet.Cleared()); err != nil {
		return 0, err
	}
	_ = s.cache.Delete(ctx, sheetCacheKey(lessonID))
	s.logger.Info("attendance sheet submitted", zap.Int64("lesson_id", lessonID), zap.Int("records", len(records)))
	return len(records), nil
}

// Discard drops the draft so the next Load starts from saved marks.
func (s *SheetService) Discard(ctx context.Context, lessonID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Delete(ctx, sheetCacheKey(lessonID))
}

func (s *SheetService) apply(ctx context.Context, lessonID, studentID int64, reduce func(viewstate.AttendanceSheet) viewstate.AttendanceSheet) (*viewstate.AttendanceSheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, err := s.current(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if studentID != 0 && !draft.Sheet.Has(studentID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %d is not on this sheet", studentID))
	}
	draft.Sheet = reduce(draft.Sheet)
	if err := s.cache.Set(ctx, sheetCacheKey(lessonID), draft, s.ttl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attendance draft")
	}
	return &draft.Sheet, nil
}

// current returns the lesson's draft reconciled with the lesson, its roster and
// its saved marks. It must be called with mu held.
func (s *SheetService) current(ctx context.Context, lessonID int64) (sheetDraft, error) {
	key := sheetCacheKey(lessonID)
	lesson, err := s.lessons.FindDetailByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = s.cache.Delete(ctx, key)
			return sheetDraft{}, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return sheetDraft{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	roster, err := s.roster.ListByClass(ctx, lesson.ClassID)
	if err != nil {
		return sheetDraft{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	saved, err := s.attendance.ForLesson(ctx, lessonID)
	if err != nil {
		return sheetDraft{}, err
	}

	title := fmt.Sprintf("%s, %s", lesson.SubjectName, lesson.ClassName)
	date := time.UnixMilli(lesson.StartTime).In(s.loc).Format(sheetDateLayout)

	var cached sheetDraft
	if hit, _ := s.cache.Get(ctx, key, &cached); hit && cached.Sheet.LessonID == lessonID {
		sheet := cached.Sheet.Reconcile(roster, saved, cached.Baseline)
		sheet.LessonTitle = title
		sheet.LessonDate = date
		return sheetDraft{Sheet: sheet, Baseline: saved}, nil
	}
	return sheetDraft{Sheet: viewstate.NewAttendanceSheet(lessonID, title, date, roster, saved), Baseline: saved}, nil
}

func sheetCacheKey(lessonID int64) string {
	return fmt.Sprintf("sheet:%d", lessonID)
}
