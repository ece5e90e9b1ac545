package service

import (
	"context"
	"time"

	"github.com/noah-isme/rollcall-api/internal/live"
	"github.com/noah-isme/rollcall-api/internal/models"
	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
)

type lessonStatsRepository interface {
	ListWithStatsInRange(ctx context.Context, start, end int64) ([]models.LessonStatsRow, error)
}

// ScheduleService serves the per-day lesson schedule.
type ScheduleService struct {
	repo   lessonStatsRepository
	broker *live.Broker
	loc    *time.Location
}

// NewScheduleService constructs ScheduleService.
func NewScheduleService(repo lessonStatsRepository, broker *live.Broker, loc *time.Location) *ScheduleService {
	if loc == nil {
		loc = time.Local
	}
	return &ScheduleService{repo: repo, broker: broker, loc: loc}
}

// LessonsForDate returns the lessons starting on the calendar day of date in loc,
// ordered by start time, with present and total counts.
func (s *ScheduleService) LessonsForDate(ctx context.Context, date time.Time, loc *time.Location) ([]models.LessonSummary, error) {
	if loc == nil {
		loc = s.loc
	}
	start, end := DayBounds(date, loc)
	rows, err := s.repo.ListWithStatsInRange(ctx, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	lessons := make([]models.LessonSummary, 0, len(rows))
	for _, row := range rows {
		lessons = append(lessons, lessonSummary(row, loc))
	}
	return lessons, nil
}

// WatchDay streams the schedule of one day. Any write to the tables behind it re-emits.
func (s *ScheduleService) WatchDay(ctx context.Context, date time.Time, loc *time.Location) <-chan live.Snapshot[[]models.LessonSummary] {
	tables := []string{live.TableLessons, live.TableAttendance, live.TableStudents, live.TableSubjects, live.TableClasses}
	return live.Watch(ctx, s.broker, tables, func(ctx context.Context) ([]models.LessonSummary, error) {
		return s.LessonsForDate(ctx, date, loc)
	})
}
