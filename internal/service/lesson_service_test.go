package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rollcall-api/internal/viewstate"
	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
)

func TestLessonServiceRecurringCreatesOneLessonPerMatchingWeekday(t *testing.T) {
	env := newTestEnv(t)
	classID := env.createClass(t, "7A")

	// 2024-03-04 is a Monday; Mondays and Wednesdays over 28 days.
	form := viewstate.NewLessonForm(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)).
		WithClass(classID).
		WithSubject("Math").
		WithRepeat(true).
		ToggleDay(1).
		ToggleDay(3)

	ids, err := env.lessons.Save(context.Background(), 0, form, nil)
	require.NoError(t, err)
	assert.Len(t, ids, 8)
	assert.Equal(t, 8, env.countRows(t, "lessons"))

	var starts []int64
	require.NoError(t, env.db.Select(&starts, "SELECT start_time FROM lessons ORDER BY start_time"))
	for _, ms := range starts {
		at := time.UnixMilli(ms).In(time.UTC)
		assert.Contains(t, []time.Weekday{time.Monday, time.Wednesday}, at.Weekday())
		assert.Equal(t, 8, at.Hour())
		assert.Equal(t, 30, at.Minute())
	}
	first := time.UnixMilli(starts[0]).In(time.UTC)
	last := time.UnixMilli(starts[len(starts)-1]).In(time.UTC)
	assert.Equal(t, 4, first.Day())
	assert.Equal(t, 27, last.Day())
}

func TestLessonServiceRecurringSkipsDaysWhenRepeatDisabled(t *testing.T) {
	env := newTestEnv(t)
	classID := env.createClass(t, "7A")

	form := viewstate.NewLessonForm(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)).
		WithClass(classID).
		WithSubject("Math").
		ToggleDay(1).
		ToggleDay(3)

	ids, err := env.lessons.Save(context.Background(), 0, form, nil)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestLessonServiceReusesSubjectByExactName(t *testing.T) {
	env := newTestEnv(t)
	classID := env.createClass(t, "7A")

	env.createLesson(t, classID, "Physics", "2024-03-04", "08:00", "08:45")
	env.createLesson(t, classID, "Physics", "2024-03-05", "08:00", "08:45")
	env.createLesson(t, classID, "physics", "2024-03-06", "08:00", "08:45")

	subjects, err := env.subjects.List(context.Background())
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	assert.Equal(t, "Physics", subjects[0].Name)
	assert.Equal(t, "physics", subjects[1].Name)
}

func TestLessonServiceOverlapRejectsWholeBatch(t *testing.T) {
	env := newTestEnv(t)
	classID := env.createClass(t, "7A")
	// Wednesday 2024-03-13 08:30-09:15 collides with the second week of the series.
	env.createLesson(t, classID, "History", "2024-03-13", "09:00", "09:30")
	before := env.countRows(t, "lessons")

	form := viewstate.NewLessonForm(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)).
		WithClass(classID).
		WithSubject("Math").
		WithRepeat(true).
		ToggleDay(1).
		ToggleDay(3)

	_, err := env.lessons.Save(context.Background(), 0, form, nil)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrLessonOverlap))
	assert.Equal(t, before, env.countRows(t, "lessons"))
	assert.Equal(t, 1, env.countRows(t, "subjects"))
}

func TestLessonServiceOverlapIsHalfOpenAndPerClass(t *testing.T) {
	env := newTestEnv(t)
	classA := env.createClass(t, "7A")
	classB := env.createClass(t, "7B")
	env.createLesson(t, classA, "Math", "2024-03-04", "08:00", "09:00")

	// Touching intervals do not overlap.
	env.createLesson(t, classA, "Math", "2024-03-04", "09:00", "09:45")
	// Other classes are independent.
	env.createLesson(t, classB, "Math", "2024-03-04", "08:15", "08:45")

	form := viewstate.LessonForm{ClassID: &classA, SubjectName: "Math", Date: "2024-03-04", StartTime: "08:59", EndTime: "09:10"}
	_, err := env.lessons.Save(context.Background(), 0, form, nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrLessonOverlap))
}

func TestLessonServiceEditExcludesItself(t *testing.T) {
	env := newTestEnv(t)
	classID := env.createClass(t, "7A")
	id := env.createLesson(t, classID, "Math", "2024-03-04", "08:00", "09:00")

	form := viewstate.LessonForm{ClassID: &classID, SubjectName: "Algebra", Date: "2024-03-04", StartTime: "08:15", EndTime: "09:15", RoomNumber: " 12 "}
	ids, err := env.lessons.Save(context.Background(), id, form, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, ids)

	detail, err := env.lessons.Get(context.Background(), id, nil)
	require.NoError(t, err)
	assert.Equal(t, "Algebra", detail.SubjectName)
	assert.Equal(t, "12", detail.RoomNumber)
	assert.Equal(t, 8, detail.StartTime.Hour())
	assert.Equal(t, 15, detail.StartTime.Minute())
	assert.Equal(t, 1, env.countRows(t, "lessons"))

	overlap, err := env.lessons.HasOverlap(context.Background(), classID, detail.StartTime.UnixMilli(), detail.EndTime.UnixMilli(), id)
	require.NoError(t, err)
	assert.False(t, overlap)
	overlap, err = env.lessons.HasOverlap(context.Background(), classID, detail.StartTime.UnixMilli(), detail.EndTime.UnixMilli(), 0)
	require.NoError(t, err)
	assert.True(t, overlap)
}

func TestLessonServiceEditMissingLessonIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	classID := env.createClass(t, "7A")

	form := viewstate.LessonForm{ClassID: &classID, SubjectName: "Math", Date: "2024-03-04", StartTime: "08:00", EndTime: "09:00"}
	_, err := env.lessons.Save(context.Background(), 999, form, nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, 0, env.countRows(t, "lessons"))
	assert.Equal(t, 0, env.countRows(t, "subjects"))
}

func TestLessonServiceValidationRunsBeforeAnyWrite(t *testing.T) {
	env := newTestEnv(t)
	classID := env.createClass(t, "7A")
	base := viewstate.LessonForm{ClassID: &classID, SubjectName: "Math", Date: "2024-03-04", StartTime: "08:00", EndTime: "09:00"}

	cases := []struct {
		name string
		form viewstate.LessonForm
		want *appErrors.Error
	}{
		{"no class", func() viewstate.LessonForm { f := base; f.ClassID = nil; return f }(), appErrors.ErrClassRequired},
		{"blank subject", base.WithSubject("   "), appErrors.ErrSubjectRequired},
		{"bad time", base.WithTimes("8 am", "09:00"), appErrors.ErrInvalidTime},
		{"end before start", base.WithTimes("09:00", "08:00"), appErrors.ErrInvalidTimeRange},
		{"end equals start", base.WithTimes("09:00", "09:00"), appErrors.ErrInvalidTimeRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.lessons.Save(context.Background(), 0, tc.form, nil)
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, tc.want), "got %v", err)
		})
	}
	assert.Equal(t, 0, env.countRows(t, "lessons"))
	assert.Equal(t, 0, env.countRows(t, "subjects"))
}

func TestLessonServiceSaveLessonSkipsOverlapCheck(t *testing.T) {
	env := newTestEnv(t)
	classID := env.createClass(t, "7A")
	env.createLesson(t, classID, "Math", "2024-03-04", "08:00", "09:00")

	start, err := viewstate.ParseClock("08:30")
	require.NoError(t, err)
	end, err := viewstate.ParseClock("09:30")
	require.NoError(t, err)
	ids, err := env.lessons.SaveLesson(context.Background(), SaveLessonParams{
		ClassID:     classID,
		SubjectName: "Math",
		Date:        time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		Start:       start,
		End:         end,
	})
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	assert.Equal(t, 2, env.countRows(t, "lessons"))
}

func TestLessonServiceUsesCallerTimeZone(t *testing.T) {
	env := newTestEnv(t)
	classID := env.createClass(t, "7A")
	tokyo := time.FixedZone("JST", 9*3600)

	form := viewstate.LessonForm{ClassID: &classID, SubjectName: "Math", Date: "2024-03-04", StartTime: "08:00", EndTime: "09:00"}
	ids, err := env.lessons.Save(context.Background(), 0, form, tokyo)
	require.NoError(t, err)

	lesson, err := env.lessonRepo.FindByID(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 3, 23, 0, 0, 0, time.UTC).UnixMilli(), lesson.StartTime)
}

func TestLessonServiceFinishAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	classID := env.createClass(t, "7A")
	studentID := env.createStudent(t, classID, "Ann", "Adams")
	id := env.createLesson(t, classID, "Math", "2024-03-04", "08:00", "09:00")

	require.NoError(t, env.lessons.Finish(ctx, id, FinishLessonRequest{Topic: " Fractions "}))
	detail, err := env.lessons.Get(ctx, id, nil)
	require.NoError(t, err)
	assert.True(t, detail.IsFinished)
	require.NotNil(t, detail.Topic)
	assert.Equal(t, "Fractions", *detail.Topic)

	require.NoError(t, env.attendance.SaveRequest(ctx, id, SaveAttendanceRequest{Records: []AttendanceEntry{{StudentID: studentID, Status: "PRESENT"}}}))
	require.NoError(t, env.lessons.Delete(ctx, id))
	assert.Equal(t, 0, env.countRows(t, "attendance"))

	err = env.lessons.Delete(ctx, id)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	err = env.lessons.Finish(ctx, id, FinishLessonRequest{})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestScheduleServiceWatchDayReemitsAfterAttendance(t *testing.T) {
	env := newTestEnv(t)
	classID := env.createClass(t, "7A")
	ann := env.createStudent(t, classID, "Ann", "Adams")
	env.createStudent(t, classID, "Bob", "Baker")
	id := env.createLesson(t, classID, "Math", "2024-03-04", "10:00", "10:45")
	env.createLesson(t, classID, "Art", "2024-03-04", "08:00", "08:45")
	env.createLesson(t, classID, "Art", "2024-03-05", "08:00", "08:45")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	snaps := env.schedule.WatchDay(ctx, time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC), nil)

	first := nextSnapshot(t, snaps)
	require.NoError(t, first.Err)
	require.Len(t, first.Data, 2)
	assert.Equal(t, "Art", first.Data[0].SubjectName)
	assert.Equal(t, "Math", first.Data[1].SubjectName)
	assert.Equal(t, 0, first.Data[1].PresentCount)
	assert.Equal(t, 2, first.Data[1].TotalStudents)

	require.NoError(t, env.attendance.SaveRequest(context.Background(), id, SaveAttendanceRequest{Records: []AttendanceEntry{{StudentID: ann, Status: "LATE"}}}))
	second := nextSnapshot(t, snaps)
	require.NoError(t, second.Err)
	assert.Equal(t, 1, second.Data[1].PresentCount)
}
