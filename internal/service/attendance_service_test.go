package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rollcall-api/internal/models"
	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
)

func TestAttendanceServiceSaveUpdatesPresentCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	classID := env.createClass(t, "9C")
	students := make([]int64, 0, 25)
	for i := 0; i < 25; i++ {
		students = append(students, env.createStudent(t, classID, fmt.Sprintf("S%02d", i), fmt.Sprintf("L%02d", i)))
	}
	lessonID := env.createLesson(t, classID, "Biology", "2024-03-04", "08:00", "08:45")

	records := make([]models.AttendanceRecord, 0, 25)
	for i, id := range students {
		status := models.AttendanceAbsent
		if i < 20 {
			status = models.AttendancePresent
		}
		records = append(records, models.AttendanceRecord{StudentID: id, Status: status})
	}
	require.NoError(t, env.attendance.Save(ctx, lessonID, records))

	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	lessons, err := env.schedule.LessonsForDate(ctx, day, nil)
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, 20, lessons[0].PresentCount)
	assert.Equal(t, 25, lessons[0].TotalStudents)

	require.NoError(t, env.attendance.Save(ctx, lessonID, []models.AttendanceRecord{{StudentID: students[20], Status: models.AttendancePresent}}))
	lessons, err = env.schedule.LessonsForDate(ctx, day, nil)
	require.NoError(t, err)
	assert.Equal(t, 21, lessons[0].PresentCount)
	assert.Equal(t, 25, env.countRows(t, "attendance"))
}

func TestAttendanceServiceSaveOverwritesAndNormalizesComments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	classID := env.createClass(t, "9C")
	ann := env.createStudent(t, classID, "Ann", "Adams")
	lessonID := env.createLesson(t, classID, "Biology", "2024-03-04", "08:00", "08:45")

	require.NoError(t, env.attendance.Save(ctx, lessonID, []models.AttendanceRecord{{StudentID: ann, Status: models.AttendanceAbsent, Comment: strPtr("  ")}}))
	require.NoError(t, env.attendance.Save(ctx, lessonID, []models.AttendanceRecord{{StudentID: ann, Status: models.AttendanceLate, Comment: strPtr(" bus ")}}))

	records, err := env.attendance.ForLesson(ctx, lessonID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.AttendanceLate, records[0].Status)
	require.NotNil(t, records[0].Comment)
	assert.Equal(t, "bus", *records[0].Comment)
}

func TestAttendanceServiceRejectsStudentsOutsideTheClass(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	classA := env.createClass(t, "9A")
	classB := env.createClass(t, "9B")
	ann := env.createStudent(t, classA, "Ann", "Adams")
	bob := env.createStudent(t, classB, "Bob", "Baker")
	lessonID := env.createLesson(t, classA, "Biology", "2024-03-04", "08:00", "08:45")

	err := env.attendance.Save(ctx, lessonID, []models.AttendanceRecord{
		{StudentID: ann, Status: models.AttendancePresent},
		{StudentID: bob, Status: models.AttendancePresent},
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, 0, env.countRows(t, "attendance"))
}

func TestAttendanceServiceValidatesRequests(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	classID := env.createClass(t, "9A")
	ann := env.createStudent(t, classID, "Ann", "Adams")
	lessonID := env.createLesson(t, classID, "Biology", "2024-03-04", "08:00", "08:45")

	err := env.attendance.SaveRequest(ctx, lessonID, SaveAttendanceRequest{Records: []AttendanceEntry{{StudentID: ann, Status: "SICK"}}})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	err = env.attendance.SaveRequest(ctx, 999, SaveAttendanceRequest{Records: []AttendanceEntry{{StudentID: ann, Status: "PRESENT"}}})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = env.attendance.ForLesson(ctx, 999)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	records, err := env.attendance.ForLesson(ctx, lessonID)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestAttendanceServiceStudentSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	classID := env.createClass(t, "9A")
	ann := env.createStudent(t, classID, "Ann", "Adams")
	statuses := []models.AttendanceStatus{models.AttendancePresent, models.AttendanceLate, models.AttendanceAbsent}
	for i, status := range statuses {
		lessonID := env.createLesson(t, classID, "Biology", fmt.Sprintf("2024-03-0%d", i+4), "08:00", "08:45")
		require.NoError(t, env.attendance.Save(ctx, lessonID, []models.AttendanceRecord{{StudentID: ann, Status: status}}))
	}

	summary, err := env.attendance.StudentSummary(ctx, ann)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Present)
	assert.Equal(t, 1, summary.Late)
	assert.Equal(t, 1, summary.Absent)
	assert.Equal(t, 3, summary.LessonsCounted)
	assert.InDelta(t, 66.67, summary.AttendanceRate, 0.001)

	var cached models.StudentAttendanceSummary
	hit, err := env.cache.Get(ctx, summaryCacheKey(ann), &cached)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestAttendanceServiceInvalidatesSummariesOnChange(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.attendance.InvalidateOnChange(ctx)

	require.NoError(t, env.cache.Set(ctx, summaryCacheKey(42), models.StudentAttendanceSummary{StudentID: 42}, time.Minute))
	env.broker.Publish("lessons")

	require.Eventually(t, func() bool {
		var cached models.StudentAttendanceSummary
		hit, _ := env.cache.Get(context.Background(), summaryCacheKey(42), &cached)
		return !hit
	}, 2*time.Second, 10*time.Millisecond)
}
