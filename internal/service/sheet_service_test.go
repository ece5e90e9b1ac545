package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rollcall-api/internal/models"
	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
)

func TestSheetServiceDraftLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	classID := env.createClass(t, "8B")
	ann := env.createStudent(t, classID, "Ann", "Adams")
	bob := env.createStudent(t, classID, "Bob", "Baker")
	lessonID := env.createLesson(t, classID, "Chemistry", "2024-03-04", "10:15", "11:00")

	sheet, err := env.sheets.Load(ctx, lessonID)
	require.NoError(t, err)
	assert.Equal(t, "Chemistry, 8B", sheet.LessonTitle)
	assert.Equal(t, "4 March, 10:15", sheet.LessonDate)
	require.Len(t, sheet.Rows, 2)
	assert.Nil(t, sheet.Rows[0].Status)

	sheet, err = env.sheets.MarkAllPresent(ctx, lessonID)
	require.NoError(t, err)
	assert.Equal(t, 2, sheet.PresentCount())

	sheet, err = env.sheets.Toggle(ctx, lessonID, ToggleRequest{StudentID: bob, Status: models.AttendanceAbsent})
	require.NoError(t, err)
	sheet, err = env.sheets.SetComment(ctx, lessonID, CommentRequest{StudentID: bob, Text: " flu "})
	require.NoError(t, err)

	reloaded, err := env.sheets.Load(ctx, lessonID)
	require.NoError(t, err)
	assert.Equal(t, sheet, reloaded)
	assert.Equal(t, 0, env.countRows(t, "attendance"))

	saved, err := env.sheets.Submit(ctx, lessonID)
	require.NoError(t, err)
	assert.Equal(t, 2, saved)

	records, err := env.attendance.ForLesson(ctx, lessonID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	byStudent := map[int64]models.AttendanceRecord{}
	for _, rec := range records {
		byStudent[rec.StudentID] = rec
	}
	assert.Equal(t, models.AttendancePresent, byStudent[ann].Status)
	assert.Equal(t, models.AttendanceAbsent, byStudent[bob].Status)
	require.NotNil(t, byStudent[bob].Comment)
	assert.Equal(t, "flu", *byStudent[bob].Comment)

	// After submit the draft is rebuilt from saved marks.
	fresh, err := env.sheets.Load(ctx, lessonID)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.PresentCount())
}

func TestSheetServiceToggleTwiceClears(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	classID := env.createClass(t, "8B")
	ann := env.createStudent(t, classID, "Ann", "Adams")
	lessonID := env.createLesson(t, classID, "Chemistry", "2024-03-04", "10:15", "11:00")

	_, err := env.sheets.Toggle(ctx, lessonID, ToggleRequest{StudentID: ann, Status: models.AttendanceLate})
	require.NoError(t, err)
	sheet, err := env.sheets.Toggle(ctx, lessonID, ToggleRequest{StudentID: ann, Status: models.AttendanceLate})
	require.NoError(t, err)
	assert.Nil(t, sheet.Rows[0].Status)
	assert.Empty(t, sheet.Records())

	saved, err := env.sheets.Submit(ctx, lessonID)
	require.NoError(t, err)
	assert.Equal(t, 0, saved)
	assert.Equal(t, 0, env.countRows(t, "attendance"))
}

func TestSheetServiceRejectsUnknownInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	classID := env.createClass(t, "8B")
	ann := env.createStudent(t, classID, "Ann", "Adams")
	lessonID := env.createLesson(t, classID, "Chemistry", "2024-03-04", "10:15", "11:00")

	_, err := env.sheets.Load(ctx, 999)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = env.sheets.Toggle(ctx, lessonID, ToggleRequest{StudentID: ann, Status: "SICK"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = env.sheets.Toggle(ctx, lessonID, ToggleRequest{StudentID: 999, Status: models.AttendancePresent})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	require.NoError(t, env.sheets.Discard(ctx, lessonID))
}

func TestSheetServiceSubmitRemovesClearedSavedMarks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	classID := env.createClass(t, "8B")
	ann := env.createStudent(t, classID, "Ann", "Adams")
	bob := env.createStudent(t, classID, "Bob", "Baker")
	lessonID := env.createLesson(t, classID, "Chemistry", "2024-03-04", "10:15", "11:00")
	require.NoError(t, env.attendance.Save(ctx, lessonID, []models.AttendanceRecord{
		{StudentID: ann, Status: models.AttendanceAbsent},
		{StudentID: bob, Status: models.AttendancePresent},
	}))

	sheet, err := env.sheets.Load(ctx, lessonID)
	require.NoError(t, err)
	require.NotNil(t, sheet.Rows[0].Status)

	sheet, err = env.sheets.Toggle(ctx, lessonID, ToggleRequest{StudentID: ann, Status: models.AttendanceAbsent})
	require.NoError(t, err)
	assert.Nil(t, sheet.Rows[0].Status)

	saved, err := env.sheets.Submit(ctx, lessonID)
	require.NoError(t, err)
	assert.Equal(t, 1, saved)

	records, err := env.attendance.ForLesson(ctx, lessonID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, bob, records[0].StudentID)

	reloaded, err := env.sheets.Load(ctx, lessonID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.Rows[0].Status)

	_, err = env.sheets.Toggle(ctx, lessonID, ToggleRequest{StudentID: bob, Status: models.AttendancePresent})
	require.NoError(t, err)
	_, err = env.sheets.Submit(ctx, lessonID)
	require.NoError(t, err)
	records, err = env.attendance.ForLesson(ctx, lessonID)
	require.NoError(t, err)
	assert.Empty(t, records)

	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	lessons, err := env.schedule.LessonsForDate(ctx, day, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, lessons[0].PresentCount)
}

func TestSheetServiceDraftFollowsRosterChanges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	classID := env.createClass(t, "8B")
	ann := env.createStudent(t, classID, "Ann", "Adams")
	bob := env.createStudent(t, classID, "Bob", "Baker")
	lessonID := env.createLesson(t, classID, "Chemistry", "2024-03-04", "10:15", "11:00")

	_, err := env.sheets.MarkAllPresent(ctx, lessonID)
	require.NoError(t, err)

	require.NoError(t, env.students.Delete(ctx, bob))
	carl := env.createStudent(t, classID, "Carl", "Cole")

	sheet, err := env.sheets.Load(ctx, lessonID)
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 2)
	assert.False(t, sheet.Has(bob))
	assert.Equal(t, ann, sheet.Rows[0].StudentID)
	require.NotNil(t, sheet.Rows[0].Status)
	assert.Equal(t, carl, sheet.Rows[1].StudentID)
	assert.Nil(t, sheet.Rows[1].Status)

	saved, err := env.sheets.Submit(ctx, lessonID)
	require.NoError(t, err)
	assert.Equal(t, 1, saved)
}

func TestSheetServiceDraftTakesMarksSavedElsewhere(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	classID := env.createClass(t, "8B")
	ann := env.createStudent(t, classID, "Ann", "Adams")
	bob := env.createStudent(t, classID, "Bob", "Baker")
	lessonID := env.createLesson(t, classID, "Chemistry", "2024-03-04", "10:15", "11:00")

	_, err := env.sheets.MarkAllPresent(ctx, lessonID)
	require.NoError(t, err)
	require.NoError(t, env.attendance.Save(ctx, lessonID, []models.AttendanceRecord{{StudentID: bob, Status: models.AttendanceAbsent}}))

	sheet, err := env.sheets.Load(ctx, lessonID)
	require.NoError(t, err)
	require.NotNil(t, sheet.Rows[1].Status)
	assert.Equal(t, models.AttendanceAbsent, *sheet.Rows[1].Status)

	_, err = env.sheets.Submit(ctx, lessonID)
	require.NoError(t, err)
	records, err := env.attendance.ForLesson(ctx, lessonID)
	require.NoError(t, err)
	byStudent := map[int64]models.AttendanceStatus{}
	for _, rec := range records {
		byStudent[rec.StudentID] = rec.Status
	}
	assert.Equal(t, models.AttendancePresent, byStudent[ann])
	assert.Equal(t, models.AttendanceAbsent, byStudent[bob])
}

func TestSheetServiceDropsDraftOfDeletedLesson(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	classID := env.createClass(t, "8B")
	env.createStudent(t, classID, "Ann", "Adams")
	lessonID := env.createLesson(t, classID, "Chemistry", "2024-03-04", "10:15", "11:00")

	_, err := env.sheets.MarkAllPresent(ctx, lessonID)
	require.NoError(t, err)
	require.NoError(t, env.lessons.Delete(ctx, lessonID))

	_, err = env.sheets.Load(ctx, lessonID)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	_, err = env.sheets.Submit(ctx, lessonID)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	var draft sheetDraft
	hit, err := env.sheets.cache.Get(ctx, sheetCacheKey(lessonID), &draft)
	require.NoError(t, err)
	assert.False(t, hit)
}
