package service

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/rollcall-api/internal/live"
	"github.com/noah-isme/rollcall-api/internal/models"
	"github.com/noah-isme/rollcall-api/internal/repository"
	"github.com/noah-isme/rollcall-api/internal/viewstate"
	"github.com/noah-isme/rollcall-api/pkg/config"
	"github.com/noah-isme/rollcall-api/pkg/database"
)

// testEnv wires every service over one in-memory SQLite store.
type testEnv struct {
	db     *sqlx.DB
	broker *live.Broker
	loc    *time.Location

	classRepo      *repository.ClassRepository
	studentRepo    *repository.StudentRepository
	subjectRepo    *repository.SubjectRepository
	lessonRepo     *repository.LessonRepository
	attendanceRepo *repository.AttendanceRepository

	classes    *ClassService
	students   *StudentService
	subjects   *SubjectService
	lessons    *LessonService
	schedule   *ScheduleService
	attendance *AttendanceService
	sheets     *SheetService
	cache      *CacheService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.NewSQLite(config.DatabaseConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, nil))

	env := &testEnv{
		db:             db,
		broker:         live.NewBroker(),
		loc:            time.UTC,
		classRepo:      repository.NewClassRepository(db),
		studentRepo:    repository.NewStudentRepository(db),
		subjectRepo:    repository.NewSubjectRepository(db),
		lessonRepo:     repository.NewLessonRepository(db),
		attendanceRepo: repository.NewAttendanceRepository(db),
	}
	logger := zap.NewNop()
	env.cache = NewCacheService(repository.NewCacheRepository(nil, logger), nil, time.Minute, logger)
	env.classes = NewClassService(env.classRepo, env.studentRepo, env.broker, env.loc, nil, logger)
	env.students = NewStudentService(env.studentRepo, env.classRepo, env.broker, env.loc, logger)
	env.subjects = NewSubjectService(env.subjectRepo, env.broker)
	env.lessons = NewLessonService(env.lessonRepo, env.subjectRepo, env.classRepo, repository.NewTxRunner(db), env.broker, nil, DefaultRecurrenceDays, env.loc, logger)
	env.schedule = NewScheduleService(env.lessonRepo, env.broker, env.loc)
	env.attendance = NewAttendanceService(env.attendanceRepo, env.lessonRepo, env.studentRepo, env.cache, time.Minute, env.broker, nil, nil, logger)
	env.sheets = NewSheetService(env.lessonRepo, env.studentRepo, env.attendance, env.cache, time.Hour, env.loc, logger)
	return env
}

func (e *testEnv) createClass(t *testing.T, name string) int64 {
	t.Helper()
	class, err := e.classes.Create(context.Background(), ClassRequest{Name: name})
	require.NoError(t, err)
	return class.ID
}

func (e *testEnv) createStudent(t *testing.T, classID int64, first, last string) int64 {
	t.Helper()
	profile, err := e.students.Create(context.Background(), viewstate.StudentForm{ClassID: &classID, FirstName: first, LastName: last})
	require.NoError(t, err)
	return profile.ID
}

func (e *testEnv) createLesson(t *testing.T, classID int64, subject, date, start, end string) int64 {
	t.Helper()
	form := viewstate.LessonForm{ClassID: &classID, SubjectName: subject, Date: date, StartTime: start, EndTime: end}
	ids, err := e.lessons.Save(context.Background(), 0, form, nil)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	return ids[0]
}

func (e *testEnv) countRows(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

func statusPtr(s models.AttendanceStatus) *models.AttendanceStatus {
	return &s
}

func strPtr(s string) *string {
	return &s
}

// nextSnapshot waits for one snapshot or fails the test.
func nextSnapshot[T any](t *testing.T, ch <-chan live.Snapshot[T]) live.Snapshot[T] {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "snapshot channel closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return live.Snapshot[T]{}
	}
}
