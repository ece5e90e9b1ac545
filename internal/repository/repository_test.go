package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rollcall-api/pkg/config"
	"github.com/noah-isme/rollcall-api/pkg/database"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func newSQLiteDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.NewSQLite(config.DatabaseConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, nil))
	return db
}

func mustInsertID(t *testing.T, db *sqlx.DB, query string, args ...interface{}) int64 {
	t.Helper()
	var id int64
	require.NoError(t, db.Get(&id, query, args...))
	return id
}

func seedClass(t *testing.T, db *sqlx.DB, name string) int64 {
	return mustInsertID(t, db, `INSERT INTO classes (name) VALUES (?) RETURNING class_id`, name)
}

func seedStudent(t *testing.T, db *sqlx.DB, classID int64, first, last string) int64 {
	return mustInsertID(t, db, `INSERT INTO students (class_id, first_name, last_name) VALUES (?, ?, ?) RETURNING student_id`, classID, first, last)
}

func seedSubject(t *testing.T, db *sqlx.DB, name string) int64 {
	return mustInsertID(t, db, `INSERT INTO subjects (name) VALUES (?) RETURNING subject_id`, name)
}

func seedLesson(t *testing.T, db *sqlx.DB, classID, subjectID, start, end int64) int64 {
	return mustInsertID(t, db, `INSERT INTO lessons (class_id, subject_id, start_time, end_time) VALUES (?, ?, ?, ?) RETURNING lesson_id`, classID, subjectID, start, end)
}
