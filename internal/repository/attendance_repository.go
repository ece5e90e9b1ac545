package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/rollcall-api/internal/models"
)

// AttendanceRepository persists per-lesson attendance marks.
type AttendanceRepository struct {
	db *sqlx.DB
	tx *TxRunner
}

// NewAttendanceRepository constructs a repository instance.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db, tx: NewTxRunner(db)}
}

// ListByLesson returns the saved records of a lesson.
func (r *AttendanceRepository) ListByLesson(ctx context.Context, lessonID int64) ([]models.AttendanceRecord, error) {
	query := r.db.Rebind(`SELECT id, lesson_id, student_id, status, comment FROM attendance WHERE lesson_id = ? ORDER BY student_id ASC`)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, lessonID); err != nil {
		return nil, fmt.Errorf("list lesson attendance: %w", err)
	}
	return records, nil
}

// SaveMarks writes the records and removes the marks of cleared students in one
// transaction. Records overwrite by (lesson_id, student_id).
func (r *AttendanceRepository) SaveMarks(ctx context.Context, lessonID int64, records []models.AttendanceRecord, cleared []int64) error {
	if len(records) == 0 && len(cleared) == 0 {
		return nil
	}
	return r.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.UpsertBatchWithTx(ctx, tx, records); err != nil {
			return err
		}
		return r.ClearStudentsWithTx(ctx, tx, lessonID, cleared)
	})
}

// UpsertBatchWithTx writes records inside tx, overwriting by (lesson_id, student_id).
func (r *AttendanceRepository) UpsertBatchWithTx(ctx context.Context, tx *sqlx.Tx, records []models.AttendanceRecord) error {
	query := tx.Rebind(`INSERT INTO attendance (lesson_id, student_id, status, comment) VALUES (?, ?, ?, ?)
		ON CONFLICT (lesson_id, student_id) DO UPDATE SET status = excluded.status, comment = excluded.comment`)
	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, query, rec.LessonID, rec.StudentID, rec.Status, rec.Comment); err != nil {
			return fmt.Errorf("upsert attendance: %w", err)
		}
	}
	return nil
}

// ClearStudentsWithTx deletes the lesson's marks for the given students inside tx.
func (r *AttendanceRepository) ClearStudentsWithTx(ctx context.Context, tx *sqlx.Tx, lessonID int64, studentIDs []int64) error {
	if len(studentIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM attendance WHERE lesson_id = ? AND student_id IN (?)`, lessonID, studentIDs)
	if err != nil {
		return fmt.Errorf("build attendance clear: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("clear attendance: %w", err)
	}
	return nil
}

// CountByStatus tallies a student's records per status.
func (r *AttendanceRepository) CountByStatus(ctx context.Context, studentID int64) ([]models.AttendanceStatusCount, error) {
	query := r.db.Rebind(`SELECT status, COUNT(*) AS total FROM attendance WHERE student_id = ? GROUP BY status ORDER BY status ASC`)
	var counts []models.AttendanceStatusCount
	if err := r.db.SelectContext(ctx, &counts, query, studentID); err != nil {
		return nil, fmt.Errorf("count attendance by status: %w", err)
	}
	return counts, nil
}

// CountLessons returns how many distinct lessons carry a mark for the student.
func (r *AttendanceRepository) CountLessons(ctx context.Context, studentID int64) (int, error) {
	query := r.db.Rebind(`SELECT COUNT(DISTINCT lesson_id) FROM attendance WHERE student_id = ?`)
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID); err != nil {
		return 0, fmt.Errorf("count attended lessons: %w", err)
	}
	return count, nil
}

// ListRegister returns one row per lesson and enrolled student for a class in [start, end),
// with the saved status when one exists.
func (r *AttendanceRepository) ListRegister(ctx context.Context, classID, start, end int64) ([]models.AttendanceRegisterRow, error) {
	query := r.db.Rebind(`SELECT l.lesson_id, l.start_time, sub.name AS subject_name,
			st.student_id, st.first_name, st.last_name, a.status, a.comment
		FROM lessons l
		JOIN subjects sub ON sub.subject_id = l.subject_id
		JOIN students st ON st.class_id = l.class_id
		LEFT JOIN attendance a ON a.lesson_id = l.lesson_id AND a.student_id = st.student_id
		WHERE l.class_id = ? AND l.start_time >= ? AND l.start_time < ?
		ORDER BY l.start_time ASC, l.lesson_id ASC, st.last_name ASC, st.first_name ASC`)
	var rows []models.AttendanceRegisterRow
	if err := r.db.SelectContext(ctx, &rows, query, classID, start, end); err != nil {
		return nil, fmt.Errorf("list attendance register: %w", err)
	}
	return rows, nil
}
