package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/rollcall-api/internal/models"
)

const lessonColumns = `l.lesson_id, l.class_id, l.subject_id, l.start_time, l.end_time, l.room_number, l.topic, l.is_finished, l.color`

// LessonRepository handles lesson persistence and schedule read models.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository constructs a repository instance.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// ListWithStatsInRange returns lessons starting in [start, end) with subject and class names
// and attendance counts. Present counts PRESENT and LATE; total is the class's current roster.
func (r *LessonRepository) ListWithStatsInRange(ctx context.Context, start, end int64) ([]models.LessonStatsRow, error) {
	query := r.db.Rebind(`SELECT l.lesson_id, l.class_id, s.name AS subject_name, c.name AS class_name,
			l.start_time, l.end_time, l.room_number, l.is_finished, l.color,
			(SELECT COUNT(*) FROM students st WHERE st.class_id = l.class_id) AS total_students,
			(SELECT COUNT(*) FROM attendance a WHERE a.lesson_id = l.lesson_id AND a.status IN ('PRESENT', 'LATE')) AS present_count
		FROM lessons l
		JOIN subjects s ON s.subject_id = l.subject_id
		JOIN classes c ON c.class_id = l.class_id
		WHERE l.start_time >= ? AND l.start_time < ?
		ORDER BY l.start_time ASC, l.lesson_id ASC`)
	var rows []models.LessonStatsRow
	if err := r.db.SelectContext(ctx, &rows, query, start, end); err != nil {
		return nil, fmt.Errorf("list lessons with stats: %w", err)
	}
	return rows, nil
}

// FindByID returns a lesson row.
func (r *LessonRepository) FindByID(ctx context.Context, id int64) (*models.Lesson, error) {
	query := r.db.Rebind(`SELECT ` + lessonColumns + ` FROM lessons l WHERE l.lesson_id = ?`)
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// FindDetailByID returns a lesson joined with its subject and class names.
func (r *LessonRepository) FindDetailByID(ctx context.Context, id int64) (*models.LessonDetailRow, error) {
	query := r.db.Rebind(`SELECT ` + lessonColumns + `, s.name AS subject_name, c.name AS class_name
		FROM lessons l
		JOIN subjects s ON s.subject_id = l.subject_id
		JOIN classes c ON c.class_id = l.class_id
		WHERE l.lesson_id = ?`)
	var detail models.LessonDetailRow
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// CountOverlaps counts lessons of a class intersecting [start, end), ignoring excludeID.
func (r *LessonRepository) CountOverlaps(ctx context.Context, classID, start, end, excludeID int64) (int, error) {
	return countOverlaps(ctx, r.db, classID, start, end, excludeID)
}

// CountOverlapsWithTx is CountOverlaps inside an open transaction.
func (r *LessonRepository) CountOverlapsWithTx(ctx context.Context, tx *sqlx.Tx, classID, start, end, excludeID int64) (int, error) {
	return countOverlaps(ctx, tx, classID, start, end, excludeID)
}

func countOverlaps(ctx context.Context, q sqlx.ExtContext, classID, start, end, excludeID int64) (int, error) {
	query := q.Rebind(`SELECT COUNT(*) FROM lessons
		WHERE class_id = ? AND lesson_id <> ? AND start_time < ? AND end_time > ?`)
	var count int
	if err := sqlx.GetContext(ctx, q, &count, query, classID, excludeID, end, start); err != nil {
		return 0, fmt.Errorf("count overlapping lessons: %w", err)
	}
	return count, nil
}

// CreateWithTx inserts a lesson and fills its generated ID.
func (r *LessonRepository) CreateWithTx(ctx context.Context, tx *sqlx.Tx, lesson *models.Lesson) error {
	query := tx.Rebind(`INSERT INTO lessons (class_id, subject_id, start_time, end_time, room_number, topic, is_finished, color)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING lesson_id`)
	if err := tx.GetContext(ctx, &lesson.ID, query,
		lesson.ClassID, lesson.SubjectID, lesson.StartTime, lesson.EndTime,
		lesson.RoomNumber, lesson.Topic, lesson.IsFinished, lesson.Color,
	); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// UpdateWithTx rewrites the schedule fields of a lesson. Topic and finished state are kept.
func (r *LessonRepository) UpdateWithTx(ctx context.Context, tx *sqlx.Tx, lesson *models.Lesson) error {
	query := tx.Rebind(`UPDATE lessons SET class_id = ?, subject_id = ?, start_time = ?, end_time = ?, room_number = ?, color = ?
		WHERE lesson_id = ?`)
	res, err := tx.ExecContext(ctx, query,
		lesson.ClassID, lesson.SubjectID, lesson.StartTime, lesson.EndTime, lesson.RoomNumber, lesson.Color, lesson.ID,
	)
	if err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	return expectAffected(res, "update lesson")
}

// SetFinished marks a lesson finished and records its topic.
func (r *LessonRepository) SetFinished(ctx context.Context, id int64, topic *string) error {
	query := r.db.Rebind(`UPDATE lessons SET is_finished = ?, topic = COALESCE(?, topic) WHERE lesson_id = ?`)
	res, err := r.db.ExecContext(ctx, query, true, topic, id)
	if err != nil {
		return fmt.Errorf("finish lesson: %w", err)
	}
	return expectAffected(res, "finish lesson")
}

// Delete removes a lesson. Its attendance cascades in the store.
func (r *LessonRepository) Delete(ctx context.Context, id int64) error {
	query := r.db.Rebind(`DELETE FROM lessons WHERE lesson_id = ?`)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}
	return expectAffected(res, "delete lesson")
}
