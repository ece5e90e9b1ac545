package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/rollcall-api/internal/models"
)

// ClassRepository manages persistence for classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// ListWithCounts returns every class with its current student count, oldest first.
func (r *ClassRepository) ListWithCounts(ctx context.Context) ([]models.ClassCountRow, error) {
	const query = `SELECT c.class_id, c.name, c.description, COUNT(s.student_id) AS student_count
		FROM classes c
		LEFT JOIN students s ON s.class_id = c.class_id
		GROUP BY c.class_id, c.name, c.description
		ORDER BY c.class_id ASC`
	var rows []models.ClassCountRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return rows, nil
}

// ListPreviews returns up to perClass students per class ordered by last name.
func (r *ClassRepository) ListPreviews(ctx context.Context, perClass int) ([]models.ClassPreviewRow, error) {
	query := r.db.Rebind(`SELECT class_id, student_id, first_name, last_name, birth_date, phone_number, photo_url
		FROM (
			SELECT s.class_id, s.student_id, s.first_name, s.last_name, s.birth_date, s.phone_number, s.photo_url,
				ROW_NUMBER() OVER (PARTITION BY s.class_id ORDER BY s.last_name ASC, s.first_name ASC, s.student_id ASC) AS rn
			FROM students s
		) ranked
		WHERE rn <= ?
		ORDER BY class_id ASC, rn ASC`)
	var rows []models.ClassPreviewRow
	if err := r.db.SelectContext(ctx, &rows, query, perClass); err != nil {
		return nil, fmt.Errorf("list class previews: %w", err)
	}
	return rows, nil
}

// FindByID returns a class record by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id int64) (*models.SchoolClass, error) {
	query := r.db.Rebind(`SELECT class_id, name, description FROM classes WHERE class_id = ?`)
	var class models.SchoolClass
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// Create persists a class record and fills its generated ID.
func (r *ClassRepository) Create(ctx context.Context, class *models.SchoolClass) error {
	query := r.db.Rebind(`INSERT INTO classes (name, description) VALUES (?, ?) RETURNING class_id`)
	if err := r.db.GetContext(ctx, &class.ID, query, class.Name, class.Description); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update renames or re-describes a class.
func (r *ClassRepository) Update(ctx context.Context, class *models.SchoolClass) error {
	query := r.db.Rebind(`UPDATE classes SET name = ?, description = ? WHERE class_id = ?`)
	res, err := r.db.ExecContext(ctx, query, class.Name, class.Description, class.ID)
	if err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return expectAffected(res, "update class")
}

// Delete removes a class. Students, lessons and attendance cascade in the store.
func (r *ClassRepository) Delete(ctx context.Context, id int64) error {
	query := r.db.Rebind(`DELETE FROM classes WHERE class_id = ?`)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return expectAffected(res, "delete class")
}

func expectAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
