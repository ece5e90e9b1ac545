package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/rollcall-api/internal/models"
)

const studentColumns = `s.student_id, s.class_id, s.first_name, s.last_name, s.middle_name, s.birth_date,
	s.phone_number, s.parent_phone, s.photo_url, s.health_info, s.teacher_notes`

// StudentRepository handles student persistence.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a repository instance.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListByClass returns the students of one class ordered by last name.
func (r *StudentRepository) ListByClass(ctx context.Context, classID int64) ([]models.Student, error) {
	query := r.db.Rebind(`SELECT ` + studentColumns + ` FROM students s WHERE s.class_id = ? ORDER BY s.last_name ASC, s.first_name ASC, s.student_id ASC`)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, classID); err != nil {
		return nil, fmt.Errorf("list class students: %w", err)
	}
	return students, nil
}

// ListDirectory returns every student with the class name, ordered by last name.
func (r *StudentRepository) ListDirectory(ctx context.Context) ([]models.StudentListItem, error) {
	const query = `SELECT s.student_id, s.class_id, s.first_name, s.last_name, s.photo_url, c.name AS class_name
		FROM students s
		JOIN classes c ON c.class_id = s.class_id
		ORDER BY s.last_name ASC, s.first_name ASC, s.student_id ASC`
	var items []models.StudentListItem
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return items, nil
}

// FindByID returns a student with its class name.
func (r *StudentRepository) FindByID(ctx context.Context, id int64) (*models.StudentWithClass, error) {
	query := r.db.Rebind(`SELECT ` + studentColumns + `, c.name AS class_name
		FROM students s JOIN classes c ON c.class_id = s.class_id WHERE s.student_id = ?`)
	var student models.StudentWithClass
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create inserts a student and fills its generated ID.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	query := r.db.Rebind(`INSERT INTO students (class_id, first_name, last_name, middle_name, birth_date, phone_number, parent_phone, photo_url, health_info, teacher_notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING student_id`)
	if err := r.db.GetContext(ctx, &student.ID, query,
		student.ClassID, student.FirstName, student.LastName, student.MiddleName, student.BirthDate,
		student.PhoneNumber, student.ParentPhone, student.PhotoURL, student.HealthInfo, student.TeacherNotes,
	); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update overwrites the editable profile of a student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	query := r.db.Rebind(`UPDATE students SET class_id = ?, first_name = ?, last_name = ?, middle_name = ?, birth_date = ?,
		phone_number = ?, health_info = ?, teacher_notes = ? WHERE student_id = ?`)
	res, err := r.db.ExecContext(ctx, query,
		student.ClassID, student.FirstName, student.LastName, student.MiddleName, student.BirthDate,
		student.PhoneNumber, student.HealthInfo, student.TeacherNotes, student.ID,
	)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return expectAffected(res, "update student")
}

// Delete removes a student. Its attendance cascades in the store.
func (r *StudentRepository) Delete(ctx context.Context, id int64) error {
	query := r.db.Rebind(`DELETE FROM students WHERE student_id = ?`)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return expectAffected(res, "delete student")
}
