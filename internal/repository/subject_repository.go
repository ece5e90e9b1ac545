package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/rollcall-api/internal/models"
)

// SubjectRepository handles subject persistence.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs a repository instance.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns all subjects ordered by name.
func (r *SubjectRepository) List(ctx context.Context) ([]models.Subject, error) {
	const query = `SELECT subject_id, name FROM subjects ORDER BY name ASC`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// FindByID returns a subject by ID.
func (r *SubjectRepository) FindByID(ctx context.Context, id int64) (*models.Subject, error) {
	query := r.db.Rebind(`SELECT subject_id, name FROM subjects WHERE subject_id = ?`)
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// FindByNameWithTx looks a subject up by exact, case-sensitive name.
func (r *SubjectRepository) FindByNameWithTx(ctx context.Context, tx *sqlx.Tx, name string) (*models.Subject, error) {
	query := tx.Rebind(`SELECT subject_id, name FROM subjects WHERE name = ? ORDER BY subject_id ASC LIMIT 1`)
	var subject models.Subject
	if err := tx.GetContext(ctx, &subject, query, name); err != nil {
		return nil, err
	}
	return &subject, nil
}

// CreateWithTx inserts a subject and fills its generated ID.
func (r *SubjectRepository) CreateWithTx(ctx context.Context, tx *sqlx.Tx, subject *models.Subject) error {
	query := tx.Rebind(`INSERT INTO subjects (name) VALUES (?) RETURNING subject_id`)
	if err := tx.GetContext(ctx, &subject.ID, query, subject.Name); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}
