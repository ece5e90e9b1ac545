package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/rollcall-api/internal/models"
)

const reportColumns = `id, type, params, status, progress, result_url, created_at, finished_at, error_message`

// ReportRepository persists report job metadata.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

type reportJobRow struct {
	ID           string  `db:"id"`
	Type         string  `db:"type"`
	Params       string  `db:"params"`
	Status       string  `db:"status"`
	Progress     int     `db:"progress"`
	ResultURL    *string `db:"result_url"`
	CreatedAt    int64   `db:"created_at"`
	FinishedAt   *int64  `db:"finished_at"`
	ErrorMessage *string `db:"error_message"`
}

func (row reportJobRow) toModel() (models.ReportJob, error) {
	job := models.ReportJob{
		ID:           row.ID,
		Type:         models.ReportType(row.Type),
		Status:       models.ReportStatus(row.Status),
		Progress:     row.Progress,
		ResultURL:    row.ResultURL,
		CreatedAt:    time.UnixMilli(row.CreatedAt).UTC(),
		ErrorMessage: row.ErrorMessage,
	}
	if err := json.Unmarshal([]byte(row.Params), &job.Params); err != nil {
		return models.ReportJob{}, fmt.Errorf("decode report params %s: %w", row.ID, err)
	}
	if row.FinishedAt != nil {
		finished := time.UnixMilli(*row.FinishedAt).UTC()
		job.FinishedAt = &finished
	}
	return job, nil
}

// Create inserts a new report job row with generated defaults.
func (r *ReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ReportStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	params, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("encode report params: %w", err)
	}
	var finishedAt *int64
	if job.FinishedAt != nil {
		ms := job.FinishedAt.UnixMilli()
		finishedAt = &ms
	}
	query := r.db.Rebind(`INSERT INTO report_jobs (` + reportColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query,
		job.ID, string(job.Type), string(params), string(job.Status), job.Progress,
		job.ResultURL, job.CreatedAt.UnixMilli(), finishedAt, job.ErrorMessage,
	); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// GetByID returns a job row by its identifier.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	query := r.db.Rebind(`SELECT ` + reportColumns + ` FROM report_jobs WHERE id = ?`)
	var row reportJobRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, fmt.Errorf("get report job: %w", err)
	}
	job, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateReportJobParams defines the mutable fields.
type UpdateReportJobParams struct {
	Status       *models.ReportStatus
	Progress     *int
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Update persists the provided changes for a job row.
func (r *ReportRepository) Update(ctx context.Context, id string, params UpdateReportJobParams) error {
	set := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)

	if params.Status != nil {
		set = append(set, "status = ?")
		args = append(args, string(*params.Status))
	}
	if params.Progress != nil {
		set = append(set, "progress = ?")
		args = append(args, *params.Progress)
	}
	if params.ResultURL != nil {
		set = append(set, "result_url = ?")
		args = append(args, *params.ResultURL)
	}
	if params.ErrorMessage != nil {
		set = append(set, "error_message = ?")
		args = append(args, *params.ErrorMessage)
	}
	if params.FinishedAt != nil {
		set = append(set, "finished_at = ?")
		args = append(args, params.FinishedAt.UnixMilli())
	}
	if len(set) == 0 {
		return nil
	}

	query := r.db.Rebind(fmt.Sprintf("UPDATE report_jobs SET %s WHERE id = ?", strings.Join(set, ", ")))
	args = append(args, id)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update report job: %w", err)
	}
	return expectAffected(res, "update report job")
}

// ListQueued fetches queued jobs (used for cold start recovery).
func (r *ReportRepository) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	query := r.db.Rebind(`SELECT ` + reportColumns + ` FROM report_jobs WHERE status = ? ORDER BY created_at ASC LIMIT ?`)
	return r.list(ctx, "list queued report jobs", query, string(models.ReportStatusQueued), limit)
}

// ListFinishedBefore retrieves completed jobs prior to cutoff for cleanup.
func (r *ReportRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := r.db.Rebind(`SELECT ` + reportColumns + ` FROM report_jobs
WHERE status = ? AND finished_at IS NOT NULL AND finished_at < ? ORDER BY finished_at ASC LIMIT ?`)
	return r.list(ctx, "list finished report jobs", query, string(models.ReportStatusFinished), cutoff.UnixMilli(), limit)
}

func (r *ReportRepository) list(ctx context.Context, op, query string, args ...interface{}) ([]models.ReportJob, error) {
	var rows []reportJobRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	jobs := make([]models.ReportJob, 0, len(rows))
	for _, row := range rows {
		job, err := row.toModel()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
