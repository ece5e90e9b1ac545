package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/rollcall-api/internal/models"
	"github.com/noah-isme/rollcall-api/internal/viewstate"
	"github.com/noah-isme/rollcall-api/pkg/export"
	"github.com/noah-isme/rollcall-api/pkg/storage"
)

const reportDateLayout = "2006-01-02"

// Register columns, in output order.
const (
	colDate    = "Date"
	colTime    = "Time"
	colSubject = "Subject"
	colStudent = "Student"
	colStatus  = "Status"
	colComment = "Comment"
)

type registerRepository interface {
	ListRegister(ctx context.Context, classID, start, end int64) ([]models.AttendanceRegisterRow, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds attendance register datasets and persists rendered files.
type ExportService struct {
	register registerRepository
	classes  classLookup
	storage  fileStorage
	csv      datasetRenderer
	pdf      datasetRenderer
	signer   *storage.SignedURLSigner
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService. Nil renderers default to the CSV and PDF exporters.
func NewExportService(register registerRepository, classes classLookup, files fileStorage, signer *storage.SignedURLSigner, loc *time.Location, cfg ExportConfig, logger *zap.Logger, csv, pdf datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		register: register,
		classes:  classes,
		storage:  files,
		csv:      csv,
		pdf:      pdf,
		signer:   signer,
		loc:      loc,
		now:      time.Now,
		logger:   logger,
		cfg:      cfg,
	}
}

// Generate renders the job's register and stores it behind a signed download token.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	if job.Type != models.ReportTypeAttendanceRegister {
		return nil, fmt.Errorf("unsupported report type %s", job.Type)
	}
	dataset, err := s.BuildRegister(ctx, job.Params)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Sign(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Info("report rendered",
		zap.String("job_id", job.ID),
		zap.String("path", relPath),
		zap.Int("bytes", len(payload)),
	)
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// BuildRegister loads one row per lesson and student of the class between From and To, both inclusive.
func (s *ExportService) BuildRegister(ctx context.Context, params models.ReportParams) (export.Dataset, error) {
	from, to, err := reportRange(params, s.loc)
	if err != nil {
		return export.Dataset{}, err
	}
	class, err := s.classes.FindByID(ctx, params.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return export.Dataset{}, fmt.Errorf("class %d not found", params.ClassID)
		}
		return export.Dataset{}, fmt.Errorf("load class: %w", err)
	}
	rows, err := s.register.ListRegister(ctx, params.ClassID, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return export.Dataset{}, fmt.Errorf("load register: %w", err)
	}

	dataset := export.Dataset{
		Title:    fmt.Sprintf("Attendance register: %s", class.Name),
		Subtitle: fmt.Sprintf("%s to %s", params.From, params.To),
		Headers:  []string{colDate, colTime, colSubject, colStudent, colStatus, colComment},
		Rows:     make([]map[string]string, 0, len(rows)),
	}
	for _, row := range rows {
		start := time.UnixMilli(row.StartTime).In(s.loc)
		dataset.Rows = append(dataset.Rows, map[string]string{
			colDate:    start.Format(reportDateLayout),
			colTime:    start.Format("15:04"),
			colSubject: row.SubjectName,
			colStudent: strings.TrimSpace(row.LastName + " " + row.FirstName),
			colStatus:  viewstate.Text(row.Status),
			colComment: viewstate.Text(row.Comment),
		})
	}
	return dataset, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (storage.DownloadClaim, error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_class%d_%s_%s_%s.%s",
		strings.ToLower(string(job.Type)),
		job.Params.ClassID,
		sanitizeFilename(job.Params.From),
		sanitizeFilename(job.Params.To),
		timestamp,
		job.Params.Format,
	)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

// reportRange turns the inclusive From/To dates into a half-open [from, to+1d) range in loc.
func reportRange(params models.ReportParams, loc *time.Location) (time.Time, time.Time, error) {
	from, err := time.ParseInLocation(reportDateLayout, params.From, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from date %q", params.From)
	}
	to, err := time.ParseInLocation(reportDateLayout, params.To, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to date %q", params.To)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("to date %s is before from date %s", params.To, params.From)
	}
	return from, time.Date(to.Year(), to.Month(), to.Day()+1, 0, 0, 0, 0, loc), nil
}
