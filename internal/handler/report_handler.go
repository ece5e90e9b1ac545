package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rollcall-api/internal/models"
	"github.com/noah-isme/rollcall-api/internal/service"
	"github.com/noah-isme/rollcall-api/pkg/response"
)

type reportService interface {
	CreateAttendanceReport(ctx context.Context, req service.AttendanceReportRequest) (*service.ReportJobResponse, error)
	GetStatus(ctx context.Context, id string) (*service.ReportStatusResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error)
}

// ReportHandler exposes asynchronous attendance register exports.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs a report handler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// CreateAttendance godoc
// @Summary Queue an attendance register export for a class
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body service.AttendanceReportRequest true "Report request"
// @Success 202 {object} response.Envelope
// @Router /reports/attendance [post]
func (h *ReportHandler) CreateAttendance(c *gin.Context) {
	var req service.AttendanceReportRequest
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.reports.CreateAttendanceReport(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// Status godoc
// @Summary Report job status
// @Tags Reports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Status(c *gin.Context) {
	status, err := h.reports.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status)
}

// Download godoc
// @Summary Download a finished export through its signed token
// @Tags Reports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /export/{token} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	download, err := h.reports.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	var size int64 = -1
	if info, err := download.File.Stat(); err == nil {
		size = info.Size()
	}
	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", download.Filename),
		"Cache-Control":       "private, no-store",
		"X-Expires-At":        download.ExpiresAt.UTC().Format(http.TimeFormat),
	}
	c.DataFromReader(http.StatusOK, size, contentType(download.Format), download.File, headers)
}

func contentType(format models.ReportFormat) string {
	switch format {
	case models.ReportFormatPDF:
		return "application/pdf"
	case models.ReportFormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
