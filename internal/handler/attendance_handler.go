package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rollcall-api/internal/service"
	"github.com/noah-isme/rollcall-api/internal/viewstate"
	"github.com/noah-isme/rollcall-api/pkg/response"
)

// AttendanceHandler exposes saved attendance and the per-lesson attendance sheet.
type AttendanceHandler struct {
	attendance *service.AttendanceService
	sheets     *service.SheetService
}

// NewAttendanceHandler constructs an attendance handler.
func NewAttendanceHandler(attendance *service.AttendanceService, sheets *service.SheetService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, sheets: sheets}
}

// List godoc
// @Summary Saved attendance of a lesson
// @Tags Attendance
// @Produce json
// @Param id path int true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Router /lessons/{id}/attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	lessonID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	records, err := h.attendance.ForLesson(c.Request.Context(), lessonID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records)
}

// Save godoc
// @Summary Upsert attendance marks of a lesson
// @Tags Attendance
// @Accept json
// @Param id path int true "Lesson ID"
// @Param payload body service.SaveAttendanceRequest true "Marks"
// @Success 204
// @Router /lessons/{id}/attendance [put]
func (h *AttendanceHandler) Save(c *gin.Context) {
	lessonID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.SaveAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.attendance.SaveRequest(c.Request.Context(), lessonID, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Sheet godoc
// @Summary Current attendance sheet draft
// @Tags Attendance
// @Produce json
// @Param id path int true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Router /lessons/{id}/sheet [get]
func (h *AttendanceHandler) Sheet(c *gin.Context) {
	lessonID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respondSheet(c, func() (*viewstate.AttendanceSheet, error) {
		return h.sheets.Load(c.Request.Context(), lessonID)
	})
}

// Toggle godoc
// @Summary Set a student's status, or clear it when already set to the same value
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path int true "Lesson ID"
// @Param payload body service.ToggleRequest true "Toggle"
// @Success 200 {object} response.Envelope
// @Router /lessons/{id}/sheet/toggle [post]
func (h *AttendanceHandler) Toggle(c *gin.Context) {
	lessonID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.ToggleRequest
	if !bindJSON(c, &req) {
		return
	}
	h.respondSheet(c, func() (*viewstate.AttendanceSheet, error) {
		return h.sheets.Toggle(c.Request.Context(), lessonID, req)
	})
}

// MarkAllPresent godoc
// @Summary Mark every student on the sheet present
// @Tags Attendance
// @Produce json
// @Param id path int true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Router /lessons/{id}/sheet/mark-all-present [post]
func (h *AttendanceHandler) MarkAllPresent(c *gin.Context) {
	lessonID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respondSheet(c, func() (*viewstate.AttendanceSheet, error) {
		return h.sheets.MarkAllPresent(c.Request.Context(), lessonID)
	})
}

// Comment godoc
// @Summary Set or clear a student's comment on the sheet
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path int true "Lesson ID"
// @Param payload body service.CommentRequest true "Comment"
// @Success 200 {object} response.Envelope
// @Router /lessons/{id}/sheet/comment [post]
func (h *AttendanceHandler) Comment(c *gin.Context) {
	lessonID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CommentRequest
	if !bindJSON(c, &req) {
		return
	}
	h.respondSheet(c, func() (*viewstate.AttendanceSheet, error) {
		return h.sheets.SetComment(c.Request.Context(), lessonID, req)
	})
}

// Submit godoc
// @Summary Save every marked row of the sheet
// @Tags Attendance
// @Produce json
// @Param id path int true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Router /lessons/{id}/sheet/submit [post]
func (h *AttendanceHandler) Submit(c *gin.Context) {
	lessonID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	saved, err := h.sheets.Submit(c.Request.Context(), lessonID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"saved": saved})
}

// Discard godoc
// @Summary Drop the sheet draft
// @Tags Attendance
// @Param id path int true "Lesson ID"
// @Success 204
// @Router /lessons/{id}/sheet [delete]
func (h *AttendanceHandler) Discard(c *gin.Context) {
	lessonID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.sheets.Discard(c.Request.Context(), lessonID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *AttendanceHandler) respondSheet(c *gin.Context, load func() (*viewstate.AttendanceSheet, error)) {
	sheet, err := load()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, map[string]interface{}{"presentCount": sheet.PresentCount()})
}
