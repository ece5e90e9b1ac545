package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rollcall-api/internal/service"
	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
	"github.com/noah-isme/rollcall-api/pkg/response"
)

// ClassHandler exposes class endpoints.
type ClassHandler struct {
	classes  *service.ClassService
	students *service.StudentService
	lessons  *service.LessonService
}

// NewClassHandler constructs a class handler.
func NewClassHandler(classes *service.ClassService, students *service.StudentService, lessons *service.LessonService) *ClassHandler {
	return &ClassHandler{classes: classes, students: students, lessons: lessons}
}

// List godoc
// @Summary List classes with student counts and previews
// @Tags Classes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	classes, err := h.classes.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, map[string]interface{}{"total": len(classes)})
}

// Stream godoc
// @Summary Live class list
// @Tags Classes
// @Produce text/event-stream
// @Router /classes/stream [get]
func (h *ClassHandler) Stream(c *gin.Context) {
	streamSnapshots(c, h.classes.WatchAll(c.Request.Context()))
}

// Get godoc
// @Summary Get class with its students
// @Tags Classes
// @Produce json
// @Param id path int true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	class, err := h.classes.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class)
}

// Create godoc
// @Summary Create class
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body service.ClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	var req service.ClassRequest
	if !bindJSON(c, &req) {
		return
	}
	class, err := h.classes.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Update godoc
// @Summary Update class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path int true "Class ID"
// @Param payload body service.ClassRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.ClassRequest
	if !bindJSON(c, &req) {
		return
	}
	class, err := h.classes.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class)
}

// Delete godoc
// @Summary Delete class with its students, lessons and attendance
// @Tags Classes
// @Param id path int true "Class ID"
// @Success 204
// @Router /classes/{id} [delete]
func (h *ClassHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.classes.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Students godoc
// @Summary Students of a class ordered by last name
// @Tags Classes
// @Produce json
// @Param id path int true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/students [get]
func (h *ClassHandler) Students(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	students, err := h.students.ListByClass(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students)
}

// Overlap godoc
// @Summary Check whether a time range collides with another lesson of the class
// @Tags Classes
// @Produce json
// @Param id path int true "Class ID"
// @Param start query int true "Start, epoch millis"
// @Param end query int true "End, epoch millis"
// @Param exclude query int false "Lesson ID to ignore"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/overlap [get]
func (h *ClassHandler) Overlap(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	start, err := queryInt64(c, "start", true)
	if err != nil {
		response.Error(c, err)
		return
	}
	end, err := queryInt64(c, "end", true)
	if err != nil {
		response.Error(c, err)
		return
	}
	exclude, err := queryInt64(c, "exclude", false)
	if err != nil {
		response.Error(c, err)
		return
	}
	if end <= start {
		response.Error(c, appErrors.ErrInvalidTimeRange)
		return
	}
	overlap, err := h.lessons.HasOverlap(c.Request.Context(), id, start, end, exclude)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"overlap": overlap})
}
