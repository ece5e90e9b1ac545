package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rollcall-api/internal/service"
	"github.com/noah-isme/rollcall-api/internal/viewstate"
	"github.com/noah-isme/rollcall-api/pkg/response"
)

// LessonHandler exposes the daily schedule and lesson writes.
type LessonHandler struct {
	lessons  *service.LessonService
	schedule *service.ScheduleService
}

// NewLessonHandler constructs a lesson handler.
func NewLessonHandler(lessons *service.LessonService, schedule *service.ScheduleService) *LessonHandler {
	return &LessonHandler{lessons: lessons, schedule: schedule}
}

// Schedule godoc
// @Summary Lessons of one day with attendance counts
// @Tags Lessons
// @Produce json
// @Param date query string false "Day, YYYY-MM-DD (default today)"
// @Param tz query string false "IANA time zone of the caller"
// @Success 200 {object} response.Envelope
// @Router /schedule [get]
func (h *LessonHandler) Schedule(c *gin.Context) {
	day, loc, ok := h.day(c)
	if !ok {
		return
	}
	lessons, err := h.schedule.LessonsForDate(c.Request.Context(), day, loc)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lessons, map[string]interface{}{
		"date":     day.Format(time.DateOnly),
		"timezone": loc.String(),
	})
}

// ScheduleStream godoc
// @Summary Live schedule of one day
// @Tags Lessons
// @Produce text/event-stream
// @Param date query string false "Day, YYYY-MM-DD (default today)"
// @Param tz query string false "IANA time zone of the caller"
// @Router /schedule/stream [get]
func (h *LessonHandler) ScheduleStream(c *gin.Context) {
	day, loc, ok := h.day(c)
	if !ok {
		return
	}
	streamSnapshots(c, h.schedule.WatchDay(c.Request.Context(), day, loc))
}

// Get godoc
// @Summary Lesson detail
// @Tags Lessons
// @Produce json
// @Param id path int true "Lesson ID"
// @Param tz query string false "IANA time zone of the caller"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /lessons/{id} [get]
func (h *LessonHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	loc, err := requestLocation(c, h.lessons.Location())
	if err != nil {
		response.Error(c, err)
		return
	}
	lesson, err := h.lessons.Get(c.Request.Context(), id, loc)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson)
}

// Create godoc
// @Summary Create a lesson, or one per selected weekday when repeat is on
// @Tags Lessons
// @Accept json
// @Produce json
// @Param tz query string false "IANA time zone of the caller"
// @Param payload body viewstate.LessonForm true "Lesson form"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /lessons [post]
func (h *LessonHandler) Create(c *gin.Context) {
	h.save(c, 0, http.StatusCreated)
}

// Update godoc
// @Summary Edit a single lesson
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path int true "Lesson ID"
// @Param tz query string false "IANA time zone of the caller"
// @Param payload body viewstate.LessonForm true "Lesson form"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /lessons/{id} [put]
func (h *LessonHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	h.save(c, id, http.StatusOK)
}

// Finish godoc
// @Summary Mark a lesson as held
// @Tags Lessons
// @Accept json
// @Param id path int true "Lesson ID"
// @Param payload body service.FinishLessonRequest false "Topic"
// @Success 204
// @Router /lessons/{id}/finish [post]
func (h *LessonHandler) Finish(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.FinishLessonRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	if err := h.lessons.Finish(c.Request.Context(), id, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete a lesson and its attendance
// @Tags Lessons
// @Param id path int true "Lesson ID"
// @Success 204
// @Router /lessons/{id} [delete]
func (h *LessonHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.lessons.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *LessonHandler) save(c *gin.Context, lessonID int64, status int) {
	loc, err := requestLocation(c, h.lessons.Location())
	if err != nil {
		response.Error(c, err)
		return
	}
	var form viewstate.LessonForm
	if !bindJSON(c, &form) {
		return
	}
	ids, err := h.lessons.Save(c.Request.Context(), lessonID, form, loc)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, status, gin.H{"ids": ids}, map[string]interface{}{"count": len(ids)})
}

func (h *LessonHandler) day(c *gin.Context) (time.Time, *time.Location, bool) {
	loc, err := requestLocation(c, h.lessons.Location())
	if err != nil {
		response.Error(c, err)
		return time.Time{}, nil, false
	}
	day, err := requestDate(c, loc)
	if err != nil {
		response.Error(c, err)
		return time.Time{}, nil, false
	}
	return day, loc, true
}
