package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rollcall-api/internal/service"
	"github.com/noah-isme/rollcall-api/pkg/response"
)

// SubjectHandler exposes the subject catalogue. Subjects are created implicitly by lesson saves.
type SubjectHandler struct {
	subjects *service.SubjectService
}

// NewSubjectHandler constructs a subject handler.
func NewSubjectHandler(subjects *service.SubjectService) *SubjectHandler {
	return &SubjectHandler{subjects: subjects}
}

// List godoc
// @Summary Subjects ordered by name
// @Tags Subjects
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /subjects [get]
func (h *SubjectHandler) List(c *gin.Context) {
	subjects, err := h.subjects.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects)
}

// Stream godoc
// @Summary Live subject list
// @Tags Subjects
// @Produce text/event-stream
// @Router /subjects/stream [get]
func (h *SubjectHandler) Stream(c *gin.Context) {
	streamSnapshots(c, h.subjects.WatchAll(c.Request.Context()))
}
