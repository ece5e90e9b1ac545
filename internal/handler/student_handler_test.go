package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rollcall-api/internal/models"
)

func TestStudentHandlerDirectoryAndProfile(t *testing.T) {
	env := newAPIEnv(t)
	classID := env.createClass(t, "6A")
	annID := env.createStudent(t, classID, "Ann", "Baker")
	env.createStudent(t, classID, "Bob", "Adams")

	w := env.do(t, http.MethodGet, apiPrefix+"/students", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var groups []models.StudentGroup
	decode(t, w, &groups)
	require.Len(t, groups, 2)
	assert.Equal(t, "A", groups[0].Letter)
	assert.Equal(t, "6A", groups[1].Students[0].ClassName)

	w = env.do(t, http.MethodPut, fmt.Sprintf("%s/students/%d", apiPrefix, annID), gin.H{
		"classId": classID, "firstName": "Ann", "lastName": "Baker", "healthInfo": "Peanut allergy", "teacherNotes": " ",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, fmt.Sprintf("%s/students/%d", apiPrefix, annID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var profile models.StudentProfile
	decode(t, w, &profile)
	require.NotNil(t, profile.HealthInfo)
	assert.Equal(t, "Peanut allergy", *profile.HealthInfo)
	assert.Nil(t, profile.TeacherNotes)
	assert.Equal(t, "6A", profile.ClassName)

	w = env.do(t, http.MethodDelete, fmt.Sprintf("%s/students/%d", apiPrefix, annID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodDelete, fmt.Sprintf("%s/students/%d", apiPrefix, annID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStudentHandlerRejectsIncompleteForms(t *testing.T) {
	env := newAPIEnv(t)
	classID := env.createClass(t, "6A")

	w := env.do(t, http.MethodPost, apiPrefix+"/students", gin.H{"firstName": "Ann", "lastName": "Baker"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "CLASS_REQUIRED", decode(t, w, nil).Error.Code)

	w = env.do(t, http.MethodPost, apiPrefix+"/students", gin.H{"classId": classID, "firstName": "Ann"})
	assert.Equal(t, "NAME_REQUIRED", decode(t, w, nil).Error.Code)

	w = env.do(t, http.MethodPost, apiPrefix+"/students", gin.H{"classId": 999, "firstName": "Ann", "lastName": "Baker"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStudentHandlerAttendanceSummary(t *testing.T) {
	env := newAPIEnv(t)
	classID := env.createClass(t, "6A")
	annID := env.createStudent(t, classID, "Ann", "Baker")
	first := env.createLesson(t, classID, "Math", "2024-03-04", "08:00", "08:45")
	second := env.createLesson(t, classID, "Math", "2024-03-05", "08:00", "08:45")

	for lessonID, status := range map[int64]string{first: "PRESENT", second: "ABSENT"} {
		w := env.do(t, http.MethodPut, fmt.Sprintf("%s/lessons/%d/attendance", apiPrefix, lessonID), gin.H{
			"records": []gin.H{{"studentId": annID, "status": status}},
		})
		require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	}

	w := env.do(t, http.MethodGet, fmt.Sprintf("%s/students/%d/attendance-summary", apiPrefix, annID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary models.StudentAttendanceSummary
	decode(t, w, &summary)
	assert.Equal(t, 1, summary.Present)
	assert.Equal(t, 1, summary.Absent)
	assert.Equal(t, 2, summary.LessonsCounted)
	assert.InDelta(t, 50.0, summary.AttendanceRate, 0.001)

	w = env.do(t, http.MethodGet, apiPrefix+"/students/999/attendance-summary", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
