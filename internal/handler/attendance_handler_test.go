package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rollcall-api/internal/models"
	"github.com/noah-isme/rollcall-api/internal/viewstate"
)

func TestAttendanceHandlerSaveAndList(t *testing.T) {
	env := newAPIEnv(t)
	classID := env.createClass(t, "8A")
	ann := env.createStudent(t, classID, "Ann", "Adams")
	bob := env.createStudent(t, classID, "Bob", "Baker")
	lessonID := env.createLesson(t, classID, "History", "2024-03-04", "10:00", "10:45")
	path := fmt.Sprintf("%s/lessons/%d/attendance", apiPrefix, lessonID)

	w := env.do(t, http.MethodPut, path, gin.H{"records": []gin.H{
		{"studentId": ann, "status": "PRESENT"},
		{"studentId": bob, "status": "LATE", "comment": " bus "},
	}})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var records []models.AttendanceRecord
	decode(t, w, &records)
	require.Len(t, records, 2)

	w = env.do(t, http.MethodGet, apiPrefix+"/schedule?date=2024-03-04", nil)
	var lessons []models.LessonSummary
	decode(t, w, &lessons)
	require.Len(t, lessons, 1)
	assert.Equal(t, 2, lessons[0].PresentCount)
	assert.Equal(t, 2, lessons[0].TotalStudents)

	w = env.do(t, http.MethodPut, path, gin.H{"records": []gin.H{{"studentId": ann, "status": "SICK"}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPut, apiPrefix+"/lessons/999/attendance", gin.H{"records": []gin.H{{"studentId": ann, "status": "PRESENT"}}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAttendanceHandlerSheetFlow(t *testing.T) {
	env := newAPIEnv(t)
	classID := env.createClass(t, "8A")
	env.createStudent(t, classID, "Ann", "Adams")
	bob := env.createStudent(t, classID, "Bob", "Baker")
	lessonID := env.createLesson(t, classID, "History", "2024-03-04", "10:00", "10:45")
	sheetPath := fmt.Sprintf("%s/lessons/%d/sheet", apiPrefix, lessonID)

	w := env.do(t, http.MethodGet, sheetPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sheet viewstate.AttendanceSheet
	resp := decode(t, w, &sheet)
	assert.Equal(t, "History, 8A", sheet.LessonTitle)
	assert.Equal(t, "4 March, 10:00", sheet.LessonDate)
	assert.EqualValues(t, 0, resp.Meta["presentCount"])

	w = env.do(t, http.MethodPost, sheetPath+"/mark-all-present", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w, &sheet).Meta["presentCount"])

	w = env.do(t, http.MethodPost, sheetPath+"/toggle", gin.H{"studentId": bob, "status": "ABSENT"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = env.do(t, http.MethodPost, sheetPath+"/comment", gin.H{"studentId": bob, "text": "dentist"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &sheet)
	require.NotNil(t, sheet.Rows[1].Comment)
	assert.Equal(t, "dentist", *sheet.Rows[1].Comment)

	w = env.do(t, http.MethodPost, sheetPath+"/toggle", gin.H{"studentId": 999, "status": "ABSENT"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, sheetPath+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var submitted struct {
		Saved int `json:"saved"`
	}
	decode(t, w, &submitted)
	assert.Equal(t, 2, submitted.Saved)

	w = env.do(t, http.MethodGet, fmt.Sprintf("%s/lessons/%d/attendance", apiPrefix, lessonID), nil)
	var records []models.AttendanceRecord
	decode(t, w, &records)
	assert.Len(t, records, 2)

	w = env.do(t, http.MethodDelete, sheetPath, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodGet, apiPrefix+"/lessons/999/sheet", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
