package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/rollcall-api/internal/live"
	"github.com/noah-isme/rollcall-api/internal/repository"
	"github.com/noah-isme/rollcall-api/internal/service"
	"github.com/noah-isme/rollcall-api/pkg/config"
	"github.com/noah-isme/rollcall-api/pkg/database"
)

const apiPrefix = "/api/v1"

type apiEnv struct {
	db     *sqlx.DB
	broker *live.Broker
	router *gin.Engine
	routes Routes
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Meta  map[string]interface{} `json:"meta"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// newAPIEnv serves the full route table over an in-memory SQLite store in UTC.
func newAPIEnv(t *testing.T, configure ...func(*Routes)) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewSQLite(config.DatabaseConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, nil))

	logger := zap.NewNop()
	broker := live.NewBroker()
	loc := time.UTC
	classRepo := repository.NewClassRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	cache := service.NewCacheService(repository.NewCacheRepository(nil, logger), nil, time.Minute, logger)

	classes := service.NewClassService(classRepo, studentRepo, broker, loc, nil, logger)
	students := service.NewStudentService(studentRepo, classRepo, broker, loc, logger)
	subjects := service.NewSubjectService(subjectRepo, broker)
	lessons := service.NewLessonService(lessonRepo, subjectRepo, classRepo, repository.NewTxRunner(db), broker, nil, service.DefaultRecurrenceDays, loc, logger)
	schedule := service.NewScheduleService(lessonRepo, broker, loc)
	attendance := service.NewAttendanceService(attendanceRepo, lessonRepo, studentRepo, cache, time.Minute, broker, nil, nil, logger)
	sheets := service.NewSheetService(lessonRepo, studentRepo, attendance, cache, time.Hour, loc, logger)

	routes := Routes{
		Classes:    NewClassHandler(classes, students, lessons),
		Students:   NewStudentHandler(students, attendance),
		Subjects:   NewSubjectHandler(subjects),
		Lessons:    NewLessonHandler(lessons, schedule),
		Attendance: NewAttendanceHandler(attendance, sheets),
		Metrics:    NewMetricsHandler(service.NewMetricsService(), db),
	}
	for _, fn := range configure {
		fn(&routes)
	}
	router := gin.New()
	routes.Register(router, apiPrefix)
	return &apiEnv{db: db, broker: broker, router: router, routes: routes}
}

func (e *apiEnv) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil {
		require.NotEmpty(t, env.Data, w.Body.String())
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func (e *apiEnv) createClass(t *testing.T, name string) int64 {
	t.Helper()
	w := e.do(t, http.MethodPost, apiPrefix+"/classes", gin.H{"name": name})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var class struct {
		ID int64 `json:"id"`
	}
	decode(t, w, &class)
	return class.ID
}

func (e *apiEnv) createStudent(t *testing.T, classID int64, first, last string) int64 {
	t.Helper()
	w := e.do(t, http.MethodPost, apiPrefix+"/students", gin.H{"classId": classID, "firstName": first, "lastName": last})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var student struct {
		ID int64 `json:"id"`
	}
	decode(t, w, &student)
	return student.ID
}

func (e *apiEnv) createLesson(t *testing.T, classID int64, subject, date, start, end string) int64 {
	t.Helper()
	w := e.do(t, http.MethodPost, apiPrefix+"/lessons", gin.H{
		"classId": classID, "subjectName": subject, "date": date, "startTime": start, "endTime": end,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		IDs []int64 `json:"ids"`
	}
	decode(t, w, &created)
	require.Len(t, created.IDs, 1)
	return created.IDs[0]
}
