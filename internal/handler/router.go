package handler

import (
	"github.com/gin-gonic/gin"
)

// Routes bundles the handlers mounted by Register. Nil handlers are skipped.
type Routes struct {
	Auth       *AuthHandler
	Classes    *ClassHandler
	Students   *StudentHandler
	Subjects   *SubjectHandler
	Lessons    *LessonHandler
	Attendance *AttendanceHandler
	Reports    *ReportHandler
	Metrics    *MetricsHandler

	// Protect guards every API route except token issue and signed downloads. Nil leaves them open.
	Protect gin.HandlerFunc
}

// Register mounts probes at the root and the API under prefix.
func (rt Routes) Register(r *gin.Engine, prefix string) {
	if rt.Metrics != nil {
		r.GET("/health", rt.Metrics.Health)
		r.GET("/ready", rt.Metrics.Ready)
		r.GET("/metrics", rt.Metrics.Prometheus)
	}

	api := r.Group(prefix)
	if rt.Auth != nil {
		api.POST("/auth/token", rt.Auth.Token)
	}
	if rt.Reports != nil {
		api.GET("/export/:token", rt.Reports.Download)
	}

	secured := api.Group("")
	if rt.Protect != nil {
		secured.Use(rt.Protect)
		if rt.Auth != nil {
			secured.GET("/auth/me", rt.Auth.Me)
		}
	}

	if h := rt.Classes; h != nil {
		secured.GET("/classes", h.List)
		secured.GET("/classes/stream", h.Stream)
		secured.GET("/classes/:id", h.Get)
		secured.POST("/classes", h.Create)
		secured.PUT("/classes/:id", h.Update)
		secured.DELETE("/classes/:id", h.Delete)
		secured.GET("/classes/:id/students", h.Students)
		secured.GET("/classes/:id/overlap", h.Overlap)
	}
	if h := rt.Students; h != nil {
		secured.GET("/students", h.Directory)
		secured.GET("/students/stream", h.Stream)
		secured.GET("/students/:id", h.Get)
		secured.POST("/students", h.Create)
		secured.PUT("/students/:id", h.Update)
		secured.DELETE("/students/:id", h.Delete)
		secured.GET("/students/:id/attendance-summary", h.AttendanceSummary)
	}
	if h := rt.Subjects; h != nil {
		secured.GET("/subjects", h.List)
		secured.GET("/subjects/stream", h.Stream)
	}
	if h := rt.Lessons; h != nil {
		secured.GET("/schedule", h.Schedule)
		secured.GET("/schedule/stream", h.ScheduleStream)
		secured.GET("/lessons/:id", h.Get)
		secured.POST("/lessons", h.Create)
		secured.PUT("/lessons/:id", h.Update)
		secured.DELETE("/lessons/:id", h.Delete)
		secured.POST("/lessons/:id/finish", h.Finish)
	}
	if h := rt.Attendance; h != nil {
		secured.GET("/lessons/:id/attendance", h.List)
		secured.PUT("/lessons/:id/attendance", h.Save)
		secured.GET("/lessons/:id/sheet", h.Sheet)
		secured.DELETE("/lessons/:id/sheet", h.Discard)
		secured.POST("/lessons/:id/sheet/toggle", h.Toggle)
		secured.POST("/lessons/:id/sheet/mark-all-present", h.MarkAllPresent)
		secured.POST("/lessons/:id/sheet/comment", h.Comment)
		secured.POST("/lessons/:id/sheet/submit", h.Submit)
	}
	if h := rt.Reports; h != nil {
		secured.POST("/reports/attendance", h.CreateAttendance)
		secured.GET("/reports/:id", h.Status)
	}
}
