package models

import "time"

// Lesson is a persisted lesson row. Start and end are epoch millis.
type Lesson struct {
	ID         int64   `db:"lesson_id" json:"id"`
	ClassID    int64   `db:"class_id" json:"classId"`
	SubjectID  int64   `db:"subject_id" json:"subjectId"`
	StartTime  int64   `db:"start_time" json:"startTime"`
	EndTime    int64   `db:"end_time" json:"endTime"`
	RoomNumber string  `db:"room_number" json:"roomNumber"`
	Topic      *string `db:"topic" json:"topic,omitempty"`
	IsFinished bool    `db:"is_finished" json:"isFinished"`
	Color      *string `db:"color" json:"color,omitempty"`
}

// LessonStatsRow is the lesson-with-statistics read model as returned by the store.
type LessonStatsRow struct {
	LessonID      int64   `db:"lesson_id"`
	ClassID       int64   `db:"class_id"`
	SubjectName   string  `db:"subject_name"`
	ClassName     string  `db:"class_name"`
	StartTime     int64   `db:"start_time"`
	EndTime       int64   `db:"end_time"`
	RoomNumber    string  `db:"room_number"`
	IsFinished    bool    `db:"is_finished"`
	Color         *string `db:"color"`
	TotalStudents int     `db:"total_students"`
	PresentCount  int     `db:"present_count"`
}

// LessonDetailRow is a lesson joined with its subject and class names.
type LessonDetailRow struct {
	Lesson
	SubjectName string `db:"subject_name"`
	ClassName   string `db:"class_name"`
}

// LessonSummary is a lesson with names and attendance counts, times in the caller's zone.
type LessonSummary struct {
	ID            int64     `json:"id"`
	ClassID       int64     `json:"classId"`
	SubjectName   string    `json:"subjectName"`
	ClassName     string    `json:"className"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	RoomNumber    string    `json:"roomNumber"`
	IsFinished    bool      `json:"isFinished"`
	Color         *string   `json:"color,omitempty"`
	PresentCount  int       `json:"presentCount"`
	TotalStudents int       `json:"totalStudents"`
}

// LessonDetail is the single-lesson view.
type LessonDetail struct {
	ID          int64     `json:"id"`
	ClassID     int64     `json:"classId"`
	SubjectID   int64     `json:"subjectId"`
	SubjectName string    `json:"subjectName"`
	ClassName   string    `json:"className"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	RoomNumber  string    `json:"roomNumber"`
	Topic       *string   `json:"topic,omitempty"`
	IsFinished  bool      `json:"isFinished"`
	Color       *string   `json:"color,omitempty"`
}
