package models

// AttendanceStatus is stored as text.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceExcused AttendanceStatus = "EXCUSED"
)

// Valid reports whether s is a known status.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	}
	return false
}

// CountsAsPresent reports whether s contributes to a lesson's present count.
func (s AttendanceStatus) CountsAsPresent() bool {
	return s == AttendancePresent || s == AttendanceLate
}

// AttendanceRecord is one student's mark for one lesson, unique per (lesson, student).
type AttendanceRecord struct {
	ID        int64            `db:"id" json:"id,omitempty"`
	LessonID  int64            `db:"lesson_id" json:"lessonId"`
	StudentID int64            `db:"student_id" json:"studentId"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Comment   *string          `db:"comment" json:"comment,omitempty"`
}

// AttendanceStatusCount is a per-status tally.
type AttendanceStatusCount struct {
	Status AttendanceStatus `db:"status"`
	Count  int              `db:"total"`
}

// StudentAttendanceSummary aggregates a student's attendance history.
type StudentAttendanceSummary struct {
	StudentID      int64   `json:"studentId"`
	Present        int     `json:"present"`
	Absent         int     `json:"absent"`
	Late           int     `json:"late"`
	Excused        int     `json:"excused"`
	LessonsCounted int     `json:"lessonsCounted"`
	AttendanceRate float64 `json:"attendanceRate"`
}

// AttendanceRegisterRow is one lesson x student line of an attendance register export.
type AttendanceRegisterRow struct {
	LessonID    int64   `db:"lesson_id"`
	StartTime   int64   `db:"start_time"`
	SubjectName string  `db:"subject_name"`
	StudentID   int64   `db:"student_id"`
	FirstName   string  `db:"first_name"`
	LastName    string  `db:"last_name"`
	Status      *string `db:"status"`
	Comment     *string `db:"comment"`
}
