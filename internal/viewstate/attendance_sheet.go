package viewstate

import (
	"github.com/noah-isme/rollcall-api/internal/models"
)

// SheetRow is one student line of an attendance sheet. A nil Status means unset.
type SheetRow struct {
	StudentID int64                    `json:"studentId"`
	FirstName string                   `json:"firstName"`
	LastName  string                   `json:"lastName"`
	PhotoURL  *string                  `json:"photoUrl,omitempty"`
	Status    *models.AttendanceStatus `json:"status,omitempty"`
	Comment   *string                  `json:"comment,omitempty"`
}

// AttendanceSheet is the editable attendance state of one lesson.
type AttendanceSheet struct {
	LessonID    int64      `json:"lessonId"`
	LessonTitle string     `json:"lessonTitle"`
	LessonDate  string     `json:"lessonDate"`
	Rows        []SheetRow `json:"rows"`
}

// NewAttendanceSheet builds a sheet for the roster, pre-filled with already saved marks.
func NewAttendanceSheet(lessonID int64, title, date string, roster []models.Student, saved []models.AttendanceRecord) AttendanceSheet {
	byStudent := make(map[int64]models.AttendanceRecord, len(saved))
	for _, rec := range saved {
		byStudent[rec.StudentID] = rec
	}

	rows := make([]SheetRow, 0, len(roster))
	for _, st := range roster {
		row := SheetRow{StudentID: st.ID, FirstName: st.FirstName, LastName: st.LastName, PhotoURL: st.PhotoURL}
		if rec, ok := byStudent[st.ID]; ok {
			status := rec.Status
			row.Status = &status
			row.Comment = rec.Comment
		}
		rows = append(rows, row)
	}
	return AttendanceSheet{LessonID: lessonID, LessonTitle: title, LessonDate: date, Rows: rows}
}

// Toggle sets a student's status, or clears it when the same status is chosen again.
func (s AttendanceSheet) Toggle(studentID int64, status models.AttendanceStatus) AttendanceSheet {
	return s.mapRows(func(row SheetRow) SheetRow {
		if row.StudentID != studentID {
			return row
		}
		if row.Status != nil && *row.Status == status {
			row.Status = nil
			return row
		}
		next := status
		row.Status = &next
		return row
	})
}

// MarkAllPresent sets every row to PRESENT.
func (s AttendanceSheet) MarkAllPresent() AttendanceSheet {
	return s.mapRows(func(row SheetRow) SheetRow {
		present := models.AttendancePresent
		row.Status = &present
		return row
	})
}

// SetComment replaces a student's comment. Blank text clears it.
func (s AttendanceSheet) SetComment(studentID int64, text string) AttendanceSheet {
	return s.mapRows(func(row SheetRow) SheetRow {
		if row.StudentID == studentID {
			row.Comment = Optional(text)
		}
		return row
	})
}

// Has reports whether the student is on the sheet.
func (s AttendanceSheet) Has(studentID int64) bool {
	for _, row := range s.Rows {
		if row.StudentID == studentID {
			return true
		}
	}
	return false
}

// Records returns the save payload: one record per row with a status.
func (s AttendanceSheet) Records() []models.AttendanceRecord {
	records := make([]models.AttendanceRecord, 0, len(s.Rows))
	for _, row := range s.Rows {
		if row.Status == nil {
			continue
		}
		records = append(records, models.AttendanceRecord{
			LessonID:  s.LessonID,
			StudentID: row.StudentID,
			Status:    *row.Status,
			Comment:   row.Comment,
		})
	}
	return records
}

// Cleared returns the students whose row has no status. Submitting a sheet removes
// any saved mark they still have.
func (s AttendanceSheet) Cleared() []int64 {
	ids := make([]int64, 0)
	for _, row := range s.Rows {
		if row.Status == nil {
			ids = append(ids, row.StudentID)
		}
	}
	return ids
}

// Reconcile rebuilds the draft against the current roster and saved marks.
// Students who left the class are dropped and new ones start from their saved
// mark. A student whose saved mark changed since baseline takes the saved mark;
// every other student keeps the draft's status and comment.
func (s AttendanceSheet) Reconcile(roster []models.Student, saved, baseline []models.AttendanceRecord) AttendanceSheet {
	next := NewAttendanceSheet(s.LessonID, s.LessonTitle, s.LessonDate, roster, saved)
	draft := make(map[int64]SheetRow, len(s.Rows))
	for _, row := range s.Rows {
		draft[row.StudentID] = row
	}
	savedMarks := marksByStudent(saved)
	baseMarks := marksByStudent(baseline)
	for i, row := range next.Rows {
		old, ok := draft[row.StudentID]
		if !ok || savedMarks[row.StudentID] != baseMarks[row.StudentID] {
			continue
		}
		next.Rows[i].Status = old.Status
		next.Rows[i].Comment = old.Comment
	}
	return next
}

type mark struct {
	status  models.AttendanceStatus
	comment string
}

func marksByStudent(records []models.AttendanceRecord) map[int64]mark {
	marks := make(map[int64]mark, len(records))
	for _, rec := range records {
		marks[rec.StudentID] = mark{status: rec.Status, comment: Text(rec.Comment)}
	}
	return marks
}

// PresentCount counts rows marked PRESENT or LATE.
func (s AttendanceSheet) PresentCount() int {
	n := 0
	for _, row := range s.Rows {
		if row.Status != nil && row.Status.CountsAsPresent() {
			n++
		}
	}
	return n
}

func (s AttendanceSheet) mapRows(fn func(SheetRow) SheetRow) AttendanceSheet {
	rows := make([]SheetRow, len(s.Rows))
	for i, row := range s.Rows {
		rows[i] = fn(row)
	}
	s.Rows = rows
	return s
}
