package service

import (
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/noah-isme/rollcall-api/internal/models"
)

// PreviewStudentsPerClass is how many students a class listing shows.
const PreviewStudentsPerClass = 3

// Age returns completed years between a birth instant and now, evaluated as calendar
// dates in loc. A zero birth instant means unknown and yields 0.
func Age(birthMillis int64, now time.Time, loc *time.Location) int {
	if birthMillis == 0 {
		return 0
	}
	if loc == nil {
		loc = time.Local
	}
	birth := time.UnixMilli(birthMillis).In(loc)
	today := now.In(loc)

	years := today.Year() - birth.Year()
	if today.Month() < birth.Month() || (today.Month() == birth.Month() && today.Day() < birth.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// DayBounds returns [start of day, start of next day) for the calendar day of t in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}

// ISOWeekday maps time.Weekday to 1=Monday..7=Sunday.
func ISOWeekday(d time.Weekday) int {
	return (int(d)+6)%7 + 1
}

func studentPreview(st models.Student, now time.Time, loc *time.Location) models.StudentPreview {
	return models.StudentPreview{
		ID:          st.ID,
		FirstName:   st.FirstName,
		LastName:    st.LastName,
		Age:         Age(st.BirthDate, now, loc),
		PhoneNumber: st.PhoneNumber,
		PhotoURL:    st.PhotoURL,
	}
}

func previewFromRow(row models.ClassPreviewRow, now time.Time, loc *time.Location) models.StudentPreview {
	return models.StudentPreview{
		ID:          row.StudentID,
		FirstName:   row.FirstName,
		LastName:    row.LastName,
		Age:         Age(row.BirthDate, now, loc),
		PhoneNumber: row.PhoneNumber,
		PhotoURL:    row.PhotoURL,
	}
}

func studentProfile(st models.StudentWithClass, now time.Time, loc *time.Location) *models.StudentProfile {
	return &models.StudentProfile{
		Student:   st.Student,
		ClassName: st.ClassName,
		Age:       Age(st.BirthDate, now, loc),
	}
}

func lessonSummary(row models.LessonStatsRow, loc *time.Location) models.LessonSummary {
	return models.LessonSummary{
		ID:            row.LessonID,
		ClassID:       row.ClassID,
		SubjectName:   row.SubjectName,
		ClassName:     row.ClassName,
		StartTime:     time.UnixMilli(row.StartTime).In(loc),
		EndTime:       time.UnixMilli(row.EndTime).In(loc),
		RoomNumber:    row.RoomNumber,
		IsFinished:    row.IsFinished,
		Color:         row.Color,
		PresentCount:  row.PresentCount,
		TotalStudents: row.TotalStudents,
	}
}

func lessonDetail(row models.LessonDetailRow, loc *time.Location) *models.LessonDetail {
	return &models.LessonDetail{
		ID:          row.ID,
		ClassID:     row.ClassID,
		SubjectID:   row.SubjectID,
		SubjectName: row.SubjectName,
		ClassName:   row.ClassName,
		StartTime:   time.UnixMilli(row.StartTime).In(loc),
		EndTime:     time.UnixMilli(row.EndTime).In(loc),
		RoomNumber:  row.RoomNumber,
		Topic:       row.Topic,
		IsFinished:  row.IsFinished,
		Color:       row.Color,
	}
}

// directoryLetter is the upper-cased first rune of the last name, or '#' when empty.
func directoryLetter(lastName string) string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(lastName))
	if r == utf8.RuneError {
		return "#"
	}
	return string(unicode.ToUpper(r))
}

// groupDirectory buckets students by directoryLetter, groups sorted by letter,
// members kept in input order.
func groupDirectory(items []models.StudentListItem) []models.StudentGroup {
	index := make(map[string]int)
	groups := make([]models.StudentGroup, 0)
	for _, item := range items {
		letter := directoryLetter(item.LastName)
		i, ok := index[letter]
		if !ok {
			i = len(groups)
			index[letter] = i
			groups = append(groups, models.StudentGroup{Letter: letter})
		}
		groups[i].Students = append(groups[i].Students, item)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Letter < groups[j].Letter })
	return groups
}
