package viewstate

import (
	"sort"
	"strings"
	"time"

	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
)

// Default lesson times offered by a fresh form.
const (
	DefaultStartTime = "08:30"
	DefaultEndTime   = "09:15"
)

// LessonForm is the add/edit lesson input. Times are local clock values "HH:MM".
type LessonForm struct {
	ClassID     *int64  `json:"classId"`
	SubjectName string  `json:"subjectName"`
	Date        string  `json:"date"`
	StartTime   string  `json:"startTime"`
	EndTime     string  `json:"endTime"`
	RoomNumber  string  `json:"roomNumber"`
	Color       *string `json:"color,omitempty"`
	Repeat      bool    `json:"repeat"`
	Days        []int   `json:"days,omitempty"`
}

// LessonInput is a validated lesson form.
type LessonInput struct {
	ClassID     int64
	SubjectName string
	Date        time.Time
	Start       Clock
	End         Clock
	RoomNumber  string
	Color       *string
	RepeatDays  []int
}

// Clock is a time of day.
type Clock struct {
	Hour   int
	Minute int
}

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

// On returns the instant of this clock on the calendar day of date, in loc.
func (c Clock) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour, c.Minute, 0, 0, loc)
}

// String formats the clock as HH:MM.
func (c Clock) String() string {
	return time.Date(0, 1, 1, c.Hour, c.Minute, 0, 0, time.UTC).Format("15:04")
}

// NewLessonForm returns a blank form for the given day.
func NewLessonForm(date time.Time) LessonForm {
	return LessonForm{Date: date.Format(time.DateOnly), StartTime: DefaultStartTime, EndTime: DefaultEndTime}
}

// WithClass selects the class.
func (f LessonForm) WithClass(classID int64) LessonForm {
	f.ClassID = &classID
	return f
}

// WithSubject sets the subject name.
func (f LessonForm) WithSubject(name string) LessonForm {
	f.SubjectName = name
	return f
}

// WithTimes sets the start and end clocks.
func (f LessonForm) WithTimes(start, end string) LessonForm {
	f.StartTime = start
	f.EndTime = end
	return f
}

// WithRoom sets the room number.
func (f LessonForm) WithRoom(room string) LessonForm {
	f.RoomNumber = room
	return f
}

// WithColor sets the display color. Blank clears it.
func (f LessonForm) WithColor(color string) LessonForm {
	f.Color = Optional(color)
	return f
}

// WithRepeat enables or disables weekly repetition.
func (f LessonForm) WithRepeat(enabled bool) LessonForm {
	f.Repeat = enabled
	return f
}

// ToggleDay adds or removes an ISO weekday (1=Monday..7=Sunday).
func (f LessonForm) ToggleDay(day int) LessonForm {
	days := make([]int, 0, len(f.Days)+1)
	found := false
	for _, d := range f.Days {
		if d == day {
			found = true
			continue
		}
		days = append(days, d)
	}
	if !found {
		days = append(days, day)
	}
	sort.Ints(days)
	f.Days = days
	return f
}

// RepeatDays returns the selected weekdays, deduplicated and sorted. Empty when repeat is off.
func (f LessonForm) RepeatDays() []int {
	if !f.Repeat {
		return nil
	}
	seen := make(map[int]struct{}, len(f.Days))
	days := make([]int, 0, len(f.Days))
	for _, d := range f.Days {
		if d < 1 || d > 7 {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	sort.Ints(days)
	return days
}

// Validate checks the form in order: class, subject, date and times, time range.
func (f LessonForm) Validate(loc *time.Location) (LessonInput, error) {
	if f.ClassID == nil || *f.ClassID <= 0 {
		return LessonInput{}, appErrors.ErrClassRequired
	}
	subject := strings.TrimSpace(f.SubjectName)
	if subject == "" {
		return LessonInput{}, appErrors.ErrSubjectRequired
	}
	if loc == nil {
		loc = time.Local
	}
	date, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(f.Date), loc)
	if err != nil {
		return LessonInput{}, appErrors.Clone(appErrors.ErrInvalidTime, "date must be in YYYY-MM-DD format")
	}
	start, err := ParseClock(f.StartTime)
	if err != nil {
		return LessonInput{}, err
	}
	end, err := ParseClock(f.EndTime)
	if err != nil {
		return LessonInput{}, err
	}
	if end.Minutes() <= start.Minutes() {
		return LessonInput{}, appErrors.ErrInvalidTimeRange
	}
	return LessonInput{
		ClassID:     *f.ClassID,
		SubjectName: subject,
		Date:        date,
		Start:       start,
		End:         end,
		RoomNumber:  strings.TrimSpace(f.RoomNumber),
		Color:       OptionalPtr(f.Color),
		RepeatDays:  f.RepeatDays(),
	}, nil
}

// ParseClock parses "HH:MM" or "HH:MM:SS". Seconds are dropped.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return Clock{}, appErrors.ErrInvalidTime
}
