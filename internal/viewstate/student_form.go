package viewstate

import (
	"strings"

	"github.com/noah-isme/rollcall-api/internal/models"
	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
)

// StudentForm is the add/edit student input. BirthDate is epoch millis, 0 when unknown.
type StudentForm struct {
	ClassID      *int64 `json:"classId"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	MiddleName   string `json:"middleName"`
	BirthDate    int64  `json:"birthDate"`
	PhoneNumber  string `json:"phoneNumber"`
	HealthInfo   string `json:"healthInfo"`
	TeacherNotes string `json:"teacherNotes"`
}

// Validate rejects a form without a class or without both names.
func (f StudentForm) Validate() error {
	if f.ClassID == nil || *f.ClassID <= 0 {
		return appErrors.ErrClassRequired
	}
	if strings.TrimSpace(f.FirstName) == "" || strings.TrimSpace(f.LastName) == "" {
		return appErrors.ErrNameRequired
	}
	return nil
}

// Student builds the row to persist. Blank optional fields become absent.
func (f StudentForm) Student(id int64) models.Student {
	var classID int64
	if f.ClassID != nil {
		classID = *f.ClassID
	}
	birth := f.BirthDate
	if birth < 0 {
		birth = 0
	}
	return models.Student{
		ID:           id,
		ClassID:      classID,
		FirstName:    strings.TrimSpace(f.FirstName),
		LastName:     strings.TrimSpace(f.LastName),
		MiddleName:   Optional(f.MiddleName),
		BirthDate:    birth,
		PhoneNumber:  Optional(f.PhoneNumber),
		HealthInfo:   Optional(f.HealthInfo),
		TeacherNotes: Optional(f.TeacherNotes),
	}
}
