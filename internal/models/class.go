package models

// SchoolClass is a persisted class row.
type SchoolClass struct {
	ID          int64   `db:"class_id" json:"id"`
	Name        string  `db:"name" json:"name"`
	Description *string `db:"description" json:"description,omitempty"`
}

// ClassOverview is a class with its student count and the first students by last name.
type ClassOverview struct {
	SchoolClass
	StudentCount    int              `json:"studentCount"`
	PreviewStudents []StudentPreview `json:"previewStudents"`
}

// ClassDetail is a class with its full, last-name ordered student list.
type ClassDetail struct {
	SchoolClass
	StudentCount int              `json:"studentCount"`
	Students     []StudentPreview `json:"students"`
}

// ClassPreviewRow is one row of the windowed preview query.
type ClassPreviewRow struct {
	ClassID     int64   `db:"class_id"`
	StudentID   int64   `db:"student_id"`
	FirstName   string  `db:"first_name"`
	LastName    string  `db:"last_name"`
	BirthDate   int64   `db:"birth_date"`
	PhoneNumber *string `db:"phone_number"`
	PhotoURL    *string `db:"photo_url"`
}

// ClassCountRow pairs a class with its current student count.
type ClassCountRow struct {
	SchoolClass
	StudentCount int `db:"student_count"`
}
