package models

// Student is a persisted student row. BirthDate is epoch millis, 0 when unknown.
type Student struct {
	ID           int64   `db:"student_id" json:"id"`
	ClassID      int64   `db:"class_id" json:"classId"`
	FirstName    string  `db:"first_name" json:"firstName"`
	LastName     string  `db:"last_name" json:"lastName"`
	MiddleName   *string `db:"middle_name" json:"middleName,omitempty"`
	BirthDate    int64   `db:"birth_date" json:"birthDate"`
	PhoneNumber  *string `db:"phone_number" json:"phoneNumber,omitempty"`
	ParentPhone  *string `db:"parent_phone" json:"parentPhone,omitempty"`
	PhotoURL     *string `db:"photo_url" json:"photoUrl,omitempty"`
	HealthInfo   *string `db:"health_info" json:"healthInfo,omitempty"`
	TeacherNotes *string `db:"teacher_notes" json:"teacherNotes,omitempty"`
}

// StudentWithClass joins a student row with its class name.
type StudentWithClass struct {
	Student
	ClassName string `db:"class_name" json:"className"`
}

// StudentProfile is the full student view with derived age.
type StudentProfile struct {
	Student
	ClassName string `json:"className"`
	Age       int    `json:"age"`
}

// StudentPreview is the compact student view used inside class listings.
type StudentPreview struct {
	ID          int64   `json:"id"`
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	Age         int     `json:"age"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
	PhotoURL    *string `json:"photoUrl,omitempty"`
}

// StudentListItem is one entry of the roster directory.
type StudentListItem struct {
	ID        int64   `db:"student_id" json:"id"`
	ClassID   int64   `db:"class_id" json:"classId"`
	FirstName string  `db:"first_name" json:"firstName"`
	LastName  string  `db:"last_name" json:"lastName"`
	ClassName string  `db:"class_name" json:"className"`
	PhotoURL  *string `db:"photo_url" json:"photoUrl,omitempty"`
}

// StudentGroup collects directory entries sharing the first letter of the last name.
type StudentGroup struct {
	Letter   string            `json:"letter"`
	Students []StudentListItem `json:"students"`
}
