package models

// Subject is a persisted subject row. Names are unique by lookup-or-create.
type Subject struct {
	ID   int64  `db:"subject_id" json:"id"`
	Name string `db:"name" json:"name"`
}
