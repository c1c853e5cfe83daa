package models

// Enrollment links a student to a classroom.
type Enrollment struct {
	ID        string `db:"id" json:"id"`
	ClassID   string `db:"class_id" json:"class_id"`
	StudentID string `db:"student_id" json:"student_id"`
}

// EnrollmentDetail enriches an enrollment with student identity and the
// owning classroom's schedule, resolved in one join.
type EnrollmentDetail struct {
	EnrollmentID string `db:"enrollment_id" json:"enrollment_id"`
	StudentID    string `db:"student_id" json:"student_id"`
	Firstname    string `db:"firstname" json:"firstname"`
	Lastname     string `db:"lastname" json:"lastname"`
	ClassroomID  string `db:"classroom_id" json:"classroom_id"`
	LecturerName string `db:"lecturer_name" json:"lecturer_name"`
	SubjectName  string `db:"subject_name" json:"subject_name"`
	ClassSchedule
	RecordInterval *float64 `db:"record_interval" json:"record_interval,omitempty"`
}
