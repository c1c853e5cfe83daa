package models

import "time"

// Punctuality classifies an attendance event relative to a classroom's
// schedule.
type Punctuality string

const (
	PunctualityLate   Punctuality = "late"
	PunctualityOntime Punctuality = "ontime"
	PunctualityAbsent Punctuality = "absent"
	// PunctualityAuto is an input-only sentinel meaning "classify me".
	// It is never stored: the classifier always replaces it.
	PunctualityAuto Punctuality = "auto"
)

// Valid reports whether the value is an accepted input.
func (p Punctuality) Valid() bool {
	switch p {
	case PunctualityLate, PunctualityOntime, PunctualityAbsent, PunctualityAuto:
		return true
	default:
		return false
	}
}

// Storable reports whether the value may be persisted on an event.
func (p Punctuality) Storable() bool {
	return p.Valid() && p != PunctualityAuto
}

// ClassifyPunctuality computes the punctuality of an entry relative to a
// classroom schedule. Pure and total over numeric inputs.
//
// Arriving at or after the session end is absent; arriving after the late
// window (exclusive) but before the end is late; anything earlier,
// including exactly at lecture start or exactly at the window boundary,
// is ontime.
func ClassifyPunctuality(entryTime float64, s ClassSchedule) Punctuality {
	if entryTime >= s.LectureStart+s.Duration {
		return PunctualityAbsent
	}
	if entryTime > s.LectureStart+s.LatePenaltyWindow {
		return PunctualityLate
	}
	return PunctualityOntime
}

// AttendanceEvent is a single recorded entry. Punctuality is frozen at
// creation; updates may only touch LastRecord and EntryTime.
type AttendanceEvent struct {
	ID           string      `db:"id" json:"id"`
	EnrollmentID string      `db:"enrollment_id" json:"enrollment_id"`
	LastRecord   float64     `db:"last_record" json:"last_record"`
	EntryTime    float64     `db:"entry_time" json:"entry_time"`
	Punctuality  Punctuality `db:"punctuality" json:"punctuality"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// AttendanceWithStudent extends an event with the student's identity.
type AttendanceWithStudent struct {
	AttendanceEvent
	StudentID   string `db:"student_id" json:"student_id"`
	Firstname   string `db:"firstname" json:"firstname"`
	Lastname    string `db:"lastname" json:"lastname"`
	SubjectName string `db:"subject_name" json:"subject_name"`
}

// AttendanceWithClassroom extends an event with its owning classroom.
type AttendanceWithClassroom struct {
	AttendanceEvent
	ClassroomID  string  `db:"classroom_id" json:"classroom_id"`
	LecturerName string  `db:"lecturer_name" json:"lecturer_name"`
	SubjectName  string  `db:"subject_name" json:"subject_name"`
	ClassSchedule
	RecordInterval *float64 `db:"record_interval" json:"record_interval,omitempty"`
}
