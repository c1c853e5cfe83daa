package models

import "time"

// ClassSchedule is a classroom's timing configuration. All values are
// seconds: LectureStart is epoch seconds of the nominal lecture start,
// Duration the session length, LatePenaltyWindow the grace period after
// start during which arrival still counts as late rather than absent.
type ClassSchedule struct {
	LectureStart      float64 `db:"lecture_start" json:"lecture_start"`
	Duration          float64 `db:"duration" json:"duration"`
	LatePenaltyWindow float64 `db:"late_penalty_window" json:"late_penalty_window"`
}

// Classroom owns a schedule plus lecturer/subject metadata.
type Classroom struct {
	ID           string   `db:"id" json:"id"`
	LecturerName string   `db:"lecturer_name" json:"lecturer_name"`
	SubjectName  string   `db:"subject_name" json:"subject_name"`
	ClassSchedule
	// RecordInterval is the minimum gap, in seconds, between two camera
	// sightings of the same face before a new entry event is submitted.
	RecordInterval *float64  `db:"record_interval" json:"record_interval,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
