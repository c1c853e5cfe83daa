package models

// AttendanceSummary is the per-student counters row. Exactly one counter
// is incremented per consolidated attendance event; MarkPermission moves
// one unit from AbsentCount to AbsentWithPermission and never drives a
// counter negative.
type AttendanceSummary struct {
	ID                   string `db:"id" json:"id"`
	StudentID            string `db:"student_id" json:"student_id"`
	AbsentCount          int    `db:"absent_count" json:"absent_count"`
	AbsentWithPermission int    `db:"absent_with_permission" json:"absent_with_permission"`
	PresentCount         int    `db:"present_count" json:"present_count"`
	LateCount            int    `db:"late_count" json:"late_count"`
}

// Total is the sum over all four buckets, i.e. the number of events ever
// consolidated for the student.
func (s AttendanceSummary) Total() int {
	return s.AbsentCount + s.AbsentWithPermission + s.PresentCount + s.LateCount
}
