package models

import "time"

// Student represents a learner registered in the tracker.
type Student struct {
	ID         string    `db:"id" json:"id"`
	Firstname  string    `db:"firstname" json:"firstname"`
	Lastname   string    `db:"lastname" json:"lastname"`
	Generation int       `db:"generation" json:"generation"`
	Gender     string    `db:"gender" json:"gender"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// FullName joins first and last name the way the recognizer scripts
// submit it ("First Last").
func (s Student) FullName() string {
	return s.Firstname + " " + s.Lastname
}
