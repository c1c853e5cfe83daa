package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classtrack/classtrack-api/internal/models"
)

// StudentRepository handles persistence of students and their
// zero-initialized attendance summary rows.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// Create inserts a student together with its zero-valued attendance
// summary row in one transaction, so every registered student has a
// counters row before any attendance can be consolidated.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.CreatedAt.IsZero() {
		student.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create student: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	const insertStudent = `INSERT INTO students (id, firstname, lastname, generation, gender, created_at)
        VALUES (:id, :firstname, :lastname, :generation, :gender, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertStudent, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}

	const insertSummary = `INSERT INTO attendance_summary (id, student_id, absent_count, absent_with_permission, present_count, late_count)
        VALUES ($1, $2, 0, 0, 0, 0)`
	if _, err := tx.ExecContext(ctx, insertSummary, uuid.NewString(), student.ID); err != nil {
		return fmt.Errorf("create attendance summary: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create student: %w", err)
	}
	committed = true
	return nil
}

// CreateBatch inserts several students, each with its zero-valued
// summary row, in a single transaction. Either all register or none do.
func (r *StudentRepository) CreateBatch(ctx context.Context, students []*models.Student) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create students: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	const insertStudent = `INSERT INTO students (id, firstname, lastname, generation, gender, created_at)
        VALUES (:id, :firstname, :lastname, :generation, :gender, :created_at)`
	const insertSummary = `INSERT INTO attendance_summary (id, student_id, absent_count, absent_with_permission, present_count, late_count)
        VALUES ($1, $2, 0, 0, 0, 0)`

	now := time.Now().UTC()
	for _, student := range students {
		if student.ID == "" {
			student.ID = uuid.NewString()
		}
		if student.CreatedAt.IsZero() {
			student.CreatedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, insertStudent, student); err != nil {
			return fmt.Errorf("create student %s: %w", student.FullName(), err)
		}
		if _, err := tx.ExecContext(ctx, insertSummary, uuid.NewString(), student.ID); err != nil {
			return fmt.Errorf("create attendance summary: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create students: %w", err)
	}
	committed = true
	return nil
}

// FindByID returns a student by primary key.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, firstname, lastname, generation, gender, created_at FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByName returns a student matched on first and last name.
func (r *StudentRepository) FindByName(ctx context.Context, firstname, lastname string) (*models.Student, error) {
	const query = `SELECT id, firstname, lastname, generation, gender, created_at FROM students WHERE firstname = $1 AND lastname = $2`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, firstname, lastname); err != nil {
		return nil, err
	}
	return &student, nil
}

// List returns all students ordered by name.
func (r *StudentRepository) List(ctx context.Context) ([]models.Student, error) {
	const query = `SELECT id, firstname, lastname, generation, gender, created_at FROM students ORDER BY lastname, firstname`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// UpdateGeneration updates the student's generation, the only mutable field.
func (r *StudentRepository) UpdateGeneration(ctx context.Context, id string, generation int) (int64, error) {
	const query = `UPDATE students SET generation = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, generation)
	if err != nil {
		return 0, fmt.Errorf("update student: %w", err)
	}
	return res.RowsAffected()
}

// Delete removes a student, returning the number of rows removed.
func (r *StudentRepository) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete student: %w", err)
	}
	return res.RowsAffected()
}
