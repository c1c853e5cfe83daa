package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classtrack/classtrack-api/internal/models"
)

// ClassroomRepository handles persistence of classrooms.
type ClassroomRepository struct {
	db *sqlx.DB
}

// NewClassroomRepository constructs the repository.
func NewClassroomRepository(db *sqlx.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// Create persists a new classroom.
func (r *ClassroomRepository) Create(ctx context.Context, classroom *models.Classroom) error {
	now := time.Now().UTC()
	if classroom.ID == "" {
		classroom.ID = uuid.NewString()
	}
	if classroom.CreatedAt.IsZero() {
		classroom.CreatedAt = now
	}
	classroom.UpdatedAt = now

	const query = `INSERT INTO classrooms (id, lecturer_name, subject_name, duration, lecture_start, late_penalty_window, record_interval, created_at, updated_at)
        VALUES (:id, :lecturer_name, :subject_name, :duration, :lecture_start, :late_penalty_window, :record_interval, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, classroom); err != nil {
		return fmt.Errorf("create classroom: %w", err)
	}
	return nil
}

// CreateBatch persists several classrooms in a single transaction.
func (r *ClassroomRepository) CreateBatch(ctx context.Context, classrooms []*models.Classroom) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create classrooms: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	const query = `INSERT INTO classrooms (id, lecturer_name, subject_name, duration, lecture_start, late_penalty_window, record_interval, created_at, updated_at)
        VALUES (:id, :lecturer_name, :subject_name, :duration, :lecture_start, :late_penalty_window, :record_interval, :created_at, :updated_at)`

	now := time.Now().UTC()
	for _, classroom := range classrooms {
		if classroom.ID == "" {
			classroom.ID = uuid.NewString()
		}
		if classroom.CreatedAt.IsZero() {
			classroom.CreatedAt = now
		}
		classroom.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, classroom); err != nil {
			return fmt.Errorf("create classroom %s: %w", classroom.SubjectName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create classrooms: %w", err)
	}
	committed = true
	return nil
}

// FindByID returns a classroom by primary key.
func (r *ClassroomRepository) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	const query = `SELECT id, lecturer_name, subject_name, duration, lecture_start, late_penalty_window, record_interval, created_at, updated_at
        FROM classrooms WHERE id = $1`
	var classroom models.Classroom
	if err := r.db.GetContext(ctx, &classroom, query, id); err != nil {
		return nil, err
	}
	return &classroom, nil
}

// List returns all classrooms ordered by subject.
func (r *ClassroomRepository) List(ctx context.Context) ([]models.Classroom, error) {
	const query = `SELECT id, lecturer_name, subject_name, duration, lecture_start, late_penalty_window, record_interval, created_at, updated_at
        FROM classrooms ORDER BY subject_name`
	var classrooms []models.Classroom
	if err := r.db.SelectContext(ctx, &classrooms, query); err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}
	return classrooms, nil
}

// Update overwrites the mutable fields of a classroom. Lecturer name is
// fixed at creation.
func (r *ClassroomRepository) Update(ctx context.Context, classroom *models.Classroom) (int64, error) {
	classroom.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classrooms
        SET subject_name = :subject_name,
            duration = :duration,
            lecture_start = :lecture_start,
            late_penalty_window = :late_penalty_window,
            record_interval = :record_interval,
            updated_at = :updated_at
        WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, classroom)
	if err != nil {
		return 0, fmt.Errorf("update classroom: %w", err)
	}
	return res.RowsAffected()
}

// Delete removes a classroom, returning the number of rows removed.
func (r *ClassroomRepository) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM classrooms WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete classroom: %w", err)
	}
	return res.RowsAffected()
}
