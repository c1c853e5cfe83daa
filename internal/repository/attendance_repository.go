package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

// AttendanceRepository handles persistence of attendance events and
// keeps the per-student counters in step with the event stream.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// counterColumn maps a stored punctuality to the summary column it bumps.
func counterColumn(p models.Punctuality) string {
	switch p {
	case models.PunctualityLate:
		return "late_count"
	case models.PunctualityOntime:
		return "present_count"
	default:
		return "absent_count"
	}
}

// Record inserts a single attendance event and bumps the owning
// student's counter in the same transaction. The punctuality is
// classified here against the classroom schedule so the stored label
// and the counter can never disagree. An unknown enrollment yields
// ErrInvalidReference without touching the database.
func (r *AttendanceRepository) Record(ctx context.Context, event *models.AttendanceEvent) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record tx: %w", err)
	}
	defer tx.Rollback()

	var ref struct {
		models.ClassSchedule
		StudentID string `db:"student_id"`
	}
	const refQuery = `SELECT c.lecture_start, c.duration, c.late_penalty_window, e.student_id
        FROM enrollments e
        JOIN classrooms c ON c.id = e.class_id
        WHERE e.id = $1`
	if err := tx.GetContext(ctx, &ref, refQuery, event.EnrollmentID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrInvalidReference, "enrollment not found")
		}
		return fmt.Errorf("resolve enrollment: %w", err)
	}

	event.Punctuality = models.ClassifyPunctuality(event.EntryTime, ref.ClassSchedule)

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now

	const insertQuery = `INSERT INTO attendance (id, enrollment_id, last_record, entry_time, punctuality, created_at, updated_at)
        VALUES (:id, :enrollment_id, :last_record, :entry_time, :punctuality, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, event); err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}

	column := counterColumn(event.Punctuality)
	bumpQuery := fmt.Sprintf(`UPDATE attendance_summary SET %s = %s + 1 WHERE student_id = $1`, column, column)
	res, err := tx.ExecContext(ctx, bumpQuery, ref.StudentID)
	if err != nil {
		return fmt.Errorf("bump counter: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump counter: %w", err)
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "attendance summary not found")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record tx: %w", err)
	}
	return nil
}

// FindByID returns an attendance event by its ID.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.AttendanceEvent, error) {
	const query = `SELECT id, enrollment_id, last_record, entry_time, punctuality, created_at, updated_at
        FROM attendance WHERE id = $1`
	var event models.AttendanceEvent
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// List returns attendance events newest first, paginated.
func (r *AttendanceRepository) List(ctx context.Context, limit, offset int) ([]models.AttendanceEvent, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM attendance`); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}

	const query = `SELECT id, enrollment_id, last_record, entry_time, punctuality, created_at, updated_at
        FROM attendance ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	var events []models.AttendanceEvent
	if err := r.db.SelectContext(ctx, &events, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}
	return events, total, nil
}

// ListByClassroom returns a classroom's attendance events with the
// student identity attached, newest first.
func (r *AttendanceRepository) ListByClassroom(ctx context.Context, classID string) ([]models.AttendanceWithStudent, error) {
	const query = `SELECT a.id, a.enrollment_id, a.last_record, a.entry_time, a.punctuality, a.created_at, a.updated_at,
        s.id AS student_id, s.firstname, s.lastname, c.subject_name
        FROM attendance a
        JOIN enrollments e ON e.id = a.enrollment_id
        JOIN students s ON s.id = e.student_id
        JOIN classrooms c ON c.id = e.class_id
        WHERE e.class_id = $1
        ORDER BY a.created_at DESC`
	var events []models.AttendanceWithStudent
	if err := r.db.SelectContext(ctx, &events, query, classID); err != nil {
		return nil, fmt.Errorf("list classroom attendance: %w", err)
	}
	return events, nil
}

// ListByStudent returns a student's attendance events with the
// classroom context attached, newest first.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID string) ([]models.AttendanceWithClassroom, error) {
	const query = `SELECT a.id, a.enrollment_id, a.last_record, a.entry_time, a.punctuality, a.created_at, a.updated_at,
        c.id AS classroom_id, c.lecturer_name, c.subject_name, c.duration, c.lecture_start, c.late_penalty_window, c.record_interval
        FROM attendance a
        JOIN enrollments e ON e.id = a.enrollment_id
        JOIN classrooms c ON c.id = e.class_id
        WHERE e.student_id = $1
        ORDER BY a.created_at DESC`
	var events []models.AttendanceWithClassroom
	if err := r.db.SelectContext(ctx, &events, query, studentID); err != nil {
		return nil, fmt.Errorf("list student attendance: %w", err)
	}
	return events, nil
}

// FindBySubject returns a student's attendance for one subject,
// matched by subject name.
func (r *AttendanceRepository) FindBySubject(ctx context.Context, studentID, subjectName string) ([]models.AttendanceWithClassroom, error) {
	const query = `SELECT a.id, a.enrollment_id, a.last_record, a.entry_time, a.punctuality, a.created_at, a.updated_at,
        c.id AS classroom_id, c.lecturer_name, c.subject_name, c.duration, c.lecture_start, c.late_penalty_window, c.record_interval
        FROM attendance a
        JOIN enrollments e ON e.id = a.enrollment_id
        JOIN classrooms c ON c.id = e.class_id
        WHERE e.student_id = $1 AND c.subject_name = $2
        ORDER BY a.created_at DESC`
	var events []models.AttendanceWithClassroom
	if err := r.db.SelectContext(ctx, &events, query, studentID, subjectName); err != nil {
		return nil, fmt.Errorf("find attendance by subject: %w", err)
	}
	return events, nil
}

// Update rewrites an event's bookkeeping timestamps. The stored
// punctuality is left untouched.
func (r *AttendanceRepository) Update(ctx context.Context, id string, lastRecord, entryTime float64) (int64, error) {
	const query = `UPDATE attendance SET last_record = $1, entry_time = $2, updated_at = $3 WHERE id = $4`
	res, err := r.db.ExecContext(ctx, query, lastRecord, entryTime, time.Now().UTC(), id)
	if err != nil {
		return 0, fmt.Errorf("update attendance: %w", err)
	}
	return res.RowsAffected()
}

// Delete removes an attendance event. Counters are not rolled back;
// historical corrections go through the per-event consolidate endpoint.
func (r *AttendanceRepository) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete attendance: %w", err)
	}
	return res.RowsAffected()
}
