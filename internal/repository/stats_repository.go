package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

// StatsRepository handles the per-student attendance counters.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository constructs the repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

const summaryColumns = `id, student_id, absent_count, absent_with_permission, present_count, late_count`

// FindByStudent returns the counter row for a student.
func (r *StatsRepository) FindByStudent(ctx context.Context, studentID string) (*models.AttendanceSummary, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_summary WHERE student_id = $1`, summaryColumns)
	var summary models.AttendanceSummary
	if err := r.db.GetContext(ctx, &summary, query, studentID); err != nil {
		return nil, err
	}
	return &summary, nil
}

// List returns every counter row.
func (r *StatsRepository) List(ctx context.Context) ([]models.AttendanceSummary, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_summary`, summaryColumns)
	var summaries []models.AttendanceSummary
	if err := r.db.SelectContext(ctx, &summaries, query); err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	return summaries, nil
}

// MarkPermission moves one absence of the event's student into the
// excused bucket. The update is guarded so the absent counter can
// never go negative; when the guard blocks an otherwise valid call the
// operation is a no-op that still reports true. A zero-row update is
// disambiguated by follow-up probes: a missing attendance event or a
// missing counters row each yield ErrNotFound.
func (r *StatsRepository) MarkPermission(ctx context.Context, attendanceID string) (bool, error) {
	const query = `UPDATE attendance_summary
        SET absent_count = absent_count - 1, absent_with_permission = absent_with_permission + 1
        WHERE absent_count > 0 AND student_id = (
            SELECT e.student_id FROM attendance a
            JOIN enrollments e ON e.id = a.enrollment_id
            WHERE a.id = $1
        )`
	res, err := r.db.ExecContext(ctx, query, attendanceID)
	if err != nil {
		return false, fmt.Errorf("mark permission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark permission: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	var studentID string
	const ownerQuery = `SELECT e.student_id FROM attendance a
        JOIN enrollments e ON e.id = a.enrollment_id
        WHERE a.id = $1`
	err = r.db.GetContext(ctx, &studentID, ownerQuery, attendanceID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, appErrors.Clone(appErrors.ErrNotFound, "attendance event not found")
		}
		return false, fmt.Errorf("mark permission: %w", err)
	}

	var one int
	err = r.db.GetContext(ctx, &one, `SELECT 1 FROM attendance_summary WHERE student_id = $1`, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, appErrors.Clone(appErrors.ErrNotFound, "attendance summary not found")
		}
		return false, fmt.Errorf("mark permission: %w", err)
	}

	// counters row exists with no unexcused absence left
	return true, nil
}

// Consolidate bumps the counter matching the punctuality for the
// student owning the attendance event, in one atomic statement.
// Recording already consolidates inline; this re-points a counter for
// events that reached the table through some other path. A missing
// attendance event or counters row yields ErrNotFound.
func (r *StatsRepository) Consolidate(ctx context.Context, attendanceID string, punctuality models.Punctuality) error {
	column := counterColumn(punctuality)
	query := fmt.Sprintf(`UPDATE attendance_summary AS s
        SET %s = s.%s + 1
        FROM attendance a
        JOIN enrollments e ON e.id = a.enrollment_id
        WHERE a.id = $1 AND s.student_id = e.student_id`, column, column)
	res, err := r.db.ExecContext(ctx, query, attendanceID)
	if err != nil {
		return fmt.Errorf("consolidate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consolidate: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var one int
	err = r.db.GetContext(ctx, &one, `SELECT 1 FROM attendance WHERE id = $1`, attendanceID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "attendance event not found")
		}
		return fmt.Errorf("consolidate: %w", err)
	}
	return appErrors.Clone(appErrors.ErrNotFound, "attendance summary not found")
}
