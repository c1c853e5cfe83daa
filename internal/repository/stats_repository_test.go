package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

func newStatsMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestStatsRepositoryFindByStudent(t *testing.T) {
	db, mock, cleanup := newStatsMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "absent_count", "absent_with_permission", "present_count", "late_count"}).
		AddRow("sum1", "s1", 2, 1, 10, 3)
	mock.ExpectQuery("SELECT id, student_id, absent_count, absent_with_permission, present_count, late_count").
		WithArgs("s1").
		WillReturnRows(rows)

	summary, err := repo.FindByStudent(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.AbsentCount)
	assert.Equal(t, 16, summary.Total())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsRepositoryMarkPermission(t *testing.T) {
	db, mock, cleanup := newStatsMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)

	mock.ExpectExec("UPDATE attendance_summary").
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.MarkPermission(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsRepositoryMarkPermissionGuardedNoop(t *testing.T) {
	db, mock, cleanup := newStatsMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)

	mock.ExpectExec("UPDATE attendance_summary").
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT e.student_id FROM attendance a").
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow("s1"))
	mock.ExpectQuery("SELECT 1 FROM attendance_summary WHERE student_id").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	applied, err := repo.MarkPermission(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsRepositoryMarkPermissionUnknownEvent(t *testing.T) {
	db, mock, cleanup := newStatsMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)

	mock.ExpectExec("UPDATE attendance_summary").
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT e.student_id FROM attendance a").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}))

	_, err := repo.MarkPermission(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsRepositoryMarkPermissionMissingSummary(t *testing.T) {
	db, mock, cleanup := newStatsMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)

	mock.ExpectExec("UPDATE attendance_summary").
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT e.student_id FROM attendance a").
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow("s1"))
	mock.ExpectQuery("SELECT 1 FROM attendance_summary WHERE student_id").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	_, err := repo.MarkPermission(context.Background(), "a1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsRepositoryConsolidate(t *testing.T) {
	db, mock, cleanup := newStatsMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)

	mock.ExpectExec("(?s)UPDATE attendance_summary AS s.*late_count").
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Consolidate(context.Background(), "a1", models.PunctualityLate)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsRepositoryConsolidateAutoCountsAbsent(t *testing.T) {
	db, mock, cleanup := newStatsMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)

	mock.ExpectExec("(?s)UPDATE attendance_summary AS s.*absent_count").
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Consolidate(context.Background(), "a1", models.PunctualityAuto)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsRepositoryConsolidateUnknownEvent(t *testing.T) {
	db, mock, cleanup := newStatsMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)

	mock.ExpectExec("UPDATE attendance_summary AS s").
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM attendance WHERE id = $1")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	err := repo.Consolidate(context.Background(), "ghost", models.PunctualityOntime)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsRepositoryConsolidateMissingSummary(t *testing.T) {
	db, mock, cleanup := newStatsMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)

	mock.ExpectExec("UPDATE attendance_summary AS s").
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM attendance WHERE id = $1")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	err := repo.Consolidate(context.Background(), "a1", models.PunctualityOntime)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
