package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type statsRepository interface {
	FindByStudent(ctx context.Context, studentID string) (*models.AttendanceSummary, error)
	List(ctx context.Context) ([]models.AttendanceSummary, error)
	MarkPermission(ctx context.Context, attendanceID string) (bool, error)
	Consolidate(ctx context.Context, attendanceID string, punctuality models.Punctuality) error
}

// StatsService serves the per-student attendance counters.
type StatsService struct {
	repo   statsRepository
	cache  *CacheService
	logger *zap.Logger
}

// NewStatsService constructs StatsService.
func NewStatsService(repo statsRepository, cache *CacheService, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{repo: repo, cache: cache, logger: logger}
}

func statsCacheKey(studentID string) string {
	return fmt.Sprintf("stats:%s", studentID)
}

// GetByStudent returns a student's counters, from cache when possible.
func (s *StatsService) GetByStudent(ctx context.Context, studentID string) (*models.AttendanceSummary, error) {
	var cached models.AttendanceSummary
	if s.cache.Get(ctx, statsCacheKey(studentID), &cached) {
		return &cached, nil
	}
	summary, err := s.repo.FindByStudent(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load statistics")
	}
	s.cache.Set(ctx, statsCacheKey(studentID), summary, 0)
	return summary, nil
}

// List returns the counters of every student.
func (s *StatsService) List(ctx context.Context) ([]models.AttendanceSummary, error) {
	summaries, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list statistics")
	}
	return summaries, nil
}

// MarkPermission excuses the absence behind one attendance event. The
// returned bool is true both when a unit moved and when the guard made
// the call a no-op; a missing event or counters row is an error.
func (s *StatsService) MarkPermission(ctx context.Context, attendanceID string) (bool, error) {
	applied, err := s.repo.MarkPermission(ctx, attendanceID)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return false, appErr
		}
		if err == sql.ErrNoRows {
			return false, appErrors.Clone(appErrors.ErrNotFound, "attendance event not found")
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark permission")
	}
	s.cache.Invalidate(ctx, "stats:*")
	s.logger.Info("absence excused", zap.String("attendance_id", attendanceID))
	return applied, nil
}

// Consolidate bumps one counter for the student owning the attendance
// event. Recording already consolidates inline; this re-points a
// counter for an event ingested through some other path. An empty
// punctuality falls back to auto, which counts as absent.
func (s *StatsService) Consolidate(ctx context.Context, attendanceID string, punctuality models.Punctuality) error {
	if punctuality == "" {
		punctuality = models.PunctualityAuto
	}
	switch punctuality {
	case models.PunctualityAuto, models.PunctualityOntime, models.PunctualityLate, models.PunctualityAbsent:
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown punctuality")
	}
	if err := s.repo.Consolidate(ctx, attendanceID, punctuality); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to consolidate attendance")
	}
	s.cache.Invalidate(ctx, "stats:*")
	s.logger.Info("attendance consolidated",
		zap.String("attendance_id", attendanceID),
		zap.String("punctuality", string(punctuality)))
	return nil
}
