package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type attendanceRepository interface {
	Record(ctx context.Context, event *models.AttendanceEvent) error
	FindByID(ctx context.Context, id string) (*models.AttendanceEvent, error)
	List(ctx context.Context, limit, offset int) ([]models.AttendanceEvent, int, error)
	ListByClassroom(ctx context.Context, classID string) ([]models.AttendanceWithStudent, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.AttendanceWithClassroom, error)
	FindBySubject(ctx context.Context, studentID, subjectName string) ([]models.AttendanceWithClassroom, error)
	Update(ctx context.Context, id string, lastRecord, entryTime float64) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
}

// RecordAttendanceRequest describes one attendance submission. The
// punctuality field only accepts the auto sentinel; the stored label
// is always derived from the classroom schedule.
type RecordAttendanceRequest struct {
	EnrollmentID string             `json:"enrollment_id" validate:"required"`
	EntryTime    float64            `json:"entry_time" validate:"gte=0"`
	LastRecord   float64            `json:"last_record" validate:"gte=0"`
	Punctuality  models.Punctuality `json:"punctuality" validate:"omitempty,punctuality"`
}

// UpdateAttendanceRequest rewrites an event's bookkeeping timestamps.
// A zero field keeps the stored value.
type UpdateAttendanceRequest struct {
	LastRecord float64 `json:"last_record" validate:"gte=0"`
	EntryTime  float64 `json:"entry_time" validate:"gte=0"`
}

// BatchItemError reports a single failed submission within a batch.
type BatchItemError struct {
	Index   int    `json:"index"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BatchRecordResult collects the outcome of a batch submission. Items
// succeed or fail independently.
type BatchRecordResult struct {
	Recorded []models.AttendanceEvent `json:"recorded"`
	Errors   []BatchItemError         `json:"errors,omitempty"`
}

// AttendanceService orchestrates attendance recording and queries.
type AttendanceService struct {
	repo      attendanceRepository
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(repo attendanceRepository, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	// Submissions may only carry the auto sentinel; the stored label is
	// always derived server-side from the classroom schedule.
	_ = validate.RegisterValidation("punctuality", func(fl validator.FieldLevel) bool {
		return models.Punctuality(fl.Field().String()) == models.PunctualityAuto
	})
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, cache: cache, metrics: metrics, validator: validate, logger: logger, now: time.Now}
}

// Record stores a single attendance event. A zero entry time is
// stamped with the server time of day and a zero last record defaults
// to the entry time. The student's cached statistics are invalidated
// because the counters moved.
func (s *AttendanceService) Record(ctx context.Context, req RecordAttendanceRequest) (*models.AttendanceEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	entryTime := req.EntryTime
	if entryTime == 0 {
		entryTime = secondsIntoDay(s.now().UTC())
	}
	lastRecord := req.LastRecord
	if lastRecord == 0 {
		lastRecord = entryTime
	}
	event := &models.AttendanceEvent{
		EnrollmentID: req.EnrollmentID,
		LastRecord:   lastRecord,
		EntryTime:    entryTime,
		Punctuality:  models.PunctualityAuto,
	}
	if err := s.repo.Record(ctx, event); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	s.metrics.RecordAttendanceEvent(event.Punctuality)
	s.cache.Invalidate(ctx, "stats:*")
	s.logger.Info("attendance recorded",
		zap.String("attendance_id", event.ID),
		zap.String("enrollment_id", event.EnrollmentID),
		zap.String("punctuality", string(event.Punctuality)))
	return event, nil
}

// RecordBatch stores each submission independently. One invalid item
// never blocks the rest; failures come back indexed against the input.
func (s *AttendanceService) RecordBatch(ctx context.Context, reqs []RecordAttendanceRequest) *BatchRecordResult {
	result := &BatchRecordResult{Recorded: make([]models.AttendanceEvent, 0, len(reqs))}
	for i, req := range reqs {
		event, err := s.Record(ctx, req)
		if err != nil {
			appErr := appErrors.FromError(err)
			result.Errors = append(result.Errors, BatchItemError{Index: i, Code: appErr.Code, Message: appErr.Message})
			continue
		}
		result.Recorded = append(result.Recorded, *event)
	}
	return result
}

// Get returns an attendance event by id.
func (s *AttendanceService) Get(ctx context.Context, id string) (*models.AttendanceEvent, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance event")
	}
	return event, nil
}

// List returns attendance events with pagination metadata.
func (s *AttendanceService) List(ctx context.Context, page, pageSize int) ([]models.AttendanceEvent, *models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	events, total, err := s.repo.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return events, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// ListByClassroom returns a classroom's events with student identities.
func (s *AttendanceService) ListByClassroom(ctx context.Context, classID string) ([]models.AttendanceWithStudent, error) {
	events, err := s.repo.ListByClassroom(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classroom attendance")
	}
	return events, nil
}

// ListByStudent returns a student's events with classroom context.
func (s *AttendanceService) ListByStudent(ctx context.Context, studentID string) ([]models.AttendanceWithClassroom, error) {
	events, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student attendance")
	}
	return events, nil
}

// BySubject returns a student's events filtered to one subject.
func (s *AttendanceService) BySubject(ctx context.Context, studentID, subjectName string) ([]models.AttendanceWithClassroom, error) {
	if subjectName == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidQuery, "subject is required")
	}
	events, err := s.repo.FindBySubject(ctx, studentID, subjectName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject attendance")
	}
	return events, nil
}

// Update rewrites the bookkeeping timestamps of an event. Zero fields
// keep the stored values; the punctuality and the counters never move.
func (s *AttendanceService) Update(ctx context.Context, id string, req UpdateAttendanceRequest) (*models.AttendanceEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	lastRecord := req.LastRecord
	if lastRecord == 0 {
		lastRecord = current.LastRecord
	}
	entryTime := req.EntryTime
	if entryTime == 0 {
		entryTime = current.EntryTime
	}
	affected, err := s.repo.Update(ctx, id, lastRecord, entryTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance")
	}
	if affected == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance event not found")
	}
	return s.Get(ctx, id)
}

// Delete removes an attendance event.
func (s *AttendanceService) Delete(ctx context.Context, id string) error {
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance")
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "attendance event not found")
	}
	return nil
}
