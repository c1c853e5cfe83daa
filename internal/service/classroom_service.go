package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type classroomRepository interface {
	Create(ctx context.Context, classroom *models.Classroom) error
	CreateBatch(ctx context.Context, classrooms []*models.Classroom) error
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
	List(ctx context.Context) ([]models.Classroom, error)
	Update(ctx context.Context, classroom *models.Classroom) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
}

// CreateClassroomRequest describes the classroom creation payload.
// LectureStart and the other schedule fields are seconds from the
// epoch offset shared with attendance entry times.
type CreateClassroomRequest struct {
	LecturerName      string   `json:"lecturer_name" validate:"required"`
	SubjectName       string   `json:"subject_name" validate:"required"`
	Duration          float64  `json:"duration" validate:"required,gt=0"`
	LectureStart      float64  `json:"lecture_start" validate:"gte=0"`
	LatePenaltyWindow float64  `json:"late_penalty_window" validate:"gte=0"`
	RecordInterval    *float64 `json:"record_interval" validate:"omitempty,gt=0"`
}

// UpdateClassroomRequest carries the mutable classroom fields.
type UpdateClassroomRequest struct {
	SubjectName       string   `json:"subject_name" validate:"required"`
	Duration          float64  `json:"duration" validate:"required,gt=0"`
	LectureStart      float64  `json:"lecture_start" validate:"gte=0"`
	LatePenaltyWindow float64  `json:"late_penalty_window" validate:"gte=0"`
	RecordInterval    *float64 `json:"record_interval" validate:"omitempty,gt=0"`
}

// ClassroomService orchestrates the classroom registry.
type ClassroomService struct {
	repo      classroomRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewClassroomService constructs ClassroomService.
func NewClassroomService(repo classroomRepository, validate *validator.Validate, logger *zap.Logger) *ClassroomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassroomService{repo: repo, validator: validate, logger: logger, now: time.Now}
}

// secondsIntoDay converts a wall clock into the schedule offset unit.
func secondsIntoDay(t time.Time) float64 {
	h, m, s := t.Clock()
	return float64(h*3600 + m*60 + s)
}

// Create registers a classroom. A zero lecture start means the lecture
// starts now, so the current server time of day is recorded.
func (s *ClassroomService) Create(ctx context.Context, req CreateClassroomRequest) (*models.Classroom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classroom payload")
	}
	start := req.LectureStart
	if start == 0 {
		start = secondsIntoDay(s.now().UTC())
	}
	classroom := &models.Classroom{
		LecturerName: req.LecturerName,
		SubjectName:  req.SubjectName,
		ClassSchedule: models.ClassSchedule{
			LectureStart:      start,
			Duration:          req.Duration,
			LatePenaltyWindow: req.LatePenaltyWindow,
		},
		RecordInterval: req.RecordInterval,
	}
	if err := s.repo.Create(ctx, classroom); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create classroom")
	}
	s.logger.Info("classroom created", zap.String("classroom_id", classroom.ID), zap.String("subject", classroom.SubjectName))
	return classroom, nil
}

// CreateBatch registers several classrooms atomically. Zero lecture
// starts default to the same server time of day for the whole batch.
func (s *ClassroomService) CreateBatch(ctx context.Context, reqs []CreateClassroomRequest) ([]models.Classroom, error) {
	if len(reqs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "empty classroom batch")
	}
	fallbackStart := secondsIntoDay(s.now().UTC())
	classrooms := make([]*models.Classroom, 0, len(reqs))
	for _, req := range reqs {
		if err := s.validator.Struct(req); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classroom payload")
		}
		start := req.LectureStart
		if start == 0 {
			start = fallbackStart
		}
		classrooms = append(classrooms, &models.Classroom{
			LecturerName: req.LecturerName,
			SubjectName:  req.SubjectName,
			ClassSchedule: models.ClassSchedule{
				LectureStart:      start,
				Duration:          req.Duration,
				LatePenaltyWindow: req.LatePenaltyWindow,
			},
			RecordInterval: req.RecordInterval,
		})
	}
	if err := s.repo.CreateBatch(ctx, classrooms); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create classrooms")
	}
	created := make([]models.Classroom, 0, len(classrooms))
	for _, cr := range classrooms {
		created = append(created, *cr)
	}
	s.logger.Info("classrooms created", zap.Int("count", len(created)))
	return created, nil
}

// Get returns a classroom by id.
func (s *ClassroomService) Get(ctx context.Context, id string) (*models.Classroom, error) {
	classroom, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	return classroom, nil
}

// List returns all classrooms.
func (s *ClassroomService) List(ctx context.Context) ([]models.Classroom, error) {
	classrooms, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classrooms")
	}
	return classrooms, nil
}

// Update rewrites the schedule of an existing classroom. Events already
// recorded keep the punctuality they were classified with.
func (s *ClassroomService) Update(ctx context.Context, id string, req UpdateClassroomRequest) (*models.Classroom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classroom payload")
	}
	classroom, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	classroom.SubjectName = req.SubjectName
	classroom.Duration = req.Duration
	if req.LectureStart > 0 {
		classroom.LectureStart = req.LectureStart
	}
	classroom.LatePenaltyWindow = req.LatePenaltyWindow
	classroom.RecordInterval = req.RecordInterval
	affected, err := s.repo.Update(ctx, classroom)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update classroom")
	}
	if affected == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
	}
	return classroom, nil
}

// Delete removes a classroom.
func (s *ClassroomService) Delete(ctx context.Context, id string) error {
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete classroom")
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
	}
	return nil
}
