package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type studentRepository interface {
	Create(ctx context.Context, student *models.Student) error
	CreateBatch(ctx context.Context, students []*models.Student) error
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByName(ctx context.Context, firstname, lastname string) (*models.Student, error)
	List(ctx context.Context) ([]models.Student, error)
	UpdateGeneration(ctx context.Context, id string, generation int) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
}

// CreateStudentRequest describes the student registration payload.
type CreateStudentRequest struct {
	Firstname  string `json:"firstname" validate:"required"`
	Lastname   string `json:"lastname" validate:"required"`
	Generation int    `json:"generation" validate:"required,gt=0"`
	Gender     string `json:"gender" validate:"required,oneof=M F"`
}

// UpdateStudentRequest carries the single mutable student field.
type UpdateStudentRequest struct {
	Generation int `json:"generation" validate:"required,gt=0"`
}

// StudentService orchestrates the student registry.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// Create registers a student. A student with the same first and last
// name is rejected as a duplicate.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if _, err := s.repo.FindByName(ctx, req.Firstname, req.Lastname); err == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateEntry, "student already registered")
	} else if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student")
	}
	student := &models.Student{
		Firstname:  req.Firstname,
		Lastname:   req.Lastname,
		Generation: req.Generation,
		Gender:     req.Gender,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.logger.Info("student registered", zap.String("student_id", student.ID))
	return student, nil
}

// CreateBatch registers several students atomically. Any invalid or
// duplicate entry rejects the whole batch before anything is written.
func (s *StudentService) CreateBatch(ctx context.Context, reqs []CreateStudentRequest) ([]models.Student, error) {
	if len(reqs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "empty student batch")
	}
	students := make([]*models.Student, 0, len(reqs))
	for _, req := range reqs {
		if err := s.validator.Struct(req); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
		}
		if _, err := s.repo.FindByName(ctx, req.Firstname, req.Lastname); err == nil {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEntry, "student already registered: "+req.Firstname+" "+req.Lastname)
		} else if err != sql.ErrNoRows {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student")
		}
		students = append(students, &models.Student{
			Firstname:  req.Firstname,
			Lastname:   req.Lastname,
			Generation: req.Generation,
			Gender:     req.Gender,
		})
	}
	if err := s.repo.CreateBatch(ctx, students); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create students")
	}
	created := make([]models.Student, 0, len(students))
	for _, st := range students {
		created = append(created, *st)
	}
	s.logger.Info("students registered", zap.Int("count", len(created)))
	return created, nil
}

// GetByName returns a student matched on first and last name.
func (s *StudentService) GetByName(ctx context.Context, firstname, lastname string) (*models.Student, error) {
	student, err := s.repo.FindByName(ctx, firstname, lastname)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Get returns a student by id.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// List returns all students.
func (s *StudentService) List(ctx context.Context) ([]models.Student, error) {
	students, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

// UpdateGeneration changes the student's generation.
func (s *StudentService) UpdateGeneration(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	affected, err := s.repo.UpdateGeneration(ctx, id, req.Generation)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	if affected == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return s.Get(ctx, id)
}

// Delete removes a student.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return nil
}
