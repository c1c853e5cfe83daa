package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = "new-enroll"
	}
	m.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if e, ok := m.enrollments[id]; ok {
		return &models.EnrollmentDetail{EnrollmentID: e.ID, StudentID: e.StudentID, ClassroomID: e.ClassID}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) List(ctx context.Context) ([]models.Enrollment, error) {
	var list []models.Enrollment
	for _, e := range m.enrollments {
		list = append(list, e)
	}
	return list, nil
}

func (m *mockEnrollmentRepo) ListByClass(ctx context.Context, classID string) ([]models.Enrollment, error) {
	var list []models.Enrollment
	for _, e := range m.enrollments {
		if e.ClassID == classID {
			list = append(list, e)
		}
	}
	return list, nil
}

func (m *mockEnrollmentRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	var list []models.Enrollment
	for _, e := range m.enrollments {
		if e.StudentID == studentID {
			list = append(list, e)
		}
	}
	return list, nil
}

func (m *mockEnrollmentRepo) Delete(ctx context.Context, classID, studentID string) (int64, error) {
	for id, e := range m.enrollments {
		if e.ClassID == classID && e.StudentID == studentID {
			delete(m.enrollments, id)
			return 1, nil
		}
	}
	return 0, nil
}

type mockStudentReader struct {
	students map[string]models.Student
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type mockClassroomReader struct {
	classrooms map[string]models.Classroom
}

func (m *mockClassroomReader) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	if c, ok := m.classrooms[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func newEnrollmentService(repo *mockEnrollmentRepo) *EnrollmentService {
	students := &mockStudentReader{students: map[string]models.Student{"s1": {ID: "s1"}}}
	classrooms := &mockClassroomReader{classrooms: map[string]models.Classroom{"c1": {ID: "c1"}}}
	return NewEnrollmentService(repo, students, classrooms, nil, nil)
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	svc := newEnrollmentService(repo)

	enrollment, err := svc.Enroll(context.Background(), EnrollRequest{ClassID: "c1", StudentID: "s1"})
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.ID)
	assert.Len(t, repo.enrollments, 1)
}

func TestEnrollmentServiceEnrollUnknownStudent(t *testing.T) {
	svc := newEnrollmentService(&mockEnrollmentRepo{})

	_, err := svc.Enroll(context.Background(), EnrollRequest{ClassID: "c1", StudentID: "ghost"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidReference.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollUnknownClassroom(t *testing.T) {
	svc := newEnrollmentService(&mockEnrollmentRepo{})

	_, err := svc.Enroll(context.Background(), EnrollRequest{ClassID: "ghost", StudentID: "s1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidReference.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollDuplicate(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	svc := newEnrollmentService(repo)

	_, err := svc.Enroll(context.Background(), EnrollRequest{ClassID: "c1", StudentID: "s1"})
	require.NoError(t, err)

	_, err = svc.Enroll(context.Background(), EnrollRequest{ClassID: "c1", StudentID: "s1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateEntry.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceUnenroll(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", ClassID: "c1", StudentID: "s1"},
	}}
	svc := newEnrollmentService(repo)

	require.NoError(t, svc.Unenroll(context.Background(), "c1", "s1"))

	err := svc.Unenroll(context.Background(), "c1", "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
