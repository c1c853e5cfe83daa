package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type mockStudentRepo struct {
	students map[string]models.Student
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.students == nil {
		m.students = make(map[string]models.Student)
	}
	if student.ID == "" {
		student.ID = "new-student"
	}
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) CreateBatch(ctx context.Context, students []*models.Student) error {
	for i, student := range students {
		if student.ID == "" {
			student.ID = fmt.Sprintf("batch-student-%d", i)
		}
		if err := m.Create(ctx, student); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) FindByName(ctx context.Context, firstname, lastname string) (*models.Student, error) {
	for _, s := range m.students {
		if s.Firstname == firstname && s.Lastname == lastname {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) List(ctx context.Context) ([]models.Student, error) {
	var list []models.Student
	for _, s := range m.students {
		list = append(list, s)
	}
	return list, nil
}

func (m *mockStudentRepo) UpdateGeneration(ctx context.Context, id string, generation int) (int64, error) {
	if s, ok := m.students[id]; ok {
		s.Generation = generation
		m.students[id] = s
		return 1, nil
	}
	return 0, nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id string) (int64, error) {
	if _, ok := m.students[id]; !ok {
		return 0, nil
	}
	delete(m.students, id)
	return 1, nil
}

func TestStudentServiceCreate(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := NewStudentService(repo, nil, nil)

	student, err := svc.Create(context.Background(), CreateStudentRequest{Firstname: "Ada", Lastname: "Lovelace", Generation: 2024, Gender: "F"})
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
}

func TestStudentServiceCreateDuplicateName(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := NewStudentService(repo, nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{Firstname: "Ada", Lastname: "Lovelace", Generation: 2024, Gender: "F"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateStudentRequest{Firstname: "Ada", Lastname: "Lovelace", Generation: 2025, Gender: "F"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateEntry.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateBatch(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := NewStudentService(repo, nil, nil)

	created, err := svc.CreateBatch(context.Background(), []CreateStudentRequest{
		{Firstname: "Ada", Lastname: "Lovelace", Generation: 2024, Gender: "F"},
		{Firstname: "Alan", Lastname: "Turing", Generation: 2024, Gender: "M"},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.NotEqual(t, created[0].ID, created[1].ID)
	assert.Len(t, repo.students, 2)
}

func TestStudentServiceCreateBatchDuplicateAborts(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", Firstname: "Ada", Lastname: "Lovelace", Generation: 2024, Gender: "F"},
	}}
	svc := NewStudentService(repo, nil, nil)

	_, err := svc.CreateBatch(context.Background(), []CreateStudentRequest{
		{Firstname: "Alan", Lastname: "Turing", Generation: 2024, Gender: "M"},
		{Firstname: "Ada", Lastname: "Lovelace", Generation: 2025, Gender: "F"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateEntry.Code, appErrors.FromError(err).Code)
	assert.Len(t, repo.students, 1)
}

func TestStudentServiceGetByName(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", Firstname: "Ada", Lastname: "Lovelace", Generation: 2024, Gender: "F"},
	}}
	svc := NewStudentService(repo, nil, nil)

	student, err := svc.GetByName(context.Background(), "Ada", "Lovelace")
	require.NoError(t, err)
	assert.Equal(t, "s1", student.ID)

	_, err = svc.GetByName(context.Background(), "Grace", "Hopper")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateValidation(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{Firstname: "Ada"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceUpdateGeneration(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", Firstname: "Ada", Lastname: "Lovelace", Generation: 2024, Gender: "F"},
	}}
	svc := NewStudentService(repo, nil, nil)

	student, err := svc.UpdateGeneration(context.Background(), "s1", UpdateStudentRequest{Generation: 2025})
	require.NoError(t, err)
	assert.Equal(t, 2025, student.Generation)

	_, err = svc.UpdateGeneration(context.Background(), "ghost", UpdateStudentRequest{Generation: 2025})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
