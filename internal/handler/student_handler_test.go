package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classtrack/classtrack-api/internal/models"
	"github.com/classtrack/classtrack-api/internal/service"
)

type studentRepoStub struct {
	students map[string]models.Student
}

func (s *studentRepoStub) Create(ctx context.Context, student *models.Student) error {
	if s.students == nil {
		s.students = make(map[string]models.Student)
	}
	student.ID = "s1"
	s.students[student.ID] = *student
	return nil
}

func (s *studentRepoStub) CreateBatch(ctx context.Context, students []*models.Student) error {
	if s.students == nil {
		s.students = make(map[string]models.Student)
	}
	for i, student := range students {
		student.ID = fmt.Sprintf("s%d", i+1)
		s.students[student.ID] = *student
	}
	return nil
}

func (s *studentRepoStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if st, ok := s.students[id]; ok {
		return &st, nil
	}
	return nil, sql.ErrNoRows
}

func (s *studentRepoStub) FindByName(ctx context.Context, firstname, lastname string) (*models.Student, error) {
	for _, st := range s.students {
		if st.Firstname == firstname && st.Lastname == lastname {
			return &st, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *studentRepoStub) List(ctx context.Context) ([]models.Student, error) {
	return nil, nil
}

func (s *studentRepoStub) UpdateGeneration(ctx context.Context, id string, generation int) (int64, error) {
	return 0, nil
}

func (s *studentRepoStub) Delete(ctx context.Context, id string) (int64, error) {
	return 0, nil
}

func newStudentHandler() *StudentHandler {
	students := service.NewStudentService(&studentRepoStub{}, nil, nil)
	attendance := service.NewAttendanceService(newAttendanceRepoStub(), nil, nil, nil, nil)
	return NewStudentHandler(students, attendance)
}

func TestStudentHandlerCreate(t *testing.T) {
	handler := newStudentHandler()
	w, c := postJSON(t, service.CreateStudentRequest{Firstname: "Ada", Lastname: "Lovelace", Generation: 2024, Gender: "F"}, "/students")

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data models.Student `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "Ada", envelope.Data.Firstname)
	assert.NotEmpty(t, envelope.Data.ID)
}

func TestStudentHandlerCreateBatch(t *testing.T) {
	handler := newStudentHandler()
	w, c := postJSON(t, []service.CreateStudentRequest{
		{Firstname: "Ada", Lastname: "Lovelace", Generation: 2024, Gender: "F"},
		{Firstname: "Alan", Lastname: "Turing", Generation: 2024, Gender: "M"},
	}, "/students")

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data []models.Student `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 2)
	assert.Equal(t, "Turing", envelope.Data[1].Lastname)
}

func TestStudentHandlerCreateInvalidPayload(t *testing.T) {
	handler := newStudentHandler()
	w, c := postJSON(t, map[string]string{"firstname": "Ada"}, "/students")

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStudentHandlerGetMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newStudentHandler()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/students/ghost", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
