package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
	"github.com/classtrack/classtrack-api/pkg/jobs"
	"github.com/classtrack/classtrack-api/pkg/storage"
)

type mockReportJobStore struct {
	jobs map[string]models.ReportJob
}

func (m *mockReportJobStore) Create(ctx context.Context, job *models.ReportJob) error {
	if m.jobs == nil {
		m.jobs = make(map[string]models.ReportJob)
	}
	if job.ID == "" {
		job.ID = "job-1"
	}
	job.Status = models.ReportStatusQueued
	m.jobs[job.ID] = *job
	return nil
}

func (m *mockReportJobStore) FindByID(ctx context.Context, id string) (*models.ReportJob, error) {
	if j, ok := m.jobs[id]; ok {
		return &j, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportJobStore) MarkProcessing(ctx context.Context, id string) error {
	j := m.jobs[id]
	j.Status = models.ReportStatusProcessing
	m.jobs[id] = j
	return nil
}

func (m *mockReportJobStore) MarkDone(ctx context.Context, id, filePath string) error {
	j := m.jobs[id]
	j.Status = models.ReportStatusDone
	j.FilePath = &filePath
	m.jobs[id] = j
	return nil
}

func (m *mockReportJobStore) MarkFailed(ctx context.Context, id, message string) error {
	j := m.jobs[id]
	j.Status = models.ReportStatusFailed
	j.ErrorMessage = &message
	m.jobs[id] = j
	return nil
}

type mockAttendanceLister struct {
	events []models.AttendanceWithStudent
}

func (m *mockAttendanceLister) ListByClassroom(ctx context.Context, classID string) ([]models.AttendanceWithStudent, error) {
	return m.events, nil
}

type mockDispatcher struct {
	enqueued []jobs.Job
}

func (m *mockDispatcher) Enqueue(job jobs.Job) error {
	m.enqueued = append(m.enqueued, job)
	return nil
}

func newReportService(t *testing.T, store *mockReportJobStore) (*ReportService, *mockDispatcher) {
	t.Helper()
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	classrooms := &mockClassroomReader{classrooms: map[string]models.Classroom{
		"c1": {ID: "c1", SubjectName: "Mechanics"},
	}}
	lister := &mockAttendanceLister{events: []models.AttendanceWithStudent{
		{
			AttendanceEvent: models.AttendanceEvent{ID: "a1", EnrollmentID: "e1", EntryTime: 32500, Punctuality: models.PunctualityOntime, CreatedAt: time.Now()},
			StudentID:       "s1", Firstname: "Ada", Lastname: "Lovelace", SubjectName: "Mechanics",
		},
	}}
	svc := NewReportService(store, classrooms, lister, local, signer, nil, nil, nil)
	dispatcher := &mockDispatcher{}
	svc.AttachQueue(dispatcher)
	return svc, dispatcher
}

func TestReportServiceCreateJob(t *testing.T) {
	store := &mockReportJobStore{}
	svc, dispatcher := newReportService(t, store)

	status, err := svc.CreateJob(context.Background(), ReportRequest{ClassID: "c1", Format: models.ReportFormatCSV})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, status.Status)
	require.Len(t, dispatcher.enqueued, 1)
	assert.Equal(t, status.ID, dispatcher.enqueued[0].ID)
}

func TestReportServiceCreateJobUnknownClassroom(t *testing.T) {
	svc, _ := newReportService(t, &mockReportJobStore{})

	_, err := svc.CreateJob(context.Background(), ReportRequest{ClassID: "ghost", Format: models.ReportFormatCSV})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidReference.Code, appErrors.FromError(err).Code)
}

func TestReportServiceCreateJobInvalidFormat(t *testing.T) {
	svc, _ := newReportService(t, &mockReportJobStore{})

	_, err := svc.CreateJob(context.Background(), ReportRequest{ClassID: "c1", Format: "xlsx"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportServiceProcessAndDownload(t *testing.T) {
	store := &mockReportJobStore{}
	svc, dispatcher := newReportService(t, store)

	created, err := svc.CreateJob(context.Background(), ReportRequest{ClassID: "c1", Format: models.ReportFormatCSV})
	require.NoError(t, err)

	require.NoError(t, svc.ProcessJob(context.Background(), dispatcher.enqueued[0]))

	status, err := svc.GetStatus(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusDone, status.Status)
	require.NotNil(t, status.DownloadURL)

	token := strings.TrimPrefix(*status.DownloadURL, "/api/v1/reports/download/")
	download, err := svc.Download(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, models.ReportFormatCSV, download.Format)

	content := make([]byte, 512)
	n, _ := download.File.Read(content)
	assert.Contains(t, string(content[:n]), "Ada Lovelace")
	assert.Contains(t, string(content[:n]), "Ontime,Late,Absent")
}

func TestReportServiceDownloadBadToken(t *testing.T) {
	svc, _ := newReportService(t, &mockReportJobStore{})

	_, err := svc.Download(context.Background(), "not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
