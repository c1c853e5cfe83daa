package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
	"github.com/classtrack/classtrack-api/pkg/export"
	"github.com/classtrack/classtrack-api/pkg/jobs"
	"github.com/classtrack/classtrack-api/pkg/storage"
)

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	FindByID(ctx context.Context, id string) (*models.ReportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkDone(ctx context.Context, id, filePath string) error
	MarkFailed(ctx context.Context, id, message string) error
}

type attendanceLister interface {
	ListByClassroom(ctx context.Context, classID string) ([]models.AttendanceWithStudent, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// ReportRequest asks for a classroom attendance export.
type ReportRequest struct {
	ClassID string              `json:"class_id" validate:"required"`
	Format  models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ReportStatus is the client view of a job.
type ReportStatus struct {
	ID          string              `json:"id"`
	Status      models.ReportStatus `json:"status"`
	Format      models.ReportFormat `json:"format"`
	DownloadURL *string             `json:"download_url,omitempty"`
	ExpiresAt   *time.Time          `json:"expires_at,omitempty"`
	Error       *string             `json:"error,omitempty"`
}

// ReportDownload aggregates resolved download data.
type ReportDownload struct {
	File     *os.File
	Filename string
	Format   models.ReportFormat
}

// ReportService owns the report job lifecycle: request, background
// generation, signed download.
type ReportService struct {
	repo       reportJobStore
	classrooms classroomReader
	attendance attendanceLister
	queue      jobDispatcher
	store      *storage.LocalStorage
	signer     *storage.SignedURLSigner
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewReportService constructs the report service. The queue is attached
// afterwards because its handler is this service's ProcessJob.
func NewReportService(repo reportJobStore, classrooms classroomReader, attendance attendanceLister, store *storage.LocalStorage, signer *storage.SignedURLSigner, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		repo:       repo,
		classrooms: classrooms,
		attendance: attendance,
		store:      store,
		signer:     signer,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
	}
}

// AttachQueue wires in the dispatcher once the worker pool exists.
func (s *ReportService) AttachQueue(queue jobDispatcher) {
	s.queue = queue
}

// CreateJob validates the request, persists the job and enqueues it.
func (s *ReportService) CreateJob(ctx context.Context, req ReportRequest) (*ReportStatus, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report request")
	}
	if _, err := s.classrooms.FindByID(ctx, req.ClassID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrInvalidReference, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	job := &models.ReportJob{ClassID: req.ClassID, Format: req.Format}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "report queue unavailable")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "classroom-report"}); err != nil {
		_ = s.repo.MarkFailed(ctx, job.ID, "failed to enqueue job")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}
	return &ReportStatus{ID: job.ID, Status: job.Status, Format: job.Format}, nil
}

// ProcessJob is the queue handler. It loads the job, renders the export
// and stores the file. Errors are reported back to the queue so the job
// gets retried before being marked failed.
func (s *ReportService) ProcessJob(ctx context.Context, queued jobs.Job) error {
	job, err := s.repo.FindByID(ctx, queued.ID)
	if err != nil {
		return fmt.Errorf("load report job: %w", err)
	}
	if job.Status == models.ReportStatusDone {
		return nil
	}
	if err := s.repo.MarkProcessing(ctx, job.ID); err != nil {
		return err
	}
	filePath, err := s.generate(ctx, job)
	if err != nil {
		s.logger.Warn("report generation failed", zap.String("job_id", job.ID), zap.Int("attempt", queued.Attempt), zap.Error(err))
		_ = s.repo.MarkFailed(ctx, job.ID, err.Error())
		s.metrics.RecordReport(job.Format, "failed")
		return err
	}
	if err := s.repo.MarkDone(ctx, job.ID, filePath); err != nil {
		return err
	}
	s.metrics.RecordReport(job.Format, "done")
	s.logger.Info("report generated", zap.String("job_id", job.ID), zap.String("file", filePath))
	return nil
}

func (s *ReportService) generate(ctx context.Context, job *models.ReportJob) (string, error) {
	classroom, err := s.classrooms.FindByID(ctx, job.ClassID)
	if err != nil {
		return "", fmt.Errorf("load classroom: %w", err)
	}
	events, err := s.attendance.ListByClassroom(ctx, job.ClassID)
	if err != nil {
		return "", fmt.Errorf("load attendance: %w", err)
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Entry Time", "Punctuality", "Recorded At"},
		Rows:    make([]map[string]string, 0, len(events)),
	}
	for _, e := range events {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":     e.Firstname + " " + e.Lastname,
			"Entry Time":  strconv.FormatFloat(e.EntryTime, 'f', -1, 64),
			"Punctuality": string(e.Punctuality),
			"Recorded At": e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	dataset.Summary = summarizeEvents(events)

	var payload []byte
	switch job.Format {
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, classroom.SubjectName+" attendance")
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}

	filename := fmt.Sprintf("%s.%s", job.ID, job.Format)
	return s.store.Save(filename, payload)
}

// summarizeEvents tallies per-student punctuality counts over the
// classroom's events, in first-seen order.
func summarizeEvents(events []models.AttendanceWithStudent) *export.Table {
	if len(events) == 0 {
		return nil
	}
	type tally struct {
		name                 string
		ontime, late, absent int
	}
	order := make([]string, 0)
	tallies := make(map[string]*tally)
	for _, e := range events {
		t, ok := tallies[e.StudentID]
		if !ok {
			t = &tally{name: e.Firstname + " " + e.Lastname}
			tallies[e.StudentID] = t
			order = append(order, e.StudentID)
		}
		switch e.Punctuality {
		case models.PunctualityLate:
			t.late++
		case models.PunctualityOntime:
			t.ontime++
		default:
			t.absent++
		}
	}
	table := &export.Table{
		Headers: []string{"Student", "Ontime", "Late", "Absent"},
		Rows:    make([]map[string]string, 0, len(order)),
	}
	for _, id := range order {
		t := tallies[id]
		table.Rows = append(table.Rows, map[string]string{
			"Student": t.name,
			"Ontime":  strconv.Itoa(t.ontime),
			"Late":    strconv.Itoa(t.late),
			"Absent":  strconv.Itoa(t.absent),
		})
	}
	return table
}

// GetStatus exposes job metadata, with a signed download URL once the
// job is done.
func (s *ReportService) GetStatus(ctx context.Context, id string) (*ReportStatus, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	status := &ReportStatus{ID: job.ID, Status: job.Status, Format: job.Format, Error: job.ErrorMessage}
	if job.Status == models.ReportStatusDone && job.FilePath != nil {
		token, expiresAt, err := s.signer.Generate(job.ID, *job.FilePath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
		}
		url := "/api/v1/reports/download/" + token
		status.DownloadURL = &url
		status.ExpiresAt = &expiresAt
	}
	return status, nil
}

// Download resolves a signed token into an open file handle.
func (s *ReportService) Download(ctx context.Context, token string) (*ReportDownload, error) {
	jobID, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid or expired download token")
	}
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if job.Status != models.ReportStatusDone || job.FilePath == nil || *job.FilePath != relPath {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report not available")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open report file")
	}
	return &ReportDownload{File: file, Filename: relPath, Format: job.Format}, nil
}
