package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classtrack/classtrack-api/internal/models"
)

// ReportJobRepository handles persistence of export job records.
type ReportJobRepository struct {
	db *sqlx.DB
}

// NewReportJobRepository constructs the repository.
func NewReportJobRepository(db *sqlx.DB) *ReportJobRepository {
	return &ReportJobRepository{db: db}
}

// Create persists a new job in the queued state.
func (r *ReportJobRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Status = models.ReportStatusQueued
	job.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO report_jobs (id, class_id, format, status, created_at)
        VALUES (:id, :class_id, :format, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// FindByID returns a job by its ID.
func (r *ReportJobRepository) FindByID(ctx context.Context, id string) (*models.ReportJob, error) {
	const query = `SELECT id, class_id, format, status, file_path, error_message, created_at, finished_at
        FROM report_jobs WHERE id = $1`
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// MarkProcessing flips a queued job to processing.
func (r *ReportJobRepository) MarkProcessing(ctx context.Context, id string) error {
	const query = `UPDATE report_jobs SET status = 'processing' WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark job processing: %w", err)
	}
	return nil
}

// MarkDone records the produced file and closes the job.
func (r *ReportJobRepository) MarkDone(ctx context.Context, id, filePath string) error {
	const query = `UPDATE report_jobs SET status = 'done', file_path = $1, finished_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, filePath, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark job done: %w", err)
	}
	return nil
}

// MarkFailed closes the job with an error message.
func (r *ReportJobRepository) MarkFailed(ctx context.Context, id, message string) error {
	const query = `UPDATE report_jobs SET status = 'failed', error_message = $1, finished_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, message, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	return nil
}
