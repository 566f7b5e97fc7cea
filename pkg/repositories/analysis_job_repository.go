package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tablescribe-ai/tablescribe-engine/pkg/apperrors"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/database"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/models"
)

// AnalysisJobRepository provides data access for analysis jobs.
type AnalysisJobRepository interface {
	// Create inserts a new job.
	Create(ctx context.Context, job *models.AnalysisJob) error

	// GetByID retrieves a job by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error)

	// Save persists the full job record in one statement. The batch processor
	// relies on this being atomic per batch. The cancellation flag is owned
	// by MarkCancelRequested and is never written here, so a batch save
	// cannot clobber a cancel that landed while the batch was in flight.
	Save(ctx context.Context, job *models.AnalysisJob) error

	// MarkCancelRequested sets the cancellation flag with a narrow update.
	MarkCancelRequested(ctx context.Context, id uuid.UUID) error

	// ListByDatabase returns all jobs for a database, newest first.
	ListByDatabase(ctx context.Context, databaseName string) ([]*models.AnalysisJob, error)

	// ListActive returns all pending and running jobs, oldest first. Drives
	// the advance poller.
	ListActive(ctx context.Context) ([]*models.AnalysisJob, error)
}

type analysisJobRepository struct {
	db *database.DB
}

// NewAnalysisJobRepository creates a new AnalysisJobRepository.
func NewAnalysisJobRepository(db *database.DB) AnalysisJobRepository {
	return &analysisJobRepository{db: db}
}

var _ AnalysisJobRepository = (*analysisJobRepository)(nil)

const jobColumns = `
	id, database_name, job_type, status, progress, tables, result, last_error,
	total_units, completed_units, batch_size, processed_unit_ids, failed_unit_ids,
	next_index, batch_index, consecutive_failed_batches, cancel_requested,
	started_at, completed_at, created_at, updated_at`

func (r *analysisJobRepository) Create(ctx context.Context, job *models.AnalysisJob) error {
	now := time.Now()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	tablesJSON, processedJSON, failedJSON, resultJSON, err := marshalJobJSON(job)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO analysis_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

	_, err = r.db.Exec(ctx, query,
		job.ID, job.DatabaseName, string(job.Type), string(job.Status), job.Progress,
		tablesJSON, resultJSON, nullableString(job.LastError),
		job.TotalUnits, job.CompletedUnits, job.BatchSize, processedJSON, failedJSON,
		job.NextIndex, job.BatchIndex, job.ConsecutiveFailedBatches, job.CancelRequested,
		job.StartedAt, job.CompletedAt, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert analysis job: %w", err)
	}
	return nil
}

func (r *analysisJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	query := `SELECT ` + jobColumns + ` FROM analysis_jobs WHERE id = $1`

	job, err := scanJob(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get analysis job: %w", err)
	}
	return job, nil
}

func (r *analysisJobRepository) Save(ctx context.Context, job *models.AnalysisJob) error {
	job.UpdatedAt = time.Now()

	tablesJSON, processedJSON, failedJSON, resultJSON, err := marshalJobJSON(job)
	if err != nil {
		return err
	}

	query := `
		UPDATE analysis_jobs SET
			status = $2, progress = $3, tables = $4, result = $5, last_error = $6,
			total_units = $7, completed_units = $8, batch_size = $9,
			processed_unit_ids = $10, failed_unit_ids = $11, next_index = $12,
			batch_index = $13, consecutive_failed_batches = $14,
			started_at = $15, completed_at = $16, updated_at = $17
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		job.ID, string(job.Status), job.Progress, tablesJSON, resultJSON, nullableString(job.LastError),
		job.TotalUnits, job.CompletedUnits, job.BatchSize,
		processedJSON, failedJSON, job.NextIndex,
		job.BatchIndex, job.ConsecutiveFailedBatches,
		job.StartedAt, job.CompletedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save analysis job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *analysisJobRepository) MarkCancelRequested(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE analysis_jobs SET cancel_requested = TRUE, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark cancel requested: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *analysisJobRepository) ListByDatabase(ctx context.Context, databaseName string) ([]*models.AnalysisJob, error) {
	query := `SELECT ` + jobColumns + ` FROM analysis_jobs WHERE database_name = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, databaseName)
	if err != nil {
		return nil, fmt.Errorf("list analysis jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

func (r *analysisJobRepository) ListActive(ctx context.Context) ([]*models.AnalysisJob, error) {
	query := `SELECT ` + jobColumns + ` FROM analysis_jobs
		WHERE status IN ('pending', 'running') ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active analysis jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

func marshalJobJSON(job *models.AnalysisJob) (tables, processed, failed, result []byte, err error) {
	tables, err = json.Marshal(job.Tables)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal tables: %w", err)
	}
	processed, err = json.Marshal(job.ProcessedUnitIDs)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal processed unit ids: %w", err)
	}
	failed, err = json.Marshal(job.FailedUnitIDs)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal failed unit ids: %w", err)
	}
	if job.Result != nil {
		result, err = json.Marshal(job.Result)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal result: %w", err)
		}
	}
	return tables, processed, failed, result, nil
}

func collectJobs(rows pgx.Rows) ([]*models.AnalysisJob, error) {
	var jobs []*models.AnalysisJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analysis jobs: %w", err)
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	var jobType, status string
	var lastError *string
	var tablesJSON, processedJSON, failedJSON []byte
	var resultJSON []byte

	err := row.Scan(
		&job.ID, &job.DatabaseName, &jobType, &status, &job.Progress,
		&tablesJSON, &resultJSON, &lastError,
		&job.TotalUnits, &job.CompletedUnits, &job.BatchSize, &processedJSON, &failedJSON,
		&job.NextIndex, &job.BatchIndex, &job.ConsecutiveFailedBatches, &job.CancelRequested,
		&job.StartedAt, &job.CompletedAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Type = models.JobType(jobType)
	job.Status = models.JobStatus(status)
	if lastError != nil {
		job.LastError = *lastError
	}
	if err := json.Unmarshal(tablesJSON, &job.Tables); err != nil {
		return nil, fmt.Errorf("unmarshal tables: %w", err)
	}
	if err := json.Unmarshal(processedJSON, &job.ProcessedUnitIDs); err != nil {
		return nil, fmt.Errorf("unmarshal processed unit ids: %w", err)
	}
	if err := json.Unmarshal(failedJSON, &job.FailedUnitIDs); err != nil {
		return nil, fmt.Errorf("unmarshal failed unit ids: %w", err)
	}
	if len(resultJSON) > 0 {
		job.Result = &models.AnalysisResult{}
		if err := json.Unmarshal(resultJSON, job.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return &job, nil
}

// nullableString converts empty strings to nil for nullable columns.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
