package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tablescribe-ai/tablescribe-engine/pkg/apperrors"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/config"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/llm"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/models"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/repositories"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/retry"
)

// JobRunner owns the analysis job lifecycle. It is driven externally: callers
// invoke Advance repeatedly and the runner executes one batch per call,
// persisting the full job record after each batch so an interrupted job
// resumes from its processed-unit set rather than repeating work.
type JobRunner struct {
	jobs       repositories.AnalysisJobRepository
	candidates repositories.FKCandidateRepository
	emitter    *QuestionEmitter
	adapter    AnalysisAdapter
	cfg        config.AnalysisConfig
	pool       *llm.WorkerPool
	logger     *zap.Logger

	// inFlight enforces the single-writer discipline: at most one Advance per
	// job at a time.
	mu       sync.Mutex
	inFlight map[uuid.UUID]bool
}

// NewJobRunner creates a job runner.
func NewJobRunner(
	jobs repositories.AnalysisJobRepository,
	candidates repositories.FKCandidateRepository,
	emitter *QuestionEmitter,
	adapter AnalysisAdapter,
	cfg config.AnalysisConfig,
	logger *zap.Logger,
) *JobRunner {
	return &JobRunner{
		jobs:       jobs,
		candidates: candidates,
		emitter:    emitter,
		adapter:    adapter,
		cfg:        cfg,
		pool:       llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: cfg.MaxConcurrentUnits}, logger),
		logger:     logger.Named("job-runner"),
		inFlight:   make(map[uuid.UUID]bool),
	}
}

// CreateJob creates a pending job for the given database and table set.
func (r *JobRunner) CreateJob(ctx context.Context, databaseName string, jobType models.JobType, tables []string) (*models.AnalysisJob, error) {
	if !models.IsValidJobType(jobType) {
		return nil, fmt.Errorf("invalid job type %q", jobType)
	}

	job := models.NewAnalysisJob(databaseName, jobType, tables, r.cfg.BatchSize)
	job.TotalUnits = len(EnumerateUnits(jobType, tables))

	if err := r.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	r.logger.Info("Created analysis job",
		zap.String("job_id", job.ID.String()),
		zap.String("database", databaseName),
		zap.String("type", string(jobType)),
		zap.Int("total_units", job.TotalUnits))
	return job, nil
}

// RequestCancel marks a job for cancellation. The next Advance call observes
// the flag and halts; the current batch, if one is running, finishes first so
// already-paid-for external work is not lost. The flag is written with a
// narrow update rather than a full-record save, so it survives the in-flight
// batch persisting its own state.
func (r *JobRunner) RequestCancel(ctx context.Context, jobID uuid.UUID) error {
	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return apperrors.ErrConflict
	}
	return r.jobs.MarkCancelRequested(ctx, jobID)
}

// tryAcquire claims the single advance slot for a job.
func (r *JobRunner) tryAcquire(jobID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight[jobID] {
		return false
	}
	r.inFlight[jobID] = true
	return true
}

func (r *JobRunner) release(jobID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, jobID)
}

// Advance executes one batch of the job. Terminal jobs are a no-op. Every
// outcome short of an infrastructure failure is represented in the persisted
// job state rather than surfaced as an error.
func (r *JobRunner) Advance(ctx context.Context, jobID uuid.UUID) (*models.AnalysisJob, error) {
	if !r.tryAcquire(jobID) {
		return nil, apperrors.ErrAdvanceInFlight
	}
	defer r.release(jobID)

	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status.IsTerminal() {
		return job, nil
	}

	// Never resume from state that cannot be trusted.
	if err := job.Integrity(); err != nil {
		return r.failJob(ctx, job, fmt.Sprintf("data integrity: %v", err))
	}

	if job.CancelRequested {
		return r.failJob(ctx, job, "cancelled")
	}

	if job.Status == models.JobStatusPending {
		now := time.Now()
		job.Status = models.JobStatusRunning
		job.StartedAt = &now
	}
	if job.Result == nil {
		job.Result = models.NewAnalysisResult()
	}

	units := EnumerateUnits(job.Type, job.Tables)
	job.TotalUnits = len(units)

	attempted := job.AttemptedSet()
	batch := nextBatch(units, attempted, job.BatchSize)

	if len(batch) == 0 {
		return r.finalize(ctx, job)
	}

	outcomes := r.processBatch(ctx, job, batch)

	// Fold outcomes in unit order with a single writer. Workers never touch
	// job state directly.
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].unit.Index < outcomes[j].unit.Index })

	successes := 0
	candidatesBefore := len(job.Result.Candidates)
	touched := make(map[string]*models.ForeignKeyCandidate)

	for _, out := range outcomes {
		if out.err != nil {
			job.FailedUnitIDs = append(job.FailedUnitIDs, out.unit.ID)
			job.LastError = fmt.Sprintf("unit %s: %v", out.unit.ID, out.err)
			r.logger.Warn("Unit failed",
				zap.String("job_id", job.ID.String()),
				zap.String("unit", out.unit.ID),
				zap.Error(out.err))
			continue
		}

		if out.table != nil {
			MergeTableResult(job.Result, out.unit.Tables[0], out.table)
		}
		for _, c := range out.candidates {
			c.JobID = job.ID
			active := MergeCandidate(job.Result, c)
			touched[active.PairKey()] = active
		}

		if out.note != "" {
			job.LastError = fmt.Sprintf("unit %s: %s", out.unit.ID, out.note)
			r.logger.Warn("Unit succeeded with dropped responses",
				zap.String("job_id", job.ID.String()),
				zap.String("unit", out.unit.ID),
				zap.String("note", out.note))
		}

		job.ProcessedUnitIDs = append(job.ProcessedUnitIDs, out.unit.ID)
		job.CompletedUnits++
		successes++
	}

	if err := r.persistCandidates(ctx, job, candidatesBefore, touched); err != nil {
		return nil, err
	}

	job.NextIndex = nextUnattemptedIndex(units, job.AttemptedSet())
	job.BatchIndex++
	job.Progress = job.ComputeProgress()

	if successes == 0 {
		job.ConsecutiveFailedBatches++
		if job.ConsecutiveFailedBatches >= r.cfg.MaxConsecutiveFailedBatches {
			return r.failJob(ctx, job,
				fmt.Sprintf("%d consecutive fully-failed batches; last: %s", job.ConsecutiveFailedBatches, job.LastError))
		}
	} else {
		job.ConsecutiveFailedBatches = 0
	}

	if job.AttemptedUnits() >= job.TotalUnits {
		return r.finalize(ctx, job)
	}

	if err := r.jobs.Save(ctx, job); err != nil {
		return nil, err
	}

	r.logger.Info("Batch complete",
		zap.String("job_id", job.ID.String()),
		zap.Int("batch_index", job.BatchIndex),
		zap.Int("batch_units", len(batch)),
		zap.Int("succeeded", successes),
		zap.Int("progress", job.Progress))
	return job, nil
}

// unitOutcome is the single-writer handoff from a batch worker.
type unitOutcome struct {
	unit       WorkUnit
	table      *models.TableAnalysis
	candidates []*models.ForeignKeyCandidate
	err        error

	// note records information loss on an otherwise successful unit, such as
	// backend responses the adapter had to drop.
	note string
}

func (r *JobRunner) processBatch(ctx context.Context, job *models.AnalysisJob, batch []WorkUnit) []unitOutcome {
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = r.cfg.UnitRetries

	items := make([]llm.WorkItem[unitOutcome], 0, len(batch))
	for _, unit := range batch {
		unit := unit
		items = append(items, llm.WorkItem[unitOutcome]{
			ID: unit.ID,
			Execute: func(ctx context.Context) (unitOutcome, error) {
				out := unitOutcome{unit: unit}
				out.err = retry.DoIfRetryable(ctx, retryCfg, func() error {
					uctx, cancel := context.WithTimeout(ctx, r.cfg.UnitTimeout())
					defer cancel()
					return r.processUnit(uctx, job, unit, &out)
				})
				return out, nil
			},
		})
	}

	results := llm.Process(ctx, r.pool, items, nil)

	unitsByID := make(map[string]WorkUnit, len(batch))
	for _, unit := range batch {
		unitsByID[unit.ID] = unit
	}

	outcomes := make([]unitOutcome, 0, len(results))
	for _, res := range results {
		out := res.Result
		// A work item cancelled before dispatch carries a zero result; the
		// unit is always recovered from the item ID so the failure lands on
		// a real unit identifier.
		out.unit = unitsByID[res.ID]
		if res.Err != nil && out.err == nil {
			out.err = res.Err
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// processUnit runs one unit against the adapter and stashes the partial
// result in out. A malformed backend response is a permanent unit failure;
// an empty one is a success that merges nothing.
func (r *JobRunner) processUnit(ctx context.Context, job *models.AnalysisJob, unit WorkUnit, out *unitOutcome) error {
	out.table = nil
	out.candidates = nil

	if job.Type == models.JobTypeJoinDetection {
		outcome, err := r.adapter.AssessRelationship(ctx, unit.Tables[0], unit.Tables[1])
		if err != nil {
			return err
		}
		switch outcome.Status {
		case ResultOk:
			out.candidates = outcome.Candidates
			if outcome.Malformed > 0 {
				out.note = fmt.Sprintf("%d unparseable relationship responses dropped", outcome.Malformed)
			}
		case ResultEmpty:
			// nothing to merge
		case ResultMalformed:
			return fmt.Errorf("malformed relationship result")
		}
		return nil
	}

	outcome, err := r.adapter.DescribeTable(ctx, job.Type, unit.Tables[0])
	if err != nil {
		return err
	}
	switch outcome.Status {
	case ResultOk:
		out.table = outcome.Table
	case ResultEmpty:
		// nothing to merge
	case ResultMalformed:
		return fmt.Errorf("malformed table result")
	}
	return nil
}

// persistCandidates writes this batch's candidate changes: active rows are
// upserted by pair key, newly-beaten discoveries become superseded audit rows.
func (r *JobRunner) persistCandidates(ctx context.Context, job *models.AnalysisJob, candidatesBefore int, touched map[string]*models.ForeignKeyCandidate) error {
	if len(touched) == 0 && len(job.Result.Candidates) == candidatesBefore {
		return nil
	}

	keys := make([]string, 0, len(touched))
	for key := range touched {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := r.candidates.Upsert(ctx, touched[key]); err != nil {
			return fmt.Errorf("persist candidate %s: %w", key, err)
		}
	}

	for _, c := range job.Result.Candidates[candidatesBefore:] {
		if !c.Superseded {
			continue
		}
		if err := r.candidates.InsertSuperseded(ctx, c); err != nil {
			return fmt.Errorf("persist superseded candidate %s: %w", c.PairKey(), err)
		}
	}
	return nil
}

// finalize moves a job with no units left into its terminal state and, on
// success, runs the question emitter over the final result.
func (r *JobRunner) finalize(ctx context.Context, job *models.AnalysisJob) (*models.AnalysisJob, error) {
	if job.TotalUnits > 0 && job.CompletedUnits == 0 {
		return r.failJob(ctx, job, fmt.Sprintf("no unit succeeded; last: %s", job.LastError))
	}

	job.Progress = job.ComputeProgress()

	// Batch state is saved before emission and the terminal status after it.
	// A store fault during emission leaves the job running, so the next
	// Advance lands back here and re-emits; emission is idempotent.
	if err := r.jobs.Save(ctx, job); err != nil {
		return nil, err
	}
	if err := r.emitter.EmitForJob(ctx, job); err != nil {
		return nil, err
	}

	now := time.Now()
	job.Status = models.JobStatusCompleted
	job.CompletedAt = &now

	if err := r.jobs.Save(ctx, job); err != nil {
		return nil, err
	}

	r.logger.Info("Job completed",
		zap.String("job_id", job.ID.String()),
		zap.String("database", job.DatabaseName),
		zap.Int("completed_units", job.CompletedUnits),
		zap.Int("failed_units", len(job.FailedUnitIDs)))
	return job, nil
}

func (r *JobRunner) failJob(ctx context.Context, job *models.AnalysisJob, reason string) (*models.AnalysisJob, error) {
	now := time.Now()
	job.Status = models.JobStatusFailed
	job.LastError = reason
	job.CompletedAt = &now

	if err := r.jobs.Save(ctx, job); err != nil {
		return nil, err
	}

	r.logger.Warn("Job failed",
		zap.String("job_id", job.ID.String()),
		zap.String("database", job.DatabaseName),
		zap.String("reason", reason))
	return job, nil
}

// nextBatch selects up to batchSize units not yet attempted, in index order.
func nextBatch(units []WorkUnit, attempted map[string]bool, batchSize int) []WorkUnit {
	var batch []WorkUnit
	for _, unit := range units {
		if attempted[unit.ID] {
			continue
		}
		batch = append(batch, unit)
		if len(batch) == batchSize {
			break
		}
	}
	return batch
}

// nextUnattemptedIndex returns the smallest unit index not yet attempted, or
// len(units) when none remain.
func nextUnattemptedIndex(units []WorkUnit, attempted map[string]bool) int {
	for _, unit := range units {
		if !attempted[unit.ID] {
			return unit.Index
		}
	}
	return len(units)
}
