package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tablescribe-ai/tablescribe-engine/pkg/apperrors"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/config"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/models"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/repositories"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/services"
)

// mockJobRepo is an in-memory AnalysisJobRepository.
type mockJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*models.AnalysisJob
}

var _ repositories.AnalysisJobRepository = (*mockJobRepo)(nil)

func newMockJobRepo() *mockJobRepo {
	return &mockJobRepo{jobs: make(map[uuid.UUID]*models.AnalysisJob)}
}

func (r *mockJobRepo) Create(ctx context.Context, job *models.AnalysisJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
	return nil
}

func (r *mockJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return job, nil
}

func (r *mockJobRepo) Save(ctx context.Context, job *models.AnalysisJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return apperrors.ErrNotFound
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *mockJobRepo) MarkCancelRequested(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	job.CancelRequested = true
	return nil
}

func (r *mockJobRepo) ListByDatabase(ctx context.Context, databaseName string) ([]*models.AnalysisJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AnalysisJob
	for _, job := range r.jobs {
		if job.DatabaseName == databaseName {
			out = append(out, job)
		}
	}
	return out, nil
}

func (r *mockJobRepo) ListActive(ctx context.Context) ([]*models.AnalysisJob, error) {
	return nil, nil
}

// mockCandidateRepo is an in-memory FKCandidateRepository.
type mockCandidateRepo struct {
	mu         sync.Mutex
	candidates map[uuid.UUID]*models.ForeignKeyCandidate
}

var _ repositories.FKCandidateRepository = (*mockCandidateRepo)(nil)

func newMockCandidateRepo() *mockCandidateRepo {
	return &mockCandidateRepo{candidates: make(map[uuid.UUID]*models.ForeignKeyCandidate)}
}

func (r *mockCandidateRepo) Upsert(ctx context.Context, c *models.ForeignKeyCandidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates[c.ID] = c
	return nil
}

func (r *mockCandidateRepo) InsertSuperseded(ctx context.Context, c *models.ForeignKeyCandidate) error {
	return r.Upsert(ctx, c)
}

func (r *mockCandidateRepo) ListByDatabase(ctx context.Context, databaseName string, includeSuperseded bool) ([]*models.ForeignKeyCandidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ForeignKeyCandidate
	for _, c := range r.candidates {
		if c.DatabaseName != databaseName {
			continue
		}
		if c.Superseded && !includeSuperseded {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *mockCandidateRepo) MarkValidated(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.candidates[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	c.Validated = true
	return nil
}

// mockQuestionRepo is an in-memory SmeQuestionRepository.
type mockQuestionRepo struct {
	mu        sync.Mutex
	questions map[uuid.UUID]*models.SmeQuestion
}

var _ repositories.SmeQuestionRepository = (*mockQuestionRepo)(nil)

func newMockQuestionRepo() *mockQuestionRepo {
	return &mockQuestionRepo{questions: make(map[uuid.UUID]*models.SmeQuestion)}
}

func (r *mockQuestionRepo) Upsert(ctx context.Context, q *models.SmeQuestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	r.questions[q.ID] = q
	return nil
}

func (r *mockQuestionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SmeQuestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return q, nil
}

func (r *mockQuestionRepo) ListByDatabase(ctx context.Context, databaseName string) ([]*models.SmeQuestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SmeQuestion
	for _, q := range r.questions {
		if q.DatabaseName == databaseName {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *mockQuestionRepo) SubmitAnswer(ctx context.Context, id uuid.UUID, response string) (*models.SmeQuestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if q.IsAnswered {
		return nil, apperrors.ErrAlreadyAnswered
	}
	now := time.Now()
	q.Response = response
	q.IsAnswered = true
	q.AnsweredAt = &now
	return q, nil
}

// okAdapter answers every unit successfully.
type okAdapter struct{}

var _ services.AnalysisAdapter = (*okAdapter)(nil)

func (a *okAdapter) DescribeTable(ctx context.Context, jobType models.JobType, tableName string) (*services.TableOutcome, error) {
	return &services.TableOutcome{
		Status: services.ResultOk,
		Table:  &models.TableAnalysis{Description: "table " + tableName},
	}, nil
}

func (a *okAdapter) AssessRelationship(ctx context.Context, tableA, tableB string) (*services.RelationshipOutcome, error) {
	return &services.RelationshipOutcome{Status: services.ResultEmpty}, nil
}

func testRunner(jobs repositories.AnalysisJobRepository, candidates repositories.FKCandidateRepository, questions repositories.SmeQuestionRepository) *services.JobRunner {
	logger := zap.NewNop()
	cfg := config.AnalysisConfig{
		BatchSize:                   5,
		UnitRetries:                 1,
		UnitTimeoutSeconds:          5,
		MaxConcurrentUnits:          2,
		MaxConsecutiveFailedBatches: 3,
		AutoAcceptThreshold:         0.9,
		ReviewThreshold:             0.7,
	}
	emitter := services.NewQuestionEmitter(questions, cfg.AutoAcceptThreshold, cfg.ReviewThreshold, logger)
	return services.NewJobRunner(jobs, candidates, emitter, &okAdapter{}, cfg, logger)
}
