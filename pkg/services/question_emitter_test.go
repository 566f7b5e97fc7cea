package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tablescribe-ai/tablescribe-engine/pkg/models"
)

func emitterJob(t *testing.T) *models.AnalysisJob {
	t.Helper()
	job := models.NewAnalysisJob("shopdb", models.JobTypeAIContext, []string{"orders", "customers"}, 5)
	job.Result = models.NewAnalysisResult()
	return job
}

func TestEmitForJobTableAndColumnQuestions(t *testing.T) {
	repo := &memQuestionRepo{}
	emitter := NewQuestionEmitter(repo, 0.9, 0.7, zap.NewNop())
	job := emitterJob(t)

	job.Result.Tables["orders"] = &models.TableAnalysis{
		Description:   "Might be order headers",
		LowConfidence: true,
		Columns: []models.ColumnAnalysis{
			{Name: "status", EnumValues: []string{"open", "shipped", "cancelled"}},
			{Name: "total", Description: "order total"},
		},
	}

	require.NoError(t, emitter.EmitForJob(context.Background(), job))
	require.Len(t, repo.questions, 2)

	byCategory := make(map[models.QuestionCategory]*models.SmeQuestion)
	for _, q := range repo.questions {
		byCategory[q.Category] = q
	}

	tableQ := byCategory[models.QuestionCategoryTable]
	require.NotNil(t, tableQ)
	assert.Equal(t, "orders", tableQ.TableName)
	assert.Equal(t, models.PriorityMedium, tableQ.Priority)
	assert.Equal(t, "shopdb", tableQ.DatabaseName)
	require.NotNil(t, tableQ.JobID)
	assert.Equal(t, job.ID, *tableQ.JobID)

	colQ := byCategory[models.QuestionCategoryColumn]
	require.NotNil(t, colQ)
	assert.Equal(t, "status", colQ.ColumnName)
	assert.Equal(t, []string{"open", "shipped", "cancelled"}, colQ.Options)
	assert.Contains(t, colQ.Question, "orders.status")
}

func TestEmitForJobConfidenceBands(t *testing.T) {
	repo := &memQuestionRepo{}
	emitter := NewQuestionEmitter(repo, 0.9, 0.7, zap.NewNop())
	job := emitterJob(t)

	mkCandidate := func(sourceCol string, confidence float64) *models.ForeignKeyCandidate {
		return &models.ForeignKeyCandidate{
			ID:           uuid.New(),
			DatabaseName: "shopdb",
			SourceTable:  "orders",
			SourceColumn: sourceCol,
			TargetTable:  "customers",
			TargetColumn: "id",
			Confidence:   confidence,
			Kind:         models.RelationshipOneToMany,
		}
	}
	job.Result.Candidates = []*models.ForeignKeyCandidate{
		mkCandidate("customer_id", 0.95), // auto-accepted, no question
		mkCandidate("buyer_id", 0.80),    // medium band
		mkCandidate("vendor_id", 0.40),   // low band
	}

	require.NoError(t, emitter.EmitForJob(context.Background(), job))
	require.Len(t, repo.questions, 2)

	byColumn := make(map[string]*models.SmeQuestion)
	for _, q := range repo.questions {
		byColumn[q.ColumnName] = q
	}

	require.NotContains(t, byColumn, "customer_id")
	assert.Equal(t, models.PriorityMedium, byColumn["buyer_id"].Priority)
	assert.Equal(t, models.PriorityLow, byColumn["vendor_id"].Priority)
	assert.Equal(t, []string{"yes", "no", "unsure"}, byColumn["buyer_id"].Options)
	assert.Contains(t, byColumn["buyer_id"].Question, "0.80")
}

func TestEmitForJobSkipsSupersededCandidates(t *testing.T) {
	repo := &memQuestionRepo{}
	emitter := NewQuestionEmitter(repo, 0.9, 0.7, zap.NewNop())
	job := emitterJob(t)

	job.Result.Candidates = []*models.ForeignKeyCandidate{{
		ID:           uuid.New(),
		SourceTable:  "orders",
		SourceColumn: "customer_id",
		TargetTable:  "customers",
		TargetColumn: "id",
		Confidence:   0.5,
		Superseded:   true,
	}}

	require.NoError(t, emitter.EmitForJob(context.Background(), job))
	assert.Empty(t, repo.questions)
}

func TestEmitForJobIsIdempotent(t *testing.T) {
	repo := &memQuestionRepo{}
	emitter := NewQuestionEmitter(repo, 0.9, 0.7, zap.NewNop())
	job := emitterJob(t)

	job.Result.Tables["orders"] = &models.TableAnalysis{
		Description:   "unclear",
		LowConfidence: true,
	}

	require.NoError(t, emitter.EmitForJob(context.Background(), job))
	require.NoError(t, emitter.EmitForJob(context.Background(), job))
	assert.Len(t, repo.questions, 1, "re-emission over the same result adds nothing")
}

func TestEmitForJobNilResult(t *testing.T) {
	repo := &memQuestionRepo{}
	emitter := NewQuestionEmitter(repo, 0.9, 0.7, zap.NewNop())
	job := emitterJob(t)
	job.Result = nil

	require.NoError(t, emitter.EmitForJob(context.Background(), job))
	assert.Empty(t, repo.questions)
}
