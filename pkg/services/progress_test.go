package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablescribe-ai/tablescribe-engine/pkg/models"
)

func question(category models.QuestionCategory, answered bool) *models.SmeQuestion {
	return &models.SmeQuestion{Category: category, IsAnswered: answered}
}

func TestSummarizeProgress(t *testing.T) {
	questions := []*models.SmeQuestion{
		question(models.QuestionCategoryTable, true),
		question(models.QuestionCategoryTable, false),
		question(models.QuestionCategoryColumn, true),
		question(models.QuestionCategoryColumn, false),
		question(models.QuestionCategoryColumn, false),
		question(models.QuestionCategoryRelationship, true),
		question(models.QuestionCategoryRelationship, true),
		question(models.QuestionCategoryRelationship, false),
		question(models.QuestionCategoryAmbiguity, false),
		question(models.QuestionCategoryAmbiguity, false),
	}

	summary := SummarizeProgress(questions)
	assert.Equal(t, 10, summary.TotalQuestions)
	assert.Equal(t, 4, summary.AnsweredQuestions)
	assert.Equal(t, 40, summary.Percentage)

	assert.Equal(t, CategoryProgress{Answered: 2, Total: 3}, summary.ByCategory[models.QuestionCategoryRelationship])
	assert.Equal(t, CategoryProgress{Answered: 1, Total: 3}, summary.ByCategory[models.QuestionCategoryColumn])
	assert.Equal(t, CategoryProgress{Answered: 0, Total: 2}, summary.ByCategory[models.QuestionCategoryAmbiguity])
}

func TestSummarizeProgressEmpty(t *testing.T) {
	summary := SummarizeProgress(nil)
	assert.Equal(t, 100, summary.Percentage, "nothing to answer means fully reviewed")
	assert.Equal(t, 0, summary.TotalQuestions)
	assert.Empty(t, summary.ByCategory)
}

func TestSummarizeProgressTruncatesDown(t *testing.T) {
	questions := []*models.SmeQuestion{
		question(models.QuestionCategoryTable, true),
		question(models.QuestionCategoryTable, false),
		question(models.QuestionCategoryTable, false),
	}
	assert.Equal(t, 33, SummarizeProgress(questions).Percentage)
}

func TestDatabaseProgress(t *testing.T) {
	repo := &memQuestionRepo{questions: []*models.SmeQuestion{
		question(models.QuestionCategoryTable, true),
		question(models.QuestionCategoryColumn, false),
	}}
	svc := NewProgressService(repo)

	summary, err := svc.DatabaseProgress(context.Background(), "shopdb")
	require.NoError(t, err)
	assert.Equal(t, 50, summary.Percentage)
}
