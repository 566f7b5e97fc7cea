package services

import (
	"context"

	"github.com/tablescribe-ai/tablescribe-engine/pkg/models"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/repositories"
)

// CategoryProgress is the answered/total pair for one question category.
type CategoryProgress struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}

// ProgressSummary is the derived review progress for a database. It is
// recomputed from the question rows on every call, never stored, so it cannot
// drift from the underlying answers.
type ProgressSummary struct {
	TotalQuestions    int                                          `json:"total_questions"`
	AnsweredQuestions int                                          `json:"answered_questions"`
	Percentage        int                                          `json:"percentage"`
	ByCategory        map[models.QuestionCategory]CategoryProgress `json:"by_category"`
}

// SummarizeProgress computes review progress over a set of questions.
// No questions means nothing left to answer, which counts as 100%.
func SummarizeProgress(questions []*models.SmeQuestion) *ProgressSummary {
	summary := &ProgressSummary{
		ByCategory: make(map[models.QuestionCategory]CategoryProgress),
	}

	for _, q := range questions {
		summary.TotalQuestions++
		cat := summary.ByCategory[q.Category]
		cat.Total++
		if q.IsAnswered {
			summary.AnsweredQuestions++
			cat.Answered++
		}
		summary.ByCategory[q.Category] = cat
	}

	if summary.TotalQuestions == 0 {
		summary.Percentage = 100
	} else {
		summary.Percentage = (summary.AnsweredQuestions * 100) / summary.TotalQuestions
	}
	return summary
}

// ProgressService exposes derived review progress per database.
type ProgressService struct {
	questions repositories.SmeQuestionRepository
}

// NewProgressService creates a progress service.
func NewProgressService(questions repositories.SmeQuestionRepository) *ProgressService {
	return &ProgressService{questions: questions}
}

// DatabaseProgress computes the progress summary for one database.
func (s *ProgressService) DatabaseProgress(ctx context.Context, databaseName string) (*ProgressSummary, error) {
	questions, err := s.questions.ListByDatabase(ctx, databaseName)
	if err != nil {
		return nil, err
	}
	return SummarizeProgress(questions), nil
}
