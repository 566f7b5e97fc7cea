package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tablescribe-ai/tablescribe-engine/pkg/models"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/repositories"
)

// QuestionEmitter derives SME review questions from a completed job's
// accumulated result. Emission is idempotent: every question carries a
// content-derived dedupe key and the store skips duplicates, so re-running
// the emitter over the same result creates nothing new.
type QuestionEmitter struct {
	questions           repositories.SmeQuestionRepository
	autoAcceptThreshold float64
	reviewThreshold     float64
	logger              *zap.Logger
}

// NewQuestionEmitter creates a question emitter with the given confidence
// bands.
func NewQuestionEmitter(questions repositories.SmeQuestionRepository, autoAcceptThreshold, reviewThreshold float64, logger *zap.Logger) *QuestionEmitter {
	return &QuestionEmitter{
		questions:           questions,
		autoAcceptThreshold: autoAcceptThreshold,
		reviewThreshold:     reviewThreshold,
		logger:              logger.Named("question-emitter"),
	}
}

// EmitForJob walks a completed job's result and emits review questions.
func (e *QuestionEmitter) EmitForJob(ctx context.Context, job *models.AnalysisJob) error {
	if job.Result == nil {
		return nil
	}

	emitted := 0

	// Stable table order so emission is deterministic.
	tableNames := make([]string, 0, len(job.Result.Tables))
	for name := range job.Result.Tables {
		tableNames = append(tableNames, name)
	}
	sort.Strings(tableNames)

	for _, tableName := range tableNames {
		analysis := job.Result.Tables[tableName]

		if analysis.LowConfidence {
			if err := e.emit(ctx, job, &models.SmeQuestion{
				TableName: tableName,
				Category:  models.QuestionCategoryTable,
				Question: fmt.Sprintf("The generated description for table %q is marked low confidence: %q. What is this table actually used for?",
					tableName, analysis.Description),
				Reasoning: analysis.BusinessPurpose,
				Priority:  models.PriorityMedium,
				DedupeKey: models.ComputeDedupeKey(models.QuestionCategoryTable, tableName, ""),
			}); err != nil {
				return err
			}
			emitted++
		}

		for _, col := range analysis.Columns {
			if len(col.EnumValues) == 0 {
				continue
			}
			if err := e.emit(ctx, job, &models.SmeQuestion{
				TableName:  tableName,
				ColumnName: col.Name,
				Category:   models.QuestionCategoryColumn,
				Question: fmt.Sprintf("Column %s.%s appears to hold a fixed set of values: %s. Is this the complete set, and what does each value mean?",
					tableName, col.Name, strings.Join(col.EnumValues, ", ")),
				Options:   col.EnumValues,
				Reasoning: col.Description,
				Priority:  models.PriorityMedium,
				DedupeKey: models.ComputeDedupeKey(models.QuestionCategoryColumn, tableName, col.Name),
			}); err != nil {
				return err
			}
			emitted++
		}
	}

	// Relationship candidates at or above the auto-accept band are recorded
	// but generate no question, keeping review burden on the uncertain ones.
	for _, c := range ActiveCandidates(job.Result) {
		if c.Confidence >= e.autoAcceptThreshold {
			continue
		}

		priority := models.PriorityMedium
		if c.Confidence < e.reviewThreshold {
			priority = models.PriorityLow
		}

		if err := e.emit(ctx, job, &models.SmeQuestion{
			TableName:  c.SourceTable,
			ColumnName: c.SourceColumn,
			Category:   models.QuestionCategoryRelationship,
			Question: fmt.Sprintf("Does %s.%s reference %s.%s (confidence %.2f)?",
				c.SourceTable, c.SourceColumn, c.TargetTable, c.TargetColumn, c.Confidence),
			Options:   []string{"yes", "no", "unsure"},
			Reasoning: c.Reasoning,
			Priority:  priority,
			DedupeKey: models.ComputeDedupeKey(models.QuestionCategoryRelationship, c.SourceTable, c.PairKey()),
		}); err != nil {
			return err
		}
		emitted++
	}

	e.logger.Info("Emitted review questions",
		zap.String("job_id", job.ID.String()),
		zap.String("database", job.DatabaseName),
		zap.Int("count", emitted))
	return nil
}

func (e *QuestionEmitter) emit(ctx context.Context, job *models.AnalysisJob, q *models.SmeQuestion) error {
	jobID := job.ID
	q.JobID = &jobID
	q.DatabaseName = job.DatabaseName
	if err := e.questions.Upsert(ctx, q); err != nil {
		return fmt.Errorf("emit question for %s: %w", q.DedupeKey, err)
	}
	return nil
}
