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

// SmeQuestionRepository provides data access for SME review questions.
type SmeQuestionRepository interface {
	// Upsert inserts a question, silently skipping it when one with the same
	// dedupe key already exists for the database. Re-running the emitter over
	// the same job result is therefore a no-op.
	Upsert(ctx context.Context, question *models.SmeQuestion) error

	// GetByID retrieves a question by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*models.SmeQuestion, error)

	// ListByDatabase returns all questions for a database, unanswered first,
	// then by priority.
	ListByDatabase(ctx context.Context, databaseName string) ([]*models.SmeQuestion, error)

	// SubmitAnswer records a response. A question is answered exactly once.
	SubmitAnswer(ctx context.Context, id uuid.UUID, response string) (*models.SmeQuestion, error)
}

type smeQuestionRepository struct {
	db *database.DB
}

// NewSmeQuestionRepository creates a new SmeQuestionRepository.
func NewSmeQuestionRepository(db *database.DB) SmeQuestionRepository {
	return &smeQuestionRepository{db: db}
}

var _ SmeQuestionRepository = (*smeQuestionRepository)(nil)

const questionColumns = `
	id, job_id, database_name, table_name, column_name, category, question, options,
	reasoning, priority, dedupe_key, response, is_answered, answered_at, created_at, updated_at`

func (r *smeQuestionRepository) Upsert(ctx context.Context, q *models.SmeQuestion) error {
	now := time.Now()
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	q.UpdatedAt = now
	if q.DedupeKey == "" {
		return fmt.Errorf("question %s has no dedupe key", q.ID)
	}

	var optionsJSON []byte
	if len(q.Options) > 0 {
		var err error
		optionsJSON, err = json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("marshal options: %w", err)
		}
	}

	query := `
		INSERT INTO sme_questions (` + questionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULL, FALSE, NULL, $12, $13)
		ON CONFLICT (database_name, dedupe_key) DO NOTHING`

	_, err := r.db.Exec(ctx, query,
		q.ID, q.JobID, q.DatabaseName,
		nullableString(q.TableName), nullableString(q.ColumnName),
		string(q.Category), q.Question, optionsJSON,
		q.Reasoning, string(q.Priority), q.DedupeKey,
		q.CreatedAt, q.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert sme question: %w", err)
	}
	return nil
}

func (r *smeQuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SmeQuestion, error) {
	query := `SELECT ` + questionColumns + ` FROM sme_questions WHERE id = $1`

	q, err := scanQuestion(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get sme question: %w", err)
	}
	return q, nil
}

func (r *smeQuestionRepository) ListByDatabase(ctx context.Context, databaseName string) ([]*models.SmeQuestion, error) {
	query := `SELECT ` + questionColumns + ` FROM sme_questions
		WHERE database_name = $1
		ORDER BY is_answered ASC,
			CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END,
			created_at ASC`

	rows, err := r.db.Query(ctx, query, databaseName)
	if err != nil {
		return nil, fmt.Errorf("list sme questions: %w", err)
	}
	defer rows.Close()

	var questions []*models.SmeQuestion
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sme question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sme questions: %w", err)
	}
	return questions, nil
}

func (r *smeQuestionRepository) SubmitAnswer(ctx context.Context, id uuid.UUID, response string) (*models.SmeQuestion, error) {
	q, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.IsAnswered {
		return nil, apperrors.ErrAlreadyAnswered
	}
	if err := q.Answer(response); err != nil {
		return nil, err
	}

	// The is_answered guard makes answer-once hold even under a concurrent
	// submission racing the read above.
	query := `
		UPDATE sme_questions
		SET response = $2, is_answered = TRUE, answered_at = $3, updated_at = $4
		WHERE id = $1 AND is_answered = FALSE`

	tag, err := r.db.Exec(ctx, query, id, q.Response, q.AnsweredAt, q.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("submit answer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperrors.ErrAlreadyAnswered
	}
	return q, nil
}

func scanQuestion(row pgx.Row) (*models.SmeQuestion, error) {
	var q models.SmeQuestion
	var category, priority string
	var tableName, columnName, response *string
	var optionsJSON []byte

	err := row.Scan(
		&q.ID, &q.JobID, &q.DatabaseName, &tableName, &columnName,
		&category, &q.Question, &optionsJSON,
		&q.Reasoning, &priority, &q.DedupeKey,
		&response, &q.IsAnswered, &q.AnsweredAt, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	q.Category = models.QuestionCategory(category)
	q.Priority = models.QuestionPriority(priority)
	if tableName != nil {
		q.TableName = *tableName
	}
	if columnName != nil {
		q.ColumnName = *columnName
	}
	if response != nil {
		q.Response = *response
	}
	if len(optionsJSON) > 0 {
		if err := json.Unmarshal(optionsJSON, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
	}
	return &q, nil
}
