package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tablescribe-ai/tablescribe-engine/pkg/apperrors"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/database"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/models"
)

// FKCandidateRepository provides data access for foreign key candidates.
type FKCandidateRepository interface {
	// Upsert writes a candidate keyed by its ordered column pair. An existing
	// active row for the pair is updated in place; its validated flag is
	// preserved since validation is human-only, and a validated row never
	// has its confidence lowered by a later rediscovery.
	Upsert(ctx context.Context, candidate *models.ForeignKeyCandidate) error

	// InsertSuperseded appends an audit row for a beaten discovery.
	InsertSuperseded(ctx context.Context, candidate *models.ForeignKeyCandidate) error

	// ListByDatabase returns candidates for a database, active rows first,
	// highest confidence first.
	ListByDatabase(ctx context.Context, databaseName string, includeSuperseded bool) ([]*models.ForeignKeyCandidate, error)

	// MarkValidated records human validation of a candidate.
	MarkValidated(ctx context.Context, id uuid.UUID) error
}

type fkCandidateRepository struct {
	db *database.DB
}

// NewFKCandidateRepository creates a new FKCandidateRepository.
func NewFKCandidateRepository(db *database.DB) FKCandidateRepository {
	return &fkCandidateRepository{db: db}
}

var _ FKCandidateRepository = (*fkCandidateRepository)(nil)

const candidateColumns = `
	id, job_id, database_name, source_table, source_column, target_table, target_column,
	confidence, relationship_kind, reasoning, name_similarity, type_compatible, cardinality,
	validated, superseded, created_at, updated_at`

func (r *fkCandidateRepository) Upsert(ctx context.Context, c *models.ForeignKeyCandidate) error {
	if err := c.Validate(); err != nil {
		return err
	}

	now := time.Now()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	query := `
		INSERT INTO relationship_candidates (` + candidateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, FALSE, $15, $16)
		ON CONFLICT (database_name, source_table, source_column, target_table, target_column)
			WHERE NOT superseded
		DO UPDATE SET
			job_id = EXCLUDED.job_id,
			confidence = EXCLUDED.confidence,
			relationship_kind = EXCLUDED.relationship_kind,
			reasoning = EXCLUDED.reasoning,
			name_similarity = EXCLUDED.name_similarity,
			type_compatible = EXCLUDED.type_compatible,
			cardinality = EXCLUDED.cardinality,
			updated_at = EXCLUDED.updated_at
		WHERE NOT relationship_candidates.validated
			OR EXCLUDED.confidence >= relationship_candidates.confidence`

	var jobID *uuid.UUID
	if c.JobID != uuid.Nil {
		jobID = &c.JobID
	}

	_, err := r.db.Exec(ctx, query,
		c.ID, jobID, c.DatabaseName, c.SourceTable, c.SourceColumn, c.TargetTable, c.TargetColumn,
		c.Confidence, string(c.Kind), c.Reasoning, c.NameSimilarity, c.TypeCompatible, c.Cardinality,
		c.Validated, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert relationship candidate: %w", err)
	}
	return nil
}

func (r *fkCandidateRepository) InsertSuperseded(ctx context.Context, c *models.ForeignKeyCandidate) error {
	now := time.Now()
	id := uuid.New()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}

	query := `
		INSERT INTO relationship_candidates (` + candidateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, TRUE, $15, $16)`

	var jobID *uuid.UUID
	if c.JobID != uuid.Nil {
		jobID = &c.JobID
	}

	_, err := r.db.Exec(ctx, query,
		id, jobID, c.DatabaseName, c.SourceTable, c.SourceColumn, c.TargetTable, c.TargetColumn,
		c.Confidence, string(c.Kind), c.Reasoning, c.NameSimilarity, c.TypeCompatible, c.Cardinality,
		c.Validated, c.CreatedAt, now,
	)
	if err != nil {
		return fmt.Errorf("insert superseded candidate: %w", err)
	}
	return nil
}

func (r *fkCandidateRepository) ListByDatabase(ctx context.Context, databaseName string, includeSuperseded bool) ([]*models.ForeignKeyCandidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM relationship_candidates WHERE database_name = $1`
	if !includeSuperseded {
		query += ` AND NOT superseded`
	}
	query += ` ORDER BY superseded ASC, confidence DESC, source_table, source_column`

	rows, err := r.db.Query(ctx, query, databaseName)
	if err != nil {
		return nil, fmt.Errorf("list relationship candidates: %w", err)
	}
	defer rows.Close()

	var candidates []*models.ForeignKeyCandidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan relationship candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relationship candidates: %w", err)
	}
	return candidates, nil
}

func (r *fkCandidateRepository) MarkValidated(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE relationship_candidates SET validated = TRUE, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark candidate validated: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanCandidate(row pgx.Row) (*models.ForeignKeyCandidate, error) {
	var c models.ForeignKeyCandidate
	var jobID *uuid.UUID
	var kind string

	err := row.Scan(
		&c.ID, &jobID, &c.DatabaseName, &c.SourceTable, &c.SourceColumn, &c.TargetTable, &c.TargetColumn,
		&c.Confidence, &kind, &c.Reasoning, &c.NameSimilarity, &c.TypeCompatible, &c.Cardinality,
		&c.Validated, &c.Superseded, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	if jobID != nil {
		c.JobID = *jobID
	}
	c.Kind = models.RelationshipKind(kind)
	return &c, nil
}
