package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Relationship Kinds
// ============================================================================

// RelationshipKind describes the inferred cardinality of a relationship.
type RelationshipKind string

const (
	RelationshipOneToOne   RelationshipKind = "one-to-one"
	RelationshipOneToMany  RelationshipKind = "one-to-many"
	RelationshipManyToMany RelationshipKind = "many-to-many"
	RelationshipUnknown    RelationshipKind = "unknown"
)

// ValidRelationshipKinds contains all valid relationship kind values.
var ValidRelationshipKinds = []RelationshipKind{
	RelationshipOneToOne,
	RelationshipOneToMany,
	RelationshipManyToMany,
	RelationshipUnknown,
}

// IsValidRelationshipKind checks if the given kind is valid.
func IsValidRelationshipKind(k RelationshipKind) bool {
	for _, v := range ValidRelationshipKinds {
		if v == k {
			return true
		}
	}
	return false
}

// ============================================================================
// Foreign Key Candidate Model
// ============================================================================

// ForeignKeyCandidate is a directed relationship hypothesis between two
// columns, discovered during join_detection analysis. Candidates persist
// independently of the job that created them; they are never auto-deleted.
type ForeignKeyCandidate struct {
	ID           uuid.UUID `json:"id"`
	JobID        uuid.UUID `json:"job_id,omitempty"`
	DatabaseName string    `json:"database_name"`

	SourceTable  string `json:"source_table"`
	SourceColumn string `json:"source_column"`
	TargetTable  string `json:"target_table"`
	TargetColumn string `json:"target_column"`

	Confidence float64          `json:"confidence"` // 0.0-1.0
	Kind       RelationshipKind `json:"relationship_kind"`
	Reasoning  string           `json:"reasoning,omitempty"`

	// Detection signals retained for audit
	NameSimilarity *float64 `json:"name_similarity,omitempty"`
	TypeCompatible *bool    `json:"type_compatible,omitempty"`
	Cardinality    *string  `json:"cardinality,omitempty"`

	// Validated is only ever set by human action, never by discovery.
	Validated bool `json:"validated"`

	// Superseded marks a rediscovered candidate whose confidence was beaten by
	// a later pass. Kept for audit rather than dropped.
	Superseded bool `json:"superseded"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PairKey returns the ordered column pair identity used for deduplication.
// A given (source column, target column) pair appears at most once per run.
func (c *ForeignKeyCandidate) PairKey() string {
	return fmt.Sprintf("%s.%s->%s.%s", c.SourceTable, c.SourceColumn, c.TargetTable, c.TargetColumn)
}

// Validate checks the candidate's invariants.
func (c *ForeignKeyCandidate) Validate() error {
	if c.Confidence < 0.0 || c.Confidence > 1.0 {
		return fmt.Errorf("confidence %g outside [0,1]", c.Confidence)
	}
	if c.SourceTable == "" || c.SourceColumn == "" || c.TargetTable == "" || c.TargetColumn == "" {
		return fmt.Errorf("candidate %s has empty endpoint", c.PairKey())
	}
	if !IsValidRelationshipKind(c.Kind) {
		return fmt.Errorf("invalid relationship kind %q", c.Kind)
	}
	return nil
}
