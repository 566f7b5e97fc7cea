package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Question Categories
// ============================================================================

// QuestionCategory classifies what a review question is about.
type QuestionCategory string

const (
	QuestionCategoryTable        QuestionCategory = "table"
	QuestionCategoryColumn       QuestionCategory = "column"
	QuestionCategoryRelationship QuestionCategory = "relationship"
	QuestionCategoryAmbiguity    QuestionCategory = "ambiguity"
)

// ValidQuestionCategories contains all valid question category values.
var ValidQuestionCategories = []QuestionCategory{
	QuestionCategoryTable,
	QuestionCategoryColumn,
	QuestionCategoryRelationship,
	QuestionCategoryAmbiguity,
}

// IsValidQuestionCategory checks if the given category is valid.
func IsValidQuestionCategory(c QuestionCategory) bool {
	for _, v := range ValidQuestionCategories {
		if v == c {
			return true
		}
	}
	return false
}

// ============================================================================
// Question Priority
// ============================================================================

// QuestionPriority is set at creation and immutable thereafter.
type QuestionPriority string

const (
	PriorityHigh   QuestionPriority = "high"
	PriorityMedium QuestionPriority = "medium"
	PriorityLow    QuestionPriority = "low"
)

// ValidQuestionPriorities contains all valid priority values.
var ValidQuestionPriorities = []QuestionPriority{
	PriorityHigh,
	PriorityMedium,
	PriorityLow,
}

// IsValidQuestionPriority checks if the given priority is valid.
func IsValidQuestionPriority(p QuestionPriority) bool {
	for _, v := range ValidQuestionPriorities {
		if v == p {
			return true
		}
	}
	return false
}

// ============================================================================
// SME Question Model
// ============================================================================

// SmeQuestion is a single point of ambiguity requiring human judgment,
// emitted after a job completes. Questions form a permanent audit trail and
// are never auto-deleted.
type SmeQuestion struct {
	ID           uuid.UUID  `json:"id"`
	JobID        *uuid.UUID `json:"job_id,omitempty"`
	DatabaseName string     `json:"database_name"`

	TableName  string           `json:"table_name,omitempty"`
	ColumnName string           `json:"column_name,omitempty"`
	Category   QuestionCategory `json:"category"`
	Question   string           `json:"question"`
	Options    []string         `json:"options,omitempty"`
	Reasoning  string           `json:"reasoning,omitempty"`
	Priority   QuestionPriority `json:"priority"`

	// DedupeKey is the content hash over (category, table, column-or-pair);
	// re-emitting for the same job result is a no-op.
	DedupeKey string `json:"dedupe_key"`

	Response   string     `json:"response,omitempty"`
	IsAnswered bool       `json:"is_answered"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSmeQuestion creates an unanswered question.
func NewSmeQuestion(databaseName string, category QuestionCategory, question string, priority QuestionPriority) *SmeQuestion {
	now := time.Now()
	return &SmeQuestion{
		ID:           uuid.New(),
		DatabaseName: databaseName,
		Category:     category,
		Question:     question,
		Priority:     priority,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ComputeDedupeKey creates a SHA256 hash of category + table + column (or pair
// key) for deduplication. Returns the first 16 characters of the hex-encoded
// hash.
func ComputeDedupeKey(category QuestionCategory, table, columnOrPair string) string {
	h := sha256.New()
	h.Write([]byte(string(category) + "|" + table + "|" + columnOrPair))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Answer records a response. The answered flag holds if and only if a
// non-empty response has been recorded; a question is answered exactly once.
func (q *SmeQuestion) Answer(response string) error {
	if q.IsAnswered {
		return fmt.Errorf("question %s already answered", q.ID)
	}
	if strings.TrimSpace(response) == "" {
		return fmt.Errorf("response must not be empty")
	}
	now := time.Now()
	q.Response = response
	q.IsAnswered = true
	q.AnsweredAt = &now
	q.UpdatedAt = now
	return nil
}
