package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Job Types
// ============================================================================

// JobType represents the category of analysis a job performs.
type JobType string

const (
	JobTypeSchema        JobType = "schema"
	JobTypeStatistical   JobType = "statistical"
	JobTypeAIContext     JobType = "ai_context"
	JobTypeJoinDetection JobType = "join_detection"
)

// ValidJobTypes contains all valid job type values.
var ValidJobTypes = []JobType{
	JobTypeSchema,
	JobTypeStatistical,
	JobTypeAIContext,
	JobTypeJoinDetection,
}

// IsValidJobType checks if the given type is valid.
func IsValidJobType(t JobType) bool {
	for _, v := range ValidJobTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ============================================================================
// Job Status
// ============================================================================

// JobStatus represents the execution status of an analysis job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ValidJobStatuses contains all valid job status values.
var ValidJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusRunning,
	JobStatusCompleted,
	JobStatusFailed,
}

// IsValidJobStatus checks if the given status is valid.
func IsValidJobStatus(s JobStatus) bool {
	for _, v := range ValidJobStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the status is terminal (completed or failed).
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ============================================================================
// Accumulated Result
// ============================================================================

// ColumnAnalysis holds the per-column portion of a table's analysis result.
type ColumnAnalysis struct {
	Name          string   `json:"name"`
	DataType      string   `json:"data_type,omitempty"`
	IsPrimaryKey  bool     `json:"is_pk,omitempty"`
	Description   string   `json:"description,omitempty"`
	EnumValues    []string `json:"enum_values,omitempty"` // enumerated-value hypothesis
	DistinctCount *int64   `json:"distinct_count,omitempty"`
	NullCount     *int64   `json:"null_count,omitempty"`
}

// TableAnalysis holds one table's accumulated analysis result.
type TableAnalysis struct {
	Description     string           `json:"description,omitempty"`
	BusinessPurpose string           `json:"business_purpose,omitempty"`
	RowCount        *int64           `json:"row_count,omitempty"`
	LowConfidence   bool             `json:"low_confidence,omitempty"` // backend flagged its own output as uncertain
	Columns         []ColumnAnalysis `json:"columns,omitempty"`
}

// AnalysisResult is a job's accumulated result. The populated fields depend on
// the job type: Tables for schema/statistical/ai_context, Candidates for
// join_detection.
type AnalysisResult struct {
	Tables     map[string]*TableAnalysis `json:"tables,omitempty"`
	Candidates []*ForeignKeyCandidate    `json:"candidates,omitempty"`
}

// NewAnalysisResult returns an empty result ready for merging.
func NewAnalysisResult() *AnalysisResult {
	return &AnalysisResult{Tables: make(map[string]*TableAnalysis)}
}

// ============================================================================
// Analysis Job Model
// ============================================================================

// AnalysisJob represents one (database, job type) execution attempt of the
// incremental analysis pipeline. Progress is resumable: the processed-unit set
// is persisted after every batch, so an interrupted job continues from where
// it left off without repeating completed work.
type AnalysisJob struct {
	ID           uuid.UUID `json:"id"`
	DatabaseName string    `json:"database_name"`
	Type         JobType   `json:"job_type"`
	Status       JobStatus `json:"status"`

	// Progress percentage is derived from unit counts, never authoritative.
	Progress int `json:"progress"`

	// Tables is the selected table set, preserved so unit enumeration is
	// stable across resumptions.
	Tables []string `json:"tables"`

	Result    *AnalysisResult `json:"result,omitempty"`
	LastError string          `json:"last_error,omitempty"`

	// Batch resumption state
	TotalUnits               int      `json:"total_units"`
	CompletedUnits           int      `json:"completed_units"`
	BatchSize                int      `json:"batch_size"`
	ProcessedUnitIDs         []string `json:"processed_unit_ids"`
	FailedUnitIDs            []string `json:"failed_unit_ids"`
	NextIndex                int      `json:"next_index"`
	BatchIndex               int      `json:"batch_index"`
	ConsecutiveFailedBatches int      `json:"consecutive_failed_batches"`
	CancelRequested          bool     `json:"cancel_requested"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewAnalysisJob creates a pending job for the given database and table set.
func NewAnalysisJob(databaseName string, jobType JobType, tables []string, batchSize int) *AnalysisJob {
	now := time.Now()
	return &AnalysisJob{
		ID:               uuid.New(),
		DatabaseName:     databaseName,
		Type:             jobType,
		Status:           JobStatusPending,
		Tables:           tables,
		Result:           NewAnalysisResult(),
		BatchSize:        batchSize,
		ProcessedUnitIDs: []string{},
		FailedUnitIDs:    []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// IsRunning returns true if the job is currently running.
func (j *AnalysisJob) IsRunning() bool {
	return j.Status == JobStatusRunning
}

// IsComplete returns true if the job completed successfully.
func (j *AnalysisJob) IsComplete() bool {
	return j.Status == JobStatusCompleted
}

// HasFailed returns true if the job failed.
func (j *AnalysisJob) HasFailed() bool {
	return j.Status == JobStatusFailed
}

// ProcessedSet returns the processed unit IDs as a set.
func (j *AnalysisJob) ProcessedSet() map[string]bool {
	set := make(map[string]bool, len(j.ProcessedUnitIDs))
	for _, id := range j.ProcessedUnitIDs {
		set[id] = true
	}
	return set
}

// AttemptedSet returns the union of processed and permanently failed unit
// IDs. Units in this set are never re-attempted on resumption.
func (j *AnalysisJob) AttemptedSet() map[string]bool {
	set := make(map[string]bool, len(j.ProcessedUnitIDs)+len(j.FailedUnitIDs))
	for _, id := range j.ProcessedUnitIDs {
		set[id] = true
	}
	for _, id := range j.FailedUnitIDs {
		set[id] = true
	}
	return set
}

// AttemptedUnits returns how many units have been worked to a permanent
// outcome, successful or not.
func (j *AnalysisJob) AttemptedUnits() int {
	return j.CompletedUnits + len(j.FailedUnitIDs)
}

// ComputeProgress derives the completion percentage from unit counts. A unit
// that permanently failed still counts as worked. A job with no units is
// 100% done.
func (j *AnalysisJob) ComputeProgress() int {
	if j.TotalUnits == 0 {
		return 100
	}
	return (j.AttemptedUnits() * 100) / j.TotalUnits
}

// Integrity verifies the resumption invariants of a reloaded job. A mismatch
// between the processed-unit set and the completed counter means the persisted
// state cannot be trusted to resume from; the caller must fail the job rather
// than guess.
func (j *AnalysisJob) Integrity() error {
	set := make(map[string]bool, len(j.ProcessedUnitIDs))
	for _, id := range j.ProcessedUnitIDs {
		if set[id] {
			return fmt.Errorf("duplicate processed unit id %q", id)
		}
		set[id] = true
	}
	for _, id := range j.FailedUnitIDs {
		if set[id] {
			return fmt.Errorf("unit id %q is both processed and failed", id)
		}
		set[id] = true
	}
	if len(j.ProcessedUnitIDs) != j.CompletedUnits {
		return fmt.Errorf("processed unit set has %d entries but completed_units is %d",
			len(j.ProcessedUnitIDs), j.CompletedUnits)
	}
	if j.CompletedUnits > j.TotalUnits && j.TotalUnits > 0 {
		return fmt.Errorf("completed_units %d exceeds total_units %d", j.CompletedUnits, j.TotalUnits)
	}
	return nil
}
