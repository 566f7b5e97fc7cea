package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnalysisJob(t *testing.T) {
	job := NewAnalysisJob("sales", JobTypeAIContext, []string{"orders", "customers"}, 5)

	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, "sales", job.DatabaseName)
	assert.Equal(t, 5, job.BatchSize)
	assert.Empty(t, job.ProcessedUnitIDs)
	assert.NotNil(t, job.Result)
	assert.NotEqual(t, "", job.ID.String())
}

func TestJobStatusIsTerminal(t *testing.T) {
	assert.False(t, JobStatusPending.IsTerminal())
	assert.False(t, JobStatusRunning.IsTerminal())
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
}

func TestComputeProgress(t *testing.T) {
	tests := []struct {
		name      string
		completed int
		total     int
		want      int
	}{
		{"no units means done", 0, 0, 100},
		{"halfway", 5, 10, 50},
		{"complete", 10, 10, 100},
		{"rounds down", 1, 3, 33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &AnalysisJob{CompletedUnits: tt.completed, TotalUnits: tt.total}
			assert.Equal(t, tt.want, job.ComputeProgress())
		})
	}
}

func TestIntegrity(t *testing.T) {
	t.Run("consistent state passes", func(t *testing.T) {
		job := &AnalysisJob{
			TotalUnits:       5,
			CompletedUnits:   2,
			ProcessedUnitIDs: []string{"orders", "customers"},
		}
		require.NoError(t, job.Integrity())
	})

	t.Run("counter disagrees with processed set", func(t *testing.T) {
		job := &AnalysisJob{
			TotalUnits:       5,
			CompletedUnits:   3,
			ProcessedUnitIDs: []string{"orders", "customers"},
		}
		require.Error(t, job.Integrity())
	})

	t.Run("duplicate processed unit", func(t *testing.T) {
		job := &AnalysisJob{
			TotalUnits:       5,
			CompletedUnits:   2,
			ProcessedUnitIDs: []string{"orders", "orders"},
		}
		require.Error(t, job.Integrity())
	})

	t.Run("completed exceeds total", func(t *testing.T) {
		job := &AnalysisJob{
			TotalUnits:       2,
			CompletedUnits:   3,
			ProcessedUnitIDs: []string{"a", "b", "c"},
		}
		require.Error(t, job.Integrity())
	})

	t.Run("unit both processed and failed", func(t *testing.T) {
		job := &AnalysisJob{
			TotalUnits:       5,
			CompletedUnits:   2,
			ProcessedUnitIDs: []string{"orders", "customers"},
			FailedUnitIDs:    []string{"orders"},
		}
		require.Error(t, job.Integrity())
	})
}

func TestComputeProgressCountsFailedUnits(t *testing.T) {
	job := &AnalysisJob{
		TotalUnits:     5,
		CompletedUnits: 3,
		FailedUnitIDs:  []string{"items"},
	}
	assert.Equal(t, 80, job.ComputeProgress())
	assert.Equal(t, 4, job.AttemptedUnits())
}

func TestIsValidJobType(t *testing.T) {
	assert.True(t, IsValidJobType(JobTypeJoinDetection))
	assert.True(t, IsValidJobType(JobTypeSchema))
	assert.False(t, IsValidJobType(JobType("bogus")))
}
