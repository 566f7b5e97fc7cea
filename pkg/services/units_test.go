package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablescribe-ai/tablescribe-engine/pkg/models"
)

func TestEnumerateUnitsPerTable(t *testing.T) {
	units := EnumerateUnits(models.JobTypeAIContext, []string{"orders", "customers", "items"})

	require.Len(t, units, 3)
	assert.Equal(t, "customers", units[0].ID)
	assert.Equal(t, "items", units[1].ID)
	assert.Equal(t, "orders", units[2].ID)
	for i, u := range units {
		assert.Equal(t, i, u.Index)
		assert.Len(t, u.Tables, 1)
	}
}

func TestEnumerateUnitsJoinDetectionPairs(t *testing.T) {
	units := EnumerateUnits(models.JobTypeJoinDetection, []string{"orders", "customers", "items"})

	// All unordered pairs from a sorted 3-table set.
	require.Len(t, units, 3)
	assert.Equal(t, "customers+items", units[0].ID)
	assert.Equal(t, "customers+orders", units[1].ID)
	assert.Equal(t, "items+orders", units[2].ID)
	assert.Equal(t, []string{"customers", "items"}, units[0].Tables)
}

func TestEnumerateUnitsStableAcrossInputOrder(t *testing.T) {
	a := EnumerateUnits(models.JobTypeJoinDetection, []string{"b", "a", "c"})
	b := EnumerateUnits(models.JobTypeJoinDetection, []string{"c", "b", "a"})
	assert.Equal(t, a, b)
}

func TestEnumerateUnitsEmptySet(t *testing.T) {
	assert.Empty(t, EnumerateUnits(models.JobTypeSchema, nil))
	assert.Empty(t, EnumerateUnits(models.JobTypeJoinDetection, []string{"solo"}))
}

func TestPairUnitIDOrderInsensitive(t *testing.T) {
	assert.Equal(t, PairUnitID("orders", "customers"), PairUnitID("customers", "orders"))
}
