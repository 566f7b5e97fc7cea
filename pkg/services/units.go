package services

import (
	"sort"

	"github.com/tablescribe-ai/tablescribe-engine/pkg/models"
)

// WorkUnit is the smallest independently retryable piece of job work: one
// table, or one table pair for join detection.
type WorkUnit struct {
	// Index is the unit's position in the enumeration. Stable across
	// resumptions for a given table set and job type.
	Index int

	// ID identifies the unit within the job: the table name, or the pair key
	// "a+b" with the two table names in sorted order.
	ID string

	// Tables holds one table, or two for a pair unit.
	Tables []string
}

// PairUnitID builds the identifier for a table pair unit. The two names are
// ordered so either argument order yields the same ID.
func PairUnitID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "+" + b
}

// EnumerateUnits produces the deterministic, stable-ordered unit sequence for
// a job. The input table set is sorted first so the same set always yields the
// same sequence and indices, which resumption depends on.
//
// For join_detection the units are all unordered table pairs drawn from the
// set, each pair visited once. Every other job type gets one unit per table.
func EnumerateUnits(jobType models.JobType, tables []string) []WorkUnit {
	sorted := make([]string, len(tables))
	copy(sorted, tables)
	sort.Strings(sorted)

	var units []WorkUnit

	if jobType == models.JobTypeJoinDetection {
		for i := 0; i < len(sorted); i++ {
			for j := i + 1; j < len(sorted); j++ {
				units = append(units, WorkUnit{
					Index:  len(units),
					ID:     PairUnitID(sorted[i], sorted[j]),
					Tables: []string{sorted[i], sorted[j]},
				})
			}
		}
		return units
	}

	for i, table := range sorted {
		units = append(units, WorkUnit{
			Index:  i,
			ID:     table,
			Tables: []string{table},
		})
	}
	return units
}
