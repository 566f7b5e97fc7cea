package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairKey(t *testing.T) {
	c := &ForeignKeyCandidate{
		SourceTable:  "orders",
		SourceColumn: "customer_id",
		TargetTable:  "customers",
		TargetColumn: "id",
	}
	assert.Equal(t, "orders.customer_id->customers.id", c.PairKey())

	// Direction matters: the reversed pair is a different candidate.
	reversed := &ForeignKeyCandidate{
		SourceTable:  "customers",
		SourceColumn: "id",
		TargetTable:  "orders",
		TargetColumn: "customer_id",
	}
	assert.NotEqual(t, c.PairKey(), reversed.PairKey())
}

func TestCandidateValidate(t *testing.T) {
	valid := &ForeignKeyCandidate{
		SourceTable:  "orders",
		SourceColumn: "customer_id",
		TargetTable:  "customers",
		TargetColumn: "id",
		Confidence:   0.85,
		Kind:         RelationshipOneToMany,
	}
	assert.NoError(t, valid.Validate())

	outOfRange := *valid
	outOfRange.Confidence = 1.2
	assert.Error(t, outOfRange.Validate())

	missingEndpoint := *valid
	missingEndpoint.TargetColumn = ""
	assert.Error(t, missingEndpoint.Validate())

	badKind := *valid
	badKind.Kind = RelationshipKind("circular")
	assert.Error(t, badKind.Validate())
}
