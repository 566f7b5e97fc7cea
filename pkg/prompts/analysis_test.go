package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildTableDescriptionPrompt(t *testing.T) {
	rowCount := int64(1042)
	distinct := int64(3)
	prompt := BuildTableDescriptionPrompt(TableProfile{
		Name:     "orders",
		RowCount: &rowCount,
		Columns: []ColumnProfile{
			{Name: "id", DataType: "uuid", IsPrimaryKey: true},
			{Name: "status", DataType: "text", DistinctCount: &distinct, SampleValues: []string{"open", "shipped"}},
		},
	})

	assert.Contains(t, prompt, "`orders`")
	assert.Contains(t, prompt, "Row count: 1042")
	assert.Contains(t, prompt, "id: uuid [PK]")
	assert.Contains(t, prompt, "3 distinct values")
	assert.Contains(t, prompt, "samples: open, shipped")
	assert.Contains(t, prompt, `"enum_values"`)
}

func TestBuildRelationshipAssessmentPrompt(t *testing.T) {
	prompt := BuildRelationshipAssessmentPrompt(PairProfile{
		SourceTable:      "orders",
		SourceColumn:     "customer_id",
		SourceColumnType: "uuid",
		TargetTable:      "customers",
		TargetColumn:     "id",
		TargetColumnType: "uuid",
		TargetIsPrimary:  true,
		NameSimilarity:   0.92,
		TypeCompatible:   true,
		Cardinality:      "1:N",
	})

	assert.Contains(t, prompt, "orders.customer_id (uuid)")
	assert.Contains(t, prompt, "customers.id (uuid) [PK]")
	assert.Contains(t, prompt, "Name similarity: 0.92")
	assert.Contains(t, prompt, "Observed cardinality: 1:N")
	assert.Contains(t, prompt, `"relationship_kind"`)
}
