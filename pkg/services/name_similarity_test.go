package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		name         string
		sourceColumn string
		targetTable  string
		targetColumn string
		want         float64
	}{
		{"table_id pattern", "user_id", "users", "id", SimilarityTableIDPattern},
		{"table_id singular table", "order_id", "order", "id", SimilarityTableIDPattern},
		{"column matches table", "customer", "customers", "id", SimilarityColumnNameMatch},
		{"identical column names", "sku", "products", "sku", SimilarityColumnEquality},
		{"generic id does not count as equality", "id", "products", "id", 0},
		{"no pattern", "notes", "customers", "id", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NameSimilarity(tt.sourceColumn, tt.targetTable, tt.targetColumn)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTypesCompatible(t *testing.T) {
	assert.True(t, TypesCompatible("bigint", "integer"))
	assert.True(t, TypesCompatible("uuid", "UNIQUEIDENTIFIER"))
	assert.True(t, TypesCompatible("uuid", "text"))
	assert.True(t, TypesCompatible("character varying", "TEXT"))
	assert.False(t, TypesCompatible("integer", "text"))
	assert.False(t, TypesCompatible("boolean", "timestamp"))
}
