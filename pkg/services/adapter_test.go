package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tablescribe-ai/tablescribe-engine/pkg/adapters/datasource"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/llm"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/models"
)

// stubCatalog is an in-memory datasource.Catalog backed by fixture maps
// keyed by "schema.table".
type stubCatalog struct {
	tables  []datasource.TableMetadata
	columns map[string][]datasource.ColumnMetadata
	fks     []datasource.ForeignKeyMetadata
	stats   map[string][]datasource.ColumnStats
	samples map[string][]string
}

var _ datasource.Catalog = (*stubCatalog)(nil)

func (c *stubCatalog) ListTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	return c.tables, nil
}

func (c *stubCatalog) ListColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	return c.columns[schemaName+"."+tableName], nil
}

func (c *stubCatalog) ListForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	return c.fks, nil
}

func (c *stubCatalog) SampleDistinctValues(ctx context.Context, schemaName, tableName, columnName string, limit int) ([]string, error) {
	return c.samples[schemaName+"."+tableName+"."+columnName], nil
}

func (c *stubCatalog) AnalyzeColumnStats(ctx context.Context, schemaName, tableName string, columnNames []string) ([]datasource.ColumnStats, error) {
	return c.stats[schemaName+"."+tableName], nil
}

func (c *stubCatalog) Close() error { return nil }

func ordersCatalog() *stubCatalog {
	return &stubCatalog{
		tables: []datasource.TableMetadata{
			{SchemaName: "public", TableName: "orders", RowCount: 1042},
			{SchemaName: "public", TableName: "customers", RowCount: 310},
		},
		columns: map[string][]datasource.ColumnMetadata{
			"public.orders": {
				{ColumnName: "id", DataType: "uuid", IsPrimaryKey: true, OrdinalPosition: 1},
				{ColumnName: "customer_id", DataType: "uuid", OrdinalPosition: 2},
				{ColumnName: "status", DataType: "text", OrdinalPosition: 3},
			},
			"public.customers": {
				{ColumnName: "id", DataType: "uuid", IsPrimaryKey: true, OrdinalPosition: 1},
				{ColumnName: "email", DataType: "text", IsUnique: true, OrdinalPosition: 2},
			},
		},
		stats: map[string][]datasource.ColumnStats{
			"public.orders": {
				{ColumnName: "id", RowCount: 1042, NonNullCount: 1042, DistinctCount: 1042},
				{ColumnName: "status", RowCount: 1042, NonNullCount: 1000, DistinctCount: 3},
			},
		},
		samples: map[string][]string{
			"public.orders.status": {"open", "shipped", "cancelled"},
		},
	}
}

func newTestAdapter(catalog datasource.Catalog, client llm.Client) AnalysisAdapter {
	return NewAnalysisAdapter(catalog, client, "shopdb", "public", zap.NewNop())
}

func TestDescribeTableSchemaOnly(t *testing.T) {
	client := &llm.MockClient{}
	adapter := newTestAdapter(ordersCatalog(), client)

	outcome, err := adapter.DescribeTable(context.Background(), models.JobTypeSchema, "orders")
	require.NoError(t, err)
	require.Equal(t, ResultOk, outcome.Status)

	require.NotNil(t, outcome.Table.RowCount)
	assert.Equal(t, int64(1042), *outcome.Table.RowCount)
	require.Len(t, outcome.Table.Columns, 3)
	assert.Equal(t, "id", outcome.Table.Columns[0].Name)
	assert.True(t, outcome.Table.Columns[0].IsPrimaryKey)
	assert.Equal(t, 0, client.Calls, "schema analysis never calls the backend")
}

func TestDescribeTableStatistical(t *testing.T) {
	adapter := newTestAdapter(ordersCatalog(), &llm.MockClient{})

	outcome, err := adapter.DescribeTable(context.Background(), models.JobTypeStatistical, "orders")
	require.NoError(t, err)
	require.Equal(t, ResultOk, outcome.Status)

	var status *models.ColumnAnalysis
	for i := range outcome.Table.Columns {
		if outcome.Table.Columns[i].Name == "status" {
			status = &outcome.Table.Columns[i]
		}
	}
	require.NotNil(t, status)
	require.NotNil(t, status.DistinctCount)
	assert.Equal(t, int64(3), *status.DistinctCount)
	require.NotNil(t, status.NullCount)
	assert.Equal(t, int64(42), *status.NullCount)
}

func TestDescribeTableWithBackend(t *testing.T) {
	client := &llm.MockClient{Responses: []string{"```json\n" + `{
		"description": "Order headers",
		"business_purpose": "Tracks customer purchases",
		"low_confidence": false,
		"columns": [
			{"name": "status", "description": "fulfillment state", "enum_values": ["open", "shipped", "cancelled"]},
			{"name": "invented_column", "description": "should be dropped"}
		]
	}` + "\n```"}}
	adapter := newTestAdapter(ordersCatalog(), client)

	outcome, err := adapter.DescribeTable(context.Background(), models.JobTypeAIContext, "orders")
	require.NoError(t, err)
	require.Equal(t, ResultOk, outcome.Status)

	assert.Equal(t, "Order headers", outcome.Table.Description)
	assert.Equal(t, "Tracks customer purchases", outcome.Table.BusinessPurpose)
	assert.False(t, outcome.Table.LowConfidence)

	byName := make(map[string]models.ColumnAnalysis)
	for _, col := range outcome.Table.Columns {
		byName[col.Name] = col
	}
	assert.Equal(t, []string{"open", "shipped", "cancelled"}, byName["status"].EnumValues)
	assert.NotContains(t, byName, "invented_column")

	// The sampled enum values made it into the prompt.
	require.Len(t, client.Prompts, 1)
	assert.Contains(t, client.Prompts[0], "open")
}

func TestDescribeTableMalformedBackendResponse(t *testing.T) {
	client := &llm.MockClient{Responses: []string{"I think this table holds orders."}}
	adapter := newTestAdapter(ordersCatalog(), client)

	outcome, err := adapter.DescribeTable(context.Background(), models.JobTypeAIContext, "orders")
	require.NoError(t, err)
	assert.Equal(t, ResultMalformed, outcome.Status)
	assert.Equal(t, "I think this table holds orders.", outcome.Raw)
}

func TestDescribeTableUnknownTable(t *testing.T) {
	adapter := newTestAdapter(ordersCatalog(), &llm.MockClient{})

	outcome, err := adapter.DescribeTable(context.Background(), models.JobTypeSchema, "no_such_table")
	require.NoError(t, err)
	assert.Equal(t, ResultEmpty, outcome.Status)
}

func TestAssessRelationshipFindsCandidate(t *testing.T) {
	client := &llm.MockClient{Responses: []string{`{
		"confidence": 0.85,
		"relationship_kind": "one-to-many",
		"reasoning": "column name and uuid type match the customers primary key"
	}`}}
	adapter := newTestAdapter(ordersCatalog(), client)

	outcome, err := adapter.AssessRelationship(context.Background(), "orders", "customers")
	require.NoError(t, err)
	require.Equal(t, ResultOk, outcome.Status)
	require.Len(t, outcome.Candidates, 1)

	c := outcome.Candidates[0]
	assert.Equal(t, "orders", c.SourceTable)
	assert.Equal(t, "customer_id", c.SourceColumn)
	assert.Equal(t, "customers", c.TargetTable)
	assert.Equal(t, "id", c.TargetColumn)
	assert.Equal(t, 0.85, c.Confidence)
	assert.Equal(t, models.RelationshipOneToMany, c.Kind)
	assert.Equal(t, "shopdb", c.DatabaseName)
	require.NotNil(t, c.NameSimilarity)
	assert.Greater(t, *c.NameSimilarity, 0.0)
}

func TestAssessRelationshipPartialMalformedIsSurfaced(t *testing.T) {
	catalog := ordersCatalog()
	// A second plausible pair in the other direction: customers.order_id
	// against orders.id.
	catalog.columns["public.customers"] = append(catalog.columns["public.customers"],
		datasource.ColumnMetadata{ColumnName: "order_id", DataType: "uuid", OrdinalPosition: 3})

	client := &llm.MockClient{Responses: []string{
		`{"confidence": 0.85, "relationship_kind": "one-to-many", "reasoning": "strong name match"}`,
		"I'm sorry, I can't assess that relationship.",
	}}
	adapter := newTestAdapter(catalog, client)

	outcome, err := adapter.AssessRelationship(context.Background(), "orders", "customers")
	require.NoError(t, err)
	require.Equal(t, ResultOk, outcome.Status, "a parseable pair keeps the unit alive")
	require.Len(t, outcome.Candidates, 1)
	assert.Equal(t, "customer_id", outcome.Candidates[0].SourceColumn)

	assert.Equal(t, 1, outcome.Malformed, "the dropped response is counted")
	assert.Contains(t, outcome.Raw, "can't assess")
}

func TestAssessRelationshipSkipsDeclaredConstraints(t *testing.T) {
	catalog := ordersCatalog()
	catalog.fks = []datasource.ForeignKeyMetadata{{
		ConstraintName: "orders_customer_id_fkey",
		SourceSchema:   "public",
		SourceTable:    "orders",
		SourceColumn:   "customer_id",
		TargetSchema:   "public",
		TargetTable:    "customers",
		TargetColumn:   "id",
	}}
	client := &llm.MockClient{}
	adapter := newTestAdapter(catalog, client)

	outcome, err := adapter.AssessRelationship(context.Background(), "orders", "customers")
	require.NoError(t, err)
	assert.Equal(t, ResultEmpty, outcome.Status)
	assert.Equal(t, 0, client.Calls, "declared pairs are never re-proposed")
}

func TestAssessRelationshipInvalidConfidence(t *testing.T) {
	client := &llm.MockClient{Responses: []string{`{"confidence": 7.5, "relationship_kind": "one-to-many"}`}}
	adapter := newTestAdapter(ordersCatalog(), client)

	outcome, err := adapter.AssessRelationship(context.Background(), "orders", "customers")
	require.NoError(t, err)
	assert.Equal(t, ResultMalformed, outcome.Status)
	assert.NotEmpty(t, outcome.Raw)
}

func TestAssessRelationshipInvalidKindFallsBackToUnknown(t *testing.T) {
	client := &llm.MockClient{Responses: []string{`{"confidence": "0.6", "relationship_kind": "sideways"}`}}
	adapter := newTestAdapter(ordersCatalog(), client)

	outcome, err := adapter.AssessRelationship(context.Background(), "orders", "customers")
	require.NoError(t, err)
	require.Equal(t, ResultOk, outcome.Status)
	require.Len(t, outcome.Candidates, 1)
	assert.Equal(t, models.RelationshipUnknown, outcome.Candidates[0].Kind)
	assert.Equal(t, 0.6, outcome.Candidates[0].Confidence)
}

func TestAssessRelationshipNoPlausiblePairs(t *testing.T) {
	catalog := ordersCatalog()
	catalog.columns["public.warehouses"] = []datasource.ColumnMetadata{
		{ColumnName: "id", DataType: "uuid", IsPrimaryKey: true, OrdinalPosition: 1},
	}
	client := &llm.MockClient{}
	adapter := newTestAdapter(catalog, client)

	outcome, err := adapter.AssessRelationship(context.Background(), "orders", "warehouses")
	require.NoError(t, err)
	assert.Equal(t, ResultEmpty, outcome.Status)
	assert.Equal(t, 0, client.Calls)
}
