package datasource

import "context"

// Catalog provides read-only schema introspection for an analyzed database.
// Each implementation owns its connection and must be closed when done.
type Catalog interface {
	// ListTables returns all user tables (excludes system schemas).
	ListTables(ctx context.Context) ([]TableMetadata, error)

	// ListColumns returns columns for a specific table in ordinal order.
	ListColumns(ctx context.Context, schemaName, tableName string) ([]ColumnMetadata, error)

	// ListForeignKeys returns all declared foreign key constraints.
	// Declared constraints are excluded from join candidate generation.
	ListForeignKeys(ctx context.Context) ([]ForeignKeyMetadata, error)

	// SampleDistinctValues returns up to limit distinct non-null values from a
	// column, as strings sorted alphabetically. Used to collect sample values
	// for enumerated-value hypotheses.
	SampleDistinctValues(ctx context.Context, schemaName, tableName, columnName string, limit int) ([]string, error)

	// AnalyzeColumnStats gathers row, non-null, and distinct counts for the
	// named columns. Used by statistical analysis.
	AnalyzeColumnStats(ctx context.Context, schemaName, tableName string, columnNames []string) ([]ColumnStats, error)

	// Close releases the database connection.
	Close() error
}

// TableMetadata represents a discovered database table.
type TableMetadata struct {
	SchemaName string
	TableName  string
	RowCount   int64
}

// ColumnMetadata represents a discovered database column.
type ColumnMetadata struct {
	ColumnName      string
	DataType        string
	IsNullable      bool
	IsPrimaryKey    bool
	IsUnique        bool
	OrdinalPosition int
}

// ColumnStats contains statistics for a column.
type ColumnStats struct {
	ColumnName    string
	RowCount      int64
	NonNullCount  int64
	DistinctCount int64
}

// ForeignKeyMetadata represents a declared foreign key constraint.
type ForeignKeyMetadata struct {
	ConstraintName string
	SourceSchema   string
	SourceTable    string
	SourceColumn   string
	TargetSchema   string
	TargetTable    string
	TargetColumn   string
}
