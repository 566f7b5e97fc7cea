package prompts

import (
	"fmt"
	"strings"
)

// ColumnProfile provides column details for backend analysis.
type ColumnProfile struct {
	Name          string
	DataType      string
	IsNullable    bool
	IsPrimaryKey  bool
	DistinctCount *int64
	SampleValues  []string
}

// TableProfile provides full schema context for a table.
type TableProfile struct {
	Name     string
	RowCount *int64
	Columns  []ColumnProfile
}

// BuildTableDescriptionPrompt creates the prompt asking the backend to
// describe one table: table purpose, per-column descriptions, and
// enumerated-value hypotheses, all in one call to amortize call overhead.
func BuildTableDescriptionPrompt(table TableProfile) string {
	var prompt strings.Builder

	prompt.WriteString("# Table Analysis\n\n")
	prompt.WriteString(fmt.Sprintf("Analyze the database table `%s` and describe its business meaning.\n\n", table.Name))

	prompt.WriteString("## Schema\n\n")
	if table.RowCount != nil {
		prompt.WriteString(fmt.Sprintf("Row count: %d\n", *table.RowCount))
	}
	prompt.WriteString("Columns:\n")
	for _, col := range table.Columns {
		flags := ""
		if col.IsPrimaryKey {
			flags += " [PK]"
		}
		if col.IsNullable {
			flags += " (nullable)"
		}
		prompt.WriteString(fmt.Sprintf("- %s: %s%s", col.Name, col.DataType, flags))
		if col.DistinctCount != nil {
			prompt.WriteString(fmt.Sprintf(", %d distinct values", *col.DistinctCount))
		}
		if len(col.SampleValues) > 0 {
			prompt.WriteString(fmt.Sprintf(", samples: %s", strings.Join(col.SampleValues, ", ")))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("\n## Instructions\n\n")
	prompt.WriteString("For each column with a small distinct value set that looks like a status/type/category, ")
	prompt.WriteString("propose the enumerated values as an enum hypothesis.\n")
	prompt.WriteString("If you are uncertain about the table's purpose, set low_confidence to true.\n\n")

	prompt.WriteString("## Response Format\n\n")
	prompt.WriteString("Respond with JSON only, no markdown fences:\n")
	prompt.WriteString(`{
  "description": "one-sentence table description",
  "business_purpose": "what business process this table supports",
  "low_confidence": false,
  "columns": [
    {"name": "column_name", "description": "column meaning", "enum_values": ["optional", "hypothesized", "values"]}
  ]
}
`)

	return prompt.String()
}

// BuildTableDescriptionSystemMessage returns the system message for table
// description analysis.
func BuildTableDescriptionSystemMessage() string {
	return "You are a database analyst documenting a relational schema for business users. " +
		"Be concise and factual. Never invent columns that are not in the schema. " +
		"Respond with valid JSON only."
}

// PairProfile provides the context for assessing one candidate column pair.
type PairProfile struct {
	SourceTable      string
	SourceColumn     string
	SourceColumnType string
	TargetTable      string
	TargetColumn     string
	TargetColumnType string
	TargetIsPrimary  bool
	NameSimilarity   float64
	TypeCompatible   bool
	Cardinality      string // "1:1", "1:N", "N:M" if sampled, empty otherwise
}

// BuildRelationshipAssessmentPrompt creates the prompt for assessing whether
// a candidate column pair is a real foreign key relationship.
func BuildRelationshipAssessmentPrompt(pair PairProfile) string {
	var prompt strings.Builder

	prompt.WriteString("# Relationship Assessment\n\n")
	prompt.WriteString("Determine whether the following column pair is a foreign key relationship.\n\n")

	prompt.WriteString(fmt.Sprintf("Source: %s.%s (%s)\n", pair.SourceTable, pair.SourceColumn, pair.SourceColumnType))
	prompt.WriteString(fmt.Sprintf("Target: %s.%s (%s)", pair.TargetTable, pair.TargetColumn, pair.TargetColumnType))
	if pair.TargetIsPrimary {
		prompt.WriteString(" [PK]")
	}
	prompt.WriteString("\n\n")

	prompt.WriteString("## Signals\n\n")
	prompt.WriteString(fmt.Sprintf("- Name similarity: %.2f\n", pair.NameSimilarity))
	prompt.WriteString(fmt.Sprintf("- Datatype compatible: %t\n", pair.TypeCompatible))
	if pair.Cardinality != "" {
		prompt.WriteString(fmt.Sprintf("- Observed cardinality: %s\n", pair.Cardinality))
	}

	prompt.WriteString("\n## Response Format\n\n")
	prompt.WriteString("Respond with JSON only, no markdown fences:\n")
	prompt.WriteString(`{
  "confidence": 0.0,
  "relationship_kind": "one-to-one | one-to-many | many-to-many | unknown",
  "reasoning": "one or two sentences explaining the judgment"
}
`)

	return prompt.String()
}

// BuildRelationshipAssessmentSystemMessage returns the system message for
// relationship assessment.
func BuildRelationshipAssessmentSystemMessage() string {
	return "You are a database analyst inferring foreign key relationships from schema metadata. " +
		"Weigh the provided signals; a high name similarity with compatible types usually indicates " +
		"a real relationship. Respond with valid JSON only."
}
