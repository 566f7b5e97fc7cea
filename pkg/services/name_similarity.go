package services

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// Name-pattern confidence signals fed to the relationship assessment.
const (
	// SimilarityTableIDPattern scores {table}_id → {table}.id (e.g. user_id → users.id).
	SimilarityTableIDPattern = 0.8

	// SimilarityColumnNameMatch scores a column whose name matches the target
	// table name (e.g. customer → customers.id).
	SimilarityColumnNameMatch = 0.7

	// SimilarityColumnEquality scores identical column names on both sides
	// (weak signal, common with generic names like "code").
	SimilarityColumnEquality = 0.4
)

// normalizeName lowercases and singularizes a table or column name so that
// "Users", "users" and "user" all compare equal.
func normalizeName(name string) string {
	return inflection.Singular(strings.ToLower(name))
}

// NameSimilarity scores how strongly a source column name points at a target
// table/column by naming convention alone. Returns 0 when no pattern matches.
func NameSimilarity(sourceColumn, targetTable, targetColumn string) float64 {
	srcCol := strings.ToLower(sourceColumn)
	normTable := normalizeName(targetTable)

	if strings.HasSuffix(srcCol, "_id") {
		prefix := strings.TrimSuffix(srcCol, "_id")
		if normalizeName(prefix) == normTable {
			return SimilarityTableIDPattern
		}
	}

	if normalizeName(srcCol) == normTable {
		return SimilarityColumnNameMatch
	}

	if srcCol == strings.ToLower(targetColumn) && srcCol != "id" {
		return SimilarityColumnEquality
	}

	return 0
}

// typeFamily buckets normalized datatype names into comparable families.
func typeFamily(dataType string) string {
	dt := strings.ToUpper(dataType)
	switch {
	case strings.Contains(dt, "INT") || dt == "NUMERIC" || dt == "DECIMAL" ||
		dt == "BIGSERIAL" || dt == "SERIAL" || dt == "SMALLSERIAL":
		return "integer"
	case strings.Contains(dt, "CHAR") || dt == "TEXT" || dt == "NAME" || dt == "CHARACTER VARYING":
		return "text"
	case dt == "UUID" || dt == "UNIQUEIDENTIFIER":
		return "uuid"
	case strings.Contains(dt, "TIMESTAMP") || dt == "DATE" || strings.Contains(dt, "TIME"):
		return "time"
	case strings.Contains(dt, "FLOAT") || strings.Contains(dt, "DOUBLE") || dt == "REAL":
		return "float"
	case dt == "BOOLEAN" || dt == "BIT" || dt == "BOOL":
		return "bool"
	default:
		return dt
	}
}

// TypesCompatible reports whether two column datatypes could plausibly hold
// the same key values. UUIDs stored as text are a common enough pattern that
// uuid/text is treated as compatible.
func TypesCompatible(a, b string) bool {
	fa, fb := typeFamily(a), typeFamily(b)
	if fa == fb {
		return true
	}
	if (fa == "uuid" && fb == "text") || (fa == "text" && fb == "uuid") {
		return true
	}
	return false
}
