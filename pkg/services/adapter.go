package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tablescribe-ai/tablescribe-engine/pkg/adapters/datasource"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/jsonutil"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/llm"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/models"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/prompts"
)

// ResultStatus tags an adapter outcome so the merger has an explicit case for
// every shape the backend can return, including degenerate ones.
type ResultStatus string

const (
	ResultOk        ResultStatus = "ok"
	ResultEmpty     ResultStatus = "empty"
	ResultMalformed ResultStatus = "malformed"
)

// TableOutcome is the tagged result of a table analysis unit.
type TableOutcome struct {
	Status ResultStatus
	Table  *models.TableAnalysis

	// Raw holds the unparseable backend response when Status is malformed.
	Raw string
}

// RelationshipOutcome is the tagged result of a join detection unit.
type RelationshipOutcome struct {
	Status     ResultStatus
	Candidates []*models.ForeignKeyCandidate
	Raw        string

	// Malformed counts pair responses that could not be interpreted while
	// other pairs of the same unit parsed fine; their raw text is in Raw.
	Malformed int
}

// AnalysisAdapter hides the concrete analysis backends behind the two
// operations the batch processor needs. A nil error with a malformed status
// means the call itself worked but produced garbage; errors are reserved for
// transport-level failures, which carry retryability.
type AnalysisAdapter interface {
	// DescribeTable analyzes one table. The depth depends on the job type:
	// schema inspects the catalog only, statistical adds column statistics,
	// ai_context adds backend-generated descriptions and enum hypotheses.
	DescribeTable(ctx context.Context, jobType models.JobType, tableName string) (*TableOutcome, error)

	// AssessRelationship analyzes one table pair and returns directed
	// relationship candidates between their columns.
	AssessRelationship(ctx context.Context, tableA, tableB string) (*RelationshipOutcome, error)
}

// enumSampleLimit bounds distinct-value sampling per column. A column with
// fewer distinct values than this is an enum hypothesis candidate.
const enumSampleLimit = 20

type analysisAdapter struct {
	catalog       datasource.Catalog
	llmClient     llm.Client
	databaseName  string
	defaultSchema string
	logger        *zap.Logger

	// declaredFKs caches the target database's declared constraints so pairs
	// the schema already encodes are not re-proposed.
	declaredFKs map[string]bool

	// rowCounts caches per-table row count estimates from the catalog.
	rowCounts map[string]int64
}

var _ AnalysisAdapter = (*analysisAdapter)(nil)

// NewAnalysisAdapter builds the production adapter over a catalog connection
// and a text-generation client.
func NewAnalysisAdapter(catalog datasource.Catalog, llmClient llm.Client, databaseName, defaultSchema string, logger *zap.Logger) AnalysisAdapter {
	if defaultSchema == "" {
		defaultSchema = "public"
	}
	return &analysisAdapter{
		catalog:       catalog,
		llmClient:     llmClient,
		databaseName:  databaseName,
		defaultSchema: defaultSchema,
		logger:        logger.Named("analysis-adapter"),
	}
}

// splitTableName resolves an optionally schema-qualified table reference.
func (a *analysisAdapter) splitTableName(name string) (schema, table string) {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[:idx], name[idx+1:]
	}
	return a.defaultSchema, name
}

func (a *analysisAdapter) tableRowCount(ctx context.Context, tableName string) *int64 {
	if a.rowCounts == nil {
		tables, err := a.catalog.ListTables(ctx)
		if err != nil {
			a.logger.Warn("Failed to list tables for row counts", zap.Error(err))
			return nil
		}
		a.rowCounts = make(map[string]int64, len(tables))
		for _, t := range tables {
			a.rowCounts[t.TableName] = t.RowCount
			a.rowCounts[t.SchemaName+"."+t.TableName] = t.RowCount
		}
	}
	_, table := a.splitTableName(tableName)
	if count, ok := a.rowCounts[tableName]; ok {
		return &count
	}
	if count, ok := a.rowCounts[table]; ok {
		return &count
	}
	return nil
}

// isDeclaredFK reports whether the pair is already a declared constraint.
func (a *analysisAdapter) isDeclaredFK(ctx context.Context, sourceTable, sourceColumn, targetTable, targetColumn string) bool {
	if a.declaredFKs == nil {
		a.declaredFKs = make(map[string]bool)
		fks, err := a.catalog.ListForeignKeys(ctx)
		if err != nil {
			a.logger.Warn("Failed to list declared foreign keys", zap.Error(err))
		} else {
			for _, fk := range fks {
				key := fmt.Sprintf("%s.%s->%s.%s", fk.SourceTable, fk.SourceColumn, fk.TargetTable, fk.TargetColumn)
				a.declaredFKs[key] = true
			}
		}
	}
	key := fmt.Sprintf("%s.%s->%s.%s", sourceTable, sourceColumn, targetTable, targetColumn)
	return a.declaredFKs[key]
}

// isEnumLikeType reports whether a column type can carry enumerated values.
func isEnumLikeType(dataType string) bool {
	switch typeFamily(dataType) {
	case "text", "integer":
		return true
	default:
		return false
	}
}

func (a *analysisAdapter) DescribeTable(ctx context.Context, jobType models.JobType, tableName string) (*TableOutcome, error) {
	schema, table := a.splitTableName(tableName)

	columns, err := a.catalog.ListColumns(ctx, schema, table)
	if err != nil {
		return nil, fmt.Errorf("list columns for %s: %w", tableName, err)
	}
	if len(columns) == 0 {
		return &TableOutcome{Status: ResultEmpty}, nil
	}

	analysis := &models.TableAnalysis{
		RowCount: a.tableRowCount(ctx, tableName),
		Columns:  make([]models.ColumnAnalysis, 0, len(columns)),
	}
	for _, col := range columns {
		analysis.Columns = append(analysis.Columns, models.ColumnAnalysis{
			Name:         col.ColumnName,
			DataType:     col.DataType,
			IsPrimaryKey: col.IsPrimaryKey,
		})
	}

	switch jobType {
	case models.JobTypeSchema:
		return &TableOutcome{Status: ResultOk, Table: analysis}, nil
	case models.JobTypeStatistical:
		if err := a.addColumnStats(ctx, schema, table, analysis); err != nil {
			return nil, err
		}
		return &TableOutcome{Status: ResultOk, Table: analysis}, nil
	case models.JobTypeAIContext:
		return a.describeWithBackend(ctx, schema, table, columns, analysis)
	default:
		return nil, fmt.Errorf("job type %s has no table analysis", jobType)
	}
}

func (a *analysisAdapter) addColumnStats(ctx context.Context, schema, table string, analysis *models.TableAnalysis) error {
	names := make([]string, 0, len(analysis.Columns))
	for _, col := range analysis.Columns {
		names = append(names, col.Name)
	}

	stats, err := a.catalog.AnalyzeColumnStats(ctx, schema, table, names)
	if err != nil {
		return fmt.Errorf("analyze column stats for %s.%s: %w", schema, table, err)
	}

	byName := make(map[string]datasource.ColumnStats, len(stats))
	for _, s := range stats {
		byName[s.ColumnName] = s
	}
	for i := range analysis.Columns {
		if s, ok := byName[analysis.Columns[i].Name]; ok {
			distinct := s.DistinctCount
			nulls := s.RowCount - s.NonNullCount
			analysis.Columns[i].DistinctCount = &distinct
			analysis.Columns[i].NullCount = &nulls
		}
	}
	return nil
}

// backendTableDescription mirrors the JSON contract in the table prompt.
type backendTableDescription struct {
	Description     json.RawMessage `json:"description"`
	BusinessPurpose json.RawMessage `json:"business_purpose"`
	LowConfidence   bool            `json:"low_confidence"`
	Columns         []struct {
		Name        string          `json:"name"`
		Description json.RawMessage `json:"description"`
		EnumValues  json.RawMessage `json:"enum_values"`
	} `json:"columns"`
}

func (a *analysisAdapter) describeWithBackend(ctx context.Context, schema, table string, columns []datasource.ColumnMetadata, analysis *models.TableAnalysis) (*TableOutcome, error) {
	profile := prompts.TableProfile{
		Name:     table,
		RowCount: analysis.RowCount,
	}
	for _, col := range columns {
		cp := prompts.ColumnProfile{
			Name:         col.ColumnName,
			DataType:     col.DataType,
			IsNullable:   col.IsNullable,
			IsPrimaryKey: col.IsPrimaryKey,
		}
		// Low-cardinality non-key columns get sampled for enum detection.
		if isEnumLikeType(col.DataType) && !col.IsPrimaryKey && !col.IsUnique {
			samples, err := a.catalog.SampleDistinctValues(ctx, schema, table, col.ColumnName, enumSampleLimit)
			if err != nil {
				a.logger.Warn("Failed to sample distinct values",
					zap.String("table", table),
					zap.String("column", col.ColumnName),
					zap.Error(err))
			} else if len(samples) > 0 && len(samples) < enumSampleLimit {
				count := int64(len(samples))
				cp.DistinctCount = &count
				cp.SampleValues = samples
			}
		}
		profile.Columns = append(profile.Columns, cp)
	}

	prompt := prompts.BuildTableDescriptionPrompt(profile)
	system := prompts.BuildTableDescriptionSystemMessage()

	response, err := a.llmClient.GenerateResponse(ctx, prompt, system, 0.2)
	if err != nil {
		return nil, fmt.Errorf("describe table %s: %w", table, err)
	}

	content := strings.TrimSpace(jsonutil.StripCodeFence(response))
	if content == "" {
		return &TableOutcome{Status: ResultEmpty}, nil
	}

	var parsed backendTableDescription
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return &TableOutcome{Status: ResultMalformed, Raw: response}, nil
	}

	analysis.Description = jsonutil.FlexibleStringValue(parsed.Description)
	analysis.BusinessPurpose = jsonutil.FlexibleStringValue(parsed.BusinessPurpose)
	analysis.LowConfidence = parsed.LowConfidence

	descByCol := make(map[string]int, len(analysis.Columns))
	for i, col := range analysis.Columns {
		descByCol[col.Name] = i
	}
	for _, col := range parsed.Columns {
		i, ok := descByCol[col.Name]
		if !ok {
			continue // backend invented a column, drop it
		}
		analysis.Columns[i].Description = jsonutil.FlexibleStringValue(col.Description)
		analysis.Columns[i].EnumValues = jsonutil.FlexibleStringSlice(col.EnumValues)
	}

	if analysis.Description == "" && len(parsed.Columns) == 0 {
		return &TableOutcome{Status: ResultEmpty}, nil
	}

	return &TableOutcome{Status: ResultOk, Table: analysis}, nil
}

// backendAssessment mirrors the JSON contract in the relationship prompt.
type backendAssessment struct {
	Confidence       json.RawMessage `json:"confidence"`
	RelationshipKind string          `json:"relationship_kind"`
	Reasoning        json.RawMessage `json:"reasoning"`
}

// columnPair is one directed candidate the adapter asks the backend about.
type columnPair struct {
	sourceTable, targetTable string
	source, target           datasource.ColumnMetadata
	nameSimilarity           float64
	typeCompatible           bool
	cardinality              string
}

func (a *analysisAdapter) AssessRelationship(ctx context.Context, tableA, tableB string) (*RelationshipOutcome, error) {
	schemaA, tblA := a.splitTableName(tableA)
	schemaB, tblB := a.splitTableName(tableB)

	colsA, err := a.catalog.ListColumns(ctx, schemaA, tblA)
	if err != nil {
		return nil, fmt.Errorf("list columns for %s: %w", tableA, err)
	}
	colsB, err := a.catalog.ListColumns(ctx, schemaB, tblB)
	if err != nil {
		return nil, fmt.Errorf("list columns for %s: %w", tableB, err)
	}

	pairs := a.plausiblePairs(ctx, tblA, colsA, tblB, colsB)
	pairs = append(pairs, a.plausiblePairs(ctx, tblB, colsB, tblA, colsA)...)
	if len(pairs) == 0 {
		return &RelationshipOutcome{Status: ResultEmpty}, nil
	}

	var candidates []*models.ForeignKeyCandidate
	var rawResponses []string
	malformed := 0

	for _, pair := range pairs {
		candidate, raw, err := a.assessPair(ctx, pair)
		if err != nil {
			return nil, err
		}
		if candidate == nil {
			if raw != "" {
				malformed++
				rawResponses = append(rawResponses, raw)
			}
			continue
		}
		candidates = append(candidates, candidate)
	}

	if malformed > 0 {
		a.logger.Warn("Unparseable relationship assessments",
			zap.String("table_a", tableA),
			zap.String("table_b", tableB),
			zap.Int("count", malformed),
			zap.Int("pairs", len(pairs)))
	}
	if malformed == len(pairs) {
		return &RelationshipOutcome{Status: ResultMalformed, Raw: strings.Join(rawResponses, "\n")}, nil
	}
	if len(candidates) == 0 {
		return &RelationshipOutcome{Status: ResultEmpty}, nil
	}
	return &RelationshipOutcome{
		Status:     ResultOk,
		Candidates: candidates,
		Raw:        strings.Join(rawResponses, "\n"),
		Malformed:  malformed,
	}, nil
}

// plausiblePairs selects directed column pairs worth asking the backend
// about: a non-key source column against a key target column, with a naming
// signal, not already declared as a constraint.
func (a *analysisAdapter) plausiblePairs(ctx context.Context, sourceTable string, sourceCols []datasource.ColumnMetadata, targetTable string, targetCols []datasource.ColumnMetadata) []columnPair {
	var keyCols []datasource.ColumnMetadata
	for _, col := range targetCols {
		if col.IsPrimaryKey || col.IsUnique {
			keyCols = append(keyCols, col)
		}
	}
	sort.Slice(keyCols, func(i, j int) bool {
		// PKs before plain unique columns
		if keyCols[i].IsPrimaryKey != keyCols[j].IsPrimaryKey {
			return keyCols[i].IsPrimaryKey
		}
		return keyCols[i].OrdinalPosition < keyCols[j].OrdinalPosition
	})

	var pairs []columnPair
	for _, src := range sourceCols {
		if src.IsPrimaryKey {
			continue
		}

		// Best key column only, PKs sort first.
		var best *datasource.ColumnMetadata
		var similarity float64
		for i := range keyCols {
			s := NameSimilarity(src.ColumnName, targetTable, keyCols[i].ColumnName)
			if s == 0 {
				continue
			}
			best = &keyCols[i]
			similarity = s
			break
		}
		if best == nil {
			continue
		}

		// A declared constraint settles this source column; it is never
		// re-proposed, not even against a lesser key column.
		if a.isDeclaredFK(ctx, sourceTable, src.ColumnName, targetTable, best.ColumnName) {
			continue
		}

		cardinality := "1:N"
		if src.IsUnique {
			cardinality = "1:1"
		}
		pairs = append(pairs, columnPair{
			sourceTable:    sourceTable,
			targetTable:    targetTable,
			source:         src,
			target:         *best,
			nameSimilarity: similarity,
			typeCompatible: TypesCompatible(src.DataType, best.DataType),
			cardinality:    cardinality,
		})
	}
	return pairs
}

// assessPair asks the backend about one directed pair. Returns (nil, raw, nil)
// when the response could not be interpreted.
func (a *analysisAdapter) assessPair(ctx context.Context, pair columnPair) (*models.ForeignKeyCandidate, string, error) {
	prompt := prompts.BuildRelationshipAssessmentPrompt(prompts.PairProfile{
		SourceTable:      pair.sourceTable,
		SourceColumn:     pair.source.ColumnName,
		SourceColumnType: pair.source.DataType,
		TargetTable:      pair.targetTable,
		TargetColumn:     pair.target.ColumnName,
		TargetColumnType: pair.target.DataType,
		TargetIsPrimary:  pair.target.IsPrimaryKey,
		NameSimilarity:   pair.nameSimilarity,
		TypeCompatible:   pair.typeCompatible,
		Cardinality:      pair.cardinality,
	})
	system := prompts.BuildRelationshipAssessmentSystemMessage()

	response, err := a.llmClient.GenerateResponse(ctx, prompt, system, 0.2)
	if err != nil {
		return nil, "", fmt.Errorf("assess %s.%s -> %s.%s: %w",
			pair.sourceTable, pair.source.ColumnName, pair.targetTable, pair.target.ColumnName, err)
	}

	content := strings.TrimSpace(jsonutil.StripCodeFence(response))
	var parsed backendAssessment
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, response, nil
	}

	confidence, ok := jsonutil.FlexibleFloat(parsed.Confidence)
	if !ok || confidence < 0 || confidence > 1 {
		return nil, response, nil
	}

	kind := models.RelationshipKind(parsed.RelationshipKind)
	if !models.IsValidRelationshipKind(kind) {
		kind = models.RelationshipUnknown
	}

	similarity := pair.nameSimilarity
	compatible := pair.typeCompatible
	cardinality := pair.cardinality
	return &models.ForeignKeyCandidate{
		DatabaseName:   a.databaseName,
		SourceTable:    pair.sourceTable,
		SourceColumn:   pair.source.ColumnName,
		TargetTable:    pair.targetTable,
		TargetColumn:   pair.target.ColumnName,
		Confidence:     confidence,
		Kind:           kind,
		Reasoning:      jsonutil.FlexibleStringValue(parsed.Reasoning),
		NameSimilarity: &similarity,
		TypeCompatible: &compatible,
		Cardinality:    &cardinality,
	}, "", nil
}
