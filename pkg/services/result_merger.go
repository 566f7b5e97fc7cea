package services

import (
	"strings"

	"github.com/tablescribe-ai/tablescribe-engine/pkg/models"
)

// MergeTableResult folds one table's analysis into the job's accumulated
// result. A stale entry for the same table is overwritten, so re-running a
// unit is idempotent.
func MergeTableResult(result *models.AnalysisResult, tableName string, analysis *models.TableAnalysis) {
	if result.Tables == nil {
		result.Tables = make(map[string]*models.TableAnalysis)
	}
	result.Tables[tableName] = analysis
}

// mergeReasoning combines reasoning text from two discovery passes without
// repeating text already present.
func mergeReasoning(existing, incoming string) string {
	existing = strings.TrimSpace(existing)
	incoming = strings.TrimSpace(incoming)
	if existing == "" {
		return incoming
	}
	if incoming == "" || strings.Contains(existing, incoming) {
		return existing
	}
	return existing + "; " + incoming
}

// MergeCandidate folds one discovered relationship candidate into the job's
// accumulated result. Per ordered column pair at most one candidate stays
// active: rediscovery keeps the higher confidence and merges reasoning, and
// the losing discovery is retained as a superseded audit row rather than
// dropped. A human-validated candidate never loses its validated flag and its
// confidence is never downgraded.
//
// Returns the active candidate for the pair.
func MergeCandidate(result *models.AnalysisResult, incoming *models.ForeignKeyCandidate) *models.ForeignKeyCandidate {
	var existing *models.ForeignKeyCandidate
	for _, c := range result.Candidates {
		if !c.Superseded && c.PairKey() == incoming.PairKey() {
			existing = c
			break
		}
	}

	if existing == nil {
		result.Candidates = append(result.Candidates, incoming)
		return incoming
	}

	if incoming.Confidence > existing.Confidence {
		// Retain the beaten state for audit before upgrading in place.
		audit := *existing
		audit.Superseded = true
		result.Candidates = append(result.Candidates, &audit)

		existing.Confidence = incoming.Confidence
		if incoming.Kind != models.RelationshipUnknown {
			existing.Kind = incoming.Kind
		}
		existing.Reasoning = mergeReasoning(existing.Reasoning, incoming.Reasoning)
		if incoming.NameSimilarity != nil {
			existing.NameSimilarity = incoming.NameSimilarity
		}
		if incoming.TypeCompatible != nil {
			existing.TypeCompatible = incoming.TypeCompatible
		}
		if incoming.Cardinality != nil {
			existing.Cardinality = incoming.Cardinality
		}
		return existing
	}

	// Lower or equal confidence: the incoming discovery loses, but its
	// reasoning still enriches the active row.
	existing.Reasoning = mergeReasoning(existing.Reasoning, incoming.Reasoning)
	incoming.Superseded = true
	result.Candidates = append(result.Candidates, incoming)
	return existing
}

// ActiveCandidates returns the non-superseded candidates of a result.
func ActiveCandidates(result *models.AnalysisResult) []*models.ForeignKeyCandidate {
	var active []*models.ForeignKeyCandidate
	for _, c := range result.Candidates {
		if !c.Superseded {
			active = append(active, c)
		}
	}
	return active
}
