package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/tablescribe-ai/tablescribe-engine/pkg/apperrors"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/models"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/repositories"
)

// CandidateResponse for relationship candidate endpoints.
type CandidateResponse struct {
	ID               string   `json:"id"`
	DatabaseName     string   `json:"database_name"`
	SourceTable      string   `json:"source_table"`
	SourceColumn     string   `json:"source_column"`
	TargetTable      string   `json:"target_table"`
	TargetColumn     string   `json:"target_column"`
	Confidence       float64  `json:"confidence"`
	RelationshipKind string   `json:"relationship_kind"`
	Reasoning        string   `json:"reasoning,omitempty"`
	NameSimilarity   *float64 `json:"name_similarity,omitempty"`
	TypeCompatible   *bool    `json:"type_compatible,omitempty"`
	Cardinality      *string  `json:"cardinality,omitempty"`
	Validated        bool     `json:"validated"`
	Superseded       bool     `json:"superseded"`
	CreatedAt        string   `json:"created_at"`
}

// ListCandidatesResponse for GET /api/databases/{db}/relationships.
type ListCandidatesResponse struct {
	Candidates []CandidateResponse `json:"candidates"`
	Total      int                 `json:"total"`
}

// RelationshipsHandler handles relationship candidate HTTP requests.
type RelationshipsHandler struct {
	candidates repositories.FKCandidateRepository
	logger     *zap.Logger
}

// NewRelationshipsHandler creates a new relationships handler.
func NewRelationshipsHandler(candidates repositories.FKCandidateRepository, logger *zap.Logger) *RelationshipsHandler {
	return &RelationshipsHandler{candidates: candidates, logger: logger}
}

// RegisterRoutes registers the relationships handler's routes on the given mux.
func (h *RelationshipsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/databases/{db}/relationships", h.List)
	mux.HandleFunc("POST /api/relationships/{cid}/validate", h.Validate)
}

// List handles GET /api/databases/{db}/relationships
// Superseded audit rows are excluded unless include_superseded=true.
func (h *RelationshipsHandler) List(w http.ResponseWriter, r *http.Request) {
	databaseName, ok := ParseDatabaseName(w, r, h.logger)
	if !ok {
		return
	}

	includeSuperseded := r.URL.Query().Get("include_superseded") == "true"

	candidates, err := h.candidates.ListByDatabase(r.Context(), databaseName, includeSuperseded)
	if err != nil {
		h.logger.Error("Failed to list candidates", zap.String("database", databaseName), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list relationship candidates")
		return
	}

	data := ListCandidatesResponse{
		Candidates: make([]CandidateResponse, len(candidates)),
		Total:      len(candidates),
	}
	for i, c := range candidates {
		data.Candidates[i] = toCandidateResponse(c)
	}

	response := ApiResponse{Success: true, Data: data}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Validate handles POST /api/relationships/{cid}/validate
func (h *RelationshipsHandler) Validate(w http.ResponseWriter, r *http.Request) {
	candidateID, ok := ParseCandidateID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.candidates.MarkValidated(r.Context(), candidateID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Candidate not found")
			return
		}
		h.logger.Error("Failed to validate candidate",
			zap.String("candidate_id", candidateID.String()),
			zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to validate candidate")
		return
	}

	response := ApiResponse{Success: true, Message: "Candidate validated"}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *RelationshipsHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

func toCandidateResponse(c *models.ForeignKeyCandidate) CandidateResponse {
	return CandidateResponse{
		ID:               c.ID.String(),
		DatabaseName:     c.DatabaseName,
		SourceTable:      c.SourceTable,
		SourceColumn:     c.SourceColumn,
		TargetTable:      c.TargetTable,
		TargetColumn:     c.TargetColumn,
		Confidence:       c.Confidence,
		RelationshipKind: string(c.Kind),
		Reasoning:        c.Reasoning,
		NameSimilarity:   c.NameSimilarity,
		TypeCompatible:   c.TypeCompatible,
		Cardinality:      c.Cardinality,
		Validated:        c.Validated,
		Superseded:       c.Superseded,
		CreatedAt:        c.CreatedAt.Format(timeFormat),
	}
}
