package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/tablescribe-ai/tablescribe-engine/pkg/apperrors"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/models"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/repositories"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/services"
)

// QuestionResponse for question endpoints.
type QuestionResponse struct {
	ID           string   `json:"id"`
	JobID        *string  `json:"job_id,omitempty"`
	DatabaseName string   `json:"database_name"`
	TableName    string   `json:"table_name,omitempty"`
	ColumnName   string   `json:"column_name,omitempty"`
	Category     string   `json:"category"`
	Question     string   `json:"question"`
	Options      []string `json:"options,omitempty"`
	Reasoning    string   `json:"reasoning,omitempty"`
	Priority     string   `json:"priority"`
	Response     string   `json:"response,omitempty"`
	IsAnswered   bool     `json:"is_answered"`
	AnsweredAt   *string  `json:"answered_at,omitempty"`
	CreatedAt    string   `json:"created_at"`
}

// ListQuestionsResponse for GET /api/databases/{db}/questions.
type ListQuestionsResponse struct {
	Questions []QuestionResponse `json:"questions"`
	Total     int                `json:"total"`
}

// AnswerQuestionRequest for POST /api/questions/{qid}/answer.
type AnswerQuestionRequest struct {
	Response string `json:"response"`
}

// QuestionsHandler handles SME review question HTTP requests.
type QuestionsHandler struct {
	questions repositories.SmeQuestionRepository
	progress  *services.ProgressService
	logger    *zap.Logger
}

// NewQuestionsHandler creates a new questions handler.
func NewQuestionsHandler(questions repositories.SmeQuestionRepository, progress *services.ProgressService, logger *zap.Logger) *QuestionsHandler {
	return &QuestionsHandler{questions: questions, progress: progress, logger: logger}
}

// RegisterRoutes registers the questions handler's routes on the given mux.
func (h *QuestionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/databases/{db}/questions", h.List)
	mux.HandleFunc("GET /api/databases/{db}/progress", h.Progress)
	mux.HandleFunc("POST /api/questions/{qid}/answer", h.Answer)
}

// List handles GET /api/databases/{db}/questions
func (h *QuestionsHandler) List(w http.ResponseWriter, r *http.Request) {
	databaseName, ok := ParseDatabaseName(w, r, h.logger)
	if !ok {
		return
	}

	questions, err := h.questions.ListByDatabase(r.Context(), databaseName)
	if err != nil {
		h.logger.Error("Failed to list questions", zap.String("database", databaseName), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list questions")
		return
	}

	data := ListQuestionsResponse{
		Questions: make([]QuestionResponse, len(questions)),
		Total:     len(questions),
	}
	for i, q := range questions {
		data.Questions[i] = toQuestionResponse(q)
	}

	response := ApiResponse{Success: true, Data: data}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Answer handles POST /api/questions/{qid}/answer
func (h *QuestionsHandler) Answer(w http.ResponseWriter, r *http.Request) {
	questionID, ok := ParseQuestionID(w, r, h.logger)
	if !ok {
		return
	}

	var req AnswerQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.Response == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "response is required")
		return
	}

	question, err := h.questions.SubmitAnswer(r.Context(), questionID, req.Response)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "not_found", "Question not found")
		case errors.Is(err, apperrors.ErrAlreadyAnswered):
			h.writeError(w, http.StatusConflict, "already_answered", "Question has already been answered")
		default:
			h.logger.Error("Failed to answer question",
				zap.String("question_id", questionID.String()),
				zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to answer question")
		}
		return
	}

	response := ApiResponse{Success: true, Data: toQuestionResponse(question)}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Progress handles GET /api/databases/{db}/progress
func (h *QuestionsHandler) Progress(w http.ResponseWriter, r *http.Request) {
	databaseName, ok := ParseDatabaseName(w, r, h.logger)
	if !ok {
		return
	}

	summary, err := h.progress.DatabaseProgress(r.Context(), databaseName)
	if err != nil {
		h.logger.Error("Failed to compute progress", zap.String("database", databaseName), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to compute progress")
		return
	}

	response := ApiResponse{Success: true, Data: summary}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *QuestionsHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

func toQuestionResponse(q *models.SmeQuestion) QuestionResponse {
	resp := QuestionResponse{
		ID:           q.ID.String(),
		DatabaseName: q.DatabaseName,
		TableName:    q.TableName,
		ColumnName:   q.ColumnName,
		Category:     string(q.Category),
		Question:     q.Question,
		Options:      q.Options,
		Reasoning:    q.Reasoning,
		Priority:     string(q.Priority),
		Response:     q.Response,
		IsAnswered:   q.IsAnswered,
		CreatedAt:    q.CreatedAt.Format(timeFormat),
	}
	if q.JobID != nil {
		s := q.JobID.String()
		resp.JobID = &s
	}
	if q.AnsweredAt != nil {
		s := q.AnsweredAt.Format(timeFormat)
		resp.AnsweredAt = &s
	}
	return resp
}
