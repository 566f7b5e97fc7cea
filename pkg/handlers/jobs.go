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

// CreateJobRequest for POST /api/analysis/jobs.
type CreateJobRequest struct {
	DatabaseName string   `json:"database_name"`
	JobType      string   `json:"job_type"`
	Tables       []string `json:"tables"`
}

// JobResponse for job endpoints.
type JobResponse struct {
	ID             string   `json:"id"`
	DatabaseName   string   `json:"database_name"`
	JobType        string   `json:"job_type"`
	Status         string   `json:"status"`
	Progress       int      `json:"progress"`
	Tables         []string `json:"tables"`
	TotalUnits     int      `json:"total_units"`
	CompletedUnits int      `json:"completed_units"`
	FailedUnits    int      `json:"failed_units"`
	LastError      string   `json:"last_error,omitempty"`
	CreatedAt      string   `json:"created_at"`
	StartedAt      *string  `json:"started_at,omitempty"`
	CompletedAt    *string  `json:"completed_at,omitempty"`
}

// ListJobsResponse for GET /api/databases/{db}/jobs.
type ListJobsResponse struct {
	Jobs  []JobResponse `json:"jobs"`
	Total int           `json:"total"`
}

// JobsHandler handles analysis job HTTP requests.
type JobsHandler struct {
	runner *services.JobRunner
	jobs   repositories.AnalysisJobRepository
	logger *zap.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(runner *services.JobRunner, jobs repositories.AnalysisJobRepository, logger *zap.Logger) *JobsHandler {
	return &JobsHandler{runner: runner, jobs: jobs, logger: logger}
}

// RegisterRoutes registers the jobs handler's routes on the given mux.
func (h *JobsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/analysis/jobs", h.Create)
	mux.HandleFunc("GET /api/analysis/jobs/{jid}", h.Get)
	mux.HandleFunc("POST /api/analysis/jobs/{jid}/advance", h.Advance)
	mux.HandleFunc("POST /api/analysis/jobs/{jid}/cancel", h.Cancel)
	mux.HandleFunc("GET /api/databases/{db}/jobs", h.ListByDatabase)
}

// Create handles POST /api/analysis/jobs
func (h *JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.DatabaseName == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "database_name is required")
		return
	}
	if len(req.Tables) == 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "tables is required")
		return
	}

	job, err := h.runner.CreateJob(r.Context(), req.DatabaseName, models.JobType(req.JobType), req.Tables)
	if err != nil {
		if !models.IsValidJobType(models.JobType(req.JobType)) {
			h.writeError(w, http.StatusBadRequest, "invalid_job_type", "Unknown job type")
			return
		}
		h.logger.Error("Failed to create job",
			zap.String("database", req.DatabaseName),
			zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to create job")
		return
	}

	h.writeJob(w, http.StatusCreated, job)
}

// Get handles GET /api/analysis/jobs/{jid}
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID, ok := ParseJobID(w, r, h.logger)
	if !ok {
		return
	}

	job, err := h.jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Job not found")
			return
		}
		h.logger.Error("Failed to get job", zap.String("job_id", jobID.String()), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to get job")
		return
	}

	h.writeJob(w, http.StatusOK, job)
}

// Advance handles POST /api/analysis/jobs/{jid}/advance
// Runs one batch of the job synchronously and returns the updated job.
func (h *JobsHandler) Advance(w http.ResponseWriter, r *http.Request) {
	jobID, ok := ParseJobID(w, r, h.logger)
	if !ok {
		return
	}

	job, err := h.runner.Advance(r.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "not_found", "Job not found")
		case errors.Is(err, apperrors.ErrAdvanceInFlight):
			h.writeError(w, http.StatusConflict, "advance_in_flight", "Job is already being advanced")
		default:
			h.logger.Error("Failed to advance job", zap.String("job_id", jobID.String()), zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to advance job")
		}
		return
	}

	h.writeJob(w, http.StatusOK, job)
}

// Cancel handles POST /api/analysis/jobs/{jid}/cancel
func (h *JobsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID, ok := ParseJobID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.runner.RequestCancel(r.Context(), jobID); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "not_found", "Job not found")
		case errors.Is(err, apperrors.ErrConflict):
			h.writeError(w, http.StatusConflict, "job_terminal", "Job has already finished")
		default:
			h.logger.Error("Failed to cancel job", zap.String("job_id", jobID.String()), zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to cancel job")
		}
		return
	}

	response := ApiResponse{Success: true, Message: "Cancellation requested"}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListByDatabase handles GET /api/databases/{db}/jobs
func (h *JobsHandler) ListByDatabase(w http.ResponseWriter, r *http.Request) {
	databaseName, ok := ParseDatabaseName(w, r, h.logger)
	if !ok {
		return
	}

	jobs, err := h.jobs.ListByDatabase(r.Context(), databaseName)
	if err != nil {
		h.logger.Error("Failed to list jobs", zap.String("database", databaseName), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list jobs")
		return
	}

	data := ListJobsResponse{
		Jobs:  make([]JobResponse, len(jobs)),
		Total: len(jobs),
	}
	for i, job := range jobs {
		data.Jobs[i] = toJobResponse(job)
	}

	response := ApiResponse{Success: true, Data: data}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *JobsHandler) writeJob(w http.ResponseWriter, status int, job *models.AnalysisJob) {
	response := ApiResponse{Success: true, Data: toJobResponse(job)}
	if err := WriteJSON(w, status, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *JobsHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

func toJobResponse(job *models.AnalysisJob) JobResponse {
	resp := JobResponse{
		ID:             job.ID.String(),
		DatabaseName:   job.DatabaseName,
		JobType:        string(job.Type),
		Status:         string(job.Status),
		Progress:       job.Progress,
		Tables:         job.Tables,
		TotalUnits:     job.TotalUnits,
		CompletedUnits: job.CompletedUnits,
		FailedUnits:    len(job.FailedUnitIDs),
		LastError:      job.LastError,
		CreatedAt:      job.CreatedAt.Format(timeFormat),
	}
	if job.StartedAt != nil {
		s := job.StartedAt.Format(timeFormat)
		resp.StartedAt = &s
	}
	if job.CompletedAt != nil {
		s := job.CompletedAt.Format(timeFormat)
		resp.CompletedAt = &s
	}
	return resp
}
