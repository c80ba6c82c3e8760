package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/bnema/vodpipe/internal/domain"
	"github.com/bnema/vodpipe/internal/infrastructure/logger"
	"github.com/bnema/vodpipe/internal/service"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 1 << 20

type JobHandlers struct {
	jobSvc JobService
}

func NewJobHandlers(jobSvc JobService) *JobHandlers {
	return &JobHandlers{jobSvc: jobSvc}
}

func (h *JobHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter *domain.JobStatus
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, ok := domain.ParseJobStatus(raw)
			if !ok {
				writeMessage(w, http.StatusBadRequest, "invalid status: "+raw)
				return
			}
			filter = &status
		}

		jobs, err := h.jobSvc.List(r.Context(), filter)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, jobs)
	}
}

func (h *JobHandlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

		var req service.EnqueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.SourcePath == "" {
			writeMessage(w, http.StatusBadRequest, "source_path is required")
			return
		}

		job, err := h.jobSvc.Enqueue(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, job)
	}
}

func (h *JobHandlers) QueueStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := h.jobSvc.Status(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func (h *JobHandlers) ClearFinished() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := h.jobSvc.ClearFinished(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Status  string `json:"status"`
			Cleared int64  `json:"cleared"`
		}{"ok", n})
	}
}

func (h *JobHandlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		job, err := h.jobSvc.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func (h *JobHandlers) Cancel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if err := h.jobSvc.Cancel(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		logger.Info.Printf("job %d cancelled via API", id)
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Message: "job cancelled"})
	}
}

func (h *JobHandlers) Retry() http.HandlerFunc {
	return h.requeue(h.jobSvc.Retry)
}

func (h *JobHandlers) Restart() http.HandlerFunc {
	return h.requeue(h.jobSvc.Restart)
}

func (h *JobHandlers) requeue(op func(ctx context.Context, id int64) (*domain.Job, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		job, err := op(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}
