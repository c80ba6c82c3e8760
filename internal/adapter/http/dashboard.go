package http

import (
	"net/http"

	"github.com/bnema/vodpipe/internal/adapter/http/templates"
	"github.com/bnema/vodpipe/internal/domain"
	"github.com/bnema/vodpipe/internal/infrastructure/logger"
	"github.com/bnema/vodpipe/internal/service"
)

func (h *JobHandlers) Dashboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := h.jobSvc.Status(r.Context())
		if err != nil {
			logger.Error.Printf("dashboard status error: %v", err)
			status = &service.QueueStatus{Counts: map[domain.JobStatus]int64{}}
		}
		jobs, err := h.jobSvc.List(r.Context(), nil)
		if err != nil {
			logger.Error.Printf("dashboard list error: %v", err)
			jobs = []*domain.Job{}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = templates.Dashboard(status, jobs).Render(r.Context(), w)
	}
}
