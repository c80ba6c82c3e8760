package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/vodpipe/internal/domain"
	"github.com/bnema/vodpipe/internal/service"
)

const keepAliveInterval = 15 * time.Second

type SSEHandler struct {
	eventBus *service.EventBus
	jobSvc   JobService
}

func NewSSEHandler(eventBus *service.EventBus, jobSvc JobService) *SSEHandler {
	return &SSEHandler{
		eventBus: eventBus,
		jobSvc:   jobSvc,
	}
}

// sseWrite writes an SSE event, handling multi-line data correctly.
func sseWrite(w http.ResponseWriter, eventName string, data string) {
	_, _ = fmt.Fprintf(w, "event: %s\n", eventName)
	for _, line := range strings.Split(data, "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = fmt.Fprint(w, "\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func sseWriteEvent(w http.ResponseWriter, event service.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	sseWrite(w, event.Type, string(data))
	return nil
}

// sendKeepAlive writes an SSE comment to keep the connection active.
func sendKeepAlive(w http.ResponseWriter) {
	_, _ = fmt.Fprint(w, ": keep-alive\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func snapshotEvent(job *domain.Job) service.Event {
	return service.Event{
		Type:     service.EventStatus,
		JobID:    job.ID,
		Status:   job.Status,
		Progress: job.Progress,
		Message:  job.ErrorMessage,
	}
}

func isTerminalStatus(status domain.JobStatus) bool {
	return status == domain.JobStatusComplete || status == domain.JobStatusFailed
}

// JobEvents streams status and progress of one job. The stream ends when the
// job is deleted; after a terminal status the connection is held open until
// the client leaves so EventSource does not reconnect.
func (h *SSEHandler) JobEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		ctx := r.Context()

		// Subscribe before reading the row so no transition is missed.
		ch := h.eventBus.Subscribe(id)
		defer h.eventBus.Unsubscribe(id, ch)

		job, err := h.jobSvc.Get(ctx, id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		_ = sseWriteEvent(w, snapshotEvent(job))
		if job.IsTerminal() {
			<-ctx.Done()
			return
		}

		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepAlive.C:
				sendKeepAlive(w)
			case event, ok := <-ch:
				if !ok {
					return
				}
				_ = sseWriteEvent(w, event)

				if event.Type == service.EventDeleted {
					return
				}
				if event.Type == service.EventStatus && isTerminalStatus(event.Status) {
					<-ctx.Done()
					return
				}
			}
		}
	}
}
