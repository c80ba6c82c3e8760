package http

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bnema/vodpipe/internal/adapter/http/middleware"
	"github.com/bnema/vodpipe/internal/domain"
	"github.com/bnema/vodpipe/internal/service"
	"github.com/bnema/vodpipe/internal/streaming"
)

type JobService interface {
	Enqueue(ctx context.Context, req service.EnqueueRequest) (*domain.Job, error)
	Get(ctx context.Context, id int64) (*domain.Job, error)
	List(ctx context.Context, status *domain.JobStatus) ([]*domain.Job, error)
	Cancel(ctx context.Context, id int64) error
	Restart(ctx context.Context, id int64) (*domain.Job, error)
	Retry(ctx context.Context, id int64) (*domain.Job, error)
	ClearFinished(ctx context.Context) (int64, error)
	Status(ctx context.Context) (*service.QueueStatus, error)
}

type PlaybackService interface {
	ResolveMovie(ctx context.Context, mediaID int64) (*service.Playable, error)
	ResolveEpisode(ctx context.Context, mediaID, episodeID int64) (*service.Playable, error)
	StreamInfo(ctx context.Context, mediaID int64) (*service.StreamInfo, error)
}

type IntakeService interface {
	HandleDownload(ctx context.Context, name, savePath string) (*service.IntakeResult, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	router     *mux.Router
	jobs       *JobHandlers
	stream     *StreamHandlers
	sseHandler *SSEHandler
	intake     IntakeService
	db         Pinger
}

func NewServer(
	jobSvc JobService,
	playbackSvc PlaybackService,
	intakeSvc IntakeService,
	eventBus *service.EventBus,
	streamer *streaming.Streamer,
	db Pinger,
) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		jobs:       NewJobHandlers(jobSvc),
		stream:     NewStreamHandlers(playbackSvc, streamer),
		sseHandler: NewSSEHandler(eventBus, jobSvc),
		intake:     intakeSvc,
		db:         db,
	}

	s.router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	r := s.router

	r.HandleFunc("/health", s.Health()).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/", s.jobs.Dashboard()).Methods(http.MethodGet)

	jobs := r.PathPrefix("/api/transcode/jobs").Subrouter()
	jobs.HandleFunc("", s.jobs.List()).Methods(http.MethodGet)
	jobs.HandleFunc("", s.jobs.Create()).Methods(http.MethodPost)
	jobs.HandleFunc("/status", s.jobs.QueueStatus()).Methods(http.MethodGet)
	jobs.HandleFunc("/finished", s.jobs.ClearFinished()).Methods(http.MethodDelete)
	jobs.HandleFunc("/{id:[0-9]+}", s.jobs.Get()).Methods(http.MethodGet)
	jobs.HandleFunc("/{id:[0-9]+}", s.jobs.Cancel()).Methods(http.MethodDelete)
	jobs.HandleFunc("/{id:[0-9]+}/retry", s.jobs.Retry()).Methods(http.MethodPost)
	jobs.HandleFunc("/{id:[0-9]+}/restart", s.jobs.Restart()).Methods(http.MethodPost)
	jobs.HandleFunc("/{id:[0-9]+}/events", s.sseHandler.JobEvents()).Methods(http.MethodGet)

	stream := r.PathPrefix("/api/stream/{media_id:[0-9]+}").Subrouter()
	stream.HandleFunc("", s.stream.Movie()).Methods(http.MethodGet, http.MethodHead)
	stream.HandleFunc("/episode/{episode_id:[0-9]+}", s.stream.Episode()).Methods(http.MethodGet, http.MethodHead)
	stream.HandleFunc("/hls/"+streaming.ManifestName, s.stream.Manifest()).Methods(http.MethodGet, http.MethodHead)
	stream.HandleFunc("/hls/{segment}", s.stream.Segment()).Methods(http.MethodGet, http.MethodHead)
	stream.HandleFunc("/info", s.stream.Info()).Methods(http.MethodGet)

	r.HandleFunc("/api/webhooks/download-complete", s.DownloadComplete()).Methods(http.MethodPost)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	middleware.SecurityHeaders(s.router).ServeHTTP(w, r)
}

func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "unavailable", Message: "database unreachable"})
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
	}
}
