package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/bnema/vodpipe/internal/domain"
	"github.com/bnema/vodpipe/internal/infrastructure/logger"
	"github.com/bnema/vodpipe/internal/metrics"
	"github.com/bnema/vodpipe/internal/port"
	"github.com/bnema/vodpipe/internal/streaming"
)

type WorkerConfig struct {
	OutputDir    string
	PollInterval time.Duration
	MaxRetries   int
	Concurrency  int
	Preset       domain.Preset
	HLSEnabled   bool
}

// WorkerPool drives pending jobs through probe and transcode with at most
// Concurrency runs at a time.
type WorkerPool struct {
	store      port.JobStore
	catalog    port.Catalog
	transcoder port.Transcoder
	eventBus   EventPublisher
	cfg        WorkerConfig

	sem     *semaphore.Weighted
	running atomic.Bool

	mu      sync.Mutex
	runs    map[int64]*jobRun
	blocked map[int64]int // ids held by an administrative operation
	wg      sync.WaitGroup
}

type jobRun struct {
	cancel  context.CancelFunc
	done    chan struct{}
	aborted bool // guarded by WorkerPool.mu
}

type EnqueueRequest struct {
	SourcePath string `json:"source_path"`
	OutputPath string `json:"output_path,omitempty"`
	MediaID    *int64 `json:"media_id,omitempty"`
	EpisodeID  *int64 `json:"episode_id,omitempty"`
}

type QueueStatus struct {
	Running     bool                       `json:"running"`
	Concurrency int                        `json:"concurrency"`
	Counts      map[domain.JobStatus]int64 `json:"counts"`
	InFlight    []int64                    `json:"in_flight"`
}

var errRunAborted = errors.New("run aborted")

func NewWorkerPool(
	store port.JobStore,
	catalog port.Catalog,
	transcoder port.Transcoder,
	eventBus EventPublisher,
	cfg WorkerConfig,
) *WorkerPool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &WorkerPool{
		store:      store,
		catalog:    catalog,
		transcoder: transcoder,
		eventBus:   eventBus,
		cfg:        cfg,
		sem:        semaphore.NewWeighted(int64(cfg.Concurrency)),
		runs:       make(map[int64]*jobRun),
		blocked:    make(map[int64]int),
	}
}

// Start requeues jobs orphaned by a previous process, then polls until ctx
// is done. It returns once every run it launched has exited.
func (wp *WorkerPool) Start(ctx context.Context) error {
	if n, err := wp.store.ResetOrphaned(ctx); err != nil {
		logger.Error.Printf("failed to requeue orphaned jobs: %v", err)
	} else if n > 0 {
		logger.Info.Printf("requeued %d jobs left processing by a previous run", n)
	}

	wp.running.Store(true)
	defer wp.running.Store(false)
	logger.Info.Printf("worker started (concurrency=%d, poll=%s, max_retries=%d)",
		wp.cfg.Concurrency, wp.cfg.PollInterval, wp.cfg.MaxRetries)

	ticker := time.NewTicker(wp.cfg.PollInterval)
	defer ticker.Stop()

	for {
		wp.pollOnce(ctx)

		select {
		case <-ctx.Done():
			logger.Info.Printf("worker shutting down, waiting for %d runs", len(wp.InFlight()))
			wp.wg.Wait()
			return nil
		case <-ticker.C:
		}
	}
}

func (wp *WorkerPool) IsRunning() bool {
	return wp.running.Load()
}

// pollOnce dispatches up to Concurrency pending jobs. Errors and panics are
// logged so the loop keeps going.
func (wp *WorkerPool) pollOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error.Printf("poll iteration panicked: %v", r)
		}
	}()

	if ctx.Err() != nil {
		return
	}

	jobs, err := wp.store.ListPending(ctx, wp.cfg.Concurrency)
	if err != nil {
		logger.Error.Printf("failed to list pending jobs: %v", err)
		return
	}

	for _, job := range jobs {
		if !wp.sem.TryAcquire(1) {
			return
		}
		if !wp.claimAndLaunch(ctx, job.ID) {
			wp.sem.Release(1)
		}
	}
}

// claimAndLaunch claims a pending job and starts its run. The registry lock
// is held across the claim so an administrative operation that holds the id
// never races a new run for it.
func (wp *WorkerPool) claimAndLaunch(ctx context.Context, id int64) bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if _, running := wp.runs[id]; running || wp.blocked[id] > 0 {
		return false
	}

	job, err := wp.store.Claim(ctx, id)
	if err != nil {
		logger.Error.Printf("failed to claim job %d: %v", id, err)
		return false
	}
	if job == nil {
		return false
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &jobRun{cancel: cancel, done: make(chan struct{})}
	wp.runs[id] = run
	wp.wg.Add(1)
	metrics.JobsInProgress.Inc()

	go func() {
		defer wp.wg.Done()
		defer wp.sem.Release(1)
		defer func() {
			metrics.JobsInProgress.Dec()
			wp.mu.Lock()
			delete(wp.runs, id)
			wp.mu.Unlock()
			cancel()
			close(run.done)
		}()

		start := time.Now()
		wp.runJob(runCtx, run, job)
		metrics.JobDuration.Observe(time.Since(start).Seconds())
	}()
	return true
}

func (wp *WorkerPool) runJob(ctx context.Context, run *jobRun, job *domain.Job) {
	defer func() {
		if r := recover(); r != nil {
			wp.handleFailure(ctx, run, job, fmt.Errorf("panic: %v", r))
		}
	}()

	wp.publish(job.ID, Event{Type: EventStatus, Status: domain.JobStatusProcessing})

	// Browser-playable containers are completed as-is: no probe, no encode.
	if job.IsDirectPlay() {
		logger.Info.Printf("job %d: %s is direct play compatible", job.ID, logger.SanitizeForLog(job.SourcePath))
		wp.complete(ctx, run, job, job.SourcePath, domain.MessageDirectPlay)
		return
	}

	logger.Info.Printf("job %d: transcoding %s (attempt %d/%d)",
		job.ID, logger.SanitizeForLog(job.SourcePath), job.Attempts+1, wp.cfg.MaxRetries)

	info, err := wp.transcoder.Probe(ctx, job.SourcePath)
	if err != nil {
		wp.handleFailure(ctx, run, job, err)
		return
	}

	tracker := newProgressTracker(func(pct int) {
		if ctx.Err() != nil {
			return
		}
		if err := wp.store.UpdateProgress(ctx, job.ID, pct); err != nil {
			logger.Warn.Printf("job %d: failed to update progress: %v", job.ID, err)
			return
		}
		wp.publish(job.ID, Event{Type: EventProgress, Status: domain.JobStatusProcessing, Progress: pct})
	})

	output, err := wp.transcoder.Transcode(ctx, port.TranscodeRequest{
		SourcePath: job.SourcePath,
		OutputPath: job.OutputPath,
		Preset:     wp.cfg.Preset,
		Duration:   info.Duration,
	}, tracker.Report)
	if err != nil {
		wp.handleFailure(ctx, run, job, err)
		return
	}

	wp.complete(ctx, run, job, output, "")
}

// commit applies a result write unless the run was aborted. The check and the
// write happen under the registry lock so an abort that returned can never be
// followed by a write from the aborted run.
func (wp *WorkerPool) commit(run *jobRun, write func() error) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if run.aborted {
		return errRunAborted
	}
	return write()
}

func (wp *WorkerPool) complete(ctx context.Context, run *jobRun, job *domain.Job, output, message string) {
	writeCtx := context.WithoutCancel(ctx)

	err := wp.commit(run, func() error {
		return wp.store.Complete(writeCtx, job.ID, output, message)
	})
	if err != nil {
		if !errors.Is(err, errRunAborted) {
			logger.Error.Printf("job %d: failed to mark complete: %v", job.ID, err)
		}
		return
	}

	outcome := "complete"
	if message == domain.MessageDirectPlay {
		outcome = "direct_play"
	}
	metrics.JobsFinishedTotal.WithLabelValues(outcome).Inc()
	logger.Info.Printf("job %d completed: %s", job.ID, logger.SanitizeForLog(output))
	wp.publish(job.ID, Event{Type: EventStatus, Status: domain.JobStatusComplete, Progress: 100, Message: message})

	wp.reconcileCatalog(writeCtx, job, output)

	if wp.cfg.HLSEnabled && job.MediaID != nil && job.EpisodeID == nil && strings.EqualFold(filepath.Ext(output), ".mp4") {
		if _, err := wp.transcoder.Segment(ctx, output, streaming.HLSDir(wp.cfg.OutputDir, *job.MediaID)); err != nil {
			logger.Warn.Printf("job %d: hls segmentation failed: %v", job.ID, err)
		}
	}
}

// reconcileCatalog points the linked episode, or else the linked movie, at
// the new output. Repeating it is harmless.
func (wp *WorkerPool) reconcileCatalog(ctx context.Context, job *domain.Job, output string) {
	if wp.catalog == nil {
		return
	}

	var err error
	switch {
	case job.EpisodeID != nil:
		err = wp.catalog.SetEpisodeFilePath(ctx, *job.EpisodeID, output)
	case job.MediaID != nil:
		err = wp.catalog.SetMediaFilePath(ctx, *job.MediaID, output)
	default:
		return
	}
	if err != nil {
		logger.Error.Printf("job %d: failed to update catalog file pointer: %v", job.ID, err)
	}
}

// handleFailure requeues the job while failures stay below MaxRetries and
// fails it for good after that. Interrupted runs write nothing: an aborted
// run's row belongs to whoever aborted it, and a shutdown leaves the row in
// processing for the next start to requeue.
func (wp *WorkerPool) handleFailure(ctx context.Context, run *jobRun, job *domain.Job, cause error) {
	if ctx.Err() != nil {
		logger.Info.Printf("job %d: run interrupted: %v", job.ID, cause)
		return
	}

	failures := job.Attempts + 1
	writeCtx := context.WithoutCancel(ctx)
	causeText := logger.SanitizeForLog(cause.Error())

	if failures < wp.cfg.MaxRetries {
		message := fmt.Sprintf("attempt %d/%d: %s", failures, wp.cfg.MaxRetries, causeText)
		err := wp.commit(run, func() error {
			return wp.store.Requeue(writeCtx, job.ID, failures, message)
		})
		if err != nil {
			if !errors.Is(err, errRunAborted) {
				logger.Error.Printf("job %d: failed to requeue: %v", job.ID, err)
			}
			return
		}
		metrics.JobsFinishedTotal.WithLabelValues("retry").Inc()
		logger.Warn.Printf("job %d: %s", job.ID, message)
		wp.publish(job.ID, Event{Type: EventStatus, Status: domain.JobStatusPending, Message: message})
		return
	}

	message := "max retries exceeded: " + causeText
	err := wp.commit(run, func() error {
		return wp.store.Fail(writeCtx, job.ID, failures, message)
	})
	if err != nil {
		if !errors.Is(err, errRunAborted) {
			logger.Error.Printf("job %d: failed to mark failed: %v", job.ID, err)
		}
		return
	}
	metrics.JobsFinishedTotal.WithLabelValues("failed").Inc()
	logger.Error.Printf("job %d failed after %d attempts: %s", job.ID, failures, causeText)
	wp.publish(job.ID, Event{Type: EventStatus, Status: domain.JobStatusFailed, Message: message})
}

// Abort stops the run of each id, if any, and waits for it to exit. An
// aborted run never writes to its row again.
func (wp *WorkerPool) Abort(ids ...int64) {
	for _, id := range ids {
		wp.mu.Lock()
		run, ok := wp.runs[id]
		if ok {
			run.aborted = true
			run.cancel()
		}
		wp.mu.Unlock()

		if ok {
			<-run.done
			metrics.JobsAbortedTotal.Inc()
			logger.Info.Printf("job %d: run aborted", id)
		}
	}
}

func (wp *WorkerPool) block(id int64) func() {
	wp.mu.Lock()
	wp.blocked[id]++
	wp.mu.Unlock()
	return func() {
		wp.mu.Lock()
		defer wp.mu.Unlock()
		if wp.blocked[id]--; wp.blocked[id] <= 0 {
			delete(wp.blocked, id)
		}
	}
}

func (wp *WorkerPool) Enqueue(ctx context.Context, req EnqueueRequest) (*domain.Job, error) {
	if req.SourcePath == "" {
		return nil, fmt.Errorf("%w: source path is required", domain.ErrSourceMissing)
	}
	if st, err := os.Stat(req.SourcePath); err != nil || st.IsDir() {
		return nil, fmt.Errorf("%w: %s", domain.ErrSourceMissing, req.SourcePath)
	}

	output := req.OutputPath
	if output == "" {
		output = domain.DefaultOutputPath(wp.cfg.OutputDir, req.SourcePath)
	}

	job := &domain.Job{
		SourcePath: req.SourcePath,
		OutputPath: output,
		Status:     domain.JobStatusPending,
		MediaID:    req.MediaID,
		EpisodeID:  req.EpisodeID,
	}
	if err := wp.store.Create(ctx, job); err != nil {
		return nil, err
	}

	metrics.JobsEnqueuedTotal.Inc()
	logger.Info.Printf("job %d enqueued: %s -> %s", job.ID,
		logger.SanitizeForLog(job.SourcePath), logger.SanitizeForLog(job.OutputPath))
	wp.publish(job.ID, Event{Type: EventStatus, Status: domain.JobStatusPending})
	return job, nil
}

func (wp *WorkerPool) Get(ctx context.Context, id int64) (*domain.Job, error) {
	return wp.store.Get(ctx, id)
}

func (wp *WorkerPool) List(ctx context.Context, status *domain.JobStatus) ([]*domain.Job, error) {
	return wp.store.List(ctx, status)
}

// Cancel removes a pending or processing job. A running encode is terminated
// first and its partial output deleted. A pending job has written nothing, so
// whatever sits at its output path belongs to someone else and stays.
func (wp *WorkerPool) Cancel(ctx context.Context, id int64) error {
	release := wp.block(id)
	defer release()

	job, err := wp.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !job.CanCancel() {
		return invalidState("cancel", job.Status)
	}
	wasProcessing := job.Status == domain.JobStatusProcessing

	wp.Abort(id)

	// The run may have finished before the abort landed.
	job, err = wp.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !job.CanCancel() {
		return invalidState("cancel", job.Status)
	}

	if wasProcessing {
		removePartialOutput(job)
	}
	if err := wp.store.Delete(ctx, id); err != nil {
		return err
	}

	logger.Info.Printf("job %d cancelled", id)
	wp.publish(id, Event{Type: EventDeleted, Message: "cancelled"})
	return nil
}

// Restart puts a processing or failed job back in the queue from scratch.
func (wp *WorkerPool) Restart(ctx context.Context, id int64) (*domain.Job, error) {
	release := wp.block(id)
	defer release()

	job, err := wp.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.CanRestart() {
		return nil, invalidState("restart", job.Status)
	}

	wp.Abort(id)

	job, err = wp.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.CanRestart() {
		return nil, invalidState("restart", job.Status)
	}

	removePartialOutput(job)
	return wp.reset(ctx, id, "restarted")
}

// Retry requeues a failed job.
func (wp *WorkerPool) Retry(ctx context.Context, id int64) (*domain.Job, error) {
	release := wp.block(id)
	defer release()

	job, err := wp.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.CanRetry() {
		return nil, invalidState("retry", job.Status)
	}
	return wp.reset(ctx, id, "retried")
}

func (wp *WorkerPool) reset(ctx context.Context, id int64, verb string) (*domain.Job, error) {
	if err := wp.store.Reset(ctx, id); err != nil {
		return nil, err
	}
	logger.Info.Printf("job %d %s", id, verb)
	wp.publish(id, Event{Type: EventStatus, Status: domain.JobStatusPending})
	return wp.store.Get(ctx, id)
}

func (wp *WorkerPool) ClearFinished(ctx context.Context) (int64, error) {
	n, err := wp.store.DeleteFinished(ctx)
	if err != nil {
		return 0, err
	}
	logger.Info.Printf("cleared %d finished jobs", n)
	return n, nil
}

func (wp *WorkerPool) Status(ctx context.Context) (*QueueStatus, error) {
	counts, err := wp.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &QueueStatus{
		Running:     wp.IsRunning(),
		Concurrency: wp.cfg.Concurrency,
		Counts:      counts,
		InFlight:    wp.InFlight(),
	}, nil
}

// InFlight returns the ids with a live run, sorted.
func (wp *WorkerPool) InFlight() []int64 {
	wp.mu.Lock()
	ids := make([]int64, 0, len(wp.runs))
	for id := range wp.runs {
		ids = append(ids, id)
	}
	wp.mu.Unlock()
	slices.Sort(ids)
	return ids
}

func removePartialOutput(job *domain.Job) {
	if !job.HasPartialOutput() {
		return
	}
	if err := os.Remove(job.OutputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn.Printf("job %d: failed to remove partial output: %v", job.ID, err)
	}
}

func (wp *WorkerPool) publish(jobID int64, event Event) {
	if wp.eventBus != nil {
		wp.eventBus.Publish(jobID, event)
	}
}

func invalidState(op string, status domain.JobStatus) error {
	return fmt.Errorf("%w: cannot %s a %s job", domain.ErrInvalidState, op, status)
}
