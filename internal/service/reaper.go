package service

import (
	"context"
	"time"

	"github.com/bnema/vodpipe/internal/domain"
	"github.com/bnema/vodpipe/internal/infrastructure/logger"
	"github.com/bnema/vodpipe/internal/metrics"
	"github.com/bnema/vodpipe/internal/port"
)

type ReaperConfig struct {
	StaleAfter time.Duration
	Retention  time.Duration
	Interval   time.Duration
	StartDelay time.Duration
}

// RunAborter stops in-process runs of the given jobs and waits for them.
type RunAborter interface {
	Abort(ids ...int64)
}

type SweepResult struct {
	Stale  []int64
	Pruned int64
}

// Reaper fails jobs stuck in processing and prunes old finished jobs.
type Reaper struct {
	store   port.JobStore
	aborter RunAborter
	cfg     ReaperConfig
	now     func() time.Time
}

func NewReaper(store port.JobStore, aborter RunAborter, cfg ReaperConfig) *Reaper {
	return &Reaper{
		store:   store,
		aborter: aborter,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Start waits StartDelay, then sweeps every Interval until ctx is done.
func (r *Reaper) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(r.cfg.StartDelay):
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.Sweep(ctx); err != nil {
			logger.Error.Printf("reaper sweep failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Reaper) Sweep(ctx context.Context) (*SweepResult, error) {
	now := r.now()
	defer metrics.ReaperLastRunTimestamp.Set(float64(now.Unix()))

	stale, err := r.store.FailStale(ctx, now.Add(-r.cfg.StaleAfter), domain.MessageStale)
	if err != nil {
		return nil, err
	}
	if len(stale) > 0 {
		logger.Warn.Printf("reaper: %d stale jobs failed: %v", len(stale), stale)
		metrics.ReaperStaleTotal.Add(float64(len(stale)))
		if r.aborter != nil {
			r.aborter.Abort(stale...)
		}
		r.discardOutputs(ctx, stale)
	}

	pruned, err := r.store.PruneFinished(ctx, now.Add(-r.cfg.Retention))
	if err != nil {
		return &SweepResult{Stale: stale}, err
	}
	if pruned > 0 {
		logger.Info.Printf("reaper: pruned %d finished jobs", pruned)
		metrics.ReaperPrunedTotal.Add(float64(pruned))
	}

	return &SweepResult{Stale: stale, Pruned: pruned}, nil
}

// discardOutputs removes what the stale runs left behind so a later retry
// starts from an empty output path.
func (r *Reaper) discardOutputs(ctx context.Context, ids []int64) {
	for _, id := range ids {
		job, err := r.store.Get(ctx, id)
		if err != nil {
			logger.Warn.Printf("reaper: job %d: %v", id, err)
			continue
		}
		removePartialOutput(job)
	}
}
