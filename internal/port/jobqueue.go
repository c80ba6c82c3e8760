package port

import (
	"context"
	"time"

	"github.com/bnema/vodpipe/internal/domain"
)

// JobStore persists transcode jobs. Complete, Requeue and Fail only apply to
// rows still in processing and report domain.ErrInvalidState otherwise.
// UpdateProgress silently ignores rows that left processing and values that
// would lower the stored progress.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, id int64) (*domain.Job, error)
	List(ctx context.Context, status *domain.JobStatus) ([]*domain.Job, error)
	ListPending(ctx context.Context, limit int) ([]*domain.Job, error)
	// Claim moves a pending job to processing. It returns nil, nil when the
	// job is no longer pending.
	Claim(ctx context.Context, id int64) (*domain.Job, error)
	UpdateProgress(ctx context.Context, id int64, progress int) error
	Complete(ctx context.Context, id int64, outputPath, message string) error
	Requeue(ctx context.Context, id int64, attempts int, message string) error
	Fail(ctx context.Context, id int64, attempts int, message string) error
	Reset(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	DeleteFinished(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[domain.JobStatus]int64, error)
	FailStale(ctx context.Context, startedBefore time.Time, message string) ([]int64, error)
	PruneFinished(ctx context.Context, finishedBefore time.Time) (int64, error)
	ResetOrphaned(ctx context.Context) (int64, error)
	LatestComplete(ctx context.Context, ref domain.CatalogRef) (*domain.Job, error)
	HasActive(ctx context.Context, ref domain.CatalogRef) (bool, error)
	HasActiveSource(ctx context.Context, sourcePath string) (bool, error)
}
