package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/vodpipe/internal/domain"
	"github.com/bnema/vodpipe/internal/port"
)

const jobColumns = `id, source_path, output_path, status, progress, attempts, error_message,
	media_id, episode_id, created_at, started_at, completed_at`

type JobStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewJobStore(store *Store) *JobStore {
	return &JobStore{
		db:  store.db,
		now: time.Now,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		j                      domain.Job
		status                 string
		mediaID, episodeID     sql.NullInt64
		createdAt              int64
		startedAt, completedAt sql.NullInt64
	)
	err := row.Scan(
		&j.ID, &j.SourcePath, &j.OutputPath, &status, &j.Progress, &j.Attempts, &j.ErrorMessage,
		&mediaID, &episodeID, &createdAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	j.Status = domain.JobStatus(status)
	j.MediaID = nullableInt64(mediaID)
	j.EpisodeID = nullableInt64(episodeID)
	j.CreatedAt = fromMillis(createdAt)
	j.StartedAt = nullableTime(startedAt)
	j.CompletedAt = nullableTime(completedAt)
	return &j, nil
}

func (s *JobStore) queryJobs(ctx context.Context, query string, args ...any) ([]*domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var jobs []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *JobStore) Create(ctx context.Context, job *domain.Job) error {
	if job.Status == "" {
		job.Status = domain.JobStatusPending
	}
	job.CreatedAt = fromMillis(toMillis(s.now()))

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO transcode_jobs (source_path, output_path, status, progress, attempts, error_message,
			media_id, episode_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		job.SourcePath, job.OutputPath, string(job.Status), job.Progress, job.Attempts, job.ErrorMessage,
		int64OrNull(job.MediaID), int64OrNull(job.EpisodeID), toMillis(job.CreatedAt),
	).Scan(&job.ID)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, id int64) (*domain.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM transcode_jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return j, nil
}

// List returns jobs newest first, optionally filtered by status.
func (s *JobStore) List(ctx context.Context, status *domain.JobStatus) ([]*domain.Job, error) {
	if status != nil {
		return s.queryJobs(ctx, `SELECT `+jobColumns+` FROM transcode_jobs
			WHERE status = ? ORDER BY created_at DESC, id DESC`, string(*status))
	}
	return s.queryJobs(ctx, `SELECT `+jobColumns+` FROM transcode_jobs ORDER BY created_at DESC, id DESC`)
}

// ListPending returns the oldest pending jobs first.
func (s *JobStore) ListPending(ctx context.Context, limit int) ([]*domain.Job, error) {
	return s.queryJobs(ctx, `SELECT `+jobColumns+` FROM transcode_jobs
		WHERE status = 'pending' ORDER BY created_at ASC, id ASC LIMIT ?`, limit)
}

func (s *JobStore) Claim(ctx context.Context, id int64) (*domain.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE transcode_jobs
		SET status = 'processing', progress = 0, started_at = ?, completed_at = NULL
		WHERE id = ? AND status = 'pending'
		RETURNING `+jobColumns,
		toMillis(s.now()), id,
	)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim job %d: %w", id, err)
	}
	return j, nil
}

func (s *JobStore) UpdateProgress(ctx context.Context, id int64, progress int) error {
	progress = min(max(progress, 0), 100)
	_, err := s.db.ExecContext(ctx, `
		UPDATE transcode_jobs SET progress = ?
		WHERE id = ? AND status = 'processing' AND progress < ?`,
		progress, id, progress,
	)
	return err
}

func (s *JobStore) Complete(ctx context.Context, id int64, outputPath, message string) error {
	return s.execGuarded(ctx, id, `
		UPDATE transcode_jobs
		SET status = 'complete', progress = 100, output_path = ?, error_message = ?, completed_at = ?
		WHERE id = ? AND status = 'processing'`,
		outputPath, message, toMillis(s.now()), id,
	)
}

func (s *JobStore) Requeue(ctx context.Context, id int64, attempts int, message string) error {
	return s.execGuarded(ctx, id, `
		UPDATE transcode_jobs
		SET status = 'pending', progress = 0, attempts = ?, error_message = ?, started_at = NULL
		WHERE id = ? AND status = 'processing'`,
		attempts, message, id,
	)
}

func (s *JobStore) Fail(ctx context.Context, id int64, attempts int, message string) error {
	return s.execGuarded(ctx, id, `
		UPDATE transcode_jobs
		SET status = 'failed', attempts = ?, error_message = ?
		WHERE id = ? AND status = 'processing'`,
		attempts, message, id,
	)
}

func (s *JobStore) execGuarded(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("job %d is not processing: %w", id, domain.ErrInvalidState)
	}
	return nil
}

// Reset puts a job back to a fresh pending state regardless of its status.
func (s *JobStore) Reset(ctx context.Context, id int64) error {
	return s.execExpectRow(ctx, `
		UPDATE transcode_jobs
		SET status = 'pending', progress = 0, attempts = 0, error_message = '',
			started_at = NULL, completed_at = NULL
		WHERE id = ?`, id)
}

func (s *JobStore) Delete(ctx context.Context, id int64) error {
	return s.execExpectRow(ctx, `DELETE FROM transcode_jobs WHERE id = ?`, id)
}

func (s *JobStore) execExpectRow(ctx context.Context, query string, id int64) error {
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *JobStore) DeleteFinished(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcode_jobs WHERE status IN ('complete', 'failed')`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *JobStore) CountByStatus(ctx context.Context) (map[domain.JobStatus]int64, error) {
	counts := make(map[domain.JobStatus]int64, len(domain.JobStatuses))
	for _, st := range domain.JobStatuses {
		counts[st] = 0
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM transcode_jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.JobStatus(status)] = n
	}
	return counts, rows.Err()
}

// FailStale marks processing jobs started before the cutoff as failed and
// returns their ids.
func (s *JobStore) FailStale(ctx context.Context, startedBefore time.Time, message string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE transcode_jobs
		SET status = 'failed', error_message = ?
		WHERE status = 'processing' AND COALESCE(started_at, created_at) < ?
		RETURNING id`,
		message, toMillis(startedBefore),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *JobStore) PruneFinished(ctx context.Context, finishedBefore time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM transcode_jobs
		WHERE status IN ('complete', 'failed')
			AND COALESCE(completed_at, started_at, created_at) < ?`,
		toMillis(finishedBefore),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResetOrphaned requeues jobs left in processing by a previous process.
func (s *JobStore) ResetOrphaned(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transcode_jobs
		SET status = 'pending', progress = 0, started_at = NULL
		WHERE status = 'processing'`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// refFilter narrows a query to the jobs of one catalog item. A movie ref
// only matches jobs without an episode.
func refFilter(ref domain.CatalogRef) (string, []any, bool) {
	switch {
	case ref.EpisodeID != nil:
		return "episode_id = ?", []any{*ref.EpisodeID}, true
	case ref.MediaID != nil:
		return "media_id = ? AND episode_id IS NULL", []any{*ref.MediaID}, true
	default:
		return "", nil, false
	}
}

func (s *JobStore) LatestComplete(ctx context.Context, ref domain.CatalogRef) (*domain.Job, error) {
	filter, args, ok := refFilter(ref)
	if !ok {
		return nil, domain.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM transcode_jobs
		WHERE status = 'complete' AND `+filter+`
		ORDER BY completed_at DESC, id DESC LIMIT 1`, args...)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return j, nil
}

func (s *JobStore) HasActive(ctx context.Context, ref domain.CatalogRef) (bool, error) {
	filter, args, ok := refFilter(ref)
	if !ok {
		return false, nil
	}
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM transcode_jobs
		WHERE status IN ('pending', 'processing') AND `+filter+`)`, args...)
}

func (s *JobStore) HasActiveSource(ctx context.Context, sourcePath string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM transcode_jobs
		WHERE status IN ('pending', 'processing') AND source_path = ?)`, sourcePath)
}

func (s *JobStore) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var found bool
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

var _ port.JobStore = (*JobStore)(nil)
