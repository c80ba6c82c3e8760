package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bnema/vodpipe/internal/adapter/storage/sqlite"
	"github.com/bnema/vodpipe/internal/domain"
)

type recordingAborter struct {
	aborted []int64
}

func (a *recordingAborter) Abort(ids ...int64) {
	a.aborted = append(a.aborted, ids...)
}

func newTestJobs(t *testing.T) *sqlite.JobStore {
	t.Helper()
	store, err := sqlite.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return sqlite.NewJobStore(store)
}

func createTestJob(t *testing.T, jobs *sqlite.JobStore, source string) *domain.Job {
	t.Helper()
	job := &domain.Job{SourcePath: source, OutputPath: source + ".mp4"}
	require.NoError(t, jobs.Create(context.Background(), job))
	return job
}

func TestReaper_Sweep(t *testing.T) {
	jobs := newTestJobs(t)
	ctx := context.Background()

	stale := createTestJob(t, jobs, "/in/stale.mkv")
	_, err := jobs.Claim(ctx, stale.ID)
	require.NoError(t, err)

	done := createTestJob(t, jobs, "/in/done.mp4")
	_, err = jobs.Claim(ctx, done.ID)
	require.NoError(t, err)
	require.NoError(t, jobs.Complete(ctx, done.ID, done.SourcePath, domain.MessageDirectPlay))

	pending := createTestJob(t, jobs, "/in/pending.mkv")

	aborter := &recordingAborter{}
	reaper := NewReaper(jobs, aborter, ReaperConfig{StaleAfter: 24 * time.Hour, Retention: 7 * 24 * time.Hour})
	reaper.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	res, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{stale.ID}, res.Stale)
	assert.Equal(t, int64(0), res.Pruned)
	assert.Equal(t, []int64{stale.ID}, aborter.aborted)

	got, err := jobs.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Equal(t, domain.MessageStale, got.ErrorMessage)

	got, err = jobs.Get(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, got.Status, "pending jobs are never stale")

	// Past the retention window both terminal jobs go; the pending one stays.
	reaper.now = func() time.Time { return time.Now().Add(10 * 24 * time.Hour) }
	res, err = reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Stale)
	assert.Equal(t, int64(2), res.Pruned)

	_, err = jobs.Get(ctx, done.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = jobs.Get(ctx, pending.ID)
	assert.NoError(t, err)
}

func TestReaper_FreshJobsSurvive(t *testing.T) {
	jobs := newTestJobs(t)
	ctx := context.Background()

	job := createTestJob(t, jobs, "/in/a.mkv")
	_, err := jobs.Claim(ctx, job.ID)
	require.NoError(t, err)

	aborter := &recordingAborter{}
	reaper := NewReaper(jobs, aborter, ReaperConfig{StaleAfter: 24 * time.Hour, Retention: time.Hour})

	res, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Stale)
	assert.Zero(t, res.Pruned)
	assert.Empty(t, aborter.aborted)
}

func TestReaper_AbortsLiveRun(t *testing.T) {
	env := newTestEnv(t, WorkerConfig{})
	ctx := context.Background()
	src := writeFile(t, t.TempDir(), "movie.mkv")
	job := env.enqueue(t, EnqueueRequest{SourcePath: src})

	started := make(chan struct{})
	env.transcoder.EXPECT().Probe(mock.Anything, src).Return(&domain.VideoInfo{Duration: 60}, nil).Once()
	env.transcoder.EXPECT().Transcode(mock.Anything, mock.Anything, mock.Anything).RunAndReturn(blockingTranscode(started)).Once()

	env.pool.pollOnce(ctx)
	<-started

	reaper := NewReaper(env.jobs, env.pool, ReaperConfig{StaleAfter: time.Hour, Retention: 30 * 24 * time.Hour})
	reaper.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	res, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{job.ID}, res.Stale)
	assert.Empty(t, env.pool.InFlight())

	got := env.get(t, job.ID)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Equal(t, domain.MessageStale, got.ErrorMessage)
	assert.NoFileExists(t, got.OutputPath, "the aborted run's partial output is removed")
	assert.FileExists(t, src)

	env.pool.wg.Wait()
}

func TestReaper_StartStopsOnCancel(t *testing.T) {
	reaper := NewReaper(newTestJobs(t), nil, ReaperConfig{StartDelay: time.Hour, Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, reaper.Start(ctx))
}
