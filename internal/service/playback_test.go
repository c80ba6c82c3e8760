package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bnema/vodpipe/internal/domain"
	"github.com/bnema/vodpipe/internal/streaming"
)

func newPlayback(env *testEnv) *PlaybackService {
	return NewPlaybackService(env.catalog, env.jobs, env.outDir)
}

func TestPlaybackService_ResolveMovie_PrefersTranscode(t *testing.T) {
	env := newTestEnv(t, WorkerConfig{})
	ctx := context.Background()
	src := writeFile(t, t.TempDir(), "movie.avi")

	movie := &domain.MediaItem{Title: "Movie", Kind: domain.MediaKindMovie, FilePath: src}
	require.NoError(t, env.catalog.InsertMedia(ctx, movie))
	playback := newPlayback(env)

	p, err := playback.ResolveMovie(ctx, movie.ID)
	require.NoError(t, err)
	assert.Equal(t, &Playable{Path: src, Source: SourceCatalog}, p)

	job := env.enqueue(t, EnqueueRequest{SourcePath: src, MediaID: &movie.ID})
	env.transcoder.EXPECT().Probe(mock.Anything, src).Return(&domain.VideoInfo{Duration: 60}, nil).Once()
	env.transcoder.EXPECT().Transcode(mock.Anything, mock.Anything, mock.Anything).RunAndReturn(writeOutput).Once()
	env.runOnce()

	p, err = playback.ResolveMovie(ctx, movie.ID)
	require.NoError(t, err)
	assert.Equal(t, &Playable{Path: job.OutputPath, Source: SourceJobOutput}, p)
}

func TestPlaybackService_ResolveMovie_Legacy(t *testing.T) {
	env := newTestEnv(t, WorkerConfig{})
	ctx := context.Background()

	movie := &domain.MediaItem{Title: "Old", Kind: domain.MediaKindMovie, FilePath: writeFile(t, t.TempDir(), "old.mkv")}
	require.NoError(t, env.catalog.InsertMedia(ctx, movie))
	playback := newPlayback(env)

	nested := writeFile(t, env.outDir, filepath.Join(idString(movie.ID), "video.mp4"))
	p, err := playback.ResolveMovie(ctx, movie.ID)
	require.NoError(t, err)
	assert.Equal(t, &Playable{Path: nested, Source: SourceLegacy}, p)

	flat := writeFile(t, env.outDir, idString(movie.ID)+".mp4")
	p, err = playback.ResolveMovie(ctx, movie.ID)
	require.NoError(t, err)
	assert.Equal(t, flat, p.Path)
}

func TestPlaybackService_ResolveMovie_PendingAndMissing(t *testing.T) {
	env := newTestEnv(t, WorkerConfig{})
	ctx := context.Background()
	dir := t.TempDir()

	movie := &domain.MediaItem{Title: "Gone", Kind: domain.MediaKindMovie, FilePath: filepath.Join(dir, "gone.mkv")}
	require.NoError(t, env.catalog.InsertMedia(ctx, movie))
	playback := newPlayback(env)

	_, err := playback.ResolveMovie(ctx, movie.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	env.enqueue(t, EnqueueRequest{SourcePath: writeFile(t, dir, "replacement.mkv"), MediaID: &movie.ID})
	_, err = playback.ResolveMovie(ctx, movie.ID)
	assert.True(t, errors.Is(err, domain.ErrTranscodePending))

	_, err = playback.ResolveMovie(ctx, 404)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestPlaybackService_CompletedOutputDeleted(t *testing.T) {
	env := newTestEnv(t, WorkerConfig{})
	ctx := context.Background()
	src := writeFile(t, t.TempDir(), "movie.mkv")

	movie := &domain.MediaItem{Title: "Movie", Kind: domain.MediaKindMovie, FilePath: src}
	require.NoError(t, env.catalog.InsertMedia(ctx, movie))
	job := env.enqueue(t, EnqueueRequest{SourcePath: src, MediaID: &movie.ID})
	env.transcoder.EXPECT().Probe(mock.Anything, src).Return(&domain.VideoInfo{Duration: 60}, nil).Once()
	env.transcoder.EXPECT().Transcode(mock.Anything, mock.Anything, mock.Anything).RunAndReturn(writeOutput).Once()
	env.runOnce()

	// The catalog now points at the output too; with it gone nothing plays.
	require.NoError(t, os.Remove(job.OutputPath))
	_, err := newPlayback(env).ResolveMovie(ctx, movie.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestPlaybackService_CancelFallsBackToSource(t *testing.T) {
	env := newTestEnv(t, WorkerConfig{})
	ctx := context.Background()
	src := writeFile(t, t.TempDir(), "episode.mkv")

	show := &domain.MediaItem{Title: "Show", Kind: domain.MediaKindShow}
	require.NoError(t, env.catalog.InsertMedia(ctx, show))
	ep := &domain.Episode{MediaID: show.ID, Season: 2, Number: 5, FilePath: src}
	require.NoError(t, env.catalog.InsertEpisode(ctx, ep))
	playback := newPlayback(env)

	job := env.enqueue(t, EnqueueRequest{SourcePath: src, MediaID: &show.ID, EpisodeID: &ep.ID})

	started := make(chan struct{})
	env.transcoder.EXPECT().Probe(mock.Anything, src).Return(&domain.VideoInfo{Duration: 60}, nil).Once()
	env.transcoder.EXPECT().Transcode(mock.Anything, mock.Anything, mock.Anything).RunAndReturn(blockingTranscode(started)).Once()
	env.pool.pollOnce(ctx)
	<-started

	require.NoError(t, env.pool.Cancel(ctx, job.ID))
	env.pool.wg.Wait()

	p, err := playback.ResolveEpisode(ctx, show.ID, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, &Playable{Path: src, Source: SourceCatalog}, p)

	// Without the source there is nothing left to play.
	require.NoError(t, os.Remove(src))
	_, err = playback.ResolveEpisode(ctx, show.ID, ep.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestPlaybackService_WrongKind(t *testing.T) {
	env := newTestEnv(t, WorkerConfig{})
	ctx := context.Background()

	show := &domain.MediaItem{Title: "Show", Kind: domain.MediaKindShow}
	require.NoError(t, env.catalog.InsertMedia(ctx, show))
	movie := &domain.MediaItem{Title: "Movie", Kind: domain.MediaKindMovie}
	require.NoError(t, env.catalog.InsertMedia(ctx, movie))
	playback := newPlayback(env)

	_, err := playback.ResolveMovie(ctx, show.ID)
	assert.True(t, errors.Is(err, domain.ErrWrongKind))

	_, err = playback.ResolveEpisode(ctx, movie.ID, 1)
	assert.True(t, errors.Is(err, domain.ErrWrongKind))

	_, err = playback.ResolveEpisode(ctx, show.ID, 99)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestPlaybackService_StreamInfo(t *testing.T) {
	env := newTestEnv(t, WorkerConfig{})
	ctx := context.Background()

	movie := &domain.MediaItem{Title: "Movie", Kind: domain.MediaKindMovie}
	require.NoError(t, env.catalog.InsertMedia(ctx, movie))
	playback := newPlayback(env)

	info, err := playback.StreamInfo(ctx, movie.ID)
	require.NoError(t, err)
	assert.Equal(t, &StreamInfo{MediaID: movie.ID, Title: "Movie", MediaType: domain.MediaKindMovie}, info)

	mp4 := writeFile(t, env.outDir, idString(movie.ID)+".mp4")
	writeFile(t, streaming.HLSDir(env.outDir, movie.ID), streaming.ManifestName)

	info, err = playback.StreamInfo(ctx, movie.ID)
	require.NoError(t, err)
	assert.True(t, info.MP4Ready)
	assert.True(t, info.HLSReady)
	assert.Equal(t, mp4, info.MP4Path)

	_, err = playback.StreamInfo(ctx, 777)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
