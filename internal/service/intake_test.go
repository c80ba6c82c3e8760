package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bnema/vodpipe/internal/domain"
)

func newIntake(env *testEnv) *IntakeService {
	return NewIntakeService(env.pool, env.jobs, env.catalog, env.transcoder)
}

func skippedPaths(res *IntakeResult) map[string]string {
	out := make(map[string]string, len(res.Skipped))
	for _, s := range res.Skipped {
		out[filepath.Base(s.Path)] = s.Reason
	}
	return out
}

func TestIntakeService_HandleDownload_Directory(t *testing.T) {
	env := newTestEnv(t, WorkerConfig{})
	ctx := context.Background()
	dir := t.TempDir()

	hevc := writeFile(t, dir, "Show.S01E01.mkv")
	h264 := writeFile(t, dir, "Show.S01E02.mkv")
	direct := writeFile(t, dir, "Show.S01E03.mp4")
	writeFile(t, dir, "Show.nfo")
	writeFile(t, dir, "Subs/Show.S01E01.srt")

	// No video extension, but an AVI header.
	sniffed := filepath.Join(dir, "extras", "bonus.bin")
	require.NoError(t, os.MkdirAll(filepath.Dir(sniffed), 0o755))
	require.NoError(t, os.WriteFile(sniffed, append([]byte("RIFF\x00\x00\x00\x00AVI "), make([]byte, 64)...), 0o644))

	show := &domain.MediaItem{Title: "Show", Kind: domain.MediaKindShow}
	require.NoError(t, env.catalog.InsertMedia(ctx, show))
	ep := &domain.Episode{MediaID: show.ID, Season: 1, Number: 1, FilePath: hevc}
	require.NoError(t, env.catalog.InsertEpisode(ctx, ep))

	env.transcoder.EXPECT().Probe(mock.Anything, hevc).Return(&domain.VideoInfo{VideoCodec: "hevc"}, nil).Once()
	env.transcoder.EXPECT().Probe(mock.Anything, h264).Return(&domain.VideoInfo{VideoCodec: "h264"}, nil).Once()
	env.transcoder.EXPECT().Probe(mock.Anything, sniffed).Return(nil, domain.ErrProbeFailed).Once()

	res, err := newIntake(env).HandleDownload(ctx, "Show S01", dir)
	require.NoError(t, err)
	assert.Equal(t, "Show S01", res.Name)

	require.Len(t, res.Queued, 2)
	assert.Equal(t, hevc, res.Queued[0].SourcePath)
	require.NotNil(t, res.Queued[0].EpisodeID)
	assert.Equal(t, ep.ID, *res.Queued[0].EpisodeID)
	assert.Equal(t, show.ID, *res.Queued[0].MediaID)

	// A failed probe still queues; the worker records why it fails.
	assert.Equal(t, sniffed, res.Queued[1].SourcePath)
	assert.Nil(t, res.Queued[1].MediaID)

	skipped := skippedPaths(res)
	assert.Len(t, skipped, 2)
	assert.Equal(t, "video codec h264 is browser playable", skipped[filepath.Base(h264)])
	assert.Equal(t, "browser playable container", skipped[filepath.Base(direct)])

	pending := domain.JobStatusPending
	jobs, err := env.pool.List(ctx, &pending)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestIntakeService_HandleDownload_SkipsActiveSource(t *testing.T) {
	env := newTestEnv(t, WorkerConfig{})
	ctx := context.Background()
	src := writeFile(t, t.TempDir(), "movie.avi")

	movie := &domain.MediaItem{Title: "Movie", Kind: domain.MediaKindMovie, FilePath: src}
	require.NoError(t, env.catalog.InsertMedia(ctx, movie))

	env.transcoder.EXPECT().Probe(mock.Anything, src).Return(&domain.VideoInfo{VideoCodec: "mpeg4"}, nil).Times(2)
	intake := newIntake(env)

	res, err := intake.HandleDownload(ctx, "movie", src)
	require.NoError(t, err)
	require.Len(t, res.Queued, 1)
	assert.Equal(t, movie.ID, *res.Queued[0].MediaID)
	assert.Nil(t, res.Queued[0].EpisodeID)

	res, err = intake.HandleDownload(ctx, "movie", src)
	require.NoError(t, err)
	assert.Empty(t, res.Queued)
	assert.Equal(t, []SkippedFile{{Path: src, Reason: "already queued"}}, res.Skipped)
}

func TestIntakeService_HandleDownload_MissingPath(t *testing.T) {
	env := newTestEnv(t, WorkerConfig{})
	intake := newIntake(env)

	_, err := intake.HandleDownload(context.Background(), "x", "")
	assert.True(t, errors.Is(err, domain.ErrSourceMissing))

	_, err = intake.HandleDownload(context.Background(), "x", filepath.Join(t.TempDir(), "nope"))
	assert.True(t, errors.Is(err, domain.ErrSourceMissing))
}

func TestIntakeService_HandleDownload_NonVideoFile(t *testing.T) {
	env := newTestEnv(t, WorkerConfig{})
	path := writeFile(t, t.TempDir(), "readme.txt")

	res, err := newIntake(env).HandleDownload(context.Background(), "readme", path)
	require.NoError(t, err)
	assert.Empty(t, res.Queued)
	assert.Empty(t, res.Skipped)
}
