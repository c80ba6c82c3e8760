package http

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/vodpipe/internal/domain"
	"github.com/bnema/vodpipe/internal/service"
	"github.com/bnema/vodpipe/internal/streaming"
)

func (ts *testServer) insertMovie(t *testing.T, path string) *domain.MediaItem {
	t.Helper()
	m := &domain.MediaItem{Title: "Movie", Kind: domain.MediaKindMovie, FilePath: path}
	require.NoError(t, ts.catalog.InsertMedia(t.Context(), m))
	return m
}

func TestStream_Movie(t *testing.T) {
	ts := newTestServer(t)
	src := writeFile(t, t.TempDir(), "movie.webm", "0123456789")
	movie := ts.insertMovie(t, src)
	path := fmt.Sprintf("/api/stream/%d", movie.ID)

	rec := ts.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0123456789", rec.Body.String())
	assert.Equal(t, "video/webm", rec.Header().Get("Content-Type"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Range", "bytes=2-5")
	rec = httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "2345", rec.Body.String())
	assert.Equal(t, "bytes 2-5/10", rec.Header().Get("Content-Range"))

	rec = ts.do(t, http.MethodHead, path, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Body.String())
}

func TestStream_MovieTranscodePending(t *testing.T) {
	ts := newTestServer(t)
	dir := t.TempDir()
	movie := ts.insertMovie(t, filepath.Join(dir, "gone.mkv"))
	path := fmt.Sprintf("/api/stream/%d", movie.ID)

	rec := ts.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEqual(t, msgTranscodePending, decode[errorResponse](t, rec).Error)

	_, err := ts.pool.Enqueue(t.Context(), service.EnqueueRequest{
		SourcePath: writeFile(t, dir, "other.mkv", "x"),
		MediaID:    &movie.ID,
	})
	require.NoError(t, err)

	rec = ts.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Equal(t, msgTranscodePending, decode[errorResponse](t, rec).Error)
}

func TestStream_Episode(t *testing.T) {
	ts := newTestServer(t)
	ctx := t.Context()

	show := &domain.MediaItem{Title: "Show", Kind: domain.MediaKindShow}
	require.NoError(t, ts.catalog.InsertMedia(ctx, show))
	ep := &domain.Episode{MediaID: show.ID, Season: 1, Number: 2, FilePath: writeFile(t, t.TempDir(), "e2.mp4", "episode")}
	require.NoError(t, ts.catalog.InsertEpisode(ctx, ep))

	rec := ts.do(t, http.MethodGet, fmt.Sprintf("/api/stream/%d/episode/%d", show.ID, ep.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "episode", rec.Body.String())

	// Shows only stream through the episode route.
	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/stream/%d", show.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/stream/%d/episode/999", show.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStream_HLS(t *testing.T) {
	ts := newTestServer(t)
	movie := ts.insertMovie(t, "")
	base := fmt.Sprintf("/api/stream/%d/hls/", movie.ID)

	rec := ts.do(t, http.MethodGet, base+streaming.ManifestName, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	hls := streaming.HLSDir(ts.outDir, movie.ID)
	writeFile(t, hls, streaming.ManifestName, "#EXTM3U\n")
	writeFile(t, hls, "segment_000.ts", "ts-bytes")

	rec = ts.do(t, http.MethodGet, base+streaming.ManifestName, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "#EXTM3U\n", rec.Body.String())
	assert.Equal(t, "application/vnd.apple.mpegurl", rec.Header().Get("Content-Type"))

	rec = ts.do(t, http.MethodGet, base+"segment_000.ts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ts-bytes", rec.Body.String())

	rec = ts.do(t, http.MethodGet, base+"notes.txt", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStream_Info(t *testing.T) {
	ts := newTestServer(t)
	movie := ts.insertMovie(t, "")

	rec := ts.do(t, http.MethodGet, fmt.Sprintf("/api/stream/%d/info", movie.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(
		`{"media_id":%d,"title":"Movie","media_type":"movie","mp4_ready":false,"hls_ready":false}`, movie.ID),
		rec.Body.String())

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/stream/404/info", nil).Code)
}
