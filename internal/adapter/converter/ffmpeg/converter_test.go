package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/bnema/vodpipe/internal/domain"
	"github.com/bnema/vodpipe/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{
			name:    "valid path",
			path:    "/tmp/video.mkv",
			wantErr: nil,
		},
		{
			name:    "valid path with spaces",
			path:    "/tmp/my video.mkv",
			wantErr: nil,
		},
		{
			name:    "valid relative path",
			path:    "video.mkv",
			wantErr: nil,
		},
		{
			name:    "empty path",
			path:    "",
			wantErr: ErrEmptyPath,
		},
		{
			name:    "path with null byte in middle",
			path:    "/tmp/\x00video.mkv",
			wantErr: ErrInvalidPath,
		},
		{
			name:    "path with null byte at end",
			path:    "/tmp/video.mkv\x00",
			wantErr: ErrInvalidPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePath(tt.path)
			assert.True(t, errors.Is(err, tt.wantErr), "validatePath(%q) = %v, want %v", tt.path, err, tt.wantErr)
		})
	}
}

func TestNewConverter(t *testing.T) {
	c, err := NewConverter(Config{})
	require.NoError(t, err)
	assert.Equal(t, "ffmpeg", c.cfg.FFmpegPath)
	assert.Equal(t, "ffprobe", c.cfg.FFprobePath)
	assert.Equal(t, EncoderLibx264, c.cfg.Encoder)
	assert.Equal(t, defaultProbeTimeout, c.cfg.ProbeTimeout)

	_, err = NewConverter(Config{Encoder: "libx265"})
	assert.Error(t, err)
}

func TestConverter_Probe_PathValidation(t *testing.T) {
	c, err := NewConverter(Config{})
	require.NoError(t, err)

	for _, path := range []string{"", "/tmp/\x00video.mkv"} {
		_, err := c.Probe(context.Background(), path)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrProbeFailed))
		assert.Contains(t, err.Error(), "invalid input path")
	}
}

func TestConverter_Probe_MissingTool(t *testing.T) {
	c, err := NewConverter(Config{FFprobePath: filepath.Join(t.TempDir(), "no-such-ffprobe")})
	require.NoError(t, err)

	_, err = c.Probe(context.Background(), "/tmp/video.mkv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProbeFailed))
}

func TestConverter_Transcode_Validation(t *testing.T) {
	c, err := NewConverter(Config{})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Transcode(ctx, port.TranscodeRequest{SourcePath: "", OutputPath: "/tmp/out.mp4"}, nil)
	assert.ErrorContains(t, err, "invalid input path")

	_, err = c.Transcode(ctx, port.TranscodeRequest{SourcePath: "/tmp/in.mkv", OutputPath: "/tmp/\x00out.mp4"}, nil)
	assert.ErrorContains(t, err, "invalid output path")

	_, err = c.Transcode(ctx, port.TranscodeRequest{
		SourcePath: filepath.Join(t.TempDir(), "missing.mkv"),
		OutputPath: filepath.Join(t.TempDir(), "out.mp4"),
	}, nil)
	assert.True(t, errors.Is(err, domain.ErrSourceMissing))
}

// fakeFFmpeg writes an executable shell script standing in for ffmpeg. The
// script sees the real argument list; the output path is always the last one.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nfor a in \"$@\"; do out=\"$a\"; done\n" + body
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func writeSource(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "movie.mkv")
	require.NoError(t, os.WriteFile(src, []byte("not really a video"), 0o644))
	return src
}

func TestConverter_Transcode_Success(t *testing.T) {
	bin := fakeFFmpeg(t, `
printf 'frame=1\nout_time_us=2500000\nprogress=continue\n'
printf 'out_time=00:00:05.000000\nprogress=continue\n'
printf 'out_time=00:00:04.000000\nprogress=continue\n'
printf 'out_time=00:00:30.000000\nprogress=continue\n'
printf 'encoded' > "$out"
printf 'progress=end\n'
`)
	c, err := NewConverter(Config{FFmpegPath: bin})
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "nested", "movie.mp4")
	var fractions []float64
	got, err := c.Transcode(context.Background(), port.TranscodeRequest{
		SourcePath: writeSource(t),
		OutputPath: out,
		Preset:     domain.Preset720p,
		Duration:   10,
	}, func(f float64) { fractions = append(fractions, f) })

	require.NoError(t, err)
	assert.Equal(t, out, got)
	assert.Equal(t, []float64{0.25, 0.5, 1, 1}, fractions)
	for _, f := range fractions {
		assert.GreaterOrEqual(t, f, 0.0)
		assert.LessOrEqual(t, f, 1.0)
	}
}

func TestConverter_Transcode_NonZeroExit(t *testing.T) {
	bin := fakeFFmpeg(t, `
printf 'encoded' > "$out"
echo "Unknown encoder" >&2
exit 1
`)
	c, err := NewConverter(Config{FFmpegPath: bin})
	require.NoError(t, err)

	_, err = c.Transcode(context.Background(), port.TranscodeRequest{
		SourcePath: writeSource(t),
		OutputPath: filepath.Join(t.TempDir(), "movie.mp4"),
		Duration:   10,
	}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEncodeFailed))
	assert.Contains(t, err.Error(), "Unknown encoder")
}

func TestConverter_Transcode_CleanExitWithoutOutput(t *testing.T) {
	bin := fakeFFmpeg(t, `printf 'progress=end\n'`)
	c, err := NewConverter(Config{FFmpegPath: bin})
	require.NoError(t, err)

	_, err = c.Transcode(context.Background(), port.TranscodeRequest{
		SourcePath: writeSource(t),
		OutputPath: filepath.Join(t.TempDir(), "movie.mp4"),
	}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEncodeFailed))
}

func TestConverter_Transcode_Cancel(t *testing.T) {
	bin := fakeFFmpeg(t, `exec sleep 30`)
	c, err := NewConverter(Config{FFmpegPath: bin, KillGrace: 200 * time.Millisecond})
	require.NoError(t, err)

	req := port.TranscodeRequest{
		SourcePath: writeSource(t),
		OutputPath: filepath.Join(t.TempDir(), "movie.mp4"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Transcode(ctx, req, nil)
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("transcode did not return after cancel")
	}
}

func TestConverter_Segment(t *testing.T) {
	bin := fakeFFmpeg(t, `printf '#EXTM3U\n' > "$out"`)
	c, err := NewConverter(Config{FFmpegPath: bin})
	require.NoError(t, err)

	hlsDir := filepath.Join(t.TempDir(), "42", "hls")
	manifest, err := c.Segment(context.Background(), writeSource(t), hlsDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(hlsDir, "master.m3u8"), manifest)
	assert.FileExists(t, manifest)
}
