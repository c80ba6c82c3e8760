package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bnema/vodpipe/internal/domain"
	"github.com/bnema/vodpipe/internal/infrastructure/logger"
	"github.com/bnema/vodpipe/internal/port"
)

var (
	ErrEmptyPath   = errors.New("path is empty")
	ErrInvalidPath = errors.New("path contains invalid characters")
)

const (
	defaultProbeTimeout = 30 * time.Second
	defaultKillGrace    = 10 * time.Second
	stderrTailSize      = 4096

	hlsManifestName = "master.m3u8"
	hlsSegmentName  = "segment_%03d.ts"
	hlsSegmentSecs  = 6
)

type Config struct {
	FFmpegPath   string
	FFprobePath  string
	Encoder      string
	ProbeTimeout time.Duration
	// KillGrace is how long a process gets to exit after SIGTERM before it
	// is killed.
	KillGrace time.Duration
}

type Converter struct {
	cfg Config

	mu        sync.Mutex
	processes map[string]*exec.Cmd // keyed by output path
}

func NewConverter(cfg Config) (*Converter, error) {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.Encoder == "" {
		cfg.Encoder = EncoderLibx264
	}
	if !IsSupportedEncoder(cfg.Encoder) {
		return nil, fmt.Errorf("unsupported encoder %q", cfg.Encoder)
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = defaultKillGrace
	}
	return &Converter{
		cfg:       cfg,
		processes: make(map[string]*exec.Cmd),
	}, nil
}

func validatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if strings.ContainsRune(path, 0) {
		return ErrInvalidPath
	}
	return nil
}

// command builds a process bound to ctx. Cancelling ctx sends SIGTERM and
// escalates to SIGKILL after the grace period.
func (c *Converter) command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = c.cfg.KillGrace
	return cmd
}

func (c *Converter) Probe(ctx context.Context, path string) (*domain.VideoInfo, error) {
	if err := validatePath(path); err != nil {
		return nil, fmt.Errorf("%w: invalid input path: %w", domain.ErrProbeFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	cmd := c.command(ctx, c.cfg.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: ffprobe timed out after %s", domain.ErrProbeFailed, c.cfg.ProbeTimeout)
		}
		return nil, fmt.Errorf("%w: ffprobe: %w", domain.ErrProbeFailed, err)
	}

	var result domain.ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("%w: parse ffprobe output: %w", domain.ErrProbeFailed, err)
	}

	info, err := result.VideoInfo(path)
	if err != nil {
		return nil, err
	}
	if info.Size == 0 {
		if st, err := os.Stat(path); err == nil {
			info.Size = st.Size()
		}
	}
	return info, nil
}

// Transcode runs one ffmpeg process and blocks until it exits. onProgress is
// called from this goroutine as progress lines arrive.
func (c *Converter) Transcode(ctx context.Context, req port.TranscodeRequest, onProgress port.ProgressFunc) (string, error) {
	if err := validatePath(req.SourcePath); err != nil {
		return "", fmt.Errorf("invalid input path: %w", err)
	}
	if err := validatePath(req.OutputPath); err != nil {
		return "", fmt.Errorf("invalid output path: %w", err)
	}
	if _, err := os.Stat(req.SourcePath); err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrSourceMissing, req.SourcePath)
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	args := buildTranscodeArgs(c.cfg.Encoder, req)
	if err := c.run(ctx, req.OutputPath, args, req.Duration, onProgress); err != nil {
		return "", err
	}

	st, err := os.Stat(req.OutputPath)
	if err != nil || st.Size() == 0 {
		return "", fmt.Errorf("%w: output %s missing or empty after exit", domain.ErrEncodeFailed, req.OutputPath)
	}
	return req.OutputPath, nil
}

// Segment remuxes an MP4 into an HLS rendition inside hlsDir.
func (c *Converter) Segment(ctx context.Context, mp4Path, hlsDir string) (string, error) {
	if err := validatePath(mp4Path); err != nil {
		return "", fmt.Errorf("invalid input path: %w", err)
	}
	if err := validatePath(hlsDir); err != nil {
		return "", fmt.Errorf("invalid output dir: %w", err)
	}
	if err := os.MkdirAll(hlsDir, 0o755); err != nil {
		return "", fmt.Errorf("create hls dir: %w", err)
	}

	manifest := filepath.Join(hlsDir, hlsManifestName)
	if err := c.run(ctx, manifest, buildSegmentArgs(mp4Path, hlsDir), 0, nil); err != nil {
		return "", err
	}
	if _, err := os.Stat(manifest); err != nil {
		return "", fmt.Errorf("%w: manifest %s missing after exit", domain.ErrEncodeFailed, manifest)
	}
	return manifest, nil
}

func (c *Converter) run(ctx context.Context, key string, args []string, duration float64, onProgress port.ProgressFunc) error {
	cmd := c.command(ctx, c.cfg.FFmpegPath, args...)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	stderr := newTailBuffer(stderrTailSize)
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		return fmt.Errorf("%w: start ffmpeg: %w", domain.ErrEncodeFailed, err)
	}
	c.track(key, cmd)
	defer c.untrack(key, cmd)

	waitCh := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		_ = pw.Close()
		waitCh <- err
	}()

	readProgress(pr, duration, onProgress)
	waitErr := <-waitCh

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if waitErr != nil {
		return fmt.Errorf("%w: ffmpeg: %v: %s", domain.ErrEncodeFailed, waitErr, stderr.String())
	}
	return nil
}

func (c *Converter) track(key string, cmd *exec.Cmd) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processes[key] = cmd
}

func (c *Converter) untrack(key string, cmd *exec.Cmd) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.processes[key] == cmd {
		delete(c.processes, key)
	}
}

// KillAll terminates every tracked process. Used on shutdown.
func (c *Converter) KillAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, cmd := range c.processes {
		if cmd.Process != nil {
			logger.Warn.Printf("killing ffmpeg for %s (pid %d)", logger.SanitizeForLog(key), cmd.Process.Pid)
			_ = cmd.Process.Kill()
		}
	}
}

var _ port.Transcoder = (*Converter)(nil)
