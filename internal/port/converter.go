package port

import (
	"context"

	"github.com/bnema/vodpipe/internal/domain"
)

type TranscodeRequest struct {
	SourcePath string
	OutputPath string
	Preset     domain.Preset
	// Duration of the source in seconds, used to turn elapsed encode time
	// into a fraction. Zero disables fractional progress.
	Duration float64
}

// ProgressFunc receives a fraction in [0,1]. It is called from the goroutine
// reading the encoder's progress stream.
type ProgressFunc func(fraction float64)

type Transcoder interface {
	Probe(ctx context.Context, path string) (*domain.VideoInfo, error)
	Transcode(ctx context.Context, req TranscodeRequest, onProgress ProgressFunc) (outputPath string, err error)
	Segment(ctx context.Context, mp4Path, hlsDir string) (manifestPath string, err error)
}
