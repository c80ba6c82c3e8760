package service

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bnema/vodpipe/internal/adapter/http/validation"
	"github.com/bnema/vodpipe/internal/domain"
	"github.com/bnema/vodpipe/internal/infrastructure/logger"
	"github.com/bnema/vodpipe/internal/port"
)

// videoExtensions are accepted without sniffing the file.
var videoExtensions = map[string]bool{
	".mkv":  true,
	".avi":  true,
	".wmv":  true,
	".m4v":  true,
	".mp4":  true,
	".mov":  true,
	".webm": true,
	".flv":  true,
	".ts":   true,
	".m2ts": true,
	".mpg":  true,
	".mpeg": true,
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, req EnqueueRequest) (*domain.Job, error)
}

type Prober interface {
	Probe(ctx context.Context, path string) (*domain.VideoInfo, error)
}

type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type IntakeResult struct {
	Name    string        `json:"name,omitempty"`
	Queued  []*domain.Job `json:"queued"`
	Skipped []SkippedFile `json:"skipped"`
}

// IntakeService turns a finished download into transcode jobs for the files
// a browser cannot play.
type IntakeService struct {
	enqueuer JobEnqueuer
	jobs     port.JobStore
	catalog  port.Catalog
	prober   Prober
}

func NewIntakeService(enqueuer JobEnqueuer, jobs port.JobStore, catalog port.Catalog, prober Prober) *IntakeService {
	return &IntakeService{
		enqueuer: enqueuer,
		jobs:     jobs,
		catalog:  catalog,
		prober:   prober,
	}
}

func (s *IntakeService) HandleDownload(ctx context.Context, name, savePath string) (*IntakeResult, error) {
	if savePath == "" {
		return nil, fmt.Errorf("%w: save path is required", domain.ErrSourceMissing)
	}

	files, err := videoFiles(savePath)
	if err != nil {
		return nil, err
	}
	logger.Info.Printf("intake %q: %d video files under %s",
		logger.SanitizeForLog(name), len(files), logger.SanitizeForLog(savePath))

	result := &IntakeResult{Name: name, Queued: []*domain.Job{}, Skipped: []SkippedFile{}}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		job, reason, err := s.intakeFile(ctx, path)
		if err != nil {
			return result, err
		}
		if job == nil {
			logger.Info.Printf("intake: skipping %s: %s", logger.SanitizeForLog(path), reason)
			result.Skipped = append(result.Skipped, SkippedFile{Path: path, Reason: reason})
			continue
		}
		result.Queued = append(result.Queued, job)
	}
	return result, nil
}

// intakeFile enqueues path, or explains why it does not need a job.
func (s *IntakeService) intakeFile(ctx context.Context, path string) (*domain.Job, string, error) {
	if domain.IsDirectPlayPath(path) {
		return nil, "browser playable container", nil
	}

	info, err := s.prober.Probe(ctx, path)
	switch {
	case err != nil:
		// The worker probes again and records the failure on the job.
		logger.Warn.Printf("intake: probe of %s failed, queueing anyway: %v", logger.SanitizeForLog(path), err)
	case info.VideoCodecPlayable():
		return nil, fmt.Sprintf("video codec %s is browser playable", info.VideoCodec), nil
	}

	active, err := s.jobs.HasActiveSource(ctx, path)
	if err != nil {
		return nil, "", err
	}
	if active {
		return nil, "already queued", nil
	}

	ref, err := s.catalog.FindByFilePath(ctx, path)
	if err != nil {
		return nil, "", err
	}

	job, err := s.enqueuer.Enqueue(ctx, EnqueueRequest{
		SourcePath: path,
		MediaID:    ref.MediaID,
		EpisodeID:  ref.EpisodeID,
	})
	if err != nil {
		return nil, "", err
	}
	return job, "", nil
}

// videoFiles lists the regular files under root, or root itself, that carry
// a video extension or sniff as a video container. Order is lexical.
func videoFiles(root string) ([]string, error) {
	st, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSourceMissing, root)
	}
	if st.Mode().IsRegular() {
		if isVideoFile(root) {
			return []string{root}, nil
		}
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn.Printf("intake: cannot read %s: %v", logger.SanitizeForLog(path), err)
			return nil
		}
		if d.Type().IsRegular() && isVideoFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func isVideoFile(path string) bool {
	if videoExtensions[strings.ToLower(filepath.Ext(path))] {
		return true
	}
	_, ok, err := validation.SniffVideoFile(path)
	return err == nil && ok
}
