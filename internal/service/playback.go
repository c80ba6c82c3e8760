package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bnema/vodpipe/internal/domain"
	"github.com/bnema/vodpipe/internal/port"
	"github.com/bnema/vodpipe/internal/streaming"
)

// PlaybackSource tells where a resolved file came from.
type PlaybackSource string

const (
	SourceJobOutput PlaybackSource = "job"
	SourceLegacy    PlaybackSource = "legacy"
	SourceCatalog   PlaybackSource = "catalog"
)

type Playable struct {
	Path   string         `json:"path"`
	Source PlaybackSource `json:"source"`
}

type StreamInfo struct {
	MediaID   int64            `json:"media_id"`
	Title     string           `json:"title"`
	MediaType domain.MediaKind `json:"media_type"`
	MP4Ready  bool             `json:"mp4_ready"`
	HLSReady  bool             `json:"hls_ready"`
	MP4Path   string           `json:"mp4_path,omitempty"`
}

// PlaybackService picks the file to stream for a catalog item. A finished
// transcode wins over whatever the catalog points at.
type PlaybackService struct {
	catalog port.Catalog
	jobs    port.JobStore
	root    string
}

func NewPlaybackService(catalog port.Catalog, jobs port.JobStore, transcodedRoot string) *PlaybackService {
	return &PlaybackService{
		catalog: catalog,
		jobs:    jobs,
		root:    transcodedRoot,
	}
}

func (s *PlaybackService) ResolveMovie(ctx context.Context, mediaID int64) (*Playable, error) {
	media, err := s.catalog.GetMedia(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if media.IsShow() {
		return nil, fmt.Errorf("%w: media %d is a show, stream its episodes", domain.ErrWrongKind, mediaID)
	}

	ref := domain.CatalogRef{MediaID: &mediaID}
	return s.resolve(ctx, ref, s.legacyPaths(mediaID), media.FilePath)
}

func (s *PlaybackService) ResolveEpisode(ctx context.Context, mediaID, episodeID int64) (*Playable, error) {
	media, err := s.catalog.GetMedia(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if !media.IsShow() {
		return nil, fmt.Errorf("%w: media %d is a movie", domain.ErrWrongKind, mediaID)
	}

	episode, err := s.catalog.GetEpisode(ctx, mediaID, episodeID)
	if err != nil {
		return nil, err
	}

	ref := domain.CatalogRef{MediaID: &mediaID, EpisodeID: &episodeID}
	return s.resolve(ctx, ref, nil, episode.FilePath)
}

func (s *PlaybackService) resolve(ctx context.Context, ref domain.CatalogRef, legacy []string, catalogPath string) (*Playable, error) {
	if p, err := s.transcoded(ctx, ref, legacy); err != nil || p != nil {
		return p, err
	}

	if isFile(catalogPath) {
		return &Playable{Path: catalogPath, Source: SourceCatalog}, nil
	}

	active, err := s.jobs.HasActive(ctx, ref)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, domain.ErrTranscodePending
	}
	return nil, fmt.Errorf("%w: no playable file", domain.ErrNotFound)
}

// transcoded returns the finished artifact for ref, or nil when there is none
// on disk.
func (s *PlaybackService) transcoded(ctx context.Context, ref domain.CatalogRef, legacy []string) (*Playable, error) {
	job, err := s.jobs.LatestComplete(ctx, ref)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if job != nil && isFile(job.OutputPath) {
		return &Playable{Path: job.OutputPath, Source: SourceJobOutput}, nil
	}

	for _, path := range legacy {
		if isFile(path) {
			return &Playable{Path: path, Source: SourceLegacy}, nil
		}
	}
	return nil, nil
}

// legacyPaths are the fixed locations older deployments wrote movies to.
func (s *PlaybackService) legacyPaths(mediaID int64) []string {
	id := strconv.FormatInt(mediaID, 10)
	return []string{
		filepath.Join(s.root, id+".mp4"),
		filepath.Join(s.root, id, "video.mp4"),
	}
}

func (s *PlaybackService) StreamInfo(ctx context.Context, mediaID int64) (*StreamInfo, error) {
	media, err := s.catalog.GetMedia(ctx, mediaID)
	if err != nil {
		return nil, err
	}

	info := &StreamInfo{
		MediaID:   media.ID,
		Title:     media.Title,
		MediaType: media.Kind,
		HLSReady:  isFile(streaming.ManifestPath(s.root, mediaID)),
	}

	if !media.IsShow() {
		p, err := s.transcoded(ctx, domain.CatalogRef{MediaID: &mediaID}, s.legacyPaths(mediaID))
		if err != nil {
			return nil, err
		}
		if p != nil {
			info.MP4Ready = true
			info.MP4Path = p.Path
		}
	}
	return info, nil
}

func isFile(path string) bool {
	if path == "" {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}
