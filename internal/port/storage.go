package port

import (
	"context"

	"github.com/bnema/vodpipe/internal/domain"
)

// Catalog is the narrow view of the media library the pipeline needs.
type Catalog interface {
	GetMedia(ctx context.Context, id int64) (*domain.MediaItem, error)
	GetEpisode(ctx context.Context, mediaID, episodeID int64) (*domain.Episode, error)
	SetMediaFilePath(ctx context.Context, id int64, path string) error
	SetEpisodeFilePath(ctx context.Context, id int64, path string) error
	// FindByFilePath returns a zero ref when no catalog entry points at path.
	FindByFilePath(ctx context.Context, path string) (domain.CatalogRef, error)
}
