package domain

type MediaKind string

const (
	MediaKindMovie MediaKind = "movie"
	MediaKindShow  MediaKind = "show"
)

// MediaItem is a catalog entry. For shows the file pointer is unused and
// playback goes through an Episode.
type MediaItem struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Kind     MediaKind `json:"kind"`
	FilePath string    `json:"file_path,omitempty"`
}

type Episode struct {
	ID       int64  `json:"id"`
	MediaID  int64  `json:"media_id"`
	Season   int    `json:"season"`
	Number   int    `json:"number"`
	FilePath string `json:"file_path,omitempty"`
}

func (m *MediaItem) IsShow() bool {
	return m.Kind == MediaKindShow
}

// CatalogRef is the optional link a job carries back into the catalog.
// EpisodeID wins over MediaID when both are set.
type CatalogRef struct {
	MediaID   *int64
	EpisodeID *int64
}

func (r CatalogRef) IsZero() bool {
	return r.MediaID == nil && r.EpisodeID == nil
}

func (j *Job) CatalogRef() CatalogRef {
	return CatalogRef{MediaID: j.MediaID, EpisodeID: j.EpisodeID}
}
