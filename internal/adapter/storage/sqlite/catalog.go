package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bnema/vodpipe/internal/domain"
	"github.com/bnema/vodpipe/internal/port"
)

// Catalog is a minimal media library backed by the same database as the
// job store. It holds just enough to resolve playback and receive file
// pointers from finished jobs.
type Catalog struct {
	db *sql.DB
}

func NewCatalog(store *Store) *Catalog {
	return &Catalog{db: store.db}
}

func (c *Catalog) InsertMedia(ctx context.Context, m *domain.MediaItem) error {
	err := c.db.QueryRowContext(ctx,
		`INSERT INTO media (title, kind, file_path) VALUES (?, ?, ?) RETURNING id`,
		m.Title, string(m.Kind), m.FilePath,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("insert media: %w", err)
	}
	return nil
}

func (c *Catalog) InsertEpisode(ctx context.Context, e *domain.Episode) error {
	err := c.db.QueryRowContext(ctx,
		`INSERT INTO episodes (media_id, season, number, file_path) VALUES (?, ?, ?, ?) RETURNING id`,
		e.MediaID, e.Season, e.Number, e.FilePath,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}
	return nil
}

func (c *Catalog) GetMedia(ctx context.Context, id int64) (*domain.MediaItem, error) {
	var (
		m    domain.MediaItem
		kind string
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT id, title, kind, file_path FROM media WHERE id = ?`, id,
	).Scan(&m.ID, &m.Title, &kind, &m.FilePath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	m.Kind = domain.MediaKind(kind)
	return &m, nil
}

// GetEpisode only returns the episode when it belongs to mediaID.
func (c *Catalog) GetEpisode(ctx context.Context, mediaID, episodeID int64) (*domain.Episode, error) {
	var e domain.Episode
	err := c.db.QueryRowContext(ctx,
		`SELECT id, media_id, season, number, file_path FROM episodes WHERE id = ? AND media_id = ?`,
		episodeID, mediaID,
	).Scan(&e.ID, &e.MediaID, &e.Season, &e.Number, &e.FilePath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (c *Catalog) SetMediaFilePath(ctx context.Context, id int64, path string) error {
	return c.setFilePath(ctx, `UPDATE media SET file_path = ? WHERE id = ?`, id, path)
}

func (c *Catalog) SetEpisodeFilePath(ctx context.Context, id int64, path string) error {
	return c.setFilePath(ctx, `UPDATE episodes SET file_path = ? WHERE id = ?`, id, path)
}

func (c *Catalog) setFilePath(ctx context.Context, query string, id int64, path string) error {
	res, err := c.db.ExecContext(ctx, query, path, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FindByFilePath looks for an episode first, then a movie.
func (c *Catalog) FindByFilePath(ctx context.Context, path string) (domain.CatalogRef, error) {
	if path == "" {
		return domain.CatalogRef{}, nil
	}

	var mediaID, episodeID int64
	err := c.db.QueryRowContext(ctx,
		`SELECT media_id, id FROM episodes WHERE file_path = ? ORDER BY id LIMIT 1`, path,
	).Scan(&mediaID, &episodeID)
	switch {
	case err == nil:
		return domain.CatalogRef{MediaID: &mediaID, EpisodeID: &episodeID}, nil
	case !errors.Is(err, sql.ErrNoRows):
		return domain.CatalogRef{}, err
	}

	err = c.db.QueryRowContext(ctx,
		`SELECT id FROM media WHERE file_path = ? AND kind = 'movie' ORDER BY id LIMIT 1`, path,
	).Scan(&mediaID)
	switch {
	case err == nil:
		return domain.CatalogRef{MediaID: &mediaID}, nil
	case errors.Is(err, sql.ErrNoRows):
		return domain.CatalogRef{}, nil
	default:
		return domain.CatalogRef{}, err
	}
}

var _ port.Catalog = (*Catalog)(nil)
