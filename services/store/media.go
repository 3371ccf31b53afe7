package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mediafusion/models"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("store: not found")

const mediaColumns = `id, external_id, kind, title, year, end_year, description,
	genres, ratings, images, aka_titles, runtime, total_streams,
	last_stream_added, created_at, updated_at`

// EnsureMedia returns the media row for externalID, creating a minimal stub
// when it does not exist yet. The metadata enricher fills in the rest later.
func (s *Store) EnsureMedia(ctx context.Context, externalID string, kind models.MediaKind) (*models.Media, error) {
	media, err := s.GetMediaByExternalID(ctx, externalID)
	if err == nil {
		return media, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO media (external_id, kind, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(external_id) DO NOTHING`,
		externalID, string(kind), now, now)
	if err != nil {
		return nil, fmt.Errorf("insert media %s: %w", externalID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		if id, err := res.LastInsertId(); err == nil {
			return &models.Media{ID: id, ExternalID: externalID, Kind: kind, CreatedAt: now, UpdatedAt: now}, nil
		}
	}
	// Lost a race with a concurrent insert; read the winner.
	return s.GetMediaByExternalID(ctx, externalID)
}

// GetMediaByExternalID looks up media by its tt or mf identifier.
func (s *Store) GetMediaByExternalID(ctx context.Context, externalID string) (*models.Media, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+mediaColumns+` FROM media WHERE external_id = ?`, externalID)
	return scanMedia(row)
}

// GetMedia looks up media by row id.
func (s *Store) GetMedia(ctx context.Context, id int64) (*models.Media, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+mediaColumns+` FROM media WHERE id = ?`, id)
	return scanMedia(row)
}

// UpdateMedia overwrites the enrichable fields. Only the metadata enricher
// calls this; stream aggregates are maintained separately.
func (s *Store) UpdateMedia(ctx context.Context, m *models.Media) error {
	m.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE media SET kind = ?, title = ?, year = ?, end_year = ?,
			description = ?, genres = ?, ratings = ?, images = ?,
			aka_titles = ?, runtime = ?, updated_at = ?
		WHERE id = ?`,
		string(m.Kind), m.Title, m.Year, m.EndYear, m.Description,
		jsonColumn(m.Genres), jsonColumn(m.Ratings), jsonColumn(m.Images),
		jsonColumn(m.AKATitles), m.Runtime, m.UpdatedAt, m.ID)
	if err != nil {
		return fmt.Errorf("update media %d: %w", m.ID, err)
	}
	return nil
}

// RecentMedia lists media ordered by most recent stream activity, for
// scheduled re-scrapes.
func (s *Store) RecentMedia(ctx context.Context, limit int) ([]*models.Media, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+mediaColumns+` FROM media
		 ORDER BY COALESCE(last_stream_added, updated_at) DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent media: %w", err)
	}
	defer rows.Close()

	var media []*models.Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		media = append(media, m)
	}
	return media, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMedia(row rowScanner) (*models.Media, error) {
	var m models.Media
	var genres, ratings, images, akaTitles string
	var lastStreamAdded sql.NullTime
	err := row.Scan(&m.ID, &m.ExternalID, (*string)(&m.Kind), &m.Title, &m.Year,
		&m.EndYear, &m.Description, &genres, &ratings, &images, &akaTitles,
		&m.Runtime, &m.TotalStreams, &lastStreamAdded, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan media: %w", err)
	}
	fromJSONColumn(genres, &m.Genres)
	fromJSONColumn(ratings, &m.Ratings)
	fromJSONColumn(images, &m.Images)
	fromJSONColumn(akaTitles, &m.AKATitles)
	if lastStreamAdded.Valid {
		m.LastStreamAdded = lastStreamAdded.Time
	}
	return &m, nil
}

// refreshAggregates recomputes total_streams and stamps last_stream_added
// after an ingest touched the media's stream set.
func (s *Store) refreshAggregates(ctx context.Context, tx *sql.Tx, mediaID int64, streamAdded bool) error {
	if streamAdded {
		_, err := tx.ExecContext(ctx, `
			UPDATE media SET
				total_streams = (
					SELECT COUNT(*) FROM media_streams ms
					JOIN streams st ON st.id = ms.stream_id
					WHERE ms.media_id = ? AND st.is_active = 1 AND st.is_blocked = 0
				),
				last_stream_added = ?
			WHERE id = ?`, mediaID, time.Now().UTC(), mediaID)
		return err
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE media SET total_streams = (
			SELECT COUNT(*) FROM media_streams ms
			JOIN streams st ON st.id = ms.stream_id
			WHERE ms.media_id = ? AND st.is_active = 1 AND st.is_blocked = 0
		)
		WHERE id = ?`, mediaID, mediaID)
	return err
}
