package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mediafusion/models"
)

// UpsertOutcome classifies what an ingest write did.
type UpsertOutcome int

const (
	// OutcomeCreated means the info-hash was new.
	OutcomeCreated UpsertOutcome = iota
	// OutcomeUpdated means an existing stream was merged.
	OutcomeUpdated
	// OutcomeBlocked means the info-hash is blocked and the write was a no-op.
	OutcomeBlocked
)

const streamColumns = `id, info_hash, name, source, extra_sources, payload_kind,
	payload_ref, size_bytes, resolution, quality, codec, audio, hdr, channels,
	languages, release_group, remux, proper, repack, extended, dubbed, subbed,
	complete, seeders, trackers, seasons, episodes, uploader, vote_score,
	playback_count, is_active, is_blocked, created_at, updated_at`

// UpsertStream writes one stream candidate for a media and returns what
// happened. On an existing info-hash the rows merge: seeders take the max,
// languages and trackers union, the reporting scraper is added as an extra
// source, and a blocked stream stays blocked untouched.
func (s *Store) UpsertStream(ctx context.Context, mediaID int64, stream *models.Stream) (UpsertOutcome, error) {
	if !models.IsInfoHash(stream.InfoHash) {
		return OutcomeBlocked, fmt.Errorf("upsert stream: invalid info hash %q", stream.InfoHash)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return OutcomeBlocked, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	existing, err := getStreamTx(ctx, tx, stream.InfoHash)
	switch {
	case errors.Is(err, ErrNotFound):
		outcome, err := s.insertStream(ctx, tx, mediaID, stream)
		if err != nil {
			return outcome, err
		}
		return outcome, tx.Commit()
	case err != nil:
		return OutcomeBlocked, err
	}

	if existing.IsBlocked {
		// Blocked stays blocked, but the media link is still recorded so an
		// unblock later surfaces it in the right lists.
		if err := linkMediaStream(ctx, tx, mediaID, existing.ID); err != nil {
			return OutcomeBlocked, err
		}
		return OutcomeBlocked, tx.Commit()
	}

	merged := mergeStreams(existing, stream)
	_, err = tx.ExecContext(ctx, `
		UPDATE streams SET extra_sources = ?, size_bytes = ?, seeders = ?,
			languages = ?, trackers = ?, updated_at = ?
		WHERE id = ?`,
		jsonColumn(merged.ExtraSources), merged.SizeBytes, nullableSeeders(merged.Seeders),
		jsonColumn(merged.Languages), jsonColumn(merged.Trackers),
		time.Now().UTC(), existing.ID)
	if err != nil {
		return OutcomeBlocked, fmt.Errorf("merge stream %s: %w", stream.InfoHash, err)
	}

	if err := linkMediaStream(ctx, tx, mediaID, existing.ID); err != nil {
		return OutcomeBlocked, err
	}
	if err := s.refreshAggregates(ctx, tx, mediaID, false); err != nil {
		return OutcomeBlocked, fmt.Errorf("refresh aggregates: %w", err)
	}
	stream.ID = existing.ID
	return OutcomeUpdated, tx.Commit()
}

func (s *Store) insertStream(ctx context.Context, tx *sql.Tx, mediaID int64, stream *models.Stream) (UpsertOutcome, error) {
	now := time.Now().UTC()
	stream.CreatedAt = now
	stream.UpdatedAt = now
	if stream.PayloadKind == "" {
		stream.PayloadKind = models.PayloadTorrent
	}
	stream.IsActive = true

	res, err := tx.ExecContext(ctx, `
		INSERT INTO streams (info_hash, name, source, extra_sources,
			payload_kind, payload_ref, size_bytes, resolution, quality, codec,
			audio, hdr, channels, languages, release_group, remux, proper,
			repack, extended, dubbed, subbed, complete, seeders, trackers,
			seasons, episodes, uploader, vote_score, playback_count,
			is_active, is_blocked, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stream.InfoHash, stream.Name, stream.Source, jsonColumn(stream.ExtraSources),
		string(stream.PayloadKind), stream.PayloadRef, stream.SizeBytes,
		stream.Resolution, jsonColumn(stream.Quality), stream.Codec,
		jsonColumn(stream.Audio), jsonColumn(stream.HDR), jsonColumn(stream.Channels),
		jsonColumn(stream.Languages), stream.ReleaseGroup,
		stream.Remux, stream.Proper, stream.Repack, stream.Extended,
		stream.Dubbed, stream.Subbed, stream.Complete,
		nullableSeeders(stream.Seeders), jsonColumn(stream.Trackers),
		jsonColumn(stream.Seasons), jsonColumn(stream.Episodes), stream.Uploader,
		stream.VoteScore, stream.PlaybackCount, true, false, now, now)
	if err != nil {
		return OutcomeBlocked, fmt.Errorf("insert stream %s: %w", stream.InfoHash, err)
	}
	streamID, err := res.LastInsertId()
	if err != nil {
		return OutcomeBlocked, fmt.Errorf("stream id: %w", err)
	}
	stream.ID = streamID

	for i := range stream.Files {
		f := &stream.Files[i]
		fres, err := tx.ExecContext(ctx, `
			INSERT INTO stream_files (stream_id, file_index, filename,
				size_bytes, kind, season, episode, title)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			streamID, f.Index, f.Filename, f.SizeBytes, string(f.Kind), f.Season, f.Episode, f.Title)
		if err != nil {
			return OutcomeBlocked, fmt.Errorf("insert stream file: %w", err)
		}
		if id, err := fres.LastInsertId(); err == nil {
			f.ID = id
		}
		f.StreamID = streamID
	}

	if err := linkMediaStream(ctx, tx, mediaID, streamID); err != nil {
		return OutcomeBlocked, err
	}
	if err := s.refreshAggregates(ctx, tx, mediaID, true); err != nil {
		return OutcomeBlocked, fmt.Errorf("refresh aggregates: %w", err)
	}
	return OutcomeCreated, nil
}

func linkMediaStream(ctx context.Context, tx *sql.Tx, mediaID, streamID int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO media_streams (media_id, stream_id) VALUES (?, ?)
		ON CONFLICT(media_id, stream_id) DO NOTHING`, mediaID, streamID)
	if err != nil {
		return fmt.Errorf("link media %d stream %d: %w", mediaID, streamID, err)
	}
	return nil
}

func mergeStreams(existing, incoming *models.Stream) *models.Stream {
	merged := *existing
	if incoming.SizeBytes > 0 && merged.SizeBytes == 0 {
		merged.SizeBytes = incoming.SizeBytes
	}
	if incoming.Seeders != nil {
		if merged.Seeders == nil || *incoming.Seeders > *merged.Seeders {
			v := *incoming.Seeders
			merged.Seeders = &v
		}
	}
	merged.MergeLanguages(incoming.Languages)
	merged.MergeTrackers(incoming.Trackers)
	merged.AddSource(incoming.Source)
	for _, src := range incoming.ExtraSources {
		merged.AddSource(src)
	}
	return &merged
}

// GetStreamByInfoHash loads one stream with its files.
func (s *Store) GetStreamByInfoHash(ctx context.Context, infoHash string) (*models.Stream, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+streamColumns+` FROM streams WHERE info_hash = ?`, infoHash)
	stream, err := scanStream(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadFiles(ctx, stream); err != nil {
		return nil, err
	}
	return stream, nil
}

// StreamsForMedia returns the active, unblocked streams linked to a media.
// For series queries (season > 0), a stream qualifies when a contained file
// maps to the episode, or when the parsed name covers the season and the
// stream is a pack or names the episode.
func (s *Store) StreamsForMedia(ctx context.Context, mediaID int64, season, episode int) ([]*models.Stream, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+streamColumns+` FROM streams st
		JOIN media_streams ms ON ms.stream_id = st.id
		WHERE ms.media_id = ? AND st.is_active = 1 AND st.is_blocked = 0
		ORDER BY st.id`, mediaID)
	if err != nil {
		return nil, fmt.Errorf("query streams for media %d: %w", mediaID, err)
	}
	defer rows.Close()

	var streams []*models.Stream
	for rows.Next() {
		stream, err := scanStream(rows)
		if err != nil {
			return nil, err
		}
		streams = append(streams, stream)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate streams: %w", err)
	}

	for _, stream := range streams {
		if err := s.loadFiles(ctx, stream); err != nil {
			return nil, err
		}
	}

	if season <= 0 {
		return streams, nil
	}

	matched := streams[:0]
	for _, stream := range streams {
		if matchesEpisode(stream, season, episode) {
			matched = append(matched, stream)
		}
	}
	return matched, nil
}

// matchesEpisode decides whether a stream can serve a season/episode query.
func matchesEpisode(stream *models.Stream, season, episode int) bool {
	if stream.FileFor(season, episode) != nil {
		return true
	}
	if !stream.HasSeason(season) {
		return false
	}
	// Named-episode streams must name this episode; packs carry the season
	// with no episode list.
	if len(stream.Episodes) == 0 {
		return true
	}
	for _, ep := range stream.Episodes {
		if ep == episode {
			return true
		}
	}
	return false
}

func (s *Store) loadFiles(ctx context.Context, stream *models.Stream) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stream_id, file_index, filename, size_bytes, kind, season, episode, title
		FROM stream_files WHERE stream_id = ? ORDER BY file_index`, stream.ID)
	if err != nil {
		return fmt.Errorf("query files for stream %d: %w", stream.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var f models.StreamFile
		if err := rows.Scan(&f.ID, &f.StreamID, &f.Index, &f.Filename,
			&f.SizeBytes, (*string)(&f.Kind), &f.Season, &f.Episode, &f.Title); err != nil {
			return fmt.Errorf("scan stream file: %w", err)
		}
		stream.Files = append(stream.Files, f)
	}
	return rows.Err()
}

// BlockStream marks an info-hash blocked. Blocked is sticky: later upserts
// cannot clear it.
func (s *Store) BlockStream(ctx context.Context, infoHash string) error {
	return s.setStreamFlag(ctx, infoHash, "is_blocked", true)
}

// UnblockStream clears the block. Admin-only path.
func (s *Store) UnblockStream(ctx context.Context, infoHash string) error {
	return s.setStreamFlag(ctx, infoHash, "is_blocked", false)
}

// SetStreamActive toggles liveness; dead streams stay stored but hidden.
func (s *Store) SetStreamActive(ctx context.Context, infoHash string, active bool) error {
	return s.setStreamFlag(ctx, infoHash, "is_active", active)
}

func (s *Store) setStreamFlag(ctx context.Context, infoHash, column string, value bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin flag update: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE streams SET `+column+` = ?, updated_at = ? WHERE info_hash = ?`,
		value, time.Now().UTC(), infoHash)
	if err != nil {
		return fmt.Errorf("set %s on %s: %w", column, infoHash, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	// Flipping visibility changes every linked media's stream count.
	mediaIDs, err := linkedMediaIDs(ctx, tx, infoHash)
	if err != nil {
		return err
	}
	for _, mediaID := range mediaIDs {
		if err := s.refreshAggregates(ctx, tx, mediaID, false); err != nil {
			return fmt.Errorf("refresh aggregates for media %d: %w", mediaID, err)
		}
	}
	return tx.Commit()
}

func linkedMediaIDs(ctx context.Context, tx *sql.Tx, infoHash string) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT ms.media_id FROM media_streams ms
		JOIN streams st ON st.id = ms.stream_id
		WHERE st.info_hash = ?`, infoHash)
	if err != nil {
		return nil, fmt.Errorf("linked media for %s: %w", infoHash, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan media id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// VoteStream applies a vote delta to a stream's score.
func (s *Store) VoteStream(ctx context.Context, infoHash string, delta int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE streams SET vote_score = vote_score + ?, updated_at = ? WHERE info_hash = ?`,
		delta, time.Now().UTC(), infoHash)
	if err != nil {
		return fmt.Errorf("vote on %s: %w", infoHash, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordPlayback increments the playback counter.
func (s *Store) RecordPlayback(ctx context.Context, infoHash string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE streams SET playback_count = playback_count + 1 WHERE info_hash = ?`, infoHash)
	if err != nil {
		return fmt.Errorf("record playback on %s: %w", infoHash, err)
	}
	return nil
}

func getStreamTx(ctx context.Context, tx *sql.Tx, infoHash string) (*models.Stream, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+streamColumns+` FROM streams WHERE info_hash = ?`, infoHash)
	return scanStream(row)
}

func nullableSeeders(seeders *int) sql.NullInt64 {
	if seeders == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*seeders), Valid: true}
}

func scanStream(row rowScanner) (*models.Stream, error) {
	var st models.Stream
	var extraSources, quality, audio, hdr, channels, languages, trackers, seasons, episodes string
	var seeders sql.NullInt64
	err := row.Scan(&st.ID, &st.InfoHash, &st.Name, &st.Source, &extraSources,
		(*string)(&st.PayloadKind), &st.PayloadRef, &st.SizeBytes, &st.Resolution,
		&quality, &st.Codec, &audio, &hdr, &channels, &languages,
		&st.ReleaseGroup, &st.Remux, &st.Proper, &st.Repack, &st.Extended,
		&st.Dubbed, &st.Subbed, &st.Complete, &seeders, &trackers, &seasons,
		&episodes, &st.Uploader, &st.VoteScore, &st.PlaybackCount,
		&st.IsActive, &st.IsBlocked, &st.CreatedAt, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan stream: %w", err)
	}
	fromJSONColumn(extraSources, &st.ExtraSources)
	fromJSONColumn(quality, &st.Quality)
	fromJSONColumn(audio, &st.Audio)
	fromJSONColumn(hdr, &st.HDR)
	fromJSONColumn(channels, &st.Channels)
	fromJSONColumn(languages, &st.Languages)
	fromJSONColumn(trackers, &st.Trackers)
	fromJSONColumn(seasons, &st.Seasons)
	fromJSONColumn(episodes, &st.Episodes)
	if seeders.Valid {
		v := int(seeders.Int64)
		st.Seeders = &v
	}
	return &st, nil
}
