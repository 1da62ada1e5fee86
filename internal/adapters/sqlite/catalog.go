package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
)

const trackColumns = "id, owner, artist, title, release_title, duration_seconds, genre_hints"

// GetTrack loads a catalogued track.
func (a *Adapter) GetTrack(ctx context.Context, trackID string) (domain.CatalogTrack, error) {
	row := a.db.QueryRowContext(ctx, "SELECT "+trackColumns+" FROM tracks WHERE id = ?", trackID)
	track, err := scanTrack(row)
	if err != nil {
		if isNoRows(err) {
			return domain.CatalogTrack{}, fmt.Errorf("track %s: %w", trackID, domain.ErrNotFound)
		}
		return domain.CatalogTrack{}, fmt.Errorf("failed to load track: %w", err)
	}
	return track, nil
}

// ListTracks returns the owner's catalog ordered by artist and title. An empty
// owner lists every track.
func (a *Adapter) ListTracks(ctx context.Context, owner string) ([]domain.CatalogTrack, error) {
	query := "SELECT " + trackColumns + " FROM tracks"
	var args []any
	if owner != "" {
		query += " WHERE owner = ?"
		args = append(args, owner)
	}
	query += " ORDER BY artist, title, id"

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	defer rows.Close()

	var tracks []domain.CatalogTrack
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tracks: %w", err)
	}
	return tracks, nil
}

// UpsertTrack inserts or replaces catalog metadata for a track. sourcePath
// records where an imported track came from and may be empty.
func (a *Adapter) UpsertTrack(ctx context.Context, track domain.CatalogTrack, sourcePath string) error {
	if track.ID == "" {
		return fmt.Errorf("upsert track: empty id")
	}
	hints, err := json.Marshal(nonNil(track.GenreHints))
	if err != nil {
		return fmt.Errorf("failed to encode genre hints: %w", err)
	}
	_, err = a.db.ExecContext(ctx, `
		INSERT INTO tracks (id, owner, artist, title, release_title, duration_seconds, genre_hints, source_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner = excluded.owner,
			artist = excluded.artist,
			title = excluded.title,
			release_title = excluded.release_title,
			duration_seconds = excluded.duration_seconds,
			genre_hints = excluded.genre_hints,
			source_path = excluded.source_path
	`,
		track.ID,
		track.Owner,
		track.Artist,
		track.Title,
		nullString(track.ReleaseTitle),
		track.DurationSeconds,
		string(hints),
		nullString(sourcePath),
		formatTime(a.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert track: %w", err)
	}
	return nil
}

func scanTrack(scanner interface{ Scan(dest ...any) error }) (domain.CatalogTrack, error) {
	var (
		track    domain.CatalogTrack
		release  sql.NullString
		duration sql.NullFloat64
		hints    sql.NullString
	)
	if err := scanner.Scan(
		&track.ID,
		&track.Owner,
		&track.Artist,
		&track.Title,
		&release,
		&duration,
		&hints,
	); err != nil {
		return domain.CatalogTrack{}, err
	}
	track.ReleaseTitle = release.String
	track.DurationSeconds = duration.Float64
	if hints.Valid && hints.String != "" {
		if err := json.Unmarshal([]byte(hints.String), &track.GenreHints); err != nil {
			return domain.CatalogTrack{}, fmt.Errorf("decode genre hints: %w", err)
		}
	}
	return track, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
