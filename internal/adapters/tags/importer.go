// Package tags builds catalog tracks from the tags of local audio files.
package tags

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/google/uuid"

	"github.com/ewilliams-labs/cratedigger/internal/adapters/mp3"
	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
)

// trackNamespace seeds deterministic track ids derived from file paths.
var trackNamespace = uuid.MustParse("5b0f5c8e-7d0a-4f43-9a57-2f3d0f6b8c11")

var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".mp4":  true,
	".ogg":  true,
	".dsf":  true,
}

// Sink stores imported tracks.
type Sink interface {
	UpsertTrack(ctx context.Context, track domain.CatalogTrack, sourcePath string) error
}

// Stats counts an import run.
type Stats struct {
	Scanned  int
	Imported int
	Skipped  int
}

// Importer walks a directory tree and upserts every tagged audio file.
type Importer struct {
	sink   Sink
	logger *slog.Logger
}

// NewImporter constructs an Importer.
func NewImporter(sink Sink, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{sink: sink, logger: logger.With("component", "tags")}
}

// Import scans root for audio files and stores them for owner. Unreadable
// files are skipped and counted.
func (i *Importer) Import(ctx context.Context, root, owner string) (Stats, error) {
	var stats Stats
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !IsAudioFile(path) {
			return nil
		}
		stats.Scanned++

		track, err := ReadFile(path)
		if err != nil {
			stats.Skipped++
			i.logger.Warn("skipping unreadable file", slog.String("path", path), slog.Any("error", err))
			return nil
		}
		track.Owner = owner
		if err := i.sink.UpsertTrack(ctx, track, path); err != nil {
			return fmt.Errorf("tags: store %s: %w", path, err)
		}
		stats.Imported++
		i.logger.Debug("imported track",
			slog.String("track_id", track.ID),
			slog.String("artist", track.Artist),
			slog.String("title", track.Title),
		)
		return nil
	})
	if err != nil {
		return stats, err
	}
	return stats, nil
}

// IsAudioFile reports whether the extension is one the importer reads.
func IsAudioFile(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

// ReadFile extracts catalog metadata from one file. Missing tags fall back
// to the Artist/Album/Track layout of the path.
func ReadFile(path string) (domain.CatalogTrack, error) {
	file, err := os.Open(path)
	if err != nil {
		return domain.CatalogTrack{}, fmt.Errorf("tags: open: %w", err)
	}
	defer file.Close()

	track := domain.CatalogTrack{ID: TrackID(path)}
	meta, err := tag.ReadFrom(file)
	if err != nil && !errors.Is(err, tag.ErrNoTagsFound) {
		return domain.CatalogTrack{}, fmt.Errorf("tags: read: %w", err)
	}
	if meta != nil {
		track.Artist = strings.TrimSpace(meta.Artist())
		if track.Artist == "" {
			track.Artist = strings.TrimSpace(meta.AlbumArtist())
		}
		track.Title = strings.TrimSpace(meta.Title())
		track.ReleaseTitle = strings.TrimSpace(meta.Album())
		track.GenreHints = SplitGenres(meta.Genre())
	}

	fallback := FromPath(path)
	if track.Artist == "" {
		track.Artist = fallback.Artist
	}
	if track.Title == "" {
		track.Title = fallback.Title
	}
	if track.ReleaseTitle == "" {
		track.ReleaseTitle = fallback.ReleaseTitle
	}

	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		if _, err := file.Seek(0, io.SeekStart); err == nil {
			if seconds, err := mp3.Duration(file); err == nil {
				track.DurationSeconds = seconds
			}
		}
	}
	return track, nil
}

// FromPath guesses artist, release and title from ".../Artist/Album/NN Title.ext".
func FromPath(path string) domain.CatalogTrack {
	parts := strings.Split(filepath.ToSlash(path), "/")
	name := trimTrackNumber(strings.TrimSuffix(parts[len(parts)-1], filepath.Ext(path)))

	var track domain.CatalogTrack
	if artist, title, ok := strings.Cut(name, " - "); ok {
		track.Artist = strings.TrimSpace(artist)
		track.Title = strings.TrimSpace(title)
	} else {
		track.Title = name
	}
	if len(parts) >= 2 {
		track.ReleaseTitle = parts[len(parts)-2]
	}
	if track.Artist == "" && len(parts) >= 3 {
		track.Artist = parts[len(parts)-3]
	}
	return track
}

// TrackID derives a stable id from the cleaned absolute path.
func TrackID(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return uuid.NewSHA1(trackNamespace, []byte(filepath.ToSlash(path))).String()
}

// SplitGenres breaks a genre tag such as "Techno; Minimal/Dub" into hints.
func SplitGenres(genre string) []string {
	fields := strings.FieldsFunc(genre, func(r rune) bool {
		return r == ';' || r == ',' || r == '/' || r == '|'
	})
	var out []string
	seen := map[string]bool{}
	for _, f := range fields {
		f = strings.TrimSpace(f)
		key := strings.ToLower(f)
		if f == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}

func trimTrackNumber(s string) string {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 || i == len(s) {
		return s
	}
	return strings.TrimLeft(s[i:], " .-_")
}
