package tags

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
)

type memSink struct {
	tracks map[string]domain.CatalogTrack
	paths  map[string]string
}

func (m *memSink) UpsertTrack(_ context.Context, track domain.CatalogTrack, path string) error {
	if m.tracks == nil {
		m.tracks = map[string]domain.CatalogTrack{}
		m.paths = map[string]string{}
	}
	m.tracks[track.ID] = track
	m.paths[track.ID] = path
	return nil
}

func TestFromPath(t *testing.T) {
	tests := []struct {
		path    string
		artist  string
		release string
		title   string
	}{
		{"/music/Burial/Untrue/02 - Archangel.mp3", "Burial", "Untrue", "Archangel"},
		{"/music/Burial/Untrue/02 Archangel.flac", "Burial", "Untrue", "Archangel"},
		{"/music/Various/Mix/07 Aphex Twin - Xtal.mp3", "Aphex Twin", "Mix", "Xtal"},
		{"Xtal.mp3", "", "", "Xtal"},
		{"/music/Artist/Album/1979.mp3", "Artist", "Album", "1979"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := FromPath(tt.path)
			assert.Equal(t, tt.artist, got.Artist)
			assert.Equal(t, tt.release, got.ReleaseTitle)
			assert.Equal(t, tt.title, got.Title)
		})
	}
}

func TestSplitGenres(t *testing.T) {
	assert.Equal(t, []string{"Techno", "Minimal", "Dub"}, SplitGenres("Techno; Minimal/Dub, techno"))
	assert.Empty(t, SplitGenres(""))
}

func TestTrackIDIsStable(t *testing.T) {
	a := TrackID("/music/a.mp3")
	assert.Equal(t, a, TrackID("/music/../music/a.mp3"))
	assert.NotEqual(t, a, TrackID("/music/b.mp3"))
	assert.Len(t, a, 36)
}

func TestIsAudioFile(t *testing.T) {
	assert.True(t, IsAudioFile("x/Track.MP3"))
	assert.True(t, IsAudioFile("x/track.flac"))
	assert.False(t, IsAudioFile("x/cover.jpg"))
	assert.False(t, IsAudioFile("x/notes"))
}

func TestImportFallsBackToPathForUntaggedFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Burial", "Untrue")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "02 - Archangel.flac"), bytes.Repeat([]byte("x"), 256), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "folder.jpg"), []byte("jpeg"), 0o644))

	sink := &memSink{}
	stats, err := NewImporter(sink, nil).Import(context.Background(), root, "dj")
	require.NoError(t, err)

	assert.Equal(t, Stats{Scanned: 1, Imported: 1}, stats)
	require.Len(t, sink.tracks, 1)
	for id, track := range sink.tracks {
		assert.Equal(t, "dj", track.Owner)
		assert.Equal(t, "Burial", track.Artist)
		assert.Equal(t, "Archangel", track.Title)
		assert.Equal(t, filepath.Join(dir, "02 - Archangel.flac"), sink.paths[id])
	}
}

func TestImportCancelled(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.mp3"), []byte("x"), 0o644))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewImporter(&memSink{}, nil).Import(ctx, root, "dj")
	assert.ErrorIs(t, err, context.Canceled)
}
