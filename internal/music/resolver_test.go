package music

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooksLikeURL(t *testing.T) {
	assert.True(t, looksLikeURL("https://youtube.com/watch?v=abc"))
	assert.True(t, looksLikeURL("http://soundcloud.com/artist/song"))
	assert.False(t, looksLikeURL("never gonna give you up"))
	assert.False(t, looksLikeURL(""))
}

func TestIsSpotifyURL(t *testing.T) {
	assert.True(t, isSpotifyURL("https://open.spotify.com/track/abc123"))
	assert.True(t, isSpotifyURL("spotify:track:abc123"))
	assert.False(t, isSpotifyURL("https://youtube.com/watch?v=abc"))
}

func TestDetectSourceFromURL(t *testing.T) {
	assert.Equal(t, TrackSourceYouTube, detectSourceFromURL("https://www.youtube.com/watch?v=abc"))
	assert.Equal(t, TrackSourceYouTube, detectSourceFromURL("https://youtu.be/abc"))
	assert.Equal(t, TrackSourceSoundCloud, detectSourceFromURL("https://soundcloud.com/artist/song"))
	assert.Equal(t, TrackSourceSpotify, detectSourceFromURL("https://open.spotify.com/track/abc"))
	assert.Equal(t, TrackSourceUnknown, detectSourceFromURL("https://example.com/file.mp3"))
}

func TestCollectYTDLPTracksSingle(t *testing.T) {
	root := ytDLPItem{
		ID:         "abc",
		Title:      "A Song",
		WebpageURL: "https://www.youtube.com/watch?v=abc",
		Duration:   213,
	}

	tracks := collectYTDLPTracks(root, TrackSourceUnknown)
	require.Len(t, tracks, 1)
	assert.Equal(t, "A Song", tracks[0].Title)
	assert.Equal(t, TrackSourceYouTube, tracks[0].Source)
	assert.Equal(t, 213*time.Second, tracks[0].Duration)
}

func TestCollectYTDLPTracksPlaylistOrder(t *testing.T) {
	root := ytDLPItem{
		Title: "My Playlist",
		Entries: []ytDLPItem{
			{ID: "1", Title: "First", URL: "https://youtu.be/1", Duration: 10},
			{ID: "2", Title: "Second", URL: "https://youtu.be/2", Duration: 20},
			{ID: "3", URL: "https://youtu.be/3"},
			{ID: "4", Title: "No Link"},
		},
	}

	tracks := collectYTDLPTracks(root, TrackSourceUnknown)
	require.Len(t, tracks, 3)
	assert.Equal(t, "First", tracks[0].Title)
	assert.Equal(t, "Second", tracks[1].Title)
	assert.Equal(t, "Unknown Title", tracks[2].Title)
}

func TestCollectYTDLPTracksCapped(t *testing.T) {
	root := ytDLPItem{Title: "Huge Playlist"}
	for i := 0; i < maxPlaylistTracks+50; i++ {
		root.Entries = append(root.Entries, ytDLPItem{
			ID:    "x",
			Title: "Track",
			URL:   "https://youtu.be/x",
		})
	}

	tracks := collectYTDLPTracks(root, TrackSourceUnknown)
	assert.Len(t, tracks, maxPlaylistTracks)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0:00", FormatDuration(0))
	assert.Equal(t, "0:07", FormatDuration(7*time.Second))
	assert.Equal(t, "3:05", FormatDuration(185*time.Second))
	assert.Equal(t, "61:00", FormatDuration(61*time.Minute))
}
