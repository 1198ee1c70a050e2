package music

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractSpotifyID(t *testing.T) {
	assert.Equal(t, "4uLU6hMCjMI75M1A2tKUQC",
		extractSpotifyID("https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", "track"))
	assert.Equal(t, "4uLU6hMCjMI75M1A2tKUQC",
		extractSpotifyID("https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=xyz", "track"))
	assert.Equal(t, "abc", extractSpotifyID("spotify:track:abc", "track"))
	assert.Equal(t, "pl123",
		extractSpotifyID("https://open.spotify.com/playlist/pl123", "playlist"))
	assert.Equal(t, "pl123",
		extractSpotifyID("https://open.spotify.com/intl-de/playlist/pl123", "playlist"))

	assert.Empty(t, extractSpotifyID("https://open.spotify.com/track/abc", "playlist"))
	assert.Empty(t, extractSpotifyID("https://youtube.com/watch?v=abc", "track"))
	assert.Empty(t, extractSpotifyID("", "track"))
}

func TestIsSpotifyPlaylist(t *testing.T) {
	assert.True(t, isSpotifyPlaylist("https://open.spotify.com/playlist/pl123"))
	assert.False(t, isSpotifyPlaylist("https://open.spotify.com/track/abc"))
}

func TestSpotifyTrackResponseToTrack(t *testing.T) {
	payload := spotifyTrackResponse{
		ID:         "abc",
		Name:       "Song",
		DurationMS: 213000,
	}
	payload.Artists = []struct {
		Name string `json:"name"`
	}{{Name: "Artist"}, {Name: "Feature"}}

	track := payload.toTrack()
	assert.Equal(t, "Artist, Feature - Song", track.Title)
	assert.Equal(t, "https://open.spotify.com/track/abc", track.URL)
	assert.Equal(t, TrackSourceSpotify, track.Source)
	assert.Equal(t, 213*time.Second, track.Duration)
}
