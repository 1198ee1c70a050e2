package music

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
	"time"
)

// Resolver turns a free-form query or URL into an ordered list of
// playable tracks. A single query may expand to a whole playlist.
type Resolver interface {
	Resolve(ctx context.Context, input string, hint TrackSource) ([]Track, error)
}

const maxPlaylistTracks = 100

// YTDLPResolver resolves queries through the yt-dlp binary. Spotify
// links are resolved through the Spotify API for metadata; their audio
// is bridged to a YouTube search at stream time.
type YTDLPResolver struct {
	Binary  string
	Spotify *SpotifyClient
}

func NewYTDLPResolver() *YTDLPResolver {
	return &YTDLPResolver{Binary: "yt-dlp"}
}

func (r *YTDLPResolver) WithSpotify(client *SpotifyClient) *YTDLPResolver {
	r.Spotify = client
	return r
}

func (r *YTDLPResolver) Resolve(ctx context.Context, input string, hint TrackSource) ([]Track, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrMissingInput
	}

	if hint == TrackSourceSpotify || isSpotifyURL(input) {
		return r.resolveSpotify(ctx, input)
	}

	target := input
	if !looksLikeURL(target) {
		switch hint {
		case TrackSourceSoundCloud:
			target = "scsearch1:" + target
		default:
			target = "ytsearch1:" + target
		}
	}

	args := []string{
		"--no-warnings",
		"--dump-single-json",
		"--skip-download",
		"--flat-playlist",
		"--yes-playlist",
		target,
	}

	cmd := exec.CommandContext(ctx, r.Binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: yt-dlp failed: %v: %s", ErrResolveFailed, err, strings.TrimSpace(string(output)))
	}

	var root ytDLPItem
	if err := json.Unmarshal(output, &root); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", ErrResolveFailed, err)
	}

	tracks := collectYTDLPTracks(root, hint)
	if len(tracks) == 0 {
		return nil, ErrNoResults
	}
	return tracks, nil
}

func (r *YTDLPResolver) resolveSpotify(ctx context.Context, input string) ([]Track, error) {
	if r.Spotify == nil {
		return nil, fmt.Errorf("%w: spotify client is not configured", ErrResolveFailed)
	}

	if isSpotifyPlaylist(input) {
		return r.Spotify.ResolvePlaylist(ctx, input)
	}

	track, err := r.Spotify.ResolveTrack(ctx, input)
	if err != nil {
		return nil, err
	}
	return []Track{track}, nil
}

// ResolveStreamURL returns the direct audio URL for a track. Spotify
// tracks are bridged through a YouTube search on their title.
func (r *YTDLPResolver) ResolveStreamURL(ctx context.Context, track Track) (string, error) {
	target := track.URL
	if track.Source == TrackSourceSpotify || target == "" {
		if track.Title == "" {
			return "", fmt.Errorf("%w: track has no title to search", ErrResolveFailed)
		}
		target = "ytsearch1:" + track.Title
	}

	args := []string{
		"--no-warnings",
		"-f", "bestaudio",
		"-g",
		"--no-playlist",
		target,
	}

	cmd := exec.CommandContext(ctx, r.Binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: yt-dlp failed: %v: %s", ErrResolveFailed, err, strings.TrimSpace(string(output)))
	}

	streamURL := strings.TrimSpace(string(output))
	if streamURL == "" {
		return "", fmt.Errorf("%w: empty stream url", ErrResolveFailed)
	}

	// Multi-format results come back one URL per line; audio is first.
	if idx := strings.IndexByte(streamURL, '\n'); idx > 0 {
		streamURL = strings.TrimSpace(streamURL[:idx])
	}

	return streamURL, nil
}

type ytDLPItem struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	WebpageURL string      `json:"webpage_url"`
	URL        string      `json:"url"`
	Duration   float64     `json:"duration"`
	Thumbnail  string      `json:"thumbnail"`
	Entries    []ytDLPItem `json:"entries"`
}

func collectYTDLPTracks(root ytDLPItem, hint TrackSource) []Track {
	items := root.Entries
	if len(items) == 0 {
		items = []ytDLPItem{root}
	}

	tracks := make([]Track, 0, len(items))
	for _, item := range items {
		link := item.WebpageURL
		if link == "" {
			link = item.URL
		}
		if link == "" {
			continue
		}

		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = "Unknown Title"
		}

		source := hint
		if source == TrackSourceUnknown || source == "" {
			source = detectSourceFromURL(link)
		}

		duration := time.Duration(item.Duration * float64(time.Second))
		if duration < 0 {
			duration = 0
		}

		tracks = append(tracks, Track{
			ID:        item.ID,
			Title:     title,
			URL:       link,
			Source:    source,
			Duration:  duration,
			Thumbnail: item.Thumbnail,
		})

		if len(tracks) >= maxPlaylistTracks {
			break
		}
	}

	return tracks
}

func looksLikeURL(value string) bool {
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return true
	}

	u, err := url.Parse(value)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func isSpotifyURL(input string) bool {
	lower := strings.ToLower(input)
	return strings.Contains(lower, "spotify.com") || strings.HasPrefix(lower, "spotify:")
}

func detectSourceFromURL(raw string) TrackSource {
	u, err := url.Parse(raw)
	if err != nil {
		return TrackSourceUnknown
	}

	host := strings.ToLower(u.Host)
	switch {
	case strings.Contains(host, "youtube.com"), strings.Contains(host, "youtu.be"):
		return TrackSourceYouTube
	case strings.Contains(host, "soundcloud.com"):
		return TrackSourceSoundCloud
	case strings.Contains(host, "spotify.com"):
		return TrackSourceSpotify
	default:
		return TrackSourceUnknown
	}
}
