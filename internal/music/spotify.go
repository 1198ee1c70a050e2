package music

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// SpotifyClient resolves Spotify links into track metadata. Spotify does
// not serve audio, so resolved titles are bridged to a playable source
// by the resolver that owns this client.
type SpotifyClient struct {
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func NewSpotifyClient(clientID, clientSecret string) *SpotifyClient {
	return &SpotifyClient{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		HTTPClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// ResolveTrack fetches metadata for a single spotify track link or URI.
func (c *SpotifyClient) ResolveTrack(ctx context.Context, input string) (Track, error) {
	trackID := extractSpotifyID(input, "track")
	if trackID == "" {
		return Track{}, fmt.Errorf("%w: unsupported spotify input", ErrResolveFailed)
	}

	var payload spotifyTrackResponse
	if err := c.apiGet(ctx, "https://api.spotify.com/v1/tracks/"+trackID, &payload); err != nil {
		return Track{}, err
	}

	return payload.toTrack(), nil
}

// ResolvePlaylist expands a spotify playlist link into its tracks, in
// playlist order.
func (c *SpotifyClient) ResolvePlaylist(ctx context.Context, input string) ([]Track, error) {
	playlistID := extractSpotifyID(input, "playlist")
	if playlistID == "" {
		return nil, fmt.Errorf("%w: unsupported spotify playlist input", ErrResolveFailed)
	}

	endpoint := "https://api.spotify.com/v1/playlists/" + playlistID + "/tracks"
	params := url.Values{}
	params.Set("limit", "100")
	params.Set("fields", "items(track(id,name,duration_ms,artists(name),album(images)))")

	var payload spotifyPlaylistResponse
	if err := c.apiGet(ctx, endpoint+"?"+params.Encode(), &payload); err != nil {
		return nil, err
	}

	tracks := make([]Track, 0, len(payload.Items))
	for _, item := range payload.Items {
		if item.Track.ID == "" {
			continue
		}
		tracks = append(tracks, item.Track.toTrack())
	}

	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: empty playlist", ErrNoResults)
	}
	return tracks, nil
}

func (c *SpotifyClient) apiGet(ctx context.Context, endpoint string, out interface{}) error {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResolveFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: spotify api status %d", ErrResolveFailed, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *SpotifyClient) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.expiresAt) {
		return c.accessToken, nil
	}

	if c.ClientID == "" || c.ClientSecret == "" {
		return "", fmt.Errorf("%w: missing spotify client credentials", ErrResolveFailed)
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://accounts.spotify.com/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+basicAuth(c.ClientID, c.ClientSecret))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrResolveFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: token status %d", ErrResolveFailed, resp.StatusCode)
	}

	var payload spotifyTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}

	if payload.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrResolveFailed)
	}

	c.accessToken = payload.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(payload.ExpiresIn-30) * time.Second)

	return c.accessToken, nil
}

// extractSpotifyID pulls the resource ID from open.spotify.com links and
// spotify: URIs for the given kind ("track" or "playlist").
func extractSpotifyID(input, kind string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}

	if id, ok := strings.CutPrefix(input, "spotify:"+kind+":"); ok {
		return id
	}

	u, err := url.Parse(input)
	if err != nil {
		return ""
	}
	if !strings.Contains(strings.ToLower(u.Host), "spotify.com") {
		return ""
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i < len(parts); i++ {
		if parts[i] == kind && i+1 < len(parts) {
			return parts[i+1]
		}
	}

	return ""
}

func isSpotifyPlaylist(input string) bool {
	return extractSpotifyID(input, "playlist") != ""
}

func basicAuth(clientID, clientSecret string) string {
	raw := clientID + ":" + clientSecret
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

type spotifyTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type spotifyPlaylistResponse struct {
	Items []struct {
		Track spotifyTrackResponse `json:"track"`
	} `json:"items"`
}

type spotifyTrackResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	DurationMS int64  `json:"duration_ms"`
	Artists    []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
}

func (t spotifyTrackResponse) toTrack() Track {
	title := strings.TrimSpace(t.Name)
	if title == "" {
		title = "Unknown Title"
	}
	if artist := t.artistNames(); artist != "" {
		title = fmt.Sprintf("%s - %s", artist, title)
	}

	return Track{
		ID:        t.ID,
		Title:     title,
		URL:       "https://open.spotify.com/track/" + t.ID,
		Source:    TrackSourceSpotify,
		Duration:  time.Duration(t.DurationMS) * time.Millisecond,
		Thumbnail: t.albumImageURL(),
	}
}

func (t spotifyTrackResponse) artistNames() string {
	if len(t.Artists) == 0 {
		return ""
	}
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}

func (t spotifyTrackResponse) albumImageURL() string {
	if len(t.Album.Images) == 0 {
		return ""
	}
	return t.Album.Images[0].URL
}
