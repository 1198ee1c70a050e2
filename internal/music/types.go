package music

import (
	"fmt"
	"time"
)

type TrackSource string

const (
	TrackSourceYouTube    TrackSource = "youtube"
	TrackSourceSpotify    TrackSource = "spotify"
	TrackSourceSoundCloud TrackSource = "soundcloud"
	TrackSourceUnknown    TrackSource = "unknown"
)

// Track is an immutable descriptor of a playable unit of audio.
// Created by a Resolver, never mutated afterwards.
type Track struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	URL         string        `json:"url"`
	Source      TrackSource   `json:"source"`
	Duration    time.Duration `json:"duration"`
	Thumbnail   string        `json:"thumbnail"`
	RequestedBy string        `json:"requested_by"`
}

type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateConnecting SessionState = "connecting"
	StatePlaying    SessionState = "playing"
	StatePaused     SessionState = "paused"
	StateStopping   SessionState = "stopping"
)

type EventType string

const (
	EventTrackStarted EventType = "track_started"
	EventTrackSkipped EventType = "track_skipped"
	EventTracksAdded  EventType = "tracks_added"
	EventQueueEmpty   EventType = "queue_empty"
	EventStopped      EventType = "stopped"
	EventError        EventType = "error"
)

// Event is emitted by a Session in the order its transitions happen.
// ChannelID is the text channel where the triggering command was issued,
// which is where notifications should go.
type Event struct {
	GuildID   string
	ChannelID string
	Type      EventType
	Track     *Track
	Added     int
	Err       error
}

// LeavePolicy governs when a session disconnects from voice.
type LeavePolicy struct {
	LeaveOnEmpty bool
	LeaveOnStop  bool
	EmptyGrace   time.Duration
}

// Settings is the process-wide record shared by all sessions.
type Settings struct {
	Shuffle          bool   `json:"shuffle"`
	FavoritePlaylist string `json:"favorite_playlist"`
}

// FormatDuration renders a track duration as m:ss for notifications.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0:00"
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
