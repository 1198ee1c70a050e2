package commands

import (
	"errors"

	"github.com/bwmarrin/discordgo"
	"github.com/hxnx/chime/internal/database"
	"github.com/hxnx/chime/internal/music"
)

var (
	registry      *music.Registry
	settingsStore music.SettingsStore
	history       *database.HistoryRepository
)

// Configure injects the playback dependencies. Called once at startup
// before any handler can fire.
func Configure(reg *music.Registry, store music.SettingsStore, repo *database.HistoryRepository) {
	registry = reg
	settingsStore = store
	history = repo
}

func Registry() *music.Registry {
	return registry
}

// findUserVoiceChannel reports the voice channel the user currently
// occupies, or empty when they are not in voice.
func findUserVoiceChannel(s *discordgo.Session, guildID, userID string) string {
	if s == nil || guildID == "" || userID == "" {
		return ""
	}

	guild := getGuildWithVoiceStates(s, guildID)
	if guild == nil {
		return ""
	}

	for _, state := range guild.VoiceStates {
		if state.UserID == userID && state.ChannelID != "" {
			return state.ChannelID
		}
	}
	return ""
}

func getGuildWithVoiceStates(s *discordgo.Session, guildID string) *discordgo.Guild {
	if s.State != nil {
		if g, err := s.State.Guild(guildID); err == nil {
			return g
		}
	}
	g, err := s.Guild(guildID)
	if err != nil {
		return nil
	}
	return g
}

// userFacingError maps playback errors to messages a Discord user can
// act on.
func userFacingError(err error) string {
	switch {
	case errors.Is(err, music.ErrNotInVoiceChannel):
		return "Join a voice channel first."
	case errors.Is(err, music.ErrMissingInput):
		return "Give me a song title or URL."
	case errors.Is(err, music.ErrNoResults):
		return "No results for that query."
	case errors.Is(err, music.ErrResolveFailed):
		return "Could not resolve that track."
	case errors.Is(err, music.ErrVoiceConnect):
		return "Could not join your voice channel."
	case errors.Is(err, music.ErrNotPlaying):
		return "Nothing is playing right now."
	case errors.Is(err, music.ErrNotPaused):
		return "Playback is not paused."
	case errors.Is(err, music.ErrVolumeOutOfRange):
		return "Volume must be between 0 and 100."
	case errors.Is(err, music.ErrNoSession):
		return "There is no active playback in this server."
	case errors.Is(err, music.ErrSessionClosed):
		return "That playback session already ended. Try again."
	default:
		return "Something went wrong. Try again in a moment."
	}
}
