package listeners

import (
	"errors"
	"log"

	"github.com/bwmarrin/discordgo"
	musiccmd "github.com/hxnx/chime/internal/features/music/commands"
	"github.com/hxnx/chime/internal/music"
)

// HandleVoiceStateUpdate stops playback when the bot is the last one
// left in its voice channel.
func HandleVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if s == nil || vs == nil || vs.GuildID == "" {
		return
	}

	registry := musiccmd.Registry()
	if registry == nil {
		return
	}

	botID := ""
	if s.State != nil && s.State.User != nil {
		botID = s.State.User.ID
	}
	if botID == "" {
		return
	}

	guild := getGuildWithVoiceStates(s, vs.GuildID)
	if guild == nil {
		return
	}

	botChannelID := ""
	for _, state := range guild.VoiceStates {
		if state.UserID == botID && state.ChannelID != "" {
			botChannelID = state.ChannelID
			break
		}
	}
	if botChannelID == "" {
		return
	}

	for _, state := range guild.VoiceStates {
		if state.ChannelID != botChannelID || state.UserID == botID {
			continue
		}
		return
	}

	session, ok := registry.Get(vs.GuildID)
	if !ok {
		return
	}
	if err := session.Stop(); err != nil && !errors.Is(err, music.ErrSessionClosed) {
		log.Printf("guild %s: auto-stop failed: %v", vs.GuildID, err)
	}
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
