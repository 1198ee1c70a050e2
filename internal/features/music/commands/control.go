package commands

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	shared "github.com/hxnx/chime/internal/features/shared"
	"github.com/hxnx/chime/internal/music"
)

// activeSession fetches the guild's session, rejecting guilds without
// one so control commands never spawn an idle session as a side effect.
func activeSession(s *discordgo.Session, i *discordgo.InteractionCreate) (*music.Session, bool) {
	if i.GuildID == "" {
		shared.RespondEphemeral(s, i, "This command only works in a server.")
		return nil, false
	}

	session, ok := registry.Get(i.GuildID)
	if !ok {
		shared.RespondEphemeral(s, i, userFacingError(music.ErrNoSession))
		return nil, false
	}
	return session, true
}

func Pause(s *discordgo.Session, i *discordgo.InteractionCreate) {
	session, ok := activeSession(s, i)
	if !ok {
		return
	}

	if err := session.Pause(); err != nil {
		shared.RespondEphemeral(s, i, userFacingError(err))
		return
	}
	shared.RespondEphemeral(s, i, "Paused.")
}

func Resume(s *discordgo.Session, i *discordgo.InteractionCreate) {
	session, ok := activeSession(s, i)
	if !ok {
		return
	}

	if err := session.Resume(); err != nil {
		shared.RespondEphemeral(s, i, userFacingError(err))
		return
	}
	shared.RespondEphemeral(s, i, "Resumed.")
}

func Skip(s *discordgo.Session, i *discordgo.InteractionCreate) {
	session, ok := activeSession(s, i)
	if !ok {
		return
	}

	if err := session.Skip(); err != nil {
		shared.RespondEphemeral(s, i, userFacingError(err))
		return
	}

	if track, playing := session.NowPlaying(); playing {
		shared.RespondEphemeral(s, i, fmt.Sprintf("Skipped. Now playing **%s**.", track.Title))
		return
	}
	shared.RespondEphemeral(s, i, "Skipped. The queue is empty.")
}

func Stop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	session, ok := activeSession(s, i)
	if !ok {
		return
	}

	if err := session.Stop(); err != nil {
		shared.RespondEphemeral(s, i, userFacingError(err))
		return
	}
	shared.RespondEphemeral(s, i, "Stopped playback and cleared the queue.")
}

func Volume(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	session, ok := activeSession(s, i)
	if !ok {
		return
	}

	level := shared.GetOptionInt(options, "level")
	if err := session.SetVolume(level); err != nil {
		shared.RespondEphemeral(s, i, userFacingError(err))
		return
	}
	shared.RespondEphemeral(s, i, fmt.Sprintf("Volume set to %d%%.", level))
}
