package commands

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	shared "github.com/hxnx/chime/internal/features/shared"
	"github.com/hxnx/chime/internal/music"
)

const queueDefaultLimit = 10

func Queue(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if i.GuildID == "" {
		shared.RespondEphemeral(s, i, "This command only works in a server.")
		return
	}

	// Listing is read-only: no session means an empty queue, not an error.
	session, ok := registry.Get(i.GuildID)
	if !ok {
		shared.RespondEphemeral(s, i, "The queue is empty.")
		return
	}

	limit := shared.GetOptionInt(options, "limit")
	if limit <= 0 {
		limit = queueDefaultLimit
	}

	var b strings.Builder

	if track, playing := session.NowPlaying(); playing {
		fmt.Fprintf(&b, "Now playing: **%s** [%s]\n", track.Title, music.FormatDuration(track.Duration))
	}

	upcoming := session.ListQueue(limit)
	total := session.QueueLen()

	if len(upcoming) == 0 {
		if b.Len() == 0 {
			shared.RespondEphemeral(s, i, "The queue is empty.")
			return
		}
		b.WriteString("The queue is empty.")
		shared.RespondEphemeral(s, i, b.String())
		return
	}

	b.WriteString("Up next:\n")
	for idx, track := range upcoming {
		fmt.Fprintf(&b, "%d. **%s** [%s]\n", idx+1, track.Title, music.FormatDuration(track.Duration))
	}
	if total > len(upcoming) {
		fmt.Fprintf(&b, "… and %d more.", total-len(upcoming))
	}

	shared.RespondEphemeral(s, i, b.String())
}

func NowPlaying(s *discordgo.Session, i *discordgo.InteractionCreate) {
	session, ok := activeSession(s, i)
	if !ok {
		return
	}

	track, playing := session.NowPlaying()
	if !playing {
		shared.RespondEphemeral(s, i, userFacingError(music.ErrNotPlaying))
		return
	}

	msg := fmt.Sprintf("**%s** [%s]\n%s\nRequested by <@%s>",
		track.Title, music.FormatDuration(track.Duration), track.URL, track.RequestedBy)
	shared.RespondEphemeral(s, i, msg)
}
