package commands

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	shared "github.com/hxnx/chime/internal/features/shared"
	"github.com/hxnx/chime/internal/music"
)

const playTimeout = 300 * time.Second

func Play(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if i.GuildID == "" {
		shared.RespondEphemeral(s, i, "This command only works in a server.")
		return
	}

	userID := shared.GetInteractionUserID(i)
	if userID == "" {
		shared.RespondEphemeral(s, i, "Could not identify you.")
		return
	}

	query := strings.TrimSpace(shared.GetOptionString(options, "query"))
	if query == "" {
		shared.RespondEphemeral(s, i, "Give me a song title or URL.")
		return
	}

	// The caller must already be in voice; checked before a session is
	// created so a bad request never leaves an empty session behind.
	voiceChannelID := findUserVoiceChannel(s, i.GuildID, userID)
	if voiceChannelID == "" {
		shared.RespondEphemeral(s, i, userFacingError(music.ErrNotInVoiceChannel))
		return
	}

	if err := shared.DeferEphemeral(s, i); err != nil {
		log.Printf("play: defer failed: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), playTimeout)
	defer cancel()

	session := registry.GetOrCreate(i.GuildID)
	state := session.State()
	wasActive := state == music.StatePlaying || state == music.StatePaused
	before := session.QueueLen()

	if err := session.Play(ctx, query, voiceChannelID, userID, i.ChannelID); err != nil {
		shared.FollowupEphemeral(s, i, userFacingError(err))
		return
	}

	if wasActive {
		added := session.QueueLen() - before
		if added == 1 {
			shared.FollowupEphemeral(s, i, "Added 1 track to the queue.")
		} else {
			shared.FollowupEphemeral(s, i, fmt.Sprintf("Added %d tracks to the queue.", added))
		}
		return
	}

	if track, ok := session.NowPlaying(); ok {
		shared.FollowupEphemeral(s, i, fmt.Sprintf("Now playing **%s**.", track.Title))
		return
	}
	shared.FollowupEphemeral(s, i, "Playback started.")
}
