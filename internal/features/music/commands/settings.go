package commands

import (
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
	shared "github.com/hxnx/chime/internal/features/shared"
)

// Shuffle flips the shuffle setting. With playback active the live
// queue is reshuffled immediately, not just future batches.
func Shuffle(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if i.GuildID == "" {
		shared.RespondEphemeral(s, i, "This command only works in a server.")
		return
	}

	settings := settingsStore.Get()

	switch strings.ToLower(shared.GetOptionString(options, "mode")) {
	case "on":
		settings.Shuffle = true
	case "off":
		settings.Shuffle = false
	default:
		settings.Shuffle = !settings.Shuffle
	}

	settingsStore.Set(settings)
	if err := settingsStore.Flush(); err != nil {
		log.Printf("shuffle: failed to persist settings: %v", err)
	}

	if settings.Shuffle {
		if session, ok := registry.Get(i.GuildID); ok {
			session.ShuffleQueue()
		}
		shared.RespondEphemeral(s, i, "Shuffle is on. The queue has been reshuffled.")
		return
	}
	shared.RespondEphemeral(s, i, "Shuffle is off.")
}

func Playlist(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	if i.GuildID == "" {
		shared.RespondEphemeral(s, i, "This command only works in a server.")
		return
	}

	switch sub.Name {
	case "set":
		url := strings.TrimSpace(shared.GetOptionString(sub.Options, "url"))
		if url == "" {
			shared.RespondEphemeral(s, i, "Give me a playlist URL.")
			return
		}

		settings := settingsStore.Get()
		settings.FavoritePlaylist = url
		settingsStore.Set(settings)
		if err := settingsStore.Flush(); err != nil {
			log.Printf("playlist: failed to persist settings: %v", err)
		}
		shared.RespondEphemeral(s, i, "Favorite playlist saved.")

	case "clear":
		settings := settingsStore.Get()
		settings.FavoritePlaylist = ""
		settingsStore.Set(settings)
		if err := settingsStore.Flush(); err != nil {
			log.Printf("playlist: failed to persist settings: %v", err)
		}
		shared.RespondEphemeral(s, i, "Favorite playlist cleared.")

	case "play":
		url := settingsStore.Get().FavoritePlaylist
		if url == "" {
			shared.RespondEphemeral(s, i, "No favorite playlist saved. Use /playlist set first.")
			return
		}
		Play(s, i, []*discordgo.ApplicationCommandInteractionDataOption{
			{
				Type:  discordgo.ApplicationCommandOptionString,
				Name:  "query",
				Value: url,
			},
		})

	default:
		shared.RespondEphemeral(s, i, "Unknown playlist subcommand.")
	}
}
