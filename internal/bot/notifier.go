package bot

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
	"github.com/hxnx/chime/internal/music"
)

var announceColor = 0xC9A0FF

// handleMusicEvent turns session notifications into channel messages
// and feeds the listening log. Events for one guild arrive in order.
func (b *Bot) handleMusicEvent(event music.Event) {
	switch event.Type {
	case music.EventTrackStarted:
		if event.Track != nil {
			if err := b.history.RecordPlay(event.GuildID, *event.Track); err != nil {
				log.Printf("guild %s: failed to record play: %v", event.GuildID, err)
			}
			b.announce(event, fmt.Sprintf("Now playing **%s** [%s]", event.Track.Title, music.FormatDuration(event.Track.Duration)))
		}
	case music.EventTrackSkipped:
		if event.Track != nil {
			b.announce(event, fmt.Sprintf("Skipped. Now playing **%s**", event.Track.Title))
		}
	case music.EventQueueEmpty:
		b.announce(event, "Queue finished.")
	case music.EventStopped:
		b.announce(event, "Playback stopped.")
	case music.EventError:
		log.Printf("guild %s: playback error: %v", event.GuildID, event.Err)
		b.announce(event, "Playback ran into a problem.")
	}
}

func (b *Bot) announce(event music.Event, content string) {
	if event.ChannelID == "" {
		return
	}
	s := b.sessionForGuild(event.GuildID)
	if s == nil {
		return
	}

	divider := true
	spacing := discordgo.SeparatorSpacingSizeSmall

	components := []discordgo.MessageComponent{
		discordgo.Container{
			AccentColor: &announceColor,
			Components: []discordgo.MessageComponent{
				discordgo.TextDisplay{Content: content},
				discordgo.Separator{Divider: &divider, Spacing: &spacing},
				discordgo.TextDisplay{Content: "Chime"},
			},
		},
	}

	_, err := s.ChannelMessageSendComplex(event.ChannelID, &discordgo.MessageSend{
		Components: components,
		Flags:      discordgo.MessageFlagsIsComponentsV2,
	})
	if err != nil {
		log.Printf("guild %s: failed to announce: %v", event.GuildID, err)
	}
}
