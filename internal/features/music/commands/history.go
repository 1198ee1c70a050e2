package commands

import (
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
	shared "github.com/hxnx/chime/internal/features/shared"
)

const historyDefaultLimit = 10

func History(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if i.GuildID == "" {
		shared.RespondEphemeral(s, i, "This command only works in a server.")
		return
	}

	limit := shared.GetOptionInt(options, "limit")
	if limit <= 0 {
		limit = historyDefaultLimit
	}

	entries, err := history.ListRecent(i.GuildID, limit)
	if err != nil {
		log.Printf("history: query failed: %v", err)
		shared.RespondEphemeral(s, i, "Could not load the play history.")
		return
	}
	if len(entries) == 0 {
		shared.RespondEphemeral(s, i, "Nothing has been played here yet.")
		return
	}

	var b strings.Builder
	b.WriteString("Recently played:\n")
	for idx, entry := range entries {
		fmt.Fprintf(&b, "%d. **%s** • <t:%d:R>\n", idx+1, entry.Title, entry.PlayedAt.Unix())
	}

	shared.RespondEphemeral(s, i, b.String())
}
