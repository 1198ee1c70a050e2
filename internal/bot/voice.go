package bot

import (
	"context"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/hxnx/chime/internal/music"
)

// shardedVoice routes voice joins to the gateway session that owns the
// guild, using Discord's shard formula on the guild snowflake.
type shardedVoice struct {
	transports []*music.DiscordVoice
}

func newShardedVoice(sessions []*discordgo.Session, resolver *music.YTDLPResolver) *shardedVoice {
	transports := make([]*music.DiscordVoice, 0, len(sessions))
	for _, s := range sessions {
		transports = append(transports, music.NewDiscordVoice(s, resolver))
	}
	return &shardedVoice{transports: transports}
}

func (v *shardedVoice) Connect(ctx context.Context, guildID, channelID string) (music.VoiceConnection, error) {
	return v.transports[shardForGuild(guildID, len(v.transports))].Connect(ctx, guildID, channelID)
}

func shardForGuild(guildID string, count int) int {
	if count <= 1 {
		return 0
	}
	id, err := strconv.ParseUint(guildID, 10, 64)
	if err != nil {
		return 0
	}
	return int((id >> 22) % uint64(count))
}

func (b *Bot) sessionForGuild(guildID string) *discordgo.Session {
	if len(b.sessions) == 0 {
		return nil
	}
	return b.sessions[shardForGuild(guildID, len(b.sessions))]
}
