package commands

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
	musiccmd "github.com/hxnx/chime/internal/features/music/commands"
	musiclisteners "github.com/hxnx/chime/internal/features/music/listeners"
	pingcmd "github.com/hxnx/chime/internal/features/ping/commands"
	pinglisteners "github.com/hxnx/chime/internal/features/ping/listeners"
	shared "github.com/hxnx/chime/internal/features/shared"
)

var (
	CommandList = []*discordgo.ApplicationCommand{
		{
			Name:        "ping",
			Description: "Check the bot's status",
		},
		{
			Name:        "play",
			Description: "Play a song or playlist, or add it to the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "Song title, YouTube/Spotify/SoundCloud URL, or playlist URL",
					Required:    true,
				},
			},
		},
		{
			Name:        "pause",
			Description: "Pause the current track",
		},
		{
			Name:        "resume",
			Description: "Resume the paused track",
		},
		{
			Name:        "skip",
			Description: "Skip the current track",
		},
		{
			Name:        "stop",
			Description: "Stop playback and clear the queue",
		},
		{
			Name:        "volume",
			Description: "Set the playback volume",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "level",
					Description: "Volume level (0-100)",
					Required:    true,
				},
			},
		},
		{
			Name:        "queue",
			Description: "Show the upcoming tracks",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "limit",
					Description: "How many tracks to show",
					Required:    false,
				},
			},
		},
		{
			Name:        "nowplaying",
			Description: "Show the current track",
		},
		{
			Name:        "shuffle",
			Description: "Toggle shuffle mode",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "mode",
					Description: "on/off (omit to toggle)",
					Required:    false,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "on", Value: "on"},
						{Name: "off", Value: "off"},
					},
				},
			},
		},
		{
			Name:        "playlist",
			Description: "Manage the favorite playlist",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "set",
					Description: "Save a playlist URL as the favorite",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "url",
							Description: "Playlist URL",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "play",
					Description: "Play the saved favorite playlist",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "clear",
					Description: "Forget the saved favorite playlist",
				},
			},
		},
		{
			Name:        "history",
			Description: "Show recently played tracks",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "limit",
					Description: "How many entries to show",
					Required:    false,
				},
			},
		},
	}

	commandHandlers = map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate){
		"ping": pingcmd.Ping,
		"play": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			musiccmd.Play(s, i, i.ApplicationCommandData().Options)
		},
		"pause":  musiccmd.Pause,
		"resume": musiccmd.Resume,
		"skip":   musiccmd.Skip,
		"stop":   musiccmd.Stop,
		"volume": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			musiccmd.Volume(s, i, i.ApplicationCommandData().Options)
		},
		"queue": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			musiccmd.Queue(s, i, i.ApplicationCommandData().Options)
		},
		"nowplaying": musiccmd.NowPlaying,
		"shuffle": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			musiccmd.Shuffle(s, i, i.ApplicationCommandData().Options)
		},
		"playlist": handlePlaylistCommand,
		"history": func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			musiccmd.History(s, i, i.ApplicationCommandData().Options)
		},
	}
)

func handlePlaylistCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	sub := getSubcommandOption(data)
	if sub == nil {
		shared.RespondEphemeral(s, i, "Pick a playlist subcommand.")
		return
	}
	musiccmd.Playlist(s, i, sub)
}

func getSubcommandOption(data discordgo.ApplicationCommandInteractionData) *discordgo.ApplicationCommandInteractionDataOption {
	for _, opt := range data.Options {
		if opt.Type == discordgo.ApplicationCommandOptionSubCommand {
			return opt
		}
	}
	return nil
}

func RegisterCommands(s *discordgo.Session, appID string, guildID string) ([]*discordgo.ApplicationCommand, error) {
	scope := "global"
	if guildID != "" {
		scope = fmt.Sprintf("guild:%s", guildID)
	}

	log.Printf("Registering %d commands (%s)", len(CommandList), scope)

	cmds, err := s.ApplicationCommandBulkOverwrite(appID, guildID, CommandList)
	if err != nil {
		return nil, fmt.Errorf("cannot bulk overwrite commands: %w", err)
	}
	return cmds, nil
}

func AddHandlers(s *discordgo.Session) {
	s.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		musiclisteners.HandleVoiceStateUpdate(s, vs)
	})

	s.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			data := i.ApplicationCommandData()
			if handler, ok := commandHandlers[data.Name]; ok {
				handler(s, i)
			}
		case discordgo.InteractionMessageComponent:
			if pinglisteners.RoutePingComponent(s, i) {
				return
			}
		default:
			return
		}
	})
}
