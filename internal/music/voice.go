package music

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// VoiceTransport establishes voice-channel connections. It is an
// interface so the session machine can be exercised without a gateway.
type VoiceTransport interface {
	Connect(ctx context.Context, guildID, channelID string) (VoiceConnection, error)
}

// VoiceConnection is one live attachment to a voice channel. Play is
// asynchronous: onEnd fires once when the stream finishes naturally or
// fails, and is suppressed when the stream was stopped via StopStream.
type VoiceConnection interface {
	Play(track Track, volume int, onEnd func(err error))
	Pause()
	Resume()
	StopStream()
	SetVolume(volume int)
	ChannelID() string
	Disconnect() error
}

// DiscordVoice is the production transport on top of discordgo.
type DiscordVoice struct {
	session  *discordgo.Session
	resolver *YTDLPResolver
}

func NewDiscordVoice(session *discordgo.Session, resolver *YTDLPResolver) *DiscordVoice {
	return &DiscordVoice{
		session:  session,
		resolver: resolver,
	}
}

func (d *DiscordVoice) Connect(ctx context.Context, guildID, channelID string) (VoiceConnection, error) {
	if d.session == nil {
		return nil, fmt.Errorf("%w: discord session is nil", ErrVoiceConnect)
	}
	if channelID == "" {
		return nil, fmt.Errorf("%w: channel ID is empty", ErrVoiceConnect)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vc, err := d.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVoiceConnect, err)
	}

	return &discordVoiceConn{
		vc:       vc,
		resolver: d.resolver,
	}, nil
}

type discordVoiceConn struct {
	vc       *discordgo.VoiceConnection
	resolver *YTDLPResolver

	mu        sync.Mutex
	paused    bool
	volume    int
	frameSent int64
	stopCh    chan struct{}
	restartCh chan struct{}
	stopped   bool
}

func (c *discordVoiceConn) Play(track Track, volume int, onEnd func(err error)) {
	c.mu.Lock()
	c.volume = volume
	c.paused = false
	c.frameSent = 0
	c.stopped = false
	c.stopCh = make(chan struct{})
	c.restartCh = make(chan struct{}, 1)
	stopCh := c.stopCh
	c.mu.Unlock()

	go func() {
		err := c.runTrack(track, stopCh)

		c.mu.Lock()
		suppressed := c.stopped
		c.mu.Unlock()

		if suppressed || onEnd == nil {
			return
		}
		onEnd(err)
	}()
}

func (c *discordVoiceConn) runTrack(track Track, stopCh chan struct{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), streamURLTimeout)
	streamURL, err := c.resolver.ResolveStreamURL(ctx, track)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStreamFailed, err)
	}

	// A restart re-spawns ffmpeg at the current position, which is how
	// volume changes land on an active stream.
	for {
		err := c.streamOnce(streamURL, stopCh)
		if errors.Is(err, errStreamRestart) {
			continue
		}
		return err
	}
}

func (c *discordVoiceConn) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

func (c *discordVoiceConn) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

// StopStream kills the active stream without firing onEnd.
func (c *discordVoiceConn) StopStream() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopCh == nil || c.stopped {
		return
	}
	c.stopped = true
	close(c.stopCh)
}

func (c *discordVoiceConn) SetVolume(volume int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.volume = volume
	if c.stopCh == nil || c.stopped || c.restartCh == nil {
		return
	}
	select {
	case c.restartCh <- struct{}{}:
	default:
	}
}

func (c *discordVoiceConn) ChannelID() string {
	if c.vc == nil {
		return ""
	}
	return c.vc.ChannelID
}

func (c *discordVoiceConn) Disconnect() error {
	c.StopStream()
	if c.vc == nil {
		return nil
	}
	return c.vc.Disconnect()
}

func (c *discordVoiceConn) isPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func safeSpeaking(vc *discordgo.VoiceConnection, speaking bool) {
	if vc == nil || !vc.Ready {
		return
	}
	if err := vc.Speaking(speaking); err != nil {
		log.Printf("voice speaking toggle failed: %v", err)
	}
}
