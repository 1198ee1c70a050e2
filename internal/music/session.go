package music

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"
)

const eventBufferSize = 16

// Session owns playback for a single guild: its queue, its voice
// connection, and the state machine mediating transitions between
// Idle, Connecting, Playing, Paused and Stopping.
//
// Every transition runs under one mutex, so a user command and a
// concurrent stream-end notification can never interleave half-applied.
// Resolution and voice connect are the only blocking steps; they run
// outside the lock while the session sits in Connecting, guarded by a
// generation counter so a Stop can abort them and discard their results.
type Session struct {
	guildID string

	resolver Resolver
	voice    VoiceTransport
	settings SettingsStore
	policy   LeavePolicy

	mu                sync.Mutex
	state             SessionState
	queue             *Queue
	volume            int
	conn              VoiceConnection
	connectCancel     context.CancelFunc
	connectGen        int
	streamGen         int
	announceChannelID string
	leaveTimer        *time.Timer
	closed            bool

	events     chan Event
	onTerminal func(guildID string)
}

func newSession(guildID string, resolver Resolver, voice VoiceTransport, settings SettingsStore, policy LeavePolicy, defaultVolume int) *Session {
	return &Session{
		guildID:  guildID,
		resolver: resolver,
		voice:    voice,
		settings: settings,
		policy:   policy,
		state:    StateIdle,
		queue:    NewQueue(),
		volume:   defaultVolume,
		events:   make(chan Event, eventBufferSize),
	}
}

// Events is the ordered stream of session notifications. It is closed
// when the session reaches its terminal state.
//
// The channel is bounded; emission happens under the session mutex, so
// a send can never block on a stalled consumer without freezing every
// command for the guild. When the buffer is full the event is dropped
// and logged: delivery is best-effort, ordering of delivered events is
// guaranteed.
func (s *Session) Events() <-chan Event {
	return s.events
}

func (s *Session) GuildID() string {
	return s.guildID
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// NowPlaying returns the current track while playback is active or paused.
func (s *Session) NowPlaying() (Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePlaying && s.state != StatePaused {
		return Track{}, false
	}
	return s.queue.Current()
}

// ListQueue snapshots up to limit upcoming tracks without mutating state.
func (s *Session) ListQueue(limit int) []Track {
	return s.queue.List(limit)
}

func (s *Session) QueueLen() int {
	return s.queue.Len()
}

// ShuffleQueue reshuffles the upcoming tracks, leaving current alone.
func (s *Session) ShuffleQueue() {
	s.queue.Shuffle()
}

// Play resolves the query and enqueues the results as one atomic batch:
// on resolution failure nothing is appended. From Idle it connects to
// the caller's voice channel and starts playback; while playing or
// paused it only extends the queue. If the shuffle setting is on, the
// queue is reshuffled after the batch lands, before any pop advances.
func (s *Session) Play(ctx context.Context, query, voiceChannelID, requesterID, textChannelID string) error {
	if strings.TrimSpace(query) == "" {
		return ErrMissingInput
	}
	if voiceChannelID == "" {
		return ErrNotInVoiceChannel
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.cancelLeaveTimerLocked()
	s.announceChannelID = textChannelID

	switch s.state {
	case StatePlaying, StatePaused, StateConnecting:
		gen := s.connectGen
		s.mu.Unlock()
		return s.enqueueMore(ctx, query, requesterID, gen)
	case StateStopping:
		s.mu.Unlock()
		return ErrSessionClosed
	}

	// Idle: enter Connecting with a cancelable context so Stop can abort.
	connectCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.state = StateConnecting
	s.connectCancel = cancel
	s.connectGen++
	gen := s.connectGen
	s.mu.Unlock()

	tracks, err := s.resolveTracks(connectCtx, query, requesterID)
	if err != nil {
		s.abortConnecting(gen, err)
		return err
	}

	// A session stopped without leaving voice may still hold a live
	// connection; reuse it instead of joining again.
	s.mu.Lock()
	if s.closed || s.connectGen != gen || s.state != StateConnecting {
		s.mu.Unlock()
		return context.Canceled
	}
	if s.conn != nil {
		s.connectCancel = nil
		s.queue.Enqueue(tracks...)
		if s.settings.Get().Shuffle {
			s.queue.Shuffle()
		}
		s.advanceLocked(EventTrackStarted)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	conn, err := s.voice.Connect(connectCtx, s.guildID, voiceChannelID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.connectGen != gen || s.state != StateConnecting {
		// Stop won the race; discard everything from this attempt.
		if conn != nil {
			_ = conn.Disconnect()
		}
		return context.Canceled
	}
	s.connectCancel = nil

	if err != nil {
		s.state = StateIdle
		s.emitLocked(Event{Type: EventError, Err: err})
		s.startLeaveTimerLocked()
		return err
	}

	s.conn = conn
	s.queue.Enqueue(tracks...)
	if s.settings.Get().Shuffle {
		s.queue.Shuffle()
	}
	s.advanceLocked(EventTrackStarted)
	return nil
}

// enqueueMore appends to an already-active session. The resolution runs
// outside the lock; gen was read under it, so a Stop landing mid-resolve
// bumps the generation and the late batch is discarded, never enqueued.
func (s *Session) enqueueMore(ctx context.Context, query, requesterID string, gen int) error {
	tracks, err := s.resolveTracks(ctx, query, requesterID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.connectGen != gen {
		return context.Canceled
	}

	s.queue.Enqueue(tracks...)
	if s.settings.Get().Shuffle {
		s.queue.Shuffle()
	}
	s.emitLocked(Event{Type: EventTracksAdded, Added: len(tracks)})
	return nil
}

func (s *Session) resolveTracks(ctx context.Context, query, requesterID string) ([]Track, error) {
	tracks, err := s.resolver.Resolve(ctx, query, TrackSourceUnknown)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, ErrNoResults
	}
	for i := range tracks {
		tracks[i].RequestedBy = requesterID
	}
	return tracks, nil
}

// abortConnecting returns a Connecting session to Idle after a failed
// resolution, unless a Stop already moved it along.
func (s *Session) abortConnecting(gen int, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.connectGen != gen || s.state != StateConnecting {
		return
	}
	s.connectCancel = nil
	s.state = StateIdle
	s.emitLocked(Event{Type: EventError, Err: cause})
	s.startLeaveTimerLocked()
}

// Pause suspends playback, retaining the current track.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.state != StatePlaying {
		return ErrNotPlaying
	}

	if s.conn != nil {
		s.conn.Pause()
	}
	s.state = StatePaused
	return nil
}

// Resume continues playback of the paused current track.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.state != StatePaused {
		return ErrNotPaused
	}

	if s.conn != nil {
		s.conn.Resume()
	}
	s.state = StatePlaying
	return nil
}

// Skip drops the current track and advances to the next one, or to
// Idle (and the leave policy) when the queue is empty.
func (s *Session) Skip() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.state != StatePlaying && s.state != StatePaused {
		return ErrNotPlaying
	}

	if s.conn != nil {
		s.conn.StopStream()
	}
	s.advanceLocked(EventTrackSkipped)
	return nil
}

// Stop clears the queue and tears playback down from any state. A stop
// during Connecting cancels the in-flight resolution; its tracks are
// never enqueued. With LeaveOnStop the session disconnects and is
// destroyed, otherwise it idles connected.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	if s.connectCancel != nil {
		s.connectCancel()
		s.connectCancel = nil
	}
	s.connectGen++

	s.state = StateStopping
	s.streamGen++
	s.queue.Clear()
	s.cancelLeaveTimerLocked()

	if s.conn != nil {
		s.conn.StopStream()
	}

	s.emitLocked(Event{Type: EventStopped})

	if s.policy.LeaveOnStop {
		s.disconnectAndCloseLocked()
		return nil
	}

	s.state = StateIdle
	s.startLeaveTimerLocked()
	return nil
}

// SetVolume records the level and applies it to the active stream.
// While Idle the level is kept for the next Playing transition.
func (s *Session) SetVolume(volume int) error {
	if volume < 0 || volume > 100 {
		return ErrVolumeOutOfRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	s.volume = volume
	if s.conn != nil && (s.state == StatePlaying || s.state == StatePaused) {
		s.conn.SetVolume(volume)
	}
	return nil
}

// handleStreamEnd is the transport's natural-track-end notification.
// Stale generations (a skip or stop already superseded this stream)
// are ignored.
func (s *Session) handleStreamEnd(gen int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.streamGen {
		return
	}
	if s.state != StatePlaying && s.state != StatePaused {
		return
	}

	if err != nil {
		// Transport failure: tear the connection down defensively and
		// fall back to Idle, keeping the queue for a later play.
		s.emitLocked(Event{Type: EventError, Err: err})
		if s.conn != nil {
			_ = s.conn.Disconnect()
			s.conn = nil
		}
		s.queue.ClearCurrent()
		s.state = StateIdle
		s.startLeaveTimerLocked()
		return
	}

	s.advanceLocked(EventTrackStarted)
}

// advanceLocked pops the next track and begins its stream, or settles
// into Idle and evaluates the leave policy when the queue is empty.
func (s *Session) advanceLocked(evt EventType) {
	track, ok := s.queue.PopNext()
	if !ok {
		s.queue.ClearCurrent()
		s.state = StateIdle
		s.emitLocked(Event{Type: EventQueueEmpty})
		s.startLeaveTimerLocked()
		return
	}

	s.streamGen++
	gen := s.streamGen
	s.state = StatePlaying

	s.conn.Play(track, s.volume, func(err error) {
		s.handleStreamEnd(gen, err)
	})
	s.emitLocked(Event{Type: evt, Track: &track})
}

func (s *Session) startLeaveTimerLocked() {
	if !s.policy.LeaveOnEmpty {
		return
	}
	if s.policy.EmptyGrace <= 0 {
		s.disconnectAndCloseLocked()
		return
	}

	s.cancelLeaveTimerLocked()
	s.leaveTimer = time.AfterFunc(s.policy.EmptyGrace, s.onLeaveTimer)
}

func (s *Session) cancelLeaveTimerLocked() {
	if s.leaveTimer != nil {
		s.leaveTimer.Stop()
		s.leaveTimer = nil
	}
}

func (s *Session) onLeaveTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.state != StateIdle || s.queue.Len() > 0 {
		return
	}
	s.disconnectAndCloseLocked()
}

// disconnectAndCloseLocked is the terminal transition: voice torn down,
// queue destroyed, event channel closed, registry notified.
func (s *Session) disconnectAndCloseLocked() {
	if s.closed {
		return
	}

	if s.conn != nil {
		if err := s.conn.Disconnect(); err != nil {
			log.Printf("guild %s: voice disconnect failed: %v", s.guildID, err)
		}
		s.conn = nil
	}

	s.closed = true
	s.state = StateIdle
	s.queue.Clear()
	s.cancelLeaveTimerLocked()
	close(s.events)

	if s.onTerminal != nil {
		// The registry takes its own lock on removal; never call into
		// it while holding ours.
		go s.onTerminal(s.guildID)
	}
}

// emitLocked sends on the event channel without ever blocking; it runs
// under s.mu, so waiting on the consumer here would stall the session.
func (s *Session) emitLocked(event Event) {
	if s.closed {
		return
	}
	event.GuildID = s.guildID
	event.ChannelID = s.announceChannelID

	select {
	case s.events <- event:
	default:
		log.Printf("guild %s: dropped session event %s (consumer stalled)", s.guildID, event.Type)
	}
}
