package music

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	mu      sync.Mutex
	tracks  []Track
	err     error
	block   bool
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (f *fakeResolver) Resolve(ctx context.Context, input string, hint TrackSource) ([]Track, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	entered := f.entered
	release := f.release
	err := f.err
	tracks := append([]Track(nil), f.tracks...)
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block {
		if release == nil {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
		}
	}
	if err != nil {
		return nil, err
	}
	return tracks, nil
}

type fakeConn struct {
	mu           sync.Mutex
	plays        []Track
	volumes      []int
	onEnd        func(error)
	paused       bool
	stopStreams  int
	disconnected bool
}

func (c *fakeConn) Play(track Track, volume int, onEnd func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plays = append(c.plays, track)
	c.volumes = append(c.volumes, volume)
	c.onEnd = onEnd
}

func (c *fakeConn) Pause()  { c.mu.Lock(); c.paused = true; c.mu.Unlock() }
func (c *fakeConn) Resume() { c.mu.Lock(); c.paused = false; c.mu.Unlock() }

func (c *fakeConn) StopStream() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopStreams++
}

func (c *fakeConn) SetVolume(volume int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volumes = append(c.volumes, volume)
}

func (c *fakeConn) ChannelID() string { return "vc-1" }

func (c *fakeConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	return nil
}

func (c *fakeConn) endCurrent(err error) {
	c.mu.Lock()
	onEnd := c.onEnd
	c.mu.Unlock()
	if onEnd != nil {
		onEnd(err)
	}
}

func (c *fakeConn) playedTitles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	titles := make([]string, 0, len(c.plays))
	for _, track := range c.plays {
		titles = append(titles, track.Title)
	}
	return titles
}

func (c *fakeConn) isDisconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

type fakeTransport struct {
	mu       sync.Mutex
	conn     *fakeConn
	err      error
	connects int
}

func (f *fakeTransport) Connect(ctx context.Context, guildID, channelID string) (VoiceConnection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.connects++
	if f.err != nil {
		return nil, f.err
	}
	if f.conn == nil {
		f.conn = &fakeConn{}
	}
	return f.conn, nil
}

func (f *fakeTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

type fakeSettingsStore struct {
	mu       sync.Mutex
	settings Settings
	flushes  int
	flushErr error
}

func (s *fakeSettingsStore) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *fakeSettingsStore) Set(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

func (s *fakeSettingsStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return s.flushErr
}

func testPolicy() LeavePolicy {
	return LeavePolicy{
		LeaveOnEmpty: true,
		LeaveOnStop:  true,
		EmptyGrace:   time.Minute,
	}
}

func newTestSession(resolver *fakeResolver, transport *fakeTransport, store *fakeSettingsStore, policy LeavePolicy) *Session {
	if store == nil {
		store = &fakeSettingsStore{}
	}
	return newSession("guild-1", resolver, transport, store, policy, 50)
}

func drainEvents(s *Session) []Event {
	var events []Event
	for {
		select {
		case event, ok := <-s.Events():
			if !ok {
				return events
			}
			events = append(events, event)
		default:
			return events
		}
	}
}

func TestPlayStartsPlaybackInOrder(t *testing.T) {
	resolver := &fakeResolver{tracks: makeTracks("track1", "track2", "track3")}
	transport := &fakeTransport{}
	s := newTestSession(resolver, transport, nil, testPolicy())

	err := s.Play(context.Background(), "playlistX", "vc-1", "user-1", "text-1")
	require.NoError(t, err)

	assert.Equal(t, StatePlaying, s.State())

	current, ok := s.NowPlaying()
	require.True(t, ok)
	assert.Equal(t, "track1", current.Title)
	assert.Equal(t, "user-1", current.RequestedBy)

	upcoming := s.ListQueue(0)
	require.Len(t, upcoming, 2)
	assert.Equal(t, "track2", upcoming[0].Title)
	assert.Equal(t, "track3", upcoming[1].Title)

	require.Equal(t, []string{"track1"}, transport.conn.playedTitles())

	events := drainEvents(s)
	require.NotEmpty(t, events)
	assert.Equal(t, EventTrackStarted, events[0].Type)
	assert.Equal(t, "track1", events[0].Track.Title)
	assert.Equal(t, "text-1", events[0].ChannelID)
}

func TestPlayWithoutVoiceChannel(t *testing.T) {
	resolver := &fakeResolver{tracks: makeTracks("a")}
	transport := &fakeTransport{}
	s := newTestSession(resolver, transport, nil, testPolicy())

	err := s.Play(context.Background(), "songA", "", "user-1", "text-1")
	assert.ErrorIs(t, err, ErrNotInVoiceChannel)
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 0, resolver.calls)
	assert.Equal(t, 0, transport.connectCount())
}

func TestPlayResolutionFailureReturnsToIdle(t *testing.T) {
	resolver := &fakeResolver{err: ErrNoResults}
	transport := &fakeTransport{}
	s := newTestSession(resolver, transport, nil, testPolicy())

	err := s.Play(context.Background(), "nothing", "vc-1", "user-1", "text-1")
	assert.ErrorIs(t, err, ErrNoResults)
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 0, s.QueueLen())
	assert.Equal(t, 0, transport.connectCount())

	events := drainEvents(s)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
}

func TestPlayConnectFailure(t *testing.T) {
	resolver := &fakeResolver{tracks: makeTracks("a")}
	transport := &fakeTransport{err: ErrVoiceConnect}
	s := newTestSession(resolver, transport, nil, testPolicy())

	err := s.Play(context.Background(), "songA", "vc-1", "user-1", "text-1")
	assert.ErrorIs(t, err, ErrVoiceConnect)
	assert.Equal(t, StateIdle, s.State())
	assert.False(t, s.Connected())
}

func TestPlayWhilePlayingEnqueues(t *testing.T) {
	resolver := &fakeResolver{tracks: makeTracks("a")}
	transport := &fakeTransport{}
	s := newTestSession(resolver, transport, nil, testPolicy())

	require.NoError(t, s.Play(context.Background(), "first", "vc-1", "user-1", "text-1"))

	resolver.mu.Lock()
	resolver.tracks = makeTracks("b", "c")
	resolver.mu.Unlock()

	require.NoError(t, s.Play(context.Background(), "more", "vc-1", "user-2", "text-1"))

	assert.Equal(t, StatePlaying, s.State())
	assert.Equal(t, 2, s.QueueLen())
	assert.Equal(t, 1, transport.connectCount())

	events := drainEvents(s)
	require.Len(t, events, 2)
	assert.Equal(t, EventTrackStarted, events[0].Type)
	assert.Equal(t, EventTracksAdded, events[1].Type)
	assert.Equal(t, 2, events[1].Added)
}

func TestSetVolumeValidation(t *testing.T) {
	resolver := &fakeResolver{tracks: makeTracks("a")}
	transport := &fakeTransport{}
	s := newTestSession(resolver, transport, nil, testPolicy())

	err := s.SetVolume(150)
	assert.ErrorIs(t, err, ErrVolumeOutOfRange)
	assert.Equal(t, 50, s.Volume())

	err = s.SetVolume(-1)
	assert.ErrorIs(t, err, ErrVolumeOutOfRange)
	assert.Equal(t, 50, s.Volume())

	require.NoError(t, s.SetVolume(80))
	assert.Equal(t, 80, s.Volume())
}

func TestVolumeAppliedOnNextPlay(t *testing.T) {
	resolver := &fakeResolver{tracks: makeTracks("a")}
	transport := &fakeTransport{}
	s := newTestSession(resolver, transport, nil, testPolicy())

	require.NoError(t, s.SetVolume(30))
	require.NoError(t, s.Play(context.Background(), "songA", "vc-1", "user-1", "text-1"))

	transport.conn.mu.Lock()
	defer transport.conn.mu.Unlock()
	require.NotEmpty(t, transport.conn.volumes)
	assert.Equal(t, 30, transport.conn.volumes[0])
}

func TestSkipTwiceOnTwoTrackQueue(t *testing.T) {
	resolver := &fakeResolver{tracks: makeTracks("A", "B")}
	transport := &fakeTransport{}
	s := newTestSession(resolver, transport, nil, testPolicy())

	require.NoError(t, s.Play(context.Background(), "two", "vc-1", "user-1", "text-1"))

	require.NoError(t, s.Skip())
	current, ok := s.NowPlaying()
	require.True(t, ok)
	assert.Equal(t, "B", current.Title)
	assert.Equal(t, 0, s.QueueLen())
	assert.Equal(t, StatePlaying, s.State())

	require.NoError(t, s.Skip())
	assert.Equal(t, StateIdle, s.State())
	_, ok = s.NowPlaying()
	assert.False(t, ok)

	events := drainEvents(s)
	types := make([]EventType, 0, len(events))
	for _, event := range events {
		types = append(types, event.Type)
	}
	assert.Equal(t, []EventType{EventTrackStarted, EventTrackSkipped, EventQueueEmpty}, types)
}

func TestSkipWithoutPlayback(t *testing.T) {
	resolver := &fakeResolver{}
	transport := &fakeTransport{}
	s := newTestSession(resolver, transport, nil, testPolicy())

	assert.ErrorIs(t, s.Skip(), ErrNotPlaying)
}

func TestPauseResume(t *testing.T) {
	resolver := &fakeResolver{tracks: makeTracks("a")}
	transport := &fakeTransport{}
	s := newTestSession(resolver, transport, nil, testPolicy())

	assert.ErrorIs(t, s.Pause(), ErrNotPlaying)

	require.NoError(t, s.Play(context.Background(), "songA", "vc-1", "user-1", "text-1"))
	require.NoError(t, s.Pause())
	assert.Equal(t, StatePaused, s.State())

	assert.ErrorIs(t, s.Pause(), ErrNotPlaying)

	require.NoError(t, s.Resume())
	assert.Equal(t, StatePlaying, s.State())

	assert.ErrorIs(t, s.Resume(), ErrNotPaused)
}

func TestNaturalTrackEndAdvances(t *testing.T) {
	resolver := &fakeResolver{tracks: makeTracks("a", "b")}
	transport := &fakeTransport{}
	s := newTestSession(resolver, transport, nil, testPolicy())

	require.NoError(t, s.Play(context.Background(), "two", "vc-1", "user-1", "text-1"))

	transport.conn.endCurrent(nil)
	current, ok := s.NowPlaying()
	require.True(t, ok)
	assert.Equal(t, "b", current.Title)

	transport.conn.endCurrent(nil)
	assert.Equal(t, StateIdle, s.State())

	assert.Equal(t, []string{"a", "b"}, transport.conn.playedTitles())
}

func TestStaleStreamEndIgnored(t *testing.T) {
	resolver := &fakeResolver{tracks: makeTracks("a", "b", "c")}
	transport := &fakeTransport{}
	s := newTestSession(resolver, transport, nil, testPolicy())

	require.NoError(t, s.Play(context.Background(), "three", "vc-1", "user-1", "text-1"))

	transport.conn.mu.Lock()
	staleEnd := transport.conn.onEnd
	transport.conn.mu.Unlock()

	require.NoError(t, s.Skip())

	// The killed stream's end notification must not double-advance.
	staleEnd(nil)

	current, ok := s.NowPlaying()
	require.True(t, ok)
	assert.Equal(t, "b", current.Title)
	assert.Equal(t, 1, s.QueueLen())
}

func TestStreamErrorTearsDownVoice(t *testing.T) {
	resolver := &fakeResolver{tracks: makeTracks("a", "b")}
	transport := &fakeTransport{}
	s := newTestSession(resolver, transport, nil, testPolicy())

	require.NoError(t, s.Play(context.Background(), "two", "vc-1", "user-1", "text-1"))

	transport.conn.endCurrent(ErrStreamFailed)

	assert.Equal(t, StateIdle, s.State())
	assert.False(t, s.Connected())
	assert.True(t, transport.conn.isDisconnected())
	// The queue survives for a later play.
	assert.Equal(t, 1, s.QueueLen())
}

func TestStopAlwaysYieldsIdleEmptyDisconnected(t *testing.T) {
	resolver := &fakeResolver{tracks: makeTracks("a", "b", "c")}
	transport := &fakeTransport{}
	s := newTestSession(resolver, transport, nil, testPolicy())

	require.NoError(t, s.Play(context.Background(), "three", "vc-1", "user-1", "text-1"))
	require.NoError(t, s.Stop())

	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 0, s.QueueLen())
	assert.False(t, s.Connected())
	assert.True(t, transport.conn.isDisconnected())

	// Terminal: the event channel is closed after the stopped event.
	var last Event
	for event := range s.Events() {
		last = event
	}
	assert.Equal(t, EventStopped, last.Type)
}

func TestStopWithoutLeaveKeepsConnection(t *testing.T) {
	policy := testPolicy()
	policy.LeaveOnStop = false

	resolver := &fakeResolver{tracks: makeTracks("a")}
	transport := &fakeTransport{}
	s := newTestSession(resolver, transport, nil, policy)

	require.NoError(t, s.Play(context.Background(), "songA", "vc-1", "user-1", "text-1"))
	require.NoError(t, s.Stop())

	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 0, s.QueueLen())
	assert.True(t, s.Connected())
	assert.False(t, transport.conn.isDisconnected())

	// The same session can start playback again without rejoining.
	require.NoError(t, s.Play(context.Background(), "songA", "vc-1", "user-1", "text-1"))
	assert.Equal(t, StatePlaying, s.State())
	assert.Equal(t, 1, transport.connectCount())
}

func TestStopDuringConnectingAbortsResolution(t *testing.T) {
	resolver := &fakeResolver{block: true, entered: make(chan struct{}, 1)}
	transport := &fakeTransport{}
	s := newTestSession(resolver, transport, nil, testPolicy())

	playErr := make(chan error, 1)
	go func() {
		playErr <- s.Play(context.Background(), "slow", "vc-1", "user-1", "text-1")
	}()

	<-resolver.entered
	assert.Equal(t, StateConnecting, s.State())

	require.NoError(t, s.Stop())

	err := <-playErr
	assert.Error(t, err)
	assert.Equal(t, 0, s.QueueLen())
	assert.Equal(t, 0, transport.connectCount())
}

func TestStopDuringEnqueueDiscardsBatch(t *testing.T) {
	policy := testPolicy()
	policy.LeaveOnStop = false

	resolver := &fakeResolver{tracks: makeTracks("a")}
	transport := &fakeTransport{}
	s := newTestSession(resolver, transport, nil, policy)

	require.NoError(t, s.Play(context.Background(), "first", "vc-1", "user-1", "text-1"))

	resolver.mu.Lock()
	resolver.tracks = makeTracks("b", "c")
	resolver.block = true
	resolver.entered = make(chan struct{}, 1)
	resolver.release = make(chan struct{})
	resolver.mu.Unlock()

	playErr := make(chan error, 1)
	go func() {
		playErr <- s.Play(context.Background(), "more", "vc-1", "user-2", "text-1")
	}()

	<-resolver.entered
	require.NoError(t, s.Stop())
	require.Equal(t, StateIdle, s.State())
	require.Equal(t, 0, s.QueueLen())

	// Tracks resolved before the stop must not land after it.
	close(resolver.release)
	assert.Error(t, <-playErr)
	assert.Equal(t, 0, s.QueueLen())
	assert.Equal(t, StateIdle, s.State())
}

func TestShuffleSettingAppliedToEnqueuedBatch(t *testing.T) {
	store := &fakeSettingsStore{settings: Settings{Shuffle: true}}
	resolver := &fakeResolver{tracks: makeTracks("w", "x", "y", "z")}
	transport := &fakeTransport{}
	s := newTestSession(resolver, transport, store, testPolicy())

	require.NoError(t, s.Play(context.Background(), "playlistY", "vc-1", "user-1", "text-1"))

	assert.Equal(t, StatePlaying, s.State())

	current, ok := s.NowPlaying()
	require.True(t, ok)

	titles := map[string]bool{current.Title: true}
	for _, track := range s.ListQueue(0) {
		titles[track.Title] = true
	}
	assert.Equal(t, map[string]bool{"w": true, "x": true, "y": true, "z": true}, titles)
	assert.Equal(t, 3, s.QueueLen())
}

func TestLeaveOnEmptyGraceDisconnects(t *testing.T) {
	policy := LeavePolicy{LeaveOnEmpty: true, LeaveOnStop: true, EmptyGrace: 20 * time.Millisecond}
	resolver := &fakeResolver{tracks: makeTracks("a")}
	transport := &fakeTransport{}
	s := newTestSession(resolver, transport, nil, policy)

	require.NoError(t, s.Play(context.Background(), "songA", "vc-1", "user-1", "text-1"))

	transport.conn.endCurrent(nil)
	assert.Equal(t, StateIdle, s.State())
	assert.True(t, s.Connected())

	require.Eventually(t, func() bool {
		return transport.conn.isDisconnected()
	}, time.Second, 5*time.Millisecond)
	assert.True(t, s.isClosed())
}

func TestLeaveTimerCanceledByNewPlay(t *testing.T) {
	policy := LeavePolicy{LeaveOnEmpty: true, LeaveOnStop: true, EmptyGrace: 50 * time.Millisecond}
	resolver := &fakeResolver{tracks: makeTracks("a")}
	transport := &fakeTransport{}
	s := newTestSession(resolver, transport, nil, policy)

	require.NoError(t, s.Play(context.Background(), "songA", "vc-1", "user-1", "text-1"))
	transport.conn.endCurrent(nil)
	require.Equal(t, StateIdle, s.State())

	require.NoError(t, s.Play(context.Background(), "songA", "vc-1", "user-1", "text-1"))

	time.Sleep(80 * time.Millisecond)
	assert.False(t, transport.conn.isDisconnected())
	assert.Equal(t, StatePlaying, s.State())
}

func TestOperationsAfterClose(t *testing.T) {
	resolver := &fakeResolver{tracks: makeTracks("a")}
	transport := &fakeTransport{}
	s := newTestSession(resolver, transport, nil, testPolicy())

	require.NoError(t, s.Play(context.Background(), "songA", "vc-1", "user-1", "text-1"))
	require.NoError(t, s.Stop())

	assert.ErrorIs(t, s.Play(context.Background(), "songA", "vc-1", "user-1", "text-1"), ErrSessionClosed)
	assert.ErrorIs(t, s.Skip(), ErrSessionClosed)
	assert.ErrorIs(t, s.Stop(), ErrSessionClosed)
	assert.True(t, errors.Is(s.SetVolume(10), ErrSessionClosed))
}
