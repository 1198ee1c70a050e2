package music

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(resolver *fakeResolver, transport *fakeTransport, policy LeavePolicy) *Registry {
	return NewRegistry(resolver, transport, &fakeSettingsStore{}, policy, 50)
}

func TestRegistryGetOrCreateReturnsSameSession(t *testing.T) {
	r := newTestRegistry(&fakeResolver{}, &fakeTransport{}, testPolicy())

	a := r.GetOrCreate("guild-1")
	b := r.GetOrCreate("guild-1")
	other := r.GetOrCreate("guild-2")

	assert.Same(t, a, b)
	assert.NotSame(t, a, other)
	assert.Equal(t, "guild-1", a.GuildID())
	assert.Equal(t, "guild-2", other.GuildID())
}

func TestRegistryGetWithoutCreate(t *testing.T) {
	r := newTestRegistry(&fakeResolver{}, &fakeTransport{}, testPolicy())

	_, ok := r.Get("guild-1")
	assert.False(t, ok)

	created := r.GetOrCreate("guild-1")
	got, ok := r.Get("guild-1")
	require.True(t, ok)
	assert.Same(t, created, got)
}

func TestRegistryDefaultVolumeClamped(t *testing.T) {
	r := NewRegistry(&fakeResolver{}, &fakeTransport{}, &fakeSettingsStore{}, testPolicy(), 250)

	s := r.GetOrCreate("guild-1")
	assert.Equal(t, 50, s.Volume())
}

func TestRegistryReplacesClosedSession(t *testing.T) {
	resolver := &fakeResolver{tracks: makeTracks("a")}
	transport := &fakeTransport{}
	r := newTestRegistry(resolver, transport, testPolicy())

	first := r.GetOrCreate("guild-1")
	require.NoError(t, first.Play(context.Background(), "songA", "vc-1", "user-1", "text-1"))
	require.NoError(t, first.Stop())

	// The terminal session is evicted; a fresh one takes its place.
	require.Eventually(t, func() bool {
		_, ok := r.Get("guild-1")
		return !ok
	}, time.Second, 5*time.Millisecond)

	second := r.GetOrCreate("guild-1")
	assert.NotSame(t, first, second)
	assert.False(t, second.isClosed())
}

func TestRegistryEventsReachHandlerInOrder(t *testing.T) {
	resolver := &fakeResolver{tracks: makeTracks("a", "b")}
	transport := &fakeTransport{}
	r := newTestRegistry(resolver, transport, testPolicy())

	var mu sync.Mutex
	var seen []EventType
	r.OnEvent(func(event Event) {
		mu.Lock()
		seen = append(seen, event.Type)
		mu.Unlock()
	})

	s := r.GetOrCreate("guild-1")
	require.NoError(t, s.Play(context.Background(), "two", "vc-1", "user-1", "text-1"))
	require.NoError(t, s.Skip())
	require.NoError(t, s.Stop())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventType{EventTrackStarted, EventTrackSkipped, EventStopped}, seen)
}

func TestRegistryShutdownStopsAllSessions(t *testing.T) {
	resolver := &fakeResolver{tracks: makeTracks("a")}
	transport := &fakeTransport{}
	r := newTestRegistry(resolver, transport, testPolicy())

	s1 := r.GetOrCreate("guild-1")
	require.NoError(t, s1.Play(context.Background(), "songA", "vc-1", "user-1", "text-1"))
	s2 := r.GetOrCreate("guild-2")

	r.Shutdown()

	assert.True(t, s1.isClosed())
	assert.True(t, s2.isClosed())
	assert.True(t, transport.conn.isDisconnected())
}

func TestRegistryRemove(t *testing.T) {
	r := newTestRegistry(&fakeResolver{}, &fakeTransport{}, testPolicy())

	r.GetOrCreate("guild-1")
	r.Remove("guild-1")

	_, ok := r.Get("guild-1")
	assert.False(t, ok)
}
