package music

import (
	"log"
	"sync"
)

// Registry owns every playback session, keyed by guild. Sessions are
// created lazily on the first playing command and removed when they
// reach their terminal disconnect. Exactly one session exists per
// guild at any time; different guilds are fully independent.
type Registry struct {
	resolver      Resolver
	voice         VoiceTransport
	settings      SettingsStore
	policy        LeavePolicy
	defaultVolume int

	mu       sync.Mutex
	sessions map[string]*Session
	handler  func(Event)
}

func NewRegistry(resolver Resolver, voice VoiceTransport, settings SettingsStore, policy LeavePolicy, defaultVolume int) *Registry {
	if defaultVolume < 0 || defaultVolume > 100 {
		defaultVolume = 50
	}
	return &Registry{
		resolver:      resolver,
		voice:         voice,
		settings:      settings,
		policy:        policy,
		defaultVolume: defaultVolume,
		sessions:      make(map[string]*Session),
	}
}

// OnEvent installs the consumer for session events. Events from one
// guild arrive in emission order; guilds are interleaved arbitrarily.
func (r *Registry) OnEvent(handler func(Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = handler
}

// GetOrCreate returns the guild's session, constructing an Idle one if
// none exists. A session that already reached its terminal state is
// replaced.
func (r *Registry) GetOrCreate(guildID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[guildID]; ok && !s.isClosed() {
		return s
	}

	s := newSession(guildID, r.resolver, r.voice, r.settings, r.policy, r.defaultVolume)
	s.onTerminal = r.removeIfSame(s)
	r.sessions[guildID] = s

	go r.consumeEvents(s)
	return s
}

// Get looks a session up without creating one; read-only commands use it.
func (r *Registry) Get(guildID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[guildID]
	if !ok || s.isClosed() {
		return nil, false
	}
	return s, true
}

// Remove drops the guild's session; a later Get returns nothing.
func (r *Registry) Remove(guildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, guildID)
}

// removeIfSame unregisters the session on terminal disconnect, unless
// a replacement already took the slot.
func (r *Registry) removeIfSame(s *Session) func(string) {
	return func(guildID string) {
		r.mu.Lock()
		defer r.mu.Unlock()

		if current, ok := r.sessions[guildID]; ok && current == s {
			delete(r.sessions, guildID)
		}
	}
}

// consumeEvents drains one session's event channel on its own
// goroutine, preserving per-session ordering while keeping guilds
// independent. It exits when the session closes the channel.
func (r *Registry) consumeEvents(s *Session) {
	for event := range s.Events() {
		r.mu.Lock()
		handler := r.handler
		r.mu.Unlock()

		if handler == nil {
			continue
		}
		handler(event)
	}
}

// Shutdown stops every live session; used on process teardown.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		if err := s.Stop(); err != nil && err != ErrSessionClosed {
			log.Printf("guild %s: shutdown stop failed: %v", s.GuildID(), err)
		}
	}
}
