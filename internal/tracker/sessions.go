package tracker

import (
	"context"
	"sync"

	"voicecal/internal/models"
)

// SessionStore holds open voice sessions, at most one per guild member
type SessionStore interface {
	// Open stores s unless the member already has a session and reports whether it did
	Open(ctx context.Context, s models.VoiceSession) (bool, error)
	// Replace stores s unconditionally and returns the session it replaced, if any
	Replace(ctx context.Context, s models.VoiceSession) (models.VoiceSession, bool, error)
	// Get returns the member's open session
	Get(ctx context.Context, guildID, userID string) (models.VoiceSession, bool, error)
	// Take removes and returns the member's open session
	Take(ctx context.Context, guildID, userID string) (models.VoiceSession, bool, error)
}

// SessionKey returns the key a member's session is stored under
func SessionKey(guildID, userID string) string {
	return guildID + ":" + userID
}

// MemorySessionStore keeps sessions in process memory. Sessions are lost on restart.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]models.VoiceSession // key: guildID:userID -> voice session
}

// NewMemorySessionStore creates an empty in-memory session store
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]models.VoiceSession)}
}

func (m *MemorySessionStore) Open(_ context.Context, s models.VoiceSession) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := SessionKey(s.GuildID, s.UserID)
	if _, exists := m.sessions[key]; exists {
		return false, nil
	}
	m.sessions[key] = s
	return true, nil
}

func (m *MemorySessionStore) Replace(_ context.Context, s models.VoiceSession) (models.VoiceSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := SessionKey(s.GuildID, s.UserID)
	prev, ok := m.sessions[key]
	m.sessions[key] = s
	return prev, ok, nil
}

func (m *MemorySessionStore) Get(_ context.Context, guildID, userID string) (models.VoiceSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[SessionKey(guildID, userID)]
	return s, ok, nil
}

func (m *MemorySessionStore) Take(_ context.Context, guildID, userID string) (models.VoiceSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := SessionKey(guildID, userID)
	s, ok := m.sessions[key]
	if ok {
		delete(m.sessions, key)
	}
	return s, ok, nil
}

// Len returns the number of open sessions
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
