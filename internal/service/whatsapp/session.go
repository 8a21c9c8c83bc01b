package whatsapp

import (
	"sync"
	"time"
)

// recentMessages is how many message ids are remembered per sender.
const recentMessages = 32

// Session is what we remember about one sender between webhook deliveries.
type Session struct {
	// Recent holds the last handled message ids, oldest first.
	Recent   []string
	LastSeen time.Time
}

func (s Session) seen(messageID string) bool {
	for _, id := range s.Recent {
		if id == messageID {
			return true
		}
	}
	return false
}

// SessionManager tracks senders so that webhook redeliveries are answered once.
type SessionManager struct {
	sessions map[string]Session
	ttl      time.Duration
	mu       sync.Mutex
}

// NewSessionManager creates a new session manager. Sessions idle for longer
// than ttl are forgotten.
func NewSessionManager(ttl time.Duration) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]Session),
		ttl:      ttl,
	}
}

// MarkSeen records the message and reports false when it is one of the
// sender's recently handled messages.
func (sm *SessionManager) MarkSeen(userID, messageID string, now time.Time) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.evict(now)

	state := sm.sessions[userID]
	if messageID != "" && state.seen(messageID) {
		return false
	}

	state.LastSeen = now
	if messageID != "" {
		state.Recent = append(state.Recent, messageID)
		if len(state.Recent) > recentMessages {
			state.Recent = append([]string(nil), state.Recent[len(state.Recent)-recentMessages:]...)
		}
	}
	sm.sessions[userID] = state
	return true
}

// ClearSession removes a user's session.
func (sm *SessionManager) ClearSession(userID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, userID)
}

func (sm *SessionManager) evict(now time.Time) {
	if sm.ttl <= 0 {
		return
	}
	for id, state := range sm.sessions {
		if now.Sub(state.LastSeen) > sm.ttl {
			delete(sm.sessions, id)
		}
	}
}
