package realtime

import (
	"sort"
	"sync"
)

// Presence is the in-memory registry mapping online users to their active
// realtime session. A user has at most one active session: identifying again
// overwrites the previous binding (last-write-wins), and a session rebinding
// to a different user releases its old identity.
//
// Presence is process-local and rebuilt from live connections; nothing here
// survives a restart.
type Presence struct {
	mu        sync.RWMutex
	byUser    map[string]string // userID -> sessionID
	bySession map[string]string // sessionID -> userID
}

func NewPresence() *Presence {
	return &Presence{
		byUser:    make(map[string]string),
		bySession: make(map[string]string),
	}
}

// SetOnline binds userID to sessionID, displacing any previous binding on
// either side.
func (p *Presence) SetOnline(userID, sessionID string) {
	if userID == "" || sessionID == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if old, ok := p.byUser[userID]; ok && old != sessionID {
		delete(p.bySession, old)
	}
	if oldUser, ok := p.bySession[sessionID]; ok && oldUser != userID {
		delete(p.byUser, oldUser)
	}

	p.byUser[userID] = sessionID
	p.bySession[sessionID] = userID
}

// RemoveSession drops the binding held by sessionID and reports whether the
// online set changed. A session displaced by a later SetOnline no longer holds
// a binding, so its delayed disconnect is a no-op. This guard keeps a quick
// reconnect from knocking the user offline.
func (p *Presence) RemoveSession(sessionID string) bool {
	if sessionID == "" {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	userID, ok := p.bySession[sessionID]
	if !ok {
		return false
	}
	delete(p.bySession, sessionID)
	if cur, ok := p.byUser[userID]; ok && cur == sessionID {
		delete(p.byUser, userID)
		return true
	}
	return false
}

// SessionOf resolves the active session for a user.
func (p *Presence) SessionOf(userID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sid, ok := p.byUser[userID]
	return sid, ok
}

// UserOf resolves the identity bound to a session.
func (p *Presence) UserOf(sessionID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	uid, ok := p.bySession[sessionID]
	return uid, ok
}

// Snapshot returns the sorted list of online user IDs.
func (p *Presence) Snapshot() []string {
	p.mu.RLock()
	users := make([]string, 0, len(p.byUser))
	for u := range p.byUser {
		users = append(users, u)
	}
	p.mu.RUnlock()

	sort.Strings(users)
	return users
}
