// Package realtime contains Pinggo's realtime relay: the presence registry,
// the direct-message fanout, and the WebSocket gateway.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	v1 "pinggo/contracts/chat/v1"
)

// Relay owns the presence registry and all connected sessions, and forwards
// direct-message events between them.
//
// Delivery semantics are best-effort by design: no retry, no acknowledgment,
// no queuing for offline recipients. A message to an offline user is dropped
// at this layer and becomes visible only through the durable message store.
type Relay struct {
	log     *slog.Logger
	metrics *Metrics

	presence *Presence

	mu       sync.RWMutex
	sessions map[string]*Client // sessionID -> client, identified or not
}

// NewRelay constructs a Relay. metrics may be nil (tests).
func NewRelay(log *slog.Logger, metrics *Metrics) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{
		log:      log,
		metrics:  metrics,
		presence: NewPresence(),
		sessions: make(map[string]*Client),
	}
}

// Register adds a freshly connected (not yet identified) session.
func (r *Relay) Register(c *Client) {
	if r == nil || c == nil || c.SessionID == "" {
		return
	}

	r.mu.Lock()
	r.sessions[c.SessionID] = c
	n := len(r.sessions)
	r.mu.Unlock()

	r.metrics.setConnectedSessions(n)
	r.log.Info("relay.session.connect", "session_id", c.SessionID)
}

// Identify binds a session to a user identity and rebroadcasts the online set.
// Re-identification overwrites the previous binding (last-write-wins).
func (r *Relay) Identify(sessionID, userID string) {
	if r == nil || sessionID == "" || userID == "" {
		return
	}

	r.presence.SetOnline(userID, sessionID)
	r.log.Info("relay.session.identify", "session_id", sessionID, "user_id", userID)
	r.broadcastOnline()
}

// Deregister removes a session, cleans up its presence binding (guarded
// against stale removals) and rebroadcasts the online set when it changed.
func (r *Relay) Deregister(sessionID string) {
	if r == nil || sessionID == "" {
		return
	}

	r.mu.Lock()
	c := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	n := len(r.sessions)
	r.mu.Unlock()

	// Signal client shutdown after removing from the session table. This
	// ordering avoids race windows where a broadcaster still holds a pointer
	// while the client goroutines are being torn down.
	if c != nil {
		c.Close()
	}

	r.metrics.setConnectedSessions(n)

	changed := r.presence.RemoveSession(sessionID)
	r.log.Info("relay.session.disconnect", "session_id", sessionID, "presence_changed", changed)
	if changed {
		r.broadcastOnline()
	}
}

// Route forwards a direct-message event to the recipient's active session, if
// any, and unconditionally echoes it back to the sender's own session so the
// sender's UI updates without a separate acknowledgment.
func (r *Relay) Route(sender *Client, p v1.ChatMessagePayload, now time.Time) {
	if r == nil || sender == nil {
		return
	}

	env := r.newEnvelope(v1.TypeChatMessage, mustMarshal(p), now)

	if r.enqueue(sender, env) {
		r.metrics.incEchoed()
	}

	sid, online := r.presence.SessionOf(p.To)
	if !online {
		// Silent drop at the transport layer; delivery depends on the
		// recipient later pulling history from the message store.
		r.metrics.incDroppedOffline()
		r.log.Debug("relay.message.offline", "to", p.To)
		return
	}
	// A user routing to themselves already got the echo above.
	if sid == sender.SessionID {
		return
	}

	r.mu.RLock()
	target := r.sessions[sid]
	r.mu.RUnlock()

	if target == nil {
		r.metrics.incDroppedOffline()
		return
	}
	if r.enqueue(target, env) {
		r.metrics.incRelayed()
	}
}

// OnlineUsers returns the current presence snapshot.
func (r *Relay) OnlineUsers() []string {
	if r == nil {
		return nil
	}
	return r.presence.Snapshot()
}

// IsOnline reports whether a user currently has an active session.
func (r *Relay) IsOnline(userID string) bool {
	if r == nil {
		return false
	}
	_, ok := r.presence.SessionOf(userID)
	return ok
}

// UserOf resolves the identity bound to a session, if any.
func (r *Relay) UserOf(sessionID string) (string, bool) {
	if r == nil {
		return "", false
	}
	return r.presence.UserOf(sessionID)
}

// broadcastOnline pushes the full online-user snapshot to every connected
// client. The set is entirely rebuilt on each change rather than diffed.
func (r *Relay) broadcastOnline() {
	users := r.presence.Snapshot()
	r.metrics.setOnlineUsers(len(users))

	env := r.newEnvelope(v1.TypeUsersOnline, mustMarshal(v1.UsersOnlinePayload{Users: users}), time.Now().UTC())

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.sessions {
		_ = r.enqueue(c, env)
	}
}

// enqueue is a non-blocking send: if the member queue is full or the client is
// shutting down, the envelope is dropped rather than blocking the relay.
func (r *Relay) enqueue(c *Client, env v1.Envelope) bool {
	if c == nil {
		return false
	}

	select {
	case <-c.Done():
		return false
	default:
	}

	select {
	case c.Send <- env:
		return true
	default:
		r.log.Warn("relay.enqueue.drop", "session_id", c.SessionID, "type", env.Type)
		return false
	}
}

func (r *Relay) newEnvelope(typ string, payload json.RawMessage, ts time.Time) v1.Envelope {
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      NewRandomHex(10),
		TS:      ts,
		Payload: payload,
	}
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}
