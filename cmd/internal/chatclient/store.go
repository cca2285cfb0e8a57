// Package chatclient is the client-side conversation state for one open chat:
// optimistic sends, reconciliation against the durable message API, and the
// realtime event feed filtered down to the active partner.
package chatclient

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pinggo/cmd/internal/chat"
	v1 "pinggo/contracts/chat/v1"
)

// Client-only entry states. Server-assigned statuses (sent, delivered, read)
// take over once the durable write is acknowledged.
const (
	StatusPending = "pending"
	StatusFailed  = "failed"
)

// Entry is one message as the client renders it. LocalID is set for entries
// born from an optimistic send and is the reconciliation key.
type Entry struct {
	chat.Message
	LocalID string `json:"localId,omitempty"`
}

// Transport is the realtime connection. Dial connects, announces the user's
// identity, and returns the event feed; the channel closes when the
// connection is lost. Every Dial re-announces identity, so a reconnect never
// leaves the session anonymous.
type Transport interface {
	Dial(ctx context.Context) (<-chan v1.Envelope, error)
	EmitChat(ctx context.Context, p v1.ChatMessagePayload) error
	Close() error
}

// MessageAPI is the durable message store's HTTP surface.
type MessageAPI interface {
	History(ctx context.Context, partnerID string) ([]chat.Message, error)
	Send(ctx context.Context, partnerID, body, kind string) (chat.Message, error)
}

// Store holds the conversation between selfID and partnerID.
//
// Transport delivery and durable persistence are independent: a send is
// optimistic in the UI, best-effort over the socket, and authoritative only
// once the API acknowledges it.
type Store struct {
	log       *slog.Logger
	selfID    string
	partnerID string

	transport Transport
	api       MessageAPI

	redialWait time.Duration

	mu      sync.RWMutex
	entries []Entry
	online  []string

	cancel context.CancelFunc
	loopWG sync.WaitGroup
}

// NewStore constructs a Store for the conversation selfID <-> partnerID.
func NewStore(log *slog.Logger, selfID, partnerID string, transport Transport, api MessageAPI) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if selfID == "" || partnerID == "" {
		return nil, errors.New("chatclient: missing self or partner id")
	}
	if transport == nil || api == nil {
		return nil, errors.New("chatclient: nil transport or api")
	}
	return &Store{
		log:        log,
		selfID:     selfID,
		partnerID:  partnerID,
		transport:  transport,
		api:        api,
		redialWait: 2 * time.Second,
	}, nil
}

// Connect dials the realtime feed and starts consuming events until ctx is
// canceled or Disconnect is called. Lost connections are redialed, and each
// redial re-announces identity through the transport.
func (s *Store) Connect(ctx context.Context) error {
	events, err := s.transport.Dial(ctx)
	if err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		cancel()
		return errors.New("chatclient: already connected")
	}
	s.cancel = cancel
	s.mu.Unlock()

	s.loopWG.Add(1)
	go s.consume(loopCtx, events)
	return nil
}

// Disconnect stops the event loop and closes the transport. Conversation
// state is kept; Clear discards it.
func (s *Store) Disconnect() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = s.transport.Close()
	s.loopWG.Wait()

	s.mu.Lock()
	s.online = nil
	s.mu.Unlock()
}

func (s *Store) consume(ctx context.Context, events <-chan v1.Envelope) {
	defer s.loopWG.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-events:
			if !ok {
				// Connection lost: redial until it sticks or ctx ends.
				next, err := s.redial(ctx)
				if err != nil {
					return
				}
				events = next
				continue
			}
			s.handle(env)
		}
	}
}

func (s *Store) redial(ctx context.Context) (<-chan v1.Envelope, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.redialWait):
		}

		events, err := s.transport.Dial(ctx)
		if err == nil {
			s.log.Info("chatclient.reconnect", "self_id", s.selfID)
			return events, nil
		}
		s.log.Warn("chatclient.redial.fail", "err", err)
	}
}

func (s *Store) handle(env v1.Envelope) {
	switch env.Type {
	case v1.TypeChatMessage:
		var p v1.ChatMessagePayload
		if err := unmarshalPayload(env, &p); err != nil {
			s.log.Warn("chatclient.event.bad_payload", "type", env.Type, "err", err)
			return
		}
		s.onChatMessage(p)
	case v1.TypeUsersOnline:
		var p v1.UsersOnlinePayload
		if err := unmarshalPayload(env, &p); err != nil {
			s.log.Warn("chatclient.event.bad_payload", "type", env.Type, "err", err)
			return
		}
		s.mu.Lock()
		s.online = append([]string(nil), p.Users...)
		s.mu.Unlock()
	case v1.TypeError:
		var p v1.ErrorPayload
		_ = unmarshalPayload(env, &p)
		s.log.Warn("chatclient.server_error", "code", p.Code, "message", p.Message)
	}
}

// onChatMessage appends partner messages for the active conversation. The
// sender echo of our own messages is dropped: the optimistic entry already
// covers it and the API reconciliation supersedes both.
func (s *Store) onChatMessage(p v1.ChatMessagePayload) {
	if p.From == s.selfID {
		return
	}
	if p.From != s.partnerID || p.To != s.selfID {
		return
	}

	e := Entry{Message: chat.Message{
		SenderID:   p.From,
		ReceiverID: p.To,
		Body:       p.Body,
		Kind:       chat.KindText,
		Status:     chat.StatusDelivered,
		CreatedAt:  p.Timestamp,
		UpdatedAt:  p.Timestamp,
	}}

	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
}

// Send appends an optimistic entry, pushes the event over the socket, then
// persists through the API. The durable acknowledgment replaces the
// optimistic entry in place; a durable failure marks it failed instead of
// removing it, so the UI can offer a retry.
func (s *Store) Send(ctx context.Context, body, kind string) (Entry, error) {
	if body == "" {
		return Entry{}, errors.New("chatclient: empty body")
	}
	if kind == "" {
		kind = chat.KindText
	}

	now := time.Now().UTC()
	localID := uuid.NewString()

	optimistic := Entry{
		LocalID: localID,
		Message: chat.Message{
			SenderID:   s.selfID,
			ReceiverID: s.partnerID,
			Body:       body,
			Kind:       kind,
			Status:     StatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}

	s.mu.Lock()
	s.entries = append(s.entries, optimistic)
	s.mu.Unlock()

	// Best-effort transport push: the recipient's live view. Persistence does
	// not depend on it.
	if err := s.transport.EmitChat(ctx, v1.ChatMessagePayload{
		From:      s.selfID,
		To:        s.partnerID,
		Body:      body,
		Timestamp: now,
	}); err != nil {
		s.log.Warn("chatclient.emit.fail", "err", err)
	}

	stored, err := s.api.Send(ctx, s.partnerID, body, kind)
	if err != nil {
		s.markFailed(localID)
		return Entry{}, err
	}

	final := Entry{Message: stored}
	s.reconcile(localID, final)
	return final, nil
}

// reconcile replaces the optimistic entry (keyed by localID) with the durable
// message, keeping its position. If the entry is gone, the durable message is
// appended so it is never lost.
func (s *Store) reconcile(localID string, final Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].LocalID == localID {
			s.entries[i] = final
			return
		}
	}
	s.entries = append(s.entries, final)
}

func (s *Store) markFailed(localID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].LocalID == localID {
			s.entries[i].Status = StatusFailed
			s.entries[i].UpdatedAt = time.Now().UTC()
			return
		}
	}
}

// LoadHistory replaces the conversation wholesale with the durable record in
// ascending creation order. Pending and failed local entries are dropped;
// the durable store is the source of truth after a load.
func (s *Store) LoadHistory(ctx context.Context) error {
	msgs, err := s.api.History(ctx, s.partnerID)
	if err != nil {
		return err
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})

	entries := make([]Entry, len(msgs))
	for i, m := range msgs {
		entries[i] = Entry{Message: m}
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}

// Clear discards all conversation state.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
}

// Messages returns a snapshot of the conversation in append order.
func (s *Store) Messages() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.entries...)
}

// OnlineUsers returns the last users:online snapshot received.
func (s *Store) OnlineUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.online...)
}

// PartnerOnline reports whether the conversation partner is in the last
// online snapshot.
func (s *Store) PartnerOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.online {
		if u == s.partnerID {
			return true
		}
	}
	return false
}
