package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"pinggo/cmd/internal/ids"
)

// MemoryStore is a Store held entirely in process memory. It backs tests and
// single-node development; production runs use PostgresStore.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]Message // append order == creation order
}

// NewMemoryStore constructs an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string][]Message)}
}

// conversationKey is direction-independent: both halves of an exchange land
// in the same bucket.
func conversationKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "\x00" + b
}

// Append persists one message and returns it with ID and timestamps set.
func (s *MemoryStore) Append(ctx context.Context, in AppendInput) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	if err := in.normalize(); err != nil {
		return Message{}, err
	}

	id, err := ids.NewULID(in.Now)
	if err != nil {
		return Message{}, err
	}

	msg := Message{
		ID:         id,
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Body:       in.Body,
		Kind:       in.Kind,
		Status:     in.Status,
		CreatedAt:  in.Now,
		UpdatedAt:  in.Now,
	}

	key := conversationKey(in.SenderID, in.ReceiverID)

	s.mu.Lock()
	s.conversations[key] = append(s.conversations[key], msg)
	s.mu.Unlock()

	return msg, nil
}

// History returns the conversation between two users in ascending creation
// order, paged by AfterID.
func (s *MemoryStore) History(ctx context.Context, in HistoryInput) (HistoryResult, error) {
	if err := ctx.Err(); err != nil {
		return HistoryResult{}, err
	}
	if err := in.normalize(); err != nil {
		return HistoryResult{}, err
	}

	s.mu.RLock()
	all := s.conversations[conversationKey(in.UserA, in.UserB)]

	// Page forward from the row matching AfterID; fall back to ID ordering
	// when that row has been compacted away.
	start := 0
	if in.AfterID != "" {
		start = len(all)
		for i := range all {
			if all[i].ID == in.AfterID {
				start = i + 1
				break
			}
			if all[i].ID > in.AfterID {
				start = i
				break
			}
		}
	}

	end := start + in.Limit
	hasMore := end < len(all)
	if !hasMore {
		end = len(all)
	}
	page := make([]Message, end-start)
	copy(page, all[start:end])
	s.mu.RUnlock()

	return HistoryResult{Messages: page, HasMore: hasMore}, nil
}

// MarkRead flips unread messages from partnerID to readerID.
func (s *MemoryStore) MarkRead(ctx context.Context, readerID, partnerID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	readerID = strings.TrimSpace(readerID)
	partnerID = strings.TrimSpace(partnerID)
	if readerID == "" || partnerID == "" {
		return 0, errors.New("chat: missing conversation participant")
	}

	key := conversationKey(readerID, partnerID)

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	msgs := s.conversations[key]
	for i := range msgs {
		if msgs[i].SenderID == partnerID && msgs[i].ReceiverID == readerID && msgs[i].Status != StatusRead {
			msgs[i].Status = StatusRead
			msgs[i].UpdatedAt = time.Now().UTC()
			n++
		}
	}
	return n, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
