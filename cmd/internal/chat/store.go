package chat

import "context"

// Store persists direct messages. Implementations must assign IDs that sort
// lexicographically in creation order so History paging stays stable.
type Store interface {
	// Append persists one message and returns it with ID and timestamps set.
	Append(ctx context.Context, in AppendInput) (Message, error)

	// History returns the conversation between two users in ascending
	// creation order. Direction is ignored: both halves of the exchange
	// are included.
	History(ctx context.Context, in HistoryInput) (HistoryResult, error)

	// MarkRead flips every message sent to readerID by partnerID that is
	// not yet read, and returns how many rows changed.
	MarkRead(ctx context.Context, readerID, partnerID string) (int64, error)

	// Close releases store-owned resources.
	Close() error
}
