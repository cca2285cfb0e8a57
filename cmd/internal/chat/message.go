// Package chat contains Pinggo's durable direct-message store and its HTTP
// surface. The realtime path never blocks on this package: transport delivery
// and durable persistence are independent halves of a send.
package chat

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Message kinds. Non-text kinds carry a blob URL in Body; the blob itself
// lives with the external media storage collaborator.
const (
	KindText  = "text"
	KindImage = "image"
	KindVideo = "video"
	KindAudio = "audio"
	KindFile  = "file"
)

// Delivery statuses. A message's status is fixed when the row is created:
// "delivered" when the recipient was online at send time, "sent" otherwise,
// and "read" once the recipient opens the conversation.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

const maxBodyChars = 4000

// Message is one durable direct message between two users.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Body       string    `json:"body"`
	Kind       string    `json:"type"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func validKind(k string) bool {
	switch k {
	case KindText, KindImage, KindVideo, KindAudio, KindFile:
		return true
	}
	return false
}

func validStatus(s string) bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead:
		return true
	}
	return false
}

// AppendInput describes a message to persist. ID, CreatedAt, and UpdatedAt
// are assigned by the store.
type AppendInput struct {
	SenderID   string
	ReceiverID string
	Body       string
	Kind       string // defaults to KindText
	Status     string // defaults to StatusSent
	Now        time.Time
}

func (in *AppendInput) normalize() error {
	in.SenderID = strings.TrimSpace(in.SenderID)
	in.ReceiverID = strings.TrimSpace(in.ReceiverID)
	if in.SenderID == "" || in.ReceiverID == "" {
		return errors.New("chat: missing sender or receiver")
	}
	if in.Body == "" {
		return errors.New("chat: empty body")
	}
	if utf8.RuneCountInString(in.Body) > maxBodyChars {
		return errors.New("chat: body too long")
	}
	if in.Kind == "" {
		in.Kind = KindText
	}
	if !validKind(in.Kind) {
		return errors.New("chat: unknown message type")
	}
	if in.Status == "" {
		in.Status = StatusSent
	}
	if !validStatus(in.Status) {
		return errors.New("chat: unknown status")
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	return nil
}

// HistoryInput selects the conversation between two users.
type HistoryInput struct {
	UserA string
	UserB string

	// AfterID pages forward: only messages with an ID strictly greater are
	// returned. ULIDs sort lexicographically in creation order.
	AfterID string
	Limit   int // defaults to 50, capped at 200
}

// HistoryResult is a page of a conversation in ascending creation order.
type HistoryResult struct {
	Messages []Message
	HasMore  bool
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

func (in *HistoryInput) normalize() error {
	in.UserA = strings.TrimSpace(in.UserA)
	in.UserB = strings.TrimSpace(in.UserB)
	if in.UserA == "" || in.UserB == "" {
		return errors.New("chat: missing conversation participant")
	}
	if in.Limit <= 0 {
		in.Limit = defaultHistoryLimit
	}
	if in.Limit > maxHistoryLimit {
		in.Limit = maxHistoryLimit
	}
	return nil
}
