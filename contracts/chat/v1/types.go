// Package v1 defines the Pinggo chat wire contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between the relay and clients to keep the wire protocol authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Type constants (wire-stable).
const (
	// TypeUserOnline announces the connection's identity (client -> server).
	TypeUserOnline = "user:online"

	// TypeChatMessage carries a direct message. Client -> server to send,
	// server -> client for the recipient copy and the sender echo.
	TypeChatMessage = "chat:message"

	// TypeUsersOnline broadcasts the full online-user snapshot (server -> all clients).
	TypeUsersOnline = "users:online"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeUserOnline,
		TypeChatMessage,
		TypeUsersOnline,
		TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ---- Payloads ----

// UserOnlinePayload binds the connection to a user identity.
type UserOnlinePayload struct {
	UserID string `json:"user_id"`
}

// ChatMessagePayload is the transient wire form of a direct message.
// It is relayed as-is; durability lives behind the message store, not here.
type ChatMessagePayload struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks the fields the relay requires before routing.
func (p ChatMessagePayload) Validate() error {
	if strings.TrimSpace(p.From) == "" {
		return errors.New("missing field: from")
	}
	if strings.TrimSpace(p.To) == "" {
		return errors.New("missing field: to")
	}
	if strings.TrimSpace(p.Body) == "" {
		return errors.New("empty body")
	}
	return nil
}

// UsersOnlinePayload is the rebroadcast snapshot of the presence registry keys.
type UsersOnlinePayload struct {
	Users []string `json:"users"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
