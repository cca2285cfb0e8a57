package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	v1 "pinggo/contracts/chat/v1"
)

const wsSubprotocol = "pinggo.chat.v1"

// WSTransport is the websocket Transport against a running relay.
type WSTransport struct {
	log    *slog.Logger
	wsURL  string
	token  string
	selfID string

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSTransport constructs a Transport that dials wsURL. token is attached
// to the handshake when set; identity is announced on every Dial.
func NewWSTransport(log *slog.Logger, wsURL, token, selfID string) (*WSTransport, error) {
	if log == nil {
		log = slog.Default()
	}
	if wsURL == "" || selfID == "" {
		return nil, errors.New("chatclient: missing ws url or self id")
	}
	return &WSTransport{log: log, wsURL: wsURL, token: token, selfID: selfID}, nil
}

// Dial connects, announces identity, and returns the event feed. The channel
// closes when the connection drops.
func (t *WSTransport) Dial(ctx context.Context) (<-chan v1.Envelope, error) {
	target := t.wsURL
	if t.token != "" {
		u, err := url.Parse(t.wsURL)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		q.Set("token", t.token)
		u.RawQuery = q.Encode()
		target = u.String()
	}

	conn, _, err := websocket.Dial(ctx, target, &websocket.DialOptions{
		Subprotocols: []string{wsSubprotocol},
	})
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if t.conn != nil {
		_ = t.conn.Close(websocket.StatusNormalClosure, "redial")
	}
	t.conn = conn
	t.mu.Unlock()

	// Identity announcement: the relay ignores this session until it lands.
	identify := newClientEnvelope(v1.TypeUserOnline, v1.UserOnlinePayload{UserID: t.selfID})
	if err := writeEnvelope(ctx, conn, identify); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "identify failed")
		return nil, err
	}

	events := make(chan v1.Envelope, 32)
	go t.readLoop(conn, events)
	return events, nil
}

func (t *WSTransport) readLoop(conn *websocket.Conn, events chan<- v1.Envelope) {
	defer close(events)

	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			t.log.Debug("chatclient.ws.read_end", "err", err)
			return
		}

		var env v1.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.log.Warn("chatclient.ws.bad_frame", "err", err)
			continue
		}
		events <- env
	}
}

// EmitChat pushes one chat:message event over the active connection.
func (t *WSTransport) EmitChat(ctx context.Context, p v1.ChatMessagePayload) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return errors.New("chatclient: not connected")
	}
	return writeEnvelope(ctx, conn, newClientEnvelope(v1.TypeChatMessage, p))
}

// Close tears down the active connection, if any.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "bye")
}

func newClientEnvelope(typ string, payload any) v1.Envelope {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = json.RawMessage(`{}`)
	}
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      uuid.NewString(),
		TS:      time.Now().UTC(),
		Payload: raw,
	}
}

func writeEnvelope(ctx context.Context, conn *websocket.Conn, env v1.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func unmarshalPayload(env v1.Envelope, dst any) error {
	if len(env.Payload) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(env.Payload, dst)
}

var _ Transport = (*WSTransport)(nil)
