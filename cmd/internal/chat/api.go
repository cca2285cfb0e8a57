package chat

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pinggo/cmd/internal/auth"
)

const maxSendBodyBytes = 64 << 10

// PresenceView answers whether a user has an active realtime session. It
// decides the delivery status a message is created with.
type PresenceView interface {
	IsOnline(userID string) bool
}

// Notifier is told about messages persisted while the recipient was offline,
// so a notification can be raised for them. May be nil.
type Notifier interface {
	NotifyMessage(ctx context.Context, m Message)
}

// Handler serves the durable message HTTP API.
type Handler struct {
	log      *slog.Logger
	store    Store
	presence PresenceView
	notifier Notifier
}

// NewHandler constructs a chat Handler. presence and notifier may be nil.
func NewHandler(log *slog.Logger, store Store, presence PresenceView, notifier Notifier) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, store: store, presence: presence, notifier: notifier}
}

// Register wires message routes onto the provided mux. Authentication is
// applied by the caller; handlers read the user from the request context.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("GET /api/messages/{partnerID}", h.handleHistory)
	mux.HandleFunc("POST /api/messages/send/{partnerID}", h.handleSend)
	mux.HandleFunc("POST /api/messages/read/{partnerID}", h.handleMarkRead)
}

type sendRequest struct {
	Body string `json:"body"`
	Type string `json:"type"`
}

type historyResponse struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"hasMore"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}
	partnerID := strings.TrimSpace(r.PathValue("partnerID"))
	if partnerID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing partner id")
		return
	}

	in := HistoryInput{
		UserA:   userID,
		UserB:   partnerID,
		AfterID: strings.TrimSpace(r.URL.Query().Get("after")),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid limit")
			return
		}
		in.Limit = n
	}

	out, err := h.store.History(r.Context(), in)
	if err != nil {
		h.log.Error("chat.history.fail", "err", err, "user_id", userID, "partner_id", partnerID)
		writeError(w, http.StatusInternalServerError, "store_error", "could not load history")
		return
	}

	if out.Messages == nil {
		out.Messages = []Message{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Messages: out.Messages, HasMore: out.HasMore})
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}
	partnerID := strings.TrimSpace(r.PathValue("partnerID"))
	if partnerID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing partner id")
		return
	}

	var req sendRequest
	if err := decodeJSON(w, r, maxSendBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	// Recipient presence at creation time pins the initial status.
	status := StatusSent
	recipientOnline := h.presence != nil && h.presence.IsOnline(partnerID)
	if recipientOnline {
		status = StatusDelivered
	}

	msg, err := h.store.Append(r.Context(), AppendInput{
		SenderID:   userID,
		ReceiverID: partnerID,
		Body:       req.Body,
		Kind:       req.Type,
		Status:     status,
		Now:        time.Now().UTC(),
	})
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		h.log.Error("chat.send.fail", "err", err, "user_id", userID, "partner_id", partnerID)
		writeError(w, http.StatusBadRequest, "store_error", "could not persist message")
		return
	}

	if !recipientOnline && h.notifier != nil {
		h.notifier.NotifyMessage(r.Context(), msg)
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}
	partnerID := strings.TrimSpace(r.PathValue("partnerID"))
	if partnerID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing partner id")
		return
	}

	n, err := h.store.MarkRead(r.Context(), userID, partnerID)
	if err != nil {
		h.log.Error("chat.read.fail", "err", err, "user_id", userID, "partner_id", partnerID)
		writeError(w, http.StatusInternalServerError, "store_error", "could not mark messages read")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
