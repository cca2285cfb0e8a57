package social

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pinggo/cmd/internal/auth"
	"pinggo/cmd/internal/chat"
)

const maxAPIBodyBytes = 64 << 10

// Handler serves the social HTTP API.
type Handler struct {
	log   *slog.Logger
	store Store
}

// NewHandler constructs a social Handler.
func NewHandler(log *slog.Logger, store Store) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, store: store}
}

// Register wires social routes onto the provided mux. Authentication is
// applied by the caller; handlers read the user from the request context.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("GET /api/users/me", h.handleMyProfile)
	mux.HandleFunc("PUT /api/users/me", h.handleUpdateProfile)
	mux.HandleFunc("GET /api/users/suggested", h.handleSuggested)
	mux.HandleFunc("GET /api/users/{userID}", h.handleProfile)
	mux.HandleFunc("POST /api/users/{userID}/follow", h.handleFollow)
	mux.HandleFunc("DELETE /api/users/{userID}/follow", h.handleUnfollow)
	mux.HandleFunc("GET /api/users/{userID}/followers", h.handleFollowers)
	mux.HandleFunc("GET /api/users/{userID}/following", h.handleFollowing)

	mux.HandleFunc("POST /api/posts", h.handleCreatePost)
	mux.HandleFunc("GET /api/posts/feed", h.handleFeed)
	mux.HandleFunc("GET /api/posts/user/{userID}", h.handlePostsByAuthor)
	mux.HandleFunc("DELETE /api/posts/{postID}", h.handleDeletePost)
	mux.HandleFunc("GET /api/posts/{postID}/comments", h.handleListComments)
	mux.HandleFunc("POST /api/posts/{postID}/comments", h.handleAddComment)
	mux.HandleFunc("POST /api/posts/{postID}/like", h.handleToggleLike)
	mux.HandleFunc("POST /api/posts/{postID}/bookmark", h.handleToggleBookmark)
	mux.HandleFunc("GET /api/bookmarks", h.handleBookmarks)

	mux.HandleFunc("GET /api/notifications", h.handleNotifications)
	mux.HandleFunc("POST /api/notifications/seen", h.handleNotificationsSeen)
}

// NotifyMessage satisfies the chat package's Notifier: a durable message to
// an offline recipient lands in their notification tray.
func (h *Handler) NotifyMessage(ctx context.Context, m chat.Message) {
	_, err := h.store.AddNotification(ctx, Notification{
		UserID:  m.ReceiverID,
		ActorID: m.SenderID,
		Kind:    NotifyMessage,
	})
	if err != nil {
		h.log.Warn("social.notify.message.fail", "err", err, "user_id", m.ReceiverID)
	}
}

func requestUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
	}
	return userID, ok
}

func listLimit(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return 0
}

func (h *Handler) writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "no such resource")
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "not allowed")
	default:
		h.log.Error("social.store.fail", "op", op, "err", err)
		writeError(w, http.StatusInternalServerError, "store_error", "operation failed")
	}
}

// ---- profiles ----

func (h *Handler) handleMyProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	p, err := h.store.GetProfile(r.Context(), userID)
	if err != nil {
		h.writeStoreError(w, "profile.get", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type profileUpdateRequest struct {
	Username  string `json:"username"`
	FullName  string `json:"fullName"`
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatarUrl"`
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}

	var req profileUpdateRequest
	if err := decodeJSON(w, r, maxAPIBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	p, err := h.store.UpsertProfile(r.Context(), Profile{
		UserID:    userID,
		Username:  req.Username,
		FullName:  req.FullName,
		Bio:       req.Bio,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid profile")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	if _, ok := requestUser(w, r); !ok {
		return
	}
	p, err := h.store.GetProfile(r.Context(), strings.TrimSpace(r.PathValue("userID")))
	if err != nil {
		h.writeStoreError(w, "profile.get", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleSuggested(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	users, err := h.store.SuggestedUsers(r.Context(), userID, listLimit(r))
	if err != nil {
		h.writeStoreError(w, "users.suggested", err)
		return
	}
	if users == nil {
		users = []Profile{}
	}
	writeJSON(w, http.StatusOK, users)
}

// ---- follows ----

func (h *Handler) handleFollow(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	target := strings.TrimSpace(r.PathValue("userID"))
	if target == "" || target == userID {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid follow target")
		return
	}

	if err := h.store.Follow(r.Context(), userID, target); err != nil {
		h.writeStoreError(w, "follow", err)
		return
	}

	if _, err := h.store.AddNotification(r.Context(), Notification{
		UserID:  target,
		ActorID: userID,
		Kind:    NotifyFollow,
	}); err != nil {
		h.log.Warn("social.notify.follow.fail", "err", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	target := strings.TrimSpace(r.PathValue("userID"))
	if err := h.store.Unfollow(r.Context(), userID, target); err != nil {
		h.writeStoreError(w, "unfollow", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleFollowers(w http.ResponseWriter, r *http.Request) {
	if _, ok := requestUser(w, r); !ok {
		return
	}
	h.writeProfileList(w, r, "followers", h.store.Followers)
}

func (h *Handler) handleFollowing(w http.ResponseWriter, r *http.Request) {
	if _, ok := requestUser(w, r); !ok {
		return
	}
	h.writeProfileList(w, r, "following", h.store.Following)
}

func (h *Handler) writeProfileList(w http.ResponseWriter, r *http.Request, op string,
	list func(context.Context, string, int) ([]Profile, error),
) {
	target := strings.TrimSpace(r.PathValue("userID"))
	users, err := list(r.Context(), target, listLimit(r))
	if err != nil {
		h.writeStoreError(w, op, err)
		return
	}
	if users == nil {
		users = []Profile{}
	}
	writeJSON(w, http.StatusOK, users)
}

// ---- posts ----

type createPostRequest struct {
	Kind     string `json:"kind"`
	Caption  string `json:"caption"`
	MediaURL string `json:"mediaUrl"`
}

func (h *Handler) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}

	var req createPostRequest
	if err := decodeJSON(w, r, maxAPIBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	p, err := h.store.CreatePost(r.Context(), Post{
		AuthorID: userID,
		Kind:     req.Kind,
		Caption:  req.Caption,
		MediaURL: req.MediaURL,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid post")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	posts, err := h.store.Feed(r.Context(), userID, listLimit(r))
	if err != nil {
		h.writeStoreError(w, "feed", err)
		return
	}
	if posts == nil {
		posts = []Post{}
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *Handler) handlePostsByAuthor(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	author := strings.TrimSpace(r.PathValue("userID"))
	posts, err := h.store.PostsByAuthor(r.Context(), userID, author, listLimit(r))
	if err != nil {
		h.writeStoreError(w, "posts.by_author", err)
		return
	}
	if posts == nil {
		posts = []Post{}
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *Handler) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	postID := strings.TrimSpace(r.PathValue("postID"))
	if err := h.store.DeletePost(r.Context(), postID, userID); err != nil {
		h.writeStoreError(w, "posts.delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- comments ----

type addCommentRequest struct {
	Body string `json:"body"`
}

func (h *Handler) handleAddComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	postID := strings.TrimSpace(r.PathValue("postID"))

	var req addCommentRequest
	if err := decodeJSON(w, r, maxAPIBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	c, err := h.store.AddComment(r.Context(), Comment{
		PostID:   postID,
		AuthorID: userID,
		Body:     req.Body,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid comment")
		return
	}

	h.notifyPostAction(r, postID, userID, NotifyComment)
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleListComments(w http.ResponseWriter, r *http.Request) {
	if _, ok := requestUser(w, r); !ok {
		return
	}
	postID := strings.TrimSpace(r.PathValue("postID"))
	comments, err := h.store.CommentsForPost(r.Context(), postID, listLimit(r))
	if err != nil {
		h.writeStoreError(w, "comments.list", err)
		return
	}
	if comments == nil {
		comments = []Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

// ---- likes and bookmarks ----

func (h *Handler) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	postID := strings.TrimSpace(r.PathValue("postID"))

	liked, err := h.store.ToggleLike(r.Context(), postID, userID)
	if err != nil {
		h.writeStoreError(w, "like.toggle", err)
		return
	}

	if liked {
		h.notifyPostAction(r, postID, userID, NotifyLike)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

func (h *Handler) handleToggleBookmark(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	postID := strings.TrimSpace(r.PathValue("postID"))

	bookmarked, err := h.store.ToggleBookmark(r.Context(), postID, userID)
	if err != nil {
		h.writeStoreError(w, "bookmark.toggle", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"bookmarked": bookmarked})
}

func (h *Handler) handleBookmarks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	posts, err := h.store.Bookmarks(r.Context(), userID, listLimit(r))
	if err != nil {
		h.writeStoreError(w, "bookmarks.list", err)
		return
	}
	if posts == nil {
		posts = []Post{}
	}
	writeJSON(w, http.StatusOK, posts)
}

// notifyPostAction raises a notification to a post's author. Failures are
// logged, never surfaced: the triggering action already succeeded.
func (h *Handler) notifyPostAction(r *http.Request, postID, actorID, kind string) {
	owner, ok := h.store.(PostOwner)
	if !ok {
		return
	}
	author, err := owner.PostAuthor(r.Context(), postID)
	if err != nil {
		h.log.Warn("social.notify.author.fail", "err", err, "post_id", postID)
		return
	}
	if _, err := h.store.AddNotification(r.Context(), Notification{
		UserID:  author,
		ActorID: actorID,
		Kind:    kind,
		PostID:  postID,
	}); err != nil {
		h.log.Warn("social.notify.fail", "err", err, "kind", kind)
	}
}

// ---- notifications ----

func (h *Handler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	items, err := h.store.Notifications(r.Context(), userID, listLimit(r))
	if err != nil {
		h.writeStoreError(w, "notifications.list", err)
		return
	}
	if items == nil {
		items = []Notification{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleNotificationsSeen(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	n, err := h.store.MarkNotificationsSeen(r.Context(), userID)
	if err != nil {
		h.writeStoreError(w, "notifications.seen", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
