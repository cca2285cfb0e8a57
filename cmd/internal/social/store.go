package social

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by Store implementations.
var (
	ErrNotFound  = errors.New("social: not found")
	ErrForbidden = errors.New("social: forbidden")
)

// Store persists the social graph and content. Production runs use
// PostgresStore; handler tests use an in-memory fake.
type Store interface {
	// Profiles.
	GetProfile(ctx context.Context, userID string) (Profile, error)
	UpsertProfile(ctx context.Context, p Profile) (Profile, error)
	SuggestedUsers(ctx context.Context, userID string, limit int) ([]Profile, error)

	// Posts. CreatePost assigns ID and CreatedAt. DeletePost returns
	// ErrForbidden when requesterID is not the author.
	CreatePost(ctx context.Context, p Post) (Post, error)
	DeletePost(ctx context.Context, postID, requesterID string) error
	PostsByAuthor(ctx context.Context, viewerID, authorID string, limit int) ([]Post, error)
	Feed(ctx context.Context, viewerID string, limit int) ([]Post, error)

	// Comments.
	AddComment(ctx context.Context, c Comment) (Comment, error)
	CommentsForPost(ctx context.Context, postID string, limit int) ([]Comment, error)

	// Likes and bookmarks toggle: the returned bool reports the new state.
	ToggleLike(ctx context.Context, postID, userID string) (bool, error)
	ToggleBookmark(ctx context.Context, postID, userID string) (bool, error)
	Bookmarks(ctx context.Context, userID string, limit int) ([]Post, error)

	// Follows.
	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
	Followers(ctx context.Context, userID string, limit int) ([]Profile, error)
	Following(ctx context.Context, userID string, limit int) ([]Profile, error)

	// Notifications.
	AddNotification(ctx context.Context, n Notification) (Notification, error)
	Notifications(ctx context.Context, userID string, limit int) ([]Notification, error)
	MarkNotificationsSeen(ctx context.Context, userID string) (int64, error)

	Close() error
}

// PostOwner resolves a post's author, used when raising notifications.
type PostOwner interface {
	PostAuthor(ctx context.Context, postID string) (string, error)
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func nowOrDefault(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
