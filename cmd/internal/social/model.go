// Package social is Pinggo's product surface around the chat core: profiles,
// posts, comments, likes, bookmarks, follows, and notifications.
package social

import (
	"errors"
	"strings"
	"time"
)

// Post kinds. Stories and reels share the post table; the kind drives how the
// client renders them.
const (
	PostKindPost  = "post"
	PostKindStory = "story"
	PostKindReel  = "reel"
)

// Notification kinds.
const (
	NotifyLike    = "like"
	NotifyComment = "comment"
	NotifyFollow  = "follow"
	NotifyMessage = "message"
)

// Profile is a user's public identity. The account itself lives with the
// external identity provider; this row only carries presentation data.
type Profile struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	FullName  string    `json:"fullName"`
	Bio       string    `json:"bio"`
	AvatarURL string    `json:"avatarUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p *Profile) normalize() error {
	p.UserID = strings.TrimSpace(p.UserID)
	p.Username = strings.TrimSpace(p.Username)
	if p.UserID == "" {
		return errors.New("social: missing user id")
	}
	if p.Username == "" {
		return errors.New("social: missing username")
	}
	return nil
}

// Post is one piece of content. MediaURL points at the external blob
// provider; this server never stores the bytes.
type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Kind      string    `json:"kind"`
	Caption   string    `json:"caption"`
	MediaURL  string    `json:"mediaUrl"`
	CreatedAt time.Time `json:"createdAt"`

	// Derived counters filled in by reads.
	LikeCount    int  `json:"likeCount"`
	CommentCount int  `json:"commentCount"`
	Liked        bool `json:"liked"`
}

func validPostKind(k string) bool {
	switch k {
	case PostKindPost, PostKindStory, PostKindReel:
		return true
	}
	return false
}

// Comment is one comment on a post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	AuthorID  string    `json:"authorId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notification is one item in a user's notification tray. ActorID is who
// triggered it; PostID is set for like/comment kinds.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ActorID   string    `json:"actorId"`
	Kind      string    `json:"kind"`
	PostID    string    `json:"postId,omitempty"`
	Seen      bool      `json:"seen"`
	CreatedAt time.Time `json:"createdAt"`
}

func validNotifyKind(k string) bool {
	switch k {
	case NotifyLike, NotifyComment, NotifyFollow, NotifyMessage:
		return true
	}
	return false
}
