package social

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Integration tests are enabled when PINGGO_TEST_DATABASE_URL is set.

func TestPostgresStore_Profiles(t *testing.T) {
	t.Parallel()

	store, cleanup := mustOpenStore(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	u1 := "it-" + randHex(4)

	p, err := store.UpsertProfile(ctx, Profile{UserID: u1, Username: "navid", Bio: "hi"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not set: %+v", p)
	}

	// Update keeps created_at.
	p2, err := store.UpsertProfile(ctx, Profile{UserID: u1, Username: "navid", Bio: "updated"})
	if err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	if !p2.CreatedAt.Equal(p.CreatedAt) {
		t.Fatalf("created_at changed on update: %v -> %v", p.CreatedAt, p2.CreatedAt)
	}

	got, err := store.GetProfile(ctx, u1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Bio != "updated" {
		t.Fatalf("bio=%q want updated", got.Bio)
	}

	if _, err := store.GetProfile(ctx, "it-missing-"+randHex(4)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing profile err=%v want ErrNotFound", err)
	}
}

func TestPostgresStore_FeedAndFollows(t *testing.T) {
	t.Parallel()

	store, cleanup := mustOpenStore(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	viewer := "it-v-" + randHex(4)
	followed := "it-f-" + randHex(4)
	stranger := "it-s-" + randHex(4)

	for _, u := range []string{viewer, followed, stranger} {
		if _, err := store.UpsertProfile(ctx, Profile{UserID: u, Username: u}); err != nil {
			t.Fatalf("seed profile %s: %v", u, err)
		}
	}
	if err := store.Follow(ctx, viewer, followed); err != nil {
		t.Fatalf("follow: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, author := range []string{viewer, followed, stranger} {
		if _, err := store.CreatePost(ctx, Post{
			AuthorID:  author,
			Caption:   "post by " + author,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("create post %s: %v", author, err)
		}
	}

	feed, err := store.Feed(ctx, viewer, 0)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(feed) != 2 {
		t.Fatalf("feed len=%d want 2", len(feed))
	}
	// Newest first, strangers excluded.
	if feed[0].AuthorID != followed || feed[1].AuthorID != viewer {
		t.Fatalf("feed order: [%s, %s]", feed[0].AuthorID, feed[1].AuthorID)
	}

	// Suggested excludes self and already-followed.
	suggested, err := store.SuggestedUsers(ctx, viewer, 0)
	if err != nil {
		t.Fatalf("suggested: %v", err)
	}
	for _, p := range suggested {
		if p.UserID == viewer || p.UserID == followed {
			t.Fatalf("suggested leaked %s", p.UserID)
		}
	}

	following, err := store.Following(ctx, viewer, 0)
	if err != nil {
		t.Fatalf("following: %v", err)
	}
	if len(following) != 1 || following[0].UserID != followed {
		t.Fatalf("following=%+v", following)
	}

	followers, err := store.Followers(ctx, followed, 0)
	if err != nil {
		t.Fatalf("followers: %v", err)
	}
	if len(followers) != 1 || followers[0].UserID != viewer {
		t.Fatalf("followers=%+v", followers)
	}
}

func TestPostgresStore_LikesCommentsBookmarks(t *testing.T) {
	t.Parallel()

	store, cleanup := mustOpenStore(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	author := "it-a-" + randHex(4)
	fan := "it-b-" + randHex(4)

	post, err := store.CreatePost(ctx, Post{AuthorID: author, Caption: "pic"})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	liked, err := store.ToggleLike(ctx, post.ID, fan)
	if err != nil || !liked {
		t.Fatalf("like: liked=%v err=%v", liked, err)
	}
	liked, err = store.ToggleLike(ctx, post.ID, fan)
	if err != nil || liked {
		t.Fatalf("unlike: liked=%v err=%v", liked, err)
	}
	// Like again so counters are visible below.
	if _, err := store.ToggleLike(ctx, post.ID, fan); err != nil {
		t.Fatalf("re-like: %v", err)
	}

	if _, err := store.AddComment(ctx, Comment{PostID: post.ID, AuthorID: fan, Body: "nice"}); err != nil {
		t.Fatalf("comment: %v", err)
	}

	posts, err := store.PostsByAuthor(ctx, fan, author, 0)
	if err != nil {
		t.Fatalf("posts by author: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("posts len=%d want 1", len(posts))
	}
	if posts[0].LikeCount != 1 || posts[0].CommentCount != 1 || !posts[0].Liked {
		t.Fatalf("counters=%+v", posts[0])
	}

	if _, err := store.ToggleBookmark(ctx, post.ID, fan); err != nil {
		t.Fatalf("bookmark: %v", err)
	}
	marks, err := store.Bookmarks(ctx, fan, 0)
	if err != nil {
		t.Fatalf("bookmarks: %v", err)
	}
	if len(marks) != 1 || marks[0].ID != post.ID {
		t.Fatalf("bookmarks=%+v", marks)
	}

	// Only the author may delete.
	if err := store.DeletePost(ctx, post.ID, fan); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign delete err=%v want ErrForbidden", err)
	}
	if err := store.DeletePost(ctx, post.ID, author); err != nil {
		t.Fatalf("own delete: %v", err)
	}
}

func TestPostgresStore_Notifications(t *testing.T) {
	t.Parallel()

	store, cleanup := mustOpenStore(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	u1 := "it-n1-" + randHex(4)
	u2 := "it-n2-" + randHex(4)

	if _, err := store.AddNotification(ctx, Notification{UserID: u1, ActorID: u2, Kind: NotifyMessage}); err != nil {
		t.Fatalf("add: %v", err)
	}
	// Self-notifications are silently skipped.
	if n, err := store.AddNotification(ctx, Notification{UserID: u1, ActorID: u1, Kind: NotifyLike}); err != nil || n.ID != "" {
		t.Fatalf("self-notify: n=%+v err=%v", n, err)
	}

	items, err := store.Notifications(ctx, u1, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].Seen {
		t.Fatalf("items=%+v", items)
	}

	n, err := store.MarkNotificationsSeen(ctx, u1)
	if err != nil || n != 1 {
		t.Fatalf("seen: n=%d err=%v", n, err)
	}
}

// ---- test helpers ----

func randHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func mustOpenStore(t *testing.T) (*PostgresStore, func()) {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("PINGGO_TEST_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: PINGGO_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, raw)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	schema := "pinggo_it_" + randHex(6)
	if _, err := pool.Exec(ctx, `CREATE SCHEMA `+pgx.Identifier{schema}.Sanitize()); err != nil {
		pool.Close()
		t.Fatalf("create schema: %v", err)
	}
	applySocialSchema(t, pool, schema)

	store, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		pool.Close()
		t.Fatalf("new store: %v", err)
	}

	cleanup := func() {
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dropCancel()
		_, _ = pool.Exec(dropCtx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
		pool.Close()
	}
	return store, cleanup
}

func applySocialSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	tbl := func(name string) string { return pgx.Identifier{schema, name}.Sanitize() }

	// Minimal schema required by PostgresStore.
	schemaSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  user_id    TEXT PRIMARY KEY,
  username   TEXT NOT NULL,
  full_name  TEXT NOT NULL DEFAULT '',
  bio        TEXT NOT NULL DEFAULT '',
  avatar_url TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS %s (
  id         TEXT PRIMARY KEY,
  author_id  TEXT NOT NULL,
  kind       TEXT NOT NULL CHECK (kind IN ('post', 'story', 'reel')),
  caption    TEXT NOT NULL DEFAULT '',
  media_url  TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS %s (
  id         TEXT PRIMARY KEY,
  post_id    TEXT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
  author_id  TEXT NOT NULL,
  body       TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS %s (
  post_id    TEXT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
  user_id    TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (post_id, user_id)
);

CREATE TABLE IF NOT EXISTS %s (
  post_id    TEXT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
  user_id    TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (post_id, user_id)
);

CREATE TABLE IF NOT EXISTS %s (
  follower_id TEXT NOT NULL,
  followee_id TEXT NOT NULL,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (follower_id, followee_id)
);

CREATE TABLE IF NOT EXISTS %s (
  id         TEXT PRIMARY KEY,
  user_id    TEXT NOT NULL,
  actor_id   TEXT NOT NULL,
  kind       TEXT NOT NULL CHECK (kind IN ('like', 'comment', 'follow', 'message')),
  post_id    TEXT,
  seen       BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`,
		tbl("profiles"),
		tbl("posts"),
		tbl("comments"), tbl("posts"),
		tbl("likes"), tbl("posts"),
		tbl("bookmarks"), tbl("posts"),
		tbl("follows"),
		tbl("notifications"),
	)

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
}
