package social

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pinggo/cmd/internal/ids"
)

// PostgresStore is a Store backed by PostgreSQL.
//
// Ownership model mirrors the chat store: the pgx pool belongs to the caller
// and Close() is a no-op.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "pinggo").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("social: empty schema")
		}
		if !pgIdentRE.MatchString(schema) {
			return errors.New("social: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed Store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "pinggo"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("social: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func (s *PostgresStore) table(name string) string {
	// pgx.Identifier safely quotes identifiers, preventing SQL injection.
	return pgx.Identifier{s.schema, name}.Sanitize()
}

// ---- profiles ----

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, username, full_name, bio, avatar_url, created_at, updated_at
		   FROM `+s.table("profiles")+`
		  WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.Username, &p.FullName, &p.Bio, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *PostgresStore) UpsertProfile(ctx context.Context, p Profile) (Profile, error) {
	if err := p.normalize(); err != nil {
		return Profile{}, err
	}
	now := time.Now().UTC()

	err := s.pool.QueryRow(ctx,
		`INSERT INTO `+s.table("profiles")+` (user_id, username, full_name, bio, avatar_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 ON CONFLICT (user_id) DO UPDATE
		    SET username = EXCLUDED.username,
		        full_name = EXCLUDED.full_name,
		        bio = EXCLUDED.bio,
		        avatar_url = EXCLUDED.avatar_url,
		        updated_at = EXCLUDED.updated_at
		 RETURNING user_id, username, full_name, bio, avatar_url, created_at, updated_at`,
		p.UserID, p.Username, p.FullName, p.Bio, p.AvatarURL, now,
	).Scan(&p.UserID, &p.Username, &p.FullName, &p.Bio, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *PostgresStore) SuggestedUsers(ctx context.Context, userID string, limit int) ([]Profile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.user_id, p.username, p.full_name, p.bio, p.avatar_url, p.created_at, p.updated_at
		   FROM `+s.table("profiles")+` p
		  WHERE p.user_id <> $1
		    AND NOT EXISTS (
		          SELECT 1 FROM `+s.table("follows")+` f
		           WHERE f.follower_id = $1 AND f.followee_id = p.user_id)
		  ORDER BY p.created_at DESC
		  LIMIT $2`,
		userID, clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	return scanProfiles(rows)
}

// ---- posts ----

func (s *PostgresStore) CreatePost(ctx context.Context, p Post) (Post, error) {
	p.AuthorID = strings.TrimSpace(p.AuthorID)
	if p.AuthorID == "" {
		return Post{}, errors.New("social: missing author")
	}
	if p.Kind == "" {
		p.Kind = PostKindPost
	}
	if !validPostKind(p.Kind) {
		return Post{}, errors.New("social: unknown post kind")
	}
	if p.Caption == "" && p.MediaURL == "" {
		return Post{}, errors.New("social: empty post")
	}
	p.CreatedAt = nowOrDefault(p.CreatedAt)

	id, err := ids.NewULID(p.CreatedAt)
	if err != nil {
		return Post{}, err
	}
	p.ID = id

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table("posts")+` (id, author_id, kind, caption, media_url, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.AuthorID, p.Kind, p.Caption, p.MediaURL, p.CreatedAt,
	); err != nil {
		return Post{}, err
	}
	return p, nil
}

func (s *PostgresStore) DeletePost(ctx context.Context, postID, requesterID string) error {
	author, err := s.PostAuthor(ctx, postID)
	if err != nil {
		return err
	}
	if author != requesterID {
		return ErrForbidden
	}
	_, err = s.pool.Exec(ctx, `DELETE FROM `+s.table("posts")+` WHERE id = $1`, postID)
	return err
}

// PostAuthor resolves a post's author.
func (s *PostgresStore) PostAuthor(ctx context.Context, postID string) (string, error) {
	var author string
	err := s.pool.QueryRow(ctx,
		`SELECT author_id FROM `+s.table("posts")+` WHERE id = $1`, postID,
	).Scan(&author)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return author, nil
}

const postColumns = `p.id, p.author_id, p.kind, p.caption, p.media_url, p.created_at,
	(SELECT count(*) FROM %s l WHERE l.post_id = p.id) AS like_count,
	(SELECT count(*) FROM %s c WHERE c.post_id = p.id) AS comment_count,
	EXISTS (SELECT 1 FROM %s l2 WHERE l2.post_id = p.id AND l2.user_id = $1) AS liked`

func (s *PostgresStore) postSelect() string {
	return fmt.Sprintf(postColumns, s.table("likes"), s.table("comments"), s.table("likes"))
}

func (s *PostgresStore) PostsByAuthor(ctx context.Context, viewerID, authorID string, limit int) ([]Post, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+s.postSelect()+`
		   FROM `+s.table("posts")+` p
		  WHERE p.author_id = $2
		  ORDER BY p.id DESC
		  LIMIT $3`,
		viewerID, authorID, clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	return scanPosts(rows)
}

// Feed returns the newest posts from the viewer and everyone they follow.
func (s *PostgresStore) Feed(ctx context.Context, viewerID string, limit int) ([]Post, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+s.postSelect()+`
		   FROM `+s.table("posts")+` p
		  WHERE p.author_id = $1
		     OR p.author_id IN (
		          SELECT followee_id FROM `+s.table("follows")+` WHERE follower_id = $1)
		  ORDER BY p.id DESC
		  LIMIT $2`,
		viewerID, clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	return scanPosts(rows)
}

// ---- comments ----

func (s *PostgresStore) AddComment(ctx context.Context, c Comment) (Comment, error) {
	c.PostID = strings.TrimSpace(c.PostID)
	c.AuthorID = strings.TrimSpace(c.AuthorID)
	c.Body = strings.TrimSpace(c.Body)
	if c.PostID == "" || c.AuthorID == "" || c.Body == "" {
		return Comment{}, errors.New("social: incomplete comment")
	}
	c.CreatedAt = nowOrDefault(c.CreatedAt)

	id, err := ids.NewULID(c.CreatedAt)
	if err != nil {
		return Comment{}, err
	}
	c.ID = id

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table("comments")+` (id, post_id, author_id, body, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.PostID, c.AuthorID, c.Body, c.CreatedAt,
	); err != nil {
		return Comment{}, err
	}
	return c, nil
}

func (s *PostgresStore) CommentsForPost(ctx context.Context, postID string, limit int) ([]Comment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, post_id, author_id, body, created_at
		   FROM `+s.table("comments")+`
		  WHERE post_id = $1
		  ORDER BY id ASC
		  LIMIT $2`,
		postID, clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ---- likes and bookmarks ----

func (s *PostgresStore) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	return s.toggle(ctx, s.table("likes"), postID, userID)
}

func (s *PostgresStore) ToggleBookmark(ctx context.Context, postID, userID string) (bool, error) {
	return s.toggle(ctx, s.table("bookmarks"), postID, userID)
}

// toggle inserts the (post, user) row and reports true; if it already
// existed, it is removed instead and false is reported.
func (s *PostgresStore) toggle(ctx context.Context, table, postID, userID string) (bool, error) {
	if postID == "" || userID == "" {
		return false, errors.New("social: missing post or user")
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO `+table+` (post_id, user_id, created_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (post_id, user_id) DO NOTHING`,
		postID, userID,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM `+table+` WHERE post_id = $1 AND user_id = $2`,
		postID, userID,
	); err != nil {
		return false, err
	}
	return false, nil
}

func (s *PostgresStore) Bookmarks(ctx context.Context, userID string, limit int) ([]Post, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+s.postSelect()+`
		   FROM `+s.table("posts")+` p
		   JOIN `+s.table("bookmarks")+` b ON b.post_id = p.id
		  WHERE b.user_id = $1
		  ORDER BY b.created_at DESC
		  LIMIT $2`,
		userID, clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	return scanPosts(rows)
}

// ---- follows ----

func (s *PostgresStore) Follow(ctx context.Context, followerID, followeeID string) error {
	if followerID == "" || followeeID == "" || followerID == followeeID {
		return errors.New("social: invalid follow pair")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table("follows")+` (follower_id, followee_id, created_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (follower_id, followee_id) DO NOTHING`,
		followerID, followeeID,
	)
	return err
}

func (s *PostgresStore) Unfollow(ctx context.Context, followerID, followeeID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM `+s.table("follows")+` WHERE follower_id = $1 AND followee_id = $2`,
		followerID, followeeID,
	)
	return err
}

func (s *PostgresStore) Followers(ctx context.Context, userID string, limit int) ([]Profile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.user_id, p.username, p.full_name, p.bio, p.avatar_url, p.created_at, p.updated_at
		   FROM `+s.table("profiles")+` p
		   JOIN `+s.table("follows")+` f ON f.follower_id = p.user_id
		  WHERE f.followee_id = $1
		  ORDER BY f.created_at DESC
		  LIMIT $2`,
		userID, clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	return scanProfiles(rows)
}

func (s *PostgresStore) Following(ctx context.Context, userID string, limit int) ([]Profile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.user_id, p.username, p.full_name, p.bio, p.avatar_url, p.created_at, p.updated_at
		   FROM `+s.table("profiles")+` p
		   JOIN `+s.table("follows")+` f ON f.followee_id = p.user_id
		  WHERE f.follower_id = $1
		  ORDER BY f.created_at DESC
		  LIMIT $2`,
		userID, clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	return scanProfiles(rows)
}

// ---- notifications ----

func (s *PostgresStore) AddNotification(ctx context.Context, n Notification) (Notification, error) {
	n.UserID = strings.TrimSpace(n.UserID)
	n.ActorID = strings.TrimSpace(n.ActorID)
	if n.UserID == "" || n.ActorID == "" {
		return Notification{}, errors.New("social: missing notification user or actor")
	}
	if !validNotifyKind(n.Kind) {
		return Notification{}, errors.New("social: unknown notification kind")
	}
	// Self-actions never notify.
	if n.UserID == n.ActorID {
		return Notification{}, nil
	}
	n.CreatedAt = nowOrDefault(n.CreatedAt)

	id, err := ids.NewULID(n.CreatedAt)
	if err != nil {
		return Notification{}, err
	}
	n.ID = id

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table("notifications")+` (id, user_id, actor_id, kind, post_id, seen, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), FALSE, $6)`,
		n.ID, n.UserID, n.ActorID, n.Kind, n.PostID, n.CreatedAt,
	); err != nil {
		return Notification{}, err
	}
	return n, nil
}

func (s *PostgresStore) Notifications(ctx context.Context, userID string, limit int) ([]Notification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, actor_id, kind, COALESCE(post_id, ''), seen, created_at
		   FROM `+s.table("notifications")+`
		  WHERE user_id = $1
		  ORDER BY id DESC
		  LIMIT $2`,
		userID, clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.ActorID, &n.Kind, &n.PostID, &n.Seen, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkNotificationsSeen(ctx context.Context, userID string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+s.table("notifications")+` SET seen = TRUE WHERE user_id = $1 AND NOT seen`,
		userID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ---- scan helpers ----

func scanProfiles(rows pgx.Rows) ([]Profile, error) {
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.UserID, &p.Username, &p.FullName, &p.Bio, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPosts(rows pgx.Rows) ([]Post, error) {
	defer rows.Close()

	var out []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.Kind, &p.Caption, &p.MediaURL, &p.CreatedAt,
			&p.LikeCount, &p.CommentCount, &p.Liked); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

var (
	_ Store     = (*PostgresStore)(nil)
	_ PostOwner = (*PostgresStore)(nil)
)
