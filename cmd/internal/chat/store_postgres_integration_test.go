package chat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Integration tests are enabled when PINGGO_TEST_DATABASE_URL is set.
// This keeps local "go test ./..." fast & deterministic without requiring Postgres.

func TestPostgresStore_AppendHistory_RoundTrip(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplySchema(t, pool, schema)

	store := mustNewStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	u1 := "it-u1-" + randHex(4)
	u2 := "it-u2-" + randHex(4)

	now := time.Now().UTC().Truncate(time.Millisecond)

	sent, err := store.Append(ctx, AppendInput{
		SenderID:   u1,
		ReceiverID: u2,
		Body:       "hello",
		Now:        now,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if sent.ID == "" || sent.Status != StatusSent || sent.Kind != KindText {
		t.Fatalf("append result=%+v", sent)
	}

	reply, err := store.Append(ctx, AppendInput{
		SenderID:   u2,
		ReceiverID: u1,
		Body:       "hey back",
		Kind:       KindText,
		Status:     StatusDelivered,
		Now:        now.Add(time.Second),
	})
	if err != nil {
		t.Fatalf("append reply: %v", err)
	}

	out, err := store.History(ctx, HistoryInput{UserA: u1, UserB: u2})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(out.Messages) != 2 {
		t.Fatalf("history len=%d want 2", len(out.Messages))
	}
	if out.Messages[0].ID != sent.ID || out.Messages[1].ID != reply.ID {
		t.Fatalf("history order: got [%s, %s] want [%s, %s]",
			out.Messages[0].ID, out.Messages[1].ID, sent.ID, reply.ID)
	}
	if !out.Messages[0].CreatedAt.Equal(now) {
		t.Fatalf("created_at=%v want %v", out.Messages[0].CreatedAt, now)
	}
}

func TestPostgresStore_History_Paging(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplySchema(t, pool, schema)

	store := mustNewStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	u1 := "it-u1-" + randHex(4)
	u2 := "it-u2-" + randHex(4)
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i := 0; i < 3; i++ {
		if _, err := store.Append(ctx, AppendInput{
			SenderID:   u1,
			ReceiverID: u2,
			Body:       fmt.Sprintf("m%d", i),
			Now:        base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	first, err := store.History(ctx, HistoryInput{UserA: u1, UserB: u2, Limit: 2})
	if err != nil {
		t.Fatalf("history page 1: %v", err)
	}
	if len(first.Messages) != 2 || !first.HasMore {
		t.Fatalf("page 1: len=%d hasMore=%v want 2/true", len(first.Messages), first.HasMore)
	}

	after := first.Messages[len(first.Messages)-1].ID
	second, err := store.History(ctx, HistoryInput{UserA: u1, UserB: u2, AfterID: after, Limit: 50})
	if err != nil {
		t.Fatalf("history page 2: %v", err)
	}
	if len(second.Messages) != 1 || second.HasMore {
		t.Fatalf("page 2: len=%d hasMore=%v want 1/false", len(second.Messages), second.HasMore)
	}
	if second.Messages[0].Body != "m2" {
		t.Fatalf("page 2 body=%q want m2", second.Messages[0].Body)
	}
}

func TestPostgresStore_MarkRead(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplySchema(t, pool, schema)

	store := mustNewStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	u1 := "it-u1-" + randHex(4)
	u2 := "it-u2-" + randHex(4)
	now := time.Now().UTC().Truncate(time.Millisecond)

	for i := 0; i < 2; i++ {
		if _, err := store.Append(ctx, AppendInput{
			SenderID:   u2,
			ReceiverID: u1,
			Body:       fmt.Sprintf("unread %d", i),
			Now:        now.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if _, err := store.Append(ctx, AppendInput{
		SenderID:   u1,
		ReceiverID: u2,
		Body:       "mine",
		Now:        now.Add(2 * time.Second),
	}); err != nil {
		t.Fatalf("append own: %v", err)
	}

	n, err := store.MarkRead(ctx, u1, u2)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n != 2 {
		t.Fatalf("MarkRead updated %d rows, want 2", n)
	}

	out, err := store.History(ctx, HistoryInput{UserA: u1, UserB: u2})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	for _, m := range out.Messages {
		want := StatusRead
		if m.SenderID == u1 {
			want = StatusSent
		}
		if m.Status != want {
			t.Fatalf("message %q status=%q want %q", m.Body, m.Status, want)
		}
	}
}

// ---- test helpers ----

func randHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func mustNewStore(t *testing.T, pool *pgxpool.Pool, schema string) *PostgresStore {
	t.Helper()

	st, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new postgres store: %v", err)
	}
	return st
}

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("PINGGO_TEST_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: PINGGO_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse PINGGO_TEST_DATABASE_URL: %v", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	return pool
}

func mustCreateTestSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	schema := "pinggo_it_" + randHex(6)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, `CREATE SCHEMA `+pgx.Identifier{schema}.Sanitize()); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return schema
}

func mustDropSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
}

func mustApplySchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	messages := pgIdent(schema, "messages")

	// Minimal schema required by PostgresStore.
	schemaSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id          TEXT PRIMARY KEY,
  sender_id   TEXT NOT NULL,
  receiver_id TEXT NOT NULL,
  body        TEXT NOT NULL,
  kind        TEXT NOT NULL CHECK (kind IN ('text', 'image', 'video', 'audio', 'file')),
  status      TEXT NOT NULL CHECK (status IN ('sent', 'delivered', 'read')),
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),

  CONSTRAINT chk_messages_body_len CHECK (char_length(body) > 0)
);

CREATE INDEX IF NOT EXISTS idx_messages_pair_id
  ON %s (sender_id, receiver_id, id);
`, messages, messages)

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
}
