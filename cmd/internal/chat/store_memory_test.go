package chat

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func mustAppend(t *testing.T, s Store, sender, receiver, body string, now time.Time) Message {
	t.Helper()
	m, err := s.Append(context.Background(), AppendInput{
		SenderID:   sender,
		ReceiverID: receiver,
		Body:       body,
		Now:        now,
	})
	if err != nil {
		t.Fatalf("append %q: %v", body, err)
	}
	return m
}

func TestMemoryStoreAppendDefaults(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	m := mustAppend(t, s, "u1", "u2", "hello", now)

	if m.ID == "" {
		t.Fatalf("append assigned no ID")
	}
	if m.Kind != KindText {
		t.Fatalf("Kind=%q want %q", m.Kind, KindText)
	}
	if m.Status != StatusSent {
		t.Fatalf("Status=%q want %q", m.Status, StatusSent)
	}
	if !m.CreatedAt.Equal(now) || !m.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps=%v/%v want %v", m.CreatedAt, m.UpdatedAt, now)
	}
}

func TestMemoryStoreAppendValidation(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	cases := []struct {
		name string
		in   AppendInput
	}{
		{"missing sender", AppendInput{ReceiverID: "u2", Body: "x"}},
		{"missing receiver", AppendInput{SenderID: "u1", Body: "x"}},
		{"empty body", AppendInput{SenderID: "u1", ReceiverID: "u2"}},
		{"unknown kind", AppendInput{SenderID: "u1", ReceiverID: "u2", Body: "x", Kind: "gif"}},
		{"unknown status", AppendInput{SenderID: "u1", ReceiverID: "u2", Body: "x", Status: "queued"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := s.Append(ctx, tc.in); err == nil {
				t.Fatalf("Append accepted invalid input")
			}
		})
	}
}

func TestMemoryStoreHistoryBothDirections(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mustAppend(t, s, "u1", "u2", "one", base)
	mustAppend(t, s, "u2", "u1", "two", base.Add(time.Second))
	mustAppend(t, s, "u1", "u2", "three", base.Add(2*time.Second))
	// A different conversation must not leak in.
	mustAppend(t, s, "u1", "u3", "other", base.Add(3*time.Second))

	for _, pair := range [][2]string{{"u1", "u2"}, {"u2", "u1"}} {
		out, err := s.History(context.Background(), HistoryInput{UserA: pair[0], UserB: pair[1]})
		if err != nil {
			t.Fatalf("history %v: %v", pair, err)
		}
		if len(out.Messages) != 3 {
			t.Fatalf("history %v: got %d messages, want 3", pair, len(out.Messages))
		}
		for i, want := range []string{"one", "two", "three"} {
			if out.Messages[i].Body != want {
				t.Fatalf("history %v: message %d=%q want %q", pair, i, out.Messages[i].Body, want)
			}
		}
		if out.HasMore {
			t.Fatalf("history %v: HasMore=true want false", pair)
		}
	}
}

func TestMemoryStoreHistoryPaging(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		mustAppend(t, s, "u1", "u2", fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Second))
	}

	first, err := s.History(context.Background(), HistoryInput{UserA: "u1", UserB: "u2", Limit: 2})
	if err != nil {
		t.Fatalf("history page 1: %v", err)
	}
	if len(first.Messages) != 2 || !first.HasMore {
		t.Fatalf("page 1: len=%d hasMore=%v, want 2/true", len(first.Messages), first.HasMore)
	}

	second, err := s.History(context.Background(), HistoryInput{
		UserA:   "u1",
		UserB:   "u2",
		AfterID: first.Messages[len(first.Messages)-1].ID,
		Limit:   10,
	})
	if err != nil {
		t.Fatalf("history page 2: %v", err)
	}
	if len(second.Messages) != 3 || second.HasMore {
		t.Fatalf("page 2: len=%d hasMore=%v, want 3/false", len(second.Messages), second.HasMore)
	}
	if second.Messages[0].Body != "m2" {
		t.Fatalf("page 2 starts at %q want m2", second.Messages[0].Body)
	}
}

func TestMemoryStoreMarkRead(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mustAppend(t, s, "u2", "u1", "unread one", base)
	mustAppend(t, s, "u2", "u1", "unread two", base.Add(time.Second))
	mustAppend(t, s, "u1", "u2", "mine", base.Add(2*time.Second))

	n, err := s.MarkRead(context.Background(), "u1", "u2")
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n != 2 {
		t.Fatalf("MarkRead updated %d rows, want 2", n)
	}

	out, err := s.History(context.Background(), HistoryInput{UserA: "u1", UserB: "u2"})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	for _, m := range out.Messages {
		want := StatusRead
		if m.SenderID == "u1" {
			// The reader's own messages stay untouched.
			want = StatusSent
		}
		if m.Status != want {
			t.Fatalf("message %q status=%q want %q", m.Body, m.Status, want)
		}
	}

	// Second pass is a no-op.
	n, err = s.MarkRead(context.Background(), "u1", "u2")
	if err != nil {
		t.Fatalf("mark read again: %v", err)
	}
	if n != 0 {
		t.Fatalf("second MarkRead updated %d rows, want 0", n)
	}
}
