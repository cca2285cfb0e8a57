package chat

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pinggo/cmd/internal/ids"
)

// PostgresStore is a Store backed by PostgreSQL.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "pinggo").
// The schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("chat: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("chat: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed Store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "pinggo",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("chat: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

// Append persists one message. The ULID primary key carries the creation
// timestamp, so conversation order is just ID order.
func (s *PostgresStore) Append(ctx context.Context, in AppendInput) (Message, error) {
	if s == nil || s.pool == nil {
		return Message{}, errors.New("chat: nil store")
	}
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	if err := in.normalize(); err != nil {
		return Message{}, err
	}

	id, err := ids.NewULID(in.Now)
	if err != nil {
		return Message{}, err
	}

	messages := pgIdent(s.schema, "messages")

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO `+messages+` (
		     id, sender_id, receiver_id, body, kind, status, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		id, in.SenderID, in.ReceiverID, in.Body, in.Kind, in.Status, in.Now,
	); err != nil {
		return Message{}, err
	}

	return Message{
		ID:         id,
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Body:       in.Body,
		Kind:       in.Kind,
		Status:     in.Status,
		CreatedAt:  in.Now,
		UpdatedAt:  in.Now,
	}, nil
}

// History returns both directions of a conversation ordered by ID ASC, with
// optional paging by AfterID.
func (s *PostgresStore) History(ctx context.Context, in HistoryInput) (HistoryResult, error) {
	if s == nil || s.pool == nil {
		return HistoryResult{}, errors.New("chat: nil store")
	}
	if err := ctx.Err(); err != nil {
		return HistoryResult{}, err
	}
	if err := in.normalize(); err != nil {
		return HistoryResult{}, err
	}

	fetch := in.Limit + 1
	messages := pgIdent(s.schema, "messages")

	var (
		rows pgx.Rows
		err  error
	)
	if in.AfterID == "" {
		rows, err = s.pool.Query(ctx,
			`SELECT id, sender_id, receiver_id, body, kind, status, created_at, updated_at
			   FROM `+messages+`
			  WHERE (sender_id = $1 AND receiver_id = $2)
			     OR (sender_id = $2 AND receiver_id = $1)
			  ORDER BY id ASC
			  LIMIT $3`,
			in.UserA, in.UserB, fetch,
		)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT id, sender_id, receiver_id, body, kind, status, created_at, updated_at
			   FROM `+messages+`
			  WHERE ((sender_id = $1 AND receiver_id = $2)
			     OR  (sender_id = $2 AND receiver_id = $1))
			    AND id > $3
			  ORDER BY id ASC
			  LIMIT $4`,
			in.UserA, in.UserB, in.AfterID, fetch,
		)
	}
	if err != nil {
		return HistoryResult{}, err
	}
	defer rows.Close()

	msgs := make([]Message, 0, fetch)
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.ID,
			&m.SenderID,
			&m.ReceiverID,
			&m.Body,
			&m.Kind,
			&m.Status,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return HistoryResult{}, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return HistoryResult{}, err
	}

	hasMore := len(msgs) > in.Limit
	if hasMore {
		msgs = msgs[:in.Limit]
	}

	return HistoryResult{Messages: msgs, HasMore: hasMore}, nil
}

// MarkRead flips unread messages from partnerID to readerID and reports the
// affected row count.
func (s *PostgresStore) MarkRead(ctx context.Context, readerID, partnerID string) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, errors.New("chat: nil store")
	}
	readerID = strings.TrimSpace(readerID)
	partnerID = strings.TrimSpace(partnerID)
	if readerID == "" || partnerID == "" {
		return 0, errors.New("chat: missing conversation participant")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	messages := pgIdent(s.schema, "messages")

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+messages+`
		    SET status = 'read',
		        updated_at = now()
		  WHERE sender_id = $1
		    AND receiver_id = $2
		    AND status <> 'read'`,
		partnerID, readerID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Store = (*PostgresStore)(nil)

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return pgIdentRE.MatchString(s)
}

func pgIdent(schema, table string) string {
	// pgx.Identifier safely quotes identifiers, preventing SQL injection.
	return pgx.Identifier{schema, table}.Sanitize()
}
