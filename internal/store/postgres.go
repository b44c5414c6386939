package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/realtime-stack/internal/domain"
)

// Client wraps the Postgres connection pool.
type Client struct {
	pool *pgxpool.Pool
}

// NewClient establishes a connection pool and verifies connectivity.
func NewClient(ctx context.Context, databaseURL string) (*Client, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Client{pool: pool}, nil
}

func (c *Client) Close() {
	c.pool.Close()
}

// MessageRepository persists chat messages.
type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(client *Client) *MessageRepository {
	return &MessageRepository{pool: client.pool}
}

// SaveMessage inserts one row per record. The text column is extracted
// from the payload when present, NULL otherwise; the full payload is kept
// as JSONB alongside it. Each insert is independently keyed, so inserts
// for different records may complete in any order.
func (r *MessageRepository) SaveMessage(ctx context.Context, record *domain.PersistRecord) error {
	query := `
		INSERT INTO messages (room_id, user_id, text, payload, created_at)
		VALUES ($1, $2, $3, $4, to_timestamp($5/1000.0))`

	_, err := r.pool.Exec(ctx, query,
		record.RoomID,
		record.From,
		extractText(record.Payload),
		[]byte(record.Payload),
		record.Ts,
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

// extractText pulls the optional text field out of a chat payload.
func extractText(payload json.RawMessage) *string {
	if len(payload) == 0 {
		return nil
	}
	var body struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil
	}
	return body.Text
}
