package store

import (
	"context"
	"fmt"
	"time"
)

// Message is one immutable chat entry in the durable log.
type Message struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// AppendMessage writes one message to the log.
func (s *Store) AppendMessage(ctx context.Context, m Message) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `INSERT INTO messages (id, room, author, text, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.ExecContext(ctx, query, m.ID, m.Room, m.Author, m.Text, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// QueryMessages returns the most recent limit messages of a room in
// chronological order.
func (s *Store) QueryMessages(ctx context.Context, room string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT id, room, author, text, created_at FROM messages
		WHERE room = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, room, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Room, &m.Author, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// newest-first from the database, oldest-first for replay
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
