package store

import (
	"context"
	"fmt"
)

// RankingEntry is one row of the points board.
type RankingEntry struct {
	Nick   string `json:"nick"`
	Points int    `json:"points"`
}

// UpsertRankingScore sets the score for a nick, inserting the row on
// first update.
func (s *Store) UpsertRankingScore(ctx context.Context, nick string, points int) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `INSERT INTO ranking (nick, points) VALUES ($1, $2)
		ON CONFLICT (nick) DO UPDATE SET points = EXCLUDED.points`
	_, err := s.db.ExecContext(ctx, query, nick, points)
	if err != nil {
		return fmt.Errorf("upsert ranking: %w", err)
	}
	return nil
}

// TopRanking returns up to limit entries ordered by points, best first.
func (s *Store) TopRanking(ctx context.Context, limit int) ([]RankingEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT nick, points FROM ranking ORDER BY points DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query ranking: %w", err)
	}
	defer rows.Close()

	var entries []RankingEntry
	for rows.Next() {
		var e RankingEntry
		if err := rows.Scan(&e.Nick, &e.Points); err != nil {
			return nil, fmt.Errorf("scan ranking: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
