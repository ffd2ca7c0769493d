// internal/database/rounds.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/scatter/internal/models"
)

const insertRoundQ = `
	INSERT INTO round_results (id, group_name, letter, categories, answers, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO NOTHING
`

// RecordRound stores one round result directly.
func (s *Store) RecordRound(ctx context.Context, rec models.RoundRecord) error {
	return s.InsertRounds(ctx, []models.RoundRecord{rec})
}

// InsertRounds stores a batch of round results in a single transaction.
// Records already stored are skipped, so a redelivered batch is harmless.
func (s *Store) InsertRounds(ctx context.Context, recs []models.RoundRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range recs {
			categories := rec.Categories
			if categories == nil {
				categories = []string{}
			}
			answers := rec.Answers
			if answers == nil {
				answers = map[string][]models.FinalAnswer{}
			}
			if _, err := tx.Exec(ctx, insertRoundQ,
				rec.ID, rec.Group, rec.Letter, categories, answers, rec.FinishedAt,
			); err != nil {
				return fmt.Errorf("failed to insert round %s: %w", rec.ID, err)
			}
		}
		return nil
	})
}

// RecentRounds returns up to limit of a group's rounds, newest first.
func (s *Store) RecentRounds(ctx context.Context, group string, limit int) ([]models.RoundRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, group_name, letter, categories, answers, finished_at
		FROM round_results
		WHERE group_name = $1
		ORDER BY finished_at DESC
		LIMIT $2
	`, group, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds of %s: %w", group, err)
	}
	defer rows.Close()

	var out []models.RoundRecord
	for rows.Next() {
		var rec models.RoundRecord
		if err := rows.Scan(&rec.ID, &rec.Group, &rec.Letter, &rec.Categories, &rec.Answers, &rec.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
