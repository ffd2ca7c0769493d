// internal/database/store.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/scatter/internal/game"
	"github.com/jason-s-yu/scatter/internal/models"
)

// Store is the Postgres projection of rosters, teams and round results.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ game.Store         = (*Store)(nil)
	_ game.RoundRecorder = (*Store)(nil)
)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// UpsertUser inserts the player or refreshes its connection and team.
func (s *Store) UpsertUser(ctx context.Context, key game.PlayerKey, fields game.PlayerFields) error {
	q := `
		INSERT INTO players (name, group_name, conn_id, team)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name, group_name)
		DO UPDATE SET conn_id = EXCLUDED.conn_id, team = EXCLUDED.team, updated_at = NOW()
	`
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, q, key.Name, key.Group, fields.ConnID, fields.Team); err != nil {
			return fmt.Errorf("failed to upsert player %s/%s: %w", key.Group, key.Name, err)
		}
		return nil
	})
}

// DeleteUser removes whichever player is bound to connID.
func (s *Store) DeleteUser(ctx context.Context, connID string) error {
	if connID == "" {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM players WHERE conn_id = $1`, connID); err != nil {
		return fmt.Errorf("failed to delete player on conn %s: %w", connID, err)
	}
	return nil
}

// FindGroup returns the stored teams of a group, or nil if it was never stored.
func (s *Store) FindGroup(ctx context.Context, name string) ([]models.TeamRecord, error) {
	var teams []models.TeamRecord
	err := s.pool.QueryRow(ctx, `SELECT teams FROM groups WHERE name = $1`, name).Scan(&teams)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load group %s: %w", name, err)
	}
	return teams, nil
}

// UpsertGroup replaces the stored team list of a group.
func (s *Store) UpsertGroup(ctx context.Context, name string, teams []models.TeamRecord) error {
	if teams == nil {
		teams = []models.TeamRecord{}
	}
	q := `
		INSERT INTO groups (name, teams)
		VALUES ($1, $2)
		ON CONFLICT (name)
		DO UPDATE SET teams = EXCLUDED.teams, updated_at = NOW()
	`
	if _, err := s.pool.Exec(ctx, q, name, teams); err != nil {
		return fmt.Errorf("failed to upsert group %s: %w", name, err)
	}
	return nil
}

// DeleteTeamsForGroup clears a group's teams and every player's team column.
func (s *Store) DeleteTeamsForGroup(ctx context.Context, name string) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE groups SET teams = '[]'::jsonb, updated_at = NOW() WHERE name = $1`, name); err != nil {
			return fmt.Errorf("failed to clear teams of %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, `UPDATE players SET team = '' WHERE group_name = $1`, name); err != nil {
			return fmt.Errorf("failed to clear player teams of %s: %w", name, err)
		}
		return nil
	})
}

// Player is a stored roster row.
type Player struct {
	Name   string
	Group  string
	ConnID string
	Team   string
}

// PlayersInGroup lists the stored roster of a group by name.
func (s *Store) PlayersInGroup(ctx context.Context, group string) ([]Player, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, group_name, conn_id, team
		FROM players
		WHERE group_name = $1
		ORDER BY name
	`, group)
	if err != nil {
		return nil, fmt.Errorf("failed to list players of %s: %w", group, err)
	}
	defer rows.Close()

	var players []Player
	for rows.Next() {
		var p Player
		if err := rows.Scan(&p.Name, &p.Group, &p.ConnID, &p.Team); err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}
