// internal/database/store_test.go
package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/scatter/internal/game"
	"github.com/jason-s-yu/scatter/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container test skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("scatter"),
		postgres.WithUsername("scatter"),
		postgres.WithPassword("scatter"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := ConnectDB(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	// a second run must be a no-op
	require.NoError(t, Migrate(ctx, pool))
	return NewStore(pool)
}

func TestStorePlayersAndTeams(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	key := game.PlayerKey{Name: "ann", Group: "party"}
	require.NoError(t, s.UpsertUser(ctx, key, game.PlayerFields{ConnID: "c1"}))
	require.NoError(t, s.UpsertUser(ctx, key, game.PlayerFields{ConnID: "c2", Team: "Purple"}))
	require.NoError(t, s.UpsertUser(ctx, game.PlayerKey{Name: "bob", Group: "party"}, game.PlayerFields{ConnID: "c3", Team: "Green"}))

	players, err := s.PlayersInGroup(ctx, "party")
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Equal(t, Player{Name: "ann", Group: "party", ConnID: "c2", Team: "Purple"}, players[0])

	teams, err := s.FindGroup(ctx, "party")
	require.NoError(t, err)
	assert.Nil(t, teams, "unknown group")

	stored := []models.TeamRecord{
		{Name: "Purple", Members: []string{"ann"}, Scores: []int{3, 0}},
		{Name: "Green", Members: []string{"bob"}, Scores: []int{0}},
	}
	require.NoError(t, s.UpsertGroup(ctx, "party", stored))
	teams, err = s.FindGroup(ctx, "party")
	require.NoError(t, err)
	assert.Equal(t, stored, teams)

	require.NoError(t, s.DeleteTeamsForGroup(ctx, "party"))
	teams, err = s.FindGroup(ctx, "party")
	require.NoError(t, err)
	assert.Empty(t, teams)
	players, err = s.PlayersInGroup(ctx, "party")
	require.NoError(t, err)
	for _, p := range players {
		assert.Empty(t, p.Team)
	}

	require.NoError(t, s.DeleteUser(ctx, "c3"))
	players, err = s.PlayersInGroup(ctx, "party")
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, "ann", players[0].Name)
}

func TestStoreRounds(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	first := models.RoundRecord{
		ID:         uuid.New(),
		Group:      "party",
		Letter:     "B",
		Categories: []string{"Fruits", "Cities"},
		Answers: map[string][]models.FinalAnswer{
			"Purple": {{Answer: "banana", Duplicate: true}, {Answer: "Berlin"}},
			"Green":  {{Answer: "Banana", Duplicate: true}, {Answer: ""}},
		},
		FinishedAt: base,
	}
	second := first
	second.ID = uuid.New()
	second.Letter = "C"
	second.FinishedAt = base.Add(time.Minute)

	require.NoError(t, s.RecordRound(ctx, first))
	// redelivery of an already stored record is skipped
	require.NoError(t, s.InsertRounds(ctx, []models.RoundRecord{first, second}))
	require.NoError(t, s.InsertRounds(ctx, nil))

	rounds, err := s.RecentRounds(ctx, "party", 10)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, "C", rounds[0].Letter)
	assert.Equal(t, first.ID, rounds[1].ID)
	assert.Equal(t, first.Answers, rounds[1].Answers)
	assert.True(t, first.FinishedAt.Equal(rounds[1].FinishedAt))

	rounds, err = s.RecentRounds(ctx, "other", 0)
	require.NoError(t, err)
	assert.Empty(t, rounds)
}

func TestConnString(t *testing.T) {
	assert.Equal(t, "postgres://x", ConnString("postgres://x"))

	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p")
	t.Setenv("PG_HOST", "h")
	t.Setenv("PG_PORT", "5432")
	t.Setenv("PG_DATABASE", "d")
	assert.Equal(t, "postgres://u:p@h:5432/d", ConnString(""))
}
