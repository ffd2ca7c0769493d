// internal/cache/redis_test.go
package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/scatter/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a Redis on localhost:6379 and skip otherwise.
func setupQueue(t *testing.T) *RoundQueue {
	t.Helper()
	ctx := context.Background()
	rdb, err := Connect(ctx, "localhost:6379", 0)
	if err != nil {
		t.Skipf("no local redis: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })

	q := NewRoundQueue(rdb, "scatter_rounds_test_"+uuid.NewString())
	t.Cleanup(func() { rdb.Del(context.Background(), q.Name()) })
	return q
}

func TestRoundQueueFIFO(t *testing.T) {
	q := setupQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first := models.RoundRecord{
		ID:         uuid.New(),
		Group:      "party",
		Letter:     "S",
		Categories: []string{"Animals"},
		Answers:    map[string][]models.FinalAnswer{"Purple": {{Answer: "seal"}}},
		FinishedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	second := first
	second.ID = uuid.New()

	require.NoError(t, q.RecordRound(ctx, first))
	require.NoError(t, q.RecordRound(ctx, second))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	got, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, first.Answers, got.Answers)
	assert.True(t, first.FinishedAt.Equal(got.FinishedAt))

	got, err = q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)
}

func TestRoundQueuePopTimeout(t *testing.T) {
	q := setupQueue(t)
	got, err := q.Pop(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDefaultQueueName(t *testing.T) {
	assert.Equal(t, DefaultQueueName, NewRoundQueue(nil, "").Name())
}
