// internal/events/nats_test.go
package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/scatter/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	tests := []struct {
		group string
		want  string
	}{
		{"party", "scatter.rounds.party"},
		{"a.b", "scatter.rounds.a_b"},
		{"x > *", "scatter.rounds.x____"},
		{"", "scatter.rounds._"},
		{"Grüße", "scatter.rounds.Grüße"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Subject(DefaultSubjectPrefix, tt.group), tt.group)
	}
}

// Needs a NATS server on the default URL and skips otherwise.
func TestPublishRoundRoundTrip(t *testing.T) {
	log := logrus.New()
	cfg := DefaultConfig()
	cfg.MaxReconnects = 0
	p, err := Connect(cfg, log)
	if err != nil {
		t.Skipf("no local nats: %v", err)
	}
	defer p.Close()

	got := make(chan models.RoundRecord, 1)
	sub, err := p.Subscribe(func(rec models.RoundRecord) { got <- rec })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	rec := models.RoundRecord{ID: uuid.New(), Group: "party", Letter: "M"}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.RecordRound(ctx, rec))

	select {
	case r := <-got:
		assert.Equal(t, rec.ID, r.ID)
		assert.Equal(t, "M", r.Letter)
	case <-ctx.Done():
		t.Fatal("round not delivered")
	}
}
