// internal/game/persist_test.go
package game

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jobLog struct {
	mu  sync.Mutex
	ran []string
}

func (l *jobLog) job(op, group, name string) job {
	return job{op: op, group: group, run: func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.ran = append(l.ran, name)
		return nil
	}}
}

func (l *jobLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ran...)
}

// blockedPersister returns a persister whose worker is stuck inside a first
// job until release is called.
func blockedPersister(t *testing.T, log *jobLog, buffer int) (*persister, func()) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	p := newPersister(buffer, time.Second, logger)

	started := make(chan struct{})
	gate := make(chan struct{})
	p.enqueue(job{op: "upsertUser", group: "party", run: func(context.Context) error {
		close(started)
		<-gate
		log.mu.Lock()
		defer log.mu.Unlock()
		log.ran = append(log.ran, "first")
		return nil
	}})
	<-started

	var once sync.Once
	release := func() { once.Do(func() { close(gate) }) }
	t.Cleanup(func() {
		release()
		p.close()
	})
	return p, release
}

func TestPersisterKeepsLatestSnapshotWhenFull(t *testing.T) {
	log := &jobLog{}
	p, release := blockedPersister(t, log, 1)

	p.enqueue(log.job("upsertUser", "other", "queued"))
	p.enqueue(log.job("upsertGroup", "party", "teams v1"))
	p.enqueue(log.job("upsertGroup", "party", "teams v2"))
	p.enqueue(log.job("recordRound", "other", "round"))

	release()
	p.close()

	assert.Equal(t, []string{"first", "queued", "teams v2"}, log.snapshot())
}

func TestPersisterKeepsGroupOrderBehindParkedSnapshot(t *testing.T) {
	log := &jobLog{}
	p, release := blockedPersister(t, log, 2)

	p.enqueue(log.job("upsertUser", "other", "queued"))
	p.enqueue(log.job("upsertUser", "other", "queued again"))
	p.enqueue(log.job("upsertGroup", "party", "teams v1"))
	p.enqueue(log.job("deleteTeams", "party", "delete"))
	p.enqueue(log.job("upsertGroup", "party", "teams v2"))

	release()
	p.close()

	assert.Equal(t, []string{"first", "queued", "queued again", "delete", "teams v2"}, log.snapshot())
}

func TestPersisterRunsParkedWorkWithoutClose(t *testing.T) {
	log := &jobLog{}
	p, release := blockedPersister(t, log, 1)

	p.enqueue(log.job("upsertUser", "other", "queued"))
	p.enqueue(log.job("upsertGroup", "party", "teams"))

	release()
	require.Eventually(t, func() bool { return len(log.snapshot()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"first", "queued", "teams"}, log.snapshot())

	// once drained the queue is used again
	p.enqueue(log.job("upsertGroup", "party", "later"))
	require.Eventually(t, func() bool { return len(log.snapshot()) == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "later", log.snapshot()[3])
}
