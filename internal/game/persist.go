// internal/game/persist.go
package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/scatter/internal/models"
	"github.com/sirupsen/logrus"
)

// PlayerKey identifies a player across reconnects.
type PlayerKey struct {
	Name  string
	Group string
}

// PlayerFields are the mutable columns of a stored player.
type PlayerFields struct {
	ConnID string
	Team   string
}

// Store is the durable projection of rosters and teams. It is written
// fire-and-forget; the in-memory group state is always authoritative.
type Store interface {
	UpsertUser(ctx context.Context, key PlayerKey, fields PlayerFields) error
	DeleteUser(ctx context.Context, connID string) error
	FindGroup(ctx context.Context, name string) ([]models.TeamRecord, error)
	UpsertGroup(ctx context.Context, name string, teams []models.TeamRecord) error
	DeleteTeamsForGroup(ctx context.Context, name string) error
}

// RoundRecorder receives a record for every aggregated round.
type RoundRecorder interface {
	RecordRound(ctx context.Context, rec models.RoundRecord) error
}

// NopStore discards every write and finds nothing.
type NopStore struct{}

func (NopStore) UpsertUser(context.Context, PlayerKey, PlayerFields) error { return nil }
func (NopStore) DeleteUser(context.Context, string) error                  { return nil }
func (NopStore) FindGroup(context.Context, string) ([]models.TeamRecord, error) {
	return nil, nil
}
func (NopStore) UpsertGroup(context.Context, string, []models.TeamRecord) error { return nil }
func (NopStore) DeleteTeamsForGroup(context.Context, string) error             { return nil }

// MultiRecorder fans a round record out to every recorder and joins their errors.
type MultiRecorder []RoundRecorder

// RecordRound implements RoundRecorder.
func (m MultiRecorder) RecordRound(ctx context.Context, rec models.RoundRecord) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.RecordRound(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// job is one persistence write. op names it in logs.
type job struct {
	op    string
	group string
	run   func(ctx context.Context) error
}

// coalescedOps are snapshot writes where only the newest job per group
// matters. When the queue is full the newest one is parked instead of dropped.
var coalescedOps = map[string]bool{
	"upsertGroup": true,
}

// persister runs persistence jobs one at a time, in enqueue order, on a single
// goroutine. When the buffer is full, snapshot jobs are parked (newest per
// group wins) and run once the queue drains. Later jobs for a group with
// parked work are parked behind it so a group's writes never reorder. Other
// jobs that do not fit are dropped with a log line.
type persister struct {
	jobs    chan job
	timeout time.Duration
	log     *logrus.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	parkMu    sync.Mutex
	parked    []job
	parkedFor map[string]int
}

func newPersister(buffer int, timeout time.Duration, log *logrus.Logger) *persister {
	if buffer < 1 {
		buffer = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	p := &persister{
		jobs:      make(chan job, buffer),
		timeout:   timeout,
		log:       log,
		parkedFor: make(map[string]int),
	}
	p.wg.Add(1)
	go p.loop()
	return p
}

func (p *persister) enqueue(j job) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}

	p.parkMu.Lock()
	defer p.parkMu.Unlock()
	if p.parkedFor[j.group] > 0 {
		p.parkLocked(j)
		return
	}
	select {
	case p.jobs <- j:
	default:
		if !coalescedOps[j.op] {
			p.dropped(j)
			return
		}
		p.parkLocked(j)
	}
}

// parkLocked appends j to the parked jobs, replacing an older parked snapshot
// of the same kind for the same group.
func (p *persister) parkLocked(j job) {
	if coalescedOps[j.op] {
		for i, old := range p.parked {
			if old.op == j.op && old.group == j.group {
				p.parked = append(p.parked[:i], p.parked[i+1:]...)
				p.parkedFor[j.group]--
				break
			}
		}
	} else if len(p.parked) >= cap(p.jobs) {
		p.dropped(j)
		return
	}
	p.parked = append(p.parked, j)
	p.parkedFor[j.group]++
	p.log.WithFields(logrus.Fields{"op": j.op, "group": j.group}).Debug("persistence queue full, parking write")
}

func (p *persister) dropped(j job) {
	p.log.WithFields(logrus.Fields{"op": j.op, "group": j.group}).Warn("persistence queue full, dropping write")
}

// takeParked hands over the parked jobs once every queued job has run.
func (p *persister) takeParked(force bool) []job {
	p.parkMu.Lock()
	defer p.parkMu.Unlock()
	if len(p.parked) == 0 || (!force && len(p.jobs) > 0) {
		return nil
	}
	out := p.parked
	p.parked = nil
	clear(p.parkedFor)
	return out
}

func (p *persister) loop() {
	defer p.wg.Done()
	for j := range p.jobs {
		p.run(j)
		for _, parked := range p.takeParked(false) {
			p.run(parked)
		}
	}
	for _, parked := range p.takeParked(true) {
		p.run(parked)
	}
}

func (p *persister) run(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := j.run(ctx); err != nil {
		p.log.WithFields(logrus.Fields{"op": j.op, "group": j.group}).WithError(err).Error("persistence write failed")
	}
}

// close stops accepting jobs and waits for the queued ones to finish.
func (p *persister) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
