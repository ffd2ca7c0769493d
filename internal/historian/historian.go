// internal/historian/historian.go
package historian

import (
	"context"
	"sync"
	"time"

	"github.com/jason-s-yu/scatter/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Source yields queued round records. Pop returns nil, nil when nothing
// arrived within timeout.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*models.RoundRecord, error)
}

// Sink persists a batch of round records atomically.
type Sink interface {
	InsertRounds(ctx context.Context, recs []models.RoundRecord) error
}

type Config struct {
	BatchSize    int
	FlushDelay   time.Duration
	PopTimeout   time.Duration
	Inactivity   time.Duration // a group with no rounds for this long is reported idle
	IdleCheck    time.Duration
	WriteTimeout time.Duration
	OnIdle       func(group string)
	Clock        clockwork.Clock
	Logger       *logrus.Logger
}

func DefaultConfig() Config {
	return Config{
		BatchSize:    20,
		FlushDelay:   500 * time.Millisecond,
		PopTimeout:   3 * time.Second,
		Inactivity:   10 * time.Minute,
		IdleCheck:    time.Minute,
		WriteTimeout: 10 * time.Second,
	}
}

// Service drains the round queue into the database in batches and tracks
// which groups stopped producing rounds.
type Service struct {
	source Source
	sink   Sink
	cfg    Config
	clock  clockwork.Clock
	log    *logrus.Logger

	lastActivity sync.Map // group -> time.Time

	batchMu sync.Mutex
	batch   []models.RoundRecord
}

func New(source Source, sink Sink, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = def.FlushDelay
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = def.PopTimeout
	}
	if cfg.Inactivity <= 0 {
		cfg.Inactivity = def.Inactivity
	}
	if cfg.IdleCheck <= 0 {
		cfg.IdleCheck = def.IdleCheck
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Service{
		source: source,
		sink:   sink,
		cfg:    cfg,
		clock:  cfg.Clock,
		log:    cfg.Logger,
		batch:  make([]models.RoundRecord, 0, cfg.BatchSize),
	}
}

// Run blocks until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.readLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.inactivityLoop(ctx)
	}()

	s.log.Info("historian started")
	wg.Wait()
	s.flush(context.Background())
	s.log.Info("historian stopped")
}

func (s *Service) readLoop(ctx context.Context) {
	ticker := s.clock.NewTicker(s.cfg.FlushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.Chan():
			s.flush(ctx)

		default:
			rec, err := s.source.Pop(ctx, s.cfg.PopTimeout)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.log.WithError(err).Error("pop round record")
				continue
			}
			if rec == nil {
				continue
			}

			s.lastActivity.Store(rec.Group, s.clock.Now())
			s.appendToBatch(ctx, *rec)
		}
	}
}

// appendToBatch adds rec and flushes once the batch is full. The batch lock
// is released before the write.
func (s *Service) appendToBatch(ctx context.Context, rec models.RoundRecord) {
	s.batchMu.Lock()
	s.batch = append(s.batch, rec)
	var full []models.RoundRecord
	if len(s.batch) >= s.cfg.BatchSize {
		full = s.takeBatchLocked()
	}
	s.batchMu.Unlock()

	if full != nil {
		s.write(ctx, full)
	}
}

func (s *Service) takeBatchLocked() []models.RoundRecord {
	if len(s.batch) == 0 {
		return nil
	}
	out := make([]models.RoundRecord, len(s.batch))
	copy(out, s.batch)
	s.batch = s.batch[:0]
	return out
}

func (s *Service) flush(ctx context.Context) {
	s.batchMu.Lock()
	pending := s.takeBatchLocked()
	s.batchMu.Unlock()

	if pending != nil {
		s.write(ctx, pending)
	}
}

func (s *Service) write(ctx context.Context, recs []models.RoundRecord) {
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	if err := s.sink.InsertRounds(ctx, recs); err != nil {
		s.log.WithError(err).WithField("count", len(recs)).Error("flush rounds")
		return
	}
	s.log.WithField("count", len(recs)).Debug("flushed rounds")
}

// inactivityLoop reports and forgets groups whose last round is older than
// the inactivity threshold.
func (s *Service) inactivityLoop(ctx context.Context) {
	ticker := s.clock.NewTicker(s.cfg.IdleCheck)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.Chan():
			now := s.clock.Now()
			s.lastActivity.Range(func(key, val interface{}) bool {
				group, ok1 := key.(string)
				last, ok2 := val.(time.Time)
				if ok1 && ok2 && now.Sub(last) > s.cfg.Inactivity {
					s.lastActivity.Delete(group)
					s.log.WithField("group", group).Info("group idle")
					if s.cfg.OnIdle != nil {
						s.cfg.OnIdle(group)
					}
				}
				return true
			})
		}
	}
}
