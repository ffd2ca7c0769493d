// internal/events/nats.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jason-s-yu/scatter/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// DefaultSubjectPrefix prefixes every round subject, e.g. scatter.rounds.party.
const DefaultSubjectPrefix = "scatter.rounds"

type Config struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: DefaultSubjectPrefix,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// Publisher fans finished rounds out on NATS, one subject per group.
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

// Connect dials NATS and returns a publisher.
func Connect(cfg Config, log *logrus.Logger) (*Publisher, error) {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultSubjectPrefix
	}
	opts := []nats.Option{
		nats.Name("scatter"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.WithError(err).Error("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &Publisher{nc: nc, prefix: cfg.SubjectPrefix}, nil
}

// Subject returns the subject rounds of group are published on.
func (p *Publisher) Subject(group string) string {
	return Subject(p.prefix, group)
}

// Subject joins prefix and a group name into a single NATS token. Characters
// NATS treats as separators or wildcards become underscores.
func Subject(prefix, group string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, group)
	if token == "" {
		token = "_"
	}
	return prefix + "." + token
}

// RecordRound publishes rec. The record id is set as Nats-Msg-Id so a
// JetStream stream on the subject can drop duplicates.
func (p *Publisher) RecordRound(ctx context.Context, rec models.RoundRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal round record: %w", err)
	}
	msg := nats.NewMsg(p.Subject(rec.Group))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, rec.ID.String())
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish round %s: %w", rec.ID, err)
	}
	return p.nc.FlushWithContext(ctx)
}

// Subscribe calls fn for every round published under the prefix.
func (p *Publisher) Subscribe(fn func(models.RoundRecord)) (*nats.Subscription, error) {
	return p.nc.Subscribe(p.prefix+".>", func(m *nats.Msg) {
		var rec models.RoundRecord
		if err := json.Unmarshal(m.Data, &rec); err != nil {
			return
		}
		fn(rec)
	})
}

// Close drains pending publishes and closes the connection.
func (p *Publisher) Close() error {
	return p.nc.Drain()
}
