// internal/config/config.go
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jason-s-yu/scatter/internal/game"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ReleaseVersion = "0.1.0"
	EnvPrefix      = "SCATTER"
)

type Config struct {
	Bind      string
	Port      int
	ClientURL string
	LogLevel  string

	DatabaseURL string
	RedisAddr   string
	RedisDB     int
	QueueName   string
	NatsURL     string

	CorpusPath   string
	TeamMode     string
	TeamCount    int
	RoundSeconds int
	Categories   int

	TicketTTL        string
	TicketPrivateKey string
	TicketPublicKey  string

	QueueSize    int
	WriteTimeout time.Duration
	SendBuffer   int
}

// Validate checks flag combinations that cannot be expressed as flag types.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	if c.TeamMode != game.FormationRoundRobin && c.TeamMode != game.FormationFixed {
		return fmt.Errorf("invalid team mode %q (want %s or %s)", c.TeamMode, game.FormationRoundRobin, game.FormationFixed)
	}
	if c.TeamCount < 1 {
		return fmt.Errorf("team count must be at least 1: %d", c.TeamCount)
	}
	if c.RoundSeconds < 1 || c.Categories < 1 {
		return errors.New("round seconds and categories must be positive")
	}
	if (c.TicketPrivateKey == "") != (c.TicketPublicKey == "") {
		return errors.New("both --ticket-private-key and --ticket-public-key must be provided together")
	}
	if c.QueueSize < 1 || c.SendBuffer < 1 {
		return errors.New("queue size and send buffer must be positive")
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// Rules builds the pre-team game rules from the config.
func (c *Config) Rules() game.Rules {
	r := game.DefaultRules()
	r.RoundSeconds = c.RoundSeconds
	r.Categories = c.Categories
	r.TeamMode = c.TeamMode
	r.TeamCount = c.TeamCount
	return r
}

// NewCommand builds the root command. Every flag can also be set through an
// environment variable named SCATTER_<FLAG>, e.g. SCATTER_CLIENT_URL.
func NewCommand(cfg *Config, run func(ctx context.Context, cfg *Config) error) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "scatter",
		Short:         "Team word-association game server.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       ReleaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	defaults := game.DefaultRules()

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: SCATTER_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: SCATTER_PORT)")
	fs.StringVar(&cfg.ClientURL, "client-url", "", "origin of the web client, used for CORS and join links (env: SCATTER_CLIENT_URL)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "logrus level (env: SCATTER_LOG_LEVEL)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", "", "postgres connection string; falls back to POSTGRES_USER/PG_HOST/... (env: SCATTER_DATABASE_URL)")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", "", "redis address for the round history queue, empty disables it (env: SCATTER_REDIS_ADDR)")
	fs.IntVar(&cfg.RedisDB, "redis-db", 0, "redis database index (env: SCATTER_REDIS_DB)")
	fs.StringVar(&cfg.QueueName, "queue-name", "scatter_rounds", "redis list carrying round records (env: SCATTER_QUEUE_NAME)")
	fs.StringVar(&cfg.NatsURL, "nats-url", "", "NATS url for round events, empty disables them (env: SCATTER_NATS_URL)")
	fs.StringVar(&cfg.CorpusPath, "corpus", "", "YAML prompt corpus, empty uses the built-in one (env: SCATTER_CORPUS)")
	fs.StringVar(&cfg.TeamMode, "team-mode", game.FormationRoundRobin, "team formation: roundRobin or fixed (env: SCATTER_TEAM_MODE)")
	fs.IntVar(&cfg.TeamCount, "team-count", defaults.TeamCount, "number of teams formed by createTeams (env: SCATTER_TEAM_COUNT)")
	fs.IntVar(&cfg.RoundSeconds, "round-seconds", defaults.RoundSeconds, "round length before teams exist (env: SCATTER_ROUND_SECONDS)")
	fs.IntVar(&cfg.Categories, "categories", defaults.Categories, "categories per round before teams exist (env: SCATTER_CATEGORIES)")
	fs.StringVar(&cfg.TicketTTL, "ticket-ttl", "24h", "rejoin ticket lifetime, 'never' disables expiry (env: SCATTER_TICKET_TTL)")
	fs.StringVar(&cfg.TicketPrivateKey, "ticket-private-key", "", "raw ed25519 private key file, empty generates one (env: SCATTER_TICKET_PRIVATE_KEY)")
	fs.StringVar(&cfg.TicketPublicKey, "ticket-public-key", "", "raw ed25519 public key file (env: SCATTER_TICKET_PUBLIC_KEY)")
	fs.IntVar(&cfg.QueueSize, "queue-size", 256, "pending persistence jobs before writes are parked or dropped (env: SCATTER_QUEUE_SIZE)")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", 5*time.Second, "timeout of a single persistence job (env: SCATTER_WRITE_TIMEOUT)")
	fs.IntVar(&cfg.SendBuffer, "send-buffer", 64, "outbound messages buffered per connection (env: SCATTER_SEND_BUFFER)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("scatter v{{.Version}}\n")

	cmd.SilenceUsage = true

	return cmd
}
