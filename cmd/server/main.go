// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/scatter/internal/auth"
	"github.com/jason-s-yu/scatter/internal/cache"
	"github.com/jason-s-yu/scatter/internal/config"
	"github.com/jason-s-yu/scatter/internal/database"
	"github.com/jason-s-yu/scatter/internal/events"
	"github.com/jason-s-yu/scatter/internal/game"
	"github.com/jason-s-yu/scatter/internal/handlers"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := &config.Config{}
	cobra.CheckErr(config.NewCommand(cfg, serve).Execute())
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logrus.New()
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	logger.SetLevel(level)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tickets, err := newTickets(cfg)
	if err != nil {
		return err
	}

	corpus := game.DefaultCorpus()
	if cfg.CorpusPath != "" {
		if corpus, err = game.LoadCorpus(cfg.CorpusPath); err != nil {
			return err
		}
	}

	var (
		store     game.Store = game.NopStore{}
		recorders game.MultiRecorder
		history   handlers.History
	)

	if cfg.DatabaseURL != "" || os.Getenv("PG_HOST") != "" {
		pool, err := database.ConnectDB(ctx, database.ConnString(cfg.DatabaseURL))
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			return err
		}
		db := database.NewStore(pool)
		store = db
		history = db
		// without a queue the server writes history itself
		if cfg.RedisAddr == "" {
			recorders = append(recorders, db)
		}
	} else {
		logger.Warn("no database configured, groups will not survive a restart")
	}

	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		recorders = append(recorders, cache.NewRoundQueue(rdb, cfg.QueueName))
	}

	if cfg.NatsURL != "" {
		ncfg := events.DefaultConfig()
		ncfg.URL = cfg.NatsURL
		pub, err := events.Connect(ncfg, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		recorders = append(recorders, pub)
	}

	hub := handlers.NewHub(logger)
	opts := game.Options{
		Store:        store,
		Broadcaster:  hub,
		Tickets:      tickets,
		Corpus:       corpus,
		Logger:       logger,
		Rules:        cfg.Rules(),
		QueueSize:    cfg.QueueSize,
		WriteTimeout: cfg.WriteTimeout,
	}
	if len(recorders) > 0 {
		opts.Recorder = recorders
	}
	coord := game.NewCoordinator(opts)
	defer coord.Close()

	var origins []string
	if cfg.ClientURL != "" {
		origins = []string{hostOf(cfg.ClientURL)}
	}
	router := handlers.NewRouter(ctx, logger, hub, coord, handlers.APIConfig{
		ClientURL: cfg.ClientURL,
		WS: handlers.WSConfig{
			OriginPatterns: origins,
			SendBuffer:     cfg.SendBuffer,
		},
		History: history,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", cfg.Addr())
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newTickets(cfg *config.Config) (*auth.Tickets, error) {
	ttl, err := auth.ParseTTL(cfg.TicketTTL)
	if err != nil {
		return nil, err
	}
	if cfg.TicketPrivateKey != "" {
		return auth.NewTicketsFromPath(cfg.TicketPrivateKey, cfg.TicketPublicKey, ttl)
	}
	return auth.NewTickets(ttl)
}

// hostOf turns the client URL into a websocket origin pattern.
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
