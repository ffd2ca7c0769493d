// cmd/historian drains finished rounds from the Redis queue and stores them in Postgres.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/scatter/internal/cache"
	"github.com/jason-s-yu/scatter/internal/database"
	"github.com/jason-s-yu/scatter/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

func main() {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("HISTORIAN_QUEUE_NAME", cache.DefaultQueueName)
	v.SetDefault("HISTORIAN_BATCH_SIZE", 20)
	v.SetDefault("HISTORIAN_FLUSH_MS", 500)
	v.SetDefault("GROUP_INACTIVITY_TIMEOUT_SEC", 600)
	v.SetDefault("LOG_LEVEL", "info")

	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(v.GetString("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.ConnectDB(ctx, database.ConnString(v.GetString("DATABASE_URL")))
	if err != nil {
		logger.WithError(err).Fatal("connect database")
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		logger.WithError(err).Fatal("migrate database")
	}

	rdb, err := cache.Connect(ctx, v.GetString("REDIS_ADDR"), v.GetInt("REDIS_DB"))
	if err != nil {
		logger.WithError(err).Fatal("connect redis")
	}
	defer rdb.Close()

	cfg := historian.DefaultConfig()
	cfg.BatchSize = v.GetInt("HISTORIAN_BATCH_SIZE")
	cfg.FlushDelay = time.Duration(v.GetInt("HISTORIAN_FLUSH_MS")) * time.Millisecond
	cfg.Inactivity = time.Duration(v.GetInt("GROUP_INACTIVITY_TIMEOUT_SEC")) * time.Second
	cfg.Logger = logger

	queue := cache.NewRoundQueue(rdb, v.GetString("HISTORIAN_QUEUE_NAME"))
	hs := historian.New(queue, database.NewStore(pool), cfg)
	hs.Run(ctx)
}
