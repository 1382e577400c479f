// Package main runs the background job worker that archives closed polls to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/livepoll/config"
	"github.com/aura-webinar/livepoll/internal/archive"
	"github.com/aura-webinar/livepoll/internal/worker"
	"github.com/aura-webinar/livepoll/pkg/database"
	"github.com/aura-webinar/livepoll/pkg/logger"
	"github.com/aura-webinar/livepoll/pkg/queue"
	"github.com/aura-webinar/livepoll/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot, _ := logger.New("info")
		boot.Fatal("load config", zap.Error(err))
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		boot, _ := logger.New("info")
		boot.Fatal("logger", zap.Error(err))
	}
	defer log.Sync()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	repo := archive.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, log)
	processor := worker.NewArchiveProcessor(repo, jobQueue, log)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()
	log.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(queue.PollWait + 2*time.Second):
		log.Warn("worker did not stop in time")
	}
	log.Info("worker stopped")
}
