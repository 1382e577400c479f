// Package main runs the live poll HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/livepoll/config"
	"github.com/aura-webinar/livepoll/internal/archive"
	"github.com/aura-webinar/livepoll/internal/middleware"
	"github.com/aura-webinar/livepoll/internal/polls"
	"github.com/aura-webinar/livepoll/internal/realtime"
	"github.com/aura-webinar/livepoll/internal/session"
	"github.com/aura-webinar/livepoll/pkg/logger"
	"github.com/aura-webinar/livepoll/pkg/queue"
	"github.com/aura-webinar/livepoll/pkg/redis"
	"github.com/aura-webinar/livepoll/pkg/response"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis is optional: without it there is no event mirror and no poll archive.
	var (
		mirror   realtime.EventPublisher
		jobQueue *queue.Queue
	)
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()

		pubsub := realtime.NewRedisPubSub(rdb.Client, log, cfg.Redis.MirrorBuffer)
		go pubsub.Run(ctx)
		mirror = pubsub
		jobQueue = queue.NewQueue(rdb.Client, log)
	} else {
		log.Info("redis not configured; event mirror and poll archive disabled")
	}

	hub := realtime.NewHub(log, mirror)
	registry := session.NewRegistry(session.Config{
		DefaultSessionKey: cfg.Poll.DefaultSessionKey,
		DefaultTimeLimit:  cfg.Poll.DefaultTimeLimit(),
		MaxTimeLimit:      cfg.Poll.MaxTimeLimit(),
	}, hub, log)
	if jobQueue != nil {
		registry.SetClosedPollHandler(archive.NewPublisher(jobQueue, log).PollClosed)
	}

	pollHandler := polls.NewHandler(registry, hub)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(log))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/sessions", pollHandler.List)
	router.GET("/sessions/:key", pollHandler.Get)

	// WebSocket (identity is the connection; role is chosen on join-session)
	router.GET("/ws", realtime.ServeWs(hub, registry, realtime.ClientConfig{
		SendBuffer:      cfg.Server.WSSendBuffer,
		MaxMessageBytes: cfg.Server.WSMaxMessageBytes,
		CheckOrigin:     middleware.OriginChecker(cfg.Server.CORSAllowedOrigins),
	}, log))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	cancel()
	log.Info("server stopped")
}
