package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"ChatLink/global"
	"ChatLink/logger"
	"ChatLink/middleware"
	msghandler "ChatLink/module/message"
	"ChatLink/service/chat"
	"ChatLink/service/storage"
	mongox "ChatLink/service/storage/mongo"
	redisx "ChatLink/service/storage/redis"
	"ChatLink/tools/ids"
)

func main() {
	cfg, err := global.Load()
	if err != nil {
		logger.Errorf("[main] config: %v", err)
		os.Exit(1)
	}

	ids.SetNodeID(cfg.NodeID)

	ctx := context.Background()
	if err := mongox.Init(ctx, mongox.Config{
		URI:         cfg.MongoURI,
		Database:    cfg.MongoDatabase,
		MaxPoolSize: 20,
	}); err != nil {
		logger.Errorf("[main] mongo: %v", err)
		os.Exit(1)
	}
	if err := redisx.Init(redisx.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}); err != nil {
		logger.Errorf("[main] redis: %v", err)
		os.Exit(1)
	}

	messages := storage.NewMessageStore()
	users := storage.NewUserStore()
	mirror := storage.NewPresenceMirror(cfg.PresenceTTL)
	presence := chat.NewPresence(users, mirror, 5*time.Second)

	srv := chat.NewServer(chat.Options{
		JWTSecret:     cfg.JWTSecretBytes(),
		SendQueueSize: cfg.SendQueueSize,
		FanoutWorkers: cfg.FanoutWorkers,
		FanoutQueue:   cfg.FanoutQueue,
		MaxMessageLen: cfg.MaxMessageLen,
		TypingTTL:     cfg.TypingTTL,
		WriteDeadline: cfg.WriteDeadline,
	}, messages, users, presence)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Origin(cfg.AllowedOrigins))

	r.GET("/healthz", func(c *gin.Context) { c.String(200, "ok") })
	r.GET("/ws", srv.HandleWS)
	msghandler.NewHandler(messages, cfg.HistoryLimit).Register(r, cfg.JWTSecretBytes())

	go func() {
		logger.Infof("[main] listening on %s", cfg.ListenAddr)
		if err := r.Run(cfg.ListenAddr); err != nil {
			logger.Errorf("[main] http server: %v", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("[main] shutting down")
	srv.Close()
	_ = redisx.Close()
	_ = mongox.Close(ctx)
}
