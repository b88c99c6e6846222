package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"PMessenger/global"
	"PMessenger/logger"
	"PMessenger/middleware"
	"PMessenger/module/chat/event"
	"PMessenger/module/chat/handler"
	"PMessenger/module/chat/service"
	"PMessenger/module/chat/store"
	"PMessenger/service/blob"
	"PMessenger/service/bus"
	gw "PMessenger/service/chat"
	"PMessenger/service/kafka"
	"PMessenger/service/storage"
	"PMessenger/tools/ids"
	"PMessenger/tools/security"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	flag.Parse()

	if *configPath != "" {
		if err := global.Load(*configPath); err != nil {
			logger.Errorf("[boot] load config %s: %v", *configPath, err)
			return
		}
	} else {
		global.LoadDefaults()
	}
	cfg := global.Get()
	ids.SetNodeID(cfg.Gateway.NodeID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Postgres.URL)
	if err != nil {
		logger.Errorf("[boot] postgres: %v", err)
		return
	}
	defer st.Close()

	rdb, err := storage.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Errorf("[boot] redis: %v", err)
		return
	}
	defer rdb.Close()
	presence := storage.NewPresence(rdb, cfg.Gateway.PresenceTTL)

	eventBus, err := bus.Connect(bus.Config{Servers: cfg.Nats.Servers, Name: cfg.Nats.Name})
	if err != nil {
		logger.Errorf("[boot] nats: %v", err)
		return
	}
	defer eventBus.Close()

	blobs, err := blob.Open(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Bucket)
	if err != nil {
		logger.Errorf("[boot] mongo: %v", err)
		return
	}
	defer blobs.Close(context.Background())

	dispatcher := event.NewDispatcher(eventBus, cfg.Gateway.PublishTimeout)
	if len(cfg.Kafka.Brokers) > 0 {
		mirror, err := kafka.NewMirror(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			logger.Errorf("[boot] kafka: %v", err)
			return
		}
		defer mirror.Close()
		dispatcher = dispatcher.WithMirror(mirror)
	}

	jwtOpts := security.DefaultOptions(global.GetJwtSecret())
	jwtOpts.TTL = cfg.Auth.TokenTTL

	svc := service.New(st, dispatcher, presence).
		WithWatchlistCache(storage.NewWatchlistCache(rdb, 30*time.Second))

	gateway := gw.NewGateway(svc, presence, jwtOpts, gw.GatewayConfig{
		NodeID:        strconv.FormatInt(cfg.Gateway.NodeID, 10),
		FanoutWorkers: cfg.Gateway.FanoutWorkers,
		FanoutQueue:   cfg.Gateway.FanoutQueue,
	})
	if err := gateway.Run(eventBus); err != nil {
		logger.Errorf("[boot] gateway: %v", err)
		return
	}
	defer gateway.Close()

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Origin())
	handler.New(svc, blobs).Register(r, jwtOpts)
	r.GET("/ws", gateway.HandleWS)

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: r}
	go func() {
		logger.Infof("[boot] listening on %s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("[boot] http server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("[boot] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("[boot] shutdown: %v", err)
	}
}
