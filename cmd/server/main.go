package main

import (
	"chat_relay/internal/config"
	"chat_relay/internal/repository/message"
	"chat_relay/internal/service/fanout"
	"chat_relay/internal/service/history"
	redisSvc "chat_relay/internal/service/redis"
	"chat_relay/internal/service/registry"
	"chat_relay/internal/service/relay"
	"chat_relay/internal/service/server"
	"chat_relay/internal/utils/log"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type messageLog interface {
	relay.MessageLog
	history.MessageLog
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := log.Init(cfg.LogLevel); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	messages, closeStore, err := initStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	bus, closeBus, err := initBus(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBus()

	reg := registry.New()
	s := server.NewHttpServer(cfg.Address(), relay.NewRelay(reg, bus, messages), history.NewService(messages), reg)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Run()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func initStore(ctx context.Context, cfg *config.Config) (messageLog, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn("using in-memory message log, history is lost on restart")
		return message.NewMemoryRepo(), func() {}, nil
	}

	client, err := initMongo(ctx, cfg.MongoURI)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			log.Error("disconnect mongo", zap.Error(err))
		}
	}

	repo := message.NewMessageRepo(client.Database(cfg.MongoDatabase), cfg.MongoCollection, cfg.StoreTimeout)
	if err := repo.EnsureIndexes(ctx); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("create message indexes: %w", err)
	}
	return repo, closeFn, nil
}

func initMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return client, client.Ping(ctx, nil)
}

func initBus(ctx context.Context, cfg *config.Config) (fanout.Bus, func(), error) {
	if cfg.BusDriver == config.DriverMemory {
		log.Warn("using in-memory fanout bus, messages do not cross instances")
		bus := fanout.NewMemoryBus(cfg.ChannelPrefix)
		return bus, func() { _ = bus.Close() }, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	bus := redisSvc.NewRedis(rdb, cfg.ChannelPrefix)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := bus.Ping(pingCtx); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return bus, func() { _ = rdb.Close() }, nil
}
