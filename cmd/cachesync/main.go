package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/tableorder/internal/config"
	kafkax "github.com/ariefcatur/tableorder/internal/kafka"
	"github.com/ariefcatur/tableorder/internal/logging"
	"github.com/ariefcatur/tableorder/internal/orders"
	"github.com/ariefcatur/tableorder/internal/redisx"
	"github.com/ariefcatur/tableorder/internal/tracing"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.ServiceName+"-cachesync", cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("cachesync exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	if len(cfg.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if cfg.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, cfg.ServiceName+"-cachesync", cfg.OTLPEndpoint, log)
	if err != nil {
		return err
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = shutdownTracing(sctx)
	}()

	rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer rdb.Close()

	syncer := &statusSyncer{
		log:   log,
		cache: redisx.NewStatusCache(rdb),
		dedup: redisx.NewDedup(rdb, cfg.CacheSyncGroup),
	}
	cons := kafkax.NewConsumer(log, cfg.KafkaBrokers, cfg.CacheSyncGroup, orders.TopicOrderStatus, cfg.CacheSyncWorkers)

	log.Info("cachesync consumer started",
		zap.String("group", cfg.CacheSyncGroup),
		zap.String("topic", orders.TopicOrderStatus),
		zap.Int("workers", cfg.CacheSyncWorkers),
	)
	return cons.Start(ctx, syncer.handle)
}
