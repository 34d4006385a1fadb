package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/tableorder/internal/config"
	"github.com/ariefcatur/tableorder/internal/httpx"
	kafkax "github.com/ariefcatur/tableorder/internal/kafka"
	"github.com/ariefcatur/tableorder/internal/logging"
	"github.com/ariefcatur/tableorder/internal/memstore"
	"github.com/ariefcatur/tableorder/internal/orders"
	"github.com/ariefcatur/tableorder/internal/outbox"
	"github.com/ariefcatur/tableorder/internal/postgres"
	"github.com/ariefcatur/tableorder/internal/redisx"
	"github.com/ariefcatur/tableorder/internal/tracing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.ServiceName, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("api exited", zap.Error(err))
		os.Exit(1)
	}
}

type storage struct {
	orders  orders.Store
	catalog orders.Catalog
	outbox  outbox.Store
	close   func()
}

func openStorage(ctx context.Context, cfg config.Config, log *zap.Logger) (storage, error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn("using in-memory storage; data is lost on restart")
		st := memstore.New()
		return storage{orders: st, catalog: st, outbox: st, close: func() {}}, nil
	}

	pool, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolConfig{})
	if err != nil {
		return storage{}, fmt.Errorf("db connect: %w", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return storage{}, err
	}
	st := postgres.NewStore(log, pool)
	return storage{orders: st, catalog: st, outbox: postgres.NewOutboxStore(log, pool), close: pool.Close}, nil
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint, log)
	if err != nil {
		return err
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Error("tracer shutdown", zap.Error(err))
		}
	}()

	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	if cfg.SeedDemo {
		if err := orders.SeedDemo(ctx, st.catalog, time.Now().UTC()); err != nil {
			return err
		}
		log.Info("demo data seeded")
	}

	svc := orders.NewService(st.orders, log, cfg.ServiceName)
	oh := &httpx.OrdersHandler{Service: svc, Log: log}

	if cfg.RedisAddr != "" {
		rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		oh.Cache = redisx.NewStatusCache(rdb)
		oh.Idem = redisx.NewIdempotencyStore(rdb)
	} else {
		log.Info("redis disabled: no status cache, Idempotency-Key ignored")
	}

	relayDone := make(chan struct{})
	if len(cfg.KafkaBrokers) > 0 {
		prod := kafkax.NewProducer(cfg.KafkaBrokers)
		relay := outbox.NewRelay(log, st.outbox, outbox.NewDispatcher(log, prod), cfg.ServiceName+"-"+uuid.NewString()[:8],
			outbox.WithBatchSize(cfg.OutboxBatch),
			outbox.WithInterval(cfg.OutboxInterval),
		)
		go func() {
			defer close(relayDone)
			_ = relay.Run(ctx)
			if err := prod.Close(); err != nil {
				log.Error("kafka writer close", zap.Error(err))
			}
		}()
	} else {
		close(relayDone)
		log.Info("kafka disabled: outbox events stay pending")
	}

	router := httpx.NewRouter()
	oh.Register(router)
	(&httpx.TablesHandler{Service: svc}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	srvErr := make(chan error, 1)
	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-srvErr:
		if err != nil {
			cancel()
			<-relayDone
			return fmt.Errorf("listen: %w", err)
		}
	}
	log.Info("shutting down")

	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	cancel()
	<-relayDone
	return nil
}
