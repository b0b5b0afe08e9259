package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmehra2102/orderly/internal/config"
	"github.com/dmehra2102/orderly/internal/order/application"
	"github.com/dmehra2102/orderly/internal/order/infrastructure/catalog"
	orderhttp "github.com/dmehra2102/orderly/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/orderly/internal/order/infrastructure/kafka"
	"github.com/dmehra2102/orderly/internal/order/infrastructure/memory"
	orderpg "github.com/dmehra2102/orderly/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/orderly/pkg/cache"
	"github.com/dmehra2102/orderly/pkg/database"
	"github.com/dmehra2102/orderly/pkg/idempotency"
	"github.com/dmehra2102/orderly/pkg/logging"
	"github.com/dmehra2102/orderly/pkg/metrics"
	"github.com/dmehra2102/orderly/pkg/outbox"
	"github.com/dmehra2102/orderly/pkg/shutdown"
	"github.com/dmehra2102/orderly/pkg/tracing"
)

func main() {
	cfg, err := config.LoadOrderService()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("order-service stopped", "err", err)
		os.Exit(1)
	}
	log.Info("order-service shutdown complete")
}

func run(ctx context.Context, cfg config.OrderService, log *slog.Logger) error {
	var cleanup []shutdown.Func
	defer func() { shutdown.Run(log, shutdown.DefaultTimeout, cleanup...) }()

	tracing.InstallPropagator()
	if cfg.Tracing.Enabled {
		tp, err := tracing.Init(ctx, "order-service", cfg.Tracing.Endpoint, log)
		if err != nil {
			return err
		}
		cleanup = append(cleanup, tp.Shutdown)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	writer := orderkafka.NewWriter(cfg.KafkaBrokers)
	cleanup = append(cleanup, func(context.Context) error { return writer.Close() })
	dispatcher := outbox.NewDispatcher(log, writer, cfg.Topics.OrderCreated)

	var (
		repo      application.OrderRepository
		tx        application.Transactor
		publisher application.EventPublisher
		relay     *outbox.Relay
		ready     func(context.Context) error
	)
	switch cfg.Storage {
	case config.StorageMemory:
		store := memory.NewStore()
		repo, tx = store, store
		log.Warn("using in-memory storage, orders are lost on restart")
	default:
		pool, err := database.Connect(ctx, cfg.PGURL)
		if err != nil {
			return err
		}
		cleanup = append(cleanup, func(context.Context) error { pool.Close(); return nil })
		if err := orderpg.Migrate(ctx, pool); err != nil {
			return err
		}
		transactor := database.NewTransactor(pool)
		repo, tx = orderpg.NewRepository(log, pool, transactor), transactor
		ready = pool.Ping
		if cfg.PublishMode == config.PublishOutbox {
			publisher = orderpg.NewOutboxPublisher(pool, cfg.Topics.OrderCreated, cfg.Topics.OrderStatusChanged)
			relay = outbox.NewRelay(log, outbox.NewPGStore(log, pool), dispatcher, "order-service-relay")
		}
	}
	if publisher == nil {
		publisher = orderkafka.NewPublisher(dispatcher, cfg.Topics.OrderCreated, cfg.Topics.OrderStatusChanged)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cleanup = append(cleanup, func(context.Context) error { return rdb.Close() })
	}

	svc := application.NewService(log, repo, buildCatalog(cfg, log, rdb), publisher, tx)
	handler := orderhttp.NewHandler(log, svc).Routes(orderhttp.RouterConfig{
		Metrics:  metrics.NewServerMetrics(reg, "order_service"),
		Gatherer: reg,
		Ready:    ready,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdown.DefaultTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if relay != nil {
		g.Go(func() error { return relay.Run(gctx) })
	}

	if cfg.DisablePaymentsConsumer {
		log.Info("payments consumer disabled")
	} else {
		opts := []orderkafka.Option{
			orderkafka.WithMetrics(metrics.NewConsumerMetrics(reg, "order_service")),
		}
		if rdb != nil {
			opts = append(opts, orderkafka.WithDedup(idempotency.NewStore(rdb, cfg.DedupTTL, "order-service")))
		}
		reader := orderkafka.NewPaymentsReader(cfg.KafkaBrokers, cfg.Topics.PaymentTopics(), cfg.PaymentsConsumerGroup)
		consumer := orderkafka.NewPaymentEventsConsumer(log, reader, svc, opts...)
		g.Go(func() error { return consumer.Run(gctx) })
	}

	return g.Wait()
}

func buildCatalog(cfg config.OrderService, log *slog.Logger, rdb *redis.Client) application.Catalog {
	if cfg.CatalogMode != config.CatalogHTTP {
		return catalog.NewStatic(catalog.DefaultProducts()...)
	}
	var cat application.Catalog = catalog.NewHTTPClient(cfg.CatalogBaseURL, cfg.CatalogTimeout)
	if rdb != nil && cfg.CatalogCacheTTL > 0 {
		cat = catalog.NewCachedListing(log, cat, cache.NewRedisCache(rdb, "order-service"), cfg.CatalogCacheTTL)
	}
	return cat
}
