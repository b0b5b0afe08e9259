package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmehra2102/orderly/internal/config"
	orderkafka "github.com/dmehra2102/orderly/internal/order/infrastructure/kafka"
	"github.com/dmehra2102/orderly/internal/payment/application"
	"github.com/dmehra2102/orderly/internal/payment/domain"
	paymentkafka "github.com/dmehra2102/orderly/internal/payment/infrastructure/kafka"
	pg "github.com/dmehra2102/orderly/internal/payment/infrastructure/postgres"
	"github.com/dmehra2102/orderly/pkg/contracts"
	"github.com/dmehra2102/orderly/pkg/database"
	"github.com/dmehra2102/orderly/pkg/idempotency"
	"github.com/dmehra2102/orderly/pkg/logging"
	"github.com/dmehra2102/orderly/pkg/outbox"
	"github.com/dmehra2102/orderly/pkg/shutdown"
	"github.com/dmehra2102/orderly/pkg/tracing"
)

func main() {
	cfg, err := config.LoadPaymentService()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("payment-service stopped", "err", err)
		os.Exit(1)
	}
	log.Info("payment-service shutdown")
}

func run(ctx context.Context, cfg config.PaymentService, log *slog.Logger) error {
	var cleanup []shutdown.Func
	defer func() { shutdown.Run(log, shutdown.DefaultTimeout, cleanup...) }()

	tracing.InstallPropagator()
	if cfg.Tracing.Enabled {
		tp, err := tracing.Init(ctx, "payment-service", cfg.Tracing.Endpoint, log)
		if err != nil {
			return err
		}
		cleanup = append(cleanup, tp.Shutdown)
	}

	pool, err := database.Connect(ctx, cfg.PGURL)
	if err != nil {
		return err
	}
	cleanup = append(cleanup, func(context.Context) error { pool.Close(); return nil })
	if err := pg.Migrate(ctx, pool); err != nil {
		return err
	}

	var idem *idempotency.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cleanup = append(cleanup, func(context.Context) error { return rdb.Close() })
		idem = idempotency.NewStore(rdb, cfg.DedupTTL, "payment-service")
	}

	writer := orderkafka.NewWriter(cfg.KafkaBrokers)
	cleanup = append(cleanup, func(context.Context) error { return writer.Close() })
	dispatch := outbox.NewDispatcher(log, writer, cfg.Topics.PaymentSucceeded)
	relay := outbox.NewRelay(log, outbox.NewPGStore(log, pool), dispatch, "payment-service-relay")

	publisher := pg.NewOutboxPublisher(pool, map[string]string{
		contracts.EventPaymentSucceeded: cfg.Topics.PaymentSucceeded,
		contracts.EventPaymentFailed:    cfg.Topics.PaymentFailed,
		contracts.EventPaymentCancelled: cfg.Topics.PaymentCancelled,
	})
	svc := application.NewService(log, pg.NewRepository(log, pool), publisher, database.NewTransactor(pool),
		domain.MockProcessor{DeclineThreshold: cfg.DeclineThreshold})

	reader := paymentkafka.NewReader(cfg.KafkaBrokers, cfg.Topics.OrderCreated, cfg.ConsumerGroup)
	consumer := paymentkafka.NewConsumer(log, reader, svc, idem)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error { return consumer.Run(gctx) })
	return g.Wait()
}
