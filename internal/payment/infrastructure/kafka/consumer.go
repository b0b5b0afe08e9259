package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/orderly/internal/payment/domain"
	"github.com/dmehra2102/orderly/pkg/contracts"
	"github.com/dmehra2102/orderly/pkg/idempotency"
	"github.com/dmehra2102/orderly/pkg/tracing"
)

var (
	errNotOrderCreated = errors.New("not an order created event")
	errMissingOrderID  = errors.New("order created event without orderId")
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OrderCreatedHandler interface {
	HandleOrderCreated(ctx context.Context, ev contracts.OrderCreatedEvent) error
}

func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
}

type Consumer struct {
	log    *slog.Logger
	reader MessageReader
	svc    OrderCreatedHandler
	idem   *idempotency.Store
	tracer trace.Tracer
}

// NewConsumer builds the orders.order.created consumer; idem may be nil.
func NewConsumer(log *slog.Logger, reader MessageReader, svc OrderCreatedHandler, idem *idempotency.Store) *Consumer {
	return &Consumer{
		log:    log,
		reader: reader,
		svc:    svc,
		idem:   idem,
		tracer: otel.Tracer("payment-service/orders-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("orders consumer: fetch: %w", err)
		}
		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("orders consumer: commit: %w", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	key := ""
	if c.idem != nil {
		key = c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
		seen, err := c.idem.Seen(ctx, key)
		switch {
		case err != nil:
			c.log.WarnContext(ctx, "idempotency check failed", "key", key, "err", err)
			key = ""
		case seen:
			c.log.InfoContext(ctx, "duplicate message skipped", "key", key)
			return nil
		}
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderCreated", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	ev, err := decodeOrderCreated(msg.Value)
	if err != nil {
		c.log.WarnContext(msgCtx, "order event dropped", "offset", msg.Offset, "err", err)
		return nil
	}

	if err := c.svc.HandleOrderCreated(msgCtx, ev); err != nil {
		if errors.Is(err, domain.ErrInvalidPayment) {
			c.log.WarnContext(msgCtx, "order event dropped", "offset", msg.Offset, "order_id", ev.Payload.OrderID, "err", err)
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if key != "" {
			if ferr := c.idem.Forget(context.WithoutCancel(ctx), key); ferr != nil {
				c.log.WarnContext(msgCtx, "idempotency release failed", "key", key, "err", ferr)
			}
		}
		return fmt.Errorf("orders consumer: order %s: %w", ev.Payload.OrderID, err)
	}
	return nil
}

func decodeOrderCreated(value []byte) (contracts.OrderCreatedEvent, error) {
	var ev contracts.OrderCreatedEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return ev, err
	}
	if ev.Name != contracts.EventOrderCreated {
		return ev, fmt.Errorf("%w: %q", errNotOrderCreated, ev.Name)
	}
	ev.Payload.OrderID = strings.TrimSpace(ev.Payload.OrderID)
	if ev.Payload.OrderID == "" {
		return ev, errMissingOrderID
	}
	return ev, nil
}
