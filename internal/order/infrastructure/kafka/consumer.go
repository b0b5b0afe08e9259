package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/orderly/internal/order/domain"
	"github.com/dmehra2102/orderly/pkg/contracts"
	"github.com/dmehra2102/orderly/pkg/metrics"
	"github.com/dmehra2102/orderly/pkg/tracing"
)

var ErrMalformedEvent = errors.New("malformed payment event")

// Decode parses a payments.payment.* envelope. Messages that are not valid
// JSON, carry an unknown name or lack an order id fail with ErrMalformedEvent.
func Decode(value []byte) (contracts.PaymentEvent, error) {
	var ev contracts.PaymentEvent
	if len(value) == 0 {
		return ev, fmt.Errorf("%w: empty message", ErrMalformedEvent)
	}
	if err := json.Unmarshal(value, &ev); err != nil {
		return ev, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	switch ev.Name {
	case contracts.EventPaymentSucceeded, contracts.EventPaymentFailed, contracts.EventPaymentCancelled:
	default:
		return ev, fmt.Errorf("%w: unknown event name %q", ErrMalformedEvent, ev.Name)
	}
	ev.Payload.OrderID = strings.TrimSpace(ev.Payload.OrderID)
	if ev.Payload.OrderID == "" {
		return ev, fmt.Errorf("%w: %s without orderId", ErrMalformedEvent, ev.Name)
	}
	return ev, nil
}

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PaymentOutcomes is implemented by application.Service.
type PaymentOutcomes interface {
	MarkOrderAsPaid(ctx context.Context, orderID, paymentID string) error
	MarkOrderPaymentFailed(ctx context.Context, orderID, reason string) error
}

// Deduper is implemented by idempotency.Store.
type Deduper interface {
	Key(topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

type Option func(*PaymentEventsConsumer)

func WithDedup(d Deduper) Option {
	return func(c *PaymentEventsConsumer) { c.dedup = d }
}

func WithMetrics(m *metrics.ConsumerMetrics) Option {
	return func(c *PaymentEventsConsumer) { c.metrics = m }
}

// WithConflictRetry sets how many times a handler failing with
// domain.ErrConflict is attempted, waiting backoff*attempt in between.
func WithConflictRetry(attempts int, backoff time.Duration) Option {
	return func(c *PaymentEventsConsumer) {
		if attempts > 0 {
			c.attempts = attempts
		}
		c.backoff = backoff
	}
}

// PaymentEventsConsumer applies payment outcomes to orders. Messages are
// handled one at a time and committed only after they were applied, dropped
// as malformed or recognised as duplicates.
type PaymentEventsConsumer struct {
	log      *slog.Logger
	reader   MessageReader
	handler  PaymentOutcomes
	dedup    Deduper
	metrics  *metrics.ConsumerMetrics
	tracer   trace.Tracer
	attempts int
	backoff  time.Duration
}

func NewPaymentEventsConsumer(log *slog.Logger, reader MessageReader, handler PaymentOutcomes, opts ...Option) *PaymentEventsConsumer {
	c := &PaymentEventsConsumer{
		log:      log,
		reader:   reader,
		handler:  handler,
		tracer:   otel.Tracer("order-service/payments-consumer"),
		attempts: 3,
		backoff:  200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run consumes until ctx is cancelled, returning nil in that case. A message
// that cannot be applied stops the loop with an error and stays uncommitted,
// so it is redelivered after restart.
func (c *PaymentEventsConsumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("payments consumer: fetch: %w", err)
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
			return fmt.Errorf("payments consumer: commit: %w", err)
		}
	}
}

func (c *PaymentEventsConsumer) handle(ctx context.Context, msg kafka.Message) error {
	key := ""
	if c.dedup != nil {
		key = c.dedup.Key(msg.Topic, msg.Partition, msg.Offset)
		seen, err := c.dedup.Seen(ctx, key)
		switch {
		case err != nil:
			c.log.WarnContext(ctx, "dedup check failed, processing anyway", "key", key, "err", err)
			key = ""
		case seen:
			c.log.InfoContext(ctx, "duplicate message skipped", "key", key)
			c.metrics.Observe(msg.Topic, "duplicate")
			return nil
		}
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "consume "+msg.Topic, trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		))
	defer span.End()

	ev, err := Decode(msg.Value)
	if err != nil {
		c.log.WarnContext(msgCtx, "payment event dropped", "topic", msg.Topic, "offset", msg.Offset, "err", err)
		c.metrics.Observe(msg.Topic, "dropped")
		return nil
	}
	span.SetAttributes(attribute.String("order.id", ev.Payload.OrderID), attribute.String("event.name", ev.Name))

	if err := c.applyWithRetry(msgCtx, ev); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.metrics.Observe(ev.Name, "failed")
		if key != "" {
			if ferr := c.dedup.Forget(context.WithoutCancel(ctx), key); ferr != nil {
				c.log.WarnContext(msgCtx, "dedup release failed", "key", key, "err", ferr)
			}
		}
		return fmt.Errorf("payments consumer: apply %s for order %s: %w", ev.Name, ev.Payload.OrderID, err)
	}

	c.log.InfoContext(msgCtx, "payment event applied", "event", ev.Name, "order_id", ev.Payload.OrderID,
		"correlation_id", ev.Metadata.CorrelationID)
	c.metrics.Observe(ev.Name, "applied")
	return nil
}

func (c *PaymentEventsConsumer) applyWithRetry(ctx context.Context, ev contracts.PaymentEvent) error {
	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		err = c.apply(ctx, ev)
		if !errors.Is(err, domain.ErrConflict) || attempt == c.attempts {
			return err
		}
		c.log.DebugContext(ctx, "order changed concurrently, retrying", "order_id", ev.Payload.OrderID, "attempt", attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}
	return err
}

func (c *PaymentEventsConsumer) apply(ctx context.Context, ev contracts.PaymentEvent) error {
	p := ev.Payload
	switch ev.Name {
	case contracts.EventPaymentSucceeded:
		return c.handler.MarkOrderAsPaid(ctx, p.OrderID, p.PaymentID)
	case contracts.EventPaymentFailed:
		return c.handler.MarkOrderPaymentFailed(ctx, p.OrderID, p.FailureReason)
	default:
		return c.handler.MarkOrderPaymentFailed(ctx, p.OrderID, p.Reason)
	}
}
