package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/orderly/internal/order/application"
	"github.com/dmehra2102/orderly/pkg/contracts"
	"github.com/dmehra2102/orderly/pkg/database"
	"github.com/dmehra2102/orderly/pkg/outbox"
	"github.com/dmehra2102/orderly/pkg/tracing"
)

const aggregateOrder = "order"

// OutboxPublisher implements application.EventPublisher by writing events to
// the outbox table in the caller's transaction. A relay ships them to kafka.
type OutboxPublisher struct {
	pool               *pgxpool.Pool
	createdTopic       string
	statusChangedTopic string
}

func NewOutboxPublisher(pool *pgxpool.Pool, createdTopic, statusChangedTopic string) *OutboxPublisher {
	return &OutboxPublisher{pool: pool, createdTopic: createdTopic, statusChangedTopic: statusChangedTopic}
}

func (p *OutboxPublisher) PublishOrderCreated(ctx context.Context, ev contracts.OrderCreatedEvent) error {
	return p.insert(ctx, ev.Payload.OrderID, ev.Name, p.createdTopic, application.CreatedKey(ev), ev, ev.Metadata)
}

func (p *OutboxPublisher) PublishOrderStatusChanged(ctx context.Context, ev contracts.OrderStatusChangedEvent) error {
	return p.insert(ctx, ev.Payload.OrderID, ev.Name, p.statusChangedTopic, application.StatusChangedKey(ev), ev, ev.Metadata)
}

func (p *OutboxPublisher) insert(ctx context.Context, orderID, name, topic, key string, envelope any, meta contracts.Metadata) error {
	e, err := outbox.NewEvent(aggregateOrder, orderID, name, topic, key, envelope,
		meta.CorrelationID, meta.CausationID, tracing.Traceparent(ctx))
	if err != nil {
		return err
	}
	return outbox.Insert(ctx, database.From(ctx, p.pool), e)
}
