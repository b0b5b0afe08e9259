package kafka

import (
	"context"

	"github.com/dmehra2102/orderly/internal/order/application"
	"github.com/dmehra2102/orderly/pkg/contracts"
	"github.com/dmehra2102/orderly/pkg/outbox"
	"github.com/dmehra2102/orderly/pkg/tracing"
)

// Publisher writes events straight to kafka. A failed write fails the
// caller's unit of work, but a write that succeeded is not undone if the
// unit later rolls back.
type Publisher struct {
	dispatcher         *outbox.Dispatcher
	createdTopic       string
	statusChangedTopic string
}

func NewPublisher(dispatcher *outbox.Dispatcher, createdTopic, statusChangedTopic string) *Publisher {
	return &Publisher{dispatcher: dispatcher, createdTopic: createdTopic, statusChangedTopic: statusChangedTopic}
}

func (p *Publisher) PublishOrderCreated(ctx context.Context, ev contracts.OrderCreatedEvent) error {
	return p.send(ctx, ev.Payload.OrderID, ev.Name, p.createdTopic, application.CreatedKey(ev), ev, ev.Metadata)
}

func (p *Publisher) PublishOrderStatusChanged(ctx context.Context, ev contracts.OrderStatusChangedEvent) error {
	return p.send(ctx, ev.Payload.OrderID, ev.Name, p.statusChangedTopic, application.StatusChangedKey(ev), ev, ev.Metadata)
}

func (p *Publisher) send(ctx context.Context, orderID, name, topic, key string, envelope any, meta contracts.Metadata) error {
	e, err := outbox.NewEvent("order", orderID, name, topic, key, envelope,
		meta.CorrelationID, meta.CausationID, tracing.Traceparent(ctx))
	if err != nil {
		return err
	}
	return p.dispatcher.Dispatch(ctx, e)
}
