package memory

import (
	"context"
	"sync"

	"github.com/dmehra2102/orderly/pkg/contracts"
)

// Publisher records published events. Setting Err makes every publish fail.
type Publisher struct {
	mu            sync.Mutex
	Err           error
	created       []contracts.OrderCreatedEvent
	statusChanged []contracts.OrderStatusChangedEvent
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) PublishOrderCreated(_ context.Context, ev contracts.OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.created = append(p.created, ev)
	return nil
}

func (p *Publisher) PublishOrderStatusChanged(_ context.Context, ev contracts.OrderStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.statusChanged = append(p.statusChanged, ev)
	return nil
}

func (p *Publisher) Created() []contracts.OrderCreatedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]contracts.OrderCreatedEvent(nil), p.created...)
}

func (p *Publisher) StatusChanged() []contracts.OrderStatusChangedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]contracts.OrderStatusChangedEvent(nil), p.statusChanged...)
}
