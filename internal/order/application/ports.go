package application

import (
	"context"

	"github.com/dmehra2102/orderly/internal/order/domain"
	"github.com/dmehra2102/orderly/pkg/contracts"
)

// Catalog is the read-only pricing source orders are validated against.
type Catalog interface {
	FindByID(ctx context.Context, productID string) (domain.Product, bool, error)
	ListAll(ctx context.Context) ([]domain.Product, error)
}

// OrderRepository lookups return domain.ErrNotFound when nothing matches.
//
// Save inserts an order whose Version is 0 and otherwise updates it only if
// the stored version still equals o.Version, failing with domain.ErrConflict.
// Order and lines are written as one unit. A taken (user, client reference)
// pair fails with domain.ErrDuplicateClientReference.
type OrderRepository interface {
	FindByUserAndClientReference(ctx context.Context, userID, clientReference string) (domain.Order, error)
	FindByIDForUser(ctx context.Context, orderID, userID string) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	Save(ctx context.Context, o domain.Order) (string, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
}

type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, ev contracts.OrderCreatedEvent) error
	PublishOrderStatusChanged(ctx context.Context, ev contracts.OrderStatusChangedEvent) error
}

// Transactor runs fn as one unit of work: repository writes and publishes made
// with the ctx passed to fn are committed together or not at all.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
