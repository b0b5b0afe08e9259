package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dmehra2102/orderly/internal/order/domain"
	"github.com/dmehra2102/orderly/pkg/contracts"
)

// EventMeta carries caller-supplied tracing ids for outbound events.
type EventMeta struct {
	CorrelationID string
	CausationID   string
}

type MoneyInput struct {
	Amount   int64
	Currency string
}

type LineRequest struct {
	ProductID string
	Quantity  int
	UnitPrice MoneyInput
}

type CreateOrderInput struct {
	UserID          string
	Items           []LineRequest
	Note            string
	ClientReference string
	Meta            EventMeta
}

type CancelOrderInput struct {
	OrderID string
	UserID  string
	Reason  string
	Meta    EventMeta
}

type Service struct {
	log       *slog.Logger
	repo      OrderRepository
	catalog   Catalog
	publisher EventPublisher
	tx        Transactor
	now       func() time.Time
}

func NewService(log *slog.Logger, repo OrderRepository, catalog Catalog, publisher EventPublisher, tx Transactor) *Service {
	return &Service{
		log:       log,
		repo:      repo,
		catalog:   catalog,
		publisher: publisher,
		tx:        tx,
		now:       time.Now,
	}
}

// CreateOrder prices the requested lines against the catalog, stores the
// order and publishes orders.order.created. A request repeating a known
// (user, client reference) pair returns the stored order untouched.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return domain.Order{}, fmt.Errorf("%w: authenticated user id is required to create an order", domain.ErrInvalidOrder)
	}

	ref := strings.TrimSpace(in.ClientReference)
	if ref != "" {
		existing, err := s.repo.FindByUserAndClientReference(ctx, userID, ref)
		if err == nil {
			s.log.DebugContext(ctx, "idempotent order replay", "order_id", existing.ID, "client_reference", ref)
			return existing, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.Order{}, err
		}
	}

	lines, err := s.priceLines(ctx, in.Items)
	if err != nil {
		return domain.Order{}, err
	}
	order, err := domain.NewOrder(userID, lines, in.Note, ref)
	if err != nil {
		return domain.Order{}, err
	}

	var created domain.Order
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		id, err := s.repo.Save(ctx, order)
		if err != nil {
			return err
		}
		persisted, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("reload order %s: %w", id, err)
		}
		meta := contracts.NewMetadata(in.Meta.CorrelationID, in.Meta.CausationID, s.now())
		if err := s.publisher.PublishOrderCreated(ctx, orderCreatedEvent(persisted, meta)); err != nil {
			return fmt.Errorf("publish order created: %w", err)
		}
		created = persisted
		return nil
	})
	if errors.Is(err, domain.ErrDuplicateClientReference) && ref != "" {
		// Lost a race against a concurrent request with the same key.
		return s.repo.FindByUserAndClientReference(ctx, userID, ref)
	}
	if err != nil {
		return domain.Order{}, err
	}

	s.log.InfoContext(ctx, "order created", "order_id", created.ID, "user_id", created.UserID, "total", created.Total.String())
	return created, nil
}

func (s *Service) priceLines(ctx context.Context, items []LineRequest) ([]domain.OrderLine, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", domain.ErrInvalidOrder)
	}

	lines := make([]domain.OrderLine, 0, len(items))
	currency := ""
	for _, item := range items {
		requested, err := domain.NewMoney(item.UnitPrice.Amount, item.UnitPrice.Currency)
		if err != nil {
			return nil, fmt.Errorf("%w: product %s: %v", domain.ErrInvalidOrder, item.ProductID, err)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s: quantity must be positive", domain.ErrInvalidOrder, item.ProductID)
		}

		product, ok, err := s.catalog.FindByID(ctx, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("lookup product %s: %w", item.ProductID, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: unknown product: %s", domain.ErrInvalidOrder, item.ProductID)
		}
		if !product.Price.Equals(requested) {
			return nil, fmt.Errorf("%w: price mismatch for product: %s", domain.ErrInvalidOrder, item.ProductID)
		}
		if currency == "" {
			currency = product.Price.Currency()
		} else if product.Price.Currency() != currency {
			return nil, fmt.Errorf("%w: currency mismatch: all order items must use %s", domain.ErrInvalidOrder, currency)
		}

		line, err := domain.NewOrderLine(item.ProductID, item.Quantity, product.Price)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// CancelOrder moves a CREATED order owned by the user to CANCELLED and
// publishes orders.order.statusChanged. Cancelling a cancelled order is a
// no-op.
func (s *Service) CancelOrder(ctx context.Context, in CancelOrderInput) (domain.Order, error) {
	userID := strings.TrimSpace(in.UserID)
	orderID := strings.TrimSpace(in.OrderID)
	if userID == "" {
		return domain.Order{}, fmt.Errorf("%w: authenticated user id is required to cancel an order", domain.ErrInvalidOrder)
	}
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required to cancel an order", domain.ErrInvalidOrder)
	}

	var result domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.FindByIDForUser(ctx, orderID, userID)
		if err != nil {
			return err
		}
		next, changed, err := current.Cancel()
		if err != nil {
			return err
		}
		if !changed {
			result = current
			return nil
		}

		if _, err := s.repo.Save(ctx, next); err != nil {
			return err
		}
		persisted, err := s.repo.FindByID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("reload order %s: %w", orderID, err)
		}
		meta := contracts.NewMetadata(in.Meta.CorrelationID, in.Meta.CausationID, s.now())
		ev := orderStatusChangedEvent(persisted, current.Status, strings.TrimSpace(in.Reason), meta)
		if err := s.publisher.PublishOrderStatusChanged(ctx, ev); err != nil {
			return fmt.Errorf("publish order status changed: %w", err)
		}
		result = persisted
		s.log.InfoContext(ctx, "order cancelled", "order_id", orderID, "user_id", userID)
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return result, nil
}

func (s *Service) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: authenticated user id is required to fetch orders", domain.ErrInvalidOrder)
	}
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) GetOrder(ctx context.Context, orderID, userID string) (domain.Order, error) {
	userID = strings.TrimSpace(userID)
	orderID = strings.TrimSpace(orderID)
	if userID == "" {
		return domain.Order{}, fmt.Errorf("%w: authenticated user id is required to fetch an order", domain.ErrInvalidOrder)
	}
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", domain.ErrInvalidOrder)
	}
	return s.repo.FindByIDForUser(ctx, orderID, userID)
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.catalog.ListAll(ctx)
}
