package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/orderly/internal/payment/domain"
	"github.com/dmehra2102/orderly/pkg/contracts"
)

type Service struct {
	log       *slog.Logger
	repo      PaymentRepository
	publisher PaymentPublisher
	tx        Transactor
	processor domain.MockProcessor
	now       func() time.Time
}

func NewService(log *slog.Logger, repo PaymentRepository, publisher PaymentPublisher, tx Transactor, processor domain.MockProcessor) *Service {
	return &Service{
		log:       log,
		repo:      repo,
		publisher: publisher,
		tx:        tx,
		processor: processor,
		now:       time.Now,
	}
}

// HandleOrderCreated charges a freshly created order. The payment row and
// its outcome event are stored together; an order that already has a
// payment is skipped.
func (s *Service) HandleOrderCreated(ctx context.Context, ev contracts.OrderCreatedEvent) error {
	orderID := strings.TrimSpace(ev.Payload.OrderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", domain.ErrInvalidPayment)
	}

	now := s.now().UTC()
	p := domain.Payment{
		ID:              uuid.NewString(),
		OrderID:         orderID,
		Amount:          ev.Payload.Total.Amount,
		Currency:        strings.ToUpper(ev.Payload.Total.Currency),
		ClientReference: ev.Payload.ClientReference,
		Provider:        domain.ProviderMock,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	auth := s.processor.Authorize(p.ID, p.Amount)
	p.Status = auth.Status
	p.ProcessorReference = auth.ProcessorReference
	p.FailureReason = auth.FailureReason

	meta := contracts.NewMetadata(ev.Metadata.CorrelationID, ev.Name+":"+orderID, now)
	out := paymentEvent(p, meta)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		return s.publisher.PublishPaymentEvent(ctx, out)
	})
	if errors.Is(err, domain.ErrDuplicatePayment) {
		s.log.InfoContext(ctx, "order already charged, skipping", "order_id", orderID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("record payment for order %s: %w", orderID, err)
	}

	s.log.InfoContext(ctx, "payment processed", "order_id", orderID, "payment_id", p.ID, "status", p.Status)
	return nil
}

func paymentEvent(p domain.Payment, meta contracts.Metadata) contracts.PaymentEvent {
	payload := contracts.PaymentPayload{
		PaymentID:          p.ID,
		OrderID:            p.OrderID,
		Status:             string(p.Status),
		Provider:           p.Provider,
		Amount:             contracts.MoneyDTO{Amount: p.Amount, Currency: p.Currency},
		ClientReference:    p.ClientReference,
		ProcessorReference: p.ProcessorReference,
	}
	name := contracts.EventPaymentSucceeded
	switch p.Status {
	case domain.StatusFailed:
		name = contracts.EventPaymentFailed
		payload.FailureReason = p.FailureReason
	case domain.StatusCancelled:
		name = contracts.EventPaymentCancelled
		payload.Reason = p.FailureReason
	}
	return contracts.NewEnvelope(name, payload, meta)
}
