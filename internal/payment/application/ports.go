package application

import (
	"context"

	"github.com/dmehra2102/orderly/internal/payment/domain"
	"github.com/dmehra2102/orderly/pkg/contracts"
)

// PaymentRepository.Create fails with domain.ErrDuplicatePayment when the
// order already has a payment.
type PaymentRepository interface {
	Create(ctx context.Context, p domain.Payment) error
}

type PaymentPublisher interface {
	PublishPaymentEvent(ctx context.Context, ev contracts.PaymentEvent) error
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
