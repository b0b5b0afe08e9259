package application

import (
	"context"
	"errors"

	"github.com/dmehra2102/orderly/internal/order/domain"
)

// MarkOrderAsPaid confirms an order after a successful payment. Unknown
// orders and fulfilled or cancelled orders are left alone. No event is
// published: the change is a consequence of the payment event itself.
func (s *Service) MarkOrderAsPaid(ctx context.Context, orderID, paymentID string) error {
	return s.applyPaymentOutcome(ctx, orderID, func(o domain.Order) (domain.Order, bool) {
		return o.MarkPaid(paymentID)
	})
}

// MarkOrderPaymentFailed cancels a non-terminal order after a failed or
// cancelled payment, appending the reason to the order note.
func (s *Service) MarkOrderPaymentFailed(ctx context.Context, orderID, reason string) error {
	return s.applyPaymentOutcome(ctx, orderID, func(o domain.Order) (domain.Order, bool) {
		return o.MarkPaymentFailed(reason)
	})
}

func (s *Service) applyPaymentOutcome(ctx context.Context, orderID string, transition func(domain.Order) (domain.Order, bool)) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.FindByID(ctx, orderID)
		if errors.Is(err, domain.ErrNotFound) {
			s.log.DebugContext(ctx, "payment event for unknown order ignored", "order_id", orderID)
			return nil
		}
		if err != nil {
			return err
		}

		next, changed := transition(current)
		if !changed {
			s.log.DebugContext(ctx, "payment event absorbed", "order_id", orderID, "status", current.Status)
			return nil
		}
		if _, err := s.repo.Save(ctx, next); err != nil {
			return err
		}
		s.log.InfoContext(ctx, "order payment outcome applied", "order_id", orderID, "from", current.Status, "to", next.Status)
		return nil
	})
}
