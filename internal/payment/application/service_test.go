package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/orderly/internal/payment/domain"
	"github.com/dmehra2102/orderly/pkg/contracts"
)

// fakeStore stages writes and keeps them only when the unit succeeds.
type fakeStore struct {
	payments map[string]domain.Payment
	events   []contracts.PaymentEvent
	staged   []contracts.PaymentEvent
	pubErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{payments: map[string]domain.Payment{}}
}

func (f *fakeStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	before := make(map[string]domain.Payment, len(f.payments))
	for k, v := range f.payments {
		before[k] = v
	}
	f.staged = nil
	if err := fn(ctx); err != nil {
		f.payments = before
		return err
	}
	f.events = append(f.events, f.staged...)
	return nil
}

func (f *fakeStore) Create(_ context.Context, p domain.Payment) error {
	if _, ok := f.payments[p.OrderID]; ok {
		return domain.ErrDuplicatePayment
	}
	f.payments[p.OrderID] = p
	return nil
}

func (f *fakeStore) PublishPaymentEvent(_ context.Context, ev contracts.PaymentEvent) error {
	if f.pubErr != nil {
		return f.pubErr
	}
	f.staged = append(f.staged, ev)
	return nil
}

func newTestService(store *fakeStore) *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(log, store, store, store, domain.MockProcessor{DeclineThreshold: 10000})
}

func orderCreated(orderID string, amount int64) contracts.OrderCreatedEvent {
	return contracts.NewEnvelope(contracts.EventOrderCreated, contracts.OrderCreatedPayload{
		OrderID:         orderID,
		UserID:          "user-1",
		Status:          "CREATED",
		Total:           contracts.MoneyDTO{Amount: amount, Currency: "krw"},
		ClientReference: "ref-1",
	}, contracts.Metadata{CorrelationID: "corr-1", OccurredAt: "2026-01-01T00:00:00Z"})
}

func TestHandleOrderCreatedApproves(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	require.NoError(t, svc.HandleOrderCreated(context.Background(), orderCreated("o-1", 5000)))

	require.Len(t, store.events, 1)
	ev := store.events[0]
	assert.Equal(t, contracts.EventPaymentSucceeded, ev.Name)
	assert.Equal(t, "o-1", ev.Payload.OrderID)
	assert.Equal(t, "APPROVED", ev.Payload.Status)
	assert.Equal(t, "MOCK", ev.Payload.Provider)
	assert.Equal(t, contracts.MoneyDTO{Amount: 5000, Currency: "KRW"}, ev.Payload.Amount)
	assert.Equal(t, "ref-1", ev.Payload.ClientReference)
	assert.Equal(t, "corr-1", ev.Metadata.CorrelationID)
	assert.Equal(t, "orders.order.created:o-1", ev.Metadata.CausationID)
	assert.Equal(t, store.payments["o-1"].ID, ev.Payload.PaymentID)
}

func TestHandleOrderCreatedDeclines(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	require.NoError(t, svc.HandleOrderCreated(context.Background(), orderCreated("o-1", 10000)))

	require.Len(t, store.events, 1)
	assert.Equal(t, contracts.EventPaymentFailed, store.events[0].Name)
	assert.Equal(t, "DECLINED_BY_RULE", store.events[0].Payload.FailureReason)
	assert.Equal(t, domain.StatusFailed, store.payments["o-1"].Status)
}

func TestHandleOrderCreatedIsOncePerOrder(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	require.NoError(t, svc.HandleOrderCreated(context.Background(), orderCreated("o-1", 5000)))
	require.NoError(t, svc.HandleOrderCreated(context.Background(), orderCreated("o-1", 5000)))

	assert.Len(t, store.events, 1)
	assert.Len(t, store.payments, 1)
}

func TestHandleOrderCreatedRollsBackOnPublishFailure(t *testing.T) {
	store := newFakeStore()
	store.pubErr = errors.New("outbox down")
	svc := newTestService(store)

	err := svc.HandleOrderCreated(context.Background(), orderCreated("o-1", 5000))
	require.Error(t, err)
	assert.Empty(t, store.payments)
	assert.Empty(t, store.events)
}

func TestHandleOrderCreatedRequiresOrderID(t *testing.T) {
	svc := newTestService(newFakeStore())
	err := svc.HandleOrderCreated(context.Background(), orderCreated(" ", 5000))
	assert.ErrorIs(t, err, domain.ErrInvalidPayment)
}
