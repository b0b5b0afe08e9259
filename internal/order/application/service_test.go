package application_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/orderly/internal/order/application"
	"github.com/dmehra2102/orderly/internal/order/domain"
	"github.com/dmehra2102/orderly/internal/order/infrastructure/catalog"
	"github.com/dmehra2102/orderly/internal/order/infrastructure/memory"
	"github.com/dmehra2102/orderly/pkg/contracts"
)

type fixture struct {
	svc   *application.Service
	store *memory.Store
	pub   *memory.Publisher
}

func product(t *testing.T, id string, amount int64, currency string) domain.Product {
	t.Helper()
	price, err := domain.NewMoney(amount, currency)
	require.NoError(t, err)
	return domain.Product{ID: id, Name: id, Price: price}
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cat := catalog.NewStatic(
		product(t, "P1", 2500, "KRW"),
		product(t, "P2", 4500, "KRW"),
		product(t, "P3", 300, "USD"),
	)
	return newFixtureWithCatalog(t, cat)
}

func newFixtureWithCatalog(t *testing.T, cat application.Catalog) fixture {
	t.Helper()
	store := memory.NewStore()
	pub := memory.NewPublisher()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return fixture{
		svc:   application.NewService(log, store, cat, pub, store),
		store: store,
		pub:   pub,
	}
}

func validInput() application.CreateOrderInput {
	return application.CreateOrderInput{
		UserID: "user-1",
		Items: []application.LineRequest{
			{ProductID: "P1", Quantity: 2, UnitPrice: application.MoneyInput{Amount: 2500, Currency: "KRW"}},
			{ProductID: "P2", Quantity: 1, UnitPrice: application.MoneyInput{Amount: 4500, Currency: "KRW"}},
		},
	}
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := validInput()
	in.Note = "  extra hot  "
	in.Meta = application.EventMeta{CorrelationID: "corr-1", CausationID: "cause-1"}

	order, err := f.svc.CreateOrder(ctx, in)
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, domain.StatusCreated, order.Status)
	assert.Equal(t, int64(9500), order.Total.Amount())
	assert.Equal(t, "KRW", order.Total.Currency())
	assert.Equal(t, "extra hot", order.Note)
	assert.Empty(t, order.ClientReference)
	require.Len(t, order.Lines, 2)

	var sum int64
	for _, l := range order.Lines {
		assert.Equal(t, order.Total.Currency(), l.LineTotal.Currency())
		sum += l.LineTotal.Amount()
	}
	assert.Equal(t, order.Total.Amount(), sum)

	events := f.pub.Created()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, contracts.EventOrderCreated, ev.Name)
	assert.Equal(t, 1, ev.Version)
	assert.Equal(t, order.ID, ev.Payload.OrderID)
	assert.Equal(t, "CREATED", ev.Payload.Status)
	assert.Equal(t, contracts.MoneyDTO{Amount: 9500, Currency: "KRW"}, ev.Payload.Total)
	assert.Len(t, ev.Payload.Items, 2)
	assert.Equal(t, "corr-1", ev.Metadata.CorrelationID)
	assert.Equal(t, "cause-1", ev.Metadata.CausationID)
	assert.NotEmpty(t, ev.Metadata.OccurredAt)
}

func TestCreateOrderGeneratesCorrelationID(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), validInput())
	require.NoError(t, err)

	events := f.pub.Created()
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].Metadata.CorrelationID)
	assert.Empty(t, events[0].Metadata.CausationID)
}

func TestCreateOrderIdempotentByClientReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := validInput()
	in.ClientReference = " checkout-42 "
	first, err := f.svc.CreateOrder(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "checkout-42", first.ClientReference)

	// a retry with a different (even invalid) payload returns the stored order
	retry := application.CreateOrderInput{
		UserID:          "user-1",
		ClientReference: "checkout-42",
		Items: []application.LineRequest{
			{ProductID: "unknown", Quantity: 1, UnitPrice: application.MoneyInput{Amount: 1, Currency: "KRW"}},
		},
	}
	second, err := f.svc.CreateOrder(ctx, retry)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Total, second.Total)
	assert.Equal(t, 1, f.store.Len())
	assert.Len(t, f.pub.Created(), 1)

	// same reference for another user is a different key
	in.UserID = "user-2"
	other, err := f.svc.CreateOrder(ctx, in)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
	assert.Equal(t, 2, f.store.Len())
}

func TestCreateOrderConcurrentRetriesCollapse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := validInput()
	in.ClientReference = "checkout-7"

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o, err := f.svc.CreateOrder(ctx, in)
			assert.NoError(t, err)
			ids[i] = o.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, f.store.Len())
	assert.Len(t, f.pub.Created(), 1)
}

func TestCreateOrderValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*application.CreateOrderInput)
		msg    string
	}{
		{"missing user", func(in *application.CreateOrderInput) { in.UserID = "  " }, "user id"},
		{"no items", func(in *application.CreateOrderInput) { in.Items = nil }, "at least one item"},
		{"unknown product", func(in *application.CreateOrderInput) { in.Items[1].ProductID = "P9" }, "unknown product"},
		{"price mismatch", func(in *application.CreateOrderInput) { in.Items[0].UnitPrice.Amount = 2400 }, "price mismatch"},
		{"price currency mismatch", func(in *application.CreateOrderInput) { in.Items[0].UnitPrice.Currency = "USD" }, "price mismatch"},
		{"mixed currencies", func(in *application.CreateOrderInput) {
			in.Items[1] = application.LineRequest{ProductID: "P3", Quantity: 1, UnitPrice: application.MoneyInput{Amount: 300, Currency: "USD"}}
		}, "currency mismatch"},
		{"zero quantity", func(in *application.CreateOrderInput) { in.Items[0].Quantity = 0 }, "quantity"},
		{"negative price", func(in *application.CreateOrderInput) { in.Items[0].UnitPrice.Amount = -1 }, "amount"},
		{"bad currency", func(in *application.CreateOrderInput) { in.Items[0].UnitPrice.Currency = "WON!" }, "currency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := validInput()
			tt.mutate(&in)

			_, err := f.svc.CreateOrder(context.Background(), in)
			require.ErrorIs(t, err, domain.ErrInvalidOrder)
			assert.Contains(t, err.Error(), tt.msg)
			assert.Equal(t, 0, f.store.Len())
			assert.Empty(t, f.pub.Created())
		})
	}
}

func TestCreateOrderAcceptsLowercaseCurrency(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.Items[0].UnitPrice.Currency = "krw"

	order, err := f.svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "KRW", order.Total.Currency())
}

type unavailableCatalog struct{ application.Catalog }

func (unavailableCatalog) FindByID(context.Context, string) (domain.Product, bool, error) {
	return domain.Product{}, false, fmt.Errorf("%w: catalog down", domain.ErrUnavailable)
}

func TestCreateOrderCatalogUnavailable(t *testing.T) {
	f := newFixtureWithCatalog(t, unavailableCatalog{})

	_, err := f.svc.CreateOrder(context.Background(), validInput())
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	assert.Equal(t, 0, f.store.Len())
	assert.Empty(t, f.pub.Created())
}

func TestCreateOrderPublishFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.pub.Err = errors.New("broker down")

	_, err := f.svc.CreateOrder(context.Background(), validInput())
	require.Error(t, err)
	assert.Equal(t, 0, f.store.Len())
}

func createOrder(t *testing.T, f fixture) domain.Order {
	t.Helper()
	o, err := f.svc.CreateOrder(context.Background(), validInput())
	require.NoError(t, err)
	return o
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := createOrder(t, f)

	cancelled, err := f.svc.CancelOrder(ctx, application.CancelOrderInput{
		OrderID: created.ID,
		UserID:  "user-1",
		Reason:  "  changed my mind ",
		Meta:    application.EventMeta{CorrelationID: "corr-9"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, created.Lines, cancelled.Lines)
	assert.True(t, created.Total.Equals(cancelled.Total))

	events := f.pub.StatusChanged()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, contracts.EventOrderStatusChanged, ev.Name)
	assert.Equal(t, created.ID, ev.Payload.OrderID)
	assert.Equal(t, "user-1", ev.Payload.UserID)
	assert.Equal(t, "CREATED", ev.Payload.PreviousStatus)
	assert.Equal(t, "CANCELLED", ev.Payload.CurrentStatus)
	assert.Equal(t, "changed my mind", ev.Payload.Reason)
	assert.Equal(t, "corr-9", ev.Metadata.CorrelationID)

	again, err := f.svc.CancelOrder(ctx, application.CancelOrderInput{OrderID: created.ID, UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, cancelled, again)
	assert.Len(t, f.pub.StatusChanged(), 1)
}

func TestCancelOrderErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := createOrder(t, f)

	_, err := f.svc.CancelOrder(ctx, application.CancelOrderInput{OrderID: created.ID, UserID: "user-2"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.CancelOrder(ctx, application.CancelOrderInput{OrderID: "missing", UserID: "user-1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.CancelOrder(ctx, application.CancelOrderInput{OrderID: created.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)

	_, err = f.svc.CancelOrder(ctx, application.CancelOrderInput{UserID: "user-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)

	require.NoError(t, f.svc.MarkOrderAsPaid(ctx, created.ID, "pay-1"))
	before, err := f.store.FindByID(ctx, created.ID)
	require.NoError(t, err)

	_, err = f.svc.CancelOrder(ctx, application.CancelOrderInput{OrderID: created.ID, UserID: "user-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	after, err := f.store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, f.pub.StatusChanged())
}

func TestPaymentSucceededScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := createOrder(t, f)
	assert.Equal(t, int64(9500), created.Total.Amount())

	require.NoError(t, f.svc.MarkOrderAsPaid(ctx, created.ID, "pay-1"))

	paid, err := f.store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, paid.Status)
	assert.Equal(t, "pay-1", paid.PaymentID)

	// replays while confirmed are re-saved with the same status
	require.NoError(t, f.svc.MarkOrderAsPaid(ctx, created.ID, "pay-1"))
	replayed, err := f.store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, replayed.Status)
	assert.Equal(t, "pay-1", replayed.PaymentID)

	assert.Empty(t, f.pub.StatusChanged(), "payment outcomes are not re-broadcast")
	assert.Len(t, f.pub.Created(), 1)
}

func TestPaymentEventsOnFulfilledOrderAreNoOps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := createOrder(t, f)

	fulfilled := created
	fulfilled.Status = domain.StatusFulfilled
	_, err := f.store.Save(ctx, fulfilled)
	require.NoError(t, err)
	before, err := f.store.FindByID(ctx, created.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.MarkOrderAsPaid(ctx, created.ID, "pay-2"))
	require.NoError(t, f.svc.MarkOrderPaymentFailed(ctx, created.ID, "late failure"))

	after, err := f.store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestPaymentFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := validInput()
	in.Note = "leave at door"
	created, err := f.svc.CreateOrder(ctx, in)
	require.NoError(t, err)

	require.NoError(t, f.svc.MarkOrderPaymentFailed(ctx, created.ID, "DECLINED_BY_RULE"))
	failed, err := f.store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, failed.Status)
	assert.Equal(t, "leave at door | DECLINED_BY_RULE", failed.Note)

	// replay on a cancelled order does not re-append
	require.NoError(t, f.svc.MarkOrderPaymentFailed(ctx, created.ID, "DECLINED_BY_RULE"))
	again, err := f.store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, failed, again)
}

func TestPaymentFailedAfterConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := createOrder(t, f)

	require.NoError(t, f.svc.MarkOrderAsPaid(ctx, created.ID, "pay-1"))
	require.NoError(t, f.svc.MarkOrderPaymentFailed(ctx, created.ID, "refunded"))

	o, err := f.store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, o.Status)

	// a late success does not resurrect a cancelled order
	require.NoError(t, f.svc.MarkOrderAsPaid(ctx, created.ID, "pay-2"))
	o, err = f.store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, o.Status)
	assert.Equal(t, "pay-1", o.PaymentID)
}

func TestPaymentEventForUnknownOrderIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.NoError(t, f.svc.MarkOrderAsPaid(ctx, "nope", "pay-1"))
	assert.NoError(t, f.svc.MarkOrderPaymentFailed(ctx, "nope", "x"))
	assert.Equal(t, 0, f.store.Len())
}

func TestQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := createOrder(t, f)
	second := createOrder(t, f)

	list, err := f.svc.ListOrders(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, []string{list[0].ID, list[1].ID})

	none, err := f.svc.ListOrders(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.svc.ListOrders(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)

	got, err := f.svc.GetOrder(ctx, first.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = f.svc.GetOrder(ctx, first.ID, "user-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	products, err := f.svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 3)
}

func TestPartitionKeys(t *testing.T) {
	created := contracts.NewEnvelope(contracts.EventOrderCreated, contracts.OrderCreatedPayload{OrderID: "o-1"}, contracts.Metadata{})
	assert.Equal(t, "o-1", application.CreatedKey(created))

	changed := contracts.NewEnvelope(contracts.EventOrderStatusChanged, contracts.OrderStatusChangedPayload{
		OrderID: "o-1", CurrentStatus: "CANCELLED",
	}, contracts.Metadata{})
	assert.Equal(t, "o-1:CANCELLED", application.StatusChangedKey(changed))
}
