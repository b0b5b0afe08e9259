package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(t *testing.T) Order {
	t.Helper()
	l1, err := NewOrderLine("P1", 2, mustMoney(t, 2500, "KRW"))
	require.NoError(t, err)
	l2, err := NewOrderLine("P2", 1, mustMoney(t, 4500, "KRW"))
	require.NoError(t, err)

	o, err := NewOrder("user-1", []OrderLine{l1, l2}, "  ring the bell ", " ref-1 ")
	require.NoError(t, err)
	return o
}

func TestNewOrder(t *testing.T) {
	o := newTestOrder(t)

	assert.Equal(t, StatusCreated, o.Status)
	assert.True(t, o.Total.Equals(mustMoney(t, 9500, "KRW")))
	assert.Equal(t, "ring the bell", o.Note)
	assert.Equal(t, "ref-1", o.ClientReference)
	require.Len(t, o.Lines, 2)
	assert.Equal(t, int64(5000), o.Lines[0].LineTotal.Amount())
	assert.Zero(t, o.Version)
}

func TestNewOrderRejects(t *testing.T) {
	line, err := NewOrderLine("P1", 1, mustMoney(t, 100, "KRW"))
	require.NoError(t, err)
	usd, err := NewOrderLine("P2", 1, mustMoney(t, 100, "USD"))
	require.NoError(t, err)

	_, err = NewOrder(" ", []OrderLine{line}, "", "")
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = NewOrder("user-1", nil, "", "")
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = NewOrder("user-1", []OrderLine{line, usd}, "", "")
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = NewOrderLine("P1", 0, mustMoney(t, 100, "KRW"))
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestCancel(t *testing.T) {
	o := newTestOrder(t)

	next, changed, err := o.Cancel()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusCancelled, next.Status)
	assert.Equal(t, StatusCreated, o.Status, "receiver must not change")

	again, changed, err := next.Cancel()
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, next, again)

	for _, st := range []OrderStatus{StatusConfirmed, StatusFulfilled} {
		o.Status = st
		_, changed, err = o.Cancel()
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.False(t, changed)
	}
}

func TestMarkPaid(t *testing.T) {
	o := newTestOrder(t)

	paid, changed := o.MarkPaid("pay-1")
	assert.True(t, changed)
	assert.Equal(t, StatusConfirmed, paid.Status)
	assert.Equal(t, "pay-1", paid.PaymentID)
	assert.Empty(t, o.PaymentID)

	repaid, changed := paid.MarkPaid("pay-2")
	assert.True(t, changed)
	assert.Equal(t, StatusConfirmed, repaid.Status)
	assert.Equal(t, "pay-2", repaid.PaymentID)

	for _, st := range []OrderStatus{StatusFulfilled, StatusCancelled} {
		o.Status = st
		same, changed := o.MarkPaid("pay-3")
		assert.False(t, changed)
		assert.Equal(t, st, same.Status)
		assert.Empty(t, same.PaymentID)
	}
}

func TestMarkPaymentFailed(t *testing.T) {
	o := newTestOrder(t)

	failed, changed := o.MarkPaymentFailed(" DECLINED_BY_RULE ")
	assert.True(t, changed)
	assert.Equal(t, StatusCancelled, failed.Status)
	assert.Equal(t, "ring the bell | DECLINED_BY_RULE", failed.Note)

	same, changed := failed.MarkPaymentFailed("again")
	assert.False(t, changed)
	assert.Equal(t, "ring the bell | DECLINED_BY_RULE", same.Note)

	o.Note = ""
	o.Status = StatusConfirmed
	failed, changed = o.MarkPaymentFailed("")
	assert.True(t, changed)
	assert.Equal(t, StatusCancelled, failed.Status)
	assert.Empty(t, failed.Note)

	o.Status = StatusFulfilled
	_, changed = o.MarkPaymentFailed("late")
	assert.False(t, changed)
}

func TestTransitionsDoNotShareLines(t *testing.T) {
	o := newTestOrder(t)
	next, _, err := o.Cancel()
	require.NoError(t, err)

	next.Lines[0].Quantity = 99
	assert.Equal(t, 2, o.Lines[0].Quantity)
}
