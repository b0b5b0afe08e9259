package domain

import (
	"fmt"
	"strings"
	"time"
)

type OrderStatus string

const (
	StatusCreated   OrderStatus = "CREATED"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusFulfilled OrderStatus = "FULFILLED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusConfirmed, StatusCancelled, StatusFulfilled:
		return true
	}
	return false
}

// Terminal reports whether payment events can no longer move the order.
func (s OrderStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusFulfilled
}

// noteSeparator joins a prior note with a payment failure reason.
const noteSeparator = " | "

type OrderLine struct {
	ProductID string
	Quantity  int
	UnitPrice Money
	LineTotal Money
}

func NewOrderLine(productID string, quantity int, unitPrice Money) (OrderLine, error) {
	if strings.TrimSpace(productID) == "" {
		return OrderLine{}, fmt.Errorf("%w: product id is required", ErrInvalidOrder)
	}
	total, err := unitPrice.Multiply(quantity)
	if err != nil {
		return OrderLine{}, fmt.Errorf("%w: product %s: %v", ErrInvalidOrder, productID, err)
	}
	return OrderLine{
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		LineTotal: total,
	}, nil
}

// Order is an immutable snapshot of the aggregate. Transitions return a new
// snapshot and leave the receiver untouched; an empty string marks an absent
// optional field.
type Order struct {
	ID              string
	UserID          string
	Status          OrderStatus
	Total           Money
	Lines           []OrderLine
	Note            string
	ClientReference string
	PaymentID       string
	// Version is 0 until the order is first stored.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewOrder(userID string, lines []OrderLine, note, clientReference string) (Order, error) {
	if strings.TrimSpace(userID) == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrInvalidOrder)
	}
	if len(lines) == 0 {
		return Order{}, fmt.Errorf("%w: order must contain at least one item", ErrInvalidOrder)
	}

	total, err := NewMoney(0, lines[0].UnitPrice.Currency())
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	for _, line := range lines {
		if line.UnitPrice.Currency() != total.Currency() {
			return Order{}, fmt.Errorf("%w: all order items must use the same currency", ErrInvalidOrder)
		}
		if total, err = total.Add(line.LineTotal); err != nil {
			return Order{}, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
		}
	}

	return Order{
		UserID:          userID,
		Status:          StatusCreated,
		Total:           total,
		Lines:           append([]OrderLine(nil), lines...),
		Note:            strings.TrimSpace(note),
		ClientReference: strings.TrimSpace(clientReference),
	}, nil
}

// Cancel applies the user-driven edge CREATED -> CANCELLED. An already
// cancelled order is returned unchanged with changed == false.
func (o Order) Cancel() (next Order, changed bool, err error) {
	switch o.Status {
	case StatusCancelled:
		return o, false, nil
	case StatusCreated:
		next = o.clone()
		next.Status = StatusCancelled
		return next, true, nil
	default:
		return o, false, fmt.Errorf("%w: only %s orders may be cancelled, order is %s", ErrInvalidTransition, StatusCreated, o.Status)
	}
}

// MarkPaid applies a successful payment. Confirmed orders are re-confirmed
// with the given payment id; terminal orders absorb the event.
func (o Order) MarkPaid(paymentID string) (Order, bool) {
	if o.Status != StatusCreated && o.Status != StatusConfirmed {
		return o, false
	}
	next := o.clone()
	next.Status = StatusConfirmed
	next.PaymentID = paymentID
	return next, true
}

// MarkPaymentFailed cancels a non-terminal order and appends the reason to
// its note.
func (o Order) MarkPaymentFailed(reason string) (Order, bool) {
	if o.Status.Terminal() {
		return o, false
	}
	next := o.clone()
	next.Status = StatusCancelled
	next.Note = appendNote(o.Note, reason)
	return next, true
}

func (o Order) clone() Order {
	o.Lines = append([]OrderLine(nil), o.Lines...)
	return o
}

func appendNote(note, reason string) string {
	reason = strings.TrimSpace(reason)
	switch {
	case reason == "":
		return note
	case note == "":
		return reason
	}
	return note + noteSeparator + reason
}
