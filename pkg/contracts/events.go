// Package contracts holds the wire shapes shared by the order and payment
// services: the event envelope, event names and payloads.
package contracts

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated       = "orders.order.created"
	EventOrderStatusChanged = "orders.order.statusChanged"

	EventPaymentSucceeded = "payments.payment.succeeded"
	EventPaymentFailed    = "payments.payment.failed"
	EventPaymentCancelled = "payments.payment.cancelled"
)

// Version is the envelope version emitted for every event.
const Version = 1

type Metadata struct {
	CorrelationID string `json:"correlationId"`
	CausationID   string `json:"causationId,omitempty"`
	OccurredAt    string `json:"occurredAt"`
}

// NewMetadata fills in a fresh correlation id when none is supplied.
func NewMetadata(correlationID, causationID string, now time.Time) Metadata {
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return Metadata{
		CorrelationID: correlationID,
		CausationID:   strings.TrimSpace(causationID),
		OccurredAt:    now.UTC().Format(time.RFC3339Nano),
	}
}

type Envelope[P any] struct {
	Name     string   `json:"name"`
	Version  int      `json:"version"`
	Payload  P        `json:"payload"`
	Metadata Metadata `json:"metadata"`
}

func NewEnvelope[P any](name string, payload P, meta Metadata) Envelope[P] {
	return Envelope[P]{Name: name, Version: Version, Payload: payload, Metadata: meta}
}

// RawEnvelope defers payload decoding until the event name is known.
type RawEnvelope = Envelope[json.RawMessage]

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type OrderLineDTO struct {
	ProductID string   `json:"productId"`
	Quantity  int      `json:"quantity"`
	UnitPrice MoneyDTO `json:"unitPrice"`
	LineTotal MoneyDTO `json:"lineTotal"`
}

type OrderCreatedPayload struct {
	OrderID         string         `json:"orderId"`
	UserID          string         `json:"userId"`
	Status          string         `json:"status"`
	Total           MoneyDTO       `json:"total"`
	Items           []OrderLineDTO `json:"items"`
	Note            string         `json:"note,omitempty"`
	ClientReference string         `json:"clientReference,omitempty"`
}

type OrderStatusChangedPayload struct {
	OrderID        string `json:"orderId"`
	UserID         string `json:"userId"`
	PreviousStatus string `json:"previousStatus"`
	CurrentStatus  string `json:"currentStatus"`
	Reason         string `json:"reason,omitempty"`
}

type (
	OrderCreatedEvent       = Envelope[OrderCreatedPayload]
	OrderStatusChangedEvent = Envelope[OrderStatusChangedPayload]
)

// PaymentPayload carries the fields common to every payments.payment.* event.
// FailureReason is set on failed events, Reason on cancelled ones.
type PaymentPayload struct {
	PaymentID          string   `json:"paymentId"`
	OrderID            string   `json:"orderId"`
	Status             string   `json:"status"`
	Provider           string   `json:"provider"`
	Amount             MoneyDTO `json:"amount"`
	ClientReference    string   `json:"clientReference,omitempty"`
	ProcessorReference string   `json:"processorReference,omitempty"`
	FailureReason      string   `json:"failureReason,omitempty"`
	Reason             string   `json:"reason,omitempty"`
}

type PaymentEvent = Envelope[PaymentPayload]
