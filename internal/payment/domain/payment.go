package domain

import (
	"errors"
	"time"
)

var (
	ErrInvalidPayment = errors.New("invalid payment")
	// ErrDuplicatePayment reports a second payment for the same order.
	ErrDuplicatePayment = errors.New("payment already exists for order")
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

const ProviderMock = "MOCK"

type Payment struct {
	ID                 string
	OrderID            string
	Amount             int64
	Currency           string
	ClientReference    string
	Provider           string
	Status             Status
	ProcessorReference string
	FailureReason      string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
