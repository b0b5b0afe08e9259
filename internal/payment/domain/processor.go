package domain

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	DefaultDeclineThreshold = 500000
	ReasonDeclinedByRule    = "DECLINED_BY_RULE"
)

type Authorization struct {
	Status             Status
	ProcessorReference string
	FailureReason      string
}

// MockProcessor approves every amount in (0, DeclineThreshold).
type MockProcessor struct {
	DeclineThreshold int64
}

func (p MockProcessor) Authorize(paymentID string, amount int64) Authorization {
	threshold := p.DeclineThreshold
	if threshold <= 0 {
		threshold = DefaultDeclineThreshold
	}
	ref := fmt.Sprintf("mock_%s_%s", paymentID, uuid.NewString())
	if amount <= 0 || amount >= threshold {
		return Authorization{Status: StatusFailed, ProcessorReference: ref, FailureReason: ReasonDeclinedByRule}
	}
	return Authorization{Status: StatusApproved, ProcessorReference: ref}
}
