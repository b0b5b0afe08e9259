package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMockProcessorAuthorize(t *testing.T) {
	p := MockProcessor{DeclineThreshold: 10000}

	tests := []struct {
		amount int64
		want   Status
	}{
		{9999, StatusApproved},
		{1, StatusApproved},
		{10000, StatusFailed},
		{0, StatusFailed},
		{-5, StatusFailed},
	}
	for _, tt := range tests {
		got := p.Authorize("pay-1", tt.amount)
		assert.Equal(t, tt.want, got.Status, tt.amount)
		assert.Contains(t, got.ProcessorReference, "mock_pay-1_")
		if tt.want == StatusFailed {
			assert.Equal(t, ReasonDeclinedByRule, got.FailureReason)
		} else {
			assert.Empty(t, got.FailureReason)
		}
	}

	assert.Equal(t, StatusApproved, MockProcessor{}.Authorize("p", 499999).Status)
	assert.Equal(t, StatusFailed, MockProcessor{}.Authorize("p", 500000).Status)
}
