package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetadata(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("KST", 9*3600))

	meta := NewMetadata("", " ", now)
	assert.NotEmpty(t, meta.CorrelationID)
	assert.Empty(t, meta.CausationID)
	assert.Equal(t, "2026-01-01T18:04:05Z", meta.OccurredAt)

	meta = NewMetadata("corr-1", "cause-1", now)
	assert.Equal(t, "corr-1", meta.CorrelationID)
	assert.Equal(t, "cause-1", meta.CausationID)
}

func TestEnvelopeWireShape(t *testing.T) {
	ev := NewEnvelope(EventOrderStatusChanged, OrderStatusChangedPayload{
		OrderID:        "o-1",
		UserID:         "u-1",
		PreviousStatus: "CREATED",
		CurrentStatus:  "CANCELLED",
	}, Metadata{CorrelationID: "c", OccurredAt: "2026-01-01T00:00:00Z"})

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "orders.order.statusChanged",
		"version": 1,
		"payload": {"orderId":"o-1","userId":"u-1","previousStatus":"CREATED","currentStatus":"CANCELLED"},
		"metadata": {"correlationId":"c","occurredAt":"2026-01-01T00:00:00Z"}
	}`, string(data))

	var raw RawEnvelope
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, EventOrderStatusChanged, raw.Name)
	assert.Contains(t, string(raw.Payload), `"orderId":"o-1"`)
}
