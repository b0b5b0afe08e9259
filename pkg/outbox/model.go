package outbox

import (
	"encoding/json"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	Type          string
	// Topic overrides the dispatcher's default topic when set.
	Topic string
	// Key is the partition key; AggregateID is used when empty.
	Key         string
	Payload     []byte
	Headers     map[string]string
	Traceparent string
	CreatedAt   time.Time
	Status      Status
	RelayID     string
	RetryCount  int
	LastError   *string
}

func (e Event) PartitionKey() string {
	if e.Key != "" {
		return e.Key
	}
	return e.AggregateID
}

const (
	HeaderCorrelationID = "correlation_id"
	HeaderCausationID   = "causation_id"
)

// NewEvent marshals envelope as the payload of an event bound for topic.
// Correlation and causation ids are copied into headers so consumers can
// route without decoding the body.
func NewEvent(aggregateType, aggregateID, eventType, topic, key string, envelope any, correlationID, causationID, traceparent string) (Event, error) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return Event{}, fmt.Errorf("outbox: marshal %s: %w", eventType, err)
	}
	headers := map[string]string{HeaderCorrelationID: correlationID}
	if causationID != "" {
		headers[HeaderCausationID] = causationID
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Type:          eventType,
		Topic:         topic,
		Key:           key,
		Payload:       payload,
		Headers:       headers,
		Traceparent:   traceparent,
		Status:        StatusPending,
	}, nil
}
