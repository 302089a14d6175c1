package domain

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus represents the status of an outbox message
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxEventNotice is the event type of notification fan-outs
const OutboxEventNotice = "event.notice"

// DefaultOutboxMaxRetries bounds relay attempts per message
const DefaultOutboxMaxRetries = 5

// OutboxMessage is a durable record of something to publish after commit
type OutboxMessage struct {
	ID            string       `json:"id"`
	AggregateType string       `json:"aggregate_type"`
	AggregateID   string       `json:"aggregate_id"`
	EventType     string       `json:"event_type"`
	Payload       []byte       `json:"payload"`
	Topic         string       `json:"topic"`
	PartitionKey  string       `json:"partition_key"`
	Status        OutboxStatus `json:"status"`
	RetryCount    int          `json:"retry_count"`
	MaxRetries    int          `json:"max_retries"`
	LastError     string       `json:"last_error,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	PublishedAt   *time.Time   `json:"published_at,omitempty"`
}

// NewNoticeMessage wraps a notice for the outbox. Messages of one event share a partition key.
func NewNoticeMessage(n *Notice, topic string, now time.Time) (*OutboxMessage, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	key := strconv.FormatInt(n.EventID, 10)
	return &OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: "event",
		AggregateID:   key,
		EventType:     OutboxEventNotice,
		Payload:       payload,
		Topic:         topic,
		PartitionKey:  key,
		Status:        OutboxStatusPending,
		MaxRetries:    DefaultOutboxMaxRetries,
		CreatedAt:     now,
	}, nil
}

// CanRetry checks if a failed message has attempts left
func (m *OutboxMessage) CanRetry() bool {
	return m.Status == OutboxStatusFailed && m.RetryCount < m.MaxRetries
}

// MarkAsPublished marks the message as delivered
func (m *OutboxMessage) MarkAsPublished(now time.Time) {
	m.Status = OutboxStatusPublished
	m.PublishedAt = &now
}

// MarkAsFailed records a failed attempt
func (m *OutboxMessage) MarkAsFailed(reason string) {
	m.Status = OutboxStatusFailed
	m.LastError = reason
	m.RetryCount++
}

// DecodeNotice unmarshals the payload of a notice message
func (m *OutboxMessage) DecodeNotice() (*Notice, error) {
	var n Notice
	if err := json.Unmarshal(m.Payload, &n); err != nil {
		return nil, err
	}
	return &n, nil
}
