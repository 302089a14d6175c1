package retry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrDLQPublishFailed is returned when a message exhausted its retries and could not be
// dead-lettered either. The caller must not acknowledge it.
var ErrDLQPublishFailed = errors.New("failed to publish to DLQ")

// DLQSuffix is appended to a topic name to build its dead letter topic
const DLQSuffix = ".dlq"

// DLQMessage is the envelope written to a dead letter topic
type DLQMessage struct {
	ID             string            `json:"id"`
	OriginalTopic  string            `json:"original_topic"`
	OriginalKey    string            `json:"original_key"`
	Payload        json.RawMessage   `json:"payload"`
	Headers        map[string]string `json:"headers,omitempty"`
	Error          string            `json:"error"`
	Attempts       int               `json:"attempts"`
	FirstAttemptAt time.Time         `json:"first_attempt_at"`
	LastAttemptAt  time.Time         `json:"last_attempt_at"`
	MovedToDLQAt   time.Time         `json:"moved_to_dlq_at"`
	Source         string            `json:"source"`
}

// DLQPublisher publishes messages that exhausted their retries
type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, msg *DLQMessage) error
}

// JSONPublisher is the part of a Kafka producer the DLQ publisher needs
type JSONPublisher interface {
	ProduceJSON(ctx context.Context, topic, key string, data any, headers map[string]string) error
}

// KafkaDLQPublisher writes dead letters to "<topic>.dlq"
type KafkaDLQPublisher struct {
	producer JSONPublisher
	source   string
}

// NewKafkaDLQPublisher creates a KafkaDLQPublisher. source names the service in the envelope.
func NewKafkaDLQPublisher(producer JSONPublisher, source string) *KafkaDLQPublisher {
	return &KafkaDLQPublisher{producer: producer, source: source}
}

// DLQTopic returns the dead letter topic for topic
func DLQTopic(topic string) string {
	return topic + DLQSuffix
}

// PublishToDLQ publishes msg to the dead letter topic of its original topic
func (p *KafkaDLQPublisher) PublishToDLQ(ctx context.Context, msg *DLQMessage) error {
	if msg == nil {
		return fmt.Errorf("DLQ message cannot be nil")
	}
	msg.MovedToDLQAt = time.Now()
	msg.Source = p.source

	headers := map[string]string{
		"content_type":   "application/json",
		"original_topic": msg.OriginalTopic,
		"error":          msg.Error,
		"attempts":       strconv.Itoa(msg.Attempts),
		"source":         msg.Source,
	}
	for k, v := range msg.Headers {
		if _, taken := headers[k]; !taken {
			headers["original_"+k] = v
		}
	}

	return p.producer.ProduceJSON(ctx, DLQTopic(msg.OriginalTopic), msg.OriginalKey, msg, headers)
}

// NoOpDLQPublisher drops dead letters
type NoOpDLQPublisher struct{}

func (NoOpDLQPublisher) PublishToDLQ(context.Context, *DLQMessage) error { return nil }

// MessageContext identifies the message being processed
type MessageContext struct {
	ID             string
	Topic          string
	Key            string
	Payload        json.RawMessage
	Headers        map[string]string
	FirstAttemptAt time.Time
}

// DLQHandler retries an operation and dead-letters the message when it keeps failing
type DLQHandler struct {
	retrier   *Retrier
	publisher DLQPublisher
	source    string
	onDLQ     func(msg *DLQMessage)
}

// DLQHandlerConfig configures a DLQHandler
type DLQHandlerConfig struct {
	RetryConfig *Config
	Source      string
	// OnDLQ, when set, observes every dead-lettered message
	OnDLQ func(msg *DLQMessage)
}

// NewDLQHandler creates a DLQHandler
func NewDLQHandler(publisher DLQPublisher, cfg *DLQHandlerConfig) *DLQHandler {
	if cfg == nil {
		cfg = &DLQHandlerConfig{}
	}
	if publisher == nil {
		publisher = NoOpDLQPublisher{}
	}
	return &DLQHandler{
		retrier:   New(cfg.RetryConfig),
		publisher: publisher,
		source:    cfg.Source,
		onDLQ:     cfg.OnDLQ,
	}
}

// ProcessWithDLQ runs op with retries. When every attempt fails the message is
// published to the dead letter topic and the operation error is returned.
// A failing DLQ publish is reported as an error wrapping both causes.
func (h *DLQHandler) ProcessWithDLQ(ctx context.Context, msgCtx *MessageContext, op Operation) error {
	if msgCtx.FirstAttemptAt.IsZero() {
		msgCtx.FirstAttemptAt = time.Now()
	}

	result := h.retrier.Do(ctx, op)
	if result.Err == nil {
		return nil
	}

	cause := result.Cause()
	dlqMsg := &DLQMessage{
		ID:             msgCtx.ID,
		OriginalTopic:  msgCtx.Topic,
		OriginalKey:    msgCtx.Key,
		Payload:        msgCtx.Payload,
		Headers:        msgCtx.Headers,
		Error:          cause.Error(),
		Attempts:       result.Attempts,
		FirstAttemptAt: msgCtx.FirstAttemptAt,
		LastAttemptAt:  time.Now(),
		Source:         h.source,
	}
	if h.onDLQ != nil {
		h.onDLQ(dlqMsg)
	}

	if err := h.publisher.PublishToDLQ(ctx, dlqMsg); err != nil {
		return fmt.Errorf("%w: %w (original error: %v)", ErrDLQPublishFailed, err, cause)
	}
	return cause
}
