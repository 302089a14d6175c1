package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Record is a consumed message
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time

	raw *kgo.Record
}

// Header returns a header value or ""
func (r *Record) Header(key string) string {
	return r.Headers[key]
}

// ConsumerConfig holds consumer-group configuration
type ConsumerConfig struct {
	Brokers        []string
	GroupID        string
	Topics         []string
	ClientID       string
	MaxRetries     int
	RetryInterval  time.Duration
	SessionTimeout time.Duration
}

// Consumer reads records as part of a consumer group. Offsets are committed explicitly.
type Consumer struct {
	client *kgo.Client
}

// NewConsumer joins the consumer group
func NewConsumer(ctx context.Context, cfg *ConsumerConfig) (*Consumer, error) {
	if cfg == nil || len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.GroupID == "" || len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("kafka consumer requires a group id and topics")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}
	if cfg.SessionTimeout > 0 {
		opts = append(opts, kgo.SessionTimeout(cfg.SessionTimeout))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	if err := ping(ctx, client, cfg.MaxRetries, cfg.RetryInterval); err != nil {
		client.Close()
		return nil, err
	}
	return &Consumer{client: client}, nil
}

// Poll blocks until records are available or ctx is done
func (c *Consumer) Poll(ctx context.Context) ([]*Record, error) {
	fetches := c.client.PollFetches(ctx)
	if fetches.IsClientClosed() {
		return nil, fmt.Errorf("kafka client closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var firstErr error
	fetches.EachError(func(topic string, partition int32, err error) {
		if firstErr == nil {
			firstErr = fmt.Errorf("fetch %s[%d]: %w", topic, partition, err)
		}
	})

	var records []*Record
	fetches.EachRecord(func(r *kgo.Record) {
		rec := &Record{
			Topic:     r.Topic,
			Partition: r.Partition,
			Offset:    r.Offset,
			Key:       r.Key,
			Value:     r.Value,
			Timestamp: r.Timestamp,
			Headers:   make(map[string]string, len(r.Headers)),
			raw:       r,
		}
		for _, h := range r.Headers {
			rec.Headers[h.Key] = string(h.Value)
		}
		records = append(records, rec)
	})

	if len(records) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return records, nil
}

// CommitRecords commits the offsets of the given records
func (c *Consumer) CommitRecords(ctx context.Context, records []*Record) error {
	raw := make([]*kgo.Record, 0, len(records))
	for _, r := range records {
		if r.raw != nil {
			raw = append(raw, r.raw)
		}
	}
	if len(raw) == 0 {
		return nil
	}
	return c.client.CommitRecords(ctx, raw...)
}

// Close leaves the group and closes the client
func (c *Consumer) Close() {
	c.client.Close()
}
