package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/nickruden/diplom-server/internal/domain"
	"github.com/nickruden/diplom-server/internal/service"
	"github.com/nickruden/diplom-server/pkg/kafka"
	"github.com/nickruden/diplom-server/pkg/logger"
	"github.com/nickruden/diplom-server/pkg/retry"
)

// RecordSource is the part of the Kafka consumer the notification consumer needs
type RecordSource interface {
	Poll(ctx context.Context) ([]*kafka.Record, error)
	CommitRecords(ctx context.Context, records []*kafka.Record) error
}

// NotificationConsumer turns notice records into stored user notifications.
// A record that keeps failing is dead-lettered and its offset committed.
type NotificationConsumer struct {
	source        RecordSource
	notifications service.NotificationService
	dlq           *retry.DLQHandler
	log           *logger.Logger
}

// NewNotificationConsumer creates a NotificationConsumer. A nil dlq retries with the
// default backoff and drops what it cannot deliver.
func NewNotificationConsumer(source RecordSource, notifications service.NotificationService, dlq *retry.DLQHandler) *NotificationConsumer {
	if dlq == nil {
		dlq = retry.NewDLQHandler(nil, &retry.DLQHandlerConfig{Source: "notification-worker"})
	}
	return &NotificationConsumer{
		source:        source,
		notifications: notifications,
		dlq:           dlq,
		log:           logger.Get(),
	}
}

// Run consumes until ctx is cancelled
func (c *NotificationConsumer) Run(ctx context.Context) error {
	c.log.Info("Notification consumer started")
	defer c.log.Info("Notification consumer stopped")

	for {
		records, err := c.source.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error(fmt.Sprintf("Failed to poll notices: %v", err))
			continue
		}
		if len(records) == 0 {
			continue
		}

		handled := c.HandleBatch(ctx, records)
		if len(handled) == 0 {
			continue
		}
		if err := c.source.CommitRecords(ctx, handled); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error(fmt.Sprintf("Failed to commit %d records: %v", len(handled), err))
		}
	}
}

// HandleBatch processes records in order and returns the ones whose offsets may be
// committed. Processing stops at the first record that could neither be delivered nor
// dead-lettered, so it is redelivered.
func (c *NotificationConsumer) HandleBatch(ctx context.Context, records []*kafka.Record) []*kafka.Record {
	handled := make([]*kafka.Record, 0, len(records))
	for _, rec := range records {
		if err := c.handle(ctx, rec); err != nil {
			if errors.Is(err, retry.ErrDLQPublishFailed) || ctx.Err() != nil {
				c.log.Error(fmt.Sprintf("Stopping batch at %s[%d]@%d: %v", rec.Topic, rec.Partition, rec.Offset, err))
				return handled
			}
			c.log.Warn(fmt.Sprintf("Notice %s[%d]@%d dead-lettered: %v", rec.Topic, rec.Partition, rec.Offset, err))
		}
		handled = append(handled, rec)
	}
	return handled
}

func (c *NotificationConsumer) handle(ctx context.Context, rec *kafka.Record) error {
	msgCtx := &retry.MessageContext{
		ID:      rec.Header("message_id"),
		Topic:   rec.Topic,
		Key:     string(rec.Key),
		Payload: json.RawMessage(rec.Value),
		Headers: rec.Headers,
	}
	if msgCtx.ID == "" {
		msgCtx.ID = rec.Topic + ":" + strconv.FormatInt(int64(rec.Partition), 10) + ":" + strconv.FormatInt(rec.Offset, 10)
	}

	return c.dlq.ProcessWithDLQ(ctx, msgCtx, func(ctx context.Context) error {
		var notice domain.Notice
		if err := json.Unmarshal(rec.Value, &notice); err != nil {
			return retry.Permanent(fmt.Errorf("malformed notice: %w", err))
		}
		_, err := c.notifications.Deliver(ctx, &notice)
		if domain.CodeOf(err) == domain.CodeValidationFailed {
			return retry.Permanent(err)
		}
		return err
	})
}
