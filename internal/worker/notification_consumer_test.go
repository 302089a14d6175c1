package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nickruden/diplom-server/internal/domain"
	"github.com/nickruden/diplom-server/pkg/kafka"
	"github.com/nickruden/diplom-server/pkg/retry"
)

const noticeTopic = "ticketing.notifications"

func noticeRecord(t *testing.T, offset int64, n *domain.Notice) *kafka.Record {
	t.Helper()
	payload, err := json.Marshal(n)
	require.NoError(t, err)
	return &kafka.Record{
		Topic:   noticeTopic,
		Offset:  offset,
		Key:     []byte("5"),
		Value:   payload,
		Headers: map[string]string{"message_id": "msg-" + string(rune('a'+offset))},
	}
}

func fastDLQ(pub retry.DLQPublisher) *retry.DLQHandler {
	return retry.NewDLQHandler(pub, &retry.DLQHandlerConfig{
		RetryConfig: &retry.Config{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond},
		Source:      "notification-worker",
	})
}

func TestNotificationConsumer_HandleBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers notices", func(t *testing.T) {
		notifications := new(MockNotificationService)
		notifications.On("Deliver", mock.Anything, mock.MatchedBy(func(n *domain.Notice) bool {
			return n.EventID == 5 && n.Kind == domain.ChangeUpdate
		})).Return(3, nil)
		dlq := &captureDLQ{}
		c := NewNotificationConsumer(nil, notifications, fastDLQ(dlq))

		rec := noticeRecord(t, 0, &domain.Notice{Kind: domain.ChangeUpdate, EventID: 5})
		handled := c.HandleBatch(ctx, []*kafka.Record{rec})

		assert.Equal(t, []*kafka.Record{rec}, handled)
		assert.Empty(t, dlq.msgs)
		notifications.AssertExpectations(t)
	})

	t.Run("malformed payload goes straight to the DLQ", func(t *testing.T) {
		notifications := new(MockNotificationService)
		dlq := &captureDLQ{}
		c := NewNotificationConsumer(nil, notifications, fastDLQ(dlq))

		rec := &kafka.Record{Topic: noticeTopic, Offset: 4, Value: []byte("{not json")}
		handled := c.HandleBatch(ctx, []*kafka.Record{rec})

		assert.Len(t, handled, 1)
		require.Len(t, dlq.msgs, 1)
		assert.Equal(t, 1, dlq.msgs[0].Attempts)
		assert.Equal(t, noticeTopic, dlq.msgs[0].OriginalTopic)
		assert.Equal(t, noticeTopic+":0:4", dlq.msgs[0].ID)
		notifications.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
	})

	t.Run("transient failures are retried before dead-lettering", func(t *testing.T) {
		notifications := new(MockNotificationService)
		notifications.On("Deliver", mock.Anything, mock.Anything).Return(0, errors.New("db down"))
		dlq := &captureDLQ{}
		c := NewNotificationConsumer(nil, notifications, fastDLQ(dlq))

		rec := noticeRecord(t, 0, &domain.Notice{Kind: domain.ChangeUpdate, EventID: 5})
		handled := c.HandleBatch(ctx, []*kafka.Record{rec})

		assert.Len(t, handled, 1)
		require.Len(t, dlq.msgs, 1)
		assert.Equal(t, 3, dlq.msgs[0].Attempts)
		assert.Equal(t, "db down", dlq.msgs[0].Error)
		notifications.AssertNumberOfCalls(t, "Deliver", 3)
	})

	t.Run("validation failures are not retried", func(t *testing.T) {
		notifications := new(MockNotificationService)
		notifications.On("Deliver", mock.Anything, mock.Anything).Return(0, domain.Validation("unknown notice kind"))
		dlq := &captureDLQ{}
		c := NewNotificationConsumer(nil, notifications, fastDLQ(dlq))

		handled := c.HandleBatch(ctx, []*kafka.Record{noticeRecord(t, 0, &domain.Notice{Kind: "bogus", EventID: 5})})

		assert.Len(t, handled, 1)
		require.Len(t, dlq.msgs, 1)
		notifications.AssertNumberOfCalls(t, "Deliver", 1)
	})

	t.Run("stops at a record that cannot be dead-lettered", func(t *testing.T) {
		notifications := new(MockNotificationService)
		notifications.On("Deliver", mock.Anything, mock.Anything).Return(1, nil)
		dlq := &captureDLQ{err: errors.New("dlq unavailable")}
		c := NewNotificationConsumer(nil, notifications, fastDLQ(dlq))

		good := noticeRecord(t, 0, &domain.Notice{Kind: domain.ChangeUpdate, EventID: 5})
		bad := &kafka.Record{Topic: noticeTopic, Offset: 1, Value: []byte("nope")}
		later := noticeRecord(t, 2, &domain.Notice{Kind: domain.ChangeUpdate, EventID: 5})

		handled := c.HandleBatch(ctx, []*kafka.Record{good, bad, later})

		assert.Equal(t, []*kafka.Record{good}, handled)
		notifications.AssertNumberOfCalls(t, "Deliver", 1)
	})
}

func TestNotificationConsumer_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifications := new(MockNotificationService)
	notifications.On("Deliver", mock.Anything, mock.Anything).Return(1, nil)

	first := noticeRecord(t, 0, &domain.Notice{Kind: domain.ChangeUpdate, EventID: 5})
	second := noticeRecord(t, 1, &domain.Notice{Kind: domain.ChangeRefund, EventID: 5})
	source := &scriptedSource{
		batches: [][]*kafka.Record{{first}, {}, {second}},
		cancel:  cancel,
	}
	c := NewNotificationConsumer(source, notifications, fastDLQ(&captureDLQ{}))

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}

	assert.Equal(t, []*kafka.Record{first, second}, source.committed)
	notifications.AssertNumberOfCalls(t, "Deliver", 2)
}
