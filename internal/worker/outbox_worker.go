package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nickruden/diplom-server/internal/domain"
	"github.com/nickruden/diplom-server/internal/metrics"
	"github.com/nickruden/diplom-server/internal/repository"
	"github.com/nickruden/diplom-server/internal/service"
	"github.com/nickruden/diplom-server/pkg/kafka"
	"github.com/nickruden/diplom-server/pkg/logger"
)

// OutboxWorkerConfig contains configuration for the outbox relay
type OutboxWorkerConfig struct {
	// PollInterval is the interval between polling for pending messages
	PollInterval time.Duration
	// BatchSize is the number of messages claimed per poll
	BatchSize int
	// CleanupInterval is the interval between cleanup of old published messages
	CleanupInterval time.Duration
	// CleanupRetentionDays is the number of days to retain published messages
	CleanupRetentionDays int
}

// DefaultOutboxWorkerConfig returns default configuration
func DefaultOutboxWorkerConfig() *OutboxWorkerConfig {
	return &OutboxWorkerConfig{
		PollInterval:         500 * time.Millisecond,
		BatchSize:            100,
		CleanupInterval:      1 * time.Hour,
		CleanupRetentionDays: 7,
	}
}

// Publisher hands one outbox message to its destination
type Publisher interface {
	Publish(ctx context.Context, msg *domain.OutboxMessage) error
}

// MessageProducer is the part of the Kafka producer the relay needs
type MessageProducer interface {
	Produce(ctx context.Context, msg *kafka.Message) error
}

// KafkaPublisher publishes outbox messages to their topic
type KafkaPublisher struct {
	producer MessageProducer
}

// NewKafkaPublisher creates a KafkaPublisher
func NewKafkaPublisher(producer MessageProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, msg *domain.OutboxMessage) error {
	return p.producer.Produce(ctx, &kafka.Message{
		Topic: msg.Topic,
		Key:   []byte(msg.PartitionKey),
		Value: msg.Payload,
		Headers: map[string]string{
			"message_id":     msg.ID,
			"event_type":     msg.EventType,
			"aggregate_type": msg.AggregateType,
			"aggregate_id":   msg.AggregateID,
			"content_type":   "application/json",
			"source":         "outbox-worker",
		},
		Timestamp: time.Now(),
	})
}

// DeliveryPublisher stores notifications in-process, for deployments without a broker
type DeliveryPublisher struct {
	notifications service.NotificationService
}

// NewDeliveryPublisher creates a DeliveryPublisher
func NewDeliveryPublisher(notifications service.NotificationService) *DeliveryPublisher {
	return &DeliveryPublisher{notifications: notifications}
}

func (p *DeliveryPublisher) Publish(ctx context.Context, msg *domain.OutboxMessage) error {
	if msg.EventType != domain.OutboxEventNotice {
		return fmt.Errorf("unsupported outbox event type %q", msg.EventType)
	}
	notice, err := msg.DecodeNotice()
	if err != nil {
		return fmt.Errorf("failed to decode notice: %w", err)
	}
	_, err = p.notifications.Deliver(ctx, notice)
	return err
}

// OutboxWorker relays committed outbox messages to a Publisher
type OutboxWorker struct {
	outboxRepo repository.OutboxRepository
	publisher  Publisher
	config     *OutboxWorkerConfig
	log        *logger.Logger
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

// NewOutboxWorker creates a new outbox worker
func NewOutboxWorker(
	outboxRepo repository.OutboxRepository,
	publisher Publisher,
	config *OutboxWorkerConfig,
) *OutboxWorker {
	if config == nil {
		config = DefaultOutboxWorkerConfig()
	}

	return &OutboxWorker{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		config:     config,
		log:        logger.Get(),
		stopCh:     make(chan struct{}),
	}
}

// Start starts the outbox worker
func (w *OutboxWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting outbox worker")

	w.wg.Add(1)
	go w.pollPendingMessages(ctx)

	w.wg.Add(1)
	go w.cleanupOldMessages(ctx)

	return nil
}

// Stop stops the outbox worker
func (w *OutboxWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("Stopping outbox worker")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Outbox worker stopped")
}

func (w *OutboxWorker) pollPendingMessages(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.ProcessPending(ctx)
		}
	}
}

// ProcessPending relays one batch. Failed messages stay claimable until they run out of retries.
func (w *OutboxWorker) ProcessPending(ctx context.Context) (published, failed int) {
	published, failed, err := w.outboxRepo.ProcessBatch(ctx, w.config.BatchSize, func(ctx context.Context, msg *domain.OutboxMessage) error {
		if err := w.publisher.Publish(ctx, msg); err != nil {
			w.log.Error(fmt.Sprintf("Failed to publish message %s (attempt %d/%d): %v", msg.ID, msg.RetryCount+1, msg.MaxRetries, err))
			return err
		}
		return nil
	})
	if err != nil {
		w.log.Error(fmt.Sprintf("Failed to process outbox batch: %v", err))
		return published, failed
	}

	if published > 0 || failed > 0 {
		metrics.RecordOutbox(ctx, published, failed)
	}
	return published, failed
}

func (w *OutboxWorker) cleanupOldMessages(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Cleanup(ctx, time.Now())
		}
	}
}

// Cleanup deletes published messages older than the retention window
func (w *OutboxWorker) Cleanup(ctx context.Context, now time.Time) int64 {
	before := now.AddDate(0, 0, -w.config.CleanupRetentionDays)
	deleted, err := w.outboxRepo.DeletePublishedBefore(ctx, before)
	if err != nil {
		w.log.Error(fmt.Sprintf("Failed to cleanup old messages: %v", err))
		return 0
	}
	if deleted > 0 {
		w.log.Info(fmt.Sprintf("Cleaned up %d old published messages", deleted))
	}
	return deleted
}

// GetStats returns worker statistics
func (w *OutboxWorker) GetStats(ctx context.Context) (*OutboxWorkerStats, error) {
	pending, err := w.outboxRepo.CountPending(ctx)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	running := w.running
	w.mu.Unlock()

	return &OutboxWorkerStats{
		IsRunning:       running,
		PendingMessages: pending,
	}, nil
}

// OutboxWorkerStats contains worker statistics
type OutboxWorkerStats struct {
	IsRunning       bool `json:"is_running"`
	PendingMessages int  `json:"pending_messages"`
}

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = (*DeliveryPublisher)(nil)
)
