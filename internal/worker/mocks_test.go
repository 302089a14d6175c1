package worker

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/nickruden/diplom-server/internal/domain"
	"github.com/nickruden/diplom-server/internal/service"
	"github.com/nickruden/diplom-server/pkg/kafka"
	"github.com/nickruden/diplom-server/pkg/retry"
)

// MockNotificationService is a mock implementation of service.NotificationService
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) Deliver(ctx context.Context, notice *domain.Notice) (int, error) {
	args := m.Called(ctx, notice)
	return args.Int(0), args.Error(1)
}

func (m *MockNotificationService) ListNotifications(ctx context.Context, userID int64) ([]*domain.Notification, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Notification), args.Error(1)
}

func (m *MockNotificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationService) MarkRead(ctx context.Context, notificationID, userID int64) error {
	return m.Called(ctx, notificationID, userID).Error(0)
}

// stubLifecycle counts sweeps and optionally blocks inside one until release is closed
type stubLifecycle struct {
	mu      sync.Mutex
	sweeps  int
	entered chan struct{}
	release chan struct{}
	err     error
}

func (s *stubLifecycle) Sweep(ctx context.Context) (*service.SweepResult, error) {
	s.mu.Lock()
	s.sweeps++
	s.mu.Unlock()

	if s.entered != nil {
		select {
		case s.entered <- struct{}{}:
		default:
		}
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return &service.SweepResult{}, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &service.SweepResult{Evaluated: 1}, nil
}

func (s *stubLifecycle) EvaluateEvent(context.Context, int64) (*domain.Transition, error) {
	return nil, nil
}

func (s *stubLifecycle) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweeps
}

type captureProducer struct {
	mu   sync.Mutex
	msgs []*kafka.Message
	err  error
}

func (p *captureProducer) Produce(_ context.Context, msg *kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

type capturePublisher struct {
	mu   sync.Mutex
	msgs []*domain.OutboxMessage
	err  error
}

func (p *capturePublisher) Publish(_ context.Context, msg *domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

type captureDLQ struct {
	mu   sync.Mutex
	msgs []*retry.DLQMessage
	err  error
}

func (p *captureDLQ) PublishToDLQ(_ context.Context, msg *retry.DLQMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

// scriptedSource returns its batches in order, then cancels the run
type scriptedSource struct {
	mu        sync.Mutex
	batches   [][]*kafka.Record
	cancel    context.CancelFunc
	committed []*kafka.Record
}

func (s *scriptedSource) Poll(ctx context.Context) ([]*kafka.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batches) == 0 {
		s.cancel()
		return nil, ctx.Err()
	}
	next := s.batches[0]
	s.batches = s.batches[1:]
	return next, nil
}

func (s *scriptedSource) CommitRecords(_ context.Context, records []*kafka.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, records...)
	return nil
}
