package service

import (
	"context"
	"fmt"

	"github.com/nickruden/diplom-server/internal/clock"
	"github.com/nickruden/diplom-server/internal/domain"
	"github.com/nickruden/diplom-server/internal/repository"
)

// OutboxDispatcher records notices in the outbox; the relay worker publishes them
type OutboxDispatcher struct {
	outbox repository.OutboxRepository
	topic  string
	clock  clock.TimeSource
}

// NewOutboxDispatcher creates a dispatcher writing to topic through the outbox
func NewOutboxDispatcher(outbox repository.OutboxRepository, topic string, clk clock.TimeSource) *OutboxDispatcher {
	return &OutboxDispatcher{outbox: outbox, topic: topic, clock: clk}
}

func (d *OutboxDispatcher) NotifyEventChange(ctx context.Context, notice *domain.Notice) error {
	if notice.OccurredAt.IsZero() {
		notice.OccurredAt = d.clock.Now()
	}
	msg, err := domain.NewNoticeMessage(notice, d.topic, d.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to encode notice: %w", err)
	}
	return d.outbox.Create(ctx, msg)
}

func (d *OutboxDispatcher) NotifyFollowersOnNewEvent(ctx context.Context, organizerID int64, eventTitle string, eventID int64) error {
	return d.NotifyEventChange(ctx, &domain.Notice{
		Kind:        domain.ChangeNewEvent,
		EventID:     eventID,
		EventTitle:  eventTitle,
		OrganizerID: organizerID,
		OccurredAt:  d.clock.Now(),
	})
}

// DirectDispatcher delivers notices synchronously, for deployments without a broker
type DirectDispatcher struct {
	notifications NotificationService
}

// NewDirectDispatcher creates a dispatcher that stores notifications immediately
func NewDirectDispatcher(notifications NotificationService) *DirectDispatcher {
	return &DirectDispatcher{notifications: notifications}
}

func (d *DirectDispatcher) NotifyEventChange(ctx context.Context, notice *domain.Notice) error {
	_, err := d.notifications.Deliver(ctx, notice)
	return err
}

func (d *DirectDispatcher) NotifyFollowersOnNewEvent(ctx context.Context, organizerID int64, eventTitle string, eventID int64) error {
	return d.NotifyEventChange(ctx, &domain.Notice{
		Kind:        domain.ChangeNewEvent,
		EventID:     eventID,
		EventTitle:  eventTitle,
		OrganizerID: organizerID,
	})
}

var (
	_ Dispatcher = (*OutboxDispatcher)(nil)
	_ Dispatcher = (*DirectDispatcher)(nil)
)
