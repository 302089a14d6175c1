package service

import (
	"context"
	"fmt"

	"github.com/nickruden/diplom-server/internal/clock"
	"github.com/nickruden/diplom-server/internal/domain"
	"github.com/nickruden/diplom-server/internal/metrics"
	"github.com/nickruden/diplom-server/internal/repository"
	"github.com/nickruden/diplom-server/pkg/telemetry"
)

// notificationService implements NotificationService
type notificationService struct {
	notifications repository.NotificationRepository
	social        repository.SocialRepository
	clock         clock.TimeSource
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	notifications repository.NotificationRepository,
	social repository.SocialRepository,
	clk clock.TimeSource,
) NotificationService {
	return &notificationService{
		notifications: notifications,
		social:        social,
		clock:         clk,
	}
}

// Deliver stores one notification per recipient. Recipients captured with the notice win;
// otherwise followers are used for new events and the event audience for everything else.
func (s *notificationService) Deliver(ctx context.Context, notice *domain.Notice) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.notification.deliver")
	defer span.End()

	if !notice.Kind.IsValid() {
		return 0, domain.Validation("unknown change kind %q", notice.Kind)
	}

	recipients := notice.Recipients
	if len(recipients) == 0 {
		var err error
		switch notice.Kind {
		case domain.ChangeNewEvent:
			recipients, err = s.social.ListFollowerIDs(ctx, notice.OrganizerID)
		case domain.ChangeCancel:
			// the event is gone, nobody left to resolve
		default:
			recipients, err = s.social.EventAudience(ctx, notice.EventID)
		}
		if err != nil {
			telemetry.SetSpanError(ctx, err)
			return 0, fmt.Errorf("failed to resolve recipients: %w", err)
		}
	}

	items := notice.Notifications(recipients, s.clock.Now())
	if len(items) == 0 {
		return 0, nil
	}
	if err := s.notifications.CreateBatch(ctx, items); err != nil {
		telemetry.SetSpanError(ctx, err)
		return 0, fmt.Errorf("failed to store notifications: %w", err)
	}

	metrics.RecordNotifications(ctx, string(notice.Kind), len(items))
	return len(items), nil
}

func (s *notificationService) ListNotifications(ctx context.Context, userID int64) ([]*domain.Notification, error) {
	return s.notifications.ListByUser(ctx, userID)
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.notifications.MarkAllRead(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, notificationID, userID int64) error {
	ok, err := s.notifications.MarkRead(ctx, notificationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound("notification", notificationID)
	}
	return nil
}
