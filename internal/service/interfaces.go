package service

import (
	"context"
	"time"

	"github.com/nickruden/diplom-server/internal/domain"
	"github.com/nickruden/diplom-server/internal/dto"
	"github.com/nickruden/diplom-server/internal/gateway"
)

// Actor is the authenticated caller of an operation
type Actor struct {
	UserID int64
	Role   domain.Role
}

// IsAdmin reports whether the actor bypasses ownership checks
func (a Actor) IsAdmin() bool { return a.Role == domain.RoleAdmin }

// CanManage reports whether the actor may change the event
func (a Actor) CanManage(e *domain.Event) bool {
	return a.IsAdmin() || e.IsOwnedBy(a.UserID)
}

// EventService defines the interface for event business logic
type EventService interface {
	// ListActiveEvents lists published events that still have a valid tier, ordered by active date
	ListActiveEvents(ctx context.Context, filter *dto.ActiveEventFilter) ([]*dto.ActiveEventResponse, error)
	// GetEventDetail returns the event page, correcting a stale status first
	GetEventDetail(ctx context.Context, eventID int64) (*dto.EventDetailResponse, error)
	// ListCreatorEvents lists an organizer's events with sales figures
	ListCreatorEvents(ctx context.Context, creatorID int64, filter *dto.CreatorEventFilter) ([]*dto.CreatorEventResponse, error)
	// CreateEvent creates an event with its images
	CreateEvent(ctx context.Context, req *dto.CreateEventRequest) (*dto.CreateEventResponse, error)
	// UpdateEvent applies a partial update
	UpdateEvent(ctx context.Context, eventID int64, actor Actor, req *dto.UpdateEventRequest) (*domain.Event, error)
	// PublishEvent moves a draft to published
	PublishEvent(ctx context.Context, eventID int64, actor Actor) (*domain.Event, error)
	// DeleteEvent deletes an event according to the deletion policy
	DeleteEvent(ctx context.Context, eventID int64, actor Actor, force bool) (*dto.DeleteEventResponse, error)
	// DeleteImage removes one image row
	DeleteImage(ctx context.Context, publicID string, actor Actor) error
	// AddFavorite marks an event as favorite
	AddFavorite(ctx context.Context, userID, eventID int64) error
	// RemoveFavorite unmarks an event
	RemoveFavorite(ctx context.Context, userID, eventID int64) error
	// ListFavorites lists a user's favorite events
	ListFavorites(ctx context.Context, userID int64) ([]*dto.EventResponse, error)
	// ListEventPurchases lists purchases of an event for its organizer
	ListEventPurchases(ctx context.Context, eventID int64, actor Actor) ([]*domain.Purchase, error)
}

// TicketService defines the interface for ticket tier management
type TicketService interface {
	// ListByEvent lists an event's tiers with sales figures
	ListByEvent(ctx context.Context, eventID int64) (*dto.EventTicketsResponse, error)
	// CreateTicket adds a tier to an event
	CreateTicket(ctx context.Context, eventID int64, actor Actor, req *dto.CreateTicketRequest) (*domain.Ticket, error)
	// UpdateTicket changes a tier; count may not drop below sold units
	UpdateTicket(ctx context.Context, ticketID int64, actor Actor, req *dto.UpdateTicketRequest) (*domain.Ticket, error)
	// DeleteTicket removes a tier without purchases
	DeleteTicket(ctx context.Context, ticketID int64, actor Actor) error
	// RefundAll refunds every purchase of a tier
	RefundAll(ctx context.Context, ticketID int64, actor Actor) (*dto.RefundAllResponse, error)
}

// PurchaseService defines the purchase and refund transactions
type PurchaseService interface {
	// ConfirmPurchase records a paid order atomically
	ConfirmPurchase(ctx context.Context, buyerID int64, req *dto.ConfirmPurchaseRequest) (*dto.ConfirmPurchaseResponse, error)
	// ReturnTicket refunds one purchase of the buyer
	ReturnTicket(ctx context.Context, purchaseID, buyerID int64) (*dto.ReturnTicketResponse, error)
	// ListUserTickets lists the buyer's purchases with their refund deadlines
	ListUserTickets(ctx context.Context, userID int64) ([]*dto.UserTicketResponse, error)
}

// SweepResult summarizes one lifecycle sweep
type SweepResult struct {
	Evaluated   int
	Failed      int
	Transitions []domain.Transition
	Duration    time.Duration
}

// LifecycleService keeps stored event statuses in line with their derived value
type LifecycleService interface {
	// Sweep evaluates every candidate event, each in its own transaction
	Sweep(ctx context.Context) (*SweepResult, error)
	// EvaluateEvent evaluates one event; nil transition means nothing changed
	EvaluateEvent(ctx context.Context, eventID int64) (*domain.Transition, error)
}

// Dispatcher hands event changes to the notification pipeline after commit
type Dispatcher interface {
	// NotifyEventChange notifies the event's audience about a change
	NotifyEventChange(ctx context.Context, notice *domain.Notice) error
	// NotifyFollowersOnNewEvent notifies an organizer's followers about a new event
	NotifyFollowersOnNewEvent(ctx context.Context, organizerID int64, eventTitle string, eventID int64) error
}

// NotificationService materializes and serves in-app notifications
type NotificationService interface {
	// Deliver stores one notification per recipient of the notice and returns how many were stored
	Deliver(ctx context.Context, notice *domain.Notice) (int, error)
	ListNotifications(ctx context.Context, userID int64) ([]*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	MarkRead(ctx context.Context, notificationID, userID int64) error
}

// UserService manages organizer follows
type UserService interface {
	Follow(ctx context.Context, organizerID, followerID int64) error
	Unfollow(ctx context.Context, organizerID, followerID int64) error
	ListFollowing(ctx context.Context, followerID int64) ([]int64, error)
}

// PaymentService fronts the payment gateway
type PaymentService interface {
	CreatePayment(ctx context.Context, userID int64, amount float64) (*gateway.Payment, error)
	CancelPayment(ctx context.Context, paymentID string) (*gateway.Payment, error)
}
