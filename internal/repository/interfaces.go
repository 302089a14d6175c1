package repository

import (
	"context"
	"time"

	"github.com/nickruden/diplom-server/internal/domain"
	"github.com/nickruden/diplom-server/internal/ledger"
)

// Read repositories return (nil, nil) when a single entity does not exist.

// EventRepository defines read access to events and their images
type EventRepository interface {
	// GetByID retrieves an event by ID
	GetByID(ctx context.Context, id int64) (*domain.Event, error)
	// ListByIDs retrieves events by IDs, skipping missing ones
	ListByIDs(ctx context.Context, ids []int64) ([]*domain.Event, error)
	// ListPublished lists published events ending at or after endAfter
	ListPublished(ctx context.Context, endAfter time.Time) ([]*domain.Event, error)
	// ListByOrganizer lists an organizer's events ordered by start time
	ListByOrganizer(ctx context.Context, organizerID int64, filter EventFilter) ([]*domain.Event, error)
	// CountByOrganizer counts an organizer's events
	CountByOrganizer(ctx context.Context, organizerID int64) (int, error)
	// ListIDsByStatuses pages through event IDs above afterID in ascending order
	ListIDsByStatuses(ctx context.Context, statuses []domain.EventStatus, afterID int64, limit int) ([]int64, error)
	// ListImages lists an event's images, main image first
	ListImages(ctx context.Context, eventID int64) ([]*domain.EventImage, error)
	// GetImageByPublicID retrieves an image by its storage id
	GetImageByPublicID(ctx context.Context, publicID string) (*domain.EventImage, error)
}

// EventFilter narrows an organizer listing by time
type EventFilter struct {
	// Period is "upcoming", "past" or empty for all
	Period string
	Now    time.Time
}

// TicketRepository defines read access to ticket tiers
type TicketRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	ListByIDs(ctx context.Context, ids []int64) ([]*domain.Ticket, error)
	// ListByEvent lists an event's tiers ordered by ID
	ListByEvent(ctx context.Context, eventID int64) ([]*domain.Ticket, error)
	// ListByEvents groups tiers by event ID
	ListByEvents(ctx context.Context, eventIDs []int64) (map[int64][]*domain.Ticket, error)
	// SoldCounts counts purchases per ticket; tickets without purchases are absent
	SoldCounts(ctx context.Context, ticketIDs []int64) (map[int64]int, error)
}

// PurchaseRepository defines read access to purchases
type PurchaseRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Purchase, error)
	// ListByUser lists a buyer's purchases, newest first
	ListByUser(ctx context.Context, userID int64) ([]*domain.Purchase, error)
	// ListByEvent lists purchases of an event's tiers, newest first
	ListByEvent(ctx context.Context, eventID int64) ([]*domain.Purchase, error)
}

// SocialRepository stores favorites and organizer follows
type SocialRepository interface {
	AddFavorite(ctx context.Context, userID, eventID int64) error
	RemoveFavorite(ctx context.Context, userID, eventID int64) (bool, error)
	ListFavoriteEventIDs(ctx context.Context, userID int64) ([]int64, error)
	Follow(ctx context.Context, organizerID, followerID int64) error
	Unfollow(ctx context.Context, organizerID, followerID int64) (bool, error)
	ListFollowing(ctx context.Context, followerID int64) ([]int64, error)
	ListFollowerIDs(ctx context.Context, organizerID int64) ([]int64, error)
	CountFollowers(ctx context.Context, organizerID int64) (int, error)
	// EventAudience lists buyers of the event's tiers and users who favorited it, without duplicates
	EventAudience(ctx context.Context, eventID int64) ([]int64, error)
}

// NotificationRepository stores in-app notifications
type NotificationRepository interface {
	CreateBatch(ctx context.Context, notifications []*domain.Notification) error
	// ListByUser lists a user's notifications, newest first
	ListByUser(ctx context.Context, userID int64) ([]*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	MarkRead(ctx context.Context, id, userID int64) (bool, error)
}

// OutboxHandler publishes one claimed message
type OutboxHandler func(ctx context.Context, msg *domain.OutboxMessage) error

// OutboxRepository stores messages to relay after commit
type OutboxRepository interface {
	Create(ctx context.Context, msg *domain.OutboxMessage) error
	// ProcessBatch claims up to limit pending or retryable messages, oldest first, and
	// records the handler's outcome for each. Claimed rows are invisible to other relays
	// until the batch finishes.
	ProcessBatch(ctx context.Context, limit int, handle OutboxHandler) (published, failed int, err error)
	// DeletePublishedBefore removes published messages older than before
	DeletePublishedBefore(ctx context.Context, before time.Time) (int64, error)
	CountPending(ctx context.Context) (int, error)
}

// LedgerStore runs units of work that mutate events, tiers and purchases
type LedgerStore interface {
	// WithinTx runs fn atomically; any error rolls every write back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// LedgerTx is the write side of one unit of work.
// Callers acquire locks in the order event -> tickets (ascending ID) -> purchases.
type LedgerTx interface {
	ledger.Store

	// LockEvent locks and returns the event row, or nil when it does not exist
	LockEvent(ctx context.Context, id int64) (*domain.Event, error)
	// LockTickets locks tiers in ascending ID order, skipping missing ones
	LockTickets(ctx context.Context, ids []int64) ([]*domain.Ticket, error)
	// LockTicketsByEvent locks every tier of an event in ascending ID order
	LockTicketsByEvent(ctx context.Context, eventID int64) ([]*domain.Ticket, error)
	// GetTickets reads tiers without locking them
	GetTickets(ctx context.Context, ids []int64) ([]*domain.Ticket, error)
	// GetPurchase reads a purchase without locking it
	GetPurchase(ctx context.Context, id int64) (*domain.Purchase, error)
	// LockPurchase locks and returns a purchase, or nil when it does not exist
	LockPurchase(ctx context.Context, id int64) (*domain.Purchase, error)
	// LockPurchasesByTicket locks every purchase of a tier in ascending ID order
	LockPurchasesByTicket(ctx context.Context, ticketID int64) ([]*domain.Purchase, error)

	CountPurchasesByEvent(ctx context.Context, eventID int64) (int, error)
	// CountActivePurchases counts purchases whose validity ends after now
	CountActivePurchases(ctx context.Context, eventID int64, now time.Time) (int, error)
	EventAudience(ctx context.Context, eventID int64) ([]int64, error)

	// AddRevenue applies delta to the event's revenue and returns the new total
	AddRevenue(ctx context.Context, eventID int64, delta float64) (float64, error)
	SetEventStatus(ctx context.Context, eventID int64, status domain.EventStatus) error
	InsertEvent(ctx context.Context, e *domain.Event) error
	UpdateEvent(ctx context.Context, e *domain.Event) error
	ReplaceImages(ctx context.Context, eventID int64, images []*domain.EventImage) error
	DeleteImage(ctx context.Context, imageID int64) error
	// LowerRefundWindow sets refund_date_count = days on the event's purchases where it is greater
	LowerRefundWindow(ctx context.Context, eventID int64, days int) (int64, error)
	// DeleteEventCascade removes the event with its tiers, purchases, images, favorites and schedules
	DeleteEventCascade(ctx context.Context, eventID int64) error

	InsertTicket(ctx context.Context, t *domain.Ticket) error
	UpdateTicket(ctx context.Context, t *domain.Ticket) error
	DeleteTicket(ctx context.Context, ticketID int64) error
}

// EventCache caches read-side event views
type EventCache interface {
	Get(ctx context.Context, eventID int64) (*domain.Event, bool)
	Set(ctx context.Context, e *domain.Event)
	Invalidate(ctx context.Context, eventIDs ...int64)
}
