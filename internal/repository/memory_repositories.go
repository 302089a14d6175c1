package repository

import (
	"context"
	"slices"
	"time"

	"github.com/nickruden/diplom-server/internal/domain"
)

// MemoryEventRepository implements EventRepository on a MemoryStore
type MemoryEventRepository struct{ s *MemoryStore }

func (r *MemoryEventRepository) GetByID(_ context.Context, id int64) (*domain.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return cp(r.s.d.events[id]), nil
}

func (r *MemoryEventRepository) ListByIDs(_ context.Context, ids []int64) ([]*domain.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Event
	for _, id := range domain.DedupeIDs(ids) {
		if e, ok := r.s.d.events[id]; ok {
			out = append(out, cp(e))
		}
	}
	sortEvents(out)
	return out, nil
}

func (r *MemoryEventRepository) ListPublished(_ context.Context, endAfter time.Time) ([]*domain.Event, error) {
	return r.filter(func(e *domain.Event) bool {
		return e.Status == domain.EventStatusPublished && !e.EndTime.Before(endAfter)
	}), nil
}

func (r *MemoryEventRepository) ListByOrganizer(_ context.Context, organizerID int64, filter EventFilter) ([]*domain.Event, error) {
	return r.filter(func(e *domain.Event) bool {
		if e.OrganizerID != organizerID {
			return false
		}
		switch filter.Period {
		case "upcoming":
			return !e.EndTime.Before(filter.Now)
		case "past":
			return e.EndTime.Before(filter.Now)
		}
		return true
	}), nil
}

func (r *MemoryEventRepository) CountByOrganizer(ctx context.Context, organizerID int64) (int, error) {
	events, _ := r.ListByOrganizer(ctx, organizerID, EventFilter{})
	return len(events), nil
}

func (r *MemoryEventRepository) ListIDsByStatuses(_ context.Context, statuses []domain.EventStatus, afterID int64, limit int) ([]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var ids []int64
	for id, e := range r.s.d.events {
		if id > afterID && slices.Contains(statuses, e.Status) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *MemoryEventRepository) ListImages(_ context.Context, eventID int64) ([]*domain.EventImage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.EventImage
	for _, img := range r.s.d.images {
		if img.EventID == eventID {
			out = append(out, cp(img))
		}
	}
	slices.SortFunc(out, func(a, b *domain.EventImage) int {
		if a.IsMain != b.IsMain {
			if a.IsMain {
				return -1
			}
			return 1
		}
		return cmpInt64(a.ID, b.ID)
	})
	return out, nil
}

func (r *MemoryEventRepository) GetImageByPublicID(_ context.Context, publicID string) (*domain.EventImage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, img := range r.s.d.images {
		if img.PublicID == publicID {
			return cp(img), nil
		}
	}
	return nil, nil
}

func (r *MemoryEventRepository) filter(keep func(*domain.Event) bool) []*domain.Event {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Event
	for _, e := range r.s.d.events {
		if keep(e) {
			out = append(out, cp(e))
		}
	}
	sortEvents(out)
	return out
}

func sortEvents(events []*domain.Event) {
	slices.SortFunc(events, func(a, b *domain.Event) int {
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		return cmpInt64(a.ID, b.ID)
	})
}

// MemoryTicketRepository implements TicketRepository on a MemoryStore
type MemoryTicketRepository struct{ s *MemoryStore }

func (r *MemoryTicketRepository) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return cp(r.s.d.tickets[id]), nil
}

func (r *MemoryTicketRepository) ListByIDs(ctx context.Context, ids []int64) ([]*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return (&memoryTx{d: r.s.d}).GetTickets(ctx, ids)
}

func (r *MemoryTicketRepository) ListByEvent(_ context.Context, eventID int64) ([]*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Ticket
	for _, t := range r.s.d.eventTickets(eventID) {
		out = append(out, cp(t))
	}
	return out, nil
}

func (r *MemoryTicketRepository) ListByEvents(_ context.Context, eventIDs []int64) (map[int64][]*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[int64][]*domain.Ticket, len(eventIDs))
	for _, id := range eventIDs {
		for _, t := range r.s.d.eventTickets(id) {
			out[id] = append(out[id], cp(t))
		}
	}
	return out, nil
}

func (r *MemoryTicketRepository) SoldCounts(_ context.Context, ticketIDs []int64) (map[int64]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[int64]int, len(ticketIDs))
	for _, id := range ticketIDs {
		if n := r.s.d.soldCount(id); n > 0 {
			out[id] = n
		}
	}
	return out, nil
}

// MemoryPurchaseRepository implements PurchaseRepository on a MemoryStore
type MemoryPurchaseRepository struct{ s *MemoryStore }

func (r *MemoryPurchaseRepository) GetByID(_ context.Context, id int64) (*domain.Purchase, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return cp(r.s.d.purchases[id]), nil
}

func (r *MemoryPurchaseRepository) ListByUser(_ context.Context, userID int64) ([]*domain.Purchase, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Purchase
	for _, p := range r.s.d.purchases {
		if p.UserID == userID {
			out = append(out, cp(p))
		}
	}
	sortPurchasesNewestFirst(out)
	return out, nil
}

func (r *MemoryPurchaseRepository) ListByEvent(_ context.Context, eventID int64) ([]*domain.Purchase, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Purchase
	for _, p := range r.s.d.eventPurchases(eventID) {
		out = append(out, cp(p))
	}
	sortPurchasesNewestFirst(out)
	return out, nil
}

func sortPurchasesNewestFirst(purchases []*domain.Purchase) {
	slices.SortFunc(purchases, func(a, b *domain.Purchase) int {
		if c := b.PurchaseTime.Compare(a.PurchaseTime); c != 0 {
			return c
		}
		return cmpInt64(b.ID, a.ID)
	})
}

// MemorySocialRepository implements SocialRepository on a MemoryStore
type MemorySocialRepository struct{ s *MemoryStore }

func (r *MemorySocialRepository) AddFavorite(_ context.Context, userID, eventID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.events[eventID]; !ok {
		return domain.NotFound("event", eventID)
	}
	key := favoriteKey{userID: userID, eventID: eventID}
	if _, ok := r.s.d.favorites[key]; !ok {
		r.s.d.favorites[key] = time.Now()
	}
	return nil
}

func (r *MemorySocialRepository) RemoveFavorite(_ context.Context, userID, eventID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := favoriteKey{userID: userID, eventID: eventID}
	_, ok := r.s.d.favorites[key]
	delete(r.s.d.favorites, key)
	return ok, nil
}

func (r *MemorySocialRepository) ListFavoriteEventIDs(_ context.Context, userID int64) ([]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	type fav struct {
		eventID int64
		at      time.Time
	}
	var favs []fav
	for k, at := range r.s.d.favorites {
		if k.userID == userID {
			favs = append(favs, fav{eventID: k.eventID, at: at})
		}
	}
	slices.SortFunc(favs, func(a, b fav) int {
		if c := b.at.Compare(a.at); c != 0 {
			return c
		}
		return cmpInt64(a.eventID, b.eventID)
	})
	ids := make([]int64, len(favs))
	for i, f := range favs {
		ids[i] = f.eventID
	}
	return ids, nil
}

func (r *MemorySocialRepository) Follow(_ context.Context, organizerID, followerID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.d.follows[followKey{organizerID: organizerID, followerID: followerID}] = struct{}{}
	return nil
}

func (r *MemorySocialRepository) Unfollow(_ context.Context, organizerID, followerID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := followKey{organizerID: organizerID, followerID: followerID}
	_, ok := r.s.d.follows[key]
	delete(r.s.d.follows, key)
	return ok, nil
}

func (r *MemorySocialRepository) ListFollowing(_ context.Context, followerID int64) ([]int64, error) {
	return r.follows(func(k followKey) (int64, bool) { return k.organizerID, k.followerID == followerID }), nil
}

func (r *MemorySocialRepository) ListFollowerIDs(_ context.Context, organizerID int64) ([]int64, error) {
	return r.follows(func(k followKey) (int64, bool) { return k.followerID, k.organizerID == organizerID }), nil
}

func (r *MemorySocialRepository) CountFollowers(ctx context.Context, organizerID int64) (int, error) {
	ids, _ := r.ListFollowerIDs(ctx, organizerID)
	return len(ids), nil
}

func (r *MemorySocialRepository) EventAudience(_ context.Context, eventID int64) ([]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.d.audience(eventID), nil
}

func (r *MemorySocialRepository) follows(pick func(followKey) (int64, bool)) []int64 {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var ids []int64
	for k := range r.s.d.follows {
		if id, ok := pick(k); ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// MemoryNotificationRepository implements NotificationRepository on a MemoryStore
type MemoryNotificationRepository struct{ s *MemoryStore }

func (r *MemoryNotificationRepository) CreateBatch(_ context.Context, notifications []*domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range notifications {
		r.s.d.notificationSeq++
		n.ID = r.s.d.notificationSeq
		r.s.d.notifications[n.ID] = cp(n)
	}
	return nil
}

func (r *MemoryNotificationRepository) ListByUser(_ context.Context, userID int64) ([]*domain.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Notification
	for _, n := range r.s.d.notifications {
		if n.UserID == userID {
			out = append(out, cp(n))
		}
	}
	slices.SortFunc(out, func(a, b *domain.Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmpInt64(b.ID, a.ID)
	})
	return out, nil
}

func (r *MemoryNotificationRepository) MarkAllRead(_ context.Context, userID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, notif := range r.s.d.notifications {
		if notif.UserID == userID && !notif.IsRead {
			notif.IsRead = true
			n++
		}
	}
	return n, nil
}

func (r *MemoryNotificationRepository) MarkRead(_ context.Context, id, userID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.d.notifications[id]
	if !ok || n.UserID != userID {
		return false, nil
	}
	n.IsRead = true
	return true, nil
}

// MemoryOutboxRepository implements OutboxRepository on a MemoryStore
type MemoryOutboxRepository struct{ s *MemoryStore }

func (r *MemoryOutboxRepository) Create(_ context.Context, msg *domain.OutboxMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.d.outbox[msg.ID] = cp(msg)
	return nil
}

// ProcessBatch claims messages under the lock but runs handlers without it, so a handler
// may use the other repositories of the same store.
func (r *MemoryOutboxRepository) ProcessBatch(ctx context.Context, limit int, handle OutboxHandler) (published, failed int, err error) {
	r.s.mu.Lock()
	var claimed []*domain.OutboxMessage
	for id, msg := range r.s.d.outbox {
		if _, busy := r.s.inflight[id]; busy {
			continue
		}
		if msg.Status == domain.OutboxStatusPending || msg.CanRetry() {
			claimed = append(claimed, cp(msg))
		}
	}
	slices.SortFunc(claimed, func(a, b *domain.OutboxMessage) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if limit > 0 && len(claimed) > limit {
		claimed = claimed[:limit]
	}
	for _, msg := range claimed {
		r.s.inflight[msg.ID] = struct{}{}
	}
	r.s.mu.Unlock()

	for _, msg := range claimed {
		if herr := handle(ctx, msg); herr != nil {
			msg.MarkAsFailed(herr.Error())
			failed++
		} else {
			msg.MarkAsPublished(time.Now())
			published++
		}
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, msg := range claimed {
		delete(r.s.inflight, msg.ID)
		if _, ok := r.s.d.outbox[msg.ID]; ok {
			r.s.d.outbox[msg.ID] = msg
		}
	}
	return published, failed, nil
}

func (r *MemoryOutboxRepository) DeletePublishedBefore(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, msg := range r.s.d.outbox {
		if msg.Status == domain.OutboxStatusPublished && msg.PublishedAt != nil && msg.PublishedAt.Before(before) {
			delete(r.s.d.outbox, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryOutboxRepository) CountPending(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, msg := range r.s.d.outbox {
		if msg.Status == domain.OutboxStatusPending || msg.CanRetry() {
			n++
		}
	}
	return n, nil
}

var (
	_ EventRepository        = (*MemoryEventRepository)(nil)
	_ TicketRepository       = (*MemoryTicketRepository)(nil)
	_ PurchaseRepository     = (*MemoryPurchaseRepository)(nil)
	_ SocialRepository       = (*MemorySocialRepository)(nil)
	_ NotificationRepository = (*MemoryNotificationRepository)(nil)
	_ OutboxRepository       = (*MemoryOutboxRepository)(nil)
)
