package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/nickruden/diplom-server/internal/domain"
)

// MemoryStore keeps every table in memory. It backs the repositories and the ledger store
// in tests and local development. Transactions are serialized by one mutex and rolled back
// by restoring a snapshot taken when they began.
type MemoryStore struct {
	mu sync.RWMutex
	d  *memoryData

	// outbox rows claimed by a running ProcessBatch
	inflight map[string]struct{}
}

type favoriteKey struct{ userID, eventID int64 }

type followKey struct{ organizerID, followerID int64 }

type memoryData struct {
	events        map[int64]*domain.Event
	images        map[int64]*domain.EventImage
	tickets       map[int64]*domain.Ticket
	purchases     map[int64]*domain.Purchase
	favorites     map[favoriteKey]time.Time
	follows       map[followKey]struct{}
	notifications map[int64]*domain.Notification
	outbox        map[string]*domain.OutboxMessage

	eventSeq        int64
	imageSeq        int64
	ticketSeq       int64
	purchaseSeq     int64
	notificationSeq int64
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		d: &memoryData{
			events:        make(map[int64]*domain.Event),
			images:        make(map[int64]*domain.EventImage),
			tickets:       make(map[int64]*domain.Ticket),
			purchases:     make(map[int64]*domain.Purchase),
			favorites:     make(map[favoriteKey]time.Time),
			follows:       make(map[followKey]struct{}),
			notifications: make(map[int64]*domain.Notification),
			outbox:        make(map[string]*domain.OutboxMessage),
		},
		inflight: make(map[string]struct{}),
	}
}

// Events returns the store's EventRepository
func (s *MemoryStore) Events() *MemoryEventRepository { return &MemoryEventRepository{s: s} }

// Tickets returns the store's TicketRepository
func (s *MemoryStore) Tickets() *MemoryTicketRepository { return &MemoryTicketRepository{s: s} }

// Purchases returns the store's PurchaseRepository
func (s *MemoryStore) Purchases() *MemoryPurchaseRepository { return &MemoryPurchaseRepository{s: s} }

// Social returns the store's SocialRepository
func (s *MemoryStore) Social() *MemorySocialRepository { return &MemorySocialRepository{s: s} }

// Notifications returns the store's NotificationRepository
func (s *MemoryStore) Notifications() *MemoryNotificationRepository {
	return &MemoryNotificationRepository{s: s}
}

// Outbox returns the store's OutboxRepository
func (s *MemoryStore) Outbox() *MemoryOutboxRepository { return &MemoryOutboxRepository{s: s} }

// WithinTx runs fn while holding the store lock; an error restores the state fn started from
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.d.clone()
	if err := fn(ctx, &memoryTx{d: s.d}); err != nil {
		s.d = snapshot
		return err
	}
	return nil
}

func (d *memoryData) clone() *memoryData {
	c := *d
	c.events = cloneMap(d.events)
	c.images = cloneMap(d.images)
	c.tickets = cloneMap(d.tickets)
	c.purchases = cloneMap(d.purchases)
	c.notifications = cloneMap(d.notifications)
	c.outbox = cloneMap(d.outbox)

	c.favorites = make(map[favoriteKey]time.Time, len(d.favorites))
	for k, v := range d.favorites {
		c.favorites[k] = v
	}
	c.follows = make(map[followKey]struct{}, len(d.follows))
	for k := range d.follows {
		c.follows[k] = struct{}{}
	}
	return &c
}

func cloneMap[K comparable, V any](m map[K]*V) map[K]*V {
	out := make(map[K]*V, len(m))
	for k, v := range m {
		cp := *v
		out[k] = &cp
	}
	return out
}

func cp[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func (d *memoryData) eventTickets(eventID int64) []*domain.Ticket {
	var out []*domain.Ticket
	for _, t := range d.tickets {
		if t.EventID == eventID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Ticket) int { return cmpInt64(a.ID, b.ID) })
	return out
}

func (d *memoryData) eventPurchases(eventID int64) []*domain.Purchase {
	var out []*domain.Purchase
	for _, p := range d.purchases {
		if t, ok := d.tickets[p.TicketID]; ok && t.EventID == eventID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Purchase) int { return cmpInt64(a.ID, b.ID) })
	return out
}

func (d *memoryData) soldCount(ticketID int64) int {
	n := 0
	for _, p := range d.purchases {
		if p.TicketID == ticketID {
			n++
		}
	}
	return n
}

func (d *memoryData) audience(eventID int64) []int64 {
	var ids []int64
	for _, p := range d.eventPurchases(eventID) {
		ids = append(ids, p.UserID)
	}
	for k := range d.favorites {
		if k.eventID == eventID {
			ids = append(ids, k.userID)
		}
	}
	ids = domain.DedupeIDs(ids)
	slices.Sort(ids)
	return ids
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// memoryTx operates on the store's data while WithinTx holds the lock
type memoryTx struct {
	d *memoryData
}

func (t *memoryTx) LockEvent(_ context.Context, id int64) (*domain.Event, error) {
	return cp(t.d.events[id]), nil
}

func (t *memoryTx) LockTickets(ctx context.Context, ids []int64) ([]*domain.Ticket, error) {
	return t.GetTickets(ctx, ids)
}

func (t *memoryTx) LockTicketsByEvent(_ context.Context, eventID int64) ([]*domain.Ticket, error) {
	var out []*domain.Ticket
	for _, tk := range t.d.eventTickets(eventID) {
		out = append(out, cp(tk))
	}
	return out, nil
}

func (t *memoryTx) GetTickets(_ context.Context, ids []int64) ([]*domain.Ticket, error) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	var out []*domain.Ticket
	for _, id := range sorted {
		if tk, ok := t.d.tickets[id]; ok {
			out = append(out, cp(tk))
		}
	}
	return out, nil
}

func (t *memoryTx) GetPurchase(_ context.Context, id int64) (*domain.Purchase, error) {
	return cp(t.d.purchases[id]), nil
}

func (t *memoryTx) LockPurchase(ctx context.Context, id int64) (*domain.Purchase, error) {
	return t.GetPurchase(ctx, id)
}

func (t *memoryTx) LockPurchasesByTicket(_ context.Context, ticketID int64) ([]*domain.Purchase, error) {
	var out []*domain.Purchase
	for _, p := range t.d.purchases {
		if p.TicketID == ticketID {
			out = append(out, cp(p))
		}
	}
	slices.SortFunc(out, func(a, b *domain.Purchase) int { return cmpInt64(a.ID, b.ID) })
	return out, nil
}

func (t *memoryTx) CountSoldByTicket(_ context.Context, ticketID int64) (int, error) {
	return t.d.soldCount(ticketID), nil
}

func (t *memoryTx) InsertPurchases(_ context.Context, purchases []*domain.Purchase) error {
	for _, p := range purchases {
		if _, ok := t.d.tickets[p.TicketID]; !ok {
			return domain.NotFound("ticket", p.TicketID)
		}
		t.d.purchaseSeq++
		p.ID = t.d.purchaseSeq
		t.d.purchases[p.ID] = cp(p)
	}
	return nil
}

func (t *memoryTx) DeletePurchase(_ context.Context, purchaseID int64) (bool, error) {
	if _, ok := t.d.purchases[purchaseID]; !ok {
		return false, nil
	}
	delete(t.d.purchases, purchaseID)
	return true, nil
}

func (t *memoryTx) SetTicketSoldOut(_ context.Context, ticketID int64, soldOut bool) error {
	if tk, ok := t.d.tickets[ticketID]; ok {
		tk.IsSoldOut = soldOut
	}
	return nil
}

func (t *memoryTx) CountPurchasesByEvent(_ context.Context, eventID int64) (int, error) {
	return len(t.d.eventPurchases(eventID)), nil
}

func (t *memoryTx) CountActivePurchases(_ context.Context, eventID int64, now time.Time) (int, error) {
	n := 0
	for _, p := range t.d.eventPurchases(eventID) {
		if p.IsActive(now) {
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) EventAudience(_ context.Context, eventID int64) ([]int64, error) {
	return t.d.audience(eventID), nil
}

func (t *memoryTx) AddRevenue(_ context.Context, eventID int64, delta float64) (float64, error) {
	e, ok := t.d.events[eventID]
	if !ok {
		return 0, domain.NotFound("event", eventID)
	}
	e.Revenue += delta
	return e.Revenue, nil
}

func (t *memoryTx) SetEventStatus(_ context.Context, eventID int64, status domain.EventStatus) error {
	if e, ok := t.d.events[eventID]; ok {
		e.Status = status
	}
	return nil
}

func (t *memoryTx) InsertEvent(_ context.Context, e *domain.Event) error {
	t.d.eventSeq++
	e.ID = t.d.eventSeq
	t.d.events[e.ID] = cp(e)
	return nil
}

func (t *memoryTx) UpdateEvent(_ context.Context, e *domain.Event) error {
	cur, ok := t.d.events[e.ID]
	if !ok {
		return domain.NotFound("event", e.ID)
	}
	next := cp(e)
	next.Revenue = cur.Revenue
	next.OrganizerID = cur.OrganizerID
	next.CreatedAt = cur.CreatedAt
	t.d.events[e.ID] = next
	return nil
}

func (t *memoryTx) ReplaceImages(_ context.Context, eventID int64, images []*domain.EventImage) error {
	for id, img := range t.d.images {
		if img.EventID == eventID {
			delete(t.d.images, id)
		}
	}
	for _, img := range images {
		t.d.imageSeq++
		img.ID = t.d.imageSeq
		img.EventID = eventID
		t.d.images[img.ID] = cp(img)
	}
	return nil
}

func (t *memoryTx) DeleteImage(_ context.Context, imageID int64) error {
	delete(t.d.images, imageID)
	return nil
}

func (t *memoryTx) LowerRefundWindow(_ context.Context, eventID int64, days int) (int64, error) {
	var n int64
	for _, p := range t.d.eventPurchases(eventID) {
		if p.RefundDateCount != nil && *p.RefundDateCount > days {
			p.RefundDateCount = domain.IntPtr(days)
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) DeleteEventCascade(_ context.Context, eventID int64) error {
	for _, p := range t.d.eventPurchases(eventID) {
		delete(t.d.purchases, p.ID)
	}
	for _, tk := range t.d.eventTickets(eventID) {
		delete(t.d.tickets, tk.ID)
	}
	for id, img := range t.d.images {
		if img.EventID == eventID {
			delete(t.d.images, id)
		}
	}
	for k := range t.d.favorites {
		if k.eventID == eventID {
			delete(t.d.favorites, k)
		}
	}
	for _, n := range t.d.notifications {
		if n.EventID != nil && *n.EventID == eventID {
			n.EventID = nil
		}
	}
	delete(t.d.events, eventID)
	return nil
}

func (t *memoryTx) InsertTicket(_ context.Context, tk *domain.Ticket) error {
	if _, ok := t.d.events[tk.EventID]; !ok {
		return domain.NotFound("event", tk.EventID)
	}
	t.d.ticketSeq++
	tk.ID = t.d.ticketSeq
	t.d.tickets[tk.ID] = cp(tk)
	return nil
}

func (t *memoryTx) UpdateTicket(_ context.Context, tk *domain.Ticket) error {
	cur, ok := t.d.tickets[tk.ID]
	if !ok {
		return domain.NotFound("ticket", tk.ID)
	}
	next := cp(tk)
	next.EventID = cur.EventID
	t.d.tickets[tk.ID] = next
	return nil
}

func (t *memoryTx) DeleteTicket(_ context.Context, ticketID int64) error {
	delete(t.d.tickets, ticketID)
	return nil
}

var (
	_ LedgerStore = (*MemoryStore)(nil)
	_ LedgerTx    = (*memoryTx)(nil)
)
