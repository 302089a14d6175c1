package service

import (
	"context"
	"fmt"
	"math"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nickruden/diplom-server/internal/clock"
	"github.com/nickruden/diplom-server/internal/domain"
	"github.com/nickruden/diplom-server/internal/dto"
	"github.com/nickruden/diplom-server/internal/ledger"
	"github.com/nickruden/diplom-server/internal/metrics"
	"github.com/nickruden/diplom-server/internal/repository"
	"github.com/nickruden/diplom-server/pkg/logger"
	"github.com/nickruden/diplom-server/pkg/telemetry"
)

// purchaseService implements PurchaseService
type purchaseService struct {
	store     repository.LedgerStore
	purchases repository.PurchaseRepository
	tickets   repository.TicketRepository
	events    repository.EventRepository
	cache     repository.EventCache
	clock     clock.TimeSource
}

// NewPurchaseService creates a new PurchaseService
func NewPurchaseService(
	store repository.LedgerStore,
	purchases repository.PurchaseRepository,
	tickets repository.TicketRepository,
	events repository.EventRepository,
	cache repository.EventCache,
	clk clock.TimeSource,
) PurchaseService {
	if cache == nil {
		cache = repository.NoopEventCache{}
	}
	return &purchaseService{
		store:     store,
		purchases: purchases,
		tickets:   tickets,
		events:    events,
		cache:     cache,
		clock:     clk,
	}
}

// mergeLineItems sums counts per ticket and returns ticket ids in ascending order.
// Sums saturate at math.MaxInt; capacity rejects them later.
func mergeLineItems(items []dto.LineItem) ([]int64, map[int64]int) {
	quantities := make(map[int64]int, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		current, ok := quantities[item.TicketID]
		if !ok {
			ids = append(ids, item.TicketID)
		}
		if item.Count > math.MaxInt-current {
			quantities[item.TicketID] = math.MaxInt
			continue
		}
		quantities[item.TicketID] = current + item.Count
	}
	slices.Sort(ids)
	return ids, quantities
}

// ConfirmPurchase records the paid order in one transaction: every unit or none
func (s *purchaseService) ConfirmPurchase(ctx context.Context, buyerID int64, req *dto.ConfirmPurchaseRequest) (*dto.ConfirmPurchaseResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.purchase.confirm")
	defer span.End()

	if buyerID <= 0 {
		return nil, domain.Validation("buyer is required")
	}
	if ok, msg := req.Validate(); !ok {
		return nil, domain.Validation("%s", msg)
	}

	ids, quantities := mergeLineItems(req.Tickets)
	now := s.clock.Now()
	span.SetAttributes(
		attribute.Int64("buyer_id", buyerID),
		attribute.Int("line_items", len(ids)),
	)

	var (
		resp *dto.ConfirmPurchaseResponse
		tr   *domain.Transition
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		resp, tr = nil, nil

		// Unlocked read only to find the owning event; the rows are locked below in event order.
		found, err := tx.GetTickets(ctx, ids)
		if err != nil {
			return err
		}
		eventID, err := singleEvent(ids, found)
		if err != nil {
			return err
		}

		e, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if e == nil {
			return domain.NotFound("event", eventID)
		}
		locked, err := tx.LockTicketsByEvent(ctx, eventID)
		if err != nil {
			return err
		}
		byID := make(map[int64]*domain.Ticket, len(locked))
		for _, t := range locked {
			byID[t.ID] = t
		}

		var (
			created []*domain.Purchase
			total   float64
		)
		for _, id := range ids {
			t, ok := byID[id]
			if !ok {
				// moved or deleted between the read and the lock
				return domain.NotFound("ticket", id)
			}
			if !t.SalesOpen(now) {
				return domain.ErrSalesClosed.WithDetail("ticketId", t.ID)
			}

			qty := quantities[id]
			// reject before allocating anything sized by the request
			if _, err := ledger.CheckCapacity(ctx, tx, t, qty); err != nil {
				return err
			}
			batch := make([]*domain.Purchase, qty)
			for i := range batch {
				batch[i] = domain.NewPurchase(t, e, buyerID, now, req.PaymentRef)
			}
			if _, err := ledger.Reserve(ctx, tx, t, batch); err != nil {
				return err
			}
			created = append(created, batch...)
			total += t.Price * float64(qty)
		}

		if total != 0 {
			if _, err := tx.AddRevenue(ctx, e.ID, total); err != nil {
				return fmt.Errorf("failed to add revenue: %w", err)
			}
		}

		tr, err = evaluateLocked(ctx, tx, e, locked, now, "purchase")
		if err != nil {
			return err
		}

		resp = &dto.ConfirmPurchaseResponse{
			EventID:     e.ID,
			TotalAmount: total,
			Purchases:   dto.NewPurchaseResponses(created),
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordPurchaseFailure(ctx, failureReason(err))
		return nil, err
	}

	s.cache.Invalidate(ctx, resp.EventID)
	metrics.RecordPurchase(ctx, resp.EventID, len(resp.Purchases))
	if tr != nil {
		logger.Get().Info(fmt.Sprintf("Event %d status changed after purchase: %s -> %s", tr.EventID, tr.From, tr.To))
	}

	span.SetAttributes(
		attribute.Int64("event_id", resp.EventID),
		attribute.Int("units", len(resp.Purchases)),
		attribute.Float64("total_amount", resp.TotalAmount),
	)
	return resp, nil
}

// singleEvent returns the one event all requested tickets belong to
func singleEvent(ids []int64, found []*domain.Ticket) (int64, error) {
	present := make(map[int64]int64, len(found))
	for _, t := range found {
		present[t.ID] = t.EventID
	}
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			return 0, domain.NotFound("ticket", id)
		}
	}

	eventID := present[ids[0]]
	for _, id := range ids[1:] {
		if present[id] != eventID {
			return 0, domain.ErrMixedEventPurchase.WithDetail("eventIds", []int64{eventID, present[id]})
		}
	}
	return eventID, nil
}

func failureReason(err error) string {
	if code := domain.CodeOf(err); code != "" {
		return string(code)
	}
	return "INTERNAL"
}

// ReturnTicket refunds one purchase of the buyer
func (s *purchaseService) ReturnTicket(ctx context.Context, purchaseID, buyerID int64) (*dto.ReturnTicketResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.purchase.return")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("purchase_id", purchaseID),
		attribute.Int64("buyer_id", buyerID),
	)

	now := s.clock.Now()
	loc := s.clock.Location()

	var resp *dto.ReturnTicketResponse
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		resp = nil

		p, err := tx.GetPurchase(ctx, purchaseID)
		if err != nil {
			return err
		}
		// someone else's purchase looks the same as a missing one
		if p == nil || p.UserID != buyerID {
			return domain.NotFound("purchase", purchaseID)
		}

		found, err := tx.GetTickets(ctx, []int64{p.TicketID})
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return domain.NotFound("ticket", p.TicketID)
		}
		eventID := found[0].EventID

		e, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if e == nil {
			return domain.NotFound("event", eventID)
		}
		locked, err := tx.LockTicketsByEvent(ctx, eventID)
		if err != nil {
			return err
		}
		var ticket *domain.Ticket
		for _, t := range locked {
			if t.ID == p.TicketID {
				ticket = t
			}
		}
		if ticket == nil {
			return domain.NotFound("ticket", p.TicketID)
		}

		// re-read under lock: a concurrent refund may have won
		p, err = tx.LockPurchase(ctx, purchaseID)
		if err != nil {
			return err
		}
		if p == nil {
			return domain.NotFound("purchase", purchaseID)
		}

		if err := domain.CheckRefundable(p, now, loc); err != nil {
			return err
		}

		if _, err := ledger.Release(ctx, tx, ticket, p.ID); err != nil {
			return err
		}
		if p.Price != 0 {
			if _, err := tx.AddRevenue(ctx, e.ID, -p.Price); err != nil {
				return fmt.Errorf("failed to subtract revenue: %w", err)
			}
		}

		if _, err := evaluateLocked(ctx, tx, e, locked, now, "refund"); err != nil {
			return err
		}

		resp = &dto.ReturnTicketResponse{
			PurchaseID:   p.ID,
			EventID:      e.ID,
			RefundAmount: p.Price,
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		switch domain.CodeOf(err) {
		case domain.CodeRefundExpired, domain.CodeRefundForbidden:
			metrics.RecordRefundRejection(ctx, string(domain.CodeOf(err)))
		}
		return nil, err
	}

	s.cache.Invalidate(ctx, resp.EventID)
	metrics.RecordRefund(ctx, resp.EventID, 1)
	return resp, nil
}

// ListUserTickets lists the buyer's purchases with their refund deadlines
func (s *purchaseService) ListUserTickets(ctx context.Context, userID int64) ([]*dto.UserTicketResponse, error) {
	purchases, err := s.purchases.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(purchases) == 0 {
		return []*dto.UserTicketResponse{}, nil
	}

	ticketIDs := make([]int64, 0, len(purchases))
	for _, p := range purchases {
		ticketIDs = append(ticketIDs, p.TicketID)
	}
	tickets, err := s.tickets.ListByIDs(ctx, ticketIDs)
	if err != nil {
		return nil, err
	}
	ticketByID := make(map[int64]*domain.Ticket, len(tickets))
	eventIDs := make([]int64, 0, len(tickets))
	for _, t := range tickets {
		ticketByID[t.ID] = t
		eventIDs = append(eventIDs, t.EventID)
	}

	events, err := s.events.ListByIDs(ctx, domain.DedupeIDs(eventIDs))
	if err != nil {
		return nil, err
	}
	eventByID := make(map[int64]*domain.Event, len(events))
	mainImage := make(map[int64]*string, len(events))
	for _, e := range events {
		eventByID[e.ID] = e
		images, err := s.events.ListImages(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		if len(images) > 0 {
			url := images[0].ImageURL
			mainImage[e.ID] = &url
		}
	}

	now := s.clock.Now()
	loc := s.clock.Location()
	out := make([]*dto.UserTicketResponse, 0, len(purchases))
	for _, p := range purchases {
		t, ok := ticketByID[p.TicketID]
		if !ok {
			continue
		}
		e, ok := eventByID[t.EventID]
		if !ok {
			continue
		}
		out = append(out, &dto.UserTicketResponse{
			PurchaseID:     p.ID,
			PurchaseTime:   dto.FormatTime(p.PurchaseTime),
			Price:          p.Price,
			ValidFrom:      dto.FormatTimePtr(p.ValidFrom),
			ValidTo:        dto.FormatTimePtr(p.ValidTo),
			RefundDeadline: dto.RefundDeadline(domain.ProjectRefund(p, now, loc)),
			TicketInfo: dto.TicketInfo{
				Name:        t.Name,
				Description: t.Description,
			},
			EventInfo: dto.EventInfo{
				ID:              e.ID,
				Title:           e.Title,
				Image:           mainImage[e.ID],
				StartTime:       dto.FormatTime(e.StartTime),
				Location:        e.Location,
				OnlineInfo:      e.OnlineInfo,
				Status:          string(e.Status),
				RefundDateCount: e.RefundDateCount,
			},
		})
	}
	return out, nil
}
