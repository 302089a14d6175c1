package service

import (
	"context"
	"fmt"

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

// ticketService implements TicketService
type ticketService struct {
	store      repository.LedgerStore
	tickets    repository.TicketRepository
	events     repository.EventRepository
	cache      repository.EventCache
	dispatcher Dispatcher
	clock      clock.TimeSource
}

// NewTicketService creates a new TicketService
func NewTicketService(
	store repository.LedgerStore,
	tickets repository.TicketRepository,
	events repository.EventRepository,
	cache repository.EventCache,
	dispatcher Dispatcher,
	clk clock.TimeSource,
) TicketService {
	if cache == nil {
		cache = repository.NoopEventCache{}
	}
	return &ticketService{
		store:      store,
		tickets:    tickets,
		events:     events,
		cache:      cache,
		dispatcher: dispatcher,
		clock:      clk,
	}
}

// ListByEvent lists an event's tiers with sold counts and profit
func (s *ticketService) ListByEvent(ctx context.Context, eventID int64) (*dto.EventTicketsResponse, error) {
	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, domain.NotFound("event", eventID)
	}

	tickets, err := s.tickets.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	sold, err := s.tickets.SoldCounts(ctx, ticketIDs(tickets))
	if err != nil {
		return nil, err
	}

	resp := &dto.EventTicketsResponse{Tickets: make([]*dto.TicketSalesResponse, 0, len(tickets))}
	for _, t := range tickets {
		resp.Tickets = append(resp.Tickets, dto.NewTicketSalesResponse(t, sold[t.ID]))
		resp.TotalTickets += t.Count
	}
	return resp, nil
}

// CreateTicket adds a tier. Validity defaults to the event's start and end.
func (s *ticketService) CreateTicket(ctx context.Context, eventID int64, actor Actor, req *dto.CreateTicketRequest) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.create")
	defer span.End()
	span.SetAttributes(attribute.Int64("event_id", eventID))

	if ok, msg := req.Validate(); !ok {
		return nil, domain.Validation("%s", msg)
	}

	now := s.clock.Now()
	var ticket *domain.Ticket
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		e, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if e == nil {
			return domain.NotFound("event", eventID)
		}
		if !actor.CanManage(e) {
			return domain.Forbidden("only the organizer can add tickets")
		}
		if e.Status == domain.EventStatusCompleted {
			return domain.Validation("cannot add tickets to a completed event")
		}

		t := req.ToTicket(e.ID)
		if t.ValidFrom == nil {
			t.ValidFrom = domain.TimePtr(e.StartTime)
		}
		if t.ValidTo == nil {
			t.ValidTo = domain.TimePtr(e.EndTime)
		}
		if err := t.Validate(); err != nil {
			return err
		}

		tickets, err := tx.LockTicketsByEvent(ctx, e.ID)
		if err != nil {
			return err
		}
		if err := tx.InsertTicket(ctx, t); err != nil {
			return fmt.Errorf("failed to insert ticket: %w", err)
		}
		// a fresh tier is never sold out, so a SoldOut event falls back to Draft
		if _, err := evaluateLocked(ctx, tx, e, append(tickets, t), now, "ticket"); err != nil {
			return err
		}
		ticket = t
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.cache.Invalidate(ctx, eventID)
	return ticket, nil
}

// UpdateTicket changes a tier. The sold-out flag is recomputed from the locked sold count.
func (s *ticketService) UpdateTicket(ctx context.Context, ticketID int64, actor Actor, req *dto.UpdateTicketRequest) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.update")
	defer span.End()
	span.SetAttributes(attribute.Int64("ticket_id", ticketID))

	if ok, msg := req.Validate(); !ok {
		return nil, domain.Validation("%s", msg)
	}

	now := s.clock.Now()
	var (
		ticket  *domain.Ticket
		eventID int64
	)
	err := s.withLockedTicket(ctx, ticketID, actor, func(ctx context.Context, tx repository.LedgerTx, e *domain.Event, tickets []*domain.Ticket, t *domain.Ticket) error {
		eventID = e.ID
		req.Apply(t)
		if err := t.Validate(); err != nil {
			return err
		}

		sold, err := tx.CountSoldByTicket(ctx, t.ID)
		if err != nil {
			return err
		}
		if t.Count < sold {
			return domain.Validation("count cannot be less than the %d units already sold", sold).
				WithDetail("soldCount", sold)
		}

		if err := tx.UpdateTicket(ctx, t); err != nil {
			return fmt.Errorf("failed to update ticket: %w", err)
		}
		if _, err := ledger.Resync(ctx, tx, t); err != nil {
			return err
		}
		if _, err := evaluateLocked(ctx, tx, e, tickets, now, "ticket"); err != nil {
			return err
		}
		ticket = t
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.cache.Invalidate(ctx, eventID)
	return ticket, nil
}

// DeleteTicket removes a tier that has no purchases
func (s *ticketService) DeleteTicket(ctx context.Context, ticketID int64, actor Actor) error {
	now := s.clock.Now()
	var eventID int64
	err := s.withLockedTicket(ctx, ticketID, actor, func(ctx context.Context, tx repository.LedgerTx, e *domain.Event, tickets []*domain.Ticket, t *domain.Ticket) error {
		eventID = e.ID
		sold, err := tx.CountSoldByTicket(ctx, t.ID)
		if err != nil {
			return err
		}
		if sold > 0 {
			return domain.ErrTicketHasPurchases.
				WithDetail("ticketId", t.ID).
				WithDetail("purchasesCount", sold)
		}
		if err := tx.DeleteTicket(ctx, t.ID); err != nil {
			return fmt.Errorf("failed to delete ticket: %w", err)
		}

		rest := make([]*domain.Ticket, 0, len(tickets))
		for _, other := range tickets {
			if other.ID != t.ID {
				rest = append(rest, other)
			}
		}
		_, err = evaluateLocked(ctx, tx, e, rest, now, "ticket")
		return err
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx, eventID)
	return nil
}

// RefundAll releases every purchase of a tier and returns the captured prices to the buyers
func (s *ticketService) RefundAll(ctx context.Context, ticketID int64, actor Actor) (*dto.RefundAllResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.refund_all")
	defer span.End()
	span.SetAttributes(attribute.Int64("ticket_id", ticketID))

	now := s.clock.Now()
	var (
		resp   *dto.RefundAllResponse
		event  *domain.Event
		buyers []int64
	)
	err := s.withLockedTicket(ctx, ticketID, actor, func(ctx context.Context, tx repository.LedgerTx, e *domain.Event, tickets []*domain.Ticket, t *domain.Ticket) error {
		resp, event, buyers = nil, e, nil

		purchases, err := tx.LockPurchasesByTicket(ctx, t.ID)
		if err != nil {
			return err
		}

		var total float64
		for _, p := range purchases {
			if _, err := ledger.Release(ctx, tx, t, p.ID); err != nil {
				return err
			}
			total += p.Price
			buyers = append(buyers, p.UserID)
		}
		if total != 0 {
			if _, err := tx.AddRevenue(ctx, e.ID, -total); err != nil {
				return fmt.Errorf("failed to subtract revenue: %w", err)
			}
		}
		if _, err := evaluateLocked(ctx, tx, e, tickets, now, "refund"); err != nil {
			return err
		}

		resp = &dto.RefundAllResponse{
			TicketID:      t.ID,
			RefundedCount: len(purchases),
			RefundAmount:  total,
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.cache.Invalidate(ctx, event.ID)
	if resp.RefundedCount > 0 {
		metrics.RecordRefund(ctx, event.ID, resp.RefundedCount)
		if s.dispatcher != nil {
			notice := &domain.Notice{
				Kind:        domain.ChangeRefund,
				EventID:     event.ID,
				EventTitle:  event.Title,
				OrganizerID: event.OrganizerID,
				Recipients:  domain.DedupeIDs(buyers),
				OccurredAt:  now,
			}
			if err := s.dispatcher.NotifyEventChange(ctx, notice); err != nil {
				logger.Get().Warn(fmt.Sprintf("Failed to dispatch refund notice for event %d: %v", event.ID, err))
			}
		}
	}
	return resp, nil
}

// withLockedTicket locks the tier's event, then all its tiers, checks the actor and runs fn
func (s *ticketService) withLockedTicket(
	ctx context.Context,
	ticketID int64,
	actor Actor,
	fn func(ctx context.Context, tx repository.LedgerTx, e *domain.Event, tickets []*domain.Ticket, t *domain.Ticket) error,
) error {
	return s.store.WithinTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		found, err := tx.GetTickets(ctx, []int64{ticketID})
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return domain.NotFound("ticket", ticketID)
		}

		e, err := tx.LockEvent(ctx, found[0].EventID)
		if err != nil {
			return err
		}
		if e == nil {
			return domain.NotFound("event", found[0].EventID)
		}
		if !actor.CanManage(e) {
			return domain.Forbidden("only the organizer can manage tickets")
		}

		tickets, err := tx.LockTicketsByEvent(ctx, e.ID)
		if err != nil {
			return err
		}
		for _, t := range tickets {
			if t.ID == ticketID {
				return fn(ctx, tx, e, tickets, t)
			}
		}
		return domain.NotFound("ticket", ticketID)
	})
}
