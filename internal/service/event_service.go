package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nickruden/diplom-server/internal/clock"
	"github.com/nickruden/diplom-server/internal/domain"
	"github.com/nickruden/diplom-server/internal/dto"
	"github.com/nickruden/diplom-server/internal/repository"
	"github.com/nickruden/diplom-server/pkg/logger"
	"github.com/nickruden/diplom-server/pkg/telemetry"
)

// eventService implements EventService
type eventService struct {
	store      repository.LedgerStore
	events     repository.EventRepository
	tickets    repository.TicketRepository
	purchases  repository.PurchaseRepository
	social     repository.SocialRepository
	cache      repository.EventCache
	dispatcher Dispatcher
	clock      clock.TimeSource
}

// EventServiceDeps groups the collaborators of the event service
type EventServiceDeps struct {
	Store      repository.LedgerStore
	Events     repository.EventRepository
	Tickets    repository.TicketRepository
	Purchases  repository.PurchaseRepository
	Social     repository.SocialRepository
	Cache      repository.EventCache
	Dispatcher Dispatcher
	Clock      clock.TimeSource
}

// NewEventService creates a new EventService
func NewEventService(deps EventServiceDeps) EventService {
	if deps.Cache == nil {
		deps.Cache = repository.NoopEventCache{}
	}
	return &eventService{
		store:      deps.Store,
		events:     deps.Events,
		tickets:    deps.Tickets,
		purchases:  deps.Purchases,
		social:     deps.Social,
		cache:      deps.Cache,
		dispatcher: deps.Dispatcher,
		clock:      deps.Clock,
	}
}

// ListActiveEvents lists published events with an active date, soonest first
func (s *eventService) ListActiveEvents(ctx context.Context, filter *dto.ActiveEventFilter) ([]*dto.ActiveEventResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.event.list_active")
	defer span.End()

	now := s.clock.Now()
	events, err := s.events.ListPublished(ctx, now)
	if err != nil {
		return nil, err
	}
	if filter != nil && filter.CategoryID != nil {
		events = slices.DeleteFunc(events, func(e *domain.Event) bool {
			return e.CategoryID == nil || *e.CategoryID != *filter.CategoryID
		})
	}
	if len(events) == 0 {
		return []*dto.ActiveEventResponse{}, nil
	}

	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	ticketsByEvent, err := s.tickets.ListByEvents(ctx, ids)
	if err != nil {
		return nil, err
	}

	type listed struct {
		resp *dto.ActiveEventResponse
		date time.Time
	}
	items := make([]listed, 0, len(events))
	for _, e := range events {
		tickets := ticketsByEvent[e.ID]
		date, ok := domain.ActiveDate(e, tickets, now, s.clock.Location())
		if !ok {
			continue
		}
		images, err := s.events.ListImages(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, listed{
			resp: &dto.ActiveEventResponse{
				EventResponse: dto.NewEventResponse(e, images),
				ActiveDate:    dto.FormatTime(date),
				MinPrice:      minPrice(tickets),
			},
			date: date,
		})
	}

	slices.SortStableFunc(items, func(a, b listed) int {
		if c := a.date.Compare(b.date); c != 0 {
			return c
		}
		return cmpID(a.resp.ID, b.resp.ID)
	})

	out := make([]*dto.ActiveEventResponse, len(items))
	for i, it := range items {
		out[i] = it.resp
	}
	span.SetAttributes(attribute.Int("events", len(out)))
	return out, nil
}

func minPrice(tickets []*domain.Ticket) float64 {
	if len(tickets) == 0 {
		return 0
	}
	price := tickets[0].Price
	for _, t := range tickets[1:] {
		if t.Price < price {
			price = t.Price
		}
	}
	return price
}

func cmpID(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// GetEventDetail returns the event page. A stored status that no longer matches the derived
// one is corrected under the event lock before the page is built.
func (s *eventService) GetEventDetail(ctx context.Context, eventID int64) (*dto.EventDetailResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.event.detail")
	defer span.End()
	span.SetAttributes(attribute.Int64("event_id", eventID))

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

	now := s.clock.Now()
	hasPurchases := false
	for _, n := range sold {
		if n > 0 {
			hasPurchases = true
			break
		}
	}
	if domain.EvaluateStatus(domain.NewLifecycleSnapshot(e, tickets, hasPurchases), now) != e.Status {
		if e, tickets, sold, err = s.correctStatus(ctx, eventID, now); err != nil {
			return nil, err
		}
		if e == nil {
			return nil, domain.NotFound("event", eventID)
		}
	}

	images, err := s.events.ListImages(ctx, eventID)
	if err != nil {
		return nil, err
	}
	followers, err := s.social.CountFollowers(ctx, e.OrganizerID)
	if err != nil {
		return nil, err
	}

	resp := &dto.EventDetailResponse{
		EventResponse: dto.NewEventResponse(e, images),
		Tickets:       make([]*dto.TicketSalesResponse, 0, len(tickets)),
		Organizer:     &dto.OrganizerSummary{ID: e.OrganizerID, FollowersCount: followers},
	}
	if date, ok := domain.ActiveDate(e, tickets, now, s.clock.Location()); ok {
		resp.ActiveDate = dto.FormatTimePtr(&date)
	}
	for _, t := range tickets {
		line := dto.NewTicketSalesResponse(t, sold[t.ID])
		resp.Tickets = append(resp.Tickets, line)
		resp.TotalTicketsCount += t.Count
		resp.TotalSoldTickets += line.SoldCount
		resp.AvailableTicketsCount += line.AvailableCount
	}
	return resp, nil
}

// correctStatus re-evaluates the event under lock and returns fresh rows
func (s *eventService) correctStatus(ctx context.Context, eventID int64, now time.Time) (*domain.Event, []*domain.Ticket, map[int64]int, error) {
	var tr *domain.Transition
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		tr = nil
		e, err := tx.LockEvent(ctx, eventID)
		if err != nil || e == nil {
			return err
		}
		tickets, err := tx.LockTicketsByEvent(ctx, eventID)
		if err != nil {
			return err
		}
		tr, err = evaluateLocked(ctx, tx, e, tickets, now, "read")
		return err
	})
	if err != nil {
		return nil, nil, nil, err
	}
	if tr != nil {
		s.cache.Invalidate(ctx, eventID)
		logger.Get().Info(fmt.Sprintf("Event %d status corrected on read: %s -> %s", eventID, tr.From, tr.To))
	}

	e, err := s.events.GetByID(ctx, eventID)
	if err != nil || e == nil {
		return nil, nil, nil, err
	}
	tickets, err := s.tickets.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, nil, nil, err
	}
	sold, err := s.tickets.SoldCounts(ctx, ticketIDs(tickets))
	if err != nil {
		return nil, nil, nil, err
	}
	return e, tickets, sold, nil
}

func ticketIDs(tickets []*domain.Ticket) []int64 {
	ids := make([]int64, len(tickets))
	for i, t := range tickets {
		ids[i] = t.ID
	}
	return ids
}

// ListCreatorEvents lists an organizer's events with sales figures
func (s *eventService) ListCreatorEvents(ctx context.Context, creatorID int64, filter *dto.CreatorEventFilter) ([]*dto.CreatorEventResponse, error) {
	f := repository.EventFilter{Now: s.clock.Now()}
	if filter != nil {
		f.Period = filter.Filter
	}
	events, err := s.events.ListByOrganizer(ctx, creatorID, f)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return []*dto.CreatorEventResponse{}, nil
	}

	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	ticketsByEvent, err := s.tickets.ListByEvents(ctx, ids)
	if err != nil {
		return nil, err
	}
	var allTickets []int64
	for _, tickets := range ticketsByEvent {
		allTickets = append(allTickets, ticketIDs(tickets)...)
	}
	sold, err := s.tickets.SoldCounts(ctx, allTickets)
	if err != nil {
		return nil, err
	}

	out := make([]*dto.CreatorEventResponse, 0, len(events))
	for _, e := range events {
		images, err := s.events.ListImages(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		item := &dto.CreatorEventResponse{EventResponse: dto.NewEventResponse(e, images)}
		for _, t := range ticketsByEvent[e.ID] {
			item.TotalTicketsCount += t.Count
			item.SoldTicketsCount += sold[t.ID]
			item.Profit += float64(sold[t.ID]) * t.Price
		}
		out = append(out, item)
	}
	return out, nil
}

// CreateEvent creates an event with its images
func (s *eventService) CreateEvent(ctx context.Context, req *dto.CreateEventRequest) (*dto.CreateEventResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.event.create")
	defer span.End()

	if ok, msg := req.Validate(); !ok {
		return nil, domain.Validation("%s", msg)
	}
	if req.OrganizerID <= 0 {
		return nil, domain.Validation("organizer is required")
	}

	now := s.clock.Now()
	status := domain.EventStatusDraft
	if req.Status != "" {
		status = domain.EventStatus(req.Status)
	}
	e := &domain.Event{
		Title:           req.Title,
		Description:     req.Description,
		Location:        req.Location,
		OnlineInfo:      req.OnlineInfo,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Status:          status,
		OrganizerID:     req.OrganizerID,
		RefundDateCount: req.RefundDateCount,
		IsPrime:         req.IsPrime,
		CategoryID:      req.CategoryID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if status == domain.EventStatusPublished && e.HasElapsed(now) {
		return nil, domain.Validation("cannot publish an event that has already ended")
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		if err := tx.InsertEvent(ctx, e); err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
		if len(req.Images) > 0 {
			if err := tx.ReplaceImages(ctx, e.ID, dto.ToImages(e.ID, req.Images)); err != nil {
				return fmt.Errorf("failed to store images: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int64("event_id", e.ID))

	count, err := s.events.CountByOrganizer(ctx, e.OrganizerID)
	if err != nil {
		return nil, err
	}

	if status == domain.EventStatusPublished {
		s.notifyFollowers(ctx, e)
	}
	return &dto.CreateEventResponse{EventID: e.ID, EventsCount: count}, nil
}

// UpdateEvent applies a partial update. Status changes follow the manual transition rules;
// a lowered refund window is pushed down to existing purchases in the same transaction.
func (s *eventService) UpdateEvent(ctx context.Context, eventID int64, actor Actor, req *dto.UpdateEventRequest) (*domain.Event, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.event.update")
	defer span.End()
	span.SetAttributes(attribute.Int64("event_id", eventID))

	if ok, msg := req.Validate(); !ok {
		return nil, domain.Validation("%s", msg)
	}

	now := s.clock.Now()
	var (
		updated      *domain.Event
		prevStatus   domain.EventStatus
		hadPurchases bool
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		e, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if e == nil {
			return domain.NotFound("event", eventID)
		}
		if !actor.CanManage(e) {
			return domain.Forbidden("only the organizer can edit this event")
		}
		prevStatus = e.Status
		prevRefund := e.RefundDateCount

		applyEventUpdate(e, req)
		if req.Status != nil {
			next := domain.EventStatus(*req.Status)
			if err := domain.CheckManualTransition(prevStatus, next); err != nil {
				return err
			}
			if next == domain.EventStatusPublished && e.HasElapsed(now) {
				return domain.Validation("cannot publish an event that has already ended")
			}
			e.Status = next
		}
		if err := e.Validate(); err != nil {
			return err
		}
		e.UpdatedAt = now

		if err := tx.UpdateEvent(ctx, e); err != nil {
			return fmt.Errorf("failed to update event: %w", err)
		}
		if len(req.Images) > 0 {
			if err := tx.ReplaceImages(ctx, e.ID, dto.ToImages(e.ID, req.Images)); err != nil {
				return fmt.Errorf("failed to store images: %w", err)
			}
		}
		if domain.RefundWindowLowered(prevRefund, req.RefundDateCount) {
			if _, err := tx.LowerRefundWindow(ctx, e.ID, *req.RefundDateCount); err != nil {
				return fmt.Errorf("failed to lower refund window: %w", err)
			}
		}

		count, err := tx.CountPurchasesByEvent(ctx, e.ID)
		if err != nil {
			return err
		}
		hadPurchases = count > 0

		tickets, err := tx.LockTicketsByEvent(ctx, e.ID)
		if err != nil {
			return err
		}
		if _, err := evaluateLocked(ctx, tx, e, tickets, now, "update"); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.cache.Invalidate(ctx, eventID)
	s.notifyUpdate(ctx, updated, prevStatus, req.Status != nil, hadPurchases)
	return updated, nil
}

func applyEventUpdate(e *domain.Event, req *dto.UpdateEventRequest) {
	if req.Title != nil {
		e.Title = *req.Title
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	if req.Location != nil {
		e.Location = *req.Location
	}
	if req.OnlineInfo != nil {
		e.OnlineInfo = *req.OnlineInfo
	}
	if req.StartTime != nil {
		e.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		e.EndTime = *req.EndTime
	}
	if req.RefundDateCount != nil {
		e.RefundDateCount = req.RefundDateCount
	}
	if req.IsPrime != nil {
		e.IsPrime = *req.IsPrime
	}
	if req.CategoryID != nil {
		e.CategoryID = req.CategoryID
	}
}

// notifyUpdate picks the notice for a committed update
func (s *eventService) notifyUpdate(ctx context.Context, e *domain.Event, prev domain.EventStatus, statusRequested, hadPurchases bool) {
	kind := domain.ChangeUpdate
	if statusRequested && e.Status != prev {
		switch {
		case e.Status == domain.EventStatusPublished:
			kind = domain.ChangePublic
		case prev == domain.EventStatusPublished && e.Status == domain.EventStatusDraft:
			kind = domain.ChangeRefund
		}
	}

	if kind == domain.ChangePublic && prev == domain.EventStatusDraft && !hadPurchases {
		s.notifyFollowers(ctx, e)
	}
	s.notify(ctx, &domain.Notice{
		Kind:        kind,
		EventID:     e.ID,
		EventTitle:  e.Title,
		OrganizerID: e.OrganizerID,
		OccurredAt:  s.clock.Now(),
	})
}

// PublishEvent moves a draft event to published
func (s *eventService) PublishEvent(ctx context.Context, eventID int64, actor Actor) (*domain.Event, error) {
	published := string(domain.EventStatusPublished)
	return s.UpdateEvent(ctx, eventID, actor, &dto.UpdateEventRequest{Status: &published})
}

// DeleteEvent deletes an event. Completed events go unconditionally; otherwise active
// purchases block the delete unless force is set.
func (s *eventService) DeleteEvent(ctx context.Context, eventID int64, actor Actor, force bool) (*dto.DeleteEventResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.event.delete")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("event_id", eventID),
		attribute.Bool("force", force),
	)

	now := s.clock.Now()
	var (
		deleted  *domain.Event
		audience []int64
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		deleted, audience = nil, nil

		e, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if e == nil {
			return domain.NotFound("event", eventID)
		}
		if !actor.CanManage(e) {
			return domain.Forbidden("only the organizer can delete this event")
		}

		if e.Status != domain.EventStatusCompleted {
			if !force {
				active, err := tx.CountActivePurchases(ctx, e.ID, now)
				if err != nil {
					return err
				}
				if active > 0 {
					return domain.ErrEventHasActivePurchases.
						WithDetail("eventId", e.ID).
						WithDetail("activePurchaseCount", active)
				}
			}
			// captured before the purge removes purchases and favorites
			if audience, err = tx.EventAudience(ctx, e.ID); err != nil {
				return err
			}
		}

		if _, err := tx.LockTicketsByEvent(ctx, e.ID); err != nil {
			return err
		}
		if err := tx.DeleteEventCascade(ctx, e.ID); err != nil {
			return fmt.Errorf("failed to delete event: %w", err)
		}
		deleted = e
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.cache.Invalidate(ctx, eventID)
	if deleted.Status != domain.EventStatusCompleted {
		s.notify(ctx, &domain.Notice{
			Kind:        domain.ChangeCancel,
			EventID:     deleted.ID,
			EventTitle:  deleted.Title,
			OrganizerID: deleted.OrganizerID,
			Recipients:  audience,
			OccurredAt:  now,
		})
	}

	count, err := s.events.CountByOrganizer(ctx, deleted.OrganizerID)
	if err != nil {
		return nil, err
	}
	return &dto.DeleteEventResponse{EventCount: count}, nil
}

// DeleteImage removes one image row of an event the actor manages
func (s *eventService) DeleteImage(ctx context.Context, publicID string, actor Actor) error {
	img, err := s.events.GetImageByPublicID(ctx, publicID)
	if err != nil {
		return err
	}
	if img == nil {
		return domain.ErrEntityNotFound.WithDetail("entity", "image").WithDetail("publicId", publicID)
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		e, err := tx.LockEvent(ctx, img.EventID)
		if err != nil {
			return err
		}
		if e == nil {
			return domain.NotFound("event", img.EventID)
		}
		if !actor.CanManage(e) {
			return domain.Forbidden("only the organizer can remove event images")
		}
		return tx.DeleteImage(ctx, img.ID)
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, img.EventID)
	return nil
}

// AddFavorite marks an event as favorite
func (s *eventService) AddFavorite(ctx context.Context, userID, eventID int64) error {
	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if e == nil {
		return domain.NotFound("event", eventID)
	}
	return s.social.AddFavorite(ctx, userID, eventID)
}

// RemoveFavorite unmarks an event; removing a missing favorite is not an error
func (s *eventService) RemoveFavorite(ctx context.Context, userID, eventID int64) error {
	_, err := s.social.RemoveFavorite(ctx, userID, eventID)
	return err
}

// ListFavorites lists a user's favorite events
func (s *eventService) ListFavorites(ctx context.Context, userID int64) ([]*dto.EventResponse, error) {
	ids, err := s.social.ListFavoriteEventIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*dto.EventResponse{}, nil
	}
	events, err := s.events.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*dto.EventResponse, 0, len(events))
	for _, e := range events {
		images, err := s.events.ListImages(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, dto.NewEventResponse(e, images))
	}
	return out, nil
}

// ListEventPurchases lists an event's purchases for its organizer
func (s *eventService) ListEventPurchases(ctx context.Context, eventID int64, actor Actor) ([]*domain.Purchase, error) {
	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, domain.NotFound("event", eventID)
	}
	if !actor.CanManage(e) {
		return nil, domain.Forbidden("only the organizer can view event purchases")
	}
	return s.purchases.ListByEvent(ctx, eventID)
}

func (s *eventService) notifyFollowers(ctx context.Context, e *domain.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.NotifyFollowersOnNewEvent(ctx, e.OrganizerID, e.Title, e.ID); err != nil {
		logger.Get().Warn(fmt.Sprintf("Failed to notify followers about event %d: %v", e.ID, err))
	}
}

func (s *eventService) notify(ctx context.Context, n *domain.Notice) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.NotifyEventChange(ctx, n); err != nil {
		logger.Get().Warn(fmt.Sprintf("Failed to dispatch %s notice for event %d: %v", n.Kind, n.EventID, err))
	}
}
