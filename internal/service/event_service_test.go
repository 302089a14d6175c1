package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nickruden/diplom-server/internal/domain"
	"github.com/nickruden/diplom-server/internal/dto"
)

func TestEventService_CreateEvent(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))

	resp, err := env.events.CreateEvent(context.Background(), &dto.CreateEventRequest{
		Title:       "Jazz night",
		StartTime:   day(2025, 6, 1),
		EndTime:     day(2025, 6, 2),
		OrganizerID: organizerID,
		Images: []dto.ImageInput{
			{ImageURL: "https://img/1.jpg", PublicID: "img-1"},
			{ImageURL: "https://img/2.jpg", PublicID: "img-2", IsMain: true},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, resp.EventsCount)

	e := env.event(t, resp.EventID)
	require.NotNil(t, e)
	assert.Equal(t, domain.EventStatusDraft, e.Status)
	assert.Equal(t, organizerID, e.OrganizerID)

	images, err := env.store.Events().ListImages(context.Background(), e.ID)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "img-2", images[0].PublicID)
	env.dispatcher.AssertNotCalled(t, "NotifyFollowersOnNewEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEventService_CreateEvent_PublishedNotifiesFollowers(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))
	env.dispatcher.On("NotifyFollowersOnNewEvent", mock.Anything, organizerID, "Jazz night", mock.AnythingOfType("int64")).Return(nil).Once()

	_, err := env.events.CreateEvent(context.Background(), &dto.CreateEventRequest{
		Title:       "Jazz night",
		StartTime:   day(2025, 6, 1),
		EndTime:     day(2025, 6, 2),
		Status:      "published",
		OrganizerID: organizerID,
	})

	require.NoError(t, err)
	env.dispatcher.AssertExpectations(t)
}

func TestEventService_CreateEvent_Invalid(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))

	_, err := env.events.CreateEvent(context.Background(), &dto.CreateEventRequest{
		Title:       "Past",
		StartTime:   day(2025, 4, 1),
		EndTime:     day(2025, 4, 2),
		Status:      "published",
		OrganizerID: organizerID,
	})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = env.events.CreateEvent(context.Background(), &dto.CreateEventRequest{
		StartTime:   day(2025, 6, 1),
		EndTime:     day(2025, 6, 2),
		OrganizerID: organizerID,
	})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestEventService_UpdateEvent_LowersRefundWindowOnPurchases(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))
	env.dispatcher.On("NotifyEventChange", mock.Anything, mock.MatchedBy(func(n *domain.Notice) bool {
		return n.Kind == domain.ChangeUpdate
	})).Return(nil).Twice()

	e := env.seedEvent(t, domain.EventStatusPublished, day(2025, 6, 1), day(2025, 6, 2))
	tk := env.seedTicket(t, e.ID, domain.Ticket{Price: 10, Count: 10, ValidFrom: domain.TimePtr(day(2025, 6, 1)), RefundDateCount: domain.IntPtr(10)})
	bought, err := env.purchases.ConfirmPurchase(context.Background(), buyerID, confirmOne(tk.ID))
	require.NoError(t, err)

	three := 3
	updated, err := env.events.UpdateEvent(context.Background(), e.ID, organizer, &dto.UpdateEventRequest{RefundDateCount: &three})
	require.NoError(t, err)
	require.NotNil(t, updated.RefundDateCount)
	assert.Equal(t, 3, *updated.RefundDateCount)

	p, err := env.store.Purchases().GetByID(context.Background(), bought.Purchases[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 3, *p.RefundDateCount)

	// raising the window never widens existing purchases
	seven := 7
	_, err = env.events.UpdateEvent(context.Background(), e.ID, organizer, &dto.UpdateEventRequest{RefundDateCount: &seven})
	require.NoError(t, err)
	p, err = env.store.Purchases().GetByID(context.Background(), bought.Purchases[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 3, *p.RefundDateCount)

	env.dispatcher.AssertExpectations(t)
}

func TestEventService_UpdateEvent_RefundWindowWithMixedSnapshots(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))
	env.allowNotices()

	e := env.seedEvent(t, domain.EventStatusPublished, day(2025, 6, 1), day(2025, 6, 2))
	wide := env.seedTicket(t, e.ID, domain.Ticket{Price: 10, Count: 5, ValidFrom: domain.TimePtr(day(2025, 6, 1)), RefundDateCount: domain.IntPtr(10)})
	narrow := env.seedTicket(t, e.ID, domain.Ticket{Price: 10, Count: 5, ValidFrom: domain.TimePtr(day(2025, 6, 1)), RefundDateCount: domain.IntPtr(2)})

	first, err := env.purchases.ConfirmPurchase(context.Background(), buyerID, confirmOne(wide.ID))
	require.NoError(t, err)
	second, err := env.purchases.ConfirmPurchase(context.Background(), buyerID, confirmOne(narrow.ID))
	require.NoError(t, err)

	// the event had no default, so setting one counts as lowering
	five := 5
	_, err = env.events.UpdateEvent(context.Background(), e.ID, organizer, &dto.UpdateEventRequest{RefundDateCount: &five})
	require.NoError(t, err)

	p, err := env.store.Purchases().GetByID(context.Background(), first.Purchases[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 5, *p.RefundDateCount)

	p, err = env.store.Purchases().GetByID(context.Background(), second.Purchases[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, *p.RefundDateCount)
}

func TestEventService_UpdateEvent_Forbidden(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))
	e := env.seedEvent(t, domain.EventStatusDraft, day(2025, 6, 1), day(2025, 6, 2))
	title := "Hijacked"

	_, err := env.events.UpdateEvent(context.Background(), e.ID, stranger, &dto.UpdateEventRequest{Title: &title})

	assert.True(t, errors.Is(err, domain.ErrForbidden))
	assert.Equal(t, "Concert", env.event(t, e.ID).Title)
}

func TestEventService_UpdateEvent_AdminBypassesOwnership(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))
	env.allowNotices()
	e := env.seedEvent(t, domain.EventStatusDraft, day(2025, 6, 1), day(2025, 6, 2))
	title := "Renamed"

	updated, err := env.events.UpdateEvent(context.Background(), e.ID, admin, &dto.UpdateEventRequest{Title: &title})

	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, organizerID, env.event(t, e.ID).OrganizerID)
}

func TestEventService_UpdateEvent_UnpublishSendsRefundNotice(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))
	env.dispatcher.On("NotifyEventChange", mock.Anything, mock.MatchedBy(func(n *domain.Notice) bool {
		return n.Kind == domain.ChangeRefund
	})).Return(nil).Once()

	e := env.seedEvent(t, domain.EventStatusPublished, day(2025, 6, 1), day(2025, 6, 2))
	draft := "draft"

	updated, err := env.events.UpdateEvent(context.Background(), e.ID, organizer, &dto.UpdateEventRequest{Status: &draft})

	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusDraft, updated.Status)
	env.dispatcher.AssertExpectations(t)
}

func TestEventService_PublishEvent(t *testing.T) {
	t.Run("first publication notifies followers", func(t *testing.T) {
		env := newTestEnv(t, day(2025, 5, 1))
		e := env.seedEvent(t, domain.EventStatusDraft, day(2025, 6, 1), day(2025, 6, 2))
		env.dispatcher.On("NotifyFollowersOnNewEvent", mock.Anything, organizerID, "Concert", e.ID).Return(nil).Once()
		env.dispatcher.On("NotifyEventChange", mock.Anything, mock.MatchedBy(func(n *domain.Notice) bool {
			return n.Kind == domain.ChangePublic && n.EventID == e.ID
		})).Return(nil).Once()

		published, err := env.events.PublishEvent(context.Background(), e.ID, organizer)

		require.NoError(t, err)
		assert.Equal(t, domain.EventStatusPublished, published.Status)
		env.dispatcher.AssertExpectations(t)
	})

	t.Run("sold out cannot be republished", func(t *testing.T) {
		env := newTestEnv(t, day(2025, 5, 1))
		e := env.seedEvent(t, domain.EventStatusSoldOut, day(2025, 6, 1), day(2025, 6, 2))

		_, err := env.events.PublishEvent(context.Background(), e.ID, organizer)

		assert.True(t, errors.Is(err, domain.ErrInvalidStatusTransition))
	})

	t.Run("completed cannot be republished", func(t *testing.T) {
		env := newTestEnv(t, day(2025, 5, 1))
		e := env.seedEvent(t, domain.EventStatusCompleted, day(2025, 4, 1), day(2025, 4, 2))

		_, err := env.events.PublishEvent(context.Background(), e.ID, organizer)

		assert.True(t, errors.Is(err, domain.ErrInvalidStatusTransition))
	})

	t.Run("unknown event", func(t *testing.T) {
		env := newTestEnv(t, day(2025, 5, 1))

		_, err := env.events.PublishEvent(context.Background(), 42, organizer)

		assert.True(t, errors.Is(err, domain.ErrEntityNotFound))
	})
}

func TestEventService_DeleteEvent(t *testing.T) {
	setup := func(t *testing.T) (*testEnv, *domain.Event, int64) {
		env := newTestEnv(t, day(2025, 5, 1))
		e := env.seedEvent(t, domain.EventStatusPublished, day(2025, 6, 1), day(2025, 6, 2))
		tk := env.seedTicket(t, e.ID, domain.Ticket{Price: 25, Count: 10, ValidTo: domain.TimePtr(day(2025, 6, 2))})
		_, err := env.purchases.ConfirmPurchase(context.Background(), buyerID, confirmOne(tk.ID))
		require.NoError(t, err)
		return env, e, tk.ID
	}

	t.Run("active purchase blocks the delete", func(t *testing.T) {
		env, e, _ := setup(t)

		_, err := env.events.DeleteEvent(context.Background(), e.ID, organizer, false)

		require.True(t, errors.Is(err, domain.ErrEventHasActivePurchases))
		var derr *domain.Error
		require.True(t, errors.As(err, &derr))
		assert.Equal(t, 1, derr.Details["activePurchaseCount"])
		assert.NotNil(t, env.event(t, e.ID))
		env.dispatcher.AssertNotCalled(t, "NotifyEventChange", mock.Anything, mock.Anything)
	})

	t.Run("force purges and notifies the audience", func(t *testing.T) {
		env, e, ticketID := setup(t)
		require.NoError(t, env.store.Social().AddFavorite(context.Background(), 300, e.ID))
		env.dispatcher.On("NotifyEventChange", mock.Anything, mock.MatchedBy(func(n *domain.Notice) bool {
			return n.Kind == domain.ChangeCancel && n.EventID == e.ID &&
				assert.ElementsMatch(t, []int64{buyerID, 300}, n.Recipients)
		})).Return(nil).Once()

		resp, err := env.events.DeleteEvent(context.Background(), e.ID, organizer, true)

		require.NoError(t, err)
		assert.Equal(t, 0, resp.EventCount)
		assert.Nil(t, env.event(t, e.ID))
		assert.Nil(t, env.ticket(t, ticketID))
		purchases, err := env.store.Purchases().ListByUser(context.Background(), buyerID)
		require.NoError(t, err)
		assert.Empty(t, purchases)
		env.dispatcher.AssertExpectations(t)
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		env, e, _ := setup(t)

		_, err := env.events.DeleteEvent(context.Background(), e.ID, stranger, true)

		assert.True(t, errors.Is(err, domain.ErrForbidden))
		assert.NotNil(t, env.event(t, e.ID))
	})

	t.Run("completed events are deleted without notice", func(t *testing.T) {
		env, e, _ := setup(t)
		env.clock.Set(day(2025, 6, 3))
		_, err := env.lifecycle.EvaluateEvent(context.Background(), e.ID)
		require.NoError(t, err)
		require.Equal(t, domain.EventStatusCompleted, env.event(t, e.ID).Status)

		_, err = env.events.DeleteEvent(context.Background(), e.ID, organizer, false)

		require.NoError(t, err)
		assert.Nil(t, env.event(t, e.ID))
		env.dispatcher.AssertNotCalled(t, "NotifyEventChange", mock.Anything, mock.Anything)
	})
}

func TestEventService_GetEventDetail(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))
	e := env.seedEvent(t, domain.EventStatusPublished, day(2025, 6, 1), day(2025, 6, 3))
	a := env.seedTicket(t, e.ID, domain.Ticket{Name: "Day 1", Price: 10, Count: 5, ValidFrom: domain.TimePtr(day(2025, 6, 1)), ValidTo: domain.TimePtr(day(2025, 6, 2))})
	env.seedTicket(t, e.ID, domain.Ticket{Name: "Day 2", Price: 20, Count: 3, ValidFrom: domain.TimePtr(day(2025, 6, 2)), ValidTo: domain.TimePtr(day(2025, 6, 3))})
	require.NoError(t, env.store.Social().Follow(context.Background(), organizerID, buyerID))

	_, err := env.purchases.ConfirmPurchase(context.Background(), buyerID, &dto.ConfirmPurchaseRequest{
		Tickets: []dto.LineItem{{TicketID: a.ID, Count: 2}},
	})
	require.NoError(t, err)

	detail, err := env.events.GetEventDetail(context.Background(), e.ID)

	require.NoError(t, err)
	assert.Equal(t, 8, detail.TotalTicketsCount)
	assert.Equal(t, 2, detail.TotalSoldTickets)
	assert.Equal(t, 6, detail.AvailableTicketsCount)
	assert.Equal(t, 1, detail.Organizer.FollowersCount)
	require.NotNil(t, detail.ActiveDate)
	assert.Equal(t, dto.FormatTime(day(2025, 6, 1)), *detail.ActiveDate)
	require.Len(t, detail.Tickets, 2)
	assert.Equal(t, 2, detail.Tickets[0].SoldCount)
	assert.Equal(t, 20.0, detail.Tickets[0].Profit)
}

func TestEventService_GetEventDetail_CorrectsStaleStatus(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))
	e := env.seedEvent(t, domain.EventStatusPublished, day(2025, 5, 10), day(2025, 5, 11))
	env.seedTicket(t, e.ID, domain.Ticket{Price: 10, Count: 5})

	env.clock.Set(day(2025, 5, 12))
	detail, err := env.events.GetEventDetail(context.Background(), e.ID)

	require.NoError(t, err)
	assert.Equal(t, string(domain.EventStatusDraft), detail.Status)
	assert.Equal(t, domain.EventStatusDraft, env.event(t, e.ID).Status)
}

func TestEventService_ListActiveEvents(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))
	category := int64(7)

	later := env.seedEvent(t, domain.EventStatusPublished, day(2025, 7, 1), day(2025, 7, 1).Add(3*time.Hour))
	env.seedTicket(t, later.ID, domain.Ticket{Price: 30, Count: 5})
	env.seedTicket(t, later.ID, domain.Ticket{Price: 15, Count: 5})

	sooner := env.seedEvent(t, domain.EventStatusPublished, day(2025, 6, 1), day(2025, 6, 5))
	env.seedTicket(t, sooner.ID, domain.Ticket{Price: 10, Count: 5, ValidFrom: domain.TimePtr(day(2025, 6, 2))})

	// no tiers, never listed
	env.seedEvent(t, domain.EventStatusPublished, day(2025, 6, 1), day(2025, 6, 2))
	draft := env.seedEvent(t, domain.EventStatusDraft, day(2025, 6, 1), day(2025, 6, 2))
	env.seedTicket(t, draft.ID, domain.Ticket{Price: 10, Count: 5})

	list, err := env.events.ListActiveEvents(context.Background(), &dto.ActiveEventFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, sooner.ID, list[0].ID)
	assert.Equal(t, dto.FormatTime(day(2025, 6, 2)), list[0].ActiveDate)
	assert.Equal(t, later.ID, list[1].ID)
	assert.Equal(t, 15.0, list[1].MinPrice)

	filtered, err := env.events.ListActiveEvents(context.Background(), &dto.ActiveEventFilter{CategoryID: &category})
	require.NoError(t, err)
	assert.Empty(t, filtered)
}

func TestEventService_ListCreatorEvents(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 15))
	past := env.seedEvent(t, domain.EventStatusCompleted, day(2025, 5, 1), day(2025, 5, 2))
	upcoming := env.seedEvent(t, domain.EventStatusPublished, day(2025, 6, 1), day(2025, 6, 2))
	tk := env.seedTicket(t, upcoming.ID, domain.Ticket{Price: 12.5, Count: 4})
	_, err := env.purchases.ConfirmPurchase(context.Background(), buyerID, &dto.ConfirmPurchaseRequest{
		Tickets: []dto.LineItem{{TicketID: tk.ID, Count: 2}},
	})
	require.NoError(t, err)

	all, err := env.events.ListCreatorEvents(context.Background(), organizerID, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, past.ID, all[0].ID)

	onlyUpcoming, err := env.events.ListCreatorEvents(context.Background(), organizerID, &dto.CreatorEventFilter{Filter: "upcoming"})
	require.NoError(t, err)
	require.Len(t, onlyUpcoming, 1)
	assert.Equal(t, 2, onlyUpcoming[0].SoldTicketsCount)
	assert.Equal(t, 4, onlyUpcoming[0].TotalTicketsCount)
	assert.Equal(t, 25.0, onlyUpcoming[0].Profit)
}

func TestEventService_Favorites(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))
	e := env.seedEvent(t, domain.EventStatusPublished, day(2025, 6, 1), day(2025, 6, 2))
	ctx := context.Background()

	require.NoError(t, env.events.AddFavorite(ctx, buyerID, e.ID))
	assert.True(t, errors.Is(env.events.AddFavorite(ctx, buyerID, 9999), domain.ErrEntityNotFound))

	favs, err := env.events.ListFavorites(ctx, buyerID)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, e.ID, favs[0].ID)

	require.NoError(t, env.events.RemoveFavorite(ctx, buyerID, e.ID))
	require.NoError(t, env.events.RemoveFavorite(ctx, buyerID, e.ID))

	favs, err = env.events.ListFavorites(ctx, buyerID)
	require.NoError(t, err)
	assert.Empty(t, favs)
}

func TestEventService_DeleteImage(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))
	resp, err := env.events.CreateEvent(context.Background(), &dto.CreateEventRequest{
		Title:       "Gallery",
		StartTime:   day(2025, 6, 1),
		EndTime:     day(2025, 6, 2),
		OrganizerID: organizerID,
		Images:      []dto.ImageInput{{ImageURL: "https://img/1.jpg", PublicID: "img-1", IsMain: true}},
	})
	require.NoError(t, err)

	assert.True(t, errors.Is(env.events.DeleteImage(context.Background(), "img-1", stranger), domain.ErrForbidden))
	require.NoError(t, env.events.DeleteImage(context.Background(), "img-1", organizer))
	assert.True(t, errors.Is(env.events.DeleteImage(context.Background(), "img-1", organizer), domain.ErrEntityNotFound))

	images, err := env.store.Events().ListImages(context.Background(), resp.EventID)
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestEventService_ListEventPurchases(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))
	e := env.seedEvent(t, domain.EventStatusPublished, day(2025, 6, 1), day(2025, 6, 2))
	tk := env.seedTicket(t, e.ID, domain.Ticket{Price: 5, Count: 5})
	_, err := env.purchases.ConfirmPurchase(context.Background(), buyerID, confirmOne(tk.ID))
	require.NoError(t, err)

	purchases, err := env.events.ListEventPurchases(context.Background(), e.ID, organizer)
	require.NoError(t, err)
	assert.Len(t, purchases, 1)

	_, err = env.events.ListEventPurchases(context.Background(), e.ID, stranger)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}
