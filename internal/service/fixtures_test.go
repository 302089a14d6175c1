package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nickruden/diplom-server/internal/clock"
	"github.com/nickruden/diplom-server/internal/domain"
	"github.com/nickruden/diplom-server/internal/repository"
)

// MockDispatcher is a mock implementation of Dispatcher
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) NotifyEventChange(ctx context.Context, notice *domain.Notice) error {
	args := m.Called(ctx, notice)
	return args.Error(0)
}

func (m *MockDispatcher) NotifyFollowersOnNewEvent(ctx context.Context, organizerID int64, eventTitle string, eventID int64) error {
	args := m.Called(ctx, organizerID, eventTitle, eventID)
	return args.Error(0)
}

const (
	organizerID int64 = 100
	buyerID     int64 = 200
)

var (
	organizer = Actor{UserID: organizerID, Role: domain.RoleOrganizer}
	stranger  = Actor{UserID: 999, Role: domain.RoleOrganizer}
	admin     = Actor{UserID: 1, Role: domain.RoleAdmin}
)

// testEnv wires every service to one in-memory store and a fixed clock
type testEnv struct {
	store      *repository.MemoryStore
	clock      *clock.Fixed
	dispatcher *MockDispatcher

	events        EventService
	tickets       TicketService
	purchases     PurchaseService
	lifecycle     LifecycleService
	notifications NotificationService
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()

	store := repository.NewMemoryStore()
	clk := clock.NewFixed(now)
	dispatcher := new(MockDispatcher)

	env := &testEnv{
		store:      store,
		clock:      clk,
		dispatcher: dispatcher,
	}
	env.events = NewEventService(EventServiceDeps{
		Store:      store,
		Events:     store.Events(),
		Tickets:    store.Tickets(),
		Purchases:  store.Purchases(),
		Social:     store.Social(),
		Dispatcher: dispatcher,
		Clock:      clk,
	})
	env.tickets = NewTicketService(store, store.Tickets(), store.Events(), nil, dispatcher, clk)
	env.purchases = NewPurchaseService(store, store.Purchases(), store.Tickets(), store.Events(), nil, clk)
	env.lifecycle = NewLifecycleService(store.Events(), store, nil, clk, &LifecycleServiceConfig{BatchSize: 2})
	env.notifications = NewNotificationService(store.Notifications(), store.Social(), clk)
	return env
}

// allowNotices accepts any dispatch without asserting on it
func (env *testEnv) allowNotices() {
	env.dispatcher.On("NotifyEventChange", mock.Anything, mock.Anything).Return(nil).Maybe()
	env.dispatcher.On("NotifyFollowersOnNewEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
}

// seedEvent inserts an event owned by organizerID
func (env *testEnv) seedEvent(t *testing.T, status domain.EventStatus, start, end time.Time) *domain.Event {
	t.Helper()
	e := &domain.Event{
		Title:       "Concert",
		StartTime:   start,
		EndTime:     end,
		Status:      status,
		OrganizerID: organizerID,
		CreatedAt:   env.clock.Now(),
		UpdatedAt:   env.clock.Now(),
	}
	err := env.store.WithinTx(context.Background(), func(ctx context.Context, tx repository.LedgerTx) error {
		return tx.InsertEvent(ctx, e)
	})
	require.NoError(t, err)
	return e
}

// seedTicket inserts a tier of eventID
func (env *testEnv) seedTicket(t *testing.T, eventID int64, tk domain.Ticket) *domain.Ticket {
	t.Helper()
	tk.EventID = eventID
	if tk.Name == "" {
		tk.Name = "General admission"
	}
	err := env.store.WithinTx(context.Background(), func(ctx context.Context, tx repository.LedgerTx) error {
		return tx.InsertTicket(ctx, &tk)
	})
	require.NoError(t, err)
	return &tk
}

func (env *testEnv) event(t *testing.T, id int64) *domain.Event {
	t.Helper()
	e, err := env.store.Events().GetByID(context.Background(), id)
	require.NoError(t, err)
	return e
}

func (env *testEnv) ticket(t *testing.T, id int64) *domain.Ticket {
	t.Helper()
	tk, err := env.store.Tickets().GetByID(context.Background(), id)
	require.NoError(t, err)
	return tk
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
