package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickruden/diplom-server/internal/domain"
	"github.com/nickruden/diplom-server/internal/dto"
)

func confirmOne(ticketID int64) *dto.ConfirmPurchaseRequest {
	return &dto.ConfirmPurchaseRequest{
		Tickets:    []dto.LineItem{{TicketID: ticketID, Count: 1}},
		PaymentRef: "pi_test",
	}
}

func TestPurchaseService_ConfirmPurchase_Success(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))
	e := env.seedEvent(t, domain.EventStatusPublished, day(2025, 6, 1), day(2025, 6, 2))
	vip := env.seedTicket(t, e.ID, domain.Ticket{Name: "VIP", Price: 100, Count: 5, ValidFrom: domain.TimePtr(day(2025, 6, 1))})
	ga := env.seedTicket(t, e.ID, domain.Ticket{Name: "GA", Price: 20, Count: 50, RefundDateCount: domain.IntPtr(3)})

	resp, err := env.purchases.ConfirmPurchase(context.Background(), buyerID, &dto.ConfirmPurchaseRequest{
		Tickets: []dto.LineItem{
			{TicketID: vip.ID, Count: 1},
			{TicketID: ga.ID, Count: 2},
			{TicketID: vip.ID, Count: 1},
		},
		PaymentRef: "pi_123",
	})

	require.NoError(t, err)
	assert.Equal(t, e.ID, resp.EventID)
	assert.Equal(t, 240.0, resp.TotalAmount)
	assert.Len(t, resp.Purchases, 4)
	assert.Equal(t, 240.0, env.event(t, e.ID).Revenue)

	for _, p := range resp.Purchases {
		assert.Equal(t, buyerID, p.UserID)
		if p.TicketID == ga.ID {
			assert.Equal(t, 20.0, p.Price)
			require.NotNil(t, p.RefundDateCount)
			assert.Equal(t, 3, *p.RefundDateCount)
		}
	}
}

func TestPurchaseService_ConfirmPurchase_SoldOutMarksEvent(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))
	e := env.seedEvent(t, domain.EventStatusPublished, day(2025, 6, 1), day(2025, 6, 2))
	tk := env.seedTicket(t, e.ID, domain.Ticket{Price: 10, Count: 2})

	_, err := env.purchases.ConfirmPurchase(context.Background(), buyerID, &dto.ConfirmPurchaseRequest{
		Tickets: []dto.LineItem{{TicketID: tk.ID, Count: 2}},
	})

	require.NoError(t, err)
	assert.True(t, env.ticket(t, tk.ID).IsSoldOut)
	assert.Equal(t, domain.EventStatusSoldOut, env.event(t, e.ID).Status)
}

func TestPurchaseService_ConfirmPurchase_CapacityExceededWritesNothing(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))
	e := env.seedEvent(t, domain.EventStatusPublished, day(2025, 6, 1), day(2025, 6, 2))
	small := env.seedTicket(t, e.ID, domain.Ticket{Price: 10, Count: 5})
	tiny := env.seedTicket(t, e.ID, domain.Ticket{Price: 10, Count: 1})

	_, err := env.purchases.ConfirmPurchase(context.Background(), buyerID, &dto.ConfirmPurchaseRequest{
		Tickets: []dto.LineItem{{TicketID: small.ID, Count: 2}, {TicketID: tiny.ID, Count: 2}},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCapacityExceeded))
	var derr *domain.Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, 1, derr.Details["available"])

	purchases, err := env.store.Purchases().ListByUser(context.Background(), buyerID)
	require.NoError(t, err)
	assert.Empty(t, purchases)
	assert.Zero(t, env.event(t, e.ID).Revenue)
}

func TestPurchaseService_ConfirmPurchase_Rejections(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))
	published := env.seedEvent(t, domain.EventStatusPublished, day(2025, 6, 1), day(2025, 6, 2))
	other := env.seedEvent(t, domain.EventStatusPublished, day(2025, 7, 1), day(2025, 7, 2))

	a := env.seedTicket(t, published.ID, domain.Ticket{Price: 10, Count: 10})
	b := env.seedTicket(t, other.ID, domain.Ticket{Price: 10, Count: 10})
	small := env.seedTicket(t, published.ID, domain.Ticket{Price: 10, Count: 5})
	closed := env.seedTicket(t, published.ID, domain.Ticket{Price: 10, Count: 10, SalesEnd: domain.TimePtr(day(2025, 5, 1))})
	early := env.seedTicket(t, published.ID, domain.Ticket{Price: 10, Count: 10, SalesStart: domain.TimePtr(day(2025, 5, 2))})

	tests := []struct {
		name    string
		items   []dto.LineItem
		wantErr error
	}{
		{name: "mixed events", items: []dto.LineItem{{TicketID: a.ID, Count: 1}, {TicketID: b.ID, Count: 1}}, wantErr: domain.ErrMixedEventPurchase},
		{name: "unknown ticket", items: []dto.LineItem{{TicketID: 12345, Count: 1}}, wantErr: domain.ErrEntityNotFound},
		{name: "count above capacity", items: []dto.LineItem{{TicketID: small.ID, Count: 6}}, wantErr: domain.ErrCapacityExceeded},
		{name: "huge count", items: []dto.LineItem{{TicketID: small.ID, Count: math.MaxInt / 2}}, wantErr: domain.ErrCapacityExceeded},
		{name: "merged duplicates above capacity", items: []dto.LineItem{{TicketID: small.ID, Count: 3}, {TicketID: small.ID, Count: 3}}, wantErr: domain.ErrCapacityExceeded},
		{name: "merged duplicates overflow", items: []dto.LineItem{{TicketID: small.ID, Count: math.MaxInt}, {TicketID: small.ID, Count: math.MaxInt}}, wantErr: domain.ErrCapacityExceeded},
		{name: "sales ended", items: []dto.LineItem{{TicketID: closed.ID, Count: 1}}, wantErr: domain.ErrSalesClosed},
		{name: "sales not started", items: []dto.LineItem{{TicketID: early.ID, Count: 1}}, wantErr: domain.ErrSalesClosed},
		{name: "empty order", items: nil, wantErr: domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.purchases.ConfirmPurchase(context.Background(), buyerID, &dto.ConfirmPurchaseRequest{Tickets: tt.items})
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	assert.Zero(t, env.event(t, published.ID).Revenue)
	assert.False(t, env.ticket(t, small.ID).IsSoldOut)
}

func TestPurchaseService_ConfirmPurchase_DraftEventSellsOut(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))
	e := env.seedEvent(t, domain.EventStatusDraft, day(2025, 6, 1), day(2025, 6, 2))
	tk := env.seedTicket(t, e.ID, domain.Ticket{Price: 10, Count: 1})

	_, err := env.purchases.ConfirmPurchase(context.Background(), buyerID, confirmOne(tk.ID))
	require.NoError(t, err)

	assert.True(t, env.ticket(t, tk.ID).IsSoldOut)
	assert.Equal(t, domain.EventStatusSoldOut, env.event(t, e.ID).Status)
	assert.Equal(t, 10.0, env.event(t, e.ID).Revenue)
}

func TestPurchaseService_ConcurrentPurchasesNeverOversell(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))
	e := env.seedEvent(t, domain.EventStatusPublished, day(2025, 6, 1), day(2025, 6, 2))
	tk := env.seedTicket(t, e.ID, domain.Ticket{Price: 15, Count: 10})

	const buyers = 50
	var (
		wg       sync.WaitGroup
		admitted atomic.Int32
		rejected atomic.Int32
		start    = make(chan struct{})
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(buyer int64) {
			defer wg.Done()
			<-start
			_, err := env.purchases.ConfirmPurchase(context.Background(), buyer, confirmOne(tk.ID))
			switch {
			case err == nil:
				admitted.Add(1)
			case errors.Is(err, domain.ErrCapacityExceeded):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(int64(1000 + i))
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(10), admitted.Load())
	assert.Equal(t, int32(40), rejected.Load())

	sold, err := env.store.Tickets().SoldCounts(context.Background(), []int64{tk.ID})
	require.NoError(t, err)
	assert.Equal(t, 10, sold[tk.ID])
	assert.True(t, env.ticket(t, tk.ID).IsSoldOut)
	assert.Equal(t, 150.0, env.event(t, e.ID).Revenue)
	assert.Equal(t, domain.EventStatusSoldOut, env.event(t, e.ID).Status)
}

func TestPurchaseService_ReturnTicket_TwiceFailsWithNotFound(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))
	e := env.seedEvent(t, domain.EventStatusPublished, day(2025, 6, 1), day(2025, 6, 2))
	tk := env.seedTicket(t, e.ID, domain.Ticket{
		Price:           40,
		Count:           3,
		ValidFrom:       domain.TimePtr(day(2025, 6, 1)),
		RefundDateCount: domain.IntPtr(5),
	})

	bought, err := env.purchases.ConfirmPurchase(context.Background(), buyerID, &dto.ConfirmPurchaseRequest{
		Tickets: []dto.LineItem{{TicketID: tk.ID, Count: 2}},
	})
	require.NoError(t, err)
	purchaseID := bought.Purchases[0].ID

	resp, err := env.purchases.ReturnTicket(context.Background(), purchaseID, buyerID)
	require.NoError(t, err)
	assert.Equal(t, 40.0, resp.RefundAmount)
	assert.Equal(t, e.ID, resp.EventID)

	_, err = env.purchases.ReturnTicket(context.Background(), purchaseID, buyerID)
	assert.True(t, errors.Is(err, domain.ErrEntityNotFound))

	assert.Equal(t, 40.0, env.event(t, e.ID).Revenue)
}

func TestPurchaseService_ReturnTicket_OtherBuyerSeesNotFound(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))
	e := env.seedEvent(t, domain.EventStatusPublished, day(2025, 6, 1), day(2025, 6, 2))
	tk := env.seedTicket(t, e.ID, domain.Ticket{Price: 40, Count: 3, ValidFrom: domain.TimePtr(day(2025, 6, 1)), RefundDateCount: domain.IntPtr(5)})

	bought, err := env.purchases.ConfirmPurchase(context.Background(), buyerID, confirmOne(tk.ID))
	require.NoError(t, err)

	_, err = env.purchases.ReturnTicket(context.Background(), bought.Purchases[0].ID, buyerID+1)
	assert.True(t, errors.Is(err, domain.ErrEntityNotFound))
	assert.Equal(t, 40.0, env.event(t, e.ID).Revenue)
}

func TestPurchaseService_ReturnTicket_DeadlineBoundary(t *testing.T) {
	validFrom := day(2025, 6, 1)
	deadline := day(2025, 5, 27)

	env := newTestEnv(t, day(2025, 5, 1))
	e := env.seedEvent(t, domain.EventStatusPublished, validFrom, day(2025, 6, 2))
	tk := env.seedTicket(t, e.ID, domain.Ticket{Price: 10, Count: 10, ValidFrom: domain.TimePtr(validFrom), RefundDateCount: domain.IntPtr(5)})

	first, err := env.purchases.ConfirmPurchase(context.Background(), buyerID, confirmOne(tk.ID))
	require.NoError(t, err)
	second, err := env.purchases.ConfirmPurchase(context.Background(), buyerID, confirmOne(tk.ID))
	require.NoError(t, err)

	env.clock.Set(deadline)
	_, err = env.purchases.ReturnTicket(context.Background(), first.Purchases[0].ID, buyerID)
	require.NoError(t, err)

	env.clock.Set(deadline.Add(time.Nanosecond))
	_, err = env.purchases.ReturnTicket(context.Background(), second.Purchases[0].ID, buyerID)
	assert.True(t, errors.Is(err, domain.ErrRefundExpired))
}

func TestPurchaseService_ReturnTicket_WithoutWindowIsForbidden(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))
	e := env.seedEvent(t, domain.EventStatusPublished, day(2025, 6, 1), day(2025, 6, 2))
	tk := env.seedTicket(t, e.ID, domain.Ticket{Price: 10, Count: 10, ValidFrom: domain.TimePtr(day(2025, 6, 1))})

	bought, err := env.purchases.ConfirmPurchase(context.Background(), buyerID, confirmOne(tk.ID))
	require.NoError(t, err)

	_, err = env.purchases.ReturnTicket(context.Background(), bought.Purchases[0].ID, buyerID)
	assert.True(t, errors.Is(err, domain.ErrRefundForbidden))
}

// Ticket A count=1, validFrom 2025-06-01, refund window of 5 days.
func TestPurchaseService_EndToEndRefundScenario(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 20))
	env.allowNotices()
	ctx := context.Background()

	e := env.seedEvent(t, domain.EventStatusPublished, day(2025, 6, 1), day(2025, 6, 2))
	a := env.seedTicket(t, e.ID, domain.Ticket{Name: "A", Price: 50, Count: 1, ValidFrom: domain.TimePtr(day(2025, 6, 1)), RefundDateCount: domain.IntPtr(5)})

	bought, err := env.purchases.ConfirmPurchase(ctx, buyerID, confirmOne(a.ID))
	require.NoError(t, err)
	assert.True(t, env.ticket(t, a.ID).IsSoldOut)
	assert.Equal(t, domain.EventStatusSoldOut, env.event(t, e.ID).Status)

	env.clock.Set(day(2025, 5, 26))
	_, err = env.purchases.ReturnTicket(ctx, bought.Purchases[0].ID, buyerID)
	require.NoError(t, err)
	assert.False(t, env.ticket(t, a.ID).IsSoldOut)
	assert.Equal(t, domain.EventStatusDraft, env.event(t, e.ID).Status)
	assert.Zero(t, env.event(t, e.ID).Revenue)

	// the freed unit is bought again while the event is back in draft
	rebought, err := env.purchases.ConfirmPurchase(ctx, buyerID, confirmOne(a.ID))
	require.NoError(t, err)

	env.clock.Set(day(2025, 5, 28))
	assert.Equal(t, domain.EventStatusSoldOut, env.event(t, e.ID).Status)
	_, err = env.purchases.ReturnTicket(ctx, rebought.Purchases[0].ID, buyerID)
	assert.True(t, errors.Is(err, domain.ErrRefundExpired))
	assert.Equal(t, 50.0, env.event(t, e.ID).Revenue)
}

func TestPurchaseService_ListUserTickets(t *testing.T) {
	env := newTestEnv(t, day(2025, 5, 1))
	e := env.seedEvent(t, domain.EventStatusPublished, day(2025, 6, 1), day(2025, 6, 2))
	refundable := env.seedTicket(t, e.ID, domain.Ticket{Name: "Flex", Price: 30, Count: 10, ValidFrom: domain.TimePtr(day(2025, 6, 1)), RefundDateCount: domain.IntPtr(5)})
	final := env.seedTicket(t, e.ID, domain.Ticket{Name: "Final", Price: 20, Count: 10, ValidFrom: domain.TimePtr(day(2025, 6, 1))})

	_, err := env.purchases.ConfirmPurchase(context.Background(), buyerID, &dto.ConfirmPurchaseRequest{
		Tickets: []dto.LineItem{{TicketID: refundable.ID, Count: 1}, {TicketID: final.ID, Count: 1}},
	})
	require.NoError(t, err)

	items, err := env.purchases.ListUserTickets(context.Background(), buyerID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	byName := make(map[string]*dto.UserTicketResponse)
	for _, it := range items {
		byName[it.TicketInfo.Name] = it
		assert.Equal(t, e.ID, it.EventInfo.ID)
	}
	assert.Equal(t, domain.RefundOpen, byName["Flex"].RefundDeadline.State)
	assert.True(t, day(2025, 5, 27).Equal(byName["Flex"].RefundDeadline.Deadline))
	assert.Equal(t, domain.RefundUnavailable, byName["Final"].RefundDeadline.State)

	empty, err := env.purchases.ListUserTickets(context.Background(), buyerID+1)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
