// Package ledger keeps per-tier capacity consistent with purchase rows.
//
// Every call expects to run inside a transaction that already holds the tier's row lock
// (and the owning event's), so the sold count it reads cannot change underneath it.
package ledger

import (
	"context"
	"fmt"

	"github.com/nickruden/diplom-server/internal/domain"
)

// Store is the slice of a locked transaction the ledger needs
type Store interface {
	CountSoldByTicket(ctx context.Context, ticketID int64) (int, error)
	InsertPurchases(ctx context.Context, purchases []*domain.Purchase) error
	DeletePurchase(ctx context.Context, purchaseID int64) (bool, error)
	SetTicketSoldOut(ctx context.Context, ticketID int64, soldOut bool) error
}

// Reservation is the outcome of a successful reserve
type Reservation struct {
	Purchases []*domain.Purchase
	Sold      int
	SoldOut   bool
}

// Reserve admits len(purchases) units of ticket. All purchases must reference ticket.
// Fails with CAPACITY_EXCEEDED when the recounted sold total plus the request exceeds count.
func Reserve(ctx context.Context, st Store, ticket *domain.Ticket, purchases []*domain.Purchase) (*Reservation, error) {
	quantity := len(purchases)
	if quantity < 1 {
		return nil, domain.Validation("quantity must be at least 1")
	}
	for _, p := range purchases {
		if p.TicketID != ticket.ID {
			return nil, fmt.Errorf("purchase for ticket %d passed to ledger of ticket %d", p.TicketID, ticket.ID)
		}
	}

	sold, err := CheckCapacity(ctx, st, ticket, quantity)
	if err != nil {
		return nil, err
	}

	if err := st.InsertPurchases(ctx, purchases); err != nil {
		return nil, fmt.Errorf("failed to insert purchases: %w", err)
	}

	sold += quantity
	soldOut := sold >= ticket.Count
	if soldOut != ticket.IsSoldOut {
		if err := st.SetTicketSoldOut(ctx, ticket.ID, soldOut); err != nil {
			return nil, fmt.Errorf("failed to update sold-out flag: %w", err)
		}
		ticket.IsSoldOut = soldOut
	}

	return &Reservation{Purchases: purchases, Sold: sold, SoldOut: soldOut}, nil
}

// CheckCapacity recounts sold units and fails with CAPACITY_EXCEEDED when quantity more units
// do not fit. It returns the sold count so callers can check before building purchases.
func CheckCapacity(ctx context.Context, st Store, ticket *domain.Ticket, quantity int) (int, error) {
	sold, err := st.CountSoldByTicket(ctx, ticket.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to count sold units: %w", err)
	}

	available := ticket.Count - sold
	if available < 0 {
		available = 0
	}
	// compared as a difference so an absurd quantity cannot overflow
	if quantity > available {
		return 0, domain.ErrCapacityExceeded.
			WithDetail("ticketId", ticket.ID).
			WithDetail("requested", quantity).
			WithDetail("available", available)
	}
	return sold, nil
}

// Release removes one purchase of ticket and clears the sold-out flag once capacity frees up.
// Returns ENTITY_NOT_FOUND when the purchase is already gone.
func Release(ctx context.Context, st Store, ticket *domain.Ticket, purchaseID int64) (sold int, err error) {
	deleted, err := st.DeletePurchase(ctx, purchaseID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete purchase: %w", err)
	}
	if !deleted {
		return 0, domain.NotFound("purchase", purchaseID)
	}
	return Resync(ctx, st, ticket)
}

// Resync recounts sold units and aligns the sold-out flag with them
func Resync(ctx context.Context, st Store, ticket *domain.Ticket) (int, error) {
	sold, err := st.CountSoldByTicket(ctx, ticket.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to count sold units: %w", err)
	}

	soldOut := sold >= ticket.Count
	if soldOut != ticket.IsSoldOut {
		if err := st.SetTicketSoldOut(ctx, ticket.ID, soldOut); err != nil {
			return 0, fmt.Errorf("failed to update sold-out flag: %w", err)
		}
		ticket.IsSoldOut = soldOut
	}
	return sold, nil
}
