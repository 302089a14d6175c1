package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nickruden/diplom-server/internal/domain"
)

// PostgresPurchaseRepository implements PurchaseRepository using PostgreSQL
type PostgresPurchaseRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPurchaseRepository creates a new PostgresPurchaseRepository
func NewPostgresPurchaseRepository(pool *pgxpool.Pool) *PostgresPurchaseRepository {
	return &PostgresPurchaseRepository{pool: pool}
}

// GetByID retrieves a purchase by ID
func (r *PostgresPurchaseRepository) GetByID(ctx context.Context, id int64) (*domain.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM ticket_purchases WHERE id = $1`
	p, err := queryOne(ctx, r.pool, scanPurchase, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}
	return p, nil
}

// ListByUser lists a buyer's purchases
func (r *PostgresPurchaseRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM ticket_purchases
		WHERE user_id = $1 ORDER BY purchase_time DESC, id DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user purchases: %w", err)
	}
	return collect(rows, scanPurchase)
}

// ListByEvent lists purchases of an event's tickets
func (r *PostgresPurchaseRepository) ListByEvent(ctx context.Context, eventID int64) ([]*domain.Purchase, error) {
	query := `SELECT p.id, p.ticket_id, p.user_id, p.price, p.valid_from, p.valid_to, p.refund_date_count,
			p.purchase_time, COALESCE(p.payment_ref, '')
		FROM ticket_purchases p
		JOIN tickets t ON t.id = p.ticket_id
		WHERE t.event_id = $1
		ORDER BY p.purchase_time DESC, p.id DESC`
	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list event purchases: %w", err)
	}
	return collect(rows, scanPurchase)
}
