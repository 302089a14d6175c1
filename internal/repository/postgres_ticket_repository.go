package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nickruden/diplom-server/internal/domain"
)

// PostgresTicketRepository implements TicketRepository using PostgreSQL
type PostgresTicketRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTicketRepository creates a new PostgresTicketRepository
func NewPostgresTicketRepository(pool *pgxpool.Pool) *PostgresTicketRepository {
	return &PostgresTicketRepository{pool: pool}
}

// GetByID retrieves a ticket by ID
func (r *PostgresTicketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	t, err := queryOne(ctx, r.pool, scanTicket, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return t, nil
}

// ListByIDs retrieves tickets by IDs in ascending ID order
func (r *PostgresTicketRepository) ListByIDs(ctx context.Context, ids []int64) ([]*domain.Ticket, error) {
	tickets, err := ticketsByIDs(ctx, r.pool, ids, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

// ListByEvent lists an event's tickets
func (r *PostgresTicketRepository) ListByEvent(ctx context.Context, eventID int64) ([]*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE event_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list event tickets: %w", err)
	}
	return collect(rows, scanTicket)
}

// ListByEvents groups the tickets of several events by event ID
func (r *PostgresTicketRepository) ListByEvents(ctx context.Context, eventIDs []int64) (map[int64][]*domain.Ticket, error) {
	out := make(map[int64][]*domain.Ticket, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE event_id = ANY($1) ORDER BY event_id, id`
	rows, err := r.pool.Query(ctx, query, eventIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	tickets, err := collect(rows, scanTicket)
	if err != nil {
		return nil, fmt.Errorf("failed to scan tickets: %w", err)
	}
	for _, t := range tickets {
		out[t.EventID] = append(out[t.EventID], t)
	}
	return out, nil
}

// SoldCounts counts purchases per ticket
func (r *PostgresTicketRepository) SoldCounts(ctx context.Context, ticketIDs []int64) (map[int64]int, error) {
	counts, err := soldCounts(ctx, r.pool, ticketIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to count sold tickets: %w", err)
	}
	return counts, nil
}

func ticketsByIDs(ctx context.Context, q querier, ids []int64, lock bool) ([]*domain.Ticket, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ANY($1) ORDER BY id`
	if lock {
		query += ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTicket)
}

func soldCounts(ctx context.Context, q querier, ticketIDs []int64) (map[int64]int, error) {
	out := make(map[int64]int, len(ticketIDs))
	if len(ticketIDs) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx,
		`SELECT ticket_id, COUNT(*) FROM ticket_purchases WHERE ticket_id = ANY($1) GROUP BY ticket_id`,
		ticketIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}
