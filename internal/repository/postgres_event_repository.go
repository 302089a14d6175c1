package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nickruden/diplom-server/internal/domain"
)

// PostgresEventRepository implements EventRepository using PostgreSQL
type PostgresEventRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresEventRepository creates a new PostgresEventRepository
func NewPostgresEventRepository(pool *pgxpool.Pool) *PostgresEventRepository {
	return &PostgresEventRepository{pool: pool}
}

// GetByID retrieves an event by ID
func (r *PostgresEventRepository) GetByID(ctx context.Context, id int64) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e, err := queryOne(ctx, r.pool, scanEvent, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// ListByIDs retrieves events by IDs
func (r *PostgresEventRepository) ListByIDs(ctx context.Context, ids []int64) ([]*domain.Event, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = ANY($1) ORDER BY start_time`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return collect(rows, scanEvent)
}

// ListPublished lists published events that have not ended before endAfter
func (r *PostgresEventRepository) ListPublished(ctx context.Context, endAfter time.Time) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events
		WHERE status = $1 AND end_time >= $2
		ORDER BY start_time, id`
	rows, err := r.pool.Query(ctx, query, domain.EventStatusPublished, endAfter)
	if err != nil {
		return nil, fmt.Errorf("failed to list published events: %w", err)
	}
	return collect(rows, scanEvent)
}

// ListByOrganizer lists an organizer's events
func (r *PostgresEventRepository) ListByOrganizer(ctx context.Context, organizerID int64, filter EventFilter) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE organizer_id = $1`
	args := []any{organizerID}

	switch filter.Period {
	case "upcoming":
		query += ` AND end_time >= $2`
		args = append(args, filter.Now)
	case "past":
		query += ` AND end_time < $2`
		args = append(args, filter.Now)
	}
	query += ` ORDER BY start_time, id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizer events: %w", err)
	}
	return collect(rows, scanEvent)
}

// CountByOrganizer counts an organizer's events
func (r *PostgresEventRepository) CountByOrganizer(ctx context.Context, organizerID int64) (int, error) {
	n, err := queryCount(ctx, r.pool, `SELECT COUNT(*) FROM events WHERE organizer_id = $1`, organizerID)
	if err != nil {
		return 0, fmt.Errorf("failed to count organizer events: %w", err)
	}
	return n, nil
}

// ListIDsByStatuses pages through candidate event IDs
func (r *PostgresEventRepository) ListIDsByStatuses(ctx context.Context, statuses []domain.EventStatus, afterID int64, limit int) ([]int64, error) {
	query := `SELECT id FROM events WHERE status = ANY($1) AND id > $2 ORDER BY id LIMIT $3`
	ids, err := queryIDs(ctx, r.pool, query, statusStrings(statuses), afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list event ids: %w", err)
	}
	return ids, nil
}

// ListImages lists an event's images
func (r *PostgresEventRepository) ListImages(ctx context.Context, eventID int64) ([]*domain.EventImage, error) {
	query := `SELECT ` + imageColumns + ` FROM event_images WHERE event_id = $1 ORDER BY is_main DESC, id`
	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list event images: %w", err)
	}
	return collect(rows, scanImage)
}

// GetImageByPublicID retrieves an image by its storage id
func (r *PostgresEventRepository) GetImageByPublicID(ctx context.Context, publicID string) (*domain.EventImage, error) {
	query := `SELECT ` + imageColumns + ` FROM event_images WHERE public_id = $1`
	img, err := queryOne(ctx, r.pool, scanImage, query, publicID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event image: %w", err)
	}
	return img, nil
}
