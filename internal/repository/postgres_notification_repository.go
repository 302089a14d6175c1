package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nickruden/diplom-server/internal/domain"
)

// PostgresNotificationRepository implements NotificationRepository using PostgreSQL
type PostgresNotificationRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresNotificationRepository creates a new PostgresNotificationRepository
func NewPostgresNotificationRepository(pool *pgxpool.Pool) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{pool: pool}
}

// CreateBatch inserts notifications in one round trip and assigns their IDs
func (r *PostgresNotificationRepository) CreateBatch(ctx context.Context, notifications []*domain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	query := `INSERT INTO user_notifications (user_id, title, message, type, event_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	batch := &pgx.Batch{}
	for _, n := range notifications {
		batch.Queue(query, n.UserID, n.Title, n.Message, n.Type, n.EventID, n.IsRead, n.CreatedAt)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for _, n := range notifications {
		if err := br.QueryRow().Scan(&n.ID); err != nil {
			return fmt.Errorf("failed to insert notification: %w", err)
		}
	}
	return nil
}

// ListByUser lists a user's notifications
func (r *PostgresNotificationRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM user_notifications
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return collect(rows, scanNotification)
}

// MarkAllRead marks every unread notification of a user as read
func (r *PostgresNotificationRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE user_notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MarkRead marks one of a user's notifications as read
func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, id, userID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE user_notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
