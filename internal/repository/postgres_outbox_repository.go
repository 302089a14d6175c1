package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nickruden/diplom-server/internal/domain"
)

// PostgresOutboxRepository implements OutboxRepository using PostgreSQL
type PostgresOutboxRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresOutboxRepository creates a new PostgresOutboxRepository
func NewPostgresOutboxRepository(pool *pgxpool.Pool) *PostgresOutboxRepository {
	return &PostgresOutboxRepository{pool: pool}
}

// Create creates a new outbox message
func (r *PostgresOutboxRepository) Create(ctx context.Context, msg *domain.OutboxMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	query := `
		INSERT INTO outbox (
			id, aggregate_type, aggregate_id, event_type,
			payload, topic, partition_key, status,
			retry_count, max_retries, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := r.pool.Exec(ctx, query,
		msg.ID,
		msg.AggregateType,
		msg.AggregateID,
		msg.EventType,
		msg.Payload,
		msg.Topic,
		msg.PartitionKey,
		string(msg.Status),
		msg.RetryCount,
		msg.MaxRetries,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox message: %w", err)
	}
	return nil
}

// ProcessBatch claims messages with FOR UPDATE SKIP LOCKED and records each handler outcome
// in the same transaction, so concurrent relays never publish the same row twice.
func (r *PostgresOutboxRepository) ProcessBatch(ctx context.Context, limit int, handle OutboxHandler) (published, failed int, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin outbox transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		SELECT
			id, aggregate_type, aggregate_id, event_type,
			payload, topic, partition_key, status,
			retry_count, max_retries, last_error,
			created_at, published_at
		FROM outbox
		WHERE status = 'pending' OR (status = 'failed' AND retry_count < max_retries)
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	rows, err := tx.Query(ctx, query, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to claim outbox messages: %w", err)
	}
	messages, err := scanOutboxMessages(rows)
	if err != nil {
		return 0, 0, err
	}

	for _, msg := range messages {
		if herr := handle(ctx, msg); herr != nil {
			msg.MarkAsFailed(herr.Error())
			failed++
		} else {
			msg.MarkAsPublished(time.Now())
			published++
		}
		if _, err := tx.Exec(ctx,
			`UPDATE outbox SET status = $2, retry_count = $3, last_error = $4, published_at = $5 WHERE id = $1`,
			msg.ID, string(msg.Status), msg.RetryCount, nullString(msg.LastError), msg.PublishedAt,
		); err != nil {
			return 0, 0, fmt.Errorf("failed to update outbox message: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit outbox batch: %w", err)
	}
	return published, failed, nil
}

// DeletePublishedBefore deletes old published messages for cleanup
func (r *PostgresOutboxRepository) DeletePublishedBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM outbox WHERE status = 'published' AND published_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete published messages: %w", err)
	}
	return result.RowsAffected(), nil
}

// CountPending counts messages still waiting for the relay
func (r *PostgresOutboxRepository) CountPending(ctx context.Context) (int, error) {
	n, err := queryCount(ctx, r.pool,
		`SELECT COUNT(*) FROM outbox WHERE status = 'pending' OR (status = 'failed' AND retry_count < max_retries)`)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending messages: %w", err)
	}
	return n, nil
}

// scanOutboxMessages scans rows into OutboxMessage slice
func scanOutboxMessages(rows pgx.Rows) ([]*domain.OutboxMessage, error) {
	defer rows.Close()

	var messages []*domain.OutboxMessage
	for rows.Next() {
		msg := &domain.OutboxMessage{}
		var (
			status    string
			lastError *string
		)

		err := rows.Scan(
			&msg.ID,
			&msg.AggregateType,
			&msg.AggregateID,
			&msg.EventType,
			&msg.Payload,
			&msg.Topic,
			&msg.PartitionKey,
			&status,
			&msg.RetryCount,
			&msg.MaxRetries,
			&lastError,
			&msg.CreatedAt,
			&msg.PublishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}

		msg.Status = domain.OutboxStatus(status)
		if lastError != nil {
			msg.LastError = *lastError
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox messages: %w", err)
	}
	return messages, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Ensure PostgresOutboxRepository implements OutboxRepository
var _ OutboxRepository = (*PostgresOutboxRepository)(nil)
