package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSocialRepository implements SocialRepository using PostgreSQL
type PostgresSocialRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSocialRepository creates a new PostgresSocialRepository
func NewPostgresSocialRepository(pool *pgxpool.Pool) *PostgresSocialRepository {
	return &PostgresSocialRepository{pool: pool}
}

// AddFavorite marks an event as a user's favorite; repeating it is a no-op
func (r *PostgresSocialRepository) AddFavorite(ctx context.Context, userID, eventID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO favorite_events (user_id, event_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, eventID)
	if err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

func (r *PostgresSocialRepository) RemoveFavorite(ctx context.Context, userID, eventID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM favorite_events WHERE user_id = $1 AND event_id = $2`, userID, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to remove favorite: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresSocialRepository) ListFavoriteEventIDs(ctx context.Context, userID int64) ([]int64, error) {
	ids, err := queryIDs(ctx, r.pool,
		`SELECT event_id FROM favorite_events WHERE user_id = $1 ORDER BY created_at DESC, event_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	return ids, nil
}

// Follow subscribes followerID to an organizer; repeating it is a no-op
func (r *PostgresSocialRepository) Follow(ctx context.Context, organizerID, followerID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_followers (user_id, follower_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		organizerID, followerID)
	if err != nil {
		return fmt.Errorf("failed to follow: %w", err)
	}
	return nil
}

func (r *PostgresSocialRepository) Unfollow(ctx context.Context, organizerID, followerID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_followers WHERE user_id = $1 AND follower_id = $2`, organizerID, followerID)
	if err != nil {
		return false, fmt.Errorf("failed to unfollow: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresSocialRepository) ListFollowing(ctx context.Context, followerID int64) ([]int64, error) {
	ids, err := queryIDs(ctx, r.pool,
		`SELECT user_id FROM user_followers WHERE follower_id = $1 ORDER BY user_id`, followerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list following: %w", err)
	}
	return ids, nil
}

func (r *PostgresSocialRepository) ListFollowerIDs(ctx context.Context, organizerID int64) ([]int64, error) {
	ids, err := queryIDs(ctx, r.pool,
		`SELECT follower_id FROM user_followers WHERE user_id = $1 ORDER BY follower_id`, organizerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list followers: %w", err)
	}
	return ids, nil
}

func (r *PostgresSocialRepository) CountFollowers(ctx context.Context, organizerID int64) (int, error) {
	n, err := queryCount(ctx, r.pool, `SELECT COUNT(*) FROM user_followers WHERE user_id = $1`, organizerID)
	if err != nil {
		return 0, fmt.Errorf("failed to count followers: %w", err)
	}
	return n, nil
}

// EventAudience lists buyers and favoriters of an event
func (r *PostgresSocialRepository) EventAudience(ctx context.Context, eventID int64) ([]int64, error) {
	ids, err := eventAudience(ctx, r.pool, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve event audience: %w", err)
	}
	return ids, nil
}

const eventAudienceQuery = `
	SELECT p.user_id FROM ticket_purchases p
	JOIN tickets t ON t.id = p.ticket_id
	WHERE t.event_id = $1
	UNION
	SELECT f.user_id FROM favorite_events f WHERE f.event_id = $1
	ORDER BY 1`

func eventAudience(ctx context.Context, q querier, eventID int64) ([]int64, error) {
	return queryIDs(ctx, q, eventAudienceQuery, eventID)
}
