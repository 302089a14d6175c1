package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Money columns are NUMERIC(12,2). User ids are plain BIGINTs: identities live in the auth service.
var schema = `
CREATE TABLE IF NOT EXISTS events (
	id BIGSERIAL PRIMARY KEY,
	title VARCHAR(255) NOT NULL,
	description TEXT,
	location VARCHAR(255),
	online_info TEXT,
	start_time TIMESTAMPTZ NOT NULL,
	end_time TIMESTAMPTZ NOT NULL,
	status VARCHAR(20) NOT NULL DEFAULT 'draft',
	organizer_id BIGINT NOT NULL,
	revenue NUMERIC(12, 2) NOT NULL DEFAULT 0,
	refund_date_count INT CHECK (refund_date_count >= 0),
	is_prime BOOLEAN NOT NULL DEFAULT FALSE,
	views INT NOT NULL DEFAULT 0,
	category_id BIGINT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_events_status_end ON events (status, end_time);
CREATE INDEX IF NOT EXISTS idx_events_organizer ON events (organizer_id, start_time);

CREATE TABLE IF NOT EXISTS event_images (
	id BIGSERIAL PRIMARY KEY,
	event_id BIGINT NOT NULL REFERENCES events (id) ON DELETE CASCADE,
	image_url TEXT NOT NULL,
	public_id VARCHAR(255) NOT NULL UNIQUE,
	is_main BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS event_schedules (
	id BIGSERIAL PRIMARY KEY,
	event_id BIGINT NOT NULL REFERENCES events (id) ON DELETE CASCADE,
	title VARCHAR(255) NOT NULL,
	starts_at TIMESTAMPTZ NOT NULL,
	ends_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS tickets (
	id BIGSERIAL PRIMARY KEY,
	event_id BIGINT NOT NULL REFERENCES events (id) ON DELETE CASCADE,
	name VARCHAR(255) NOT NULL,
	description TEXT,
	price NUMERIC(12, 2) NOT NULL CHECK (price >= 0),
	count INT NOT NULL CHECK (count > 0),
	sales_start TIMESTAMPTZ,
	sales_end TIMESTAMPTZ,
	valid_from TIMESTAMPTZ,
	valid_to TIMESTAMPTZ,
	refund_date_count INT CHECK (refund_date_count >= 0),
	is_sold_out BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_tickets_event ON tickets (event_id);

CREATE TABLE IF NOT EXISTS ticket_purchases (
	id BIGSERIAL PRIMARY KEY,
	ticket_id BIGINT NOT NULL REFERENCES tickets (id) ON DELETE CASCADE,
	user_id BIGINT NOT NULL,
	price NUMERIC(12, 2) NOT NULL,
	valid_from TIMESTAMPTZ,
	valid_to TIMESTAMPTZ,
	refund_date_count INT,
	purchase_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	payment_ref VARCHAR(255)
);
CREATE INDEX IF NOT EXISTS idx_purchases_ticket ON ticket_purchases (ticket_id);
CREATE INDEX IF NOT EXISTS idx_purchases_user ON ticket_purchases (user_id, purchase_time DESC);

CREATE TABLE IF NOT EXISTS favorite_events (
	user_id BIGINT NOT NULL,
	event_id BIGINT NOT NULL REFERENCES events (id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, event_id)
);

CREATE TABLE IF NOT EXISTS user_followers (
	user_id BIGINT NOT NULL,
	follower_id BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, follower_id)
);

CREATE TABLE IF NOT EXISTS user_notifications (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL,
	title VARCHAR(255) NOT NULL,
	message TEXT NOT NULL,
	type VARCHAR(50) NOT NULL,
	event_id BIGINT REFERENCES events (id) ON DELETE SET NULL,
	is_read BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON user_notifications (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS outbox (
	id VARCHAR(36) PRIMARY KEY,
	aggregate_type VARCHAR(50) NOT NULL,
	aggregate_id VARCHAR(64) NOT NULL,
	event_type VARCHAR(100) NOT NULL,
	payload JSONB NOT NULL,
	topic VARCHAR(255) NOT NULL,
	partition_key VARCHAR(255),
	status VARCHAR(20) NOT NULL DEFAULT 'pending',
	retry_count INT NOT NULL DEFAULT 0,
	max_retries INT NOT NULL DEFAULT 5,
	last_error TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	published_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_outbox_status_created ON outbox (status, created_at);
`

// InitializeSchema creates missing tables and indexes
func InitializeSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}
