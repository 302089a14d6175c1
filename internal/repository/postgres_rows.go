package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nickruden/diplom-server/internal/domain"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so read queries are shared
// between the repositories and the ledger transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// eventColumns defines the columns to select for events
// Using COALESCE for nullable text columns to avoid scan errors
const eventColumns = `id, title,
	COALESCE(description, '') as description,
	COALESCE(location, '') as location,
	COALESCE(online_info, '') as online_info,
	start_time, end_time, status, organizer_id, revenue, refund_date_count,
	is_prime, views, category_id, created_at, updated_at`

const ticketColumns = `id, event_id, name,
	COALESCE(description, '') as description,
	price, count, sales_start, sales_end, valid_from, valid_to, refund_date_count, is_sold_out`

const purchaseColumns = `id, ticket_id, user_id, price, valid_from, valid_to, refund_date_count,
	purchase_time, COALESCE(payment_ref, '') as payment_ref`

const imageColumns = `id, event_id, image_url, public_id, is_main`

const notificationColumns = `id, user_id, title, message, type, event_id, is_read, created_at`

func scanEvent(row pgx.Row) (*domain.Event, error) {
	e := &domain.Event{}
	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.Description,
		&e.Location,
		&e.OnlineInfo,
		&e.StartTime,
		&e.EndTime,
		&e.Status,
		&e.OrganizerID,
		&e.Revenue,
		&e.RefundDateCount,
		&e.IsPrime,
		&e.Views,
		&e.CategoryID,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	t := &domain.Ticket{}
	err := row.Scan(
		&t.ID,
		&t.EventID,
		&t.Name,
		&t.Description,
		&t.Price,
		&t.Count,
		&t.SalesStart,
		&t.SalesEnd,
		&t.ValidFrom,
		&t.ValidTo,
		&t.RefundDateCount,
		&t.IsSoldOut,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func scanPurchase(row pgx.Row) (*domain.Purchase, error) {
	p := &domain.Purchase{}
	err := row.Scan(
		&p.ID,
		&p.TicketID,
		&p.UserID,
		&p.Price,
		&p.ValidFrom,
		&p.ValidTo,
		&p.RefundDateCount,
		&p.PurchaseTime,
		&p.PaymentRef,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func scanImage(row pgx.Row) (*domain.EventImage, error) {
	img := &domain.EventImage{}
	if err := row.Scan(&img.ID, &img.EventID, &img.ImageURL, &img.PublicID, &img.IsMain); err != nil {
		return nil, err
	}
	return img, nil
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	n := &domain.Notification{}
	err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.EventID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// collect drains rows through scan
func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// queryOne runs a single-row query; a missing row yields the zero value and no error
func queryOne[T any](ctx context.Context, q querier, scan func(pgx.Row) (T, error), sql string, args ...any) (T, error) {
	v, err := scan(q.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		var zero T
		return zero, nil
	}
	return v, err
}

func queryIDs(ctx context.Context, q querier, sql string, args ...any) ([]int64, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func queryCount(ctx context.Context, q querier, sql string, args ...any) (int, error) {
	var n int
	if err := q.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func statusStrings(statuses []domain.EventStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
