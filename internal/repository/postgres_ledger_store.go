package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nickruden/diplom-server/internal/domain"
	"github.com/nickruden/diplom-server/pkg/database"
)

// PostgresLedgerStore implements LedgerStore on READ COMMITTED transactions with
// SELECT ... FOR UPDATE row locks. Aborted transactions (40001, 40P01) are replayed by the runner.
type PostgresLedgerStore struct {
	runner *database.TxRunner
}

// NewPostgresLedgerStore creates a new PostgresLedgerStore
func NewPostgresLedgerStore(runner *database.TxRunner) *PostgresLedgerStore {
	return &PostgresLedgerStore{runner: runner}
}

// WithinTx runs fn in a transaction
func (s *PostgresLedgerStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	return s.runner.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &postgresLedgerTx{tx: tx})
	})
}

type postgresLedgerTx struct {
	tx pgx.Tx
}

func (t *postgresLedgerTx) LockEvent(ctx context.Context, id int64) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`
	e, err := queryOne(ctx, t.tx, scanEvent, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lock event: %w", err)
	}
	return e, nil
}

func (t *postgresLedgerTx) LockTickets(ctx context.Context, ids []int64) ([]*domain.Ticket, error) {
	tickets, err := ticketsByIDs(ctx, t.tx, ids, true)
	if err != nil {
		return nil, fmt.Errorf("failed to lock tickets: %w", err)
	}
	return tickets, nil
}

func (t *postgresLedgerTx) LockTicketsByEvent(ctx context.Context, eventID int64) ([]*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE event_id = $1 ORDER BY id FOR UPDATE`
	rows, err := t.tx.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock event tickets: %w", err)
	}
	return collect(rows, scanTicket)
}

func (t *postgresLedgerTx) GetTickets(ctx context.Context, ids []int64) ([]*domain.Ticket, error) {
	tickets, err := ticketsByIDs(ctx, t.tx, ids, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get tickets: %w", err)
	}
	return tickets, nil
}

func (t *postgresLedgerTx) GetPurchase(ctx context.Context, id int64) (*domain.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM ticket_purchases WHERE id = $1`
	p, err := queryOne(ctx, t.tx, scanPurchase, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}
	return p, nil
}

func (t *postgresLedgerTx) LockPurchase(ctx context.Context, id int64) (*domain.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM ticket_purchases WHERE id = $1 FOR UPDATE`
	p, err := queryOne(ctx, t.tx, scanPurchase, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lock purchase: %w", err)
	}
	return p, nil
}

func (t *postgresLedgerTx) LockPurchasesByTicket(ctx context.Context, ticketID int64) ([]*domain.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM ticket_purchases WHERE ticket_id = $1 ORDER BY id FOR UPDATE`
	rows, err := t.tx.Query(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock ticket purchases: %w", err)
	}
	return collect(rows, scanPurchase)
}

// CountSoldByTicket recounts purchase rows; the caller holds the ticket lock
func (t *postgresLedgerTx) CountSoldByTicket(ctx context.Context, ticketID int64) (int, error) {
	return queryCount(ctx, t.tx, `SELECT COUNT(*) FROM ticket_purchases WHERE ticket_id = $1`, ticketID)
}

func (t *postgresLedgerTx) InsertPurchases(ctx context.Context, purchases []*domain.Purchase) error {
	query := `INSERT INTO ticket_purchases
		(ticket_id, user_id, price, valid_from, valid_to, refund_date_count, purchase_time, payment_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`

	batch := &pgx.Batch{}
	for _, p := range purchases {
		batch.Queue(query, p.TicketID, p.UserID, p.Price, p.ValidFrom, p.ValidTo,
			p.RefundDateCount, p.PurchaseTime, nullString(p.PaymentRef))
	}

	br := t.tx.SendBatch(ctx, batch)
	for _, p := range purchases {
		if err := br.QueryRow().Scan(&p.ID); err != nil {
			br.Close()
			return err
		}
	}
	return br.Close()
}

func (t *postgresLedgerTx) DeletePurchase(ctx context.Context, purchaseID int64) (bool, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM ticket_purchases WHERE id = $1`, purchaseID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (t *postgresLedgerTx) SetTicketSoldOut(ctx context.Context, ticketID int64, soldOut bool) error {
	_, err := t.tx.Exec(ctx, `UPDATE tickets SET is_sold_out = $2 WHERE id = $1`, ticketID, soldOut)
	return err
}

func (t *postgresLedgerTx) CountPurchasesByEvent(ctx context.Context, eventID int64) (int, error) {
	n, err := queryCount(ctx, t.tx, `SELECT COUNT(*) FROM ticket_purchases p
		JOIN tickets tk ON tk.id = p.ticket_id WHERE tk.event_id = $1`, eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to count event purchases: %w", err)
	}
	return n, nil
}

func (t *postgresLedgerTx) CountActivePurchases(ctx context.Context, eventID int64, now time.Time) (int, error) {
	n, err := queryCount(ctx, t.tx, `SELECT COUNT(*) FROM ticket_purchases p
		JOIN tickets tk ON tk.id = p.ticket_id
		WHERE tk.event_id = $1 AND p.valid_to > $2`, eventID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to count active purchases: %w", err)
	}
	return n, nil
}

func (t *postgresLedgerTx) EventAudience(ctx context.Context, eventID int64) ([]int64, error) {
	ids, err := eventAudience(ctx, t.tx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve event audience: %w", err)
	}
	return ids, nil
}

func (t *postgresLedgerTx) AddRevenue(ctx context.Context, eventID int64, delta float64) (float64, error) {
	var revenue float64
	err := t.tx.QueryRow(ctx,
		`UPDATE events SET revenue = revenue + $2 WHERE id = $1 RETURNING revenue`,
		eventID, delta).Scan(&revenue)
	if err != nil {
		return 0, fmt.Errorf("failed to update revenue: %w", err)
	}
	return revenue, nil
}

func (t *postgresLedgerTx) SetEventStatus(ctx context.Context, eventID int64, status domain.EventStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE events SET status = $2, updated_at = NOW() WHERE id = $1`,
		eventID, string(status))
	if err != nil {
		return fmt.Errorf("failed to set event status: %w", err)
	}
	return nil
}

func (t *postgresLedgerTx) InsertEvent(ctx context.Context, e *domain.Event) error {
	query := `INSERT INTO events (
			title, description, location, online_info, start_time, end_time, status,
			organizer_id, revenue, refund_date_count, is_prime, views, category_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`
	err := t.tx.QueryRow(ctx, query,
		e.Title, e.Description, e.Location, e.OnlineInfo, e.StartTime, e.EndTime, string(e.Status),
		e.OrganizerID, e.Revenue, e.RefundDateCount, e.IsPrime, e.Views, e.CategoryID, e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// UpdateEvent writes organizer-editable fields and status; revenue is left alone
func (t *postgresLedgerTx) UpdateEvent(ctx context.Context, e *domain.Event) error {
	query := `UPDATE events SET
			title = $2, description = $3, location = $4, online_info = $5,
			start_time = $6, end_time = $7, status = $8, refund_date_count = $9,
			is_prime = $10, category_id = $11, updated_at = $12
		WHERE id = $1`
	_, err := t.tx.Exec(ctx, query,
		e.ID, e.Title, e.Description, e.Location, e.OnlineInfo,
		e.StartTime, e.EndTime, string(e.Status), e.RefundDateCount,
		e.IsPrime, e.CategoryID, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	return nil
}

func (t *postgresLedgerTx) ReplaceImages(ctx context.Context, eventID int64, images []*domain.EventImage) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM event_images WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("failed to clear event images: %w", err)
	}
	for _, img := range images {
		img.EventID = eventID
		err := t.tx.QueryRow(ctx,
			`INSERT INTO event_images (event_id, image_url, public_id, is_main) VALUES ($1, $2, $3, $4) RETURNING id`,
			eventID, img.ImageURL, img.PublicID, img.IsMain,
		).Scan(&img.ID)
		if err != nil {
			return fmt.Errorf("failed to insert event image: %w", err)
		}
	}
	return nil
}

func (t *postgresLedgerTx) DeleteImage(ctx context.Context, imageID int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM event_images WHERE id = $1`, imageID); err != nil {
		return fmt.Errorf("failed to delete event image: %w", err)
	}
	return nil
}

func (t *postgresLedgerTx) LowerRefundWindow(ctx context.Context, eventID int64, days int) (int64, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE ticket_purchases p SET refund_date_count = $2
		FROM tickets tk
		WHERE tk.id = p.ticket_id AND tk.event_id = $1 AND p.refund_date_count > $2`, eventID, days)
	if err != nil {
		return 0, fmt.Errorf("failed to lower refund window: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *postgresLedgerTx) DeleteEventCascade(ctx context.Context, eventID int64) error {
	statements := []string{
		`DELETE FROM ticket_purchases p USING tickets tk WHERE tk.id = p.ticket_id AND tk.event_id = $1`,
		`DELETE FROM tickets WHERE event_id = $1`,
		`DELETE FROM event_images WHERE event_id = $1`,
		`DELETE FROM favorite_events WHERE event_id = $1`,
		`DELETE FROM event_schedules WHERE event_id = $1`,
		`UPDATE user_notifications SET event_id = NULL WHERE event_id = $1`,
		`DELETE FROM events WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := t.tx.Exec(ctx, stmt, eventID); err != nil {
			return fmt.Errorf("failed to delete event %d: %w", eventID, err)
		}
	}
	return nil
}

func (t *postgresLedgerTx) InsertTicket(ctx context.Context, tk *domain.Ticket) error {
	query := `INSERT INTO tickets (
			event_id, name, description, price, count, sales_start, sales_end,
			valid_from, valid_to, refund_date_count, is_sold_out
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	err := t.tx.QueryRow(ctx, query,
		tk.EventID, tk.Name, tk.Description, tk.Price, tk.Count, tk.SalesStart, tk.SalesEnd,
		tk.ValidFrom, tk.ValidTo, tk.RefundDateCount, tk.IsSoldOut,
	).Scan(&tk.ID)
	if err != nil {
		return fmt.Errorf("failed to insert ticket: %w", err)
	}
	return nil
}

func (t *postgresLedgerTx) UpdateTicket(ctx context.Context, tk *domain.Ticket) error {
	query := `UPDATE tickets SET
			name = $2, description = $3, price = $4, count = $5, sales_start = $6, sales_end = $7,
			valid_from = $8, valid_to = $9, refund_date_count = $10, is_sold_out = $11
		WHERE id = $1`
	_, err := t.tx.Exec(ctx, query,
		tk.ID, tk.Name, tk.Description, tk.Price, tk.Count, tk.SalesStart, tk.SalesEnd,
		tk.ValidFrom, tk.ValidTo, tk.RefundDateCount, tk.IsSoldOut,
	)
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	return nil
}

func (t *postgresLedgerTx) DeleteTicket(ctx context.Context, ticketID int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM tickets WHERE id = $1`, ticketID); err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	return nil
}

var (
	_ LedgerStore = (*PostgresLedgerStore)(nil)
	_ LedgerTx    = (*postgresLedgerTx)(nil)
)
