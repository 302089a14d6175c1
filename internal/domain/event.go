package domain

import (
	"strings"
	"time"
)

// Event is an organizer's listing that owns ticket tiers
type Event struct {
	ID              int64       `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	Location        string      `json:"location"`
	OnlineInfo      string      `json:"online_info,omitempty"`
	StartTime       time.Time   `json:"start_time"`
	EndTime         time.Time   `json:"end_time"`
	Status          EventStatus `json:"status"`
	OrganizerID     int64       `json:"organizer_id"`
	Revenue         float64     `json:"revenue"`
	RefundDateCount *int        `json:"refund_date_count,omitempty"`
	IsPrime         bool        `json:"is_prime"`
	Views           int         `json:"views"`
	CategoryID      *int64      `json:"category_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Validate checks the fields an organizer controls
func (e *Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return Validation("title is required")
	}
	if e.StartTime.IsZero() || e.EndTime.IsZero() {
		return Validation("start and end time are required")
	}
	if e.EndTime.Before(e.StartTime) {
		return Validation("end time must not be before start time")
	}
	if e.RefundDateCount != nil && *e.RefundDateCount < 0 {
		return Validation("refund date count must not be negative")
	}
	if !e.Status.IsValid() {
		return Validation("unknown event status %q", e.Status)
	}
	return nil
}

// IsOwnedBy reports whether userID organizes the event
func (e *Event) IsOwnedBy(userID int64) bool {
	return e.OrganizerID == userID
}

// HasElapsed reports whether the event ended before now
func (e *Event) HasElapsed(now time.Time) bool {
	return e.EndTime.Before(now)
}

// EventImage is stored metadata of an uploaded picture
type EventImage struct {
	ID       int64  `json:"id"`
	EventID  int64  `json:"event_id"`
	ImageURL string `json:"image_url"`
	PublicID string `json:"public_id"`
	IsMain   bool   `json:"is_main"`
}

// Ticket is a purchasable tier of an event
type Ticket struct {
	ID              int64      `json:"id"`
	EventID         int64      `json:"event_id"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	Price           float64    `json:"price"`
	Count           int        `json:"count"`
	SalesStart      *time.Time `json:"sales_start,omitempty"`
	SalesEnd        *time.Time `json:"sales_end,omitempty"`
	ValidFrom       *time.Time `json:"valid_from,omitempty"`
	ValidTo         *time.Time `json:"valid_to,omitempty"`
	RefundDateCount *int       `json:"refund_date_count,omitempty"`
	IsSoldOut       bool       `json:"is_sold_out"`
}

// Validate checks tier fields
func (t *Ticket) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return Validation("ticket name is required")
	}
	if t.Price < 0 {
		return Validation("ticket price must not be negative")
	}
	if t.Count <= 0 {
		return Validation("ticket count must be positive")
	}
	if t.SalesStart != nil && t.SalesEnd != nil && t.SalesEnd.Before(*t.SalesStart) {
		return Validation("sales end must not be before sales start")
	}
	if t.ValidFrom != nil && t.ValidTo != nil && t.ValidTo.Before(*t.ValidFrom) {
		return Validation("valid to must not be before valid from")
	}
	if t.RefundDateCount != nil && *t.RefundDateCount < 0 {
		return Validation("refund date count must not be negative")
	}
	return nil
}

// SalesOpen reports whether the tier accepts purchases at now.
// An unset bound leaves that side of the window open.
func (t *Ticket) SalesOpen(now time.Time) bool {
	if t.SalesStart != nil && now.Before(*t.SalesStart) {
		return false
	}
	if t.SalesEnd != nil && !now.Before(*t.SalesEnd) {
		return false
	}
	return true
}

// EffectiveRefundDateCount is the tier's refund window, falling back to the event default
func (t *Ticket) EffectiveRefundDateCount(event *Event) *int {
	if t.RefundDateCount != nil {
		return copyInt(t.RefundDateCount)
	}
	if event != nil && event.RefundDateCount != nil {
		return copyInt(event.RefundDateCount)
	}
	return nil
}

// Purchase is one sold unit of a tier
type Purchase struct {
	ID              int64      `json:"id"`
	TicketID        int64      `json:"ticket_id"`
	UserID          int64      `json:"user_id"`
	Price           float64    `json:"price"`
	ValidFrom       *time.Time `json:"valid_from,omitempty"`
	ValidTo         *time.Time `json:"valid_to,omitempty"`
	RefundDateCount *int       `json:"refund_date_count,omitempty"`
	PurchaseTime    time.Time  `json:"purchase_time"`
	PaymentRef      string     `json:"payment_ref,omitempty"`
}

// NewPurchase snapshots the tier's price, validity window and refund window
func NewPurchase(t *Ticket, event *Event, userID int64, now time.Time, paymentRef string) *Purchase {
	return &Purchase{
		TicketID:        t.ID,
		UserID:          userID,
		Price:           t.Price,
		ValidFrom:       copyTime(t.ValidFrom),
		ValidTo:         copyTime(t.ValidTo),
		RefundDateCount: t.EffectiveRefundDateCount(event),
		PurchaseTime:    now,
		PaymentRef:      paymentRef,
	}
}

// IsActive reports whether the purchase still entitles attendance
func (p *Purchase) IsActive(now time.Time) bool {
	return p.ValidTo != nil && p.ValidTo.After(now)
}

// Notification is an in-app message for one user
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	EventID   *int64    `json:"event_id,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// Role is the identity role resolved from the access token
type Role string

const (
	RoleUser      Role = "user"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int { return &v }

// TimePtr returns a pointer to t
func TimePtr(t time.Time) *time.Time { return &t }
