package dto

import (
	"encoding/json"

	"github.com/nickruden/diplom-server/internal/domain"
)

// LineItem asks for count units of one tier
type LineItem struct {
	TicketID int64 `json:"ticket_id" binding:"required,gt=0"`
	Count    int   `json:"count" binding:"required,gte=1"`
}

// ConfirmPurchaseRequest confirms a paid order. The buyer is taken from the token.
type ConfirmPurchaseRequest struct {
	Tickets    []LineItem `json:"tickets" binding:"required,min=1,dive"`
	PaymentRef string     `json:"payment_ref"`
}

// Validate validates the ConfirmPurchaseRequest
func (r *ConfirmPurchaseRequest) Validate() (bool, string) {
	if len(r.Tickets) == 0 {
		return false, "At least one ticket is required"
	}
	for _, item := range r.Tickets {
		if item.TicketID <= 0 {
			return false, "Ticket id is required"
		}
		if item.Count < 1 {
			return false, "Count must be at least 1"
		}
	}
	return true, ""
}

// PurchaseResponse represents one purchased unit
type PurchaseResponse struct {
	ID              int64   `json:"id"`
	TicketID        int64   `json:"ticket_id"`
	UserID          int64   `json:"user_id"`
	Price           float64 `json:"price"`
	ValidFrom       *string `json:"valid_from,omitempty"`
	ValidTo         *string `json:"valid_to,omitempty"`
	RefundDateCount *int    `json:"refund_date_count"`
	PurchaseTime    string  `json:"purchase_time"`
}

// NewPurchaseResponse converts a domain purchase
func NewPurchaseResponse(p *domain.Purchase) *PurchaseResponse {
	return &PurchaseResponse{
		ID:              p.ID,
		TicketID:        p.TicketID,
		UserID:          p.UserID,
		Price:           p.Price,
		ValidFrom:       FormatTimePtr(p.ValidFrom),
		ValidTo:         FormatTimePtr(p.ValidTo),
		RefundDateCount: p.RefundDateCount,
		PurchaseTime:    FormatTime(p.PurchaseTime),
	}
}

// NewPurchaseResponses converts a list of purchases
func NewPurchaseResponses(purchases []*domain.Purchase) []*PurchaseResponse {
	out := make([]*PurchaseResponse, len(purchases))
	for i, p := range purchases {
		out[i] = NewPurchaseResponse(p)
	}
	return out
}

// ConfirmPurchaseResponse is the outcome of a confirmed order
type ConfirmPurchaseResponse struct {
	EventID     int64               `json:"event_id"`
	TotalAmount float64             `json:"total_amount"`
	Purchases   []*PurchaseResponse `json:"purchases"`
}

// ReturnTicketResponse is the outcome of a refund
type ReturnTicketResponse struct {
	PurchaseID   int64   `json:"purchase_id"`
	EventID      int64   `json:"event_id"`
	RefundAmount float64 `json:"refund_amount"`
}

// RefundDeadline renders a refund projection: the deadline while refunds are open,
// null once it has passed, false when the purchase never had a refund window.
type RefundDeadline domain.RefundProjection

func (r RefundDeadline) MarshalJSON() ([]byte, error) {
	switch r.State {
	case domain.RefundOpen:
		return json.Marshal(FormatTime(r.Deadline))
	case domain.RefundPassed:
		return []byte("null"), nil
	default:
		return []byte("false"), nil
	}
}

// TicketInfo describes the tier of a purchase
type TicketInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// EventInfo describes the event of a purchase
type EventInfo struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title"`
	Image           *string `json:"image"`
	StartTime       string  `json:"start_time"`
	Location        string  `json:"location"`
	OnlineInfo      string  `json:"online_info,omitempty"`
	Status          string  `json:"status"`
	RefundDateCount *int    `json:"refund_date_count"`
}

// UserTicketResponse is one purchase in the buyer's wallet
type UserTicketResponse struct {
	PurchaseID     int64          `json:"purchase_id"`
	PurchaseTime   string         `json:"purchase_time"`
	Price          float64        `json:"price"`
	ValidFrom      *string        `json:"valid_from"`
	ValidTo        *string        `json:"valid_to"`
	RefundDeadline RefundDeadline `json:"refund_deadline"`
	TicketInfo     TicketInfo     `json:"ticket_info"`
	EventInfo      EventInfo      `json:"event_info"`
}

// CreatePaymentRequest asks the gateway for a charge
type CreatePaymentRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// CancelPaymentRequest voids a charge
type CancelPaymentRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
}
