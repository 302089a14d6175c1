package dto

import (
	"time"

	"github.com/nickruden/diplom-server/internal/domain"
)

// CreateTicketRequest represents the request to add a tier to an event
type CreateTicketRequest struct {
	Name            string     `json:"name" binding:"required,min=1,max=100"`
	Description     string     `json:"description"`
	Price           float64    `json:"price" binding:"gte=0"`
	Count           int        `json:"count" binding:"required,gt=0"`
	SalesStart      *time.Time `json:"sales_start"`
	SalesEnd        *time.Time `json:"sales_end"`
	ValidFrom       *time.Time `json:"valid_from"`
	ValidTo         *time.Time `json:"valid_to"`
	RefundDateCount *int       `json:"refund_date_count"`
}

// Validate validates the CreateTicketRequest
func (r *CreateTicketRequest) Validate() (bool, string) {
	if r.Name == "" {
		return false, "Ticket name is required"
	}
	if r.Price < 0 {
		return false, "Price cannot be negative"
	}
	if r.Count <= 0 {
		return false, "Count must be greater than 0"
	}
	return validateWindows(r.SalesStart, r.SalesEnd, r.ValidFrom, r.ValidTo, r.RefundDateCount)
}

// ToTicket builds the tier for eventID
func (r *CreateTicketRequest) ToTicket(eventID int64) *domain.Ticket {
	return &domain.Ticket{
		EventID:         eventID,
		Name:            r.Name,
		Description:     r.Description,
		Price:           r.Price,
		Count:           r.Count,
		SalesStart:      r.SalesStart,
		SalesEnd:        r.SalesEnd,
		ValidFrom:       r.ValidFrom,
		ValidTo:         r.ValidTo,
		RefundDateCount: r.RefundDateCount,
	}
}

// UpdateTicketRequest represents a partial tier update
type UpdateTicketRequest struct {
	Name            *string    `json:"name" binding:"omitempty,min=1,max=100"`
	Description     *string    `json:"description"`
	Price           *float64   `json:"price"`
	Count           *int       `json:"count"`
	SalesStart      *time.Time `json:"sales_start"`
	SalesEnd        *time.Time `json:"sales_end"`
	ValidFrom       *time.Time `json:"valid_from"`
	ValidTo         *time.Time `json:"valid_to"`
	RefundDateCount *int       `json:"refund_date_count"`
}

// Validate validates the UpdateTicketRequest
func (r *UpdateTicketRequest) Validate() (bool, string) {
	if r.Name != nil && *r.Name == "" {
		return false, "Ticket name cannot be empty"
	}
	if r.Price != nil && *r.Price < 0 {
		return false, "Price cannot be negative"
	}
	if r.Count != nil && *r.Count <= 0 {
		return false, "Count must be greater than 0"
	}
	return validateWindows(r.SalesStart, r.SalesEnd, r.ValidFrom, r.ValidTo, r.RefundDateCount)
}

// Apply copies the set fields onto t
func (r *UpdateTicketRequest) Apply(t *domain.Ticket) {
	if r.Name != nil {
		t.Name = *r.Name
	}
	if r.Description != nil {
		t.Description = *r.Description
	}
	if r.Price != nil {
		t.Price = *r.Price
	}
	if r.Count != nil {
		t.Count = *r.Count
	}
	if r.SalesStart != nil {
		t.SalesStart = r.SalesStart
	}
	if r.SalesEnd != nil {
		t.SalesEnd = r.SalesEnd
	}
	if r.ValidFrom != nil {
		t.ValidFrom = r.ValidFrom
	}
	if r.ValidTo != nil {
		t.ValidTo = r.ValidTo
	}
	if r.RefundDateCount != nil {
		t.RefundDateCount = r.RefundDateCount
	}
}

func validateWindows(salesStart, salesEnd, validFrom, validTo *time.Time, refund *int) (bool, string) {
	if salesStart != nil && salesEnd != nil && salesEnd.Before(*salesStart) {
		return false, "Sales end must be after sales start"
	}
	if validFrom != nil && validTo != nil && validTo.Before(*validFrom) {
		return false, "Valid to must be after valid from"
	}
	if refund != nil && *refund < 0 {
		return false, "Refund date count cannot be negative"
	}
	return true, ""
}

// TicketSalesResponse is a tier with its live inventory
type TicketSalesResponse struct {
	ID              int64   `json:"id"`
	EventID         int64   `json:"event_id"`
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	Price           float64 `json:"price"`
	Count           int     `json:"count"`
	SoldCount       int     `json:"sold_count"`
	AvailableCount  int     `json:"available_count"`
	Profit          float64 `json:"profit"`
	IsSoldOut       bool    `json:"is_sold_out"`
	SalesStart      *string `json:"sales_start,omitempty"`
	SalesEnd        *string `json:"sales_end,omitempty"`
	ValidFrom       *string `json:"valid_from,omitempty"`
	ValidTo         *string `json:"valid_to,omitempty"`
	RefundDateCount *int    `json:"refund_date_count,omitempty"`
}

// NewTicketSalesResponse combines a tier with its sold count
func NewTicketSalesResponse(t *domain.Ticket, sold int) *TicketSalesResponse {
	available := t.Count - sold
	if available < 0 {
		available = 0
	}
	return &TicketSalesResponse{
		ID:              t.ID,
		EventID:         t.EventID,
		Name:            t.Name,
		Description:     t.Description,
		Price:           t.Price,
		Count:           t.Count,
		SoldCount:       sold,
		AvailableCount:  available,
		Profit:          float64(sold) * t.Price,
		IsSoldOut:       t.IsSoldOut,
		SalesStart:      FormatTimePtr(t.SalesStart),
		SalesEnd:        FormatTimePtr(t.SalesEnd),
		ValidFrom:       FormatTimePtr(t.ValidFrom),
		ValidTo:         FormatTimePtr(t.ValidTo),
		RefundDateCount: t.RefundDateCount,
	}
}

// EventTicketsResponse lists an event's tiers
type EventTicketsResponse struct {
	Tickets      []*TicketSalesResponse `json:"tickets"`
	TotalTickets int                    `json:"total_tickets"`
}

// RefundAllResponse is returned after refunding every purchase of a tier
type RefundAllResponse struct {
	TicketID      int64   `json:"ticket_id"`
	RefundedCount int     `json:"refunded_count"`
	RefundAmount  float64 `json:"refund_amount"`
}
