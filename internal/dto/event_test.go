package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nickruden/diplom-server/internal/domain"
)

func TestCreateEventRequest_Validate(t *testing.T) {
	start := time.Now().Add(24 * time.Hour)
	end := start.Add(3 * time.Hour)
	negative := -1

	tests := []struct {
		name    string
		req     CreateEventRequest
		want    bool
		wantMsg string
	}{
		{
			name: "valid request",
			req:  CreateEventRequest{Title: "Concert", StartTime: start, EndTime: end},
			want: true,
		},
		{
			name:    "missing title",
			req:     CreateEventRequest{StartTime: start, EndTime: end},
			wantMsg: "Event title is required",
		},
		{
			name:    "missing times",
			req:     CreateEventRequest{Title: "Concert"},
			wantMsg: "Start and end time are required",
		},
		{
			name:    "end before start",
			req:     CreateEventRequest{Title: "Concert", StartTime: end, EndTime: start},
			wantMsg: "End time must not be before start time",
		},
		{
			name:    "derived status",
			req:     CreateEventRequest{Title: "Concert", StartTime: start, EndTime: end, Status: "sold_out"},
			wantMsg: "Status must be draft or published",
		},
		{
			name:    "negative refund window",
			req:     CreateEventRequest{Title: "Concert", StartTime: start, EndTime: end, RefundDateCount: &negative},
			wantMsg: "Refund date count cannot be negative",
		},
		{
			name: "two main images",
			req: CreateEventRequest{Title: "Concert", StartTime: start, EndTime: end, Images: []ImageInput{
				{ImageURL: "a", PublicID: "a", IsMain: true},
				{ImageURL: "b", PublicID: "b", IsMain: true},
			}},
			wantMsg: "Only one image can be main",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := tt.req.Validate()
			if got != tt.want {
				t.Errorf("Validate() got = %v, want %v", got, tt.want)
			}
			if msg != tt.wantMsg {
				t.Errorf("Validate() msg = %v, want %v", msg, tt.wantMsg)
			}
		})
	}
}

func TestUpdateEventRequest_Validate(t *testing.T) {
	start := time.Now()
	end := start.Add(time.Hour)
	empty := ""
	bogus := "archived"
	published := "published"

	tests := []struct {
		name    string
		req     UpdateEventRequest
		want    bool
		wantMsg string
	}{
		{name: "empty update", req: UpdateEventRequest{}, want: true},
		{name: "status change", req: UpdateEventRequest{Status: &published}, want: true},
		{name: "empty title", req: UpdateEventRequest{Title: &empty}, wantMsg: "Event title cannot be empty"},
		{name: "unknown status", req: UpdateEventRequest{Status: &bogus}, wantMsg: "Unknown event status"},
		{name: "end before start", req: UpdateEventRequest{StartTime: &end, EndTime: &start}, wantMsg: "End time must not be before start time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := tt.req.Validate()
			if got != tt.want || msg != tt.wantMsg {
				t.Errorf("Validate() = (%v, %q), want (%v, %q)", got, msg, tt.want, tt.wantMsg)
			}
		})
	}
}

func TestCreateTicketRequest_Validate(t *testing.T) {
	now := time.Now()
	later := now.Add(time.Hour)

	tests := []struct {
		name    string
		req     CreateTicketRequest
		wantMsg string
	}{
		{name: "valid", req: CreateTicketRequest{Name: "GA", Price: 10, Count: 5}},
		{name: "free ticket", req: CreateTicketRequest{Name: "GA", Count: 5}},
		{name: "zero count", req: CreateTicketRequest{Name: "GA", Count: 0}, wantMsg: "Count must be greater than 0"},
		{name: "negative price", req: CreateTicketRequest{Name: "GA", Price: -1, Count: 1}, wantMsg: "Price cannot be negative"},
		{name: "sales window reversed", req: CreateTicketRequest{Name: "GA", Count: 1, SalesStart: &later, SalesEnd: &now}, wantMsg: "Sales end must be after sales start"},
		{name: "validity reversed", req: CreateTicketRequest{Name: "GA", Count: 1, ValidFrom: &later, ValidTo: &now}, wantMsg: "Valid to must be after valid from"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, msg := tt.req.Validate()
			if ok != (tt.wantMsg == "") || msg != tt.wantMsg {
				t.Errorf("Validate() = (%v, %q), want msg %q", ok, msg, tt.wantMsg)
			}
		})
	}
}

func TestUpdateTicketRequest_Apply(t *testing.T) {
	name := "VIP"
	count := 20
	ticket := &domain.Ticket{Name: "GA", Price: 10, Count: 5}

	req := UpdateTicketRequest{Name: &name, Count: &count}
	req.Apply(ticket)

	if ticket.Name != "VIP" || ticket.Count != 20 || ticket.Price != 10 {
		t.Errorf("unexpected ticket after apply: %+v", ticket)
	}
}

func TestConfirmPurchaseRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		req  ConfirmPurchaseRequest
		want bool
	}{
		{name: "valid", req: ConfirmPurchaseRequest{Tickets: []LineItem{{TicketID: 1, Count: 2}}}, want: true},
		{name: "no items", req: ConfirmPurchaseRequest{}, want: false},
		{name: "zero count", req: ConfirmPurchaseRequest{Tickets: []LineItem{{TicketID: 1, Count: 0}}}, want: false},
		{name: "missing ticket", req: ConfirmPurchaseRequest{Tickets: []LineItem{{Count: 1}}}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := tt.req.Validate(); got != tt.want {
				t.Errorf("Validate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRefundDeadline_MarshalJSON(t *testing.T) {
	deadline := time.Date(2025, 5, 27, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   RefundDeadline
		want string
	}{
		{name: "open", in: RefundDeadline{State: domain.RefundOpen, Deadline: deadline}, want: `"2025-05-27T00:00:00Z"`},
		{name: "passed", in: RefundDeadline{State: domain.RefundPassed}, want: `null`},
		{name: "unavailable", in: RefundDeadline{State: domain.RefundUnavailable}, want: `false`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.in)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewTicketSalesResponse(t *testing.T) {
	resp := NewTicketSalesResponse(&domain.Ticket{ID: 1, Price: 25, Count: 4, IsSoldOut: false}, 3)

	if resp.SoldCount != 3 || resp.AvailableCount != 1 || resp.Profit != 75 {
		t.Errorf("unexpected figures: %+v", resp)
	}
}
