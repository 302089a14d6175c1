package dto

import (
	"time"

	"github.com/nickruden/diplom-server/internal/domain"
)

// TimeLayout is the wire format of every timestamp
const TimeLayout = time.RFC3339

// ImageInput is an already-uploaded image attached to an event
type ImageInput struct {
	ImageURL string `json:"image_url" binding:"required"`
	PublicID string `json:"public_id" binding:"required"`
	IsMain   bool   `json:"is_main"`
}

// CreateEventRequest represents the request to create a new event
type CreateEventRequest struct {
	Title           string       `json:"title" binding:"required,min=1,max=100"`
	Description     string       `json:"description"`
	Location        string       `json:"location" binding:"max=150"`
	OnlineInfo      string       `json:"online_info"`
	StartTime       time.Time    `json:"start_time" binding:"required"`
	EndTime         time.Time    `json:"end_time" binding:"required"`
	Status          string       `json:"status"`
	RefundDateCount *int         `json:"refund_date_count"`
	IsPrime         bool         `json:"is_prime"`
	CategoryID      *int64       `json:"category_id"`
	Images          []ImageInput `json:"images" binding:"dive"`
	OrganizerID     int64        `json:"-"` // Set from context
}

// Validate validates the CreateEventRequest
func (r *CreateEventRequest) Validate() (bool, string) {
	if r.Title == "" {
		return false, "Event title is required"
	}
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return false, "Start and end time are required"
	}
	if r.EndTime.Before(r.StartTime) {
		return false, "End time must not be before start time"
	}
	if r.Status != "" && r.Status != string(domain.EventStatusDraft) && r.Status != string(domain.EventStatusPublished) {
		return false, "Status must be draft or published"
	}
	if r.RefundDateCount != nil && *r.RefundDateCount < 0 {
		return false, "Refund date count cannot be negative"
	}
	if ok, msg := validateImages(r.Images); !ok {
		return false, msg
	}
	return true, ""
}

// UpdateEventRequest represents a partial event update; nil fields stay unchanged
type UpdateEventRequest struct {
	Title           *string      `json:"title" binding:"omitempty,min=1,max=100"`
	Description     *string      `json:"description"`
	Location        *string      `json:"location" binding:"omitempty,max=150"`
	OnlineInfo      *string      `json:"online_info"`
	StartTime       *time.Time   `json:"start_time"`
	EndTime         *time.Time   `json:"end_time"`
	Status          *string      `json:"status"`
	RefundDateCount *int         `json:"refund_date_count"`
	IsPrime         *bool        `json:"is_prime"`
	CategoryID      *int64       `json:"category_id"`
	Images          []ImageInput `json:"images" binding:"dive"` // replaces all images when not empty
}

// Validate validates the UpdateEventRequest
func (r *UpdateEventRequest) Validate() (bool, string) {
	if r.Title != nil && *r.Title == "" {
		return false, "Event title cannot be empty"
	}
	if r.StartTime != nil && r.EndTime != nil && r.EndTime.Before(*r.StartTime) {
		return false, "End time must not be before start time"
	}
	if r.Status != nil {
		if _, err := domain.ParseEventStatus(*r.Status); err != nil {
			return false, "Unknown event status"
		}
	}
	if r.RefundDateCount != nil && *r.RefundDateCount < 0 {
		return false, "Refund date count cannot be negative"
	}
	if ok, msg := validateImages(r.Images); !ok {
		return false, msg
	}
	return true, ""
}

func validateImages(images []ImageInput) (bool, string) {
	mains := 0
	seen := make(map[string]struct{}, len(images))
	for _, img := range images {
		if img.ImageURL == "" || img.PublicID == "" {
			return false, "Image url and public id are required"
		}
		if _, dup := seen[img.PublicID]; dup {
			return false, "Duplicate image public id"
		}
		seen[img.PublicID] = struct{}{}
		if img.IsMain {
			mains++
		}
	}
	if mains > 1 {
		return false, "Only one image can be main"
	}
	return true, ""
}

// ToImages converts inputs to image rows of eventID
func ToImages(eventID int64, inputs []ImageInput) []*domain.EventImage {
	images := make([]*domain.EventImage, len(inputs))
	for i, in := range inputs {
		images[i] = &domain.EventImage{
			EventID:  eventID,
			ImageURL: in.ImageURL,
			PublicID: in.PublicID,
			IsMain:   in.IsMain,
		}
	}
	return images
}

// ActiveEventFilter narrows the public listing
type ActiveEventFilter struct {
	CategoryID *int64 `form:"category_id"`
}

// CreatorEventFilter narrows an organizer's listing
type CreatorEventFilter struct {
	Filter string `form:"filter" binding:"omitempty,oneof=upcoming past"`
}

// ImageResponse represents an event image
type ImageResponse struct {
	ID       int64  `json:"id"`
	ImageURL string `json:"image_url"`
	PublicID string `json:"public_id"`
	IsMain   bool   `json:"is_main"`
}

// EventResponse represents the response for an event
type EventResponse struct {
	ID              int64            `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Location        string           `json:"location"`
	OnlineInfo      string           `json:"online_info,omitempty"`
	StartTime       string           `json:"start_time"`
	EndTime         string           `json:"end_time"`
	Status          string           `json:"status"`
	OrganizerID     int64            `json:"organizer_id"`
	RefundDateCount *int             `json:"refund_date_count"`
	IsPrime         bool             `json:"is_prime"`
	Views           int              `json:"views"`
	CategoryID      *int64           `json:"category_id,omitempty"`
	Images          []*ImageResponse `json:"images"`
	CreatedAt       string           `json:"created_at"`
	UpdatedAt       string           `json:"updated_at"`
}

// NewEventResponse converts a domain event and its images
func NewEventResponse(e *domain.Event, images []*domain.EventImage) *EventResponse {
	resp := &EventResponse{
		ID:              e.ID,
		Title:           e.Title,
		Description:     e.Description,
		Location:        e.Location,
		OnlineInfo:      e.OnlineInfo,
		StartTime:       FormatTime(e.StartTime),
		EndTime:         FormatTime(e.EndTime),
		Status:          string(e.Status),
		OrganizerID:     e.OrganizerID,
		RefundDateCount: e.RefundDateCount,
		IsPrime:         e.IsPrime,
		Views:           e.Views,
		CategoryID:      e.CategoryID,
		Images:          make([]*ImageResponse, 0, len(images)),
		CreatedAt:       FormatTime(e.CreatedAt),
		UpdatedAt:       FormatTime(e.UpdatedAt),
	}
	for _, img := range images {
		resp.Images = append(resp.Images, &ImageResponse{
			ID:       img.ID,
			ImageURL: img.ImageURL,
			PublicID: img.PublicID,
			IsMain:   img.IsMain,
		})
	}
	return resp
}

// ActiveEventResponse is one entry of the public listing
type ActiveEventResponse struct {
	*EventResponse
	ActiveDate string  `json:"active_date"`
	MinPrice   float64 `json:"min_price"`
}

// OrganizerSummary describes the organizer on an event page
type OrganizerSummary struct {
	ID             int64 `json:"id"`
	FollowersCount int   `json:"followers_count"`
}

// EventDetailResponse is the event page with inventory figures
type EventDetailResponse struct {
	*EventResponse
	ActiveDate            *string                `json:"active_date"`
	Tickets               []*TicketSalesResponse `json:"tickets"`
	TotalTicketsCount     int                    `json:"total_tickets_count"`
	TotalSoldTickets      int                    `json:"total_sold_tickets"`
	AvailableTicketsCount int                    `json:"available_tickets_count"`
	Organizer             *OrganizerSummary      `json:"organizer"`
}

// CreatorEventResponse is one event on an organizer's dashboard
type CreatorEventResponse struct {
	*EventResponse
	SoldTicketsCount  int     `json:"sold_tickets_count"`
	TotalTicketsCount int     `json:"total_tickets_count"`
	Profit            float64 `json:"profit"`
}

// CreateEventResponse is returned after creating an event
type CreateEventResponse struct {
	EventID     int64 `json:"event_id"`
	EventsCount int   `json:"events_count"`
}

// DeleteEventResponse is returned after deleting an event
type DeleteEventResponse struct {
	EventCount int `json:"event_count"`
}

// FormatTime formats t in the wire layout
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// FormatTimePtr formats t, keeping nil as nil
func FormatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatTime(*t)
	return &s
}
