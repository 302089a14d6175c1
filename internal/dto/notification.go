package dto

import "github.com/nickruden/diplom-server/internal/domain"

// NotificationResponse represents an in-app notification
type NotificationResponse struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	EventID   *int64 `json:"event_id"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

// NewNotificationResponses converts notifications
func NewNotificationResponses(items []*domain.Notification) []*NotificationResponse {
	out := make([]*NotificationResponse, len(items))
	for i, n := range items {
		out[i] = &NotificationResponse{
			ID:        n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Type:      n.Type,
			EventID:   n.EventID,
			IsRead:    n.IsRead,
			CreatedAt: FormatTime(n.CreatedAt),
		}
	}
	return out
}

// MarkReadResponse reports how many notifications changed
type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

// FollowingResponse lists followed organizers
type FollowingResponse struct {
	OrganizerIDs []int64 `json:"organizer_ids"`
}
