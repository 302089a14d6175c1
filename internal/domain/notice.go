package domain

import (
	"fmt"
	"time"
)

// ChangeKind classifies an event change buyers and favoriters hear about
type ChangeKind string

const (
	ChangeUpdate   ChangeKind = "update"
	ChangeRefund   ChangeKind = "refund"
	ChangeCancel   ChangeKind = "cancel"
	ChangePublic   ChangeKind = "public"
	ChangeNewEvent ChangeKind = "new_event"
)

// IsValid checks if the kind is known
func (k ChangeKind) IsValid() bool {
	switch k {
	case ChangeUpdate, ChangeRefund, ChangeCancel, ChangePublic, ChangeNewEvent:
		return true
	}
	return false
}

// NotificationTypeEvent is the type stored on event-related notifications
const NotificationTypeEvent = "event"

// Notice is a pending fan-out of one event change.
// Recipients is set when the audience had to be captured before the event was purged;
// otherwise it is resolved at delivery time.
type Notice struct {
	Kind        ChangeKind `json:"kind"`
	EventID     int64      `json:"event_id"`
	EventTitle  string     `json:"event_title"`
	OrganizerID int64      `json:"organizer_id,omitempty"`
	Recipients  []int64    `json:"recipients,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

// Render returns the notification title and message for the notice
func (n *Notice) Render() (title, message string) {
	if n.Kind == ChangeNewEvent {
		return "New event from an organizer you follow",
			fmt.Sprintf("An organizer you follow has published a new event: %s", n.EventTitle)
	}

	title = fmt.Sprintf("Event changed: %s", n.EventTitle)
	switch n.Kind {
	case ChangeUpdate:
		message = "The event has been updated, keep an eye on the details."
	case ChangeRefund:
		message = "The event has been unpublished. A refund is possible unless it is published again."
	case ChangePublic:
		message = "The event has been published again. Check what has changed."
	default:
		message = "The event has been cancelled."
	}
	return title, message
}

// Notifications builds one notification per recipient
func (n *Notice) Notifications(recipients []int64, now time.Time) []*Notification {
	title, message := n.Render()
	var eventRef *int64
	// a cancelled event no longer exists, so its notifications carry no reference
	if n.Kind != ChangeCancel {
		id := n.EventID
		eventRef = &id
	}

	out := make([]*Notification, 0, len(recipients))
	for _, userID := range DedupeIDs(recipients) {
		out = append(out, &Notification{
			UserID:    userID,
			Title:     title,
			Message:   message,
			Type:      NotificationTypeEvent,
			EventID:   eventRef,
			CreatedAt: now,
		})
	}
	return out
}

// DedupeIDs removes duplicates keeping first-seen order
func DedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
