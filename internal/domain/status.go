package domain

import "fmt"

// EventStatus is the publication state of an event
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusSoldOut   EventStatus = "sold_out"
	EventStatusCompleted EventStatus = "completed"
)

// IsValid checks if the status is a known EventStatus
func (s EventStatus) IsValid() bool {
	switch s {
	case EventStatusDraft, EventStatusPublished, EventStatusSoldOut, EventStatusCompleted:
		return true
	}
	return false
}

func (s EventStatus) String() string {
	return string(s)
}

// ParseEventStatus parses a status name
func ParseEventStatus(s string) (EventStatus, error) {
	st := EventStatus(s)
	if !st.IsValid() {
		return "", Validation("unknown event status %q", s)
	}
	return st, nil
}

// SweepStatuses are the statuses the lifecycle sweep evaluates
var SweepStatuses = []EventStatus{EventStatusPublished, EventStatusSoldOut, EventStatusDraft}

// CheckManualTransition validates an organizer-initiated status change.
// Organizers may only move between Draft and Published; SoldOut and Completed are derived.
func CheckManualTransition(from, to EventStatus) error {
	if from == to {
		return nil
	}
	if to != EventStatusDraft && to != EventStatusPublished {
		return invalidTransition(from, to)
	}
	switch from {
	case EventStatusDraft, EventStatusPublished:
		return nil
	case EventStatusSoldOut:
		// unpublishing a sold-out event is allowed, republishing it is not
		if to == EventStatusDraft {
			return nil
		}
	}
	return invalidTransition(from, to)
}

func invalidTransition(from, to EventStatus) *Error {
	return &Error{
		Code:    CodeInvalidStatusTransition,
		Message: fmt.Sprintf("cannot change status from %s to %s", from, to),
		Details: map[string]any{"from": from, "to": to},
	}
}
