package domain

import "time"

// LifecycleSnapshot is everything status derivation looks at
type LifecycleSnapshot struct {
	Status       EventStatus
	EndTime      time.Time
	TicketCount  int
	SoldOutCount int
	HasPurchases bool
}

// NewLifecycleSnapshot builds a snapshot from an event and its tiers
func NewLifecycleSnapshot(e *Event, tickets []*Ticket, hasPurchases bool) LifecycleSnapshot {
	s := LifecycleSnapshot{
		Status:       e.Status,
		EndTime:      e.EndTime,
		TicketCount:  len(tickets),
		HasPurchases: hasPurchases,
	}
	for _, t := range tickets {
		if t.IsSoldOut {
			s.SoldOutCount++
		}
	}
	return s
}

// EvaluateStatus derives the status an event should have at now.
// Rules are applied until nothing changes, so evaluating the result again is a no-op.
func EvaluateStatus(s LifecycleSnapshot, now time.Time) EventStatus {
	status := s.Status
	for i := 0; i < 4; i++ {
		next := step(s, status, now)
		if next == status {
			break
		}
		status = next
	}
	return status
}

func step(s LifecycleSnapshot, status EventStatus, now time.Time) EventStatus {
	if status == EventStatusCompleted {
		return status
	}

	// completion wins over sold-out detection
	if s.EndTime.Before(now) && (status == EventStatusPublished || status == EventStatusSoldOut) {
		if s.HasPurchases {
			return EventStatusCompleted
		}
		return EventStatusDraft
	}

	allSoldOut := s.TicketCount > 0 && s.SoldOutCount == s.TicketCount
	switch {
	case allSoldOut && (status == EventStatusPublished || status == EventStatusDraft):
		return EventStatusSoldOut
	case status == EventStatusSoldOut && s.SoldOutCount < s.TicketCount:
		return EventStatusDraft
	}
	return status
}

// Transition records one status change made by the lifecycle
type Transition struct {
	EventID int64
	From    EventStatus
	To      EventStatus
}
