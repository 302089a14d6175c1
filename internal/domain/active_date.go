package domain

import "time"

// ActiveDate selects the single date to show for an event.
// ok is false when no tier is currently valid, meaning the event is not listed as active.
func ActiveDate(event *Event, tickets []*Ticket, now time.Time, loc *time.Location) (date time.Time, ok bool) {
	if loc == nil {
		loc = time.UTC
	}

	valid := make([]*Ticket, 0, len(tickets))
	for _, t := range tickets {
		if isValidForListing(t, now) {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		return time.Time{}, false
	}

	if sameDay(event.StartTime, event.EndTime, loc) {
		return event.StartTime, true
	}

	today := startOfDay(now, loc)
	var earliestUpcoming, latest *time.Time
	for _, t := range valid {
		if t.ValidFrom == nil {
			continue
		}
		vf := *t.ValidFrom
		if !vf.Before(today) && (earliestUpcoming == nil || vf.Before(*earliestUpcoming)) {
			earliestUpcoming = &vf
		}
		if latest == nil || vf.After(*latest) {
			latest = &vf
		}
	}

	switch {
	case earliestUpcoming != nil:
		return *earliestUpcoming, true
	case latest != nil:
		return *latest, true
	default:
		return event.StartTime, true
	}
}

func isValidForListing(t *Ticket, now time.Time) bool {
	if t.IsSoldOut {
		return false
	}
	if t.SalesEnd != nil && !t.SalesEnd.After(now) {
		return false
	}
	if t.ValidTo != nil && !t.ValidTo.After(now) {
		return false
	}
	return true
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
