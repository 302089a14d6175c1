package domain

import "time"

// RefundDeadline returns the last instant at which p may be refunded.
// The window is counted in calendar days of loc before the purchase's validFrom.
// A zero-day window yields the zero time, which is before any real instant.
func RefundDeadline(p *Purchase, loc *time.Location) (time.Time, error) {
	if p.RefundDateCount == nil || p.ValidFrom == nil {
		return time.Time{}, ErrRefundForbidden.WithDetail("purchaseId", p.ID)
	}
	days := *p.RefundDateCount
	if days == 0 {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	return p.ValidFrom.In(loc).AddDate(0, 0, -days), nil
}

// CheckRefundable returns nil when p can be refunded at now
func CheckRefundable(p *Purchase, now time.Time, loc *time.Location) error {
	deadline, err := RefundDeadline(p, loc)
	if err != nil {
		return err
	}
	if now.After(deadline) {
		e := ErrRefundExpired.WithDetail("purchaseId", p.ID)
		if !deadline.IsZero() {
			e = e.WithDetail("deadline", deadline)
		}
		return e
	}
	return nil
}

// RefundState is the buyer-facing view of a purchase's refund window
type RefundState int

const (
	// RefundOpen means the deadline is still ahead
	RefundOpen RefundState = iota
	// RefundPassed means the deadline has passed
	RefundPassed
	// RefundUnavailable means there never was a refund window
	RefundUnavailable
)

// RefundProjection pairs a state with its deadline (set only for RefundOpen)
type RefundProjection struct {
	State    RefundState
	Deadline time.Time
}

// ProjectRefund computes what a buyer sees for p at now
func ProjectRefund(p *Purchase, now time.Time, loc *time.Location) RefundProjection {
	if p.RefundDateCount == nil || p.ValidFrom == nil || *p.RefundDateCount == 0 {
		return RefundProjection{State: RefundUnavailable}
	}
	deadline, _ := RefundDeadline(p, loc)
	if now.After(deadline) {
		return RefundProjection{State: RefundPassed}
	}
	return RefundProjection{State: RefundOpen, Deadline: deadline}
}

// RefundWindowLowered reports whether changing the event default from prev to next must
// be pushed down to existing purchases. Only a decrease propagates.
func RefundWindowLowered(prev, next *int) bool {
	if next == nil {
		return false
	}
	return prev == nil || *next < *prev
}
