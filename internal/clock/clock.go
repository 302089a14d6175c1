// Package clock provides the time source used by policies and workers.
// All instants are normalized to a single reference offset so calendar-day
// arithmetic (refund deadlines, same-day events) is stable across hosts.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// TimeSource returns the current instant in the reference offset
type TimeSource interface {
	Now() time.Time
	Location() *time.Location
}

// ParseOffset parses "+03:00" style offsets into a fixed zone
func ParseOffset(offset string) (*time.Location, error) {
	if offset == "" || offset == "Z" || offset == "UTC" {
		return time.UTC, nil
	}
	t, err := time.Parse("-07:00", offset)
	if err != nil {
		return nil, fmt.Errorf("invalid utc offset %q: %w", offset, err)
	}
	_, secs := t.Zone()
	return time.FixedZone("UTC"+offset, secs), nil
}

// System reads the wall clock
type System struct {
	loc *time.Location
}

// NewSystem creates a wall-clock source normalized to loc
func NewSystem(loc *time.Location) *System {
	if loc == nil {
		loc = time.UTC
	}
	return &System{loc: loc}
}

func (s *System) Now() time.Time           { return time.Now().In(s.loc) }
func (s *System) Location() *time.Location { return s.loc }

// Fixed is a settable clock for tests
type Fixed struct {
	mu  sync.RWMutex
	now time.Time
	loc *time.Location
}

// NewFixed creates a clock frozen at now
func NewFixed(now time.Time) *Fixed {
	return &Fixed{now: now, loc: now.Location()}
}

func (f *Fixed) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.now
}

func (f *Fixed) Location() *time.Location { return f.loc }

// Set moves the clock to t
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t.In(f.loc)
	f.mu.Unlock()
}

// Advance moves the clock forward by d
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
