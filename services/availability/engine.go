package availability

import (
	"context"
	"fmt"
	"time"

	"agendo/models"
)

// BusyFetcher supplies the busy intervals blocking bookings on an
// instance's calendar.
type BusyFetcher interface {
	BusyIntervals(ctx context.Context, instanceID string, from, to time.Time) ([]models.BusyInterval, error)
}

// Engine computes free/busy slots for a tenant's calendar over a date
// window. Results are a snapshot: valid only until the next write.
type Engine struct {
	Busy BusyFetcher
}

// NewEngine creates an availability engine over the given busy source.
func NewEngine(busy BusyFetcher) *Engine {
	return &Engine{Busy: busy}
}

// Compute walks [workStart, workEnd) on the given date in slotDuration
// increments and flags each candidate against the calendar's busy
// intervals. A trailing partial slot is truncated, never returned
// under-length. workStart >= workEnd yields an empty result.
//
// A busy fetch failure is a hard error: the engine must never report
// false availability by treating it as "no busy intervals".
func (e *Engine) Compute(ctx context.Context, instanceID string, date time.Time, workStart, workEnd string, slotDuration time.Duration) ([]models.Slot, error) {
	dayStart, err := atTimeOfDay(date, workStart)
	if err != nil {
		return nil, fmt.Errorf("invalid work start %q: %w", workStart, err)
	}
	dayEnd, err := atTimeOfDay(date, workEnd)
	if err != nil {
		return nil, fmt.Errorf("invalid work end %q: %w", workEnd, err)
	}
	if !dayStart.Before(dayEnd) || slotDuration <= 0 {
		return []models.Slot{}, nil
	}

	busy, err := e.Busy.BusyIntervals(ctx, instanceID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch busy intervals: %w", err)
	}

	var slots []models.Slot
	for start := dayStart; !start.Add(slotDuration).After(dayEnd); start = start.Add(slotDuration) {
		end := start.Add(slotDuration)
		slots = append(slots, models.Slot{
			Start:     start,
			End:       end,
			Available: !overlapsAny(busy, start, end),
		})
	}
	return slots, nil
}

// overlapsAny applies the half-open predicate against each busy
// interval: slot.start < busy.end && slot.end > busy.start. A slot
// ending exactly where a busy interval starts is free.
func overlapsAny(busy []models.BusyInterval, start, end time.Time) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// atTimeOfDay anchors an HH:MM wall-clock time onto the given date,
// preserving the date's location.
func atTimeOfDay(date time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		t.Hour(), t.Minute(), 0, 0, date.Location()), nil
}
