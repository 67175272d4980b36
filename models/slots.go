package models

import "time"

// Slot is a computed candidate appointment interval. Ephemeral: derived
// fresh on every availability request, never persisted.
type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

// BusyInterval is an existing calendar event's [start, end) range.
type BusyInterval struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Summary string    `json:"summary,omitempty"`
}

// Overlaps applies the half-open overlap predicate. Boundary-touching
// intervals (end == other start) do not overlap.
func (b BusyInterval) Overlaps(start, end time.Time) bool {
	return start.Before(b.End) && end.After(b.Start)
}
