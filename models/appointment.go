package models

import "time"

// Appointment statuses. Cancelled records are kept for audit, never
// hard-deleted.
const (
	AppointmentStatusConfirmed = "confirmed"
	AppointmentStatusCancelled = "cancelled"
)

// Customer identifies who an appointment is for.
type Customer struct {
	Name    string `bson:"name" json:"name"`
	Contact string `bson:"contact" json:"contact"`
}

// Appointment is a committed booking. For one instance no two confirmed
// appointments may have overlapping [start, end) intervals.
type Appointment struct {
	ID              string    `bson:"id" json:"id"`
	InstanceID      string    `bson:"instanceId" json:"instanceId"`
	Start           time.Time `bson:"start" json:"start"`
	End             time.Time `bson:"end" json:"end"`
	Customer        Customer  `bson:"customer" json:"customer"`
	CalendarEventID string    `bson:"calendarEventId,omitempty" json:"calendarEventId,omitempty"`
	Status          string    `bson:"status" json:"status"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt" json:"updatedAt"`
}
