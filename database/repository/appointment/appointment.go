package appointmentRepo

import (
	"context"
	"time"

	"agendo/models"
)

// AppointmentRepository persists committed bookings. Cancellation is a
// status flip; rows are never removed.
type AppointmentRepository interface {
	Insert(ctx context.Context, appt *models.Appointment) error
	GetByID(ctx context.Context, id string) (*models.Appointment, error)
	// FindConfirmedOverlapping returns confirmed appointments of the
	// instance whose [start, end) interval overlaps the given one,
	// ordered by creation time then id.
	FindConfirmedOverlapping(ctx context.Context, instanceID string, start, end time.Time) ([]models.Appointment, error)
	SetStatus(ctx context.Context, id, status string) error
	SetCalendarEventID(ctx context.Context, id, eventID string) error
	ListByInstance(ctx context.Context, instanceID string, from, to time.Time) ([]models.Appointment, error)
}
