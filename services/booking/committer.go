package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appointmentRepo "agendo/database/repository/appointment"
	"agendo/models"
	"agendo/services/availability"
	"agendo/services/calendar"
	"agendo/utils"
)

// ErrConflict is returned when the requested slot is no longer free at
// commit time. The caller re-runs availability and re-prompts; it must
// never retry the same slot blindly.
var ErrConflict = errors.New("slot already booked")

const persistRetryBase = 200 * time.Millisecond

// EventCreator inserts the committed appointment on the instance's
// external calendar.
type EventCreator interface {
	CreateEvent(ctx context.Context, instanceID string, input calendar.EventInput) (string, error)
}

// ReminderScheduler enqueues a reminder to be delivered before the
// appointment starts.
type ReminderScheduler interface {
	ScheduleReminder(ctx context.Context, payload models.ReminderPayload, at time.Time) error
}

// Committer owns the commit path for bookings. All writes of confirmed
// appointments go through AttemptBook so the no-overlap invariant is
// enforced in exactly one place.
type Committer struct {
	Appointments appointmentRepo.AppointmentRepository
	Busy         availability.BusyFetcher
	Events       EventCreator
	Reminders    ReminderScheduler
	ReminderLead time.Duration
}

// NewCommitter wires a booking committer. Reminders may be nil when no
// background queue is configured.
func NewCommitter(appts appointmentRepo.AppointmentRepository, busy availability.BusyFetcher, events EventCreator, reminders ReminderScheduler, reminderLead time.Duration) *Committer {
	return &Committer{
		Appointments: appts,
		Busy:         busy,
		Events:       events,
		Reminders:    reminders,
		ReminderLead: reminderLead,
	}
}

// AttemptBook commits [start, end) for the customer on the instance.
// Availability shown earlier in the conversation is only a snapshot, so
// the slot is re-validated here against both the external calendar and
// our own confirmed appointments before anything is written.
//
// Two concurrent attempts on the same slot can both pass the checks;
// the store's unique constraint on a confirmed (instance, start) pair
// then rejects the second insert, which surfaces here as ErrConflict.
// The post-insert re-read stays as a fallback for overlapping intervals
// with distinct starts, where the constraint cannot apply.
func (c *Committer) AttemptBook(ctx context.Context, instanceID string, start, end time.Time, customer models.Customer) (*models.Appointment, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("invalid interval: start %s not before end %s", start, end)
	}

	busy, err := c.Busy.BusyIntervals(ctx, instanceID, start, end)
	if err != nil {
		return nil, err
	}
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return nil, ErrConflict
		}
	}

	existing, err := c.Appointments.FindConfirmedOverlapping(ctx, instanceID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing appointments: %w", err)
	}
	if len(existing) > 0 {
		return nil, ErrConflict
	}

	now := time.Now()
	appt := &models.Appointment{
		ID:         uuid.NewString(),
		InstanceID: instanceID,
		Start:      start,
		End:        end,
		Customer:   customer,
		Status:     models.AppointmentStatusConfirmed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.Appointments.Insert(ctx, appt); err != nil {
		if errors.Is(err, appointmentRepo.ErrSlotTaken) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to insert appointment: %w", err)
	}

	if err := c.resolveRace(ctx, appt); err != nil {
		return nil, err
	}

	eventID, err := c.Events.CreateEvent(ctx, instanceID, calendar.EventInput{
		Summary:     fmt.Sprintf("Appointment: %s", customer.Name),
		Description: fmt.Sprintf("Booked via chat for %s (%s)", customer.Name, customer.Contact),
		Start:       start,
		End:         end,
	})
	if err != nil {
		c.rollback(ctx, appt.ID)
		return nil, err
	}
	appt.CalendarEventID = eventID

	// The event already exists externally, so linking it locally must
	// survive transient store errors; the write is idempotent.
	logger := utils.GetLogger()
	if err := utils.Retry(ctx, 3, persistRetryBase, func() error {
		return c.Appointments.SetCalendarEventID(ctx, appt.ID, eventID)
	}); err != nil {
		logger.Error("failed to link calendar event to appointment",
			zap.String("appointmentID", appt.ID),
			zap.String("eventID", eventID),
			zap.Error(err))
	}

	c.scheduleReminder(ctx, appt)

	logger.Info("appointment booked",
		zap.String("appointmentID", appt.ID),
		zap.String("instanceID", instanceID),
		zap.Time("start", start))
	return appt, nil
}

// resolveRace re-reads the overlapping confirmed appointments after our
// insert. If any of them was created before ours (ties broken by id),
// our insert lost and is cancelled.
func (c *Committer) resolveRace(ctx context.Context, appt *models.Appointment) error {
	overlapping, err := c.Appointments.FindConfirmedOverlapping(ctx, appt.InstanceID, appt.Start, appt.End)
	if err != nil {
		// Can't prove we won; withdraw rather than risk a double booking.
		c.rollback(ctx, appt.ID)
		return fmt.Errorf("failed to re-validate appointment: %w", err)
	}
	for _, other := range overlapping {
		if other.ID == appt.ID {
			continue
		}
		if other.CreatedAt.Before(appt.CreatedAt) ||
			(other.CreatedAt.Equal(appt.CreatedAt) && other.ID < appt.ID) {
			c.rollback(ctx, appt.ID)
			return ErrConflict
		}
	}
	return nil
}

func (c *Committer) rollback(ctx context.Context, apptID string) {
	if err := c.Appointments.SetStatus(ctx, apptID, models.AppointmentStatusCancelled); err != nil {
		utils.GetLogger().Error("failed to cancel losing appointment",
			zap.String("appointmentID", apptID), zap.Error(err))
	}
}

func (c *Committer) scheduleReminder(ctx context.Context, appt *models.Appointment) {
	if c.Reminders == nil || c.ReminderLead <= 0 {
		return
	}
	at := appt.Start.Add(-c.ReminderLead)
	if at.Before(time.Now()) {
		return
	}
	payload := models.ReminderPayload{
		AppointmentID: appt.ID,
		InstanceID:    appt.InstanceID,
		To:            appt.Customer.Contact,
		Body: fmt.Sprintf("Reminder: your appointment is tomorrow at %s. See you then, %s!",
			appt.Start.Format("15:04"), appt.Customer.Name),
	}
	if err := c.Reminders.ScheduleReminder(ctx, payload, at); err != nil {
		// Reminders are best effort; the booking itself stands.
		utils.GetLogger().Warn("failed to schedule reminder",
			zap.String("appointmentID", appt.ID), zap.Error(err))
	}
}
