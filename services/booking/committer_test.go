package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appointmentRepo "agendo/database/repository/appointment"
	"agendo/models"
	"agendo/services/calendar"
)

type memoryApptRepo struct {
	mu    sync.Mutex
	appts map[string]*models.Appointment

	// findHook, when set, overrides FindConfirmedOverlapping results
	// per call so the post-insert re-validation can be steered.
	findHook func(call int) []models.Appointment
	findCall int

	// insertHook runs before an insert takes the lock so a test can
	// hold one writer while another completes.
	insertHook func(appt *models.Appointment)
}

func newMemoryApptRepo() *memoryApptRepo {
	return &memoryApptRepo{appts: make(map[string]*models.Appointment)}
}

func (r *memoryApptRepo) Insert(_ context.Context, appt *models.Appointment) error {
	if r.insertHook != nil {
		r.insertHook(appt)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// Mirror the unique partial index: one confirmed appointment per
	// (instance, start).
	for _, a := range r.appts {
		if a.InstanceID == appt.InstanceID && a.Status == models.AppointmentStatusConfirmed &&
			a.Start.Equal(appt.Start) {
			return appointmentRepo.ErrSlotTaken
		}
	}
	cp := *appt
	r.appts[appt.ID] = &cp
	return nil
}

func (r *memoryApptRepo) GetByID(_ context.Context, id string) (*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.appts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, errors.New("not found")
}

func (r *memoryApptRepo) FindConfirmedOverlapping(_ context.Context, instanceID string, start, end time.Time) ([]models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCall++
	if r.findHook != nil {
		return r.findHook(r.findCall), nil
	}
	var out []models.Appointment
	for _, a := range r.appts {
		if a.InstanceID == instanceID && a.Status == models.AppointmentStatusConfirmed &&
			start.Before(a.End) && end.After(a.Start) {
			out = append(out, *a)
		}
	}
	// Creation order, ties by id, matching the mongo sort.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.Before(out[i].CreatedAt) ||
				(out[j].CreatedAt.Equal(out[i].CreatedAt) && out[j].ID < out[i].ID) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (r *memoryApptRepo) SetStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.appts[id]; ok {
		a.Status = status
	}
	return nil
}

func (r *memoryApptRepo) SetCalendarEventID(_ context.Context, id, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.appts[id]; ok {
		a.CalendarEventID = eventID
	}
	return nil
}

func (r *memoryApptRepo) ListByInstance(_ context.Context, instanceID string, from, to time.Time) ([]models.Appointment, error) {
	return nil, nil
}

type stubBusy struct {
	busy []models.BusyInterval
	err  error
}

func (s stubBusy) BusyIntervals(_ context.Context, _ string, _, _ time.Time) ([]models.BusyInterval, error) {
	return s.busy, s.err
}

type fakeEvents struct {
	mu      sync.Mutex
	created int
	err     error
}

func (f *fakeEvents) CreateEvent(_ context.Context, _ string, _ calendar.EventInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.created++
	return "evt-123", nil
}

type fakeReminders struct {
	mu        sync.Mutex
	scheduled []models.ReminderPayload
}

func (f *fakeReminders) ScheduleReminder(_ context.Context, p models.ReminderPayload, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, p)
	return nil
}

func slotAt(hour int) (time.Time, time.Time) {
	start := time.Date(2026, 9, 14, hour, 0, 0, 0, time.UTC)
	return start, start.Add(time.Hour)
}

func TestAttemptBook_Success(t *testing.T) {
	repo := newMemoryApptRepo()
	events := &fakeEvents{}
	reminders := &fakeReminders{}
	c := NewCommitter(repo, stubBusy{}, events, reminders, time.Hour)

	start, end := slotAt(10)
	appt, err := c.AttemptBook(context.Background(), "inst-1", start, end,
		models.Customer{Name: "Ana Torres", Contact: "34600111222"})
	require.NoError(t, err)

	assert.Equal(t, models.AppointmentStatusConfirmed, appt.Status)
	assert.Equal(t, "evt-123", appt.CalendarEventID)
	assert.Equal(t, 1, events.created)

	stored, err := repo.GetByID(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "evt-123", stored.CalendarEventID)
	require.Len(t, reminders.scheduled, 1)
	assert.Equal(t, appt.ID, reminders.scheduled[0].AppointmentID)
}

func TestAttemptBook_CalendarBusyConflict(t *testing.T) {
	start, end := slotAt(10)
	repo := newMemoryApptRepo()
	events := &fakeEvents{}
	c := NewCommitter(repo, stubBusy{busy: []models.BusyInterval{{Start: start, End: end}}}, events, nil, 0)

	_, err := c.AttemptBook(context.Background(), "inst-1", start, end, models.Customer{Name: "Ana"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 0, events.created)
	assert.Empty(t, repo.appts, "nothing may be written on a stale slot")
}

func TestAttemptBook_ExistingAppointmentConflict(t *testing.T) {
	start, end := slotAt(10)
	repo := newMemoryApptRepo()
	require.NoError(t, repo.Insert(context.Background(), &models.Appointment{
		ID: "a-1", InstanceID: "inst-1", Start: start, End: end,
		Status: models.AppointmentStatusConfirmed, CreatedAt: time.Now(),
	}))
	c := NewCommitter(repo, stubBusy{}, &fakeEvents{}, nil, 0)

	_, err := c.AttemptBook(context.Background(), "inst-1", start, end, models.Customer{Name: "Ana"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAttemptBook_LosesInsertRace(t *testing.T) {
	start, end := slotAt(10)
	repo := newMemoryApptRepo()
	rival := models.Appointment{
		ID: "a-rival", InstanceID: "inst-1", Start: start, End: end,
		Status:    models.AppointmentStatusConfirmed,
		CreatedAt: time.Now().Add(-time.Second),
	}
	// Pre-check sees a free slot; the re-validation after our insert
	// discovers a rival created earlier.
	repo.findHook = func(call int) []models.Appointment {
		if call == 1 {
			return nil
		}
		repo.findHook = nil // not needed past the re-validation
		var ours []models.Appointment
		for _, a := range repo.appts {
			ours = append(ours, *a)
		}
		return append([]models.Appointment{rival}, ours...)
	}
	events := &fakeEvents{}
	c := NewCommitter(repo, stubBusy{}, events, nil, 0)

	_, err := c.AttemptBook(context.Background(), "inst-1", start, end, models.Customer{Name: "Ana"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 0, events.created, "the losing attempt must not create an external event")

	for _, a := range repo.appts {
		assert.Equal(t, models.AppointmentStatusCancelled, a.Status)
	}
}

func TestAttemptBook_ExternalCreateFailureRollsBack(t *testing.T) {
	start, end := slotAt(10)
	repo := newMemoryApptRepo()
	events := &fakeEvents{err: errors.New("calendar rejected event")}
	c := NewCommitter(repo, stubBusy{}, events, nil, 0)

	_, err := c.AttemptBook(context.Background(), "inst-1", start, end, models.Customer{Name: "Ana"})
	require.Error(t, err)

	for _, a := range repo.appts {
		assert.Equal(t, models.AppointmentStatusCancelled, a.Status,
			"a booking without its external event must not stay confirmed")
	}
}

func TestAttemptBook_ConcurrentSameSlot(t *testing.T) {
	start, end := slotAt(10)
	repo := newMemoryApptRepo()
	events := &fakeEvents{}
	c := NewCommitter(repo, stubBusy{}, events, nil, 0)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.AttemptBook(context.Background(), "inst-1", start, end,
				models.Customer{Name: "Racer", Contact: "123"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)

	confirmed := 0
	for _, a := range repo.appts {
		if a.Status == models.AppointmentStatusConfirmed {
			confirmed++
		}
	}
	assert.Equal(t, 1, confirmed, "exactly one confirmed appointment may survive")
}

func TestAttemptBook_StalledEarlierAttemptConflicts(t *testing.T) {
	start, end := slotAt(10)
	repo := newMemoryApptRepo()
	events := &fakeEvents{}
	c := NewCommitter(repo, stubBusy{}, events, nil, 0)

	held := make(chan struct{})
	release := make(chan struct{})
	repo.insertHook = func(a *models.Appointment) {
		if a.Customer.Name == "Blanca" {
			close(held)
			<-release
		}
	}

	// Blanca's attempt starts first, passes the pre-checks, and stalls
	// just before its insert lands.
	blancaErr := make(chan error, 1)
	go func() {
		_, err := c.AttemptBook(context.Background(), "inst-1", start, end,
			models.Customer{Name: "Blanca", Contact: "456"})
		blancaErr <- err
	}()
	<-held

	// Alba books the same slot end to end while Blanca is stalled. Her
	// re-validation cannot see Blanca's record, so only the store's
	// uniqueness guarantee can stop the late insert.
	appt, err := c.AttemptBook(context.Background(), "inst-1", start, end,
		models.Customer{Name: "Alba", Contact: "123"})
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentStatusConfirmed, appt.Status)

	close(release)
	assert.ErrorIs(t, <-blancaErr, ErrConflict)

	confirmed := 0
	for _, a := range repo.appts {
		if a.Status == models.AppointmentStatusConfirmed {
			confirmed++
		}
	}
	assert.Equal(t, 1, confirmed, "exactly one confirmed appointment may survive")
	assert.Equal(t, 1, events.created, "the stalled attempt must not create an external event")
}

func TestAttemptBook_InvalidInterval(t *testing.T) {
	c := NewCommitter(newMemoryApptRepo(), stubBusy{}, &fakeEvents{}, nil, 0)
	start, _ := slotAt(10)
	_, err := c.AttemptBook(context.Background(), "inst-1", start, start, models.Customer{})
	assert.Error(t, err)
}
