package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	instanceRepo "agendo/database/repository/instance"
	"agendo/models"
	"agendo/services/booking"
	"agendo/services/intelligence"
)

type fakeInstanceRepo struct {
	mu        sync.Mutex
	instances map[string]*models.Instance
}

func newFakeInstanceRepo(insts ...*models.Instance) *fakeInstanceRepo {
	r := &fakeInstanceRepo{instances: make(map[string]*models.Instance)}
	for _, inst := range insts {
		r.instances[inst.ID] = inst
	}
	return r
}

func (r *fakeInstanceRepo) GetByID(_ context.Context, id string) (*models.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[id]; ok {
		cp := *inst
		return &cp, nil
	}
	return nil, instanceRepo.ErrNotFound
}

func (r *fakeInstanceRepo) GetByName(ctx context.Context, name string) (*models.Instance, error) {
	r.mu.Lock()
	for _, inst := range r.instances {
		if inst.Name == name {
			cp := *inst
			r.mu.Unlock()
			return &cp, nil
		}
	}
	r.mu.Unlock()
	return nil, instanceRepo.ErrNotFound
}

func (r *fakeInstanceRepo) List(_ context.Context) ([]models.Instance, error) { return nil, nil }

func (r *fakeInstanceRepo) Upsert(_ context.Context, inst *models.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *inst
	r.instances[inst.ID] = &cp
	return nil
}

func (r *fakeInstanceRepo) UpdateStatus(_ context.Context, id, status string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[id]; ok {
		inst.Status = status
	}
	return nil
}

func (r *fakeInstanceRepo) SetQRCode(_ context.Context, id, qr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[id]; ok {
		inst.QRCode = qr
	}
	return nil
}

func (r *fakeInstanceRepo) UpdateAgentConfig(_ context.Context, id string, cfg models.AgentConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[id]; ok {
		inst.AgentConfig = cfg
	}
	return nil
}

type stubAvailability struct {
	slots []models.Slot
	err   error
}

func (s stubAvailability) Compute(_ context.Context, _ string, _ time.Time, _, _ string, _ time.Duration) ([]models.Slot, error) {
	return s.slots, s.err
}

type stubBooking struct {
	appt *models.Appointment
	err  error

	mu    sync.Mutex
	calls int
}

func (s *stubBooking) AttemptBook(_ context.Context, instanceID string, start, end time.Time, customer models.Customer) (*models.Appointment, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	appt := *s.appt
	appt.InstanceID = instanceID
	appt.Start, appt.End = start, end
	appt.Customer = customer
	return &appt, nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) SendText(_ context.Context, _, _, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return nil
}

func (r *recordingSender) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return ""
	}
	return r.sent[len(r.sent)-1]
}

func testInstance() *models.Instance {
	return &models.Instance{
		ID:     "inst-1",
		Name:   "clinic-madrid",
		Status: models.InstanceStatusConnected,
		AgentConfig: models.AgentConfig{
			AgentName:         "Clara",
			WorkingHoursStart: "00:00",
			WorkingHoursEnd:   "23:59",
		},
	}
}

func newTestProcessor(repo *fakeInstanceRepo, avail AvailabilityProvider, book BookingService, sender *recordingSender) *Processor {
	return &Processor{
		Instances:        repo,
		Tracker:          NewTracker(NewMemoryStateStore(), time.Hour),
		Classifier:       intelligence.KeywordClassifier{},
		Availability:     avail,
		Booking:          book,
		Messenger:        sender,
		SlotDuration:     time.Hour,
		CallTimeout:      5 * time.Second,
		AutoReplyDefault: true,
		Defaults: models.AgentConfig{
			WorkingHoursStart: "00:00",
			WorkingHoursEnd:   "23:59",
		},
	}
}

func inbound(text string) models.InboundEvent {
	return models.InboundEvent{
		InstanceID: "clinic-madrid",
		Kind:       models.EventKindMessage,
		Sender:     "34600111222",
		Text:       text,
		MessageID:  "MSG-" + text,
		Timestamp:  time.Now(),
	}
}

func TestProcessor_GreetingReply(t *testing.T) {
	sender := &recordingSender{}
	p := newTestProcessor(newFakeInstanceRepo(testInstance()), stubAvailability{}, &stubBooking{}, sender)

	p.Handle(inbound("hola"))

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.last(), "Clara")
}

func TestProcessor_FullBookingFlow(t *testing.T) {
	future := time.Now().AddDate(0, 1, 0)
	dateStr := future.Format("02/01/2006")
	slotStart := time.Date(future.Year(), future.Month(), future.Day(), 10, 0, 0, 0, time.Local)

	sender := &recordingSender{}
	avail := stubAvailability{slots: []models.Slot{
		{Start: slotStart, End: slotStart.Add(time.Hour), Available: true},
	}}
	book := &stubBooking{appt: &models.Appointment{
		ID:     "appt-1",
		Status: models.AppointmentStatusConfirmed,
	}}
	p := newTestProcessor(newFakeInstanceRepo(testInstance()), avail, book, sender)

	p.Handle(inbound("quiero una cita"))
	assert.Contains(t, sender.last(), "date and time")

	p.Handle(inbound("el " + dateStr + " a las 10:00"))
	assert.Contains(t, sender.last(), "full name")

	p.Handle(inbound("Ana Torres"))
	assert.Contains(t, sender.last(), "confirm")

	p.Handle(inbound("si"))
	assert.Equal(t, 1, book.calls)
	assert.Contains(t, sender.last(), "confirmed")
	assert.Contains(t, sender.last(), "Ana Torres")

	// The conversation finished; the sender's next message restarts it.
	state, err := p.Tracker.GetOrCreate(context.Background(), "inst-1", "34600111222")
	require.NoError(t, err)
	assert.Equal(t, models.StageDone, state.Stage)
}

func TestProcessor_BookingConflictReprompts(t *testing.T) {
	future := time.Now().AddDate(0, 1, 0)
	slotStart := time.Date(future.Year(), future.Month(), future.Day(), 15, 0, 0, 0, time.Local)

	sender := &recordingSender{}
	avail := stubAvailability{slots: []models.Slot{
		{Start: slotStart, End: slotStart.Add(time.Hour), Available: true},
	}}
	book := &stubBooking{err: booking.ErrConflict}
	p := newTestProcessor(newFakeInstanceRepo(testInstance()), avail, book, sender)

	// Seed a conversation already awaiting confirmation.
	require.NoError(t, p.Tracker.Save(context.Background(), models.ConversationState{
		InstanceID:      "inst-1",
		Sender:          "34600111222",
		Stage:           models.StageAwaitingConfirmation,
		CandidateStart:  slotStart,
		CandidateEnd:    slotStart.Add(time.Hour),
		CustomerName:    "Ana Torres",
		CustomerContact: "34600111222",
		UpdatedAt:       time.Now(),
	}))

	p.Handle(inbound("si"))

	assert.Contains(t, strings.ToLower(sender.last()), "taken")
	state, err := p.Tracker.GetOrCreate(context.Background(), "inst-1", "34600111222")
	require.NoError(t, err)
	assert.Equal(t, models.StageCollectingInfo, state.Stage)
	assert.False(t, state.HasCandidate(), "the stale candidate must be cleared")
}

func TestProcessor_AfterHoursReply(t *testing.T) {
	inst := testInstance()
	// An always-closed window keeps the test deterministic.
	inst.AgentConfig.WorkingHoursStart = "00:00"
	inst.AgentConfig.WorkingHoursEnd = "00:00"

	sender := &recordingSender{}
	p := newTestProcessor(newFakeInstanceRepo(inst), stubAvailability{}, &stubBooking{}, sender)

	p.Handle(inbound("hola"))
	assert.Contains(t, sender.last(), "business hours")
}

func TestProcessor_AutoReplyDisabled(t *testing.T) {
	inst := testInstance()
	off := false
	inst.AgentConfig.AutoReplyEnabled = &off

	sender := &recordingSender{}
	p := newTestProcessor(newFakeInstanceRepo(inst), stubAvailability{}, &stubBooking{}, sender)

	p.Handle(inbound("hola"))
	assert.Empty(t, sender.sent)
}

func TestProcessor_ConnectionUpdate(t *testing.T) {
	repo := newFakeInstanceRepo(testInstance())
	p := newTestProcessor(repo, stubAvailability{}, &stubBooking{}, &recordingSender{})

	p.Handle(models.InboundEvent{
		InstanceID:      "clinic-madrid",
		Kind:            models.EventKindConnectionUpdate,
		ConnectionState: "close",
	})

	inst, err := repo.GetByID(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusDisconnected, inst.Status)
}

func TestProcessor_RegistersUnknownInstance(t *testing.T) {
	repo := newFakeInstanceRepo()
	p := newTestProcessor(repo, stubAvailability{}, &stubBooking{}, &recordingSender{})

	p.Handle(models.InboundEvent{
		InstanceID:      "fresh-instance",
		Kind:            models.EventKindConnectionUpdate,
		ConnectionState: "open",
	})

	inst, err := repo.GetByName(context.Background(), "fresh-instance")
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusConnected, inst.Status)
}

func TestProcessor_AvailabilityFailureFallsBack(t *testing.T) {
	sender := &recordingSender{}
	avail := stubAvailability{err: errors.New("calendar down")}
	p := newTestProcessor(newFakeInstanceRepo(testInstance()), avail, &stubBooking{}, sender)

	future := time.Now().AddDate(0, 1, 0).Format("02/01/2006")
	p.Handle(inbound("cita el " + future + " 10:00"))
	p.Handle(inbound("Ana Torres"))

	assert.Contains(t, sender.last(), "not sure I understood",
		"an internal failure must never leak to the customer")
}
