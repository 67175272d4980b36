package conversation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	instanceRepo "agendo/database/repository/instance"
	"agendo/models"
	"agendo/services/booking"
	"agendo/services/credentials"
	"agendo/services/intelligence"
	"agendo/services/messaging"
	"agendo/utils"
)

// AvailabilityProvider computes the slot grid for an instance on a date.
type AvailabilityProvider interface {
	Compute(ctx context.Context, instanceID string, date time.Time, workStart, workEnd string, slotDuration time.Duration) ([]models.Slot, error)
}

// BookingService commits an appointment, re-validating the slot.
type BookingService interface {
	AttemptBook(ctx context.Context, instanceID string, start, end time.Time, customer models.Customer) (*models.Appointment, error)
}

// Processor executes normalized inbound events off the dispatcher
// lanes. Within one lane events arrive strictly in order, so reading
// and writing conversation state here is race free per sender.
type Processor struct {
	Instances    instanceRepo.InstanceRepository
	Tracker      *Tracker
	Classifier   intelligence.Classifier
	Availability AvailabilityProvider
	Booking      BookingService
	Messenger    messaging.Sender

	SlotDuration     time.Duration
	CallTimeout      time.Duration
	AutoReplyDefault bool
	Defaults         models.AgentConfig
}

// Handle is the dispatcher's per-event entry point. It must never
// panic out and never block forever: every external call gets its own
// deadline.
func (p *Processor) Handle(ev models.InboundEvent) {
	logger := utils.GetLogger()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing event",
				zap.String("instance", ev.InstanceID),
				zap.String("kind", ev.Kind),
				zap.Any("panic", r))
		}
	}()

	switch ev.Kind {
	case models.EventKindConnectionUpdate:
		p.handleConnectionUpdate(ev)
	case models.EventKindQRUpdate:
		p.handleQRUpdate(ev)
	case models.EventKindMessage:
		p.handleMessage(ev)
	default:
		logger.Debug("ignoring event of unknown kind", zap.String("kind", ev.Kind))
	}
}

func (p *Processor) callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), p.CallTimeout)
}

// instanceFor resolves the webhook's instance name, registering
// first-seen instances on the fly so a gateway-side creation never has
// to be coordinated with us.
func (p *Processor) instanceFor(ctx context.Context, name string) (*models.Instance, error) {
	inst, err := p.Instances.GetByName(ctx, name)
	if err == nil {
		return inst, nil
	}
	if !errors.Is(err, instanceRepo.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	inst = &models.Instance{
		ID:          name,
		Name:        name,
		Status:      models.InstanceStatusPending,
		AgentConfig: p.Defaults,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.Instances.Upsert(ctx, inst); err != nil {
		return nil, err
	}
	utils.GetLogger().Info("registered new instance from webhook",
		zap.String("instance", name))
	return inst, nil
}

func (p *Processor) handleConnectionUpdate(ev models.InboundEvent) {
	ctx, cancel := p.callCtx()
	defer cancel()

	inst, err := p.instanceFor(ctx, ev.InstanceID)
	if err != nil {
		utils.GetLogger().Error("failed to resolve instance for connection update",
			zap.String("instance", ev.InstanceID), zap.Error(err))
		return
	}

	status := connectionStatus(ev.ConnectionState)
	if status == "" {
		utils.GetLogger().Debug("ignoring unknown connection state",
			zap.String("state", ev.ConnectionState))
		return
	}
	if err := p.Instances.UpdateStatus(ctx, inst.ID, status, time.Now()); err != nil {
		utils.GetLogger().Error("failed to update instance status",
			zap.String("instance", inst.ID), zap.Error(err))
		return
	}
	utils.GetLogger().Info("instance connection state changed",
		zap.String("instance", inst.ID), zap.String("status", status))
}

func connectionStatus(state string) string {
	switch state {
	case "open":
		return models.InstanceStatusConnected
	case "connecting":
		return models.InstanceStatusConnecting
	case "close", "closed":
		return models.InstanceStatusDisconnected
	default:
		return ""
	}
}

func (p *Processor) handleQRUpdate(ev models.InboundEvent) {
	ctx, cancel := p.callCtx()
	defer cancel()

	inst, err := p.instanceFor(ctx, ev.InstanceID)
	if err != nil {
		utils.GetLogger().Error("failed to resolve instance for qr update",
			zap.String("instance", ev.InstanceID), zap.Error(err))
		return
	}
	if err := p.Instances.SetQRCode(ctx, inst.ID, ev.QRCode); err != nil {
		utils.GetLogger().Error("failed to store qr code",
			zap.String("instance", inst.ID), zap.Error(err))
	}
}

func (p *Processor) handleMessage(ev models.InboundEvent) {
	logger := utils.GetLogger().With(
		zap.String("instance", ev.InstanceID),
		zap.String("sender", ev.Sender))

	ctx, cancel := p.callCtx()
	inst, err := p.instanceFor(ctx, ev.InstanceID)
	cancel()
	if err != nil {
		logger.Error("failed to resolve instance", zap.Error(err))
		return
	}
	cfg := p.configFor(inst)
	now := time.Now()

	if !withinWorkingHours(now, cfg) {
		p.reply(inst, cfg, ev.Sender, AfterHoursReply(cfg))
		return
	}

	intent := p.classify(ev.Text)
	cand := intelligence.ExtractCandidate(ev.Text, now, p.SlotDuration)

	ctx, cancel = p.callCtx()
	defer cancel()

	state, err := p.Tracker.GetOrCreate(ctx, inst.ID, ev.Sender)
	if err != nil {
		logger.Error("failed to load conversation state", zap.Error(err))
		p.reply(inst, cfg, ev.Sender, FallbackReply(cfg))
		return
	}

	next, action := Apply(state, ev, intent, cand, now)
	next, text := p.execute(ctx, inst, cfg, next, action)

	if err := p.Tracker.Save(ctx, next); err != nil {
		logger.Error("failed to save conversation state", zap.Error(err))
	}
	if text != "" {
		p.reply(inst, cfg, ev.Sender, text)
	}
}

func (p *Processor) classify(text string) intelligence.Intent {
	ctx, cancel := p.callCtx()
	defer cancel()
	intent, err := p.Classifier.Classify(ctx, text)
	if err != nil {
		// Classification trouble is never the customer's problem.
		utils.GetLogger().Warn("intent classification failed", zap.Error(err))
		return intelligence.IntentUnknown
	}
	return intent
}

// execute carries out the routed action and returns the possibly
// adjusted state plus the reply text.
func (p *Processor) execute(ctx context.Context, inst *models.Instance, cfg models.AgentConfig, state models.ConversationState, action Action) (models.ConversationState, string) {
	switch action.Type {
	case ActionSendGreeting:
		return state, GreetingReply(cfg)

	case ActionRequestMissingField:
		return state, MissingFieldReply(cfg, action.Field)

	case ActionProposeAvailability:
		return p.propose(ctx, inst, cfg, state, action)

	case ActionAttemptBooking:
		return p.book(ctx, inst, cfg, state, action)

	default:
		return state, FallbackReply(cfg)
	}
}

func (p *Processor) propose(ctx context.Context, inst *models.Instance, cfg models.AgentConfig, state models.ConversationState, action Action) (models.ConversationState, string) {
	slots, err := p.Availability.Compute(ctx, inst.ID, action.Date,
		cfg.WorkingHoursStart, cfg.WorkingHoursEnd, p.SlotDuration)
	if err != nil {
		if errors.Is(err, credentials.ErrNotConnected) {
			return state, NotConnectedReply(cfg)
		}
		utils.GetLogger().Error("availability computation failed",
			zap.String("instance", inst.ID), zap.Error(err))
		return state, FallbackReply(cfg)
	}

	if action.Candidate == nil {
		return state, ProposalReply(cfg, slots, nil)
	}

	// The customer asked for a specific time; check it against the grid.
	requested := findSlot(slots, action.Candidate.Start)
	if requested == nil || !requested.Available {
		// Requested time is taken or off-grid; keep collecting.
		state.Stage = models.StageCollectingInfo
		state.CandidateStart = time.Time{}
		state.CandidateEnd = time.Time{}
		return state, SlotTakenReply(cfg, slots)
	}
	return state, ProposalReply(cfg, slots, requested)
}

func (p *Processor) book(ctx context.Context, inst *models.Instance, cfg models.AgentConfig, state models.ConversationState, action Action) (models.ConversationState, string) {
	customer := models.Customer{
		Name:    state.CustomerName,
		Contact: state.CustomerContact,
	}
	appt, err := p.Booking.AttemptBook(ctx, inst.ID,
		action.Candidate.Start, action.Candidate.End, customer)
	if err == nil {
		state.Stage = models.StageDone
		return state, ConfirmationReply(cfg, appt)
	}

	if errors.Is(err, booking.ErrConflict) {
		// Someone got there first. Show what's still open on that day
		// and ask for a new pick.
		state.Stage = models.StageCollectingInfo
		date := action.Candidate.Start
		state.CandidateStart = time.Time{}
		state.CandidateEnd = time.Time{}
		slots, aerr := p.Availability.Compute(ctx, inst.ID, date,
			cfg.WorkingHoursStart, cfg.WorkingHoursEnd, p.SlotDuration)
		if aerr != nil {
			return state, FallbackReply(cfg)
		}
		return state, SlotTakenReply(cfg, slots)
	}
	if errors.Is(err, credentials.ErrNotConnected) {
		return state, NotConnectedReply(cfg)
	}

	utils.GetLogger().Error("booking attempt failed",
		zap.String("instance", inst.ID), zap.Error(err))
	return state, FallbackReply(cfg)
}

func (p *Processor) reply(inst *models.Instance, cfg models.AgentConfig, to, text string) {
	if !cfg.AutoReply(p.AutoReplyDefault) {
		return
	}
	ctx, cancel := p.callCtx()
	defer cancel()
	if err := p.Messenger.SendText(ctx, inst.Name, to, text); err != nil {
		utils.GetLogger().Error("failed to send reply",
			zap.String("instance", inst.Name),
			zap.String("to", to),
			zap.Error(err))
	}
}

// configFor overlays instance settings on the global defaults.
func (p *Processor) configFor(inst *models.Instance) models.AgentConfig {
	cfg := inst.AgentConfig
	if cfg.WorkingHoursStart == "" {
		cfg.WorkingHoursStart = p.Defaults.WorkingHoursStart
	}
	if cfg.WorkingHoursEnd == "" {
		cfg.WorkingHoursEnd = p.Defaults.WorkingHoursEnd
	}
	if cfg.AgentName == "" {
		cfg.AgentName = p.Defaults.AgentName
	}
	return cfg
}

func withinWorkingHours(now time.Time, cfg models.AgentConfig) bool {
	if cfg.WorkingHoursStart == "" || cfg.WorkingHoursEnd == "" {
		return true
	}
	hhmm := now.Format("15:04")
	return hhmm >= cfg.WorkingHoursStart && hhmm < cfg.WorkingHoursEnd
}

func findSlot(slots []models.Slot, start time.Time) *models.Slot {
	for i := range slots {
		if slots[i].Start.Equal(start) {
			return &slots[i]
		}
	}
	return nil
}
