package conversation

import (
	"strings"
	"time"
	"unicode"

	"agendo/models"
	"agendo/services/intelligence"
)

// Apply is the pure state-transition function: it consumes one
// normalized event (already classified) and produces the next state
// plus at most one action. Serialization per sender is the caller's
// job; Apply itself never touches external services.
func Apply(state models.ConversationState, ev models.InboundEvent, intent intelligence.Intent, cand *intelligence.Candidate, now time.Time) (models.ConversationState, Action) {
	next := state
	next.UpdatedAt = now
	if next.CustomerContact == "" {
		next.CustomerContact = ev.Sender
	}

	// A finished conversation restarts from scratch on the next message.
	if next.Stage == models.StageDone || next.Stage == "" {
		next.Stage = models.StageIdle
		next.CandidateStart = time.Time{}
		next.CandidateEnd = time.Time{}
	}

	// A freshly extracted candidate always supersedes the stored one.
	if cand != nil {
		next.CandidateStart = cand.Start
		next.CandidateEnd = cand.End
	}

	switch next.Stage {
	case models.StageIdle:
		return routeIdle(next, intent, cand, now)
	case models.StageCollectingInfo:
		return routeCollecting(next, ev, intent, cand, now)
	case models.StageAwaitingConfirmation:
		return routeAwaiting(next, intent, cand)
	default:
		return next, Action{Type: ActionSendFallback}
	}
}

func routeIdle(state models.ConversationState, intent intelligence.Intent, cand *intelligence.Candidate, now time.Time) (models.ConversationState, Action) {
	switch intent {
	case intelligence.IntentGreeting:
		return state, Action{Type: ActionSendGreeting}
	case intelligence.IntentBooking:
		state.Stage = models.StageCollectingInfo
		if cand == nil {
			return state, Action{Type: ActionRequestMissingField, Field: FieldDateTime}
		}
		if state.CustomerName == "" {
			return state, Action{Type: ActionRequestMissingField, Field: FieldName}
		}
		state.Stage = models.StageAwaitingConfirmation
		return state, proposeFor(state)
	case intelligence.IntentInfo:
		// "When can I come in" style questions get today's slots.
		return state, Action{Type: ActionProposeAvailability, Date: now}
	default:
		return state, Action{Type: ActionSendFallback}
	}
}

func routeCollecting(state models.ConversationState, ev models.InboundEvent, intent intelligence.Intent, cand *intelligence.Candidate, now time.Time) (models.ConversationState, Action) {
	if cand != nil {
		if state.CustomerName == "" {
			return state, Action{Type: ActionRequestMissingField, Field: FieldName}
		}
		state.Stage = models.StageAwaitingConfirmation
		return state, proposeFor(state)
	}

	// No candidate in this message: a plain-text reply while we are
	// waiting on the customer's name is taken as the name.
	if state.HasCandidate() && state.CustomerName == "" && looksLikeName(ev.Text) {
		state.CustomerName = strings.TrimSpace(ev.Text)
		state.Stage = models.StageAwaitingConfirmation
		return state, proposeFor(state)
	}

	switch intent {
	case intelligence.IntentBooking:
		return state, Action{Type: ActionRequestMissingField, Field: FieldDateTime}
	case intelligence.IntentGreeting:
		return state, Action{Type: ActionSendGreeting}
	default:
		return state, Action{Type: ActionSendFallback}
	}
}

func routeAwaiting(state models.ConversationState, intent intelligence.Intent, cand *intelligence.Candidate) (models.ConversationState, Action) {
	if cand != nil {
		// Customer changed their mind about the time; re-propose.
		return state, proposeFor(state)
	}

	switch intent {
	case intelligence.IntentConfirmation:
		return state, Action{
			Type: ActionAttemptBooking,
			Candidate: &intelligence.Candidate{
				Start: state.CandidateStart,
				End:   state.CandidateEnd,
			},
		}
	case intelligence.IntentBooking:
		return state, Action{Type: ActionRequestMissingField, Field: FieldDateTime}
	default:
		return state, Action{Type: ActionSendFallback}
	}
}

func proposeFor(state models.ConversationState) Action {
	return Action{
		Type: ActionProposeAvailability,
		Date: state.CandidateStart,
		Candidate: &intelligence.Candidate{
			Start: state.CandidateStart,
			End:   state.CandidateEnd,
		},
	}
}

// looksLikeName accepts short, digit-free free text as a customer name.
func looksLikeName(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || len(trimmed) > 60 {
		return false
	}
	for _, r := range trimmed {
		if unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
