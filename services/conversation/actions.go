package conversation

import (
	"time"

	"agendo/services/intelligence"
)

// ActionType enumerates the discrete next steps the router can pick.
type ActionType string

const (
	ActionSendGreeting        ActionType = "send_greeting"
	ActionRequestMissingField ActionType = "request_missing_field"
	ActionProposeAvailability ActionType = "propose_availability"
	ActionAttemptBooking      ActionType = "attempt_booking"
	ActionSendFallback        ActionType = "send_fallback"
)

// Missing-field names used with ActionRequestMissingField.
const (
	FieldDateTime = "datetime"
	FieldName     = "name"
)

// Action is the single outbound step decided for one inbound event.
// The router only decides; the processor executes.
type Action struct {
	Type      ActionType
	Field     string
	Date      time.Time
	Candidate *intelligence.Candidate
}
