package intelligence

import (
	"context"
	"strings"
)

// Intent is the classified purpose of a customer message.
type Intent string

const (
	IntentGreeting     Intent = "greeting"
	IntentBooking      Intent = "booking"
	IntentInfo         Intent = "info"
	IntentConfirmation Intent = "confirmation"
	IntentUnknown      Intent = "unknown"
)

// Classifier maps a raw customer message to an intent. Implementations
// may call external models; classification failure maps to unknown at
// the caller, never to a processing error.
type Classifier interface {
	Classify(ctx context.Context, text string) (Intent, error)
}

// KeywordClassifier is the deterministic fallback used when no model
// API key is configured.
type KeywordClassifier struct{}

var (
	greetingWords = []string{"hola", "hello", "hi", "hey", "buenos dias", "buenas tardes", "good morning", "good afternoon"}
	bookingWords  = []string{"cita", "agendar", "reservar", "appointment", "book", "schedule", "reserve"}
	infoWords     = []string{"precio", "price", "cost", "horario", "hours", "location", "direccion", "address", "services", "servicios"}
	confirmWords  = []string{"si", "sí", "yes", "confirmo", "confirm", "ok", "dale", "correcto", "perfecto"}
)

func (KeywordClassifier) Classify(_ context.Context, text string) (Intent, error) {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch {
	case containsAny(lower, bookingWords):
		return IntentBooking, nil
	case containsAny(lower, confirmWords):
		return IntentConfirmation, nil
	case containsAny(lower, greetingWords):
		return IntentGreeting, nil
	case containsAny(lower, infoWords):
		return IntentInfo, nil
	default:
		return IntentUnknown, nil
	}
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// ParseIntent validates a model response against the known intents.
func ParseIntent(raw string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(raw))) {
	case IntentGreeting:
		return IntentGreeting
	case IntentBooking:
		return IntentBooking
	case IntentInfo:
		return IntentInfo
	case IntentConfirmation:
		return IntentConfirmation
	default:
		return IntentUnknown
	}
}
