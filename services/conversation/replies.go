package conversation

import (
	"fmt"
	"strings"

	"agendo/models"
)

// Reply texts sent back to the customer. Every instance can override
// the canned pieces through its agent config; raw errors never leak
// into any of these.

func agentName(cfg models.AgentConfig) string {
	if cfg.AgentName != "" {
		return cfg.AgentName
	}
	return "our assistant"
}

func GreetingReply(cfg models.AgentConfig) string {
	if cfg.GreetingMessage != "" {
		return cfg.GreetingMessage
	}
	return fmt.Sprintf("Hello! I'm %s. I can help you schedule an appointment or answer questions about our services. How can I help you today?", agentName(cfg))
}

func FallbackReply(cfg models.AgentConfig) string {
	if cfg.FallbackMessage != "" {
		return cfg.FallbackMessage
	}
	return "I'm not sure I understood that. I can help you schedule an appointment — just tell me a date and time (DD/MM/YYYY HH:MM)."
}

func AfterHoursReply(cfg models.AgentConfig) string {
	if cfg.AfterHoursMessage != "" {
		return cfg.AfterHoursMessage
	}
	return fmt.Sprintf("Hello! We're currently outside our business hours (%s - %s). I'll get back to you during the next business day. Thank you for your patience!",
		cfg.WorkingHoursStart, cfg.WorkingHoursEnd)
}

func NotConnectedReply(cfg models.AgentConfig) string {
	return "Booking is temporarily unavailable, sorry about that. Please try again a bit later or contact us directly."
}

func MissingFieldReply(cfg models.AgentConfig, field string) string {
	switch field {
	case FieldDateTime:
		return fmt.Sprintf("I'd be happy to book that for you! What date and time works for you? Please use DD/MM/YYYY and HH:MM — we're open %s to %s.",
			cfg.WorkingHoursStart, cfg.WorkingHoursEnd)
	case FieldName:
		return "Great! Could you give me your full name for the appointment?"
	default:
		return FallbackReply(cfg)
	}
}

// ProposalReply lists open slots and, when the customer's requested
// time is among them, asks for a confirmation.
func ProposalReply(cfg models.AgentConfig, slots []models.Slot, requested *models.Slot) string {
	available := make([]models.Slot, 0, len(slots))
	for _, s := range slots {
		if s.Available {
			available = append(available, s)
		}
	}
	if len(available) == 0 {
		return NoAvailabilityReply(cfg)
	}

	var sb strings.Builder
	if requested != nil {
		sb.WriteString(fmt.Sprintf("%s from %s to %s is free! Reply \"yes\" to confirm.",
			requested.Start.Format("02/01/2006"),
			requested.Start.Format("15:04"),
			requested.End.Format("15:04")))
		sb.WriteString("\n\nOther open times that day:")
	} else {
		sb.WriteString(fmt.Sprintf("Here are the open times on %s:", available[0].Start.Format("02/01/2006")))
	}
	for _, s := range available {
		if requested != nil && s.Start.Equal(requested.Start) {
			continue
		}
		sb.WriteString(fmt.Sprintf("\n- %s to %s", s.Start.Format("15:04"), s.End.Format("15:04")))
	}
	return sb.String()
}

func NoAvailabilityReply(cfg models.AgentConfig) string {
	return "I'm afraid there are no open slots left that day. Could you suggest another date?"
}

func SlotTakenReply(cfg models.AgentConfig, slots []models.Slot) string {
	return "That time was just taken, sorry! " + ProposalReply(cfg, slots, nil)
}

func ConfirmationReply(cfg models.AgentConfig, appt *models.Appointment) string {
	return fmt.Sprintf("Your appointment is confirmed for %s at %s. We look forward to seeing you, %s!",
		appt.Start.Format("02/01/2006"),
		appt.Start.Format("15:04"),
		appt.Customer.Name)
}
