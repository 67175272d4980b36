package models

// ReminderPayload is the queued payload for an appointment reminder
// message, delivered by the background worker ahead of the start time.
type ReminderPayload struct {
	AppointmentID string `json:"appointmentId"`
	InstanceID    string `json:"instanceId"`
	To            string `json:"to"`
	Body          string `json:"body"`
}
