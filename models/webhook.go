package models

import "time"

// Normalized webhook event kinds.
const (
	EventKindConnectionUpdate = "connection_update"
	EventKindMessage          = "message"
	EventKindQRUpdate         = "qr_update"
)

// InboundEvent is the normalized form of a vendor webhook delivery.
// Vendor-specific payload shapes are flattened into this before any
// processing happens.
type InboundEvent struct {
	InstanceID string    `json:"instanceId"`
	Kind       string    `json:"kind"`
	Sender     string    `json:"sender,omitempty"`
	Text       string    `json:"text,omitempty"`
	MessageID  string    `json:"messageId,omitempty"`
	Timestamp  time.Time `json:"timestamp"`

	// Kind-specific extras.
	ConnectionState string `json:"connectionState,omitempty"`
	QRCode          string `json:"qrCode,omitempty"`
}

// LaneKey groups events that must be processed in FIFO order: one lane
// per sender within an instance, one shared lane for instance-level
// events (connection and QR updates have no sender).
func (e InboundEvent) LaneKey() string {
	return e.InstanceID + ":" + e.Sender
}
