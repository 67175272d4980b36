package models

import "time"

// Instance connection lifecycle.
const (
	InstanceStatusPending      = "pending"
	InstanceStatusConnecting   = "connecting"
	InstanceStatusConnected    = "connected"
	InstanceStatusDisconnected = "disconnected"
)

// Instance represents a tenant's connected messaging channel. Status is
// mutated only through gateway-observed connection events.
type Instance struct {
	ID          string    `bson:"id" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Status      string    `bson:"status" json:"status"`
	PhoneNumber string    `bson:"phoneNumber,omitempty" json:"phoneNumber,omitempty"`
	ProfileName string    `bson:"profileName,omitempty" json:"profileName,omitempty"`
	QRCode      string    `bson:"qrCode,omitempty" json:"qrCode,omitempty"`
	AgentConfig AgentConfig `bson:"agentConfig" json:"agentConfig"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
	ConnectedAt time.Time `bson:"connectedAt,omitempty" json:"connectedAt,omitempty"`
}

// AgentConfig holds the per-instance conversational settings.
type AgentConfig struct {
	AgentName         string `bson:"agentName" json:"agentName"`
	AgentPurpose      string `bson:"agentPurpose,omitempty" json:"agentPurpose,omitempty"`
	WorkingHoursStart string `bson:"workingHoursStart" json:"workingHoursStart"` // HH:MM
	WorkingHoursEnd   string `bson:"workingHoursEnd" json:"workingHoursEnd"`     // HH:MM
	Timezone          string `bson:"timezone,omitempty" json:"timezone,omitempty"`
	GreetingMessage   string `bson:"greetingMessage,omitempty" json:"greetingMessage,omitempty"`
	FallbackMessage   string `bson:"fallbackMessage,omitempty" json:"fallbackMessage,omitempty"`
	AfterHoursMessage string `bson:"afterHoursMessage,omitempty" json:"afterHoursMessage,omitempty"`
	AutoReplyEnabled  *bool  `bson:"autoReplyEnabled,omitempty" json:"autoReplyEnabled,omitempty"`
}

// AutoReply resolves the per-instance toggle against the global default.
func (c AgentConfig) AutoReply(globalDefault bool) bool {
	if c.AutoReplyEnabled == nil {
		return globalDefault
	}
	return *c.AutoReplyEnabled
}
