package models

import "time"

// Conversation stages.
const (
	StageIdle                 = "idle"
	StageCollectingInfo       = "collecting_info"
	StageAwaitingConfirmation = "awaiting_confirmation"
	StageDone                 = "done"
)

// ConversationState tracks what has been collected so far from one
// sender on one instance. Keyed by (instance id, sender).
type ConversationState struct {
	InstanceID      string    `json:"instanceId"`
	Sender          string    `json:"sender"`
	Stage           string    `json:"stage"`
	CandidateStart  time.Time `json:"candidateStart,omitempty"`
	CandidateEnd    time.Time `json:"candidateEnd,omitempty"`
	CustomerName    string    `json:"customerName,omitempty"`
	CustomerContact string    `json:"customerContact,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// HasCandidate reports whether a candidate slot has been collected.
func (s ConversationState) HasCandidate() bool {
	return !s.CandidateStart.IsZero() && !s.CandidateEnd.IsZero()
}

// Expired reports whether the state has outlived the inactivity window.
func (s ConversationState) Expired(ttl time.Duration, now time.Time) bool {
	return !s.UpdatedAt.IsZero() && now.Sub(s.UpdatedAt) > ttl
}
