package models

import "time"

// Credential is the stored OAuth grant for one instance's calendar
// account. One-to-one with Instance; mutated only by the credential store.
type Credential struct {
	InstanceID   string    `bson:"instanceId" json:"instanceId"`
	AccessToken  string    `bson:"accessToken" json:"-"`
	RefreshToken string    `bson:"refreshToken" json:"-"`
	Expiry       time.Time `bson:"expiry" json:"expiry"`
	Scopes       []string  `bson:"scopes,omitempty" json:"scopes,omitempty"`
	AccountEmail string    `bson:"accountEmail,omitempty" json:"accountEmail,omitempty"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}
