package handlers

import (
	"time"

	instanceRepo "agendo/database/repository/instance"
	"agendo/services/availability"
	"agendo/services/booking"
	"agendo/services/credentials"
	"agendo/services/gateway"
)

// HandlerBundle groups the services the HTTP layer needs. Routes pull
// their handlers off the bundle so wiring happens once in main.
type HandlerBundle struct {
	Gateway      *gateway.Service
	Booking      *booking.Committer
	Availability *availability.Engine
	Credentials  *credentials.Store
	InstanceRepo instanceRepo.InstanceRepository

	WorkingHoursStart string
	WorkingHoursEnd   string
	SlotDuration      time.Duration
}
