package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"agendo/models"
	"agendo/services/booking"
	"agendo/services/credentials"
	"agendo/utils"
)

// CreateBookingHandler commits an appointment directly through the API
// (dashboard manual bookings). Same commit path as conversational
// bookings, so the no-overlap invariant holds across both.
func (hb *HandlerBundle) CreateBookingHandler(c *gin.Context) {
	var input struct {
		InstanceID      string    `json:"instanceId" binding:"required"`
		Start           time.Time `json:"start" binding:"required"`
		End             time.Time `json:"end" binding:"required"`
		CustomerName    string    `json:"customerName" binding:"required"`
		CustomerContact string    `json:"customerContact" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}

	appt, err := hb.Booking.AttemptBook(c.Request.Context(), input.InstanceID,
		input.Start, input.End,
		models.Customer{Name: input.CustomerName, Contact: input.CustomerContact})
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrConflict):
			utils.JSONError(c, http.StatusConflict, "slot already booked", "")
		case errors.Is(err, credentials.ErrNotConnected):
			utils.JSONError(c, http.StatusServiceUnavailable, "calendar not connected", "")
		default:
			utils.JSONError(c, http.StatusInternalServerError, "failed to book appointment", err.Error())
		}
		return
	}

	c.JSON(http.StatusCreated, appt)
}

// ListBookingsHandler returns an instance's appointments in a window.
func (hb *HandlerBundle) ListBookingsHandler(c *gin.Context) {
	instanceID := c.Query("instanceId")
	if instanceID == "" {
		utils.JSONError(c, http.StatusBadRequest, "instanceId is required", "")
		return
	}
	from, to, err := parseWindow(c.Query("from"), c.Query("to"))
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid window", err.Error())
		return
	}

	appts, err := hb.Booking.Appointments.ListByInstance(c.Request.Context(), instanceID, from, to)
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to list appointments", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointments": appts})
}

func parseWindow(fromStr, toStr string) (time.Time, time.Time, error) {
	now := time.Now()
	from, to := now.AddDate(0, 0, -7), now.AddDate(0, 0, 30)
	var err error
	if fromStr != "" {
		if from, err = time.Parse(time.RFC3339, fromStr); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if toStr != "" {
		if to, err = time.Parse(time.RFC3339, toStr); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return from, to, nil
}
