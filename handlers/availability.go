package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"agendo/services/credentials"
	"agendo/utils"
)

// AvailabilityHandler returns the slot grid for an instance on a date.
// Working hours come from the instance's agent config, falling back to
// the global defaults.
func (hb *HandlerBundle) AvailabilityHandler(c *gin.Context) {
	instanceID := c.Query("instanceId")
	if instanceID == "" {
		utils.JSONError(c, http.StatusBadRequest, "instanceId is required", "")
		return
	}
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD", err.Error())
		return
	}

	workStart, workEnd := hb.WorkingHoursStart, hb.WorkingHoursEnd
	if inst, err := hb.InstanceRepo.GetByID(c.Request.Context(), instanceID); err == nil {
		if inst.AgentConfig.WorkingHoursStart != "" {
			workStart = inst.AgentConfig.WorkingHoursStart
		}
		if inst.AgentConfig.WorkingHoursEnd != "" {
			workEnd = inst.AgentConfig.WorkingHoursEnd
		}
	}

	slots, err := hb.Availability.Compute(c.Request.Context(), instanceID, date,
		workStart, workEnd, hb.SlotDuration)
	if err != nil {
		if errors.Is(err, credentials.ErrNotConnected) {
			utils.JSONError(c, http.StatusServiceUnavailable, "calendar not connected", "")
			return
		}
		utils.JSONError(c, http.StatusInternalServerError, "failed to compute availability", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"instanceId": instanceID,
		"date":       date.Format("2006-01-02"),
		"slots":      slots,
	})
}
