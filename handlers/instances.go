package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	instanceRepo "agendo/database/repository/instance"
	"agendo/models"
	"agendo/utils"
)

// ListInstancesHandler returns all registered instances.
func (hb *HandlerBundle) ListInstancesHandler(c *gin.Context) {
	instances, err := hb.InstanceRepo.List(c.Request.Context())
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to list instances", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"instances": instances})
}

// GetInstanceHandler returns one instance by id.
func (hb *HandlerBundle) GetInstanceHandler(c *gin.Context) {
	inst, err := hb.InstanceRepo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, instanceRepo.ErrNotFound) {
			utils.JSONError(c, http.StatusNotFound, "instance not found", "")
			return
		}
		utils.JSONError(c, http.StatusInternalServerError, "failed to load instance", err.Error())
		return
	}
	c.JSON(http.StatusOK, inst)
}

// UpdateAgentConfigHandler replaces an instance's agent configuration.
func (hb *HandlerBundle) UpdateAgentConfigHandler(c *gin.Context) {
	id := c.Param("id")
	var cfg models.AgentConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid agent config", err.Error())
		return
	}

	if _, err := hb.InstanceRepo.GetByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, instanceRepo.ErrNotFound) {
			utils.JSONError(c, http.StatusNotFound, "instance not found", "")
			return
		}
		utils.JSONError(c, http.StatusInternalServerError, "failed to load instance", err.Error())
		return
	}

	if err := hb.InstanceRepo.UpdateAgentConfig(c.Request.Context(), id, cfg); err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to update agent config", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true, "instanceId": id})
}
