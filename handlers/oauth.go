package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agendo/utils"
)

// GoogleAuthURLHandler returns the consent URL for connecting an
// instance's Google Calendar. The OAuth state carries the instance id.
func (hb *HandlerBundle) GoogleAuthURLHandler(c *gin.Context) {
	instanceID := c.Param("id")
	if instanceID == "" {
		utils.JSONError(c, http.StatusBadRequest, "instance id is required", "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"authUrl": hb.Credentials.AuthURL(instanceID)})
}

// GoogleAuthCallbackHandler completes the OAuth flow: exchanges the
// code and persists the credential for the instance named in state.
func (hb *HandlerBundle) GoogleAuthCallbackHandler(c *gin.Context) {
	code := c.Query("code")
	instanceID := c.Query("state")
	if code == "" || instanceID == "" {
		utils.JSONError(c, http.StatusBadRequest, "missing code or state", "")
		return
	}

	cred, err := hb.Credentials.CompleteAuth(c.Request.Context(), instanceID, code)
	if err != nil {
		utils.GetLogger().Error("oauth completion failed",
			zap.String("instanceID", instanceID), zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "failed to complete authorization", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connected":    true,
		"instanceId":   instanceID,
		"accountEmail": cred.AccountEmail,
	})
}

// GoogleDisconnectHandler removes an instance's calendar credential.
func (hb *HandlerBundle) GoogleDisconnectHandler(c *gin.Context) {
	instanceID := c.Param("id")
	if err := hb.Credentials.Disconnect(c.Request.Context(), instanceID); err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to disconnect", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": false, "instanceId": instanceID})
}
