package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"agendo/services/gateway"
	"agendo/utils"
)

const signatureHeader = "X-Webhook-Signature"

type webhookAck struct {
	Success   bool   `json:"success"`
	RequestID string `json:"requestId"`
}

// EvolutionWebhookHandler ingests WhatsApp gateway deliveries. The
// contract with the vendor: 401 on a bad signature, 200 for anything
// we consciously drop (malformed, duplicate, unknown event), 500 only
// when we could not take responsibility for the delivery and want a
// retry.
func (hb *HandlerBundle) EvolutionWebhookHandler(c *gin.Context) {
	requestID := uuid.NewString()[:8]
	logger := utils.GetLogger().With(zap.String("requestID", requestID))

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		logger.Warn("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusOK, webhookAck{Success: false, RequestID: requestID})
		return
	}

	if !hb.Gateway.Verify(body, c.GetHeader(signatureHeader)) {
		logger.Warn("webhook signature mismatch")
		utils.JSONError(c, http.StatusUnauthorized, "invalid signature", "")
		return
	}

	if err := hb.Gateway.IngestEvolution(c.Request.Context(), body, requestID); err != nil {
		if errors.Is(err, gateway.ErrQueueFull) || errors.Is(err, gateway.ErrShuttingDown) {
			logger.Error("failed to dispatch webhook", zap.Error(err))
			utils.JSONError(c, http.StatusInternalServerError, "dispatch failed", "")
			return
		}
		// Malformed payloads are acked and dropped; the vendor would
		// just redeliver the same garbage.
		logger.Warn("dropping undecodable webhook", zap.Error(err))
		c.JSON(http.StatusOK, webhookAck{Success: false, RequestID: requestID})
		return
	}

	c.JSON(http.StatusOK, webhookAck{Success: true, RequestID: requestID})
}

// SMSWebhookHandler ingests Twilio-style SMS form posts. The signature
// covers the raw urlencoded body, so it is read and verified before the
// form is parsed, then restored for PostForm.
func (hb *HandlerBundle) SMSWebhookHandler(c *gin.Context) {
	requestID := uuid.NewString()[:8]
	logger := utils.GetLogger().With(zap.String("requestID", requestID))

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		logger.Warn("failed to read sms webhook body", zap.Error(err))
		c.JSON(http.StatusOK, webhookAck{Success: false, RequestID: requestID})
		return
	}

	if !hb.Gateway.Verify(body, c.GetHeader(signatureHeader)) {
		logger.Warn("sms webhook signature mismatch")
		utils.JSONError(c, http.StatusUnauthorized, "invalid signature", "")
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

	err = hb.Gateway.IngestSMS(c.Request.Context(),
		c.PostForm("From"),
		c.PostForm("Body"),
		c.PostForm("MessageSid"),
		c.PostForm("To"),
		requestID)
	if err != nil {
		if errors.Is(err, gateway.ErrQueueFull) || errors.Is(err, gateway.ErrShuttingDown) {
			logger.Error("failed to dispatch sms", zap.Error(err))
			utils.JSONError(c, http.StatusInternalServerError, "dispatch failed", "")
			return
		}
		logger.Warn("dropping invalid sms webhook", zap.Error(err))
		c.JSON(http.StatusOK, webhookAck{Success: false, RequestID: requestID})
		return
	}

	c.JSON(http.StatusOK, webhookAck{Success: true, RequestID: requestID})
}
