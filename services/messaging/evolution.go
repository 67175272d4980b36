package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"agendo/utils"
)

// Sender delivers outbound messages to a customer on an instance.
type Sender interface {
	SendText(ctx context.Context, instanceID, to, text string) error
}

// EvolutionClient sends WhatsApp messages through an Evolution-style
// gateway. Delivery failures (non-2xx, timeouts) are retried with
// backoff before surfacing.
type EvolutionClient struct {
	client  *resty.Client
	baseURL string
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// NewEvolutionClient builds a client for the given gateway base URL.
func NewEvolutionClient(baseURL, apiKey string) *EvolutionClient {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= 500
		})
	client.SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetHeader("apikey", apiKey)
	}
	return &EvolutionClient{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// SendText posts a text message to the recipient via the instance's
// channel. The phone number is normalized to the gateway's JID form.
func (c *EvolutionClient) SendText(ctx context.Context, instanceID, to, text string) error {
	if c.baseURL == "" {
		return fmt.Errorf("evolution api url not configured")
	}

	url := fmt.Sprintf("%s/message/sendText/%s", c.baseURL, instanceID)
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(sendTextRequest{Number: normalizeNumber(to), Text: text}).
		Post(url)
	if err != nil {
		return fmt.Errorf("failed to send message via %s: %w", instanceID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("message send rejected with status %d: %s",
			resp.StatusCode(), resp.String())
	}

	utils.GetLogger().Info("outbound message sent",
		zap.String("instanceID", instanceID), zap.String("to", to))
	return nil
}

// normalizeNumber appends the WhatsApp JID suffix for bare numbers.
func normalizeNumber(to string) string {
	if strings.Contains(to, "@") {
		return to
	}
	return to + "@s.whatsapp.net"
}
