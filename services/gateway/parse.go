package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"agendo/models"
)

// Vendor webhook event names.
const (
	evolutionEventMessages   = "messages.upsert"
	evolutionEventConnection = "connection.update"
	evolutionEventQRCode     = "qrcode.updated"
)

type evolutionWebhook struct {
	Event    string          `json:"event"`
	Instance string          `json:"instance"`
	Data     json.RawMessage `json:"data"`
}

type evolutionMessage struct {
	Key struct {
		RemoteJid string `json:"remoteJid"`
		FromMe    bool   `json:"fromMe"`
		ID        string `json:"id"`
	} `json:"key"`
	Message          map[string]json.RawMessage `json:"message"`
	MessageTimestamp int64                      `json:"messageTimestamp"`
}

type evolutionMessageData struct {
	Messages []evolutionMessage `json:"messages"`
	State    string             `json:"state"`
	QR       string             `json:"qr"`
}

// ParseEvolution normalizes one Evolution webhook delivery into zero or
// more inbound events. Outgoing messages (fromMe) and unknown event
// kinds normalize to nothing; a malformed body is an error.
func ParseEvolution(body []byte) ([]models.InboundEvent, error) {
	var hook evolutionWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, fmt.Errorf("malformed webhook body: %w", err)
	}
	if hook.Instance == "" {
		return nil, fmt.Errorf("webhook missing instance")
	}

	var data evolutionMessageData
	if len(hook.Data) > 0 {
		if err := json.Unmarshal(hook.Data, &data); err != nil {
			return nil, fmt.Errorf("malformed webhook data: %w", err)
		}
	}

	switch hook.Event {
	case evolutionEventMessages:
		return parseMessages(hook, data)

	case evolutionEventConnection:
		return []models.InboundEvent{{
			InstanceID:      hook.Instance,
			Kind:            models.EventKindConnectionUpdate,
			ConnectionState: data.State,
			Timestamp:       time.Now(),
		}}, nil

	case evolutionEventQRCode:
		return []models.InboundEvent{{
			InstanceID: hook.Instance,
			Kind:       models.EventKindQRUpdate,
			QRCode:     data.QR,
			Timestamp:  time.Now(),
		}}, nil

	default:
		return nil, nil
	}
}

func parseMessages(hook evolutionWebhook, data evolutionMessageData) ([]models.InboundEvent, error) {
	messages := data.Messages
	if len(messages) == 0 {
		// Some gateway versions send the message object directly as
		// data instead of wrapping it in a messages array.
		var single evolutionMessage
		if err := json.Unmarshal(hook.Data, &single); err == nil && single.Key.ID != "" {
			messages = []evolutionMessage{single}
		}
	}

	var events []models.InboundEvent
	for _, msg := range messages {
		if msg.Key.FromMe {
			continue
		}
		text := extractText(msg.Message)
		if strings.TrimSpace(text) == "" {
			continue
		}
		ts := time.Now()
		if msg.MessageTimestamp > 0 {
			ts = time.Unix(msg.MessageTimestamp, 0)
		}
		events = append(events, models.InboundEvent{
			InstanceID: hook.Instance,
			Kind:       models.EventKindMessage,
			Sender:     msg.Key.RemoteJid,
			Text:       strings.TrimSpace(text),
			MessageID:  msg.Key.ID,
			Timestamp:  ts,
		})
	}
	return events, nil
}

// extractText pulls the customer-visible text out of the message
// object, which varies by message type.
func extractText(message map[string]json.RawMessage) string {
	if raw, ok := message["conversation"]; ok {
		var text string
		if json.Unmarshal(raw, &text) == nil {
			return text
		}
	}
	for _, key := range []string{"extendedTextMessage", "textMessage"} {
		if raw, ok := message[key]; ok {
			var inner struct {
				Text string `json:"text"`
			}
			if json.Unmarshal(raw, &inner) == nil && inner.Text != "" {
				return inner.Text
			}
		}
	}
	if raw, ok := message["imageMessage"]; ok {
		var inner struct {
			Caption string `json:"caption"`
		}
		if json.Unmarshal(raw, &inner) == nil {
			return inner.Caption
		}
	}
	return ""
}

// ParseSMSForm normalizes a Twilio-style form post. The To number maps
// to an instance; when it is blank the configured default applies.
func ParseSMSForm(from, body, messageSid, to, defaultInstance string) (models.InboundEvent, error) {
	if from == "" || strings.TrimSpace(body) == "" {
		return models.InboundEvent{}, fmt.Errorf("sms webhook missing From or Body")
	}
	instance := to
	if instance == "" {
		instance = defaultInstance
	}
	if instance == "" {
		return models.InboundEvent{}, fmt.Errorf("no instance for sms webhook")
	}
	return models.InboundEvent{
		InstanceID: instance,
		Kind:       models.EventKindMessage,
		Sender:     from,
		Text:       strings.TrimSpace(body),
		MessageID:  messageSid,
		Timestamp:  time.Now(),
	}, nil
}
