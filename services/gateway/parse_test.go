package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendo/models"
)

func TestParseEvolution_MessagesArray(t *testing.T) {
	body := []byte(`{
		"event": "messages.upsert",
		"instance": "clinic-madrid",
		"data": {
			"messages": [{
				"key": {"remoteJid": "34600111222@s.whatsapp.net", "fromMe": false, "id": "MSG-1"},
				"message": {"conversation": "Hola, quiero una cita"},
				"messageTimestamp": 1767000000
			}]
		}
	}`)

	events, err := ParseEvolution(body)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "clinic-madrid", ev.InstanceID)
	assert.Equal(t, models.EventKindMessage, ev.Kind)
	assert.Equal(t, "34600111222@s.whatsapp.net", ev.Sender)
	assert.Equal(t, "Hola, quiero una cita", ev.Text)
	assert.Equal(t, "MSG-1", ev.MessageID)
	assert.Equal(t, int64(1767000000), ev.Timestamp.Unix())
}

func TestParseEvolution_SingleMessageObject(t *testing.T) {
	// Some gateway versions put the message directly in data.
	body := []byte(`{
		"event": "messages.upsert",
		"instance": "clinic-madrid",
		"data": {
			"key": {"remoteJid": "34600111222@s.whatsapp.net", "fromMe": false, "id": "MSG-2"},
			"message": {"extendedTextMessage": {"text": "quiero reservar"}}
		}
	}`)

	events, err := ParseEvolution(body)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "quiero reservar", events[0].Text)
	assert.Equal(t, "MSG-2", events[0].MessageID)
}

func TestParseEvolution_SkipsOwnMessages(t *testing.T) {
	body := []byte(`{
		"event": "messages.upsert",
		"instance": "clinic-madrid",
		"data": {
			"messages": [{
				"key": {"remoteJid": "34600111222@s.whatsapp.net", "fromMe": true, "id": "MSG-3"},
				"message": {"conversation": "nuestra respuesta"}
			}]
		}
	}`)

	events, err := ParseEvolution(body)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestParseEvolution_ImageCaption(t *testing.T) {
	body := []byte(`{
		"event": "messages.upsert",
		"instance": "clinic-madrid",
		"data": {
			"messages": [{
				"key": {"remoteJid": "34600111222@s.whatsapp.net", "fromMe": false, "id": "MSG-4"},
				"message": {"imageMessage": {"caption": "puedo venir el 15/10/2026 10:00?"}}
			}]
		}
	}`)

	events, err := ParseEvolution(body)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "puedo venir el 15/10/2026 10:00?", events[0].Text)
}

func TestParseEvolution_ConnectionUpdate(t *testing.T) {
	body := []byte(`{"event": "connection.update", "instance": "clinic-madrid", "data": {"state": "open"}}`)

	events, err := ParseEvolution(body)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventKindConnectionUpdate, events[0].Kind)
	assert.Equal(t, "open", events[0].ConnectionState)
}

func TestParseEvolution_QRUpdate(t *testing.T) {
	body := []byte(`{"event": "qrcode.updated", "instance": "clinic-madrid", "data": {"qr": "base64qr=="}}`)

	events, err := ParseEvolution(body)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventKindQRUpdate, events[0].Kind)
	assert.Equal(t, "base64qr==", events[0].QRCode)
}

func TestParseEvolution_UnknownEventDropped(t *testing.T) {
	body := []byte(`{"event": "presence.update", "instance": "clinic-madrid", "data": {}}`)

	events, err := ParseEvolution(body)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestParseEvolution_Malformed(t *testing.T) {
	_, err := ParseEvolution([]byte(`{"event": `))
	assert.Error(t, err)

	_, err = ParseEvolution([]byte(`{"event": "messages.upsert"}`))
	assert.Error(t, err, "missing instance must be rejected")
}

func TestParseSMSForm(t *testing.T) {
	ev, err := ParseSMSForm("+34600111222", " necesito una cita ", "SM-1", "clinic-sms", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "clinic-sms", ev.InstanceID)
	assert.Equal(t, "+34600111222", ev.Sender)
	assert.Equal(t, "necesito una cita", ev.Text)
	assert.Equal(t, "SM-1", ev.MessageID)
	assert.Equal(t, models.EventKindMessage, ev.Kind)
}

func TestParseSMSForm_DefaultInstance(t *testing.T) {
	ev, err := ParseSMSForm("+34600111222", "hola", "SM-2", "", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", ev.InstanceID)
}

func TestParseSMSForm_MissingFields(t *testing.T) {
	_, err := ParseSMSForm("", "hola", "SM-3", "inst", "")
	assert.Error(t, err)

	_, err = ParseSMSForm("+34600111222", "   ", "SM-4", "inst", "")
	assert.Error(t, err)
}
