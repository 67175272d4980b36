package intelligence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func TestExtractCandidate(t *testing.T) {
	cand := ExtractCandidate("puedo venir el 15/10/2026 a las 10:30", testNow, time.Hour)
	require.NotNil(t, cand)
	assert.Equal(t, time.Date(2026, 10, 15, 10, 30, 0, 0, time.UTC), cand.Start)
	assert.Equal(t, time.Hour, cand.End.Sub(cand.Start))
}

func TestExtractCandidate_DashSeparator(t *testing.T) {
	cand := ExtractCandidate("15-10-2026 09:00", testNow, 30*time.Minute)
	require.NotNil(t, cand)
	assert.Equal(t, 30*time.Minute, cand.End.Sub(cand.Start))
}

func TestExtractCandidate_Rejections(t *testing.T) {
	cases := map[string]string{
		"date only":       "el 15/10/2026 por favor",
		"time only":       "a las 10:30",
		"past slot":       "01/01/2020 10:00",
		"rollover date":   "31/02/2027 10:00",
		"invalid month":   "15/13/2026 10:00",
		"invalid hour":    "15/10/2026 25:00",
		"no datetime":     "quiero una cita",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, ExtractCandidate(text, testNow, time.Hour))
		})
	}
}

func TestKeywordClassifier(t *testing.T) {
	c := KeywordClassifier{}
	ctx := context.Background()

	cases := map[string]Intent{
		"Hola buenos dias":      IntentGreeting,
		"quiero agendar cita":   IntentBooking,
		"I want an appointment": IntentBooking,
		"cual es el precio?":    IntentInfo,
		"si, confirmo":          IntentConfirmation,
		"xyzzy":                 IntentUnknown,
	}
	for text, want := range cases {
		got, err := c.Classify(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, want, got, "text %q", text)
	}
}

func TestParseIntent(t *testing.T) {
	assert.Equal(t, IntentBooking, ParseIntent("  Booking\n"))
	assert.Equal(t, IntentUnknown, ParseIntent("something else"))
}
