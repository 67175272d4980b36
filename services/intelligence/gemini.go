package intelligence

import (
	"context"
	"fmt"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const classifyPrompt = `You are an intent classifier for an appointment-booking assistant.
Classify the customer's message into exactly one of these intents:
- greeting: greetings, hello, hi, good morning
- booking: wants to schedule, book or reschedule an appointment (cita, agendar, reservar)
- info: asking for information, prices, services, location, hours
- confirmation: confirming a previously proposed slot (yes, si, confirmo, ok)
- unknown: anything else

Respond with only the intent name.

Message: `

// GeminiClassifier classifies intents with a Gemini model.
type GeminiClassifier struct {
	model *genai.GenerativeModel
}

// NewGeminiClassifier creates a classifier backed by Gemini.
func NewGeminiClassifier(ctx context.Context, apiKey string) (*GeminiClassifier, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel("models/gemini-1.5-flash")
	return &GeminiClassifier{model: model}, nil
}

func (g *GeminiClassifier) Classify(ctx context.Context, text string) (Intent, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(classifyPrompt+text))
	if err != nil {
		return IntentUnknown, fmt.Errorf("gemini classify error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return IntentUnknown, fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if textPart, ok := part.(genai.Text); ok {
			sb.WriteString(string(textPart))
		}
	}
	return ParseIntent(sb.String()), nil
}
