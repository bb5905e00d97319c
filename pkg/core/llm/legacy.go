package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// LegacyGeminiProvider implements Provider using the older generative-ai-go
// SDK. Kept as a selectable alternative (LLM_PROVIDER=gemini-legacy) for
// environments pinned to that client.
type LegacyGeminiProvider struct {
	APIKey string
	Model  string
}

var _ Provider = (*LegacyGeminiProvider)(nil)

func (p *LegacyGeminiProvider) Name() string {
	return "gemini-legacy/" + p.model()
}

func (p *LegacyGeminiProvider) model() string {
	if p.Model == "" {
		return "gemini-2.0-flash"
	}
	return p.Model
}

// Generate sends a generateContent request through the legacy client.
func (p *LegacyGeminiProvider) Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	if p.APIKey == "" {
		return "", fmt.Errorf("gemini API key not configured")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(p.APIKey))
	if err != nil {
		return "", fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(p.model())
	model.SetTemperature(0.0)
	model.ResponseMIMEType = "application/json"
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", classifyGeminiError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &TransientError{Err: fmt.Errorf("empty response from gemini")}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", &TransientError{Err: fmt.Errorf("no text parts in gemini response")}
	}
	return sb.String(), nil
}
