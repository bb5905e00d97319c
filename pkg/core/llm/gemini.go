package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider implements Provider using the official GenAI SDK. Responses
// are forced into JSON mode; temperature is pinned low for deterministic
// extraction.
type GeminiProvider struct {
	APIKey string
	Model  string // e.g. "gemini-2.0-flash"
}

var _ Provider = (*GeminiProvider)(nil)

func (p *GeminiProvider) Name() string {
	return "gemini/" + p.model()
}

func (p *GeminiProvider) model() string {
	if p.Model == "" {
		return "gemini-2.0-flash"
	}
	return p.Model
}

// Generate sends a generateContent request to the Gemini API.
func (p *GeminiProvider) Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	if p.APIKey == "" {
		return "", fmt.Errorf("gemini API key not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create GenAI client: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.0)),
		ResponseMIMEType: "application/json",
	}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}

	result, err := client.Models.GenerateContent(ctx, p.model(), genai.Text(userPrompt), config)
	if err != nil {
		return "", classifyGeminiError(err)
	}

	text := result.Text()
	if text == "" {
		return "", &TransientError{Err: fmt.Errorf("empty response from gemini")}
	}
	return text, nil
}

// classifyGeminiError maps SDK failures onto the transient/permanent split.
// The SDK does not expose typed status errors uniformly, so this inspects
// the message for server-side status codes.
func classifyGeminiError(err error) error {
	msg := err.Error()
	for _, marker := range []string{"500", "502", "503", "504", "429", "deadline exceeded", "connection reset", "EOF"} {
		if strings.Contains(msg, marker) {
			return &TransientError{Err: err}
		}
	}
	return fmt.Errorf("gemini generation failed: %w", err)
}
