package llm

import (
	"context"
	"fmt"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// New builds the Client for the configured provider. It is called once at
// startup; the result is shared by every request.
func New(ctx context.Context, provider, baseURL, apiKey, model string) (Client, error) {
	switch provider {
	case ProviderGemini, "":
		return NewGeminiClient(ctx, apiKey, model)
	case ProviderOpenAI:
		return NewOpenAIClient(baseURL, apiKey, model), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}
