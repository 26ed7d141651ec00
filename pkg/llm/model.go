package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	anthropic_option "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go/v2"
	openai_option "github.com/openai/openai-go/v2/option"
	"google.golang.org/genai"
)

type ProviderName string

const (
	ProviderOpenAI    ProviderName = "openai"
	ProviderGemini    ProviderName = "gemini"
	ProviderAnthropic ProviderName = "anthropic"
)

// Model identifies an inference backend plus the sampling settings used for
// every call made through it. APIKey is mandatory: credentials come from the
// application configuration, never from ambient process environment, so a
// misconfigured key fails at startup instead of on the first request.
type Model struct {
	Provider        ProviderName
	Name            string
	APIKey          string
	Temperature     *float64
	MaxOutputTokens int
}

var defaultModels = map[ProviderName]Model{
	ProviderOpenAI: {
		Provider: ProviderOpenAI,
		Name:     "gpt-5",
	},
	ProviderGemini: {
		Provider: ProviderGemini,
		Name:     "gemini-2.5-pro",
	},
	ProviderAnthropic: {
		Provider:        ProviderAnthropic,
		Name:            "claude-haiku-4-5-20251001",
		MaxOutputTokens: 15000,
	},
}

func (m *Model) NewProvider(ctx context.Context) (Provider, error) {
	if m.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", m.Provider)
	}
	switch m.Provider {
	case ProviderOpenAI:
		return &OpenAIProvider{
			Client:          openai.NewClient(openai_option.WithAPIKey(m.APIKey)),
			Model:           m.Name,
			Temperature:     m.Temperature,
			MaxOutputTokens: m.MaxOutputTokens,
		}, nil
	case ProviderGemini:
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  m.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("new genai client: %w", err)
		}
		return &GeminiProvider{
			Client:          client,
			Model:           m.Name,
			Temperature:     m.Temperature,
			MaxOutputTokens: m.MaxOutputTokens,
		}, nil
	case ProviderAnthropic:
		return &AnthropicProvider{
			Client:          anthropic.NewClient(anthropic_option.WithAPIKey(m.APIKey)),
			Model:           m.Name,
			Temperature:     m.Temperature,
			MaxOutputTokens: m.MaxOutputTokens,
		}, nil
	}
	return nil, fmt.Errorf("unknown provider %q", m.Provider)
}

// SetDefaults fills in the provider's default model name and output token
// limit for any field left unset.
func (m *Model) SetDefaults() error {
	defaultModel, ok := defaultModels[m.Provider]
	if !ok {
		return fmt.Errorf("unknown provider %q", m.Provider)
	}
	if m.Name == "" {
		m.Name = defaultModel.Name
	}
	if m.MaxOutputTokens == 0 {
		m.MaxOutputTokens = defaultModel.MaxOutputTokens
	}
	return nil
}
