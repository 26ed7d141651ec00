package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/finsight-io/finsight-agent/pkg/llm"
	"github.com/jinzhu/configor"
	"github.com/joho/godotenv"
)

// Config is the full runtime configuration, bound from the process
// environment after an optional .env file has been loaded into it.
type Config struct {
	// LangSmithAPIKey authenticates against the LangSmith tracing platform.
	// When empty, tracing is disabled and runs are not recorded.
	LangSmithAPIKey string `env:"LANGSMITH_API_KEY"`
	// LangSmithProject is the tracing project runs are recorded under.
	LangSmithProject string `env:"LANGSMITH_PROJECT" default:"financial-research-agent"`

	// OpenAIAPIKey is required when LLMProvider is "openai".
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	// GoogleAPIKey is required when LLMProvider is "gemini".
	GoogleAPIKey string `env:"GOOGLE_API_KEY"`
	// AnthropicAPIKey is required when LLMProvider is "anthropic".
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`

	// LLMProvider selects the active inference backend.
	// One of "openai", "gemini" or "anthropic".
	LLMProvider string `env:"LLM_PROVIDER" default:"openai"`
	// AgentModel is the model id driving agent inference.
	// Empty means the provider's default model.
	AgentModel string `env:"AGENT_MODEL"`
	// EvaluatorModel is the model id driving evaluation inference.
	// Empty means the provider's default model.
	EvaluatorModel string `env:"EVALUATOR_MODEL"`

	// TavilyAPIKey enables the web search tool. Optional.
	TavilyAPIKey string `env:"TAVILY_API_KEY"`

	// Temperature is the sampling temperature for agent inference, in [0, 2].
	Temperature float64 `env:"TEMPERATURE" default:"0.2"`
	// MaxConcurrency bounds evaluation parallelism. 2-8 is a sensible range:
	// higher values mostly trade latency for provider rate-limit errors.
	MaxConcurrency int `env:"MAX_CONCURRENCY" default:"4"`
	// AgentMaxIterations is the tool-call budget per query.
	AgentMaxIterations int `env:"AGENT_MAX_ITERATIONS" default:"10"`
	// AgentMaxExecutionTime is the wall-clock timeout per query, in seconds.
	// Zero means no limit.
	AgentMaxExecutionTime int `env:"AGENT_MAX_EXECUTION_TIME" default:"120"`
}

// Load reads .env from the working directory (if present) and binds the
// configuration from the environment.
func Load() (*Config, error) {
	return LoadFrom(".env")
}

// LoadFrom is Load with an explicit dotenv path. A missing file is not an
// error; the file only pre-populates the environment and never overrides
// variables that are already set.
func LoadFrom(dotenvPath string) (*Config, error) {
	if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load dotenv file: %w", err)
	}

	var cfg Config
	if err := configor.Load(&cfg); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	provider := llm.ProviderName(c.LLMProvider)
	switch provider {
	case llm.ProviderOpenAI, llm.ProviderGemini, llm.ProviderAnthropic:
	default:
		return fmt.Errorf("unknown LLM provider %q", c.LLMProvider)
	}
	if c.apiKey(provider) == "" {
		return fmt.Errorf("no API key configured for provider %q", c.LLMProvider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature %v out of range [0, 2]", c.Temperature)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be at least 1, got %d", c.MaxConcurrency)
	}
	if c.AgentMaxIterations < 1 {
		return fmt.Errorf("agent max iterations must be at least 1, got %d", c.AgentMaxIterations)
	}
	if c.AgentMaxExecutionTime < 0 {
		return fmt.Errorf("agent max execution time must not be negative, got %d", c.AgentMaxExecutionTime)
	}
	return nil
}

func (c *Config) apiKey(provider llm.ProviderName) string {
	switch provider {
	case llm.ProviderOpenAI:
		return c.OpenAIAPIKey
	case llm.ProviderGemini:
		return c.GoogleAPIKey
	case llm.ProviderAnthropic:
		return c.AnthropicAPIKey
	}
	return ""
}

// AgentLLM returns the model spec for agent inference.
func (c *Config) AgentLLM() (llm.Model, error) {
	return c.model(c.AgentModel, &c.Temperature)
}

// EvaluatorLLM returns the model spec for the LLM judge. Judging always
// samples at temperature zero so repeated evaluations of the same answer
// grade consistently.
func (c *Config) EvaluatorLLM() (llm.Model, error) {
	zero := 0.0
	return c.model(c.EvaluatorModel, &zero)
}

func (c *Config) model(name string, temperature *float64) (llm.Model, error) {
	provider := llm.ProviderName(c.LLMProvider)
	m := llm.Model{
		Provider:    provider,
		Name:        name,
		APIKey:      c.apiKey(provider),
		Temperature: temperature,
	}
	if err := m.SetDefaults(); err != nil {
		return llm.Model{}, fmt.Errorf("set model defaults: %w", err)
	}
	return m, nil
}

// Timebox converts the execution time limit to a duration. Zero means no
// timebox.
func (c *Config) Timebox() time.Duration {
	return time.Duration(c.AgentMaxExecutionTime) * time.Second
}

// TracingEnabled reports whether runs should be recorded to LangSmith.
func (c *Config) TracingEnabled() bool {
	return c.LangSmithAPIKey != ""
}
